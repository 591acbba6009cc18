// Package bot holds per-account state: credentials, compiled rules, and the
// delivery dedupe cache. The registry is the lookup used by the webhook
// server to route an incoming callback to its account.
package bot

import (
	"fmt"
	"sync"
	"time"

	"github.com/nextlevelbuilder/gewegate/internal/bus"
	"github.com/nextlevelbuilder/gewegate/internal/rules"
)

// Dedupe cache sizing per account.
const (
	DedupeTTL        = 10 * time.Minute
	DedupeMaxEntries = 4096
)

// Context is the immutable identity and credentials of one account.
type Context struct {
	AppID         string
	Token         string
	WebhookSecret string
	Description   string
}

// Bot is one configured account with its executable rule list.
type Bot struct {
	Context
	Rules  []rules.CompiledRule
	Dedupe *bus.DedupeCache
}

// New compiles the rule list for the account. A bad rule (for example an
// invalid regex) fails the whole account.
func New(ctx Context, ruleList []rules.Rule) (*Bot, error) {
	compiled, err := rules.Compile(ruleList)
	if err != nil {
		return nil, fmt.Errorf("bot %s: %w", ctx.AppID, err)
	}
	return &Bot{
		Context: ctx,
		Rules:   compiled,
		Dedupe:  bus.NewDedupeCache(DedupeTTL, DedupeMaxEntries),
	}, nil
}

// Registry maps app ids to bots.
type Registry struct {
	mu   sync.RWMutex
	bots map[string]*Bot
}

func NewRegistry() *Registry {
	return &Registry{bots: make(map[string]*Bot)}
}

// Add registers a bot, rejecting duplicate app ids.
func (r *Registry) Add(b *Bot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bots[b.AppID]; ok {
		return fmt.Errorf("bot %s: duplicate app id", b.AppID)
	}
	r.bots[b.AppID] = b
	return nil
}

// Get returns the bot for the app id, or nil.
func (r *Registry) Get(appID string) *Bot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bots[appID]
}

// Token returns the account token for the app id, for the provider client.
func (r *Registry) Token(appID string) string {
	if b := r.Get(appID); b != nil {
		return b.Context.Token
	}
	return ""
}

// Len reports the number of registered bots.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bots)
}
