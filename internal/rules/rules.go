// Package rules compiles the resolved per-bot rule list into executable
// matchers. The declarative file format, validation, and merge cascade live
// in the config tooling; this package only consumes the flat result.
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nextlevelbuilder/gewegate/internal/ai"
	"github.com/nextlevelbuilder/gewegate/internal/command"
	"github.com/nextlevelbuilder/gewegate/internal/event"
)

// Rule is one resolved declarative rule.
type Rule struct {
	Kind   string    `json:"kind,omitempty"` // event kind, "" or "any" matches everything
	Match  MatchSpec `json:"match,omitempty"`
	From   FromSpec  `json:"from,omitempty"`
	Chat   string    `json:"chat,omitempty"` // "private", "group", or "" for both
	Action Action    `json:"action"`
}

// MatchSpec is the text predicate of a rule. All configured fields must hold
// (AND); a spec with no fields matches any text.
type MatchSpec struct {
	Equals   string `json:"equals,omitempty"`
	Contains string `json:"contains,omitempty"`
	Regex    string `json:"regex,omitempty"`
}

// FromSpec gates a rule on the sender. For group chats Wxid matches either
// the extracted group sender or the room id itself.
type FromSpec struct {
	Nickname string `json:"nickname,omitempty"`
	Wxid     string `json:"wxid,omitempty"`
}

// SaveSpec configures the save-to-disk sub-action.
type SaveSpec struct {
	Dir string `json:"dir"`
	// Filename supports {new_msg_id}, {from_wxid} and {app_id} placeholders.
	Filename string `json:"filename,omitempty"`
}

// Action bundles the optional sub-actions executed when a rule fires.
type Action struct {
	Reply   string        `json:"reply,omitempty"`
	Save    *SaveSpec     `json:"save,omitempty"`
	Forward []string      `json:"forward,omitempty"`
	Log     bool          `json:"log,omitempty"`
	Ignore  bool          `json:"ignore,omitempty"`
	Command *command.Spec `json:"command,omitempty"`
	AI      *ai.Action    `json:"ai,omitempty"`

	// ReplyMode: "none" (default), "quote", "at", "quote_and_at".
	ReplyMode string `json:"reply_mode,omitempty"`

	// RequireMention skips this rule for group messages that don't
	// mention the bot; matching continues with later rules.
	RequireMention bool `json:"require_mention,omitempty"`
}

// CompiledRule is an immutable, executable form of a Rule. The regex is
// compiled once at bot load; it is never recompiled per event.
type CompiledRule struct {
	Kind   event.Kind
	Chat   string
	From   FromSpec
	Action Action

	equals   string
	contains string
	re       *regexp.Regexp
}

// Compile builds the executable rule list for one bot. A regex compile
// error aborts the whole bot's initialization.
func Compile(list []Rule) ([]CompiledRule, error) {
	compiled := make([]CompiledRule, 0, len(list))
	for i, r := range list {
		kind := event.Kind(r.Kind)
		if r.Kind == "" {
			kind = event.KindAny
		}

		cr := CompiledRule{
			Kind:     kind,
			Chat:     r.Chat,
			From:     r.From,
			Action:   r.Action,
			equals:   r.Match.Equals,
			contains: r.Match.Contains,
		}

		if r.Match.Regex != "" {
			re, err := regexp.Compile(r.Match.Regex)
			if err != nil {
				return nil, fmt.Errorf("rule %d: compile regex %q: %w", i, r.Match.Regex, err)
			}
			cr.re = re
		}

		compiled = append(compiled, cr)
	}
	return compiled, nil
}

// Match reports whether the rule applies to the event: kind, chat type,
// sender gate, and text predicates must all hold.
func (r *CompiledRule) Match(ev *event.NormalizedEvent) bool {
	if r.Kind != event.KindAny && r.Kind != ev.Kind {
		return false
	}
	if r.Chat != "" && r.Chat != ev.Chat {
		return false
	}
	if !r.matchSender(ev) {
		return false
	}

	text := strings.TrimSpace(ev.Content)
	if r.equals != "" && text != r.equals {
		return false
	}
	if r.contains != "" && !strings.Contains(text, r.contains) {
		return false
	}
	if r.re != nil && !r.re.MatchString(text) {
		return false
	}
	return true
}

func (r *CompiledRule) matchSender(ev *event.NormalizedEvent) bool {
	if r.From.Nickname != "" && r.From.Nickname != ev.Nickname {
		return false
	}
	if r.From.Wxid != "" {
		if ev.Chat == event.ChatGroup {
			if r.From.Wxid != ev.GroupSenderWxid && r.From.Wxid != ev.FromWxid {
				return false
			}
		} else if r.From.Wxid != ev.FromWxid {
			return false
		}
	}
	return true
}
