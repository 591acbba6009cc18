// Package reply sends outbound messages through the provider API behind a
// per-bot sliding-window rate limiter, applying the rule's reply mode.
package reply

import (
	"context"

	"github.com/nextlevelbuilder/gewegate/internal/event"
	"github.com/nextlevelbuilder/gewegate/internal/gewe"
)

// Mode selects how a reply addresses the original message.
type Mode string

const (
	ModeNone       Mode = "none"
	ModeQuote      Mode = "quote"
	ModeAt         Mode = "at"
	ModeQuoteAndAt Mode = "quote_and_at"
)

// ParseMode normalizes a configured reply mode string; unknown values and
// the empty string mean plain text.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeQuote, ModeAt, ModeQuoteAndAt:
		return Mode(s)
	default:
		return ModeNone
	}
}

// Sender is the rate-limited outbound path. Every send acquires admission
// from the bot's limiter before touching the provider API.
type Sender struct {
	client gewe.Client
	pool   *LimiterPool
}

// NewSender creates a sender over the given provider client.
func NewSender(client gewe.Client, pool *LimiterPool) *Sender {
	return &Sender{client: client, pool: pool}
}

// Text sends plain text.
func (s *Sender) Text(ctx context.Context, appID, toWxid, content string, ats []string) error {
	if err := s.pool.Get(appID).Acquire(ctx); err != nil {
		return err
	}
	return s.client.SendText(ctx, appID, toWxid, content, ats)
}

// Image sends an image by URL.
func (s *Sender) Image(ctx context.Context, appID, toWxid, imgURL string) error {
	if err := s.pool.Get(appID).Acquire(ctx); err != nil {
		return err
	}
	return s.client.SendImage(ctx, appID, toWxid, imgURL)
}

// AppMsg sends a raw appmsg payload.
func (s *Sender) AppMsg(ctx context.Context, appID, toWxid, appmsgXML string) error {
	if err := s.pool.Get(appID).Acquire(ctx); err != nil {
		return err
	}
	return s.client.SendAppMsg(ctx, appID, toWxid, appmsgXML)
}

// Reply sends text back to the event's conversation using the given mode.
// The at modes only apply to group chats; in private chats they degrade to
// plain text. Quote modes fail hard when the event has no message id.
func (s *Sender) Reply(ctx context.Context, ev *event.NormalizedEvent, text string, mode Mode) error {
	switch mode {
	case ModeQuote, ModeQuoteAndAt:
		withAt := mode == ModeQuoteAndAt && ev.Chat == event.ChatGroup
		payload, err := BuildQuote(ev, text, withAt)
		if err != nil {
			return err
		}
		return s.AppMsg(ctx, ev.AppID, ev.ReplyTarget(), payload)

	case ModeAt:
		if ev.Chat == event.ChatGroup {
			content := "@" + ev.DisplayName() + " " + text
			return s.Text(ctx, ev.AppID, ev.ReplyTarget(), content, []string{ev.SenderWxid()})
		}
		return s.Text(ctx, ev.AppID, ev.ReplyTarget(), text, nil)

	default:
		return s.Text(ctx, ev.AppID, ev.ReplyTarget(), text, nil)
	}
}
