// Package event normalizes raw GeWe webhook payloads into the canonical
// shape the rule engine consumes.
package event

// Kind classifies a normalized event for rule matching.
type Kind string

const (
	KindText         Kind = "text"
	KindImage        Kind = "image"
	KindVoice        Kind = "voice"
	KindVideo        Kind = "video"
	KindEmoji        Kind = "emoji"
	KindLink         Kind = "link"
	KindFile         Kind = "file"
	KindContactEvent Kind = "contact_event"
	KindAny          Kind = "any"
)

// Chat type of the originating conversation.
const (
	ChatPrivate = "private"
	ChatGroup   = "group"
)

// NormalizedEvent is the canonical form of one webhook delivery. Built fresh
// per event, never persisted, discarded after dispatch.
type NormalizedEvent struct {
	Kind     Kind
	AppID    string
	TypeName string

	MsgType    int
	AppMsgType int // embedded <type> for MsgType 49, 0 otherwise

	FromWxid        string // sender for private chats, room id for group chats
	GroupSenderWxid string // actual sender inside a group chat, if recoverable
	ToWxid          string // the bot's own wxid

	Content     string
	PushContent string
	MsgSource   string
	NewMsgID    int64

	Chat      string // ChatPrivate or ChatGroup
	Nickname  string
	Mentioned bool

	// Preview is a human-readable, length-capped rendering for logs.
	Preview string
}

// SenderWxid returns the id of the actual message author: the extracted group
// sender when present, otherwise the top-level sender.
func (e *NormalizedEvent) SenderWxid() string {
	if e.GroupSenderWxid != "" {
		return e.GroupSenderWxid
	}
	return e.FromWxid
}

// ReplyTarget returns the wxid replies should be addressed to: the room for
// group chats, the sender for private chats.
func (e *NormalizedEvent) ReplyTarget() string {
	return e.FromWxid
}

// DisplayName returns the best human-readable name for the sender.
func (e *NormalizedEvent) DisplayName() string {
	if e.Nickname != "" {
		return e.Nickname
	}
	return e.SenderWxid()
}
