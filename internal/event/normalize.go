package event

import (
	"html"
	"regexp"
	"strings"
)

const (
	groupSuffix = "@chatroom"

	// previewCap bounds the log-preview rendering of message content.
	previewCap = 240
)

// Message type codes from the provider's wire protocol.
const (
	msgTypeText  = 1
	msgTypeImage = 3
	msgTypeVoice = 34
	msgTypeVideo = 43
	msgTypeEmoji = 47
	msgTypeApp   = 49
)

// Embedded <type> codes inside a MsgType-49 appmsg payload.
const (
	appMsgTypeLink  = 5
	appMsgTypeQuote = 57
	appMsgTypeFile  = 74
)

var (
	appMsgTypeRe   = regexp.MustCompile(`<type>(\d+)</type>`)
	appMsgTitleRe  = regexp.MustCompile(`(?s)<title>(.*?)</title>`)
	referMsgRe     = regexp.MustCompile(`(?s)<refermsg>.*?</refermsg>`)
	referTypeRe    = regexp.MustCompile(`<type>(\d+)</type>`)
	referContentRe = regexp.MustCompile(`(?s)<content>(.*?)</content>`)
	atUserListRe   = regexp.MustCompile(`(?s)<atuserlist>(.*?)</atuserlist>`)
)

// contactEventNames are provider TypeNames describing contact lifecycle changes.
var contactEventNames = map[string]bool{
	"ModContacts": true,
	"DelContacts": true,
}

// Normalize converts one raw webhook payload into a NormalizedEvent.
// Unknown TypeNames normalize to kind "any" with only AppID/TypeName set.
func Normalize(appID, typeName string, data map[string]interface{}) *NormalizedEvent {
	ev := &NormalizedEvent{
		Kind:     KindAny,
		AppID:    appID,
		TypeName: typeName,
	}

	if contactEventNames[typeName] {
		ev.Kind = KindContactEvent
		ev.Preview = "[contact event]"
		return ev
	}

	if typeName != "AddMsg" {
		return ev
	}

	ev.MsgType = intField(data, "MsgType")
	ev.FromWxid = strField(data, "FromUserName")
	ev.ToWxid = strField(data, "ToUserName")
	ev.Content = strField(data, "Content")
	ev.PushContent = strField(data, "PushContent")
	ev.MsgSource = strField(data, "MsgSource")
	ev.NewMsgID = int64Field(data, "NewMsgId")

	ev.Chat = ChatPrivate
	if strings.HasSuffix(ev.FromWxid, groupSuffix) {
		ev.Chat = ChatGroup
		if sender, rest, ok := ExtractGroupSender(ev.Content); ok {
			ev.GroupSenderWxid = sender
			ev.Content = rest
		}
	}

	ev.Kind, ev.AppMsgType = classify(ev.MsgType, ev.Content)
	ev.Nickname = nicknameFromPush(ev.PushContent)
	if ev.Chat == ChatGroup {
		ev.Mentioned = detectMention(ev.ToWxid, ev.MsgSource, ev.Content)
	}
	ev.Preview = buildPreview(ev)

	return ev
}

// ExtractGroupSender splits a group-chat Content of the form
// "wxid_abc:\nactual message" into the sender id and the bare message.
// Returns ok=false when no separator is present.
func ExtractGroupSender(content string) (sender, rest string, ok bool) {
	for _, sep := range []string{":\r\n", ":\n"} {
		if idx := strings.Index(content, sep); idx > 0 {
			return content[:idx], content[idx+len(sep):], true
		}
	}
	return "", "", false
}

// classify maps a message type code (plus the embedded appmsg <type> for
// code 49) to an event kind.
func classify(msgType int, content string) (Kind, int) {
	switch msgType {
	case msgTypeText:
		return KindText, 0
	case msgTypeImage:
		return KindImage, 0
	case msgTypeVoice:
		return KindVoice, 0
	case msgTypeVideo:
		return KindVideo, 0
	case msgTypeEmoji:
		return KindEmoji, 0
	case msgTypeApp:
		appType := 0
		if m := appMsgTypeRe.FindStringSubmatch(content); m != nil {
			appType = atoi(m[1])
		}
		switch appType {
		case appMsgTypeLink:
			return KindLink, appType
		case appMsgTypeFile:
			return KindFile, appType
		default:
			return KindAny, appType
		}
	default:
		return KindAny, 0
	}
}

// nicknameFromPush recovers the sender nickname from a push preview like
// "小明 : 在吗" (ASCII or full-width colon).
func nicknameFromPush(push string) string {
	idx := strings.IndexAny(push, ":：")
	if idx <= 0 {
		return ""
	}
	return strings.TrimSpace(push[:idx])
}

// detectMention reports whether the bot's own id was mentioned: present in
// the <atuserlist> block of the message source, or literally in the content.
// The literal-content check is intentionally permissive and can false-positive
// on quoted messages carrying the id.
func detectMention(selfWxid, msgSource, content string) bool {
	if selfWxid == "" {
		return false
	}
	if m := atUserListRe.FindStringSubmatch(msgSource); m != nil {
		if strings.Contains(m[1], selfWxid) {
			return true
		}
	}
	return strings.Contains(content, selfWxid)
}

// buildPreview renders a length-capped, human-readable form of the event
// content for structured logging.
func buildPreview(ev *NormalizedEvent) string {
	switch ev.Kind {
	case KindText:
		s, _ := Shorten(strings.TrimSpace(ev.Content), previewCap)
		return s
	case KindImage:
		return "[image]"
	case KindVoice:
		return "[voice]"
	case KindVideo:
		return "[video]"
	case KindEmoji:
		return "[emoji]"
	case KindLink:
		return "[link] " + appMsgTitle(ev.Content)
	case KindFile:
		return "[file] " + appMsgTitle(ev.Content)
	default:
		if ev.MsgType == msgTypeApp && strings.Contains(ev.Content, "<appmsg") {
			return appMsgPreview(ev.Content)
		}
		return "[msg type " + itoa(ev.MsgType) + "]"
	}
}

// appMsgPreview renders a quoted/card appmsg: quoted type label, quoted text
// (only when the quoted payload is plain text), and the message title.
func appMsgPreview(content string) string {
	parts := []string{}

	if ref := referMsgRe.FindString(content); ref != "" {
		refType := 0
		if m := referTypeRe.FindStringSubmatch(ref); m != nil {
			refType = atoi(m[1])
		}
		label := typeLabel(refType)
		quoted := ""
		if refType == msgTypeText {
			if m := referContentRe.FindStringSubmatch(ref); m != nil {
				text := html.UnescapeString(m[1])
				if !strings.HasPrefix(strings.TrimSpace(text), "<") {
					quoted, _ = Shorten(strings.TrimSpace(text), 80)
				}
			}
		}
		if quoted != "" {
			parts = append(parts, "[quote "+label+"] "+quoted)
		} else {
			parts = append(parts, "[quote "+label+"]")
		}
	}

	if title := appMsgTitle(content); title != "" {
		parts = append(parts, title)
	}

	if len(parts) == 0 {
		return "[appmsg]"
	}
	s, _ := Shorten(strings.Join(parts, " | "), previewCap)
	return s
}

func appMsgTitle(content string) string {
	if m := appMsgTitleRe.FindStringSubmatch(content); m != nil {
		s, _ := Shorten(strings.TrimSpace(html.UnescapeString(m[1])), 80)
		return s
	}
	return ""
}

// typeLabel names a message type code for previews.
func typeLabel(code int) string {
	switch code {
	case msgTypeText:
		return "text"
	case msgTypeImage:
		return "image"
	case msgTypeVoice:
		return "voice"
	case msgTypeVideo:
		return "video"
	case msgTypeEmoji:
		return "emoji"
	case msgTypeApp:
		return "appmsg"
	default:
		return "type " + itoa(code)
	}
}
