package event

import (
	"testing"
)

func addMsg(msgType int, from, to, content string) map[string]interface{} {
	return map[string]interface{}{
		"MsgType":      float64(msgType),
		"FromUserName": from,
		"ToUserName":   to,
		"Content":      content,
		"NewMsgId":     float64(8888),
	}
}

func TestNormalize_PrivateText(t *testing.T) {
	data := addMsg(1, "wxid_alice", "wxid_bot", "hello there")
	data["PushContent"] = "Alice : hello there"

	ev := Normalize("wx_app", "AddMsg", data)

	if ev.Kind != KindText {
		t.Errorf("kind = %s, want text", ev.Kind)
	}
	if ev.Chat != ChatPrivate {
		t.Errorf("chat = %s, want private", ev.Chat)
	}
	if ev.Nickname != "Alice" {
		t.Errorf("nickname = %q, want Alice", ev.Nickname)
	}
	if ev.NewMsgID != 8888 {
		t.Errorf("NewMsgID = %d, want 8888", ev.NewMsgID)
	}
	if ev.Preview != "hello there" {
		t.Errorf("preview = %q", ev.Preview)
	}
}

func TestNormalize_GroupSenderSplit(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantSender  string
		wantContent string
	}{
		{"lf separator", "wxid_bob:\nhi all", "wxid_bob", "hi all"},
		{"crlf separator", "wxid_bob:\r\nhi all", "wxid_bob", "hi all"},
		{"no separator", "just text", "", "just text"},
		{"colon without newline", "time: 12:30", "", "time: 12:30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Normalize("wx_app", "AddMsg", addMsg(1, "123@chatroom", "wxid_bot", tt.content))
			if ev.Chat != ChatGroup {
				t.Fatalf("chat = %s, want group", ev.Chat)
			}
			if ev.GroupSenderWxid != tt.wantSender {
				t.Errorf("sender = %q, want %q", ev.GroupSenderWxid, tt.wantSender)
			}
			if ev.Content != tt.wantContent {
				t.Errorf("content = %q, want %q", ev.Content, tt.wantContent)
			}
		})
	}
}

func TestNormalize_KindTable(t *testing.T) {
	tests := []struct {
		name    string
		msgType int
		content string
		want    Kind
	}{
		{"text", 1, "hi", KindText},
		{"image", 3, "<msg/>", KindImage},
		{"voice", 34, "<msg/>", KindVoice},
		{"video", 43, "<msg/>", KindVideo},
		{"emoji", 47, "<msg/>", KindEmoji},
		{"link", 49, "<appmsg><type>5</type></appmsg>", KindLink},
		{"file notice", 49, "<appmsg><type>74</type></appmsg>", KindFile},
		{"quote stays any", 49, "<appmsg><type>57</type></appmsg>", KindAny},
		{"unknown code", 10002, "", KindAny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Normalize("wx_app", "AddMsg", addMsg(tt.msgType, "wxid_a", "wxid_b", tt.content))
			if ev.Kind != tt.want {
				t.Errorf("kind = %s, want %s", ev.Kind, tt.want)
			}
		})
	}
}

func TestNormalize_ContactEvent(t *testing.T) {
	ev := Normalize("wx_app", "ModContacts", map[string]interface{}{})
	if ev.Kind != KindContactEvent {
		t.Errorf("kind = %s, want contact_event", ev.Kind)
	}
}

func TestNormalize_UnknownTypeName(t *testing.T) {
	ev := Normalize("wx_app", "Offline", map[string]interface{}{})
	if ev.Kind != KindAny {
		t.Errorf("kind = %s, want any", ev.Kind)
	}
	if ev.Content != "" {
		t.Errorf("content should be empty for non-message events")
	}
}

func TestNormalize_MentionDetection(t *testing.T) {
	tests := []struct {
		name      string
		msgSource string
		content   string
		want      bool
	}{
		{
			"atuserlist hit",
			"<msgsource><atuserlist>wxid_x,wxid_bot</atuserlist></msgsource>",
			"hey",
			true,
		},
		{
			"atuserlist miss",
			"<msgsource><atuserlist>wxid_x</atuserlist></msgsource>",
			"hey",
			false,
		},
		{
			"literal id in content",
			"",
			"ping wxid_bot please",
			true,
		},
		{
			"no mention",
			"",
			"nothing here",
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := addMsg(1, "9@chatroom", "wxid_bot", "wxid_member:\n"+tt.content)
			data["MsgSource"] = tt.msgSource
			ev := Normalize("wx_app", "AddMsg", data)
			if ev.Mentioned != tt.want {
				t.Errorf("mentioned = %v, want %v", ev.Mentioned, tt.want)
			}
		})
	}
}

func TestNormalize_QuotePreview(t *testing.T) {
	content := `<appmsg><type>57</type><title>my reply</title><refermsg><type>1</type><content>original text</content></refermsg></appmsg>`
	ev := Normalize("wx_app", "AddMsg", addMsg(49, "wxid_a", "wxid_b", content))

	want := "[quote text] original text | my reply"
	if ev.Preview != want {
		t.Errorf("preview = %q, want %q", ev.Preview, want)
	}
}

func TestNormalize_QuotedMarkupNotShown(t *testing.T) {
	content := `<appmsg><type>57</type><title>re</title><refermsg><type>1</type><content>&lt;msg&gt;xml&lt;/msg&gt;</content></refermsg></appmsg>`
	ev := Normalize("wx_app", "AddMsg", addMsg(49, "wxid_a", "wxid_b", content))

	want := "[quote text] | re"
	if ev.Preview != want {
		t.Errorf("preview = %q, want %q", ev.Preview, want)
	}
}

func TestNicknameFromPush(t *testing.T) {
	tests := []struct {
		push string
		want string
	}{
		{"Alice : hi", "Alice"},
		{"小明：在吗", "小明"},
		{"no colon here", ""},
		{": leading colon", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := nicknameFromPush(tt.push); got != tt.want {
			t.Errorf("nicknameFromPush(%q) = %q, want %q", tt.push, got, tt.want)
		}
	}
}

func TestShorten(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		max       int
		want      string
		truncated bool
	}{
		{"under cap", "hello", 10, "hello", false},
		{"at cap", "hello", 5, "hello", false},
		{"ascii truncated", "hello world", 5, "hello", true},
		{"multibyte not split", "你好世界啊", 3, "你好世", true},
		{"zero cap", "x", 0, "", true},
		{"empty", "", 5, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := Shorten(tt.in, tt.max)
			if got != tt.want || truncated != tt.truncated {
				t.Errorf("Shorten(%q, %d) = (%q, %v), want (%q, %v)",
					tt.in, tt.max, got, truncated, tt.want, tt.truncated)
			}
		})
	}
}

func TestExtractMsgID(t *testing.T) {
	tests := []struct {
		name string
		data map[string]interface{}
		want int64
	}{
		{"top level", map[string]interface{}{"NewMsgId": float64(42)}, 42},
		{"nested under Data", map[string]interface{}{"Data": map[string]interface{}{"NewMsgId": float64(7)}}, 7},
		{"absent", map[string]interface{}{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractMsgID(tt.data); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
