package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/gewegate/internal/ai"
	"github.com/nextlevelbuilder/gewegate/internal/bot"
	"github.com/nextlevelbuilder/gewegate/internal/command"
	"github.com/nextlevelbuilder/gewegate/internal/event"
	"github.com/nextlevelbuilder/gewegate/internal/reply"
	"github.com/nextlevelbuilder/gewegate/internal/rules"
)

type fakeClient struct {
	mu      sync.Mutex
	texts   []string
	targets []string
	apps    []string
	imgData []byte
}

func (f *fakeClient) SendText(ctx context.Context, appID, toWxid, content string, ats []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, content)
	f.targets = append(f.targets, toWxid)
	return nil
}

func (f *fakeClient) SendImage(ctx context.Context, appID, toWxid, imgURL string) error {
	return nil
}

func (f *fakeClient) SendAppMsg(ctx context.Context, appID, toWxid, appmsgXML string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps = append(f.apps, appmsgXML)
	return nil
}

func (f *fakeClient) DownloadImage(ctx context.Context, appID, contentXML string) ([]byte, error) {
	return f.imgData, nil
}
func (f *fakeClient) DownloadVoice(ctx context.Context, appID, contentXML string, msgID int64) ([]byte, error) {
	return f.imgData, nil
}
func (f *fakeClient) DownloadVideo(ctx context.Context, appID, contentXML string) ([]byte, error) {
	return f.imgData, nil
}
func (f *fakeClient) DownloadEmoji(ctx context.Context, appID, contentXML string) ([]byte, error) {
	return f.imgData, nil
}
func (f *fakeClient) DownloadFile(ctx context.Context, appID, contentXML string) ([]byte, error) {
	return f.imgData, nil
}

func newTestDispatcher(client *fakeClient) *Dispatcher {
	sender := reply.NewSender(client, reply.NewLimiterPool(1000, time.Minute, 0))
	runner := command.NewRunner(command.Options{AllowExternal: false})
	return New(sender, runner, client, ai.Options{})
}

func newTestBot(t *testing.T, ruleList []rules.Rule) *bot.Bot {
	t.Helper()
	b, err := bot.New(bot.Context{AppID: "wx_app", Token: "tok"}, ruleList)
	if err != nil {
		t.Fatalf("bot.New: %v", err)
	}
	return b
}

func textEvent(content string) *event.NormalizedEvent {
	return &event.NormalizedEvent{
		Kind:     event.KindText,
		AppID:    "wx_app",
		FromWxid: "wxid_alice",
		ToWxid:   "wxid_bot",
		Content:  content,
		Chat:     event.ChatPrivate,
		NewMsgID: 42,
	}
}

func TestDispatch_FirstMatchWins(t *testing.T) {
	client := &fakeClient{}
	d := newTestDispatcher(client)
	b := newTestBot(t, []rules.Rule{
		{Kind: "text", Match: rules.MatchSpec{Contains: "foo"}, Action: rules.Action{Reply: "from A"}},
		{Kind: "any", Action: rules.Action{Reply: "from B"}},
	})

	d.Dispatch(context.Background(), b, textEvent("say foo now"))

	if len(client.texts) != 1 || client.texts[0] != "from A" {
		t.Errorf("texts = %v, want only [from A]", client.texts)
	}
}

func TestDispatch_FallsThroughToLaterRule(t *testing.T) {
	client := &fakeClient{}
	d := newTestDispatcher(client)
	b := newTestBot(t, []rules.Rule{
		{Kind: "text", Match: rules.MatchSpec{Contains: "foo"}, Action: rules.Action{Reply: "from A"}},
		{Kind: "any", Action: rules.Action{Reply: "from B"}},
	})

	d.Dispatch(context.Background(), b, textEvent("no match here"))

	if len(client.texts) != 1 || client.texts[0] != "from B" {
		t.Errorf("texts = %v, want [from B]", client.texts)
	}
}

func TestDispatch_NoMatchNoAction(t *testing.T) {
	client := &fakeClient{}
	d := newTestDispatcher(client)
	b := newTestBot(t, []rules.Rule{
		{Kind: "image", Action: rules.Action{Reply: "img"}},
	})

	d.Dispatch(context.Background(), b, textEvent("text"))

	if len(client.texts) != 0 {
		t.Errorf("texts = %v, want none", client.texts)
	}
}

func TestDispatch_RequireMentionSkipsAndContinues(t *testing.T) {
	client := &fakeClient{}
	d := newTestDispatcher(client)
	b := newTestBot(t, []rules.Rule{
		{Kind: "text", Action: rules.Action{Reply: "mentioned only", RequireMention: true}},
		{Kind: "any", Action: rules.Action{Reply: "fallback"}},
	})

	ev := textEvent("hello")
	ev.Chat = event.ChatGroup
	ev.FromWxid = "9@chatroom"
	ev.GroupSenderWxid = "wxid_alice"
	ev.Mentioned = false

	d.Dispatch(context.Background(), b, ev)

	if len(client.texts) != 1 || client.texts[0] != "fallback" {
		t.Errorf("texts = %v, want [fallback]", client.texts)
	}

	// Same rules, mentioned: the first rule fires.
	client.texts = nil
	ev.Mentioned = true
	d.Dispatch(context.Background(), b, ev)
	if len(client.texts) != 1 || client.texts[0] != "mentioned only" {
		t.Errorf("texts = %v, want [mentioned only]", client.texts)
	}
}

func TestDispatch_IgnoreStopsRemainingActions(t *testing.T) {
	client := &fakeClient{}
	d := newTestDispatcher(client)
	b := newTestBot(t, []rules.Rule{
		{Action: rules.Action{
			Log:     true,
			Ignore:  true,
			Command: &command.Spec{Program: "some-external"},
		}},
	})

	d.Dispatch(context.Background(), b, textEvent("anything"))

	// The command would have produced a "disabled" reply; ignore must
	// prevent it.
	if len(client.texts) != 0 {
		t.Errorf("texts = %v, want none after ignore", client.texts)
	}
}

func TestDispatch_ForwardToEachRecipient(t *testing.T) {
	client := &fakeClient{}
	d := newTestDispatcher(client)
	b := newTestBot(t, []rules.Rule{
		{Action: rules.Action{Forward: []string{"wxid_x", "wxid_y"}}},
	})

	d.Dispatch(context.Background(), b, textEvent("pass this on"))

	if len(client.texts) != 2 {
		t.Fatalf("forwarded %d times, want 2", len(client.texts))
	}
	if client.targets[0] != "wxid_x" || client.targets[1] != "wxid_y" {
		t.Errorf("targets = %v", client.targets)
	}
	if client.texts[0] != "pass this on" || client.texts[1] != "pass this on" {
		t.Errorf("forwarded texts = %v, want verbatim content", client.texts)
	}
}

func TestDispatch_SaveWritesMedia(t *testing.T) {
	dir := t.TempDir()
	client := &fakeClient{imgData: []byte("jpeg-bytes")}
	d := newTestDispatcher(client)
	b := newTestBot(t, []rules.Rule{
		{Kind: "image", Action: rules.Action{
			Save: &rules.SaveSpec{Dir: dir, Filename: "{app_id}_{new_msg_id}.jpg"},
		}},
	})

	ev := textEvent("<msg><img/></msg>")
	ev.Kind = event.KindImage

	d.Dispatch(context.Background(), b, ev)

	path := filepath.Join(dir, "wx_app_42.jpg")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("saved file: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("saved content = %q", data)
	}
}

func TestDispatch_CommandReplySent(t *testing.T) {
	client := &fakeClient{}
	d := newTestDispatcher(client)
	b := newTestBot(t, []rules.Rule{
		{Match: rules.MatchSpec{Equals: "版本"}, Action: rules.Action{
			Command: &command.Spec{Program: "version"},
		}},
	})

	d.Dispatch(context.Background(), b, textEvent("版本"))

	if len(client.texts) != 1 {
		t.Fatalf("texts = %v, want one version reply", client.texts)
	}
}

func TestExpandFilename(t *testing.T) {
	ev := textEvent("x")
	tests := []struct {
		template string
		want     string
	}{
		{"", "wx_app_42"},
		{"{new_msg_id}.jpg", "42.jpg"},
		{"{from_wxid}/{new_msg_id}", "wxid_alice/42"},
		{"plain.bin", "plain.bin"},
	}

	for _, tt := range tests {
		if got := expandFilename(tt.template, ev); got != tt.want {
			t.Errorf("expandFilename(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}
