package webhook

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/gewegate/internal/bot"
	"github.com/nextlevelbuilder/gewegate/internal/bus"
)

func newTestServer(t *testing.T, queueCap int, opts Options) (*Server, *bus.Queue) {
	t.Helper()
	registry := bot.NewRegistry()
	b, err := bot.New(bot.Context{AppID: "wx_test", Token: "tok"}, nil)
	if err != nil {
		t.Fatalf("bot.New: %v", err)
	}
	if err := registry.Add(b); err != nil {
		t.Fatalf("registry.Add: %v", err)
	}
	queue := bus.NewQueue(queueCap)
	return NewServer(registry, queue, opts), queue
}

func post(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandle_MalformedBody(t *testing.T) {
	s, _ := newTestServer(t, 4, Options{})
	rec := post(t, s, "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", rec.Code)
	}
}

func TestHandle_HealthCheckPing(t *testing.T) {
	// A ping is any body carrying the testMsg key, whatever the value.
	tests := []struct {
		name string
		body string
	}{
		{"string value", `{"testMsg":"ping","token":"x"}`},
		{"empty string value", `{"testMsg":""}`},
		{"null value", `{"testMsg":null}`},
		{"numeric value", `{"testMsg":123}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, queue := newTestServer(t, 4, Options{})
			rec := post(t, s, tt.body)
			if rec.Code != http.StatusOK {
				t.Errorf("got %d, want 200", rec.Code)
			}
			if queue.Len() != 0 {
				t.Errorf("ping must not enqueue, queue has %d", queue.Len())
			}
		})
	}
}

func TestHandle_MissingTestMsgIsNotPing(t *testing.T) {
	s, _ := newTestServer(t, 4, Options{})
	rec := post(t, s, `{"Appid":"wx_nobody","TypeName":"AddMsg","Data":{}}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want 401 (normal pipeline, unknown app id)", rec.Code)
	}
}

func TestHandle_UnknownAppID(t *testing.T) {
	s, _ := newTestServer(t, 4, Options{})
	rec := post(t, s, `{"Appid":"wx_other","TypeName":"AddMsg","Data":{}}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want 401", rec.Code)
	}
}

func TestHandle_EnqueuesAcceptedEvent(t *testing.T) {
	s, queue := newTestServer(t, 4, Options{})
	rec := post(t, s, `{"Appid":"wx_test","TypeName":"AddMsg","Data":{"NewMsgId":111}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	if queue.Len() != 1 {
		t.Fatalf("queue has %d events, want 1", queue.Len())
	}
}

func TestHandle_DuplicateDeliveryDropped(t *testing.T) {
	s, queue := newTestServer(t, 4, Options{})
	body := `{"Appid":"wx_test","TypeName":"AddMsg","Data":{"NewMsgId":222}}`

	if rec := post(t, s, body); rec.Code != http.StatusOK {
		t.Fatalf("first delivery: got %d, want 200", rec.Code)
	}
	if rec := post(t, s, body); rec.Code != http.StatusOK {
		t.Fatalf("second delivery: got %d, want 200", rec.Code)
	}
	if queue.Len() != 1 {
		t.Errorf("queue has %d events, want 1 (duplicate must be dropped)", queue.Len())
	}
}

func TestHandle_QueueFullStillAcks(t *testing.T) {
	s, queue := newTestServer(t, 1, Options{})

	if rec := post(t, s, `{"Appid":"wx_test","TypeName":"AddMsg","Data":{"NewMsgId":1}}`); rec.Code != http.StatusOK {
		t.Fatalf("first event: got %d", rec.Code)
	}
	if rec := post(t, s, `{"Appid":"wx_test","TypeName":"AddMsg","Data":{"NewMsgId":2}}`); rec.Code != http.StatusOK {
		t.Errorf("overflow event: got %d, want 200", rec.Code)
	}
	if queue.Len() != 1 {
		t.Errorf("queue has %d events, want 1", queue.Len())
	}
}

func TestHandle_CaptureOnlyAcksWithoutProcessing(t *testing.T) {
	s, queue := newTestServer(t, 4, Options{CaptureOnly: true})
	rec := post(t, s, `{"Appid":"wx_unknown","TypeName":"AddMsg","Data":{}}`)
	if rec.Code != http.StatusOK {
		t.Errorf("got %d, want 200", rec.Code)
	}
	if queue.Len() != 0 {
		t.Errorf("capture-only must not enqueue")
	}
}

func TestHandle_SignatureEnforced(t *testing.T) {
	s, queue := newTestServer(t, 4, Options{EnforceSignature: true})
	rec := post(t, s, `{"Appid":"wx_test","TypeName":"AddMsg","Data":{"NewMsgId":3}}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unsigned callback: got %d, want 401", rec.Code)
	}
	if queue.Len() != 0 {
		t.Errorf("rejected callback must not enqueue")
	}
}
