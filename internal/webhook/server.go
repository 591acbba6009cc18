// Package webhook is the HTTP boundary of the gateway. It accepts provider
// callbacks, authenticates them, deduplicates deliveries, and hands accepted
// events to the queue. Every accepted path returns 200: the provider must
// never be made to retry an event we have decided about.
package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/gewegate/internal/bot"
	"github.com/nextlevelbuilder/gewegate/internal/bus"
	"github.com/nextlevelbuilder/gewegate/internal/event"
)

// maxBodyBytes bounds a single callback body.
const maxBodyBytes = 4 << 20

// Options tune the receiver pipeline.
type Options struct {
	// EnforceSignature rejects callbacks that fail HMAC verification.
	EnforceSignature bool
	// DebugBody logs every raw body before parsing.
	DebugBody bool
	// DebugHeaders logs signature headers on verification failure.
	DebugHeaders bool
	// DumpDir, when set, receives one file per callback body.
	DumpDir string
	// CaptureOnly acknowledges every callback without processing. Used
	// together with DumpDir to record provider traffic.
	CaptureOnly bool
}

// Server routes provider callbacks to the per-bot pipeline.
type Server struct {
	registry *bot.Registry
	queue    *bus.Queue
	opts     Options
}

func NewServer(registry *bot.Registry, queue *bus.Queue, opts Options) *Server {
	return &Server{registry: registry, queue: queue, opts: opts}
}

// Handler returns the HTTP handler for the callback endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handle)
	return mux
}

// payload is the provider callback envelope. TestMsg stays raw: a ping is
// any object carrying the key, whatever the value's type.
type payload struct {
	TestMsg  json.RawMessage        `json:"testMsg"`
	Appid    string                 `json:"Appid"`
	TypeName string                 `json:"TypeName"`
	Data     map[string]interface{} `json:"Data"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if s.opts.DebugBody {
		slog.Debug("webhook raw body", "bytes", len(body), "body", string(body))
	}

	if s.opts.CaptureOnly {
		s.dump(body, "capture")
		w.WriteHeader(http.StatusOK)
		return
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		slog.Warn("webhook malformed body", "error", err)
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	// Provider health-check ping: key presence alone marks it, including
	// null and empty values.
	if len(p.TestMsg) > 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.dump(body, p.Appid)

	b := s.registry.Get(p.Appid)
	if b == nil {
		slog.Warn("webhook unknown app id", "app_id", p.Appid)
		http.Error(w, "unknown app id", http.StatusUnauthorized)
		return
	}

	if s.opts.EnforceSignature {
		err := VerifySignature(
			b.Token, b.WebhookSecret,
			r.Header.Get(HeaderToken),
			r.Header.Get(HeaderTimestamp),
			r.Header.Get(HeaderSign),
			body, time.Now(),
		)
		if err != nil {
			if s.opts.DebugHeaders {
				slog.Warn("webhook signature rejected",
					"app_id", p.Appid,
					"error", err,
					"token_set", r.Header.Get(HeaderToken) != "",
					"timestamp", r.Header.Get(HeaderTimestamp),
					"sign", r.Header.Get(HeaderSign),
				)
			} else {
				slog.Warn("webhook signature rejected", "app_id", p.Appid, "error", err)
			}
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	msgID := event.ExtractMsgID(p.Data)
	if msgID != 0 && b.Dedupe.Seen(fmt.Sprintf("%s:%d", p.Appid, msgID)) {
		slog.Debug("webhook duplicate dropped", "app_id", p.Appid, "new_msg_id", msgID)
		w.WriteHeader(http.StatusOK)
		return
	}

	ok := s.queue.TryPublish(bus.InboundEvent{
		AppID:      p.Appid,
		TypeName:   p.TypeName,
		Data:       p.Data,
		MsgID:      msgID,
		ReceivedAt: time.Now(),
	})
	if !ok {
		slog.Error("webhook queue full, event dropped",
			"app_id", p.Appid,
			"type_name", p.TypeName,
			"new_msg_id", msgID,
		)
	}
	w.WriteHeader(http.StatusOK)
}

// dump writes the raw body to the dump directory when one is configured.
func (s *Server) dump(body []byte, appID string) {
	if s.opts.DumpDir == "" {
		return
	}
	if appID == "" {
		appID = "unknown"
	}
	name := fmt.Sprintf("%d_%s_%s.json", time.Now().Unix(), appID, uuid.NewString()[:8])
	path := filepath.Join(s.opts.DumpDir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		slog.Warn("webhook dump failed", "path", path, "error", err)
	}
}
