package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/gewegate/internal/ai"
	"github.com/nextlevelbuilder/gewegate/internal/bot"
	"github.com/nextlevelbuilder/gewegate/internal/bus"
	"github.com/nextlevelbuilder/gewegate/internal/command"
	"github.com/nextlevelbuilder/gewegate/internal/config"
	"github.com/nextlevelbuilder/gewegate/internal/dispatch"
	"github.com/nextlevelbuilder/gewegate/internal/event"
	"github.com/nextlevelbuilder/gewegate/internal/gewe"
	"github.com/nextlevelbuilder/gewegate/internal/reply"
	"github.com/nextlevelbuilder/gewegate/internal/webhook"
)

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	registry := bot.NewRegistry()
	for _, bc := range cfg.Bots {
		b, err := bot.New(bot.Context{
			AppID:         bc.AppID,
			Token:         bc.Token,
			WebhookSecret: bc.WebhookSecret,
			Description:   bc.Description,
		}, bc.Rules)
		if err != nil {
			slog.Error("failed to load bot", "app_id", bc.AppID, "error", err)
			os.Exit(1)
		}
		if err := registry.Add(b); err != nil {
			slog.Error("failed to register bot", "app_id", bc.AppID, "error", err)
			os.Exit(1)
		}
		slog.Info("bot loaded", "app_id", bc.AppID, "rules", len(b.Rules), "description", bc.Description)
	}

	if cfg.Webhook.DumpDir != "" {
		if err := os.MkdirAll(cfg.Webhook.DumpDir, 0o755); err != nil {
			slog.Error("failed to create dump dir", "dir", cfg.Webhook.DumpDir, "error", err)
			os.Exit(1)
		}
	}

	client := gewe.NewHTTPClient(cfg.Gewe.BaseURL, registry.Token)
	pool := reply.NewLimiterPool(
		cfg.RateLimit.MaxPerWindow,
		time.Duration(cfg.RateLimit.WindowSec)*time.Second,
		time.Duration(cfg.RateLimit.JitterMs)*time.Millisecond,
	)
	sender := reply.NewSender(client, pool)

	runner := command.NewRunner(command.Options{
		AllowExternal:  cfg.Commands.AllowExternal,
		MaxOutputBytes: cfg.Commands.MaxOutputBytes,
		DefaultTimeout: time.Duration(cfg.Commands.DefaultTimeoutSec) * time.Second,
		Version:        Version,
		ChangelogPath:  cfg.Commands.ChangelogPath,
		ImageGen: command.ImageGenConfig{
			APIKey:  cfg.AI.ImageGen.APIKey,
			BaseURL: cfg.AI.ImageGen.BaseURL,
			Model:   cfg.AI.ImageGen.Model,
		},
	})

	dispatcher := dispatch.New(sender, runner, client, ai.Options{
		FallbackKeyEnv: cfg.AI.DefaultKeyEnv,
	})

	queue := bus.NewQueue(cfg.Webhook.QueueSize)
	server := webhook.NewServer(registry, queue, webhook.Options{
		EnforceSignature: cfg.Webhook.EnforceSignature,
		DebugBody:        cfg.Webhook.DebugBody,
		DebugHeaders:     cfg.Webhook.DebugHeaders,
		DumpDir:          cfg.Webhook.DumpDir,
		CaptureOnly:      cfg.Webhook.CaptureOnly,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("webhook server listening", "addr", addr, "bots", registry.Len())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		consume(ctx, queue, registry, dispatcher)
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("gateway stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("gateway stopped")
}

// consume drains the queue until ctx is cancelled, normalizing and
// dispatching each event. A panic in one event's actions must not take down
// the loop.
func consume(ctx context.Context, queue *bus.Queue, registry *bot.Registry, dispatcher *dispatch.Dispatcher) {
	for {
		inbound, ok := queue.Consume(ctx)
		if !ok {
			return
		}
		b := registry.Get(inbound.AppID)
		if b == nil {
			continue
		}

		ev := event.Normalize(inbound.AppID, inbound.TypeName, inbound.Data)
		slog.Debug("event received",
			"app_id", ev.AppID,
			"kind", ev.Kind,
			"chat", ev.Chat,
			"from", ev.SenderWxid(),
			"content", ev.Preview,
		)

		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("dispatch panicked", "app_id", ev.AppID, "panic", r)
				}
			}()
			dispatcher.Dispatch(ctx, b, ev)
		}()
	}
}
