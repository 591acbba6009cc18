// Package dispatch walks a bot's compiled rules for each normalized event and
// executes the first matching rule's actions. One rule fires per event;
// failures of individual sub-actions are logged and do not stop the rest.
package dispatch

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/nextlevelbuilder/gewegate/internal/ai"
	"github.com/nextlevelbuilder/gewegate/internal/bot"
	"github.com/nextlevelbuilder/gewegate/internal/command"
	"github.com/nextlevelbuilder/gewegate/internal/event"
	"github.com/nextlevelbuilder/gewegate/internal/gewe"
	"github.com/nextlevelbuilder/gewegate/internal/reply"
	"github.com/nextlevelbuilder/gewegate/internal/rules"
)

// Dispatcher executes rule actions. It is safe for concurrent use; all
// mutable state lives in the collaborators it delegates to.
type Dispatcher struct {
	sender *reply.Sender
	runner *command.Runner
	client gewe.Client
	aiOpts ai.Options
}

func New(sender *reply.Sender, runner *command.Runner, client gewe.Client, aiOpts ai.Options) *Dispatcher {
	return &Dispatcher{sender: sender, runner: runner, client: client, aiOpts: aiOpts}
}

// Dispatch finds the first matching rule and runs its actions. A matched
// rule with requireMention set is skipped silently for group events without
// a mention; that is the only case where scanning continues.
func (d *Dispatcher) Dispatch(ctx context.Context, b *bot.Bot, ev *event.NormalizedEvent) {
	for i := range b.Rules {
		rule := &b.Rules[i]
		if !rule.Match(ev) {
			continue
		}
		if rule.Action.RequireMention && ev.Chat == event.ChatGroup && !ev.Mentioned {
			continue
		}

		slog.Debug("rule matched",
			"app_id", ev.AppID,
			"rule", i,
			"kind", ev.Kind,
			"from", ev.SenderWxid(),
		)
		d.execute(ctx, ev, &rule.Action)
		return
	}
}

// execute runs the present sub-actions in fixed order. ignore halts the
// remaining sub-actions of this rule; dispatch stops after the rule either
// way.
func (d *Dispatcher) execute(ctx context.Context, ev *event.NormalizedEvent, action *rules.Action) {
	mode := reply.ParseMode(action.ReplyMode)

	if action.Reply != "" {
		if err := d.sender.Reply(ctx, ev, action.Reply, mode); err != nil {
			slog.Error("reply action failed", "app_id", ev.AppID, "error", err)
		}
	}

	if action.Save != nil {
		if err := d.save(ctx, ev, action.Save); err != nil {
			slog.Error("save action failed", "app_id", ev.AppID, "kind", ev.Kind, "error", err)
		}
	}

	for _, to := range action.Forward {
		if err := d.sender.Text(ctx, ev.AppID, to, ev.Content, nil); err != nil {
			slog.Error("forward action failed", "app_id", ev.AppID, "to", to, "error", err)
		}
	}

	if action.Log {
		slog.Info("event logged",
			"app_id", ev.AppID,
			"kind", ev.Kind,
			"chat", ev.Chat,
			"from", ev.SenderWxid(),
			"nickname", ev.Nickname,
			"content", ev.Preview,
		)
	}

	if action.Ignore {
		return
	}

	if action.AI != nil {
		d.runAI(ctx, ev, action.AI, mode)
	}

	if action.Command != nil {
		d.runCommand(ctx, ev, action.Command, mode)
	}
}

func (d *Dispatcher) runAI(ctx context.Context, ev *event.NormalizedEvent, action *ai.Action, mode reply.Mode) {
	client, err := ai.NewClient(action, d.aiOpts)
	if err != nil {
		slog.Error("ai client construction failed", "app_id", ev.AppID, "error", err)
		if serr := d.sender.Reply(ctx, ev, ai.MsgMisconfigured, mode); serr != nil {
			slog.Error("ai misconfigured reply failed", "app_id", ev.AppID, "error", serr)
		}
		return
	}
	if err := client.Handle(ctx, ev, d.runner, d.sender, mode); err != nil {
		slog.Error("ai action failed", "app_id", ev.AppID, "error", err)
	}
}

func (d *Dispatcher) runCommand(ctx context.Context, ev *event.NormalizedEvent, spec *command.Spec, mode reply.Mode) {
	report := d.runner.Run(ctx, *spec, ev)
	slog.Info("command executed",
		"app_id", ev.AppID,
		"program", report.Program,
		"source", report.Source,
		"duration", report.Duration,
		"exit_code", report.ExitCode,
		"timed_out", report.TimedOut,
		"truncated", report.Truncated,
		"failed", report.Failed(),
	)

	for _, url := range report.ImageURLs {
		if err := d.sender.Image(ctx, ev.AppID, ev.ReplyTarget(), url); err != nil {
			slog.Error("command image send failed", "app_id", ev.AppID, "error", err)
		}
	}

	if report.Reply != "" {
		if err := d.sender.Reply(ctx, ev, report.Reply, mode); err != nil {
			slog.Error("command reply failed", "app_id", ev.AppID, "error", err)
		}
	}
}

// itoa64 formats the provider message id for filename substitution.
func itoa64(v int64) string {
	return strconv.FormatInt(v, 10)
}
