package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nextlevelbuilder/gewegate/internal/command"
	"github.com/nextlevelbuilder/gewegate/internal/event"
	"github.com/nextlevelbuilder/gewegate/internal/providers"
	"github.com/nextlevelbuilder/gewegate/internal/reply"
)

// MsgMisconfigured is sent when an AI action cannot be constructed
// (typically a missing API key). Exposed for the dispatcher.
const MsgMisconfigured = "AI 服务未配置，请联系管理员"

// Fixed user-facing texts for flow outcomes.
const (
	msgNoReply     = "（AI 未生成回复）"
	msgUnknownTool = "AI 请求了未知的工具：%s"
	msgUnboundTool = "工具 %s 未绑定可执行命令"
)

// Options carries gateway-level AI defaults into client construction.
type Options struct {
	// FallbackKeyEnv is the env var consulted when the action sets neither
	// an explicit key nor its own key env.
	FallbackKeyEnv string
}

// Client executes one AI action. Construction resolves the API key and
// provider; a missing key is a construction-time error.
type Client struct {
	action   *Action
	apiKey   string
	provider providers.Provider
}

// NewClient builds a client for the action. Key resolution order: explicit
// key, the action's named env var, then the gateway fallback env var.
func NewClient(action *Action, opts Options) (*Client, error) {
	key := action.APIKey
	if key == "" && action.APIKeyEnv != "" {
		key = os.Getenv(action.APIKeyEnv)
	}
	if key == "" && opts.FallbackKeyEnv != "" {
		key = os.Getenv(opts.FallbackKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("ai: no api key configured for provider %q", action.Provider)
	}

	retry := providers.RetryConfig{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  time.Duration(DefaultRetryDelayMs) * time.Millisecond,
	}
	if action.MaxRetries != nil {
		retry.MaxRetries = *action.MaxRetries
	}
	if action.RetryDelayMs > 0 {
		retry.BaseDelay = time.Duration(action.RetryDelayMs) * time.Millisecond
	}

	return &Client{
		action:   action,
		apiKey:   key,
		provider: providers.New(action.Provider, key, action.BaseURL, retry),
	}, nil
}

// flowState tracks the two-round tool-calling protocol.
type flowState int

const (
	stateAwaitingFirst flowState = iota
	stateToolInvoked
	stateAwaitingFollowup
	stateDone
)

// Handle runs the completion flow for one event and sends the outcome to the
// user via sender. The returned error is for logging only; every failure
// path has already produced a user-facing reply.
func (c *Client) Handle(ctx context.Context, ev *event.NormalizedEvent, runner *command.Runner, sender *reply.Sender, mode reply.Mode) error {
	userContent := c.action.UserPrefix + ev.Content

	if c.action.PreCommand != nil {
		report := runner.Run(ctx, *c.action.PreCommand, ev)
		if report.Err != nil {
			slog.Warn("ai pre-command failed", "program", report.Program, "error", report.Err)
		} else if report.Reply != "" {
			userContent += "\n\n" + report.Reply
		}
	}

	model := c.action.Model
	if model == "" {
		model = defaultModel(c.action.Provider)
	}

	var (
		state     = stateAwaitingFirst
		toolCall  *providers.ToolCall
		toolText  string
		replyText string
	)

	for state != stateDone {
		switch state {
		case stateAwaitingFirst:
			resp, err := c.provider.Complete(ctx, providers.Request{
				Model:          model,
				System:         c.action.SystemPrompt,
				Messages:       []providers.Message{{Role: "user", Content: userContent}},
				Tools:          c.toolDefinitions(),
				Temperature:    c.action.Temperature,
				MaxTokens:      c.action.MaxTokens,
				ResponseFormat: c.action.ResponseFormat,
			})
			if err != nil {
				c.sendText(ctx, ev, sender, mode, UserFacingError(err))
				return fmt.Errorf("ai: completion failed: %w", err)
			}
			if resp.ToolCall != nil {
				toolCall = resp.ToolCall
				state = stateToolInvoked
				break
			}
			replyText = resp.Content
			state = stateDone

		case stateToolInvoked:
			tool := c.action.findTool(toolCall.Name)
			if tool == nil {
				c.sendText(ctx, ev, sender, mode, fmt.Sprintf(msgUnknownTool, toolCall.Name))
				return fmt.Errorf("ai: model requested unknown tool %q", toolCall.Name)
			}
			if tool.Command == nil {
				c.sendText(ctx, ev, sender, mode, fmt.Sprintf(msgUnboundTool, tool.Name))
				return fmt.Errorf("ai: tool %q has no bound command", tool.Name)
			}

			spec := *tool.Command
			if len(toolCall.Arguments) > 0 {
				if payload, err := json.Marshal(toolCall.Arguments); err == nil {
					spec.Payload = payload
				}
			}
			if spec.Program == "generate_image" {
				spec.ImageGen = &command.ImageGenConfig{
					APIKey:  c.apiKey,
					BaseURL: c.action.BaseURL,
				}
			}

			report := runner.Run(ctx, spec, ev)
			slog.Info("ai tool executed",
				"tool", tool.Name,
				"program", report.Program,
				"duration", report.Duration,
				"failed", report.Failed(),
			)

			if len(report.ImageURLs) > 0 {
				for _, url := range report.ImageURLs {
					if err := sender.Image(ctx, ev.AppID, ev.ReplyTarget(), url); err != nil {
						slog.Warn("ai image send failed", "error", err)
					}
				}
				// Images end the exchange; no followup round.
				return nil
			}

			toolText = report.Reply
			state = stateAwaitingFollowup

		case stateAwaitingFollowup:
			followup := userContent + "\n\n[" + toolCall.Name + " 输出]\n" + toolText
			resp, err := c.provider.Complete(ctx, providers.Request{
				Model:          model,
				System:         c.action.SystemPrompt,
				Messages:       []providers.Message{{Role: "user", Content: followup}},
				Temperature:    c.action.Temperature,
				MaxTokens:      c.action.MaxTokens,
				ResponseFormat: c.action.ResponseFormat,
			})
			if err != nil {
				c.sendText(ctx, ev, sender, mode, UserFacingError(err))
				return fmt.Errorf("ai: followup completion failed: %w", err)
			}
			replyText = resp.Content
			state = stateDone
		}
	}

	if replyText == "" {
		replyText = msgNoReply
	}
	c.sendText(ctx, ev, sender, mode, replyText)
	return nil
}

// toolDefinitions maps the action's tools to provider tool schemas.
func (c *Client) toolDefinitions() []providers.ToolDefinition {
	if len(c.action.Tools) == 0 {
		return nil
	}
	defs := make([]providers.ToolDefinition, 0, len(c.action.Tools))
	for _, t := range c.action.Tools {
		params := t.Parameters
		if params == nil {
			params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		defs = append(defs, providers.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		})
	}
	return defs
}

func (c *Client) sendText(ctx context.Context, ev *event.NormalizedEvent, sender *reply.Sender, mode reply.Mode, text string) {
	if err := sender.Reply(ctx, ev, text, mode); err != nil {
		slog.Warn("ai reply send failed", "app_id", ev.AppID, "error", err)
	}
}
