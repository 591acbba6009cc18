package command

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/nextlevelbuilder/gewegate/internal/event"
)

const (
	// DefaultTimeout bounds external command execution.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxOutput caps captured command output in bytes.
	DefaultMaxOutput = 20 * 1024
)

// Fixed user-facing texts. The audience is WeChat users, hence Chinese.
const (
	msgTimedOut    = "命令执行超时"
	msgEmptyOutput = "（命令执行完成，无输出）"
	msgDisabled    = "外部命令执行未开启"
)

// ImageGenConfig configures the generate_image builtin.
type ImageGenConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

// Runner executes commands for rule actions and AI tool calls. External
// commands only run when allowExternal is set; builtins always run.
type Runner struct {
	allowExternal  bool
	maxOutput      int
	defaultTimeout time.Duration
	version        string
	changelogPath  string
	httpClient     *http.Client
	imageGen       ImageGenConfig
}

// Options configures a Runner. Zero values fall back to package defaults.
type Options struct {
	AllowExternal  bool
	MaxOutputBytes int
	DefaultTimeout time.Duration
	Version        string
	ChangelogPath  string
	ImageGen       ImageGenConfig
}

// NewRunner creates a command runner.
func NewRunner(opts Options) *Runner {
	r := &Runner{
		allowExternal:  opts.AllowExternal,
		maxOutput:      opts.MaxOutputBytes,
		defaultTimeout: opts.DefaultTimeout,
		version:        opts.Version,
		changelogPath:  opts.ChangelogPath,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		imageGen:       opts.ImageGen,
	}
	if r.maxOutput <= 0 {
		r.maxOutput = DefaultMaxOutput
	}
	if r.defaultTimeout <= 0 {
		r.defaultTimeout = DefaultTimeout
	}
	if r.version == "" {
		r.version = "dev"
	}
	if r.changelogPath == "" {
		r.changelogPath = "CHANGELOG.md"
	}
	return r
}

// Run dispatches spec to a builtin by program name, falling back to external
// command execution for unknown names. It never panics and never returns nil.
func (r *Runner) Run(ctx context.Context, spec Spec, ev *event.NormalizedEvent) *Report {
	if fn, ok := r.builtin(spec.Program); ok {
		return fn(ctx, spec)
	}
	return r.runExternal(ctx, spec, ev)
}

func (r *Runner) runExternal(ctx context.Context, spec Spec, ev *event.NormalizedEvent) *Report {
	report := &Report{Source: SourceExternal, Program: spec.Program, ExitCode: -1}

	if !r.allowExternal {
		report.Disabled = true
		report.Reply = msgDisabled
		slog.Warn("external command blocked by policy", "program", spec.Program)
		return report
	}

	timeout := r.defaultTimeout
	if spec.TimeoutSec > 0 {
		timeout = time.Duration(spec.TimeoutSec) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, spec.Program, spec.Args...)
	cmd.Stdin = nil
	cmd.Env = commandEnv(ev)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	report.Duration = time.Since(start)

	out, outTrunc := TruncateUTF8(stdout.Bytes(), r.maxOutput)
	errOut, errTrunc := TruncateUTF8(stderr.Bytes(), r.maxOutput)
	report.Truncated = outTrunc || errTrunc
	report.Stderr = errOut

	if ctx.Err() == context.DeadlineExceeded {
		report.TimedOut = true
		report.Reply = msgTimedOut
		report.Err = fmt.Errorf("command %s timed out after %s", spec.Program, timeout)
		return report
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			report.ExitCode = exitErr.ExitCode()
		}
		diag := errOut
		if diag == "" {
			diag = out
		}
		report.Err = fmt.Errorf("command %s failed: %w", spec.Program, err)
		report.Reply = fmt.Sprintf("命令执行失败（退出码 %d）", report.ExitCode)
		if diag != "" {
			d, _ := event.Shorten(diag, 200)
			report.Reply += "\n" + d
		}
		return report
	}

	report.ExitCode = 0
	report.Reply = out
	if report.Reply == "" {
		report.Reply = msgEmptyOutput
	}
	return report
}

// commandEnv exposes the normalized event to external commands on top of the
// inherited process environment.
func commandEnv(ev *event.NormalizedEvent) []string {
	env := os.Environ()
	if ev == nil {
		return env
	}
	return append(env,
		"APP_ID=" + ev.AppID,
		"FROM_WXID=" + ev.FromWxid,
		"TO_WXID=" + ev.ToWxid,
		"CONTENT=" + ev.Content,
		"PUSH_CONTENT=" + ev.PushContent,
		"NICK=" + ev.Nickname,
		"MSG_TYPE=" + strconv.Itoa(ev.MsgType),
		"APPMSG_TYPE=" + strconv.Itoa(ev.AppMsgType),
		"NEW_MSG_ID=" + strconv.FormatInt(ev.NewMsgID, 10),
		"CHAT=" + ev.Chat,
		"KIND=" + string(ev.Kind),
		"TYPE_NAME=" + ev.TypeName,
	)
}
