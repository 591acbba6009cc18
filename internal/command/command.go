// Package command executes builtin and external commands on behalf of rule
// actions and AI tool calls, with timeouts, output caps, and an explicit
// opt-in gate for arbitrary external processes.
package command

import (
	"encoding/json"
	"time"
)

// Source of a command execution.
const (
	SourceBuiltin  = "builtin"
	SourceExternal = "external"
)

// Spec describes one command to run. Builtins take a JSON Payload; external
// commands take an argv-style Args list.
type Spec struct {
	Program    string          `json:"program"`
	Args       []string        `json:"args,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	TimeoutSec int             `json:"timeout_sec,omitempty"`

	// ImageGen overrides the runner's image-generation config for this call.
	// Set by AI actions that carry their own key/model; never loaded from config.
	ImageGen *ImageGenConfig `json:"-"`
}

// Report is the result of one command or tool execution. It is consumed
// immediately by the dispatcher and discarded.
type Report struct {
	Reply     string
	Truncated bool
	Duration  time.Duration
	ExitCode  int // -1 when unknown (spawn failure, timeout)
	TimedOut  bool
	Disabled  bool
	Source    string // SourceBuiltin or SourceExternal
	Program   string
	Stderr    string
	Err       error
	ImageURLs []string
}

// Failed reports whether the execution did not produce a usable reply.
func (r *Report) Failed() bool {
	return r.Err != nil || r.TimedOut || r.Disabled
}
