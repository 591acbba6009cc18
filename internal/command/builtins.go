package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"
)

// Per-builtin timeouts for the builtins that do I/O; the action-level
// timeout_sec does not apply to builtins. changelog and version finish in
// local memory and carry no timeout of their own.
const (
	httpRequestTimeout = 20 * time.Second
	imageGenTimeout    = 60 * time.Second
)

type builtinFunc func(ctx context.Context, spec Spec) *Report

// builtin resolves a program name against the fixed builtin table.
func (r *Runner) builtin(program string) (builtinFunc, bool) {
	switch program {
	case "changelog":
		return r.runChangelog, true
	case "http_request":
		return r.runHTTPRequest, true
	case "version":
		return r.runVersion, true
	case "generate_image":
		return r.runGenerateImage, true
	}
	return nil, false
}

func builtinReport(program string) *Report {
	return &Report{Source: SourceBuiltin, Program: program, ExitCode: -1}
}

// runChangelog returns the head of the configured changelog file, or the
// section for a requested version. Payload: {"version": "v1.2.3"} (optional).
func (r *Runner) runChangelog(ctx context.Context, spec Spec) *Report {
	report := builtinReport("changelog")

	var args struct {
		Version string `json:"version,omitempty"`
	}
	if len(spec.Payload) > 0 {
		if err := json.Unmarshal(spec.Payload, &args); err != nil {
			report.Err = fmt.Errorf("changelog: bad arguments: %w", err)
			report.Reply = "changelog 参数格式错误"
			return report
		}
	}

	start := time.Now()
	data, err := os.ReadFile(r.changelogPath)
	report.Duration = time.Since(start)
	if err != nil {
		report.Err = fmt.Errorf("changelog: %w", err)
		report.Reply = "暂无更新日志"
		return report
	}

	text := string(data)
	if args.Version != "" {
		text = changelogSection(text, args.Version)
		if text == "" {
			report.Reply = "未找到版本 " + args.Version + " 的更新记录"
			report.ExitCode = 0
			return report
		}
	}

	report.Reply, report.Truncated = TruncateUTF8([]byte(text), r.maxOutput)
	report.ExitCode = 0
	return report
}

// changelogSection extracts the "## <version>" block from markdown text.
func changelogSection(text, version string) string {
	lines := strings.Split(text, "\n")
	var out []string
	inSection := false
	for _, line := range lines {
		if strings.HasPrefix(line, "## ") {
			if inSection {
				break
			}
			inSection = strings.Contains(line, version)
		}
		if inSection {
			out = append(out, line)
		}
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// runHTTPRequest performs a generic HTTP request.
// Payload: {"url": "...", "method": "GET", "headers": {...}, "body": "..."}.
func (r *Runner) runHTTPRequest(ctx context.Context, spec Spec) *Report {
	report := builtinReport("http_request")
	ctx, cancel := context.WithTimeout(ctx, httpRequestTimeout)
	defer cancel()

	var args struct {
		URL     string            `json:"url"`
		Method  string            `json:"method,omitempty"`
		Headers map[string]string `json:"headers,omitempty"`
		Body    string            `json:"body,omitempty"`
	}
	if err := json.Unmarshal(spec.Payload, &args); err != nil || args.URL == "" {
		report.Err = fmt.Errorf("http_request: url is required")
		report.Reply = "http_request 参数格式错误"
		return report
	}
	if !strings.HasPrefix(args.URL, "http://") && !strings.HasPrefix(args.URL, "https://") {
		report.Err = fmt.Errorf("http_request: unsupported scheme in %q", args.URL)
		report.Reply = "仅支持 http/https 请求"
		return report
	}

	method := strings.ToUpper(args.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if args.Body != "" {
		body = strings.NewReader(args.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, args.URL, body)
	if err != nil {
		report.Err = fmt.Errorf("http_request: %w", err)
		report.Reply = "请求构造失败"
		return report
	}
	for k, v := range args.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	report.Duration = time.Since(start)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			report.TimedOut = true
			report.Reply = msgTimedOut
		} else {
			report.Reply = "请求失败，请稍后再试"
		}
		report.Err = fmt.Errorf("http_request: %w", err)
		return report
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, int64(r.maxOutput)+1))
	if err != nil {
		report.Err = fmt.Errorf("http_request: read body: %w", err)
		report.Reply = "响应读取失败"
		return report
	}

	report.Reply, report.Truncated = TruncateUTF8(raw, r.maxOutput)
	report.ExitCode = 0
	if report.Reply == "" {
		report.Reply = fmt.Sprintf("HTTP %d（空响应）", resp.StatusCode)
	}
	return report
}

// runVersion reports the gateway build version.
func (r *Runner) runVersion(ctx context.Context, spec Spec) *Report {
	report := builtinReport("version")
	report.Reply = fmt.Sprintf("gewegate %s (%s %s/%s)", r.version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	report.ExitCode = 0
	return report
}

// runGenerateImage calls an OpenAI-compatible image generation endpoint.
// Payload: {"prompt": "...", "size": "1024x1024"}.
func (r *Runner) runGenerateImage(ctx context.Context, spec Spec) *Report {
	report := builtinReport("generate_image")
	ctx, cancel := context.WithTimeout(ctx, imageGenTimeout)
	defer cancel()

	gen := r.imageGen
	if spec.ImageGen != nil {
		if spec.ImageGen.APIKey != "" {
			gen.APIKey = spec.ImageGen.APIKey
		}
		if spec.ImageGen.BaseURL != "" {
			gen.BaseURL = spec.ImageGen.BaseURL
		}
		if spec.ImageGen.Model != "" {
			gen.Model = spec.ImageGen.Model
		}
	}
	if gen.APIKey == "" {
		report.Err = fmt.Errorf("generate_image: api key not configured")
		report.Reply = "图片生成服务未配置"
		return report
	}

	var args struct {
		Prompt string `json:"prompt"`
		Size   string `json:"size,omitempty"`
	}
	if err := json.Unmarshal(spec.Payload, &args); err != nil || args.Prompt == "" {
		report.Err = fmt.Errorf("generate_image: prompt is required")
		report.Reply = "generate_image 参数格式错误"
		return report
	}

	baseURL := strings.TrimRight(gen.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := gen.Model
	if model == "" {
		model = "dall-e-3"
	}

	payload := map[string]interface{}{
		"model":  model,
		"prompt": args.Prompt,
	}
	if args.Size != "" {
		payload["size"] = args.Size
	}
	data, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/images/generations", bytes.NewReader(data))
	if err != nil {
		report.Err = fmt.Errorf("generate_image: %w", err)
		report.Reply = "图片生成请求构造失败"
		return report
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+gen.APIKey)

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	report.Duration = time.Since(start)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			report.TimedOut = true
			report.Reply = msgTimedOut
		} else {
			report.Reply = "图片生成失败，请稍后再试"
		}
		report.Err = fmt.Errorf("generate_image: %w", err)
		return report
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		report.Err = fmt.Errorf("generate_image: HTTP %d: %s", resp.StatusCode, string(raw))
		report.Reply = "图片生成失败，请稍后再试"
		return report
	}

	var imgResp struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&imgResp); err != nil {
		report.Err = fmt.Errorf("generate_image: decode response: %w", err)
		report.Reply = "图片生成响应解析失败"
		return report
	}

	for _, d := range imgResp.Data {
		if d.URL != "" {
			report.ImageURLs = append(report.ImageURLs, d.URL)
		}
	}
	if len(report.ImageURLs) == 0 {
		report.Err = fmt.Errorf("generate_image: no image in response")
		report.Reply = "图片生成失败，请稍后再试"
		return report
	}

	report.ExitCode = 0
	report.Reply = "已生成图片"
	return report
}
