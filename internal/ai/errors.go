package ai

import (
	"context"
	"errors"
	"strings"
)

// UserFacingError translates a completion failure into a short Chinese
// message by keyword sniffing. Order matters: auth before generic 4xx,
// timeout before connection.
func UserFacingError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "401") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "authentication"):
		return "AI 认证失败，请检查 API Key 配置"

	case errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded"):
		return "AI 请求超时，请稍后再试"

	case strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "overloaded"):
		return "AI 请求过于频繁，请稍后再试"

	case strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host"):
		return "AI 服务连接失败，请检查网络"

	case strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503"):
		return "AI 服务暂时不可用，请稍后再试"

	default:
		return "AI 回复失败，请稍后再试"
	}
}
