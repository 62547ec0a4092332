package middleware

import (
	"strings"
	"time"

	"github.com/domumdigital/OneHundred/common/logger"
	"github.com/domumdigital/OneHundred/internal/common/helper"
	"github.com/domumdigital/OneHundred/internal/common/response"
	"github.com/domumdigital/OneHundred/internal/config"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// SchedulerAuthFilter 调度方认证过滤器（简单Token）
// 保护 performAction 接口：只有持调度方 Token 的调用者可以推进相位
func SchedulerAuthFilter(ctx *beegocontext.Context) {
	cfg := config.GetCurrent()
	traceID := helper.GetTraceID(ctx)

	// 未启用调度方认证时跳过
	if cfg == nil || !cfg.Auth.Scheduler.Enabled {
		logger.Debug("scheduler auth disabled, skip", zap.String("trace_id", traceID))
		return
	}

	returnAuthError := func(message string) {
		ctx.Output.SetStatus(401)
		ctx.Output.JSON(response.APIResponse{
			Code:      response.CodeUnauthorized,
			Message:   message,
			Data:      nil,
			TraceID:   traceID,
			Timestamp: time.Now().UnixMilli(),
		}, false, false)
	}

	authHeader := strings.TrimSpace(ctx.Input.Header("Authorization"))
	if authHeader == "" {
		logger.Warn("missing scheduler token", zap.String("trace_id", traceID))
		returnAuthError("缺少调度方认证信息")
		return
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		logger.Warn("invalid scheduler token format", zap.String("trace_id", traceID))
		returnAuthError("无效的认证格式")
		return
	}

	token := parts[1]
	if token != cfg.Auth.Scheduler.Token {
		logger.Warn("invalid scheduler token",
			zap.String("trace_id", traceID),
			zap.String("token_prefix", token[:min(len(token), 8)]+"..."))
		returnAuthError("无效的调度方Token")
		return
	}

	ctx.Input.SetData("is_scheduler", true)
	logger.Debug("scheduler authentication successful", zap.String("trace_id", traceID))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
