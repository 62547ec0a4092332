package middleware

import (
	"strings"
	"time"

	"github.com/domumdigital/OneHundred/common/logger"
	"github.com/domumdigital/OneHundred/internal/auth"
	"github.com/domumdigital/OneHundred/internal/common/helper"
	"github.com/domumdigital/OneHundred/internal/common/response"
	"github.com/domumdigital/OneHundred/internal/config"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// OracleAuthFilter 预言机回调认证过滤器
// Token + IP 白名单双重校验：随机数履约只接受可信来源
func OracleAuthFilter(ctx *beegocontext.Context) {
	cfg := config.GetCurrent()
	traceID := helper.GetTraceID(ctx)

	// 未启用预言机认证时跳过
	if cfg == nil || !cfg.Auth.Oracle.Enabled {
		logger.Debug("oracle auth disabled, skip", zap.String("trace_id", traceID))
		return
	}

	returnAuthError := func(httpCode, bizCode int, message string) {
		ctx.Output.SetStatus(httpCode)
		ctx.Output.JSON(response.APIResponse{
			Code:      bizCode,
			Message:   message,
			Data:      nil,
			TraceID:   traceID,
			Timestamp: time.Now().UnixMilli(),
		}, false, false)
	}

	// 1. IP 白名单校验
	if len(cfg.Auth.Oracle.AllowedIPs) > 0 {
		clientIP := clientIPOf(ctx)
		if !auth.IsIPAllowed(strings.TrimSpace(clientIP), cfg.Auth.Oracle.AllowedIPs) {
			logger.Warn("oracle ip not allowed",
				zap.String("trace_id", traceID),
				zap.String("client_ip", clientIP))
			returnAuthError(403, response.CodeIPNotAllowed, "IP不在白名单")
			return
		}
	}

	// 2. Token 校验
	authHeader := strings.TrimSpace(ctx.Input.Header("Authorization"))
	if authHeader == "" {
		logger.Warn("missing oracle token", zap.String("trace_id", traceID))
		returnAuthError(401, response.CodeUnauthorized, "缺少预言机认证信息")
		return
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		logger.Warn("invalid oracle token format", zap.String("trace_id", traceID))
		returnAuthError(401, response.CodeUnauthorized, "无效的认证格式")
		return
	}
	if !auth.SecureCompare(parts[1], cfg.Auth.Oracle.Token) {
		logger.Warn("invalid oracle token", zap.String("trace_id", traceID))
		returnAuthError(401, response.CodeUnauthorized, "无效的预言机Token")
		return
	}

	ctx.Input.SetData("is_oracle", true)
	logger.Debug("oracle authentication successful", zap.String("trace_id", traceID))
}
