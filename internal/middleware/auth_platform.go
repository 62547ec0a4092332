package middleware

import (
	"time"

	"github.com/domumdigital/OneHundred/common/logger"
	"github.com/domumdigital/OneHundred/internal/auth"
	"github.com/domumdigital/OneHundred/internal/common/helper"
	"github.com/domumdigital/OneHundred/internal/common/response"
	"github.com/domumdigital/OneHundred/internal/config"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// PlatformAuthFilter 平台认证过滤器
// 验证平台签名，提取平台用户信息
func PlatformAuthFilter(ctx *beegocontext.Context) {
	cfg := config.GetCurrent()
	traceID := helper.GetTraceID(ctx)

	returnError := func(httpCode int, bizCode int, message string) {
		ctx.Output.SetStatus(httpCode)
		ctx.Output.JSON(response.APIResponse{
			Code:      bizCode,
			Message:   message,
			Data:      nil,
			TraceID:   traceID,
			Timestamp: time.Now().UnixMilli(),
		}, false, false)
	}

	// 演示模式：简化认证
	if cfg != nil && cfg.Auth.DemoMode {
		platformUserID := ctx.Input.Header("X-Platform-User-Id")
		if platformUserID == "" {
			platformUserID = ctx.Input.Query("user_id")
		}
		if platformUserID == "" {
			platformUserID = "demo_user_001" // 默认演示用户
		}
		platformUserName := ctx.Input.Header("X-Platform-User-Name")
		if platformUserName == "" {
			platformUserName = "Demo User"
		}

		ctx.Input.SetData("platform_id", cfg.Auth.DemoPlatform.PlatformID)
		ctx.Input.SetData("platform_user_id", platformUserID)
		ctx.Input.SetData("platform_user_name", platformUserName)
		ctx.Input.SetData("demo_mode", true)

		logger.Debug("demo mode authentication",
			zap.String("trace_id", traceID),
			zap.String("platform_user_id", platformUserID))
		return
	}

	// 生产模式：完整的平台签名验证
	platform, err := auth.VerifyPlatformSignature(ctx)
	if err != nil {
		logger.Warn("platform authentication failed",
			zap.String("trace_id", traceID),
			zap.Error(err))

		switch err {
		case auth.ErrMissingAuthHeaders:
			returnError(401, response.CodeUnauthorized, "缺少认证信息")
		case auth.ErrTimestampExpired:
			returnError(401, response.CodeTimestampExpired, "时间戳已过期")
		case auth.ErrNonceReused:
			returnError(401, response.CodeNonceReused, "Nonce已被使用")
		case auth.ErrInvalidSignature:
			returnError(401, response.CodeInvalidSignature, "签名验证失败")
		case auth.ErrInvalidPlatform:
			returnError(401, response.CodeInvalidPlatform, "无效的平台")
		case auth.ErrPlatformDisabled:
			returnError(403, response.CodePlatformDisabled, "平台已禁用")
		case auth.ErrIPNotAllowed:
			returnError(403, response.CodeIPNotAllowed, "IP不在白名单")
		default:
			returnError(401, response.CodeUnauthorized, "认证失败")
		}
		return
	}

	// 提取平台用户ID（必填）
	platformUserID := ctx.Input.Header("X-Platform-User-Id")
	if platformUserID == "" {
		logger.Warn("missing platform user id",
			zap.String("trace_id", traceID),
			zap.String("platform", platform.AppKey))
		returnError(400, response.CodeBadRequest, "X-Platform-User-Id is required")
		return
	}
	if !auth.IsValidPlatformUserID(platformUserID) {
		logger.Warn("invalid platform user id format",
			zap.String("trace_id", traceID),
			zap.String("platform_user_id", platformUserID))
		returnError(400, response.CodeBadRequest, "invalid platform_user_id format")
		return
	}

	platformUserName := ctx.Input.Header("X-Platform-User-Name")

	ctx.Input.SetData("platform", platform)
	ctx.Input.SetData("platform_id", platform.PlatformID)
	ctx.Input.SetData("platform_user_id", platformUserID)
	ctx.Input.SetData("platform_user_name", platformUserName)

	logger.Debug("platform authentication successful",
		zap.String("trace_id", traceID),
		zap.String("platform", platform.AppKey),
		zap.Int8("platform_id", platform.PlatformID),
		zap.String("platform_user_id", platformUserID))
}
