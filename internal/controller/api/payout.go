package api

import (
	"errors"

	helper "github.com/domumdigital/OneHundred/internal/common/helper"
	"github.com/domumdigital/OneHundred/internal/common/response"
	"github.com/domumdigital/OneHundred/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newPayoutService = service.NewPayoutService

type PayoutController struct{ beego.Controller }

// Claim 领奖接口：POST /api/claim
// 拉取式派奖：奖金先入待领账本，玩家主动领取后才进钱包
func (c *PayoutController) Claim() {
	traceID := helper.GetTraceID(c.Ctx)

	platformID := int8(0)
	platformUserID := ""
	if v := c.Ctx.Input.GetData("platform_id"); v != nil {
		if pid, ok := v.(int8); ok {
			platformID = pid
		}
	}
	if v := c.Ctx.Input.GetData("platform_user_id"); v != nil {
		if puid, ok := v.(string); ok {
			platformUserID = puid
		}
	}
	if platformUserID == "" {
		response.BadRequest(&c.Controller, "platform user not resolved", traceID)
		return
	}

	svc := newPayoutService()
	out, err := svc.Claim(c.Ctx.Request.Context(), service.ClaimInput{
		PlatformID:     platformID,
		PlatformUserID: platformUserID,
		TraceID:        traceID,
	})
	if err != nil {
		if errors.Is(err, service.ErrNoPayouts) {
			response.Error(&c.Controller, 404, response.CodeNoPayouts, traceID)
			return
		}
		if errors.Is(err, service.ErrPlayerDisabled) {
			response.Error(&c.Controller, 403, response.CodePlayerDisabled, traceID)
			return
		}
		if errors.Is(err, service.ErrTransferFailed) {
			response.Error(&c.Controller, 500, response.CodeTransferFailed, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"amount":        out.Amount,
		"remain_amount": out.RemainAmount,
	}, traceID)
}

type TreasuryController struct{ beego.Controller }

// Withdraw 金库提取接口：POST /api/admin/treasury/withdraw
// 调度方 Token 保护（管理侧操作）
func (c *TreasuryController) Withdraw() {
	traceID := helper.GetTraceID(c.Ctx)

	wp, ok, msg := helper.ParseAndValidateWithdraw(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	operator := "admin"
	if v := c.Ctx.Input.GetData("platform_user_id"); v != nil {
		if s, ok := v.(string); ok && s != "" {
			operator = s
		}
	}

	svc := newPayoutService()
	out, err := svc.WithdrawTreasury(c.Ctx.Request.Context(), service.WithdrawInput{
		Amount:   wp.Amount,
		Operator: operator,
		TraceID:  traceID,
	})
	if err != nil {
		if errors.Is(err, service.ErrZeroWithdraw) {
			response.BadRequest(&c.Controller, "提取金额必须为正数", traceID)
			return
		}
		if errors.Is(err, service.ErrInsufficientTreasury) {
			response.Conflict(&c.Controller, response.CodeInsufficientTreasury, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"amount":        out.Amount,
		"treasury":      out.Treasury,
		"remain_amount": out.RemainAmount,
	}, traceID)
}
