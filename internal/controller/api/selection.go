package api

import (
	"errors"

	helper "github.com/domumdigital/OneHundred/internal/common/helper"
	"github.com/domumdigital/OneHundred/internal/common/response"
	"github.com/domumdigital/OneHundred/internal/service"

	beego "github.com/beego/beego/v2/server/web"

	mysqlerr "github.com/go-sql-driver/mysql"
)

var newSelectionService = service.NewSelectionService

type SelectionController struct{ beego.Controller }

// 选号请求参数
type SelectRequestParam struct {
	Numbers    []int  `json:"numbers"`     // 选择的号码列表
	PaidAmount string `json:"paid_amount"` // 支付金额，必须等于 单号费用*个数
	/*
		幂等键：客户端生成并随请求传入，用于在网络重试/超时重发/服务端重试时保证“同一业务请求只生效一次”。
		使用约定：
		- 对于“同一次选号”的所有重试，请传相同的 idempotency_key；
		- 业务语义不同（号码/金额/用户不同）的请求必须使用不同的 key；
		- 建议生成方式：UUID（推荐）。
		服务端幂等保证（多层防护）：
		1) Redis 进行中锁（约45秒）：并发重复请求直接返回 202，并携带 Retry-After: 1；
		2) MySQL 唯一键：事务内先插入 idempotency_keys(idempotency_key)，已存在则返回首次请求的结果；
		3) 结果缓存：首次成功结果会写入 Redis（短期缓存），后续重复可直接读缓存快速返回。
	*/
	IdempotencyKey string `json:"idempotency_key"`
}

// Select 选号接口：POST /api/select
func (c *SelectionController) Select() {
	// 1) 解析入参与基本校验
	// 这里必须要对业务参数严格校验，后续service不再重复校验格式
	sp, ok, msg := helper.ParseAndValidateSelect(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	svc := newSelectionService()
	traceID := helper.GetTraceID(c.Ctx)

	// 从 context 提取平台信息（由认证中间件注入）
	platformID := int8(0)
	platformUserID := ""
	platformUserName := ""
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
	if v := c.Ctx.Input.GetData("platform_user_name"); v != nil {
		if pname, ok := v.(string); ok {
			platformUserName = pname
		}
	}
	if platformUserID == "" {
		response.BadRequest(&c.Controller, "platform user not resolved", traceID)
		return
	}

	out, err := svc.SelectNumbers(c.Ctx.Request.Context(), service.SelectInput{
		PlatformID:       platformID,
		PlatformUserID:   platformUserID,
		PlatformUserName: platformUserName,
		Numbers:          sp.Numbers,
		PaidAmount:       sp.PaidAmount,
		IdempotencyKey:   sp.IdempotencyKey,
		TraceID:          traceID,
	})
	if err != nil {
		// MySQL 唯一键冲突
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			response.Conflict(&c.Controller, response.CodeDuplicateKey, traceID)
			return
		}
		// 重复请求进行中
		if errors.Is(err, service.ErrDuplicateInFlight) {
			response.Accepted(&c.Controller, "重复请求进行中，请稍后重试", traceID)
			return
		}
		if errors.Is(err, service.ErrRoundNotActive) {
			response.Conflict(&c.Controller, response.CodeRoundNotActive, traceID)
			return
		}
		if errors.Is(err, service.ErrInClosingWindow) {
			response.Conflict(&c.Controller, response.CodeClosingWindow, traceID)
			return
		}
		if errors.Is(err, service.ErrNumberAlreadySelected) {
			response.Conflict(&c.Controller, response.CodeNumberTaken, traceID)
			return
		}
		if errors.Is(err, service.ErrWouldExceedMaxSelections) || errors.Is(err, service.ErrTooManySelections) {
			response.Conflict(&c.Controller, response.CodeMaxSelections, traceID)
			return
		}
		if errors.Is(err, service.ErrZeroNumbersSelected) || errors.Is(err, service.ErrInvalidNumber) {
			response.BadRequest(&c.Controller, err.Error(), traceID)
			return
		}
		if errors.Is(err, service.ErrIncorrectPayment) {
			response.Error(&c.Controller, 400, response.CodeIncorrectPayment, traceID)
			return
		}
		if errors.Is(err, service.ErrInsufficientBalance) {
			response.Error(&c.Controller, 400, response.CodeInsufficientBalance, traceID)
			return
		}
		if errors.Is(err, service.ErrPlayerDisabled) {
			response.Error(&c.Controller, 403, response.CodePlayerDisabled, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	// 成功响应
	response.Success(&c.Controller, map[string]interface{}{
		"round_no":      out.RoundNo,
		"bill_no":       out.BillNo,
		"numbers":       out.Numbers,
		"remain_amount": out.RemainAmount,
		"pot":           out.Pot,
	}, traceID)
}
