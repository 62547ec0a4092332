package api

import (
	"errors"

	helper "github.com/domumdigital/OneHundred/internal/common/helper"
	"github.com/domumdigital/OneHundred/internal/common/response"
	"github.com/domumdigital/OneHundred/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newSchedulerService = service.NewSchedulerService

type SchedulerController struct{ beego.Controller }

// Check 调度条件检查接口：GET /api/scheduler/check
// 纯读不写，外部调度器轮询后决定是否调用 Perform
func (c *SchedulerController) Check() {
	traceID := helper.GetTraceID(c.Ctx)

	svc := newSchedulerService()
	out, err := svc.CheckCondition(c.Ctx.Request.Context())
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"due":      out.Due,
		"action":   out.Action,
		"round_no": out.RoundNo,
		"phase":    out.Phase,
	}, traceID)
}

// Perform 调度动作执行接口：POST /api/scheduler/perform
// 事务内重新推导条件，条件过期返回 409
func (c *SchedulerController) Perform() {
	traceID := helper.GetTraceID(c.Ctx)

	pp, ok, msg := helper.ParseAndValidatePerform(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	operator := "scheduler"
	if v := c.Ctx.Input.GetData("is_scheduler"); v == nil {
		// 未启用调度方认证时记录来源为匿名
		operator = "anonymous"
	}

	svc := newSchedulerService()
	out, err := svc.PerformAction(c.Ctx.Request.Context(), service.PerformInput{
		Action:   pp.Action,
		Operator: operator,
		TraceID:  traceID,
	})
	if err != nil {
		if errors.Is(err, service.ErrUnknownAction) {
			response.Error(&c.Controller, 400, response.CodeUnknownAction, traceID)
			return
		}
		if errors.Is(err, service.ErrActionNotReady) {
			response.Conflict(&c.Controller, response.CodeActionNotReady, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"action":     out.Action,
		"round_no":   out.RoundNo,
		"next_phase": out.NextPhase,
		"request_id": out.RequestID,
	}, traceID)
}
