package api

import (
	"errors"

	helper "github.com/domumdigital/OneHundred/internal/common/helper"
	"github.com/domumdigital/OneHundred/internal/common/response"
	"github.com/domumdigital/OneHundred/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newEntropyService = service.NewEntropyService

type EntropyController struct{ beego.Controller }

// 履约请求参数
type FulfillRequestParam struct {
	RequestID string `json:"request_id"` // 发起请求时返回的32位十六进制ID
	// 原始随机值，以字符串承载避免 JSON 大整数精度丢失
	RandomValue string `json:"random_value"`
}

// Fulfill 预言机随机数履约接口：POST /api/oracle/fulfill
// 同一事务内完成开奖号码生成与奖池结算
func (c *EntropyController) Fulfill() {
	traceID := helper.GetTraceID(c.Ctx)

	fp, randomValue, ok, msg := helper.ParseAndValidateFulfill(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	svc := newEntropyService()
	out, err := svc.Fulfill(c.Ctx.Request.Context(), service.FulfillInput{
		RequestID:   fp.RequestID,
		RandomValue: randomValue,
		Operator:    "oracle",
		Source:      "callback",
		TraceID:     traceID,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequestID) {
			response.Error(&c.Controller, 404, response.CodeInvalidRequestID, traceID)
			return
		}
		if errors.Is(err, service.ErrNumberAlreadyGenerated) {
			response.Conflict(&c.Controller, response.CodeAlreadyGenerated, traceID)
			return
		}
		if errors.Is(err, service.ErrPrizeAlreadyDistributed) {
			response.Conflict(&c.Controller, response.CodePrizeDistributed, traceID)
			return
		}
		if errors.Is(err, service.ErrOwnerTransferFailed) {
			response.Error(&c.Controller, 500, response.CodeTransferFailed, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"round_no":       out.RoundNo,
		"winning_number": out.WinningNumber,
	}, traceID)
}
