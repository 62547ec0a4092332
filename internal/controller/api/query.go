package api

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/domumdigital/OneHundred/common"
	chelper "github.com/domumdigital/OneHundred/common/helper"
	helper "github.com/domumdigital/OneHundred/internal/common/helper"
	"github.com/domumdigital/OneHundred/internal/common/response"
	infrds "github.com/domumdigital/OneHundred/internal/infra/redis"
	"github.com/domumdigital/OneHundred/internal/service"

	beego "github.com/beego/beego/v2/server/web"
	goredis "github.com/redis/go-redis/v9"
)

var newQueryService = service.NewQueryService

type QueryController struct{ beego.Controller }

// Summary 实时状态接口：GET /api/game/summary
// 前端轮询用：相位、回合号、奖池、剩余时间、参与人数
func (c *QueryController) Summary() {
	traceID := helper.GetTraceID(c.Ctx)

	svc := newQueryService()
	out, err := svc.Summary(c.Ctx.Request.Context())
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, out, traceID)
}

// GetRound 回合详情接口：GET /api/round/:round_no
// 开奖结果优先读 Redis 缓存，未命中回源数据库
func (c *QueryController) GetRound() {
	traceID := helper.GetTraceID(c.Ctx)

	roundNo, err := strconv.ParseInt(c.Ctx.Input.Param(":round_no"), 10, 64)
	if err != nil || roundNo <= 0 {
		response.BadRequest(&c.Controller, "round_no must be a positive integer", traceID)
		return
	}

	// 结果缓存快路径
	if r := infrds.Client(); r != nil {
		key := infrds.RoundResultKey(strconv.FormatInt(roundNo, 10))
		if bs, err := r.Get(context.Background(), key).Bytes(); err == nil {
			var cached map[string]any
			if common.JsonUnmarshal(bs, &cached) == nil {
				response.Success(&c.Controller, map[string]interface{}{
					"round_no": roundNo,
					"result":   cached,
					"cached":   true,
				}, traceID)
				return
			}
		} else if err != goredis.Nil {
			// 非不存在错误降级到数据库
			_ = err
		}
	}

	svc := newQueryService()
	out, err := svc.Round(c.Ctx.Request.Context(), roundNo)
	if err != nil {
		if errors.Is(err, service.ErrRoundNotFound) {
			response.NotFound(&c.Controller, "回合不存在", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, out, traceID)
}

// AvailableNumbers 可售号码接口：GET /api/round/:round_no/numbers
func (c *QueryController) AvailableNumbers() {
	traceID := helper.GetTraceID(c.Ctx)

	roundNo, err := strconv.ParseInt(c.Ctx.Input.Param(":round_no"), 10, 64)
	if err != nil || roundNo <= 0 {
		response.BadRequest(&c.Controller, "round_no must be a positive integer", traceID)
		return
	}

	svc := newQueryService()
	avail, err := svc.AvailableNumbers(c.Ctx.Request.Context(), roundNo)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"round_no":  roundNo,
		"available": avail,
	}, traceID)
}

// History 回合历史接口：GET /api/history
// 参数：start_time / end_time（可选，默认最近3天）、offset、limit
func (c *QueryController) History() {
	traceID := helper.GetTraceID(c.Ctx)

	offset, _ := strconv.ParseUint(c.Ctx.Input.Query("offset"), 10, 32)
	limit, _ := strconv.ParseUint(c.Ctx.Input.Query("limit"), 10, 32)

	// period 快捷范围优先于显式 start_time/end_time
	startStr := c.Ctx.Input.Query("start_time")
	endStr := c.Ctx.Input.Query("end_time")
	switch c.Ctx.Input.Query("period") {
	case "today":
		s, e := common.GetTodayRange(time.Now())
		startStr, endStr = chelper.TimeUnixToStr(s), chelper.TimeUnixToStr(e)
	case "week":
		s, e := common.GetWeekRange(time.Now())
		startStr, endStr = chelper.TimeUnixToStr(s), chelper.TimeUnixToStr(e)
	}

	svc := newQueryService()
	rows, err := svc.History(c.Ctx.Request.Context(), startStr, endStr, uint(offset), uint(limit))
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"rounds":    rows,
		"timestamp": common.NowMs(),
	}, traceID)
}

// NumberStats 号码统计接口：GET /api/stats/numbers
func (c *QueryController) NumberStats() {
	traceID := helper.GetTraceID(c.Ctx)

	limit, _ := strconv.Atoi(c.Ctx.Input.Query("limit"))

	svc := newQueryService()
	stats, totalDraws, err := svc.NumberStats(c.Ctx.Request.Context(), limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"stats":       stats,
		"total_draws": totalDraws,
	}, traceID)
}
