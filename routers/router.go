package routers

import (
	"github.com/domumdigital/OneHundred/internal/controller/api"
	"github.com/domumdigital/OneHundred/internal/metrics"
	"github.com/domumdigital/OneHundred/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
)

// init 注册HTTP路由与全局过滤器
// 路由注册早于配置加载完成，开关类过滤器在请求期各自读取当前配置
func init() {
	// 全局过滤器（按执行顺序）
	// 1. Panic Recovery（最先执行，捕获所有 panic）
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RecoveryFilter)

	// 2. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 3. CORS 处理（启用与否由过滤器内部判断）
	beego.InsertFilter("/*", beego.BeforeExec, middleware.CORSFilter)

	// 4. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter)

	// 健康检查（无需认证）
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{}, "get:Readyz")

	// ========== 公开查询 API ==========

	beego.Router("/api/game/summary", &api.QueryController{}, "get:Summary")
	beego.Router("/api/round/:round_no", &api.QueryController{}, "get:GetRound")
	beego.Router("/api/round/:round_no/numbers", &api.QueryController{}, "get:AvailableNumbers")
	beego.Router("/api/history", &api.QueryController{}, "get:History")
	beego.Router("/api/stats/numbers", &api.QueryController{}, "get:NumberStats")

	// ========== 业务 API（需要平台认证） ==========

	// 选号接口：平台认证 + 限流
	beego.InsertFilter("/api/select", beego.BeforeExec, middleware.PlatformAuthFilter)
	beego.InsertFilter("/api/select", beego.BeforeExec, middleware.RateLimitFilter)
	beego.Router("/api/select", &api.SelectionController{}, "post:Select")

	// 领奖接口：平台认证 + 限流
	beego.InsertFilter("/api/claim", beego.BeforeExec, middleware.PlatformAuthFilter)
	beego.InsertFilter("/api/claim", beego.BeforeExec, middleware.RateLimitFilter)
	beego.Router("/api/claim", &api.PayoutController{}, "post:Claim")

	// 玩家查询接口：平台认证（玩家只能查询自己的数据）
	beego.InsertFilter("/api/user/*", beego.BeforeExec, middleware.PlatformAuthFilter)
	beego.Router("/api/user/selections", &api.UserController{}, "get:Selections")
	beego.Router("/api/user/payout", &api.UserController{}, "get:Payout")
	beego.Router("/api/user/ledger", &api.UserController{}, "get:Ledger")
	beego.Router("/api/user/token", &api.UserController{}, "post:Token")

	// ========== 调度 API（需要调度方认证） ==========

	beego.InsertFilter("/api/scheduler/*", beego.BeforeExec, middleware.SchedulerAuthFilter)
	beego.Router("/api/scheduler/check", &api.SchedulerController{}, "get:Check")
	beego.Router("/api/scheduler/perform", &api.SchedulerController{}, "post:Perform")

	// 金库提取：调度方 Token 保护（管理侧操作）
	beego.InsertFilter("/api/admin/*", beego.BeforeExec, middleware.SchedulerAuthFilter)
	beego.Router("/api/admin/treasury/withdraw", &api.TreasuryController{}, "post:Withdraw")

	// ========== 预言机回调 API ==========

	beego.InsertFilter("/api/oracle/fulfill", beego.BeforeExec, middleware.OracleAuthFilter)
	beego.Router("/api/oracle/fulfill", &api.EntropyController{}, "post:Fulfill")
}
