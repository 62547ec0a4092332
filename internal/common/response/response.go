package response

import (
	"time"

	beego "github.com/beego/beego/v2/server/web"
)

// APIResponse 统一 API 响应结构
// 所有 API 都应该返回这个结构，无论成功还是失败
type APIResponse struct {
	Code      int         `json:"code"`                // 业务错误码：0=成功，非0=失败
	Message   string      `json:"message"`             // 错误消息
	Data      interface{} `json:"data,omitempty"`      // 业务数据（失败时为 null）
	TraceID   string      `json:"trace_id,omitempty"`  // 请求追踪ID
	Timestamp int64       `json:"timestamp,omitempty"` // 响应时间戳（Unix 毫秒）
}

// 错误码定义
const (
	CodeSuccess              = 0    // 成功
	CodeBadRequest           = 1000 // 参数错误
	CodeBusinessError        = 2000 // 业务错误（通用）
	CodeDuplicateInFlight    = 2001 // 重复请求进行中
	CodeDuplicateKey         = 2002 // 幂等键冲突
	CodeRoundNotActive       = 2003 // 回合未开放选号
	CodeClosingWindow        = 2004 // 封盘窗口内禁止选号
	CodeNumberTaken          = 2005 // 号码已被占用
	CodeMaxSelections        = 2006 // 超出每人选号上限
	CodeIncorrectPayment     = 2007 // 支付金额不匹配
	CodeInsufficientBalance  = 2008 // 余额不足
	CodePlayerDisabled       = 2009 // 玩家已禁用
	CodeNoPayouts            = 2010 // 无可领奖金
	CodeTransferFailed       = 2011 // 资金转移失败
	CodeInsufficientTreasury = 2012 // 金库余额不足
	CodeInvalidRequestID     = 2013 // 未知或已履约的随机数请求
	CodeAlreadyGenerated     = 2014 // 回合已开奖
	CodePrizeDistributed     = 2015 // 回合已派奖
	CodeActionNotReady       = 2016 // 调度条件不满足
	CodeUnknownAction        = 2017 // 未知调度动作
	CodeUnauthorized         = 3000 // 未授权
	CodeInvalidToken         = 3001 // Token 无效
	CodeTokenExpired         = 3002 // Token 过期
	CodeTokenRevoked         = 3003 // Token 已撤销
	CodeInvalidSignature     = 3004 // 签名无效
	CodeTimestampExpired     = 3005 // 时间戳过期
	CodeNonceReused          = 3006 // Nonce 重复使用
	CodeInvalidPlatform      = 3007 // 平台无效
	CodePlatformDisabled     = 3008 // 平台已禁用
	CodeForbidden            = 3009 // 禁止访问
	CodeIPNotAllowed         = 3010 // IP 不在白名单
	CodeRateLimitExceeded    = 4000 // 请求频率超限
	CodeNotFound             = 4004 // 资源不存在
	CodeSystemError          = 5000 // 系统错误
)

// ErrorMessages 错误消息映射
var ErrorMessages = map[int]string{
	CodeSuccess:              "success",
	CodeBadRequest:           "参数错误",
	CodeBusinessError:        "业务处理失败",
	CodeDuplicateInFlight:    "重复请求进行中，请稍后重试",
	CodeDuplicateKey:         "重复的请求",
	CodeRoundNotActive:       "当前回合不接受选号",
	CodeClosingWindow:        "封盘窗口内禁止选号",
	CodeNumberTaken:          "号码已被占用",
	CodeMaxSelections:        "超出每人选号上限",
	CodeIncorrectPayment:     "支付金额与选号费用不符",
	CodeInsufficientBalance:  "余额不足",
	CodePlayerDisabled:       "玩家已被禁用",
	CodeNoPayouts:            "暂无可领取的奖金",
	CodeTransferFailed:       "资金转移失败",
	CodeInsufficientTreasury: "金库余额不足",
	CodeInvalidRequestID:     "未知或已履约的随机数请求",
	CodeAlreadyGenerated:     "该回合已生成开奖号码",
	CodePrizeDistributed:     "该回合已完成派奖",
	CodeActionNotReady:       "调度条件不满足",
	CodeUnknownAction:        "未知的调度动作",
	CodeNotFound:             "资源不存在",
	CodeSystemError:          "系统繁忙，请稍后重试",
}

// Success 成功响应
func Success(c *beego.Controller, data interface{}, traceID string) {
	c.Data["json"] = APIResponse{
		Code:      CodeSuccess,
		Message:   ErrorMessages[CodeSuccess],
		Data:      data,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
	c.ServeJSON()
}

// Error 错误响应（使用预定义的错误消息）
func Error(c *beego.Controller, httpStatus int, code int, traceID string) {
	c.Ctx.Output.SetStatus(httpStatus)
	c.Data["json"] = APIResponse{
		Code:      code,
		Message:   getErrorMessage(code),
		Data:      nil,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
	c.ServeJSON()
}

// ErrorWithMessage 错误响应（使用自定义错误消息）
func ErrorWithMessage(c *beego.Controller, httpStatus int, code int, message string, traceID string) {
	c.Ctx.Output.SetStatus(httpStatus)
	c.Data["json"] = APIResponse{
		Code:      code,
		Message:   message,
		Data:      nil,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
	c.ServeJSON()
}

// BadRequest 参数错误响应（HTTP 400）
func BadRequest(c *beego.Controller, message string, traceID string) {
	ErrorWithMessage(c, 400, CodeBadRequest, message, traceID)
}

// Conflict 资源冲突响应（HTTP 409）
func Conflict(c *beego.Controller, code int, traceID string) {
	Error(c, 409, code, traceID)
}

// NotFound 资源不存在响应（HTTP 404）
func NotFound(c *beego.Controller, message string, traceID string) {
	ErrorWithMessage(c, 404, CodeNotFound, message, traceID)
}

// InternalError 系统错误响应（HTTP 500）
func InternalError(c *beego.Controller, traceID string) {
	Error(c, 500, CodeSystemError, traceID)
}

// Accepted 请求已接受但尚未处理完成（HTTP 202）
// 用于重复请求进行中的场景
func Accepted(c *beego.Controller, message string, traceID string) {
	c.Ctx.Output.SetStatus(202)
	c.Ctx.Output.Header("Retry-After", "1") // 建议客户端 1 秒后重试
	c.Data["json"] = APIResponse{
		Code:      CodeDuplicateInFlight,
		Message:   message,
		Data:      nil,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
	c.ServeJSON()
}

// getErrorMessage 获取错误消息，如果未定义则返回通用消息
func getErrorMessage(code int) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return "未知错误"
}
