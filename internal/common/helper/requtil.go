package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// IsJSONContentType 判断是否为 JSON 请求
func IsJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.Contains(ct, "json")
}

// 金额格式校验：非负，最多两位小数（预编译正则）
var moneyRe = regexp.MustCompile(`^(?:0|[1-9]\d*)(?:\.\d{1,2})?$`)

// IsMoneyFormat 判断金额格式
func IsMoneyFormat(s string) bool {
	return moneyRe.MatchString(strings.TrimSpace(s))
}

// 随机数请求ID：32位十六进制
var requestIDRe = regexp.MustCompile(`^[0-9a-f]{32}$`)

// IsRequestIDFormat 判断随机数请求ID格式
func IsRequestIDFormat(s string) bool {
	return requestIDRe.MatchString(strings.TrimSpace(s))
}

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second
)

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 在 JSON 分支下为请求体增加大小限制与解析超时保护
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("Trace-Id")); h != "" {
		return h
	}
	return ""
}

// parseByContentType 按 Content-Type 选择解析函数，减少重复 if/else 分支
func parseByContentType[T any](ctx *beegocontext.Context,
	jsonParser func(io.Reader) (T, bool, string),
	formParser func(*beegocontext.Context) (T, bool, string),
) (T, bool, string) {
	ct := ctx.Input.Header("Content-Type")
	if IsJSONContentType(ct) {
		return jsonParser(jsonBodyReader(ctx))
	}
	return formParser(ctx)
}

// -------- Selection helpers --------

// SelectParsed 为解析后的选号入参（与控制器/服务层解耦）
type SelectParsed struct {
	Numbers        []int  `json:"numbers"`
	PaidAmount     string `json:"paid_amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

// ParseSelectFromJSON 解析 JSON 到 SelectParsed。失败返回 false 与错误消息。
func ParseSelectFromJSON(r io.Reader) (SelectParsed, bool, string) {
	var out SelectParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return SelectParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

// ParseSelectFromForm 从表单读取字段并做强校验，返回 SelectParsed。
// numbers 为逗号分隔的整数列表。
func ParseSelectFromForm(ctx *beegocontext.Context) (SelectParsed, bool, string) {
	var out SelectParsed

	numsStr := strings.TrimSpace(ctx.Input.Query("numbers"))
	if numsStr == "" {
		return SelectParsed{}, false, "numbers required"
	}
	for _, part := range strings.Split(numsStr, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return SelectParsed{}, false, "numbers must be comma-separated integers"
		}
		out.Numbers = append(out.Numbers, n)
	}

	out.PaidAmount = strings.TrimSpace(ctx.Input.Query("paid_amount"))
	out.IdempotencyKey = strings.TrimSpace(ctx.Input.Query("idempotency_key"))
	return out, true, ""
}

// ValidateSelect 对通用字段做二次校验（适用于 JSON 与 FORM）
func ValidateSelect(in *SelectParsed) (bool, string) {
	if len(in.Numbers) == 0 {
		return false, "numbers required"
	}
	if len(in.Numbers) > 256 {
		return false, "too many numbers"
	}
	if strings.TrimSpace(in.PaidAmount) == "" || !IsMoneyFormat(in.PaidAmount) {
		return false, "paid_amount must be numeric with up to 2 decimals"
	}
	if in.IdempotencyKey == "" {
		return false, "idempotency_key required"
	}
	if len(in.IdempotencyKey) > 64 || len(in.PaidAmount) > 32 {
		return false, "invalid request"
	}
	return true, ""
}

// ParseAndValidateSelect 按 Content-Type 自动解析并做统一校验
func ParseAndValidateSelect(ctx *beegocontext.Context) (SelectParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseSelectFromJSON, ParseSelectFromForm)
	if !ok {
		return SelectParsed{}, false, msg
	}
	if ok, msg := ValidateSelect(&out); !ok {
		return SelectParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Fulfill helpers --------

// FulfillParsed 为解析后的预言机履约入参
// random_value 以字符串承载，避免 JSON 大整数精度丢失
type FulfillParsed struct {
	RequestID   string `json:"request_id"`
	RandomValue string `json:"random_value"`
}

func ParseFulfillFromJSON(r io.Reader) (FulfillParsed, bool, string) {
	var raw map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return FulfillParsed{}, false, "invalid request"
	}
	var out FulfillParsed
	if v, ok := raw["request_id"].(string); ok {
		out.RequestID = strings.TrimSpace(v)
	}
	// random_value 兼容字符串与数字两种形式
	switch v := raw["random_value"].(type) {
	case string:
		out.RandomValue = strings.TrimSpace(v)
	case float64:
		out.RandomValue = strconv.FormatUint(uint64(v), 10)
	}
	return out, true, ""
}

func ParseFulfillFromForm(ctx *beegocontext.Context) (FulfillParsed, bool, string) {
	var out FulfillParsed
	out.RequestID = strings.TrimSpace(ctx.Input.Query("request_id"))
	out.RandomValue = strings.TrimSpace(ctx.Input.Query("random_value"))
	return out, true, ""
}

// ValidateFulfill 校验履约入参并解析随机值
func ValidateFulfill(in *FulfillParsed) (uint64, bool, string) {
	if in.RequestID == "" || !IsRequestIDFormat(in.RequestID) {
		return 0, false, "request_id must be 32 hex chars"
	}
	if in.RandomValue == "" {
		return 0, false, "random_value required"
	}
	v, err := strconv.ParseUint(in.RandomValue, 10, 64)
	if err != nil {
		return 0, false, "random_value must be an unsigned integer"
	}
	return v, true, ""
}

// ParseAndValidateFulfill 按 Content-Type 自动解析并校验，返回解析出的随机值
func ParseAndValidateFulfill(ctx *beegocontext.Context) (FulfillParsed, uint64, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseFulfillFromJSON, ParseFulfillFromForm)
	if !ok {
		return FulfillParsed{}, 0, false, msg
	}
	v, ok, msg := ValidateFulfill(&out)
	if !ok {
		return FulfillParsed{}, 0, false, msg
	}
	return out, v, true, ""
}

// -------- Scheduler helpers --------

type PerformParsed struct {
	Action string `json:"action"`
}

func ParsePerformFromJSON(r io.Reader) (PerformParsed, bool, string) {
	var out PerformParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return PerformParsed{}, false, "invalid request"
	}
	out.Action = strings.TrimSpace(out.Action)
	return out, true, ""
}

func ParsePerformFromForm(ctx *beegocontext.Context) (PerformParsed, bool, string) {
	return PerformParsed{Action: strings.TrimSpace(ctx.Input.Query("action"))}, true, ""
}

func ValidatePerform(in *PerformParsed) (bool, string) {
	if in.Action == "" {
		return false, "action required"
	}
	if in.Action != "end_round" && in.Action != "request_entropy" && in.Action != "start_next_round" {
		return false, "action must be one of: end_round|request_entropy|start_next_round"
	}
	return true, ""
}

func ParseAndValidatePerform(ctx *beegocontext.Context) (PerformParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParsePerformFromJSON, ParsePerformFromForm)
	if !ok {
		return PerformParsed{}, false, msg
	}
	if ok, msg := ValidatePerform(&out); !ok {
		return PerformParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Withdraw helpers --------

type WithdrawParsed struct {
	Amount string `json:"amount"`
}

func ParseWithdrawFromJSON(r io.Reader) (WithdrawParsed, bool, string) {
	var out WithdrawParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return WithdrawParsed{}, false, "invalid request"
	}
	return out, true, ""
}

func ParseWithdrawFromForm(ctx *beegocontext.Context) (WithdrawParsed, bool, string) {
	return WithdrawParsed{Amount: strings.TrimSpace(ctx.Input.Query("amount"))}, true, ""
}

func ValidateWithdraw(in *WithdrawParsed) (bool, string) {
	if strings.TrimSpace(in.Amount) == "" || !IsMoneyFormat(in.Amount) {
		return false, "amount must be numeric with up to 2 decimals"
	}
	if len(in.Amount) > 32 {
		return false, "invalid request"
	}
	return true, ""
}

func ParseAndValidateWithdraw(ctx *beegocontext.Context) (WithdrawParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseWithdrawFromJSON, ParseWithdrawFromForm)
	if !ok {
		return WithdrawParsed{}, false, msg
	}
	if ok, msg := ValidateWithdraw(&out); !ok {
		return WithdrawParsed{}, false, msg
	}
	return out, true, ""
}
