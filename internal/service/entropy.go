package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/domumdigital/OneHundred/common"
	chelper "github.com/domumdigital/OneHundred/common/helper"
	"github.com/domumdigital/OneHundred/common/logger"
	"github.com/domumdigital/OneHundred/internal/config"
	infmysql "github.com/domumdigital/OneHundred/internal/infra/mysql"
	infrds "github.com/domumdigital/OneHundred/internal/infra/redis"
	infmq "github.com/domumdigital/OneHundred/internal/infra/rocketmq"
	"github.com/domumdigital/OneHundred/internal/metrics"
	"github.com/domumdigital/OneHundred/internal/model"

	"github.com/jmoiron/sqlx"
)

var (
	ErrInvalidRequestID       = errors.New("unknown or consumed randomness request")
	ErrNumberAlreadyGenerated = errors.New("winning number already generated for round")
)

// FulfillInput 预言机履约输入
type FulfillInput struct {
	RequestID   string
	RandomValue uint64 // 原始随机值，对号码总数取模后映射到 [1, total]
	Operator    string
	Source      string // callback | mq
	TraceID     string
}

type FulfillOutput struct {
	RoundNo       int64
	WinningNumber int
}

type EntropyService interface {
	Fulfill(ctx context.Context, in FulfillInput) (*FulfillOutput, error)
}

type entropyService struct{}

func NewEntropyService() EntropyService { return &entropyService{} }

// 开奖结果缓存 TTL
const roundResultTTL = 10 * time.Minute

// requestEntropyInTx 发起随机数请求：登记请求映射、置位标志、写 Outbox
// 仅在调度事务内调用（调用方已持有状态行与回合行锁，且已校验 pot > 0）
func requestEntropyInTx(ctx context.Context, tx *sqlx.Tx, roundNo int64, traceID string) (string, error) {
	requestID, err := chelper.GenerateRequestID()
	if err != nil {
		return "", fmt.Errorf("failed to generate request id: %w", err)
	}
	req := &model.RandomnessRequest{
		RequestID: requestID,
		RoundNo:   roundNo,
		TraceID:   traceID,
	}
	if err := req.Insert(ctx, tx); err != nil {
		return "", err
	}
	if err := model.MarkEntropyRequested(ctx, tx, roundNo); err != nil {
		return "", err
	}
	payload := map[string]any{
		"event":      "entropy_requested",
		"request_id": requestID,
		"round_no":   roundNo,
	}
	if err := model.CreateOutbox(ctx, tx, infmq.TopicLotteryEvents, requestID, payload); err != nil {
		return "", err
	}
	return requestID, nil
}

// Fulfill 预言机随机数履约：
// 校验请求在途 -> 计算开奖号码 -> 标记已开奖 -> 同事务结算派奖
// HTTP 回调与 MQ inbox 两条路径都走这里，天然幂等
func (s *entropyService) Fulfill(ctx context.Context, in FulfillInput) (*FulfillOutput, error) {

	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordFulfill(result, in.Source, start) }()

	lc := config.GetLottery()
	if lc == nil {
		return nil, errors.New("lottery config not loaded")
	}
	if in.TraceID == "" {
		in.TraceID = logger.GetTraceID(ctx)
	}

	fmt.Printf("[Entropy] 收到履约请求: request_id=%s, source=%s, trace_id=%s\n",
		in.RequestID, in.Source, in.TraceID)

	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// 统一锁序：先状态行，再回合行
	if _, err := model.GetStateForUpdate(txCtx, tx, true); err != nil {
		return nil, err
	}

	req, err := model.GetRequestForUpdate(txCtx, tx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		fmt.Printf("[Entropy] 未知请求ID: request_id=%s, trace_id=%s\n", in.RequestID, in.TraceID)
		return nil, ErrInvalidRequestID
	}
	if req.Consumed == 1 {
		fmt.Printf("[Entropy] 请求已履约过: request_id=%s, round_no=%d, trace_id=%s\n",
			in.RequestID, req.RoundNo, in.TraceID)
		return nil, ErrInvalidRequestID
	}

	round, err := model.GetRoundForUpdate(txCtx, tx, req.RoundNo)
	if err != nil {
		return nil, err
	}
	if round.NumberGenerated == 1 {
		fmt.Printf("[Entropy] 回合已开奖: round_no=%d, winning=%d, trace_id=%s\n",
			round.RoundNo, round.WinningNumber, in.TraceID)
		return nil, ErrNumberAlreadyGenerated
	}

	// 随机值映射到 [1, total]
	winning := int(in.RandomValue%uint64(lc.TotalNumbers)) + 1

	if err := model.MarkRequestConsumed(txCtx, tx, in.RequestID); err != nil {
		return nil, err
	}
	if err := model.MarkNumberGenerated(txCtx, tx, round.RoundNo, winning); err != nil {
		return nil, err
	}
	if err := model.IncrDrawCount(txCtx, tx, winning); err != nil {
		return nil, err
	}

	audit := &model.RoundEventAudit{
		RoundNo:   round.RoundNo,
		EventType: model.AuditEventFulfillment,
		PrevState: "rest",
		NextState: "rest",
		Operator:  in.Operator,
		Source:    in.Source,
		Payload:   fmt.Sprintf(`{"request_id":%q,"random_value":%d,"winning_number":%d}`, in.RequestID, in.RandomValue, winning),
		TraceID:   in.TraceID,
	}
	if err := audit.Insert(txCtx, tx); err != nil {
		return nil, err
	}

	// 同事务结算：派奖失败则整体回滚，请求保持在途可重试
	if err := settleRound(txCtx, tx, round, winning, in.Operator, in.TraceID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Entropy] 提交事务失败: error=%v, round_no=%d, trace_id=%s\n",
			err, round.RoundNo, in.TraceID)
		return nil, err
	}

	result = "success"
	out := &FulfillOutput{RoundNo: round.RoundNo, WinningNumber: winning}

	// 开奖结果缓存（降级容错）
	if r := infrds.Client(); r != nil {
		if b, e := common.JsonMarshalFast(out); e == nil {
			_ = r.Set(ctx, infrds.RoundResultKey(fmt.Sprint(round.RoundNo)), b, roundResultTTL).Err()
		}
	}

	return out, nil
}
