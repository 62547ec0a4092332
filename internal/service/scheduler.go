package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/domumdigital/OneHundred/internal/config"
	infmysql "github.com/domumdigital/OneHundred/internal/infra/mysql"
	infmq "github.com/domumdigital/OneHundred/internal/infra/rocketmq"
	"github.com/domumdigital/OneHundred/internal/metrics"
	"github.com/domumdigital/OneHundred/internal/model"
	"github.com/domumdigital/OneHundred/internal/state"

	"github.com/jmoiron/sqlx"
)

// 调度动作
const (
	ActionNone           = ""
	ActionEndRound       = "end_round"
	ActionRequestEntropy = "request_entropy"
	ActionStartNextRound = "start_next_round"
)

var (
	ErrUnknownAction  = errors.New("unknown scheduler action")
	ErrActionNotReady = errors.New("scheduler action condition not met")
)

// CheckOutput 条件检查结果（纯读）
type CheckOutput struct {
	Due     bool
	Action  string
	RoundNo int64
	Phase   string
}

type PerformInput struct {
	Action   string
	Operator string
	TraceID  string
}

type PerformOutput struct {
	Action    string
	RoundNo   int64
	NextPhase string
	// RequestID 仅 request_entropy 动作且奖池非零时返回
	RequestID string
}

type SchedulerService interface {
	CheckCondition(ctx context.Context) (*CheckOutput, error)
	PerformAction(ctx context.Context, in PerformInput) (*PerformOutput, error)
}

type schedulerService struct{}

func NewSchedulerService() SchedulerService { return &schedulerService{} }

// CheckCondition 无锁读取当前相位并判断哪个调度动作到期
// 只读不写；外部调度器据此决定是否调用 PerformAction
func (s *schedulerService) CheckCondition(ctx context.Context) (*CheckOutput, error) {
	lc := config.GetLottery()
	if lc == nil {
		return nil, errors.New("lottery config not loaded")
	}

	st, err := model.GetStateForUpdate(ctx, infmysql.SQLX(), false)
	if err != nil {
		return nil, err
	}
	out := &CheckOutput{Phase: st.Phase, RoundNo: st.CurrentRoundNo}
	if st.CurrentRoundNo == 0 {
		return out, nil
	}

	now := time.Now().UnixMilli()
	switch st.Phase {
	case state.StateActive:
		round, err := model.GetRoundSnapshot(ctx, infmysql.SQLX(), st.CurrentRoundNo)
		if err != nil {
			return nil, err
		}
		if now >= round.EndTime {
			out.Due, out.Action = true, ActionEndRound
		}
	case state.StateAwaitingRandom:
		// 截止后的回合总是需要 request_entropy（零奖池时该动作直接完结回合）
		out.Due, out.Action = true, ActionRequestEntropy
	case state.StateRest:
		round, err := model.GetRoundSnapshot(ctx, infmysql.SQLX(), st.CurrentRoundNo)
		if err != nil {
			return nil, err
		}
		restOver := round.EndedAt > 0 && now >= round.EndedAt+lc.RestPeriodSec*1000
		if restOver && (round.WinningNumber > 0 || round.Completed == 1) {
			out.Due, out.Action = true, ActionStartNextRound
		}
	}
	return out, nil
}

// PerformAction 执行调度动作：在状态行锁下重新推导条件，过期则拒绝
// 条件不满足返回 ErrActionNotReady，并写一条 trigger_failed 通知（独立于业务事务）
func (s *schedulerService) PerformAction(ctx context.Context, in PerformInput) (*PerformOutput, error) {

	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordSchedulerAction(result, in.Action, start) }()

	lc := config.GetLottery()
	if lc == nil {
		return nil, errors.New("lottery config not loaded")
	}

	fmt.Printf("[Scheduler] 收到调度动作: action=%s, operator=%s, trace_id=%s\n",
		in.Action, in.Operator, in.TraceID)

	if in.Action != ActionEndRound && in.Action != ActionRequestEntropy && in.Action != ActionStartNextRound {
		return nil, ErrUnknownAction
	}

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

	st, err := model.GetStateForUpdate(txCtx, tx, true)
	if err != nil {
		return nil, err
	}

	var out *PerformOutput
	switch in.Action {
	case ActionEndRound:
		out, err = s.endRound(txCtx, tx, st, lc, in)
	case ActionRequestEntropy:
		out, err = s.requestEntropy(txCtx, tx, st, in)
	case ActionStartNextRound:
		out, err = s.startNextRound(txCtx, tx, st, lc, in)
	}
	if err != nil {
		if errors.Is(err, ErrActionNotReady) {
			s.notifyTriggerFailed(ctx, in, st.Phase, err)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Scheduler] 提交事务失败: action=%s, error=%v, trace_id=%s\n",
			in.Action, err, in.TraceID)
		return nil, err
	}

	result = "success"
	fmt.Printf("[Scheduler] 动作执行成功: action=%s, round_no=%d, next_phase=%s, trace_id=%s\n",
		in.Action, out.RoundNo, out.NextPhase, in.TraceID)
	return out, nil
}

// endRound 到达计划截止时间后封盘：active -> awaiting_random
func (s *schedulerService) endRound(ctx context.Context, tx *sqlx.Tx, st *model.LotteryState, lc *config.LotteryConfig, in PerformInput) (*PerformOutput, error) {
	if st.Phase != state.StateActive {
		return nil, fmt.Errorf("%w: end_round requires active phase, got %s", ErrActionNotReady, st.Phase)
	}
	round, err := model.GetRoundForUpdate(ctx, tx, st.CurrentRoundNo)
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	if now < round.EndTime {
		return nil, fmt.Errorf("%w: round %d ends at %d, now %d", ErrActionNotReady, round.RoundNo, round.EndTime, now)
	}

	next, err := state.NextState(st.Phase, state.EvtRoundEnd)
	if err != nil {
		return nil, err
	}
	if err := model.MarkRoundEnded(ctx, tx, round.RoundNo, now); err != nil {
		return nil, err
	}
	if err := model.UpdatePhase(ctx, tx, next); err != nil {
		return nil, err
	}
	audit := &model.RoundEventAudit{
		RoundNo:   round.RoundNo,
		EventType: model.AuditEventRoundEnd,
		PrevState: st.Phase,
		NextState: next,
		Operator:  in.Operator,
		Source:    "scheduler",
		Payload:   fmt.Sprintf(`{"ended_at":%d,"pot":%d}`, now, round.Pot),
		TraceID:   in.TraceID,
	}
	if err := audit.Insert(ctx, tx); err != nil {
		return nil, err
	}
	return &PerformOutput{Action: ActionEndRound, RoundNo: round.RoundNo, NextPhase: next}, nil
}

// requestEntropy 封盘后发起随机数请求：awaiting_random -> rest
// 零奖池回合不请求随机数，直接完结
func (s *schedulerService) requestEntropy(ctx context.Context, tx *sqlx.Tx, st *model.LotteryState, in PerformInput) (*PerformOutput, error) {
	if st.Phase != state.StateAwaitingRandom {
		return nil, fmt.Errorf("%w: request_entropy requires awaiting_random phase, got %s", ErrActionNotReady, st.Phase)
	}
	round, err := model.GetRoundForUpdate(ctx, tx, st.CurrentRoundNo)
	if err != nil {
		return nil, err
	}
	if round.RoundEnded != 1 || round.EntropyRequested == 1 {
		return nil, fmt.Errorf("%w: round %d ended=%d entropy_requested=%d", ErrActionNotReady, round.RoundNo, round.RoundEnded, round.EntropyRequested)
	}

	next, err := state.NextState(st.Phase, state.EvtEntropyRequest)
	if err != nil {
		return nil, err
	}

	var requestID string
	if round.Pot > 0 {
		requestID, err = requestEntropyInTx(ctx, tx, round.RoundNo, in.TraceID)
		if err != nil {
			return nil, err
		}
	} else {
		// 空回合：无人参与，直接完结，无需开奖
		fmt.Printf("[Scheduler] 零奖池回合直接完结: round_no=%d, trace_id=%s\n", round.RoundNo, in.TraceID)
		if err := model.MarkCompleted(ctx, tx, round.RoundNo, 0, 0, 0); err != nil {
			return nil, err
		}
	}
	if err := model.UpdatePhase(ctx, tx, next); err != nil {
		return nil, err
	}
	audit := &model.RoundEventAudit{
		RoundNo:   round.RoundNo,
		EventType: model.AuditEventEntropyRequest,
		PrevState: st.Phase,
		NextState: next,
		Operator:  in.Operator,
		Source:    "scheduler",
		Payload:   fmt.Sprintf(`{"pot":%d,"request_id":%q}`, round.Pot, requestID),
		TraceID:   in.TraceID,
	}
	if err := audit.Insert(ctx, tx); err != nil {
		return nil, err
	}
	return &PerformOutput{Action: ActionRequestEntropy, RoundNo: round.RoundNo, NextPhase: next, RequestID: requestID}, nil
}

// startNextRound 休整期结束且开奖（或完结）后，开放下一回合：rest -> waiting_for_player
// 下一回合的号码归属表天然为空（按回合号隔离），无需清理
func (s *schedulerService) startNextRound(ctx context.Context, tx *sqlx.Tx, st *model.LotteryState, lc *config.LotteryConfig, in PerformInput) (*PerformOutput, error) {
	if st.Phase != state.StateRest {
		return nil, fmt.Errorf("%w: start_next_round requires rest phase, got %s", ErrActionNotReady, st.Phase)
	}
	round, err := model.GetRoundForUpdate(ctx, tx, st.CurrentRoundNo)
	if err != nil {
		return nil, err
	}
	if round.NumberGenerated != 1 && round.Completed != 1 {
		return nil, fmt.Errorf("%w: round %d still awaiting oracle fulfillment", ErrActionNotReady, round.RoundNo)
	}
	now := time.Now().UnixMilli()
	if round.EndedAt == 0 || now < round.EndedAt+lc.RestPeriodSec*1000 {
		return nil, fmt.Errorf("%w: rest period not over for round %d", ErrActionNotReady, round.RoundNo)
	}

	next, err := state.NextState(st.Phase, state.EvtNextRound)
	if err != nil {
		return nil, err
	}
	if err := model.UpdatePhase(ctx, tx, next); err != nil {
		return nil, err
	}
	audit := &model.RoundEventAudit{
		RoundNo:   round.RoundNo,
		EventType: model.AuditEventNextRound,
		PrevState: st.Phase,
		NextState: next,
		Operator:  in.Operator,
		Source:    "scheduler",
		Payload:   fmt.Sprintf(`{"completed_round":%d}`, round.RoundNo),
		TraceID:   in.TraceID,
	}
	if err := audit.Insert(ctx, tx); err != nil {
		return nil, err
	}
	return &PerformOutput{Action: ActionStartNextRound, RoundNo: round.RoundNo, NextPhase: next}, nil
}

// notifyTriggerFailed 条件过期通知：独立写 outbox（业务事务已回滚，不影响此记录）
func (s *schedulerService) notifyTriggerFailed(ctx context.Context, in PerformInput, phase string, cause error) {
	payload := map[string]any{
		"event":    "trigger_failed",
		"action":   in.Action,
		"phase":    phase,
		"reason":   cause.Error(),
		"operator": in.Operator,
	}
	bizKey := fmt.Sprintf("trigger-failed-%s-%d", in.Action, time.Now().UnixMilli())
	if err := model.CreateOutbox(ctx, infmysql.SQLX(), infmq.TopicLotteryEvents, bizKey, payload); err != nil {
		fmt.Printf("[Scheduler] 写入 trigger_failed 通知失败: error=%v, trace_id=%s\n", err, in.TraceID)
	}
}
