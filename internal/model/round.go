package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// LotteryRound 对应 lottery_rounds 表（追加式回合记录）
// 说明：时间为毫秒时间戳；end_time 是计划截止时间，ended_at 是实际截止时间
// 四个相位标志独立演进：round_ended -> entropy_requested -> number_generated -> completed
// 零奖池回合跳过中间两步，直接 round_ended -> completed
type LotteryRound struct {
	ID                int64  `db:"id"`
	RoundNo           int64  `db:"round_no"`
	StartTime         int64  `db:"start_time"`
	EndTime           int64  `db:"end_time"`
	EndedAt           int64  `db:"ended_at"` // 0=未截止
	Pot               int64  `db:"pot"`      // 奖池（最小货币单位）
	WinningNumber     int    `db:"winning_number"` // 0=未开奖
	WinnerPlayerID    int64  `db:"winner_player_id"`
	RunnerUp1PlayerID int64  `db:"runner_up1_player_id"`
	RunnerUp2PlayerID int64  `db:"runner_up2_player_id"`
	RoundEnded        int8   `db:"round_ended"`
	EntropyRequested  int8   `db:"entropy_requested"`
	NumberGenerated   int8   `db:"number_generated"`
	Completed         int8   `db:"completed"`
	TraceID           string `db:"trace_id"`
	CreatedAt         int64  `db:"created_at"`
	UpdatedAt         int64  `db:"updated_at"`
}

// Insert 新建回合（懒启动：首笔选号事务内调用）
func (r *LotteryRound) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	sqlStr := "INSERT INTO lottery_rounds (round_no, start_time, end_time, pot, trace_id, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?, ?)"
	args := []interface{}{r.RoundNo, r.StartTime, r.EndTime, r.TraceID, now, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetRoundForUpdate 在事务中按回合号加锁读取
func GetRoundForUpdate(ctx context.Context, exec sqlx.ExtContext, roundNo int64) (*LotteryRound, error) {
	sqlStr := roundSelectColumns + " FROM lottery_rounds WHERE round_no = ? FOR UPDATE"
	var r LotteryRound
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, roundNo); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRound 无锁读取回合
func GetRound(ctx context.Context, exec sqlx.ExtContext, roundNo int64) (*LotteryRound, error) {
	sqlStr := roundSelectColumns + " FROM lottery_rounds WHERE round_no = ?"
	var r LotteryRound
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, roundNo); err != nil {
		return nil, err
	}
	return &r, nil
}

const roundSelectColumns = `SELECT id, round_no, start_time, end_time, ended_at, pot,
	winning_number, winner_player_id, runner_up1_player_id, runner_up2_player_id,
	round_ended, entropy_requested, number_generated, completed,
	trace_id, created_at, updated_at`

// AddPot 奖池累加（选号事务内调用，行锁由调用方保证）
func AddPot(ctx context.Context, exec sqlx.ExtContext, roundNo, delta int64) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE lottery_rounds SET pot = pot + ?, updated_at = ? WHERE round_no = ?"
	_, err := exec.ExecContext(ctx, sqlStr, delta, now, roundNo)
	return err
}

// MarkRoundEnded 标记回合截止并记录实际截止时间
func MarkRoundEnded(ctx context.Context, exec sqlx.ExtContext, roundNo, endedAtMs int64) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE lottery_rounds SET round_ended = 1, ended_at = ?, updated_at = ? WHERE round_no = ?"
	_, err := exec.ExecContext(ctx, sqlStr, endedAtMs, now, roundNo)
	return err
}

// MarkEntropyRequested 标记已发起随机数请求
func MarkEntropyRequested(ctx context.Context, exec sqlx.ExtContext, roundNo int64) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE lottery_rounds SET entropy_requested = 1, updated_at = ? WHERE round_no = ?"
	_, err := exec.ExecContext(ctx, sqlStr, now, roundNo)
	return err
}

// MarkNumberGenerated 写入开奖号码并置位 number_generated
func MarkNumberGenerated(ctx context.Context, exec sqlx.ExtContext, roundNo int64, winningNumber int) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE lottery_rounds SET number_generated = 1, winning_number = ?, updated_at = ? WHERE round_no = ?"
	_, err := exec.ExecContext(ctx, sqlStr, winningNumber, now, roundNo)
	return err
}

// MarkCompleted 标记回合完结并写入获奖者快照（0 表示该名次空缺）
func MarkCompleted(ctx context.Context, exec sqlx.ExtContext, roundNo, winnerID, runner1ID, runner2ID int64) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE lottery_rounds SET completed = 1, winner_player_id = ?, runner_up1_player_id = ?, runner_up2_player_id = ?, updated_at = ? WHERE round_no = ?"
	_, err := exec.ExecContext(ctx, sqlStr, winnerID, runner1ID, runner2ID, now, roundNo)
	return err
}

// RoundSnapshot 提供 GET 接口所需的最小字段集合
type RoundSnapshot struct {
	RoundNo       int64 `db:"round_no"`
	StartTime     int64 `db:"start_time"`
	EndTime       int64 `db:"end_time"`
	EndedAt       int64 `db:"ended_at"`
	Pot           int64 `db:"pot"`
	WinningNumber int   `db:"winning_number"`
	Completed     int8  `db:"completed"`
}

// GetRoundSnapshot 按回合号查询所需字段（无锁读取）
func GetRoundSnapshot(ctx context.Context, exec sqlx.ExtContext, roundNo int64) (*RoundSnapshot, error) {
	sqlStr := `SELECT round_no, start_time, end_time, ended_at, pot, winning_number, completed
		FROM lottery_rounds WHERE round_no = ?`
	var rs RoundSnapshot
	if err := sqlx.GetContext(ctx, exec, &rs, sqlStr, roundNo); err != nil {
		return nil, err
	}
	return &rs, nil
}
