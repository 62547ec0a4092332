package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// LotteryState 对应 lottery_state 表（单行全局状态）
// 说明：全表只有 id=1 一行；所有状态变更事务先 FOR UPDATE 锁此行，
// 以此保证全局串行写入（单一逻辑写者）
// phase: waiting_for_player | active | awaiting_random | rest（见 internal/state）
type LotteryState struct {
	ID             int64  `db:"id"`
	Phase          string `db:"phase"`
	CurrentRoundNo int64  `db:"current_round_no"` // 0=尚无回合
	Treasury       int64  `db:"treasury"`         // 金库累计（最小货币单位）
	ConfigLocked   int8   `db:"config_locked"`    // 0=未锁定 1=已锁定（首笔选号后置位，不可回退）
	UpdatedAt      int64  `db:"updated_at"`
}

const stateRowID = 1

// EnsureState 启动时保证状态行存在（幂等）
func EnsureState(ctx context.Context, exec sqlx.ExtContext, initialPhase string) error {
	now := time.Now().UnixMilli()
	sqlStr := "INSERT INTO lottery_state (id, phase, current_round_no, treasury, config_locked, updated_at) VALUES (?, ?, 0, 0, 0, ?) ON DUPLICATE KEY UPDATE id=id"
	_, err := exec.ExecContext(ctx, sqlStr, stateRowID, initialPhase, now)
	return err
}

// GetStateForUpdate 在事务中锁定并返回全局状态行
func GetStateForUpdate(ctx context.Context, exec sqlx.ExtContext, forUpdate bool) (*LotteryState, error) {
	sqlStr := "SELECT id, phase, current_round_no, treasury, config_locked, updated_at FROM lottery_state WHERE id = ?"
	if forUpdate {
		sqlStr += " FOR UPDATE"
	}
	var st LotteryState
	if err := sqlx.GetContext(ctx, exec, &st, sqlStr, stateRowID); err != nil {
		return nil, err
	}
	return &st, nil
}

// UpdatePhase 更新全局相位（调用方已持有行锁）
func UpdatePhase(ctx context.Context, exec sqlx.ExtContext, phase string) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE lottery_state SET phase = ?, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, phase, now, stateRowID)
	return err
}

// UpdatePhaseAndRound 同时更新相位与当前回合号（懒启动新回合用）
func UpdatePhaseAndRound(ctx context.Context, exec sqlx.ExtContext, phase string, roundNo int64) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE lottery_state SET phase = ?, current_round_no = ?, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, phase, roundNo, now, stateRowID)
	return err
}

// AddTreasury 金库累加（delta 可为负，提取时调用方需先校验余额）
func AddTreasury(ctx context.Context, exec sqlx.ExtContext, delta int64) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE lottery_state SET treasury = treasury + ?, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, delta, now, stateRowID)
	return err
}

// MarkConfigLocked 置位配置锁定标记（一次性，不提供清除）
func MarkConfigLocked(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE lottery_state SET config_locked = 1, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, now, stateRowID)
	return err
}
