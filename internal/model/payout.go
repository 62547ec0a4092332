package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// PendingPayout 对应 pending_payouts 表（拉取式奖金账本）
// 每个玩家一行；奖金只累加，领取时一次性清零后转入钱包
type PendingPayout struct {
	ID        int64 `db:"id"`
	PlayerID  int64 `db:"player_id"`
	Balance   int64 `db:"balance"`
	UpdatedAt int64 `db:"updated_at"`
}

// CreditPayout 奖金入账（不存在则建行；amount 须非负，调用方保证）
func CreditPayout(ctx context.Context, exec sqlx.ExtContext, playerID, amount int64) error {
	now := time.Now().UnixMilli()
	sqlStr := "INSERT INTO pending_payouts (player_id, balance, updated_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE balance = balance + VALUES(balance), updated_at = VALUES(updated_at)"
	_, err := exec.ExecContext(ctx, sqlStr, playerID, amount, now)
	return err
}

// GetPayoutForUpdate 在事务中锁定玩家待领奖金行；无行视为 0
func GetPayoutForUpdate(ctx context.Context, exec sqlx.ExtContext, playerID int64) (int64, error) {
	var balance int64
	sqlStr := "SELECT balance FROM pending_payouts WHERE player_id = ? FOR UPDATE"
	if err := sqlx.GetContext(ctx, exec, &balance, sqlStr, playerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// ZeroPayout 清零待领奖金（领取事务内调用，先清零再转账）
func ZeroPayout(ctx context.Context, exec sqlx.ExtContext, playerID int64) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE pending_payouts SET balance = 0, updated_at = ? WHERE player_id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, now, playerID)
	return err
}

// GetPayout 无锁查询待领奖金（查询接口用）
func GetPayout(ctx context.Context, exec sqlx.ExtContext, playerID int64) (int64, error) {
	var balance int64
	sqlStr := "SELECT balance FROM pending_payouts WHERE player_id = ?"
	if err := sqlx.GetContext(ctx, exec, &balance, sqlStr, playerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}
