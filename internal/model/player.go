package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// Player 对应 players 表
// 唯一键 (platform_id, platform_user_id)：平台侧用户映射到内部玩家
// balance 为钱包余额（最小货币单位）；管理员玩家同样落在此表
type Player struct {
	ID             int64  `db:"id"`
	PlatformID     int8   `db:"platform_id"`
	PlatformUserID string `db:"platform_user_id"`
	Nickname       string `db:"nickname"`
	Balance        int64  `db:"balance"`
	Status         int8   `db:"status"`
	CreatedAt      int64  `db:"created_at"`
	UpdatedAt      int64  `db:"updated_at"`
}

// EnsurePlayer 按平台用户定位玩家，不存在则创建（幂等），返回内部玩家ID
func EnsurePlayer(ctx context.Context, exec sqlx.ExtContext, platformID int8, platformUserID, nickname string) (int64, error) {
	var id int64
	sqlSel := "SELECT id FROM players WHERE platform_id = ? AND platform_user_id = ?"
	err := sqlx.GetContext(ctx, exec, &id, sqlSel, platformID, platformUserID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	now := time.Now().UnixMilli()
	sqlIns := "INSERT INTO players (platform_id, platform_user_id, nickname, balance, status, created_at, updated_at) VALUES (?, ?, ?, 0, 1, ?, ?) ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)"
	res, err := exec.ExecContext(ctx, sqlIns, platformID, platformUserID, nickname, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetPlayer 按内部ID读取玩家
func GetPlayer(ctx context.Context, exec sqlx.ExtContext, playerID int64) (*Player, error) {
	sqlStr := "SELECT id, platform_id, platform_user_id, nickname, balance, status, created_at, updated_at FROM players WHERE id = ?"
	var p Player
	if err := sqlx.GetContext(ctx, exec, &p, sqlStr, playerID); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPlayerByPlatformUser 按平台用户读取玩家
func GetPlayerByPlatformUser(ctx context.Context, exec sqlx.ExtContext, platformID int8, platformUserID string) (*Player, error) {
	sqlStr := "SELECT id, platform_id, platform_user_id, nickname, balance, status, created_at, updated_at FROM players WHERE platform_id = ? AND platform_user_id = ?"
	var p Player
	if err := sqlx.GetContext(ctx, exec, &p, sqlStr, platformID, platformUserID); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPlayerForUpdate 在事务中锁定玩家行（扣费/入账前）
func GetPlayerForUpdate(ctx context.Context, exec sqlx.ExtContext, playerID int64) (*Player, error) {
	sqlStr := "SELECT id, platform_id, platform_user_id, nickname, balance, status, created_at, updated_at FROM players WHERE id = ? FOR UPDATE"
	var p Player
	if err := sqlx.GetContext(ctx, exec, &p, sqlStr, playerID); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddBalance 钱包余额增减（调用方已持有行锁并校验余额充足）
func AddBalance(ctx context.Context, exec sqlx.ExtContext, playerID, delta int64) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE players SET balance = balance + ?, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, delta, now, playerID)
	return err
}
