package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// RoundSelection 对应 round_selections 表（每人每回合一行，累计记录）
// numbers 为 JSON 数组字符串（按选号先后追加）；selection_count 冗余计数
type RoundSelection struct {
	ID             int64  `db:"id"`
	RoundNo        int64  `db:"round_no"`
	PlayerID       int64  `db:"player_id"`
	Numbers        string `db:"numbers"`
	SelectionCount int    `db:"selection_count"`
	TotalWagered   int64  `db:"total_wagered"`
	TraceID        string `db:"trace_id"`
	CreatedAt      int64  `db:"created_at"`
	UpdatedAt      int64  `db:"updated_at"`
}

// Insert 新建玩家的回合选号记录
func (s *RoundSelection) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	sqlStr := "INSERT INTO round_selections (round_no, player_id, numbers, selection_count, total_wagered, trace_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{s.RoundNo, s.PlayerID, s.Numbers, s.SelectionCount, s.TotalWagered, s.TraceID, now, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetSelectionForUpdate 在事务中锁定玩家的回合选号记录；不存在返回 (nil, nil)
func GetSelectionForUpdate(ctx context.Context, exec sqlx.ExtContext, roundNo, playerID int64) (*RoundSelection, error) {
	sqlStr := `SELECT id, round_no, player_id, numbers, selection_count, total_wagered, trace_id, created_at, updated_at
		FROM round_selections WHERE round_no = ? AND player_id = ? FOR UPDATE`
	var s RoundSelection
	if err := sqlx.GetContext(ctx, exec, &s, sqlStr, roundNo, playerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// UpdateAppend 追加选号：覆盖 numbers JSON、累加计数与投入
func (s *RoundSelection) UpdateAppend(ctx context.Context, exec sqlx.ExtContext, numbersJSON string, addCount int, addWagered int64) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE round_selections SET numbers = ?, selection_count = selection_count + ?, total_wagered = total_wagered + ?, updated_at = ? WHERE round_no = ? AND player_id = ?"
	args := []interface{}{numbersJSON, addCount, addWagered, now, s.RoundNo, s.PlayerID}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetSelection 无锁读取（查询接口用）
func GetSelection(ctx context.Context, exec sqlx.ExtContext, roundNo, playerID int64) (*RoundSelection, error) {
	sqlStr := `SELECT id, round_no, player_id, numbers, selection_count, total_wagered, trace_id, created_at, updated_at
		FROM round_selections WHERE round_no = ? AND player_id = ?`
	var s RoundSelection
	if err := sqlx.GetContext(ctx, exec, &s, sqlStr, roundNo, playerID); err != nil {
		return nil, err
	}
	return &s, nil
}

// CountPlayersInRound 回合参与人数
func CountPlayersInRound(ctx context.Context, exec sqlx.ExtContext, roundNo int64) (int64, error) {
	var cnt int64
	sqlStr := "SELECT COUNT(1) FROM round_selections WHERE round_no = ?"
	if err := sqlx.GetContext(ctx, exec, &cnt, sqlStr, roundNo); err != nil {
		return 0, err
	}
	return cnt, nil
}
