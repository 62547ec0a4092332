package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// RandomnessRequest 对应 randomness_requests 表
// request_id 唯一且由 crypto/rand 生成，不可预测
// consumed: 0=在途 1=已履约（防止同一请求被重复履约）
type RandomnessRequest struct {
	ID        int64  `db:"id"`
	RequestID string `db:"request_id"`
	RoundNo   int64  `db:"round_no"`
	Consumed  int8   `db:"consumed"`
	TraceID   string `db:"trace_id"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

// Insert 登记一条随机数请求
func (r *RandomnessRequest) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	sqlStr := "INSERT INTO randomness_requests (request_id, round_no, consumed, trace_id, created_at, updated_at) VALUES (?, ?, 0, ?, ?, ?)"
	args := []interface{}{r.RequestID, r.RoundNo, r.TraceID, now, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetRequestForUpdate 在事务中按请求ID加锁读取；不存在返回 (nil, nil)
func GetRequestForUpdate(ctx context.Context, exec sqlx.ExtContext, requestID string) (*RandomnessRequest, error) {
	sqlStr := "SELECT id, request_id, round_no, consumed, trace_id, created_at, updated_at FROM randomness_requests WHERE request_id = ? FOR UPDATE"
	var r RandomnessRequest
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, requestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// MarkRequestConsumed 标记请求已履约
func MarkRequestConsumed(ctx context.Context, exec sqlx.ExtContext, requestID string) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE randomness_requests SET consumed = 1, updated_at = ? WHERE request_id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, now, requestID)
	return err
}
