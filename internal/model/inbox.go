package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// Inbox 对应 inbox 表（消费幂等落库表）
// 说明：message_id+topic 可用于天然去重
// processed_at: 0=已入库未处理完成（重投消息需重走处理），>0=处理完成（重投直接 Ack）
type Inbox struct {
	ID          int64  `db:"id"`           // 自增ID
	MessageID   string `db:"message_id"`   // MQ 消息ID
	Topic       string `db:"topic"`        // 主题
	Payload     string `db:"payload"`      // 消息体(JSON字符串)
	ProcessedAt int64  `db:"processed_at"` // 处理完成时间
	CreatedAt   int64  `db:"created_at"`   // 创建时间
}

// UpsertInbox 将消息按 message_id+topic 去重入库，processed_at 置 0
// 返回是否为首次入库（false 表示重投消息，调用方需结合 InboxProcessed 决定是否重走处理）
func UpsertInbox(ctx context.Context, exec sqlx.ExtContext, messageID, topic, payload string) (bool, error) {
	now := time.Now().UnixMilli()

	sqlStr := "INSERT INTO inbox (message_id, topic, payload, processed_at, created_at) VALUES (?, ?, ?, 0, ?) ON DUPLICATE KEY UPDATE processed_at=processed_at"
	args := []interface{}{messageID, topic, payload, now}

	res, err := exec.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	// MySQL: 插入=1，duplicate 且未变更=0
	return n == 1, nil
}

// MarkInboxProcessed 处理成功后记录处理完成时间（在业务事务提交之后调用）
func MarkInboxProcessed(ctx context.Context, exec sqlx.ExtContext, messageID, topic string) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE inbox SET processed_at = ? WHERE message_id = ? AND topic = ?"
	_, err := exec.ExecContext(ctx, sqlStr, now, messageID, topic)
	return err
}

// InboxProcessed 查询消息是否已处理完成；行不存在视为未处理
func InboxProcessed(ctx context.Context, exec sqlx.ExtContext, messageID, topic string) (bool, error) {
	var processedAt int64
	sqlStr := "SELECT processed_at FROM inbox WHERE message_id = ? AND topic = ?"
	if err := sqlx.GetContext(ctx, exec, &processedAt, sqlStr, messageID, topic); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return processedAt > 0, nil
}
