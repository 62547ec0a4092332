package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// 审计事件类型
const (
	AuditEventFirstSelection = int8(1) // 首笔选号懒启动回合
	AuditEventRoundEnd       = int8(2) // 回合截止
	AuditEventEntropyRequest = int8(3) // 发起随机数请求
	AuditEventFulfillment    = int8(4) // 随机数履约/开奖
	AuditEventNextRound      = int8(5) // 开放下一回合
)

// RoundEventAudit 对应 round_event_audit 表（状态机审计）
// prev_state/next_state 使用字符串快照，便于直观查询
type RoundEventAudit struct {
	ID int64 `db:"id"`
	// 回合号
	RoundNo int64 `db:"round_no"`
	// 事件类型（数值：1=first_selection 2=round_end 3=entropy_request 4=fulfillment 5=next_round）
	EventType int8   `db:"event_type"`
	PrevState string `db:"prev_state"`
	NextState string `db:"next_state"`
	Operator  string `db:"operator"`
	Source    string `db:"source"`
	Payload   string `db:"payload"`
	TraceID   string `db:"trace_id"`
	CreatedAt int64  `db:"created_at"`
}

// Insert
func (e *RoundEventAudit) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()

	sqlStr := "INSERT INTO round_event_audit (round_no, event_type, prev_state, next_state, operator, source, payload, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{e.RoundNo, e.EventType, e.PrevState, e.NextState, e.Operator, e.Source, e.Payload, e.TraceID, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}
