package model

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// NumberStat 对应 number_stats 表（号码热度统计）
// pick_count: 被选次数；draw_count: 被开出次数
type NumberStat struct {
	Number    int   `db:"number"`
	PickCount int64 `db:"pick_count"`
	DrawCount int64 `db:"draw_count"`
	UpdatedAt int64 `db:"updated_at"`
}

// IncrPickCounts 批量累加被选次数（选号事务内调用）
func IncrPickCounts(ctx context.Context, exec sqlx.ExtContext, numbers []int) error {
	if len(numbers) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()

	var sb strings.Builder
	sb.WriteString("INSERT INTO number_stats (number, pick_count, draw_count, updated_at) VALUES ")
	args := make([]interface{}, 0, len(numbers)*2)
	for i, n := range numbers {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, 1, 0, ?)")
		args = append(args, n, now)
	}
	sb.WriteString(" ON DUPLICATE KEY UPDATE pick_count = pick_count + 1, updated_at = VALUES(updated_at)")

	_, err := exec.ExecContext(ctx, sb.String(), args...)
	return err
}

// IncrDrawCount 累加开出次数（履约事务内调用）
func IncrDrawCount(ctx context.Context, exec sqlx.ExtContext, number int) error {
	now := time.Now().UnixMilli()
	sqlStr := "INSERT INTO number_stats (number, pick_count, draw_count, updated_at) VALUES (?, 0, 1, ?) ON DUPLICATE KEY UPDATE draw_count = draw_count + 1, updated_at = VALUES(updated_at)"
	_, err := exec.ExecContext(ctx, sqlStr, number, now)
	return err
}

// ListNumberStats 全量号码统计，按开出次数倒序
func ListNumberStats(ctx context.Context, exec sqlx.ExtContext, limit int) ([]NumberStat, error) {
	sqlStr := "SELECT number, pick_count, draw_count, updated_at FROM number_stats ORDER BY draw_count DESC, number ASC LIMIT ?"
	var list []NumberStat
	if err := sqlx.SelectContext(ctx, exec, &list, sqlStr, limit); err != nil {
		return nil, err
	}
	return list, nil
}
