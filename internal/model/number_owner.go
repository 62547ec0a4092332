package model

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// RoundNumber 对应 round_numbers 表（号码归属，回合内唯一）
// 唯一键 (round_no, number)：并发抢同一号码时由唯一键冲突兜底
type RoundNumber struct {
	ID        int64 `db:"id"`
	RoundNo   int64 `db:"round_no"`
	Number    int   `db:"number"`
	PlayerID  int64 `db:"player_id"`
	CreatedAt int64 `db:"created_at"`
}

// InsertNumbers 批量登记号码归属（单条 INSERT 多 VALUES，整体原子）
// 任一号码已被占用将触发 1062 唯一键冲突，调用方据此回滚整个选号事务
func InsertNumbers(ctx context.Context, exec sqlx.ExtContext, roundNo, playerID int64, numbers []int) error {
	if len(numbers) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()

	var sb strings.Builder
	sb.WriteString("INSERT INTO round_numbers (round_no, number, player_id, created_at) VALUES ")
	args := make([]interface{}, 0, len(numbers)*4)
	for i, n := range numbers {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?)")
		args = append(args, roundNo, n, playerID, now)
	}

	_, err := exec.ExecContext(ctx, sb.String(), args...)
	return err
}

// GetNumberOwner 查询某号码的归属玩家；未售出返回 (0, nil)
func GetNumberOwner(ctx context.Context, exec sqlx.ExtContext, roundNo int64, number int) (int64, error) {
	var playerID int64
	sqlStr := "SELECT player_id FROM round_numbers WHERE round_no = ? AND number = ?"
	if err := sqlx.GetContext(ctx, exec, &playerID, sqlStr, roundNo, number); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return playerID, nil
}

// ListRoundNumbers 回合全部已售号码及归属，按号码升序（结算遍历用）
func ListRoundNumbers(ctx context.Context, exec sqlx.ExtContext, roundNo int64) ([]RoundNumber, error) {
	sqlStr := "SELECT id, round_no, number, player_id, created_at FROM round_numbers WHERE round_no = ? ORDER BY number ASC"
	var list []RoundNumber
	if err := sqlx.SelectContext(ctx, exec, &list, sqlStr, roundNo); err != nil {
		return nil, err
	}
	return list, nil
}

// ListTakenNumbers 回合已售号码列表（可售号码 = [1,total] 补集）
func ListTakenNumbers(ctx context.Context, exec sqlx.ExtContext, roundNo int64) ([]int, error) {
	sqlStr := "SELECT number FROM round_numbers WHERE round_no = ? ORDER BY number ASC"
	var list []int
	if err := sqlx.SelectContext(ctx, exec, &list, sqlStr, roundNo); err != nil {
		return nil, err
	}
	return list, nil
}
