package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// DistributionLog 派奖日志表（防止重复派奖）
// round_no 唯一索引：同一回合第二次派奖会触发 1062 冲突
// 玩家ID为 0 表示该名次空缺（如无人买中开奖号）
type DistributionLog struct {
	ID                int64  `db:"id"`                   // 自增ID
	RoundNo           int64  `db:"round_no"`             // 回合号
	WinningNumber     int    `db:"winning_number"`       // 开奖号码
	TotalPot          int64  `db:"total_pot"`            // 回合总奖池
	WinnerPlayerID    int64  `db:"winner_player_id"`     // 头奖玩家
	WinnerAmount      int64  `db:"winner_amount"`        // 头奖金额
	RunnerUp1PlayerID int64  `db:"runner_up1_player_id"` // 亚军1
	RunnerUp1Amount   int64  `db:"runner_up1_amount"`    // 亚军1金额
	RunnerUp2PlayerID int64  `db:"runner_up2_player_id"` // 亚军2
	RunnerUp2Amount   int64  `db:"runner_up2_amount"`    // 亚军2金额
	HouseAmount       int64  `db:"house_amount"`         // 庄家合计（含金库留存）
	TreasuryAmount    int64  `db:"treasury_amount"`      // 其中金库留存
	Operator          string `db:"operator"`             // 操作来源
	TraceID           string `db:"trace_id"`             // 链路追踪ID
	CreatedAt         int64  `db:"created_at"`           // 创建时间（13位毫秒时间戳）
}

// CreateDistributionLog 创建派奖日志（利用唯一索引防止重复派奖）
// 如果返回唯一键冲突错误，说明该回合已经派过奖
func CreateDistributionLog(ctx context.Context, exec sqlx.ExtContext, log *DistributionLog) error {
	now := time.Now().UnixMilli()
	log.CreatedAt = now

	sqlStr := `INSERT INTO distribution_log (round_no, winning_number, total_pot, winner_player_id, winner_amount,
		runner_up1_player_id, runner_up1_amount, runner_up2_player_id, runner_up2_amount,
		house_amount, treasury_amount, operator, trace_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := exec.ExecContext(ctx, sqlStr,
		log.RoundNo, log.WinningNumber, log.TotalPot, log.WinnerPlayerID, log.WinnerAmount,
		log.RunnerUp1PlayerID, log.RunnerUp1Amount, log.RunnerUp2PlayerID, log.RunnerUp2Amount,
		log.HouseAmount, log.TreasuryAmount, log.Operator, log.TraceID, log.CreatedAt)
	if err != nil {
		return err
	}

	id, _ := result.LastInsertId()
	log.ID = id

	return nil
}

// GetDistributionLog 查询派奖日志
func GetDistributionLog(ctx context.Context, db *sqlx.DB, roundNo int64) (*DistributionLog, error) {
	sqlStr := `SELECT id, round_no, winning_number, total_pot, winner_player_id, winner_amount,
		runner_up1_player_id, runner_up1_amount, runner_up2_player_id, runner_up2_amount,
		house_amount, treasury_amount, operator, trace_id, created_at
		FROM distribution_log WHERE round_no = ? LIMIT 1`

	var log DistributionLog
	if err := db.GetContext(ctx, &log, sqlStr, roundNo); err != nil {
		return nil, err
	}

	return &log, nil
}
