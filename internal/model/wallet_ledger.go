package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/domumdigital/OneHundred/common/constant"
)

// WalletLedger 对应 wallet_ledger 表（追加式账本）
// 说明：金额为最小货币单位、非负；方向由 before/after 与 biz_type 推导
// biz_type 见 common/constant：1=selection 2=prize 3=house 4=withdraw 5=deposit
// 同时冗余 biz_type_str 便于查询
type WalletLedger struct {
	ID           int64  `db:"id"`
	PlayerID     int64  `db:"player_id"`
	BizType      int    `db:"biz_type"`
	BizTypeStr   string `db:"biz_type_str"`
	Amount       int64  `db:"amount"`
	BeforeAmount int64  `db:"before_amount"`
	AfterAmount  int64  `db:"after_amount"`
	BillNo       string `db:"bill_no"`
	RoundNo      int64  `db:"round_no"`
	Remark       string `db:"remark"`
	TraceID      string `db:"trace_id"`
	CreatedAt    int64  `db:"created_at"`
}

// Insert 新增一条账本记录（biz_type 数值码与字符串双写）
func (l *WalletLedger) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	if l.BizTypeStr == "" {
		l.BizTypeStr = bizTypeStr(l.BizType)
	}
	sqlStr := "INSERT INTO wallet_ledger (player_id, biz_type, biz_type_str, amount, before_amount, after_amount, bill_no, round_no, remark, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{l.PlayerID, l.BizType, l.BizTypeStr, l.Amount, l.BeforeAmount, l.AfterAmount, l.BillNo, l.RoundNo, l.Remark, l.TraceID, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

func bizTypeStr(code int) string {
	switch code {
	case constant.BalanceChangeSelection:
		return "selection"
	case constant.BalanceChangePrize:
		return "prize"
	case constant.BalanceChangeHouse:
		return "house"
	case constant.BalanceChangeWithdraw:
		return "withdraw"
	case constant.BalanceChangeDeposit:
		return "deposit"
	}
	return "unknown"
}

// ListLedgerByPlayer 按玩家倒序分页查询账本
func ListLedgerByPlayer(ctx context.Context, exec sqlx.ExtContext, playerID int64, offset, limit int) ([]WalletLedger, error) {
	sqlStr := `SELECT id, player_id, biz_type, biz_type_str, amount, before_amount, after_amount, bill_no, round_no, remark, trace_id, created_at
		FROM wallet_ledger WHERE player_id = ? ORDER BY id DESC LIMIT ?, ?`
	var list []WalletLedger
	if err := sqlx.SelectContext(ctx, exec, &list, sqlStr, playerID, offset, limit); err != nil {
		return nil, err
	}
	return list, nil
}

// ListLedgerByPlayerType 按玩家与账变类型倒序分页查询账本
func ListLedgerByPlayerType(ctx context.Context, exec sqlx.ExtContext, playerID int64, bizType, offset, limit int) ([]WalletLedger, error) {
	sqlStr := `SELECT id, player_id, biz_type, biz_type_str, amount, before_amount, after_amount, bill_no, round_no, remark, trace_id, created_at
		FROM wallet_ledger WHERE player_id = ? AND biz_type = ? ORDER BY id DESC LIMIT ?, ?`
	var list []WalletLedger
	if err := sqlx.SelectContext(ctx, exec, &list, sqlStr, playerID, bizType, offset, limit); err != nil {
		return nil, err
	}
	return list, nil
}
