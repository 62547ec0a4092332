package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/domumdigital/OneHundred/common"
	"github.com/domumdigital/OneHundred/common/constant"
	chelper "github.com/domumdigital/OneHundred/common/helper"
	"github.com/domumdigital/OneHundred/internal/config"
	infmysql "github.com/domumdigital/OneHundred/internal/infra/mysql"
	infmq "github.com/domumdigital/OneHundred/internal/infra/rocketmq"
	"github.com/domumdigital/OneHundred/internal/metrics"
	"github.com/domumdigital/OneHundred/internal/model"
)

var (
	ErrNoPayouts            = errors.New("no pending payouts")
	ErrTransferFailed       = errors.New("payout transfer failed")
	ErrZeroWithdraw         = errors.New("withdraw amount must be positive")
	ErrInsufficientTreasury = errors.New("insufficient treasury balance")
)

type ClaimInput struct {
	PlatformID     int8
	PlatformUserID string
	TraceID        string
}

type ClaimOutput struct {
	Amount       string // 本次领取金额
	RemainAmount string // 领取后钱包余额
}

type WithdrawInput struct {
	Amount   string
	Operator string
	TraceID  string
}

type WithdrawOutput struct {
	Amount       string
	Treasury     string // 提取后金库余额
	RemainAmount string // 管理员钱包余额
}

type PayoutService interface {
	Claim(ctx context.Context, in ClaimInput) (*ClaimOutput, error)
	WithdrawTreasury(ctx context.Context, in WithdrawInput) (*WithdrawOutput, error)
}

type payoutService struct{}

func NewPayoutService() PayoutService { return &payoutService{} }

// Claim 领取待领奖金：清零待领账本后转入钱包，同一事务内完成
// 转账失败整体回滚，待领余额保持不变
func (s *payoutService) Claim(ctx context.Context, in ClaimInput) (*ClaimOutput, error) {

	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordClaim(result, start) }()

	fmt.Printf("[Payout] 收到领奖请求: platform_id=%d, platform_user_id=%s, trace_id=%s\n",
		in.PlatformID, in.PlatformUserID, in.TraceID)

	// 资金转移入口，先取进程内互斥锁
	transferMu.Lock()
	defer transferMu.Unlock()

	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	player, err := getOrCreatePlayerInTx(txCtx, tx, in.PlatformID, in.PlatformUserID, "")
	if err != nil {
		return nil, err
	}
	// 禁止参与或禁止领奖的玩家都不能领取
	if player.Status == constant.PlayerBaned || player.Status == constant.PlayerNotAllowWithdraw {
		fmt.Printf("[Payout] 玩家状态不允许领奖: player_id=%d, status=%d, trace_id=%s\n",
			player.ID, player.Status, in.TraceID)
		return nil, ErrPlayerDisabled
	}

	amount, err := model.GetPayoutForUpdate(txCtx, tx, player.ID)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		fmt.Printf("[Payout] 无可领奖金: player_id=%d, trace_id=%s\n", player.ID, in.TraceID)
		return nil, ErrNoPayouts
	}

	// 先清零再转账；任一步失败整体回滚
	if err := model.ZeroPayout(txCtx, tx, player.ID); err != nil {
		return nil, errors.Join(ErrTransferFailed, err)
	}
	if err := model.AddBalance(txCtx, tx, player.ID, amount); err != nil {
		return nil, errors.Join(ErrTransferFailed, err)
	}

	ledger := &model.WalletLedger{
		PlayerID:     player.ID,
		BizType:      constant.BalanceChangePrize,
		Amount:       amount,
		BeforeAmount: player.Balance,
		AfterAmount:  player.Balance + amount,
		Remark:       "prize claim",
		TraceID:      in.TraceID,
	}
	if err := ledger.Insert(txCtx, tx); err != nil {
		return nil, errors.Join(ErrTransferFailed, err)
	}

	payload := map[string]any{
		"event":     "payout_claimed",
		"player_id": player.ID,
		"amount":    amount,
	}
	bizKey := fmt.Sprintf("claim-%d-%d", player.ID, common.NowMs())
	if err := model.CreateOutbox(txCtx, tx, infmq.TopicLotteryEvents, bizKey, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Payout] 提交事务失败: error=%v, player_id=%d, trace_id=%s\n",
			err, player.ID, in.TraceID)
		return nil, err
	}

	result = "success"
	fmt.Printf("[Payout] 领奖成功: player_id=%d, amount=%d, trace_id=%s\n",
		player.ID, amount, in.TraceID)
	return &ClaimOutput{
		Amount:       chelper.CentsToString(amount),
		RemainAmount: chelper.CentsToString(player.Balance + amount),
	}, nil
}

// WithdrawTreasury 管理员提取金库：校验余额后从金库转入管理员钱包
func (s *payoutService) WithdrawTreasury(ctx context.Context, in WithdrawInput) (*WithdrawOutput, error) {

	lc := config.GetLottery()
	if lc == nil {
		return nil, errors.New("lottery config not loaded")
	}

	amount, err := chelper.StringToCents(strings.TrimSpace(in.Amount))
	if err != nil || amount <= 0 {
		fmt.Printf("[Payout] 无效的提取金额: amount=%s, trace_id=%s\n", in.Amount, in.TraceID)
		return nil, ErrZeroWithdraw
	}

	// 资金转移入口，先取进程内互斥锁
	transferMu.Lock()
	defer transferMu.Unlock()

	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	st, err := model.GetStateForUpdate(txCtx, tx, true)
	if err != nil {
		return nil, err
	}
	if st.Treasury < amount {
		fmt.Printf("[Payout] 金库余额不足: treasury=%d, amount=%d, trace_id=%s\n",
			st.Treasury, amount, in.TraceID)
		return nil, ErrInsufficientTreasury
	}

	adminID, err := model.EnsurePlayer(txCtx, tx, lc.AdminPlatformID, lc.AdminPlatformUserID, "house")
	if err != nil {
		return nil, err
	}
	admin, err := model.GetPlayerForUpdate(txCtx, tx, adminID)
	if err != nil {
		return nil, err
	}

	if err := model.AddTreasury(txCtx, tx, -amount); err != nil {
		return nil, err
	}
	if err := model.AddBalance(txCtx, tx, adminID, amount); err != nil {
		return nil, err
	}

	ledger := &model.WalletLedger{
		PlayerID:     adminID,
		BizType:      constant.BalanceChangeWithdraw,
		Amount:       amount,
		BeforeAmount: admin.Balance,
		AfterAmount:  admin.Balance + amount,
		Remark:       "treasury withdraw",
		TraceID:      in.TraceID,
	}
	if err := ledger.Insert(txCtx, tx); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"event":    "treasury_withdrawn",
		"amount":   amount,
		"operator": in.Operator,
	}
	bizKey := fmt.Sprintf("withdraw-%d", common.NowMs())
	if err := model.CreateOutbox(txCtx, tx, infmq.TopicLotteryEvents, bizKey, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	fmt.Printf("[Payout] 金库提取成功: amount=%d, treasury_left=%d, operator=%s, trace_id=%s\n",
		amount, st.Treasury-amount, in.Operator, in.TraceID)
	out := &WithdrawOutput{
		Amount:       chelper.CentsToString(amount),
		Treasury:     chelper.CentsToString(st.Treasury - amount),
		RemainAmount: chelper.CentsToString(admin.Balance + amount),
	}
	return out, nil
}
