package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/domumdigital/OneHundred/common/constant"
	"github.com/domumdigital/OneHundred/internal/config"
	infmq "github.com/domumdigital/OneHundred/internal/infra/rocketmq"
	"github.com/domumdigital/OneHundred/internal/model"

	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

var (
	ErrPrizeAlreadyDistributed = errors.New("prize already distributed for round")
	ErrOwnerTransferFailed     = errors.New("house share transfer failed")
)

// bpsDenom 万分比基数
const bpsDenom = int64(10000)

// CircularDistance 环形距离：min(|a-b|, total-|a-b|)
// 号码 1 与 total 相邻
func CircularDistance(a, b, total int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if total-d < d {
		return total - d
	}
	return d
}

// runnerUpSlot 亚军名次：号码与归属玩家
type runnerUpSlot struct {
	Number   int
	PlayerID int64
}

// pickRunnerUps 从已售号码中选出至多两个亚军名次
// 规则：排除开奖号码本身；按环形距离升序、同距按号码升序；
// 不按玩家去重——同一玩家可占据两个名次
func pickRunnerUps(numbers []model.RoundNumber, winning, total int) []runnerUpSlot {
	cands := make([]runnerUpSlot, 0, len(numbers))
	dist := make(map[int]int, len(numbers))
	for _, rn := range numbers {
		if rn.Number == winning {
			continue
		}
		cands = append(cands, runnerUpSlot{Number: rn.Number, PlayerID: rn.PlayerID})
		dist[rn.Number] = CircularDistance(rn.Number, winning, total)
	}
	sort.Slice(cands, func(i, j int) bool {
		di, dj := dist[cands[i].Number], dist[cands[j].Number]
		if di != dj {
			return di < dj
		}
		return cands[i].Number < cands[j].Number
	})
	if len(cands) > 2 {
		cands = cands[:2]
	}
	return cands
}

// prizeSplit 奖池分配结果（最小货币单位）
// 约束：winner + runner1 + runner2 + house == pot（整除余数全部并入 house）
type prizeSplit struct {
	Winner  int64
	Runner1 int64
	Runner2 int64
	House   int64
}

// computeSplit 按万分比计算分配
// hasWinner 决定走哪组比例；空缺名次份额自然落入 house（house = pot - 实付）
func computeSplit(pot int64, lc *config.LotteryConfig, hasWinner bool, runnerCount int) prizeSplit {
	var sp prizeSplit
	if pot <= 0 {
		return sp
	}
	var runnerBps int64
	if hasWinner {
		sp.Winner = pot * lc.WinnerBps / bpsDenom
		runnerBps = lc.RunnerUpBps
	} else {
		runnerBps = lc.NoWinnerRunnerBps
	}
	if runnerCount >= 1 {
		sp.Runner1 = pot * runnerBps / bpsDenom
	}
	if runnerCount >= 2 {
		sp.Runner2 = pot * runnerBps / bpsDenom
	}
	sp.House = pot - sp.Winner - sp.Runner1 - sp.Runner2
	return sp
}

// settleRound 回合结算：在履约事务内调用，调用方已持有状态行与回合行锁
// 失败（包括庄家入账失败）返回错误并由调用方回滚整个事务
func settleRound(ctx context.Context, tx *sqlx.Tx, round *model.LotteryRound, winningNumber int, operator, traceID string) error {
	lc := config.GetLottery()
	if lc == nil {
		return errors.New("lottery config not loaded")
	}

	numbers, err := model.ListRoundNumbers(ctx, tx, round.RoundNo)
	if err != nil {
		return fmt.Errorf("failed to list round numbers: %w", err)
	}

	// 头奖：开奖号码的归属玩家（可能无人买中，winnerID=0）
	winnerID, err := model.GetNumberOwner(ctx, tx, round.RoundNo, winningNumber)
	if err != nil {
		return fmt.Errorf("failed to resolve winning number owner: %w", err)
	}
	runners := pickRunnerUps(numbers, winningNumber, lc.TotalNumbers)
	sp := computeSplit(round.Pot, lc, winnerID != 0, len(runners))

	// 庄家份额再分两块：金库留存 + 管理员即时入账
	treasuryAmt := sp.House * lc.HouseFeeBps / bpsDenom
	adminAmt := sp.House - treasuryAmt

	var r1ID, r2ID int64
	var r1Amt, r2Amt int64
	if len(runners) >= 1 {
		r1ID, r1Amt = runners[0].PlayerID, sp.Runner1
	}
	if len(runners) >= 2 {
		r2ID, r2Amt = runners[1].PlayerID, sp.Runner2
	}

	// 派奖日志：唯一键防重复派奖
	dlog := &model.DistributionLog{
		RoundNo:           round.RoundNo,
		WinningNumber:     winningNumber,
		TotalPot:          round.Pot,
		WinnerPlayerID:    winnerID,
		WinnerAmount:      sp.Winner,
		RunnerUp1PlayerID: r1ID,
		RunnerUp1Amount:   r1Amt,
		RunnerUp2PlayerID: r2ID,
		RunnerUp2Amount:   r2Amt,
		HouseAmount:       sp.House,
		TreasuryAmount:    treasuryAmt,
		Operator:          operator,
		TraceID:           traceID,
	}
	if err := model.CreateDistributionLog(ctx, tx, dlog); err != nil {
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			fmt.Printf("[Prize] 回合已派过奖: round_no=%d, trace_id=%s\n", round.RoundNo, traceID)
			return ErrPrizeAlreadyDistributed
		}
		return err
	}

	// 获奖者入待领账本（拉取式，不直接进钱包）
	if winnerID != 0 && sp.Winner > 0 {
		if err := model.CreditPayout(ctx, tx, winnerID, sp.Winner); err != nil {
			return err
		}
	}
	if r1ID != 0 && r1Amt > 0 {
		if err := model.CreditPayout(ctx, tx, r1ID, r1Amt); err != nil {
			return err
		}
	}
	if r2ID != 0 && r2Amt > 0 {
		if err := model.CreditPayout(ctx, tx, r2ID, r2Amt); err != nil {
			return err
		}
	}

	// 庄家即时入账：失败则整体回滚
	if adminAmt > 0 {
		if err := creditAdminInTx(ctx, tx, lc, adminAmt, round.RoundNo, traceID); err != nil {
			fmt.Printf("[Prize] 庄家入账失败: error=%v, round_no=%d, amount=%d, trace_id=%s\n",
				err, round.RoundNo, adminAmt, traceID)
			return errors.Join(ErrOwnerTransferFailed, err)
		}
	}
	// 金库留存
	if treasuryAmt > 0 {
		if err := model.AddTreasury(ctx, tx, treasuryAmt); err != nil {
			return err
		}
	}

	if err := model.MarkCompleted(ctx, tx, round.RoundNo, winnerID, r1ID, r2ID); err != nil {
		return err
	}

	payload := map[string]any{
		"event":          "prize_distributed",
		"round_no":       round.RoundNo,
		"winning_number": winningNumber,
		"total_pot":      round.Pot,
		"winner":         winnerID,
		"winner_amount":  sp.Winner,
		"runner_up1":     r1ID,
		"runner_up2":     r2ID,
		"house_amount":   sp.House,
	}
	bizKey := fmt.Sprintf("prize-%d", round.RoundNo)
	if err := model.CreateOutbox(ctx, tx, infmq.TopicLotteryEvents, bizKey, payload); err != nil {
		return err
	}

	fmt.Printf("[Prize] 结算完成: round_no=%d, winning=%d, pot=%d, winner=%d(%d), r1=%d(%d), r2=%d(%d), house=%d, treasury=%d, trace_id=%s\n",
		round.RoundNo, winningNumber, round.Pot, winnerID, sp.Winner, r1ID, r1Amt, r2ID, r2Amt, sp.House, treasuryAmt, traceID)
	return nil
}

// creditAdminInTx 管理员（庄家）钱包即时入账并记账
func creditAdminInTx(ctx context.Context, tx *sqlx.Tx, lc *config.LotteryConfig, amount, roundNo int64, traceID string) error {
	adminID, err := model.EnsurePlayer(ctx, tx, lc.AdminPlatformID, lc.AdminPlatformUserID, "house")
	if err != nil {
		return err
	}
	admin, err := model.GetPlayerForUpdate(ctx, tx, adminID)
	if err != nil {
		return err
	}
	if err := model.AddBalance(ctx, tx, adminID, amount); err != nil {
		return err
	}
	ledger := &model.WalletLedger{
		PlayerID:     adminID,
		BizType:      constant.BalanceChangeHouse,
		Amount:       amount,
		BeforeAmount: admin.Balance,
		AfterAmount:  admin.Balance + amount,
		RoundNo:      roundNo,
		Remark:       "house share",
		TraceID:      traceID,
	}
	return ledger.Insert(ctx, tx)
}
