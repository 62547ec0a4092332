package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/domumdigital/OneHundred/common"
	"github.com/domumdigital/OneHundred/internal/config"
	infmysql "github.com/domumdigital/OneHundred/internal/infra/mysql"
	"github.com/domumdigital/OneHundred/internal/model"
	"github.com/domumdigital/OneHundred/internal/state"
)

// MySQL 集成测试：设置 TEST_MYSQL_DSN 后运行，例如
// TEST_MYSQL_DSN='root:pass@tcp(127.0.0.1:3306)/onehundred_test?charset=utf8mb4'
// 建表幂等，可重复跑；数据用时间戳隔离，不做清库。

var (
	itOnce     sync.Once
	itSetupErr error
)

func itSetup(t *testing.T) {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}
	itOnce.Do(func() {
		db := common.InitDB(dsn, 2, 4)
		infmysql.UseDB(db.DB)
		for _, ddl := range itDDL {
			if _, err := db.Exec(ddl); err != nil {
				itSetupErr = err
				return
			}
		}
		config.SetCurrent(itConfig())
		itSetupErr = model.EnsureState(context.Background(), infmysql.SQLX(), state.StateWaitingForPlayer)
	})
	if itSetupErr != nil {
		t.Fatalf("integration setup failed: %v", itSetupErr)
	}
}

func itConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Lottery = config.LotteryConfig{
		RoundDurationSec:    60,
		RestPeriodSec:       5,
		ClosingWindowSec:    1,
		SelectionCost:       100,
		MaxPerPlayer:        10,
		TotalNumbers:        100,
		WinnerBps:           5000,
		RunnerUpBps:         1500,
		HouseWinnerBps:      2000,
		NoWinnerRunnerBps:   3000,
		HouseNoWinnerBps:    4000,
		HouseFeeBps:         5000,
		AdminPlatformID:     9,
		AdminPlatformUserID: "it-house-admin",
	}
	return cfg
}

var itDDL = []string{
	`CREATE TABLE IF NOT EXISTS lottery_state (
		id BIGINT NOT NULL PRIMARY KEY,
		phase VARCHAR(32) NOT NULL,
		current_round_no BIGINT NOT NULL DEFAULT 0,
		treasury BIGINT NOT NULL DEFAULT 0,
		config_locked TINYINT NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS lottery_rounds (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		round_no BIGINT NOT NULL,
		start_time BIGINT NOT NULL DEFAULT 0,
		end_time BIGINT NOT NULL DEFAULT 0,
		ended_at BIGINT NOT NULL DEFAULT 0,
		pot BIGINT NOT NULL DEFAULT 0,
		winning_number INT NOT NULL DEFAULT 0,
		winner_player_id BIGINT NOT NULL DEFAULT 0,
		runner_up1_player_id BIGINT NOT NULL DEFAULT 0,
		runner_up2_player_id BIGINT NOT NULL DEFAULT 0,
		round_ended TINYINT NOT NULL DEFAULT 0,
		entropy_requested TINYINT NOT NULL DEFAULT 0,
		number_generated TINYINT NOT NULL DEFAULT 0,
		completed TINYINT NOT NULL DEFAULT 0,
		trace_id VARCHAR(64) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL DEFAULT 0,
		UNIQUE KEY uk_round_no (round_no)
	)`,
	`CREATE TABLE IF NOT EXISTS round_numbers (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		round_no BIGINT NOT NULL,
		number INT NOT NULL,
		player_id BIGINT NOT NULL,
		created_at BIGINT NOT NULL DEFAULT 0,
		UNIQUE KEY uk_round_number (round_no, number)
	)`,
	`CREATE TABLE IF NOT EXISTS round_selections (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		round_no BIGINT NOT NULL,
		player_id BIGINT NOT NULL,
		numbers TEXT NOT NULL,
		selection_count INT NOT NULL DEFAULT 0,
		total_wagered BIGINT NOT NULL DEFAULT 0,
		trace_id VARCHAR(64) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL DEFAULT 0,
		UNIQUE KEY uk_round_player (round_no, player_id)
	)`,
	`CREATE TABLE IF NOT EXISTS pending_payouts (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		player_id BIGINT NOT NULL,
		balance BIGINT NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL DEFAULT 0,
		UNIQUE KEY uk_player (player_id)
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_ledger (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		player_id BIGINT NOT NULL,
		biz_type INT NOT NULL,
		biz_type_str VARCHAR(16) NOT NULL DEFAULT '',
		amount BIGINT NOT NULL DEFAULT 0,
		before_amount BIGINT NOT NULL DEFAULT 0,
		after_amount BIGINT NOT NULL DEFAULT 0,
		bill_no VARCHAR(64) NOT NULL DEFAULT '',
		round_no BIGINT NOT NULL DEFAULT 0,
		remark VARCHAR(255) NOT NULL DEFAULT '',
		trace_id VARCHAR(64) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS randomness_requests (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		request_id VARCHAR(64) NOT NULL,
		round_no BIGINT NOT NULL,
		consumed TINYINT NOT NULL DEFAULT 0,
		trace_id VARCHAR(64) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL DEFAULT 0,
		UNIQUE KEY uk_request_id (request_id)
	)`,
	`CREATE TABLE IF NOT EXISTS distribution_log (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		round_no BIGINT NOT NULL,
		winning_number INT NOT NULL DEFAULT 0,
		total_pot BIGINT NOT NULL DEFAULT 0,
		winner_player_id BIGINT NOT NULL DEFAULT 0,
		winner_amount BIGINT NOT NULL DEFAULT 0,
		runner_up1_player_id BIGINT NOT NULL DEFAULT 0,
		runner_up1_amount BIGINT NOT NULL DEFAULT 0,
		runner_up2_player_id BIGINT NOT NULL DEFAULT 0,
		runner_up2_amount BIGINT NOT NULL DEFAULT 0,
		house_amount BIGINT NOT NULL DEFAULT 0,
		treasury_amount BIGINT NOT NULL DEFAULT 0,
		operator VARCHAR(32) NOT NULL DEFAULT '',
		trace_id VARCHAR(64) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL DEFAULT 0,
		UNIQUE KEY uk_round_no (round_no)
	)`,
	`CREATE TABLE IF NOT EXISTS number_stats (
		number INT NOT NULL PRIMARY KEY,
		pick_count BIGINT NOT NULL DEFAULT 0,
		draw_count BIGINT NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS players (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		platform_id TINYINT NOT NULL,
		platform_user_id VARCHAR(64) NOT NULL,
		nickname VARCHAR(64) NOT NULL DEFAULT '',
		balance BIGINT NOT NULL DEFAULT 0,
		status TINYINT NOT NULL DEFAULT 1,
		created_at BIGINT NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL DEFAULT 0,
		UNIQUE KEY uk_platform_user (platform_id, platform_user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		idempotency_key VARCHAR(128) NOT NULL,
		purpose VARCHAR(32) NOT NULL DEFAULT '',
		ref VARCHAR(64) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL DEFAULT 0,
		UNIQUE KEY uk_idem_key (idempotency_key)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		topic VARCHAR(64) NOT NULL,
		biz_key VARCHAR(128) NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		status TINYINT NOT NULL DEFAULT 1,
		retry_count INT NOT NULL DEFAULT 0,
		last_error VARCHAR(255) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS round_event_audit (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		round_no BIGINT NOT NULL,
		event_type TINYINT NOT NULL,
		prev_state VARCHAR(32) NOT NULL DEFAULT '',
		next_state VARCHAR(32) NOT NULL DEFAULT '',
		operator VARCHAR(64) NOT NULL DEFAULT '',
		source VARCHAR(16) NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		trace_id VARCHAR(64) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL DEFAULT 0
	)`,
}

// 预置一个已截止、已发起随机数请求的待开奖回合
func itSeedAwaitingRound(t *testing.T, roundNo, pot int64) string {
	t.Helper()
	ctx := context.Background()
	db := infmysql.SQLX()

	round := &model.LotteryRound{RoundNo: roundNo, StartTime: common.NowMs() - 120000, EndTime: common.NowMs() - 60000}
	if err := round.Insert(ctx, db); err != nil {
		t.Fatalf("insert round: %v", err)
	}
	if err := model.MarkRoundEnded(ctx, db, roundNo, common.NowMs()-60000); err != nil {
		t.Fatalf("mark round ended: %v", err)
	}
	if err := model.MarkEntropyRequested(ctx, db, roundNo); err != nil {
		t.Fatalf("mark entropy requested: %v", err)
	}
	if err := model.AddPot(ctx, db, roundNo, pot); err != nil {
		t.Fatalf("add pot: %v", err)
	}

	requestID := fmt.Sprintf("it-req-%d", roundNo)
	req := &model.RandomnessRequest{RequestID: requestID, RoundNo: roundNo}
	if err := req.Insert(ctx, db); err != nil {
		t.Fatalf("insert randomness request: %v", err)
	}
	return requestID
}

func TestFulfillDuplicateRejected(t *testing.T) {
	itSetup(t)
	ctx := context.Background()
	db := infmysql.SQLX()

	roundNo := common.NowMs()
	requestID := itSeedAwaitingRound(t, roundNo, 10000)

	svc := NewEntropyService()
	out, err := svc.Fulfill(ctx, FulfillInput{RequestID: requestID, RandomValue: 41, Operator: "test", Source: "callback"})
	if err != nil {
		t.Fatalf("first fulfill failed: %v", err)
	}
	// 41 % 100 + 1
	if out.WinningNumber != 42 {
		t.Fatalf("winning number = %d, want 42", out.WinningNumber)
	}

	round, err := model.GetRound(ctx, db, roundNo)
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	if round.NumberGenerated != 1 || round.Completed != 1 {
		t.Fatalf("round flags not set after fulfill: %+v", round)
	}
	// 无人购号：全部奖池归庄家
	dlog, err := model.GetDistributionLog(ctx, db, roundNo)
	if err != nil {
		t.Fatalf("get distribution log: %v", err)
	}
	if dlog.HouseAmount != 10000 || dlog.WinnerPlayerID != 0 {
		t.Fatalf("unexpected distribution: %+v", dlog)
	}

	// 同一请求重复履约：请求已消费
	if _, err := svc.Fulfill(ctx, FulfillInput{RequestID: requestID, RandomValue: 41, Operator: "test", Source: "callback"}); !errors.Is(err, ErrInvalidRequestID) {
		t.Fatalf("duplicate fulfill = %v, want ErrInvalidRequestID", err)
	}

	// 同一回合的另一条在途请求：回合已开奖
	req2 := &model.RandomnessRequest{RequestID: requestID + "-b", RoundNo: roundNo}
	if err := req2.Insert(ctx, db); err != nil {
		t.Fatalf("insert second request: %v", err)
	}
	if _, err := svc.Fulfill(ctx, FulfillInput{RequestID: requestID + "-b", RandomValue: 7, Operator: "test", Source: "mq"}); !errors.Is(err, ErrNumberAlreadyGenerated) {
		t.Fatalf("replay fulfill = %v, want ErrNumberAlreadyGenerated", err)
	}
}

func TestClaimTwiceReturnsNoPayouts(t *testing.T) {
	itSetup(t)
	ctx := context.Background()
	db := infmysql.SQLX()

	userID := fmt.Sprintf("it-claim-%d", common.NowMs())
	playerID, err := model.EnsurePlayer(ctx, db, 7, userID, "claimer")
	if err != nil {
		t.Fatalf("ensure player: %v", err)
	}
	if err := model.CreditPayout(ctx, db, playerID, 5000); err != nil {
		t.Fatalf("credit payout: %v", err)
	}

	svc := NewPayoutService()
	out, err := svc.Claim(ctx, ClaimInput{PlatformID: 7, PlatformUserID: userID})
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if out.Amount != "50.00" {
		t.Fatalf("claim amount = %s, want 50.00", out.Amount)
	}

	p, err := model.GetPlayer(ctx, db, playerID)
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if p.Balance != 5000 {
		t.Fatalf("wallet balance = %d, want 5000", p.Balance)
	}
	pending, err := model.GetPayout(ctx, db, playerID)
	if err != nil {
		t.Fatalf("get payout: %v", err)
	}
	if pending != 0 {
		t.Fatalf("pending payout = %d, want 0 after claim", pending)
	}

	// 二次领取：已无可领奖金
	if _, err := svc.Claim(ctx, ClaimInput{PlatformID: 7, PlatformUserID: userID}); !errors.Is(err, ErrNoPayouts) {
		t.Fatalf("second claim = %v, want ErrNoPayouts", err)
	}
}

func TestSelectEchoesRoundPot(t *testing.T) {
	itSetup(t)
	ctx := context.Background()
	db := infmysql.SQLX()

	// 独立回合号段，懒启动从 base+1 开始
	base := common.NowMs() + 1000
	if err := model.UpdatePhaseAndRound(ctx, db, state.StateWaitingForPlayer, base); err != nil {
		t.Fatalf("reset state: %v", err)
	}

	userID := fmt.Sprintf("it-select-%d", base)
	playerID, err := model.EnsurePlayer(ctx, db, 7, userID, "picker")
	if err != nil {
		t.Fatalf("ensure player: %v", err)
	}
	if err := model.AddBalance(ctx, db, playerID, 10000); err != nil {
		t.Fatalf("fund player: %v", err)
	}

	svc := NewSelectionService()
	out, err := svc.SelectNumbers(ctx, SelectInput{
		PlatformID:     7,
		PlatformUserID: userID,
		Numbers:        []int{7, 9},
		PaidAmount:     "2.00",
		IdempotencyKey: fmt.Sprintf("it-sel-%d-a", base),
	})
	if err != nil {
		t.Fatalf("first select failed: %v", err)
	}
	if out.RoundNo != base+1 {
		t.Fatalf("round_no = %d, want %d", out.RoundNo, base+1)
	}
	if out.Pot != "2.00" {
		t.Fatalf("pot after first select = %s, want 2.00", out.Pot)
	}
	if out.RemainAmount != "98.00" {
		t.Fatalf("remain = %s, want 98.00", out.RemainAmount)
	}

	// 同一回合追加选号：奖池累计
	out2, err := svc.SelectNumbers(ctx, SelectInput{
		PlatformID:     7,
		PlatformUserID: userID,
		Numbers:        []int{11},
		PaidAmount:     "1.00",
		IdempotencyKey: fmt.Sprintf("it-sel-%d-b", base),
	})
	if err != nil {
		t.Fatalf("second select failed: %v", err)
	}
	if out2.Pot != "3.00" {
		t.Fatalf("pot after second select = %s, want 3.00", out2.Pot)
	}
}
