package config

import (
	"testing"
)

func validLottery() LotteryConfig {
	return LotteryConfig{
		RoundDurationSec:    300,
		RestPeriodSec:       60,
		ClosingWindowSec:    10,
		SelectionCost:       100,
		MaxPerPlayer:        10,
		TotalNumbers:        100,
		WinnerBps:           5000,
		RunnerUpBps:         1500,
		HouseWinnerBps:      2000,
		NoWinnerRunnerBps:   3000,
		HouseNoWinnerBps:    4000,
		HouseFeeBps:         5000,
		AdminPlatformID:     1,
		AdminPlatformUserID: "house_admin",
	}
}

func TestLotteryValidateOK(t *testing.T) {
	lc := validLottery()
	if err := lc.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestLotteryValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*LotteryConfig)
	}{
		{"zero duration", func(lc *LotteryConfig) { lc.RoundDurationSec = 0 }},
		{"zero rest", func(lc *LotteryConfig) { lc.RestPeriodSec = 0 }},
		{"closing window too big", func(lc *LotteryConfig) { lc.ClosingWindowSec = lc.RoundDurationSec }},
		{"negative closing window", func(lc *LotteryConfig) { lc.ClosingWindowSec = -1 }},
		{"zero cost", func(lc *LotteryConfig) { lc.SelectionCost = 0 }},
		{"zero max per player", func(lc *LotteryConfig) { lc.MaxPerPlayer = 0 }},
		{"one number", func(lc *LotteryConfig) { lc.TotalNumbers = 1 }},
		{"bps over denom", func(lc *LotteryConfig) { lc.WinnerBps = 10001 }},
		{"negative bps", func(lc *LotteryConfig) { lc.HouseFeeBps = -1 }},
		// 有中奖者路径：winner + 2*runner + house 必须恰好 10000
		{"winner path under", func(lc *LotteryConfig) { lc.WinnerBps = 4999 }},
		{"winner path over", func(lc *LotteryConfig) { lc.HouseWinnerBps = 2001 }},
		// 无中奖者路径：2*runner + house 必须恰好 10000
		{"no-winner path under", func(lc *LotteryConfig) { lc.NoWinnerRunnerBps = 2999 }},
		{"no-winner path over", func(lc *LotteryConfig) { lc.HouseNoWinnerBps = 4001 }},
	}
	for _, c := range cases {
		lc := validLottery()
		c.mutate(&lc)
		if err := lc.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", c.name)
		}
	}
}

func TestLotteryLockIsOneWay(t *testing.T) {
	if LotteryLocked() {
		t.Fatalf("lock must start released")
	}
	LockLottery()
	if !LotteryLocked() {
		t.Fatalf("lock must hold after LockLottery")
	}
	// 再次上锁是幂等的
	LockLottery()
	if !LotteryLocked() {
		t.Fatalf("lock must stay held")
	}
}
