package service

import (
	"testing"

	"github.com/domumdigital/OneHundred/internal/config"
	"github.com/domumdigital/OneHundred/internal/model"
)

func TestCircularDistance(t *testing.T) {
	cases := []struct {
		a, b, total, want int
	}{
		{10, 10, 100, 0},
		{10, 13, 100, 3},
		{13, 10, 100, 3},
		{1, 100, 100, 1},  // 首尾相邻
		{2, 99, 100, 3},   // 跨界更短
		{1, 50, 100, 49},
		{1, 51, 100, 50},  // 正对面
		{1, 52, 100, 49},
		{1, 2, 2, 1},
	}
	for _, c := range cases {
		if got := CircularDistance(c.a, c.b, c.total); got != c.want {
			t.Fatalf("CircularDistance(%d,%d,%d) = %d, want %d", c.a, c.b, c.total, got, c.want)
		}
	}
}

func rn(number int, playerID int64) model.RoundNumber {
	return model.RoundNumber{Number: number, PlayerID: playerID}
}

func TestPickRunnerUps(t *testing.T) {
	// 三位玩家分别持有 7、9、50，开奖号码 10：
	// 9 距离1，7 距离3，50 距离40 -> 亚军为 9、7
	numbers := []model.RoundNumber{rn(7, 1), rn(9, 2), rn(50, 3)}
	got := pickRunnerUps(numbers, 10, 100)
	if len(got) != 2 {
		t.Fatalf("want 2 runner-ups, got %d", len(got))
	}
	if got[0].Number != 9 || got[0].PlayerID != 2 {
		t.Fatalf("first runner-up = %+v, want number 9 player 2", got[0])
	}
	if got[1].Number != 7 || got[1].PlayerID != 1 {
		t.Fatalf("second runner-up = %+v, want number 7 player 1", got[1])
	}
}

func TestPickRunnerUpsTieBreak(t *testing.T) {
	// 8 与 12 距离开奖号码 10 都是 2：同距按号码升序，8 在前
	numbers := []model.RoundNumber{rn(12, 1), rn(8, 2)}
	got := pickRunnerUps(numbers, 10, 100)
	if len(got) != 2 {
		t.Fatalf("want 2 runner-ups, got %d", len(got))
	}
	if got[0].Number != 8 {
		t.Fatalf("tie break failed: first = %d, want 8", got[0].Number)
	}
	if got[1].Number != 12 {
		t.Fatalf("tie break failed: second = %d, want 12", got[1].Number)
	}
}

func TestPickRunnerUpsExcludesWinningNumber(t *testing.T) {
	numbers := []model.RoundNumber{rn(10, 1), rn(11, 2)}
	got := pickRunnerUps(numbers, 10, 100)
	if len(got) != 1 {
		t.Fatalf("want 1 runner-up, got %d", len(got))
	}
	if got[0].Number != 11 {
		t.Fatalf("runner-up = %d, want 11", got[0].Number)
	}
}

func TestPickRunnerUpsNoPlayerDedup(t *testing.T) {
	// 同一玩家持有两个最近号码：允许占据两个名次
	numbers := []model.RoundNumber{rn(9, 7), rn(11, 7), rn(30, 8)}
	got := pickRunnerUps(numbers, 10, 100)
	if len(got) != 2 {
		t.Fatalf("want 2 runner-ups, got %d", len(got))
	}
	if got[0].PlayerID != 7 || got[1].PlayerID != 7 {
		t.Fatalf("same player should hold both slots, got %+v", got)
	}
}

func TestPickRunnerUpsWraparound(t *testing.T) {
	// 开奖号码 1：100 距离1（跨界），5 距离4
	numbers := []model.RoundNumber{rn(5, 1), rn(100, 2)}
	got := pickRunnerUps(numbers, 1, 100)
	if got[0].Number != 100 {
		t.Fatalf("wraparound neighbor should rank first, got %d", got[0].Number)
	}
}

func splitCfg() *config.LotteryConfig {
	return &config.LotteryConfig{
		TotalNumbers:      100,
		WinnerBps:         5000,
		RunnerUpBps:       1500,
		HouseWinnerBps:    2000,
		NoWinnerRunnerBps: 3000,
		HouseNoWinnerBps:  4000,
		HouseFeeBps:       5000,
	}
}

func TestComputeSplitWinnerPath(t *testing.T) {
	lc := splitCfg()
	sp := computeSplit(10000, lc, true, 2)
	if sp.Winner != 5000 || sp.Runner1 != 1500 || sp.Runner2 != 1500 || sp.House != 2000 {
		t.Fatalf("unexpected split: %+v", sp)
	}
	if sp.Winner+sp.Runner1+sp.Runner2+sp.House != 10000 {
		t.Fatalf("split does not sum to pot: %+v", sp)
	}
}

func TestComputeSplitNoWinnerPath(t *testing.T) {
	lc := splitCfg()
	sp := computeSplit(10000, lc, false, 2)
	if sp.Winner != 0 {
		t.Fatalf("no-winner path must not pay winner: %+v", sp)
	}
	if sp.Runner1 != 3000 || sp.Runner2 != 3000 || sp.House != 4000 {
		t.Fatalf("unexpected split: %+v", sp)
	}
}

func TestComputeSplitTruncationGoesToHouse(t *testing.T) {
	lc := splitCfg()
	// 101 * 5000/10000 = 50（截断），余数落入庄家
	sp := computeSplit(101, lc, true, 2)
	sum := sp.Winner + sp.Runner1 + sp.Runner2 + sp.House
	if sum != 101 {
		t.Fatalf("split sums to %d, want 101: %+v", sum, sp)
	}
	if sp.Winner != 50 || sp.Runner1 != 15 || sp.Runner2 != 15 {
		t.Fatalf("unexpected truncated shares: %+v", sp)
	}
	if sp.House != 21 {
		t.Fatalf("house should absorb remainder: %+v", sp)
	}
}

func TestComputeSplitVacantSlotsGoToHouse(t *testing.T) {
	lc := splitCfg()
	// 只有一个亚军：第二名次空缺，份额归庄家
	sp := computeSplit(10000, lc, true, 1)
	if sp.Runner2 != 0 {
		t.Fatalf("vacant slot must be zero: %+v", sp)
	}
	if sp.House != 10000-5000-1500 {
		t.Fatalf("vacant share should fall to house: %+v", sp)
	}

	// 无任何亚军
	sp = computeSplit(10000, lc, true, 0)
	if sp.Runner1 != 0 || sp.Runner2 != 0 || sp.House != 5000 {
		t.Fatalf("unexpected split with no runners: %+v", sp)
	}
}

func TestComputeSplitZeroPot(t *testing.T) {
	lc := splitCfg()
	sp := computeSplit(0, lc, true, 2)
	if sp.Winner != 0 || sp.Runner1 != 0 || sp.Runner2 != 0 || sp.House != 0 {
		t.Fatalf("zero pot must produce zero split: %+v", sp)
	}
}
