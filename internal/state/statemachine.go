package state

import "fmt"

// State 彩票周期状态（循环，无终态）
const (
	StateWaitingForPlayer = "waiting_for_player" // 等待首注（空闲）
	StateActive           = "active"             // 选号进行中
	StateAwaitingRandom   = "awaiting_random"    // 回合已截止，待请求随机数
	StateRest             = "rest"               // 休整期（随机数在途或已完结）
)

// Event 周期事件
const (
	EvtFirstSelection = "first_selection" // 首笔有效选号，懒启动回合
	EvtRoundEnd       = "round_end"       // 到达回合截止时间
	EvtEntropyRequest = "entropy_request" // 发起随机数请求（零奖池则直接完结）
	EvtNextRound      = "next_round"      // 休整期结束，开放下一回合
)

// NextState 根据当前状态与事件计算下一个状态，非法转换报错
func NextState(cur, evt string) (string, error) {
	switch cur {
	case StateWaitingForPlayer:
		if evt == EvtFirstSelection {
			return StateActive, nil
		}
	case StateActive:
		if evt == EvtRoundEnd {
			return StateAwaitingRandom, nil
		}
	case StateAwaitingRandom:
		if evt == EvtEntropyRequest {
			return StateRest, nil
		}
	case StateRest:
		if evt == EvtNextRound {
			return StateWaitingForPlayer, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}
