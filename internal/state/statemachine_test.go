package state

import (
	"testing"
)

func TestFullCycle(t *testing.T) {
	cur := StateWaitingForPlayer
	steps := []struct {
		evt  string
		want string
	}{
		{EvtFirstSelection, StateActive},
		{EvtRoundEnd, StateAwaitingRandom},
		{EvtEntropyRequest, StateRest},
		{EvtNextRound, StateWaitingForPlayer},
	}
	// 周期循环无终态，走两圈验证
	for round := 0; round < 2; round++ {
		for _, s := range steps {
			next, err := NextState(cur, s.evt)
			if err != nil {
				t.Fatalf("transition %s --%s--> failed: %v", cur, s.evt, err)
			}
			if next != s.want {
				t.Fatalf("transition %s --%s--> got %s, want %s", cur, s.evt, next, s.want)
			}
			cur = next
		}
	}
}

func TestInvalidTransitions(t *testing.T) {
	states := []string{StateWaitingForPlayer, StateActive, StateAwaitingRandom, StateRest}
	events := []string{EvtFirstSelection, EvtRoundEnd, EvtEntropyRequest, EvtNextRound}
	valid := map[string]string{
		StateWaitingForPlayer: EvtFirstSelection,
		StateActive:           EvtRoundEnd,
		StateAwaitingRandom:   EvtEntropyRequest,
		StateRest:             EvtNextRound,
	}

	for _, cur := range states {
		for _, evt := range events {
			next, err := NextState(cur, evt)
			if valid[cur] == evt {
				if err != nil {
					t.Fatalf("expected valid transition %s --%s-->, got error: %v", cur, evt, err)
				}
				continue
			}
			if err == nil {
				t.Fatalf("expected error for %s --%s-->, got %s", cur, evt, next)
			}
			if next != cur {
				t.Fatalf("invalid transition must not move state: %s --%s--> %s", cur, evt, next)
			}
		}
	}
}

func TestUnknownState(t *testing.T) {
	if _, err := NextState("bogus", EvtRoundEnd); err == nil {
		t.Fatalf("expected error for unknown state")
	}
}
