package order

import "testing"

func TestStatusConstants(t *testing.T) {
	if StatusNew == "" || StatusFilled == "" || StatusCancelled == "" {
		t.Fatalf("status constants not set")
	}
}

func TestSideEffectValid(t *testing.T) {
	if !SideBuy.Valid() || !SideSell.Valid() || Side("hold").Valid() {
		t.Fatalf("side validation wrong")
	}
	if !EffectOpen.Valid() || !EffectClose.Valid() || Effect("flip").Valid() {
		t.Fatalf("effect validation wrong")
	}
}

func TestStateMachineTransitions(t *testing.T) {
	sm := NewStateMachine()
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusNew, StatusFilled, true},
		{StatusNew, StatusCancelled, true},
		{StatusFilled, StatusCancelled, false},
		{StatusCancelled, StatusFilled, false},
		{StatusCancelled, StatusNew, false},
		{StatusNew, StatusNew, false},
	}
	for _, tc := range cases {
		err := sm.ValidateTransition(tc.from, tc.to)
		if (err == nil) != tc.ok {
			t.Fatalf("%s -> %s: got err=%v, want ok=%v", tc.from, tc.to, err, tc.ok)
		}
	}
	if !sm.IsFinalState(StatusFilled) || !sm.IsFinalState(StatusCancelled) || sm.IsFinalState(StatusNew) {
		t.Fatalf("final state detection wrong")
	}
}

func TestFillTradeID(t *testing.T) {
	if got := FillTradeID(1001); got != "T1001" {
		t.Fatalf("unexpected trade id %s", got)
	}
}
