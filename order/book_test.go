package order

import "testing"

func TestBookAddGetList(t *testing.T) {
	b := NewBook()
	if err := b.Add(Order{ID: 1001, Symbol: "AKT2603", Status: StatusNew}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.Add(Order{ID: 1002, Symbol: "SKB2603", Status: StatusNew}); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, ok := b.Get(1001)
	if !ok || got.Symbol != "AKT2603" {
		t.Fatalf("get failed: %+v %v", got, ok)
	}
	list := b.List()
	if len(list) != 2 || list[0].ID != 1001 || list[1].ID != 1002 {
		t.Fatalf("expected submission order, got %+v", list)
	}
	if err := b.Add(Order{ID: 1001}); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestBookTransition(t *testing.T) {
	b := NewBook()
	_ = b.Add(Order{ID: 1, Status: StatusNew})
	if err := b.Transition(1, StatusFilled); err != nil {
		t.Fatalf("new->filled: %v", err)
	}
	if err := b.Transition(1, StatusCancelled); err == nil {
		t.Fatalf("filled is terminal, expected error")
	}
	if err := b.Transition(99, StatusFilled); err == nil {
		t.Fatalf("expected not found error")
	}
}

func TestBookActiveAndCancelAll(t *testing.T) {
	b := NewBook()
	_ = b.Add(Order{ID: 1, Status: StatusNew})
	_ = b.Add(Order{ID: 2, Status: StatusFilled})
	_ = b.Add(Order{ID: 3, Status: StatusNew})

	ids := b.Active()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Fatalf("unexpected active ids %v", ids)
	}
	if n := b.CancelAll(); n != 2 {
		t.Fatalf("expected 2 cancelled, got %d", n)
	}
	if n := b.CancelAll(); n != 0 {
		t.Fatalf("second cancel should be a no-op, got %d", n)
	}
	o, _ := b.Get(2)
	if o.Status != StatusFilled {
		t.Fatalf("filled order must not change, got %s", o.Status)
	}
}

func TestBookReset(t *testing.T) {
	b := NewBook()
	_ = b.Add(Order{ID: 1, Status: StatusNew})
	if err := b.Reset([]Order{{ID: 5, Status: StatusNew}}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, ok := b.Get(1); ok {
		t.Fatalf("old order should be gone")
	}
	if b.Len() != 1 {
		t.Fatalf("expected 1 order after reset")
	}
	if err := b.Reset(nil); err != nil || b.Len() != 0 {
		t.Fatalf("reset to empty failed: %v len=%d", err, b.Len())
	}
}
