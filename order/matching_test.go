package order

import "testing"

func TestIsMarketable(t *testing.T) {
	cases := []struct {
		name string
		side Side
		px   float64
		last float64
		want bool
	}{
		{"买价高于最新价", SideBuy, 1001, 1000, true},
		{"买价等于最新价", SideBuy, 1000, 1000, true},
		{"买价低于最新价", SideBuy, 999, 1000, false},
		{"卖价低于最新价", SideSell, 999, 1000, true},
		{"卖价等于最新价", SideSell, 1000, 1000, true},
		{"卖价高于最新价", SideSell, 1001, 1000, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := Order{Side: tc.side, Price: tc.px}
			if got := IsMarketable(o, tc.last); got != tc.want {
				t.Fatalf("IsMarketable=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestFeeFor(t *testing.T) {
	if FeeFor(3) != 6 {
		t.Fatalf("default fee should be 2 per lot")
	}
	f := FeeSchedule{PerLot: 1.5}
	if f.FeeFor(4) != 6 {
		t.Fatalf("custom fee wrong: %v", f.FeeFor(4))
	}
}
