package auction

import (
	"math/big"
	"testing"
)

func TestQuoteSchedulePoints(t *testing.T) {
	a := &Auction{
		StartTime:        1_000,
		CallDebt:         big.NewInt(100),
		CollateralAmount: big.NewInt(100),
		MidPoint:         600,
		Duration:         1_200,
	}
	cases := []struct {
		name       string
		elapsed    uint64
		collateral int64
		credit     int64
	}{
		{name: "start", elapsed: 0, collateral: 0, credit: 100},
		{name: "quarter", elapsed: 150, collateral: 25, credit: 100},
		{name: "midpoint", elapsed: 600, collateral: 100, credit: 100},
		{name: "just after midpoint", elapsed: 601, collateral: 100, credit: 100},
		{name: "halfway through phase two", elapsed: 900, collateral: 100, credit: 50},
		{name: "one second before end", elapsed: 1_199, collateral: 100, credit: 1},
		{name: "end", elapsed: 1_200, collateral: 100, credit: 0},
		{name: "after end", elapsed: 5_000, collateral: 100, credit: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			collateral, credit := a.Quote(a.StartTime + tc.elapsed)
			if collateral.Cmp(big.NewInt(tc.collateral)) != 0 || credit.Cmp(big.NewInt(tc.credit)) != 0 {
				t.Fatalf("quote(%d) = (%s, %s), want (%d, %d)", tc.elapsed, collateral, credit, tc.collateral, tc.credit)
			}
		})
	}
}

func TestQuoteBeforeStartIsZeroElapsed(t *testing.T) {
	a := &Auction{StartTime: 50, CallDebt: big.NewInt(10), CollateralAmount: big.NewInt(10), MidPoint: 5, Duration: 10}
	collateral, credit := a.Quote(0)
	if collateral.Sign() != 0 || credit.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("unexpected quote before start: (%s, %s)", collateral, credit)
	}
}

func TestParamsValidate(t *testing.T) {
	cases := []struct {
		params Params
		ok     bool
	}{
		{Params{MidPoint: 600, Duration: 1_200}, true},
		{Params{MidPoint: 0, Duration: 1_200}, false},
		{Params{MidPoint: 1_200, Duration: 1_200}, false},
		{Params{MidPoint: 10, Duration: MaxDuration + 1}, false},
	}
	for _, tc := range cases {
		err := tc.params.Validate()
		if tc.ok != (err == nil) {
			t.Fatalf("validate(%+v) = %v", tc.params, err)
		}
	}
}
