package events

import (
	"math/big"
	"testing"
)

func TestTokenSupplyEvent(t *testing.T) {
	evt := TokenSupply{
		Denom:  " CREDIT ",
		Total:  big.NewInt(5000),
		Delta:  big.NewInt(250),
		Reason: SupplyReasonMint,
	}.Event()
	if evt == nil {
		t.Fatalf("expected event")
	}
	if evt.Type != TypeTokenSupply {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["denom"] != "credit" {
		t.Fatalf("unexpected denom attr: %s", evt.Attributes["denom"])
	}
	if evt.Attributes["total"] != "5000" || evt.Attributes["delta"] != "250" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
	if evt.Attributes["reason"] != SupplyReasonMint {
		t.Fatalf("unexpected reason: %s", evt.Attributes["reason"])
	}
}

func TestBufferFlushesOnlyOnDemand(t *testing.T) {
	var buf Buffer
	ring := NewRing(2)
	buf.Emit(LoanOpened{LoanID: 1, Market: "weth", Principal: big.NewInt(10)})
	buf.Emit(AuctionForgiven{LoanID: 1})
	buf.Emit(nil)
	if buf.Len() != 2 {
		t.Fatalf("expected 2 buffered events, got %d", buf.Len())
	}
	if got := ring.Since(0); len(got) != 0 {
		t.Fatalf("ring must stay empty before flush")
	}

	buf.Flush(ring)
	if buf.Len() != 0 {
		t.Fatalf("flush must clear the buffer")
	}
	got := ring.Since(0)
	if len(got) != 2 || got[0].Event.Type != TypeLoanOpened || got[1].Sequence != 2 {
		t.Fatalf("unexpected ring contents: %+v", got)
	}
	if got[0].Event.Attr("principal") != "10" {
		t.Fatalf("unexpected principal attr: %s", got[0].Event.Attr("principal"))
	}

	buf.Emit(MultiplierUpdated{Previous: big.NewInt(2), Current: big.NewInt(1)})
	buf.Flush(ring)
	got = ring.Since(1)
	if len(got) != 2 || got[1].Event.Type != TypeMultiplierUpdated {
		t.Fatalf("ring must retain only the newest entries: %+v", got)
	}
}

func TestSurplusBufferEventGlobalMarket(t *testing.T) {
	evt := SurplusBufferUpdated{Reason: BufferReasonDonate, Delta: big.NewInt(5), Level: big.NewInt(5)}.Event()
	if evt.Attributes["market"] != "global" {
		t.Fatalf("expected global market label, got %s", evt.Attributes["market"])
	}
}
