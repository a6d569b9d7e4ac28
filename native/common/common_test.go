package common

import (
	"errors"
	"fmt"
	"testing"

	"creditguild/core/state"
	"creditguild/storage"
)

func TestClassifiedErrorsMatchClass(t *testing.T) {
	errCeiling := NewError(ErrAdmissionDenied, "lending engine: debt ceiling reached")
	wrapped := fmt.Errorf("borrow: %w", errCeiling)

	if !errors.Is(wrapped, errCeiling) {
		t.Fatalf("expected sentinel match")
	}
	if !errors.Is(wrapped, ErrAdmissionDenied) {
		t.Fatalf("expected class match")
	}
	if errors.Is(wrapped, ErrInvalidState) {
		t.Fatalf("unexpected class match")
	}
	if Class(wrapped) != ErrAdmissionDenied {
		t.Fatalf("unexpected class: %v", Class(wrapped))
	}
	if ClassName(wrapped) != "admission_denied" {
		t.Fatalf("unexpected class name: %s", ClassName(wrapped))
	}
	if ClassName(errors.New("boom")) != "internal" || ClassName(nil) != "ok" {
		t.Fatalf("unexpected class names for unclassified errors")
	}
}

func TestPolicyAuthorize(t *testing.T) {
	policy := DefaultPolicy()
	anyone := Caller{Address: [20]byte{1}}
	governor := Caller{Address: [20]byte{2}, Roles: []Role{RoleGovernor}}
	lending := ModuleCaller([20]byte{3}, RoleLendingModule)

	tests := []struct {
		name   string
		op     Operation
		caller Caller
		ok     bool
	}{
		{"public borrow", OpBorrow, anyone, true},
		{"public bid", OpBid, anyone, true},
		{"setter needs governor", OpSetRateLimit, anyone, false},
		{"governor setter", OpSetRateLimit, governor, true},
		{"governor pauses", OpPause, governor, true},
		{"withdraw needs withdrawer", OpWithdrawSurplus, governor, false},
		{"lending depletes", OpDeplete, lending, true},
		{"account cannot deplete", OpDeplete, governor, false},
		{"lending cannot resolve", OpResolveAuction, lending, false},
		{"unknown op", Operation("mystery"), governor, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Authorize(tc.op, tc.caller)
			if tc.ok && err != nil {
				t.Fatalf("expected authorization, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Governor ")
	if err != nil || role != RoleGovernor {
		t.Fatalf("unexpected parse result %q %v", role, err)
	}
	if _, err := ParseRole(string(RoleLendingModule)); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("module roles must not be grantable: %v", err)
	}
}

func TestStatePausesGuard(t *testing.T) {
	txn := state.NewManager(storage.NewMemDB()).Begin()
	defer txn.Discard()
	pauses := NewStatePauses(txn)

	if err := Guard(pauses, "lending"); err != nil {
		t.Fatalf("unexpected guard error: %v", err)
	}
	if err := pauses.SetPaused("Lending", true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := Guard(pauses, "lending"); !errors.Is(err, ErrModulePaused) || !errors.Is(err, ErrAdmissionDenied) {
		t.Fatalf("expected paused admission error, got %v", err)
	}
	if err := Guard(pauses, "auction"); err != nil {
		t.Fatalf("other modules stay open: %v", err)
	}
	if err := pauses.SetPaused("lending", false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := Guard(nil, "lending"); err != nil {
		t.Fatalf("nil view must allow: %v", err)
	}
	if err := pauses.SetPaused(" ", true); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected config error, got %v", err)
	}
}
