package crypto

import (
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	module := ModuleAddress("lending")
	addr := MustNewAddress(CreditPrefix, module[:])
	encoded := addr.String()
	if !strings.HasPrefix(encoded, "cg1") {
		t.Fatalf("unexpected encoding %s", encoded)
	}
	raw, err := ParseAddress(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if raw != addr.Raw() {
		t.Fatalf("round trip mismatch")
	}
	if FormatAddress(raw) != encoded {
		t.Fatalf("format mismatch")
	}
}

func TestParseAddressRejectsForeignPrefix(t *testing.T) {
	foreign := MustNewAddress("xyz", make([]byte, AddressLength)).String()
	if _, err := ParseAddress(foreign); err == nil {
		t.Fatalf("expected prefix error")
	}
	if _, err := ParseAddress("not-an-address"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestNewAddressLength(t *testing.T) {
	if _, err := NewAddress(CreditPrefix, []byte{1, 2, 3}); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestModuleAddressDeterministic(t *testing.T) {
	a := ModuleAddress("lending")
	b := ModuleAddress(" lending ")
	c := ModuleAddress("auction")
	if a != b {
		t.Fatalf("module address must ignore surrounding whitespace")
	}
	if a == c {
		t.Fatalf("distinct modules must not collide")
	}
}
