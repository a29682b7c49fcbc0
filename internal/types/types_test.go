package types

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestOverlaps(t *testing.T) {
	a := Finding{Start: 0, End: 5}
	if !a.Overlaps(Finding{Start: 4, End: 8}) {
		t.Fatal("expected overlap at byte 4")
	}
	if a.Overlaps(Finding{Start: 5, End: 8}) {
		t.Fatal("adjacent spans must not overlap")
	}
}

func TestCheckText(t *testing.T) {
	if err := CheckText("电话 13912345678"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckText(string([]byte{0xff, 0xfe})); !errors.Is(err, ErrInvalidText) {
		t.Fatalf("expected ErrInvalidText, got %v", err)
	}
}

func TestCountKinds(t *testing.T) {
	got := CountKinds([]Finding{{Kind: "email"}, {Kind: "email"}, {Kind: "phone_cn"}})
	if got["email"] != 2 || got["phone_cn"] != 1 {
		t.Fatalf("unexpected counts: %v", got)
	}
}
