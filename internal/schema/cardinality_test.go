package schema

import (
	"errors"
	"testing"

	"atfxcore/pkg/odserr"
)

func TestBoundLegacyRoundTrip(t *testing.T) {
	for _, legacy := range []int{LegacyUnknown, LegacyUnbounded, 0, 1, 7} {
		b, err := BoundFromLegacy(legacy)
		if err != nil {
			t.Fatalf("BoundFromLegacy(%d): %v", legacy, err)
		}
		if got := b.Legacy(); got != legacy {
			t.Fatalf("Legacy() = %d, want %d", got, legacy)
		}
	}
	if _, err := BoundFromLegacy(-3); !errors.Is(err, odserr.ErrBadParameter) {
		t.Fatalf("expected BadParameter for -3, got %v", err)
	}
	var zero Bound
	if zero.IsKnown() {
		t.Fatalf("zero bound must be unknown")
	}
	if !Unbounded().Allows(1<<30) || Limit(1).Allows(2) || !Limit(1).IsOne() {
		t.Fatalf("bound checks broken")
	}
}

func TestNewRange(t *testing.T) {
	if _, err := NewRange(2, 1); !errors.Is(err, odserr.ErrBadParameter) {
		t.Fatalf("expected max below min to fail, got %v", err)
	}
	r, err := NewRange(0, LegacyUnbounded)
	if err != nil || !r.Max.IsUnbounded() {
		t.Fatalf("unexpected range %v %v", r, err)
	}
	if r.String() != "[0,many]" {
		t.Fatalf("unexpected string %s", r)
	}
}

func TestInferInfoRelationship(t *testing.T) {
	tests := []struct {
		name        string
		mine, other Bound
		fwd, inv    Relationship
		ok          bool
	}{
		{"one to one", Limit(1), Limit(1), InfoRel, InfoRel, true},
		{"many to many", Unbounded(), Unbounded(), InfoRel, InfoRel, true},
		{"one to many", Limit(1), Unbounded(), InfoTo, InfoFrom, true},
		{"many to one", Unbounded(), Limit(1), InfoFrom, InfoTo, true},
		{"limit two to one", Limit(2), Limit(1), InfoFrom, InfoTo, true},
		{"unknown mine", UnknownBound(), Limit(1), Unresolved, Unresolved, false},
		{"unknown other", Limit(1), UnknownBound(), Unresolved, Unresolved, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fwd, inv, ok := InferInfoRelationship(tc.mine, tc.other)
			if fwd != tc.fwd || inv != tc.inv || ok != tc.ok {
				t.Fatalf("got %s/%s/%v, want %s/%s/%v", fwd, inv, ok, tc.fwd, tc.inv, tc.ok)
			}
		})
	}
}

func TestRelationshipInverseAndType(t *testing.T) {
	pairs := map[Relationship]Relationship{
		Father: Child, InfoTo: InfoFrom, InfoRel: InfoRel, Supertype: Subtype, Unresolved: Unresolved,
	}
	for r, inv := range pairs {
		if r.Inverse() != inv || inv.Inverse() != r {
			t.Fatalf("%s inverse broken", r)
		}
	}
	if Child.Type() != FatherChild || Subtype.Type() != Inheritance || InfoFrom.Type() != Info {
		t.Fatalf("relationship types broken")
	}
	r, err := ParseRelationship("info_to")
	if err != nil || r != InfoTo {
		t.Fatalf("ParseRelationship = %v %v", r, err)
	}
}
