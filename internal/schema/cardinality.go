package schema

import (
	"fmt"
	"strconv"
	"strings"

	"atfxcore/pkg/odserr"
)

// Legacy integer encodings of a relation's max cardinality.
const (
	LegacyUnbounded = -1
	LegacyUnknown   = -2
)

type boundKind uint8

const (
	boundUnknown boundKind = iota
	boundUnbounded
	boundLimit
)

// Bound is the upper end of a relation range: not yet known, unbounded, or a
// concrete limit. The zero Bound is unknown.
type Bound struct {
	kind boundKind
	n    int
}

// UnknownBound returns the bound of a range that has not been specified yet.
func UnknownBound() Bound { return Bound{} }

// Unbounded returns the "many" bound.
func Unbounded() Bound { return Bound{kind: boundUnbounded} }

// Limit returns a concrete bound. Negative limits are rejected by
// BoundFromLegacy, Limit itself clamps them to zero.
func Limit(n int) Bound {
	if n < 0 {
		n = 0
	}
	return Bound{kind: boundLimit, n: n}
}

// BoundFromLegacy decodes -2 (unknown), -1 (unbounded) or a limit n >= 0.
func BoundFromLegacy(v int) (Bound, error) {
	switch {
	case v == LegacyUnknown:
		return UnknownBound(), nil
	case v == LegacyUnbounded:
		return Unbounded(), nil
	case v >= 0:
		return Limit(v), nil
	}
	return Bound{}, odserr.BadParameterf("invalid cardinality %d", v)
}

// Legacy encodes the bound as -2, -1 or the limit.
func (b Bound) Legacy() int {
	switch b.kind {
	case boundUnbounded:
		return LegacyUnbounded
	case boundLimit:
		return b.n
	}
	return LegacyUnknown
}

func (b Bound) IsKnown() bool     { return b.kind != boundUnknown }
func (b Bound) IsUnbounded() bool { return b.kind == boundUnbounded }

// Max returns the limit and whether the bound is a concrete limit.
func (b Bound) Max() (int, bool) { return b.n, b.kind == boundLimit }

// IsOne reports whether the bound is exactly one.
func (b Bound) IsOne() bool { return b.kind == boundLimit && b.n == 1 }

// Allows reports whether n targets fit under the bound. Unknown bounds
// accept anything.
func (b Bound) Allows(n int) bool {
	return b.kind != boundLimit || n <= b.n
}

func (b Bound) String() string {
	switch b.kind {
	case boundUnbounded:
		return "many"
	case boundLimit:
		return strconv.Itoa(b.n)
	}
	return "unknown"
}

// Range is a relation's cardinality on one side.
type Range struct {
	Min int
	Max Bound
}

// NewRange decodes legacy integers.
func NewRange(min, max int) (Range, error) {
	if min < 0 {
		return Range{}, odserr.BadParameterf("invalid minimum cardinality %d", min)
	}
	b, err := BoundFromLegacy(max)
	if err != nil {
		return Range{}, err
	}
	if n, ok := b.Max(); ok && n < min {
		return Range{}, odserr.BadParameterf("maximum cardinality %d below minimum %d", n, min)
	}
	return Range{Min: min, Max: b}, nil
}

func (r Range) String() string { return fmt.Sprintf("[%d,%s]", r.Min, r.Max) }

// Relationship is the semantic role of one direction of a relation.
type Relationship int

const (
	// Unresolved marks an info relation whose direction could not be inferred.
	Unresolved Relationship = iota
	Father
	Child
	InfoTo
	InfoFrom
	InfoRel
	Supertype
	Subtype
)

var relationshipNames = map[Relationship]string{
	Unresolved: "UNRESOLVED",
	Father:     "FATHER",
	Child:      "CHILD",
	InfoTo:     "INFO_TO",
	InfoFrom:   "INFO_FROM",
	InfoRel:    "INFO_REL",
	Supertype:  "SUPERTYPE",
	Subtype:    "SUBTYPE",
}

func (r Relationship) String() string {
	if n, ok := relationshipNames[r]; ok {
		return n
	}
	return fmt.Sprintf("Relationship(%d)", int(r))
}

// ParseRelationship accepts the ODS names case-insensitively.
func ParseRelationship(s string) (Relationship, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for r, n := range relationshipNames {
		if n == up {
			return r, nil
		}
	}
	return Unresolved, odserr.BadParameterf("unknown relationship %q", s)
}

// Inverse returns the relationship seen from the other side.
func (r Relationship) Inverse() Relationship {
	switch r {
	case Father:
		return Child
	case Child:
		return Father
	case InfoTo:
		return InfoFrom
	case InfoFrom:
		return InfoTo
	case Supertype:
		return Subtype
	case Subtype:
		return Supertype
	}
	return r
}

// Type returns the relation type implied by the relationship.
func (r Relationship) Type() RelationType {
	switch r {
	case Father, Child:
		return FatherChild
	case Supertype, Subtype:
		return Inheritance
	}
	return Info
}

// RelationType groups relationships. The zero value is Info.
type RelationType int

const (
	Info RelationType = iota
	FatherChild
	Inheritance
)

func (t RelationType) String() string {
	switch t {
	case FatherChild:
		return "FATHER_CHILD"
	case Inheritance:
		return "INHERITANCE"
	}
	return "INFO"
}

// InferInfoRelationship derives the relationship of both directions of an info
// relation from their max cardinalities. The forward side is the one whose
// max is mine. 1:1 and m:n yield InfoRel on both sides, a max of 1 on the
// forward side against many on the other yields InfoTo/InfoFrom and the
// mirror case InfoFrom/InfoTo. When either bound is unknown both sides stay
// Unresolved and ok is false.
func InferInfoRelationship(mine, other Bound) (fwd, inv Relationship, ok bool) {
	if !mine.IsKnown() || !other.IsKnown() {
		return Unresolved, Unresolved, false
	}
	switch {
	case mine.IsOne() && !other.IsOne():
		return InfoTo, InfoFrom, true
	case !mine.IsOne() && other.IsOne():
		return InfoFrom, InfoTo, true
	}
	return InfoRel, InfoRel, true
}
