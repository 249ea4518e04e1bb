package schema

import (
	"sort"
	"strings"

	"atfxcore/pkg/odserr"
)

// Relation is one direction of an application relation. Both directions are
// stored on their owning elements and refer to each other by element id and
// relation number.
type Relation struct {
	number       int32
	elem1        int64
	elem2        int64
	name         string
	inverseName  string
	baseName     string
	base         *BaseRelation
	rng          Range
	relationship Relationship
	typ          RelationType
	inverseNo    int32
	inferred     bool
}

func (r *Relation) Number() int32              { return r.number }
func (r *Relation) Element() int64             { return r.elem1 }
func (r *Relation) Target() int64              { return r.elem2 }
func (r *Relation) Name() string               { return r.name }
func (r *Relation) InverseName() string        { return r.inverseName }
func (r *Relation) Base() *BaseRelation        { return r.base }
func (r *Relation) Range() Range               { return r.rng }
func (r *Relation) Relationship() Relationship { return r.relationship }
func (r *Relation) Type() RelationType         { return r.typ }

// BaseName returns the bound base relation name, or "".
func (r *Relation) BaseName() string {
	if r.base != nil {
		return r.base.Name
	}
	return r.baseName
}

// IsAttached reports whether both sides are known.
func (r *Relation) IsAttached() bool { return r.number > 0 }

// IsBase reports whether the relation is bound to base relation name.
func (r *Relation) IsBase(name string) bool {
	return strings.EqualFold(r.BaseName(), name)
}

// RelationSpec describes a relation to create. A zero To stages a one-sided
// stub that AttachRelation completes later. Ranges left with an unknown max
// are taken from the base relation when there is one.
type RelationSpec struct {
	From         int64
	To           int64
	BaseName     string
	Name         string
	InverseName  string
	Range        Range
	InverseRange Range
	Relationship Relationship
}

// RelationStaging holds at most one relation whose target is not known yet.
// Staged relations carry negative placeholder numbers.
type RelationStaging struct {
	pending     *Relation
	placeholder int32
}

// Pending returns the staged relation, if any.
func (st *RelationStaging) Pending() (*Relation, bool) {
	return st.pending, st.pending != nil
}

func (st *RelationStaging) stage(r *Relation) error {
	if st.pending != nil {
		return odserr.BadOperationf("relation %q of element %d is still unattached, cannot stage %q", st.pending.name, st.pending.elem1, r.name)
	}
	st.placeholder--
	r.number = st.placeholder
	st.pending = r
	return nil
}

func (st *RelationStaging) match(elem int64, name string) (*Relation, bool) {
	if st.pending == nil || st.pending.elem1 != elem || st.pending.name != name {
		return nil, false
	}
	return st.pending, true
}

func (st *RelationStaging) clear(r *Relation) {
	if st.pending == r {
		st.pending = nil
	}
}

// PendingRelation returns the staged stub, if any.
func (s *ApplicationSchema) PendingRelation() (*Relation, bool) {
	return s.staging.Pending()
}

// CreateRelation creates a relation and, when spec.To is known, its inverse
// on the target element.
func (s *ApplicationSchema) CreateRelation(spec RelationSpec) (*Relation, error) {
	from, err := s.Element(spec.From)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(spec.Name) == "" {
		return nil, odserr.BadParameterf("empty relation name on element %q (id=%d)", from.name, from.id)
	}
	if _, taken := from.rels.lookupName(spec.Name); taken {
		return nil, odserr.BadParameterf("relation %q already exists on element %q (id=%d)", spec.Name, from.name, from.id)
	}
	r := &Relation{
		elem1:        from.id,
		name:         spec.Name,
		inverseName:  spec.InverseName,
		baseName:     spec.BaseName,
		rng:          spec.Range,
		relationship: spec.Relationship,
	}
	if spec.To == 0 {
		if spec.BaseName != "" {
			if _, err := s.baseRelationCandidates(from, spec.BaseName); err != nil {
				return nil, err
			}
		}
		if err := s.staging.stage(r); err != nil {
			return nil, err
		}
		from.rels.add(r.number, r.name, r.baseName, r)
		return r, nil
	}
	to, err := s.Element(spec.To)
	if err != nil {
		return nil, err
	}
	if err := s.attach(from, to, r, spec.InverseRange); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ApplicationSchema) baseRelationCandidates(from *Element, baseName string) ([]*BaseRelation, error) {
	var out []*BaseRelation
	for _, br := range from.base.rels {
		if strings.EqualFold(br.Name, baseName) {
			out = append(out, br)
		}
	}
	if len(out) == 0 {
		return nil, odserr.NotFoundf("base relation %q of base element %q", baseName, from.base.Type)
	}
	return out, nil
}

// AttachRelation completes the staged relation name of element aid by
// pointing it at element to.
func (s *ApplicationSchema) AttachRelation(aid int64, name string, to int64, inverseRange Range) (*Relation, error) {
	r, ok := s.staging.match(aid, name)
	if !ok {
		return nil, odserr.NotFoundf("unattached relation %q of element %d", name, aid)
	}
	from, err := s.Element(aid)
	if err != nil {
		return nil, err
	}
	target, err := s.Element(to)
	if err != nil {
		return nil, err
	}
	if err := s.attach(from, target, r, inverseRange); err != nil {
		return nil, err
	}
	return r, nil
}

// attach validates everything first and only then links r and its inverse.
func (s *ApplicationSchema) attach(from, to *Element, r *Relation, inverseRange Range) error {
	var base, invBase *BaseRelation
	if r.baseName != "" {
		br, err := from.base.Relation(r.baseName, to.base.Type)
		if err != nil {
			return err
		}
		base = br
		if ib, err := to.base.Relation(br.InverseName, from.base.Type); err == nil {
			invBase = ib
		}
	}

	invName := r.inverseName
	if invName == "" && base != nil {
		n, err := s.base.InverseRelationName(from.base.Type, base.Name, to.base.Type)
		if err != nil {
			return err
		}
		invName = n
	}
	if invName == "" {
		if !s.extendedCompat {
			return odserr.BadParameterf("relation %q of element %q has no inverse name", r.name, from.name)
		}
		invName = from.name
	}
	selfInverse := from.id == to.id && invName == r.name
	if !selfInverse {
		if _, taken := to.rels.lookupName(invName); taken {
			return odserr.BadParameterf("inverse relation %q already exists on element %q (id=%d)", invName, to.name, to.id)
		}
	}

	rng := r.rng
	if !rng.Max.IsKnown() && base != nil {
		rng = base.Range
	}
	if !inverseRange.Max.IsKnown() && base != nil {
		inverseRange = base.InverseRange
	}

	fwd, inv := r.relationship, r.relationship.Inverse()
	typ := r.relationship.Type()
	inferred := false
	switch {
	case base != nil:
		fwd, inv, typ = base.Relationship, base.InverseRelationship, base.Type
	case r.relationship == Unresolved:
		fwd, inv, _ = InferInfoRelationship(rng.Max, inverseRange.Max)
		typ = Info
		inferred = true
	}

	// Mutation starts here.
	s.staging.clear(r)
	oldNo := r.number
	from.nextRelNo++
	r.number = from.nextRelNo
	if oldNo < 0 {
		from.rels.renumber(oldNo, r.number)
	} else {
		from.rels.add(r.number, r.name, baseNameOf(base, r.baseName), r)
	}
	if base != nil {
		from.rels.rebase(r.number, base.Name)
	}
	r.elem2 = to.id
	r.inverseName = invName
	r.base = base
	r.rng = rng
	r.relationship = fwd
	r.typ = typ
	r.inferred = inferred

	if selfInverse {
		r.inverseNo = r.number
	} else {
		to.nextRelNo++
		ir := &Relation{
			number:       to.nextRelNo,
			elem1:        to.id,
			elem2:        from.id,
			name:         invName,
			inverseName:  r.name,
			base:         invBase,
			rng:          inverseRange,
			relationship: inv,
			typ:          typ,
			inverseNo:    r.number,
			inferred:     inferred,
		}
		if invBase != nil {
			ir.baseName = invBase.Name
		}
		to.rels.add(ir.number, ir.name, ir.baseName, ir)
		r.inverseNo = ir.number
	}
	if fwd == Unresolved {
		s.logger.Warn("relation relationship left unresolved for review",
			"element", from.name, "relation", r.name, "target", to.name,
			"range", rng.String(), "inverse_range", inverseRange.String())
	}
	return nil
}

func baseNameOf(base *BaseRelation, fallback string) string {
	if base != nil {
		return base.Name
	}
	return fallback
}

// Relation returns relation name of element aid.
func (s *ApplicationSchema) Relation(aid int64, name string) (*Relation, error) {
	e, err := s.Element(aid)
	if err != nil {
		return nil, err
	}
	if r, ok := e.rels.lookupName(name); ok {
		return r, nil
	}
	return nil, odserr.NotFoundf("relation %q of element %q (id=%d)", name, e.name, e.id)
}

// RelationByBaseName returns the first relation of aid bound to baseName.
func (s *ApplicationSchema) RelationByBaseName(aid int64, baseName string) (*Relation, error) {
	list, err := s.RelationsByBaseName(aid, baseName)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		e := s.elements[aid]
		return nil, odserr.NotFoundf("relation with base name %q of element %q (id=%d)", baseName, e.name, e.id)
	}
	return list[0], nil
}

// RelationsByBaseName returns every relation of aid bound to baseName, ordered
// by number.
func (s *ApplicationSchema) RelationsByBaseName(aid int64, baseName string) ([]*Relation, error) {
	e, err := s.Element(aid)
	if err != nil {
		return nil, err
	}
	list := e.rels.lookupBase(baseName)
	sort.Slice(list, func(i, j int) bool { return list[i].number < list[j].number })
	return list, nil
}

// RelationsTo returns every attached relation of aid pointing at element to.
func (s *ApplicationSchema) RelationsTo(aid, to int64) ([]*Relation, error) {
	e, err := s.Element(aid)
	if err != nil {
		return nil, err
	}
	var out []*Relation
	for _, r := range e.rels.all() {
		if r.IsAttached() && r.elem2 == to {
			out = append(out, r)
		}
	}
	return out, nil
}

// Inverse returns the other direction of an attached relation.
func (s *ApplicationSchema) Inverse(r *Relation) (*Relation, error) {
	if !r.IsAttached() {
		return nil, odserr.BadOperationf("relation %q of element %d is not attached", r.name, r.elem1)
	}
	to, err := s.Element(r.elem2)
	if err != nil {
		return nil, odserr.Wrap(odserr.ImplementationProblem, err, "inverse of relation %q", r.name)
	}
	inv, ok := to.rels.get(r.inverseNo)
	if !ok {
		return nil, odserr.ImplementationProblemf("relation %q of element %d has no inverse %d on element %d", r.name, r.elem1, r.inverseNo, r.elem2)
	}
	return inv, nil
}

// RenameRelation renames a relation and updates the inverse name recorded on
// its other direction.
func (s *ApplicationSchema) RenameRelation(aid int64, oldName, newName string) error {
	r, err := s.Relation(aid, oldName)
	if err != nil {
		return err
	}
	if strings.TrimSpace(newName) == "" {
		return odserr.BadParameterf("empty relation name")
	}
	e := s.elements[aid]
	if other, ok := e.rels.lookupName(newName); ok && other != r {
		return odserr.BadParameterf("relation %q already exists on element %q (id=%d)", newName, e.name, e.id)
	}
	var inv *Relation
	if r.IsAttached() {
		if inv, err = s.Inverse(r); err != nil {
			return err
		}
	}
	e.rels.rename(r.number, newName)
	r.name = newName
	if inv != nil {
		inv.inverseName = newName
		if inv == r {
			r.inverseName = newName
		}
	}
	return nil
}

// RemoveRelation removes both directions of relation name of element aid and
// returns the removed direction.
func (s *ApplicationSchema) RemoveRelation(aid int64, name string) (*Relation, error) {
	r, err := s.Relation(aid, name)
	if err != nil {
		return nil, err
	}
	s.detachRelation(r)
	return r, nil
}

func (s *ApplicationSchema) detachRelation(r *Relation) {
	s.staging.clear(r)
	if e, ok := s.elements[r.elem1]; ok {
		e.rels.remove(r.number)
	}
	if !r.IsAttached() || r.inverseNo == r.number && r.elem1 == r.elem2 {
		return
	}
	if to, ok := s.elements[r.elem2]; ok {
		to.rels.remove(r.inverseNo)
	}
}

// SetRange changes the range of one direction. Inferred info relationships
// are inferred again from the new bound.
func (s *ApplicationSchema) SetRange(aid int64, name string, rng Range) error {
	r, err := s.Relation(aid, name)
	if err != nil {
		return err
	}
	if n, ok := rng.Max.Max(); ok && n < rng.Min {
		return odserr.BadParameterf("relation %q: maximum cardinality %d below minimum %d", name, n, rng.Min)
	}
	if rng.Min < 0 {
		return odserr.BadParameterf("relation %q: negative minimum cardinality", name)
	}
	r.rng = rng
	if !r.IsAttached() || !r.inferred {
		return nil
	}
	inv, err := s.Inverse(r)
	if err != nil {
		return err
	}
	fwd, back, ok := InferInfoRelationship(r.rng.Max, inv.rng.Max)
	r.relationship = fwd
	inv.relationship = back
	if !ok {
		s.logger.Warn("relation relationship left unresolved for review",
			"element", s.elements[aid].name, "relation", r.name,
			"range", r.rng.String(), "inverse_range", inv.rng.String())
	}
	return nil
}

// ReviewRelations returns attached relations whose relationship could not be
// inferred because a cardinality is unknown, ordered by element and number.
func (s *ApplicationSchema) ReviewRelations() []*Relation {
	var out []*Relation
	for _, e := range s.Elements() {
		for _, r := range e.rels.all() {
			if r.IsAttached() && r.relationship == Unresolved {
				out = append(out, r)
			}
		}
	}
	return out
}
