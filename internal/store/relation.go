package store

import (
	"fmt"

	"atfxcore/internal/schema"
	"atfxcore/pkg/odserr"
)

// Mode selects how Connect combines the given ids with the current links.
type Mode int

const (
	// Insert adds ids; an id that is already linked is an error.
	Insert Mode = iota
	// Append adds ids that are not linked yet.
	Append
	// Replace makes ids the complete set of links.
	Replace
	// Remove drops the links to ids.
	Remove
)

func (m Mode) String() string {
	switch m {
	case Insert:
		return "insert"
	case Append:
		return "append"
	case Replace:
		return "replace"
	case Remove:
		return "remove"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []int64, id int64) []int64 {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// resolveRelation finds relation name of aid by application name, then by
// base name.
func (s *Store) resolveRelation(aid int64, name string) (*schema.Relation, *schema.Relation, error) {
	r, err := s.schema.Relation(aid, name)
	if err != nil {
		var byBase error
		if r, byBase = s.schema.RelationByBaseName(aid, name); byBase != nil {
			return nil, nil, err
		}
	}
	if !r.IsAttached() {
		return nil, nil, odserr.BadOperationf("relation %q of element %d is not attached", r.Name(), aid)
	}
	inv, err := s.schema.Inverse(r)
	if err != nil {
		return nil, nil, err
	}
	return r, inv, nil
}

// link adds from->to via r and to->from via inv.
func (s *Store) link(r, inv *schema.Relation, from, to int64) {
	if src, ok := s.instances[r.Element()][from]; ok && !contains(src.links[r.Number()], to) {
		src.links[r.Number()] = append(src.links[r.Number()], to)
	}
	if dst, ok := s.instances[inv.Element()][to]; ok && !contains(dst.links[inv.Number()], from) {
		dst.links[inv.Number()] = append(dst.links[inv.Number()], from)
	}
}

// unlink removes from->to via r and to->from via inv.
func (s *Store) unlink(r, inv *schema.Relation, from, to int64) {
	if src, ok := s.instances[r.Element()][from]; ok {
		src.links[r.Number()] = without(src.links[r.Number()], to)
	}
	if dst, ok := s.instances[inv.Element()][to]; ok {
		dst.links[inv.Number()] = without(dst.links[inv.Number()], from)
	}
}

// Connect changes the links of instance iid through relation relName
// according to mode and mirrors every change on the targets' inverse
// relation. A side with max cardinality 1 replaces its previous link, and
// the replaced target loses its inverse link too. All checks run before any
// link changes.
func (s *Store) Connect(aid, iid int64, relName string, ids []int64, mode Mode) (err error) {
	defer func() { s.metrics.StoreOp("connect", err) }()
	e, inst, err := s.lookup(aid, iid)
	if err != nil {
		return err
	}
	r, inv, err := s.resolveRelation(aid, relName)
	if err != nil {
		return err
	}
	target, err := s.schema.Element(r.Target())
	if err != nil {
		return err
	}
	for i, id := range ids {
		if !s.HasInstance(target.ID(), id) {
			return odserr.NotFoundf("instance id=%d of element %q (id=%d) for relation %q", id, target.Name(), target.ID(), r.Name())
		}
		if contains(ids[:i], id) {
			return odserr.BadParameterf("instance id=%d given twice for relation %q", id, r.Name())
		}
	}

	cur := inst.links[r.Number()]
	single := r.Range().Max.IsOne()
	var next []int64
	switch mode {
	case Insert, Append:
		if single && len(ids) > 1 {
			return odserr.BadParameterf("relation %q of %q id=%d takes at most one instance, got %d", r.Name(), e.Name(), iid, len(ids))
		}
		if single && len(ids) == 1 {
			next = []int64{ids[0]}
			break
		}
		next = append([]int64(nil), cur...)
		for _, id := range ids {
			if contains(cur, id) {
				if mode == Insert {
					return odserr.BadParameterf("instance id=%d already related to %q id=%d via %q", id, e.Name(), iid, r.Name())
				}
				continue
			}
			next = append(next, id)
		}
	case Replace:
		if single && len(ids) > 1 {
			return odserr.BadParameterf("relation %q of %q id=%d takes at most one instance, got %d", r.Name(), e.Name(), iid, len(ids))
		}
		next = append([]int64(nil), ids...)
	case Remove:
		next = append([]int64(nil), cur...)
		for _, id := range ids {
			next = without(next, id)
		}
	default:
		return odserr.BadParameterf("unknown relation mode %d", int(mode))
	}
	if n, ok := r.Range().Max.Max(); ok && len(next) > n {
		return odserr.BadParameterf("relation %q of %q id=%d allows %d instances, got %d", r.Name(), e.Name(), iid, n, len(next))
	}
	invSingle := inv.Range().Max.IsOne()
	if n, ok := inv.Range().Max.Max(); ok && !invSingle {
		for _, id := range next {
			if contains(cur, id) {
				continue
			}
			if have := len(s.instances[target.ID()][id].links[inv.Number()]); have+1 > n {
				return odserr.BadParameterf("inverse relation %q of %q id=%d allows %d instances", inv.Name(), target.Name(), id, n)
			}
		}
	}

	// Mutation starts here.
	for _, id := range cur {
		if !contains(next, id) {
			s.unlink(r, inv, iid, id)
		}
	}
	for _, id := range next {
		if contains(cur, id) {
			continue
		}
		if invSingle {
			for _, prev := range append([]int64(nil), s.instances[target.ID()][id].links[inv.Number()]...) {
				if prev != iid {
					s.unlink(r, inv, prev, id)
				}
			}
		}
		s.link(r, inv, iid, id)
	}
	inst.links[r.Number()] = next
	s.logger.Debug("relation changed", "element", e.Name(), "instance", iid, "relation", r.Name(), "mode", mode.String(), "related", len(next))
	return nil
}

// Disconnect removes the links of iid to ids through relName in both
// directions. No ids removes every link through the relation.
func (s *Store) Disconnect(aid, iid int64, relName string, ids ...int64) error {
	if len(ids) == 0 {
		return s.Connect(aid, iid, relName, nil, Replace)
	}
	return s.Connect(aid, iid, relName, ids, Remove)
}

// Related returns the ids linked to iid through relName in link order.
func (s *Store) Related(aid, iid int64, relName string) ([]int64, error) {
	_, inst, err := s.lookup(aid, iid)
	if err != nil {
		return nil, err
	}
	r, _, err := s.resolveRelation(aid, relName)
	if err != nil {
		return nil, err
	}
	return append([]int64(nil), inst.links[r.Number()]...), nil
}

func (s *Store) relatedByBase(aid, iid int64, baseName string) (*schema.Relation, []int64) {
	r, err := s.schema.RelationByBaseName(aid, baseName)
	if err != nil || !r.IsAttached() {
		return nil, nil
	}
	inst, ok := s.instances[aid][iid]
	if !ok {
		return r, nil
	}
	return r, append([]int64(nil), inst.links[r.Number()]...)
}

// unlinkAll drops every link of inst in both directions.
func (s *Store) unlinkAll(aid int64, inst *instance) error {
	for no, targets := range inst.links {
		if len(targets) == 0 {
			continue
		}
		e, err := s.schema.Element(aid)
		if err != nil {
			return err
		}
		var r *schema.Relation
		for _, cand := range e.Relations() {
			if cand.Number() == no {
				r = cand
				break
			}
		}
		if r == nil {
			delete(inst.links, no)
			continue
		}
		inv, err := s.schema.Inverse(r)
		if err != nil {
			return err
		}
		for _, t := range append([]int64(nil), targets...) {
			s.unlink(r, inv, inst.id, t)
		}
	}
	return nil
}
