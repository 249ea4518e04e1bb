package schema

import (
	"sort"
	"strings"
	"sync/atomic"

	"atfxcore/internal/logging"
	"atfxcore/pkg/odserr"
)

// Element is an application element derived from one base element. It owns
// its attributes and relations.
type Element struct {
	id    int64
	name  string
	base  *BaseElement
	attrs *index[*Attribute]
	rels  *index[*Relation]

	nextAttrNo int32
	nextRelNo  int32
}

func (e *Element) ID() int64          { return e.id }
func (e *Element) Name() string       { return e.name }
func (e *Element) Base() *BaseElement { return e.base }

// BaseType returns the type of the underlying base element.
func (e *Element) BaseType() string { return e.base.Type }

// Attributes returns the attributes ordered by number.
func (e *Element) Attributes() []*Attribute { return e.attrs.all() }

// Relations returns the attached relations ordered by number. A staged stub
// is included with its negative placeholder number first.
func (e *Element) Relations() []*Relation { return e.rels.all() }

// Option configures an ApplicationSchema.
type Option func(*ApplicationSchema)

// WithLogger sets the logger used to report relations that need review.
func WithLogger(l logging.Logger) Option {
	return func(s *ApplicationSchema) { s.logger = logging.OrNoop(l) }
}

// WithExtendedCompatibility relaxes base model strictness: a base "id"
// attribute declared DT_LONG may be bound as DT_LONGLONG.
func WithExtendedCompatibility(on bool) Option {
	return func(s *ApplicationSchema) { s.extendedCompat = on }
}

// ApplicationSchema is the mutable schema of one container. Only element id
// allocation is safe for concurrent use; structural edits must be serialized
// by the caller.
type ApplicationSchema struct {
	base           *BaseSchema
	logger         logging.Logger
	extendedCompat bool

	nextElemID atomic.Int64
	elements   map[int64]*Element
	byName     map[string]int64
	enums      map[string]*Enumeration
	staging    RelationStaging
}

// NewApplicationSchema returns an empty application schema over base.
func NewApplicationSchema(base *BaseSchema, opts ...Option) *ApplicationSchema {
	s := &ApplicationSchema{
		base:     base,
		logger:   logging.Noop(),
		elements: make(map[int64]*Element),
		byName:   make(map[string]int64),
		enums:    make(map[string]*Enumeration),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ApplicationSchema) Base() *BaseSchema { return s.base }

// ExtendedCompatibility reports whether base model checks are relaxed.
func (s *ApplicationSchema) ExtendedCompatibility() bool { return s.extendedCompat }

// NextElementID allocates an element id. Safe for concurrent use.
func (s *ApplicationSchema) NextElementID() int64 {
	return s.nextElemID.Add(1)
}

func (s *ApplicationSchema) reserveElementID(id int64) {
	for {
		cur := s.nextElemID.Load()
		if id <= cur || s.nextElemID.CompareAndSwap(cur, id) {
			return
		}
	}
}

// CreateElement creates an element named name derived from baseType and
// creates one attribute for every obligatory base attribute.
func (s *ApplicationSchema) CreateElement(baseType, name string) (*Element, error) {
	return s.CreateElementWithID(0, baseType, name)
}

// CreateElementWithID is CreateElement with a caller supplied id. An id of 0
// allocates the next free id; a supplied id advances the allocator.
func (s *ApplicationSchema) CreateElementWithID(id int64, baseType, name string) (*Element, error) {
	if strings.TrimSpace(name) == "" {
		return nil, odserr.BadParameterf("empty element name")
	}
	be, err := s.base.Element(baseType)
	if err != nil {
		return nil, err
	}
	if other, ok := s.byName[name]; ok {
		return nil, odserr.BadParameterf("element name %q already used by element %d", name, other)
	}
	if id < 0 {
		return nil, odserr.BadParameterf("negative element id %d", id)
	}
	if id != 0 {
		if _, ok := s.elements[id]; ok {
			return nil, odserr.BadParameterf("element id %d already used", id)
		}
		s.reserveElementID(id)
	} else {
		id = s.NextElementID()
		for s.elements[id] != nil {
			id = s.NextElementID()
		}
	}
	e := &Element{id: id, name: name, base: be, attrs: newIndex[*Attribute](), rels: newIndex[*Relation]()}
	for _, ba := range be.attrs {
		if !ba.Obligatory {
			continue
		}
		e.nextAttrNo++
		a := newBaseAttribute(e.nextAttrNo, id, ba.Name, ba)
		a.auto = true
		e.attrs.add(a.number, a.name, ba.Name, a)
	}
	s.elements[id] = e
	s.byName[name] = id
	return e, nil
}

// Element returns the element with id.
func (s *ApplicationSchema) Element(id int64) (*Element, error) {
	if e, ok := s.elements[id]; ok {
		return e, nil
	}
	return nil, odserr.NotFoundf("element id=%d", id)
}

// ElementByName returns the element called name.
func (s *ApplicationSchema) ElementByName(name string) (*Element, error) {
	if id, ok := s.byName[name]; ok {
		return s.elements[id], nil
	}
	return nil, odserr.NotFoundf("element %q", name)
}

// Elements returns all elements ordered by id.
func (s *ApplicationSchema) Elements() []*Element {
	out := make([]*Element, 0, len(s.elements))
	for _, e := range s.elements {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ElementsByBaseType returns the elements derived from baseType ordered by id.
func (s *ApplicationSchema) ElementsByBaseType(baseType string) []*Element {
	var out []*Element
	for _, e := range s.Elements() {
		if strings.EqualFold(e.base.Type, baseType) {
			out = append(out, e)
		}
	}
	return out
}

// RenameElement changes an element's name.
func (s *ApplicationSchema) RenameElement(id int64, name string) error {
	e, err := s.Element(id)
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return odserr.BadParameterf("empty element name")
	}
	if other, ok := s.byName[name]; ok && other != id {
		return odserr.BadParameterf("element name %q already used by element %d", name, other)
	}
	delete(s.byName, e.name)
	e.name = name
	s.byName[name] = id
	return nil
}

// RemoveElement removes an element, its relations and every relation on other
// elements pointing at it. Instance cleanup is the store's concern.
func (s *ApplicationSchema) RemoveElement(id int64) error {
	e, err := s.Element(id)
	if err != nil {
		return err
	}
	for _, r := range e.rels.all() {
		s.detachRelation(r)
	}
	for _, other := range s.elements {
		if other.id == id {
			continue
		}
		for _, r := range other.rels.all() {
			if r.elem2 == id {
				s.detachRelation(r)
			}
		}
	}
	delete(s.byName, e.name)
	delete(s.elements, id)
	return nil
}

// CreateEnumeration creates an empty application enumeration.
func (s *ApplicationSchema) CreateEnumeration(name string) (*Enumeration, error) {
	if strings.TrimSpace(name) == "" {
		return nil, odserr.BadParameterf("empty enumeration name")
	}
	if _, ok := s.enums[name]; ok {
		return nil, odserr.BadParameterf("enumeration %q already exists", name)
	}
	if _, err := s.base.Enumeration(name); err == nil {
		return nil, odserr.BadParameterf("enumeration %q is a base enumeration", name)
	}
	e := NewEnumeration(name)
	s.enums[name] = e
	return e, nil
}

// Enumeration resolves an application enumeration first, then a base
// enumeration case-insensitively.
func (s *ApplicationSchema) Enumeration(name string) (*Enumeration, error) {
	if e, ok := s.enums[name]; ok {
		return e, nil
	}
	if e, err := s.base.Enumeration(name); err == nil {
		return e, nil
	}
	return nil, odserr.NotFoundf("enumeration %q", name)
}

// Enumerations returns application enumerations followed by base ones.
func (s *ApplicationSchema) Enumerations() []*Enumeration {
	out := make([]*Enumeration, 0, len(s.enums))
	for _, e := range s.enums {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return append(out, s.base.Enumerations()...)
}

func (s *ApplicationSchema) enumerationInUse(enum *Enumeration) *Attribute {
	for _, e := range s.Elements() {
		for _, a := range e.attrs.all() {
			if a.enum == enum {
				return a
			}
		}
	}
	return nil
}

// RemoveEnumeration deletes an application enumeration that no attribute
// references.
func (s *ApplicationSchema) RemoveEnumeration(name string) error {
	e, ok := s.enums[name]
	if !ok {
		if _, err := s.base.Enumeration(name); err == nil {
			return odserr.BadOperationf("base enumeration %q cannot be removed", name)
		}
		return odserr.NotFoundf("enumeration %q", name)
	}
	if a := s.enumerationInUse(e); a != nil {
		return odserr.BadOperationf("enumeration %q is referenced by attribute %q of element %d", name, a.name, a.element)
	}
	delete(s.enums, name)
	return nil
}

// RenameEnumeration renames an application enumeration.
func (s *ApplicationSchema) RenameEnumeration(oldName, newName string) error {
	e, ok := s.enums[oldName]
	if !ok {
		if _, err := s.base.Enumeration(oldName); err == nil {
			return odserr.BadOperationf("base enumeration %q cannot be renamed", oldName)
		}
		return odserr.NotFoundf("enumeration %q", oldName)
	}
	if strings.TrimSpace(newName) == "" {
		return odserr.BadParameterf("empty enumeration name")
	}
	if _, taken := s.enums[newName]; taken && newName != oldName {
		return odserr.BadParameterf("enumeration %q already exists", newName)
	}
	delete(s.enums, oldName)
	e.rename(newName)
	s.enums[newName] = e
	return nil
}
