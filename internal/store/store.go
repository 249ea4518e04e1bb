// Package store holds the instances of an application schema: attribute
// values, free instance attributes and bidirectional relation links. Values
// of measurement columns may live in external components, which the store
// reads and writes through a codec.Codec.
//
// Only instance id allocation is safe for concurrent use. Every other method
// must be serialized by the caller.
package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"atfxcore/internal/codec"
	"atfxcore/internal/logging"
	"atfxcore/internal/metrics"
	"atfxcore/internal/schema"
	"atfxcore/pkg/odserr"
	"atfxcore/pkg/value"
)

// WriteMode selects where new measurement column values land.
type WriteMode int

const (
	// WriteModeDatabase keeps values in memory.
	WriteModeDatabase WriteMode = iota
	// WriteModeFile writes values to external components.
	WriteModeFile
)

func (m WriteMode) String() string {
	if m == WriteModeFile {
		return "file"
	}
	return "database"
}

// Context carries the container settings the store consults.
type Context struct {
	WriteMode WriteMode
	// MaxSegmentSize limits external segment files in bytes and is applied
	// to the codec by New; 0 keeps the codec's own limit.
	MaxSegmentSize int64
	// FileRoot is the directory external component file names are relative to.
	FileRoot              string
	TrimStringValues      bool
	ExtendedCompatibility bool
	// WriteExternalComponents keeps external data external on write back.
	// When false, InlineExternalValues pulls it into memory.
	WriteExternalComponents bool
}

// Option configures a Store.
type Option func(*Store)

// WithCodec sets the codec used for external components.
func WithCodec(c *codec.Codec) Option { return func(s *Store) { s.codec = c } }

// WithContext sets the container settings.
func WithContext(c Context) Option { return func(s *Store) { s.settings = c } }

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option { return func(s *Store) { s.logger = l } }

// WithMetrics records operation results on m.
func WithMetrics(m *metrics.Collector) Option { return func(s *Store) { s.metrics = m } }

type entry struct {
	v    value.Value
	unit string
}

type instance struct {
	id     int64
	values map[int32]entry
	extra  map[string]value.NamedValue
	links  map[int32][]int64
}

func newInstance(id int64) *instance {
	return &instance{
		id:     id,
		values: make(map[int32]entry),
		extra:  make(map[string]value.NamedValue),
		links:  make(map[int32][]int64),
	}
}

// Store is the instance store of one application schema.
type Store struct {
	schema   *schema.ApplicationSchema
	settings Context
	codec    *codec.Codec
	logger   logging.Logger
	metrics  *metrics.Collector

	countersMu sync.Mutex
	counters   map[int64]*atomic.Int64

	instances  map[int64]map[int64]*instance
	unitByName map[string]int64
	unitNames  map[int64]string
}

// New returns an empty store over s.
func New(s *schema.ApplicationSchema, opts ...Option) *Store {
	st := &Store{
		schema:     s,
		counters:   make(map[int64]*atomic.Int64),
		instances:  make(map[int64]map[int64]*instance),
		unitByName: make(map[string]int64),
		unitNames:  make(map[int64]string),
	}
	for _, opt := range opts {
		opt(st)
	}
	if st.codec != nil && st.settings.MaxSegmentSize > 0 {
		codec.WithMaxSegmentSize(st.settings.MaxSegmentSize)(st.codec)
	}
	st.logger = logging.OrNoop(st.logger)
	return st
}

// Schema returns the application schema.
func (s *Store) Schema() *schema.ApplicationSchema { return s.schema }

// Settings returns the container settings.
func (s *Store) Settings() Context { return s.settings }

// Codec returns the external component codec, or nil.
func (s *Store) Codec() *codec.Codec { return s.codec }

func (s *Store) counter(aid int64) *atomic.Int64 {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()
	c, ok := s.counters[aid]
	if !ok {
		c = new(atomic.Int64)
		s.counters[aid] = c
	}
	return c
}

// NextInstanceID allocates the next instance id of element aid. Safe for
// concurrent use; ids never repeat for the same element.
func (s *Store) NextInstanceID(aid int64) (int64, error) {
	if _, err := s.schema.Element(aid); err != nil {
		return 0, err
	}
	return s.counter(aid).Add(1), nil
}

func (s *Store) reserveInstanceID(aid, id int64) {
	c := s.counter(aid)
	for {
		cur := c.Load()
		if id <= cur || c.CompareAndSwap(cur, id) {
			return
		}
	}
}

// CreateElement creates an element derived from baseType.
func (s *Store) CreateElement(baseType, name string) (*schema.Element, error) {
	e, err := s.schema.CreateElement(baseType, name)
	if err != nil {
		return nil, err
	}
	s.bucket(e.ID())
	return e, nil
}

// CreateAttribute creates an attribute, see schema.ApplicationSchema.
func (s *Store) CreateAttribute(spec schema.AttributeSpec) (*schema.Attribute, error) {
	return s.schema.CreateAttribute(spec)
}

// CreateRelation creates a relation, see schema.ApplicationSchema.
func (s *Store) CreateRelation(spec schema.RelationSpec) (*schema.Relation, error) {
	return s.schema.CreateRelation(spec)
}

// AttachRelation completes a staged relation.
func (s *Store) AttachRelation(aid int64, name string, to int64, inverseRange schema.Range) (*schema.Relation, error) {
	return s.schema.AttachRelation(aid, name, to, inverseRange)
}

// RenameElement renames an element.
func (s *Store) RenameElement(aid int64, name string) error { return s.schema.RenameElement(aid, name) }

// RenameAttribute renames an attribute; stored values follow the attribute.
func (s *Store) RenameAttribute(aid int64, oldName, newName string) error {
	return s.schema.RenameAttribute(aid, oldName, newName)
}

// RenameRelation renames a relation; links follow the relation.
func (s *Store) RenameRelation(aid int64, oldName, newName string) error {
	return s.schema.RenameRelation(aid, oldName, newName)
}

// RemoveElement removes every instance of aid, with their links, and then the
// element itself.
func (s *Store) RemoveElement(ctx context.Context, aid int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.schema.Element(aid); err != nil {
		return err
	}
	for _, iid := range s.InstanceIDs(aid) {
		if err := s.remove(aid, iid); err != nil {
			return err
		}
	}
	if err := s.schema.RemoveElement(aid); err != nil {
		return err
	}
	delete(s.instances, aid)
	s.countersMu.Lock()
	delete(s.counters, aid)
	s.countersMu.Unlock()
	return nil
}

// RemoveAttribute removes an attribute and its values on every instance.
func (s *Store) RemoveAttribute(aid int64, name string) error {
	a, err := s.schema.RemoveAttribute(aid, name)
	if err != nil {
		return err
	}
	for _, inst := range s.instances[aid] {
		delete(inst.values, a.Number())
	}
	return nil
}

// RemoveRelation removes both directions of a relation together with all
// links through it.
func (s *Store) RemoveRelation(aid int64, name string) error {
	r, err := s.schema.Relation(aid, name)
	if err != nil {
		return err
	}
	if r.IsAttached() {
		inv, err := s.schema.Inverse(r)
		if err != nil {
			return err
		}
		for _, inst := range s.instances[aid] {
			for _, t := range append([]int64(nil), inst.links[r.Number()]...) {
				s.unlink(r, inv, inst.id, t)
			}
		}
	}
	_, err = s.schema.RemoveRelation(aid, name)
	return err
}

func (s *Store) bucket(aid int64) map[int64]*instance {
	b, ok := s.instances[aid]
	if !ok {
		b = make(map[int64]*instance)
		s.instances[aid] = b
	}
	return b
}

// InstanceIDs returns the instance ids of aid in ascending order.
func (s *Store) InstanceIDs(aid int64) []int64 {
	ids := make([]int64, 0, len(s.instances[aid]))
	for id := range s.instances[aid] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HasInstance reports whether instance iid of aid exists.
func (s *Store) HasInstance(aid, iid int64) bool {
	_, ok := s.instances[aid][iid]
	return ok
}

func (s *Store) lookup(aid, iid int64) (*schema.Element, *instance, error) {
	e, err := s.schema.Element(aid)
	if err != nil {
		return nil, nil, err
	}
	inst, ok := s.instances[aid][iid]
	if !ok {
		return nil, nil, odserr.NotFoundf("instance id=%d of element %q (id=%d)", iid, e.Name(), aid)
	}
	return e, inst, nil
}
