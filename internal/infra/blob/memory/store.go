// Package memory implements an in-memory segment Store for tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"atfxcore/internal/blob/core"
)

type segment struct {
	data     []byte
	modified time.Time
}

// Store implements core.Store backed by process memory.
type Store struct {
	mu   sync.RWMutex
	segs map[string]*segment
}

// New returns an empty in-memory segment store.
func New() *Store { return &Store{segs: make(map[string]*segment)} }

// Driver returns the segment driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Stat returns the size of a segment.
func (s *Store) Stat(_ context.Context, name string) (core.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seg, ok := s.segs[name]
	if !ok {
		return core.Info{}, fmt.Errorf("segment %s: %w", name, core.ErrNotExist)
	}
	return core.Info{Name: name, Size: int64(len(seg.data)), LastModified: seg.modified}, nil
}

// ReadAt copies segment bytes starting at off into p.
func (s *Store) ReadAt(_ context.Context, name string, p []byte, off int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seg, ok := s.segs[name]
	if !ok {
		return 0, fmt.Errorf("segment %s: %w", name, core.ErrNotExist)
	}
	if off < 0 {
		return 0, fmt.Errorf("segment %s: negative offset %d", name, off)
	}
	if off >= int64(len(seg.data)) {
		return 0, io.EOF
	}
	n := copy(p, seg.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Append adds data to the end of a segment, creating it when missing.
func (s *Store) Append(_ context.Context, name string, data []byte) (int64, error) {
	if !core.ValidName(name) {
		return 0, fmt.Errorf("invalid segment name %q", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := s.segs[name]
	if !ok {
		seg = &segment{}
		s.segs[name] = seg
	}
	off := int64(len(seg.data))
	seg.data = append(seg.data, data...)
	seg.modified = time.Now().UTC()
	return off, nil
}

// Delete removes the segment returning true if it existed.
func (s *Store) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.segs[name]
	if ok {
		delete(s.segs, name)
	}
	return ok, nil
}

// List returns all segments matching prefix.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Info, 0, len(s.segs))
	for name, seg := range s.segs {
		if strings.HasPrefix(name, prefix) {
			out = append(out, core.Info{Name: name, Size: int64(len(seg.data)), LastModified: seg.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Bytes returns a copy of a segment's content.
func (s *Store) Bytes(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seg, ok := s.segs[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), seg.data...), true
}
