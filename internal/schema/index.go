package schema

import (
	"sort"
	"strings"
)

// index is a registry keyed by a stable number with two secondary indices:
// application name (exact) and base name (case-insensitive, possibly shared
// by several entries). All mutations go through add, rename, rebase and
// remove so the three maps never drift apart.
type index[T any] struct {
	byNo   map[int32]T
	names  map[int32]string
	bases  map[int32]string
	byName map[string]int32
	byBase map[string][]int32
}

func newIndex[T any]() *index[T] {
	return &index[T]{
		byNo:   make(map[int32]T),
		names:  make(map[int32]string),
		bases:  make(map[int32]string),
		byName: make(map[string]int32),
		byBase: make(map[string][]int32),
	}
}

func (ix *index[T]) len() int { return len(ix.byNo) }

func (ix *index[T]) add(no int32, name, base string, v T) {
	ix.byNo[no] = v
	ix.names[no] = name
	ix.byName[name] = no
	if base != "" {
		key := strings.ToLower(base)
		ix.bases[no] = key
		ix.byBase[key] = append(ix.byBase[key], no)
	}
}

func (ix *index[T]) rename(no int32, name string) {
	old, ok := ix.names[no]
	if !ok {
		return
	}
	delete(ix.byName, old)
	ix.names[no] = name
	ix.byName[name] = no
}

func (ix *index[T]) renumber(from, to int32) {
	v, ok := ix.byNo[from]
	if !ok {
		return
	}
	name, base := ix.names[from], ix.bases[from]
	ix.remove(from)
	ix.add(to, name, base, v)
}

func (ix *index[T]) rebase(no int32, base string) {
	if _, ok := ix.byNo[no]; !ok {
		return
	}
	ix.dropBase(no)
	if base != "" {
		key := strings.ToLower(base)
		ix.bases[no] = key
		ix.byBase[key] = append(ix.byBase[key], no)
	}
}

func (ix *index[T]) dropBase(no int32) {
	key, ok := ix.bases[no]
	if !ok {
		return
	}
	delete(ix.bases, no)
	list := ix.byBase[key]
	for i, n := range list {
		if n == no {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(ix.byBase, key)
	} else {
		ix.byBase[key] = list
	}
}

func (ix *index[T]) remove(no int32) {
	if _, ok := ix.byNo[no]; !ok {
		return
	}
	ix.dropBase(no)
	delete(ix.byName, ix.names[no])
	delete(ix.names, no)
	delete(ix.byNo, no)
}

func (ix *index[T]) get(no int32) (T, bool) {
	v, ok := ix.byNo[no]
	return v, ok
}

func (ix *index[T]) lookupName(name string) (T, bool) {
	no, ok := ix.byName[name]
	if !ok {
		var zero T
		return zero, false
	}
	return ix.byNo[no], true
}

func (ix *index[T]) lookupBase(base string) []T {
	nos := ix.byBase[strings.ToLower(base)]
	out := make([]T, 0, len(nos))
	for _, no := range nos {
		out = append(out, ix.byNo[no])
	}
	return out
}

// all returns the entries ordered by number.
func (ix *index[T]) all() []T {
	nos := make([]int32, 0, len(ix.byNo))
	for no := range ix.byNo {
		nos = append(nos, no)
	}
	sort.Slice(nos, func(i, j int) bool { return nos[i] < nos[j] })
	out := make([]T, 0, len(nos))
	for _, no := range nos {
		out = append(out, ix.byNo[no])
	}
	return out
}
