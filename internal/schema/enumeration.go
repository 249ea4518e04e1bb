package schema

import (
	"sort"
	"strings"

	"atfxcore/pkg/odserr"
)

// Enumeration maps non-negative integer items to names and back. Base
// enumerations are immutable, application enumerations may grow and rename.
type Enumeration struct {
	name      string
	immutable bool
	byItem    map[int32]string
	byName    map[string]int32
}

// NewEnumeration returns an empty mutable enumeration.
func NewEnumeration(name string) *Enumeration {
	return &Enumeration{
		name:   name,
		byItem: make(map[int32]string),
		byName: make(map[string]int32),
	}
}

func (e *Enumeration) Name() string       { return e.name }
func (e *Enumeration) Immutable() bool    { return e.immutable }
func (e *Enumeration) Len() int           { return len(e.byItem) }
func (e *Enumeration) freeze()            { e.immutable = true }
func (e *Enumeration) rename(name string) { e.name = name }

func (e *Enumeration) checkMutable() error {
	if e.immutable {
		return odserr.BadOperationf("enumeration %q is immutable", e.name)
	}
	return nil
}

// AddItem registers item under name.
func (e *Enumeration) AddItem(item int32, name string) error {
	if err := e.checkMutable(); err != nil {
		return err
	}
	return e.addItem(item, name)
}

func (e *Enumeration) addItem(item int32, name string) error {
	if item < 0 {
		return odserr.BadParameterf("enumeration %q: negative item %d", e.name, item)
	}
	if strings.TrimSpace(name) == "" {
		return odserr.BadParameterf("enumeration %q: empty item name", e.name)
	}
	if prev, ok := e.byItem[item]; ok {
		return odserr.BadParameterf("enumeration %q: item %d already named %q", e.name, item, prev)
	}
	if prev, ok := e.byName[name]; ok {
		return odserr.BadParameterf("enumeration %q: name %q already used by item %d", e.name, name, prev)
	}
	e.byItem[item] = name
	e.byName[name] = item
	return nil
}

// RenameItem changes the name of an existing item.
func (e *Enumeration) RenameItem(item int32, name string) error {
	if err := e.checkMutable(); err != nil {
		return err
	}
	old, ok := e.byItem[item]
	if !ok {
		return odserr.NotFoundf("enumeration %q: item %d", e.name, item)
	}
	if strings.TrimSpace(name) == "" {
		return odserr.BadParameterf("enumeration %q: empty item name", e.name)
	}
	if other, taken := e.byName[name]; taken && other != item {
		return odserr.BadParameterf("enumeration %q: name %q already used by item %d", e.name, name, other)
	}
	delete(e.byName, old)
	e.byItem[item] = name
	e.byName[name] = item
	return nil
}

// Item resolves an item by name. Base enumerations match case-insensitively.
func (e *Enumeration) Item(name string) (int32, error) {
	if item, ok := e.byName[name]; ok {
		return item, nil
	}
	if e.immutable {
		for n, item := range e.byName {
			if strings.EqualFold(n, name) {
				return item, nil
			}
		}
	}
	return 0, odserr.NotFoundf("enumeration %q: item name %q", e.name, name)
}

// ItemName resolves the name of item.
func (e *Enumeration) ItemName(item int32) (string, error) {
	if n, ok := e.byItem[item]; ok {
		return n, nil
	}
	return "", odserr.NotFoundf("enumeration %q: item %d", e.name, item)
}

// Items returns all items in ascending order.
func (e *Enumeration) Items() []int32 {
	out := make([]int32, 0, len(e.byItem))
	for item := range e.byItem {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
