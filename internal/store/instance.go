package store

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"atfxcore/internal/schema"
	"atfxcore/pkg/odserr"
	"atfxcore/pkg/value"
)

// Base attribute names with store behavior.
const (
	attrID   = "id"
	attrName = "name"
)

type resolved struct {
	attr *schema.Attribute
	nv   value.NamedValue
}

// prepare resolves nv against the attributes of e and coerces the value to
// the attribute data type. Column role attributes keep their value as given.
func (s *Store) prepare(e *schema.Element, nv value.NamedValue) (resolved, error) {
	a, err := s.schema.Attribute(e.ID(), nv.Name)
	if err != nil {
		return resolved{}, err
	}
	v := s.trim(nv.Value)
	if nv.Unit != "" {
		if _, ok := s.unitByName[nv.Unit]; !ok {
			return resolved{}, odserr.NotFoundf("unit %q for attribute %q of element %q", nv.Unit, a.Name(), e.Name())
		}
	}
	if !isRole(e, a) && a.DataType() != value.DTUnknown && v.Type() != a.DataType() {
		c, err := value.Convert(v, a.DataType())
		switch {
		case err == nil:
			v = c
		case s.settings.ExtendedCompatibility:
			s.logger.Warn("keeping value with unexpected data type",
				"element", e.Name(), "attribute", a.Name(), "want", a.DataType().String(), "got", v.Type().String())
		default:
			return resolved{}, odserr.Wrap(odserr.BadParameter, err, "attribute %q of element %q (id=%d)", a.Name(), e.Name(), e.ID())
		}
	}
	return resolved{attr: a, nv: value.NamedValue{Name: a.Name(), Value: v, Unit: nv.Unit}}, nil
}

func (s *Store) trim(v value.Value) value.Value {
	if !s.settings.TrimStringValues || !v.IsValid() {
		return v
	}
	switch v.Type() {
	case value.DTString:
		t, _ := v.Text()
		return value.Must(value.DTString, strings.TrimSpace(t))
	case value.DSString:
		strs, _ := v.Strings()
		out := make([]string, len(strs))
		for i, x := range strs {
			out[i] = strings.TrimSpace(x)
		}
		return value.Must(value.DSString, out)
	}
	return v
}

func isUnit(e *schema.Element) bool { return strings.EqualFold(e.BaseType(), schema.AoUnit) }

// CreateInstance creates an instance of aid from values. Without a value for
// the id attribute the next instance id is allocated and injected. All values
// are checked before the instance is created.
func (s *Store) CreateInstance(ctx context.Context, aid int64, values []value.NamedValue) (iid int64, err error) {
	defer func() { s.metrics.StoreOp("create_instance", err) }()
	e, err := s.schema.Element(aid)
	if err != nil {
		return 0, err
	}
	idAttr, _ := s.schema.AttributeByBaseName(aid, attrID)
	prepared := make([]resolved, 0, len(values))
	seen := make(map[int32]bool, len(values))
	for _, nv := range values {
		r, err := s.prepare(e, nv)
		if err != nil {
			return 0, err
		}
		if seen[r.attr.Number()] {
			return 0, odserr.BadParameterf("attribute %q of element %q given twice", r.attr.Name(), e.Name())
		}
		seen[r.attr.Number()] = true
		if idAttr != nil && r.attr == idAttr {
			id, err := r.nv.Value.Int64()
			if err != nil || id <= 0 {
				return 0, odserr.BadParameterf("invalid id %v for element %q", r.nv.Value, e.Name())
			}
			if s.HasInstance(aid, id) {
				return 0, odserr.BadParameterf("instance id=%d of element %q (id=%d) already exists", id, e.Name(), aid)
			}
			iid = id
		}
		prepared = append(prepared, r)
	}
	if isUnit(e) {
		if name, ok := unitName(prepared); ok {
			if other, taken := s.unitByName[name]; taken {
				return 0, odserr.BadParameterf("unit %q already defined by instance id=%d", name, other)
			}
		}
	}

	// Mutation starts here.
	if iid == 0 {
		if iid, err = s.NextInstanceID(aid); err != nil {
			return 0, err
		}
		for s.HasInstance(aid, iid) {
			iid = s.counter(aid).Add(1)
		}
		if idAttr != nil {
			idv, err := value.Convert(value.Must(value.DTLongLong, iid), idAttr.DataType())
			if err != nil {
				return 0, odserr.Wrap(odserr.BadParameter, err, "instance id %d of element %q", iid, e.Name())
			}
			prepared = append(prepared, resolved{attr: idAttr, nv: value.NamedValue{Name: idAttr.Name(), Value: idv}})
		}
	} else {
		s.reserveInstanceID(aid, iid)
	}
	inst := newInstance(iid)
	s.bucket(aid)[iid] = inst
	var roles []resolved
	for _, r := range prepared {
		if isRole(e, r.attr) {
			roles = append(roles, r)
			continue
		}
		inst.values[r.attr.Number()] = entry{v: r.nv.Value, unit: r.nv.Unit}
	}
	for _, r := range roles {
		if err := s.setRole(ctx, e, inst, r.attr, r.nv); err != nil {
			err = multierr.Append(err, s.removeComponents(aid, inst))
			err = multierr.Append(err, s.remove(aid, iid))
			return 0, err
		}
	}
	if isUnit(e) {
		if name, ok := unitName(prepared); ok {
			s.unitByName[name] = iid
			s.unitNames[iid] = name
		}
	}
	s.logger.Debug("instance created", "element", e.Name(), "instance", iid)
	return iid, nil
}

func unitName(prepared []resolved) (string, bool) {
	for _, r := range prepared {
		if r.attr.IsBase(attrName) {
			if t, err := r.nv.Value.Text(); err == nil && t != "" {
				return t, true
			}
		}
	}
	return "", false
}

// RemoveInstance removes every link of the instance in both directions and
// then the instance with its values.
func (s *Store) RemoveInstance(ctx context.Context, aid, iid int64) (err error) {
	defer func() { s.metrics.StoreOp("remove_instance", err) }()
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.remove(aid, iid)
}

// remove drops an instance regardless of the caller's context; rollbacks
// depend on it.
func (s *Store) remove(aid, iid int64) error {
	e, inst, err := s.lookup(aid, iid)
	if err != nil {
		return err
	}
	if err := s.unlinkAll(aid, inst); err != nil {
		return err
	}
	delete(s.instances[aid], iid)
	if isUnit(e) {
		if name, ok := s.unitNames[iid]; ok {
			delete(s.unitByName, name)
			delete(s.unitNames, iid)
		}
	}
	s.logger.Debug("instance removed", "element", e.Name(), "instance", iid)
	return nil
}

// SetValue sets attribute nv.Name of an instance. The id attribute cannot be
// changed. Values and flags of measurement columns follow the write mode.
func (s *Store) SetValue(ctx context.Context, aid, iid int64, nv value.NamedValue) (err error) {
	defer func() { s.metrics.StoreOp("set_value", err) }()
	e, inst, err := s.lookup(aid, iid)
	if err != nil {
		return err
	}
	r, err := s.prepare(e, nv)
	if err != nil {
		return err
	}
	if r.attr.IsBase(attrID) {
		return odserr.BadOperationf("id attribute %q of %q id=%d cannot be changed", r.attr.Name(), e.Name(), iid)
	}
	if isRole(e, r.attr) {
		return s.setRole(ctx, e, inst, r.attr, r.nv)
	}
	if isUnit(e) && r.attr.IsBase(attrName) {
		if err := s.renameUnit(iid, r.nv.Value); err != nil {
			return err
		}
	}
	inst.values[r.attr.Number()] = entry{v: r.nv.Value, unit: r.nv.Unit}
	return nil
}

// renameUnit moves the unit index entry of iid to the name held by v. An
// invalid or empty name only drops the old entry.
func (s *Store) renameUnit(iid int64, v value.Value) error {
	name, err := v.Text()
	if err != nil || !v.IsValid() || name == "" {
		if old, ok := s.unitNames[iid]; ok {
			delete(s.unitByName, old)
			delete(s.unitNames, iid)
		}
		return nil
	}
	if other, taken := s.unitByName[name]; taken && other != iid {
		return odserr.BadParameterf("unit %q already defined by instance id=%d", name, other)
	}
	if old, ok := s.unitNames[iid]; ok {
		delete(s.unitByName, old)
	}
	s.unitByName[name] = iid
	s.unitNames[iid] = name
	return nil
}

// Value returns attribute attr of an instance. Unset attributes yield the
// invalid value of the attribute data type. Column values, flags and
// generation parameters are resolved as described on the column methods.
func (s *Store) Value(ctx context.Context, aid, iid int64, attr string) (value.NamedValue, error) {
	e, inst, err := s.lookup(aid, iid)
	if err != nil {
		return value.NamedValue{}, err
	}
	a, err := s.schema.Attribute(aid, attr)
	if err != nil {
		return value.NamedValue{}, err
	}
	if isRole(e, a) {
		v, err := s.getRole(ctx, e, inst, a)
		if err != nil {
			return value.NamedValue{}, err
		}
		return value.NamedValue{Name: a.Name(), Value: v, Unit: a.Unit()}, nil
	}
	return s.stored(inst, a), nil
}

func (s *Store) stored(inst *instance, a *schema.Attribute) value.NamedValue {
	ent, ok := inst.values[a.Number()]
	if !ok {
		return value.NamedValue{Name: a.Name(), Value: value.Empty(a.DataType()), Unit: a.Unit()}
	}
	unit := ent.unit
	if unit == "" {
		unit = a.Unit()
	}
	return value.NamedValue{Name: a.Name(), Value: ent.v, Unit: unit}
}

// Values returns the values held in memory for an instance in attribute
// order. External column data is not read.
func (s *Store) Values(aid, iid int64) ([]value.NamedValue, error) {
	e, inst, err := s.lookup(aid, iid)
	if err != nil {
		return nil, err
	}
	var out []value.NamedValue
	for _, a := range e.Attributes() {
		if _, ok := inst.values[a.Number()]; ok {
			out = append(out, s.stored(inst, a))
		}
	}
	return out, nil
}

// SetInstanceAttribute sets a schema-less attribute on an instance. Its name
// may not shadow an application attribute.
func (s *Store) SetInstanceAttribute(aid, iid int64, nv value.NamedValue) error {
	e, inst, err := s.lookup(aid, iid)
	if err != nil {
		return err
	}
	if strings.TrimSpace(nv.Name) == "" {
		return odserr.BadParameterf("empty instance attribute name on %q id=%d", e.Name(), iid)
	}
	if a, err := s.schema.Attribute(aid, nv.Name); err == nil {
		return odserr.BadParameterf("instance attribute %q collides with attribute %q of element %q", nv.Name, a.Name(), e.Name())
	}
	nv.Value = s.trim(nv.Value)
	inst.extra[nv.Name] = nv
	return nil
}

// InstanceAttribute returns a schema-less attribute of an instance.
func (s *Store) InstanceAttribute(aid, iid int64, name string) (value.NamedValue, error) {
	e, inst, err := s.lookup(aid, iid)
	if err != nil {
		return value.NamedValue{}, err
	}
	nv, ok := inst.extra[name]
	if !ok {
		return value.NamedValue{}, odserr.NotFoundf("instance attribute %q of %q id=%d", name, e.Name(), iid)
	}
	return nv, nil
}

// InstanceAttributes returns the schema-less attributes ordered by name.
func (s *Store) InstanceAttributes(aid, iid int64) ([]value.NamedValue, error) {
	_, inst, err := s.lookup(aid, iid)
	if err != nil {
		return nil, err
	}
	out := make([]value.NamedValue, 0, len(inst.extra))
	for _, nv := range inst.extra {
		out = append(out, nv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// RemoveInstanceAttribute deletes a schema-less attribute.
func (s *Store) RemoveInstanceAttribute(aid, iid int64, name string) error {
	e, inst, err := s.lookup(aid, iid)
	if err != nil {
		return err
	}
	if _, ok := inst.extra[name]; !ok {
		return odserr.NotFoundf("instance attribute %q of %q id=%d", name, e.Name(), iid)
	}
	delete(inst.extra, name)
	return nil
}

// UnitID resolves a unit name to the id of its unit instance.
func (s *Store) UnitID(name string) (int64, error) {
	if id, ok := s.unitByName[name]; ok {
		return id, nil
	}
	return 0, odserr.NotFoundf("unit %q", name)
}

// UnitName returns the name of unit instance id.
func (s *Store) UnitName(id int64) (string, error) {
	if n, ok := s.unitNames[id]; ok {
		return n, nil
	}
	return "", odserr.NotFoundf("unit id=%d", id)
}
