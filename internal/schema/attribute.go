package schema

import (
	"strings"

	"atfxcore/pkg/odserr"
	"atfxcore/pkg/value"
)

// Attribute is an application attribute, free or bound to a base attribute.
type Attribute struct {
	number        int32
	element       int64
	name          string
	base          *BaseAttribute
	dataType      value.DataType
	length        int
	unit          string
	enum          *Enumeration
	obligatory    bool
	unique        bool
	autogenerated bool
	auto          bool
}

func newBaseAttribute(no int32, elem int64, name string, ba *BaseAttribute) *Attribute {
	return &Attribute{
		number:        no,
		element:       elem,
		name:          name,
		base:          ba,
		dataType:      ba.DataType,
		length:        ba.Length,
		enum:          ba.Enumeration,
		obligatory:    ba.Obligatory,
		unique:        ba.Unique,
		autogenerated: ba.Autogenerated,
	}
}

func (a *Attribute) Number() int32             { return a.number }
func (a *Attribute) Element() int64            { return a.element }
func (a *Attribute) Name() string              { return a.name }
func (a *Attribute) Base() *BaseAttribute      { return a.base }
func (a *Attribute) DataType() value.DataType  { return a.dataType }
func (a *Attribute) Length() int               { return a.length }
func (a *Attribute) Unit() string              { return a.unit }
func (a *Attribute) Enumeration() *Enumeration { return a.enum }
func (a *Attribute) Obligatory() bool          { return a.obligatory }
func (a *Attribute) Unique() bool              { return a.unique }
func (a *Attribute) Autogenerated() bool       { return a.autogenerated }

// BaseName returns the bound base attribute name, or "" for free attributes.
func (a *Attribute) BaseName() string {
	if a.base == nil {
		return ""
	}
	return a.base.Name
}

// IsBase reports whether the attribute is bound to base attribute name.
func (a *Attribute) IsBase(name string) bool {
	return a.base != nil && strings.EqualFold(a.base.Name, name)
}

// AttributeSpec describes an attribute to create. DataType may be left
// DT_UNKNOWN for base-bound attributes to inherit the base data type.
type AttributeSpec struct {
	Element       int64
	Name          string
	BaseName      string
	DataType      value.DataType
	Length        int
	Unit          string
	Enumeration   string
	Obligatory    bool
	Unique        bool
	Autogenerated bool
}

func (s *ApplicationSchema) checkBaseDataType(ba *BaseAttribute, dt value.DataType) error {
	if dt == value.DTUnknown || dt == ba.DataType {
		return nil
	}
	if s.extendedCompat && strings.EqualFold(ba.Name, "id") && ba.DataType == value.DTLong && dt == value.DTLongLong {
		return nil
	}
	return odserr.BadParameterf("base attribute %q requires %s, got %s", ba.Name, ba.DataType, dt)
}

// CreateAttribute creates an attribute on spec.Element. Binding a base
// attribute whose mandatory attribute was auto-created renames and updates
// that attribute instead of creating a second one.
func (s *ApplicationSchema) CreateAttribute(spec AttributeSpec) (*Attribute, error) {
	e, err := s.Element(spec.Element)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(spec.Name) == "" {
		return nil, odserr.BadParameterf("empty attribute name on element %q (id=%d)", e.name, e.id)
	}
	if spec.Length < 0 {
		return nil, odserr.BadParameterf("negative length for attribute %q", spec.Name)
	}
	existing, nameTaken := e.attrs.lookupName(spec.Name)

	if spec.BaseName == "" {
		if nameTaken {
			return nil, odserr.BadParameterf("attribute %q already exists on element %q (id=%d)", spec.Name, e.name, e.id)
		}
		if spec.DataType == value.DTUnknown || !spec.DataType.Valid() {
			return nil, odserr.BadParameterf("attribute %q on element %q needs a data type", spec.Name, e.name)
		}
		a := &Attribute{
			element:       e.id,
			name:          spec.Name,
			dataType:      spec.DataType,
			length:        spec.Length,
			unit:          spec.Unit,
			obligatory:    spec.Obligatory,
			unique:        spec.Unique,
			autogenerated: spec.Autogenerated,
		}
		if err := s.bindEnumeration(a, spec.Enumeration); err != nil {
			return nil, err
		}
		e.nextAttrNo++
		a.number = e.nextAttrNo
		e.attrs.add(a.number, a.name, "", a)
		return a, nil
	}

	ba, err := e.base.Attribute(spec.BaseName)
	if err != nil {
		return nil, err
	}
	if err := s.checkBaseDataType(ba, spec.DataType); err != nil {
		return nil, odserr.Wrap(odserr.BadParameter, err, "attribute %q on element %q", spec.Name, e.name)
	}
	if spec.Enumeration != "" && (ba.Enumeration == nil || !strings.EqualFold(ba.Enumeration.name, spec.Enumeration)) {
		return nil, odserr.BadParameterf("attribute %q: base attribute %q does not use enumeration %q", spec.Name, ba.Name, spec.Enumeration)
	}
	var bound *Attribute
	if list := e.attrs.lookupBase(ba.Name); len(list) > 0 {
		bound = list[0]
	}
	if bound != nil && !bound.auto {
		return nil, odserr.BadParameterf("base attribute %q already bound to %q on element %q", ba.Name, bound.name, e.name)
	}
	if nameTaken && existing != bound {
		return nil, odserr.BadParameterf("attribute %q already exists on element %q (id=%d)", spec.Name, e.name, e.id)
	}

	a := bound
	if a == nil {
		e.nextAttrNo++
		a = newBaseAttribute(e.nextAttrNo, e.id, spec.Name, ba)
		e.attrs.add(a.number, a.name, ba.Name, a)
	} else {
		a.auto = false
		e.attrs.rename(a.number, spec.Name)
		a.name = spec.Name
	}
	if spec.DataType != value.DTUnknown {
		a.dataType = spec.DataType
	}
	if spec.Length > 0 {
		a.length = spec.Length
	}
	a.unit = spec.Unit
	a.obligatory = ba.Obligatory || spec.Obligatory
	a.unique = ba.Unique || spec.Unique
	a.autogenerated = ba.Autogenerated || spec.Autogenerated
	return a, nil
}

func (s *ApplicationSchema) bindEnumeration(a *Attribute, name string) error {
	if a.dataType.Scalar() != value.DTEnum {
		if name != "" {
			return odserr.BadParameterf("attribute %q of type %s cannot reference enumeration %q", a.name, a.dataType, name)
		}
		a.enum = nil
		return nil
	}
	if name == "" {
		return odserr.BadParameterf("enumeration attribute %q needs an enumeration name", a.name)
	}
	enum, err := s.Enumeration(name)
	if err != nil {
		return err
	}
	a.enum = enum
	return nil
}

// Attribute returns the attribute called name on element aid. Application
// names are matched first, then base names.
func (s *ApplicationSchema) Attribute(aid int64, name string) (*Attribute, error) {
	e, err := s.Element(aid)
	if err != nil {
		return nil, err
	}
	if a, ok := e.attrs.lookupName(name); ok {
		return a, nil
	}
	if list := e.attrs.lookupBase(name); len(list) > 0 {
		return list[0], nil
	}
	return nil, odserr.NotFoundf("attribute %q of element %q (id=%d)", name, e.name, e.id)
}

// AttributeByNumber returns attribute no of element aid.
func (s *ApplicationSchema) AttributeByNumber(aid int64, no int32) (*Attribute, error) {
	e, err := s.Element(aid)
	if err != nil {
		return nil, err
	}
	if a, ok := e.attrs.get(no); ok {
		return a, nil
	}
	return nil, odserr.NotFoundf("attribute number %d of element %q (id=%d)", no, e.name, e.id)
}

// AttributeByBaseName returns the attribute bound to base attribute baseName.
func (s *ApplicationSchema) AttributeByBaseName(aid int64, baseName string) (*Attribute, error) {
	e, err := s.Element(aid)
	if err != nil {
		return nil, err
	}
	if list := e.attrs.lookupBase(baseName); len(list) > 0 {
		return list[0], nil
	}
	return nil, odserr.NotFoundf("attribute with base name %q of element %q (id=%d)", baseName, e.name, e.id)
}

// RenameAttribute renames an attribute, keeping every index in sync.
func (s *ApplicationSchema) RenameAttribute(aid int64, oldName, newName string) error {
	a, err := s.Attribute(aid, oldName)
	if err != nil {
		return err
	}
	if strings.TrimSpace(newName) == "" {
		return odserr.BadParameterf("empty attribute name")
	}
	e := s.elements[aid]
	if other, ok := e.attrs.lookupName(newName); ok && other != a {
		return odserr.BadParameterf("attribute %q already exists on element %q (id=%d)", newName, e.name, e.id)
	}
	e.attrs.rename(a.number, newName)
	a.name = newName
	return nil
}

// AttributeUpdate carries optional changes to an attribute.
type AttributeUpdate struct {
	DataType      *value.DataType
	Length        *int
	Unit          *string
	Enumeration   *string
	Obligatory    *bool
	Unique        *bool
	Autogenerated *bool
}

// UpdateAttribute applies u. Base-derived attributes may not loosen the
// obligatory, unique or enumeration constraints of their base attribute.
func (s *ApplicationSchema) UpdateAttribute(aid int64, name string, u AttributeUpdate) error {
	a, err := s.Attribute(aid, name)
	if err != nil {
		return err
	}
	if ba := a.base; ba != nil {
		if u.Obligatory != nil && !*u.Obligatory && ba.Obligatory {
			return odserr.BadOperationf("attribute %q: base attribute %q is obligatory", a.name, ba.Name)
		}
		if u.Unique != nil && !*u.Unique && ba.Unique {
			return odserr.BadOperationf("attribute %q: base attribute %q is unique", a.name, ba.Name)
		}
		if u.Enumeration != nil && ba.Enumeration != nil && !strings.EqualFold(*u.Enumeration, ba.Enumeration.name) {
			return odserr.BadOperationf("attribute %q: base attribute %q uses enumeration %q", a.name, ba.Name, ba.Enumeration.name)
		}
		if u.DataType != nil {
			if err := s.checkBaseDataType(ba, *u.DataType); err != nil {
				return odserr.Wrap(odserr.BadOperation, err, "attribute %q", a.name)
			}
		}
	}
	if u.Length != nil && *u.Length < 0 {
		return odserr.BadParameterf("negative length for attribute %q", a.name)
	}

	// Work on a copy so a failed enumeration lookup leaves the attribute intact.
	next := *a
	if u.DataType != nil && *u.DataType != value.DTUnknown {
		next.dataType = *u.DataType
	}
	if a.base == nil && (u.Enumeration != nil || u.DataType != nil) {
		enumName := ""
		if u.Enumeration != nil {
			enumName = *u.Enumeration
		} else if a.enum != nil {
			enumName = a.enum.name
		}
		if err := s.bindEnumeration(&next, enumName); err != nil {
			return err
		}
	}
	if u.Length != nil {
		next.length = *u.Length
	}
	if u.Unit != nil {
		next.unit = *u.Unit
	}
	if u.Obligatory != nil {
		next.obligatory = *u.Obligatory
	}
	if u.Unique != nil {
		next.unique = *u.Unique
	}
	if u.Autogenerated != nil {
		next.autogenerated = *u.Autogenerated
	}
	*a = next
	return nil
}

// RemoveAttribute removes an attribute. Attributes bound to an obligatory
// base attribute cannot be removed.
func (s *ApplicationSchema) RemoveAttribute(aid int64, name string) (*Attribute, error) {
	a, err := s.Attribute(aid, name)
	if err != nil {
		return nil, err
	}
	if a.base != nil && a.base.Obligatory {
		return nil, odserr.BadOperationf("attribute %q: base attribute %q is obligatory", a.name, a.base.Name)
	}
	s.elements[aid].attrs.remove(a.number)
	return a, nil
}
