package schema

import (
	"strings"

	"go.uber.org/multierr"

	"atfxcore/pkg/odserr"
	"atfxcore/pkg/value"
)

// AttributeDef describes a base attribute before enumeration names are
// resolved.
type AttributeDef struct {
	Name          string
	DataType      value.DataType
	Enumeration   string
	Obligatory    bool
	Unique        bool
	Autogenerated bool
	Length        int
}

// RelationDef describes one direction of a base relation with legacy integer
// cardinalities. The inverse direction is a separate RelationDef declared on
// Elem2.
type RelationDef struct {
	Elem1        string
	Elem2        string
	Name         string
	InverseName  string
	Min          int
	Max          int
	Relationship Relationship
	Type         RelationType
}

type pendingAttr struct {
	elem string
	def  AttributeDef
}

// BaseSchemaBuilder accumulates definitions and produces an immutable
// BaseSchema. Definition errors are collected and reported together by Build.
type BaseSchemaBuilder struct {
	version string
	enums   map[string]*Enumeration
	elems   map[string]*BaseElement
	order   []string
	attrs   []pendingAttr
	rels    []RelationDef
	errs    error
}

// NewBaseSchemaBuilder starts a base schema of the given version.
func NewBaseSchemaBuilder(version string) *BaseSchemaBuilder {
	return &BaseSchemaBuilder{
		version: version,
		enums:   make(map[string]*Enumeration),
		elems:   make(map[string]*BaseElement),
	}
}

func (b *BaseSchemaBuilder) fail(err error) *BaseSchemaBuilder {
	b.errs = multierr.Append(b.errs, err)
	return b
}

// AddEnumeration declares an enumeration with its items.
func (b *BaseSchemaBuilder) AddEnumeration(name string, items map[int32]string) *BaseSchemaBuilder {
	key := strings.ToLower(name)
	if name == "" {
		return b.fail(odserr.BadParameterf("empty enumeration name"))
	}
	if _, dup := b.enums[key]; dup {
		return b.fail(odserr.BadParameterf("duplicate base enumeration %q", name))
	}
	e := NewEnumeration(name)
	for item, n := range items {
		if err := e.addItem(item, n); err != nil {
			b.fail(err)
		}
	}
	b.enums[key] = e
	return b
}

// AddElement declares a base element type.
func (b *BaseSchemaBuilder) AddElement(typ string, topLevel bool) *BaseSchemaBuilder {
	key := strings.ToLower(typ)
	if typ == "" {
		return b.fail(odserr.BadParameterf("empty base element type"))
	}
	if _, dup := b.elems[key]; dup {
		return b.fail(odserr.BadParameterf("duplicate base element %q", typ))
	}
	b.elems[key] = &BaseElement{Type: typ, TopLevel: topLevel, attrByName: make(map[string]*BaseAttribute)}
	b.order = append(b.order, key)
	return b
}

// AddAttribute declares an attribute on elemType. The enumeration name is
// resolved when Build runs.
func (b *BaseSchemaBuilder) AddAttribute(elemType string, def AttributeDef) *BaseSchemaBuilder {
	b.attrs = append(b.attrs, pendingAttr{elem: elemType, def: def})
	return b
}

// AddRelation declares one direction of a relation.
func (b *BaseSchemaBuilder) AddRelation(def RelationDef) *BaseSchemaBuilder {
	b.rels = append(b.rels, def)
	return b
}

type relationInfo struct {
	rng  Range
	kind Relationship
	typ  RelationType
}

func relationKey(elem1, name, elem2 string) string {
	return strings.ToLower(elem1) + "\x00" + strings.ToLower(name) + "\x00" + strings.ToLower(elem2)
}

// Build resolves attributes and relations and returns the schema. The builder
// must not be reused afterwards.
func (b *BaseSchemaBuilder) Build() (*BaseSchema, error) {
	errs := b.errs
	for _, pa := range b.attrs {
		errs = multierr.Append(errs, b.buildAttribute(pa))
	}

	// Pass 1: every direction's range and relationship, keyed so that the
	// inverse of a relation can be looked up before it is built.
	infos := make(map[string]relationInfo, len(b.rels))
	valid := make([]bool, len(b.rels))
	for i, def := range b.rels {
		if err := b.checkRelation(def); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		rng, err := NewRange(def.Min, def.Max)
		if err != nil {
			errs = multierr.Append(errs, odserr.Wrap(odserr.BadParameter, err, "base relation %q of %q", def.Name, def.Elem1))
			continue
		}
		typ := def.Type
		if def.Relationship != Unresolved {
			typ = def.Relationship.Type()
		}
		infos[relationKey(def.Elem1, def.Name, def.Elem2)] = relationInfo{rng: rng, kind: def.Relationship, typ: typ}
		valid[i] = true
	}

	// Pass 2: build relations with both directions known, merging legacy
	// duplicates that only differ by target type.
	merged := make(map[string]*BaseRelation)
	for i, def := range b.rels {
		if !valid[i] {
			continue
		}
		info := infos[relationKey(def.Elem1, def.Name, def.Elem2)]
		group := strings.ToLower(def.Elem1) + "\x00" + strings.ToLower(def.Name) + "\x00" + strings.ToLower(def.InverseName)
		target := b.elems[strings.ToLower(def.Elem2)].Type
		if r, ok := merged[group]; ok {
			if !r.Targets(target) {
				r.Elem2 = append(r.Elem2, target)
			}
			continue
		}
		r := &BaseRelation{
			Elem1:               b.elems[strings.ToLower(def.Elem1)].Type,
			Elem2:               []string{target},
			Name:                def.Name,
			InverseName:         def.InverseName,
			Range:               info.rng,
			InverseRange:        Range{Max: UnknownBound()},
			Relationship:        info.kind,
			InverseRelationship: info.kind.Inverse(),
			Type:                info.typ,
		}
		if inv, ok := infos[relationKey(def.Elem2, def.InverseName, def.Elem1)]; ok {
			r.InverseRange = inv.rng
			r.InverseRelationship = inv.kind
		}
		merged[group] = r
		src := b.elems[strings.ToLower(def.Elem1)]
		src.rels = append(src.rels, r)
	}
	if errs != nil {
		return nil, errs
	}
	for _, e := range b.enums {
		e.freeze()
	}
	return &BaseSchema{version: b.version, elements: b.elems, order: b.order, enums: b.enums}, nil
}

func (b *BaseSchemaBuilder) buildAttribute(pa pendingAttr) error {
	elem, ok := b.elems[strings.ToLower(pa.elem)]
	if !ok {
		return odserr.NotFoundf("base element %q for base attribute %q", pa.elem, pa.def.Name)
	}
	def := pa.def
	if def.Name == "" {
		return odserr.BadParameterf("empty base attribute name on %q", elem.Type)
	}
	key := strings.ToLower(def.Name)
	if _, dup := elem.attrByName[key]; dup {
		return odserr.BadParameterf("duplicate base attribute %q on %q", def.Name, elem.Type)
	}
	attr := &BaseAttribute{
		Name:          def.Name,
		DataType:      def.DataType,
		Obligatory:    def.Obligatory,
		Unique:        def.Unique,
		Autogenerated: def.Autogenerated,
		Length:        def.Length,
	}
	if def.Enumeration != "" {
		enum, ok := b.enums[strings.ToLower(def.Enumeration)]
		if !ok {
			return odserr.NotFoundf("enumeration %q of base attribute %q.%q", def.Enumeration, elem.Type, def.Name)
		}
		attr.Enumeration = enum
	} else if def.DataType.Scalar() == value.DTEnum {
		return odserr.BadParameterf("base attribute %q.%q is an enumeration without enumeration name", elem.Type, def.Name)
	}
	elem.attrs = append(elem.attrs, attr)
	elem.attrByName[key] = attr
	return nil
}

func (b *BaseSchemaBuilder) checkRelation(def RelationDef) error {
	if def.Name == "" {
		return odserr.BadParameterf("empty base relation name on %q", def.Elem1)
	}
	if _, ok := b.elems[strings.ToLower(def.Elem1)]; !ok {
		return odserr.NotFoundf("base element %q for base relation %q", def.Elem1, def.Name)
	}
	if _, ok := b.elems[strings.ToLower(def.Elem2)]; !ok {
		return odserr.NotFoundf("target base element %q of base relation %q.%q", def.Elem2, def.Elem1, def.Name)
	}
	return nil
}
