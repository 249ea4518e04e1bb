// Package schema holds the versioned, immutable base schema and the mutable
// application schema derived from it.
//
// Elements, attributes and relations live in arenas keyed by stable integers.
// Relations refer to their two sides by element id, never by pointer, so
// removal only ever clears index entries.
package schema

import (
	"sort"
	"strings"

	"atfxcore/pkg/odserr"
	"atfxcore/pkg/value"
)

// Base element types referenced by the store and codec.
const (
	AoTest                = "AoTest"
	AoSubTest             = "AoSubTest"
	AoMeasurement         = "AoMeasurement"
	AoMeasurementQuantity = "AoMeasurementQuantity"
	AoSubmatrix           = "AoSubmatrix"
	AoLocalColumn         = "AoLocalColumn"
	AoExternalComponent   = "AoExternalComponent"
	AoUnit                = "AoUnit"
	AoQuantity            = "AoQuantity"
	AoUnitUnderTest       = "AoUnitUnderTest"
	AoUnitUnderTestPart   = "AoUnitUnderTestPart"
)

// BaseAttribute is an attribute template of a base element.
type BaseAttribute struct {
	Name          string
	DataType      value.DataType
	Enumeration   *Enumeration
	Obligatory    bool
	Unique        bool
	Autogenerated bool
	Length        int
}

// BaseRelation is a relation template. Elem2 lists every possible target type;
// more than one entry only occurs for merged legacy definitions.
type BaseRelation struct {
	Elem1               string
	Elem2               []string
	Name                string
	InverseName         string
	Range               Range
	InverseRange        Range
	Relationship        Relationship
	InverseRelationship Relationship
	Type                RelationType
}

// Targets reports whether typ is one of the relation's possible targets.
func (r *BaseRelation) Targets(typ string) bool {
	for _, t := range r.Elem2 {
		if strings.EqualFold(t, typ) {
			return true
		}
	}
	return false
}

// BaseElement is an element template.
type BaseElement struct {
	Type     string
	TopLevel bool

	attrs      []*BaseAttribute
	attrByName map[string]*BaseAttribute
	rels       []*BaseRelation
}

// Attribute returns the attribute template called name, case-insensitively.
func (e *BaseElement) Attribute(name string) (*BaseAttribute, error) {
	if a, ok := e.attrByName[strings.ToLower(name)]; ok {
		return a, nil
	}
	return nil, odserr.NotFoundf("base attribute %q of base element %q", name, e.Type)
}

// Attributes returns the attribute templates in definition order.
func (e *BaseElement) Attributes() []*BaseAttribute {
	return append([]*BaseAttribute(nil), e.attrs...)
}

// Relations returns the relation templates in definition order.
func (e *BaseElement) Relations() []*BaseRelation {
	return append([]*BaseRelation(nil), e.rels...)
}

// Relation resolves the base relation called name. target narrows the lookup
// to relations that may point at that base type; with no target, a relation
// having several possible targets cannot be resolved.
func (e *BaseElement) Relation(name, target string) (*BaseRelation, error) {
	var found *BaseRelation
	for _, r := range e.rels {
		if !strings.EqualFold(r.Name, name) {
			continue
		}
		if target != "" && !r.Targets(target) {
			continue
		}
		if target == "" && len(r.Elem2) > 1 {
			return nil, odserr.ImplementationProblemf("base relation %q of %q has %d possible targets and no target was given", name, e.Type, len(r.Elem2))
		}
		if found != nil && target == "" {
			return nil, odserr.ImplementationProblemf("base relation %q of %q is ambiguous without a target", name, e.Type)
		}
		if found == nil {
			found = r
		}
	}
	if found == nil {
		if target != "" {
			return nil, odserr.NotFoundf("base relation %q of %q towards %q", name, e.Type, target)
		}
		return nil, odserr.NotFoundf("base relation %q of %q", name, e.Type)
	}
	return found, nil
}

// RelationsTo returns the relations that may point at target.
func (e *BaseElement) RelationsTo(target string) []*BaseRelation {
	var out []*BaseRelation
	for _, r := range e.rels {
		if r.Targets(target) {
			out = append(out, r)
		}
	}
	return out
}

// BaseSchema is an immutable, versioned set of base elements and
// enumerations. It is created by BaseSchemaBuilder.
type BaseSchema struct {
	version  string
	elements map[string]*BaseElement
	order    []string
	enums    map[string]*Enumeration
}

func (s *BaseSchema) Version() string { return s.version }

// Element returns the base element of type typ, case-insensitively.
func (s *BaseSchema) Element(typ string) (*BaseElement, error) {
	if e, ok := s.elements[strings.ToLower(typ)]; ok {
		return e, nil
	}
	return nil, odserr.NotFoundf("base element %q in base schema %s", typ, s.version)
}

// Elements returns the base elements in definition order.
func (s *BaseSchema) Elements() []*BaseElement {
	out := make([]*BaseElement, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.elements[k])
	}
	return out
}

// Enumeration returns the base enumeration called name, case-insensitively.
func (s *BaseSchema) Enumeration(name string) (*Enumeration, error) {
	if e, ok := s.enums[strings.ToLower(name)]; ok {
		return e, nil
	}
	return nil, odserr.NotFoundf("base enumeration %q", name)
}

// Enumerations returns the base enumerations sorted by name.
func (s *BaseSchema) Enumerations() []*Enumeration {
	out := make([]*Enumeration, 0, len(s.enums))
	for _, e := range s.enums {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// typeDependentInverses lists the base types whose inverse relation names
// depend on the target type rather than on a single static definition.
var typeDependentInverses = map[string]map[string]map[string]string{
	strings.ToLower(AoSubTest): {
		"children": {
			strings.ToLower(AoSubTest):     "parent_test",
			strings.ToLower(AoMeasurement): "test",
		},
	},
	strings.ToLower(AoUnitUnderTestPart): {
		"children": {
			strings.ToLower(AoUnitUnderTestPart): "parent_unit_under_test_part",
		},
		"parent_unit_under_test": {
			strings.ToLower(AoUnitUnderTest): "children",
		},
	},
}

// InverseRelationName returns the inverse name of relation relName defined on
// sourceType when it points at targetType.
func (s *BaseSchema) InverseRelationName(sourceType, relName, targetType string) (string, error) {
	if byRel, ok := typeDependentInverses[strings.ToLower(sourceType)]; ok {
		if byTarget, ok := byRel[strings.ToLower(relName)]; ok {
			if inv, ok := byTarget[strings.ToLower(targetType)]; ok {
				return inv, nil
			}
		}
	}
	src, err := s.Element(sourceType)
	if err != nil {
		return "", err
	}
	r, err := src.Relation(relName, targetType)
	if err != nil {
		return "", err
	}
	return r.InverseName, nil
}
