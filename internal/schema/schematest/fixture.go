// Package schematest provides a compact ODS-style base model and a ready made
// measurement application schema for tests across packages.
package schematest

import (
	"testing"

	"atfxcore/internal/schema"
	"atfxcore/pkg/value"
)

// Base model versions built by this package.
const (
	Version       = "asam35"
	LegacyVersion = "asam30"
)

// Sequence representation items.
var SeqRepItems = map[int32]string{
	0:  "explicit",
	1:  "implicit_constant",
	2:  "implicit_linear",
	3:  "implicit_saw",
	4:  "raw_linear",
	5:  "raw_polynomial",
	6:  "formula",
	7:  "external_component",
	8:  "raw_linear_external",
	9:  "raw_polynomial_external",
	10: "raw_linear_calibrated",
	11: "raw_linear_calibrated_external",
	12: "raw_rational",
	13: "raw_rational_external",
}

// TypeSpecItems are the external component value type items.
var TypeSpecItems = map[int32]string{
	0: "dt_boolean", 1: "dt_byte", 2: "dt_short", 3: "dt_long", 4: "dt_longlong",
	5: "ieeefloat4", 6: "ieeefloat8", 7: "dt_short_beo", 8: "dt_long_beo",
	9: "dt_longlong_beo", 10: "ieeefloat4_beo", 11: "ieeefloat8_beo",
	12: "dt_string", 13: "dt_bytestr", 14: "dt_blob", 15: "dt_boolean_flags_beo",
	16: "dt_byte_flags_beo", 17: "dt_string_flags_beo", 18: "dt_bytestr_beo",
	19: "dt_sbyte", 20: "dt_sbyte_flags_beo", 21: "dt_ushort", 22: "dt_ushort_beo",
	23: "dt_ulong", 24: "dt_ulong_beo", 25: "dt_string_utf8", 26: "dt_string_utf8_beo",
	27: "dt_bit_int", 28: "dt_bit_int_beo", 29: "dt_bit_uint", 30: "dt_bit_uint_beo",
	31: "dt_bit_ieeefloat", 32: "dt_bit_ieeefloat_beo",
}

func dataTypeItems() map[int32]string {
	out := make(map[int32]string)
	for dt := value.DTUnknown; dt <= value.DSEnum; dt++ {
		out[int32(dt)] = dt.String()
	}
	return out
}

type attr = schema.AttributeDef

// NewBase builds the fixture base model. The legacy version declares "id"
// and the external component offsets as DT_LONG.
func NewBase(version string) (*schema.BaseSchema, error) {
	wide := value.DTLongLong
	if version == LegacyVersion {
		wide = value.DTLong
	}
	b := schema.NewBaseSchemaBuilder(version).
		AddEnumeration("datatype_enum", dataTypeItems()).
		AddEnumeration("seq_rep_enum", SeqRepItems).
		AddEnumeration("typespec_enum", TypeSpecItems)

	elements := []struct {
		typ string
		top bool
	}{
		{schema.AoTest, true},
		{schema.AoSubTest, false},
		{schema.AoMeasurement, false},
		{schema.AoMeasurementQuantity, false},
		{schema.AoSubmatrix, false},
		{schema.AoLocalColumn, false},
		{schema.AoExternalComponent, false},
		{schema.AoUnit, true},
		{schema.AoQuantity, true},
		{schema.AoUnitUnderTest, true},
		{schema.AoUnitUnderTestPart, false},
	}
	for _, e := range elements {
		b.AddElement(e.typ, e.top)
		b.AddAttribute(e.typ, attr{Name: "id", DataType: wide, Obligatory: true, Unique: true, Autogenerated: true})
		b.AddAttribute(e.typ, attr{Name: "name", DataType: value.DTString, Obligatory: true, Length: 50})
	}

	b.AddAttribute(schema.AoMeasurement, attr{Name: "measurement_begin", DataType: value.DTDate}).
		AddAttribute(schema.AoMeasurement, attr{Name: "measurement_end", DataType: value.DTDate}).
		AddAttribute(schema.AoMeasurementQuantity, attr{Name: "datatype", DataType: value.DTEnum, Enumeration: "datatype_enum"}).
		AddAttribute(schema.AoSubmatrix, attr{Name: "number_of_rows", DataType: value.DTLong, Obligatory: true}).
		AddAttribute(schema.AoLocalColumn, attr{Name: "values", DataType: value.DTUnknown}).
		AddAttribute(schema.AoLocalColumn, attr{Name: "flags", DataType: value.DSShort}).
		AddAttribute(schema.AoLocalColumn, attr{Name: "global_flag", DataType: value.DTShort}).
		AddAttribute(schema.AoLocalColumn, attr{Name: "independent", DataType: value.DTShort}).
		AddAttribute(schema.AoLocalColumn, attr{Name: "sequence_representation", DataType: value.DTEnum, Enumeration: "seq_rep_enum", Obligatory: true}).
		AddAttribute(schema.AoLocalColumn, attr{Name: "generation_parameters", DataType: value.DSDouble}).
		AddAttribute(schema.AoLocalColumn, attr{Name: "raw_datatype", DataType: value.DTEnum, Enumeration: "datatype_enum"}).
		AddAttribute(schema.AoExternalComponent, attr{Name: "ordinal_number", DataType: value.DTLong}).
		AddAttribute(schema.AoExternalComponent, attr{Name: "component_length", DataType: value.DTLong, Obligatory: true}).
		AddAttribute(schema.AoExternalComponent, attr{Name: "filename_url", DataType: value.DTString, Obligatory: true}).
		AddAttribute(schema.AoExternalComponent, attr{Name: "value_type", DataType: value.DTEnum, Enumeration: "typespec_enum", Obligatory: true}).
		AddAttribute(schema.AoExternalComponent, attr{Name: "start_offset", DataType: wide, Obligatory: true}).
		AddAttribute(schema.AoExternalComponent, attr{Name: "block_size", DataType: value.DTLong, Obligatory: true}).
		AddAttribute(schema.AoExternalComponent, attr{Name: "valuesperblock", DataType: value.DTLong, Obligatory: true}).
		AddAttribute(schema.AoExternalComponent, attr{Name: "value_offset", DataType: value.DTLong, Obligatory: true}).
		AddAttribute(schema.AoExternalComponent, attr{Name: "flags_filename_url", DataType: value.DTString}).
		AddAttribute(schema.AoExternalComponent, attr{Name: "flags_start_offset", DataType: wide}).
		AddAttribute(schema.AoExternalComponent, attr{Name: "ao_bit_count", DataType: value.DTShort}).
		AddAttribute(schema.AoExternalComponent, attr{Name: "ao_bit_offset", DataType: value.DTShort}).
		AddAttribute(schema.AoUnit, attr{Name: "factor", DataType: value.DTDouble, Obligatory: true}).
		AddAttribute(schema.AoUnit, attr{Name: "offset", DataType: value.DTDouble, Obligatory: true})

	parentChild := func(parent, child, down, up string, upMin int) {
		b.AddRelation(schema.RelationDef{Elem1: parent, Elem2: child, Name: down, InverseName: up, Min: 0, Max: schema.LegacyUnbounded, Relationship: schema.Father})
		b.AddRelation(schema.RelationDef{Elem1: child, Elem2: parent, Name: up, InverseName: down, Min: upMin, Max: 1, Relationship: schema.Child})
	}
	parentChild(schema.AoTest, schema.AoSubTest, "children", "parent_test", 1)
	parentChild(schema.AoSubTest, schema.AoSubTest, "children", "parent_test", 0)
	parentChild(schema.AoSubTest, schema.AoMeasurement, "children", "test", 1)
	parentChild(schema.AoMeasurement, schema.AoMeasurementQuantity, "measurement_quantities", "measurement", 1)
	parentChild(schema.AoMeasurement, schema.AoSubmatrix, "submatrices", "measurement", 1)
	parentChild(schema.AoSubmatrix, schema.AoLocalColumn, "local_columns", "submatrix", 1)
	parentChild(schema.AoLocalColumn, schema.AoExternalComponent, "external_component", "local_column", 1)
	parentChild(schema.AoUnitUnderTest, schema.AoUnitUnderTestPart, "children", "parent_unit_under_test", 0)
	parentChild(schema.AoUnitUnderTestPart, schema.AoUnitUnderTestPart, "children", "parent_unit_under_test_part", 0)

	info := func(from, to, name, inverse string, max int) {
		b.AddRelation(schema.RelationDef{Elem1: from, Elem2: to, Name: name, InverseName: inverse, Min: 0, Max: 1, Relationship: schema.InfoTo})
		b.AddRelation(schema.RelationDef{Elem1: to, Elem2: from, Name: inverse, InverseName: name, Min: 0, Max: max, Relationship: schema.InfoFrom})
	}
	info(schema.AoLocalColumn, schema.AoMeasurementQuantity, "measurement_quantity", "local_columns", schema.LegacyUnbounded)
	info(schema.AoMeasurementQuantity, schema.AoUnit, "unit", "measurement_quantities", schema.LegacyUnbounded)
	info(schema.AoMeasurementQuantity, schema.AoQuantity, "quantity", "measurement_quantities", schema.LegacyUnbounded)

	return b.Build()
}

// Base returns the current fixture base model or fails the test.
func Base(t testing.TB) *schema.BaseSchema {
	t.Helper()
	base, err := NewBase(Version)
	if err != nil {
		t.Fatalf("build fixture base schema: %v", err)
	}
	return base
}

// Model holds the element ids of the measurement application schema.
type Model struct {
	Schema            *schema.ApplicationSchema
	Test              int64
	Measurement       int64
	Quantity          int64
	Submatrix         int64
	LocalColumn       int64
	ExternalComponent int64
	Unit              int64
}

// MeasurementModel builds an application schema with one element per base
// type of the measurement data path and every base relation between them.
// Application names of attributes and relations equal their base names.
func MeasurementModel(t testing.TB, base *schema.BaseSchema, opts ...schema.Option) Model {
	t.Helper()
	s := schema.NewApplicationSchema(base, opts...)
	m := Model{Schema: s}
	mustElem := func(baseType, name string) int64 {
		e, err := s.CreateElement(baseType, name)
		if err != nil {
			t.Fatalf("create element %s: %v", name, err)
		}
		return e.ID()
	}
	m.Test = mustElem(schema.AoTest, "Test")
	m.Measurement = mustElem(schema.AoMeasurement, "Measurement")
	m.Quantity = mustElem(schema.AoMeasurementQuantity, "MeaQuantity")
	m.Submatrix = mustElem(schema.AoSubmatrix, "Submatrix")
	m.LocalColumn = mustElem(schema.AoLocalColumn, "LocalColumn")
	m.ExternalComponent = mustElem(schema.AoExternalComponent, "ExternalComponent")
	m.Unit = mustElem(schema.AoUnit, "Unit")

	mustAttrs := func(aid int64, names ...string) {
		for _, n := range names {
			if _, err := s.CreateAttribute(schema.AttributeSpec{Element: aid, Name: n, BaseName: n}); err != nil {
				t.Fatalf("create attribute %s: %v", n, err)
			}
		}
	}
	mustAttrs(m.Quantity, "datatype")
	mustAttrs(m.LocalColumn, "values", "flags", "global_flag", "independent", "generation_parameters", "raw_datatype")
	mustAttrs(m.ExternalComponent, "ordinal_number", "flags_filename_url", "flags_start_offset", "ao_bit_count", "ao_bit_offset")
	mustAttrs(m.Measurement, "measurement_begin", "measurement_end")

	mustRel := func(from, to int64, baseName string) {
		if _, err := s.CreateRelation(schema.RelationSpec{From: from, To: to, BaseName: baseName, Name: baseName}); err != nil {
			t.Fatalf("create relation %s: %v", baseName, err)
		}
	}
	mustRel(m.Measurement, m.Quantity, "measurement_quantities")
	mustRel(m.Measurement, m.Submatrix, "submatrices")
	mustRel(m.Submatrix, m.LocalColumn, "local_columns")
	mustRel(m.LocalColumn, m.Quantity, "measurement_quantity")
	mustRel(m.LocalColumn, m.ExternalComponent, "external_component")
	mustRel(m.Quantity, m.Unit, "unit")
	return m
}
