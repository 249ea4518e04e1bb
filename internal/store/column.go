package store

import (
	"context"
	"strings"

	"atfxcore/internal/schema"
	"atfxcore/pkg/odserr"
	"atfxcore/pkg/value"
)

// Base names of measurement column attributes and relations.
const (
	attrValues      = "values"
	attrFlags       = "flags"
	attrGenParams   = "generation_parameters"
	attrSeqRep      = "sequence_representation"
	attrGlobalFlag  = "global_flag"
	attrRawDataType = "raw_datatype"
	attrRows        = "number_of_rows"
	attrDataType    = "datatype"

	relSubmatrix  = "submatrix"
	relQuantity   = "measurement_quantity"
	relComponents = "external_component"
)

// SeqRep is an item of the sequence representation enumeration.
type SeqRep int32

const (
	SeqExplicit                    SeqRep = 0
	SeqImplicitConstant            SeqRep = 1
	SeqImplicitLinear              SeqRep = 2
	SeqImplicitSaw                 SeqRep = 3
	SeqRawLinear                   SeqRep = 4
	SeqRawPolynomial               SeqRep = 5
	SeqFormula                     SeqRep = 6
	SeqExternalComponent           SeqRep = 7
	SeqRawLinearExternal           SeqRep = 8
	SeqRawPolynomialExternal       SeqRep = 9
	SeqRawLinearCalibrated         SeqRep = 10
	SeqRawLinearCalibratedExternal SeqRep = 11
	SeqRawRational                 SeqRep = 12
	SeqRawRationalExternal         SeqRep = 13
)

var externalForm = map[SeqRep]SeqRep{
	SeqExplicit:            SeqExternalComponent,
	SeqRawLinear:           SeqRawLinearExternal,
	SeqRawPolynomial:       SeqRawPolynomialExternal,
	SeqRawLinearCalibrated: SeqRawLinearCalibratedExternal,
	SeqRawRational:         SeqRawRationalExternal,
}

var inlineForm = func() map[SeqRep]SeqRep {
	m := make(map[SeqRep]SeqRep, len(externalForm))
	for in, ext := range externalForm {
		m[ext] = in
	}
	return m
}()

// External returns the representation for values kept in external
// components.
func (r SeqRep) External() SeqRep {
	if ext, ok := externalForm[r]; ok {
		return ext
	}
	return r
}

// Inline returns the representation for values kept in memory.
func (r SeqRep) Inline() SeqRep {
	if in, ok := inlineForm[r]; ok {
		return in
	}
	return r
}

// IsExternal reports whether values live in external components.
func (r SeqRep) IsExternal() bool {
	_, ok := inlineForm[r]
	return ok
}

// IsImplicit reports whether values are generated from parameters.
func (r SeqRep) IsImplicit() bool {
	return r == SeqImplicitConstant || r == SeqImplicitLinear || r == SeqImplicitSaw
}

// IsRaw reports whether values are raw and scaled by generation parameters.
func (r SeqRep) IsRaw() bool {
	switch r.Inline() {
	case SeqRawLinear, SeqRawPolynomial, SeqRawLinearCalibrated, SeqRawRational:
		return true
	}
	return false
}

func isColumn(e *schema.Element) bool {
	return strings.EqualFold(e.BaseType(), schema.AoLocalColumn)
}

// isRole reports whether a is a column attribute whose value is resolved by
// the store rather than read as stored.
func isRole(e *schema.Element, a *schema.Attribute) bool {
	return isColumn(e) && (a.IsBase(attrValues) || a.IsBase(attrFlags) || a.IsBase(attrGenParams))
}

// storedByBase returns the in-memory value of base attribute baseName.
func (s *Store) storedByBase(aid int64, inst *instance, baseName string) (value.Value, bool) {
	a, err := s.schema.AttributeByBaseName(aid, baseName)
	if err != nil {
		return value.Value{}, false
	}
	ent, ok := inst.values[a.Number()]
	if !ok || !ent.v.IsValid() {
		return value.Value{}, false
	}
	return ent.v, true
}

func (s *Store) intByBase(aid int64, inst *instance, baseName string) (int64, bool) {
	v, ok := s.storedByBase(aid, inst, baseName)
	if !ok {
		return 0, false
	}
	n, err := v.Int64()
	return n, err == nil
}

func (s *Store) seqRep(aid int64, inst *instance) SeqRep {
	n, _ := s.intByBase(aid, inst, attrSeqRep)
	return SeqRep(n)
}

func (s *Store) setSeqRep(aid int64, inst *instance, rep SeqRep) error {
	a, err := s.schema.AttributeByBaseName(aid, attrSeqRep)
	if err != nil {
		return err
	}
	v, err := value.Convert(value.Must(value.DTEnum, int32(rep)), a.DataType())
	if err != nil {
		return odserr.Wrap(odserr.BadParameter, err, "sequence representation %d", rep)
	}
	inst.values[a.Number()] = entry{v: v}
	return nil
}

func (s *Store) setRole(ctx context.Context, e *schema.Element, inst *instance, a *schema.Attribute, nv value.NamedValue) error {
	switch {
	case a.IsBase(attrValues):
		return s.setColumnValues(ctx, e, inst, a, nv)
	case a.IsBase(attrFlags):
		return s.setColumnFlags(ctx, e, inst, a, nv)
	}
	inst.values[a.Number()] = entry{v: nv.Value, unit: nv.Unit}
	return nil
}

func (s *Store) getRole(ctx context.Context, e *schema.Element, inst *instance, a *schema.Attribute) (value.Value, error) {
	switch {
	case a.IsBase(attrValues):
		return s.columnValues(ctx, e, inst, a)
	case a.IsBase(attrFlags):
		return s.columnFlags(ctx, e, inst, a)
	}
	return generationParameters(inst.values[a.Number()].v), nil
}

// generationParameters returns p as DS_DOUBLE. Kinds without a numeric
// reading give the empty sequence.
func generationParameters(p value.Value) value.Value {
	if !p.IsValid() || !p.Type().IsNumeric() {
		return value.Empty(value.DSDouble)
	}
	out, err := value.Convert(p, value.DSDouble)
	if err != nil {
		return value.Empty(value.DSDouble)
	}
	return out
}

// setColumnValues stores column values. Implicit columns ignore them. In file
// mode values go to new external components that replace the old ones and the
// representation switches to its external form; otherwise they stay in
// memory and the representation switches to its inline form.
func (s *Store) setColumnValues(ctx context.Context, e *schema.Element, inst *instance, a *schema.Attribute, nv value.NamedValue) error {
	rep := s.seqRep(e.ID(), inst)
	if rep.IsImplicit() {
		s.logger.Debug("values of implicit column not stored", "element", e.Name(), "instance", inst.id, "sequence_representation", int32(rep))
		return nil
	}
	if s.settings.WriteMode == WriteModeFile && s.codec != nil && nv.Value.IsValid() {
		comps, err := s.codec.WriteValues(ctx, nv.Value)
		if err != nil {
			return err
		}
		r, previous := s.relatedByBase(e.ID(), inst.id, relComponents)
		if _, err := s.createComponents(ctx, e.ID(), inst.id, comps); err != nil {
			return err
		}
		if len(previous) > 0 {
			if err := s.removeIDs(r.Target(), previous); err != nil {
				return err
			}
		}
		delete(inst.values, a.Number())
		return s.setSeqRep(e.ID(), inst, rep.External())
	}
	if err := s.removeComponents(e.ID(), inst); err != nil {
		return err
	}
	inst.values[a.Number()] = entry{v: nv.Value, unit: nv.Unit}
	if rep.IsExternal() {
		return s.setSeqRep(e.ID(), inst, rep.Inline())
	}
	return nil
}

// columnValues resolves the values of a column from its representation.
func (s *Store) columnValues(ctx context.Context, e *schema.Element, inst *instance, a *schema.Attribute) (value.Value, error) {
	rep := s.seqRep(e.ID(), inst)
	switch {
	case rep == SeqFormula:
		return value.Value{}, odserr.NotImplementedf("formula column %q id=%d", e.Name(), inst.id)
	case rep.IsImplicit():
		return s.generate(e, inst, rep)
	case rep.IsExternal():
		comps, _, err := s.componentsOf(e.ID(), inst)
		if err != nil {
			return value.Value{}, err
		}
		if len(comps) == 0 {
			break
		}
		if s.codec == nil {
			return value.Value{}, odserr.BadOperationf("column %q id=%d has external components but no codec", e.Name(), inst.id)
		}
		dt, err := s.effectiveDataType(e.ID(), inst, rep)
		if err != nil {
			if dt = comps[0].TypeSpec.NaturalType(); dt == value.DTUnknown {
				return value.Value{}, err
			}
		}
		return s.codec.ReadValues(ctx, comps, dt)
	}
	if ent, ok := inst.values[a.Number()]; ok {
		return ent.v, nil
	}
	if dt, err := s.effectiveDataType(e.ID(), inst, rep); err == nil {
		return value.Empty(dt), nil
	}
	return value.Empty(a.DataType()), nil
}

// effectiveDataType is the sequence kind of a column: raw_datatype for raw
// representations, then the datatype of the measurement quantity.
func (s *Store) effectiveDataType(aid int64, inst *instance, rep SeqRep) (value.DataType, error) {
	if rep.IsRaw() {
		if n, ok := s.intByBase(aid, inst, attrRawDataType); ok && n != 0 {
			return value.DataType(n).Sequence(), nil
		}
	}
	r, ids := s.relatedByBase(aid, inst.id, relQuantity)
	if r != nil && len(ids) == 1 {
		if q, ok := s.instances[r.Target()][ids[0]]; ok {
			if n, ok := s.intByBase(r.Target(), q, attrDataType); ok && n != 0 {
				return value.DataType(n).Sequence(), nil
			}
		}
	}
	return value.DTUnknown, odserr.BadParameterf("data type of column id=%d is unknown", inst.id)
}

// rows returns number_of_rows of the submatrix the column belongs to.
func (s *Store) rows(aid int64, inst *instance) (int, bool) {
	r, ids := s.relatedByBase(aid, inst.id, relSubmatrix)
	if r == nil || len(ids) != 1 {
		return 0, false
	}
	sm, ok := s.instances[r.Target()][ids[0]]
	if !ok {
		return 0, false
	}
	n, ok := s.intByBase(r.Target(), sm, attrRows)
	if !ok || n < 0 {
		return 0, false
	}
	return int(n), true
}

// generate computes the values of an implicit column over the rows of its
// submatrix.
func (s *Store) generate(e *schema.Element, inst *instance, rep SeqRep) (value.Value, error) {
	n, ok := s.rows(e.ID(), inst)
	if !ok {
		return value.Value{}, odserr.BadParameterf("implicit column %q id=%d has no submatrix row count", e.Name(), inst.id)
	}
	var p []float64
	if v, ok := s.storedByBase(e.ID(), inst, attrGenParams); ok {
		p, _ = generationParameters(v).Float64s()
	}
	need := map[SeqRep]int{SeqImplicitConstant: 1, SeqImplicitLinear: 2, SeqImplicitSaw: 3}[rep]
	if len(p) < need {
		return value.Value{}, odserr.BadParameterf("implicit column %q id=%d needs %d generation parameters, has %d", e.Name(), inst.id, need, len(p))
	}
	out := make([]float64, n)
	for i := range out {
		switch rep {
		case SeqImplicitConstant:
			out[i] = p[0]
		case SeqImplicitLinear:
			out[i] = p[0] + p[1]*float64(i)
		case SeqImplicitSaw:
			if p[2] == 0 {
				return value.Value{}, odserr.BadParameterf("implicit saw column %q id=%d has period 0", e.Name(), inst.id)
			}
			out[i] = p[0] + p[1]*float64(i%int(p[2]))
		}
	}
	dt, err := s.effectiveDataType(e.ID(), inst, rep)
	if err != nil {
		dt = value.DSDouble
	}
	if n == 0 {
		return value.Empty(dt), nil
	}
	return value.Convert(value.Must(value.DSDouble, out), dt)
}

// setColumnFlags writes flags next to the only external component of the
// column, or keeps them in memory.
func (s *Store) setColumnFlags(ctx context.Context, e *schema.Element, inst *instance, a *schema.Attribute, nv value.NamedValue) error {
	v := nv.Value
	if v.IsValid() && v.Type() != value.DSShort {
		c, err := value.Convert(v, value.DSShort)
		if err != nil {
			return odserr.Wrap(odserr.BadParameter, err, "flags of column %q id=%d", e.Name(), inst.id)
		}
		v = c
	}
	comps, ids, err := s.componentsOf(e.ID(), inst)
	if err != nil {
		return err
	}
	r, _ := s.relatedByBase(e.ID(), inst.id, relComponents)
	if v.IsValid() && len(comps) == 1 && s.codec != nil && s.hasFlagAttributes(r.Target()) {
		flags, _ := v.Raw().([]int16)
		comp := comps[0]
		if err := s.codec.WriteFlags(ctx, &comp, flags); err != nil {
			return err
		}
		if err := s.SetValue(ctx, r.Target(), ids[0], value.Named("flags_filename_url", value.Must(value.DTString, comp.FlagsFile))); err != nil {
			return err
		}
		if err := s.SetValue(ctx, r.Target(), ids[0], value.Named("flags_start_offset", value.Must(value.DTLongLong, comp.FlagsStartOffset))); err != nil {
			return err
		}
		delete(inst.values, a.Number())
		return nil
	}
	inst.values[a.Number()] = entry{v: v}
	return nil
}

func (s *Store) hasFlagAttributes(aid int64) bool {
	_, err1 := s.schema.AttributeByBaseName(aid, "flags_filename_url")
	_, err2 := s.schema.AttributeByBaseName(aid, "flags_start_offset")
	return err1 == nil && err2 == nil
}

// columnFlags resolves flags from memory, then external components, then the
// global flag broadcast over the submatrix rows.
func (s *Store) columnFlags(ctx context.Context, e *schema.Element, inst *instance, a *schema.Attribute) (value.Value, error) {
	if ent, ok := inst.values[a.Number()]; ok && ent.v.IsValid() {
		return ent.v, nil
	}
	comps, _, err := s.componentsOf(e.ID(), inst)
	if err != nil {
		return value.Value{}, err
	}
	if len(comps) > 0 && s.codec != nil {
		dt, err := s.effectiveDataType(e.ID(), inst, s.seqRep(e.ID(), inst))
		if err != nil {
			dt = value.DSDouble
		}
		v, err := s.codec.ReadFlags(ctx, comps, dt)
		if err != nil {
			return value.Value{}, err
		}
		if v.IsValid() {
			return v, nil
		}
	}
	if g, ok := s.intByBase(e.ID(), inst, attrGlobalFlag); ok {
		if n, ok := s.rows(e.ID(), inst); ok && n > 0 {
			out := make([]int16, n)
			for i := range out {
				out[i] = int16(g)
			}
			return value.Must(value.DSShort, out), nil
		}
	}
	return value.Empty(value.DSShort), nil
}
