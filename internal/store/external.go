package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"atfxcore/internal/codec"
	"atfxcore/internal/schema"
	"atfxcore/pkg/odserr"
	"atfxcore/pkg/value"
)

// External component attribute base names.
const (
	ecOrdinal          = "ordinal_number"
	ecLength           = "component_length"
	ecFile             = "filename_url"
	ecValueType        = "value_type"
	ecStartOffset      = "start_offset"
	ecBlockSize        = "block_size"
	ecValuesPerBlock   = "valuesperblock"
	ecValueOffset      = "value_offset"
	ecFlagsFile        = "flags_filename_url"
	ecFlagsStartOffset = "flags_start_offset"
	ecBitCount         = "ao_bit_count"
	ecBitOffset        = "ao_bit_offset"
)

// componentsOf returns the external components of a column with the ids of
// their instances, both in link order.
func (s *Store) componentsOf(aid int64, inst *instance) ([]codec.Component, []int64, error) {
	r, ids := s.relatedByBase(aid, inst.id, relComponents)
	if r == nil || len(ids) == 0 {
		return nil, nil, nil
	}
	comps := make([]codec.Component, 0, len(ids))
	for _, id := range ids {
		ec, ok := s.instances[r.Target()][id]
		if !ok {
			return nil, nil, odserr.ImplementationProblemf("dangling external component id=%d of column id=%d", id, inst.id)
		}
		comp, err := s.component(r.Target(), ec)
		if err != nil {
			return nil, nil, err
		}
		comps = append(comps, comp)
	}
	return comps, ids, nil
}

// component reads the layout stored on an external component instance.
func (s *Store) component(aid int64, ec *instance) (codec.Component, error) {
	file, ok := s.textByBase(aid, ec, ecFile)
	if !ok {
		return codec.Component{}, odserr.BadParameterf("external component id=%d has no %s", ec.id, ecFile)
	}
	num := func(name string) int {
		n, _ := s.intByBase(aid, ec, name)
		return int(n)
	}
	off, _ := s.intByBase(aid, ec, ecStartOffset)
	comp := codec.Component{
		File:           s.segmentName(file),
		StartOffset:    off,
		Length:         num(ecLength),
		TypeSpec:       codec.TypeSpec(num(ecValueType)),
		BlockSize:      num(ecBlockSize),
		ValuesPerBlock: num(ecValuesPerBlock),
		ValueOffset:    num(ecValueOffset),
		BitCount:       num(ecBitCount),
		BitOffset:      num(ecBitOffset),
		Ordinal:        num(ecOrdinal),
	}
	if flags, ok := s.textByBase(aid, ec, ecFlagsFile); ok && flags != "" {
		comp.FlagsFile = s.segmentName(flags)
		comp.FlagsStartOffset, _ = s.intByBase(aid, ec, ecFlagsStartOffset)
	}
	return comp, nil
}

func (s *Store) textByBase(aid int64, inst *instance, baseName string) (string, bool) {
	v, ok := s.storedByBase(aid, inst, baseName)
	if !ok {
		return "", false
	}
	t, err := v.Text()
	return t, err == nil
}

// segmentName turns a stored file name or file URL into a segment name
// relative to the file root.
func (s *Store) segmentName(url string) string {
	name := strings.TrimPrefix(url, "file://")
	if s.settings.FileRoot != "" && filepath.IsAbs(name) {
		if rel, err := filepath.Rel(s.settings.FileRoot, name); err == nil && !strings.HasPrefix(rel, "..") {
			name = rel
		}
	}
	return filepath.ToSlash(name)
}

// createComponent creates an external component instance describing comp and
// links it to column iid.
func (s *Store) createComponent(ctx context.Context, aid, iid int64, comp codec.Component) (int64, error) {
	r, _ := s.relatedByBase(aid, iid, relComponents)
	if r == nil {
		return 0, odserr.BadOperationf("element id=%d has no %s relation", aid, relComponents)
	}
	target := r.Target()
	vals := []value.NamedValue{
		value.Named(attrName, value.Must(value.DTString, fmt.Sprintf("ExtComp%d", comp.Ordinal))),
		value.Named(ecLength, value.Must(value.DTLong, int32(comp.Length))),
		value.Named(ecFile, value.Must(value.DTString, comp.File)),
		value.Named(ecValueType, value.Must(value.DTEnum, int32(comp.TypeSpec))),
		value.Named(ecStartOffset, value.Must(value.DTLongLong, comp.StartOffset)),
		value.Named(ecBlockSize, value.Must(value.DTLong, int32(comp.BlockSize))),
		value.Named(ecValuesPerBlock, value.Must(value.DTLong, int32(comp.ValuesPerBlock))),
		value.Named(ecValueOffset, value.Must(value.DTLong, int32(comp.ValueOffset))),
	}
	optional := []value.NamedValue{
		value.Named(ecOrdinal, value.Must(value.DTLong, int32(comp.Ordinal))),
	}
	if comp.TypeSpec.IsBitPacked() {
		optional = append(optional,
			value.Named(ecBitCount, value.Must(value.DTShort, int16(comp.BitCount))),
			value.Named(ecBitOffset, value.Must(value.DTShort, int16(comp.BitOffset))))
	}
	if comp.FlagsFile != "" {
		optional = append(optional,
			value.Named(ecFlagsFile, value.Must(value.DTString, comp.FlagsFile)),
			value.Named(ecFlagsStartOffset, value.Must(value.DTLongLong, comp.FlagsStartOffset)))
	}
	for _, nv := range optional {
		if _, err := s.schema.AttributeByBaseName(target, nv.Name); err == nil {
			vals = append(vals, nv)
		}
	}
	id, err := s.CreateInstance(ctx, target, vals)
	if err != nil {
		return 0, err
	}
	if err := s.Connect(aid, iid, r.Name(), []int64{id}, Append); err != nil {
		return 0, multierr.Append(err, s.remove(target, id))
	}
	return id, nil
}

// createComponents links one component instance per comps entry to the
// column. If any of them fails, the ones already created are removed again.
func (s *Store) createComponents(ctx context.Context, aid, iid int64, comps []codec.Component) ([]int64, error) {
	ids := make([]int64, 0, len(comps))
	for _, comp := range comps {
		id, err := s.createComponent(ctx, aid, iid, comp)
		if err != nil {
			if r, _ := s.relatedByBase(aid, iid, relComponents); r != nil {
				err = multierr.Append(err, s.removeIDs(r.Target(), ids))
			}
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// removeComponents deletes the external component instances of a column.
// Segment data stays in place.
func (s *Store) removeComponents(aid int64, inst *instance) error {
	r, ids := s.relatedByBase(aid, inst.id, relComponents)
	if r == nil {
		return nil
	}
	return s.removeIDs(r.Target(), ids)
}

func (s *Store) removeIDs(aid int64, ids []int64) error {
	var errs error
	for _, id := range ids {
		errs = multierr.Append(errs, s.remove(aid, id))
	}
	return errs
}

// InlineExternalValues moves the values and flags of every column with
// external components into memory and switches the columns to their inline
// representation. It does nothing when external components are kept.
func (s *Store) InlineExternalValues(ctx context.Context) (err error) {
	defer func() { s.metrics.StoreOp("inline_external", err) }()
	if s.settings.WriteExternalComponents {
		return nil
	}
	for _, e := range s.schema.ElementsByBaseType(schema.AoLocalColumn) {
		values, errV := s.schema.AttributeByBaseName(e.ID(), attrValues)
		flags, errF := s.schema.AttributeByBaseName(e.ID(), attrFlags)
		for _, iid := range s.InstanceIDs(e.ID()) {
			if err := ctx.Err(); err != nil {
				return err
			}
			inst := s.instances[e.ID()][iid]
			comps, _, err := s.componentsOf(e.ID(), inst)
			if err != nil {
				return err
			}
			if len(comps) == 0 {
				continue
			}
			var vals, fl value.Value
			if errV == nil {
				if vals, err = s.columnValues(ctx, e, inst, values); err != nil {
					return err
				}
			}
			if errF == nil {
				if fl, err = s.columnFlags(ctx, e, inst, flags); err != nil {
					return err
				}
			}
			if err := s.removeComponents(e.ID(), inst); err != nil {
				return err
			}
			if errV == nil {
				inst.values[values.Number()] = entry{v: vals}
			}
			if errF == nil && fl.IsValid() {
				inst.values[flags.Number()] = entry{v: fl}
			}
			if err := s.setSeqRep(e.ID(), inst, s.seqRep(e.ID(), inst).Inline()); err != nil {
				return err
			}
			s.logger.Debug("inlined external values", "element", e.Name(), "instance", iid, "components", len(comps))
		}
	}
	return nil
}
