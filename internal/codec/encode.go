package codec

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"golang.org/x/text/encoding/charmap"

	"atfxcore/pkg/odserr"
	"atfxcore/pkg/value"
)

// typeSpecFor returns the little endian type spec used to write kind dt.
func (c *Codec) typeSpecFor(dt value.DataType) (TypeSpec, error) {
	var t TypeSpec
	switch dt {
	case value.DSBoolean:
		t = Boolean
	case value.DSByte:
		t = Byte
	case value.DSShort:
		t = Short
	case value.DSLong, value.DSEnum:
		t = Long
	case value.DSLongLong, value.DSID:
		t = LongLong
	case value.DSFloat, value.DSComplex:
		t = IEEEFloat4
	case value.DSDouble, value.DSDComplex:
		t = IEEEFloat8
	case value.DSString, value.DSDate:
		if c.latin1 {
			return String, nil
		}
		t = StringUTF8
	case value.DSByteStr:
		t = ByteStr
	default:
		return 0, odserr.NotImplementedf("writing %s to external components", dt)
	}
	return t.WithByteOrder(c.big), nil
}

// WriteValues appends v to the segment family of its kind and returns one
// component per segment used. Ordinals start at 1. A scalar is written as a
// one-element sequence; an empty sequence writes nothing.
func (c *Codec) WriteValues(ctx context.Context, v value.Value) (comps []Component, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !v.IsValid() {
		return nil, odserr.BadParameterf("cannot write invalid %s value", v.Type())
	}
	start := time.Now()
	defer func() {
		c.metrics.ObserveEncode(start, err)
		if err == nil {
			c.metrics.Produced(len(comps))
		}
	}()

	dt := v.Type()
	if !dt.IsSequence() {
		dt = dt.Sequence()
		if v, err = value.Convert(v, dt); err != nil {
			return nil, err
		}
	}
	spec, err := c.typeSpecFor(dt)
	if err != nil {
		return nil, err
	}
	if v.Len() == 0 {
		return nil, nil
	}
	switch {
	case spec.IsByteStr():
		return c.writeByteStrings(ctx, spec, v)
	case spec.IsText():
		strs, err := v.Strings()
		if err != nil {
			return nil, err
		}
		data, err := encodeText(strs, spec == String)
		if err != nil {
			return nil, err
		}
		comp, err := c.writeChunk(ctx, FamilyString, data)
		if err != nil {
			return nil, err
		}
		comp.TypeSpec = spec
		comp.Length = len(data)
		comp.BlockSize = len(data)
		comp.ValuesPerBlock = len(strs)
		return []Component{comp}, nil
	}
	data, count, err := encodeNumbers(v, spec)
	if err != nil {
		return nil, err
	}
	comp, err := c.writeChunk(ctx, FamilyGeneral, data)
	if err != nil {
		return nil, err
	}
	comp.TypeSpec = spec
	comp.Length = count
	comp.BlockSize = spec.Width()
	comp.ValuesPerBlock = 1
	return []Component{comp}, nil
}

// writeChunk appends data as a whole to the first segment of family with
// room for it.
func (c *Codec) writeChunk(ctx context.Context, family string, data []byte) (Component, error) {
	n, name, _, err := c.pick(ctx, family, c.hint(family), int64(len(data)))
	if err != nil {
		return Component{}, err
	}
	off, err := c.appendTo(ctx, family, name, data)
	if err != nil {
		return Component{}, err
	}
	c.remember(family, n)
	c.logger.Debug("wrote external component", "segment", name, "offset", off, "bytes", len(data))
	return Component{File: name, StartOffset: off, Ordinal: 1}, nil
}

// writeByteStrings groups values per segment; a value that would push the
// current segment past the limit starts the next one.
func (c *Codec) writeByteStrings(ctx context.Context, spec TypeSpec, v value.Value) ([]Component, error) {
	items, ok := v.Raw().([][]byte)
	if !ok {
		return nil, odserr.ImplementationProblemf("byte string payload is %T", v.Raw())
	}
	var (
		comps []Component
		group []byte
		count int
	)
	first := encodeByteString(items[0])
	n, name, size, err := c.pick(ctx, FamilyByteStr, c.hint(FamilyByteStr), int64(len(first)))
	if err != nil {
		return nil, err
	}
	flush := func() error {
		off, err := c.appendTo(ctx, FamilyByteStr, name, group)
		if err != nil {
			return err
		}
		comps = append(comps, Component{
			File:           name,
			StartOffset:    off,
			Length:         len(group),
			TypeSpec:       spec,
			BlockSize:      len(group),
			ValuesPerBlock: count,
			Ordinal:        len(comps) + 1,
		})
		c.logger.Debug("wrote byte string component", "segment", name, "offset", off, "values", count)
		group, count = nil, 0
		return nil
	}
	for _, item := range items {
		enc := encodeByteString(item)
		if count > 0 && c.maxSize > 0 && size+int64(len(group)+len(enc)) > c.maxSize {
			if err := flush(); err != nil {
				return nil, err
			}
			if n, name, size, err = c.pick(ctx, FamilyByteStr, n, int64(len(enc))); err != nil {
				return nil, err
			}
		}
		group = append(group, enc...)
		count++
	}
	if err := flush(); err != nil {
		return nil, err
	}
	c.remember(FamilyByteStr, n)
	return comps, nil
}

func encodeByteString(b []byte) []byte {
	out := make([]byte, 4+len(b))
	binary.BigEndian.PutUint32(out, uint32(len(b)))
	copy(out[4:], b)
	return out
}

func encodeText(strs []string, latin1 bool) ([]byte, error) {
	var out []byte
	enc := charmap.ISO8859_1.NewEncoder()
	for i, s := range strs {
		b := []byte(s)
		if latin1 {
			var err error
			if b, err = enc.Bytes(b); err != nil {
				return nil, odserr.Wrap(odserr.BadParameter, err, "string %d is not representable in ISO 8859-1", i)
			}
		}
		out = append(out, b...)
		out = append(out, 0)
	}
	return out, nil
}

// encodeNumbers lays out v as consecutive values of spec and returns the
// number of values written, which counts real and imaginary parts separately.
func encodeNumbers(v value.Value, spec TypeSpec) ([]byte, int, error) {
	order := spec.ByteOrder()
	w := spec.Width()
	var nums []float64
	var ints []int64
	switch raw := v.Raw().(type) {
	case []bool:
		ints = make([]int64, len(raw))
		for i, b := range raw {
			if b {
				ints[i] = 1
			}
		}
	case []float32:
		nums = make([]float64, len(raw))
		for i, f := range raw {
			nums[i] = float64(f)
		}
	case []float64:
		nums = raw
	case []value.Complex:
		nums = make([]float64, 0, 2*len(raw))
		for _, c := range raw {
			nums = append(nums, float64(c.Re), float64(c.Im))
		}
	case []value.DComplex:
		nums = make([]float64, 0, 2*len(raw))
		for _, c := range raw {
			nums = append(nums, c.Re, c.Im)
		}
	default:
		var err error
		if ints, err = v.Int64s(); err != nil {
			return nil, 0, odserr.Wrap(odserr.ImplementationProblem, err, "encode %s", v.Type())
		}
	}
	count := len(ints) + len(nums)
	out := make([]byte, count*w)
	for i := 0; i < count; i++ {
		b := out[i*w:]
		if nums != nil {
			if w == 4 {
				order.PutUint32(b, math.Float32bits(float32(nums[i])))
			} else {
				order.PutUint64(b, math.Float64bits(nums[i]))
			}
			continue
		}
		x := ints[i]
		switch w {
		case 1:
			b[0] = byte(x)
		case 2:
			order.PutUint16(b, uint16(x))
		case 4:
			order.PutUint32(b, uint32(x))
		default:
			order.PutUint64(b, uint64(x))
		}
	}
	return out, count, nil
}

// WriteFlags appends flags to the flags family in the byte order of comp's
// type spec and records their location on comp.
func (c *Codec) WriteFlags(ctx context.Context, comp *Component, flags []int16) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	defer func() { c.metrics.ObserveEncode(start, err) }()
	order := comp.TypeSpec.ByteOrder()
	data := make([]byte, 2*len(flags))
	for i, f := range flags {
		order.PutUint16(data[2*i:], uint16(f))
	}
	n, name, _, err := c.pick(ctx, FamilyFlags, c.hint(FamilyFlags), int64(len(data)))
	if err != nil {
		return err
	}
	off, err := c.appendTo(ctx, FamilyFlags, name, data)
	if err != nil {
		return err
	}
	c.remember(FamilyFlags, n)
	comp.FlagsFile = name
	comp.FlagsStartOffset = off
	return nil
}

// ReadFlags decodes the flags of all components in ordinal order as a
// DS_SHORT sequence. When any component has no flags file the result is the
// invalid empty sequence.
func (c *Codec) ReadFlags(ctx context.Context, comps []Component, dt value.DataType) (out value.Value, err error) {
	if err := ctx.Err(); err != nil {
		return value.Value{}, err
	}
	if !dt.IsSequence() {
		dt = dt.Sequence()
	}
	start := time.Now()
	read := 0
	defer func() { c.metrics.ObserveDecode(start, read, err) }()
	if len(comps) == 0 {
		return value.Empty(value.DSShort), nil
	}
	var flags []int16
	for _, comp := range byOrdinal(comps) {
		if comp.FlagsFile == "" {
			return value.Empty(value.DSShort), nil
		}
		count := comp.ValueCount(dt)
		raw, err := c.readSpan(ctx, comp.FlagsFile, comp.FlagsStartOffset, 2*count)
		if err != nil {
			return value.Value{}, err
		}
		read += len(raw)
		order := comp.TypeSpec.ByteOrder()
		for i := 0; i < count; i++ {
			flags = append(flags, int16(order.Uint16(raw[2*i:])))
		}
	}
	if flags == nil {
		flags = []int16{}
	}
	return value.New(value.DSShort, flags)
}
