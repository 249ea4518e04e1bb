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

// ReadValues decodes the components of one column as a sequence of kind dt.
// Components are taken in ordinal order and concatenated. No components
// yields the invalid empty sequence.
func (c *Codec) ReadValues(ctx context.Context, comps []Component, dt value.DataType) (out value.Value, err error) {
	if err := ctx.Err(); err != nil {
		return value.Value{}, err
	}
	if !dt.IsSequence() {
		dt = dt.Sequence()
	}
	start := time.Now()
	read := 0
	defer func() { c.metrics.ObserveDecode(start, read, err) }()

	parts := make([]value.Value, 0, len(comps))
	for _, comp := range byOrdinal(comps) {
		part, n, err := c.readComponent(ctx, comp, dt)
		if err != nil {
			return value.Value{}, err
		}
		read += n
		parts = append(parts, part)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return value.Concat(dt, parts...)
}

func (c *Codec) readComponent(ctx context.Context, comp Component, dt value.DataType) (value.Value, int, error) {
	info := comp.TypeSpec.info()
	if comp.TypeSpec.Valid() && info.class == classUnsupported {
		return value.Value{}, 0, odserr.NotImplementedf("component %s#%d: type spec %s", comp.File, comp.Ordinal, comp.TypeSpec)
	}
	if err := comp.validate(); err != nil {
		return value.Value{}, 0, err
	}
	switch info.class {
	case classLatin1, classUTF8:
		if dt != value.DSString && dt != value.DSDate {
			return value.Value{}, 0, mismatch(comp, dt)
		}
		raw, err := c.readSpan(ctx, comp.File, comp.StartOffset, comp.Length)
		if err != nil {
			return value.Value{}, 0, err
		}
		strs, err := decodeText(raw, info.class == classLatin1)
		if err != nil {
			return value.Value{}, 0, odserr.Wrap(odserr.UnknownError, err, "decode text in %s", comp.File)
		}
		v, err := value.New(dt, strs)
		return v, len(raw), err
	case classByteStr:
		if dt != value.DSByteStr {
			return value.Value{}, 0, mismatch(comp, dt)
		}
		raw, err := c.readSpan(ctx, comp.File, comp.StartOffset, comp.Length)
		if err != nil {
			return value.Value{}, 0, err
		}
		items, err := decodeByteStrings(raw)
		if err != nil {
			return value.Value{}, 0, odserr.Wrap(odserr.UnknownError, err, "decode byte strings in %s", comp.File)
		}
		v, err := value.New(dt, items)
		return v, len(raw), err
	}
	if !dt.IsNumeric() && !dt.IsComplex() && dt != value.DSBoolean {
		return value.Value{}, 0, mismatch(comp, dt)
	}
	if comp.Length == 0 {
		return value.Empty(dt), 0, nil
	}
	span := comp.span(comp.Length)
	raw, err := c.readSpan(ctx, comp.File, comp.StartOffset, span)
	if err != nil {
		return value.Value{}, 0, err
	}
	ints, floats, err := decodeNumbers(comp, raw)
	if err != nil {
		return value.Value{}, 0, err
	}
	v, err := numbersAs(dt, ints, floats)
	if err != nil {
		return value.Value{}, 0, odserr.Wrap(odserr.KindOf(err), err, "component %s#%d", comp.File, comp.Ordinal)
	}
	return v, len(raw), nil
}

func mismatch(comp Component, dt value.DataType) error {
	return odserr.BadParameterf("component %s#%d: type spec %s cannot be read as %s", comp.File, comp.Ordinal, comp.TypeSpec, dt)
}

// locate returns the byte position of value i relative to the component start
// and, for bit fields, the bit shift inside that byte.
func (c Component) locate(i int) (pos int, shift int) {
	block, j := i/c.ValuesPerBlock, i%c.ValuesPerBlock
	base := block*c.BlockSize + c.ValueOffset
	if c.TypeSpec.IsBitPacked() {
		bit := c.BitOffset + j*c.BitCount
		return base + bit/8, bit % 8
	}
	return base + j*c.TypeSpec.Width(), 0
}

// size returns the number of bytes value i occupies given its shift.
func (c Component) size(shift int) int {
	if c.TypeSpec.IsBitPacked() {
		return (shift + c.BitCount + 7) / 8
	}
	return c.TypeSpec.Width()
}

// span is the number of bytes from the component start covering the first n
// values.
func (c Component) span(n int) int {
	end := func(i int) int {
		pos, shift := c.locate(i)
		return pos + c.size(shift)
	}
	last := end(n - 1)
	if full := (n - 1) / c.ValuesPerBlock * c.ValuesPerBlock; full > 0 {
		if prev := end(full - 1); prev > last {
			last = prev
		}
	}
	return last
}

// decodeNumbers returns either integer or floating numbers of the component.
func decodeNumbers(comp Component, raw []byte) ([]int64, []float64, error) {
	info := comp.TypeSpec.info()
	order := comp.TypeSpec.ByteOrder()
	n := comp.Length
	switch info.class {
	case classFloat:
		out := make([]float64, n)
		for i := range out {
			pos, _ := comp.locate(i)
			if info.width == 4 {
				out[i] = float64(math.Float32frombits(order.Uint32(raw[pos:])))
			} else {
				out[i] = math.Float64frombits(order.Uint64(raw[pos:]))
			}
		}
		return nil, out, nil
	case classBitFloat:
		if comp.BitCount != 32 && comp.BitCount != 64 {
			return nil, nil, odserr.NotImplementedf("component %s#%d: %d-bit floating point fields", comp.File, comp.Ordinal, comp.BitCount)
		}
		out := make([]float64, n)
		for i := range out {
			bits, err := comp.bitField(raw, i)
			if err != nil {
				return nil, nil, err
			}
			if comp.BitCount == 32 {
				out[i] = float64(math.Float32frombits(uint32(bits)))
			} else {
				out[i] = math.Float64frombits(bits)
			}
		}
		return nil, out, nil
	case classBitInt, classBitUint:
		out := make([]int64, n)
		for i := range out {
			bits, err := comp.bitField(raw, i)
			if err != nil {
				return nil, nil, err
			}
			if info.class == classBitInt {
				out[i] = signExtend(bits, comp.BitCount)
			} else {
				out[i] = int64(bits)
			}
		}
		return out, nil, nil
	}
	out := make([]int64, n)
	for i := range out {
		pos, _ := comp.locate(i)
		out[i] = fixedInt(info, order, raw[pos:])
	}
	return out, nil, nil
}

func fixedInt(info specInfo, order binary.ByteOrder, b []byte) int64 {
	signed := info.class == classInt
	switch info.width {
	case 1:
		if signed {
			return int64(int8(b[0]))
		}
		return int64(b[0])
	case 2:
		if signed {
			return int64(int16(order.Uint16(b)))
		}
		return int64(order.Uint16(b))
	case 4:
		if signed {
			return int64(int32(order.Uint32(b)))
		}
		return int64(order.Uint32(b))
	}
	return int64(order.Uint64(b))
}

// bitField extracts the raw bits of value i. Bytes are assembled in the
// component byte order before shifting out the bit offset.
func (c Component) bitField(raw []byte, i int) (uint64, error) {
	pos, shift := c.locate(i)
	if shift+c.BitCount > 64 {
		return 0, odserr.NotImplementedf("component %s#%d: bit field of %d bits at shift %d spans more than 8 bytes",
			c.File, c.Ordinal, c.BitCount, shift)
	}
	b := raw[pos : pos+c.size(shift)]
	var v uint64
	if c.TypeSpec.BigEndian() {
		for _, x := range b {
			v = v<<8 | uint64(x)
		}
	} else {
		for k, x := range b {
			v |= uint64(x) << (8 * k)
		}
	}
	v >>= uint(shift)
	if c.BitCount < 64 {
		v &= 1<<uint(c.BitCount) - 1
	}
	return v, nil
}

func signExtend(v uint64, bits int) int64 {
	if bits >= 64 {
		return int64(v)
	}
	if v&(1<<uint(bits-1)) != 0 {
		v |= ^uint64(0) << uint(bits)
	}
	return int64(v)
}

// numbersAs builds a sequence of kind dt from decoded numbers.
func numbersAs(dt value.DataType, ints []int64, floats []float64) (value.Value, error) {
	n := len(ints) + len(floats)
	get := func(i int) float64 {
		if floats != nil {
			return floats[i]
		}
		return float64(ints[i])
	}
	switch {
	case dt == value.DSBoolean:
		out := make([]bool, n)
		for i := range out {
			out[i] = get(i) != 0
		}
		return value.New(dt, out)
	case dt.IsComplex():
		if n%2 != 0 {
			return value.Value{}, odserr.BadParameterf("odd number of values %d for %s", n, dt)
		}
		if dt == value.DSComplex {
			out := make([]value.Complex, n/2)
			for i := range out {
				out[i] = value.Complex{Re: float32(get(2 * i)), Im: float32(get(2*i + 1))}
			}
			return value.New(dt, out)
		}
		out := make([]value.DComplex, n/2)
		for i := range out {
			out[i] = value.DComplex{Re: get(2 * i), Im: get(2*i + 1)}
		}
		return value.New(dt, out)
	}
	var (
		v   value.Value
		err error
	)
	if floats != nil {
		v, err = value.New(value.DSDouble, floats)
	} else {
		v, err = value.New(value.DSLongLong, ints)
	}
	if err != nil {
		return value.Value{}, err
	}
	return value.Convert(v, dt)
}

// decodeText splits NUL-terminated strings. A missing final terminator is
// tolerated.
func decodeText(raw []byte, latin1 bool) ([]string, error) {
	if latin1 {
		dec, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, err
		}
		raw = dec
	}
	var out []string
	start := 0
	for i, b := range raw {
		if b == 0 {
			out = append(out, string(raw[start:i]))
			start = i + 1
		}
	}
	if start < len(raw) {
		out = append(out, string(raw[start:]))
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// decodeByteStrings reads items prefixed by a big endian uint32 length.
func decodeByteStrings(raw []byte) ([][]byte, error) {
	out := [][]byte{}
	for len(raw) > 0 {
		if len(raw) < 4 {
			return nil, odserr.New(odserr.UnknownError, "truncated byte string header")
		}
		n := binary.BigEndian.Uint32(raw)
		raw = raw[4:]
		if uint64(n) > uint64(len(raw)) {
			return nil, odserr.New(odserr.UnknownError, "byte string of %d bytes exceeds remaining %d", n, len(raw))
		}
		item := make([]byte, n)
		copy(item, raw)
		out = append(out, item)
		raw = raw[n:]
	}
	return out, nil
}
