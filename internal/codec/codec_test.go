package codec

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"atfxcore/internal/blob"
	"atfxcore/internal/logging"
	"atfxcore/internal/metrics"
	"atfxcore/pkg/odserr"
	"atfxcore/pkg/value"
)

func seed(t *testing.T, store blob.Store, name string, data []byte) {
	t.Helper()
	if _, err := store.Append(context.Background(), name, data); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
}

func TestRoundTripEveryKind(t *testing.T) {
	cases := []value.Value{
		value.Must(value.DSShort, []int16{math.MinInt16, -1, 0, math.MaxInt16}),
		value.Must(value.DSLong, []int32{math.MinInt32, 7, math.MaxInt32}),
		value.Must(value.DSLongLong, []int64{math.MinInt64, 0, math.MaxInt64}),
		value.Must(value.DSID, []int64{1, math.MaxInt64}),
		value.Must(value.DSEnum, []int32{0, 3}),
		value.Must(value.DSByte, []uint8{0, 128, 255}),
		value.Must(value.DSBoolean, []bool{true, false, true}),
		value.Must(value.DSFloat, []float32{-math.MaxFloat32, math.SmallestNonzeroFloat32, 0, math.MaxFloat32}),
		value.Must(value.DSDouble, []float64{-math.MaxFloat64, math.SmallestNonzeroFloat64, 1.5, math.MaxFloat64}),
		value.Must(value.DSComplex, []value.Complex{{Re: 1, Im: -1}, {Re: math.MaxFloat32, Im: 0}}),
		value.Must(value.DSDComplex, []value.DComplex{{Re: math.MaxFloat64, Im: -2.5}}),
		value.Must(value.DSString, []string{"alpha", "", "Ümlaut €"}),
		value.Must(value.DSDate, []string{"20240131120000"}),
		value.Must(value.DSByteStr, [][]byte{{0x00, 0xff}, {}, []byte("xyz")}),
	}
	for _, big := range []bool{false, true} {
		store := blob.NewMemory()
		c := New(store, WithBaseName("rt"), WithBigEndian(big))
		for _, want := range cases {
			comps, err := c.WriteValues(context.Background(), want)
			if err != nil {
				t.Fatalf("write %s (big=%v): %v", want.Type(), big, err)
			}
			got, err := c.ReadValues(context.Background(), comps, want.Type())
			if err != nil {
				t.Fatalf("read %s (big=%v): %v", want.Type(), big, err)
			}
			if !value.Equal(got, want) {
				t.Fatalf("round trip %s (big=%v): got %v want %v", want.Type(), big, got, want)
			}
			if want.Type().IsNumeric() && comps[0].TypeSpec.BigEndian() != big && comps[0].TypeSpec.Width() > 1 {
				t.Fatalf("%s written as %s with big=%v", want.Type(), comps[0].TypeSpec, big)
			}
		}
	}
}

func TestDecodedBytesEncodeIdentically(t *testing.T) {
	store := blob.NewMemory()
	raw := []byte{
		0x80, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0x2a,
		0x7f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	}
	seed(t, store, "src.btf", raw)
	c := New(store, WithBaseName("dst"), WithBigEndian(true))
	v, err := c.ReadValues(context.Background(), []Component{{
		File: "src.btf", Length: 3, TypeSpec: LongLongBEO, BlockSize: 8, ValuesPerBlock: 1, Ordinal: 1,
	}}, value.DSLongLong)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	comps, err := c.WriteValues(context.Background(), v)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if comps[0].TypeSpec != LongLongBEO || comps[0].File != "dst_1.btf" {
		t.Fatalf("unexpected component %+v", comps[0])
	}
	buf := make([]byte, len(raw))
	if _, err := store.ReadAt(context.Background(), "dst_1.btf", buf, 0); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(buf, raw) {
		t.Fatalf("bytes differ: %x vs %x", buf, raw)
	}
}

func TestDoubleColumnLayout(t *testing.T) {
	c := New(blob.NewMemory(), WithBaseName("meas"), WithMaxSegmentSize(1<<20))
	comps, err := c.WriteValues(context.Background(), value.Must(value.DSDouble, []float64{1, 2, 3}))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(comps) != 1 {
		t.Fatalf("expected one component, got %d", len(comps))
	}
	comp := comps[0]
	if comp.Length != 3 || comp.BlockSize != 8 || comp.ValuesPerBlock != 1 || comp.ValueOffset != 0 || comp.Ordinal != 1 {
		t.Fatalf("unexpected layout %+v", comp)
	}
	if comp.TypeSpec != IEEEFloat8 || comp.File != "meas_1.btf" || comp.StartOffset != 0 {
		t.Fatalf("unexpected placement %+v", comp)
	}
	got, err := c.ReadValues(context.Background(), comps, value.DSDouble)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	f, _ := got.Float64s()
	if len(f) != 3 || f[0] != 1 || f[1] != 2 || f[2] != 3 {
		t.Fatalf("read back %v", f)
	}
}

func TestBitPackedFields(t *testing.T) {
	store := blob.NewMemory()
	seed(t, store, "bits.btf", []byte{0x5A, 0xC3, 0x7E})
	c := New(store)
	cases := []struct {
		spec TypeSpec
		want int64
	}{
		{BitUInt, 3125},
		{BitInt, -971},
		{BitUIntBEO, 1452},
		{BitIntBEO, 1452},
	}
	for _, tc := range cases {
		comp := Component{File: "bits.btf", Length: 1, TypeSpec: tc.spec, BlockSize: 3, ValuesPerBlock: 1, BitCount: 12, BitOffset: 4, Ordinal: 1}
		v, err := c.ReadValues(context.Background(), []Component{comp}, value.DSLong)
		if err != nil {
			t.Fatalf("%s: %v", tc.spec, err)
		}
		n, _ := v.Int64s()
		if len(n) != 1 || n[0] != tc.want {
			t.Fatalf("%s: got %v want %d", tc.spec, n, tc.want)
		}
	}
}

func TestBitPackedMultipleValuesPerBlock(t *testing.T) {
	store := blob.NewMemory()
	// two blocks of one byte, each holding two 4-bit unsigned fields
	seed(t, store, "nibbles.btf", []byte{0x21, 0x43})
	c := New(store)
	comp := Component{File: "nibbles.btf", Length: 4, TypeSpec: BitUInt, BlockSize: 1, ValuesPerBlock: 2, BitCount: 4, Ordinal: 1}
	v, err := c.ReadValues(context.Background(), []Component{comp}, value.DSShort)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	n, _ := v.Int64s()
	want := []int64{1, 2, 3, 4}
	for i := range want {
		if n[i] != want[i] {
			t.Fatalf("got %v want %v", n, want)
		}
	}
}

func TestBitPackedFloatWidth(t *testing.T) {
	store := blob.NewMemory()
	seed(t, store, "f.btf", []byte{0, 0, 0xc0, 0x3f, 0})
	c := New(store)
	comp := Component{File: "f.btf", Length: 1, TypeSpec: BitIEEEFloat, BlockSize: 5, ValuesPerBlock: 1, BitCount: 32, Ordinal: 1}
	v, err := c.ReadValues(context.Background(), []Component{comp}, value.DSFloat)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f, _ := v.Float64s(); f[0] != 1.5 {
		t.Fatalf("got %v", f)
	}
	comp.BitCount = 16
	if _, err := c.ReadValues(context.Background(), []Component{comp}, value.DSFloat); !errors.Is(err, odserr.ErrNotImplemented) {
		t.Fatalf("expected NotImplemented, got %v", err)
	}
}

func TestBlockLayoutWithValueOffset(t *testing.T) {
	store := blob.NewMemory()
	// block: 2 header bytes, two int16 values, 4 trailing bytes
	seed(t, store, "blk.btf", []byte{
		0xee, 0xee, 0x01, 0x00, 0x02, 0x00, 0xee, 0xee, 0xee, 0xee,
		0xee, 0xee, 0x03, 0x00, 0xff, 0xff,
	})
	c := New(store)
	comp := Component{File: "blk.btf", Length: 3, TypeSpec: Short, BlockSize: 10, ValuesPerBlock: 2, ValueOffset: 2, Ordinal: 1}
	v, err := c.ReadValues(context.Background(), []Component{comp}, value.DSShort)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !value.Equal(v, value.Must(value.DSShort, []int16{1, 2, 3})) {
		t.Fatalf("got %v", v)
	}
}

func TestUnsignedAndSignedByteSpecs(t *testing.T) {
	store := blob.NewMemory()
	seed(t, store, "u.btf", []byte{0xff, 0xff, 0xff, 0xff})
	c := New(store)
	cases := []struct {
		spec TypeSpec
		n    int
		want int64
	}{
		{UShort, 2, 65535},
		{ULongBEO, 1, 4294967295},
		{SByte, 4, -1},
	}
	for _, tc := range cases {
		comp := Component{File: "u.btf", Length: tc.n, TypeSpec: tc.spec, BlockSize: tc.spec.Width(), ValuesPerBlock: 1, Ordinal: 1}
		v, err := c.ReadValues(context.Background(), []Component{comp}, value.DSLongLong)
		if err != nil {
			t.Fatalf("%s: %v", tc.spec, err)
		}
		n, _ := v.Int64s()
		if len(n) != tc.n || n[0] != tc.want {
			t.Fatalf("%s: got %v", tc.spec, n)
		}
	}
}

func TestLatin1Strings(t *testing.T) {
	store := blob.NewMemory()
	c := New(store, WithBaseName("l1"), WithLatin1Strings(true))
	want := value.Must(value.DSString, []string{"café", "x"})
	comps, err := c.WriteValues(context.Background(), want)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if comps[0].TypeSpec != String || comps[0].File != "l1_string_1.btf" {
		t.Fatalf("unexpected component %+v", comps[0])
	}
	if comps[0].Length != 7 || comps[0].ValuesPerBlock != 2 {
		t.Fatalf("unexpected text layout %+v", comps[0])
	}
	raw := make([]byte, 7)
	if _, err := store.ReadAt(context.Background(), "l1_string_1.btf", raw, 0); err != nil {
		t.Fatalf("raw read: %v", err)
	}
	if !bytes.Equal(raw, []byte{'c', 'a', 'f', 0xe9, 0, 'x', 0}) {
		t.Fatalf("latin-1 bytes %x", raw)
	}
	got, err := c.ReadValues(context.Background(), comps, value.DSString)
	if err != nil || !value.Equal(got, want) {
		t.Fatalf("read back %v %v", got, err)
	}
	if _, err := c.WriteValues(context.Background(), value.Must(value.DSString, []string{"€"})); !errors.Is(err, odserr.ErrBadParameter) {
		t.Fatalf("expected BadParameter for unrepresentable rune, got %v", err)
	}
}

func TestNumericSegmentRollover(t *testing.T) {
	store := blob.NewMemory()
	c := New(store, WithBaseName("m"), WithMaxSegmentSize(32), WithMetrics(metrics.New()), WithLogger(logging.Noop()))
	seq := value.Must(value.DSDouble, []float64{1, 2, 3})
	first, err := c.WriteValues(context.Background(), seq)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	second, err := c.WriteValues(context.Background(), seq)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if first[0].File != "m_1.btf" || second[0].File != "m_2.btf" || second[0].StartOffset != 0 {
		t.Fatalf("expected rollover, got %+v then %+v", first[0], second[0])
	}
	small, err := c.WriteValues(context.Background(), value.Must(value.DSShort, []int16{1, 2}))
	if err != nil {
		t.Fatalf("third write: %v", err)
	}
	if small[0].File != "m_2.btf" || small[0].StartOffset != 24 {
		t.Fatalf("small write should share the open segment, got %+v", small[0])
	}
}

func TestByteStringRolloverPerValue(t *testing.T) {
	store := blob.NewMemory()
	c := New(store, WithBaseName("b"), WithMaxSegmentSize(20))
	want := value.Must(value.DSByteStr, [][]byte{[]byte("aaaa"), []byte("bbbb"), []byte("cccc")})
	comps, err := c.WriteValues(context.Background(), want)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(comps) != 2 {
		t.Fatalf("expected two components, got %+v", comps)
	}
	if comps[0].File != "b_bytestr_1.btf" || comps[0].ValuesPerBlock != 2 || comps[0].Ordinal != 1 {
		t.Fatalf("first component %+v", comps[0])
	}
	if comps[1].File != "b_bytestr_2.btf" || comps[1].ValuesPerBlock != 1 || comps[1].Ordinal != 2 {
		t.Fatalf("second component %+v", comps[1])
	}
	got, err := c.ReadValues(context.Background(), comps, value.DSByteStr)
	if err != nil || !value.Equal(got, want) {
		t.Fatalf("read back %v %v", got, err)
	}
}

func TestComponentsAreConcatenatedByOrdinal(t *testing.T) {
	store := blob.NewMemory()
	seed(t, store, "o.btf", []byte{1, 0, 2, 0, 3, 0})
	c := New(store)
	comps := []Component{
		{File: "o.btf", StartOffset: 4, Length: 1, TypeSpec: Short, BlockSize: 2, ValuesPerBlock: 1, Ordinal: 2},
		{File: "o.btf", StartOffset: 0, Length: 2, TypeSpec: Short, BlockSize: 2, ValuesPerBlock: 1, Ordinal: 1},
	}
	v, err := c.ReadValues(context.Background(), comps, value.DSLong)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !value.Equal(v, value.Must(value.DSLong, []int32{1, 2, 3})) {
		t.Fatalf("got %v", v)
	}
	if v, err := c.ReadValues(context.Background(), nil, value.DSLong); err != nil || v.IsValid() {
		t.Fatalf("no components should give an invalid value, got %v %v", v, err)
	}
}

func TestReadFailures(t *testing.T) {
	store := blob.NewMemory()
	seed(t, store, "short.btf", make([]byte, 8))
	seed(t, store, "odd.btf", make([]byte, 12))
	c := New(store)
	cases := []struct {
		name string
		comp Component
		dt   value.DataType
		want error
	}{
		{"missing file", Component{File: "nope.btf", Length: 1, TypeSpec: IEEEFloat8, BlockSize: 8, ValuesPerBlock: 1}, value.DSDouble, odserr.ErrNotFound},
		{"short read", Component{File: "short.btf", Length: 10, TypeSpec: IEEEFloat8, BlockSize: 8, ValuesPerBlock: 1}, value.DSDouble, odserr.ErrUnknown},
		{"odd complex", Component{File: "odd.btf", Length: 3, TypeSpec: IEEEFloat4, BlockSize: 4, ValuesPerBlock: 1}, value.DSComplex, odserr.ErrBadParameter},
		{"blob spec", Component{File: "short.btf", Length: 1, TypeSpec: Blob}, value.DSByteStr, odserr.ErrNotImplemented},
		{"text as number", Component{File: "short.btf", Length: 8, TypeSpec: StringUTF8}, value.DSDouble, odserr.ErrBadParameter},
		{"bad layout", Component{File: "short.btf", Length: 1, TypeSpec: Short}, value.DSShort, odserr.ErrBadParameter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.ReadValues(context.Background(), []Component{tc.comp}, tc.dt)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestTruncatedByteStrings(t *testing.T) {
	store := blob.NewMemory()
	seed(t, store, "bs.btf", []byte{0, 0, 0, 9, 'a'})
	c := New(store)
	comp := Component{File: "bs.btf", Length: 5, TypeSpec: ByteStr, ValuesPerBlock: 1}
	if _, err := c.ReadValues(context.Background(), []Component{comp}, value.DSByteStr); !errors.Is(err, odserr.ErrUnknown) {
		t.Fatalf("expected UnknownError, got %v", err)
	}
}

func TestWriteRejectsUnsupportedKinds(t *testing.T) {
	c := New(blob.NewMemory())
	ref := value.Must(value.DSExternalReference, []value.ExternalReference{{Location: "x.bin"}})
	if _, err := c.WriteValues(context.Background(), ref); !errors.Is(err, odserr.ErrNotImplemented) {
		t.Fatalf("expected NotImplemented, got %v", err)
	}
	if _, err := c.WriteValues(context.Background(), value.Empty(value.DSDouble)); !errors.Is(err, odserr.ErrBadParameter) {
		t.Fatalf("expected BadParameter, got %v", err)
	}
	comps, err := c.WriteValues(context.Background(), value.Must(value.DTLong, int32(5)))
	if err != nil || len(comps) != 1 || comps[0].Length != 1 {
		t.Fatalf("scalar write %+v %v", comps, err)
	}
}

func TestFlagsRoundTrip(t *testing.T) {
	store := blob.NewMemory()
	c := New(store, WithBaseName("fl"), WithBigEndian(true))
	comps, err := c.WriteValues(context.Background(), value.Must(value.DSLong, []int32{10, 20, 30}))
	if err != nil {
		t.Fatalf("write values: %v", err)
	}
	if got, err := c.ReadFlags(context.Background(), comps, value.DSLong); err != nil || got.IsValid() {
		t.Fatalf("flags before writing should be invalid, got %v %v", got, err)
	}
	if err := c.WriteFlags(context.Background(), &comps[0], []int16{15, 0, -1}); err != nil {
		t.Fatalf("write flags: %v", err)
	}
	if comps[0].FlagsFile != "fl_flags_1.btf" || comps[0].FlagsStartOffset != 0 {
		t.Fatalf("flags location %+v", comps[0])
	}
	raw := make([]byte, 2)
	if _, err := store.ReadAt(context.Background(), "fl_flags_1.btf", raw, 0); err != nil || raw[0] != 0 || raw[1] != 15 {
		t.Fatalf("flags should be big endian, got %x %v", raw, err)
	}
	got, err := c.ReadFlags(context.Background(), comps, value.DSLong)
	if err != nil {
		t.Fatalf("read flags: %v", err)
	}
	if !value.Equal(got, value.Must(value.DSShort, []int16{15, 0, -1})) {
		t.Fatalf("flags %v", got)
	}
}

func TestFlagWritesAreNotComponents(t *testing.T) {
	m := metrics.New()
	c := New(blob.NewMemory(), WithMetrics(m))
	comps, err := c.WriteValues(context.Background(), value.Must(value.DSLong, []int32{1, 2}))
	if err != nil {
		t.Fatalf("write values: %v", err)
	}
	if err := c.WriteFlags(context.Background(), &comps[0], []int16{3, 3}); err != nil {
		t.Fatalf("write flags: %v", err)
	}
	if got := promtest.ToFloat64(m.ComponentsWritten); got != 1 {
		t.Fatalf("components written = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.BytesWritten.WithLabelValues(FamilyFlags)); got != 4 {
		t.Fatalf("flag bytes = %v, want 4", got)
	}
}

func TestFilesystemBackedRoundTrip(t *testing.T) {
	store, err := blob.NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("filesystem: %v", err)
	}
	c := New(store, WithBaseName("disk"))
	want := value.Must(value.DSFloat, []float32{0.25, -8})
	comps, err := c.WriteValues(context.Background(), want)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := c.ReadValues(context.Background(), comps, value.DSFloat)
	if err != nil || !value.Equal(got, want) {
		t.Fatalf("read back %v %v", got, err)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(blob.NewMemory())
	if _, err := c.WriteValues(ctx, value.Must(value.DSShort, []int16{1})); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
