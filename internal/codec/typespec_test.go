package codec

import (
	"testing"

	"atfxcore/pkg/value"
)

func TestTypeSpecTable(t *testing.T) {
	for i := range specs {
		ts := TypeSpec(i)
		if got, err := ParseTypeSpec(ts.String()); err != nil || got != ts {
			t.Fatalf("parse %s = %v %v", ts, got, err)
		}
		pair := ts.WithByteOrder(!ts.BigEndian())
		if back := pair.WithByteOrder(ts.BigEndian()); back != ts && pair != ts {
			t.Fatalf("%s does not pair back: %s -> %s", ts, pair, back)
		}
	}
	if _, err := ParseTypeSpec("dt_nope"); err == nil {
		t.Fatalf("expected unknown type spec error")
	}
	if TypeSpec(99).Valid() || TypeSpec(99).String() != "typespec(99)" {
		t.Fatalf("out of range type spec")
	}
}

func TestTypeSpecProperties(t *testing.T) {
	cases := []struct {
		ts        TypeSpec
		width     int
		bigEndian bool
		text      bool
		bits      bool
	}{
		{Short, 2, false, false, false},
		{ShortBEO, 2, true, false, false},
		{IEEEFloat8BEO, 8, true, false, false},
		{ULong, 4, false, false, false},
		{String, 0, false, true, false},
		{StringUTF8BEO, 0, true, true, false},
		{BitUIntBEO, 0, true, false, true},
	}
	for _, tc := range cases {
		if tc.ts.Width() != tc.width || tc.ts.BigEndian() != tc.bigEndian || tc.ts.IsText() != tc.text || tc.ts.IsBitPacked() != tc.bits {
			t.Fatalf("%s: unexpected properties", tc.ts)
		}
	}
	if LongLong.WithByteOrder(true) != LongLongBEO || IEEEFloat4BEO.WithByteOrder(false) != IEEEFloat4 {
		t.Fatalf("byte order pairing broken")
	}
	if Byte.WithByteOrder(true) != Byte {
		t.Fatalf("single byte specs have no big endian variant")
	}
}

func TestNaturalType(t *testing.T) {
	cases := map[TypeSpec]value.DataType{
		Boolean:       value.DSBoolean,
		Byte:          value.DSByte,
		SByte:         value.DSShort,
		UShortBEO:     value.DSLong,
		ULong:         value.DSLongLong,
		IEEEFloat4BEO: value.DSFloat,
		BitIEEEFloat:  value.DSDouble,
		StringUTF8:    value.DSString,
		ByteStrBEO:    value.DSByteStr,
		BitUInt:       value.DSLongLong,
		Blob:          value.DTUnknown,
	}
	for ts, want := range cases {
		if got := ts.NaturalType(); got != want {
			t.Fatalf("%s natural type = %s, want %s", ts, got, want)
		}
	}
}
