// Package codec reads and writes value and flag sequences of external
// components: fixed-layout blocks inside segment files addressed through a
// blob.Store. Every call opens, reads or appends, and returns; nothing is
// cached between calls.
package codec

import (
	"encoding/binary"
	"fmt"
	"strings"

	"atfxcore/pkg/value"
)

// TypeSpec is the closed set of external component value type codes. Codes
// are shared with the typespec_enum of the base model.
type TypeSpec int32

const (
	Boolean         TypeSpec = 0
	Byte            TypeSpec = 1
	Short           TypeSpec = 2
	Long            TypeSpec = 3
	LongLong        TypeSpec = 4
	IEEEFloat4      TypeSpec = 5
	IEEEFloat8      TypeSpec = 6
	ShortBEO        TypeSpec = 7
	LongBEO         TypeSpec = 8
	LongLongBEO     TypeSpec = 9
	IEEEFloat4BEO   TypeSpec = 10
	IEEEFloat8BEO   TypeSpec = 11
	String          TypeSpec = 12
	ByteStr         TypeSpec = 13
	Blob            TypeSpec = 14
	BooleanFlagsBEO TypeSpec = 15
	ByteFlagsBEO    TypeSpec = 16
	StringFlagsBEO  TypeSpec = 17
	ByteStrBEO      TypeSpec = 18
	SByte           TypeSpec = 19
	SByteFlagsBEO   TypeSpec = 20
	UShort          TypeSpec = 21
	UShortBEO       TypeSpec = 22
	ULong           TypeSpec = 23
	ULongBEO        TypeSpec = 24
	StringUTF8      TypeSpec = 25
	StringUTF8BEO   TypeSpec = 26
	BitInt          TypeSpec = 27
	BitIntBEO       TypeSpec = 28
	BitUInt         TypeSpec = 29
	BitUIntBEO      TypeSpec = 30
	BitIEEEFloat    TypeSpec = 31
	BitIEEEFloatBEO TypeSpec = 32
)

// encoding classes
type class uint8

const (
	classUnsupported class = iota
	classBool
	classInt
	classUint
	classFloat
	classLatin1
	classUTF8
	classByteStr
	classBitInt
	classBitUint
	classBitFloat
)

type specInfo struct {
	name      string
	class     class
	width     int // bytes per value, 0 when variable or bit packed
	bigEndian bool
	// pair is the variant with the opposite byte order, or itself for
	// single-byte encodings.
	pair TypeSpec
}

var specs = [...]specInfo{
	Boolean:         {"dt_boolean", classBool, 1, false, Boolean},
	Byte:            {"dt_byte", classUint, 1, false, Byte},
	Short:           {"dt_short", classInt, 2, false, ShortBEO},
	Long:            {"dt_long", classInt, 4, false, LongBEO},
	LongLong:        {"dt_longlong", classInt, 8, false, LongLongBEO},
	IEEEFloat4:      {"ieeefloat4", classFloat, 4, false, IEEEFloat4BEO},
	IEEEFloat8:      {"ieeefloat8", classFloat, 8, false, IEEEFloat8BEO},
	ShortBEO:        {"dt_short_beo", classInt, 2, true, Short},
	LongBEO:         {"dt_long_beo", classInt, 4, true, Long},
	LongLongBEO:     {"dt_longlong_beo", classInt, 8, true, LongLong},
	IEEEFloat4BEO:   {"ieeefloat4_beo", classFloat, 4, true, IEEEFloat4},
	IEEEFloat8BEO:   {"ieeefloat8_beo", classFloat, 8, true, IEEEFloat8},
	String:          {"dt_string", classLatin1, 0, false, String},
	ByteStr:         {"dt_bytestr", classByteStr, 0, false, ByteStrBEO},
	Blob:            {"dt_blob", classUnsupported, 0, false, Blob},
	BooleanFlagsBEO: {"dt_boolean_flags_beo", classUnsupported, 0, true, BooleanFlagsBEO},
	ByteFlagsBEO:    {"dt_byte_flags_beo", classUnsupported, 0, true, ByteFlagsBEO},
	StringFlagsBEO:  {"dt_string_flags_beo", classUnsupported, 0, true, StringFlagsBEO},
	ByteStrBEO:      {"dt_bytestr_beo", classByteStr, 0, true, ByteStr},
	SByte:           {"dt_sbyte", classInt, 1, false, SByte},
	SByteFlagsBEO:   {"dt_sbyte_flags_beo", classUnsupported, 0, true, SByteFlagsBEO},
	UShort:          {"dt_ushort", classUint, 2, false, UShortBEO},
	UShortBEO:       {"dt_ushort_beo", classUint, 2, true, UShort},
	ULong:           {"dt_ulong", classUint, 4, false, ULongBEO},
	ULongBEO:        {"dt_ulong_beo", classUint, 4, true, ULong},
	StringUTF8:      {"dt_string_utf8", classUTF8, 0, false, StringUTF8BEO},
	StringUTF8BEO:   {"dt_string_utf8_beo", classUTF8, 0, true, StringUTF8},
	BitInt:          {"dt_bit_int", classBitInt, 0, false, BitIntBEO},
	BitIntBEO:       {"dt_bit_int_beo", classBitInt, 0, true, BitInt},
	BitUInt:         {"dt_bit_uint", classBitUint, 0, false, BitUIntBEO},
	BitUIntBEO:      {"dt_bit_uint_beo", classBitUint, 0, true, BitUInt},
	BitIEEEFloat:    {"dt_bit_ieeefloat", classBitFloat, 0, false, BitIEEEFloatBEO},
	BitIEEEFloatBEO: {"dt_bit_ieeefloat_beo", classBitFloat, 0, true, BitIEEEFloat},
}

// Valid reports whether t is a declared code.
func (t TypeSpec) Valid() bool { return t >= 0 && int(t) < len(specs) }

func (t TypeSpec) info() specInfo {
	if !t.Valid() {
		return specInfo{name: fmt.Sprintf("typespec(%d)", int32(t))}
	}
	return specs[t]
}

func (t TypeSpec) String() string { return t.info().name }

// ParseTypeSpec resolves a typespec_enum item name.
func ParseTypeSpec(name string) (TypeSpec, error) {
	for i, s := range specs {
		if strings.EqualFold(s.name, name) {
			return TypeSpec(i), nil
		}
	}
	return 0, fmt.Errorf("unknown type spec %q", name)
}

// BigEndian reports whether values and flags of t are big endian.
func (t TypeSpec) BigEndian() bool { return t.info().bigEndian }

// ByteOrder returns the byte order of t's numbers and flags.
func (t TypeSpec) ByteOrder() binary.ByteOrder {
	if t.BigEndian() {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Width is the number of bytes per value, or 0 for variable length and
// bit-packed encodings.
func (t TypeSpec) Width() int { return t.info().width }

// WithByteOrder returns the variant of t using big or little endian order.
// Single-byte and text encodings are returned unchanged when no such variant
// exists.
func (t TypeSpec) WithByteOrder(bigEndian bool) TypeSpec {
	info := t.info()
	if info.bigEndian == bigEndian {
		return t
	}
	return info.pair
}

// IsText reports whether t stores NUL-terminated strings.
func (t TypeSpec) IsText() bool {
	c := t.info().class
	return c == classLatin1 || c == classUTF8
}

// IsByteStr reports whether t stores length-prefixed byte strings.
func (t TypeSpec) IsByteStr() bool { return t.info().class == classByteStr }

// IsBitPacked reports whether t stores sub-byte bit fields.
func (t TypeSpec) IsBitPacked() bool {
	switch t.info().class {
	case classBitInt, classBitUint, classBitFloat:
		return true
	}
	return false
}

// NaturalType is the sequence kind t decodes to when the column declares
// none.
func (t TypeSpec) NaturalType() value.DataType {
	info := t.info()
	switch info.class {
	case classBool:
		return value.DSBoolean
	case classLatin1, classUTF8:
		return value.DSString
	case classByteStr:
		return value.DSByteStr
	case classFloat, classBitFloat:
		if info.width == 4 {
			return value.DSFloat
		}
		return value.DSDouble
	case classInt, classUint:
		switch {
		case info.width == 1 && info.class == classUint:
			return value.DSByte
		case info.width == 1, info.width == 2 && info.class == classInt:
			return value.DSShort
		case info.width == 8, info.width == 4 && info.class == classUint:
			return value.DSLongLong
		}
		return value.DSLong
	case classBitInt, classBitUint:
		return value.DSLongLong
	}
	return value.DTUnknown
}
