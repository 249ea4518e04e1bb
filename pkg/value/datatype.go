// Package value implements the discriminated value union exchanged between the
// schema, the instance store and the external component codec. A Value carries
// a fixed DataType, a validity flag and a payload whose Go type is determined
// by the DataType. Invalid values always hold the canonical empty payload of
// their kind, so readers only ever need to check validity, never nil.
package value

import (
	"fmt"
	"strings"
)

// DataType is the closed set of value kinds. The numbering follows the ODS
// datatype_enum so enumeration items and DataType values are interchangeable.
type DataType int32

const (
	DTUnknown           DataType = 0
	DTString            DataType = 1
	DTShort             DataType = 2
	DTFloat             DataType = 3
	DTBoolean           DataType = 4
	DTByte              DataType = 5
	DTLong              DataType = 6
	DTDouble            DataType = 7
	DTLongLong          DataType = 8
	DTID                DataType = 9
	DTDate              DataType = 10
	DTByteStr           DataType = 11
	DTBlob              DataType = 12
	DTComplex           DataType = 13
	DTDComplex          DataType = 14
	DSString            DataType = 15
	DSShort             DataType = 16
	DSFloat             DataType = 17
	DSBoolean           DataType = 18
	DSByte              DataType = 19
	DSLong              DataType = 20
	DSDouble            DataType = 21
	DSLongLong          DataType = 22
	DSComplex           DataType = 23
	DSDComplex          DataType = 24
	DSID                DataType = 25
	DSDate              DataType = 26
	DSByteStr           DataType = 27
	DTExternalReference DataType = 28
	DSExternalReference DataType = 29
	DTEnum              DataType = 30
	DSEnum              DataType = 31
)

var dataTypeNames = [...]string{
	DTUnknown:           "DT_UNKNOWN",
	DTString:            "DT_STRING",
	DTShort:             "DT_SHORT",
	DTFloat:             "DT_FLOAT",
	DTBoolean:           "DT_BOOLEAN",
	DTByte:              "DT_BYTE",
	DTLong:              "DT_LONG",
	DTDouble:            "DT_DOUBLE",
	DTLongLong:          "DT_LONGLONG",
	DTID:                "DT_ID",
	DTDate:              "DT_DATE",
	DTByteStr:           "DT_BYTESTR",
	DTBlob:              "DT_BLOB",
	DTComplex:           "DT_COMPLEX",
	DTDComplex:          "DT_DCOMPLEX",
	DSString:            "DS_STRING",
	DSShort:             "DS_SHORT",
	DSFloat:             "DS_FLOAT",
	DSBoolean:           "DS_BOOLEAN",
	DSByte:              "DS_BYTE",
	DSLong:              "DS_LONG",
	DSDouble:            "DS_DOUBLE",
	DSLongLong:          "DS_LONGLONG",
	DSComplex:           "DS_COMPLEX",
	DSDComplex:          "DS_DCOMPLEX",
	DSID:                "DS_ID",
	DSDate:              "DS_DATE",
	DSByteStr:           "DS_BYTESTR",
	DTExternalReference: "DT_EXTERNALREFERENCE",
	DSExternalReference: "DS_EXTERNALREFERENCE",
	DTEnum:              "DT_ENUM",
	DSEnum:              "DS_ENUM",
}

// scalar <-> sequence pairing
var sequenceOf = map[DataType]DataType{
	DTString:            DSString,
	DTShort:             DSShort,
	DTFloat:             DSFloat,
	DTBoolean:           DSBoolean,
	DTByte:              DSByte,
	DTLong:              DSLong,
	DTDouble:            DSDouble,
	DTLongLong:          DSLongLong,
	DTComplex:           DSComplex,
	DTDComplex:          DSDComplex,
	DTID:                DSID,
	DTDate:              DSDate,
	DTByteStr:           DSByteStr,
	DTExternalReference: DSExternalReference,
	DTEnum:              DSEnum,
}

var scalarOf = func() map[DataType]DataType {
	m := make(map[DataType]DataType, len(sequenceOf))
	for s, q := range sequenceOf {
		m[q] = s
	}
	return m
}()

// Valid reports whether dt is one of the declared kinds.
func (dt DataType) Valid() bool {
	return dt >= DTUnknown && int(dt) < len(dataTypeNames)
}

func (dt DataType) String() string {
	if dt.Valid() {
		return dataTypeNames[dt]
	}
	return fmt.Sprintf("DataType(%d)", int32(dt))
}

// ParseDataType accepts the canonical DT_/DS_ names case-insensitively.
func ParseDataType(name string) (DataType, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range dataTypeNames {
		if n == upper {
			return DataType(i), nil
		}
	}
	return DTUnknown, fmt.Errorf("unknown data type %q", name)
}

// IsSequence reports whether dt is a DS_ kind.
func (dt DataType) IsSequence() bool {
	_, ok := scalarOf[dt]
	return ok
}

// Scalar returns the element kind of a sequence kind, or dt itself.
func (dt DataType) Scalar() DataType {
	if s, ok := scalarOf[dt]; ok {
		return s
	}
	return dt
}

// Sequence returns the sequence counterpart of a scalar kind, or dt itself when
// dt is already a sequence. DT_BLOB and DT_UNKNOWN have no counterpart and are
// returned unchanged.
func (dt DataType) Sequence() DataType {
	if q, ok := sequenceOf[dt]; ok {
		return q
	}
	return dt
}

// IsInteger reports whether the element kind is an integer kind.
func (dt DataType) IsInteger() bool {
	switch dt.Scalar() {
	case DTShort, DTByte, DTLong, DTLongLong, DTID, DTEnum:
		return true
	}
	return false
}

// IsFloating reports whether the element kind is FLOAT or DOUBLE.
func (dt DataType) IsFloating() bool {
	switch dt.Scalar() {
	case DTFloat, DTDouble:
		return true
	}
	return false
}

// IsNumeric reports whether the element kind is an integer or floating kind.
func (dt DataType) IsNumeric() bool {
	return dt.IsInteger() || dt.IsFloating()
}

// IsComplex reports whether the element kind is COMPLEX or DCOMPLEX.
func (dt DataType) IsComplex() bool {
	s := dt.Scalar()
	return s == DTComplex || s == DTDComplex
}
