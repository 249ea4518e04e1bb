package value

import (
	"reflect"

	"atfxcore/pkg/odserr"
)

// Complex is a single precision complex number.
type Complex struct {
	Re float32
	Im float32
}

// DComplex is a double precision complex number.
type DComplex struct {
	Re float64
	Im float64
}

// ExternalReference points at a resource outside the container.
type ExternalReference struct {
	Description string
	MimeType    string
	Location    string
}

// Blob is an opaque binary object with a textual header.
type Blob struct {
	Header string
	Data   []byte
}

// Value is a typed value or sequence with an explicit validity flag.
// The zero Value is an invalid DT_UNKNOWN.
type Value struct {
	dt    DataType
	valid bool
	data  any
}

// Empty returns the invalid value of dt holding its canonical empty payload.
func Empty(dt DataType) Value {
	return Value{dt: dt, data: emptyPayload(dt)}
}

func emptyPayload(dt DataType) any {
	if dt.IsSequence() {
		return seqOpsFor(dt).make(0)
	}
	switch dt {
	case DTString, DTDate:
		return ""
	case DTShort:
		return int16(0)
	case DTFloat:
		return float32(0)
	case DTBoolean:
		return false
	case DTByte:
		return uint8(0)
	case DTLong, DTEnum:
		return int32(0)
	case DTDouble:
		return float64(0)
	case DTLongLong, DTID:
		return int64(0)
	case DTByteStr:
		return []byte{}
	case DTBlob:
		return Blob{Data: []byte{}}
	case DTComplex:
		return Complex{}
	case DTDComplex:
		return DComplex{}
	case DTExternalReference:
		return ExternalReference{}
	}
	return nil
}

// New builds a value of kind dt from a host value. A nil raw value or an empty
// sequence yields the invalid value. Host integers of any width are accepted
// when they fit the target kind, floating sequences accept []float64 and
// []int64 and narrow element-wise. Passing a Value converts it.
func New(dt DataType, raw any) (Value, error) {
	if !dt.Valid() {
		return Value{}, odserr.BadParameterf("unknown data type %d", int32(dt))
	}
	if raw == nil {
		return Empty(dt), nil
	}
	if v, ok := raw.(Value); ok {
		return Convert(v, dt)
	}
	if dt == DTUnknown {
		return Value{}, odserr.BadParameterf("cannot assign %T to %s", raw, dt)
	}
	if dt.IsSequence() {
		seq, err := normalizeSequence(dt, raw)
		if err != nil {
			return Value{}, err
		}
		if seqOpsFor(dt).length(seq) == 0 {
			return Empty(dt), nil
		}
		return Value{dt: dt, valid: true, data: seq}, nil
	}
	payload, err := normalizeScalar(dt, raw)
	if err != nil {
		return Value{}, err
	}
	return Value{dt: dt, valid: true, data: payload}, nil
}

// Must is New that panics on error. Intended for literals in tests and tables.
func Must(dt DataType, raw any) Value {
	v, err := New(dt, raw)
	if err != nil {
		panic(err)
	}
	return v
}

// Of infers the kind from the Go type of raw. Slices map to sequence kinds.
func Of(raw any) (Value, error) {
	dt, ok := kindOf(raw)
	if !ok {
		return Value{}, odserr.BadParameterf("no data type for host type %T", raw)
	}
	return New(dt, raw)
}

func kindOf(raw any) (DataType, bool) {
	switch raw.(type) {
	case string:
		return DTString, true
	case int16:
		return DTShort, true
	case float32:
		return DTFloat, true
	case bool:
		return DTBoolean, true
	case uint8:
		return DTByte, true
	case int32, int:
		return DTLong, true
	case float64:
		return DTDouble, true
	case int64:
		return DTLongLong, true
	case []byte:
		return DTByteStr, true
	case Complex:
		return DTComplex, true
	case DComplex:
		return DTDComplex, true
	case ExternalReference:
		return DTExternalReference, true
	case Blob:
		return DTBlob, true
	case []string:
		return DSString, true
	case []int16:
		return DSShort, true
	case []float32:
		return DSFloat, true
	case []bool:
		return DSBoolean, true
	case []int32, []int:
		return DSLong, true
	case []float64:
		return DSDouble, true
	case []int64:
		return DSLongLong, true
	case [][]byte:
		return DSByteStr, true
	case []Complex:
		return DSComplex, true
	case []DComplex:
		return DSDComplex, true
	case []ExternalReference:
		return DSExternalReference, true
	}
	return DTUnknown, false
}

// Type returns the data kind.
func (v Value) Type() DataType { return v.dt }

// IsValid reports whether the value was set through a non-empty assignment.
func (v Value) IsValid() bool { return v.valid }

// IsSequence reports whether the value holds a sequence kind.
func (v Value) IsSequence() bool { return v.dt.IsSequence() }

// Raw returns the canonical payload. Sequence payloads share storage with v
// and must not be modified by the caller.
func (v Value) Raw() any {
	if v.data == nil {
		return emptyPayload(v.dt)
	}
	return v.data
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	out := v
	switch d := v.data.(type) {
	case []byte:
		out.data = append([]byte{}, d...)
	case Blob:
		out.data = Blob{Header: d.Header, Data: append([]byte{}, d.Data...)}
	default:
		if v.dt.IsSequence() && d != nil {
			out.data = seqOpsFor(v.dt).clone(d)
		}
	}
	return out
}

// Equal reports whether both values have the same kind, validity and payload.
func Equal(a, b Value) bool {
	if a.dt != b.dt || a.valid != b.valid {
		return false
	}
	return reflect.DeepEqual(a.Raw(), b.Raw())
}

func (v Value) String() string {
	return Format(v, DefaultSeparator)
}

func (v Value) kindError(want string) error {
	return odserr.BadParameterf("value of type %s is not %s", v.dt, want)
}

// Int64 returns an integer scalar widened to int64.
func (v Value) Int64() (int64, error) {
	switch d := v.Raw().(type) {
	case int16:
		return int64(d), nil
	case int32:
		return int64(d), nil
	case int64:
		return d, nil
	case uint8:
		return int64(d), nil
	}
	return 0, v.kindError("an integer scalar")
}

// Float64 returns a numeric scalar as float64.
func (v Value) Float64() (float64, error) {
	switch d := v.Raw().(type) {
	case float32:
		return float64(d), nil
	case float64:
		return d, nil
	}
	if n, err := v.Int64(); err == nil {
		return float64(n), nil
	}
	return 0, v.kindError("a numeric scalar")
}

// Text returns the payload of a STRING or DATE scalar.
func (v Value) Text() (string, error) {
	if s, ok := v.Raw().(string); ok {
		return s, nil
	}
	return "", v.kindError("a string scalar")
}

// Bool returns the payload of a BOOLEAN scalar.
func (v Value) Bool() (bool, error) {
	if b, ok := v.Raw().(bool); ok {
		return b, nil
	}
	return false, v.kindError("a boolean scalar")
}

// Bytes returns the payload of a BYTESTR scalar.
func (v Value) Bytes() ([]byte, error) {
	if b, ok := v.Raw().([]byte); ok {
		return b, nil
	}
	return nil, v.kindError("a byte string")
}

// ExternalReference returns the payload of a DT_EXTERNALREFERENCE scalar.
func (v Value) ExternalReference() (ExternalReference, error) {
	if r, ok := v.Raw().(ExternalReference); ok {
		return r, nil
	}
	return ExternalReference{}, v.kindError("an external reference")
}

// Int64s returns an integer sequence widened to int64.
func (v Value) Int64s() ([]int64, error) {
	if !v.dt.IsSequence() || !v.dt.IsInteger() {
		return nil, v.kindError("an integer sequence")
	}
	out := make([]int64, v.Len())
	for i := range out {
		n, _ := v.At(i).Int64()
		out[i] = n
	}
	return out, nil
}

// Float64s returns a numeric sequence as float64.
func (v Value) Float64s() ([]float64, error) {
	if !v.dt.IsSequence() || !v.dt.IsNumeric() {
		return nil, v.kindError("a numeric sequence")
	}
	if d, ok := v.Raw().([]float64); ok {
		return append([]float64{}, d...), nil
	}
	out := make([]float64, v.Len())
	for i := range out {
		f, _ := v.At(i).Float64()
		out[i] = f
	}
	return out, nil
}

// Strings returns the payload of a DS_STRING or DS_DATE sequence.
func (v Value) Strings() ([]string, error) {
	if d, ok := v.Raw().([]string); ok {
		return d, nil
	}
	return nil, v.kindError("a string sequence")
}

// NamedValue is the exchange record between collaborators and the store.
type NamedValue struct {
	Name  string
	Value Value
	Unit  string
}

// Named is shorthand for building a NamedValue without a unit.
func Named(name string, v Value) NamedValue {
	return NamedValue{Name: name, Value: v}
}
