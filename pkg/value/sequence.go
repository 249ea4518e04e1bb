package value

import (
	"reflect"

	"atfxcore/pkg/odserr"
)

// seqOps is the element-level access to one canonical sequence payload type.
type seqOps interface {
	make(n int) any
	length(s any) int
	get(s any, i int) any
	set(s any, i int, e any)
	sub(s any, i, j int) any
	appendOne(s any, e any) any
	clone(s any) any
	elemSliceType() reflect.Type
}

type typedSeq[T any] struct{}

func (typedSeq[T]) make(n int) any             { return make([]T, n) }
func (typedSeq[T]) length(s any) int           { return len(s.([]T)) }
func (typedSeq[T]) get(s any, i int) any       { return s.([]T)[i] }
func (typedSeq[T]) set(s any, i int, e any)    { s.([]T)[i] = e.(T) }
func (typedSeq[T]) appendOne(s any, e any) any { return append(s.([]T), e.(T)) }
func (typedSeq[T]) elemSliceType() reflect.Type {
	return reflect.TypeOf((*[]T)(nil)).Elem()
}

func (typedSeq[T]) sub(s any, i, j int) any {
	return append(make([]T, 0, j-i), s.([]T)[i:j]...)
}

func (typedSeq[T]) clone(s any) any {
	src := s.([]T)
	return append(make([]T, 0, len(src)), src...)
}

var seqTable = map[DataType]seqOps{
	DSString:            typedSeq[string]{},
	DSDate:              typedSeq[string]{},
	DSShort:             typedSeq[int16]{},
	DSFloat:             typedSeq[float32]{},
	DSBoolean:           typedSeq[bool]{},
	DSByte:              typedSeq[uint8]{},
	DSLong:              typedSeq[int32]{},
	DSEnum:              typedSeq[int32]{},
	DSDouble:            typedSeq[float64]{},
	DSLongLong:          typedSeq[int64]{},
	DSID:                typedSeq[int64]{},
	DSComplex:           typedSeq[Complex]{},
	DSDComplex:          typedSeq[DComplex]{},
	DSByteStr:           typedSeq[[]byte]{},
	DSExternalReference: typedSeq[ExternalReference]{},
}

func seqOpsFor(dt DataType) seqOps {
	ops, ok := seqTable[dt]
	if !ok {
		panic("value: no sequence layout for " + dt.String())
	}
	return ops
}

func (v Value) requireSequence(op string) error {
	if !v.dt.IsSequence() {
		return odserr.BadOperationf("%s on scalar value of type %s", op, v.dt)
	}
	return nil
}

// Len returns the number of elements of a sequence, 1 for a valid scalar and
// 0 for an invalid scalar.
func (v Value) Len() int {
	if !v.dt.IsSequence() {
		if v.valid {
			return 1
		}
		return 0
	}
	if v.data == nil {
		return 0
	}
	return seqOpsFor(v.dt).length(v.data)
}

// At returns element i of a sequence as a valid scalar of the element kind.
// It panics when i is out of range, like a slice index.
func (v Value) At(i int) Value {
	if !v.dt.IsSequence() {
		if i != 0 {
			panic("value: scalar index out of range")
		}
		return v
	}
	return Value{dt: v.dt.Scalar(), valid: true, data: seqOpsFor(v.dt).get(v.Raw(), i)}
}

// SetAt replaces element i in place. The element is converted to the element
// kind first.
func (v *Value) SetAt(i int, e any) error {
	if err := v.requireSequence("SetAt"); err != nil {
		return err
	}
	if i < 0 || i >= v.Len() {
		return odserr.BadParameterf("index %d out of range [0,%d)", i, v.Len())
	}
	payload, err := normalizeScalar(v.dt.Scalar(), e)
	if err != nil {
		return err
	}
	seqOpsFor(v.dt).set(v.data, i, payload)
	return nil
}

// Append grows the sequence by one element. Appending to an invalid sequence
// makes it valid.
func (v *Value) Append(e any) error {
	if err := v.requireSequence("Append"); err != nil {
		return err
	}
	payload, err := normalizeScalar(v.dt.Scalar(), e)
	if err != nil {
		return err
	}
	v.data = seqOpsFor(v.dt).appendOne(v.Raw(), payload)
	v.valid = true
	return nil
}

// SubRange returns a copy of n elements starting at i.
func (v Value) SubRange(i, n int) (Value, error) {
	if err := v.requireSequence("SubRange"); err != nil {
		return Value{}, err
	}
	if i < 0 || n < 0 || i+n > v.Len() {
		return Value{}, odserr.BadParameterf("range [%d,%d) outside sequence of length %d", i, i+n, v.Len())
	}
	if n == 0 {
		return Empty(v.dt), nil
	}
	return Value{dt: v.dt, valid: true, data: seqOpsFor(v.dt).sub(v.data, i, i+n)}, nil
}

// CopyRange overwrites elements of v starting at dst with the elements of src.
// src must have the same kind and fit inside v.
func (v *Value) CopyRange(dst int, src Value) error {
	if err := v.requireSequence("CopyRange"); err != nil {
		return err
	}
	if src.dt != v.dt {
		return odserr.BadParameterf("cannot copy %s into %s", src.dt, v.dt)
	}
	n := src.Len()
	if dst < 0 || dst+n > v.Len() {
		return odserr.BadParameterf("range [%d,%d) outside sequence of length %d", dst, dst+n, v.Len())
	}
	ops := seqOpsFor(v.dt)
	for k := 0; k < n; k++ {
		ops.set(v.data, dst+k, ops.get(src.data, k))
	}
	return nil
}

// Concat joins sequences of the same kind into a new value.
func Concat(dt DataType, parts ...Value) (Value, error) {
	if !dt.IsSequence() {
		return Value{}, odserr.BadParameterf("cannot concatenate scalar type %s", dt)
	}
	out := Empty(dt)
	for _, p := range parts {
		if p.dt != dt {
			return Value{}, odserr.BadParameterf("cannot concatenate %s into %s", p.dt, dt)
		}
		for k := 0; k < p.Len(); k++ {
			if err := out.Append(p.At(k)); err != nil {
				return Value{}, err
			}
		}
	}
	return out, nil
}
