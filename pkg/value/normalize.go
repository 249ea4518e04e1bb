package value

import (
	"math"
	"reflect"

	"atfxcore/pkg/odserr"
)

func toInt64(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return integral(float64(n))
	case float64:
		return integral(n)
	}
	return 0, false
}

func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func toFloat64(raw any) (float64, bool) {
	switch f := raw.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	if n, ok := toInt64(raw); ok {
		return float64(n), true
	}
	return 0, false
}

func narrowFloat32(f float64) (float32, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return float32(f), true
	}
	if math.Abs(f) > math.MaxFloat32 {
		return 0, false
	}
	return float32(f), true
}

func intInRange(raw any, lo, hi int64) (int64, bool) {
	n, ok := toInt64(raw)
	if !ok || n < lo || n > hi {
		return 0, false
	}
	return n, true
}

func mismatch(dt DataType, raw any) error {
	return odserr.BadParameterf("cannot assign %T value %v to %s", raw, raw, dt)
}

// normalizeScalar maps a host value onto the canonical payload of scalar kind dt.
func normalizeScalar(dt DataType, raw any) (any, error) {
	if v, ok := raw.(Value); ok {
		c, err := Convert(v, dt)
		if err != nil {
			return nil, err
		}
		return c.Raw(), nil
	}
	switch dt {
	case DTString, DTDate:
		if s, ok := raw.(string); ok {
			return s, nil
		}
	case DTShort:
		if n, ok := intInRange(raw, math.MinInt16, math.MaxInt16); ok {
			return int16(n), nil
		}
	case DTByte:
		if n, ok := intInRange(raw, math.MinInt8, math.MaxUint8); ok {
			return uint8(n), nil
		}
	case DTLong, DTEnum:
		if n, ok := intInRange(raw, math.MinInt32, math.MaxInt32); ok {
			return int32(n), nil
		}
	case DTLongLong, DTID:
		if n, ok := toInt64(raw); ok {
			return n, nil
		}
	case DTFloat:
		if f, ok := toFloat64(raw); ok {
			if g, ok := narrowFloat32(f); ok {
				return g, nil
			}
			return nil, odserr.BadParameterf("value %v overflows %s", raw, dt)
		}
	case DTDouble:
		if f, ok := toFloat64(raw); ok {
			return f, nil
		}
	case DTBoolean:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case DTByteStr:
		switch b := raw.(type) {
		case []byte:
			return append([]byte{}, b...), nil
		case string:
			return []byte(b), nil
		}
	case DTBlob:
		switch b := raw.(type) {
		case Blob:
			return Blob{Header: b.Header, Data: append([]byte{}, b.Data...)}, nil
		case []byte:
			return Blob{Data: append([]byte{}, b...)}, nil
		}
	case DTComplex:
		switch c := raw.(type) {
		case Complex:
			return c, nil
		case complex64:
			return Complex{Re: real(c), Im: imag(c)}, nil
		case DComplex:
			return narrowComplex(dt, c.Re, c.Im, raw)
		case complex128:
			return narrowComplex(dt, real(c), imag(c), raw)
		}
	case DTDComplex:
		switch c := raw.(type) {
		case DComplex:
			return c, nil
		case Complex:
			return DComplex{Re: float64(c.Re), Im: float64(c.Im)}, nil
		case complex128:
			return DComplex{Re: real(c), Im: imag(c)}, nil
		case complex64:
			return DComplex{Re: float64(real(c)), Im: float64(imag(c))}, nil
		}
	case DTExternalReference:
		switch r := raw.(type) {
		case ExternalReference:
			return r, nil
		case []ExternalReference:
			if len(r) == 1 {
				return r[0], nil
			}
			return nil, odserr.NotImplementedf("%d external references in a scalar slot", len(r))
		}
	}
	return nil, mismatch(dt, raw)
}

func narrowComplex(dt DataType, re, im float64, raw any) (any, error) {
	r, ok1 := narrowFloat32(re)
	i, ok2 := narrowFloat32(im)
	if !ok1 || !ok2 {
		return nil, odserr.BadParameterf("value %v overflows %s", raw, dt)
	}
	return Complex{Re: r, Im: i}, nil
}

// normalizeSequence maps a host slice onto the canonical payload of sequence
// kind dt, converting element-wise. A non-slice host value becomes a
// one-element sequence.
func normalizeSequence(dt DataType, raw any) (any, error) {
	ops := seqOpsFor(dt)
	elem := dt.Scalar()
	if reflect.TypeOf(raw) == ops.elemSliceType() {
		return ops.clone(raw), nil
	}
	if v, ok := raw.(Value); ok {
		c, err := Convert(v, dt)
		if err != nil {
			return nil, err
		}
		return c.Raw(), nil
	}
	rv := reflect.ValueOf(raw)
	single := rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array
	if elem == DTByteStr {
		if _, ok := raw.([]byte); ok {
			single = true
		}
	}
	if single {
		e, err := normalizeScalar(elem, raw)
		if err != nil {
			return nil, err
		}
		out := ops.make(1)
		ops.set(out, 0, e)
		return out, nil
	}
	n := rv.Len()
	out := ops.make(n)
	for i := 0; i < n; i++ {
		e, err := normalizeScalar(elem, rv.Index(i).Interface())
		if err != nil {
			return nil, odserr.Wrap(odserr.BadParameter, err, "%s element %d", dt, i)
		}
		ops.set(out, i, e)
	}
	return out, nil
}
