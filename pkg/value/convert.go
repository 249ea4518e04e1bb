package value

import (
	"atfxcore/pkg/odserr"
)

// Convert coerces v to kind to using the same rules as New. An invalid value
// converts to the invalid value of the target kind. A one-element sequence
// converts to its scalar, a scalar converts to a one-element sequence.
// Numeric kinds convert freely as long as the value fits; floating values
// convert to integer kinds only when integral.
func Convert(v Value, to DataType) (Value, error) {
	if !to.Valid() {
		return Value{}, odserr.BadParameterf("unknown data type %d", int32(to))
	}
	if v.dt == to {
		return v, nil
	}
	if !v.valid {
		return Empty(to), nil
	}
	if !compatible(v.dt.Scalar(), to.Scalar()) {
		return Value{}, odserr.BadParameterf("cannot convert %s to %s", v.dt, to)
	}
	switch {
	case v.dt.IsSequence() && to.IsSequence():
		n := v.Len()
		ops := seqOpsFor(to)
		out := ops.make(n)
		src := seqOpsFor(v.dt)
		for i := 0; i < n; i++ {
			e, err := normalizeScalar(to.Scalar(), src.get(v.data, i))
			if err != nil {
				return Value{}, odserr.Wrap(odserr.BadParameter, err, "convert %s element %d", v.dt, i)
			}
			ops.set(out, i, e)
		}
		return Value{dt: to, valid: true, data: out}, nil
	case v.dt.IsSequence():
		if v.Len() != 1 {
			if to == DTExternalReference {
				return Value{}, odserr.NotImplementedf("%d external references in a scalar slot", v.Len())
			}
			return Value{}, odserr.BadParameterf("cannot convert %s of length %d to scalar %s", v.dt, v.Len(), to)
		}
		return Convert(v.At(0), to)
	case to.IsSequence():
		e, err := normalizeScalar(to.Scalar(), v.data)
		if err != nil {
			return Value{}, err
		}
		out := seqOpsFor(to).make(1)
		seqOpsFor(to).set(out, 0, e)
		return Value{dt: to, valid: true, data: out}, nil
	}
	payload, err := normalizeScalar(to, v.data)
	if err != nil {
		return Value{}, err
	}
	return Value{dt: to, valid: true, data: payload}, nil
}

func compatible(from, to DataType) bool {
	if from == to {
		return true
	}
	switch {
	case from.IsNumeric() && to.IsNumeric():
		return true
	case from.IsComplex() && to.IsComplex():
		return true
	case (from == DTString || from == DTDate) && (to == DTString || to == DTDate):
		return true
	case from == DTByteStr && to == DTBlob:
		return true
	}
	return false
}
