package value

import (
	"errors"
	"testing"

	"atfxcore/pkg/odserr"
)

func sampleSequences() []Value {
	return []Value{
		Must(DSString, []string{"a", "b", "c"}),
		Must(DSDate, []string{"20240101", "20240102"}),
		Must(DSShort, []int16{1, 2, 3}),
		Must(DSFloat, []float32{1.5, 2.5}),
		Must(DSBoolean, []bool{true, false}),
		Must(DSByte, []uint8{1, 2, 255}),
		Must(DSLong, []int32{-1, 0, 1}),
		Must(DSDouble, []float64{1, 2, 3, 4}),
		Must(DSLongLong, []int64{1 << 40, 2}),
		Must(DSID, []int64{7, 8}),
		Must(DSEnum, []int32{0, 1}),
		Must(DSByteStr, [][]byte{{1}, {2, 3}}),
		Must(DSComplex, []Complex{{1, 2}, {3, 4}}),
		Must(DSDComplex, []DComplex{{1, 2}, {3, 4}}),
		Must(DSExternalReference, []ExternalReference{{"d", "text/plain", "a.txt"}}),
	}
}

func TestAppendGrowsByOne(t *testing.T) {
	for _, seq := range sampleSequences() {
		t.Run(seq.Type().String(), func(t *testing.T) {
			x := seq.At(0)
			n := seq.Len()
			grown := seq.Clone()
			if err := grown.Append(x); err != nil {
				t.Fatalf("Append: %v", err)
			}
			if grown.Len() != n+1 {
				t.Fatalf("length = %d, want %d", grown.Len(), n+1)
			}
			if !Equal(grown.At(n), x) {
				t.Fatalf("appended element = %v, want %v", grown.At(n), x)
			}
			if seq.Len() != n {
				t.Fatalf("clone shares length with source")
			}
		})
	}
}

func TestSubRangeMatchesElements(t *testing.T) {
	for _, seq := range sampleSequences() {
		t.Run(seq.Type().String(), func(t *testing.T) {
			n := seq.Len() - 1
			sub, err := seq.SubRange(1, n)
			if err != nil {
				t.Fatalf("SubRange: %v", err)
			}
			if sub.Len() != n {
				t.Fatalf("length = %d, want %d", sub.Len(), n)
			}
			for k := 0; k < n; k++ {
				if !Equal(sub.At(k), seq.At(1+k)) {
					t.Fatalf("element %d = %v, want %v", k, sub.At(k), seq.At(1+k))
				}
			}
		})
	}
}

func TestAppendToInvalidSequence(t *testing.T) {
	v := Empty(DSDouble)
	if err := v.Append(2.5); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !v.IsValid() || v.Len() != 1 {
		t.Fatalf("expected one valid element, got %v", v)
	}
}

func TestSetAtAndCopyRange(t *testing.T) {
	v := Must(DSLong, []int32{1, 2, 3, 4})
	if err := v.SetAt(1, int64(20)); err != nil {
		t.Fatalf("SetAt: %v", err)
	}
	if err := v.CopyRange(2, Must(DSLong, []int32{30, 40})); err != nil {
		t.Fatalf("CopyRange: %v", err)
	}
	got, _ := v.Int64s()
	want := []int64{1, 20, 30, 40}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if err := v.SetAt(9, 1); !errors.Is(err, odserr.ErrBadParameter) {
		t.Fatalf("expected BadParameter for out of range index, got %v", err)
	}
	if err := v.CopyRange(3, Must(DSLong, []int32{1, 2})); !errors.Is(err, odserr.ErrBadParameter) {
		t.Fatalf("expected BadParameter for overflowing range, got %v", err)
	}
	scalar := Must(DTLong, 1)
	if err := scalar.Append(2); !errors.Is(err, odserr.ErrBadOperation) {
		t.Fatalf("expected BadOperation on scalar append, got %v", err)
	}
}

func TestConcat(t *testing.T) {
	a := Must(DSDouble, []float64{1, 2})
	b := Must(DSDouble, []float64{3})
	c, err := Concat(DSDouble, a, Empty(DSDouble), b)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	if !Equal(c, Must(DSDouble, []float64{1, 2, 3})) {
		t.Fatalf("unexpected concat %v", c)
	}
	if _, err := Concat(DSDouble, Must(DSLong, []int32{1})); err == nil {
		t.Fatalf("expected kind mismatch error")
	}
}
