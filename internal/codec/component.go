package codec

import (
	"sort"

	"atfxcore/pkg/odserr"
	"atfxcore/pkg/value"
)

// Component describes where and how one slice of a column's values is laid
// out in a segment. Numeric components hold Length numbers in blocks of
// BlockSize bytes, each block carrying ValuesPerBlock numbers starting at
// ValueOffset. Text and byte string components hold Length bytes starting at
// StartOffset.
type Component struct {
	File             string
	StartOffset      int64
	Length           int
	TypeSpec         TypeSpec
	BlockSize        int
	ValuesPerBlock   int
	ValueOffset      int
	BitCount         int
	BitOffset        int
	Ordinal          int
	FlagsFile        string
	FlagsStartOffset int64
}

// ValueCount returns how many column values the component holds when decoded
// as dt.
func (c Component) ValueCount(dt value.DataType) int {
	switch {
	case c.TypeSpec.IsText() || c.TypeSpec.IsByteStr():
		return c.ValuesPerBlock
	case dt.IsComplex():
		return c.Length / 2
	}
	return c.Length
}

func (c Component) validate() error {
	switch {
	case !c.TypeSpec.Valid():
		return odserr.BadParameterf("component %s#%d: unknown type spec %d", c.File, c.Ordinal, int32(c.TypeSpec))
	case c.File == "":
		return odserr.BadParameterf("component #%d: missing file name", c.Ordinal)
	case c.Length < 0 || c.StartOffset < 0:
		return odserr.BadParameterf("component %s#%d: negative length or offset", c.File, c.Ordinal)
	case c.TypeSpec.IsText() || c.TypeSpec.IsByteStr():
		return nil
	case c.BlockSize <= 0 || c.ValuesPerBlock <= 0 || c.ValueOffset < 0:
		return odserr.BadParameterf("component %s#%d: invalid block layout size=%d values=%d offset=%d",
			c.File, c.Ordinal, c.BlockSize, c.ValuesPerBlock, c.ValueOffset)
	case c.TypeSpec.IsBitPacked() && (c.BitCount <= 0 || c.BitCount > 64 || c.BitOffset < 0):
		return odserr.BadParameterf("component %s#%d: invalid bit field count=%d offset=%d",
			c.File, c.Ordinal, c.BitCount, c.BitOffset)
	}
	return nil
}

// byOrdinal returns a copy of comps sorted by ordinal number.
func byOrdinal(comps []Component) []Component {
	out := append([]Component(nil), comps...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}
