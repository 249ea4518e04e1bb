package value

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"atfxcore/pkg/odserr"
)

// DefaultSeparator joins sequence elements in text form.
const DefaultSeparator = ' '

const (
	escapeRune  = '\\'
	refFieldSep = ','
)

// Format renders v in its interchange text form. Invalid values render as the
// empty string. Sequence elements are joined with sep; string elements escape
// sep and the backslash with a backslash.
func Format(v Value, sep rune) string {
	if !v.valid {
		return ""
	}
	if !v.dt.IsSequence() {
		return formatScalar(v.dt, v.data, -1)
	}
	var b strings.Builder
	ops := seqOpsFor(v.dt)
	elem := v.dt.Scalar()
	for i := 0; i < ops.length(v.data); i++ {
		if i > 0 {
			b.WriteRune(sep)
		}
		b.WriteString(formatScalar(elem, ops.get(v.data, i), sep))
	}
	return b.String()
}

// formatScalar renders one payload. sep < 0 disables escaping.
func formatScalar(dt DataType, payload any, sep rune) string {
	switch p := payload.(type) {
	case string:
		return escape(p, sep)
	case int16:
		return strconv.FormatInt(int64(p), 10)
	case int32:
		return strconv.FormatInt(int64(p), 10)
	case int64:
		return strconv.FormatInt(p, 10)
	case uint8:
		return hex.EncodeToString([]byte{p})
	case float32:
		return strconv.FormatFloat(float64(p), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(p, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(p)
	case []byte:
		return hex.EncodeToString(p)
	case Blob:
		return hex.EncodeToString(p.Data)
	case Complex:
		return strconv.FormatFloat(float64(p.Re), 'g', -1, 32) + " " + strconv.FormatFloat(float64(p.Im), 'g', -1, 32)
	case DComplex:
		return strconv.FormatFloat(p.Re, 'g', -1, 64) + " " + strconv.FormatFloat(p.Im, 'g', -1, 64)
	case ExternalReference:
		return formatReference(p, sep)
	}
	return ""
}

func formatReference(r ExternalReference, sep rune) string {
	desc, mime := r.Description, r.MimeType
	if desc == "" {
		desc = " "
	}
	if mime == "" {
		mime = " "
	}
	fields := []string{desc, mime, r.Location}
	for i, f := range fields {
		fields[i] = escapeAll(f, refFieldSep, sep)
	}
	return strings.Join(fields, string(refFieldSep))
}

func escape(s string, sep rune) string {
	if sep < 0 {
		return s
	}
	return escapeAll(s, sep)
}

func escapeAll(s string, seps ...rune) string {
	var b strings.Builder
	for _, r := range s {
		if r == escapeRune || containsRune(seps, r) {
			b.WriteRune(escapeRune)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func containsRune(rs []rune, r rune) bool {
	for _, x := range rs {
		if x >= 0 && x == r {
			return true
		}
	}
	return false
}

// splitEscaped splits s on unescaped sep and removes the escapes.
func splitEscaped(s string, sep rune) []string {
	var (
		out     []string
		cur     strings.Builder
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == escapeRune:
			escaped = true
		case r == sep:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(out, cur.String())
}

// splitRaw splits on unescaped sep but keeps escapes in place, so each part can
// be split again on a different separator.
func splitRaw(s string, sep rune) []string {
	var (
		out     []string
		start   int
		escaped bool
	)
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == escapeRune:
			escaped = true
		case r == sep:
			out = append(out, s[start:i])
			start = i + len(string(r))
		}
	}
	return append(out, s[start:])
}

// Parse reads the interchange text form of kind dt. An empty string yields the
// invalid value, except for DT_STRING and DT_DATE where it is a valid empty
// string.
func Parse(dt DataType, s string, sep rune) (Value, error) {
	if !dt.Valid() || dt == DTUnknown {
		return Value{}, odserr.BadParameterf("cannot parse into %s", dt)
	}
	if s == "" {
		if dt == DTString || dt == DTDate {
			return Value{dt: dt, valid: true, data: ""}, nil
		}
		return Empty(dt), nil
	}
	if !dt.IsSequence() {
		p, err := parseScalar(dt, s)
		if err != nil {
			return Value{}, err
		}
		return Value{dt: dt, valid: true, data: p}, nil
	}
	tokens, err := sequenceTokens(dt, s, sep)
	if err != nil {
		return Value{}, err
	}
	elem := dt.Scalar()
	ops := seqOpsFor(dt)
	out := ops.make(len(tokens))
	for i, tok := range tokens {
		p, err := parseScalar(elem, tok)
		if err != nil {
			return Value{}, odserr.Wrap(odserr.BadParameter, err, "%s element %d", dt, i)
		}
		ops.set(out, i, p)
	}
	if len(tokens) == 0 {
		return Empty(dt), nil
	}
	return Value{dt: dt, valid: true, data: out}, nil
}

func sequenceTokens(dt DataType, s string, sep rune) ([]string, error) {
	switch dt.Scalar() {
	case DTString, DTDate:
		return splitEscaped(s, sep), nil
	case DTExternalReference:
		parts := splitRaw(s, sep)
		if sep != refFieldSep {
			return parts, nil
		}
		if len(parts)%3 != 0 {
			return nil, odserr.BadParameterf("external reference sequence has %d fields, want a multiple of 3", len(parts))
		}
		out := make([]string, 0, len(parts)/3)
		for i := 0; i < len(parts); i += 3 {
			out = append(out, strings.Join(parts[i:i+3], string(refFieldSep)))
		}
		return out, nil
	case DTComplex, DTDComplex:
		nums := fieldsOn(s, sep)
		if len(nums)%2 != 0 {
			return nil, odserr.BadParameterf("complex sequence has %d numbers, want pairs", len(nums))
		}
		out := make([]string, 0, len(nums)/2)
		for i := 0; i < len(nums); i += 2 {
			out = append(out, nums[i]+" "+nums[i+1])
		}
		return out, nil
	}
	return fieldsOn(s, sep), nil
}

// fieldsOn splits on sep and whitespace, dropping empty tokens.
func fieldsOn(s string, sep rune) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == sep || unicode.IsSpace(r)
	})
}

func parseScalar(dt DataType, s string) (any, error) {
	bad := func(err error) error {
		return odserr.Wrap(odserr.BadParameter, err, "parse %q as %s", s, dt)
	}
	switch dt {
	case DTString, DTDate:
		return s, nil
	case DTShort, DTLong, DTEnum, DTLongLong, DTID:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, bad(err)
		}
		return normalizeScalar(dt, n)
	case DTByte:
		t := strings.TrimSpace(s)
		b, err := hex.DecodeString(t)
		if err != nil || len(b) != 1 {
			n, nerr := strconv.ParseUint(t, 10, 8)
			if nerr != nil {
				return nil, bad(nerr)
			}
			return uint8(n), nil
		}
		return b[0], nil
	case DTFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		if err != nil {
			return nil, bad(err)
		}
		return float32(f), nil
	case DTDouble:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, bad(err)
		}
		return f, nil
	case DTBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, bad(err)
		}
		return b, nil
	case DTByteStr:
		b, err := hex.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return nil, bad(err)
		}
		return b, nil
	case DTComplex, DTDComplex:
		parts := strings.Fields(s)
		if len(parts) != 2 {
			return nil, odserr.BadParameterf("parse %q as %s: want \"<re> <im>\"", s, dt)
		}
		bits := 64
		if dt == DTComplex {
			bits = 32
		}
		re, err := strconv.ParseFloat(parts[0], bits)
		if err != nil {
			return nil, bad(err)
		}
		im, err := strconv.ParseFloat(parts[1], bits)
		if err != nil {
			return nil, bad(err)
		}
		if dt == DTComplex {
			return Complex{Re: float32(re), Im: float32(im)}, nil
		}
		return DComplex{Re: re, Im: im}, nil
	case DTExternalReference:
		fields := splitEscaped(s, refFieldSep)
		if len(fields) != 3 {
			return nil, odserr.BadParameterf("parse %q as %s: want description,mimetype,location", s, dt)
		}
		for i := 0; i < 2; i++ {
			if fields[i] == " " {
				fields[i] = ""
			}
		}
		return ExternalReference{Description: fields[0], MimeType: fields[1], Location: fields[2]}, nil
	case DTBlob:
		return nil, odserr.NotImplementedf("text form of %s", dt)
	}
	return nil, odserr.BadParameterf("cannot parse into %s", dt)
}
