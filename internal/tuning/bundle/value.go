package bundle

import (
	"fmt"
	"strconv"
	"strings"

	types "github.com/selftune/selftune-backend/internal/domain"
)

// ValueKind tags a normalized knob value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindReal
	KindBool
	KindEnum
)

// Value is a knob setting resolved against its catalog definition at parse
// time. Numeric kinds carry Num, booleans Bool, strings and enums Str.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

// Display renders the value the way it is stored in the knob snapshot.
func (v Value) Display() interface{} {
	switch v.Kind {
	case KindInt:
		return int64(v.Num)
	case KindReal:
		return v.Num
	case KindBool:
		return v.Bool
	default:
		return v.Str
	}
}

// ParseKnobValue normalizes a raw setting to the catalog-declared type. A raw
// value that does not parse as its declared type degrades to a string value
// rather than failing the whole bundle; the setting is still retained.
func ParseKnobValue(def *types.KnobCatalog, raw string) Value {
	raw = strings.TrimSpace(raw)
	switch def.VarType {
	case types.VarBool:
		if b, ok := parseBool(raw); ok {
			return Value{Kind: KindBool, Bool: b}
		}
	case types.VarInteger:
		if n, ok := parseNumeric(raw, def.Unit); ok {
			return Value{Kind: KindInt, Num: float64(int64(n))}
		}
	case types.VarReal:
		if n, ok := parseNumeric(raw, def.Unit); ok {
			return Value{Kind: KindReal, Num: n}
		}
	case types.VarEnum:
		return Value{Kind: KindEnum, Str: raw}
	}
	return Value{Kind: KindString, Str: raw}
}

// NumericValue projects a normalized value onto the numeric space consumed by
// the recommendation pipeline: numerics pass through, booleans map to 0/1,
// enums to their ordinal position in the catalog's value list.
func NumericValue(def *types.KnobCatalog, v Value) (float64, bool) {
	switch v.Kind {
	case KindInt, KindReal:
		return v.Num, true
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case KindEnum:
		for i, enumVal := range def.EnumValues() {
			if strings.EqualFold(enumVal, v.Str) {
				return float64(i), true
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(raw) {
	case "on", "true", "yes", "1":
		return true, true
	case "off", "false", "no", "0":
		return false, true
	}
	return false, false
}

// parseNumeric handles plain numbers plus the unit suffixes a DBMS config
// uses for sizes and durations. Byte values normalize to bytes, durations to
// milliseconds.
func parseNumeric(raw string, unit types.KnobUnit) (float64, bool) {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n, true
	}
	switch unit {
	case types.UnitBytes:
		return parseSuffixed(raw, byteSuffixes)
	case types.UnitMilliseconds:
		return parseSuffixed(raw, durationSuffixes)
	}
	return 0, false
}

var byteSuffixes = []suffixFactor{
	{"TB", 1 << 40},
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"kB", 1 << 10},
	{"KB", 1 << 10},
	{"B", 1},
}

var durationSuffixes = []suffixFactor{
	{"ms", 1},
	{"min", 60 * 1000},
	{"s", 1000},
	{"h", 60 * 60 * 1000},
	{"d", 24 * 60 * 60 * 1000},
}

type suffixFactor struct {
	suffix string
	factor float64
}

func parseSuffixed(raw string, suffixes []suffixFactor) (float64, bool) {
	for _, sf := range suffixes {
		if !strings.HasSuffix(raw, sf.suffix) {
			continue
		}
		numPart := strings.TrimSpace(strings.TrimSuffix(raw, sf.suffix))
		n, err := strconv.ParseFloat(numPart, 64)
		if err != nil {
			return 0, false
		}
		return n * sf.factor, true
	}
	return 0, false
}

// coerceString renders an arbitrary decoded JSON value as the raw string the
// normalizer works with.
func coerceString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "on"
		}
		return "off"
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// coerceFloat extracts a numeric reading from a decoded JSON value.
func coerceFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
