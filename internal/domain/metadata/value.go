package metadata

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind tags which member of the Value union is set.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindBool
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "text"
	}
}

// Value is a coerced attribute value: exactly one of Bool, Number or Text is
// meaningful, as selected by Kind. Raw always holds the trimmed source text.
type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	Text   string
	Raw    string
}

// BoolValue builds a KindBool value.
func BoolValue(b bool, raw string) Value { return Value{Kind: KindBool, Bool: b, Raw: raw} }

// NumberValue builds a KindNumber value.
func NumberValue(n float64, raw string) Value { return Value{Kind: KindNumber, Number: n, Raw: raw} }

// TextValue builds a KindText value.
func TextValue(s string) Value { return Value{Kind: KindText, Text: s, Raw: s} }

// Interface returns the value as bool, float64 or string.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	default:
		return v.Text
	}
}

// String formats the value for display.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	default:
		return v.Text
	}
}

var (
	unitSuffix    = regexp.MustCompile(`(?i)(^|[\s\d.])(?:minutes?|mins?)$`)
	numberPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)
)

// Coerce interprets free text. The order is fixed: boolean words first, then a
// trailing minutes unit is stripped, then the first signed decimal substring is
// taken as a number, and otherwise the trimmed text is kept.
func Coerce(raw string) Value {
	trimmed := strings.TrimSpace(raw)

	switch strings.ToLower(trimmed) {
	case "yes", "true":
		return BoolValue(true, trimmed)
	case "no", "false":
		return BoolValue(false, trimmed)
	}

	if m := numberPattern.FindString(stripUnit(trimmed)); m != "" {
		if n, err := strconv.ParseFloat(m, 64); err == nil {
			return NumberValue(n, trimmed)
		}
	}

	return TextValue(trimmed)
}

// stripUnit drops a trailing minutes unit. The unit must follow a digit or a
// space, so words that merely end in "mins" are kept.
func stripUnit(s string) string {
	return strings.TrimSpace(unitSuffix.ReplaceAllString(s, "${1}"))
}
