package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the runtime type held by a Value
type Kind int

const (
	KindBool Kind = iota
	KindNumber
	KindString
)

// String returns the lowercase name used in schemas and error messages
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a fact or literal: a boolean, a number or a string.
// The zero Value is the boolean false.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
}

// Bool returns a boolean Value
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Number returns a numeric Value
func Number(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

// String returns a string Value
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Kind returns the runtime type of v
func (v Value) Kind() Kind {
	return v.kind
}

// AsBool returns the boolean payload and whether v is a boolean
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsNumber returns the numeric payload and whether v is a number
func (v Value) AsNumber() (float64, bool) {
	return v.n, v.kind == KindNumber
}

// AsString returns the string payload and whether v is a string
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// Interface returns v as a native Go value (bool, float64 or string)
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	default:
		return v.b
	}
}

// Equal reports whether v and other hold the same kind and payload.
// Values of different kinds are never equal.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	default:
		return v.b == other.b
	}
}

// String renders v as a cell literal. Strings are wrapped in double quotes
// with inner quotes doubled, so the result parses back with ParseLiteral.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case KindString:
		return `"` + strings.ReplaceAll(v.s, `"`, `""`) + `"`
	default:
		return strconv.FormatBool(v.b)
	}
}

// ParseLiteral converts cell text to a Value.
// true/false (any case) become booleans, finite numeric literals become numbers,
// a double-quoted string is unquoted, and any other text is kept verbatim as a string.
func ParseLiteral(text string) Value {
	if b, ok := parseBool(text); ok {
		return Bool(b)
	}
	if n, ok := parseNumber(text); ok {
		return Number(n)
	}
	if s, ok := unquote(text); ok {
		return String(s)
	}
	return String(text)
}

// ValueOf converts a native Go value into a Value.
// Supported: Value, bool, string, and every integer and float kind.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int8:
		return Number(float64(t)), nil
	case int16:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint:
		return Number(float64(t)), nil
	case uint8:
		return Number(float64(t)), nil
	case uint16:
		return Number(float64(t)), nil
	case uint32:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	default:
		return Value{}, &TypeMismatchError{Got: fmt.Sprintf("%T", x), Want: "bool, number or string"}
	}
}

func parseBool(text string) (bool, bool) {
	switch strings.ToLower(text) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// parseNumber rejects NaN and infinities so that words like "inf" stay strings
func parseNumber(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func unquote(text string) (string, bool) {
	if len(text) < 2 || text[0] != '"' || text[len(text)-1] != '"' {
		return "", false
	}
	// Backslashes are literal; only doubled quotes are collapsed
	return strings.ReplaceAll(text[1:len(text)-1], `""`, `"`), true
}
