package record

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrNotNumber       = errors.New("record: value is not a number")
	ErrValueOutOfRange = errors.New("record: number out of range")
	ErrTypeMismatch    = errors.New("record: value type does not match column type")
)

// Value is one cell. Only the field selected by Type is meaningful.
type Value struct {
	Type ColumnType
	Int  int64
	Uint uint64
	Str  string
}

func IntValue(v int64) Value   { return Value{Type: ColInt, Int: v} }
func UintValue(v uint64) Value { return Value{Type: ColUint, Uint: v} }
func StrValue(v string) Value  { return Value{Type: ColStr, Str: v} }

// String returns the canonical text form used by the file format and by
// prefix search.
func (v Value) String() string {
	switch v.Type {
	case ColInt:
		return strconv.FormatInt(v.Int, 10)
	case ColUint:
		return strconv.FormatUint(v.Uint, 10)
	case ColStr:
		return v.Str
	default:
		return ""
	}
}

// Any unwraps the value into int64, uint64 or string.
func (v Value) Any() any {
	switch v.Type {
	case ColInt:
		return v.Int
	case ColUint:
		return v.Uint
	case ColStr:
		return v.Str
	default:
		return nil
	}
}

// ParseValue converts the text s into a value of type t. Numeric text must
// be decimal digits only; int additionally accepts a leading sign.
func ParseValue(t ColumnType, s string) (Value, error) {
	switch t {
	case ColInt:
		if !isDecimal(s, true) {
			return Value{}, fmt.Errorf("%q: %w", s, ErrNotNumber)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%q: %w", s, ErrValueOutOfRange)
		}
		return IntValue(n), nil
	case ColUint:
		if !isDecimal(s, false) {
			return Value{}, fmt.Errorf("%q: %w", s, ErrNotNumber)
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%q: %w", s, ErrValueOutOfRange)
		}
		return UintValue(n), nil
	case ColStr:
		return StrValue(s), nil
	default:
		return Value{}, ErrUnknownType
	}
}

func isDecimal(s string, signed bool) bool {
	if signed && len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
