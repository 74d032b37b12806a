package table

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tuannm99/tdb/internal/column"
)

var (
	ErrOutOfRange         = column.ErrOutOfRange
	ErrUnknownColumn      = errors.New("table: unknown column")
	ErrImmutableColumn    = errors.New("table: can not edit value with 'const' modifier")
	ErrTypeMismatch       = errors.New("table: value does not match column type")
	ErrInvalidFieldType   = errors.New("table: invalid value for column type")
	ErrFieldCountMismatch = errors.New("table: invalid number of values")
	ErrForbiddenCharacter = errors.New("table: forbidden character")
	ErrNotFound           = errors.New("table: no row with this id")
	ErrNoIDColumn         = errors.New("table: table has no id column")
	ErrIDExhausted        = errors.New("table: id space exhausted")
	ErrDuplicateID        = errors.New("table: duplicate id")
	ErrRowCountMismatch   = errors.New("table: columns have different lengths")
)

// ForbiddenChars may not appear in any value written through the table:
// '|' delimits fields, '\n' and '\r' end rows, '[' and ']' wrap modifiers
// when the header is displayed.
const ForbiddenChars = "|[]\n\r"

// ColumnError is a per-operation failure tied to one column.
type ColumnError struct {
	Column string
	Index  int  // position of the column in schema order
	Value  string
	Char   rune // offending character, set for ErrForbiddenCharacter
	Err    error
}

func (e *ColumnError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "column %q", e.Column)
	if e.Char != 0 {
		fmt.Fprintf(&b, ": %v %q", e.Err, e.Char)
		return b.String()
	}
	if e.Value != "" {
		fmt.Fprintf(&b, ": value %q", e.Value)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *ColumnError) Unwrap() error { return e.Err }

// forbiddenChar returns the first forbidden character in s, or 0.
func forbiddenChar(s string) rune {
	if i := strings.IndexAny(s, ForbiddenChars); i >= 0 {
		return rune(s[i])
	}
	return 0
}
