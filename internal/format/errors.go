package format

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBadMagic            = errors.New("format: file is not a tdb database")
	ErrInvalidVersion      = errors.New("format: invalid version number")
	ErrUnsupportedFormat   = errors.New("format: version is too new")
	ErrMalformedLine       = errors.New("format: invalid delimiter")
	ErrUnknownTypeModifier = errors.New("format: unknown type modifier")
	ErrMissingColumnType   = errors.New("format: column has no type")
	ErrFieldCountMismatch  = errors.New("format: invalid number of fields")
	ErrInvalidNumericField = errors.New("format: field is not a number")
)

// Position is a 1-based line:column location in the file. Col is 0 when
// only the line is known.
type Position struct {
	Line int
	Col  int
}

func (p Position) String() string {
	if p.Col == 0 {
		return fmt.Sprintf("line %d", p.Line)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// FormatError locates a header, schema or row error. Err is one of the
// format sentinels or a record schema sentinel.
type FormatError struct {
	Pos   Position
	Field int      // 1-based field number, 0 when not applicable
	Prev  Position // earlier id modifier, set for record.ErrDuplicateIDColumn
	Want  int      // required field count, set for ErrFieldCountMismatch
	Got   int
	Token string
	Err   error
}

func (e *FormatError) Error() string {
	var b strings.Builder
	b.WriteString(e.Pos.String())
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.Token != "" {
		fmt.Fprintf(&b, " %q", e.Token)
	}
	if errors.Is(e.Err, ErrFieldCountMismatch) {
		fmt.Fprintf(&b, " (%d required, actual %d)", e.Want, e.Got)
	}
	if e.Field > 0 {
		fmt.Fprintf(&b, ", field %d", e.Field)
	}
	if e.Prev.Line > 0 {
		fmt.Fprintf(&b, ", previous id at %s", e.Prev)
	}
	return b.String()
}

func (e *FormatError) Unwrap() error { return e.Err }
