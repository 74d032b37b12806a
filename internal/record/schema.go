package record

import (
	"errors"
	"fmt"
	"strings"
)

type ColumnType uint8

const (
	ColUnknown ColumnType = iota
	ColInt                // signed 64-bit
	ColUint               // unsigned 64-bit, used for IDs
	ColStr                // byte string
)

func (t ColumnType) String() string {
	switch t {
	case ColInt:
		return "int"
	case ColUint:
		return "uint"
	case ColStr:
		return "str"
	default:
		return "unknown"
	}
}

// ParseColumnType maps a schema type token to its ColumnType.
func ParseColumnType(tok string) (ColumnType, bool) {
	switch tok {
	case "int":
		return ColInt, true
	case "uint":
		return ColUint, true
	case "str":
		return ColStr, true
	default:
		return ColUnknown, false
	}
}

// Modifier is a bit set of column modifiers.
type Modifier uint8

const (
	ModConst Modifier = 1 << iota
	ModID
)

func (m Modifier) Has(f Modifier) bool { return m&f == f }

// String renders modifier tokens in schema order: "id" first, then "const".
func (m Modifier) String() string {
	var toks []string
	if m.Has(ModID) {
		toks = append(toks, "id")
	}
	if m.Has(ModConst) {
		toks = append(toks, "const")
	}
	return strings.Join(toks, " ")
}

type Column struct {
	Name string
	Type ColumnType
	Mods Modifier
}

func (c Column) IsConst() bool { return c.Mods.Has(ModConst) }
func (c Column) IsID() bool    { return c.Mods.Has(ModID) }

var (
	ErrMissingColumnName   = errors.New("schema: missing column name")
	ErrDuplicateIDColumn   = errors.New("schema: id column is already set")
	ErrInvalidIDType       = errors.New("schema: id column is not of type 'uint'")
	ErrIDNotConst          = errors.New("schema: id column is not 'const'")
	ErrMissingIDColumn     = errors.New("schema: no column is marked 'id'")
	ErrDuplicateColumnName = errors.New("schema: duplicate column name")
	ErrUnknownType         = errors.New("schema: column has unknown type")
)

// Schema is the ordered column list of a table. IDCol is -1 when the
// schema has no columns.
type Schema struct {
	Cols  []Column
	IDCol int
}

func (s Schema) NumCols() int { return len(s.Cols) }

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) Names() []string {
	out := make([]string, len(s.Cols))
	for i, c := range s.Cols {
		out[i] = c.Name
	}
	return out
}

func (s Schema) Types() []ColumnType {
	out := make([]ColumnType, len(s.Cols))
	for i, c := range s.Cols {
		out[i] = c.Type
	}
	return out
}

// NewSchema builds a Schema from cols, locating the id column, and validates it.
func NewSchema(cols []Column) (Schema, error) {
	s := Schema{Cols: cols, IDCol: -1}
	for i, c := range cols {
		if c.IsID() && s.IDCol < 0 {
			s.IDCol = i
		}
	}
	return s, s.Validate()
}

// Validate checks the table-level schema rules: unique non-empty names,
// known types and exactly one 'id const uint' column. A schema with no
// columns is valid.
func (s Schema) Validate() error {
	if len(s.Cols) == 0 {
		return nil
	}
	seen := make(map[string]int, len(s.Cols))
	idCol := -1
	for i, c := range s.Cols {
		if c.Name == "" {
			return fmt.Errorf("column %d: %w", i+1, ErrMissingColumnName)
		}
		if prev, ok := seen[c.Name]; ok {
			return fmt.Errorf("column %d %q (previous at %d): %w", i+1, c.Name, prev+1, ErrDuplicateColumnName)
		}
		seen[c.Name] = i
		if c.Type == ColUnknown {
			return fmt.Errorf("column %q: %w", c.Name, ErrUnknownType)
		}
		if !c.IsID() {
			continue
		}
		if idCol >= 0 {
			return fmt.Errorf("column %q (previous id %q): %w", c.Name, s.Cols[idCol].Name, ErrDuplicateIDColumn)
		}
		idCol = i
		if c.Type != ColUint {
			return fmt.Errorf("column %q: %w", c.Name, ErrInvalidIDType)
		}
		if !c.IsConst() {
			return fmt.Errorf("column %q: %w", c.Name, ErrIDNotConst)
		}
	}
	if idCol < 0 {
		return ErrMissingIDColumn
	}
	if s.IDCol != idCol {
		return fmt.Errorf("schema: id index %d does not match id column %d", s.IDCol, idCol)
	}
	return nil
}
