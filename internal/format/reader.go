// Package format reads and writes the tdb text format:
//
//	tdb1
//	|id const uint id|str name|int age|
//	|0|Alice|30|
//
// Line 1 is the magic and format version, line 2 the schema, every further
// line one row. Lines end in '\n'; '\r' is stripped on read.
package format

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tuannm99/tdb/internal/column"
	"github.com/tuannm99/tdb/internal/record"
)

const (
	Magic   = "tdb"
	Version = 1 // highest version this package reads and the one it writes
)

const (
	headerLine = 1
	schemaLine = 2
)

// Document is a parsed table file.
type Document struct {
	Version int
	Columns []column.Column

	schema record.Schema
}

func (d *Document) Schema() record.Schema { return d.schema }

func (d *Document) RowCount() int {
	if len(d.Columns) == 0 {
		return 0
	}
	return d.Columns[0].Len()
}

func (d *Document) Cell(row, col int) (record.Value, error) {
	return d.Columns[col].Get(row)
}

// Read parses a whole table file. Any error aborts the read; no partial
// document is returned.
func Read(r io.Reader) (*Document, error) {
	lr := &lineReader{r: bufio.NewReader(r)}

	line, ok, err := lr.next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &FormatError{Pos: Position{Line: headerLine}, Err: ErrBadMagic}
	}
	version, err := ParseHeader(line)
	if err != nil {
		return nil, err
	}

	doc := &Document{Version: version, schema: record.Schema{IDCol: -1}}

	line, ok, err = lr.next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return doc, nil
	}
	schema, err := ParseSchema(line)
	if err != nil {
		return nil, err
	}
	doc.schema = schema

	doc.Columns = make([]column.Column, schema.NumCols())
	for i, c := range schema.Cols {
		if doc.Columns[i], err = column.New(c); err != nil {
			return nil, err
		}
	}

	types := schema.Types()
	row := make([]record.Value, len(types))
	crlf := false
	for {
		line, ok, err := lr.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if lr.crlf && !crlf {
			slog.Debug("format: CRLF line endings detected", "line", lr.n)
			crlf = true
		}
		if line == "" {
			continue
		}

		fields, offsets, err := splitRow(line, lr.n)
		if err != nil {
			return nil, err
		}
		if len(types) == 0 || len(fields) != len(types) {
			return nil, &FormatError{
				Pos:  Position{Line: lr.n},
				Want: len(types),
				Got:  len(fields),
				Err:  ErrFieldCountMismatch,
			}
		}
		for i, f := range fields {
			v, err := record.ParseValue(types[i], f)
			if err != nil {
				return nil, &FormatError{
					Pos:   Position{Line: lr.n, Col: offsets[i]},
					Field: i + 1,
					Token: f,
					Err:   ErrInvalidNumericField,
				}
			}
			row[i] = v
		}
		for i, v := range row {
			if err := doc.Columns[i].Append(v); err != nil {
				return nil, err
			}
		}
	}

	slog.Debug("format: read table", "version", version, "columns", schema.NumCols(), "rows", doc.RowCount())
	return doc, nil
}

// ParseHeader checks the magic of line 1 and returns the format version.
func ParseHeader(line string) (int, error) {
	if !strings.HasPrefix(line, Magic) {
		return 0, &FormatError{Pos: Position{Line: headerLine, Col: 1}, Err: ErrBadMagic}
	}
	digits := line[len(Magic):]
	if digits == "" || strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return 0, &FormatError{Pos: Position{Line: headerLine, Col: len(Magic) + 1}, Token: digits, Err: ErrInvalidVersion}
	}
	// digits are all decimal, so Atoi only fails on overflow: a version
	// far above any this package knows.
	version, err := strconv.Atoi(digits)
	if err != nil || version > Version {
		return 0, &FormatError{Pos: Position{Line: headerLine, Col: len(Magic) + 1}, Token: digits, Err: ErrUnsupportedFormat}
	}
	return version, nil
}

// ParseSchema parses line 2. Each '|'-delimited field is a space-separated
// list of modifier and type tokens followed by the column name. The first
// type token wins; unknown tokens after it are ignored.
func ParseSchema(line string) (record.Schema, error) {
	if line == "" || line[0] != '|' {
		return record.Schema{}, &FormatError{Pos: Position{Line: schemaLine, Col: 1}, Err: ErrMalformedLine}
	}
	if line[len(line)-1] != '|' {
		return record.Schema{}, &FormatError{Pos: Position{Line: schemaLine, Col: len(line)}, Err: ErrMalformedLine}
	}

	var (
		cols  []record.Column
		idPos Position
		names = map[string]bool{}
	)
	start := 1
	for end := 1; end < len(line); end++ {
		if line[end] != '|' {
			continue
		}
		field := line[start:end]
		fieldNo := len(cols) + 1
		at := func(off int) Position { return Position{Line: schemaLine, Col: start + off + 1} }

		parts := strings.Split(field, " ")
		name := parts[len(parts)-1]
		if name == "" {
			return record.Schema{}, &FormatError{Pos: at(len(field)), Field: fieldNo, Err: record.ErrMissingColumnName}
		}

		col := record.Column{Name: name}
		off := 0
		for _, tok := range parts[:len(parts)-1] {
			pos := at(off)
			off += len(tok) + 1
			if tok == "" {
				continue
			}
			if typ, ok := record.ParseColumnType(tok); ok {
				if col.Type == record.ColUnknown {
					col.Type = typ
				}
				continue
			}
			switch tok {
			case "id":
				if idPos.Line > 0 {
					return record.Schema{}, &FormatError{Pos: pos, Field: fieldNo, Prev: idPos, Err: record.ErrDuplicateIDColumn}
				}
				idPos = pos
				col.Mods |= record.ModID
			case "const":
				col.Mods |= record.ModConst
			default:
				if col.Type == record.ColUnknown {
					return record.Schema{}, &FormatError{Pos: pos, Field: fieldNo, Token: tok, Err: ErrUnknownTypeModifier}
				}
			}
		}

		namePos := at(len(field) - len(name))
		switch {
		case col.Type == record.ColUnknown:
			return record.Schema{}, &FormatError{Pos: namePos, Field: fieldNo, Token: name, Err: ErrMissingColumnType}
		case col.IsID() && col.Type != record.ColUint:
			return record.Schema{}, &FormatError{Pos: namePos, Field: fieldNo, Token: name, Err: record.ErrInvalidIDType}
		case col.IsID() && !col.IsConst():
			return record.Schema{}, &FormatError{Pos: namePos, Field: fieldNo, Token: name, Err: record.ErrIDNotConst}
		case names[name]:
			return record.Schema{}, &FormatError{Pos: namePos, Field: fieldNo, Token: name, Err: record.ErrDuplicateColumnName}
		}
		names[name] = true
		cols = append(cols, col)
		start = end + 1
	}

	if len(cols) > 0 && idPos.Line == 0 {
		return record.Schema{}, &FormatError{Pos: Position{Line: schemaLine}, Err: record.ErrMissingIDColumn}
	}
	schema, err := record.NewSchema(cols)
	if err != nil {
		return record.Schema{}, &FormatError{Pos: Position{Line: schemaLine}, Err: err}
	}
	return schema, nil
}

// splitRow splits "|a|b|c|" into its fields and their 1-based columns.
func splitRow(line string, n int) ([]string, []int, error) {
	if line[0] != '|' {
		return nil, nil, &FormatError{Pos: Position{Line: n, Col: 1}, Err: ErrMalformedLine}
	}
	if len(line) == 1 {
		return nil, nil, nil
	}
	if line[len(line)-1] != '|' {
		return nil, nil, &FormatError{Pos: Position{Line: n, Col: len(line)}, Err: ErrMalformedLine}
	}
	fields := strings.Split(line[1:len(line)-1], "|")
	offsets := make([]int, len(fields))
	col := 2
	for i, f := range fields {
		offsets[i] = col
		col += len(f) + 1
	}
	return fields, offsets, nil
}

type lineReader struct {
	r    *bufio.Reader
	n    int
	crlf bool
}

// next returns the next line without its terminator and with every '\r'
// removed. ok is false at end of input.
func (lr *lineReader) next() (line string, ok bool, err error) {
	s, err := lr.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, err
	}
	if s == "" && err != nil {
		return "", false, nil
	}
	lr.n++
	s = strings.TrimSuffix(s, "\n")
	if strings.ContainsRune(s, '\r') {
		lr.crlf = true
		s = strings.ReplaceAll(s, "\r", "")
	}
	return s, true, nil
}
