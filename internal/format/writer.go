package format

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/tuannm99/tdb/internal/record"
)

// Source is a table as seen by Write.
type Source interface {
	Schema() record.Schema
	RowCount() int
	Cell(row, col int) (record.Value, error)
}

// Write serializes src at the current Version.
func Write(w io.Writer, src Source) error {
	schema := src.Schema()
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(HeaderLine() + "\n"); err != nil {
		return err
	}
	if _, err := bw.WriteString(SchemaLine(schema) + "\n"); err != nil {
		return err
	}

	rows := src.RowCount()
	for row := 0; row < rows; row++ {
		for col := range schema.Cols {
			v, err := src.Cell(row, col)
			if err != nil {
				return err
			}
			if err := bw.WriteByte('|'); err != nil {
				return err
			}
			if _, err := bw.WriteString(v.String()); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString("|\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// HeaderLine returns line 1 without its terminator.
func HeaderLine() string { return Magic + strconv.Itoa(Version) }

// SchemaLine returns line 2 without its terminator.
func SchemaLine(s record.Schema) string {
	var b strings.Builder
	for _, c := range s.Cols {
		b.WriteByte('|')
		if mods := c.Mods.String(); mods != "" {
			b.WriteString(mods)
			b.WriteByte(' ')
		}
		b.WriteString(c.Type.String())
		b.WriteByte(' ')
		b.WriteString(c.Name)
	}
	b.WriteByte('|')
	return b.String()
}
