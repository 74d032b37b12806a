// Package table is the in-memory table engine: typed columns sharing one
// row count, a sorted index over the id column, and row-level operations
// that validate every input before mutating anything.
//
// A Table is not safe for concurrent use.
package table

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/tuannm99/tdb/internal/column"
	"github.com/tuannm99/tdb/internal/record"
)

type Table struct {
	schema record.Schema
	cols   []column.Column
	ids    *column.Vector[uint64] // nil when the schema has no columns

	// index holds row positions ordered by id.
	index []int

	// nextID is one past the largest id this table has held. It only grows,
	// so ids freed by RemoveRow are not handed out again.
	nextID    uint64
	exhausted bool
}

// New takes ownership of cols and builds the id index. The columns must
// form a valid schema, have equal lengths and hold unique ids.
func New(cols []column.Column) (*Table, error) {
	infos := make([]record.Column, len(cols))
	for i, c := range cols {
		infos[i] = c.Info()
	}
	schema, err := record.NewSchema(infos)
	if err != nil {
		return nil, err
	}

	t := &Table{schema: schema, cols: cols}
	if len(cols) == 0 {
		return t, nil
	}

	n := cols[0].Len()
	for _, c := range cols[1:] {
		if c.Len() != n {
			return nil, fmt.Errorf("%w: %q has %d rows, %q has %d", ErrRowCountMismatch, infos[0].Name, n, c.Info().Name, c.Len())
		}
	}

	ids, ok := cols[schema.IDCol].(*column.Vector[uint64])
	if !ok {
		return nil, fmt.Errorf("id column %q: %w", infos[schema.IDCol].Name, record.ErrInvalidIDType)
	}
	t.ids = ids
	t.reindex()

	for i := 1; i < len(t.index); i++ {
		if id := ids.At(t.index[i]); id == ids.At(t.index[i-1]) {
			return nil, fmt.Errorf("%w %d at rows %d and %d", ErrDuplicateID, id, t.index[i-1], t.index[i])
		}
	}
	if len(t.index) > 0 {
		last := ids.At(t.index[len(t.index)-1])
		t.bumpNextID(last)
	}
	return t, nil
}

func (t *Table) reindex() {
	n := t.RowCount()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(t.ids.At(a), t.ids.At(b))
	})
	t.index = idx
	slog.Debug("table: index rebuilt", "rows", n)
}

func (t *Table) bumpNextID(seen uint64) {
	if seen == math.MaxUint64 {
		t.exhausted = true
		return
	}
	if seen+1 > t.nextID {
		t.nextID = seen + 1
	}
}

// Schema returns a copy of the table schema.
func (t *Table) Schema() record.Schema {
	return record.Schema{Cols: slices.Clone(t.schema.Cols), IDCol: t.schema.IDCol}
}

func (t *Table) RowCount() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

func (t *Table) ColumnCount() int { return len(t.cols) }

func (t *Table) ColumnNames() []string { return t.schema.Names() }

func (t *Table) ColumnTypes() []record.ColumnType { return t.schema.Types() }

// IDColumn returns the position of the id column, or -1 for a table
// without columns.
func (t *Table) IDColumn() int { return t.schema.IDCol }

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, error) {
	i := t.schema.Index(name)
	if i < 0 {
		return -1, fmt.Errorf("%w %q", ErrUnknownColumn, name)
	}
	return i, nil
}

func (t *Table) checkRow(pos int) error {
	if pos < 0 || pos >= t.RowCount() {
		return fmt.Errorf("row %d, row count %d: %w", pos, t.RowCount(), ErrOutOfRange)
	}
	return nil
}

func (t *Table) checkColumn(col int) error {
	if col < 0 || col >= len(t.cols) {
		return fmt.Errorf("column %d, column count %d: %w", col, len(t.cols), ErrOutOfRange)
	}
	return nil
}

// Cell returns the value at (row, col).
func (t *Table) Cell(row, col int) (record.Value, error) {
	if err := t.checkColumn(col); err != nil {
		return record.Value{}, err
	}
	return t.cols[col].Get(row)
}

// GetRow returns one value per column, in schema order.
func (t *Table) GetRow(pos int) ([]record.Value, error) {
	if err := t.checkRow(pos); err != nil {
		return nil, err
	}
	row := make([]record.Value, len(t.cols))
	for i, c := range t.cols {
		v, err := c.Get(pos)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// SearchByID binary-searches the id index and returns the row position.
func (t *Table) SearchByID(id uint64) (int, bool) {
	if t.ids == nil {
		return -1, false
	}
	low, high := 0, len(t.index)
	for low < high {
		mid := int(uint(low+high) >> 1)
		pos := t.index[mid]
		switch v := t.ids.At(pos); {
		case v < id:
			low = mid + 1
		case v > id:
			high = mid
		default:
			return pos, true
		}
	}
	return -1, false
}

// SearchByPrefix returns, in ascending order, the rows whose value in the
// named column starts with query when formatted as text.
func (t *Table) SearchByPrefix(name, query string) ([]int, error) {
	col, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	c := t.cols[col]
	var out []int
	for pos := 0; pos < c.Len(); pos++ {
		v, err := c.Get(pos)
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(v.String(), query) {
			out = append(out, pos)
		}
	}
	return out, nil
}

// NextID returns the id AddRow would assign next. It is never an id that
// is present in the table.
func (t *Table) NextID() (uint64, error) {
	if t.ids == nil {
		return 0, ErrNoIDColumn
	}
	if t.exhausted {
		return 0, ErrIDExhausted
	}
	return t.nextID, nil
}

// AddRow appends a row. values holds one entry per non-id column in schema
// order; the id is assigned by the table and returned. Nothing is changed
// unless every value is valid.
func (t *Table) AddRow(values []string) (uint64, error) {
	if t.ids == nil {
		return 0, ErrNoIDColumn
	}
	if want := len(t.cols) - 1; len(values) != want {
		return 0, fmt.Errorf("%w: %d needed, actual %d", ErrFieldCountMismatch, want, len(values))
	}

	row := make([]record.Value, len(t.cols))
	next := 0
	for i, c := range t.cols {
		if i == t.schema.IDCol {
			continue
		}
		s := values[next]
		next++
		info := c.Info()
		if ch := forbiddenChar(s); ch != 0 {
			return 0, &ColumnError{Column: info.Name, Index: i, Value: s, Char: ch, Err: ErrForbiddenCharacter}
		}
		v, err := record.ParseValue(info.Type, s)
		if err != nil {
			return 0, &ColumnError{Column: info.Name, Index: i, Value: s, Err: fmt.Errorf("%w: %w", ErrInvalidFieldType, err)}
		}
		row[i] = v
	}

	id, err := t.NextID()
	if err != nil {
		return 0, err
	}
	row[t.schema.IDCol] = record.UintValue(id)

	n := t.RowCount()
	for i, c := range t.cols {
		if err := c.Append(row[i]); err != nil {
			for _, done := range t.cols[:i] {
				_ = done.Remove(n)
			}
			return 0, err
		}
	}
	t.bumpNextID(id)
	t.reindex()
	return id, nil
}

// EditCell overwrites one cell. Const columns, which include the id
// column, are never editable.
func (t *Table) EditCell(row, col int, value string) error {
	if err := t.checkRow(row); err != nil {
		return err
	}
	if err := t.checkColumn(col); err != nil {
		return err
	}
	c := t.cols[col]
	info := c.Info()
	if info.IsConst() {
		return &ColumnError{Column: info.Name, Index: col, Err: ErrImmutableColumn}
	}
	if ch := forbiddenChar(value); ch != 0 {
		return &ColumnError{Column: info.Name, Index: col, Value: value, Char: ch, Err: ErrForbiddenCharacter}
	}
	v, err := record.ParseValue(info.Type, value)
	if err != nil {
		return &ColumnError{Column: info.Name, Index: col, Value: value, Err: fmt.Errorf("%w: %w", ErrTypeMismatch, err)}
	}
	return c.Set(row, v)
}

// Edit overwrites the named column of the row with the given id.
func (t *Table) Edit(id uint64, name, value string) error {
	pos, ok := t.SearchByID(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	col, err := t.ColumnIndex(name)
	if err != nil {
		return err
	}
	return t.EditCell(pos, col, value)
}

// RemoveRow deletes the row at pos from every column.
func (t *Table) RemoveRow(pos int) error {
	if err := t.checkRow(pos); err != nil {
		return err
	}
	for _, c := range t.cols {
		if err := c.Remove(pos); err != nil {
			return err
		}
	}
	t.reindex()
	return nil
}

// RemoveByID deletes the row with the given id.
func (t *Table) RemoveByID(id uint64) error {
	pos, ok := t.SearchByID(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return t.RemoveRow(pos)
}

// Clear removes every row. The id high-water mark is kept.
func (t *Table) Clear() {
	for _, c := range t.cols {
		c.Clear()
	}
	t.index = t.index[:0]
}
