// Package column holds homogeneous, growable value arrays. A column is a
// dumb container: it checks positions and value types, never modifiers or
// cross-column row counts.
package column

import (
	"errors"
	"fmt"

	"github.com/tuannm99/tdb/internal/record"
)

var (
	ErrOutOfRange   = errors.New("column: position out of range")
	ErrTypeMismatch = errors.New("column: value type does not match column type")
)

// Column is the uniform interface over Vector[int64], Vector[uint64] and
// Vector[string].
type Column interface {
	Info() record.Column
	Len() int
	Get(pos int) (record.Value, error)
	Set(pos int, v record.Value) error
	Append(v record.Value) error
	Remove(pos int) error
	Clear()
}

// Elem is the set of element types a Vector can hold.
type Elem interface {
	int64 | uint64 | string
}

var (
	_ Column = (*Vector[int64])(nil)
	_ Column = (*Vector[uint64])(nil)
	_ Column = (*Vector[string])(nil)
)

// Vector stores the values of one column.
type Vector[T Elem] struct {
	info   record.Column
	data   []T
	wrap   func(T) record.Value
	unwrap func(record.Value) (T, bool)
}

// New returns an empty column for info.Type.
func New(info record.Column) (Column, error) {
	switch info.Type {
	case record.ColInt:
		return NewInt(info), nil
	case record.ColUint:
		return NewUint(info), nil
	case record.ColStr:
		return NewStr(info), nil
	default:
		return nil, fmt.Errorf("column %q: %w", info.Name, record.ErrUnknownType)
	}
}

func NewInt(info record.Column) *Vector[int64] {
	info.Type = record.ColInt
	return &Vector[int64]{
		info: info,
		wrap: record.IntValue,
		unwrap: func(v record.Value) (int64, bool) {
			return v.Int, v.Type == record.ColInt
		},
	}
}

func NewUint(info record.Column) *Vector[uint64] {
	info.Type = record.ColUint
	return &Vector[uint64]{
		info: info,
		wrap: record.UintValue,
		unwrap: func(v record.Value) (uint64, bool) {
			return v.Uint, v.Type == record.ColUint
		},
	}
}

func NewStr(info record.Column) *Vector[string] {
	info.Type = record.ColStr
	return &Vector[string]{
		info: info,
		wrap: record.StrValue,
		unwrap: func(v record.Value) (string, bool) {
			return v.Str, v.Type == record.ColStr
		},
	}
}

func (c *Vector[T]) Info() record.Column { return c.info }

func (c *Vector[T]) Len() int { return len(c.data) }

func (c *Vector[T]) checkPos(pos int) error {
	if pos < 0 || pos >= len(c.data) {
		return fmt.Errorf("column %q: position %d, length %d: %w", c.info.Name, pos, len(c.data), ErrOutOfRange)
	}
	return nil
}

func (c *Vector[T]) checkType(v record.Value) (T, error) {
	x, ok := c.unwrap(v)
	if !ok {
		return x, fmt.Errorf("column %q: got %s, want %s: %w", c.info.Name, v.Type, c.info.Type, ErrTypeMismatch)
	}
	return x, nil
}

func (c *Vector[T]) Get(pos int) (record.Value, error) {
	if err := c.checkPos(pos); err != nil {
		return record.Value{}, err
	}
	return c.wrap(c.data[pos]), nil
}

// At returns the raw element at pos. It panics when pos is out of range.
func (c *Vector[T]) At(pos int) T { return c.data[pos] }

func (c *Vector[T]) Set(pos int, v record.Value) error {
	if err := c.checkPos(pos); err != nil {
		return err
	}
	x, err := c.checkType(v)
	if err != nil {
		return err
	}
	c.data[pos] = x
	return nil
}

func (c *Vector[T]) Append(v record.Value) error {
	x, err := c.checkType(v)
	if err != nil {
		return err
	}
	c.data = append(c.data, x)
	return nil
}

// Push appends a raw element.
func (c *Vector[T]) Push(x T) { c.data = append(c.data, x) }

func (c *Vector[T]) Remove(pos int) error {
	if err := c.checkPos(pos); err != nil {
		return err
	}
	c.data = append(c.data[:pos], c.data[pos+1:]...)
	return nil
}

func (c *Vector[T]) Clear() {
	clear(c.data)
	c.data = c.data[:0]
}
