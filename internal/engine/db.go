package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tuannm99/tdb/internal/record"
	"github.com/tuannm99/tdb/internal/storage"
	"github.com/tuannm99/tdb/internal/table"
)

var ErrDatabaseClosed = errors.New("tdb: database is closed")

// DatabaseOperation is the API a front end drives. Close only blocks the
// methods that return an error (commit, revert and the mutations); reads
// keep serving the last in-memory table.
type DatabaseOperation interface {
	Commit() error
	CommitAs(path string) error
	Revert() error
	Clear() error

	AddRow(values []string) (uint64, error)
	RemoveByID(id uint64) error
	EditCell(id uint64, column, value string) error

	SearchByID(id uint64) (int, bool)
	SearchByPrefix(column, query string) ([]int, error)
	GetRow(pos int) ([]record.Value, error)

	RowCount() int
	ColumnCount() int
	ColumnNames() []string
	ColumnTypes() []record.ColumnType
	Schema() record.Schema
	NextID() (uint64, error)

	Path() string
	Dirty() bool
	Close() error
}

var _ DatabaseOperation = (*Database)(nil)

// Database is one table file opened for editing. Changes stay in memory
// until Commit. It is not safe for concurrent use.
type Database struct {
	store  *storage.Store
	tbl    *table.Table
	dirty  bool
	closed bool
}

// Open loads the table stored at path.
func Open(path string) (*Database, error) {
	store := storage.NewStore(path)
	tbl, err := store.Load()
	if err != nil {
		return nil, err
	}
	slog.Info("open table", "path", store.Path(), "rows", tbl.RowCount(), "columns", tbl.ColumnCount())
	return &Database{store: store, tbl: tbl}, nil
}

func (db *Database) Path() string { return db.store.Path() }

// Dirty reports uncommitted changes.
func (db *Database) Dirty() bool { return db.dirty }

// Table exposes the in-memory table for read-only callers such as
// renderers.
func (db *Database) Table() *table.Table { return db.tbl }

func (db *Database) check() error {
	if db.closed {
		return ErrDatabaseClosed
	}
	return nil
}

// Commit writes the table over its file. On failure the in-memory table
// and the dirty flag are unchanged.
func (db *Database) Commit() error {
	if err := db.check(); err != nil {
		return err
	}
	if err := db.store.Save(db.tbl); err != nil {
		return err
	}
	db.dirty = false
	slog.Info("commit", "path", db.store.Path(), "rows", db.tbl.RowCount())
	return nil
}

// CommitAs writes the table to a new file. The database stays bound to its
// original path and keeps its dirty flag.
func (db *Database) CommitAs(path string) error {
	if err := db.check(); err != nil {
		return err
	}
	if err := db.store.SaveAs(path, db.tbl); err != nil {
		return err
	}
	slog.Info("commit as", "path", path, "rows", db.tbl.RowCount())
	return nil
}

// Revert drops in-memory changes and reloads the file. If the reload fails
// the current table is kept.
func (db *Database) Revert() error {
	if err := db.check(); err != nil {
		return err
	}
	tbl, err := db.store.Load()
	if err != nil {
		return err
	}
	db.tbl = tbl
	db.dirty = false
	slog.Info("revert", "path", db.store.Path(), "rows", tbl.RowCount())
	return nil
}

// Changed reports whether the file was modified since it was opened,
// committed or reverted.
func (db *Database) Changed() (bool, error) { return db.store.Changed() }

// Watch blocks until ctx is done, calling fn when another process
// modifies the file.
func (db *Database) Watch(ctx context.Context, fn func()) error {
	return db.store.Watch(ctx, fn)
}

func (db *Database) Clear() error {
	if err := db.check(); err != nil {
		return err
	}
	if db.tbl.RowCount() > 0 {
		db.dirty = true
	}
	db.tbl.Clear()
	return nil
}

func (db *Database) AddRow(values []string) (uint64, error) {
	if err := db.check(); err != nil {
		return 0, err
	}
	id, err := db.tbl.AddRow(values)
	if err != nil {
		return 0, err
	}
	db.dirty = true
	return id, nil
}

func (db *Database) RemoveByID(id uint64) error {
	if err := db.check(); err != nil {
		return err
	}
	if err := db.tbl.RemoveByID(id); err != nil {
		return err
	}
	db.dirty = true
	return nil
}

// EditCell sets the named column of the row with the given id.
func (db *Database) EditCell(id uint64, column, value string) error {
	if err := db.check(); err != nil {
		return err
	}
	if err := db.tbl.Edit(id, column, value); err != nil {
		return err
	}
	db.dirty = true
	return nil
}

func (db *Database) SearchByID(id uint64) (int, bool) { return db.tbl.SearchByID(id) }

func (db *Database) SearchByPrefix(column, query string) ([]int, error) {
	return db.tbl.SearchByPrefix(column, query)
}

func (db *Database) GetRow(pos int) ([]record.Value, error) { return db.tbl.GetRow(pos) }

func (db *Database) RowCount() int { return db.tbl.RowCount() }

func (db *Database) ColumnCount() int { return db.tbl.ColumnCount() }

func (db *Database) ColumnNames() []string { return db.tbl.ColumnNames() }

func (db *Database) ColumnTypes() []record.ColumnType { return db.tbl.ColumnTypes() }

func (db *Database) Schema() record.Schema { return db.tbl.Schema() }

func (db *Database) NextID() (uint64, error) { return db.tbl.NextID() }

// Close releases the database without committing. Later writes fail with
// ErrDatabaseClosed; reads still see the last in-memory table.
func (db *Database) Close() error {
	if db.closed {
		return ErrDatabaseClosed
	}
	if db.dirty {
		slog.Warn("closing with uncommitted changes", "path", db.store.Path())
	}
	db.closed = true
	return nil
}
