package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/tdb/internal/record"
	"github.com/tuannm99/tdb/internal/storage"
	"github.com/tuannm99/tdb/internal/table"
)

const emptyPeople = "tdb1\n|id const uint id|str name|int age|\n"

func openTemp(t *testing.T, content string) (*Database, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "people.tdb")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

func TestDatabase_CommitRevertScenario(t *testing.T) {
	db, path := openTemp(t, emptyPeople)
	require.False(t, db.Dirty())

	id, err := db.AddRow([]string{"Alice", "30"})
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)
	id, err = db.AddRow([]string{"Bob", "25"})
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
	require.True(t, db.Dirty())

	pos, ok := db.SearchByID(1)
	require.True(t, ok)
	require.Equal(t, 1, pos)

	require.NoError(t, db.RemoveByID(0))
	require.Equal(t, 1, db.RowCount())

	require.NoError(t, db.Commit())
	require.False(t, db.Dirty())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, emptyPeople+"|1|Bob|25|\n", string(data))

	_, err = db.AddRow([]string{"Carol", "41"})
	require.NoError(t, err)
	require.NoError(t, db.Revert())
	require.False(t, db.Dirty())

	require.Equal(t, 1, db.RowCount())
	row, err := db.GetRow(0)
	require.NoError(t, err)
	require.Equal(t, []record.Value{record.UintValue(1), record.StrValue("Bob"), record.IntValue(25)}, row)
}

func TestDatabase_OpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.tdb"))
	require.ErrorIs(t, err, storage.ErrNotFound)

	path := filepath.Join(t.TempDir(), "bad.tdb")
	require.NoError(t, os.WriteFile(path, []byte("tdb9\n|\n"), 0o644))
	_, err = Open(path)
	require.ErrorIs(t, err, storage.ErrFormat)
}

func TestDatabase_FailedOpsKeepClean(t *testing.T) {
	db, _ := openTemp(t, emptyPeople+"|0|Alice|30|\n")

	_, err := db.AddRow([]string{"Bob", "x"})
	require.ErrorIs(t, err, table.ErrInvalidFieldType)
	require.ErrorIs(t, db.EditCell(0, "id", "3"), table.ErrImmutableColumn)
	require.ErrorIs(t, db.EditCell(0, "age", "old"), table.ErrTypeMismatch)
	require.ErrorIs(t, db.RemoveByID(4), table.ErrNotFound)
	require.False(t, db.Dirty())

	require.NoError(t, db.EditCell(0, "age", "31"))
	require.True(t, db.Dirty())
}

func TestDatabase_CommitAs(t *testing.T) {
	db, path := openTemp(t, emptyPeople)
	_, err := db.AddRow([]string{"Alice", "30"})
	require.NoError(t, err)

	other := filepath.Join(filepath.Dir(path), "other.tdb")
	require.NoError(t, db.CommitAs(other))
	require.True(t, db.Dirty())
	require.Equal(t, path, db.Path())

	data, err := os.ReadFile(other)
	require.NoError(t, err)
	require.Equal(t, emptyPeople+"|0|Alice|30|\n", string(data))

	require.ErrorIs(t, db.CommitAs(other), storage.ErrAlreadyExists)
}

func TestDatabase_RevertFailureKeepsTable(t *testing.T) {
	db, path := openTemp(t, emptyPeople)
	_, err := db.AddRow([]string{"Alice", "30"})
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	changed, err := db.Changed()
	require.NoError(t, err)
	require.True(t, changed)

	require.ErrorIs(t, db.Revert(), storage.ErrNotFound)
	require.Equal(t, 1, db.RowCount())
	require.True(t, db.Dirty())
}

func TestDatabase_ClearAndMetadata(t *testing.T) {
	db, _ := openTemp(t, emptyPeople+"|0|Alice|30|\n|4|Bob|25|\n")

	require.Equal(t, 3, db.ColumnCount())
	require.Equal(t, []string{"id", "name", "age"}, db.ColumnNames())
	require.Equal(t, []record.ColumnType{record.ColUint, record.ColStr, record.ColInt}, db.ColumnTypes())
	require.True(t, db.Schema().Cols[0].IsID())
	next, err := db.NextID()
	require.NoError(t, err)
	require.Equal(t, uint64(5), next)

	got, err := db.SearchByPrefix("name", "B")
	require.NoError(t, err)
	require.Equal(t, []int{1}, got)

	require.NoError(t, db.Clear())
	require.Equal(t, 0, db.RowCount())
	require.True(t, db.Dirty())
}

func TestDatabase_Closed(t *testing.T) {
	db, _ := openTemp(t, emptyPeople)
	require.NoError(t, db.Close())
	require.ErrorIs(t, db.Close(), ErrDatabaseClosed)
	require.ErrorIs(t, db.Commit(), ErrDatabaseClosed)
	_, err := db.AddRow([]string{"a", "1"})
	require.ErrorIs(t, err, ErrDatabaseClosed)
}

func TestDatabase_CommitFailureKeepsTable(t *testing.T) {
	db, path := openTemp(t, emptyPeople)
	_, err := db.AddRow([]string{"Alice", "30"})
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Dir(path)))
	err = db.Commit()
	require.ErrorIs(t, err, storage.ErrIO)

	require.True(t, db.Dirty())
	require.Equal(t, 1, db.RowCount())
	row, err := db.GetRow(0)
	require.NoError(t, err)
	require.Equal(t, []record.Value{record.UintValue(0), record.StrValue("Alice"), record.IntValue(30)}, row)
}

func TestDatabase_ReadsAfterClose(t *testing.T) {
	db, _ := openTemp(t, emptyPeople+"|0|Alice|30|\n")
	require.NoError(t, db.Close())

	pos, ok := db.SearchByID(0)
	require.True(t, ok)
	require.Equal(t, 0, pos)
	require.Equal(t, 1, db.RowCount())

	require.ErrorIs(t, db.Clear(), ErrDatabaseClosed)
	require.ErrorIs(t, db.Revert(), ErrDatabaseClosed)
	require.ErrorIs(t, db.EditCell(0, "age", "1"), ErrDatabaseClosed)
	require.Equal(t, 1, db.RowCount())
}
