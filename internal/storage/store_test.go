package storage

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/tdb/internal/format"
	"github.com/tuannm99/tdb/internal/record"
	"github.com/tuannm99/tdb/internal/table"
)

const people = "tdb1\n" +
	"|id const uint id|str name|int age|\n" +
	"|0|Alice|30|\n" +
	"|1|Bob|25|\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestStore_LoadSave(t *testing.T) {
	path := writeFile(t, "people.tdb", people)
	s := NewStore(path)
	require.Equal(t, CompressNone, s.Compression())

	tbl, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, 2, tbl.RowCount())

	_, err = tbl.AddRow([]string{"Carol", "41"})
	require.NoError(t, err)
	require.NoError(t, s.Save(tbl))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, people+"|2|Carol|41|\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(FileMode0644), info.Mode().Perm())

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestStore_LoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := NewStore(filepath.Join(t.TempDir(), "nope.tdb")).Load()
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("bad schema", func(t *testing.T) {
		path := writeFile(t, "bad.tdb", "tdb1\n|id const uint a|id const uint b|\n")
		_, err := NewStore(path).Load()
		require.ErrorIs(t, err, ErrFormat)
		require.ErrorIs(t, err, record.ErrDuplicateIDColumn)

		var fe *format.FormatError
		require.ErrorAs(t, err, &fe)
		require.Equal(t, format.Position{Line: 2, Col: 2}, fe.Prev)
	})

	t.Run("short row", func(t *testing.T) {
		path := writeFile(t, "short.tdb", people+"|2|Carol|\n")
		_, err := NewStore(path).Load()
		require.ErrorIs(t, err, ErrFormat)
		require.ErrorIs(t, err, format.ErrFieldCountMismatch)

		var fe *format.FormatError
		require.ErrorAs(t, err, &fe)
		require.Equal(t, 5, fe.Pos.Line)
	})

	t.Run("duplicate ids", func(t *testing.T) {
		path := writeFile(t, "dup.tdb", people+"|1|Carol|4|\n")
		_, err := NewStore(path).Load()
		require.ErrorIs(t, err, ErrFormat)
		require.ErrorIs(t, err, table.ErrDuplicateID)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := NewStore(t.TempDir()).Load()
		require.ErrorIs(t, err, ErrIO)
	})
}

func TestStore_SaveAs(t *testing.T) {
	path := writeFile(t, "people.tdb", people)
	s := NewStore(path)
	tbl, err := s.Load()
	require.NoError(t, err)

	copyPath := filepath.Join(filepath.Dir(path), "copy.tdb")
	require.NoError(t, s.SaveAs(copyPath, tbl))
	data, err := os.ReadFile(copyPath)
	require.NoError(t, err)
	require.Equal(t, people, string(data))
	require.Equal(t, path, s.Path())

	err = s.SaveAs(copyPath, tbl)
	require.ErrorIs(t, err, ErrAlreadyExists)
	require.ErrorIs(t, err, fs.ErrExist)

	err = s.SaveAs(path, tbl)
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestStore_Compressed(t *testing.T) {
	src := NewStore(writeFile(t, "people.tdb", people))
	tbl, err := src.Load()
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		want Compression
	}{
		{name: "people.tdb.zst", want: CompressZstd},
		{name: "people.tdb.sz", want: CompressSnappy},
	} {
		t.Run(tc.want.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tc.name)
			require.NoError(t, src.SaveAs(path, tbl))

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			require.False(t, bytes.HasPrefix(raw, []byte("tdb1")))

			s := NewStore(path)
			require.Equal(t, tc.want, s.Compression())
			got, err := s.Load()
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, format.Write(&buf, got))
			require.Equal(t, people, buf.String())

			_, err = got.AddRow([]string{"Carol", "41"})
			require.NoError(t, err)
			require.NoError(t, s.Save(got))
			again, err := s.Load()
			require.NoError(t, err)
			require.Equal(t, 3, again.RowCount())
		})
	}
}

func TestCompressionFor(t *testing.T) {
	require.Equal(t, CompressNone, CompressionFor("a.tdb"))
	require.Equal(t, CompressZstd, CompressionFor("a.tdb.ZST"))
	require.Equal(t, CompressSnappy, CompressionFor("dir/a.sz"))
	require.Equal(t, CompressNone, CompressionFor("zst"))
}

func TestStore_Changed(t *testing.T) {
	path := writeFile(t, "people.tdb", people)
	s := NewStore(path)
	tbl, err := s.Load()
	require.NoError(t, err)

	changed, err := s.Changed()
	require.NoError(t, err)
	require.False(t, changed)

	require.NoError(t, s.Save(tbl))
	changed, err = s.Changed()
	require.NoError(t, err)
	require.False(t, changed)

	require.NoError(t, os.WriteFile(path, []byte(people+"|2|Carol|41|\n"), 0o644))
	changed, err = s.Changed()
	require.NoError(t, err)
	require.True(t, changed)

	require.NoError(t, os.Remove(path))
	changed, err = s.Changed()
	require.NoError(t, err)
	require.True(t, changed)
}

func TestStore_Watch(t *testing.T) {
	path := writeFile(t, "people.tdb", people)
	s := NewStore(path)
	tbl, err := s.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func() { events <- struct{}{} })
	}()
	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, s.Save(tbl))
	select {
	case <-events:
		t.Fatal("own save reported as external change")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(path, []byte(people+"|2|Carol|41|\n"), 0o644))
	select {
	case <-events:
	case <-time.After(5 * time.Second):
		t.Fatal("external change not reported")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestStore_SaveKeepsPermissions(t *testing.T) {
	path := writeFile(t, "private.tdb", people)
	require.NoError(t, os.Chmod(path, 0o600))

	s := NewStore(path)
	tbl, err := s.Load()
	require.NoError(t, err)
	require.NoError(t, s.Save(tbl))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStore_SaveThroughSymlink(t *testing.T) {
	target := writeFile(t, "people.tdb", people)
	link := filepath.Join(t.TempDir(), "link.tdb")
	require.NoError(t, os.Symlink(target, link))

	s := NewStore(link)
	tbl, err := s.Load()
	require.NoError(t, err)
	_, err = tbl.AddRow([]string{"Carol", "41"})
	require.NoError(t, err)
	require.NoError(t, s.Save(tbl))

	info, err := os.Lstat(link)
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&os.ModeSymlink)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, people+"|2|Carol|41|\n", string(data))

	changed, err := s.Changed()
	require.NoError(t, err)
	require.False(t, changed)
}
