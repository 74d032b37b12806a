// Package storage binds a table to a file on disk. It reads and writes the
// tdb text format through the format package and knows nothing about rows.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tuannm99/tdb/internal/alias/util"
	"github.com/tuannm99/tdb/internal/format"
	"github.com/tuannm99/tdb/internal/table"
)

var (
	ErrNotFound      = errors.New("storage: file not found")
	ErrAlreadyExists = errors.New("storage: file already exists")
	ErrFormat        = errors.New("storage: invalid table file")
	ErrIO            = errors.New("storage: i/o error")
)

const FileMode0644 = 0o644 // rw-r--r--

// fileState is what Changed compares: a file is considered rewritten when
// its size or modification time moves.
type fileState struct {
	exists bool
	size   int64
	mod    time.Time
}

func statFile(path string) (fileState, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileState{}, nil
	}
	if err != nil {
		return fileState{}, err
	}
	return fileState{exists: true, size: info.Size(), mod: info.ModTime()}, nil
}

func (a fileState) same(b fileState) bool {
	return a.exists == b.exists && a.size == b.size && a.mod.Equal(b.mod)
}

// Store is a table file at a fixed path.
type Store struct {
	path string
	comp Compression

	mu sync.Mutex
	// last is the file as this store last loaded or wrote it.
	last fileState
	// reported is the last external change handed to a Watch callback.
	reported fileState
}

func NewStore(path string) *Store {
	return &Store{path: filepath.Clean(path), comp: CompressionFor(path)}
}

func (s *Store) Path() string { return s.path }

func (s *Store) Compression() Compression { return s.comp }

// Load reads and parses the whole file. On any error nothing is returned.
func (s *Store) Load() (*table.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, openError(s.path, err)
	}
	defer util.CloseFileFunc(f)

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIO, s.path, err)
	}

	r, err := s.comp.reader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIO, s.path, err)
	}
	defer r.Close()

	doc, err := format.Read(r)
	if err != nil {
		var fe *format.FormatError
		if errors.As(err, &fe) {
			return nil, fmt.Errorf("%w: %s: %w", ErrFormat, s.path, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrIO, s.path, err)
	}
	tbl, err := table.New(doc.Columns)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFormat, s.path, err)
	}

	s.last = fileState{exists: true, size: info.Size(), mod: info.ModTime()}
	s.reported = s.last
	slog.Debug("storage: loaded", "path", s.path, "compression", s.comp, "rows", tbl.RowCount(), "bytes", info.Size())
	return tbl, nil
}

func openError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
}

// Save replaces the bound file with src. The data goes to a temporary file
// in the same directory that is synced and then renamed over the target,
// so a failed Save leaves the previous file intact.
func (s *Store) Save(src format.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Replace the file a symlink points at, not the link, and keep the
	// existing permissions.
	target := s.path
	if resolved, err := filepath.EvalSymlinks(s.path); err == nil {
		target = resolved
	}
	mode := os.FileMode(FileMode0644)
	if info, err := os.Stat(target); err == nil {
		mode = info.Mode().Perm()
	}

	dir, base := filepath.Split(target)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, s.path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := s.encode(tmp, src); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, s.path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, s.path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, s.path, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, s.path, err)
	}
	committed = true

	st, err := statFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, s.path, err)
	}
	s.last = st
	s.reported = st
	slog.Debug("storage: saved", "path", s.path, "rows", src.RowCount(), "bytes", st.size)
	return nil
}

// SaveAs writes src to a new file at path. It never overwrites: an
// existing path fails with ErrAlreadyExists. The store stays bound to its
// own path.
func (s *Store) SaveAs(path string, src format.Source) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FileMode0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}

	err = (&Store{path: path, comp: CompressionFor(path)}).encode(f, src)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	slog.Debug("storage: saved copy", "path", path, "rows", src.RowCount())
	return nil
}

func (s *Store) encode(w io.Writer, src format.Source) error {
	cw, err := s.comp.writer(w)
	if err != nil {
		return err
	}
	if err := format.Write(cw, src); err != nil {
		_ = cw.Close()
		return err
	}
	return cw.Close()
}

// Changed reports whether the file differs from what this store last
// loaded or saved, including when it was deleted.
func (s *Store) Changed() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := statFile(s.path)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrIO, s.path, err)
	}
	return !st.same(s.last), nil
}

// Watch calls fn each time the file is changed by someone other than this
// store. It blocks until ctx is done. Writes made through Save are not
// reported.
func (s *Store) Watch(ctx context.Context, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func() { _ = w.Close() }()

	// Watch the directory: Save and most editors replace the file by
	// rename, which drops a watch placed on the file itself.
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, dir, err)
	}
	slog.Debug("storage: watching", "path", s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if s.external() {
				slog.Debug("storage: external change", "path", s.path, "op", event.Op.String())
				fn()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "storage: watch error", "path", s.path, "err", err)
		}
	}
}

// external reports a change that is neither ours nor already reported.
func (s *Store) external() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := statFile(s.path)
	if err != nil {
		return false
	}
	if st.same(s.last) || st.same(s.reported) {
		return false
	}
	s.reported = st
	return true
}
