package util

import (
	"log/slog"
	"os"
)

// CloseFileFunc closes f, logging instead of returning the error. Use it in
// defers on files opened for reading.
func CloseFileFunc(f *os.File) {
	if err := f.Close(); err != nil {
		slog.Warn("close file", "path", f.Name(), "err", err)
	}
}
