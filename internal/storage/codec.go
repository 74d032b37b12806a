package storage

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Compression is the byte-level wrapping of a table file. The text format
// inside is the same for all of them.
type Compression uint8

const (
	CompressNone   Compression = iota
	CompressZstd               // ".zst"
	CompressSnappy             // ".sz", snappy framing format
)

func (c Compression) String() string {
	switch c {
	case CompressZstd:
		return "zstd"
	case CompressSnappy:
		return "snappy"
	default:
		return "none"
	}
}

// CompressionFor picks the compression from the file extension.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return CompressZstd
	case ".sz", ".snappy":
		return CompressSnappy
	default:
		return CompressNone
	}
}

func (c Compression) reader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case CompressSnappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}

// writer wraps w. Close flushes the compressor but does not close w.
func (c Compression) writer(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CompressZstd:
		return zstd.NewWriter(w)
	case CompressSnappy:
		return snappy.NewBufferedWriter(w), nil
	default:
		return nopWriteCloser{w}, nil
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
