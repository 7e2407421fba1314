// Package reader turns files and streams into UTF-8 clean log lines.
// Compressed input is detected from its magic bytes, so rotated logs can be
// passed as-is whatever their file name.
package reader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Compression identifies the detected stream encoding.
type Compression string

const (
	None Compression = "none"
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"
)

// Source is an opened, decompressed input.
type Source struct {
	Name        string
	Compression Compression

	r       io.Reader
	closers []func() error
}

func (s *Source) Read(p []byte) (int, error) { return s.r.Read(p) }

// Close releases the decompressor and the underlying file, if any.
func (s *Source) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens path ("-" for stdin) and wraps it in a decompressor when the
// content is gzip or zstd.
func Open(path string) (*Source, error) {
	if path == Stdin {
		return NewSource("stdin", os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	src, err := NewSource(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	src.closers = append([]func() error{f.Close}, src.closers...)
	return src, nil
}

// NewSource sniffs r and returns a decompressing Source. r itself is not
// closed by the returned Source.
func NewSource(name string, r io.Reader) (*Source, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	src := &Source{Name: name, Compression: None, r: br}
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream %s: %w", name, err)
		}
		src.Compression = Gzip
		src.r = zr
		src.closers = append(src.closers, zr.Close)
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream %s: %w", name, err)
		}
		src.Compression = Zstd
		src.r = zr
		src.closers = append(src.closers, func() error { zr.Close(); return nil })
	}
	return src, nil
}
