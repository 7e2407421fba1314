package reader

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrLineTooLong is returned for a line longer than the configured maximum.
// The rest of that line is discarded and reading can continue.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// DefaultMaxLineBytes bounds a single line.
const DefaultMaxLineBytes = 64 << 20

// LineReader yields newline separated lines of any length up to a maximum.
// Invalid UTF-8 is replaced with U+FFFD and a leading byte order mark is
// dropped.
type LineReader struct {
	br      *bufio.Reader
	max     int
	line    int64
	scratch []byte
}

func NewLineReader(r io.Reader, maxLineBytes int) *LineReader {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	clean := transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
	return &LineReader{
		br:  bufio.NewReaderSize(clean, 256<<10),
		max: maxLineBytes,
	}
}

// Line is the 1-based number of the last line returned.
func (lr *LineReader) Line() int64 { return lr.line }

// Next returns the next line without its line terminator. The returned slice
// is owned by the caller. At end of input it returns io.EOF; a final line
// without a trailing newline is still returned first.
func (lr *LineReader) Next() ([]byte, error) {
	lr.scratch = lr.scratch[:0]
	tooLong := false

	for {
		frag, err := lr.br.ReadSlice('\n')
		if !tooLong {
			if len(lr.scratch)+len(frag) > lr.max+2 {
				tooLong = true
				lr.scratch = lr.scratch[:0]
			} else {
				lr.scratch = append(lr.scratch, frag...)
			}
		}

		switch {
		case err == nil:
			lr.line++
			if tooLong {
				return nil, ErrLineTooLong
			}
			return lr.take(), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(lr.scratch) == 0 && !tooLong {
				return nil, io.EOF
			}
			lr.line++
			if tooLong {
				return nil, ErrLineTooLong
			}
			return lr.take(), nil
		default:
			return nil, err
		}
	}
}

func (lr *LineReader) take() []byte {
	b := bytes.TrimRight(lr.scratch, "\r\n")
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
