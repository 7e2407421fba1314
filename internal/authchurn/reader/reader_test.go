package reader

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "{\"type\":\"request\"}\n{\"type\":\"response\"}\nlast line without newline"

func readAll(t *testing.T, r io.Reader, max int) []string {
	t.Helper()
	lr := NewLineReader(r, max)
	var out []string
	for {
		line, err := lr.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if errors.Is(err, ErrLineTooLong) {
			out = append(out, "<too long>")
			continue
		}
		require.NoError(t, err)
		out = append(out, string(line))
	}
}

func TestLineReader_Plain(t *testing.T) {
	got := readAll(t, strings.NewReader(sample), 0)
	assert.Equal(t, []string{`{"type":"request"}`, `{"type":"response"}`, "last line without newline"}, got)
}

func TestLineReader_CRLFAndEmptyLines(t *testing.T) {
	got := readAll(t, strings.NewReader("a\r\n\r\nb\n"), 0)
	assert.Equal(t, []string{"a", "", "b"}, got)
}

func TestLineReader_LongLines(t *testing.T) {
	long := strings.Repeat("x", 300000)
	got := readAll(t, strings.NewReader("short\n"+long+"\nafter\n"), 0)
	require.Len(t, got, 3)
	assert.Len(t, got[1], 300000)
	assert.Equal(t, "after", got[2])
}

func TestLineReader_MaxLineBytes(t *testing.T) {
	input := "ok\n" + strings.Repeat("y", 100) + "\nstill ok\n" + strings.Repeat("z", 50)
	got := readAll(t, strings.NewReader(input), 10)
	assert.Equal(t, []string{"ok", "<too long>", "still ok", "<too long>"}, got)
}

func TestLineReader_RepairsInvalidUTF8(t *testing.T) {
	input := []byte("\xef\xbb\xbf{\"display_name\":\"ab\xffcd\"}\n")
	got := readAll(t, bytes.NewReader(input), 0)
	require.Len(t, got, 1)
	assert.Equal(t, "{\"display_name\":\"ab�cd\"}", got[0])
}

func TestLineReader_LineNumbers(t *testing.T) {
	lr := NewLineReader(strings.NewReader("a\nb\nc"), 0)
	for i := int64(1); i <= 3; i++ {
		_, err := lr.Next()
		require.NoError(t, err)
		assert.Equal(t, i, lr.Line())
	}
	_, err := lr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestNewSource_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	src, err := NewSource("audit.log.gz", &buf)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, Gzip, src.Compression)
	assert.Len(t, readAll(t, src, 0), 3)
}

func TestNewSource_Zstd(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll([]byte(sample), nil)
	require.NoError(t, enc.Close())

	src, err := NewSource("audit.log.zst", bytes.NewReader(compressed))
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, Zstd, src.Compression)
	assert.Len(t, readAll(t, src, 0), 3)
}

func TestNewSource_PlainAndEmpty(t *testing.T) {
	src, err := NewSource("plain", strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, None, src.Compression)
	assert.Len(t, readAll(t, src, 0), 3)

	src, err = NewSource("empty", strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, readAll(t, src, 0))
}

func TestNewSource_CorruptGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(strings.Repeat(sample+"\n", 200)))
	require.NoError(t, zw.Close())
	truncated := buf.Bytes()[:buf.Len()/2]

	src, err := NewSource("cut.gz", bytes.NewReader(truncated))
	require.NoError(t, err)

	lr := NewLineReader(src, 0)
	var readErr error
	for {
		_, err := lr.Next()
		if err != nil {
			readErr = err
			break
		}
	}
	assert.False(t, errors.Is(readErr, io.EOF), "truncated gzip must surface an error, got %v", readErr)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault_audit.log")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	src, err := Open(path)
	require.NoError(t, err)
	assert.Len(t, readAll(t, src, 0), 3)
	require.NoError(t, src.Close())

	_, err = Open(filepath.Join(t.TempDir(), "missing.log"))
	assert.Error(t, err)
}
