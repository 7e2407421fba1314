package parsers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ErrUnparsable marks a line that carries no decodable audit object. Callers
// count these and move on; they never abort a run.
var ErrUnparsable = errors.New("unparsable line")

var (
	errNoObject  = fmt.Errorf("%w: no JSON object", ErrUnparsable)
	errMalformed = fmt.Errorf("%w: malformed JSON", ErrUnparsable)
)

// ResultKind distinguishes a parsed record from a skipped line.
type ResultKind int

const (
	Parsed ResultKind = iota + 1
	Unparsable
)

// Result is the outcome of normalizing one line.
type Result struct {
	Kind   ResultKind
	Record Record
	// Err is set for Unparsable results and wraps ErrUnparsable.
	Err error
}

// OK reports whether the line produced a record.
func (r Result) OK() bool { return r.Kind == Parsed }

// maxUnwrap bounds nested docker json-file wrappers.
const maxUnwrap = 2

// Normalize extracts the first JSON object in line and maps it to a Record.
// Leading text such as container runtime prefixes is ignored. Missing fields
// default to empty values; only a missing or undecodable object makes the
// line Unparsable.
func Normalize(line []byte) Result {
	return normalize(line, 0)
}

func normalize(line []byte, depth int) Result {
	idx := bytes.IndexByte(line, '{')
	if idx < 0 {
		return Result{Kind: Unparsable, Err: errNoObject}
	}

	var w wireEntry
	if err := json.Unmarshal(line[idx:], &w); err != nil {
		return Result{Kind: Unparsable, Err: fmt.Errorf("%w: %v", errMalformed, err)}
	}

	// docker json-file driver: {"log":"{...}\n","stream":"stdout",...}
	if w.Type == "" && depth < maxUnwrap {
		if inner := strings.TrimSpace(string(w.Log)); strings.HasPrefix(inner, "{") {
			return normalize([]byte(inner), depth+1)
		}
	}

	rec := Record{
		Type:          recordTypeOf(string(w.Type)),
		Time:          parseTime(string(w.Time)),
		Path:          string(w.Request.Path),
		MountType:     string(w.Request.MountType),
		MountAccessor: string(w.Request.MountAccessor),
		EntityID:      string(w.Auth.EntityID),
		DisplayName:   string(w.Auth.DisplayName),
		ErrorPresent:  errorPresent(w.Error),
	}
	if len(w.Auth.Metadata) > 0 {
		rec.Metadata = map[string]string(w.Auth.Metadata)
	}
	rec.Status, rec.StatusInvalid = statusFrom(w.Response)

	return Result{Kind: Parsed, Record: rec}
}

// parseTime accepts RFC 3339 first and falls back to dateparse for the
// other layouts seen in forwarded logs. Unparsable input yields zero time.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
