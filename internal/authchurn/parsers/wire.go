package parsers

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// wireEntry mirrors the subset of the audit JSON the analyzer reads. Every
// field tolerates unexpected JSON types so that one odd field never turns a
// whole line unparsable.
type wireEntry struct {
	Type     looseString     `json:"type"`
	Time     looseString     `json:"time"`
	Error    json.RawMessage `json:"error"`
	Auth     authInfo        `json:"auth"`
	Request  requestInfo     `json:"request"`
	Response responseInfo    `json:"response"`

	// Log is the payload of a docker json-file wrapper line.
	Log looseString `json:"log"`
}

type authInfo struct {
	EntityID    looseString   `json:"entity_id"`
	DisplayName looseString   `json:"display_name"`
	Metadata    looseMetadata `json:"metadata"`
}

func (a *authInfo) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return nil
	}
	type plain authInfo
	return json.Unmarshal(b, (*plain)(a))
}

type requestInfo struct {
	Path          looseString `json:"path"`
	MountType     looseString `json:"mount_type"`
	MountAccessor looseString `json:"mount_accessor"`
}

func (r *requestInfo) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return nil
	}
	type plain requestInfo
	return json.Unmarshal(b, (*plain)(r))
}

type responseInfo struct {
	Status     json.RawMessage `json:"status"`
	HTTPStatus json.RawMessage `json:"http_status"`
}

func (r *responseInfo) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return nil
	}
	type plain responseInfo
	return json.Unmarshal(b, (*plain)(r))
}

// looseString accepts strings and scalars; objects, arrays and null decode
// to the empty string.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
	case 't', 'f':
		*s = looseString(b)
	case 'n', '{', '[':
		*s = ""
	default:
		*s = looseString(b)
	}
	return nil
}

// looseMetadata keeps scalar metadata values as strings and drops the rest.
type looseMetadata map[string]string

func (m *looseMetadata) UnmarshalJSON(b []byte) error {
	if !isObject(b) {
		return nil
	}
	var raw map[string]looseString
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(looseMetadata, len(raw))
	for k, v := range raw {
		if v != "" {
			out[k] = string(v)
		}
	}
	*m = out
	return nil
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

// errorPresent treats null, false, "" and 0 as "no error". Any other value,
// including empty objects and arrays, is an error.
func errorPresent(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 {
		return false
	}
	switch b[0] {
	case 'n', 'f':
		return false
	case 't', '{', '[':
		return true
	case '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return true
		}
		return v != ""
	default:
		f, err := strconv.ParseFloat(string(b), 64)
		return err != nil || f != 0
	}
}

// statusFrom picks response.status when the key is present (even when null),
// otherwise response.http_status. It returns (nil, false) when no status is
// reported and (nil, true) when the reported value is not an integer.
func statusFrom(resp responseInfo) (*int, bool) {
	raw := resp.Status
	if len(raw) == 0 {
		raw = resp.HTTPStatus
	}
	b := bytes.TrimSpace(raw)
	if len(b) == 0 {
		return nil, false
	}

	var code int
	switch b[0] {
	case 'n':
		return nil, false
	case 't':
		code = 1
	case 'f':
		code = 0
	case '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, true
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, true
		}
		code = n
	case '{', '[':
		return nil, true
	default:
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, true
		}
		code = int(math.Trunc(f))
	}
	return &code, false
}
