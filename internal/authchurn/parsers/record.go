package parsers

import "time"

// RecordType is the audit entry kind.
type RecordType string

const (
	TypeRequest  RecordType = "request"
	TypeResponse RecordType = "response"
	TypeOther    RecordType = "other"
)

func recordTypeOf(s string) RecordType {
	switch RecordType(s) {
	case TypeRequest:
		return TypeRequest
	case TypeResponse:
		return TypeResponse
	default:
		return TypeOther
	}
}

// Record is the normalized view of one audit log line. It is built once by
// Normalize and never mutated afterwards.
type Record struct {
	Type RecordType
	// Time is zero when the entry has no parsable timestamp.
	Time time.Time

	Path          string
	MountType     string
	MountAccessor string

	EntityID    string
	DisplayName string
	Metadata    map[string]string

	// Status is nil when neither response.status nor response.http_status
	// carries a value.
	Status *int
	// StatusInvalid is set when a status is present but not an integer.
	StatusInvalid bool

	ErrorPresent bool
}
