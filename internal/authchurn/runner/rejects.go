package runner

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/logger"
)

// rejectEvent is one unparsable line in the reject file.
type rejectEvent struct {
	EventID   string `json:"event_id"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Line      uint64 `json:"line"`
	Reason    string `json:"reason"`
	Raw       string `json:"raw"`
}

// rejectWriter is shared by all workers. A nil *rejectWriter discards.
type rejectWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	failed bool
}

func newRejectWriter(w io.Writer) *rejectWriter {
	if w == nil {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &rejectWriter{enc: enc}
}

func (r *rejectWriter) write(source string, seq uint64, line []byte, reason error) {
	if r == nil {
		return
	}
	evt := rejectEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Source:    source,
		Line:      seq & (1<<seqFileShift - 1),
		Raw:       string(line),
	}
	if reason != nil {
		evt.Reason = reason.Error()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed {
		return
	}
	if err := r.enc.Encode(evt); err != nil {
		// one warning, then stop trying
		r.failed = true
		logger.L().Errorw("failed to write reject event", "err", err.Error())
	}
}
