package journal

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/hussainpithawala/go-slm/engine"
)

// NDJSONSink writes engine events as newline-delimited JSON. Emission is
// best-effort: a write failure must not disturb the execution.
type NDJSONSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewNDJSONSink(w io.Writer) *NDJSONSink {
	return &NDJSONSink{w: w}
}

func (s *NDJSONSink) Emit(ev engine.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(append(b, '\n'))
}
