// Package journal persists execution progress: an NDJSON event sink for
// live feeds, and an append-only msgpack frame journal of history entries
// with content digests for replay.
package journal

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/blake3"

	"github.com/hussainpithawala/go-slm/engine"
)

// Record is one journal frame: a history entry with its output snapshot
// serialized as compact JSON and content-addressed by a BLAKE3 digest.
type Record struct {
	Execution string    `msgpack:"execution"`
	StateName string    `msgpack:"state_name"`
	EnteredAt time.Time `msgpack:"entered_at"`
	ExitedAt  time.Time `msgpack:"exited_at"`
	Output    []byte    `msgpack:"output"`
	Digest    string    `msgpack:"digest"`
}

// Document decodes the output snapshot back into a generic JSON value,
// preserving number fidelity.
func (r Record) Document() (any, error) {
	if len(r.Output) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(r.Output))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode journal output: %w", err)
	}
	return v, nil
}

// Verify recomputes the digest over the stored output snapshot.
func (r Record) Verify() bool {
	return r.Digest == digest(r.Output)
}

// Writer appends msgpack frames to an underlying stream. Safe for
// concurrent use.
type Writer struct {
	mu  sync.Mutex
	enc *msgpack.Encoder
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: msgpack.NewEncoder(w)}
}

// Append writes one history entry as a frame.
func (w *Writer) Append(execution string, e engine.HistoryEntry) error {
	out, err := marshalSnapshot(e.Output)
	if err != nil {
		return err
	}
	rec := Record{
		Execution: execution,
		StateName: e.StateName,
		EnteredAt: e.EnteredAt,
		ExitedAt:  e.ExitedAt,
		Output:    out,
		Digest:    digest(out),
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(rec)
}

// WriteHistory appends a whole execution history in order.
func (w *Writer) WriteHistory(execution string, entries []engine.HistoryEntry) error {
	for _, e := range entries {
		if err := w.Append(execution, e); err != nil {
			return err
		}
	}
	return nil
}

// Read replays every frame of a journal stream.
func Read(r io.Reader) ([]Record, error) {
	dec := msgpack.NewDecoder(r)
	var out []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("decode journal frame %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
}

func marshalSnapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func digest(b []byte) string {
	h := blake3.New()
	_, _ = h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}
