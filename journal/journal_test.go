package journal

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hussainpithawala/go-slm/engine"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	entered := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
	entries := []engine.HistoryEntry{
		{
			StateName: "A",
			EnteredAt: entered,
			ExitedAt:  entered.Add(5 * time.Millisecond),
			Output:    map[string]any{"x": json.Number("1")},
		},
		{
			StateName: "B",
			EnteredAt: entered.Add(5 * time.Millisecond),
			ExitedAt:  entered.Add(9 * time.Millisecond),
			Output:    []any{"done"},
		},
	}
	if err := w.WriteHistory("exec-1", entries); err != nil {
		t.Fatalf("WriteHistory error: %v", err)
	}

	recs, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records=%d, want 2", len(recs))
	}
	for i, rec := range recs {
		if rec.Execution != "exec-1" || rec.StateName != entries[i].StateName {
			t.Fatalf("record %d: %+v", i, rec)
		}
		if !rec.Verify() {
			t.Fatalf("record %d digest mismatch", i)
		}
		doc, err := rec.Document()
		if err != nil {
			t.Fatalf("record %d document: %v", i, err)
		}
		if !reflect.DeepEqual(doc, entries[i].Output) {
			t.Fatalf("record %d document=%v, want %v", i, doc, entries[i].Output)
		}
	}
}

func TestReadEmpty(t *testing.T) {
	recs, err := Read(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("records=%d, want 0", len(recs))
	}
}

func TestNilOutputFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Append("e", engine.HistoryEntry{StateName: "F"}); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	recs, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	doc, err := recs[0].Document()
	if err != nil || doc != nil {
		t.Fatalf("nil snapshot round-trip: doc=%v err=%v", doc, err)
	}
	if !recs[0].Verify() {
		t.Fatalf("nil snapshot digest mismatch")
	}
}

func TestNDJSONSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewNDJSONSink(&buf)
	sink.Emit(engine.Event{Event: engine.EventStateEntered, Execution: "e", State: "A"})
	sink.Emit(engine.Event{Event: engine.EventStateExited, Execution: "e", State: "A"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines=%d, want 2", len(lines))
	}
	var ev engine.Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("unmarshal line: %v", err)
	}
	if ev.Event != engine.EventStateEntered || ev.State != "A" {
		t.Fatalf("event=%+v", ev)
	}
}
