package engine

import (
	"context"
	"testing"
	"time"

	"github.com/hussainpithawala/go-slm/slmerrors"
)

func TestWaitSeconds(t *testing.T) {
	m := build(t, map[string]any{
		"StartAt": "W",
		"States": map[string]any{
			"W": map[string]any{"Type": "Wait", "Seconds": 0, "Next": "S"},
			"S": map[string]any{"Type": "Succeed"},
		},
	})
	ex := run(t, m, map[string]any{"k": "v"}, nil)
	if ex.Status() != StatusSucceeded {
		t.Fatalf("status=%s err=%v", ex.Status(), ex.Err())
	}
	if out, ok := ex.Output().(map[string]any); !ok || out["k"] != "v" {
		t.Fatalf("wait must pass the document through, got %v", ex.Output())
	}
}

func TestWaitSecondsPath(t *testing.T) {
	m := build(t, map[string]any{
		"StartAt": "W",
		"States": map[string]any{
			"W": map[string]any{"Type": "Wait", "SecondsPath": "$.delay", "Next": "S"},
			"S": map[string]any{"Type": "Succeed"},
		},
	})
	ex := run(t, m, map[string]any{"delay": int64(0)}, nil)
	if ex.Status() != StatusSucceeded {
		t.Fatalf("status=%s err=%v", ex.Status(), ex.Err())
	}

	ex = run(t, m, map[string]any{"delay": "soon"}, nil)
	if ex.Status() != StatusFailed || ex.Err().Name != slmerrors.ParameterPathFailure {
		t.Fatalf("non-numeric SecondsPath: status=%s err=%v", ex.Status(), ex.Err())
	}
}

func TestWaitPastTimestampIsZero(t *testing.T) {
	m := build(t, map[string]any{
		"StartAt": "W",
		"States": map[string]any{
			"W": map[string]any{"Type": "Wait", "Timestamp": "2001-01-01T00:00:00Z", "Next": "S"},
			"S": map[string]any{"Type": "Succeed"},
		},
	})
	start := time.Now()
	ex := run(t, m, map[string]any{}, nil)
	if ex.Status() != StatusSucceeded {
		t.Fatalf("status=%s err=%v", ex.Status(), ex.Err())
	}
	if time.Since(start) > time.Second {
		t.Fatalf("past timestamp must not wait")
	}
}

func TestWaitTimestampPath(t *testing.T) {
	m := build(t, map[string]any{
		"StartAt": "W",
		"States": map[string]any{
			"W": map[string]any{"Type": "Wait", "TimestampPath": "$.until", "Next": "S"},
			"S": map[string]any{"Type": "Succeed"},
		},
	})
	ex := run(t, m, map[string]any{"until": "2001-01-01T00:00:00Z"}, nil)
	if ex.Status() != StatusSucceeded {
		t.Fatalf("status=%s err=%v", ex.Status(), ex.Err())
	}

	ex = run(t, m, map[string]any{"until": "not-a-time"}, nil)
	if ex.Status() != StatusFailed || ex.Err().Name != slmerrors.ParameterPathFailure {
		t.Fatalf("bad timestamp: status=%s err=%v", ex.Status(), ex.Err())
	}
}

func TestWaitCancellation(t *testing.T) {
	m := build(t, map[string]any{
		"StartAt": "W",
		"States": map[string]any{
			"W": map[string]any{"Type": "Wait", "Seconds": 30, "Next": "S"},
			"S": map[string]any{"Type": "Succeed"},
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	ex := StartExecution(m, map[string]any{}, "w", nil)
	start := time.Now()
	if err := ex.RunAll(ctx); err != nil {
		t.Fatalf("RunAll error: %v", err)
	}
	if ex.Status() != StatusFailed || ex.Err().Name != slmerrors.Cancelled {
		t.Fatalf("status=%s err=%v", ex.Status(), ex.Err())
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("cancelled wait did not return promptly")
	}
}

func TestMachineTimeoutFailsWithStatesTimeout(t *testing.T) {
	m := build(t, map[string]any{
		"StartAt":        "W",
		"TimeoutSeconds": 1,
		"States": map[string]any{
			"W": map[string]any{"Type": "Wait", "Seconds": 30, "Next": "S"},
			"S": map[string]any{"Type": "Succeed"},
		},
	})
	ex := StartExecution(m, map[string]any{}, "w", nil)
	start := time.Now()
	if err := ex.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll error: %v", err)
	}
	if ex.Status() != StatusFailed || ex.Err().Name != slmerrors.Timeout {
		t.Fatalf("status=%s err=%v", ex.Status(), ex.Err())
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("machine timeout took %v", elapsed)
	}
}

func TestTaskTimeout(t *testing.T) {
	m := build(t, taskMachine(map[string]any{
		"Type":           "Task",
		"Resource":       "method:slow",
		"TimeoutSeconds": 1,
	}))
	ectx := &Context{
		TaskExecutor: func(ctx context.Context, _ string, _ any, _ any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	ex := run(t, m, map[string]any{}, ectx)
	if ex.Status() != StatusFailed || ex.Err().Name != slmerrors.Timeout {
		t.Fatalf("status=%s err=%v", ex.Status(), ex.Err())
	}
}
