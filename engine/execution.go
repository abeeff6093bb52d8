package engine

import (
	"context"
	"strings"
	"time"

	"github.com/hussainpithawala/go-slm/jsonpath"
	"github.com/hussainpithawala/go-slm/machine"
	"github.com/hussainpithawala/go-slm/slmerrors"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// MaxStepsExceeded is the error name recorded when the transition safeguard
// trips. Like SLM.Cancelled it is deliberately outside States.*.
const MaxStepsExceeded = "SLM.MaxStepsExceeded"

// HistoryEntry records one completed transition.
type HistoryEntry struct {
	StateName string    `json:"state_name"`
	EnteredAt time.Time `json:"entered_at"`
	ExitedAt  time.Time `json:"exited_at"`
	Output    any       `json:"output"`
}

// Execution owns a working document and drives it through the machine.
// It is mutated only by its own Step/RunAll; terminal once status leaves
// running.
type Execution struct {
	name string
	m    *machine.Machine
	ectx *Context

	status  Status
	current string
	input   any
	output  any
	errRec  *slmerrors.StatesError
	history []HistoryEntry

	// Retry attempt counts, keyed by state name, one counter per retrier.
	// Counts persist across re-entries of the same state.
	retryCounts map[string][]int

	steps     int
	startedAt time.Time
	endedAt   time.Time
	endBy     time.Time

	registry *HandlerRegistry
}

// StartExecution creates an execution positioned at the machine's StartAt
// with the given input document. An empty name gets a fresh ULID.
func StartExecution(m *machine.Machine, input any, name string, ectx *Context) *Execution {
	if strings.TrimSpace(name) == "" {
		name = NewExecutionID()
	}
	if ectx == nil {
		ectx = &Context{}
	}
	return &Execution{
		name:        name,
		m:           m,
		ectx:        ectx,
		status:      StatusRunning,
		current:     m.StartAt,
		input:       jsonpath.DeepCopy(input),
		output:      jsonpath.DeepCopy(input),
		retryCounts: map[string][]int{},
		registry:    NewDefaultRegistry(),
	}
}

func (ex *Execution) Name() string         { return ex.name }
func (ex *Execution) Status() Status       { return ex.status }
func (ex *Execution) Input() any           { return ex.input }
func (ex *Execution) Output() any          { return ex.output }
func (ex *Execution) CurrentState() string { return ex.current }
func (ex *Execution) StartedAt() time.Time { return ex.startedAt }
func (ex *Execution) EndedAt() time.Time   { return ex.endedAt }

// Err returns the recorded error of a failed execution, nil otherwise.
func (ex *Execution) Err() *slmerrors.StatesError { return ex.errRec }

// History returns the ordered transition log. The returned slice is shared;
// callers must not mutate it.
func (ex *Execution) History() []HistoryEntry { return ex.history }

// Elapsed is the execution time so far, or total once terminal.
func (ex *Execution) Elapsed() time.Duration {
	if ex.startedAt.IsZero() {
		return 0
	}
	if ex.endedAt.IsZero() {
		return time.Since(ex.startedAt)
	}
	return ex.endedAt.Sub(ex.startedAt)
}

// RunAll repeats Step until the execution is terminal. Calling it on a
// terminal execution is a no-op.
func (ex *Execution) RunAll(ctx context.Context) error {
	for ex.status == StatusRunning {
		if err := ex.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Step performs one transition. No-op when terminal. The returned error
// reports engine misuse only; protocol failures are recorded on the
// execution and inspected via Status/Err.
func (ex *Execution) Step(ctx context.Context) error {
	if ex.status != StatusRunning {
		return nil
	}
	if ctx.Err() != nil {
		ex.finish(StatusFailed, cancellation(ctx))
		return nil
	}
	if ex.startedAt.IsZero() {
		ex.startedAt = time.Now().UTC()
		ex.ectx.emit(Event{Event: EventExecutionStarted, Execution: ex.name, State: ex.current})
		if ex.m.TimeoutSeconds > 0 {
			// The machine-level deadline is measured from the first step.
			ex.endBy = ex.startedAt.Add(time.Duration(ex.m.TimeoutSeconds) * time.Second)
		}
	}
	if ex.ectx.MaxSteps > 0 && ex.steps >= ex.ectx.MaxSteps {
		ex.finish(StatusFailed, slmerrors.Errorf(MaxStepsExceeded, "execution exceeded %d transitions", ex.ectx.MaxSteps))
		return nil
	}
	ex.steps++

	st, ok := ex.m.States[ex.current]
	if !ok {
		// Unreachable on a built machine; recorded rather than panicking.
		ex.finish(StatusFailed, slmerrors.Errorf(slmerrors.TaskFailed, "unknown state %q", ex.current))
		return nil
	}

	if !ex.endBy.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, ex.endBy)
		defer cancel()
	}

	entered := time.Now().UTC()
	ex.ectx.emit(Event{Event: EventStateEntered, Execution: ex.name, State: st.Base().Name})

	tr, err := ex.registry.Resolve(st.Kind()).Execute(ctx, ex, st)
	exited := time.Now().UTC()
	if err != nil {
		serr := slmerrors.Convert(err)
		ex.history = append(ex.history, HistoryEntry{
			StateName: st.Base().Name,
			EnteredAt: entered,
			ExitedAt:  exited,
		})
		ex.ectx.emit(Event{
			Event: EventStateExited, Execution: ex.name, State: st.Base().Name,
			Status: string(StatusFailed), Error: serr.Name, Cause: serr.Cause,
		})
		ex.finish(StatusFailed, serr)
		return nil
	}

	ex.output = tr.Output
	ex.history = append(ex.history, HistoryEntry{
		StateName: st.Base().Name,
		EnteredAt: entered,
		ExitedAt:  exited,
		Output:    jsonpath.DeepCopy(tr.Output),
	})
	ex.ectx.emit(Event{Event: EventStateExited, Execution: ex.name, State: st.Base().Name, Status: string(StatusSucceeded)})

	if tr.Terminal {
		if tr.Failed {
			ex.finish(StatusFailed, tr.Err)
		} else {
			ex.finish(StatusSucceeded, nil)
		}
		return nil
	}
	ex.current = tr.Next
	return nil
}

func (ex *Execution) finish(status Status, serr *slmerrors.StatesError) {
	ex.status = status
	ex.errRec = serr
	ex.current = ""
	ex.endedAt = time.Now().UTC()
	ev := Event{Event: EventExecutionFinished, Execution: ex.name, Status: string(status)}
	if serr != nil {
		ev.Error = serr.Name
		ev.Cause = serr.Cause
	}
	ex.ectx.emit(ev)
}
