// Package engine drives executions of a machine definition: the state
// dispatcher, per-kind handlers, the retry/catch protocol, and the
// parallel branch runner.
package engine

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hussainpithawala/go-slm/intrinsic"
)

// TaskExecutor performs the side-effect of a Task state. The resource is an
// opaque URI the engine never interprets. A returned *slmerrors.StatesError
// is used verbatim; any other error surfaces as States.TaskFailed.
type TaskExecutor func(ctx context.Context, resource string, input any, credentials any) (any, error)

// Context carries the execution-wide collaborators. It is shared read-only
// across an execution and all of its parallel branches; extensions belong
// in typed fields.
type Context struct {
	// TaskExecutor is required for machines containing Task states.
	TaskExecutor TaskExecutor

	// Credentials is handed to the task executor verbatim.
	Credentials any

	// Intrinsics pins the PRNG/UUID source for States.MathRandom and
	// States.UUID. Nil uses the process defaults.
	Intrinsics *intrinsic.Env

	// Sink receives progress events. Nil discards them.
	Sink EventSink

	// MaxSteps bounds the number of transitions per execution as a
	// safeguard against definition loops. Zero means unbounded.
	MaxSteps int

	// MergeBranchOutputs switches the Parallel result from the standard
	// branch-ordered array to a deep object merge of branch outputs, for
	// compatibility with definitions written against the legacy shape.
	MergeBranchOutputs bool
}

func (c *Context) intrinsics() *intrinsic.Env {
	if c == nil || c.Intrinsics == nil {
		return &intrinsic.Env{}
	}
	return c.Intrinsics
}

func (c *Context) emit(ev Event) {
	if c == nil || c.Sink == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	c.Sink.Emit(ev)
}

// NewExecutionID returns a fresh ULID, the default name for executions
// started without one.
func NewExecutionID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
}
