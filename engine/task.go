package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hussainpithawala/go-slm/machine"
	"github.com/hussainpithawala/go-slm/slmerrors"
)

// invokeTask calls the task executor with the state's timeout applied.
// The executor is cancelled cooperatively through its context; an attempt
// that outlives its deadline surfaces States.Timeout.
func (ex *Execution) invokeTask(ctx context.Context, t *machine.Task, input any) (any, *slmerrors.StatesError) {
	if ex.ectx.TaskExecutor == nil {
		return nil, slmerrors.Errorf(slmerrors.TaskFailed, "no task executor configured for resource %s", t.Resource)
	}

	if t.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(t.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	result, err := ex.ectx.TaskExecutor(ctx, t.Resource, input, ex.ectx.Credentials)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, slmerrors.New(slmerrors.Timeout, fmt.Sprintf("task %s exceeded its deadline", t.Resource))
		}
		if ctx.Err() == context.Canceled {
			return nil, slmerrors.New(slmerrors.Cancelled, "task cancelled")
		}
		return nil, slmerrors.Convert(err)
	}
	// A well-behaved executor returns promptly after cancellation; catch
	// the case where it swallowed the signal and returned a result anyway.
	if ctx.Err() == context.DeadlineExceeded {
		return nil, slmerrors.New(slmerrors.Timeout, fmt.Sprintf("task %s exceeded its deadline", t.Resource))
	}
	return result, nil
}
