package engine

import (
	"context"
	"time"

	"github.com/hussainpithawala/go-slm/jsonpath"
	"github.com/hussainpithawala/go-slm/machine"
	"github.com/hussainpithawala/go-slm/payload"
	"github.com/hussainpithawala/go-slm/slmerrors"
)

type WaitHandler struct{}

// Wait applies only InputPath/OutputPath around its sleep. The sleep is
// cancellable; a timestamp already in the past waits zero.
func (h *WaitHandler) Execute(ctx context.Context, ex *Execution, st machine.State) (Transition, error) {
	w := st.(*machine.Wait)
	scoped, err := payload.ApplyInputPath(w.InputPath, ex.output)
	if err != nil {
		return Transition{}, err
	}

	d, serr := waitDuration(w, scoped)
	if serr != nil {
		return Transition{}, serr
	}
	if err := sleepCtx(ctx, d); err != nil {
		return Transition{}, cancellation(ctx)
	}

	out, err := payload.ApplyOutputPath(w.OutputPath, scoped)
	if err != nil {
		return Transition{}, err
	}
	return Transition{Output: out, Next: w.Next, Terminal: w.End}, nil
}

func waitDuration(w *machine.Wait, scoped any) (time.Duration, *slmerrors.StatesError) {
	switch {
	case w.HasSeconds:
		return time.Duration(w.Seconds) * time.Second, nil
	case w.HasSecondsPath:
		v, err := w.SecondsPath.Resolve(scoped)
		if err != nil {
			return 0, slmerrors.Errorf(slmerrors.ParameterPathFailure, "SecondsPath %s did not resolve", w.SecondsPath)
		}
		n, ok := jsonpath.Int(v)
		if !ok || n < 0 {
			return 0, slmerrors.Errorf(slmerrors.ParameterPathFailure, "SecondsPath %s is not a non-negative integer", w.SecondsPath)
		}
		return time.Duration(n) * time.Second, nil
	case w.HasTimestamp:
		return untilTimestamp(w.Timestamp), nil
	case w.HasTimestampPath:
		v, err := w.TimestampPath.Resolve(scoped)
		if err != nil {
			return 0, slmerrors.Errorf(slmerrors.ParameterPathFailure, "TimestampPath %s did not resolve", w.TimestampPath)
		}
		s, ok := v.(string)
		if !ok {
			return 0, slmerrors.Errorf(slmerrors.ParameterPathFailure, "TimestampPath %s is not a timestamp string", w.TimestampPath)
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return 0, slmerrors.Errorf(slmerrors.ParameterPathFailure, "TimestampPath %s: %v", w.TimestampPath, err)
		}
		return untilTimestamp(ts), nil
	default:
		// Unreachable on a built machine.
		return 0, slmerrors.Errorf(slmerrors.ParameterPathFailure, "Wait state %q has no wait form", w.Name)
	}
}

func untilTimestamp(ts time.Time) time.Duration {
	d := time.Until(ts)
	if d < 0 {
		return 0
	}
	return d
}
