package engine

import (
	"context"
	"math"
	"time"

	"github.com/hussainpithawala/go-slm/machine"
	"github.com/hussainpithawala/go-slm/slmerrors"
)

// delayForAttempt computes the kth retry's sleep for one retrier:
// IntervalSeconds × BackoffRate^(attempt-1). attempt is 1-indexed.
func delayForAttempt(r machine.Retrier, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	secs := float64(r.IntervalSeconds) * math.Pow(r.BackoffRate, float64(attempt-1))
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// matchRetrier returns the index of the first retrier whose ErrorEquals
// matches, or -1.
func matchRetrier(retriers []machine.Retrier, serr *slmerrors.StatesError) int {
	for i := range retriers {
		if slmerrors.Match(retriers[i].ErrorEquals, serr.Name, slmerrors.AllMatchesTimeout(retriers[i].ErrorEquals, len(retriers))) {
			return i
		}
	}
	return -1
}

// runWithRetry drives one state's work attempt through its Retry list.
// Attempt counts are kept per retrier on the execution, so they survive
// re-entry of the same state. Exceeding MaxAttempts falls through to the
// caller (which applies Catch).
func (ex *Execution) runWithRetry(
	ctx context.Context,
	stateName string,
	retriers []machine.Retrier,
	attempt func(context.Context) (any, *slmerrors.StatesError),
) (any, *slmerrors.StatesError) {
	counts := ex.retryCounts[stateName]
	if counts == nil && len(retriers) > 0 {
		counts = make([]int, len(retriers))
		ex.retryCounts[stateName] = counts
	}
	for {
		out, serr := attempt(ctx)
		if serr == nil {
			return out, nil
		}
		idx := matchRetrier(retriers, serr)
		if idx < 0 {
			return nil, serr
		}
		counts[idx]++
		if counts[idx] > retriers[idx].MaxAttempts {
			return nil, serr
		}
		delay := delayForAttempt(retriers[idx], counts[idx])
		ex.ectx.emit(Event{
			Event: EventRetryScheduled, Execution: ex.name, State: stateName,
			Error: serr.Name, Attempt: counts[idx], DelayMS: delay.Milliseconds(),
		})
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, cancellation(ctx)
		}
	}
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		// Still honour an already-cancelled context.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// cancellation converts a done context into the protocol error surfaced to
// retriers/catchers: deadline pressure is States.Timeout, a caller cancel
// is SLM.Cancelled.
func cancellation(ctx context.Context) *slmerrors.StatesError {
	if ctx.Err() == context.DeadlineExceeded {
		return slmerrors.New(slmerrors.Timeout, "deadline exceeded")
	}
	return slmerrors.New(slmerrors.Cancelled, "execution cancelled")
}
