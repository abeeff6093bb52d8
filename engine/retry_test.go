package engine

import (
	"context"
	"testing"
	"time"

	"github.com/hussainpithawala/go-slm/machine"
	"github.com/hussainpithawala/go-slm/slmerrors"
)

func TestDelayForAttempt(t *testing.T) {
	r := machine.Retrier{IntervalSeconds: 1, BackoffRate: 2.0, MaxAttempts: 3}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}
	for _, tc := range cases {
		if got := delayForAttempt(r, tc.attempt); got != tc.want {
			t.Fatalf("delayForAttempt(%d)=%v, want %v", tc.attempt, got, tc.want)
		}
	}

	r = machine.Retrier{IntervalSeconds: 3, BackoffRate: 1.5}
	if got := delayForAttempt(r, 3); got != time.Duration(3*1.5*1.5*float64(time.Second)) {
		t.Fatalf("fractional backoff=%v", got)
	}
	if got := delayForAttempt(machine.Retrier{IntervalSeconds: 0, BackoffRate: 2}, 5); got != 0 {
		t.Fatalf("zero interval must not sleep, got %v", got)
	}
}

func TestMatchRetrier_FirstMatchWins(t *testing.T) {
	retriers := []machine.Retrier{
		{ErrorEquals: []string{"A", "B"}},
		{ErrorEquals: []string{slmerrors.All}},
	}
	if got := matchRetrier(retriers, slmerrors.New("B", "")); got != 0 {
		t.Fatalf("matchRetrier(B)=%d, want 0", got)
	}
	if got := matchRetrier(retriers, slmerrors.New("Z", "")); got != 1 {
		t.Fatalf("matchRetrier(Z)=%d, want 1", got)
	}
	if got := matchRetrier(nil, slmerrors.New("Z", "")); got != -1 {
		t.Fatalf("matchRetrier(none)=%d, want -1", got)
	}
}

func TestMatchRetrier_AllTimeoutCarveOut(t *testing.T) {
	timeout := slmerrors.New(slmerrors.Timeout, "")

	// States.ALL in a multi-entry list does not cover Timeout.
	multi := []machine.Retrier{
		{ErrorEquals: []string{"E"}},
		{ErrorEquals: []string{slmerrors.All}},
	}
	if got := matchRetrier(multi, timeout); got != -1 {
		t.Fatalf("multi-rule ALL matched Timeout (idx %d)", got)
	}

	// A sole States.ALL retrier covers everything, Timeout included.
	sole := []machine.Retrier{{ErrorEquals: []string{slmerrors.All}}}
	if got := matchRetrier(sole, timeout); got != 0 {
		t.Fatalf("sole ALL retrier must match Timeout, got %d", got)
	}

	// Listing Timeout explicitly alongside ALL covers it too.
	explicit := []machine.Retrier{
		{ErrorEquals: []string{"E"}},
		{ErrorEquals: []string{slmerrors.Timeout, slmerrors.All}},
	}
	if got := matchRetrier(explicit, timeout); got != 1 {
		t.Fatalf("explicit Timeout listing must match, got %d", got)
	}
}

func TestRunWithRetry_StopsOnUnmatchedError(t *testing.T) {
	ex := StartExecution(mustMachine(t), map[string]any{}, "t", &Context{})
	calls := 0
	_, serr := ex.runWithRetry(context.Background(), "S", []machine.Retrier{
		{ErrorEquals: []string{"Other"}, MaxAttempts: 5},
	}, func(context.Context) (any, *slmerrors.StatesError) {
		calls++
		return nil, slmerrors.New("E", "boom")
	})
	if serr == nil || serr.Name != "E" {
		t.Fatalf("serr=%v", serr)
	}
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
}

func TestSleepCtx_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Minute); err == nil {
		t.Fatalf("cancelled sleep must error")
	}
	if err := sleepCtx(ctx, 0); err == nil {
		t.Fatalf("zero sleep on a cancelled context must error")
	}
	if err := sleepCtx(context.Background(), 0); err != nil {
		t.Fatalf("zero sleep error: %v", err)
	}
}

func TestCancellationNames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := cancellation(ctx); got.Name != slmerrors.Cancelled {
		t.Fatalf("cancel name=%s", got.Name)
	}
	dctx, dcancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer dcancel()
	<-dctx.Done()
	if got := cancellation(dctx); got.Name != slmerrors.Timeout {
		t.Fatalf("deadline name=%s", got.Name)
	}
}

func mustMachine(t *testing.T) *machine.Machine {
	t.Helper()
	return build(t, map[string]any{
		"StartAt": "S",
		"States":  map[string]any{"S": map[string]any{"Type": "Succeed"}},
	})
}
