package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hussainpithawala/go-slm/slmerrors"
)

// demoExecutor backs Task states for local runs. Resources use a tiny
// scheme:value syntax so definitions are runnable end to end without any
// remote backend:
//
//	echo:<text>   -> returns {"echo": <text>}
//	sleep:<dur>   -> sleeps (cancellable), returns the input unchanged
//	fail:<name>   -> raises <name> (optionally "fail:<name>:<cause>")
//	identity:     -> returns the input unchanged
func demoExecutor(ctx context.Context, resource string, input any, _ any) (any, error) {
	scheme, rest, _ := strings.Cut(resource, ":")
	switch scheme {
	case "echo":
		return map[string]any{"echo": rest}, nil
	case "identity":
		return input, nil
	case "sleep":
		d, err := time.ParseDuration(rest)
		if err != nil {
			if secs, serr := strconv.Atoi(rest); serr == nil {
				d = time.Duration(secs) * time.Second
			} else {
				return nil, slmerrors.Errorf(slmerrors.TaskFailed, "bad sleep duration %q", rest)
			}
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
			return input, nil
		}
	case "fail":
		name, cause, _ := strings.Cut(rest, ":")
		if name == "" {
			name = slmerrors.TaskFailed
		}
		return nil, slmerrors.New(name, cause)
	default:
		return nil, slmerrors.Errorf(slmerrors.TaskFailed, "unknown resource scheme %q", resource)
	}
}
