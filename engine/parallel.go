package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hussainpithawala/go-slm/jsonpath"
	"github.com/hussainpithawala/go-slm/machine"
	"github.com/hussainpithawala/go-slm/slmerrors"
)

// runBranches executes every branch as a recursive sub-execution over a
// deep copy of the effective input. At most MaxConcurrency branches run at
// once, admitted in declaration order; the first branch failure cancels
// the siblings. Outputs are collected positionally, never by completion
// order.
func (ex *Execution) runBranches(ctx context.Context, p *machine.Parallel, input any) (any, *slmerrors.StatesError) {
	limit := p.MaxConcurrency
	if limit <= 0 || limit > len(p.Branches) {
		limit = len(p.Branches)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	outputs := make([]any, len(p.Branches))
	for i, branch := range p.Branches {
		i, branch := i, branch
		g.Go(func() error {
			name := fmt.Sprintf("%s/%s[%d]", ex.name, p.Name, i)
			ex.ectx.emit(Event{Event: EventBranchStarted, Execution: name, State: p.Name, Branch: i})
			sub := StartExecution(branch, jsonpath.DeepCopy(input), name, ex.ectx)
			if err := sub.RunAll(gctx); err != nil {
				return fmt.Errorf("branch %d: %w", i, err)
			}
			ev := Event{Event: EventBranchFinished, Execution: name, State: p.Name, Branch: i, Status: string(sub.Status())}
			if serr := sub.Err(); serr != nil {
				ev.Error = serr.Name
				ev.Cause = serr.Cause
			}
			ex.ectx.emit(ev)
			if sub.Status() == StatusFailed {
				serr := sub.Err()
				if serr == nil {
					serr = slmerrors.New(slmerrors.TaskFailed, "branch failed")
				}
				return fmt.Errorf("branch %d: %w", i, serr)
			}
			outputs[i] = sub.Output()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, slmerrors.Errorf(slmerrors.BranchFailed, "%v", err)
	}

	if ex.ectx.MergeBranchOutputs {
		return mergeBranchOutputs(outputs), nil
	}
	return outputs, nil
}

// mergeBranchOutputs reproduces the legacy result shape: branch outputs are
// deep-merged object-wise in declaration order, later branches winning on
// conflicting scalar keys. Non-object outputs replace the accumulator.
func mergeBranchOutputs(outputs []any) any {
	var acc any = map[string]any{}
	for _, out := range outputs {
		acc = deepMerge(acc, out)
	}
	return acc
}

func deepMerge(dst, src any) any {
	dm, okD := dst.(map[string]any)
	sm, okS := src.(map[string]any)
	if !okD || !okS {
		return jsonpath.DeepCopy(src)
	}
	out := make(map[string]any, len(dm)+len(sm))
	for k, v := range dm {
		out[k] = v
	}
	for k, v := range sm {
		if cur, ok := out[k]; ok {
			out[k] = deepMerge(cur, v)
			continue
		}
		out[k] = jsonpath.DeepCopy(v)
	}
	return out
}
