package engine

import (
	"context"

	"github.com/hussainpithawala/go-slm/jsonpath"
	"github.com/hussainpithawala/go-slm/machine"
	"github.com/hussainpithawala/go-slm/payload"
	"github.com/hussainpithawala/go-slm/slmerrors"
)

// Transition is the result of one state's execution: the state's final
// output plus where the dispatcher goes next.
type Transition struct {
	Output   any
	Next     string
	Terminal bool
	// Failed marks a terminal transition that ends the execution in the
	// failed status (a Fail state); Err carries its record.
	Failed bool
	Err    *slmerrors.StatesError
}

// Handler executes one state kind. A returned error is the state's
// unrecovered protocol error (retry and catch already applied); it fails
// the execution.
type Handler interface {
	Execute(ctx context.Context, ex *Execution, st machine.State) (Transition, error)
}

type HandlerRegistry struct {
	handlers map[machine.Kind]Handler
}

func NewDefaultRegistry() *HandlerRegistry {
	reg := &HandlerRegistry{handlers: map[machine.Kind]Handler{}}
	reg.Register(machine.KindPass, &PassHandler{})
	reg.Register(machine.KindTask, &TaskHandler{})
	reg.Register(machine.KindChoice, &ChoiceHandler{})
	reg.Register(machine.KindWait, &WaitHandler{})
	reg.Register(machine.KindParallel, &ParallelHandler{})
	reg.Register(machine.KindSucceed, &SucceedHandler{})
	reg.Register(machine.KindFail, &FailHandler{})
	return reg
}

func (r *HandlerRegistry) Register(kind machine.Kind, h Handler) {
	if r.handlers == nil {
		r.handlers = map[machine.Kind]Handler{}
	}
	r.handlers[kind] = h
}

func (r *HandlerRegistry) Resolve(kind machine.Kind) Handler {
	if h, ok := r.handlers[kind]; ok {
		return h
	}
	return unknownHandler{}
}

type unknownHandler struct{}

func (unknownHandler) Execute(_ context.Context, _ *Execution, st machine.State) (Transition, error) {
	return Transition{}, slmerrors.Errorf(slmerrors.TaskFailed, "no handler for state kind %s", st.Kind())
}

type PassHandler struct{}

func (h *PassHandler) Execute(_ context.Context, ex *Execution, st machine.State) (Transition, error) {
	p := st.(*machine.Pass)
	raw := ex.output

	scoped, err := payload.ApplyInputPath(p.InputPath, raw)
	if err != nil {
		return Transition{}, err
	}
	effective := scoped
	if p.HasParameters {
		if effective, err = payload.ApplyTemplate(p.Parameters, scoped, ex.ectx.intrinsics()); err != nil {
			return Transition{}, err
		}
	}

	rawResult := effective
	if p.HasResult {
		rawResult = jsonpath.DeepCopy(p.Result)
	}

	combined, err := payload.ApplyResultPath(p.ResultPath, raw, rawResult)
	if err != nil {
		return Transition{}, err
	}
	out, err := payload.ApplyOutputPath(p.OutputPath, combined)
	if err != nil {
		return Transition{}, err
	}
	return Transition{Output: out, Next: p.Next, Terminal: p.End}, nil
}

type SucceedHandler struct{}

func (h *SucceedHandler) Execute(_ context.Context, ex *Execution, st machine.State) (Transition, error) {
	s := st.(*machine.Succeed)
	scoped, err := payload.ApplyInputPath(s.InputPath, ex.output)
	if err != nil {
		return Transition{}, err
	}
	out, err := payload.ApplyOutputPath(s.OutputPath, scoped)
	if err != nil {
		return Transition{}, err
	}
	return Transition{Output: out, Terminal: true}, nil
}

type FailHandler struct{}

func (h *FailHandler) Execute(_ context.Context, ex *Execution, st machine.State) (Transition, error) {
	f := st.(*machine.Fail)
	return Transition{
		Output:   ex.output,
		Terminal: true,
		Failed:   true,
		Err:      slmerrors.New(f.ErrorName, f.Cause),
	}, nil
}

type ChoiceHandler struct{}

func (h *ChoiceHandler) Execute(_ context.Context, ex *Execution, st machine.State) (Transition, error) {
	c := st.(*machine.Choice)
	scoped, err := payload.ApplyInputPath(c.InputPath, ex.output)
	if err != nil {
		return Transition{}, err
	}

	next := ""
	for i := range c.Choices {
		ok, err := evalChoiceRule(&c.Choices[i], scoped)
		if err != nil {
			return Transition{}, err
		}
		if ok {
			next = c.Choices[i].Next
			break
		}
	}
	if next == "" {
		if c.Default == "" {
			return Transition{}, slmerrors.Errorf(slmerrors.NoChoiceMatched, "no choice rule matched in state %q", c.Name)
		}
		next = c.Default
	}

	out, err := payload.ApplyOutputPath(c.OutputPath, scoped)
	if err != nil {
		return Transition{}, err
	}
	return Transition{Output: out, Next: next}, nil
}

type TaskHandler struct{}

func (h *TaskHandler) Execute(ctx context.Context, ex *Execution, st machine.State) (Transition, error) {
	t := st.(*machine.Task)
	raw := ex.output

	attempt := func(ctx context.Context) (any, *slmerrors.StatesError) {
		scoped, err := payload.ApplyInputPath(t.InputPath, raw)
		if err != nil {
			return nil, slmerrors.Convert(err)
		}
		effective := scoped
		if t.HasParameters {
			if effective, err = payload.ApplyTemplate(t.Parameters, scoped, ex.ectx.intrinsics()); err != nil {
				return nil, slmerrors.Convert(err)
			}
		}

		result, serr := ex.invokeTask(ctx, t, effective)
		if serr != nil {
			return nil, serr
		}

		if t.HasResultSelector {
			if result, err = payload.ApplyTemplate(t.ResultSelector, result, ex.ectx.intrinsics()); err != nil {
				return nil, slmerrors.Convert(err)
			}
		}
		combined, err := payload.ApplyResultPath(t.ResultPath, raw, result)
		if err != nil {
			return nil, slmerrors.Convert(err)
		}
		out, err := payload.ApplyOutputPath(t.OutputPath, combined)
		if err != nil {
			return nil, slmerrors.Convert(err)
		}
		return out, nil
	}

	out, serr := ex.runWithRetry(ctx, t.Name, t.Retry, attempt)
	if serr == nil {
		return Transition{Output: out, Next: t.Next, Terminal: t.End}, nil
	}
	return ex.applyCatch(t.Catch, t.Name, raw, serr)
}

type ParallelHandler struct{}

func (h *ParallelHandler) Execute(ctx context.Context, ex *Execution, st machine.State) (Transition, error) {
	p := st.(*machine.Parallel)
	raw := ex.output

	attempt := func(ctx context.Context) (any, *slmerrors.StatesError) {
		scoped, err := payload.ApplyInputPath(p.InputPath, raw)
		if err != nil {
			return nil, slmerrors.Convert(err)
		}
		effective := scoped
		if p.HasParameters {
			if effective, err = payload.ApplyTemplate(p.Parameters, scoped, ex.ectx.intrinsics()); err != nil {
				return nil, slmerrors.Convert(err)
			}
		}

		result, serr := ex.runBranches(ctx, p, effective)
		if serr != nil {
			return nil, serr
		}

		if p.HasResultSelector {
			if result, err = payload.ApplyTemplate(p.ResultSelector, result, ex.ectx.intrinsics()); err != nil {
				return nil, slmerrors.Convert(err)
			}
		}
		combined, err := payload.ApplyResultPath(p.ResultPath, raw, result)
		if err != nil {
			return nil, slmerrors.Convert(err)
		}
		out, err := payload.ApplyOutputPath(p.OutputPath, combined)
		if err != nil {
			return nil, slmerrors.Convert(err)
		}
		return out, nil
	}

	out, serr := ex.runWithRetry(ctx, p.Name, p.Retry, attempt)
	if serr == nil {
		return Transition{Output: out, Next: p.Next, Terminal: p.End}, nil
	}
	return ex.applyCatch(p.Catch, p.Name, raw, serr)
}

// applyCatch dispatches an unrecovered error to the first matching catcher,
// injecting the {Error, Cause} payload at the catcher's ResultPath.
func (ex *Execution) applyCatch(catchers []machine.Catcher, stateName string, raw any, serr *slmerrors.StatesError) (Transition, error) {
	for i := range catchers {
		c := &catchers[i]
		if !slmerrors.Match(c.ErrorEquals, serr.Name, slmerrors.AllMatchesTimeout(c.ErrorEquals, len(catchers))) {
			continue
		}
		combined, err := payload.ApplyResultPath(c.ResultPath, raw, serr.Payload())
		if err != nil {
			return Transition{}, err
		}
		ex.ectx.emit(Event{
			Event: EventCatchMatched, Execution: ex.name, State: stateName,
			Error: serr.Name, Cause: serr.Cause,
		})
		return Transition{Output: combined, Next: c.Next}, nil
	}
	return Transition{}, serr
}
