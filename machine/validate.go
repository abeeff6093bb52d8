package machine

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

type Diagnostic struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	State    string   `json:"state,omitempty"`
}

// Validate runs all rules against a decoded machine and returns the
// diagnostics. Build refuses machines with any ERROR diagnostic.
func Validate(m *Machine) []Diagnostic {
	if m == nil {
		return []Diagnostic{{Rule: "machine_nil", Severity: SeverityError, Message: "machine is nil"}}
	}
	var diags []Diagnostic
	diags = append(diags, lintStartAt(m)...)
	diags = append(diags, lintTransitionTargets(m)...)
	diags = append(diags, lintNextEndExclusive(m)...)
	diags = append(diags, lintTerminalReachable(m)...)
	diags = append(diags, lintTask(m)...)
	diags = append(diags, lintWaitForms(m)...)
	diags = append(diags, lintParallel(m)...)
	diags = append(diags, lintChoiceDefault(m)...)
	return diags
}

func ValidateOrError(m *Machine) error {
	var errs []string
	for _, d := range Validate(m) {
		if d.Severity == SeverityError {
			errs = append(errs, d.Rule+": "+d.Message)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid machine: %s", strings.Join(errs, "; "))
	}
	return nil
}

func lintStartAt(m *Machine) []Diagnostic {
	if _, ok := m.States[m.StartAt]; !ok {
		return []Diagnostic{{
			Rule:     "start_at_exists",
			Severity: SeverityError,
			Message:  fmt.Sprintf("StartAt %q is not a state", m.StartAt),
		}}
	}
	return nil
}

func lintTransitionTargets(m *Machine) []Diagnostic {
	var diags []Diagnostic
	missing := func(rule, state, target string) Diagnostic {
		return Diagnostic{
			Rule:     rule,
			Severity: SeverityError,
			State:    state,
			Message:  fmt.Sprintf("state %q transitions to unknown state %q", state, target),
		}
	}
	for name, s := range m.States {
		if next := s.Base().Next; next != "" {
			if _, ok := m.States[next]; !ok {
				diags = append(diags, missing("next_exists", name, next))
			}
		}
		switch t := s.(type) {
		case *Choice:
			for _, r := range t.Choices {
				if _, ok := m.States[r.Next]; !ok {
					diags = append(diags, missing("choice_next_exists", name, r.Next))
				}
			}
			if t.Default != "" {
				if _, ok := m.States[t.Default]; !ok {
					diags = append(diags, missing("choice_default_exists", name, t.Default))
				}
			}
		case *Task:
			for _, c := range t.Catch {
				if _, ok := m.States[c.Next]; !ok {
					diags = append(diags, missing("catch_next_exists", name, c.Next))
				}
			}
		case *Parallel:
			for _, c := range t.Catch {
				if _, ok := m.States[c.Next]; !ok {
					diags = append(diags, missing("catch_next_exists", name, c.Next))
				}
			}
		}
	}
	return diags
}

func lintNextEndExclusive(m *Machine) []Diagnostic {
	var diags []Diagnostic
	for name, s := range m.States {
		switch s.Kind() {
		case KindChoice:
			if s.Base().Next != "" || s.Base().End {
				diags = append(diags, Diagnostic{
					Rule:     "choice_no_next",
					Severity: SeverityError,
					State:    name,
					Message:  fmt.Sprintf("Choice state %q routes via Choices/Default, not Next/End", name),
				})
			}
		case KindSucceed, KindFail:
			if s.Base().Next != "" {
				diags = append(diags, Diagnostic{
					Rule:     "terminal_no_next",
					Severity: SeverityError,
					State:    name,
					Message:  fmt.Sprintf("terminal state %q must not carry Next", name),
				})
			}
		default:
			hasNext := s.Base().Next != ""
			if hasNext == s.Base().End {
				diags = append(diags, Diagnostic{
					Rule:     "next_xor_end",
					Severity: SeverityError,
					State:    name,
					Message:  fmt.Sprintf("state %q needs exactly one of Next or End:true", name),
				})
			}
		}
	}
	return diags
}

// lintTerminalReachable walks transitions from StartAt looking for at least
// one reachable terminal state. Cycle termination is the author's concern;
// reachability of an end is not.
func lintTerminalReachable(m *Machine) []Diagnostic {
	if _, ok := m.States[m.StartAt]; !ok {
		return nil // start_at_exists already fired
	}
	seen := map[string]bool{}
	queue := []string{m.StartAt}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		s, ok := m.States[name]
		if !ok {
			continue
		}
		if Terminal(s) {
			return nil
		}
		if next := s.Base().Next; next != "" {
			queue = append(queue, next)
		}
		switch t := s.(type) {
		case *Choice:
			for _, r := range t.Choices {
				queue = append(queue, r.Next)
			}
			if t.Default != "" {
				queue = append(queue, t.Default)
			}
		case *Task:
			for _, c := range t.Catch {
				queue = append(queue, c.Next)
			}
		case *Parallel:
			for _, c := range t.Catch {
				queue = append(queue, c.Next)
			}
		}
	}
	return []Diagnostic{{
		Rule:     "terminal_reachable",
		Severity: SeverityError,
		Message:  "no terminal state is reachable from StartAt",
	}}
}

func lintTask(m *Machine) []Diagnostic {
	var diags []Diagnostic
	for name, s := range m.States {
		t, ok := s.(*Task)
		if !ok {
			continue
		}
		if strings.TrimSpace(t.Resource) == "" {
			diags = append(diags, Diagnostic{
				Rule:     "task_resource_required",
				Severity: SeverityError,
				State:    name,
				Message:  fmt.Sprintf("Task state %q requires Resource", name),
			})
		}
	}
	return diags
}

func lintWaitForms(m *Machine) []Diagnostic {
	var diags []Diagnostic
	for name, s := range m.States {
		w, ok := s.(*Wait)
		if !ok {
			continue
		}
		n := 0
		for _, set := range []bool{w.HasSeconds, w.HasSecondsPath, w.HasTimestamp, w.HasTimestampPath} {
			if set {
				n++
			}
		}
		if n != 1 {
			diags = append(diags, Diagnostic{
				Rule:     "wait_exactly_one_form",
				Severity: SeverityError,
				State:    name,
				Message:  fmt.Sprintf("Wait state %q needs exactly one of Seconds, SecondsPath, Timestamp, TimestampPath (got %d)", name, n),
			})
		}
	}
	return diags
}

func lintParallel(m *Machine) []Diagnostic {
	var diags []Diagnostic
	for name, s := range m.States {
		p, ok := s.(*Parallel)
		if !ok {
			continue
		}
		if len(p.Branches) == 0 {
			diags = append(diags, Diagnostic{
				Rule:     "parallel_branches_required",
				Severity: SeverityError,
				State:    name,
				Message:  fmt.Sprintf("Parallel state %q requires at least one branch", name),
			})
		}
		if p.HasMaxConcurrency && p.MaxConcurrency < 1 {
			diags = append(diags, Diagnostic{
				Rule:     "parallel_max_concurrency",
				Severity: SeverityError,
				State:    name,
				Message:  fmt.Sprintf("Parallel state %q: MaxConcurrency must be >= 1", name),
			})
		}
		for i, b := range p.Branches {
			for _, d := range Validate(b) {
				prefix := fmt.Sprintf("%s.Branches[%d]", name, i)
				if d.State != "" {
					d.State = prefix + "." + d.State
				} else {
					d.State = prefix
				}
				diags = append(diags, d)
			}
		}
	}
	return diags
}

func lintChoiceDefault(m *Machine) []Diagnostic {
	var diags []Diagnostic
	for name, s := range m.States {
		c, ok := s.(*Choice)
		if !ok {
			continue
		}
		if len(c.Choices) == 0 {
			diags = append(diags, Diagnostic{
				Rule:     "choice_rules_required",
				Severity: SeverityError,
				State:    name,
				Message:  fmt.Sprintf("Choice state %q requires a non-empty Choices array", name),
			})
		}
		if c.Default == "" {
			diags = append(diags, Diagnostic{
				Rule:     "choice_default_missing",
				Severity: SeverityWarning,
				State:    name,
				Message:  fmt.Sprintf("Choice state %q has no Default; an unmatched input fails the execution", name),
			})
		}
	}
	return diags
}
