// Package slmerrors defines the error protocol of the state machine engine:
// named error records, the reserved States.* names, and ErrorEquals matching.
package slmerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Reserved error names. All names beginning "States." are reserved by the
// protocol; any other string is a user-defined error name.
const (
	All                    = "States.ALL"
	Timeout                = "States.Timeout"
	TaskFailed             = "States.TaskFailed"
	Permissions            = "States.Permissions"
	ResultPathMatchFailure = "States.ResultPathMatchFailure"
	ParameterPathFailure   = "States.ParameterPathFailure"
	BranchFailed           = "States.BranchFailed"
	NoChoiceMatched        = "States.NoChoiceMatched"
	IntrinsicFailure       = "States.IntrinsicFailure"
)

// Cancelled is the implementation-defined name surfaced when an execution is
// cancelled by its caller rather than by a deadline. It is deliberately
// outside the States.* namespace.
const Cancelled = "SLM.Cancelled"

// StatesError is a protocol error: a name that Retry/Catch lists match
// against, plus a human-readable cause.
type StatesError struct {
	Name  string
	Cause string
}

func (e *StatesError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Cause) == "" {
		return e.Name
	}
	return e.Name + ": " + e.Cause
}

func New(name, cause string) *StatesError {
	return &StatesError{Name: name, Cause: cause}
}

func Errorf(name, format string, args ...any) *StatesError {
	return &StatesError{Name: name, Cause: fmt.Sprintf(format, args...)}
}

// Reserved reports whether name is in the reserved States.* namespace.
func Reserved(name string) bool {
	return strings.HasPrefix(name, "States.")
}

// Convert turns an arbitrary error into a StatesError. A *StatesError is
// returned verbatim (including one wrapped anywhere in the chain); anything
// else becomes States.TaskFailed with the error text as cause.
func Convert(err error) *StatesError {
	if err == nil {
		return nil
	}
	var se *StatesError
	if errors.As(err, &se) {
		return se
	}
	return &StatesError{Name: TaskFailed, Cause: err.Error()}
}

// Record is the serializable {Error, Cause} payload injected by catchers and
// recorded on failed executions.
type Record struct {
	Error string `json:"Error"`
	Cause string `json:"Cause,omitempty"`
}

func (e *StatesError) Record() Record {
	if e == nil {
		return Record{}
	}
	return Record{Error: e.Name, Cause: e.Cause}
}

// Payload returns the error as a generic JSON object, the shape a catcher's
// ResultPath injects into the working document.
func (e *StatesError) Payload() map[string]any {
	r := e.Record()
	return map[string]any{"Error": r.Error, "Cause": r.Cause}
}

// Match reports whether name matches one of the ErrorEquals patterns.
// Patterns are exact string matches except States.ALL, which matches any
// name — except States.Timeout, which States.ALL covers only when
// allMatchesTimeout is set (the caller derives that from rule position: the
// rule lists States.Timeout explicitly, or it is the only rule in its list).
func Match(patterns []string, name string, allMatchesTimeout bool) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == name {
			return true
		}
		if p == All {
			if name == Timeout && !allMatchesTimeout {
				continue
			}
			return true
		}
	}
	return false
}

// AllMatchesTimeout computes the States.Timeout carve-out for one rule of a
// Retry/Catch list: States.ALL in that rule covers States.Timeout only when
// the rule lists Timeout explicitly or the rule is the only entry.
func AllMatchesTimeout(patterns []string, listLen int) bool {
	if listLen == 1 {
		return true
	}
	for _, p := range patterns {
		if strings.TrimSpace(p) == Timeout {
			return true
		}
	}
	return false
}
