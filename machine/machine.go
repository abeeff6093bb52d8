// Package machine holds the immutable definition tree of a state machine:
// the seven state kinds, the builder that decodes a generic JSON-like
// document into the tree, and rule-based validation.
package machine

import (
	"time"

	"github.com/hussainpithawala/go-slm/jsonpath"
)

type Kind string

const (
	KindPass     Kind = "Pass"
	KindTask     Kind = "Task"
	KindChoice   Kind = "Choice"
	KindWait     Kind = "Wait"
	KindParallel Kind = "Parallel"
	KindSucceed  Kind = "Succeed"
	KindFail     Kind = "Fail"
)

// Machine is immutable after Build.
type Machine struct {
	Comment        string
	Version        string
	StartAt        string
	TimeoutSeconds int
	States         map[string]State
}

// State is the closed set of state kinds. Shared behavior (the filter
// pipeline, retry/catch) lives in the engine as free functions over the
// per-kind attribute records, not on the states themselves.
type State interface {
	Kind() Kind
	Base() *Common
}

// Common carries the attributes every state may declare.
type Common struct {
	Name       string
	Comment    string
	Next       string
	End        bool
	InputPath  jsonpath.Optional
	OutputPath jsonpath.Optional
}

func (c *Common) Base() *Common { return c }

// Terminal reports whether the state ends the execution when reached.
func Terminal(s State) bool {
	switch s.Kind() {
	case KindSucceed, KindFail:
		return true
	default:
		return s.Base().End
	}
}

// Retrier is one entry of a state's Retry list. Attempt counts are runtime
// state and live with the execution, not here.
type Retrier struct {
	ErrorEquals     []string
	IntervalSeconds int
	MaxAttempts     int
	BackoffRate     float64
}

// Catcher is one entry of a state's Catch list.
type Catcher struct {
	ErrorEquals []string
	Next        string
	ResultPath  jsonpath.Optional
}

type Pass struct {
	Common
	Parameters    map[string]any
	HasParameters bool
	ResultPath    jsonpath.Optional
	Result        any
	HasResult     bool
}

func (*Pass) Kind() Kind { return KindPass }

type Task struct {
	Common
	Resource          string
	TimeoutSeconds    int
	HeartbeatSeconds  int
	Parameters        map[string]any
	HasParameters     bool
	ResultSelector    map[string]any
	HasResultSelector bool
	ResultPath        jsonpath.Optional
	Retry             []Retrier
	Catch             []Catcher
}

func (*Task) Kind() Kind { return KindTask }

type Choice struct {
	Common
	Choices []ChoiceRule
	Default string
}

func (*Choice) Kind() Kind { return KindChoice }

type Wait struct {
	Common
	Seconds          int
	HasSeconds       bool
	SecondsPath      jsonpath.Path
	HasSecondsPath   bool
	Timestamp        time.Time
	HasTimestamp     bool
	TimestampPath    jsonpath.Path
	HasTimestampPath bool
}

func (*Wait) Kind() Kind { return KindWait }

type Parallel struct {
	Common
	Branches          []*Machine
	MaxConcurrency    int
	HasMaxConcurrency bool
	Parameters        map[string]any
	HasParameters     bool
	ResultSelector    map[string]any
	HasResultSelector bool
	ResultPath        jsonpath.Optional
	Retry             []Retrier
	Catch             []Catcher
}

func (*Parallel) Kind() Kind { return KindParallel }

type Succeed struct {
	Common
}

func (*Succeed) Kind() Kind { return KindSucceed }

type Fail struct {
	Common
	ErrorName string
	Cause     string
}

func (*Fail) Kind() Kind { return KindFail }
