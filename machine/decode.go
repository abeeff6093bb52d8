package machine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hussainpithawala/go-slm/jsonpath"
)

// Build decodes a generic JSON-like document (maps, slices, scalars) into a
// Machine and validates it. Definition errors surface here, never at run
// time.
func Build(def any) (*Machine, error) {
	m, err := Decode(def)
	if err != nil {
		return nil, err
	}
	if err := ValidateOrError(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Decode performs the structural decode only; most semantic rules live in
// Validate. Exposed so callers can collect diagnostics without failing.
func Decode(def any) (*Machine, error) {
	obj, ok := asObject(def)
	if !ok {
		return nil, fmt.Errorf("definition must be an object, got %T", def)
	}
	return decodeMachine(obj, "")
}

func decodeMachine(obj map[string]any, where string) (*Machine, error) {
	m := &Machine{States: map[string]State{}}
	m.Comment, _ = asString(obj["Comment"])
	m.Version, _ = asString(obj["Version"])

	startAt, ok := asString(obj["StartAt"])
	if !ok || strings.TrimSpace(startAt) == "" {
		return nil, fmt.Errorf("%sStartAt is required", where)
	}
	m.StartAt = startAt

	if v, present := obj["TimeoutSeconds"]; present {
		n, ok := jsonpath.Int(v)
		if !ok || n < 0 {
			return nil, fmt.Errorf("%sTimeoutSeconds must be a non-negative integer", where)
		}
		m.TimeoutSeconds = int(n)
	}

	states, ok := asObject(obj["States"])
	if !ok || len(states) == 0 {
		return nil, fmt.Errorf("%sStates must be a non-empty object", where)
	}
	// Deterministic decode order for stable error messages.
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec, ok := asObject(states[name])
		if !ok {
			return nil, fmt.Errorf("%sstate %q must be an object", where, name)
		}
		st, err := decodeState(name, spec, where)
		if err != nil {
			return nil, err
		}
		m.States[name] = st
	}
	return m, nil
}

func decodeState(name string, spec map[string]any, where string) (State, error) {
	typ, _ := asString(spec["Type"])
	loc := fmt.Sprintf("%sstate %q: ", where, name)

	common, err := decodeCommon(name, spec, loc)
	if err != nil {
		return nil, err
	}

	switch Kind(typ) {
	case KindPass:
		return decodePass(common, spec, loc)
	case KindTask:
		return decodeTask(common, spec, loc)
	case KindChoice:
		return decodeChoice(common, spec, loc)
	case KindWait:
		return decodeWait(common, spec, loc)
	case KindParallel:
		return decodeParallel(common, spec, loc)
	case KindSucceed:
		return &Succeed{Common: common}, nil
	case KindFail:
		f := &Fail{Common: common}
		f.ErrorName, _ = asString(spec["Error"])
		f.Cause, _ = asString(spec["Cause"])
		return f, nil
	default:
		return nil, fmt.Errorf("%sunknown Type %q", loc, typ)
	}
}

func decodeCommon(name string, spec map[string]any, loc string) (Common, error) {
	c := Common{Name: name}
	c.Comment, _ = asString(spec["Comment"])
	c.Next, _ = asString(spec["Next"])
	if v, present := spec["End"]; present {
		b, ok := v.(bool)
		if !ok {
			return c, fmt.Errorf("%sEnd must be a boolean", loc)
		}
		c.End = b
	}
	var err error
	if c.InputPath, err = decodeOptionalPath(spec, "InputPath", loc); err != nil {
		return c, err
	}
	if c.OutputPath, err = decodeOptionalPath(spec, "OutputPath", loc); err != nil {
		return c, err
	}
	return c, nil
}

func decodeOptionalPath(spec map[string]any, field, loc string) (jsonpath.Optional, error) {
	v, present := spec[field]
	if !present {
		return jsonpath.DefaultOptional(), nil
	}
	if v == nil {
		return jsonpath.NullOptional(), nil
	}
	raw, ok := asString(v)
	if !ok {
		return jsonpath.Optional{}, fmt.Errorf("%s%s must be a reference path or null", loc, field)
	}
	o, err := jsonpath.NewOptional(raw)
	if err != nil {
		return jsonpath.Optional{}, fmt.Errorf("%s%s: %v", loc, field, err)
	}
	return o, nil
}

func decodeTemplate(spec map[string]any, field, loc string) (map[string]any, bool, error) {
	v, present := spec[field]
	if !present {
		return nil, false, nil
	}
	tpl, ok := asObject(v)
	if !ok {
		return nil, false, fmt.Errorf("%s%s must be an object", loc, field)
	}
	return tpl, true, nil
}

func decodePass(common Common, spec map[string]any, loc string) (State, error) {
	p := &Pass{Common: common}
	var err error
	if p.Parameters, p.HasParameters, err = decodeTemplate(spec, "Parameters", loc); err != nil {
		return nil, err
	}
	if p.ResultPath, err = decodeOptionalPath(spec, "ResultPath", loc); err != nil {
		return nil, err
	}
	if v, present := spec["Result"]; present {
		p.Result = v
		p.HasResult = true
	}
	return p, nil
}

func decodeTask(common Common, spec map[string]any, loc string) (State, error) {
	t := &Task{Common: common}
	t.Resource, _ = asString(spec["Resource"])
	var err error
	if v, present := spec["TimeoutSeconds"]; present {
		n, ok := jsonpath.Int(v)
		if !ok || n < 1 {
			return nil, fmt.Errorf("%sTimeoutSeconds must be a positive integer", loc)
		}
		t.TimeoutSeconds = int(n)
	}
	if v, present := spec["HeartbeatSeconds"]; present {
		n, ok := jsonpath.Int(v)
		if !ok || n < 1 {
			return nil, fmt.Errorf("%sHeartbeatSeconds must be a positive integer", loc)
		}
		t.HeartbeatSeconds = int(n)
	}
	if t.Parameters, t.HasParameters, err = decodeTemplate(spec, "Parameters", loc); err != nil {
		return nil, err
	}
	if t.ResultSelector, t.HasResultSelector, err = decodeTemplate(spec, "ResultSelector", loc); err != nil {
		return nil, err
	}
	if t.ResultPath, err = decodeOptionalPath(spec, "ResultPath", loc); err != nil {
		return nil, err
	}
	if t.Retry, err = decodeRetry(spec, loc); err != nil {
		return nil, err
	}
	if t.Catch, err = decodeCatch(spec, loc); err != nil {
		return nil, err
	}
	return t, nil
}

func decodeChoice(common Common, spec map[string]any, loc string) (State, error) {
	c := &Choice{Common: common}
	c.Default, _ = asString(spec["Default"])
	rules, ok := asArray(spec["Choices"])
	if !ok {
		return nil, fmt.Errorf("%sChoices must be an array", loc)
	}
	for i, rv := range rules {
		robj, ok := asObject(rv)
		if !ok {
			return nil, fmt.Errorf("%sChoices[%d] must be an object", loc, i)
		}
		rule, err := decodeChoiceRule(robj, fmt.Sprintf("%sChoices[%d]: ", loc, i), true)
		if err != nil {
			return nil, err
		}
		c.Choices = append(c.Choices, rule)
	}
	return c, nil
}

func decodeChoiceRule(obj map[string]any, loc string, topLevel bool) (ChoiceRule, error) {
	var r ChoiceRule
	r.Next, _ = asString(obj["Next"])
	if topLevel && strings.TrimSpace(r.Next) == "" {
		return r, fmt.Errorf("%stop-level rule requires Next", loc)
	}
	if !topLevel && r.Next != "" {
		return r, fmt.Errorf("%snested rule must not carry Next", loc)
	}

	if raw, present := obj["Variable"]; present {
		s, ok := asString(raw)
		if !ok {
			return r, fmt.Errorf("%sVariable must be a reference path", loc)
		}
		p, err := jsonpath.Parse(s)
		if err != nil {
			return r, fmt.Errorf("%sVariable: %v", loc, err)
		}
		r.Variable = p
		r.HasVariable = true
	}

	decodeNested := func(field string) ([]ChoiceRule, error) {
		arr, ok := asArray(obj[field])
		if !ok {
			return nil, fmt.Errorf("%s%s must be an array of rules", loc, field)
		}
		if len(arr) == 0 {
			return nil, fmt.Errorf("%s%s must not be empty", loc, field)
		}
		out := make([]ChoiceRule, 0, len(arr))
		for i, nv := range arr {
			nobj, ok := asObject(nv)
			if !ok {
				return nil, fmt.Errorf("%s%s[%d] must be an object", loc, field, i)
			}
			nr, err := decodeChoiceRule(nobj, fmt.Sprintf("%s%s[%d]: ", loc, field, i), false)
			if err != nil {
				return nil, err
			}
			out = append(out, nr)
		}
		return out, nil
	}

	if _, present := obj["And"]; present {
		nested, err := decodeNested("And")
		if err != nil {
			return r, err
		}
		r.And = nested
		return r, nil
	}
	if _, present := obj["Or"]; present {
		nested, err := decodeNested("Or")
		if err != nil {
			return r, err
		}
		r.Or = nested
		return r, nil
	}
	if nv, present := obj["Not"]; present {
		nobj, ok := asObject(nv)
		if !ok {
			return r, fmt.Errorf("%sNot must be a rule object", loc)
		}
		nr, err := decodeChoiceRule(nobj, loc+"Not: ", false)
		if err != nil {
			return r, err
		}
		r.Not = &nr
		return r, nil
	}

	// Comparator rule: exactly one known operator key.
	for key, val := range obj {
		op, isPath := strings.CutSuffix(key, "Path")
		if key == "Variable" || key == "Next" {
			continue
		}
		if isPath && pathVariant(op) {
			if r.Operator != "" {
				return r, fmt.Errorf("%smultiple comparators in one rule", loc)
			}
			s, ok := asString(val)
			if !ok {
				return r, fmt.Errorf("%s%s must be a reference path", loc, key)
			}
			p, err := jsonpath.Parse(s)
			if err != nil {
				return r, fmt.Errorf("%s%s: %v", loc, key, err)
			}
			r.Operator = key
			r.ValuePath = p
			continue
		}
		if comparatorOps[key] {
			if r.Operator != "" {
				return r, fmt.Errorf("%smultiple comparators in one rule", loc)
			}
			r.Operator = key
			r.Value = val
		}
	}
	if r.Operator == "" {
		return r, fmt.Errorf("%srule carries no comparator or combinator", loc)
	}
	if !r.HasVariable {
		return r, fmt.Errorf("%scomparator rule requires Variable", loc)
	}
	return r, nil
}

func decodeWait(common Common, spec map[string]any, loc string) (State, error) {
	w := &Wait{Common: common}
	if v, present := spec["Seconds"]; present {
		n, ok := jsonpath.Int(v)
		if !ok || n < 0 {
			return nil, fmt.Errorf("%sSeconds must be a non-negative integer", loc)
		}
		w.Seconds = int(n)
		w.HasSeconds = true
	}
	if v, present := spec["SecondsPath"]; present {
		s, ok := asString(v)
		if !ok {
			return nil, fmt.Errorf("%sSecondsPath must be a reference path", loc)
		}
		p, err := jsonpath.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%sSecondsPath: %v", loc, err)
		}
		w.SecondsPath = p
		w.HasSecondsPath = true
	}
	if v, present := spec["Timestamp"]; present {
		s, ok := asString(v)
		if !ok {
			return nil, fmt.Errorf("%sTimestamp must be a string", loc)
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("%sTimestamp: %v", loc, err)
		}
		w.Timestamp = ts
		w.HasTimestamp = true
	}
	if v, present := spec["TimestampPath"]; present {
		s, ok := asString(v)
		if !ok {
			return nil, fmt.Errorf("%sTimestampPath must be a reference path", loc)
		}
		p, err := jsonpath.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%sTimestampPath: %v", loc, err)
		}
		w.TimestampPath = p
		w.HasTimestampPath = true
	}
	return w, nil
}

func decodeParallel(common Common, spec map[string]any, loc string) (State, error) {
	p := &Parallel{Common: common}
	var err error
	branches, ok := asArray(spec["Branches"])
	if !ok {
		return nil, fmt.Errorf("%sBranches must be an array", loc)
	}
	for i, bv := range branches {
		bobj, ok := asObject(bv)
		if !ok {
			return nil, fmt.Errorf("%sBranches[%d] must be an object", loc, i)
		}
		branch, err := decodeMachine(bobj, fmt.Sprintf("%sBranches[%d]: ", loc, i))
		if err != nil {
			return nil, err
		}
		p.Branches = append(p.Branches, branch)
	}
	if v, present := spec["MaxConcurrency"]; present {
		n, ok := jsonpath.Int(v)
		if !ok {
			return nil, fmt.Errorf("%sMaxConcurrency must be an integer", loc)
		}
		p.MaxConcurrency = int(n)
		p.HasMaxConcurrency = true
	}
	if p.Parameters, p.HasParameters, err = decodeTemplate(spec, "Parameters", loc); err != nil {
		return nil, err
	}
	if p.ResultSelector, p.HasResultSelector, err = decodeTemplate(spec, "ResultSelector", loc); err != nil {
		return nil, err
	}
	if p.ResultPath, err = decodeOptionalPath(spec, "ResultPath", loc); err != nil {
		return nil, err
	}
	if p.Retry, err = decodeRetry(spec, loc); err != nil {
		return nil, err
	}
	if p.Catch, err = decodeCatch(spec, loc); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeRetry(spec map[string]any, loc string) ([]Retrier, error) {
	v, present := spec["Retry"]
	if !present {
		return nil, nil
	}
	arr, ok := asArray(v)
	if !ok {
		return nil, fmt.Errorf("%sRetry must be an array", loc)
	}
	out := make([]Retrier, 0, len(arr))
	for i, rv := range arr {
		robj, ok := asObject(rv)
		if !ok {
			return nil, fmt.Errorf("%sRetry[%d] must be an object", loc, i)
		}
		r := Retrier{IntervalSeconds: 1, MaxAttempts: 3, BackoffRate: 2.0}
		var err error
		if r.ErrorEquals, err = decodeErrorEquals(robj, fmt.Sprintf("%sRetry[%d]: ", loc, i)); err != nil {
			return nil, err
		}
		if iv, present := robj["IntervalSeconds"]; present {
			n, ok := jsonpath.Int(iv)
			if !ok || n < 0 {
				return nil, fmt.Errorf("%sRetry[%d]: IntervalSeconds must be a non-negative integer", loc, i)
			}
			r.IntervalSeconds = int(n)
		}
		if mv, present := robj["MaxAttempts"]; present {
			n, ok := jsonpath.Int(mv)
			if !ok || n < 0 {
				return nil, fmt.Errorf("%sRetry[%d]: MaxAttempts must be a non-negative integer", loc, i)
			}
			r.MaxAttempts = int(n)
		}
		if bv, present := robj["BackoffRate"]; present {
			f, ok := jsonpath.Float(bv)
			if !ok || f < 1.0 {
				return nil, fmt.Errorf("%sRetry[%d]: BackoffRate must be >= 1.0", loc, i)
			}
			r.BackoffRate = f
		}
		out = append(out, r)
	}
	return out, nil
}

func decodeCatch(spec map[string]any, loc string) ([]Catcher, error) {
	v, present := spec["Catch"]
	if !present {
		return nil, nil
	}
	arr, ok := asArray(v)
	if !ok {
		return nil, fmt.Errorf("%sCatch must be an array", loc)
	}
	out := make([]Catcher, 0, len(arr))
	for i, cv := range arr {
		cobj, ok := asObject(cv)
		if !ok {
			return nil, fmt.Errorf("%sCatch[%d] must be an object", loc, i)
		}
		c := Catcher{}
		var err error
		if c.ErrorEquals, err = decodeErrorEquals(cobj, fmt.Sprintf("%sCatch[%d]: ", loc, i)); err != nil {
			return nil, err
		}
		c.Next, _ = asString(cobj["Next"])
		if strings.TrimSpace(c.Next) == "" {
			return nil, fmt.Errorf("%sCatch[%d]: Next is required", loc, i)
		}
		if c.ResultPath, err = decodeOptionalPath(cobj, "ResultPath", fmt.Sprintf("%sCatch[%d]: ", loc, i)); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeErrorEquals(obj map[string]any, loc string) ([]string, error) {
	arr, ok := asArray(obj["ErrorEquals"])
	if !ok || len(arr) == 0 {
		return nil, fmt.Errorf("%sErrorEquals must be a non-empty array", loc)
	}
	out := make([]string, 0, len(arr))
	for i, v := range arr {
		s, ok := asString(v)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%sErrorEquals[%d] must be a non-empty string", loc, i)
		}
		out = append(out, s)
	}
	return out, nil
}

func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asArray(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
