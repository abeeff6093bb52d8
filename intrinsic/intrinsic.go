// Package intrinsic implements the States.* function library evaluated
// inside payload-template placeholder values.
package intrinsic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"github.com/hussainpithawala/go-slm/jsonpath"
	"github.com/hussainpithawala/go-slm/slmerrors"
)

// Env supplies the process-wide dependencies of the intrinsic library so
// tests can pin them. The zero value uses the global PRNG and random UUIDs.
type Env struct {
	Rand    *rand.Rand
	NewUUID func() string
}

func (e *Env) intn(n int64) int64 {
	if e != nil && e.Rand != nil {
		return e.Rand.Int63n(n)
	}
	return rand.Int63n(n)
}

func (e *Env) newUUID() string {
	if e != nil && e.NewUUID != nil {
		return e.NewUUID()
	}
	return uuid.NewString()
}

// IsExpression reports whether a placeholder string value is an intrinsic
// call rather than a bare reference path.
func IsExpression(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "States.") && strings.HasSuffix(s, ")") && strings.Contains(s, "(")
}

// Eval evaluates an intrinsic expression against the current scope.
// Reference-path arguments resolve against scope; literal arguments use
// JSON literal syntax. Failures carry States.IntrinsicFailure.
func (e *Env) Eval(expr string, scope any) (any, error) {
	expr = strings.TrimSpace(expr)
	name, rawArgs, err := splitCall(expr)
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, len(rawArgs))
	for _, raw := range rawArgs {
		v, err := e.evalArg(raw, scope)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return e.apply(name, args)
}

func (e *Env) evalArg(raw string, scope any) (any, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "empty argument")
	case IsExpression(raw):
		return e.Eval(raw, scope)
	case strings.HasPrefix(raw, "$"):
		p, err := jsonpath.Parse(raw)
		if err != nil {
			return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "bad reference argument %q: %v", raw, err)
		}
		v, err := p.Resolve(scope)
		if err != nil {
			return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "reference argument %s did not resolve", raw)
		}
		return v, nil
	default:
		// Single-quoted strings are accepted alongside JSON literals for
		// compatibility with hand-written definitions.
		if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
			return strings.ReplaceAll(raw[1:len(raw)-1], `\'`, `'`), nil
		}
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "bad literal argument %q", raw)
		}
		return v, nil
	}
}

func (e *Env) apply(name string, args []any) (any, error) {
	switch name {
	case "States.Format":
		return format(args)
	case "States.StringToJson":
		return stringToJSON(args)
	case "States.JsonToString":
		return jsonToString(args)
	case "States.Array":
		return append([]any{}, args...), nil
	case "States.UUID":
		if len(args) != 0 {
			return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "States.UUID takes no arguments")
		}
		return e.newUUID(), nil
	case "States.MathRandom":
		return e.mathRandom(args)
	case "States.MathAdd":
		return mathAdd(args)
	default:
		return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "unknown intrinsic %s", name)
	}
}

// splitCall separates "States.Name(a, b)" into the function name and its
// raw argument strings, honoring quotes, escapes, and nested calls.
func splitCall(expr string) (string, []string, error) {
	open := strings.IndexByte(expr, '(')
	if open < 0 || !strings.HasSuffix(expr, ")") {
		return "", nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "malformed intrinsic %q", expr)
	}
	name := strings.TrimSpace(expr[:open])
	if !strings.HasPrefix(name, "States.") {
		return "", nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "malformed intrinsic %q", expr)
	}
	body := expr[open+1 : len(expr)-1]
	if strings.TrimSpace(body) == "" {
		return name, nil, nil
	}

	var args []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(body); i++ {
		c := body[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return "", nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "unbalanced parentheses in %q", expr)
			}
		case ',':
			if depth == 0 {
				args = append(args, body[start:i])
				start = i + 1
			}
		}
	}
	if quote != 0 || depth != 0 {
		return "", nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "unterminated argument in %q", expr)
	}
	args = append(args, body[start:])
	return name, args, nil
}

func format(args []any) (any, error) {
	if len(args) == 0 {
		return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "States.Format requires a format string")
	}
	fmtStr, ok := args[0].(string)
	if !ok {
		return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "States.Format first argument must be a string")
	}
	rest := args[1:]
	var b strings.Builder
	used := 0
	for i := 0; i < len(fmtStr); i++ {
		if fmtStr[i] == '{' && i+1 < len(fmtStr) && fmtStr[i+1] == '}' {
			if used >= len(rest) {
				return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "States.Format has more {} than arguments")
			}
			b.WriteString(stringify(rest[used]))
			used++
			i++
			continue
		}
		b.WriteByte(fmtStr[i])
	}
	if used != len(rest) {
		return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "States.Format has %d unused arguments", len(rest)-used)
	}
	return b.String(), nil
}

// stringify renders a value for interpolation: strings verbatim, anything
// else as compact JSON.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := marshalCompact(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func stringToJSON(args []any) (any, error) {
	if len(args) != 1 {
		return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "States.StringToJson takes one argument")
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "States.StringToJson argument must be a string")
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "States.StringToJson: %v", err)
	}
	return v, nil
}

func jsonToString(args []any) (any, error) {
	if len(args) != 1 {
		return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "States.JsonToString takes one argument")
	}
	b, err := marshalCompact(args[0])
	if err != nil {
		return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "States.JsonToString: %v", err)
	}
	return string(b), nil
}

func (e *Env) mathRandom(args []any) (any, error) {
	if len(args) != 2 {
		return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "States.MathRandom takes two arguments")
	}
	lo, okLo := jsonpath.Int(args[0])
	hi, okHi := jsonpath.Int(args[1])
	if !okLo || !okHi || hi < lo {
		return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "States.MathRandom requires integer bounds lo <= hi")
	}
	return lo + e.intn(hi-lo+1), nil
}

func mathAdd(args []any) (any, error) {
	if len(args) != 2 {
		return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "States.MathAdd takes two arguments")
	}
	a, okA := jsonpath.Int(args[0])
	b, okB := jsonpath.Int(args[1])
	if !okA || !okB {
		return nil, slmerrors.Errorf(slmerrors.IntrinsicFailure, "States.MathAdd requires integer arguments")
	}
	return a + b, nil
}

// marshalCompact serializes without HTML escaping and without a trailing
// newline, so intrinsic output is stable across documents.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
