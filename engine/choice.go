package engine

import (
	"errors"
	"strings"
	"time"

	"github.com/hussainpithawala/go-slm/jsonpath"
	"github.com/hussainpithawala/go-slm/machine"
	"github.com/hussainpithawala/go-slm/slmerrors"
)

// evalChoiceRule evaluates one rule against the document. A missing
// left-hand reference makes the rule false rather than an error, except
// for IsPresent, which is the predicate that observes absence.
func evalChoiceRule(r *machine.ChoiceRule, doc any) (bool, error) {
	switch {
	case len(r.And) > 0:
		for i := range r.And {
			ok, err := evalChoiceRule(&r.And[i], doc)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case len(r.Or) > 0:
		for i := range r.Or {
			ok, err := evalChoiceRule(&r.Or[i], doc)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case r.Not != nil:
		ok, err := evalChoiceRule(r.Not, doc)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}

	left, err := r.Variable.Resolve(doc)
	present := true
	if err != nil {
		if !errors.Is(err, jsonpath.ErrNotFound) {
			return false, slmerrors.Errorf(slmerrors.ParameterPathFailure, "Variable %s: %v", r.Variable, err)
		}
		present = false
	}

	if r.Operator == "IsPresent" {
		want, ok := r.Value.(bool)
		if !ok {
			return false, nil
		}
		return present == want, nil
	}
	if !present {
		return false, nil
	}

	op, isPath := strings.CutSuffix(r.Operator, "Path")
	right := r.Value
	if isPath {
		rv, err := r.ValuePath.Resolve(doc)
		if err != nil {
			return false, nil
		}
		right = rv
	} else {
		op = r.Operator
	}
	return compare(op, left, right), nil
}

func compare(op string, left, right any) bool {
	switch op {
	case "IsNull":
		want, ok := right.(bool)
		return ok && (left == nil) == want
	case "IsNumeric":
		want, ok := right.(bool)
		return ok && jsonpath.IsNumber(left) == want
	case "IsString":
		want, ok := right.(bool)
		_, isStr := left.(string)
		return ok && isStr == want
	case "IsBoolean":
		want, ok := right.(bool)
		_, isBool := left.(bool)
		return ok && isBool == want
	case "IsTimestamp":
		want, ok := right.(bool)
		_, tsErr := asTimestamp(left)
		return ok && (tsErr == nil) == want
	case "StringMatches":
		l, okL := left.(string)
		p, okP := right.(string)
		return okL && okP && globMatch(p, l)
	case "BooleanEquals":
		l, okL := left.(bool)
		rv, okR := right.(bool)
		return okL && okR && l == rv
	}

	switch {
	case strings.HasPrefix(op, "String"):
		l, okL := left.(string)
		rv, okR := right.(string)
		if !okL || !okR {
			return false
		}
		return ordered(strings.Compare(l, rv), strings.TrimPrefix(op, "String"))
	case strings.HasPrefix(op, "Numeric"):
		l, okL := jsonpath.Float(left)
		rv, okR := jsonpath.Float(right)
		if !okL || !okR {
			return false
		}
		switch {
		case l < rv:
			return ordered(-1, strings.TrimPrefix(op, "Numeric"))
		case l > rv:
			return ordered(1, strings.TrimPrefix(op, "Numeric"))
		default:
			return ordered(0, strings.TrimPrefix(op, "Numeric"))
		}
	case strings.HasPrefix(op, "Timestamp"):
		l, errL := asTimestamp(left)
		rv, errR := asTimestamp(right)
		if errL != nil || errR != nil {
			return false
		}
		switch {
		case l.Before(rv):
			return ordered(-1, strings.TrimPrefix(op, "Timestamp"))
		case l.After(rv):
			return ordered(1, strings.TrimPrefix(op, "Timestamp"))
		default:
			return ordered(0, strings.TrimPrefix(op, "Timestamp"))
		}
	}
	return false
}

// ordered maps a three-way comparison onto the operator suffix.
func ordered(cmp int, suffix string) bool {
	switch suffix {
	case "Equals":
		return cmp == 0
	case "LessThan":
		return cmp < 0
	case "GreaterThan":
		return cmp > 0
	case "LessThanEquals":
		return cmp <= 0
	case "GreaterThanEquals":
		return cmp >= 0
	default:
		return false
	}
}

func asTimestamp(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, errors.New("not a string")
	}
	return time.Parse(time.RFC3339, s)
}

type globToken struct {
	star bool
	lit  string
}

// globMatch matches an anchored glob where "*" matches any run of
// characters and "\*" is a literal asterisk.
func globMatch(pattern, s string) bool {
	var toks []globToken
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			toks = append(toks, globToken{lit: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			i++
			lit.WriteByte(pattern[i])
		case c == '*':
			flush()
			if len(toks) == 0 || !toks[len(toks)-1].star {
				toks = append(toks, globToken{star: true})
			}
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return matchTokens(toks, s)
}

func matchTokens(toks []globToken, s string) bool {
	if len(toks) == 0 {
		return s == ""
	}
	t := toks[0]
	if !t.star {
		if !strings.HasPrefix(s, t.lit) {
			return false
		}
		return matchTokens(toks[1:], s[len(t.lit):])
	}
	for i := 0; i <= len(s); i++ {
		if matchTokens(toks[1:], s[i:]) {
			return true
		}
	}
	return false
}
