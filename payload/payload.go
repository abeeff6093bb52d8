// Package payload implements the I/O filter pipeline applied around every
// state's work step: InputPath -> Parameters -> (work) -> ResultSelector ->
// ResultPath -> OutputPath, plus payload-template evaluation.
package payload

import (
	"strings"

	"github.com/hussainpithawala/go-slm/intrinsic"
	"github.com/hussainpithawala/go-slm/jsonpath"
	"github.com/hussainpithawala/go-slm/slmerrors"
)

// ApplyInputPath selects the sub-document the state works on. An absent
// path selects the whole document; an explicit null replaces the input
// with an empty object.
func ApplyInputPath(p jsonpath.Optional, doc any) (any, error) {
	return selectPath(p, doc)
}

// ApplyOutputPath selects the state's final output from the combined
// document. Same null/default semantics as InputPath.
func ApplyOutputPath(p jsonpath.Optional, doc any) (any, error) {
	return selectPath(p, doc)
}

func selectPath(p jsonpath.Optional, doc any) (any, error) {
	if p.Null() {
		return map[string]any{}, nil
	}
	v, err := p.Path().Resolve(doc)
	if err != nil {
		return nil, slmerrors.Errorf(slmerrors.ParameterPathFailure, "path %s did not resolve", p.Path())
	}
	return v, nil
}

// ApplyResultPath inserts the state's result into the raw input (the
// document at pipeline entry). A null ResultPath discards the result; the
// combined document is the raw input unchanged.
func ApplyResultPath(p jsonpath.Optional, raw any, result any) (any, error) {
	if p.Null() {
		return raw, nil
	}
	combined, err := p.Path().Insert(raw, result)
	if err != nil {
		return nil, slmerrors.Errorf(slmerrors.ResultPathMatchFailure, "%v", err)
	}
	return combined, nil
}

// ApplyTemplate evaluates a payload template against scope: every key
// ending in ".$" is a placeholder whose string value is either a reference
// path or an intrinsic expression; the ".$" suffix is stripped from the
// output key. Non-placeholder values are copied, recursing into nested
// objects and arrays.
func ApplyTemplate(tpl map[string]any, scope any, env *intrinsic.Env) (any, error) {
	return evalTemplateValue(tpl, scope, env)
}

func evalTemplateValue(v any, scope any, env *intrinsic.Env) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			if strings.HasSuffix(k, ".$") {
				resolved, err := resolvePlaceholder(k, e, scope, env)
				if err != nil {
					return nil, err
				}
				out[strings.TrimSuffix(k, ".$")] = resolved
				continue
			}
			child, err := evalTemplateValue(e, scope, env)
			if err != nil {
				return nil, err
			}
			out[k] = child
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			child, err := evalTemplateValue(e, scope, env)
			if err != nil {
				return nil, err
			}
			out[i] = child
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolvePlaceholder(key string, v any, scope any, env *intrinsic.Env) (any, error) {
	expr, ok := v.(string)
	if !ok {
		return nil, slmerrors.Errorf(slmerrors.ParameterPathFailure, "placeholder %q must carry a string value", key)
	}
	expr = strings.TrimSpace(expr)
	if intrinsic.IsExpression(expr) {
		return env.Eval(expr, scope)
	}
	p, err := jsonpath.Parse(expr)
	if err != nil {
		return nil, slmerrors.Errorf(slmerrors.ParameterPathFailure, "placeholder %q: %v", key, err)
	}
	resolved, err := p.Resolve(scope)
	if err != nil {
		return nil, slmerrors.Errorf(slmerrors.ParameterPathFailure, "placeholder %q: path %s did not resolve", key, expr)
	}
	return jsonpath.DeepCopy(resolved), nil
}
