// Package jsonpath implements the engine's restricted reference-path
// dialect: the literal "$" or "$" followed by ".field" and "[index]"
// segments. Unlike full JSONPath there are no wildcards, filters, or
// recursive descent.
package jsonpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound reports that a path traversed a missing field or an
// out-of-range index.
var ErrNotFound = errors.New("path not found")

type segment struct {
	field   string
	index   int
	isIndex bool
}

// Path is a parsed reference path.
type Path struct {
	raw  string
	segs []segment
}

func (p Path) String() string { return p.raw }

// IsRoot reports whether the path is the bare "$".
func (p Path) IsRoot() bool { return len(p.segs) == 0 }

// Root is the "$" path.
func Root() Path { return Path{raw: "$"} }

// Parse parses a reference path.
func Parse(raw string) (Path, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s[0] != '$' {
		return Path{}, fmt.Errorf("reference path must start with $: %q", raw)
	}
	p := Path{raw: s}
	rest := s[1:]
	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			field := rest
			if end >= 0 {
				field = rest[:end]
				rest = rest[end:]
			} else {
				rest = ""
			}
			if field == "" {
				return Path{}, fmt.Errorf("empty field segment in %q", raw)
			}
			p.segs = append(p.segs, segment{field: field})
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return Path{}, fmt.Errorf("unterminated index in %q", raw)
			}
			idx, err := strconv.Atoi(rest[1:end])
			if err != nil || idx < 0 {
				return Path{}, fmt.Errorf("invalid index %q in %q", rest[1:end], raw)
			}
			p.segs = append(p.segs, segment{index: idx, isIndex: true})
			rest = rest[end+1:]
		default:
			return Path{}, fmt.Errorf("unexpected character %q in %q", rest[0], raw)
		}
	}
	return p, nil
}

// Resolve looks the path up in doc. Traversal through a missing field or
// out-of-range index returns ErrNotFound.
func (p Path) Resolve(doc any) (any, error) {
	cur := doc
	for _, seg := range p.segs {
		if seg.isIndex {
			arr, ok := cur.([]any)
			if !ok || seg.index >= len(arr) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, p.raw)
			}
			cur = arr[seg.index]
			continue
		}
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p.raw)
		}
		v, ok := obj[seg.field]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p.raw)
		}
		cur = v
	}
	return cur, nil
}

// Insert places value into doc at the path and returns the resulting
// document. The input document is not mutated; containers along the path
// are copied. Missing intermediate object fields are created; descending
// through a non-object (or a non-existent array slot) is an error.
func (p Path) Insert(doc any, value any) (any, error) {
	if p.IsRoot() {
		return value, nil
	}
	return insert(doc, p.segs, value, p.raw)
}

func insert(cur any, segs []segment, value any, raw string) (any, error) {
	seg := segs[0]
	if seg.isIndex {
		arr, ok := cur.([]any)
		if !ok || seg.index >= len(arr) {
			return nil, fmt.Errorf("cannot place %s: no array slot [%d]", raw, seg.index)
		}
		out := make([]any, len(arr))
		copy(out, arr)
		if len(segs) == 1 {
			out[seg.index] = value
			return out, nil
		}
		child, err := insert(arr[seg.index], segs[1:], value, raw)
		if err != nil {
			return nil, err
		}
		out[seg.index] = child
		return out, nil
	}

	var obj map[string]any
	switch t := cur.(type) {
	case nil:
		obj = map[string]any{}
	case map[string]any:
		obj = t
	default:
		return nil, fmt.Errorf("cannot place %s: descending through non-object %T", raw, cur)
	}
	out := make(map[string]any, len(obj)+1)
	for k, v := range obj {
		out[k] = v
	}
	if len(segs) == 1 {
		out[seg.field] = value
		return out, nil
	}
	child, err := insert(obj[seg.field], segs[1:], value, raw)
	if err != nil {
		return nil, err
	}
	out[seg.field] = child
	return out, nil
}

// DeepCopy returns a structurally independent copy of a JSON document.
// Scalars (strings, bools, numbers, nil) are shared; they are immutable.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = DeepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = DeepCopy(e)
		}
		return out
	default:
		return v
	}
}
