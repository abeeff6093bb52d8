package engine

import (
	"encoding/json"
	"testing"

	"github.com/hussainpithawala/go-slm/jsonpath"
	"github.com/hussainpithawala/go-slm/machine"
)

func comparatorRule(t *testing.T, variable, op string, value any) machine.ChoiceRule {
	t.Helper()
	p, err := jsonpath.Parse(variable)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", variable, err)
	}
	return machine.ChoiceRule{Variable: p, HasVariable: true, Operator: op, Value: value}
}

func pathRule(t *testing.T, variable, op, rhs string) machine.ChoiceRule {
	t.Helper()
	r := comparatorRule(t, variable, op, nil)
	p, err := jsonpath.Parse(rhs)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", rhs, err)
	}
	r.ValuePath = p
	return r
}

func TestComparators(t *testing.T) {
	doc := map[string]any{
		"s":    "banana",
		"n":    json.Number("7"),
		"f":    2.5,
		"b":    true,
		"null": nil,
		"ts":   "2026-01-02T03:04:05Z",
		"peer": "banana",
	}
	cases := []struct {
		name string
		rule machine.ChoiceRule
		want bool
	}{
		{"string_equals", comparatorRule(t, "$.s", "StringEquals", "banana"), true},
		{"string_equals_miss", comparatorRule(t, "$.s", "StringEquals", "apple"), false},
		{"string_less", comparatorRule(t, "$.s", "StringLessThan", "cherry"), true},
		{"string_greater_equals", comparatorRule(t, "$.s", "StringGreaterThanEquals", "banana"), true},
		{"string_type_mismatch", comparatorRule(t, "$.n", "StringEquals", "7"), false},

		{"numeric_equals", comparatorRule(t, "$.n", "NumericEquals", int64(7)), true},
		{"numeric_greater", comparatorRule(t, "$.n", "NumericGreaterThan", int64(5)), true},
		{"numeric_less_equals", comparatorRule(t, "$.f", "NumericLessThanEquals", 2.5), true},
		{"numeric_on_string", comparatorRule(t, "$.s", "NumericEquals", int64(1)), false},

		{"boolean_equals", comparatorRule(t, "$.b", "BooleanEquals", true), true},
		{"boolean_equals_false", comparatorRule(t, "$.b", "BooleanEquals", false), false},

		{"timestamp_less", comparatorRule(t, "$.ts", "TimestampLessThan", "2027-01-01T00:00:00Z"), true},
		{"timestamp_equals", comparatorRule(t, "$.ts", "TimestampEquals", "2026-01-02T03:04:05Z"), true},
		{"timestamp_bad_value", comparatorRule(t, "$.s", "TimestampEquals", "2026-01-02T03:04:05Z"), false},

		{"matches_star", comparatorRule(t, "$.s", "StringMatches", "ban*"), true},
		{"matches_middle", comparatorRule(t, "$.s", "StringMatches", "b*na"), true},
		{"matches_anchored", comparatorRule(t, "$.s", "StringMatches", "anana"), false},
		{"matches_escaped_star", comparatorRule(t, "$.s", "StringMatches", `ban\*`), false},

		{"is_null_true", comparatorRule(t, "$.null", "IsNull", true), true},
		{"is_null_false", comparatorRule(t, "$.s", "IsNull", true), false},
		{"is_present_true", comparatorRule(t, "$.s", "IsPresent", true), true},
		{"is_present_missing", comparatorRule(t, "$.ghost", "IsPresent", true), false},
		{"is_absent", comparatorRule(t, "$.ghost", "IsPresent", false), true},
		{"is_numeric", comparatorRule(t, "$.n", "IsNumeric", true), true},
		{"is_string", comparatorRule(t, "$.s", "IsString", true), true},
		{"is_boolean", comparatorRule(t, "$.b", "IsBoolean", true), true},
		{"is_timestamp", comparatorRule(t, "$.ts", "IsTimestamp", true), true},
		{"is_timestamp_plain_string", comparatorRule(t, "$.s", "IsTimestamp", true), false},

		// Missing left-hand reference is false, not an error.
		{"missing_lhs", comparatorRule(t, "$.ghost", "StringEquals", "x"), false},
		{"missing_lhs_null", comparatorRule(t, "$.ghost", "IsNull", true), false},

		// Path variants resolve the right-hand side against the document.
		{"string_equals_path", pathRule(t, "$.s", "StringEqualsPath", "$.peer"), true},
		{"numeric_greater_path", pathRule(t, "$.n", "NumericGreaterThanPath", "$.f"), true},
		{"path_rhs_missing", pathRule(t, "$.s", "StringEqualsPath", "$.ghost"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := evalChoiceRule(&tc.rule, doc)
			if err != nil {
				t.Fatalf("evalChoiceRule error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCombinators(t *testing.T) {
	doc := map[string]any{"a": int64(1), "b": "x"}
	a := comparatorRule(t, "$.a", "NumericEquals", int64(1))
	b := comparatorRule(t, "$.b", "StringEquals", "x")
	miss := comparatorRule(t, "$.a", "NumericEquals", int64(2))

	and := machine.ChoiceRule{And: []machine.ChoiceRule{a, b}}
	if ok, _ := evalChoiceRule(&and, doc); !ok {
		t.Fatalf("And must match")
	}
	and = machine.ChoiceRule{And: []machine.ChoiceRule{a, miss}}
	if ok, _ := evalChoiceRule(&and, doc); ok {
		t.Fatalf("And with one false clause must not match")
	}
	or := machine.ChoiceRule{Or: []machine.ChoiceRule{miss, b}}
	if ok, _ := evalChoiceRule(&or, doc); !ok {
		t.Fatalf("Or must match")
	}
	not := machine.ChoiceRule{Not: &miss}
	if ok, _ := evalChoiceRule(&not, doc); !ok {
		t.Fatalf("Not must invert")
	}
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"", "", true},
		{"*", "anything", true},
		{"foo*", "foobar", true},
		{"*bar", "foobar", true},
		{"f*o*r", "foobar", true},
		{"foo", "foo", true},
		{"foo", "foobar", false},
		{`lit\*eral`, "lit*eral", true},
		{`lit\*eral`, "litXeral", false},
		{"a*a", "aa", true},
		{"a*a", "a", false},
		{"**", "x", true},
	}
	for _, tc := range cases {
		if got := globMatch(tc.pattern, tc.s); got != tc.want {
			t.Fatalf("globMatch(%q, %q)=%v, want %v", tc.pattern, tc.s, got, tc.want)
		}
	}
}
