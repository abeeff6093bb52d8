package machine

import "github.com/hussainpithawala/go-slm/jsonpath"

// ChoiceRule is one rule of a Choice state: either a comparator applied to
// a Variable, or a boolean combinator over nested rules. Next is set only
// on top-level rules.
type ChoiceRule struct {
	Variable    jsonpath.Path
	HasVariable bool

	// Operator is one of the comparator names below; empty for combinators.
	Operator string
	// Value is the literal right-hand operand. For *Path comparators
	// ValuePath holds the parsed right-hand reference instead.
	Value     any
	ValuePath jsonpath.Path

	And []ChoiceRule
	Or  []ChoiceRule
	Not *ChoiceRule

	Next string
}

// Combinator reports whether the rule is And/Or/Not rather than a comparator.
func (r *ChoiceRule) Combinator() bool {
	return len(r.And) > 0 || len(r.Or) > 0 || r.Not != nil
}

// Comparator operator names. The Path variants ("<op>Path", resolved against
// the current document) are not listed here; pathVariant admits them.
var comparatorOps = map[string]bool{
	"StringEquals":            true,
	"StringLessThan":          true,
	"StringGreaterThan":       true,
	"StringLessThanEquals":    true,
	"StringGreaterThanEquals": true,
	"StringMatches":           true,

	"NumericEquals":            true,
	"NumericLessThan":          true,
	"NumericGreaterThan":       true,
	"NumericLessThanEquals":    true,
	"NumericGreaterThanEquals": true,

	"BooleanEquals": true,

	"TimestampEquals":            true,
	"TimestampLessThan":          true,
	"TimestampGreaterThan":       true,
	"TimestampLessThanEquals":    true,
	"TimestampGreaterThanEquals": true,

	"IsNull":      true,
	"IsPresent":   true,
	"IsNumeric":   true,
	"IsString":    true,
	"IsBoolean":   true,
	"IsTimestamp": true,
}

// pathVariant reports whether op accepts a reference-path right-hand side
// via the "<op>Path" spelling. Predicates take a boolean, not a path.
func pathVariant(op string) bool {
	switch op {
	case "IsNull", "IsPresent", "IsNumeric", "IsString", "IsBoolean", "IsTimestamp", "StringMatches":
		return false
	default:
		return comparatorOps[op]
	}
}
