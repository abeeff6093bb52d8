package jsonpath

// Optional is a path field as it appears in a state definition, which
// distinguishes three cases: the field is absent (default "$"), the field
// is an explicit JSON null, or the field carries a reference path.
type Optional struct {
	present bool
	null    bool
	path    Path
}

// DefaultOptional is an absent path field; it resolves as "$".
func DefaultOptional() Optional {
	return Optional{path: Root()}
}

// NullOptional is an explicit JSON null.
func NullOptional() Optional {
	return Optional{present: true, null: true}
}

// NewOptional parses a concrete reference path into an Optional.
func NewOptional(raw string) (Optional, error) {
	p, err := Parse(raw)
	if err != nil {
		return Optional{}, err
	}
	return Optional{present: true, path: p}, nil
}

// Present reports whether the field appeared in the definition at all.
func (o Optional) Present() bool { return o.present }

// Null reports whether the field was an explicit JSON null.
func (o Optional) Null() bool { return o.null }

// Path returns the effective path; for an absent field this is "$".
// Undefined when Null() is true.
func (o Optional) Path() Path {
	if !o.present {
		return Root()
	}
	return o.path
}

func (o Optional) String() string {
	if o.null {
		return "null"
	}
	return o.Path().String()
}
