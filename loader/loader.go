// Package loader turns serialized definitions into the generic documents
// the builder consumes: YAML or JSON text in, normalized JSON-like value
// out, with an optional schema check up front.
package loader

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/hussainpithawala/go-slm/machine"
)

//go:embed schema/statemachine.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("statemachine.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("statemachine.schema.json")
	})
	return schema, schemaErr
}

// Parse decodes definition text (YAML or its JSON subset) into a generic
// document. Numbers survive as json.Number so integers round-trip without
// float formatting.
func Parse(b []byte) (any, error) {
	var raw any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	return normalize(raw)
}

// ParseJSON decodes strict JSON definition text.
func ParseJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	return v, nil
}

// normalize runs the YAML value through a JSON round-trip, producing the
// same shapes a JSON decode would (map[string]any, []any, json.Number).
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize definition: %w", err)
	}
	return ParseJSON(b)
}

// Load reads and parses one definition file, choosing the decoder by
// extension (.json is strict JSON; anything else is YAML).
func Load(path string) (any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(b)
	}
	return Parse(b)
}

// ValidateSchema checks a parsed definition document against the embedded
// state-machine schema. This catches shape errors with better positions
// than the builder; machine.Build still performs the semantic checks.
func ValidateSchema(doc any) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile embedded schema: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("definition schema: %w", err)
	}
	return nil
}

// LoadMachine is the whole path from file to validated machine.
func LoadMachine(path string) (*machine.Machine, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateSchema(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m, err := machine.Build(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Discover expands definition-file glob patterns (doublestar syntax,
// "defs/**/*.yaml") relative to root and returns the matches sorted and
// de-duplicated.
func Discover(root string, patterns []string) ([]string, error) {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	fsys := os.DirFS(root)
	seen := map[string]bool{}
	var out []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			full := filepath.Join(root, filepath.FromSlash(m))
			if seen[full] {
				continue
			}
			seen[full] = true
			out = append(out, full)
		}
	}
	sort.Strings(out)
	return out, nil
}
