package loader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const yamlDef = `
StartAt: Hello
States:
  Hello:
    Type: Pass
    Result:
      n: 42
      f: 2.5
    End: true
`

func TestParse_YAML(t *testing.T) {
	doc, err := Parse([]byte(yamlDef))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	obj := doc.(map[string]any)
	if obj["StartAt"] != "Hello" {
		t.Fatalf("StartAt=%v", obj["StartAt"])
	}
	result := obj["States"].(map[string]any)["Hello"].(map[string]any)["Result"].(map[string]any)
	if result["n"] != json.Number("42") || result["f"] != json.Number("2.5") {
		t.Fatalf("numbers did not survive as json.Number: %v", result)
	}
}

func TestParseJSON(t *testing.T) {
	doc, err := ParseJSON([]byte(`{"StartAt":"A","States":{"A":{"Type":"Succeed"}}}`))
	if err != nil {
		t.Fatalf("ParseJSON error: %v", err)
	}
	if doc.(map[string]any)["StartAt"] != "A" {
		t.Fatalf("doc=%v", doc)
	}
	if _, err := ParseJSON([]byte(`{broken`)); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateSchema(t *testing.T) {
	good, err := Parse([]byte(yamlDef))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if err := ValidateSchema(good); err != nil {
		t.Fatalf("ValidateSchema(good): %v", err)
	}

	cases := []string{
		`{"States":{"A":{"Type":"Succeed"}}}`,                             // missing StartAt
		`{"StartAt":"A","States":{}}`,                                     // empty States
		`{"StartAt":"A","States":{"A":{"Type":"Teleport"}}}`,              // unknown Type
		`{"StartAt":"A","States":{"A":{"Type":"Pass","InputPath":"a"}}}`,  // path without $
		`{"StartAt":"A","States":{"A":{"Type":"Parallel","Branches":[]}}}`, // zero branches
	}
	for _, raw := range cases {
		doc, err := ParseJSON([]byte(raw))
		if err != nil {
			t.Fatalf("ParseJSON(%q) error: %v", raw, err)
		}
		if err := ValidateSchema(doc); err == nil {
			t.Fatalf("ValidateSchema accepted %s", raw)
		}
	}
}

func TestLoadMachine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.yaml")
	if err := os.WriteFile(path, []byte(yamlDef), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := LoadMachine(path)
	if err != nil {
		t.Fatalf("LoadMachine error: %v", err)
	}
	if m.StartAt != "Hello" {
		t.Fatalf("StartAt=%q", m.StartAt)
	}

	jsonPath := filepath.Join(dir, "hello.json")
	if err := os.WriteFile(jsonPath, []byte(`{"StartAt":"A","States":{"A":{"Type":"Succeed"}}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadMachine(jsonPath); err != nil {
		t.Fatalf("LoadMachine(json) error: %v", err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("StartAt: Ghost\nStates:\n  A:\n    Type: Succeed\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadMachine(bad); err == nil {
		t.Fatalf("LoadMachine must reject unknown StartAt")
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"a.yaml", "sub/b.yaml", "sub/deep/c.yaml", "sub/readme.md"} {
		full := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte("x: 1\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	got, err := Discover(dir, []string{"**/*.yaml", "*.yaml"})
	if err != nil {
		t.Fatalf("Discover error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.yaml"),
		filepath.Join(dir, "sub", "b.yaml"),
		filepath.Join(dir, "sub", "deep", "c.yaml"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Discover=%v, want %v", got, want)
	}
}
