package agent

import (
	"strings"
	"testing"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeTool{name: "beta"})
	r.Register(&fakeTool{name: "alpha"})

	if _, ok := r.Get("alpha"); !ok {
		t.Fatal("alpha not found")
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatal("missing tool should not resolve")
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Fatalf("Names = %v, want sorted [alpha beta]", names)
	}
}

func TestRegistryLastWriteWins(t *testing.T) {
	r := NewRegistry(nil)
	first := &fakeTool{name: "dup"}
	second := &fakeTool{name: "dup", schema: map[string]any{"type": "object"}}
	r.Register(first)
	r.Register(second)

	got, _ := r.Get("dup")
	if got != Tool(second) {
		t.Fatal("re-registration should replace the previous tool")
	}
	if len(r.Names()) != 1 {
		t.Fatalf("expected 1 name, got %v", r.Names())
	}
}

func TestRegistryDeclarationsSorted(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeTool{name: "zeta"})
	r.Register(&fakeTool{name: "alpha", schema: map[string]any{"type": "object"}})

	decls := r.Declarations()
	if len(decls) != 2 || decls[0].Name != "alpha" || decls[1].Name != "zeta" {
		t.Fatalf("declarations wrong: %+v", decls)
	}
	if decls[0].Parameters == nil {
		t.Error("schema should pass through to Parameters")
	}
}

func TestParseDiscoveredDeclarationsBareArray(t *testing.T) {
	out := []byte(`[{"name":"grep","description":"search","parameters":{"type":"object"}}]`)
	decls, err := parseDiscoveredDeclarations(out)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(decls) != 1 || decls[0].Name != "grep" {
		t.Fatalf("got %+v", decls)
	}
}

func TestParseDiscoveredDeclarationsGrouped(t *testing.T) {
	out := []byte(`[{"function_declarations":[{"name":"a"},{"name":"b"}]},{"function_declarations":[{"name":"c"}]}]`)
	decls, err := parseDiscoveredDeclarations(out)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(decls) != 3 || decls[2].Name != "c" {
		t.Fatalf("got %+v", decls)
	}
}

func TestParseDiscoveredDeclarationsGarbage(t *testing.T) {
	if _, err := parseDiscoveredDeclarations([]byte(`{"oops"`)); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateParams(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"path"},
		"properties": map[string]any{
			"path":  map[string]any{"type": "string"},
			"limit": map[string]any{"type": "integer"},
		},
	}

	if err := ValidateParams(schema, map[string]any{"path": "/tmp"}); err != nil {
		t.Errorf("valid args rejected: %v", err)
	}
	if err := ValidateParams(schema, map[string]any{}); err == nil {
		t.Error("missing required arg accepted")
	}
	if err := ValidateParams(schema, map[string]any{"path": 42}); err == nil {
		t.Error("wrong type accepted")
	}
	if err := ValidateParams(schema, map[string]any{"path": "/a", "limit": 3}); err != nil {
		t.Errorf("integer arg rejected: %v", err)
	}
	if err := ValidateParams(nil, map[string]any{"anything": true}); err != nil {
		t.Errorf("nil schema should accept everything: %v", err)
	}
}

func TestValidateParamsErrorMentionsValidation(t *testing.T) {
	schema := map[string]any{"type": "object", "required": []any{"path"}}
	err := ValidateParams(schema, map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "params validation failed") {
		t.Fatalf("got %v", err)
	}
}
