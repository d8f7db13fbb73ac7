package mcp

import (
	"strings"
	"testing"
)

func TestSafeToolName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"read_file", "read_file"},
		{"files.read-v2", "files.read-v2"},
		{"search files", "search_files"},
		{"a/b:c", "a_b_c"},
		{"über-tool", "_ber-tool"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SafeToolName(tt.in); got != tt.want {
			t.Errorf("SafeToolName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSafeToolNameTruncation(t *testing.T) {
	long := strings.Repeat("a", 40) + strings.Repeat("b", 40)
	got := SafeToolName(long)
	if len(got) != maxToolNameLen {
		t.Fatalf("len = %d, want %d", len(got), maxToolNameLen)
	}
	if !strings.Contains(got, "___") {
		t.Fatalf("truncated name %q lacks marker", got)
	}
	if !strings.HasPrefix(got, "aaa") || !strings.HasSuffix(got, "bbb") {
		t.Fatalf("truncation should keep head and tail: %q", got)
	}
}

func TestSafeToolNameExactLimitUntouched(t *testing.T) {
	name := strings.Repeat("x", maxToolNameLen)
	if got := SafeToolName(name); got != name {
		t.Fatalf("name at the limit changed: %q", got)
	}
}

func TestPrefixedToolName(t *testing.T) {
	if got := PrefixedToolName("github", "search"); got != "github__search" {
		t.Fatalf("got %q", got)
	}
	long := strings.Repeat("s", 80)
	if got := PrefixedToolName(long, "tool"); len(got) != maxToolNameLen {
		t.Fatalf("prefixed name over limit: %q", got)
	}
}

func TestSanitizeSchemaDropsDefaultUnderAnyOf(t *testing.T) {
	schema := map[string]any{
		"type":    "object",
		"default": map[string]any{}, // top level survives
		"properties": map[string]any{
			"mode": map[string]any{
				"anyOf": []any{
					map[string]any{"type": "string", "default": "fast"},
					map[string]any{"type": "null", "default": nil},
				},
			},
		},
	}

	out := SanitizeSchema(schema)

	if _, ok := out["default"]; !ok {
		t.Error("top-level default should survive")
	}
	branches := out["properties"].(map[string]any)["mode"].(map[string]any)["anyOf"].([]any)
	for i, branch := range branches {
		if _, ok := branch.(map[string]any)["default"]; ok {
			t.Errorf("branch %d kept its default", i)
		}
	}

	// The input map is not mutated.
	orig := schema["properties"].(map[string]any)["mode"].(map[string]any)["anyOf"].([]any)
	if _, ok := orig[0].(map[string]any)["default"]; !ok {
		t.Error("sanitization mutated the input schema")
	}
}

func TestSanitizeSchemaNestedAnyOf(t *testing.T) {
	schema := map[string]any{
		"anyOf": []any{
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"inner": map[string]any{"type": "string", "default": "x"},
				},
			},
		},
	}
	out := SanitizeSchema(schema)
	inner := out["anyOf"].([]any)[0].(map[string]any)["properties"].(map[string]any)["inner"].(map[string]any)
	if _, ok := inner["default"]; ok {
		t.Error("default nested under an anyOf branch should be dropped")
	}
}

func TestSanitizeSchemaNil(t *testing.T) {
	if SanitizeSchema(nil) != nil {
		t.Fatal("nil in, nil out")
	}
}

func TestDisplayToolName(t *testing.T) {
	if got := DisplayToolName("github", "search"); got != "github.search" {
		t.Fatalf("got %q", got)
	}
}
