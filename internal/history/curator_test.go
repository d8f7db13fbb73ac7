package history

import (
	"testing"

	"github.com/lodestone-ai/lodestone/pkg/genai"
)

func userTurn(text string) genai.Content {
	return genai.Content{Role: genai.RoleUser, Parts: []genai.Part{genai.NewTextPart(text)}}
}

func modelTurn(parts ...genai.Part) genai.Content {
	return genai.Content{Role: genai.RoleModel, Parts: parts}
}

func functionTurn(name string) genai.Content {
	return genai.Content{Role: genai.RoleFunction, Parts: []genai.Part{
		genai.NewFunctionResponsePart(&genai.FunctionResponse{Name: name, Response: map[string]any{"output": "ok"}}),
	}}
}

func roles(contents []genai.Content) []genai.Role {
	out := make([]genai.Role, 0, len(contents))
	for _, c := range contents {
		out = append(out, c.Role)
	}
	return out
}

func TestIsValidModelTurn(t *testing.T) {
	tests := []struct {
		name string
		turn genai.Content
		want bool
	}{
		{"text", modelTurn(genai.NewTextPart("hi")), true},
		{"functionCall", modelTurn(genai.NewFunctionCallPart(&genai.FunctionCall{Name: "ls"})), true},
		{"inlineData", modelTurn(genai.NewInlineDataPart("image/png", []byte{1})), true},
		{"empty", modelTurn(), false},
		{"emptyText", modelTurn(genai.NewTextPart("")), false},
		{"thoughtOnly", modelTurn(genai.NewThoughtPart("**Plan** thinking")), false},
		{"thoughtPlusText", modelTurn(genai.NewThoughtPart("**Plan** x"), genai.NewTextPart("done")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidModelTurn(tt.turn); got != tt.want {
				t.Errorf("IsValidModelTurn = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCuratePassesValidHistoryThrough(t *testing.T) {
	h := []genai.Content{
		userTurn("hello"),
		modelTurn(genai.NewTextPart("hi there")),
		userTurn("list files"),
		modelTurn(genai.NewFunctionCallPart(&genai.FunctionCall{Name: "list_directory"})),
		functionTurn("list_directory"),
		modelTurn(genai.NewTextPart("done")),
	}
	curated := Curate(h)
	if len(curated) != len(h) {
		t.Fatalf("valid history shrank: %v", roles(curated))
	}
}

func TestCurateDropsInvalidRunAndTriggeringUserTurn(t *testing.T) {
	h := []genai.Content{
		userTurn("first"),
		modelTurn(genai.NewTextPart("fine")),
		userTurn("second"),
		modelTurn(genai.NewThoughtPart("**Stall** no output")),
	}
	curated := Curate(h)
	want := []genai.Role{genai.RoleUser, genai.RoleModel}
	got := roles(curated)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
	if curated[0].Parts[0].Text != "first" {
		t.Errorf("wrong surviving user turn: %q", curated[0].Parts[0].Text)
	}
}

func TestCurateDropsWholeInvalidRun(t *testing.T) {
	// One invalid turn poisons the entire consecutive model run.
	h := []genai.Content{
		userTurn("go"),
		modelTurn(genai.NewTextPart("part one")),
		modelTurn(), // invalid
		modelTurn(genai.NewTextPart("part three")),
	}
	curated := Curate(h)
	if len(curated) != 0 {
		t.Fatalf("expected empty history, got %v", roles(curated))
	}
}

func TestCurateKeepsEarlierTurnsAcrossRuns(t *testing.T) {
	h := []genai.Content{
		userTurn("first"),
		modelTurn(genai.NewTextPart("ok")),
		functionTurn("tool"),
		modelTurn(), // new run after the function turn, invalid
	}
	curated := Curate(h)
	// The function turn bounds the run: only the empty model turn and
	// the user turn before it go.
	got := roles(curated)
	want := []genai.Role{genai.RoleModel, genai.RoleFunction}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCurateIdempotent(t *testing.T) {
	h := []genai.Content{
		userTurn("a"),
		modelTurn(genai.NewTextPart("ok")),
		userTurn("b"),
		modelTurn(genai.NewThoughtPart("**Hmm** nothing")),
		userTurn("c"),
		modelTurn(genai.NewTextPart("fine")),
	}
	once := Curate(h)
	twice := Curate(once)
	if len(once) != len(twice) {
		t.Fatalf("curation not idempotent: %v then %v", roles(once), roles(twice))
	}
	for i := range once {
		if once[i].Role != twice[i].Role {
			t.Fatalf("curation not idempotent at %d: %v vs %v", i, once[i].Role, twice[i].Role)
		}
	}
}

func TestCurateEmptyHistory(t *testing.T) {
	if got := Curate(nil); len(got) != 0 {
		t.Fatalf("expected empty, got %v", roles(got))
	}
}

func TestTokenLimit(t *testing.T) {
	if got := TokenLimit("gemini-1.5-pro"); got != 2_097_152 {
		t.Errorf("gemini-1.5-pro: got %d", got)
	}
	if got := TokenLimit("gemini-2.5-pro"); got != 1_048_576 {
		t.Errorf("gemini-2.5-pro: got %d", got)
	}
	if got := TokenLimit("gemini-pro-vision"); got != 12_288 {
		t.Errorf("gemini-pro-vision: got %d", got)
	}
	if got := TokenLimit("some-future-model"); got != DefaultTokenLimit {
		t.Errorf("unknown model: got %d, want default", got)
	}
}
