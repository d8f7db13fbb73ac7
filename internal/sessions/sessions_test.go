package sessions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lodestone-ai/lodestone/pkg/genai"
)

func testPaths(t *testing.T) *Paths {
	t.Helper()
	return NewPaths(t.TempDir(), "/work/project")
}

func TestProjectHashStable(t *testing.T) {
	a := ProjectHash("/work/project")
	b := ProjectHash("/work/project")
	if a != b {
		t.Fatal("hash should be deterministic")
	}
	if a == ProjectHash("/work/other") {
		t.Fatal("different projects should hash differently")
	}
	if len(a) != 64 {
		t.Fatalf("hash length %d", len(a))
	}
}

func TestPathsLayout(t *testing.T) {
	p := NewPaths("/state", "/work/project")
	hash := ProjectHash("/work/project")

	if got := p.LogFile(); got != filepath.Join("/state", "tmp", hash, "logs.json") {
		t.Errorf("log file %q", got)
	}
	if got := p.CheckpointFile(""); filepath.Base(got) != "checkpoint.json" {
		t.Errorf("untagged checkpoint %q", got)
	}
	if got := p.CheckpointFile("before-refactor"); filepath.Base(got) != "checkpoint-before-refactor.json" {
		t.Errorf("tagged checkpoint %q", got)
	}
}

func TestLoggerAppendsAndNumbers(t *testing.T) {
	paths := testPaths(t)
	l, err := NewLogger(paths, "session-1")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	if err := l.Log("user", "first"); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := l.Log("user", "second"); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := l.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].MessageID != 0 || entries[1].MessageID != 1 {
		t.Errorf("ids %d, %d", entries[0].MessageID, entries[1].MessageID)
	}
	if entries[0].Message != "first" || entries[0].Type != "user" || entries[0].SessionID != "session-1" {
		t.Errorf("entry %+v", entries[0])
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestLoggerContinuesNumberingAcrossReopen(t *testing.T) {
	paths := testPaths(t)
	l1, err := NewLogger(paths, "session-1")
	if err != nil {
		t.Fatal(err)
	}
	l1.Log("user", "a")
	l1.Log("user", "b")

	l2, err := NewLogger(paths, "session-1")
	if err != nil {
		t.Fatal(err)
	}
	l2.Log("user", "c")

	entries, _ := l2.Entries()
	if len(entries) != 3 || entries[2].MessageID != 2 {
		t.Fatalf("entries %+v", entries)
	}
}

func TestLoggerSeparatesSessions(t *testing.T) {
	paths := testPaths(t)
	l1, _ := NewLogger(paths, "session-1")
	l2, _ := NewLogger(paths, "session-2")

	l1.Log("user", "from one")
	l2.Log("user", "from two")

	entries, _ := l1.Entries()
	if len(entries) != 1 || entries[0].Message != "from one" {
		t.Fatalf("session-1 entries %+v", entries)
	}
	// Each session numbers independently from zero.
	two, _ := l2.Entries()
	if len(two) != 1 || two[0].MessageID != 0 {
		t.Fatalf("session-2 entries %+v", two)
	}
}

func TestLoggerCorruptLogStartsFresh(t *testing.T) {
	paths := testPaths(t)
	if err := paths.Ensure(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(paths.LogFile(), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	l, err := NewLogger(paths, "session-1")
	if err != nil {
		t.Fatalf("NewLogger on corrupt log: %v", err)
	}
	if err := l.Log("user", "recovered"); err != nil {
		t.Fatalf("Log: %v", err)
	}
	entries, err := l.Entries()
	if err != nil || len(entries) != 1 || entries[0].MessageID != 0 {
		t.Fatalf("entries %+v, err %v", entries, err)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	paths := testPaths(t)
	history := []genai.Content{
		{Role: genai.RoleUser, Parts: []genai.Part{genai.NewTextPart("hello")}},
		{Role: genai.RoleModel, Parts: []genai.Part{genai.NewTextPart("hi there")}},
	}

	if err := SaveCheckpoint(paths, "", history); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	got, err := LoadCheckpoint(paths, "")
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if len(got) != 2 || got[0].Parts[0].Text != "hello" || got[1].Role != genai.RoleModel {
		t.Fatalf("got %+v", got)
	}
}

func TestCheckpointTagsAreIndependent(t *testing.T) {
	paths := testPaths(t)
	a := []genai.Content{{Role: genai.RoleUser, Parts: []genai.Part{genai.NewTextPart("a")}}}
	b := []genai.Content{{Role: genai.RoleUser, Parts: []genai.Part{genai.NewTextPart("b")}}}

	SaveCheckpoint(paths, "one", a)
	SaveCheckpoint(paths, "two", b)

	got, _ := LoadCheckpoint(paths, "one")
	if len(got) != 1 || got[0].Parts[0].Text != "a" {
		t.Fatalf("got %+v", got)
	}
}

func TestLoadCheckpointMissing(t *testing.T) {
	history, err := LoadCheckpoint(testPaths(t), "nope")
	if err != nil || history != nil {
		t.Fatalf("missing checkpoint should be (nil, nil), got %v, %v", history, err)
	}
}

func TestLoadCheckpointCorrupt(t *testing.T) {
	paths := testPaths(t)
	if err := paths.Ensure(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(paths.CheckpointFile(""), []byte("{broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCheckpoint(paths, ""); err == nil {
		t.Fatal("corrupt checkpoint should error")
	}
}

func TestDeleteCheckpoint(t *testing.T) {
	paths := testPaths(t)
	SaveCheckpoint(paths, "gone", []genai.Content{{Role: genai.RoleUser}})

	if err := DeleteCheckpoint(paths, "gone"); err != nil {
		t.Fatalf("DeleteCheckpoint: %v", err)
	}
	if history, _ := LoadCheckpoint(paths, "gone"); history != nil {
		t.Fatal("checkpoint survived deletion")
	}
	// Deleting a missing checkpoint is fine.
	if err := DeleteCheckpoint(paths, "gone"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}
