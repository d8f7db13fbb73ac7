// Package sessions persists per-project conversation state: the
// append-only message log and curated-history checkpoints, stored
// under a directory keyed by a hash of the project path.
package sessions

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// ProjectHash keys the per-project subtree by absolute path.
func ProjectHash(projectDir string) string {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		abs = projectDir
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])
}

// Paths resolves the storage layout for one project.
type Paths struct {
	stateDir string
	hash     string
}

// NewPaths resolves the layout under stateDir for projectDir.
func NewPaths(stateDir, projectDir string) *Paths {
	return &Paths{stateDir: stateDir, hash: ProjectHash(projectDir)}
}

// TempDir is where logs and checkpoints live.
func (p *Paths) TempDir() string {
	return filepath.Join(p.stateDir, "tmp", p.hash)
}

// HistoryDir is the shadow snapshot repository root.
func (p *Paths) HistoryDir() string {
	return filepath.Join(p.stateDir, "history", p.hash)
}

// LogFile is the append-only message log.
func (p *Paths) LogFile() string {
	return filepath.Join(p.TempDir(), "logs.json")
}

// CheckpointFile names a checkpoint, optionally tagged.
func (p *Paths) CheckpointFile(tag string) string {
	name := "checkpoint.json"
	if tag != "" {
		name = fmt.Sprintf("checkpoint-%s.json", tag)
	}
	return filepath.Join(p.TempDir(), name)
}

// Ensure creates the project subtrees.
func (p *Paths) Ensure() error {
	for _, dir := range []string{p.TempDir(), p.HistoryDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
