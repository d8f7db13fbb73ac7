package sessions

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lodestone-ai/lodestone/pkg/genai"
)

// SaveCheckpoint writes the curated history under an optional tag.
func SaveCheckpoint(paths *Paths, tag string, history []genai.Content) error {
	if err := paths.Ensure(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	file := paths.CheckpointFile(tag)
	tmp := file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp, file)
}

// LoadCheckpoint reads a saved history. A missing checkpoint returns
// an empty history and no error.
func LoadCheckpoint(paths *Paths, tag string) ([]genai.Content, error) {
	data, err := os.ReadFile(paths.CheckpointFile(tag))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var history []genai.Content
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return history, nil
}

// DeleteCheckpoint removes a saved history; missing is fine.
func DeleteCheckpoint(paths *Paths, tag string) error {
	err := os.Remove(paths.CheckpointFile(tag))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
