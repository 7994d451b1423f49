package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Checkpoint records how far into a transcript file capture has read.
type Checkpoint struct {
	// Offset is the byte position of the next unread line
	Offset int64 `json:"offset"`

	// Size is the file size observed at checkpoint time
	Size int64 `json:"size"`

	// UpdatedAt is when the checkpoint was written
	UpdatedAt time.Time `json:"updated_at"`
}

// State maps transcript paths to their checkpoints.
type State map[string]Checkpoint

// LoadState reads the checkpoint state file. A missing or corrupt file
// yields an empty state: capture then re-reads from the start, which is
// safe because promotion deduplicates.
func LoadState(path string) State {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}
	}
	return state
}

// SaveState persists the checkpoint state file.
func SaveState(path string, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode capture state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write capture state: %w", err)
	}
	return nil
}
