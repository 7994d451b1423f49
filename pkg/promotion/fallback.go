package promotion

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openclaw/memtier/pkg/mem"
)

// writeFallback appends every buffered turn to a local JSONL backup so an
// incomplete promotion never leaves the data only in the buffer. One JSON
// object per line, same shape as the buffered turns.
func (p *Promoter) writeFallback(userID string, turns []mem.Turn) (string, error) {
	dir := p.opts.FallbackDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create fallback dir: %w", err)
	}

	name := fmt.Sprintf("mem-backup-%s-%s.jsonl", userID, time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to open fallback file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, turn := range turns {
		if err := enc.Encode(turn); err != nil {
			return "", fmt.Errorf("failed to write fallback entry: %w", err)
		}
	}
	return path, nil
}
