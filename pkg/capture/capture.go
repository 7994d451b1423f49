// Package capture tails session transcript files and appends newly seen
// conversation turns to the short-term buffer. It runs as a short-lived
// batch job: each run picks up where the per-file checkpoint left off.
package capture

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openclaw/memtier/pkg/errors"
	"github.com/openclaw/memtier/pkg/log"
	"github.com/openclaw/memtier/pkg/mem"
	"github.com/openclaw/memtier/pkg/mem/buffer"
)

// MaxThinkingLen bounds stored reasoning text. It is double the turn
// bound because reasoning tends to run long.
const MaxThinkingLen = 16000

// ThinkingSuffix namespaces the side buffer holding model reasoning.
const ThinkingSuffix = ":thinking"

// Options configures a capture run.
type Options struct {
	// SessionsDir is the directory of transcript files (*.jsonl)
	SessionsDir string

	// StatePath is the JSON checkpoint file
	StatePath string

	// IncludeThinking also stores model reasoning into a side buffer
	IncludeThinking bool

	// DryRun parses and checkpoints without appending to the buffer
	DryRun bool
}

// Report summarizes one capture run.
type Report struct {
	// Transcript is the file processed, empty when none was found
	Transcript string

	// NoNewData is true when the checkpoint showed nothing new to read
	NoNewData bool

	// Parsed counts qualifying user/assistant messages seen
	Parsed int

	// Appended counts turns written to the buffer
	Appended int
}

// transcriptEntry is the top-level shape of one transcript line.
type transcriptEntry struct {
	Type      string             `json:"type"`
	Timestamp string             `json:"timestamp"`
	Message   *transcriptMessage `json:"message"`
}

type transcriptMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Capturer appends new transcript turns to the short-term buffer.
type Capturer struct {
	buffer buffer.Store
	opts   Options
}

// NewCapturer creates a capture job over the given buffer store.
func NewCapturer(store buffer.Store, opts Options) *Capturer {
	return &Capturer{buffer: store, opts: opts}
}

// FindLatestTranscript returns the most recently modified *.jsonl file in
// dir, or "" when none exists.
func FindLatestTranscript(dir string) (string, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return "", fmt.Errorf("failed to list transcripts: %w", err)
	}

	var latest string
	var latestMod time.Time
	for _, path := range entries {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = path
			latestMod = info.ModTime()
		}
	}
	return latest, nil
}

// Run performs one capture pass for the user.
func (c *Capturer) Run(ctx context.Context, userID string) (Report, error) {
	if userID == "" {
		return Report{}, errors.ErrMissingUserID
	}

	transcript, err := FindLatestTranscript(c.opts.SessionsDir)
	if err != nil {
		return Report{}, err
	}
	if transcript == "" {
		log.InfoContext(ctx, "No session transcripts found", "dir", c.opts.SessionsDir)
		return Report{}, nil
	}

	report := Report{Transcript: transcript}

	state := LoadState(c.opts.StatePath)
	checkpoint := state[transcript]

	info, err := os.Stat(transcript)
	if err != nil {
		return report, fmt.Errorf("failed to stat transcript: %w", err)
	}
	if info.Size() == checkpoint.Size && checkpoint.Offset > 0 {
		report.NoNewData = true
		return report, nil
	}

	turns, thinking, endOffset, err := c.parseNewMessages(ctx, transcript, checkpoint.Offset, userID)
	if err != nil {
		return report, err
	}
	report.Parsed = len(turns)

	if !c.opts.DryRun {
		for _, turn := range turns {
			if err := c.buffer.Append(ctx, userID, turn); err != nil {
				return report, fmt.Errorf("failed to append turn: %w", err)
			}
			report.Appended++
		}
		for _, turn := range thinking {
			if err := c.buffer.Append(ctx, userID+ThinkingSuffix, turn); err != nil {
				return report, fmt.Errorf("failed to append thinking turn: %w", err)
			}
		}
	}

	// Checkpoint unconditionally, even with zero qualifying messages, so
	// noise lines are not re-scanned on the next run.
	state[transcript] = Checkpoint{
		Offset:    endOffset,
		Size:      info.Size(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := SaveState(c.opts.StatePath, state); err != nil {
		return report, err
	}

	log.InfoContext(ctx, "Capture run complete",
		"transcript", filepath.Base(transcript),
		"parsed", report.Parsed,
		"appended", report.Appended,
	)
	return report, nil
}

// parseNewMessages reads transcript lines from startOffset, returning the
// qualifying turns, any reasoning turns, and the byte offset reached.
func (c *Capturer) parseNewMessages(ctx context.Context, path string, startOffset int64, userID string) (turns, thinking []mem.Turn, endOffset int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(startOffset, 0); err != nil {
		return nil, nil, 0, fmt.Errorf("failed to seek transcript: %w", err)
	}

	sessionID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	offset := startOffset
	turnNumber := 0

	reader := bufio.NewReader(f)
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) == 0 {
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				return nil, nil, 0, fmt.Errorf("failed to read transcript: %w", readErr)
			}
			break
		}
		// Track exact bytes consumed so the checkpoint never lands
		// mid-line.
		offset += int64(len(line))

		var entry transcriptEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			// Malformed lines are skipped, never fatal.
			log.DebugContext(ctx, "Skipping unparseable transcript line", "error", err)
		} else if entry.Type == "message" && entry.Message != nil {
			role := mem.Role(entry.Message.Role)
			// Tool results and other roles are skipped explicitly.
			if role == mem.RoleUser || role == mem.RoleAssistant {
				text, reasoning := mem.DecodeContent(entry.Message.Content)
				if text != "" || (c.opts.IncludeThinking && reasoning != "") {
					timestamp := parseTimestamp(entry.Timestamp)
					turnNumber++

					if text != "" {
						turns = append(turns, mem.Turn{
							Role:       role,
							Content:    mem.Truncate(text, mem.MaxTurnContentLen),
							Timestamp:  timestamp,
							UserID:     userID,
							SessionID:  sessionID,
							TurnNumber: turnNumber,
						})
					}
					if c.opts.IncludeThinking && reasoning != "" {
						thinking = append(thinking, mem.Turn{
							Role:       role,
							Content:    mem.Truncate(reasoning, MaxThinkingLen),
							Timestamp:  timestamp,
							UserID:     userID,
							SessionID:  sessionID,
							TurnNumber: turnNumber,
						})
					}
				}
			}
		}

		if readErr != nil {
			if readErr != io.EOF {
				return nil, nil, 0, fmt.Errorf("failed to read transcript: %w", readErr)
			}
			break
		}
	}

	return turns, thinking, offset, nil
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now().UTC()
}
