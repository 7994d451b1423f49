// Package mem defines the core record types shared by the short-term
// buffer, the vector store, and the jobs that move data between them.
package mem

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MaxTurnContentLen bounds the stored length of a single turn's text.
const MaxTurnContentLen = 8000

// Turn is one utterance in a conversation. Turns live in the short-term
// buffer until promotion moves them into the vector store.
type Turn struct {
	// Role is the speaker (user or assistant)
	Role Role `json:"role"`

	// Content is the visible message text, never empty when stored
	Content string `json:"content"`

	// Timestamp is when the turn was produced
	Timestamp time.Time `json:"timestamp"`

	// UserID is the stable identifier of the human this memory belongs to
	UserID string `json:"user_id"`

	// SessionID identifies the originating transcript
	SessionID string `json:"session,omitempty"`

	// TurnNumber is the sequential position within the session
	TurnNumber int `json:"turn,omitempty"`
}

// Exchange pairs a user turn with the assistant turn that answered it.
type Exchange struct {
	User      Turn
	Assistant Turn
}

// hashSeparator joins the two halves of an exchange before hashing.
// It must stay stable: changing it invalidates every stored content hash.
const hashSeparator = "::"

// Hash returns the stable dedup fingerprint for the exchange: a sha256
// over the trimmed user and assistant text.
func (e Exchange) Hash() string {
	return ContentHash(e.User.Content, e.Assistant.Content)
}

// ContentHash computes the dedup fingerprint for a (user, assistant) text pair.
func ContentHash(userText, assistantText string) string {
	content := strings.TrimSpace(userText) + hashSeparator + strings.TrimSpace(assistantText)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Truncate clamps s to at most max bytes.
func Truncate(s string, max int) string {
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}
