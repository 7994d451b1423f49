package mem

import "time"

// Importance ranks how strongly a memory should be weighted at recall time.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// SourceType identifies what kind of speaker or process produced a memory.
type SourceType string

const (
	// SourceTypeUser marks text the user wrote
	SourceTypeUser SourceType = "user"

	// SourceTypeAssistant marks text the assistant wrote
	SourceTypeAssistant SourceType = "assistant"

	// SourceTypeSystem marks denormalized summary points combining both
	// halves of an exchange
	SourceTypeSystem SourceType = "system"

	// SourceTypeInferred marks fragments extracted from free-form logs
	SourceTypeInferred SourceType = "inferred"
)

// Payload is the metadata stored alongside a memory point's vector.
// Field names match the vector store wire format.
type Payload struct {
	UserID     string     `json:"user_id"`
	Text       string     `json:"text"`
	Date       string     `json:"date"`
	Tags       []string   `json:"tags"`
	Importance Importance `json:"importance"`
	Source     string     `json:"source"`
	SourceType SourceType `json:"source_type"`
	Category   string     `json:"category"`
	Confidence string     `json:"confidence"`
	Verified   bool       `json:"verified"`
	CreatedAt  time.Time  `json:"created_at"`

	// Access tracking, incremented on every successful retrieval match
	AccessCount  int       `json:"access_count"`
	LastAccessed time.Time `json:"last_accessed"`

	// Conversation threading
	ConversationID string `json:"conversation_id,omitempty"`
	TurnNumber     int    `json:"turn_number,omitempty"`
	SessionID      string `json:"session_id,omitempty"`

	// ContentHash is the dedup fingerprint of the producing exchange.
	// At most one non-system point per (user_id, content_hash) should exist.
	ContentHash string `json:"content_hash,omitempty"`

	// Summary points carry excerpts of both halves for display without a join
	UserMessage string `json:"user_message,omitempty"`
	AIResponse  string `json:"ai_response,omitempty"`
}

// MemoryPoint is one durable, embedded, searchable record in the vector store.
type MemoryPoint struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// HasTag reports whether the payload carries the given tag.
func (p Payload) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
