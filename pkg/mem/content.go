package mem

import (
	"encoding/json"
	"strings"
)

// contentFragment is one element of a fragment-list message body.
// A fragment carries either visible text or model reasoning.
type contentFragment struct {
	Text     *string `json:"text"`
	Thinking *string `json:"thinking"`
}

// DecodeContent extracts the visible text and optional reasoning text from
// a transcript message body. The body is either a plain JSON string or a
// list of {"text": ...} / {"thinking": ...} fragments; anything else
// decodes to empty strings.
func DecodeContent(raw json.RawMessage) (text, thinking string) {
	if len(raw) == 0 {
		return "", ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return strings.TrimSpace(plain), ""
	}

	var fragments []contentFragment
	if err := json.Unmarshal(raw, &fragments); err != nil {
		return "", ""
	}

	var textParts, thinkingParts []string
	for _, f := range fragments {
		if f.Text != nil {
			textParts = append(textParts, *f.Text)
		}
		if f.Thinking != nil {
			thinkingParts = append(thinkingParts, *f.Thinking)
		}
	}

	text = strings.TrimSpace(strings.Join(textParts, ""))
	thinking = strings.TrimSpace(strings.Join(thinkingParts, "\n"))
	return text, thinking
}
