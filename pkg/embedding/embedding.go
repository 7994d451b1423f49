// Package embedding defines the embedding provider contract. Providers
// turn text into fixed-length vectors; everything else about the model is
// a black box.
package embedding

import "context"

// MaxInputLen bounds the text sent per embedding request.
const MaxInputLen = 8192

// Provider is the interface all embedding adapters must implement.
type Provider interface {
	// Embed returns one embedding per input text, same order. Inputs
	// longer than MaxInputLen are truncated by the adapter.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// TruncateInputs clamps each text to MaxInputLen.
func TruncateInputs(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		if len(t) > MaxInputLen {
			t = t[:MaxInputLen]
		}
		out[i] = t
	}
	return out
}
