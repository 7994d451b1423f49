// Package mock provides a deterministic embedding.Provider for testing.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// DefaultDimensions is the vector size the mock produces.
const DefaultDimensions = 64

// MockProvider implements embedding.Provider with deterministic
// bag-of-words vectors: identical text always produces the identical unit
// vector, and texts sharing words score higher than unrelated ones. That
// is enough for ranking assertions without a real model.
type MockProvider struct {
	// Dimensions overrides the vector size when positive.
	Dimensions int

	// Err forces every Embed call to fail.
	Err error

	mu    sync.Mutex
	calls int
}

// NewMockProvider creates a mock embedder with the default dimensions.
func NewMockProvider() *MockProvider {
	return &MockProvider{Dimensions: DefaultDimensions}
}

// Calls returns how many Embed calls were made.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Embed returns one deterministic vector per input text.
func (m *MockProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	dims := m.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = embedText(text, dims)
	}
	return out, nil
}

func embedText(text string, dims int) []float32 {
	vec := make([]float32, dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%uint32(dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
