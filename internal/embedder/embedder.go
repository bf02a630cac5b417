// Package embedder converts merchant messages into dense vector embeddings
// for similarity search. Each implementation talks to a different backend
// (Ollama, OpenAI, Azure OpenAI) via plain HTTP — no additional SDK
// dependencies are required.
package embedder

import "context"

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
