// Package llm wraps the chat model and embedder behind one narrow gateway so
// the agent layer stays independent of the eino API surface.
package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/merchantnet/matchd-go/internal/embedder"
)

// Gateway is the LLM surface consumed by the agents. Implementations must be
// safe to call from multiple goroutines.
type Gateway interface {
	// Complete sends a single-turn prompt and returns the model's text reply.
	Complete(ctx context.Context, system, user string) (string, error)

	// Embed converts one text into its embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client implements Gateway on top of an eino chat model and an Embedder.
type Client struct {
	// model is the chat backend constructed by the provider factory.
	model model.ToolCallingChatModel

	// emb converts text to vectors. May be nil when vector search is
	// disabled; Embed then returns an error.
	emb embedder.Embedder
}

// NewClient constructs a Client. The embedder may be nil when vector search
// is disabled.
func NewClient(m model.ToolCallingChatModel, emb embedder.Embedder) (*Client, error) {
	if m == nil {
		return nil, fmt.Errorf("llm: chat model must not be nil")
	}
	return &Client{model: m, emb: emb}, nil
}

// Complete sends a system + user message pair and returns the reply content.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}
	resp, err := c.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("llm: generate: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("llm: generate: empty response")
	}
	return resp.Content, nil
}

// Embed converts one text into its embedding vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.emb == nil {
		return nil, fmt.Errorf("llm: embed: no embedder configured")
	}
	vecs, err := c.emb.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("llm: embed: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("llm: embed: expected 1 vector, got %d", len(vecs))
	}
	return vecs[0], nil
}
