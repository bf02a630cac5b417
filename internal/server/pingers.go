package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// LLMPinger probes an LLM backend by sending a minimal single-message generate
// request. It satisfies the Pinger interface and is used by GET /api/ready.
type LLMPinger struct {
	// model is the chat model to probe.
	model model.ToolCallingChatModel
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.ToolCallingChatModel, name string) *LLMPinger {
	return &LLMPinger{model: m, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping sends a one-word generate request to the model backend. This consumes
// a handful of tokens, which is acceptable at readiness-probe frequency.
func (p *LLMPinger) Ping(ctx context.Context) error {
	msgs := []*schema.Message{
		schema.UserMessage("ping"),
	}
	resp, err := p.model.Generate(ctx, msgs)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// IndexPinger adapts a vector index with a Ping method into the Pinger
// interface. Both the Qdrant and Postgres indexes expose such a method.
type IndexPinger struct {
	// ping is the underlying reachability probe.
	ping func(ctx context.Context) error
	// name identifies the backend in readiness responses.
	name string
}

// NewIndexPinger constructs an IndexPinger for any index exposing Ping.
func NewIndexPinger(idx interface{ Ping(ctx context.Context) error }, name string) *IndexPinger {
	return &IndexPinger{ping: idx.Ping, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *IndexPinger) Name() string { return p.name }

// Ping delegates to the underlying index probe.
func (p *IndexPinger) Ping(ctx context.Context) error {
	return p.ping(ctx)
}
