// Package router classifies inbound merchant messages into routing labels.
// The label decides which downstream agent handles the message.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/merchantnet/matchd-go/internal/llm"
)

// Label is a routing category for a merchant message.
type Label string

const (
	// LabelPartnership marks requests for partnerships or joint ventures.
	LabelPartnership Label = "partnership_request"
	// LabelPromotion marks requests for social media marketing help.
	LabelPromotion Label = "social_media_promotion"
	// LabelService marks other requests for services or information.
	LabelService Label = "service_request"
	// LabelModeration marks content that needs the moderation gate.
	LabelModeration Label = "moderation"
	// LabelFallback marks messages that fit no other category.
	LabelFallback Label = "fallback"
)

// Known reports whether the label is one of the five routing categories.
// Model completions are free text, so callers must normalize unknown labels
// before branching on them.
func (l Label) Known() bool {
	switch l {
	case LabelPartnership, LabelPromotion, LabelService, LabelModeration, LabelFallback:
		return true
	}
	return false
}

// systemPrompt instructs the model to answer with exactly one label.
const systemPrompt = `You are a conversation router for a merchant social network. Classify merchant messages into one of these categories:
- 'partnership_request': Requests for business partnerships, collaborations, or joint ventures
- 'social_media_promotion': Requests for help with social media marketing, Instagram, Facebook, or other platform promotion
- 'service_request': Other requests for services, help, or information
- 'moderation': Inappropriate, abusive, or spam content that needs moderation
- 'fallback': Only use if the message doesn't fit any other category

Examples:
- "preciso de ajuda com divulgação no insta" -> social_media_promotion
- "quero aumentar meus seguidores" -> social_media_promotion
- "preciso de um fornecedor" -> partnership_request
- "como faço para vender mais?" -> service_request
- "seu lixo" -> moderation

Respond with only the classification label in lowercase.`

// Router classifies messages via the LLM gateway.
type Router struct {
	gw llm.Gateway
}

// New constructs a Router.
func New(gw llm.Gateway) *Router {
	return &Router{gw: gw}
}

// Classify sends the message to the model and parses the first
// whitespace-delimited token of the reply, lower-cased, as the label.
// An empty completion degrades to fallback. The returned label may be
// outside the known set — callers normalize via Known(). A transport error
// is returned as-is so the caller can pick its degrade path.
func (r *Router) Classify(ctx context.Context, message string) (Label, error) {
	reply, err := r.gw.Complete(ctx, systemPrompt, fmt.Sprintf("Message: %s\nClassification:", message))
	if err != nil {
		return "", fmt.Errorf("router: classify: %w", err)
	}
	fields := strings.Fields(reply)
	if len(fields) == 0 {
		return LabelFallback, nil
	}
	return Label(strings.ToLower(fields[0])), nil
}
