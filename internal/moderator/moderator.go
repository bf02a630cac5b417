// Package moderator screens merchant messages for spam, abuse, and
// low-quality content before they reach the matchmaking agents.
package moderator

import (
	"context"
	"fmt"
	"strings"

	"github.com/merchantnet/matchd-go/internal/llm"
)

// Action is the moderation decision for a message.
type Action string

const (
	// ActionFlag marks high-risk content that must be escalated.
	ActionFlag Action = "flag"
	// ActionWarn marks low-quality content the user should rework.
	ActionWarn Action = "warn"
	// ActionAllow lets the message continue through the pipeline.
	ActionAllow Action = "allow"
)

// Default reasons used when the model gives a verdict without one.
const (
	defaultFlagReason = "inappropriate or abusive content"
	defaultWarnReason = "message too short"
)

// Verdict is the parsed moderation outcome. Reason is non-empty for flag and
// warn, empty for allow.
type Verdict struct {
	Action Action `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// systemPrompt instructs the model to answer with a verdict prefix.
const systemPrompt = `You are a conversation moderator for a smart social network. Moderate merchant messages. Respond with one of: 'flag', 'warn', or 'allow'. If flag or warn, provide a short reason after the label. Example: 'flag: spam content'.`

// Moderator screens messages via the LLM gateway.
type Moderator struct {
	gw llm.Gateway
}

// New constructs a Moderator.
func New(gw llm.Gateway) *Moderator {
	return &Moderator{gw: gw}
}

// Moderate sends the message to the model and parses the reply by prefix.
// Anything that is not recognizably flag or warn allows the message —
// moderation fails open, never closed, so an ambiguous completion cannot
// block legitimate traffic. A transport error is returned as-is.
func (m *Moderator) Moderate(ctx context.Context, message string) (Verdict, error) {
	reply, err := m.gw.Complete(ctx, systemPrompt, fmt.Sprintf("Message: %s\nModeration:", message))
	if err != nil {
		return Verdict{}, fmt.Errorf("moderator: moderate: %w", err)
	}

	lower := strings.ToLower(strings.TrimSpace(reply))
	switch {
	case strings.HasPrefix(lower, "flag"):
		reason := strings.Trim(lower[len("flag"):], ": \t")
		if reason == "" {
			reason = defaultFlagReason
		}
		return Verdict{Action: ActionFlag, Reason: reason}, nil
	case strings.HasPrefix(lower, "warn"):
		reason := strings.Trim(lower[len("warn"):], ": \t")
		if reason == "" {
			reason = defaultWarnReason
		}
		return Verdict{Action: ActionWarn, Reason: reason}, nil
	default:
		return Verdict{Action: ActionAllow}, nil
	}
}
