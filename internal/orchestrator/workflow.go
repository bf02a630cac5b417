package orchestrator

import "github.com/merchantnet/matchd-go/internal/feedback"

// Input is one inbound merchant message plus optional feedback on a prior
// result.
type Input struct {
	// Message is the merchant's free-text message.
	Message string `json:"message"`
	// UserID is the requesting merchant's id.
	UserID string `json:"user_id"`
	// Feedback is an optional thumbs-up/thumbs-down verdict on the
	// previous result for this user.
	Feedback string `json:"feedback,omitempty"`
	// Metadata carries arbitrary client key-value pairs stored alongside
	// feedback.
	Metadata map[string]string `json:"metadata,omitempty"`
	// History carries prior conversation turns stored alongside feedback.
	History []feedback.Turn `json:"history,omitempty"`
}

// Step is one entry in the per-request workflow trace. Only the fields
// relevant to the recorded agent are set.
type Step struct {
	AgentName        string   `json:"agent_name"`
	Classification   string   `json:"classification,omitempty"`
	Matches          []string `json:"matches,omitempty"`
	ModerationAction string   `json:"moderation_action,omitempty"`
	ModerationReason string   `json:"moderation_reason,omitempty"`
	EscalationAction string   `json:"escalation_action,omitempty"`
	EscalationReason string   `json:"escalation_reason,omitempty"`
	Operator         string   `json:"operator,omitempty"`
}

// Output is the orchestration result returned to the caller.
type Output struct {
	// Response is the user-facing natural-language reply.
	Response string `json:"response"`
	// SourceAgentResponse is the raw internal response of the agent that
	// produced the reply, kept for observability.
	SourceAgentResponse string `json:"source_agent_response"`
	// Workflow is the ordered trace of every agent invoked.
	Workflow []Step `json:"agent_workflow"`
	// Feedback echoes the feedback carried by the request, if any.
	Feedback string `json:"feedback,omitempty"`
}

// Names recorded in the workflow trace.
const (
	agentRouter     = "RouterAgent"
	agentModerator  = "ModeratorAgent"
	agentMatchmaker = "MatchmakerAgent"
	agentEscalation = "HumanEscalationAgent"
)
