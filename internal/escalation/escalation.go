// Package escalation is the terminal handoff path to human review.
package escalation

// Record is the result of escalating a message to a human operator.
type Record struct {
	Action   string `json:"action"`
	Reason   string `json:"reason"`
	Operator string `json:"operator"`
}

const (
	actionEscalate  = "escalate"
	defaultReason   = "Message requires human review due to complexity or risk."
	defaultOperator = "human_operator_1"
)

// Agent produces escalation records. Pure and deterministic; a production
// deployment would also enqueue an operator notification here.
type Agent struct{}

// New constructs an Agent.
func New() *Agent {
	return &Agent{}
}

// Escalate hands the message off to the configured human operator.
func (a *Agent) Escalate(_, _ string) Record {
	return Record{
		Action:   actionEscalate,
		Reason:   defaultReason,
		Operator: defaultOperator,
	}
}
