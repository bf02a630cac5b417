// Package orchestrator composes the agent pipeline: every message is routed
// and moderated, then branches into matchmaking, approval, or human
// escalation. Each request produces a structured workflow trace.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/merchantnet/matchd-go/internal/escalation"
	"github.com/merchantnet/matchd-go/internal/feedback"
	"github.com/merchantnet/matchd-go/internal/logging"
	"github.com/merchantnet/matchd-go/internal/matchmaker"
	"github.com/merchantnet/matchd-go/internal/moderator"
	"github.com/merchantnet/matchd-go/internal/router"
)

// User-facing responses. Replies mirror the Portuguese-language product
// surface; match summaries stay bilingual-friendly.
const (
	responseEscalated  = "Sua mensagem foi encaminhada para um operador humano."
	responseTooShort   = "Sua mensagem é muito curta. Por favor, envie mais detalhes."
	responseApproved   = "Mensagem aprovada."
	responseNoPartners = "No partners found at the moment."
	responseFallback   = "Sorry, your request was escalated to a human operator."

	sourceAllowed       = "Mensagem permitida."
	sourceNoSuggestions = "No suggestions."

	// promotionTips is prepended to match summaries for messages asking
	// for social media marketing help.
	promotionTips = "Dicas de divulgação: publique com regularidade, use fotos reais dos seus produtos e responda aos comentários. Parceiros locais podem ampliar seu alcance:"
)

// classifier routes a message into a label.
type classifier interface {
	Classify(ctx context.Context, message string) (router.Label, error)
}

// moderatorAgent screens a message.
type moderatorAgent interface {
	Moderate(ctx context.Context, message string) (moderator.Verdict, error)
}

// matcher ranks partner candidates.
type matcher interface {
	FindMatches(ctx context.Context, requesterID, message string, fb feedback.Reader) ([]matchmaker.Match, error)
}

// escalator hands a message to human review.
type escalator interface {
	Escalate(message, userID string) escalation.Record
}

// Orchestrator owns the agent pipeline and the feedback ledger for its
// lifetime. It is safe for concurrent use.
type Orchestrator struct {
	router    classifier
	moderator moderatorAgent
	matcher   matcher
	escalator escalator
	ledger    feedback.Ledger
}

// New constructs an Orchestrator. The ledger must not be nil.
func New(r classifier, m moderatorAgent, mm matcher, esc escalator, ledger feedback.Ledger) *Orchestrator {
	return &Orchestrator{
		router:    r,
		moderator: m,
		matcher:   mm,
		escalator: esc,
		ledger:    ledger,
	}
}

// Run processes one message through the pipeline and returns the response
// plus the workflow trace. Router and Moderator are independent, so their
// model calls run concurrently; the trace still records Router first.
// Feedback carried by the request is appended only after the response is
// fully determined, so a failed request leaves no visible side effect.
func (o *Orchestrator) Run(ctx context.Context, in Input) (Output, error) {
	log := logging.FromContext(ctx)

	var (
		label    router.Label
		verdict  moderator.Verdict
		routeErr error
		modErr   error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		label, routeErr = o.router.Classify(gctx, in.Message)
		return nil
	})
	g.Go(func() error {
		verdict, modErr = o.moderator.Moderate(gctx, in.Message)
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil {
		return Output{}, fmt.Errorf("orchestrator: run: %w", ctx.Err())
	}

	// A router fault degrades the label to fallback; the pipeline then
	// ends in escalation, which is always a safe terminal.
	if routeErr != nil {
		log.Warn("orchestrator: router unavailable, treating message as fallback",
			slog.Any("error", routeErr))
		label = router.LabelFallback
	}
	if !label.Known() {
		log.Debug("orchestrator: unknown label normalized to fallback",
			slog.String("label", string(label)))
		label = router.LabelFallback
	}

	out := Output{Feedback: in.Feedback}
	out.Workflow = append(out.Workflow, Step{
		AgentName:      agentRouter,
		Classification: string(label),
	})

	switch {
	case modErr != nil:
		// Moderation unavailable: the safe path is human review, not
		// letting the message through unscreened.
		log.Warn("orchestrator: moderator unavailable, escalating",
			slog.Any("error", modErr))
		o.escalate(&out, in)

	case verdict.Action == moderator.ActionFlag:
		out.Workflow = append(out.Workflow, moderationStep(verdict))
		rec := o.escalator.Escalate(in.Message, in.UserID)
		out.Workflow = append(out.Workflow, escalationStep(rec))
		out.Response = responseEscalated
		out.SourceAgentResponse = rec.Reason

	case verdict.Action == moderator.ActionWarn:
		out.Workflow = append(out.Workflow, moderationStep(verdict))
		out.Response = responseTooShort
		out.SourceAgentResponse = verdict.Reason

	default:
		out.Workflow = append(out.Workflow, moderationStep(verdict))
		o.dispatch(ctx, &out, in, label)
	}

	o.recordFeedback(ctx, in)
	return out, nil
}

// dispatch handles a message the moderator allowed, branching on its label.
func (o *Orchestrator) dispatch(ctx context.Context, out *Output, in Input, label router.Label) {
	switch label {
	case router.LabelModeration:
		// Routed to moderation but the verdict allowed it.
		out.Response = responseApproved
		out.SourceAgentResponse = sourceAllowed

	case router.LabelPartnership, router.LabelService, router.LabelPromotion:
		matches, err := o.matcher.FindMatches(ctx, in.UserID, in.Message, o.ledger)
		if err != nil {
			logging.FromContext(ctx).Warn("orchestrator: matchmaker unavailable, escalating",
				slog.Any("error", err))
			o.escalate(out, in)
			return
		}
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		out.Workflow = append(out.Workflow, Step{
			AgentName: agentMatchmaker,
			Matches:   names,
		})
		if len(matches) == 0 {
			out.Response = responseNoPartners
			out.SourceAgentResponse = sourceNoSuggestions
			return
		}
		out.Response = matchSummary(matches, label == router.LabelPromotion)
		out.SourceAgentResponse = "Suggested partner connections: " + strings.Join(names, ", ")

	default:
		o.escalate(out, in)
		out.Response = responseFallback
	}
}

// escalate appends an escalation step and sets the terminal response.
func (o *Orchestrator) escalate(out *Output, in Input) {
	rec := o.escalator.Escalate(in.Message, in.UserID)
	out.Workflow = append(out.Workflow, escalationStep(rec))
	out.Response = responseEscalated
	out.SourceAgentResponse = rec.Reason
}

// recordFeedback appends the request's feedback to the ledger. Recording
// never alters the current response, only future rankings; failures are
// logged and dropped.
func (o *Orchestrator) recordFeedback(ctx context.Context, in Input) {
	if in.Feedback == "" {
		return
	}
	log := logging.FromContext(ctx)
	verdict, err := feedback.ParseVerdict(in.Feedback)
	if err != nil {
		log.Warn("orchestrator: ignoring unparseable feedback",
			slog.String("feedback", in.Feedback),
			slog.Any("error", err))
		return
	}
	entry := feedback.Entry{
		UserID:   in.UserID,
		Message:  in.Message,
		Verdict:  verdict,
		Metadata: in.Metadata,
		History:  in.History,
	}
	if err := o.ledger.Record(ctx, entry); err != nil {
		log.Warn("orchestrator: failed to record feedback",
			slog.String("user_id", in.UserID),
			slog.Any("error", err))
	}
}

// Status reports the agent roster and a per-user feedback count snapshot for
// the status endpoint.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	snap, err := o.ledger.Snapshot(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("orchestrator: status: %w", err)
	}
	return Status{
		Agents:         []string{agentRouter, agentModerator, agentMatchmaker, agentEscalation},
		FeedbackCounts: snap,
	}, nil
}

// Status is the introspection snapshot exposed by the status endpoint.
type Status struct {
	Agents         []string       `json:"agents"`
	FeedbackCounts map[string]int `json:"feedback_memory"`
}

// matchSummary renders the user-facing match list, optionally prefixed with
// the promotion tips block.
func matchSummary(matches []matchmaker.Match, promo bool) string {
	var b strings.Builder
	if promo {
		b.WriteString(promotionTips)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Hi! We found %d nearby merchants for you:\n", len(matches))
	for _, m := range matches {
		fmt.Fprintf(&b, "- %s (%s): %s\n", m.Name, m.City, m.Message)
	}
	b.WriteString("Want an intro?")
	return b.String()
}

// moderationStep builds the trace entry for a moderation verdict.
func moderationStep(v moderator.Verdict) Step {
	return Step{
		AgentName:        agentModerator,
		ModerationAction: string(v.Action),
		ModerationReason: v.Reason,
	}
}

// escalationStep builds the trace entry for an escalation record.
func escalationStep(rec escalation.Record) Step {
	return Step{
		AgentName:        agentEscalation,
		EscalationAction: rec.Action,
		EscalationReason: rec.Reason,
		Operator:         rec.Operator,
	}
}
