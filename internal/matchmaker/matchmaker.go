// Package matchmaker ranks candidate merchants for a requester's message.
// Ranking runs through a vector index when one is configured, or through a
// heuristic scorer otherwise, and is re-ranked by the requester's feedback
// history in both cases.
package matchmaker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/merchantnet/matchd-go/internal/feedback"
	"github.com/merchantnet/matchd-go/internal/index"
	"github.com/merchantnet/matchd-go/internal/llm"
	"github.com/merchantnet/matchd-go/internal/logging"
	"github.com/merchantnet/matchd-go/internal/merchant"
)

// Match is one ranked partner suggestion.
type Match struct {
	ID      string `json:"merchant_id"`
	Name    string `json:"name"`
	City    string `json:"city"`
	Message string `json:"message"`
}

// Weights are the heuristic scoring tunables. They are carried over as
// configuration rather than constants because none of them were derived from
// data.
type Weights struct {
	// Promo is added when requester and candidate messages are both
	// classified as promotion/marketing-related.
	Promo int
	// City is added when the candidate shares the requester's city.
	City int
	// Word multiplies the count of shared content words.
	Word int
	// Intent is added when the requester message reads as seeking and the
	// candidate message reads as offering.
	Intent int
	// MinScore discards candidates scoring below it.
	MinScore int
}

// DefaultWeights returns the standard heuristic tunables.
func DefaultWeights() Weights {
	return Weights{Promo: 10, City: 3, Word: 2, Intent: 5, MinScore: 5}
}

// Options configures a Matchmaker.
type Options struct {
	// TopK is the candidate pool size fed into feedback re-ranking
	// (default: 10).
	TopK int
	// Limit caps the returned match list (default: 5).
	Limit int
	// Weights are the heuristic scoring tunables.
	Weights Weights
	// Workers bounds the heuristic scorer's concurrent model calls
	// (default: 4).
	Workers int
}

// Matchmaker finds partner candidates for a requester.
type Matchmaker struct {
	store *merchant.Store
	gw    llm.Gateway
	// idx is nil when no vector backend is configured; the heuristic
	// scorer is used instead.
	idx  index.Index
	opts Options
}

// New constructs a Matchmaker. idx may be nil to select the heuristic path.
func New(store *merchant.Store, gw llm.Gateway, idx index.Index, opts Options) *Matchmaker {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.Limit <= 0 {
		opts.Limit = 5
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}
	return &Matchmaker{store: store, gw: gw, idx: idx, opts: opts}
}

// FindMatches returns up to Limit ranked partner suggestions for the
// requester. An unknown requester id yields an empty result and no error —
// no match attempt is made for ids outside the dataset. The requester never
// appears in its own results. Backend faults propagate as errors so the
// caller can pick its degrade path.
func (m *Matchmaker) FindMatches(ctx context.Context, requesterID, message string, fb feedback.Reader) ([]Match, error) {
	requester, ok := m.store.ByID(requesterID)
	if !ok {
		return nil, nil
	}

	var (
		pool []merchant.Record
		err  error
	)
	if m.idx != nil {
		pool, err = m.vectorCandidates(ctx, requesterID, message)
	} else {
		pool, err = m.heuristicCandidates(ctx, requester, message)
	}
	if err != nil {
		return nil, err
	}
	if len(pool) > m.opts.TopK {
		pool = pool[:m.opts.TopK]
	}

	pool = m.rerankByFeedback(ctx, requesterID, pool, fb)

	if len(pool) > m.opts.Limit {
		pool = pool[:m.opts.Limit]
	}
	matches := make([]Match, 0, len(pool))
	for _, rec := range pool {
		matches = append(matches, Match{
			ID:      rec.ID,
			Name:    m.store.DisplayName(rec.ID),
			City:    rec.City,
			Message: rec.Message,
		})
	}
	return matches, nil
}

// vectorCandidates embeds the message and pulls the nearest candidates from
// the index, mapped back to their records. Ids present in the index but no
// longer in the dataset are skipped.
func (m *Matchmaker) vectorCandidates(ctx context.Context, requesterID, message string) ([]merchant.Record, error) {
	vec, err := m.gw.Embed(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("matchmaker: embed query: %w", err)
	}
	ids, err := m.idx.Search(ctx, vec, m.opts.TopK, requesterID)
	if err != nil {
		return nil, fmt.Errorf("matchmaker: index search: %w", err)
	}

	log := logging.FromContext(ctx)
	pool := make([]merchant.Record, 0, len(ids))
	for _, id := range ids {
		if id == requesterID {
			continue
		}
		rec, ok := m.store.ByID(id)
		if !ok {
			log.Warn("matchmaker: index returned id missing from dataset",
				slog.String("merchant_id", id))
			continue
		}
		pool = append(pool, rec)
	}
	return pool, nil
}

// rerankByFeedback stable-sorts the pool descending by the requester's
// feedback bias. Bias only reorders the already-selected pool; it cannot
// introduce candidates the similarity or heuristic stage excluded. A ledger
// read failure downgrades to no bias rather than failing the request.
func (m *Matchmaker) rerankByFeedback(ctx context.Context, requesterID string, pool []merchant.Record, fb feedback.Reader) []merchant.Record {
	if fb == nil || len(pool) == 0 {
		return pool
	}
	entries, err := fb.EntriesFor(ctx, requesterID)
	if err != nil {
		logging.FromContext(ctx).Warn("matchmaker: feedback lookup failed, ranking without bias",
			slog.String("user_id", requesterID),
			slog.Any("error", err))
		return pool
	}
	if len(entries) == 0 {
		return pool
	}

	biases := make([]int, len(pool))
	for i := range pool {
		biases[i] = feedbackBias(entries, pool[i].Message)
	}
	order := make([]int, len(pool))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return biases[order[a]] > biases[order[b]]
	})
	out := make([]merchant.Record, len(pool))
	for i, idx := range order {
		out[i] = pool[idx]
	}
	return out
}

// feedbackBias sums the requester's verdicts over entries whose message
// textually overlaps the candidate's message: +1 per positive, -1 per
// negative. Repeated identical feedback compounds additively on purpose.
func feedbackBias(entries []feedback.Entry, candidateMsg string) int {
	cand := strings.ToLower(candidateMsg)
	bias := 0
	for _, e := range entries {
		msg := strings.ToLower(e.Message)
		if msg == "" || cand == "" {
			continue
		}
		if !strings.Contains(cand, msg) && !strings.Contains(msg, cand) {
			continue
		}
		switch e.Verdict {
		case feedback.Positive:
			bias++
		case feedback.Negative:
			bias--
		}
	}
	return bias
}
