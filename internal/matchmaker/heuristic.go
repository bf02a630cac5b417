package matchmaker

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/merchantnet/matchd-go/internal/merchant"
)

// promoPrompt asks the model for a yes/no promotion call on one message.
const promoPrompt = `You decide whether a merchant message is about social media promotion or marketing. Respond with only 'yes' or 'no'.`

// seekingPattern matches messages that ask for something (Portuguese and
// English forms).
var seekingPattern = regexp.MustCompile(`(?i)(procur|precis|busc|quero|queria|alguém|alguem|need|looking for|seeking|want)`)

// offeringPattern matches messages that offer something.
var offeringPattern = regexp.MustCompile(`(?i)(faço|faco|vend|ofere|entreg|fornec|forneç|tenho|offer|sell|provid|making|we make)`)

// stopwords are high-frequency Portuguese and English words excluded from
// the shared-word count.
var stopwords = map[string]struct{}{
	"para": {}, "com": {}, "que": {}, "uma": {}, "das": {}, "dos": {},
	"pela": {}, "pelo": {}, "mais": {}, "muito": {}, "como": {}, "você": {},
	"voce": {}, "meu": {}, "minha": {}, "seu": {}, "sua": {}, "esse": {},
	"essa": {}, "este": {}, "esta": {}, "aqui": {}, "quem": {}, "alguém": {},
	"alguem": {}, "tem": {}, "the": {}, "and": {}, "for": {}, "with": {},
	"this": {}, "that": {}, "have": {}, "from": {}, "your": {}, "are": {},
	"was": {}, "will": {}, "what": {}, "who": {},
}

// heuristicCandidates scores every candidate against the requester and
// returns those above the threshold, best first. The promotion signal costs
// one model call per candidate in the worst case, so candidate scoring runs
// on a bounded worker pool; the requester's own promotion call happens once
// up front and gates the candidate calls entirely.
func (m *Matchmaker) heuristicCandidates(ctx context.Context, requester merchant.Record, message string) ([]merchant.Record, error) {
	requesterPromo, err := m.isPromotional(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("matchmaker: classify requester message: %w", err)
	}

	all := m.store.All()
	candidates := make([]merchant.Record, 0, len(all))
	for _, rec := range all {
		if rec.ID != requester.ID {
			candidates = append(candidates, rec)
		}
	}

	requesterWords := contentWords(message)
	requesterSeeking := seekingPattern.MatchString(message)
	w := m.opts.Weights

	scores := make([]int, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for i := range candidates {
		g.Go(func() error {
			cand := &candidates[i]
			score := 0
			if requesterPromo {
				candPromo, err := m.isPromotional(gctx, cand.Message)
				if err != nil {
					return fmt.Errorf("matchmaker: classify candidate %s: %w", cand.ID, err)
				}
				if candPromo {
					score += w.Promo
				}
			}
			if cand.City == requester.City {
				score += w.City
			}
			score += w.Word * sharedWordCount(requesterWords, cand.Message)
			if requesterSeeking && offeringPattern.MatchString(cand.Message) {
				score += w.Intent
			}
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Keep candidates above the threshold, remembering dataset order so
	// ties stay deterministic.
	type scored struct {
		rec      merchant.Record
		score    int
		sameCity bool
	}
	kept := make([]scored, 0, len(candidates))
	for i, rec := range candidates {
		if scores[i] < w.MinScore {
			continue
		}
		kept = append(kept, scored{rec: rec, score: scores[i], sameCity: rec.City == requester.City})
	}
	sort.SliceStable(kept, func(a, b int) bool {
		if kept[a].score != kept[b].score {
			return kept[a].score > kept[b].score
		}
		// Equal scores: same-city candidates first.
		return kept[a].sameCity && !kept[b].sameCity
	})

	out := make([]merchant.Record, len(kept))
	for i, s := range kept {
		out[i] = s.rec
	}
	return out, nil
}

// isPromotional asks the model whether the message is promotion/marketing
// related and parses a yes/no reply. An unparseable reply counts as no.
func (m *Matchmaker) isPromotional(ctx context.Context, message string) (bool, error) {
	reply, err := m.gw.Complete(ctx, promoPrompt, fmt.Sprintf("Message: %s\nPromotional:", message))
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(reply)), "yes"), nil
}

// contentWords returns the lowercased words longer than 3 characters in the
// text, minus stopwords.
func contentWords(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len([]rune(w)) <= 3 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// sharedWordCount counts how many of the requester's content words appear in
// the candidate text.
func sharedWordCount(requesterWords map[string]struct{}, candidateText string) int {
	n := 0
	for w := range contentWords(candidateText) {
		if _, ok := requesterWords[w]; ok {
			n++
		}
	}
	return n
}
