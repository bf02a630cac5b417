package matchmaker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/merchantnet/matchd-go/internal/feedback"
	"github.com/merchantnet/matchd-go/internal/index"
	"github.com/merchantnet/matchd-go/internal/merchant"
)

// fakeGateway scripts Complete and Embed replies and counts calls.
type fakeGateway struct {
	mu            sync.Mutex
	completeFn    func(system, user string) (string, error)
	embedFn       func(text string) ([]float32, error)
	completeCalls int
}

func (f *fakeGateway) Complete(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.completeCalls++
	f.mu.Unlock()
	if f.completeFn == nil {
		return "no", nil
	}
	return f.completeFn(system, user)
}

func (f *fakeGateway) Embed(_ context.Context, text string) ([]float32, error) {
	if f.embedFn == nil {
		return []float32{0, 0}, nil
	}
	return f.embedFn(text)
}

func (f *fakeGateway) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completeCalls
}

const datasetCSV = `merchant_id,city,mcc_code,message,mcc_description
123,São Paulo,5462,Procuro alguém que faça doces para festas na zona leste,Doceria da Ana
456,São Paulo,5812,Faço doces e bolos para festas e eventos,Cantina do Zé
789,São Paulo,5499,Vendo salgados para festas e aniversários,Salgados do Bairro
999,Campinas,5021,Conserto móveis antigos,Marcenaria do João
`

func loadStore(t *testing.T) *merchant.Store {
	t.Helper()
	s, err := merchant.Load(strings.NewReader(datasetCSV))
	if err != nil {
		t.Fatalf("load dataset: %v", err)
	}
	return s
}

// buildIndex loads a flat index placing 456 nearest, then 789, then 999.
func buildIndex(t *testing.T) index.Index {
	t.Helper()
	f := index.NewFlat(2)
	ctx := context.Background()
	vecs := map[string][]float32{
		"123": {0, 0},
		"456": {1, 0},
		"789": {2, 0},
		"999": {9, 0},
	}
	for id, v := range vecs {
		if err := f.Upsert(ctx, id, v); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	return f
}

func Test_FindMatches_VectorPath(t *testing.T) {
	t.Parallel()
	m := New(loadStore(t), &fakeGateway{}, buildIndex(t), Options{})

	matches, err := m.FindMatches(context.Background(), "123", "quero doces para festas", feedback.NewMemoryLedger())
	if err != nil {
		t.Fatalf("find matches: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("want 3 matches, got %d", len(matches))
	}
	if matches[0].ID != "456" || matches[1].ID != "789" || matches[2].ID != "999" {
		t.Errorf("unexpected order: %v", matches)
	}
	if matches[0].Name != "Cantina do Zé" || matches[0].City != "São Paulo" {
		t.Errorf("display fields not mapped: %+v", matches[0])
	}
	for _, match := range matches {
		if match.ID == "123" {
			t.Error("requester must never appear in its own results")
		}
	}
}

func Test_FindMatches_HeuristicCityFromStore(t *testing.T) {
	t.Parallel()
	// City-only scoring: the requester's city comes from its dataset
	// record, not from the message. 456 (São Paulo) has two same-city
	// neighbours; 999 (Campinas) has none, whatever its message says.
	opts := Options{Weights: Weights{City: 10, MinScore: 5}}

	m := New(loadStore(t), &fakeGateway{}, nil, opts)
	matches, err := m.FindMatches(context.Background(), "456", "doces para festas em São Paulo", feedback.NewMemoryLedger())
	if err != nil {
		t.Fatalf("find matches: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("want 2 same-city matches for 456, got %v", matches)
	}

	matches, err = m.FindMatches(context.Background(), "999", "doces para festas em São Paulo", feedback.NewMemoryLedger())
	if err != nil {
		t.Fatalf("find matches: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("want no same-city matches for 999, got %v", matches)
	}
}

func Test_FindMatches_UnknownRequester(t *testing.T) {
	t.Parallel()
	m := New(loadStore(t), &fakeGateway{}, buildIndex(t), Options{})

	matches, err := m.FindMatches(context.Background(), "000", "qualquer coisa", feedback.NewMemoryLedger())
	if err != nil {
		t.Fatalf("find matches: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("want empty result for unknown requester, got %v", matches)
	}
}

func Test_FindMatches_SkipsStaleIndexIDs(t *testing.T) {
	t.Parallel()
	idx := buildIndex(t)
	// An id that exists in the index but not in the dataset.
	if err := idx.Upsert(context.Background(), "ghost", []float32{0.5, 0}); err != nil {
		t.Fatalf("upsert ghost: %v", err)
	}
	m := New(loadStore(t), &fakeGateway{}, idx, Options{})

	matches, err := m.FindMatches(context.Background(), "123", "doces", feedback.NewMemoryLedger())
	if err != nil {
		t.Fatalf("find matches: %v", err)
	}
	for _, match := range matches {
		if match.ID == "ghost" {
			t.Error("stale index id must be skipped")
		}
	}
	if len(matches) != 3 {
		t.Errorf("want 3 real matches, got %d", len(matches))
	}
}

func Test_FindMatches_LimitRespected(t *testing.T) {
	t.Parallel()
	m := New(loadStore(t), &fakeGateway{}, buildIndex(t), Options{Limit: 2})

	matches, err := m.FindMatches(context.Background(), "123", "doces", feedback.NewMemoryLedger())
	if err != nil {
		t.Fatalf("find matches: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("want 2 matches, got %d", len(matches))
	}
}

func Test_FindMatches_FeedbackLiftsCandidate(t *testing.T) {
	t.Parallel()
	ledger := feedback.NewMemoryLedger()
	ctx := context.Background()
	// Positive feedback whose message overlaps 999's message lifts it past
	// nearer candidates.
	for range 2 {
		if err := ledger.Record(ctx, feedback.Entry{
			UserID:  "123",
			Message: "Conserto móveis antigos",
			Verdict: feedback.Positive,
		}); err != nil {
			t.Fatalf("record feedback: %v", err)
		}
	}

	m := New(loadStore(t), &fakeGateway{}, buildIndex(t), Options{})
	matches, err := m.FindMatches(ctx, "123", "doces", ledger)
	if err != nil {
		t.Fatalf("find matches: %v", err)
	}
	if matches[0].ID != "999" {
		t.Errorf("positive feedback should lift 999 to the top, got %v", matches)
	}
	// The rest keep their similarity order.
	if matches[1].ID != "456" || matches[2].ID != "789" {
		t.Errorf("unbiased candidates must keep order: %v", matches)
	}
}

func Test_FindMatches_NegativeFeedbackDemotes(t *testing.T) {
	t.Parallel()
	ledger := feedback.NewMemoryLedger()
	ctx := context.Background()
	if err := ledger.Record(ctx, feedback.Entry{
		UserID:  "123",
		Message: "Faço doces e bolos para festas e eventos",
		Verdict: feedback.Negative,
	}); err != nil {
		t.Fatalf("record feedback: %v", err)
	}

	m := New(loadStore(t), &fakeGateway{}, buildIndex(t), Options{})
	matches, err := m.FindMatches(ctx, "123", "doces", ledger)
	if err != nil {
		t.Fatalf("find matches: %v", err)
	}
	if matches[len(matches)-1].ID != "456" {
		t.Errorf("negative feedback should demote 456 to the bottom, got %v", matches)
	}
}

func Test_FindMatches_OtherUsersFeedbackIgnored(t *testing.T) {
	t.Parallel()
	ledger := feedback.NewMemoryLedger()
	ctx := context.Background()
	if err := ledger.Record(ctx, feedback.Entry{
		UserID:  "456",
		Message: "Conserto móveis antigos",
		Verdict: feedback.Positive,
	}); err != nil {
		t.Fatalf("record feedback: %v", err)
	}

	m := New(loadStore(t), &fakeGateway{}, buildIndex(t), Options{})
	matches, err := m.FindMatches(ctx, "123", "doces", ledger)
	if err != nil {
		t.Fatalf("find matches: %v", err)
	}
	if matches[0].ID != "456" {
		t.Errorf("another user's feedback must not reorder results: %v", matches)
	}
}

// errIndex always fails Search.
type errIndex struct{}

func (errIndex) Upsert(context.Context, string, []float32) error { return nil }
func (errIndex) Search(context.Context, []float32, int, string) ([]string, error) {
	return nil, errors.New("backend down")
}
func (errIndex) Close() error { return nil }

func Test_FindMatches_IndexErrorPropagates(t *testing.T) {
	t.Parallel()
	m := New(loadStore(t), &fakeGateway{}, errIndex{}, Options{})
	if _, err := m.FindMatches(context.Background(), "123", "doces", feedback.NewMemoryLedger()); err == nil {
		t.Fatal("want index error to propagate")
	}
}

func Test_FindMatches_EmbedErrorPropagates(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{embedFn: func(string) ([]float32, error) {
		return nil, errors.New("embed service down")
	}}
	m := New(loadStore(t), gw, buildIndex(t), Options{})
	if _, err := m.FindMatches(context.Background(), "123", "doces", feedback.NewMemoryLedger()); err == nil {
		t.Fatal("want embed error to propagate")
	}
}
