package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/merchantnet/matchd-go/internal/index"
	"github.com/merchantnet/matchd-go/internal/merchant"
)

const datasetCSV = `merchant_id,city,mcc_code,message,mcc_description
1,São Paulo,5462,vendo bolos,Padaria
2,São Paulo,5812,procuro doces,Cantina
3,Campinas,5499,entregas rápidas,
`

// countingEmbedder returns one distinct vector per text and records batches.
type countingEmbedder struct {
	batches int
	err     error
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.batches++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 0}
	}
	return out, nil
}

func loadStore(t *testing.T) *merchant.Store {
	t.Helper()
	s, err := merchant.Load(strings.NewReader(datasetCSV))
	if err != nil {
		t.Fatalf("load dataset: %v", err)
	}
	return s
}

func Test_Index_AllRecords(t *testing.T) {
	t.Parallel()
	flat := index.NewFlat(2)
	p, err := NewPipeline(&countingEmbedder{}, flat, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	var msgs []string
	n, err := p.Index(context.Background(), loadStore(t), func(m string) { msgs = append(msgs, m) })
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if n != 3 {
		t.Errorf("want 3 indexed, got %d", n)
	}
	if flat.Len() != 3 {
		t.Errorf("want 3 vectors stored, got %d", flat.Len())
	}
	if len(msgs) == 0 {
		t.Error("progress callback never invoked")
	}
}

func Test_Index_Batching(t *testing.T) {
	t.Parallel()
	emb := &countingEmbedder{}
	p, err := NewPipeline(emb, index.NewFlat(2), &Config{BatchSize: 2})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	if _, err := p.Index(context.Background(), loadStore(t), nil); err != nil {
		t.Fatalf("index: %v", err)
	}
	if emb.batches != 2 {
		t.Errorf("want 2 embed batches for 3 records at size 2, got %d", emb.batches)
	}
}

func Test_Index_Rerunnable(t *testing.T) {
	t.Parallel()
	flat := index.NewFlat(2)
	p, err := NewPipeline(&countingEmbedder{}, flat, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	ctx := context.Background()
	store := loadStore(t)

	if _, err := p.Index(ctx, store, nil); err != nil {
		t.Fatalf("first index: %v", err)
	}
	if _, err := p.Index(ctx, store, nil); err != nil {
		t.Fatalf("second index: %v", err)
	}
	if flat.Len() != 3 {
		t.Errorf("re-indexing must replace vectors, not append: %d", flat.Len())
	}
}

func Test_Index_EmbedErrorPropagates(t *testing.T) {
	t.Parallel()
	p, err := NewPipeline(&countingEmbedder{err: errors.New("embed service down")}, index.NewFlat(2), nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if _, err := p.Index(context.Background(), loadStore(t), nil); err == nil {
		t.Fatal("want embed error to propagate")
	}
}

func Test_NewPipeline_NilDeps(t *testing.T) {
	t.Parallel()
	if _, err := NewPipeline(nil, index.NewFlat(2), nil); err == nil {
		t.Error("want error for nil embedder")
	}
	if _, err := NewPipeline(&countingEmbedder{}, nil, nil); err == nil {
		t.Error("want error for nil index")
	}
}
