// Package indexer implements the dataset bootstrap pipeline: it embeds every
// merchant message in the dataset and upserts the vectors into the configured
// index. Invoked by the `matchd index` CLI command and at server startup.
package indexer

import (
	"context"
	"fmt"

	"github.com/merchantnet/matchd-go/internal/embedder"
	"github.com/merchantnet/matchd-go/internal/index"
	"github.com/merchantnet/matchd-go/internal/merchant"
)

// Config holds the configuration for the indexing pipeline.
type Config struct {
	// BatchSize is the number of messages embedded per call.
	// Defaults to 32 if zero.
	BatchSize int
}

// Pipeline orchestrates the load → embed → upsert flow for a merchant
// dataset.
type Pipeline struct {
	// emb converts merchant messages into dense vector embeddings.
	emb embedder.Embedder

	// idx persists the embedded messages.
	idx index.Index

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(emb embedder.Embedder, idx index.Index, cfg *Config) (*Pipeline, error) {
	if emb == nil {
		return nil, fmt.Errorf("indexer: embedder must not be nil")
	}
	if idx == nil {
		return nil, fmt.Errorf("indexer: index must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &Pipeline{emb: emb, idx: idx, cfg: cfg}, nil
}

// Index embeds every record in the store and upserts its vector, keyed by
// merchant id. Re-running replaces prior vectors, so the pipeline is safe to
// repeat after dataset updates. Progress is reported via the optional
// callback. Bulk indexing is single-writer: finish it before serving
// searches against an in-process index.
func (p *Pipeline) Index(ctx context.Context, store *merchant.Store, progress func(msg string)) (int, error) {
	if progress == nil {
		progress = func(string) {}
	}

	records := store.All()
	indexed := 0
	for start := 0; start < len(records); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		texts := make([]string, len(batch))
		for i, rec := range batch {
			texts[i] = rec.Message
		}
		vecs, err := p.emb.Embed(ctx, texts)
		if err != nil {
			return indexed, fmt.Errorf("indexer: embed batch at %d: %w", start, err)
		}
		if len(vecs) != len(batch) {
			return indexed, fmt.Errorf("indexer: embed batch at %d: expected %d vectors, got %d", start, len(batch), len(vecs))
		}

		for i, rec := range batch {
			if err := p.idx.Upsert(ctx, rec.ID, vecs[i]); err != nil {
				return indexed, fmt.Errorf("indexer: upsert %s: %w", rec.ID, err)
			}
			indexed++
		}
		progress(fmt.Sprintf("indexed %d/%d merchants", indexed, len(records)))
	}
	return indexed, nil
}
