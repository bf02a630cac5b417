package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"

	"github.com/merchantnet/matchd-go/internal/embedder"
	"github.com/merchantnet/matchd-go/internal/escalation"
	"github.com/merchantnet/matchd-go/internal/feedback"
	"github.com/merchantnet/matchd-go/internal/index"
	"github.com/merchantnet/matchd-go/internal/indexer"
	"github.com/merchantnet/matchd-go/internal/llm"
	"github.com/merchantnet/matchd-go/internal/matchmaker"
	"github.com/merchantnet/matchd-go/internal/merchant"
	"github.com/merchantnet/matchd-go/internal/moderator"
	"github.com/merchantnet/matchd-go/internal/orchestrator"
	"github.com/merchantnet/matchd-go/internal/provider"
	"github.com/merchantnet/matchd-go/internal/router"
)

// defaultDatasetPath is the merchant CSV used when MATCHD_MERCHANT_DATA is unset.
const defaultDatasetPath = "data/merchants.csv"

// loadStore reads the merchant dataset from MATCHD_MERCHANT_DATA or the
// default path.
func loadStore() (*merchant.Store, error) {
	path := getEnvOrDefault("MATCHD_MERCHANT_DATA", defaultDatasetPath)
	store, err := merchant.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load merchant dataset %q: %w", path, err)
	}
	return store, nil
}

// openLedger opens the feedback ledger. MATCHD_FEEDBACK_DB overrides the
// default path (~/.matchd/feedback.db); "disabled" selects the in-memory
// ledger so nothing is persisted. A failure to open the SQLite store degrades
// to the in-memory ledger with a warning rather than refusing to start.
func openLedger(log *slog.Logger) (feedback.Ledger, func()) {
	dbPath := os.Getenv("MATCHD_FEEDBACK_DB")
	if dbPath == "disabled" {
		log.Info("feedback: persistence disabled via MATCHD_FEEDBACK_DB=disabled")
		return feedback.NewMemoryLedger(), func() {}
	}

	if dbPath == "" {
		var err error
		dbPath, err = feedback.DefaultDBPath()
		if err != nil {
			log.Warn("feedback: could not resolve default DB path, using in-memory ledger", slog.Any("error", err))
			return feedback.NewMemoryLedger(), func() {}
		}
	}

	ledger, err := feedback.Open(dbPath)
	if err != nil {
		log.Warn("feedback: failed to open store, using in-memory ledger", slog.Any("error", err))
		return feedback.NewMemoryLedger(), func() {}
	}
	log.Info("feedback: store opened", slog.String("path", dbPath))
	return ledger, func() { _ = ledger.Close() }
}

// matchOptionsFromEnv reads the matchmaker tunables. Unset values fall back
// to the matchmaker's own defaults.
func matchOptionsFromEnv() matchmaker.Options {
	w := matchmaker.DefaultWeights()
	return matchmaker.Options{
		TopK:    getEnvInt("MATCH_TOP_K", 0),
		Limit:   getEnvInt("MATCH_LIMIT", 0),
		Workers: getEnvInt("MATCH_WORKERS", 0),
		Weights: matchmaker.Weights{
			Promo:    getEnvInt("MATCH_PROMO_WEIGHT", w.Promo),
			City:     getEnvInt("MATCH_CITY_WEIGHT", w.City),
			Word:     getEnvInt("MATCH_WORD_WEIGHT", w.Word),
			Intent:   getEnvInt("MATCH_INTENT_WEIGHT", w.Intent),
			MinScore: getEnvInt("MATCH_MIN_SCORE", w.MinScore),
		},
	}
}

// pipelineDeps bundles the wired pipeline with the dependencies the serve
// command needs for readiness probes.
type pipelineDeps struct {
	// Orch is the fully wired orchestrator.
	Orch *orchestrator.Orchestrator
	// Index is the vector index, nil when VECTOR_BACKEND=none.
	Index index.Index
	// ChatModel is the shared chat model backend.
	ChatModel model.ToolCallingChatModel
	// Cleanup closes the index and the feedback ledger.
	Cleanup func()
}

// buildPipeline wires the full agent pipeline: model provider, embedder,
// vector index, matchmaker, and orchestrator.
func buildPipeline(ctx context.Context, log *slog.Logger) (*pipelineDeps, error) {
	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise model provider: %w", err)
	}
	log.Info("provider initialised", slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", "ollama")))

	// Embeddings are only needed when a vector backend is configured; the
	// gateway tolerates a nil embedder on the heuristic path.
	var emb embedder.Embedder
	if getEnvOrDefault("VECTOR_BACKEND", "flat") != string(index.BackendNone) {
		if err := embedder.ValidateForSearch(log); err != nil {
			return nil, fmt.Errorf("embedding configuration: %w", err)
		}
		emb, err = embedder.NewFromEnv()
		if err != nil {
			return nil, fmt.Errorf("initialise embedder: %w", err)
		}
	}

	gw, err := llm.NewClient(chatModel, emb)
	if err != nil {
		return nil, fmt.Errorf("initialise gateway: %w", err)
	}

	idx, err := index.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise vector backend: %w", err)
	}

	store, err := loadStore()
	if err != nil {
		if idx != nil {
			_ = idx.Close()
		}
		return nil, err
	}
	log.Info("merchant dataset loaded", slog.Int("records", store.Len()))

	// The flat backend lives in-process, so it must be seeded from the
	// dataset on every start. Server-side backends are populated once via
	// `matchd index` instead.
	if _, ok := idx.(*index.Flat); ok && emb != nil {
		pipe, err := indexer.NewPipeline(emb, idx, nil)
		if err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("seed flat index: %w", err)
		}
		n, err := pipe.Index(ctx, store, func(msg string) { log.Debug(msg) })
		if err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("seed flat index: %w", err)
		}
		log.Info("flat index seeded", slog.Int("merchants", n))
	}

	ledger, closeLedger := openLedger(log)

	mm := matchmaker.New(store, gw, idx, matchOptionsFromEnv())
	orch := orchestrator.New(
		router.New(gw),
		moderator.New(gw),
		mm,
		escalation.New(),
		ledger,
	)

	cleanup := func() {
		closeLedger()
		if idx != nil {
			_ = idx.Close()
		}
	}
	return &pipelineDeps{
		Orch:      orch,
		Index:     idx,
		ChatModel: chatModel,
		Cleanup:   cleanup,
	}, nil
}

// getEnvOrDefault returns the env value for key, or fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env value for key parsed as int, or fallback when
// unset or unparsable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
