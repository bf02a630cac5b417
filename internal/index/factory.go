package index

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// Backend selects a vector index implementation.
type Backend string

const (
	// BackendNone disables vector search; matching falls back to heuristics.
	BackendNone Backend = "none"
	// BackendFlat is the in-process exact scan.
	BackendFlat Backend = "flat"
	// BackendQdrant uses a Qdrant server over gRPC.
	BackendQdrant Backend = "qdrant"
	// BackendPostgres uses Postgres with the pgvector extension.
	BackendPostgres Backend = "postgres"
)

// NewFromEnv constructs an Index by reading backend configuration from
// environment variables. VECTOR_BACKEND selects the backend.
//
// Environment variables:
//
//	VECTOR_BACKEND     = none | flat | qdrant | postgres (default: flat)
//
//	Qdrant:   QDRANT_HOST (default: localhost), QDRANT_PORT (default: 6334),
//	          QDRANT_COLLECTION (default: merchants), QDRANT_API_KEY, QDRANT_TLS
//	Postgres: POSTGRES_DSN, POSTGRES_TABLE (default: merchant_embeddings)
//
//	Shared:   EMBEDDING_DIMENSIONS (default: 384)
//
// A nil Index with a nil error is returned for BackendNone; callers must
// treat a nil index as "vector search disabled".
func NewFromEnv(ctx context.Context) (Index, error) {
	backend := Backend(getEnvOrDefault("VECTOR_BACKEND", string(BackendFlat)))
	dims := getEnvInt("EMBEDDING_DIMENSIONS", 384)

	switch backend {
	case BackendNone:
		return nil, nil
	case BackendFlat:
		return NewFlat(dims), nil
	case BackendQdrant:
		return NewQdrantIndex(ctx, &QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "merchants"),
			VectorSize: uint64(dims),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
	case BackendPostgres:
		return NewPostgresIndex(ctx, &PostgresConfig{
			DSN:        os.Getenv("POSTGRES_DSN"),
			Table:      getEnvOrDefault("POSTGRES_TABLE", defaultTable),
			VectorSize: dims,
		})
	default:
		return nil, fmt.Errorf("index: unknown backend %q — valid values: none, flat, qdrant, postgres", backend)
	}
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
