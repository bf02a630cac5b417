package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant-backed index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements Index backed by a Qdrant instance.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// payloadKeyID is the payload field carrying the original merchant id.
// Qdrant point ids must be UUIDs or integers, so merchant ids are mapped to
// deterministic UUIDs and the original id travels in the payload.
const payloadKeyID = "merchant_id"

// NewQdrantIndex creates a new QdrantIndex, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use Index.
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	idx := &QdrantIndex{client: client, cfg: cfg}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (x *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := x.client.CollectionExists(ctx, x.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: x.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     x.cfg.VectorSize,
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", x.cfg.Collection, err)
	}
	return nil
}

// pointID maps a merchant id to a stable UUID so repeated upserts of the
// same merchant overwrite the same point.
func pointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

// Upsert stores or replaces the embedding for the given merchant id.
func (x *QdrantIndex) Upsert(ctx context.Context, id string, vector []float32) error {
	if id == "" {
		return fmt.Errorf("qdrant: upsert: empty id")
	}
	_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.cfg.Collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointID(id)),
			Vectors: qdrant.NewVectors(vector...),
			Payload: qdrant.NewValueMap(map[string]interface{}{payloadKeyID: id}),
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %s: %w", id, err)
	}
	return nil
}

// Search returns the k nearest merchant ids, nearest first. The exclusion is
// pushed into the query filter so the limit is not wasted on the requester's
// own point.
func (x *QdrantIndex) Search(ctx context.Context, query []float32, k int, exclude string) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	limit := uint64(k)
	req := &qdrant.QueryPoints{
		CollectionName: x.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if exclude != "" {
		req.Filter = &qdrant.Filter{
			MustNot: []*qdrant.Condition{
				qdrant.NewMatch(payloadKeyID, exclude),
			},
		}
	}

	results, err := x.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		p := r.Payload
		if p == nil {
			continue
		}
		v, ok := p[payloadKeyID]
		if !ok {
			continue
		}
		ids = append(ids, v.GetStringValue())
	}
	return ids, nil
}

// Ping probes the Qdrant instance using its native HealthCheck RPC.
func (x *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := x.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (x *QdrantIndex) Close() error {
	return x.client.Close()
}
