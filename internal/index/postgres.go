package index

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register "pgx" driver
)

// PostgresConfig holds connection parameters for a Postgres/pgvector index.
type PostgresConfig struct {
	// DSN is the Postgres connection string.
	DSN string

	// Table is the table holding merchant embeddings.
	Table string

	// VectorSize is the dimensionality of stored embeddings.
	VectorSize int
}

// PostgresIndex implements Index on top of Postgres with the pgvector
// extension. Nearest-neighbour ordering and requester exclusion are pushed
// down into SQL.
type PostgresIndex struct {
	db    *sql.DB
	table string
}

// defaultTable is used when PostgresConfig.Table is empty.
const defaultTable = "merchant_embeddings"

// NewPostgresIndex opens a connection pool, enables the vector extension and
// creates the embeddings table if needed.
func NewPostgresIndex(ctx context.Context, cfg *PostgresConfig) (*PostgresIndex, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: empty DSN")
	}
	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	if err := validTableName(table); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w: %w", ErrUnavailable, err)
	}

	x := &PostgresIndex{db: db, table: table}
	if err := x.migrate(ctx, cfg.VectorSize); err != nil {
		_ = db.Close()
		return nil, err
	}
	return x, nil
}

// validTableName rejects table names that cannot be safely interpolated into
// DDL and queries. Bind parameters cannot carry identifiers, so the name is
// restricted instead.
func validTableName(name string) error {
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			continue
		}
		return fmt.Errorf("postgres: invalid table name %q", name)
	}
	return nil
}

// migrate enables pgvector and creates the table if it does not exist.
func (x *PostgresIndex) migrate(ctx context.Context, dims int) error {
	if _, err := x.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("postgres: create extension: %w", err)
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    merchant_id TEXT PRIMARY KEY,
    embedding   vector(%d) NOT NULL
)`, x.table, dims)
	if _, err := x.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// vectorLiteral renders a float32 slice in pgvector's input format,
// e.g. "[0.1,0.2,0.3]".
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.Grow(len(vec)*10 + 2)
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// Upsert stores or replaces the embedding for the given merchant id.
func (x *PostgresIndex) Upsert(ctx context.Context, id string, vector []float32) error {
	if id == "" {
		return fmt.Errorf("postgres: upsert: empty id")
	}
	q := fmt.Sprintf(`
INSERT INTO %s (merchant_id, embedding) VALUES ($1, $2::vector)
ON CONFLICT (merchant_id) DO UPDATE SET embedding = EXCLUDED.embedding`, x.table)
	if _, err := x.db.ExecContext(ctx, q, id, vectorLiteral(vector)); err != nil {
		return fmt.Errorf("postgres: upsert %s: %w", id, err)
	}
	return nil
}

// Search returns the k nearest merchant ids by Euclidean distance, nearest
// first. The <-> operator uses the pgvector L2 index when one exists.
func (x *PostgresIndex) Search(ctx context.Context, query []float32, k int, exclude string) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`
SELECT merchant_id
FROM   %s
WHERE  merchant_id != $2
ORDER  BY embedding <-> $1::vector
LIMIT  $3`, x.table)

	rows, err := x.db.QueryContext(ctx, q, vectorLiteral(query), exclude, k)
	if err != nil {
		return nil, fmt.Errorf("postgres: search: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: search scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: search rows: %w", err)
	}
	return ids, nil
}

// Ping verifies the connection pool can still reach the database.
func (x *PostgresIndex) Ping(ctx context.Context) error {
	if err := x.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (x *PostgresIndex) Close() error {
	return x.db.Close()
}
