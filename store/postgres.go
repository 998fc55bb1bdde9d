package store

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"docqa/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore keeps every collection in its own pgvector table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(ctx context.Context, connStr string, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:   pool,
		logger: logger,
	}, nil
}

// PostgresConnString builds a postgres:// URL, escaping every component.
func PostgresConnString(host string, port int, user, password, dbName string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + dbName,
		RawQuery: url.Values{"sslmode": {"disable"}}.Encode(),
	}
	return u.String()
}

func (p *PostgresStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)`, name).Scan(&exists)
	return exists, err
}

func (p *PostgresStore) CreateCollection(ctx context.Context, name string, dimensions int, metric types.Metric) error {
	if metric != types.MetricCosine {
		return fmt.Errorf("unsupported metric %q", metric)
	}

	table := pgx.Identifier{name}.Sanitize()
	index := pgx.Identifier{name + "_embedding_idx"}.Sanitize()
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS %[1]s (
		id UUID PRIMARY KEY,
		payload JSONB NOT NULL,
		embedding vector(%[3]d) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s USING hnsw (embedding vector_cosine_ops);
	`, table, index, dimensions)

	_, err := p.pool.Exec(ctx, query)
	return err
}

// Upsert writes the records in one transaction so the batch lands completely
// or not at all.
func (p *PostgresStore) Upsert(ctx context.Context, collection string, records []types.StoredRecord) error {
	query := fmt.Sprintf(`
	INSERT INTO %s (id, payload, embedding)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET
		payload = EXCLUDED.payload,
		embedding = EXCLUDED.embedding
	`, pgx.Identifier{collection}.Sanitize())

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query, r.ID, r.Payload, pgvector.NewVector(r.Vector))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *PostgresStore) Search(ctx context.Context, collection string, queryVec []float32, limit int) ([]types.SearchHit, error) {
	query := fmt.Sprintf(`
		SELECT id::text, payload, embedding, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgx.Identifier{collection}.Sanitize())

	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(queryVec), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []types.SearchHit
	for rows.Next() {
		var (
			hit       types.SearchHit
			embedding pgvector.Vector
		)
		if err := rows.Scan(&hit.Record.ID, &hit.Record.Payload, &embedding, &hit.Score); err != nil {
			return nil, err
		}
		hit.Record.Vector = embedding.Slice()
		p.logger.Debug("search hit", "collection", collection, "id", hit.Record.ID, "score", hit.Score)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool is closed")
	}
	return nil
}
