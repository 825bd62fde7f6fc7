package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

// EmbeddingCache stores face embeddings of enrollment images keyed by the
// SHA-256 digest of the image bytes.
type EmbeddingCache struct {
	pool *Pool
}

// NewEmbeddingCache creates a new PostgreSQL embedding cache.
func NewEmbeddingCache(pool *Pool) *EmbeddingCache {
	return &EmbeddingCache{pool: pool}
}

// GetEmbedding returns the cached embedding for digest.
func (c *EmbeddingCache) GetEmbedding(ctx context.Context, digest string) ([]float64, bool, error) {
	var vec pgvector.Vector
	err := c.pool.QueryRow(ctx, "SELECT embedding FROM face_embeddings WHERE digest = $1", digest).Scan(&vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query embedding: %w", err)
	}

	values := vec.Slice()
	embedding := make([]float64, len(values))
	for i, v := range values {
		embedding[i] = float64(v)
	}
	return embedding, true, nil
}

// PutEmbedding stores the embedding computed for digest.
func (c *EmbeddingCache) PutEmbedding(ctx context.Context, digest, name string, embedding []float64) error {
	values := make([]float32, len(embedding))
	for i, v := range embedding {
		values[i] = float32(v)
	}

	query := `
		INSERT INTO face_embeddings (digest, name, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (digest) DO UPDATE SET
			name = EXCLUDED.name,
			embedding = EXCLUDED.embedding,
			created_at = NOW()
	`
	if _, err := c.pool.Exec(ctx, query, digest, name, pgvector.NewVector(values)); err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

// DeleteByName drops the cached embeddings of name.
func (c *EmbeddingCache) DeleteByName(ctx context.Context, name string) (int64, error) {
	result, err := c.pool.Exec(ctx, "DELETE FROM face_embeddings WHERE name = $1", name)
	if err != nil {
		return 0, fmt.Errorf("delete embeddings: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return count, nil
}

// Count returns the number of cached embeddings.
func (c *EmbeddingCache) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_embeddings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}
