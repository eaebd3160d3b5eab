package sqlintel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// CardStore persists SchemaCards and their derived embedding vectors to the
// engine's own metadata database (pgx + pgvector), separate from the target
// database being profiled. It is written to after each successful build.
// LoadCard and LoadVectors can read a stored card and its vectors back, but
// nothing in this service calls them: a fresh process always reflects and
// re-embeds from scratch. It never substitutes for reflection — Init
// Manager's ordering guarantees (§5) are unaffected; CardStore is consulted
// nowhere in the startup sequence.
type CardStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewCardStore connects to the metadata database. A nil CardStore is a valid,
// inert receiver (all methods no-op), so callers can unconditionally hold one
// even when persistence is disabled (empty metadataURL).
func NewCardStore(ctx context.Context, metadataURL string, logger *zap.Logger) (*CardStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metadataURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, metadataURL)
	if err != nil {
		return nil, fmt.Errorf("card store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("card store: ping: %w", err)
	}
	return &CardStore{pool: pool, logger: logger.Named("cardstore")}, nil
}

// Close releases the metadata connection pool. Safe to call on a nil
// receiver.
func (s *CardStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveCard upserts the serialized SchemaCard keyed by dialect, so the most
// recent card for a given dialect/database pairing can be recovered at the
// next cold start. Errors are logged and swallowed by callers (§7:
// persistence is advisory, never a reason to fail a build).
func (s *CardStore) SaveCard(ctx context.Context, card *SchemaCard) error {
	if s == nil || s.pool == nil {
		return nil
	}
	payload, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("card store: marshal card: %w", err)
	}
	const q = `
		INSERT INTO schema_card_cache (dialect, reflection_hash, payload, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (dialect) DO UPDATE SET
			reflection_hash = EXCLUDED.reflection_hash,
			payload         = EXCLUDED.payload,
			updated_at      = now()`
	if _, err := s.pool.Exec(ctx, q, card.Dialect, card.ReflectionHash, payload); err != nil {
		return fmt.Errorf("card store: save card: %w", err)
	}
	return nil
}

// LoadCard fetches the most recently persisted SchemaCard for a dialect, or
// (nil, nil) if none exists yet.
func (s *CardStore) LoadCard(ctx context.Context, dialect string) (*SchemaCard, error) {
	if s == nil || s.pool == nil {
		return nil, nil
	}
	const q = `SELECT payload FROM schema_card_cache WHERE dialect = $1`
	var payload []byte
	err := s.pool.QueryRow(ctx, q, dialect).Scan(&payload)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("card store: load card: %w", err)
	}
	var card SchemaCard
	if err := json.Unmarshal(payload, &card); err != nil {
		return nil, fmt.Errorf("card store: unmarshal card: %w", err)
	}
	return &card, nil
}

// SaveVectors upserts one generation's worth of embedded labels for a given
// kind ("table", "column", or "token"), replacing any vectors from a prior
// reflection_hash for that kind so the cache never serves stale embeddings
// alongside a newer card.
func (s *CardStore) SaveVectors(ctx context.Context, reflectionHash, kind string, labels []string, vectors [][]float32) error {
	if s == nil || s.pool == nil || len(labels) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, label := range labels {
		if i >= len(vectors) {
			break
		}
		batch.Queue(`
			INSERT INTO schema_vector_cache (reflection_hash, kind, label, embedding, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (reflection_hash, kind, label) DO UPDATE SET
				embedding  = EXCLUDED.embedding,
				updated_at = now()`,
			reflectionHash, kind, label, pgvector.NewVector(vectors[i]),
		)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range labels {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("card store: save vectors: %w", err)
		}
	}
	return nil
}

// LoadVectors returns the labels and vectors persisted for a given
// reflection_hash and kind, in no particular order. An empty result is not
// an error; it simply means this generation was never persisted (or this is
// a fresh metadata database).
func (s *CardStore) LoadVectors(ctx context.Context, reflectionHash, kind string) ([]string, [][]float32, error) {
	if s == nil || s.pool == nil {
		return nil, nil, nil
	}
	const q = `SELECT label, embedding FROM schema_vector_cache WHERE reflection_hash = $1 AND kind = $2`
	rows, err := s.pool.Query(ctx, q, reflectionHash, kind)
	if err != nil {
		return nil, nil, fmt.Errorf("card store: load vectors: %w", err)
	}
	defer rows.Close()

	var labels []string
	var vectors [][]float32
	for rows.Next() {
		var label string
		var vec pgvector.Vector
		if err := rows.Scan(&label, &vec); err != nil {
			return nil, nil, fmt.Errorf("card store: scan vector: %w", err)
		}
		labels = append(labels, label)
		vectors = append(vectors, vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("card store: iterate vectors: %w", err)
	}
	return labels, vectors, nil
}
