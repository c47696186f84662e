package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/huskychat/huskychat/internal/models"
	"github.com/huskychat/huskychat/internal/types"
)

// The corpus is split across many fixed-capacity shard tables instead of
// one large table. A registry table maps shard names to ordinals and row
// counts; ListShards pages over the registry and Store appends to the
// newest shard, rolling over to a fresh one at capacity.

type VectorStoreConfig struct {
	ConnString    string
	TablePrefix   string
	VectorDim     int
	ShardCapacity int
	Embedder      types.Embedder
}

type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

var _ types.VectorStore = (*VectorStore)(nil)

// Shard names are interpolated into SQL, so only registry-shaped names are
// ever accepted.
var shardNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*_batch_[0-9]+$`)

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TablePrefix == "" {
		config.TablePrefix = "documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // Default for OpenAI embeddings
	}
	if config.ShardCapacity == 0 {
		config.ShardCapacity = 25
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	// Shard registry
	registry := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s_shards (
			name TEXT PRIMARY KEY,
			ordinal INTEGER NOT NULL UNIQUE,
			chunk_count INTEGER NOT NULL DEFAULT 0
		)`, vs.config.TablePrefix)

	_, err = vs.pool.Exec(ctx, registry)
	if err != nil {
		return fmt.Errorf("failed to create shard registry: %v", err)
	}

	return nil
}

// ShardName returns the table name for a shard ordinal.
func (vs *VectorStore) ShardName(ordinal int) string {
	return ShardName(vs.config.TablePrefix, ordinal)
}

func ShardName(prefix string, ordinal int) string {
	return fmt.Sprintf("%s_batch_%d", prefix, ordinal)
}

// ListShards returns one page of shard names ordered by ordinal.
func (vs *VectorStore) ListShards(ctx context.Context, limit, offset int) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT name FROM %s_shards
		ORDER BY ordinal
		LIMIT $1 OFFSET $2`, vs.config.TablePrefix)

	rows, err := vs.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list shards: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan shard name: %v", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// Query runs a cosine nearest-neighbor search against one shard table.
func (vs *VectorStore) Query(ctx context.Context, shard string, embedding []float32, k int) ([]models.DocumentHit, error) {
	if !shardNamePattern.MatchString(shard) {
		return nil, fmt.Errorf("invalid shard name: %q", shard)
	}
	if k <= 0 {
		k = 10
	}

	query := fmt.Sprintf(`
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, shard)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query shard %s: %v", shard, err)
	}
	defer rows.Close()

	var hits []models.DocumentHit
	for rows.Next() {
		hit := models.DocumentHit{Shard: shard}
		err := rows.Scan(
			&hit.ID,
			&hit.Content,
			&hit.Metadata,
			&hit.Similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

// Store embeds and appends document chunks, rolling over to a new shard
// table whenever the current one reaches capacity.
func (vs *VectorStore) Store(ctx context.Context, docs []models.ProcessedDocument) error {
	if vs.config.Embedder == nil {
		return fmt.Errorf("store is read-only: no embedder configured")
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	ordinal, count, err := vs.openShard(ctx, tx)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		cleanTitle := sanitizeUTF8(doc.Title)

		for i, chunk := range doc.Chunks {
			if count >= vs.config.ShardCapacity {
				ordinal, count, err = vs.createShard(ctx, tx, ordinal+1)
				if err != nil {
					return err
				}
			}

			cleanChunk := sanitizeUTF8(chunk)
			id := fmt.Sprintf("%s_%d", doc.ID, i)

			embedding, err := vs.config.Embedder.Embed(ctx, cleanChunk)
			if err != nil {
				return fmt.Errorf("failed to create embedding: %v", err)
			}

			metadata := map[string]interface{}{
				"title":       cleanTitle,
				"url":         doc.URL,
				"chunk_index": i,
			}
			for k, v := range doc.Metadata {
				metadata[k] = v
			}

			shard := vs.ShardName(ordinal)
			stmt := fmt.Sprintf(`
				INSERT INTO %s (id, content, embedding, metadata)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE SET
					content = EXCLUDED.content,
					embedding = EXCLUDED.embedding,
					metadata = EXCLUDED.metadata`, shard)

			_, err = tx.Exec(ctx, stmt, id, cleanChunk, pgvector.NewVector(embedding), metadata)
			if err != nil {
				return fmt.Errorf("failed to insert chunk into %s: %v", shard, err)
			}
			count++

			bump := fmt.Sprintf(
				"UPDATE %s_shards SET chunk_count = $1 WHERE ordinal = $2",
				vs.config.TablePrefix)
			if _, err := tx.Exec(ctx, bump, count, ordinal); err != nil {
				return fmt.Errorf("failed to update shard registry: %v", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// openShard returns the newest shard's ordinal and row count, creating the
// first shard when the registry is empty.
func (vs *VectorStore) openShard(ctx context.Context, tx pgx.Tx) (int, int, error) {
	query := fmt.Sprintf(`
		SELECT ordinal, chunk_count FROM %s_shards
		ORDER BY ordinal DESC
		LIMIT 1`, vs.config.TablePrefix)

	var ordinal, count int
	err := tx.QueryRow(ctx, query).Scan(&ordinal, &count)
	if errors.Is(err, pgx.ErrNoRows) {
		return vs.createShard(ctx, tx, 1)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read shard registry: %v", err)
	}
	return ordinal, count, nil
}

// createShard creates the shard table, its cosine index, and the registry row.
func (vs *VectorStore) createShard(ctx context.Context, tx pgx.Tx, ordinal int) (int, int, error) {
	shard := vs.ShardName(ordinal)

	create := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT,
			embedding vector(%d),
			metadata JSONB
		)`, shard, vs.config.VectorDim)
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, 0, fmt.Errorf("failed to create shard %s: %v", shard, err)
	}

	index := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`, shard, shard)
	if _, err := tx.Exec(ctx, index); err != nil {
		return 0, 0, fmt.Errorf("failed to index shard %s: %v", shard, err)
	}

	register := fmt.Sprintf(`
		INSERT INTO %s_shards (name, ordinal, chunk_count)
		VALUES ($1, $2, 0)
		ON CONFLICT (name) DO NOTHING`, vs.config.TablePrefix)
	if _, err := tx.Exec(ctx, register, shard, ordinal); err != nil {
		return 0, 0, fmt.Errorf("failed to register shard %s: %v", shard, err)
	}

	return ordinal, 0, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
