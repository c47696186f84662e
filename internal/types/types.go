package types

import (
	"context"

	"github.com/huskychat/huskychat/internal/models"
)

// Core interfaces

// Embedder turns text into a fixed-dimension vector. Implementations must
// be deterministic for identical input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the read side of the sharded vector store.
type VectorIndex interface {
	// ListShards returns one page of shard names in stable order. A page
	// shorter than limit marks the end of the listing.
	ListShards(ctx context.Context, limit, offset int) ([]string, error)

	// Query runs a nearest-neighbor search for k results in one shard.
	Query(ctx context.Context, shard string, embedding []float32, k int) ([]models.DocumentHit, error)
}

// VectorStore adds the write side used by the ingestion pipeline.
type VectorStore interface {
	VectorIndex
	Store(ctx context.Context, docs []models.ProcessedDocument) error
	Close()
}

type Processor interface {
	Process(docs []models.Document) ([]models.ProcessedDocument, error)
}
