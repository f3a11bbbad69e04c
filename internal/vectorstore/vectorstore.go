// Package vectorstore provides the persistent knowledge-record collection.
//
// A Collection stores pre-embedded knowledge records and serves the coarse
// recall stage of retrieval: similarity search by raw vector. The query path
// is read-only; records are written by the ingestion pipeline only.
//
// Implementations:
//   - ChromemCollection: embedded chromem-go store (default, no external deps)
//   - QdrantCollection: external Qdrant server over gRPC
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidRecord indicates a record missing its ID or content.
	ErrInvalidRecord = errors.New("invalid knowledge record")

	// ErrConnectionFailed indicates the store backend is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")
)

// KnowledgeRecord is one retrievable unit of knowledge: an indexed text
// passage plus its vector and provenance. Records are created at ingestion
// and immutable afterward.
type KnowledgeRecord struct {
	// ID is the unique record key, assigned at ingestion; upserts with the
	// same ID replace the previous record.
	ID string

	// Content is the text the model will read.
	Content string

	// SourceMetadata is a human-readable provenance string used for
	// citation, e.g. "Source: policy.pdf, Chunk: 1".
	SourceMetadata string

	// Embedding is the record's vector. Its dimensionality is fixed per
	// deployment and must match the embedding provider's output dimension;
	// that invariant is enforced at configuration time.
	Embedding []float32
}

// Validate checks the record's required fields.
func (r KnowledgeRecord) Validate() error {
	if r.ID == "" {
		return errors.New("record ID cannot be empty")
	}
	if r.Content == "" {
		return errors.New("record content cannot be empty")
	}
	return nil
}

// Collection is a persistent, queryable store of knowledge records.
type Collection interface {
	// EnsureExists creates the backing collection if absent. Idempotent.
	EnsureExists(ctx context.Context) error

	// Upsert writes records, idempotent by ID (last write wins). Consumed
	// by the ingestion pipeline, not the query path.
	Upsert(ctx context.Context, records []KnowledgeRecord) error

	// Search returns up to topK records ordered best-first by the store's
	// similarity metric. An empty or absent collection yields an empty
	// slice, never an error.
	Search(ctx context.Context, vector []float32, topK int) ([]KnowledgeRecord, error)

	// Close releases backend resources.
	Close() error
}
