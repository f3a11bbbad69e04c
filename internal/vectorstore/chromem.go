package vectorstore

import (
	"context"
	"fmt"
	"os"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// metadata key for record provenance.
const metaSource = "source"

// ChromemConfig holds configuration for the embedded chromem-go store.
type ChromemConfig struct {
	// PersistPath is the directory for persistent storage.
	PersistPath string

	// CollectionName is the collection holding the knowledge records.
	CollectionName string

	// VectorSize is the expected embedding dimension. Must match the
	// embedding provider's output dimension.
	VectorSize int

	// Compress enables gzip compression for stored data.
	Compress bool
}

// Validate validates the configuration.
func (c ChromemConfig) Validate() error {
	if c.PersistPath == "" {
		return fmt.Errorf("%w: persist path required", ErrInvalidConfig)
	}
	if c.CollectionName == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemCollection implements Collection using chromem-go, an embeddable
// pure-Go vector database with gob-file persistence.
type ChromemCollection struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger
}

// NewChromemCollection creates a ChromemCollection with the given
// configuration, opening (or creating) the persistent database directory.
func NewChromemCollection(cfg ChromemConfig, logger *zap.Logger) (*ChromemCollection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if err := os.MkdirAll(cfg.PersistPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", cfg.PersistPath, err)
	}

	db, err := chromem.NewPersistentDB(cfg.PersistPath, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	logger.Info("chromem collection opened",
		zap.String("path", cfg.PersistPath),
		zap.String("collection", cfg.CollectionName),
		zap.Int("vector_size", cfg.VectorSize),
	)

	return &ChromemCollection{db: db, config: cfg, logger: logger}, nil
}

// embeddingFunc is passed to chromem wherever it demands one. All records
// and queries carry pre-computed vectors, so it must never be invoked;
// chromem would otherwise silently fall back to its OpenAI default.
func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("collection only accepts pre-computed embeddings")
}

// EnsureExists creates the backing collection if absent. Idempotent.
func (c *ChromemCollection) EnsureExists(ctx context.Context) error {
	_, err := c.db.GetOrCreateCollection(c.config.CollectionName, nil, rejectEmbedding)
	if err != nil {
		return fmt.Errorf("ensuring collection %s: %w", c.config.CollectionName, err)
	}
	return nil
}

// Upsert writes records into the collection, replacing any record with the
// same ID.
func (c *ChromemCollection) Upsert(ctx context.Context, records []KnowledgeRecord) error {
	if len(records) == 0 {
		return nil
	}
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("%w: record %d: %v", ErrInvalidRecord, i, err)
		}
		if len(rec.Embedding) != c.config.VectorSize {
			return fmt.Errorf("%w: record %q embedding has %d dimensions, collection expects %d",
				ErrInvalidRecord, rec.ID, len(rec.Embedding), c.config.VectorSize)
		}
	}

	collection, err := c.db.GetOrCreateCollection(c.config.CollectionName, nil, rejectEmbedding)
	if err != nil {
		return fmt.Errorf("getting collection: %w", err)
	}

	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		docs[i] = chromem.Document{
			ID:        rec.ID,
			Content:   rec.Content,
			Embedding: rec.Embedding,
			Metadata:  map[string]string{metaSource: rec.SourceMetadata},
		}
	}

	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}

	c.logger.Debug("upserted records",
		zap.String("collection", c.config.CollectionName),
		zap.Int("count", len(records)),
	)
	return nil
}

// Search returns up to topK records ordered by similarity, best first.
// An empty or not-yet-created collection returns an empty slice.
func (c *ChromemCollection) Search(ctx context.Context, vector []float32, topK int) ([]KnowledgeRecord, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if len(vector) != c.config.VectorSize {
		return nil, fmt.Errorf("query vector has %d dimensions, collection expects %d",
			len(vector), c.config.VectorSize)
	}

	collection := c.db.GetCollection(c.config.CollectionName, rejectEmbedding)
	if collection == nil {
		return []KnowledgeRecord{}, nil
	}

	// chromem requires nResults <= document count.
	count := collection.Count()
	if count == 0 {
		return []KnowledgeRecord{}, nil
	}
	if topK > count {
		topK = count
	}

	results, err := collection.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", c.config.CollectionName, err)
	}

	records := make([]KnowledgeRecord, len(results))
	for i, r := range results {
		records[i] = KnowledgeRecord{
			ID:             r.ID,
			Content:        r.Content,
			SourceMetadata: r.Metadata[metaSource],
			Embedding:      r.Embedding,
		}
	}

	c.logger.Debug("searched collection",
		zap.String("collection", c.config.CollectionName),
		zap.Int("top_k", topK),
		zap.Int("results", len(records)),
	)
	return records, nil
}

// Close releases resources. The chromem DB has no connection to close.
func (c *ChromemCollection) Close() error {
	return nil
}
