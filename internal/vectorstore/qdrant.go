package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// payload keys stored alongside each point.
const (
	payloadID      = "id"
	payloadContent = "content"
	payloadSource  = "source"
)

// qdrant point IDs must be UUIDs or integers; record IDs are arbitrary
// strings, so points get a deterministic UUID derived from the record ID,
// which keeps upserts idempotent.
var qdrantIDNamespace = uuid.MustParse("8b9e3a52-7e0e-4a43-9c5d-2f1d6a0e9b11")

// QdrantConfig holds configuration for the Qdrant gRPC store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334 by default, not the 6333 REST port).
	Port int

	// CollectionName is the collection holding the knowledge records.
	CollectionName string

	// VectorSize is the expected embedding dimension.
	VectorSize int

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.CollectionName == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// QdrantCollection implements Collection against an external Qdrant server
// using the native gRPC client (binary protobuf, no REST payload limits).
type QdrantCollection struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger
}

// NewQdrantCollection creates a QdrantCollection and verifies the server is
// reachable.
func NewQdrantCollection(cfg QdrantConfig, logger *zap.Logger) (*QdrantCollection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(50 * 1024 * 1024),
				grpc.MaxCallSendMsgSize(50 * 1024 * 1024),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	logger.Info("qdrant collection connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("collection", cfg.CollectionName),
	)

	return &QdrantCollection{client: client, config: cfg, logger: logger}, nil
}

// EnsureExists creates the backing collection if absent. Idempotent.
func (c *QdrantCollection) EnsureExists(ctx context.Context) error {
	exists, err := c.client.CollectionExists(ctx, c.config.CollectionName)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", c.config.CollectionName, err)
	}
	if exists {
		return nil
	}

	err = c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.config.CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(c.config.VectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", c.config.CollectionName, err)
	}
	return nil
}

// Upsert writes records as points. The deterministic point UUID makes the
// operation idempotent by record ID, last write wins.
func (c *QdrantCollection) Upsert(ctx context.Context, records []KnowledgeRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("%w: record %d: %v", ErrInvalidRecord, i, err)
		}
		if len(rec.Embedding) != c.config.VectorSize {
			return fmt.Errorf("%w: record %q embedding has %d dimensions, collection expects %d",
				ErrInvalidRecord, rec.ID, len(rec.Embedding), c.config.VectorSize)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.NewSHA1(qdrantIDNamespace, []byte(rec.ID)).String()),
			Vectors: qdrant.NewVectors(rec.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadID:      rec.ID,
				payloadContent: rec.Content,
				payloadSource:  rec.SourceMetadata,
			}),
		}
	}

	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.config.CollectionName,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}

	c.logger.Debug("upserted records",
		zap.String("collection", c.config.CollectionName),
		zap.Int("count", len(records)),
	)
	return nil
}

// Search returns up to topK records ordered by similarity, best first.
// An empty collection yields an empty slice.
func (c *QdrantCollection) Search(ctx context.Context, vector []float32, topK int) ([]KnowledgeRecord, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if len(vector) != c.config.VectorSize {
		return nil, fmt.Errorf("query vector has %d dimensions, collection expects %d",
			len(vector), c.config.VectorSize)
	}

	points, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.config.CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", c.config.CollectionName, err)
	}

	records := make([]KnowledgeRecord, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		records = append(records, KnowledgeRecord{
			ID:             payload[payloadID].GetStringValue(),
			Content:        payload[payloadContent].GetStringValue(),
			SourceMetadata: payload[payloadSource].GetStringValue(),
		})
	}

	c.logger.Debug("searched collection",
		zap.String("collection", c.config.CollectionName),
		zap.Int("top_k", topK),
		zap.Int("results", len(records)),
	)
	return records, nil
}

// Close closes the gRPC connection.
func (c *QdrantCollection) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
