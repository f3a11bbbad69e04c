package vectorstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/answerd/internal/config"
)

// NewCollection creates a Collection for the configured provider.
//
//   - "chromem" (default): embedded persistent store, no external services
//   - "qdrant": external Qdrant server over gRPC
func NewCollection(cfg *config.Config, logger *zap.Logger) (Collection, error) {
	switch cfg.VectorStore.Provider {
	case config.VectorStoreChromem, "":
		return NewChromemCollection(ChromemConfig{
			PersistPath:    cfg.Chroma.PersistPath,
			CollectionName: cfg.Chroma.CollectionName,
			VectorSize:     cfg.Chroma.VectorSize,
			Compress:       cfg.Chroma.Compress,
		}, logger)
	case config.VectorStoreQdrant:
		return NewQdrantCollection(QdrantConfig{
			Host:           cfg.Qdrant.Host,
			Port:           cfg.Qdrant.Port,
			CollectionName: cfg.Qdrant.CollectionName,
			VectorSize:     cfg.Qdrant.VectorSize,
			UseTLS:         cfg.Qdrant.UseTLS,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", cfg.VectorStore.Provider)
	}
}
