package reranker

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/answerd/internal/config"
)

// New creates a Reranker for the configured provider.
//
//   - "tei": cross-encoder served by text-embeddings-inference
//   - "lexical" (default): in-process term-overlap scoring
func New(cfg *config.Config, logger *zap.Logger) (Reranker, error) {
	switch cfg.Reranker.Provider {
	case config.RerankerTEI:
		return NewCrossEncoder(CrossEncoderConfig{
			Endpoint:          cfg.Reranker.Endpoint,
			Timeout:           cfg.Reranker.Timeout.Duration(),
			RequestsPerSecond: cfg.Reranker.RequestsPerSecond,
		}, logger)
	case config.RerankerLexical, "":
		return NewLexicalReranker(), nil
	default:
		return nil, fmt.Errorf("unsupported reranker provider: %s (supported: tei, lexical)", cfg.Reranker.Provider)
	}
}
