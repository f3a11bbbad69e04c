// Package retrieval implements knowledge-base search: two-stage retrieval
// with formatted, citation-ready output for the conversation loop.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/answerd/internal/reranker"
	"github.com/fyrsmithlabs/answerd/internal/vectorstore"
)

// NoResultsMessage is returned verbatim when the knowledge base holds
// nothing relevant. The conversation model reads it as a definitive
// "nothing found" signal, so the wording stays fixed.
const NoResultsMessage = "No relevant information found in the knowledge base."

// Embedder is the query-embedding dependency, satisfied by
// embeddings.Service.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Config holds the two-stage retrieval parameters.
type Config struct {
	// RetrieveTopK is the candidate count of the coarse recall stage.
	RetrieveTopK int
	// RerankTopK is the survivor count of the precision stage.
	RerankTopK int
}

// Searcher answers knowledge-base queries. It is the implementation behind
// the conversation loop's search tool.
type Searcher struct {
	embedder   Embedder
	collection vectorstore.Collection
	reranker   reranker.Reranker
	config     Config
	logger     *zap.Logger
}

// NewSearcher creates a Searcher.
func NewSearcher(embedder Embedder, collection vectorstore.Collection, rr reranker.Reranker, cfg Config, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		embedder:   embedder,
		collection: collection,
		reranker:   rr,
		config:     cfg,
		logger:     logger,
	}
}

// Search embeds the query, recalls RetrieveTopK candidates from the vector
// store, reranks them down to RerankTopK, and formats the survivors as
// source-attributed text blocks. When nothing relevant exists it returns
// NoResultsMessage; infrastructure failures return an error instead.
func (s *Searcher) Search(ctx context.Context, query string) (string, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := s.collection.Search(ctx, vector, s.config.RetrieveTopK)
	if err != nil {
		return "", fmt.Errorf("searching knowledge base: %w", err)
	}
	if len(candidates) == 0 {
		s.logger.Debug("no candidates recalled", zap.String("query", query))
		return NoResultsMessage, nil
	}

	docs := make([]reranker.Document, len(candidates))
	for i, rec := range candidates {
		docs[i] = reranker.Document{
			ID:      rec.ID,
			Content: rec.Content,
		}
	}

	ranked, err := s.reranker.Rank(ctx, query, docs, s.config.RerankTopK)
	if err != nil {
		return "", fmt.Errorf("reranking candidates: %w", err)
	}
	if len(ranked) == 0 {
		return NoResultsMessage, nil
	}

	blocks := make([]string, len(ranked))
	for i, doc := range ranked {
		source := candidates[doc.OriginalRank].SourceMetadata
		blocks[i] = fmt.Sprintf("[%s]\n%s", source, doc.Content)
	}

	s.logger.Debug("knowledge search complete",
		zap.String("query", query),
		zap.Int("recalled", len(candidates)),
		zap.Int("returned", len(ranked)),
	)
	return strings.Join(blocks, "\n\n"), nil
}
