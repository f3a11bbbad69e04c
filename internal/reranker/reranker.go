// Package reranker provides the precision stage of two-stage retrieval.
//
// The coarse recall stage (vector similarity) maximizes recall over the
// whole corpus; reranking scores each (query, passage) pair jointly and
// keeps only the most relevant few. Output ordering is deterministic: stable
// sort by score descending, ties broken by original candidate order.
package reranker

import (
	"context"
	"sort"
)

// Document is a rerank candidate.
type Document struct {
	// ID identifies the candidate to the caller.
	ID string
	// Content is the passage text scored against the query.
	Content string
	// Score is the original similarity score from the recall stage.
	Score float32
}

// ScoredDocument is a candidate with its rerank score.
type ScoredDocument struct {
	Document
	// RerankScore is the cross-encoded relevance score.
	RerankScore float32
	// OriginalRank is the candidate's position before reranking (0-indexed).
	OriginalRank int
}

// Reranker reorders candidates by relevance to a query.
type Reranker interface {
	// Rank scores each candidate against the query and returns the top K
	// by descending score. An empty candidate slice returns empty without
	// invoking any scoring model. Ties keep original order.
	Rank(ctx context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error)

	// Close releases any resources held by the scoring backend.
	Close() error
}

// sortAndTruncate orders scored candidates by descending score with
// original-order tie-breaking, then truncates to topK.
func sortAndTruncate(scored []ScoredDocument, topK int) []ScoredDocument {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].RerankScore != scored[j].RerankScore {
			return scored[i].RerankScore > scored[j].RerankScore
		}
		return scored[i].OriginalRank < scored[j].OriginalRank
	})
	if topK > 0 && topK < len(scored) {
		scored = scored[:topK]
	}
	return scored
}
