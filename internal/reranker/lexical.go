package reranker

import (
	"context"
	"strings"
)

// LexicalReranker scores candidates by term overlap with the query, blended
// with the recall-stage similarity score. It needs no external service and
// serves as the fallback when no cross-encoder endpoint is configured.
type LexicalReranker struct{}

// NewLexicalReranker creates a new LexicalReranker.
func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

// Rank scores each candidate as 50% original similarity plus 50% query-term
// overlap, then returns the top K by descending score.
func (r *LexicalReranker) Rank(ctx context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error) {
	if len(docs) == 0 {
		return []ScoredDocument{}, nil
	}
	if topK <= 0 {
		topK = len(docs)
	}

	queryTokens := tokenize(query)

	scored := make([]ScoredDocument, len(docs))
	for i, doc := range docs {
		score := doc.Score
		if len(queryTokens) > 0 {
			overlap := termOverlap(queryTokens, tokenize(doc.Content))
			score = 0.5*doc.Score + 0.5*overlap
		}
		scored[i] = ScoredDocument{
			Document:     doc,
			RerankScore:  score,
			OriginalRank: i,
		}
	}

	return sortAndTruncate(scored, topK), nil
}

// Close is a no-op; the lexical reranker holds no resources.
func (r *LexicalReranker) Close() error {
	return nil
}

// tokenize splits text into lowercase terms, dropping stopwords and terms
// shorter than three characters.
func tokenize(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isAlphanumeric(r)
	})

	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !stopwords[token] && len(token) > 2 {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true, "this": true,
	"that": true, "these": true, "those": true, "what": true, "which": true,
	"who": true, "when": true, "where": true, "why": true, "how": true,
}

// termOverlap returns the fraction of unique query terms present in the
// document, between 0.0 and 1.0.
func termOverlap(queryTokens, docTokens []string) float32 {
	if len(queryTokens) == 0 {
		return 0.0
	}

	docSet := make(map[string]bool, len(docTokens))
	for _, t := range docTokens {
		docSet[t] = true
	}

	matched := make(map[string]bool, len(queryTokens))
	unique := make(map[string]bool, len(queryTokens))
	for _, t := range queryTokens {
		unique[t] = true
		if docSet[t] {
			matched[t] = true
		}
	}

	return float32(len(matched)) / float32(len(unique))
}
