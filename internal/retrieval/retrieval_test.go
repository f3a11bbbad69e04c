package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/answerd/internal/reranker"
	"github.com/fyrsmithlabs/answerd/internal/vectorstore"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

type fakeCollection struct {
	vectorstore.Collection
	records []vectorstore.KnowledgeRecord
	err     error
	gotTopK int
}

func (f *fakeCollection) Search(ctx context.Context, vector []float32, topK int) ([]vectorstore.KnowledgeRecord, error) {
	f.gotTopK = topK
	return f.records, f.err
}

func newTestSearcher(embedder Embedder, coll vectorstore.Collection, rr reranker.Reranker) *Searcher {
	return NewSearcher(embedder, coll, rr, Config{RetrieveTopK: 20, RerankTopK: 5}, nil)
}

func TestSearchNoCandidates(t *testing.T) {
	s := newTestSearcher(
		&fakeEmbedder{vector: []float32{1, 0}},
		&fakeCollection{records: nil},
		reranker.NewLexicalReranker(),
	)

	got, err := s.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, NoResultsMessage, got)
}

func TestSearchFormatsSurvivors(t *testing.T) {
	coll := &fakeCollection{records: []vectorstore.KnowledgeRecord{
		{ID: "policy.pdf_0", Content: "All refunds are processed within 14 days.", SourceMetadata: "Source: policy.pdf, Chunk: 1"},
		{ID: "misc.txt_0", Content: "The office cafeteria opens at nine.", SourceMetadata: "Source: misc.txt, Chunk: 1"},
	}}
	s := newTestSearcher(
		&fakeEmbedder{vector: []float32{1, 0}},
		coll,
		reranker.NewLexicalReranker(),
	)

	got, err := s.Search(context.Background(), "when are refunds processed")
	require.NoError(t, err)

	assert.Equal(t, 20, coll.gotTopK)
	assert.Contains(t, got, "[Source: policy.pdf, Chunk: 1]\nAll refunds are processed within 14 days.")
	assert.Contains(t, got, "[Source: misc.txt, Chunk: 1]\nThe office cafeteria opens at nine.")
	// Best match first.
	assert.True(t, strings.HasPrefix(got, "[Source: policy.pdf, Chunk: 1]"))
}

func TestSearchEmbedderFailurePropagates(t *testing.T) {
	s := newTestSearcher(
		&fakeEmbedder{err: errors.New("provider down")},
		&fakeCollection{},
		reranker.NewLexicalReranker(),
	)

	_, err := s.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding query")
}

func TestSearchStoreFailurePropagates(t *testing.T) {
	s := newTestSearcher(
		&fakeEmbedder{vector: []float32{1, 0}},
		&fakeCollection{err: errors.New("store unreachable")},
		reranker.NewLexicalReranker(),
	)

	_, err := s.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "searching knowledge base")
}

type failingReranker struct{}

func (failingReranker) Rank(ctx context.Context, query string, docs []reranker.Document, topK int) ([]reranker.ScoredDocument, error) {
	return nil, errors.New("rerank endpoint down")
}

func (failingReranker) Close() error { return nil }

func TestSearchRerankerFailurePropagates(t *testing.T) {
	s := newTestSearcher(
		&fakeEmbedder{vector: []float32{1, 0}},
		&fakeCollection{records: []vectorstore.KnowledgeRecord{{ID: "a", Content: "x"}}},
		failingReranker{},
	)

	_, err := s.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reranking candidates")
}
