// Package ingest builds the knowledge base: it splits documents into
// overlapping chunks, embeds them, and upserts the records into the vector
// store. Re-running over the same inputs replaces records in place.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/answerd/internal/vectorstore"
)

// Chunking parameters. Overlap keeps sentences that straddle a boundary
// retrievable from both sides.
const (
	chunkSize    = 500
	chunkOverlap = 50
)

// documentExtensions are the file types ingested as knowledge documents.
var documentExtensions = map[string]bool{".txt": true, ".md": true}

// Embedder is the document-embedding dependency, satisfied by
// embeddings.Service.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Service ingests documents into a vector store collection.
type Service struct {
	embedder   Embedder
	collection vectorstore.Collection
	splitter   textsplitter.RecursiveCharacter
	logger     *zap.Logger
}

// NewService creates an ingestion Service.
func NewService(embedder Embedder, collection vectorstore.Collection, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder:   embedder,
		collection: collection,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		logger: logger,
	}
}

// IngestDir ingests every document file in dir, in filename order. Returns
// the total record count upserted.
func (s *Service) IngestDir(ctx context.Context, dir string) (int, error) {
	if err := s.collection.EnsureExists(ctx); err != nil {
		return 0, fmt.Errorf("ensuring collection: %w", err)
	}

	files, err := DocumentNames(dir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		s.logger.Warn("no documents to ingest", zap.String("dir", dir))
		return 0, nil
	}

	total := 0
	for _, name := range files {
		n, err := s.ingestFile(ctx, dir, name)
		if err != nil {
			return total, fmt.Errorf("ingesting %s: %w", name, err)
		}
		total += n
	}

	s.logger.Info("ingestion complete",
		zap.String("dir", dir),
		zap.Int("files", len(files)),
		zap.Int("records", total),
	)
	return total, nil
}

// ingestFile splits, embeds and upserts one document. Record IDs derive
// from the filename and chunk index, so re-ingesting replaces the previous
// records instead of duplicating them.
func (s *Service) ingestFile(ctx context.Context, dir, name string) (int, error) {
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return 0, err
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		s.logger.Warn("skipping empty document", zap.String("file", name))
		return 0, nil
	}

	chunks, err := s.splitter.SplitText(text)
	if err != nil {
		return 0, fmt.Errorf("splitting text: %w", err)
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	records := make([]vectorstore.KnowledgeRecord, len(chunks))
	for j, chunk := range chunks {
		records[j] = vectorstore.KnowledgeRecord{
			ID:             fmt.Sprintf("%s_%d", name, j),
			Content:        chunk,
			SourceMetadata: fmt.Sprintf("Source: %s, Chunk: %d", name, j+1),
			Embedding:      vectors[j],
		}
	}

	if err := s.collection.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("upserting records: %w", err)
	}

	s.logger.Debug("ingested document", zap.String("file", name), zap.Int("chunks", len(chunks)))
	return len(records), nil
}

// DocumentNames lists the ingestable document filenames in dir, sorted. A
// missing directory yields an empty slice.
func DocumentNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if documentExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
