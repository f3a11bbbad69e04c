// Package embeddings provides embedding generation via langchaingo.
//
// The Embedder interface abstracts over interchangeable backends: any
// OpenAI-compatible endpoint (Ollama, OpenAI) or Google AI. The backend is
// selected once at startup by New; provider failures are not retried here
// and propagate to the caller as retrieval failures.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"os"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/answerd/internal/config"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one vector
	// per input text, all with the same dimensionality.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Service wraps a langchaingo embedder with input validation.
type Service struct {
	embedder *lcembeddings.EmbedderImpl
}

// New creates an Embedder for the configured service. The provider variant
// is fixed here, at construction, from a closed set.
func New(ctx context.Context, cfg config.EmbeddingsConfig) (*Service, error) {
	client, err := newEmbedderClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := lcembeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &Service{embedder: embedder}, nil
}

func newEmbedderClient(ctx context.Context, cfg config.EmbeddingsConfig) (lcembeddings.EmbedderClient, error) {
	switch cfg.Service {
	case config.ServiceOllama:
		// Ollama speaks the OpenAI embeddings API; the token is unused.
		return openai.New(
			openai.WithBaseURL(cfg.Endpoint),
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithToken("ollama"),
		)
	case config.ServiceOpenAI:
		key := apiKey(cfg.APIKey, cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("%w: openai embeddings require an API key", ErrInvalidConfig)
		}
		opts := []openai.Option{
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithToken(key),
		}
		if cfg.Endpoint != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Endpoint))
		}
		return openai.New(opts...)
	case config.ServiceGoogleAI:
		key := apiKey(cfg.APIKey, cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("%w: googleai embeddings require an API key", ErrInvalidConfig)
		}
		return googleai.New(ctx,
			googleai.WithAPIKey(key),
			googleai.WithDefaultEmbeddingModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("%w: unsupported embedding service %q", ErrInvalidConfig, cfg.Service)
	}
}

// apiKey resolves an API key from an explicit secret or a named env var.
func apiKey(key config.Secret, envName string) string {
	if key.IsSet() {
		return key.Value()
	}
	if envName != "" {
		return os.Getenv(envName)
	}
	return ""
}

// EmbedDocuments generates embeddings for the given texts.
// Returns ErrEmptyInput if texts is empty or nil.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: query text cannot be empty", ErrEmptyInput)
	}
	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vector, nil
}
