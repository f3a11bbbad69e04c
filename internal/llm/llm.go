// Package llm constructs the chat models used by answerd.
//
// Two services are configured: "agent" drives the conversation with tool
// calling enabled, "tools" generates analysis code. Both are selected once
// at startup from a closed set of provider variants and never re-dispatched
// per call.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/answerd/internal/config"
)

// ErrInvalidConfig indicates invalid LLM service configuration.
var ErrInvalidConfig = errors.New("invalid llm configuration")

// NewChatModel creates a chat model for one configured service.
func NewChatModel(ctx context.Context, cfg config.LLMServiceConfig) (llms.Model, error) {
	switch cfg.Service {
	case config.ServiceOllama:
		// Ollama exposes an OpenAI-compatible chat API; the token is unused.
		return openai.New(
			openai.WithBaseURL(cfg.Endpoint),
			openai.WithModel(cfg.ModelID),
			openai.WithToken("ollama"),
		)
	case config.ServiceOpenAI:
		key := apiKey(cfg.APIKey, cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("%w: openai service requires an API key", ErrInvalidConfig)
		}
		opts := []openai.Option{
			openai.WithModel(cfg.ModelID),
			openai.WithToken(key),
		}
		if cfg.Endpoint != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Endpoint))
		}
		return openai.New(opts...)
	case config.ServiceGoogleAI:
		key := apiKey(cfg.APIKey, cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("%w: googleai service requires an API key", ErrInvalidConfig)
		}
		return googleai.New(ctx,
			googleai.WithAPIKey(key),
			googleai.WithDefaultModel(cfg.ModelID),
		)
	default:
		return nil, fmt.Errorf("%w: unsupported service %q", ErrInvalidConfig, cfg.Service)
	}
}

func apiKey(key config.Secret, envName string) string {
	if key.IsSet() {
		return key.Value()
	}
	if envName != "" {
		return os.Getenv(envName)
	}
	return ""
}
