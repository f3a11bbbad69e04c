package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/answerd/internal/config"
)

func TestNewChatModelUnsupportedService(t *testing.T) {
	_, err := NewChatModel(context.Background(), config.LLMServiceConfig{Service: "bedrock"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewChatModelOpenAIRequiresKey(t *testing.T) {
	_, err := NewChatModel(context.Background(), config.LLMServiceConfig{
		Service: config.ServiceOpenAI,
		ModelID: "gpt-4o-mini",
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewChatModelOllamaNeedsNoKey(t *testing.T) {
	model, err := NewChatModel(context.Background(), config.LLMServiceConfig{
		Service:  config.ServiceOllama,
		Endpoint: "http://localhost:11434/v1",
		ModelID:  "llama3.1",
	})
	require.NoError(t, err)
	assert.NotNil(t, model)
}

func TestAPIKeyResolution(t *testing.T) {
	assert.Equal(t, "direct", apiKey(config.Secret("direct"), "UNUSED_ENV"))

	t.Setenv("TEST_LLM_KEY", "from-env")
	assert.Equal(t, "from-env", apiKey("", "TEST_LLM_KEY"))

	assert.Equal(t, "", apiKey("", ""))
}
