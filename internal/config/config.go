// Package config provides configuration loading for answerd.
package config

import (
	"fmt"
	"time"
)

// Supported provider tags. Provider selection happens once at startup via
// the factories in internal/llm, internal/embeddings, internal/vectorstore
// and internal/reranker; it is never re-dispatched per call.
const (
	ServiceOllama   = "ollama"
	ServiceOpenAI   = "openai"
	ServiceGoogleAI = "googleai"

	VectorStoreChromem = "chromem"
	VectorStoreQdrant  = "qdrant"

	RerankerTEI     = "tei"
	RerankerLexical = "lexical"
)

// Config is the root configuration for answerd.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Chroma      ChromaConfig      `koanf:"chroma"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	RAG         RAGConfig         `koanf:"rag"`
	Reranker    RerankerConfig    `koanf:"reranker"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Agent       LLMServiceConfig  `koanf:"agent"`
	Tools       LLMServiceConfig  `koanf:"tools"`
	Data        DataConfig        `koanf:"data"`
	Analysis    AnalysisConfig    `koanf:"analysis"`
	Prompts     PromptsConfig     `koanf:"prompts"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	RequestTimeout  Duration `koanf:"request_timeout"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// VectorStoreConfig selects the vector store provider.
type VectorStoreConfig struct {
	Provider string `koanf:"provider"`
}

// ChromaConfig holds settings for the embedded chromem-go store.
type ChromaConfig struct {
	PersistPath    string `koanf:"persist_path"`
	CollectionName string `koanf:"collection_name"`
	VectorSize     int    `koanf:"vector_size"`
	Compress       bool   `koanf:"compress"`
}

// QdrantConfig holds settings for the external Qdrant store (gRPC).
type QdrantConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	CollectionName string `koanf:"collection_name"`
	VectorSize     int    `koanf:"vector_size"`
	UseTLS         bool   `koanf:"use_tls"`
}

// RAGConfig holds the two-stage retrieval parameters.
type RAGConfig struct {
	// RetrieveTopK is the coarse recall stage candidate count.
	RetrieveTopK int `koanf:"retrieve_top_k"`
	// RerankTopK is the precision stage survivor count.
	RerankTopK int `koanf:"rerank_top_k"`
}

// RerankerConfig holds cross-encoder reranker settings.
type RerankerConfig struct {
	Provider          string   `koanf:"provider"`
	Endpoint          string   `koanf:"endpoint"`
	Timeout           Duration `koanf:"timeout"`
	RequestsPerSecond float64  `koanf:"requests_per_second"`
}

// EmbeddingsConfig holds embedding provider settings.
type EmbeddingsConfig struct {
	Service   string `koanf:"service"`
	Endpoint  string `koanf:"endpoint"`
	Model     string `koanf:"model"`
	APIKey    Secret `koanf:"api_key"`
	APIKeyEnv string `koanf:"api_key_env"`
	// Dimensions is the output vector size of the model. It must match the
	// active vector store's configured vector size; validated here, once,
	// rather than per call.
	Dimensions int `koanf:"dimensions"`
}

// LLMServiceConfig holds settings for one chat-model service. The "agent"
// service drives the conversation; the "tools" service generates analysis
// code deterministically.
type LLMServiceConfig struct {
	Service           string  `koanf:"service"`
	Endpoint          string  `koanf:"endpoint"`
	ModelID           string  `koanf:"model_id"`
	APIKey            Secret  `koanf:"api_key"`
	APIKeyEnv         string  `koanf:"api_key_env"`
	Temperature       float64 `koanf:"temperature"`
	MaxToolIterations int     `koanf:"max_tool_iterations"`
}

// DataConfig holds dataset and document locations.
type DataConfig struct {
	// InputsDir holds both the CSV datasets and the text documents.
	InputsDir string `koanf:"inputs_dir"`
}

// AnalysisConfig bounds generated-code execution.
type AnalysisConfig struct {
	Timeout   Duration `koanf:"timeout"`
	MaxAllocs int64    `koanf:"max_allocs"`
}

// PromptsConfig points at the prompt template file.
type PromptsConfig struct {
	Path string `koanf:"path"`
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = Duration(2 * time.Minute)
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = VectorStoreChromem
	}
	if cfg.Chroma.PersistPath == "" {
		cfg.Chroma.PersistPath = "data/chroma"
	}
	if cfg.Chroma.CollectionName == "" {
		cfg.Chroma.CollectionName = "knowledge_base"
	}
	if cfg.Chroma.VectorSize == 0 {
		cfg.Chroma.VectorSize = 768 // nomic-embed-text dimensions
	}
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.CollectionName == "" {
		cfg.Qdrant.CollectionName = "knowledge_base"
	}
	if cfg.Qdrant.VectorSize == 0 {
		cfg.Qdrant.VectorSize = 768
	}

	if cfg.RAG.RetrieveTopK == 0 {
		cfg.RAG.RetrieveTopK = 20
	}
	if cfg.RAG.RerankTopK == 0 {
		cfg.RAG.RerankTopK = 5
	}

	if cfg.Reranker.Provider == "" {
		cfg.Reranker.Provider = RerankerTEI
	}
	if cfg.Reranker.Endpoint == "" {
		cfg.Reranker.Endpoint = "http://localhost:8081"
	}
	if cfg.Reranker.Timeout == 0 {
		cfg.Reranker.Timeout = Duration(30 * time.Second)
	}
	if cfg.Reranker.RequestsPerSecond == 0 {
		cfg.Reranker.RequestsPerSecond = 10
	}

	if cfg.Embeddings.Service == "" {
		cfg.Embeddings.Service = ServiceOllama
	}
	if cfg.Embeddings.Endpoint == "" {
		cfg.Embeddings.Endpoint = "http://localhost:11434/v1"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "nomic-embed-text"
	}
	if cfg.Embeddings.Dimensions == 0 {
		cfg.Embeddings.Dimensions = 768
	}

	if cfg.Agent.Service == "" {
		cfg.Agent.Service = ServiceOllama
	}
	if cfg.Agent.Endpoint == "" {
		cfg.Agent.Endpoint = "http://localhost:11434/v1"
	}
	if cfg.Agent.ModelID == "" {
		cfg.Agent.ModelID = "llama3.1"
	}
	if cfg.Agent.MaxToolIterations == 0 {
		cfg.Agent.MaxToolIterations = 5
	}
	if cfg.Tools.Service == "" {
		cfg.Tools.Service = cfg.Agent.Service
	}
	if cfg.Tools.Endpoint == "" {
		cfg.Tools.Endpoint = cfg.Agent.Endpoint
	}
	if cfg.Tools.ModelID == "" {
		cfg.Tools.ModelID = cfg.Agent.ModelID
	}

	if cfg.Data.InputsDir == "" {
		cfg.Data.InputsDir = "data/inputs"
	}

	if cfg.Prompts.Path == "" {
		cfg.Prompts.Path = "config/prompts.yaml"
	}

	if cfg.Analysis.Timeout == 0 {
		cfg.Analysis.Timeout = Duration(10 * time.Second)
	}
	if cfg.Analysis.MaxAllocs == 0 {
		cfg.Analysis.MaxAllocs = 10_000_000
	}
}

// Validate checks the configuration for errors, including the cross-cutting
// invariant that the embedding model's output dimension matches the active
// vector store's vector size.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}

	switch c.VectorStore.Provider {
	case VectorStoreChromem:
		if c.Chroma.VectorSize != c.Embeddings.Dimensions {
			return fmt.Errorf("chroma.vector_size %d does not match embeddings.dimensions %d",
				c.Chroma.VectorSize, c.Embeddings.Dimensions)
		}
	case VectorStoreQdrant:
		if c.Qdrant.VectorSize != c.Embeddings.Dimensions {
			return fmt.Errorf("qdrant.vector_size %d does not match embeddings.dimensions %d",
				c.Qdrant.VectorSize, c.Embeddings.Dimensions)
		}
	default:
		return fmt.Errorf("vectorstore: unsupported provider %q (supported: chromem, qdrant)", c.VectorStore.Provider)
	}

	switch c.Reranker.Provider {
	case RerankerTEI, RerankerLexical:
	default:
		return fmt.Errorf("reranker: unsupported provider %q (supported: tei, lexical)", c.Reranker.Provider)
	}

	for name, svc := range map[string]LLMServiceConfig{"agent": c.Agent, "tools": c.Tools} {
		switch svc.Service {
		case ServiceOllama, ServiceOpenAI, ServiceGoogleAI:
		default:
			return fmt.Errorf("%s: unsupported service %q (supported: ollama, openai, googleai)", name, svc.Service)
		}
	}
	switch c.Embeddings.Service {
	case ServiceOllama, ServiceOpenAI, ServiceGoogleAI:
	default:
		return fmt.Errorf("embeddings: unsupported service %q (supported: ollama, openai, googleai)", c.Embeddings.Service)
	}

	if c.RAG.RetrieveTopK <= 0 {
		return fmt.Errorf("rag.retrieve_top_k must be positive, got %d", c.RAG.RetrieveTopK)
	}
	if c.RAG.RerankTopK <= 0 {
		return fmt.Errorf("rag.rerank_top_k must be positive, got %d", c.RAG.RerankTopK)
	}
	if c.Agent.MaxToolIterations <= 0 {
		return fmt.Errorf("agent.max_tool_iterations must be positive, got %d", c.Agent.MaxToolIterations)
	}
	return nil
}
