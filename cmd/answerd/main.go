// Answerd is a question-answering daemon over a document knowledge base and
// a set of CSV datasets.
//
// It serves POST /chat: each message goes through an LLM-driven loop that
// decides whether to search the knowledge base, run a computed analysis
// over the datasets, or answer directly.
//
// Usage:
//
//	# Start the server
//	answerd
//
//	# Ingest documents from the inputs directory into the vector store
//	answerd ingest
//
//	# Show version information
//	answerd version
//
// Configuration is loaded from config/settings.yaml (override with -config)
// plus environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/answerd/internal/agent"
	"github.com/fyrsmithlabs/answerd/internal/config"
	"github.com/fyrsmithlabs/answerd/internal/embeddings"
	"github.com/fyrsmithlabs/answerd/internal/httpserver"
	"github.com/fyrsmithlabs/answerd/internal/ingest"
	"github.com/fyrsmithlabs/answerd/internal/llm"
	"github.com/fyrsmithlabs/answerd/internal/logging"
	"github.com/fyrsmithlabs/answerd/internal/prompts"
	"github.com/fyrsmithlabs/answerd/internal/reranker"
	"github.com/fyrsmithlabs/answerd/internal/retrieval"
	"github.com/fyrsmithlabs/answerd/internal/tabular"
	"github.com/fyrsmithlabs/answerd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to settings file (default config/settings.yaml)")
	flag.Parse()
	args := flag.Args()

	command := "serve"
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "version":
		printVersion()
		return
	case "serve", "ingest":
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		fmt.Fprintf(os.Stderr, "\nUsage:\n")
		fmt.Fprintf(os.Stderr, "  answerd            Start the answerd daemon\n")
		fmt.Fprintf(os.Stderr, "  answerd ingest     Ingest documents into the vector store\n")
		fmt.Fprintf(os.Stderr, "  answerd version    Show version information\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	var err error
	switch command {
	case "ingest":
		err = runIngest(ctx, *configPath)
	default:
		err = runServe(ctx, *configPath)
	}
	if err != nil {
		log.Fatalf("answerd: %v", err)
	}
}

func printVersion() {
	fmt.Printf("answerd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// runServe wires all services and blocks until the context is cancelled.
func runServe(ctx context.Context, configPath string) error {
	cfg, logger, err := initConfig(configPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting answerd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("reranker", cfg.Reranker.Provider),
	)

	pm, err := prompts.Load(cfg.Prompts.Path)
	if err != nil {
		return fmt.Errorf("loading prompts: %w", err)
	}

	collection, err := vectorstore.NewCollection(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	defer func() {
		_ = collection.Close()
	}()
	if err := collection.EnsureExists(ctx); err != nil {
		return fmt.Errorf("ensuring collection: %w", err)
	}

	embedder, err := embeddings.New(ctx, cfg.Embeddings)
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}

	rr, err := reranker.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating reranker: %w", err)
	}
	defer func() {
		_ = rr.Close()
	}()

	searcher := retrieval.NewSearcher(embedder, collection, rr, retrieval.Config{
		RetrieveTopK: cfg.RAG.RetrieveTopK,
		RerankTopK:   cfg.RAG.RerankTopK,
	}, logger)

	datasets, err := tabular.LoadDir(cfg.Data.InputsDir, logger)
	if err != nil {
		return fmt.Errorf("loading datasets: %w", err)
	}

	toolsModel, err := llm.NewChatModel(ctx, cfg.Tools)
	if err != nil {
		return fmt.Errorf("creating tools model: %w", err)
	}
	analyst := tabular.NewAnalyst(datasets, toolsModel, pm, tabular.Config{
		Timeout:   cfg.Analysis.Timeout.Duration(),
		MaxAllocs: cfg.Analysis.MaxAllocs,
	}, logger)

	docFiles, err := ingest.DocumentNames(cfg.Data.InputsDir)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	agentModel, err := llm.NewChatModel(ctx, cfg.Agent)
	if err != nil {
		return fmt.Errorf("creating agent model: %w", err)
	}
	orchestrator, err := agent.New(agentModel, searcher, analyst, docFiles, pm, cfg.Agent.MaxToolIterations, logger)
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	server, err := httpserver.NewServer(orchestrator, logger, &httpserver.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout.Duration(),
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// runIngest builds the knowledge base from the inputs directory.
func runIngest(ctx context.Context, configPath string) error {
	cfg, logger, err := initConfig(configPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	collection, err := vectorstore.NewCollection(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	defer func() {
		_ = collection.Close()
	}()

	embedder, err := embeddings.New(ctx, cfg.Embeddings)
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}

	svc := ingest.NewService(embedder, collection, logger)
	n, err := svc.IngestDir(ctx, cfg.Data.InputsDir)
	if err != nil {
		return fmt.Errorf("ingesting: %w", err)
	}

	fmt.Printf("Ingested %d records from %s\n", n, cfg.Data.InputsDir)
	return nil
}

func initConfig(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Fields: map[string]string{"service": "answerd"},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, logger, nil
}
