package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// CrossEncoderConfig configures the cross-encoder reranker client.
type CrossEncoderConfig struct {
	// Endpoint is the base URL of a text-embeddings-inference server hosting
	// a cross-encoder model (e.g. "http://localhost:8081").
	Endpoint string

	// Timeout bounds each rerank HTTP request.
	Timeout time.Duration

	// RequestsPerSecond rate-limits calls to the endpoint. Zero disables
	// the limiter.
	RequestsPerSecond float64
}

// Validate validates the configuration.
func (c CrossEncoderConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// CrossEncoder scores (query, passage) pairs jointly via the /rerank
// endpoint of a text-embeddings-inference server. Joint scoring is slower
// than vector similarity but far more precise, which is why it only runs
// over the small candidate set the recall stage produced.
type CrossEncoder struct {
	config  CrossEncoderConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	// The endpoint is verified once, lazily, on first use rather than at
	// construction: the server may still be loading its model at startup.
	probeOnce sync.Once
	probeErr  error
}

// NewCrossEncoder creates a CrossEncoder client.
func NewCrossEncoder(cfg CrossEncoderConfig, logger *zap.Logger) (*CrossEncoder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &CrossEncoder{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger,
	}, nil
}

// rerankRequest is the text-embeddings-inference /rerank request body.
type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

// rerankResult is one entry of the /rerank response. Index refers back into
// the request's Texts slice.
type rerankResult struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// Rank sends all candidates to the cross-encoder in a single request and
// returns the top K by descending score. The empty candidate set returns
// empty without an HTTP round trip.
func (c *CrossEncoder) Rank(ctx context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error) {
	if len(docs) == 0 {
		return []ScoredDocument{}, nil
	}
	if topK <= 0 {
		topK = len(docs)
	}

	if err := c.probe(ctx); err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling rerank endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("rerank endpoint returned status %d: %s", resp.StatusCode, string(payload))
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	scored := make([]ScoredDocument, 0, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(docs) {
			return nil, fmt.Errorf("rerank endpoint returned out-of-range index %d for %d candidates", r.Index, len(docs))
		}
		scored = append(scored, ScoredDocument{
			Document:     docs[r.Index],
			RerankScore:  r.Score,
			OriginalRank: r.Index,
		})
	}

	// The endpoint already returns results sorted, but the ordering contract
	// (stable, original-order tie-break) is ours to enforce.
	ranked := sortAndTruncate(scored, topK)

	c.logger.Debug("reranked candidates",
		zap.Int("candidates", len(docs)),
		zap.Int("returned", len(ranked)),
	)
	return ranked, nil
}

// probe verifies the endpoint is up, once per process. A failed probe is
// permanent for this client instance.
func (c *CrossEncoder) probe(ctx context.Context) error {
	c.probeOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Endpoint+"/health", nil)
		if err != nil {
			c.probeErr = fmt.Errorf("creating probe request: %w", err)
			return
		}
		resp, err := c.client.Do(req)
		if err != nil {
			c.probeErr = fmt.Errorf("rerank endpoint unreachable: %w", err)
			return
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			c.probeErr = fmt.Errorf("rerank endpoint health check returned status %d", resp.StatusCode)
			return
		}
		c.logger.Info("rerank endpoint verified", zap.String("endpoint", c.config.Endpoint))
	})
	return c.probeErr
}

// Close releases idle connections.
func (c *CrossEncoder) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
