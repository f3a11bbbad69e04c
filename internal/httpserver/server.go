// Package httpserver provides the HTTP API for answerd.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/answerd/internal/agent"
)

// QueryProcessor answers one chat message, satisfied by agent.Orchestrator.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, input string) (agent.Result, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// RequestTimeout bounds each /chat request; a tool-calling loop can
	// make several model round trips.
	RequestTimeout time.Duration
}

// Server provides HTTP endpoints for answerd.
type Server struct {
	echo      *echo.Echo
	processor QueryProcessor
	logger    *zap.Logger
	config    *Config
}

// NewServer creates a new HTTP server.
func NewServer(processor QueryProcessor, logger *zap.Logger, cfg *Config) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host:           "localhost",
			Port:           8000,
			RequestTimeout: 2 * time.Minute,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:      e,
		processor: processor,
		logger:    logger,
		config:    cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.POST("/chat", s.handleChat)
}

// ChatRequest is the request body for POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatMeta carries orchestration details alongside the answer.
type ChatMeta struct {
	Mode          string `json:"mode"`
	FinalResponse string `json:"final_response"`
}

// ChatResponse is the response body for POST /chat.
type ChatResponse struct {
	Response string   `json:"response"`
	Meta     ChatMeta `json:"meta"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleChat answers one chat message. Error details stay in the logs; the
// client sees the fixed internal-error message only.
func (s *Server) handleChat(c echo.Context) error {
	if s.processor == nil {
		s.logger.Error("chat request before agent initialization")
		return echo.NewHTTPError(http.StatusInternalServerError, agent.InternalErrorAnswer)
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}

	ctx := c.Request().Context()
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	result, err := s.processor.ProcessQuery(ctx, req.Message)
	if err != nil {
		s.logger.Error("query processing failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, agent.InternalErrorAnswer)
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Response: result.Answer,
		Meta: ChatMeta{
			Mode:          result.Mode,
			FinalResponse: result.FinalResponse,
		},
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
