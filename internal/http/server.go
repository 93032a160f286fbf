// Package http provides the HTTP API for docrag.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/rag"
	"github.com/fyrsmithlabs/docrag/web"
)

// Asker answers one question.
type Asker interface {
	Ask(ctx context.Context, question string) (*rag.Answer, error)
}

// Server provides HTTP endpoints for docrag.
type Server struct {
	echo   *echo.Echo
	asker  Asker
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration. OllamaURL and Model are
// reported by /health.
type Config struct {
	Host      string
	Port      int
	OllamaURL string
	Model     string
}

// NewServer creates a new HTTP server.
func NewServer(asker Asker, logger *zap.Logger, cfg *Config) (*Server, error) {
	if asker == nil {
		return nil, fmt.Errorf("asker cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = jsonErrorHandler(logger)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(newRequestMetrics(nil, logger).middleware)
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), requestID)))

			err := next(c)
			if err != nil {
				// Resolve the status before logging it.
				c.Error(err)
				err = nil
			}

			logger.Info("http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", requestID),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		asker:  asker,
		logger: logger,
		config: cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleIndex)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.POST("/ask", s.handleAsk)
}

// handleIndex serves the browser client.
func (s *Server) handleIndex(c echo.Context) error {
	return c.HTMLBlob(http.StatusOK, web.IndexHTML)
}

// handleHealth reports liveness and the configured model.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		OllamaURL: s.config.OllamaURL,
		Model:     s.config.Model,
	})
}

// handleAsk answers the question from the query string or the JSON body.
func (s *Server) handleAsk(c echo.Context) error {
	question := c.QueryParam("question")
	if question == "" && c.Request().ContentLength != 0 {
		var req AskRequest
		if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
			s.logger.Warn("invalid ask request", zap.Error(err))
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		question = req.Question
	}

	if strings.TrimSpace(question) == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "question is required")
	}

	ctx := c.Request().Context()
	answer, err := s.asker.Ask(ctx, question)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuestion) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "question is required")
		}
		s.logger.Error("answering question failed",
			append(logging.ContextFields(ctx), zap.Error(err))...)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to answer question")
	}

	return c.JSON(http.StatusOK, AskResponse{Answer: answer.Answer})
}

// jsonErrorHandler renders every error as ErrorResponse.
func jsonErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, ErrorResponse{Error: msg})
		}
		if writeErr != nil {
			logger.Warn("writing error response", zap.Error(writeErr))
		}
	}
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
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

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}
