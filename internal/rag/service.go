// Package rag answers questions by chaining retrieval and synthesis.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/answer"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// ErrEmptyQuestion is returned for a missing or blank question.
var ErrEmptyQuestion = errors.New("question is required")

// Outcome labels.
const (
	OutcomeAnswered = "answered"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

var (
	// AsksTotal counts questions by outcome.
	AsksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "rag",
			Name:      "asks_total",
			Help:      "Total number of questions by outcome (answered, fallback, error)",
		},
		[]string{"outcome"},
	)

	// AskDuration tracks end to end answer latency.
	AskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docrag",
			Subsystem: "rag",
			Name:      "ask_duration_seconds",
			Help:      "Duration of question answering in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
)

// Retriever finds chunks for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]vectorstore.SearchResult, error)
}

// Synthesizer answers a question from chunk texts.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, chunks []string) (string, error)
}

// Answer is the result of one question.
type Answer struct {
	Answer   string                     `json:"answer"`
	Sources  []vectorstore.SearchResult `json:"sources,omitempty"`
	Fallback bool                       `json:"-"`
}

// Service is the question answering pipeline. It holds no per-request
// state and is safe for concurrent use.
type Service struct {
	retriever   Retriever
	synthesizer Synthesizer
	logger      *zap.Logger
}

// NewService creates a Service. logger may be nil.
func NewService(retriever Retriever, synthesizer Synthesizer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		retriever:   retriever,
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// Ask retrieves chunks for question and synthesizes an answer. When nothing
// is retrieved the fixed fallback answer is returned without calling the
// model.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()
	defer func() {
		AskDuration.Observe(time.Since(start).Seconds())
	}()

	if strings.TrimSpace(question) == "" {
		AsksTotal.WithLabelValues(OutcomeError).Inc()
		return nil, ErrEmptyQuestion
	}

	results, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		AsksTotal.WithLabelValues(OutcomeError).Inc()
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	if len(results) == 0 {
		s.logger.Info("no documents retrieved, returning fallback answer")
		AsksTotal.WithLabelValues(OutcomeFallback).Inc()
		return &Answer{Answer: answer.FallbackAnswer, Fallback: true}, nil
	}

	text, err := s.synthesizer.Synthesize(ctx, question, retrieval.Texts(results))
	if err != nil {
		AsksTotal.WithLabelValues(OutcomeError).Inc()
		return nil, fmt.Errorf("synthesizing answer: %w", err)
	}

	AsksTotal.WithLabelValues(OutcomeAnswered).Inc()
	return &Answer{Answer: text, Sources: results}, nil
}
