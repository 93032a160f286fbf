// Package answer turns retrieved chunks and a question into a grounded
// answer.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// FallbackAnswer is returned verbatim when nothing relevant was retrieved,
// and is the sentence the model is told to use when the context lacks the
// answer.
const FallbackAnswer = "I could not find this information in the documents."

// SystemPrompt constrains the model to the supplied context.
const SystemPrompt = "You are a retrieval-based assistant. Answer ONLY using the provided context. " +
	"If the answer is not present, say: '" + FallbackAnswer + "' Limit the answer to 5-6 lines."

// humanPrompt is the user turn. Go template syntax.
const humanPrompt = "Context:\n{{.context}}\n\nQuestion:\n{{.question}}"

// Decoding defaults.
const (
	DefaultTemperature = 0.0
	DefaultMaxTokens   = 500
)

// ContextSeparator joins chunk texts into the context block.
const ContextSeparator = "\n\n"

var tracer = otel.Tracer("docrag.answer")

var (
	// ErrNoContext is returned when Synthesize is called without chunks.
	ErrNoContext = errors.New("no context chunks")

	// ErrEmptyResponse is returned when the model produces no choices.
	ErrEmptyResponse = errors.New("empty model response")
)

// Synthesizer prompts a chat model with a fixed two message template.
type Synthesizer struct {
	model       llms.Model
	template    prompts.ChatPromptTemplate
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(s *Synthesizer) {
		s.temperature = t
	}
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Synthesizer for model.
func New(model llms.Model, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		model:       model,
		template:    NewTemplate(),
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewTemplate returns the system plus human chat template.
func NewTemplate() prompts.ChatPromptTemplate {
	return prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(SystemPrompt, nil),
		prompts.NewHumanMessagePromptTemplate(humanPrompt, []string{"context", "question"}),
	})
}

// BuildContext joins chunk texts in ranked order.
func BuildContext(chunks []string) string {
	return strings.Join(chunks, ContextSeparator)
}

// Messages renders the prompt for question and chunks.
func (s *Synthesizer) Messages(question string, chunks []string) ([]llms.MessageContent, error) {
	rendered, err := s.template.FormatMessages(map[string]any{
		"context":  BuildContext(chunks),
		"question": question,
	})
	if err != nil {
		return nil, fmt.Errorf("formatting prompt: %w", err)
	}

	msgs := make([]llms.MessageContent, len(rendered))
	for i, m := range rendered {
		msgs[i] = llms.TextParts(m.GetType(), m.GetContent())
	}
	return msgs, nil
}

// Synthesize asks the model to answer question from chunks and returns the
// trimmed reply.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, chunks []string) (string, error) {
	ctx, span := tracer.Start(ctx, "Synthesizer.Synthesize")
	defer span.End()
	span.SetAttributes(attribute.Int("chunks", len(chunks)))

	if len(chunks) == 0 {
		span.SetStatus(codes.Error, ErrNoContext.Error())
		return "", ErrNoContext
	}

	msgs, err := s.Messages(question, chunks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	resp, err := s.model.GenerateContent(ctx, msgs,
		llms.WithTemperature(s.temperature),
		llms.WithMaxTokens(s.maxTokens),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("generating answer: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return "", ErrEmptyResponse
	}

	answer := strings.TrimSpace(resp.Choices[0].Content)
	s.logger.Debug("answer generated",
		zap.Int("chunks", len(chunks)),
		zap.Int("answer_length", len(answer)),
	)
	span.SetStatus(codes.Ok, "success")
	return answer, nil
}
