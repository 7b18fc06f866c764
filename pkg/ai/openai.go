package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIConfig defines configuration options for the OpenAI grader.
type OpenAIConfig struct {
	APIKey         string
	Model          string
	MaxTokens      int
	Temperature    float32
	MaxPromptChars int
	Logger         zerolog.Logger
}

// OpenAIGrader implements Grader against the OpenAI chat completion API. It
// requests the same four-label plain-text format as the Ollama grader so both
// providers share one parser.
type OpenAIGrader struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGrader builds a grader using the provided configuration.
func NewOpenAIGrader(cfg OpenAIConfig) (*OpenAIGrader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = DefaultMaxPromptChars
	}

	tracer := otel.Tracer("github.com/corrigo/corrigo-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OpenAIGrader{
		client: openai.NewClientWithConfig(openai.DefaultConfig(cfg.APIKey)),
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With().Str("component", "openai_grader").Logger(),
	}, nil
}

// Model returns the configured model identifier.
func (g *OpenAIGrader) Model() string {
	return g.cfg.Model
}

// Grade sends the correction prompt to OpenAI and parses the reply.
func (g *OpenAIGrader) Grade(parent context.Context, input GradeInput) (Reply, error) {
	ctx, span := g.tracer.Start(parent, "openai.grade", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildPrompt(input, g.cfg.MaxPromptChars),
			},
		},
	})
	oracleDuration.WithLabelValues(g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		oracleFailures.WithLabelValues(g.cfg.Model, "unavailable").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reply{}, classifyTransportError(err)
	}

	if len(resp.Choices) == 0 {
		oracleFailures.WithLabelValues(g.cfg.Model, "protocol").Inc()
		err := fmt.Errorf("%w: no choices returned", ErrOracleProtocol)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reply{}, err
	}

	reply := ParseReply(g.cfg.Model, strings.TrimSpace(resp.Choices[0].Message.Content))
	if !reply.Conforming() {
		oracleNonConforming.WithLabelValues(g.cfg.Model).Inc()
		g.logger.Warn().Str("model", g.cfg.Model).Msg("oracle reply did not conform to the requested format")
	}

	return reply, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 500 {
		return fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}

	return fmt.Errorf("%w: %w", ErrOracleProtocol, err)
}
