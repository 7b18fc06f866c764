package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	oracleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "corrigo",
		Subsystem: "oracle",
		Name:      "call_duration_seconds",
		Help:      "Duration of grading oracle calls",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
	}, []string{"model"})

	oracleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corrigo",
		Subsystem: "oracle",
		Name:      "call_failures_total",
		Help:      "Number of failed grading oracle calls",
	}, []string{"model", "kind"})

	oracleNonConforming = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corrigo",
		Subsystem: "oracle",
		Name:      "non_conforming_replies_total",
		Help:      "Number of oracle replies that ignored the requested format",
	}, []string{"model"})
)

// OllamaConfig defines configuration options for the Ollama grader.
type OllamaConfig struct {
	BaseURL        string
	Model          string
	Timeout        time.Duration
	MaxPromptChars int
	Logger         zerolog.Logger
}

// OllamaGrader implements Grader against an Ollama-compatible generate API.
// Oracle inference is slow, so the request is a single blocking call with a
// generous timeout rather than a streaming exchange.
type OllamaGrader struct {
	client *http.Client
	cfg    OllamaConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// NewOllamaGrader builds a grader using the provided configuration.
func NewOllamaGrader(cfg OllamaConfig) (*OllamaGrader, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ollama base url is required")
	}

	if cfg.Model == "" {
		cfg.Model = "deepseek-coder:6.7b"
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 4 * time.Minute
	}

	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = DefaultMaxPromptChars
	}

	tracer := otel.Tracer("github.com/corrigo/corrigo-api/pkg/ai/ollama")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OllamaGrader{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With().Str("component", "ollama_grader").Logger(),
	}, nil
}

// Model returns the configured model identifier.
func (g *OllamaGrader) Model() string {
	return g.cfg.Model
}

// Grade sends the correction prompt to the oracle and parses the free-text reply.
func (g *OllamaGrader) Grade(parent context.Context, input GradeInput) (Reply, error) {
	ctx, span := g.tracer.Start(parent, "ollama.grade", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	prompt := BuildPrompt(input, g.cfg.MaxPromptChars)

	body, err := json.Marshal(generateRequest{
		Model:  g.cfg.Model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("encode generate request: %w", err)
	}

	url := strings.TrimRight(g.cfg.BaseURL, "/") + "/api/generate"
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("build generate request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	start := time.Now()
	response, err := g.client.Do(request)
	oracleDuration.WithLabelValues(g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		oracleFailures.WithLabelValues(g.cfg.Model, "unavailable").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		// Both sentinels stay in the chain so callers can still see a
		// context deadline behind the unavailability.
		return Reply{}, fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		oracleFailures.WithLabelValues(g.cfg.Model, "unavailable").Inc()
		err := fmt.Errorf("%w: unexpected status %d", ErrOracleUnavailable, response.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reply{}, err
	}

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		oracleFailures.WithLabelValues(g.cfg.Model, "protocol").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reply{}, fmt.Errorf("%w: read body: %w", ErrOracleProtocol, err)
	}

	var decoded generateResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		oracleFailures.WithLabelValues(g.cfg.Model, "protocol").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reply{}, fmt.Errorf("%w: decode body: %v", ErrOracleProtocol, err)
	}

	reply := ParseReply(g.cfg.Model, strings.TrimSpace(decoded.Response))
	if !reply.Conforming() {
		oracleNonConforming.WithLabelValues(g.cfg.Model).Inc()
		g.logger.Warn().Str("model", g.cfg.Model).Msg("oracle reply did not conform to the requested format")
	}

	return reply, nil
}
