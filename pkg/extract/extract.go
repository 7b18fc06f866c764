package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	extractDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "corrigo",
		Subsystem: "extract",
		Name:      "duration_seconds",
		Help:      "Duration of document text extraction",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	extractFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "corrigo",
		Subsystem: "extract",
		Name:      "fallbacks_total",
		Help:      "Number of extractions that fell back to the raw decode",
	})
)

// Error is the permanent extraction failure: the file is missing or empty, or
// every strategy was exhausted without usable text.
type Error struct {
	Path   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Path, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result is the extracted plain text. Lossy marks the low-confidence raw
// decode fallback so downstream consumers can tag the correction accordingly.
type Result struct {
	Text  string
	Lossy bool
}

// Extractor converts an opaque binary document into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// Config describes the extraction tool and its retry policy.
type Config struct {
	Tool        string
	Timeout     time.Duration
	Attempts    int
	Backoff     time.Duration
	MinLength   int
	FallbackCap int
	Logger      zerolog.Logger
}

// ToolExtractor shells out to a pdftotext-compatible binary, retrying
// transient failures, and falls back to a lossy raw decode of the document
// bytes when the tool never produces usable output.
type ToolExtractor struct {
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewToolExtractor builds an extractor with defaults applied.
func NewToolExtractor(cfg Config) *ToolExtractor {
	if cfg.Tool == "" {
		cfg.Tool = "pdftotext"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = 50
	}
	if cfg.FallbackCap <= 0 {
		cfg.FallbackCap = 20000
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &ToolExtractor{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/corrigo/corrigo-api/pkg/extract"),
		logger: logger.With().Str("component", "extractor").Logger(),
	}
}

// Extract produces plain text from the document at path.
func (e *ToolExtractor) Extract(parent context.Context, path string) (Result, error) {
	ctx, span := e.tracer.Start(parent, "extract.run", trace.WithAttributes(
		attribute.String("extract.tool", e.cfg.Tool),
	))
	defer span.End()

	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		extractDuration.WithLabelValues("missing").Observe(time.Since(start).Seconds())
		span.SetStatus(codes.Error, "file missing")
		return Result{}, &Error{Path: path, Reason: "file does not exist", Err: err}
	}
	if info.Size() == 0 {
		extractDuration.WithLabelValues("empty").Observe(time.Since(start).Seconds())
		span.SetStatus(codes.Error, "file empty")
		return Result{}, &Error{Path: path, Reason: "file is empty"}
	}

	scratch, err := os.MkdirTemp("", "corrigo-extract-")
	if err != nil {
		return Result{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	var lastErr error
	for attempt := 1; attempt <= e.cfg.Attempts; attempt++ {
		text, err := e.runTool(ctx, path, filepath.Join(scratch, fmt.Sprintf("out-%d.txt", attempt)))
		if err == nil && len(text) >= e.cfg.MinLength {
			extractDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
			return Result{Text: text}, nil
		}

		if err == nil {
			err = fmt.Errorf("output below minimum length (%d < %d)", len(text), e.cfg.MinLength)
		}
		lastErr = err
		e.logger.Warn().Err(err).Int("attempt", attempt).Str("path", path).Msg("extraction attempt failed")

		if attempt < e.cfg.Attempts {
			select {
			case <-time.After(e.cfg.Backoff):
			case <-ctx.Done():
				extractDuration.WithLabelValues("canceled").Observe(time.Since(start).Seconds())
				return Result{}, ctx.Err()
			}
		}
	}

	extractFallbacks.Inc()
	span.SetAttributes(attribute.Bool("extract.fallback", true))

	text, err := e.rawDecode(path)
	if err != nil || strings.TrimSpace(text) == "" {
		extractDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		span.SetStatus(codes.Error, "all strategies exhausted")
		return Result{}, &Error{Path: path, Reason: "all strategies exhausted", Err: lastErr}
	}

	extractDuration.WithLabelValues("fallback").Observe(time.Since(start).Seconds())
	return Result{Text: text, Lossy: true}, nil
}

func (e *ToolExtractor) runTool(parent context.Context, inputPath, outputPath string) (string, error) {
	ctx, cancel := context.WithTimeout(parent, e.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.cfg.Tool, "-layout", inputPath, outputPath)
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("tool timed out after %s", e.cfg.Timeout)
		}
		return "", fmt.Errorf("tool failed: %w", err)
	}

	output, err := os.ReadFile(outputPath)
	if err != nil {
		return "", fmt.Errorf("read tool output: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// rawDecode keeps the printable runes of the document bytes, capped in size.
// The result is lossy and only meant to avoid total pipeline failure on
// documents the tool cannot handle.
func (e *ToolExtractor) rawDecode(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	builder := strings.Builder{}
	for _, r := range string(raw) {
		if builder.Len() >= e.cfg.FallbackCap {
			break
		}
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			builder.WriteRune(r)
		}
	}

	return strings.TrimSpace(builder.String()), nil
}
