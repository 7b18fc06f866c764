package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/corrigo/corrigo-api/internal/observability"
	"github.com/corrigo/corrigo-api/internal/pipeline"
)

// WorkerConfig tunes the worker pool and its retry policy.
type WorkerConfig struct {
	Subject     string
	QueueGroup  string
	Concurrency int
	MaxAttempts int
	BackoffBase time.Duration
	HardLimit   time.Duration
}

// Worker consumes submission jobs and runs the correction pipeline on them.
// Retryable outcomes are republished with an exponential delay; once the
// attempts run out the submission is closed with a degraded result.
type Worker struct {
	conn         *nats.Conn
	orchestrator *pipeline.Orchestrator
	cfg          WorkerConfig
	logger       zerolog.Logger

	sem    chan struct{}
	wg     sync.WaitGroup
	sub    *nats.Subscription
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorker constructs a stopped worker pool.
func NewWorker(conn *nats.Conn, orchestrator *pipeline.Orchestrator, cfg WorkerConfig, logger zerolog.Logger) *Worker {
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.QueueGroup == "" {
		cfg.QueueGroup = DefaultQueueGroup
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 5 * time.Second
	}
	if cfg.HardLimit <= 0 {
		cfg.HardLimit = 10 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		conn:         conn,
		orchestrator: orchestrator,
		cfg:          cfg,
		logger:       logger.With().Str("component", "queue_worker").Logger(),
		sem:          make(chan struct{}, cfg.Concurrency),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start subscribes to the job subject. Handlers run on their own goroutines,
// bounded by the concurrency limit.
func (w *Worker) Start() error {
	sub, err := w.conn.QueueSubscribe(w.cfg.Subject, w.cfg.QueueGroup, func(msg *nats.Msg) {
		var job Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			w.logger.Error().Err(err).Msg("discarding malformed job payload")
			return
		}
		if job.Attempt < 1 {
			job.Attempt = 1
		}

		select {
		case w.sem <- struct{}{}:
		case <-w.ctx.Done():
			return
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() { <-w.sem }()
			w.handle(job)
		}()
	})
	if err != nil {
		return err
	}

	w.sub = sub
	w.logger.Info().
		Str("subject", w.cfg.Subject).
		Str("queue_group", w.cfg.QueueGroup).
		Int("concurrency", w.cfg.Concurrency).
		Msg("worker pool started")
	return nil
}

// Stop drains the subscription and waits for in-flight jobs, bounded by ctx.
func (w *Worker) Stop(ctx context.Context) error {
	if w.sub != nil {
		if err := w.sub.Drain(); err != nil {
			w.logger.Warn().Err(err).Msg("failed to drain subscription")
		}
	}
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) handle(job Job) {
	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.HardLimit)
	defer cancel()

	outcome := w.orchestrator.Process(ctx, job.SubmissionID)

	switch outcome.Kind {
	case pipeline.KindSuccess:
		// Committed; nothing left to do.
	case pipeline.KindDuplicate:
		w.logger.Debug().Uint("submission_id", job.SubmissionID).Msg("job skipped: correction already exists")
	case pipeline.KindRetry, pipeline.KindTimeout:
		if job.Attempt >= w.cfg.MaxAttempts {
			w.degrade(job, outcome)
			return
		}
		w.reschedule(job, outcome)
	case pipeline.KindFatal:
		w.degrade(job, outcome)
	}
}

// reschedule republishes the job after an exponential delay. An outcome may
// carry an explicit delay (lock contention does), which takes precedence.
func (w *Worker) reschedule(job Job, outcome pipeline.Outcome) {
	delay := outcome.Delay
	if delay <= 0 {
		delay = w.cfg.BackoffBase << (job.Attempt - 1)
	}

	observability.PipelineRetries().WithLabelValues(string(outcome.State)).Inc()
	w.logger.Info().
		Uint("submission_id", job.SubmissionID).
		Int("attempt", job.Attempt).
		Dur("delay", delay).
		Str("state", string(outcome.State)).
		Msg("rescheduling job")

	next := Job{SubmissionID: job.SubmissionID, Attempt: job.Attempt + 1}
	time.AfterFunc(delay, func() {
		payload, err := json.Marshal(next)
		if err != nil {
			w.logger.Error().Err(err).Uint("submission_id", next.SubmissionID).Msg("failed to encode retry job")
			return
		}
		if err := w.conn.Publish(w.cfg.Subject, payload); err != nil {
			w.logger.Error().Err(err).Uint("submission_id", next.SubmissionID).Msg("failed to republish job")
			return
		}
		observability.QueueRedeliveries().Inc()
	})
}

func (w *Worker) degrade(job Job, outcome pipeline.Outcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), 30*time.Second)
	defer cancel()

	if err := w.orchestrator.PersistDegraded(ctx, job.SubmissionID, outcome.Err); err != nil {
		w.logger.Error().Err(err).Uint("submission_id", job.SubmissionID).Msg("failed to persist degraded correction")
		return
	}
	observability.DegradedResults().Inc()
}
