// Package queue carries submission jobs between the API and the correction
// workers over NATS. Delivery is at-least-once: the pipeline's idempotency
// guard makes redelivered jobs harmless.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	// DefaultSubject is the subject new submission jobs are published on.
	DefaultSubject = "corrigo.submissions.created"
	// DefaultQueueGroup load-balances jobs across worker processes.
	DefaultQueueGroup = "corrigo-workers"
)

// Job is the wire payload for one correction attempt.
type Job struct {
	SubmissionID uint `json:"submission_id"`
	Attempt      int  `json:"attempt"`
}

// Publisher enqueues correction jobs.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewPublisher constructs a publisher on the given subject.
func NewPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "queue_publisher").Logger(),
	}
}

// Enqueue publishes a first-attempt job for the submission.
func (p *Publisher) Enqueue(ctx context.Context, submissionID uint) error {
	return p.publish(Job{SubmissionID: submissionID, Attempt: 1})
}

func (p *Publisher) publish(job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}

	p.logger.Debug().Uint("submission_id", job.SubmissionID).Int("attempt", job.Attempt).Msg("job published")
	return nil
}
