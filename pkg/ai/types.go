package ai

import (
	"context"
	"errors"
)

// ErrOracleUnavailable marks transport-level failures (connection refused,
// timeout). The pipeline treats these as retryable.
var ErrOracleUnavailable = errors.New("oracle unavailable")

// ErrOracleProtocol marks a reply whose transport envelope could not be
// decoded. Also retryable: the oracle may answer correctly next time.
var ErrOracleProtocol = errors.New("oracle protocol error")

// GradeInput carries the artefacts needed to grade one submission.
type GradeInput struct {
	ExerciseTitle string
	Statement     string
	Submission    string
}

// Record is a successfully parsed grade. LowConfidence is set when the note
// label carried no numeric token and the note defaulted to zero.
type Record struct {
	Note          float64
	Feedback      string
	Strengths     string
	Weaknesses    string
	LowConfidence bool
}

// Unparsed describes oracle output that did not conform to the requested
// format. The raw text is preserved alongside for audit.
type Unparsed struct {
	Reason string
}

// Reply is the tagged result of one oracle call: exactly one of Parsed or
// Unparsed is non-nil, and Raw always holds the verbatim oracle text.
type Reply struct {
	Model    string
	Raw      string
	Parsed   *Record
	Unparsed *Unparsed
}

// Conforming reports whether the oracle produced a usable grade record.
func (r Reply) Conforming() bool {
	return r.Parsed != nil
}

// Grader describes an oracle capable of grading extracted submission text.
type Grader interface {
	Grade(ctx context.Context, input GradeInput) (Reply, error)
}
