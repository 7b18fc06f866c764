package pipeline

import "time"

// State names the step of the correction state machine a run is in. Failed is
// reachable from any of the first four working states; Duplicate is the
// idempotence short-circuit.
type State string

// Pipeline states.
const (
	StatePending        State = "pending"
	StateExtracting     State = "extracting"
	StateGrading        State = "grading"
	StateComparingPeers State = "comparing_peers"
	StatePersisting     State = "persisting"
	StateDone           State = "done"
	StateFailed         State = "failed"
	StateDuplicate      State = "duplicate"
)

// Kind classifies how a pipeline run ended. Retry policy lives in the worker
// loop, so the classification is an explicit return value instead of control
// flow buried in error handling.
type Kind int

// Outcome kinds.
const (
	KindSuccess Kind = iota
	KindDuplicate
	KindRetry
	KindTimeout
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindDuplicate:
		return "duplicate"
	case KindRetry:
		return "retry"
	case KindTimeout:
		return "timeout"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the result of one pipeline attempt.
type Outcome struct {
	Kind  Kind
	State State
	Delay time.Duration
	Err   error
}

// Success marks a fully committed run.
func Success() Outcome {
	return Outcome{Kind: KindSuccess, State: StateDone}
}

// Duplicate marks the idempotent short-circuit: a correction already exists.
func Duplicate() Outcome {
	return Outcome{Kind: KindDuplicate, State: StateDuplicate}
}

// Retry asks the worker to re-enqueue the job after the delay.
func Retry(state State, delay time.Duration, err error) Outcome {
	return Outcome{Kind: KindRetry, State: state, Delay: delay, Err: err}
}

// Timeout records a soft-limit abort, kept distinct from ordinary retryable
// failures.
func Timeout(state State, err error) Outcome {
	return Outcome{Kind: KindTimeout, State: state, Err: err}
}

// Fatal marks a permanent failure; the worker writes a degraded result.
func Fatal(state State, err error) Outcome {
	return Outcome{Kind: KindFatal, State: state, Err: err}
}
