package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/corrigo/corrigo-api/internal/models"
	"github.com/corrigo/corrigo-api/internal/observability"
	"github.com/corrigo/corrigo-api/internal/repository"
	"github.com/corrigo/corrigo-api/internal/similarity"
	"github.com/corrigo/corrigo-api/internal/storage"
	"github.com/corrigo/corrigo-api/pkg/ai"
	"github.com/corrigo/corrigo-api/pkg/extract"
	"github.com/corrigo/corrigo-api/pkg/sqlcheck"
)

// errLockHeld signals another worker currently owns the submission.
var errLockHeld = errors.New("submission pipeline lock held elsewhere")

// Feedback bodies surfaced to the student when the automatic path degrades.
const (
	degradedFeedback      = "La correction automatique a échoué. Votre copie sera examinée par un enseignant."
	nonConformingFeedback = "Correction automatique : réponse du modèle au format non conforme. Le texte brut est conservé pour vérification par un enseignant."
	sqlSyntaxWeakness     = "Il y a une erreur de syntaxe dans la requête SQL. Veuillez revoir votre syntaxe."
)

const lockRetryDelay = 30 * time.Second

// Config tunes one pipeline run.
type Config struct {
	SoftLimit time.Duration
	LockTTL   time.Duration
	PeerCap   int
}

// Orchestrator drives the correction state machine for one submission at a
// time: idempotency guard, extraction, grading, peer comparison and the
// atomic result commit. Retry policy lives in the worker; the orchestrator
// only classifies how an attempt ended.
type Orchestrator struct {
	store     repository.PipelineStore
	files     storage.Store
	extractor extract.Extractor
	grader    ai.Grader
	engine    *similarity.Engine
	locker    Locker
	cfg       Config
	tracer    trace.Tracer
	logger    zerolog.Logger
	now       func() time.Time
}

// NewOrchestrator wires the pipeline components together.
func NewOrchestrator(store repository.PipelineStore, files storage.Store, extractor extract.Extractor, grader ai.Grader, engine *similarity.Engine, locker Locker, cfg Config, logger zerolog.Logger) *Orchestrator {
	if cfg.SoftLimit <= 0 {
		cfg.SoftLimit = 300 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.SoftLimit + 60*time.Second
	}
	if cfg.PeerCap <= 0 {
		cfg.PeerCap = similarity.DefaultMaxPeers
	}
	if locker == nil {
		locker = NewNoopLocker()
	}

	return &Orchestrator{
		store:     store,
		files:     files,
		extractor: extractor,
		grader:    grader,
		engine:    engine,
		locker:    locker,
		cfg:       cfg,
		tracer:    otel.Tracer("github.com/corrigo/corrigo-api/internal/pipeline"),
		logger:    logger.With().Str("component", "pipeline").Logger(),
		now:       time.Now,
	}
}

// Process runs one correction attempt under the soft execution limit.
func (o *Orchestrator) Process(parent context.Context, submissionID uint) Outcome {
	ctx, cancel := context.WithTimeout(parent, o.cfg.SoftLimit)
	defer cancel()

	ctx, span := o.tracer.Start(ctx, "pipeline.process", trace.WithAttributes(
		attribute.Int64("submission_id", int64(submissionID)),
	))
	defer span.End()

	start := time.Now()
	outcome := o.run(ctx, submissionID)
	observability.PipelineRuns().WithLabelValues(outcome.Kind.String()).Inc()
	observability.PipelineDuration().WithLabelValues(outcome.Kind.String()).Observe(time.Since(start).Seconds())

	span.SetAttributes(
		attribute.String("pipeline.outcome", outcome.Kind.String()),
		attribute.String("pipeline.state", string(outcome.State)),
	)
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, outcome.Kind.String())
		o.logger.Warn().Err(outcome.Err).
			Uint("submission_id", submissionID).
			Str("state", string(outcome.State)).
			Str("outcome", outcome.Kind.String()).
			Msg("pipeline attempt did not complete")
	}

	return outcome
}

func (o *Orchestrator) run(ctx context.Context, submissionID uint) Outcome {
	lockKey := fmt.Sprintf("corrigo:pipeline:submission:%d", submissionID)
	acquired, err := o.locker.Acquire(ctx, lockKey, o.cfg.LockTTL)
	if err != nil {
		return Retry(StatePending, 0, fmt.Errorf("acquire pipeline lock: %w", err))
	}
	if !acquired {
		return Retry(StatePending, lockRetryDelay, errLockHeld)
	}
	defer func() {
		// The lock must be released even when the soft limit expired.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := o.locker.Release(releaseCtx, lockKey); err != nil {
			o.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to release pipeline lock")
		}
	}()

	submission, err := o.store.GetSubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Fatal(StatePending, fmt.Errorf("submission %d not found", submissionID))
		}
		return o.classify(StatePending, err)
	}

	// Idempotence guard: at-least-once delivery may hand us a submission
	// that already has its correction.
	hasCorrection, err := o.store.HasCorrection(ctx, submissionID)
	if err != nil {
		return o.classify(StatePending, err)
	}
	if hasCorrection {
		return Duplicate()
	}

	if err := o.store.MarkProcessing(ctx, submissionID); err != nil {
		return o.classify(StatePending, err)
	}

	scratch, err := os.MkdirTemp("", "corrigo-pipeline-")
	if err != nil {
		return Retry(StateExtracting, 0, fmt.Errorf("create scratch dir: %w", err))
	}
	defer os.RemoveAll(scratch)

	staged, err := storage.Stage(ctx, o.files, submission.FileURL, scratch)
	if err != nil {
		return o.classify(StateExtracting, err)
	}

	extracted, err := o.extractor.Extract(ctx, staged)
	if err != nil {
		return o.classify(StateExtracting, err)
	}

	reply, err := o.grader.Grade(ctx, ai.GradeInput{
		ExerciseTitle: submission.Exercise.Title,
		Statement:     submission.Exercise.Statement,
		Submission:    extracted.Text,
	})
	if err != nil {
		return o.classify(StateGrading, err)
	}

	peers, err := o.store.ListPeers(ctx, submission.ExerciseID, submission.ID, submission.SubmittedAt, o.cfg.PeerCap)
	if err != nil {
		return o.classify(StateComparingPeers, err)
	}

	comparisons, summary := o.engine.Compare(extracted.Text, o.peerDocuments(ctx, peers, scratch))
	report := similarity.BuildReport(comparisons, summary)

	reportJSON, err := report.Marshal()
	if err != nil {
		return Retry(StatePersisting, 0, fmt.Errorf("marshal plagiarism report: %w", err))
	}

	correction := o.buildCorrection(submission.ID, reply, extracted, reportJSON, summary)
	o.flagSQLIssues(&correction, extracted.Text)

	score := summary.MaxSimilarity
	update := repository.SubmissionUpdate{
		SubmissionID:    submission.ID,
		Status:          models.SubmissionStatusCorrected,
		ExtractedText:   extracted.Text,
		Plagiarized:     summary.PlagiarismCount > 0,
		PlagiarismScore: &score,
	}

	if err := o.store.CommitResult(ctx, &correction, update); err != nil {
		return o.classify(StatePersisting, err)
	}

	o.logger.Info().
		Uint("submission_id", submission.ID).
		Float64("note", correction.Note).
		Float64("plagiarism_score", summary.MaxSimilarity).
		Int("peer_matches", summary.PlagiarismCount).
		Bool("non_conforming", correction.NonConforming).
		Msg("correction committed")

	return Success()
}

// PersistDegraded writes the visible-failure result after retries are
// exhausted or a fatal error occurred. A no-op when a correction already
// exists, so racing a successful run stays safe.
func (o *Orchestrator) PersistDegraded(ctx context.Context, submissionID uint, cause error) error {
	hasCorrection, err := o.store.HasCorrection(ctx, submissionID)
	if err != nil {
		return err
	}
	if hasCorrection {
		return nil
	}

	reason := "unknown failure"
	if cause != nil {
		reason = cause.Error()
	}

	correction := models.Correction{
		SubmissionID:  submissionID,
		Note:          0,
		Feedback:      degradedFeedback,
		RawOutput:     reason,
		NonConforming: true,
		LowConfidence: true,
		GeneratedAt:   o.now(),
	}

	update := repository.SubmissionUpdate{
		SubmissionID: submissionID,
		Status:       models.SubmissionStatusFailed,
	}

	if err := o.store.CommitResult(ctx, &correction, update); err != nil {
		return fmt.Errorf("persist degraded correction: %w", err)
	}

	o.logger.Error().Uint("submission_id", submissionID).Str("cause", reason).Msg("degraded correction persisted")
	return nil
}

func (o *Orchestrator) buildCorrection(submissionID uint, reply ai.Reply, extracted extract.Result, reportJSON []byte, summary similarity.Summary) models.Correction {
	correction := models.Correction{
		SubmissionID:     submissionID,
		Model:            reply.Model,
		RawOutput:        reply.Raw,
		PlagiarismScore:  summary.MaxSimilarity,
		PlagiarismReport: datatypes.JSON(reportJSON),
		GeneratedAt:      o.now(),
	}

	if reply.Parsed != nil {
		correction.Note = reply.Parsed.Note
		correction.Feedback = reply.Parsed.Feedback
		correction.Strengths = reply.Parsed.Strengths
		correction.Weaknesses = reply.Parsed.Weaknesses
		correction.LowConfidence = reply.Parsed.LowConfidence || extracted.Lossy
	} else {
		correction.Note = 0
		correction.Feedback = nonConformingFeedback
		correction.NonConforming = true
		correction.LowConfidence = true
	}

	return correction
}

// flagSQLIssues runs the submitted statements through the SQL parser and, when
// any fail, prepends a syntax weakness to the correction. The model's own
// weaknesses stay; the deterministic check cannot be argued away by the oracle.
func (o *Orchestrator) flagSQLIssues(correction *models.Correction, text string) {
	issues := sqlcheck.Check(text)
	if len(issues) == 0 {
		return
	}

	if correction.Weaknesses == "" {
		correction.Weaknesses = sqlSyntaxWeakness
	} else {
		correction.Weaknesses = sqlSyntaxWeakness + "\n" + correction.Weaknesses
	}

	o.logger.Debug().
		Uint("submission_id", correction.SubmissionID).
		Int("sql_issues", len(issues)).
		Str("first_detail", issues[0].Detail).
		Msg("submission contains unparseable SQL")
}

// peerDocuments resolves each peer's text, preferring the text stored by its
// own pipeline run and falling back to a best-effort extraction of the peer
// file. A peer that yields no text is skipped, not failed on.
func (o *Orchestrator) peerDocuments(ctx context.Context, peers []models.Submission, scratch string) []similarity.PeerDocument {
	documents := make([]similarity.PeerDocument, 0, len(peers))

	for _, peer := range peers {
		text := peer.ExtractedText
		if text == "" {
			staged, err := storage.Stage(ctx, o.files, peer.FileURL, scratch)
			if err != nil {
				o.logger.Warn().Err(err).Uint("peer_id", peer.ID).Msg("skipping peer: staging failed")
				continue
			}
			result, err := o.extractor.Extract(ctx, staged)
			if err != nil {
				o.logger.Warn().Err(err).Uint("peer_id", peer.ID).Msg("skipping peer: extraction failed")
				continue
			}
			text = result.Text
		}

		documents = append(documents, similarity.PeerDocument{
			SubmissionID: peer.ID,
			StudentID:    peer.StudentID,
			StudentName:  peer.Student.Name,
			Text:         text,
			SubmittedAt:  peer.SubmittedAt,
		})
	}

	return documents
}

// classify maps an error to the retry taxonomy: soft-limit expiry is a
// Timeout, permanent extraction failures and missing records are Fatal,
// everything else (oracle unavailability, protocol noise, storage I/O) is
// retryable.
func (o *Orchestrator) classify(state State, err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(state, err)
	}

	var extractionErr *extract.Error
	if errors.As(err, &extractionErr) {
		return Fatal(state, err)
	}

	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, gorm.ErrRecordNotFound) {
		return Fatal(state, err)
	}

	return Retry(state, 0, err)
}
