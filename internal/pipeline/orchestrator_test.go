package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/corrigo/corrigo-api/internal/models"
	"github.com/corrigo/corrigo-api/internal/repository"
	"github.com/corrigo/corrigo-api/internal/similarity"
	"github.com/corrigo/corrigo-api/pkg/ai"
	"github.com/corrigo/corrigo-api/pkg/extract"
)

type stubStore struct {
	submission       models.Submission
	getErr           error
	hasCorrection    bool
	hasErr           error
	markedProcessing int
	markErr          error
	peers            []models.Submission
	peersErr         error
	committed        *models.Correction
	committedUpdate  *repository.SubmissionUpdate
	commitErr        error
}

func (s *stubStore) GetSubmission(context.Context, uint) (models.Submission, error) {
	if s.getErr != nil {
		return models.Submission{}, s.getErr
	}
	return s.submission, nil
}

func (s *stubStore) GetExercise(context.Context, uint) (models.Exercise, error) {
	return s.submission.Exercise, nil
}

func (s *stubStore) HasCorrection(context.Context, uint) (bool, error) {
	return s.hasCorrection, s.hasErr
}

func (s *stubStore) MarkProcessing(context.Context, uint) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.markedProcessing++
	return nil
}

func (s *stubStore) ListPeers(context.Context, uint, uint, time.Time, int) ([]models.Submission, error) {
	return s.peers, s.peersErr
}

func (s *stubStore) CommitResult(_ context.Context, correction *models.Correction, update repository.SubmissionUpdate) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.committed = correction
	s.committedUpdate = &update
	return nil
}

type stubFiles struct {
	content   string
	err       error
	failPaths []string
}

func (s stubFiles) Exists(context.Context, string) (bool, error) { return s.err == nil, s.err }
func (s stubFiles) Size(context.Context, string) (int64, error) {
	return int64(len(s.content)), s.err
}
func (s stubFiles) OpenRead(_ context.Context, path string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, failed := range s.failPaths {
		if path == failed {
			return nil, fmt.Errorf("open %s: unreachable", path)
		}
	}
	return io.NopCloser(strings.NewReader(s.content)), nil
}

type stubExtractor struct {
	result extract.Result
	err    error
}

func (s stubExtractor) Extract(context.Context, string) (extract.Result, error) {
	return s.result, s.err
}

type stubGrader struct {
	reply ai.Reply
	err   error
}

func (s stubGrader) Grade(context.Context, ai.GradeInput) (ai.Reply, error) {
	return s.reply, s.err
}

func testSubmission() models.Submission {
	return models.Submission{
		ID:          42,
		ExerciseID:  7,
		StudentID:   3,
		FileURL:     "copies/copy.pdf",
		SubmittedAt: time.Now(),
		Status:      models.SubmissionStatusPending,
		Exercise: models.Exercise{
			ID:        7,
			Title:     "Requêtes SQL",
			Statement: "Écrire une requête qui liste les clients actifs.",
		},
	}
}

func conformingReply() ai.Reply {
	return ai.Reply{
		Model: "test-model",
		Raw:   "Note : 15/20\nFeedback : Bien.",
		Parsed: &ai.Record{
			Note:     15,
			Feedback: "Bien.",
		},
	}
}

func newTestOrchestrator(store *stubStore, files stubFiles, extractor stubExtractor, grader stubGrader) *Orchestrator {
	return NewOrchestrator(
		store,
		files,
		extractor,
		grader,
		similarity.NewEngine(similarity.Options{}),
		NewNoopLocker(),
		Config{SoftLimit: 5 * time.Second, PeerCap: 10},
		zerolog.Nop(),
	)
}

func TestProcessSuccess(t *testing.T) {
	text := "la réponse complète de l'étudiant couvre correctement toutes les questions posées"
	store := &stubStore{
		submission: testSubmission(),
		peers: []models.Submission{
			{ID: 41, StudentID: 9, ExtractedText: text, Student: models.User{ID: 9, Name: "Nadia"}},
		},
	}

	orchestrator := newTestOrchestrator(store, stubFiles{content: "%PDF"}, stubExtractor{result: extract.Result{Text: text}}, stubGrader{reply: conformingReply()})

	outcome := orchestrator.Process(context.Background(), 42)

	require.Equal(t, KindSuccess, outcome.Kind)
	require.Equal(t, 1, store.markedProcessing)
	require.NotNil(t, store.committed)
	require.Equal(t, uint(42), store.committed.SubmissionID)
	require.Equal(t, 15.0, store.committed.Note)
	require.False(t, store.committed.NonConforming)
	require.Equal(t, 1.0, store.committed.PlagiarismScore)
	require.NotEmpty(t, store.committed.PlagiarismReport)

	require.NotNil(t, store.committedUpdate)
	require.Equal(t, models.SubmissionStatusCorrected, store.committedUpdate.Status)
	require.Equal(t, text, store.committedUpdate.ExtractedText)
	require.True(t, store.committedUpdate.Plagiarized)
}

func TestProcessDuplicate(t *testing.T) {
	store := &stubStore{submission: testSubmission(), hasCorrection: true}

	orchestrator := newTestOrchestrator(store, stubFiles{content: "%PDF"}, stubExtractor{}, stubGrader{})

	outcome := orchestrator.Process(context.Background(), 42)

	require.Equal(t, KindDuplicate, outcome.Kind)
	require.Nil(t, store.committed)
	require.Zero(t, store.markedProcessing)
}

func TestProcessMarkProcessingFailureIsRetryable(t *testing.T) {
	store := &stubStore{submission: testSubmission(), markErr: fmt.Errorf("connection reset")}

	orchestrator := newTestOrchestrator(store, stubFiles{content: "%PDF"}, stubExtractor{}, stubGrader{})

	outcome := orchestrator.Process(context.Background(), 42)

	require.Equal(t, KindRetry, outcome.Kind)
	require.Equal(t, StatePending, outcome.State)
	require.Nil(t, store.committed)
}

func TestProcessSubmissionMissingIsFatal(t *testing.T) {
	store := &stubStore{getErr: gorm.ErrRecordNotFound}

	orchestrator := newTestOrchestrator(store, stubFiles{}, stubExtractor{}, stubGrader{})

	outcome := orchestrator.Process(context.Background(), 42)

	require.Equal(t, KindFatal, outcome.Kind)
}

func TestProcessPermanentExtractionFailureIsFatal(t *testing.T) {
	store := &stubStore{submission: testSubmission()}
	extractionErr := &extract.Error{Path: "copy.pdf", Reason: "all strategies exhausted"}

	orchestrator := newTestOrchestrator(store, stubFiles{content: "%PDF"}, stubExtractor{err: extractionErr}, stubGrader{})

	outcome := orchestrator.Process(context.Background(), 42)

	require.Equal(t, KindFatal, outcome.Kind)
	require.Equal(t, StateExtracting, outcome.State)
}

func TestProcessOracleUnavailableIsRetryable(t *testing.T) {
	store := &stubStore{submission: testSubmission()}
	graderErr := fmt.Errorf("%w: connection refused", ai.ErrOracleUnavailable)

	orchestrator := newTestOrchestrator(store, stubFiles{content: "%PDF"}, stubExtractor{result: extract.Result{Text: "texte extrait de la copie de l'étudiant pour la correction"}}, stubGrader{err: graderErr})

	outcome := orchestrator.Process(context.Background(), 42)

	require.Equal(t, KindRetry, outcome.Kind)
	require.Equal(t, StateGrading, outcome.State)
}

func TestProcessDeadlineIsTimeout(t *testing.T) {
	store := &stubStore{submission: testSubmission()}

	orchestrator := newTestOrchestrator(store, stubFiles{content: "%PDF"}, stubExtractor{result: extract.Result{Text: "texte extrait de la copie de l'étudiant pour la correction"}}, stubGrader{err: fmt.Errorf("grade: %w", context.DeadlineExceeded)})

	outcome := orchestrator.Process(context.Background(), 42)

	require.Equal(t, KindTimeout, outcome.Kind)
}

func TestProcessOracleStallHitsSoftLimitAsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	grader, err := ai.NewOllamaGrader(ai.OllamaConfig{BaseURL: server.URL, Model: "test-model"})
	require.NoError(t, err)

	store := &stubStore{submission: testSubmission()}
	orchestrator := NewOrchestrator(
		store,
		stubFiles{content: "%PDF"},
		stubExtractor{result: extract.Result{Text: "texte extrait de la copie de l'étudiant pour la correction"}},
		grader,
		similarity.NewEngine(similarity.Options{}),
		NewNoopLocker(),
		Config{SoftLimit: 150 * time.Millisecond, PeerCap: 10},
		zerolog.Nop(),
	)

	outcome := orchestrator.Process(context.Background(), 42)

	require.Equal(t, KindTimeout, outcome.Kind)
	require.Equal(t, StateGrading, outcome.State)
}

func TestProcessNonConformingReplyStillCommits(t *testing.T) {
	store := &stubStore{submission: testSubmission()}
	reply := ai.Reply{
		Model:    "test-model",
		Raw:      "Je refuse de corriger.",
		Unparsed: &ai.Unparsed{Reason: ai.NonConformingReason},
	}

	orchestrator := newTestOrchestrator(store, stubFiles{content: "%PDF"}, stubExtractor{result: extract.Result{Text: "texte extrait de la copie de l'étudiant pour la correction"}}, stubGrader{reply: reply})

	outcome := orchestrator.Process(context.Background(), 42)

	require.Equal(t, KindSuccess, outcome.Kind)
	require.NotNil(t, store.committed)
	require.True(t, store.committed.NonConforming)
	require.True(t, store.committed.LowConfidence)
	require.Equal(t, 0.0, store.committed.Note)
	require.Equal(t, "Je refuse de corriger.", store.committed.RawOutput)
}

func TestProcessBrokenSQLAddsSyntaxWeakness(t *testing.T) {
	store := &stubStore{submission: testSubmission()}
	reply := conformingReply()
	reply.Parsed.Weaknesses = "La jointure manque une condition."

	text := "Ma réponse : select nom from where actif = 1;"
	orchestrator := newTestOrchestrator(store, stubFiles{content: "%PDF"}, stubExtractor{result: extract.Result{Text: text}}, stubGrader{reply: reply})

	outcome := orchestrator.Process(context.Background(), 42)

	require.Equal(t, KindSuccess, outcome.Kind)
	require.NotNil(t, store.committed)
	require.Contains(t, store.committed.Weaknesses, "erreur de syntaxe dans la requête SQL")
	require.Contains(t, store.committed.Weaknesses, "La jointure manque une condition.")
}

func TestProcessValidSQLLeavesWeaknessesAlone(t *testing.T) {
	store := &stubStore{submission: testSubmission()}
	reply := conformingReply()
	reply.Parsed.Weaknesses = "La jointure manque une condition."

	text := "Ma réponse : select nom from clients where actif = 1;"
	orchestrator := newTestOrchestrator(store, stubFiles{content: "%PDF"}, stubExtractor{result: extract.Result{Text: text}}, stubGrader{reply: reply})

	outcome := orchestrator.Process(context.Background(), 42)

	require.Equal(t, KindSuccess, outcome.Kind)
	require.Equal(t, "La jointure manque une condition.", store.committed.Weaknesses)
}

func TestProcessLossyExtractionLowersConfidence(t *testing.T) {
	store := &stubStore{submission: testSubmission()}

	orchestrator := newTestOrchestrator(store, stubFiles{content: "%PDF"}, stubExtractor{result: extract.Result{Text: "texte brut dégradé mais exploitable pour la correction automatique", Lossy: true}}, stubGrader{reply: conformingReply()})

	outcome := orchestrator.Process(context.Background(), 42)

	require.Equal(t, KindSuccess, outcome.Kind)
	require.True(t, store.committed.LowConfidence)
}

func TestProcessCommitFailureIsRetryable(t *testing.T) {
	store := &stubStore{submission: testSubmission(), commitErr: fmt.Errorf("connection reset")}

	orchestrator := newTestOrchestrator(store, stubFiles{content: "%PDF"}, stubExtractor{result: extract.Result{Text: "texte extrait de la copie de l'étudiant pour la correction"}}, stubGrader{reply: conformingReply()})

	outcome := orchestrator.Process(context.Background(), 42)

	require.Equal(t, KindRetry, outcome.Kind)
	require.Equal(t, StatePersisting, outcome.State)
}

func TestProcessSkipsUnreadablePeers(t *testing.T) {
	store := &stubStore{
		submission: testSubmission(),
		peers: []models.Submission{
			// No stored text and no readable file: skipped, not fatal.
			{ID: 40, StudentID: 8, FileURL: "copies/lost.pdf"},
			{ID: 41, StudentID: 9, ExtractedText: "la réponse complète de l'étudiant couvre correctement toutes les questions posées", Student: models.User{ID: 9, Name: "Nadia"}},
		},
	}

	files := stubFiles{content: "%PDF", failPaths: []string{"copies/lost.pdf"}}
	orchestrator := newTestOrchestrator(store, files, stubExtractor{result: extract.Result{Text: "la réponse complète de l'étudiant couvre correctement toutes les questions posées"}}, stubGrader{reply: conformingReply()})

	outcome := orchestrator.Process(context.Background(), 42)

	require.Equal(t, KindSuccess, outcome.Kind)
	require.NotNil(t, store.committed)

	// Only the peer with stored text was compared.
	require.Contains(t, string(store.committed.PlagiarismReport), `"submission_id":41`)
	require.NotContains(t, string(store.committed.PlagiarismReport), `"submission_id":40`)
}

func TestPersistDegradedWritesFailure(t *testing.T) {
	store := &stubStore{submission: testSubmission()}

	orchestrator := newTestOrchestrator(store, stubFiles{}, stubExtractor{}, stubGrader{})

	err := orchestrator.PersistDegraded(context.Background(), 42, fmt.Errorf("retries exhausted"))
	require.NoError(t, err)

	require.NotNil(t, store.committed)
	require.Equal(t, 0.0, store.committed.Note)
	require.True(t, store.committed.NonConforming)
	require.Contains(t, store.committed.Feedback, "examinée par un enseignant")
	require.Equal(t, "retries exhausted", store.committed.RawOutput)
	require.Equal(t, models.SubmissionStatusFailed, store.committedUpdate.Status)
}

func TestPersistDegradedSkipsExistingCorrection(t *testing.T) {
	store := &stubStore{submission: testSubmission(), hasCorrection: true}

	orchestrator := newTestOrchestrator(store, stubFiles{}, stubExtractor{}, stubGrader{})

	require.NoError(t, orchestrator.PersistDegraded(context.Background(), 42, fmt.Errorf("boom")))
	require.Nil(t, store.committed)
}
