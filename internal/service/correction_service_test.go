package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/corrigo/corrigo-api/internal/dto"
	"github.com/corrigo/corrigo-api/internal/models"
	"github.com/corrigo/corrigo-api/internal/repository"
)

type memoryCorrectionRepo struct {
	corrections map[uint]models.Correction
	lookups     int
	nextID      uint
}

func newMemoryCorrectionRepo() *memoryCorrectionRepo {
	return &memoryCorrectionRepo{corrections: make(map[uint]models.Correction), nextID: 1}
}

func (m *memoryCorrectionRepo) GetByID(ctx context.Context, id uint) (models.Correction, error) {
	correction, ok := m.corrections[id]
	if !ok {
		return models.Correction{}, repository.ErrCorrectionNotFound
	}
	return correction, nil
}

func (m *memoryCorrectionRepo) GetBySubmissionID(ctx context.Context, submissionID uint) (models.Correction, error) {
	m.lookups++
	for _, correction := range m.corrections {
		if correction.SubmissionID == submissionID {
			return correction, nil
		}
	}
	return models.Correction{}, repository.ErrCorrectionNotFound
}

func (m *memoryCorrectionRepo) Upsert(ctx context.Context, correction *models.Correction) error {
	for id, existing := range m.corrections {
		if existing.SubmissionID == correction.SubmissionID {
			correction.ID = id
			m.corrections[id] = *correction
			return nil
		}
	}
	correction.ID = m.nextID
	m.corrections[m.nextID] = *correction
	m.nextID++
	return nil
}

func (m *memoryCorrectionRepo) Update(ctx context.Context, correction *models.Correction) error {
	if _, ok := m.corrections[correction.ID]; !ok {
		return repository.ErrCorrectionNotFound
	}
	m.corrections[correction.ID] = *correction
	return nil
}

type memoryEventRepo struct {
	events []models.FeedbackEvent
}

func (m *memoryEventRepo) Append(ctx context.Context, event *models.FeedbackEvent) error {
	event.ID = uint(len(m.events) + 1)
	m.events = append(m.events, *event)
	return nil
}

func (m *memoryEventRepo) ListByCorrection(ctx context.Context, correctionID uint) ([]models.FeedbackEvent, error) {
	var results []models.FeedbackEvent
	for _, event := range m.events {
		if event.CorrectionID == correctionID {
			results = append(results, event)
		}
	}
	return results, nil
}

func newTestCorrectionService(t *testing.T) (CorrectionService, *memoryCorrectionRepo, *memoryEventRepo, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	corrections := newMemoryCorrectionRepo()
	events := &memoryEventRepo{}
	svc := NewCorrectionService(corrections, events, cache, 5*time.Minute, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())

	return svc, corrections, events, server
}

func seedCorrection(t *testing.T, repo *memoryCorrectionRepo, submissionID uint) models.Correction {
	t.Helper()

	correction := models.Correction{
		SubmissionID: submissionID,
		Note:         14.5,
		Feedback:     "Bonne maîtrise des jointures.",
		Model:        "deepseek-coder:6.7b",
		GeneratedAt:  time.Now().Add(-time.Minute),
	}
	require.NoError(t, repo.Upsert(context.Background(), &correction))
	return correction
}

func TestCorrectionGetBySubmissionCachesResult(t *testing.T) {
	svc, corrections, _, server := newTestCorrectionService(t)
	seedCorrection(t, corrections, 42)

	first, err := svc.GetBySubmission(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, 14.5, first.Note)
	require.Equal(t, 1, corrections.lookups)
	require.True(t, server.Exists("correction:submission:42"))

	second, err := svc.GetBySubmission(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.Note, second.Note)
	require.Equal(t, first.Feedback, second.Feedback)
	require.Equal(t, 1, corrections.lookups)
}

func TestCorrectionGetBySubmissionNotFound(t *testing.T) {
	svc, _, _, _ := newTestCorrectionService(t)

	_, err := svc.GetBySubmission(context.Background(), 404)
	require.ErrorIs(t, err, ErrCorrectionNotFound)
}

func TestCorrectionReviewOverridesAndLogsEvent(t *testing.T) {
	svc, corrections, events, server := newTestCorrectionService(t)
	seeded := seedCorrection(t, corrections, 42)

	// Warm the cache so the review has something to invalidate.
	_, err := svc.GetBySubmission(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, server.Exists("correction:submission:42"))

	approved := true
	note := 16.0
	feedback := "Très bon travail, <script>alert(1)</script>attention aux index."
	response, err := svc.Review(context.Background(), seeded.ID, dto.CorrectionReviewRequest{
		Approved:   &approved,
		Note:       &note,
		Feedback:   &feedback,
		Comment:    "Revu en séance.",
		ReviewerID: 7,
	})
	require.NoError(t, err)

	require.NotNil(t, response.Approved)
	require.True(t, *response.Approved)
	require.Equal(t, 16.0, response.Note)
	require.NotContains(t, response.Feedback, "<script>")
	require.Contains(t, response.Feedback, "attention aux index")

	require.Len(t, events.events, 1)
	require.Equal(t, seeded.ID, events.events[0].CorrectionID)
	require.Equal(t, uint(7), events.events[0].AuthorID)
	require.Contains(t, events.events[0].Payload, "Revu en séance.")

	require.False(t, server.Exists("correction:submission:42"))
}

func TestCorrectionReviewClampsNote(t *testing.T) {
	svc, corrections, _, _ := newTestCorrectionService(t)
	seeded := seedCorrection(t, corrections, 42)

	approved := false
	note := -2.0
	_, err := svc.Review(context.Background(), seeded.ID, dto.CorrectionReviewRequest{
		Approved:   &approved,
		Note:       &note,
		ReviewerID: 7,
	})
	// Out-of-range notes never reach the clamp; validation rejects them.
	require.Error(t, err)

	valid := 20.0
	response, err := svc.Review(context.Background(), seeded.ID, dto.CorrectionReviewRequest{
		Approved:   &approved,
		Note:       &valid,
		ReviewerID: 7,
	})
	require.NoError(t, err)
	require.Equal(t, models.NoteMax, response.Note)
}

func TestCorrectionReviewRequiresVerdict(t *testing.T) {
	svc, corrections, _, _ := newTestCorrectionService(t)
	seeded := seedCorrection(t, corrections, 42)

	_, err := svc.Review(context.Background(), seeded.ID, dto.CorrectionReviewRequest{ReviewerID: 7})
	require.Error(t, err)
}

func TestCorrectionReviewUnknownCorrection(t *testing.T) {
	svc, _, _, _ := newTestCorrectionService(t)

	approved := true
	_, err := svc.Review(context.Background(), 404, dto.CorrectionReviewRequest{Approved: &approved, ReviewerID: 7})
	require.ErrorIs(t, err, ErrCorrectionNotFound)
}
