package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/corrigo/corrigo-api/internal/dto"
	"github.com/corrigo/corrigo-api/internal/models"
	"github.com/corrigo/corrigo-api/internal/repository"
)

type memoryExerciseRepo struct {
	exercises map[uint]models.Exercise
	nextID    uint
}

func newMemoryExerciseRepo() *memoryExerciseRepo {
	return &memoryExerciseRepo{exercises: make(map[uint]models.Exercise), nextID: 1}
}

func (m *memoryExerciseRepo) List(ctx context.Context) ([]models.Exercise, error) {
	results := make([]models.Exercise, 0, len(m.exercises))
	for _, exercise := range m.exercises {
		results = append(results, exercise)
	}
	return results, nil
}

func (m *memoryExerciseRepo) GetByID(ctx context.Context, id uint) (models.Exercise, error) {
	exercise, ok := m.exercises[id]
	if !ok {
		return models.Exercise{}, gorm.ErrRecordNotFound
	}
	return exercise, nil
}

func (m *memoryExerciseRepo) Create(ctx context.Context, exercise *models.Exercise) error {
	exercise.ID = m.nextID
	exercise.CreatedAt = time.Now()
	m.exercises[m.nextID] = *exercise
	m.nextID++
	return nil
}

type memorySubmissionRepo struct {
	submissions map[uint]models.Submission
	nextID      uint
}

func newMemorySubmissionRepo() *memorySubmissionRepo {
	return &memorySubmissionRepo{submissions: make(map[uint]models.Submission), nextID: 1}
}

func (m *memorySubmissionRepo) List(ctx context.Context, filter repository.SubmissionFilter) ([]models.Submission, error) {
	results := make([]models.Submission, 0, len(m.submissions))
	for _, submission := range m.submissions {
		if filter.ExerciseID != nil && submission.ExerciseID != *filter.ExerciseID {
			continue
		}
		if filter.StudentID != nil && submission.StudentID != *filter.StudentID {
			continue
		}
		if filter.Status != nil && submission.Status != *filter.Status {
			continue
		}
		results = append(results, submission)
	}
	return results, nil
}

func (m *memorySubmissionRepo) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	submission, ok := m.submissions[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (m *memorySubmissionRepo) GetByExerciseAndStudent(ctx context.Context, exerciseID, studentID uint) (models.Submission, error) {
	for _, submission := range m.submissions {
		if submission.ExerciseID == exerciseID && submission.StudentID == studentID {
			return submission, nil
		}
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (m *memorySubmissionRepo) ListPeers(ctx context.Context, exerciseID, excludeID uint, before time.Time, limit int) ([]models.Submission, error) {
	results := make([]models.Submission, 0)
	for _, submission := range m.submissions {
		if submission.ExerciseID == exerciseID && submission.ID != excludeID && submission.SubmittedAt.Before(before) {
			results = append(results, submission)
		}
	}
	return results, nil
}

func (m *memorySubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	submission.ID = m.nextID
	submission.CreatedAt = time.Now()
	m.submissions[m.nextID] = *submission
	m.nextID++
	return nil
}

func (m *memorySubmissionRepo) Update(ctx context.Context, submission *models.Submission) error {
	if _, ok := m.submissions[submission.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.submissions[submission.ID] = *submission
	return nil
}

type stubUploader struct {
	uploads int
	fail    bool
}

func (s *stubUploader) Upload(ctx context.Context, filename string, reader io.Reader) (string, error) {
	if s.fail {
		return "", io.ErrUnexpectedEOF
	}
	s.uploads++
	return "uploads/" + filename, nil
}

type stubEnqueuer struct {
	enqueued []uint
}

func (s *stubEnqueuer) Enqueue(ctx context.Context, submissionID uint) error {
	s.enqueued = append(s.enqueued, submissionID)
	return nil
}

func pdfFileHeader(t *testing.T, name string) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	request := httptest.NewRequest("POST", "/", body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, request.ParseMultipartForm(1 << 20))

	return request.MultipartForm.File["file"][0]
}

func binaryFileHeader(t *testing.T, name string) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	request := httptest.NewRequest("POST", "/", body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, request.ParseMultipartForm(1 << 20))

	return request.MultipartForm.File["file"][0]
}

func newTestSubmissionService(t *testing.T, deadline time.Time) (SubmissionService, *memorySubmissionRepo, *stubEnqueuer) {
	t.Helper()

	exercises := newMemoryExerciseRepo()
	require.NoError(t, exercises.Create(context.Background(), &models.Exercise{
		ProfessorID: 1,
		Title:       "Requêtes SQL",
		Statement:   "Écrire une requête qui liste les clients actifs.",
		Deadline:    deadline,
	}))

	submissions := newMemorySubmissionRepo()
	queue := &stubEnqueuer{}
	svc := NewSubmissionService(submissions, exercises, validator.New(validator.WithRequiredStructEnabled()), &stubUploader{}, queue, zerolog.Nop())

	return svc, submissions, queue
}

func TestSubmissionCreateEnqueuesJob(t *testing.T) {
	svc, _, queue := newTestSubmissionService(t, time.Now().Add(24*time.Hour))

	response, err := svc.Create(context.Background(), dto.SubmissionCreateRequest{ExerciseID: 1, StudentID: 5}, pdfFileHeader(t, "copie.pdf"), "192.0.2.10")
	require.NoError(t, err)

	require.Equal(t, models.SubmissionStatusPending, response.Status)
	require.False(t, response.Late)
	require.Equal(t, "copie.pdf", response.FileName)
	require.Equal(t, []uint{response.ID}, queue.enqueued)
}

func TestSubmissionCreateAcceptsLateAndFlagsIt(t *testing.T) {
	svc, _, _ := newTestSubmissionService(t, time.Now().Add(-time.Hour))

	response, err := svc.Create(context.Background(), dto.SubmissionCreateRequest{ExerciseID: 1, StudentID: 5}, pdfFileHeader(t, "copie.pdf"), "")
	require.NoError(t, err)
	require.True(t, response.Late)
	require.Equal(t, models.SubmissionStatusPending, response.Status)
}

func TestSubmissionCreateRejectsDuplicate(t *testing.T) {
	svc, _, queue := newTestSubmissionService(t, time.Now().Add(24*time.Hour))

	_, err := svc.Create(context.Background(), dto.SubmissionCreateRequest{ExerciseID: 1, StudentID: 5}, pdfFileHeader(t, "copie.pdf"), "")
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), dto.SubmissionCreateRequest{ExerciseID: 1, StudentID: 5}, pdfFileHeader(t, "copie2.pdf"), "")
	require.ErrorIs(t, err, ErrDuplicateSubmission)
	require.Len(t, queue.enqueued, 1)
}

func TestSubmissionCreateRejectsUnknownExercise(t *testing.T) {
	svc, _, _ := newTestSubmissionService(t, time.Now().Add(24*time.Hour))

	_, err := svc.Create(context.Background(), dto.SubmissionCreateRequest{ExerciseID: 99, StudentID: 5}, pdfFileHeader(t, "copie.pdf"), "")
	require.ErrorIs(t, err, ErrExerciseNotFound)
}

func TestSubmissionCreateRejectsUnsupportedFileType(t *testing.T) {
	svc, _, queue := newTestSubmissionService(t, time.Now().Add(24*time.Hour))

	_, err := svc.Create(context.Background(), dto.SubmissionCreateRequest{ExerciseID: 1, StudentID: 5}, binaryFileHeader(t, "image.png"), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported file type")
	require.Empty(t, queue.enqueued)
}

func TestSubmissionGetNotFound(t *testing.T) {
	svc, _, _ := newTestSubmissionService(t, time.Now().Add(24*time.Hour))

	_, err := svc.Get(context.Background(), 404)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestSubmissionListFiltersByStatus(t *testing.T) {
	svc, submissions, _ := newTestSubmissionService(t, time.Now().Add(24*time.Hour))

	require.NoError(t, submissions.Create(context.Background(), &models.Submission{ExerciseID: 1, StudentID: 5, Status: models.SubmissionStatusCorrected, SubmittedAt: time.Now()}))
	require.NoError(t, submissions.Create(context.Background(), &models.Submission{ExerciseID: 1, StudentID: 6, Status: models.SubmissionStatusPending, SubmittedAt: time.Now()}))

	status := models.SubmissionStatusCorrected
	results, err := svc.List(context.Background(), dto.SubmissionFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, models.SubmissionStatusCorrected, results[0].Status)
}
