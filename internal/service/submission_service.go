package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/corrigo/corrigo-api/internal/dto"
	"github.com/corrigo/corrigo-api/internal/models"
	"github.com/corrigo/corrigo-api/internal/repository"
)

// ErrSubmissionNotFound indicates a submission could not be found.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrDuplicateSubmission indicates the student already submitted for the exercise.
var ErrDuplicateSubmission = errors.New("submission already exists for this exercise")

// JobEnqueuer hands a freshly accepted submission to the correction queue.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, submissionID uint) error
}

// SubmissionService orchestrates submission intake and listing.
type SubmissionService interface {
	List(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint) (dto.SubmissionResponse, error)
	Create(ctx context.Context, payload dto.SubmissionCreateRequest, file *multipart.FileHeader, remoteIP string) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	exercises   repository.ExerciseRepository
	validator   *validator.Validate
	uploader    FileUploader
	queue       JobEnqueuer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(subRepo repository.SubmissionRepository, exerciseRepo repository.ExerciseRepository, validate *validator.Validate, uploader FileUploader, queue JobEnqueuer, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: subRepo,
		exercises:   exerciseRepo,
		validator:   validate,
		uploader:    uploader,
		queue:       queue,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *submissionService) List(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	repoFilter := repository.SubmissionFilter{
		ExerciseID: filter.ExerciseID,
		StudentID:  filter.StudentID,
		Status:     filter.Status,
	}

	submissions, err := s.submissions.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) Get(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

// Create accepts a submission file, stores it and enqueues the correction
// job. Late submissions are accepted and flagged, not rejected. A second
// submission by the same student for the same exercise is refused.
func (s *submissionService) Create(ctx context.Context, payload dto.SubmissionCreateRequest, file *multipart.FileHeader, remoteIP string) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if file == nil {
		return dto.SubmissionResponse{}, fmt.Errorf("submission file is required")
	}

	exercise, err := s.exercises.GetByID(ctx, payload.ExerciseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrExerciseNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if _, err := s.submissions.GetByExerciseAndStudent(ctx, payload.ExerciseID, payload.StudentID); err == nil {
		return dto.SubmissionResponse{}, ErrDuplicateSubmission
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubmissionResponse{}, err
	}

	if err := validateFileType(file); err != nil {
		return dto.SubmissionResponse{}, err
	}

	reader, err := file.Open()
	if err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	uploadURL, err := s.uploader.Upload(ctx, file.Filename, reader)
	if err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("failed to upload file: %w", err)
	}

	submittedAt := s.now()
	submission := models.Submission{
		ExerciseID:  payload.ExerciseID,
		StudentID:   payload.StudentID,
		FileURL:     uploadURL,
		FileName:    file.Filename,
		FileSize:    file.Size,
		SubmittedAt: submittedAt,
		Late:        exercise.IsPastDue(submittedAt),
		SubmitterIP: remoteIP,
		Status:      models.SubmissionStatusPending,
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		// The unique index backs the duplicate guard against races.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.SubmissionResponse{}, ErrDuplicateSubmission
		}
		return dto.SubmissionResponse{}, err
	}

	// The correction pipeline owns the submission from here. If the enqueue
	// fails the record stays pending and can be requeued.
	if err := s.queue.Enqueue(ctx, submission.ID); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to enqueue correction job")
	}

	created, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", created.ID).
		Uint("exercise_id", created.ExerciseID).
		Bool("late", created.Late).
		Msg("submission accepted")

	return dto.NewSubmissionResponse(created), nil
}

func validateFileType(file *multipart.FileHeader) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	mime, err := mimetype.DetectReader(reader)
	if err != nil {
		return fmt.Errorf("failed to detect file type: %w", err)
	}

	allowed := []string{"application/pdf", "text/plain"}
	for _, a := range allowed {
		if mime.Is(a) {
			return nil
		}
	}

	return fmt.Errorf("unsupported file type: %s", mime.String())
}
