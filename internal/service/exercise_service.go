package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/corrigo/corrigo-api/internal/dto"
	"github.com/corrigo/corrigo-api/internal/models"
	"github.com/corrigo/corrigo-api/internal/repository"
)

// ErrExerciseNotFound indicates an exercise could not be found.
var ErrExerciseNotFound = errors.New("exercise not found")

// FileUploader abstracts uploading binary data and returning a URL.
type FileUploader interface {
	Upload(ctx context.Context, filename string, reader io.Reader) (string, error)
}

// ExerciseService manages published exercises.
type ExerciseService interface {
	List(ctx context.Context) ([]dto.ExerciseResponse, error)
	Get(ctx context.Context, id uint) (dto.ExerciseResponse, error)
	Create(ctx context.Context, payload dto.ExerciseCreateRequest) (dto.ExerciseResponse, error)
}

type exerciseService struct {
	exercises repository.ExerciseRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewExerciseService constructs an ExerciseService instance.
func NewExerciseService(repo repository.ExerciseRepository, validate *validator.Validate, logger zerolog.Logger) ExerciseService {
	return &exerciseService{
		exercises: repo,
		validator: validate,
		logger:    logger.With().Str("component", "exercise_service").Logger(),
		now:       time.Now,
	}
}

func (s *exerciseService) List(ctx context.Context) ([]dto.ExerciseResponse, error) {
	exercises, err := s.exercises.List(ctx)
	if err != nil {
		return nil, err
	}

	return dto.NewExerciseResponseSlice(exercises), nil
}

func (s *exerciseService) Get(ctx context.Context, id uint) (dto.ExerciseResponse, error) {
	exercise, err := s.exercises.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExerciseResponse{}, ErrExerciseNotFound
		}
		return dto.ExerciseResponse{}, err
	}

	return dto.NewExerciseResponse(exercise), nil
}

func (s *exerciseService) Create(ctx context.Context, payload dto.ExerciseCreateRequest) (dto.ExerciseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExerciseResponse{}, err
	}

	exercise := models.Exercise{
		ProfessorID: payload.ProfessorID,
		Title:       payload.Title,
		Statement:   payload.Statement,
		Deadline:    payload.Deadline,
	}

	if err := s.exercises.Create(ctx, &exercise); err != nil {
		return dto.ExerciseResponse{}, err
	}

	created, err := s.exercises.GetByID(ctx, exercise.ID)
	if err != nil {
		return dto.ExerciseResponse{}, err
	}

	s.logger.Info().Uint("exercise_id", created.ID).Msg("exercise created")

	return dto.NewExerciseResponse(created), nil
}
