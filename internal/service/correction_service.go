package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/corrigo/corrigo-api/internal/dto"
	"github.com/corrigo/corrigo-api/internal/models"
	"github.com/corrigo/corrigo-api/internal/repository"
)

// ErrCorrectionNotFound indicates no correction exists yet for a submission.
var ErrCorrectionNotFound = errors.New("correction not found")

// CorrectionService exposes corrections to clients and records reviews.
type CorrectionService interface {
	GetBySubmission(ctx context.Context, submissionID uint) (dto.CorrectionResponse, error)
	Review(ctx context.Context, correctionID uint, payload dto.CorrectionReviewRequest) (dto.CorrectionResponse, error)
}

type correctionService struct {
	corrections repository.CorrectionRepository
	events      repository.FeedbackEventRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewCorrectionService constructs a CorrectionService instance.
func NewCorrectionService(corrections repository.CorrectionRepository, events repository.FeedbackEventRepository, cache *redis.Client, ttl time.Duration, validate *validator.Validate, logger zerolog.Logger) CorrectionService {
	return &correctionService{
		corrections: corrections,
		events:      events,
		cache:       cache,
		cacheTTL:    ttl,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "correction_service").Logger(),
		now:         time.Now,
	}
}

func (s *correctionService) GetBySubmission(ctx context.Context, submissionID uint) (dto.CorrectionResponse, error) {
	cacheKey := fmt.Sprintf("correction:submission:%d", submissionID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.CorrectionResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("submission_id", submissionID).Msg("correction cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read correction cache")
		}
	}

	correction, err := s.corrections.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrCorrectionNotFound) {
			return dto.CorrectionResponse{}, ErrCorrectionNotFound
		}
		return dto.CorrectionResponse{}, err
	}

	response := dto.NewCorrectionResponse(correction)

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store correction cache")
			}
		}
	}

	return response, nil
}

// Review applies a professor's verdict to a correction: approval or
// rejection, optional note and feedback overrides, and an append-only trail
// entry. The automatic output is never erased, only overridden.
func (s *correctionService) Review(ctx context.Context, correctionID uint, payload dto.CorrectionReviewRequest) (dto.CorrectionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CorrectionResponse{}, err
	}

	correction, err := s.corrections.GetByID(ctx, correctionID)
	if err != nil {
		if errors.Is(err, repository.ErrCorrectionNotFound) {
			return dto.CorrectionResponse{}, ErrCorrectionNotFound
		}
		return dto.CorrectionResponse{}, err
	}

	reviewedAt := s.now()
	correction.Approved = payload.Approved
	correction.ApprovedAt = &reviewedAt

	if payload.Note != nil {
		note := *payload.Note
		if note < 0 {
			note = 0
		}
		if note > models.NoteMax {
			note = models.NoteMax
		}
		correction.Note = note
	}

	if payload.Feedback != nil {
		correction.Feedback = s.sanitizer.Sanitize(*payload.Feedback)
	}

	if payload.Comment != "" {
		correction.ReviewerComment = s.sanitizer.Sanitize(payload.Comment)
	}

	if err := s.corrections.Update(ctx, &correction); err != nil {
		return dto.CorrectionResponse{}, err
	}

	eventPayload, err := json.Marshal(map[string]any{
		"approved": payload.Approved,
		"note":     payload.Note,
		"feedback": payload.Feedback,
		"comment":  correction.ReviewerComment,
	})
	if err == nil {
		event := models.FeedbackEvent{
			CorrectionID: correction.ID,
			AuthorID:     payload.ReviewerID,
			Payload:      string(eventPayload),
			CreatedAt:    reviewedAt,
		}
		if err := s.events.Append(ctx, &event); err != nil {
			s.logger.Warn().Err(err).Uint("correction_id", correction.ID).Msg("failed to append review event")
		}
	}

	if s.cache != nil {
		cacheKey := fmt.Sprintf("correction:submission:%d", correction.SubmissionID)
		if err := s.cache.Del(ctx, cacheKey).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to invalidate correction cache")
		}
	}

	s.logger.Info().
		Uint("correction_id", correction.ID).
		Uint("reviewer_id", payload.ReviewerID).
		Bool("approved", payload.Approved != nil && *payload.Approved).
		Msg("correction reviewed")

	return dto.NewCorrectionResponse(correction), nil
}
