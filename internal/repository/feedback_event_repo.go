package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/corrigo/corrigo-api/internal/models"
)

// FeedbackEventRepository appends human-review events to the training log.
// The log is append-only; consumers read it offline.
type FeedbackEventRepository interface {
	Append(ctx context.Context, event *models.FeedbackEvent) error
	ListByCorrection(ctx context.Context, correctionID uint) ([]models.FeedbackEvent, error)
}

type feedbackEventRepository struct {
	db *gorm.DB
}

// NewFeedbackEventRepository instantiates the repository.
func NewFeedbackEventRepository(db *gorm.DB) FeedbackEventRepository {
	return &feedbackEventRepository{db: db}
}

func (r *feedbackEventRepository) Append(ctx context.Context, event *models.FeedbackEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *feedbackEventRepository) ListByCorrection(ctx context.Context, correctionID uint) ([]models.FeedbackEvent, error) {
	var events []models.FeedbackEvent
	if err := r.db.WithContext(ctx).
		Where("correction_id = ?", correctionID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}

	return events, nil
}
