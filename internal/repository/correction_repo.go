package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/corrigo/corrigo-api/internal/models"
)

// ErrCorrectionNotFound distinguishes "no result yet" from lookup failures.
var ErrCorrectionNotFound = errors.New("correction not found")

// CorrectionRepository is the durable store of grading outcomes, keyed
// uniquely per submission.
type CorrectionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Correction, error)
	GetBySubmissionID(ctx context.Context, submissionID uint) (models.Correction, error)
	Upsert(ctx context.Context, correction *models.Correction) error
	Update(ctx context.Context, correction *models.Correction) error
}

type correctionRepository struct {
	db *gorm.DB
}

// NewCorrectionRepository instantiates the repository.
func NewCorrectionRepository(db *gorm.DB) CorrectionRepository {
	return &correctionRepository{db: db}
}

func (r *correctionRepository) GetByID(ctx context.Context, id uint) (models.Correction, error) {
	var correction models.Correction
	if err := r.db.WithContext(ctx).First(&correction, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Correction{}, ErrCorrectionNotFound
		}
		return models.Correction{}, err
	}

	return correction, nil
}

func (r *correctionRepository) GetBySubmissionID(ctx context.Context, submissionID uint) (models.Correction, error) {
	var correction models.Correction
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		First(&correction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Correction{}, ErrCorrectionNotFound
		}
		return models.Correction{}, err
	}

	return correction, nil
}

// Upsert creates the correction or replaces the previous attempt for the same
// submission. A successful retry overwrites a degraded result this way.
func (r *correctionRepository) Upsert(ctx context.Context, correction *models.Correction) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "submission_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"note", "feedback", "strengths", "weaknesses", "model", "raw_output",
			"non_conforming", "low_confidence", "plagiarism_score", "plagiarism_report",
			"generated_at", "updated_at",
		}),
	}).Create(correction).Error
}

func (r *correctionRepository) Update(ctx context.Context, correction *models.Correction) error {
	return r.db.WithContext(ctx).Save(correction).Error
}
