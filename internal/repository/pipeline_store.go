package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/corrigo/corrigo-api/internal/models"
)

// SubmissionUpdate is the pipeline-owned mutation applied to the submission
// row in the same transaction as the correction write.
type SubmissionUpdate struct {
	SubmissionID    uint
	Status          string
	ExtractedText   string
	Plagiarized     bool
	PlagiarismScore *float64
}

// PipelineStore groups the data operations the correction orchestrator needs:
// reads for the run itself and a single transactional commit that writes the
// correction and the submission mutation atomically under a row lock.
type PipelineStore interface {
	GetSubmission(ctx context.Context, id uint) (models.Submission, error)
	GetExercise(ctx context.Context, id uint) (models.Exercise, error)
	HasCorrection(ctx context.Context, submissionID uint) (bool, error)
	MarkProcessing(ctx context.Context, submissionID uint) error
	ListPeers(ctx context.Context, exerciseID, excludeID uint, before time.Time, limit int) ([]models.Submission, error)
	CommitResult(ctx context.Context, correction *models.Correction, update SubmissionUpdate) error
}

type pipelineStore struct {
	db *gorm.DB
}

// NewPipelineStore instantiates the store on top of the shared gorm handle.
func NewPipelineStore(db *gorm.DB) PipelineStore {
	return &pipelineStore{db: db}
}

func (s *pipelineStore) GetSubmission(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := s.db.WithContext(ctx).
		Preload("Exercise").
		Preload("Student").
		First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (s *pipelineStore) GetExercise(ctx context.Context, id uint) (models.Exercise, error) {
	var exercise models.Exercise
	if err := s.db.WithContext(ctx).First(&exercise, id).Error; err != nil {
		return models.Exercise{}, err
	}

	return exercise, nil
}

func (s *pipelineStore) HasCorrection(ctx context.Context, submissionID uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Correction{}).
		Where("submission_id = ?", submissionID).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

// MarkProcessing flips a pending submission to processing when a worker picks
// it up. Submissions already past pending keep their status, so a retried
// delivery racing a committed result does not resurrect the processing state.
func (s *pipelineStore) MarkProcessing(ctx context.Context, submissionID uint) error {
	return s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND status = ?", submissionID, models.SubmissionStatusPending).
		Update("status", models.SubmissionStatusProcessing).Error
}

func (s *pipelineStore) ListPeers(ctx context.Context, exerciseID, excludeID uint, before time.Time, limit int) ([]models.Submission, error) {
	var peers []models.Submission
	if err := s.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Student").
		Where("exercise_id = ?", exerciseID).
		Where("id <> ?", excludeID).
		Where("submitted_at < ?", before).
		Order("submitted_at DESC").
		Limit(limit).
		Find(&peers).Error; err != nil {
		return nil, err
	}

	return peers, nil
}

// CommitResult writes the correction and the submission mutation in one
// transaction. The submission row is locked for the duration so concurrent
// pipeline runs for the same submission serialise here.
func (s *pipelineStore) CommitResult(ctx context.Context, correction *models.Correction, update SubmissionUpdate) error {
	if correction.SubmissionID == 0 || correction.SubmissionID != update.SubmissionID {
		return errors.New("correction and update must target the same submission")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&models.Submission{})
		// SQLite (used by the test suite) has no SELECT ... FOR UPDATE.
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var submission models.Submission
		if err := query.First(&submission, update.SubmissionID).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "submission_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"note", "feedback", "strengths", "weaknesses", "model", "raw_output",
				"non_conforming", "low_confidence", "plagiarism_score", "plagiarism_report",
				"generated_at", "updated_at",
			}),
		}).Create(correction).Error; err != nil {
			return err
		}

		submission.Status = update.Status
		if update.ExtractedText != "" {
			submission.ExtractedText = update.ExtractedText
		}
		submission.Plagiarized = update.Plagiarized
		if update.PlagiarismScore != nil {
			submission.PlagiarismScore = update.PlagiarismScore
		}

		return tx.Save(&submission).Error
	})
}
