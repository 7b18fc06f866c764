package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/corrigo/corrigo-api/internal/models"
)

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	ExerciseID *uint
	StudentID  *uint
	Status     *string
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByExerciseAndStudent(ctx context.Context, exerciseID, studentID uint) (models.Submission, error)
	ListPeers(ctx context.Context, exerciseID, excludeID uint, before time.Time, limit int) ([]models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Exercise").
		Preload("Student")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx)

	if filter.ExerciseID != nil {
		query = query.Where("exercise_id = ?", *filter.ExerciseID)
	}

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var submissions []models.Submission
	if err := query.Order("submitted_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByExerciseAndStudent(ctx context.Context, exerciseID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Where("exercise_id = ?", exerciseID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

// ListPeers returns the most recent submissions for the same exercise made
// strictly before the reference time, excluding the target itself. The limit
// caps the comparison workload per pipeline run.
func (r *submissionRepository) ListPeers(ctx context.Context, exerciseID, excludeID uint, before time.Time, limit int) ([]models.Submission, error) {
	var peers []models.Submission
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
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

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}
