package models

import "time"

// Submission lifecycle states.
const (
	// SubmissionStatusPending indicates the submission is queued for correction.
	SubmissionStatusPending = "pending"
	// SubmissionStatusProcessing indicates a pipeline worker picked up the submission.
	SubmissionStatusProcessing = "processing"
	// SubmissionStatusCorrected indicates the correction has been committed.
	SubmissionStatusCorrected = "corrected"
	// SubmissionStatusFailed indicates the pipeline exhausted its retries.
	SubmissionStatusFailed = "failed"
)

// Submission represents one student's attempt at one exercise. At most one
// submission may exist per (exercise, student) pair. Plagiarism fields and the
// extracted text are written once by the correction pipeline; everything else
// is immutable after upload.
type Submission struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ExerciseID      uint      `gorm:"not null;uniqueIndex:idx_submission_exercise_student" json:"exercise_id"`
	StudentID       uint      `gorm:"not null;uniqueIndex:idx_submission_exercise_student" json:"student_id"`
	FileURL         string    `gorm:"size:512;not null" json:"file_url"`
	FileName        string    `gorm:"size:255" json:"file_name"`
	FileSize        int64     `gorm:"default:0" json:"file_size"`
	SubmittedAt     time.Time `gorm:"not null" json:"submitted_at"`
	Late            bool      `gorm:"default:false" json:"late"`
	SubmitterIP     string    `gorm:"size:64" json:"-"`
	Status          string    `gorm:"size:32;not null" json:"status"`
	ExtractedText   string    `gorm:"type:text" json:"-"`
	Plagiarized     bool      `gorm:"default:false" json:"plagiarized"`
	PlagiarismScore *float64  `json:"plagiarism_score"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Exercise        Exercise  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"exercise"`
	Student         User      `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// IsCorrected reports whether the pipeline committed a correction for the submission.
func (s Submission) IsCorrected() bool {
	return s.Status == SubmissionStatusCorrected
}
