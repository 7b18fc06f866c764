package models

import (
	"time"

	"gorm.io/datatypes"
)

// NoteMax is the upper bound of the grading scale.
const NoteMax = 20.0

// Correction captures the outcome of the automatic correction pipeline for a
// submission. Exactly zero or one Correction exists per Submission; the
// pipeline upserts and never appends. Reviewer fields are the only part a
// human may mutate afterwards.
type Correction struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	SubmissionID     uint           `gorm:"not null;uniqueIndex" json:"submission_id"`
	Note             float64        `gorm:"not null" json:"note"`
	Feedback         string         `gorm:"type:text" json:"feedback"`
	Strengths        string         `gorm:"type:text" json:"points_forts"`
	Weaknesses       string         `gorm:"type:text" json:"points_faibles"`
	Model            string         `gorm:"size:64" json:"model"`
	RawOutput        string         `gorm:"type:text" json:"-"`
	NonConforming    bool           `gorm:"default:false" json:"non_conforming"`
	LowConfidence    bool           `gorm:"default:false" json:"low_confidence"`
	PlagiarismScore  float64        `gorm:"default:0" json:"plagiarism_score"`
	PlagiarismReport datatypes.JSON `json:"plagiarism_report"`
	ReviewerComment  string         `gorm:"type:text" json:"reviewer_comment"`
	Approved         *bool          `json:"approved"`
	ApprovedAt       *time.Time     `json:"approved_at"`
	GeneratedAt      time.Time      `json:"generated_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Submission       Submission     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsReviewed reports whether a human reviewer already signed off on the correction.
func (c Correction) IsReviewed() bool {
	return c.Approved != nil
}
