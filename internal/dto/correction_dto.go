package dto

import (
	"encoding/json"
	"time"

	"github.com/corrigo/corrigo-api/internal/models"
)

// CorrectionReviewRequest is the payload a professor submits when reviewing
// an automatic correction.
type CorrectionReviewRequest struct {
	Approved   *bool    `json:"approved" validate:"required"`
	Note       *float64 `json:"note" validate:"omitempty,gte=0,lte=20"`
	Feedback   *string  `json:"feedback" validate:"omitempty,min=3"`
	Comment    string   `json:"comment" validate:"omitempty,max=2000"`
	ReviewerID uint     `json:"reviewer_id" validate:"required,gt=0"`
}

// CorrectionResponse is returned to API clients when viewing a correction.
type CorrectionResponse struct {
	ID               uint            `json:"id"`
	SubmissionID     uint            `json:"submission_id"`
	Note             float64         `json:"note"`
	NoteMax          float64         `json:"note_max"`
	Feedback         string          `json:"feedback"`
	Strengths        string          `json:"points_forts"`
	Weaknesses       string          `json:"points_faibles"`
	Model            string          `json:"model"`
	NonConforming    bool            `json:"non_conforming"`
	LowConfidence    bool            `json:"low_confidence"`
	PlagiarismScore  float64         `json:"plagiarism_score"`
	PlagiarismReport json.RawMessage `json:"plagiarism_report,omitempty"`
	ReviewerComment  string          `json:"reviewer_comment,omitempty"`
	Approved         *bool           `json:"approved"`
	ApprovedAt       *time.Time      `json:"approved_at"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// NewCorrectionResponse converts a Correction model into a DTO.
func NewCorrectionResponse(model models.Correction) CorrectionResponse {
	response := CorrectionResponse{
		ID:              model.ID,
		SubmissionID:    model.SubmissionID,
		Note:            model.Note,
		NoteMax:         models.NoteMax,
		Feedback:        model.Feedback,
		Strengths:       model.Strengths,
		Weaknesses:      model.Weaknesses,
		Model:           model.Model,
		NonConforming:   model.NonConforming,
		LowConfidence:   model.LowConfidence,
		PlagiarismScore: model.PlagiarismScore,
		ReviewerComment: model.ReviewerComment,
		Approved:        model.Approved,
		ApprovedAt:      model.ApprovedAt,
		GeneratedAt:     model.GeneratedAt,
	}

	if len(model.PlagiarismReport) > 0 {
		response.PlagiarismReport = json.RawMessage(model.PlagiarismReport)
	}

	return response
}
