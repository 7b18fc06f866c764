package dto

import (
	"time"

	"github.com/corrigo/corrigo-api/internal/models"
)

// SubmissionCreateRequest describes the multipart payload for a submission upload.
type SubmissionCreateRequest struct {
	ExerciseID uint `form:"exercise_id" validate:"required,gt=0"`
	StudentID  uint `form:"student_id" validate:"required,gt=0"`
}

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	ExerciseID *uint   `query:"exercise_id"`
	StudentID  *uint   `query:"student_id"`
	Status     *string `query:"status" validate:"omitempty,oneof=pending processing corrected failed"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID              uint         `json:"id"`
	ExerciseID      uint         `json:"exercise_id"`
	StudentID       uint         `json:"student_id"`
	FileURL         string       `json:"file_url"`
	FileName        string       `json:"file_name"`
	SubmittedAt     time.Time    `json:"submitted_at"`
	Late            bool         `json:"late"`
	Status          string       `json:"status"`
	Plagiarized     bool         `json:"plagiarized"`
	PlagiarismScore *float64     `json:"plagiarism_score"`
	CreatedAt       time.Time    `json:"created_at"`
	Exercise        ExerciseLite `json:"exercise"`
	Student         UserLite     `json:"student"`
}

// ExerciseLite summarizes an exercise in submission responses.
type ExerciseLite struct {
	ID       uint      `json:"id"`
	Title    string    `json:"title"`
	Deadline time.Time `json:"deadline"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:              model.ID,
		ExerciseID:      model.ExerciseID,
		StudentID:       model.StudentID,
		FileURL:         model.FileURL,
		FileName:        model.FileName,
		SubmittedAt:     model.SubmittedAt,
		Late:            model.Late,
		Status:          model.Status,
		Plagiarized:     model.Plagiarized,
		PlagiarismScore: model.PlagiarismScore,
		CreatedAt:       model.CreatedAt,
	}

	if model.Exercise.ID != 0 {
		response.Exercise = ExerciseLite{
			ID:       model.Exercise.ID,
			Title:    model.Exercise.Title,
			Deadline: model.Exercise.Deadline,
		}
	}

	if model.Student.ID != 0 {
		response.Student = UserLite{
			ID:    model.Student.ID,
			Name:  model.Student.Name,
			Email: model.Student.Email,
		}
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(models []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(models))
	for _, submission := range models {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
