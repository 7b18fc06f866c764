package dto

import (
	"time"

	"github.com/corrigo/corrigo-api/internal/models"
)

// ExerciseCreateRequest describes the payload for publishing an exercise.
type ExerciseCreateRequest struct {
	ProfessorID uint      `json:"professor_id" validate:"required,gt=0"`
	Title       string    `json:"title" validate:"required,min=3,max=255"`
	Statement   string    `json:"statement" validate:"required,min=10"`
	Deadline    time.Time `json:"deadline" validate:"required"`
}

// ExerciseResponse is returned to API clients when viewing exercises.
type ExerciseResponse struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Statement string    `json:"statement"`
	FileURL   string    `json:"file_url"`
	Deadline  time.Time `json:"deadline"`
	CreatedAt time.Time `json:"created_at"`
	Professor UserLite  `json:"professor"`
}

// UserLite summarizes a user without exposing full profile data.
type UserLite struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewExerciseResponse converts an Exercise model into a DTO.
func NewExerciseResponse(model models.Exercise) ExerciseResponse {
	response := ExerciseResponse{
		ID:        model.ID,
		Title:     model.Title,
		Statement: model.Statement,
		FileURL:   model.FileURL,
		Deadline:  model.Deadline,
		CreatedAt: model.CreatedAt,
	}

	if model.Professor.ID != 0 {
		response.Professor = UserLite{
			ID:    model.Professor.ID,
			Name:  model.Professor.Name,
			Email: model.Professor.Email,
		}
	}

	return response
}

// NewExerciseResponseSlice converts exercise models into DTOs.
func NewExerciseResponseSlice(models []models.Exercise) []ExerciseResponse {
	responses := make([]ExerciseResponse, 0, len(models))
	for _, exercise := range models {
		responses = append(responses, NewExerciseResponse(exercise))
	}

	return responses
}
