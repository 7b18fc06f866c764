package models

import "time"

// Exercise represents an exercise published by a professor. The statement text
// doubles as the reference answer handed to the grading oracle.
type Exercise struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	ProfessorID uint         `gorm:"not null" json:"professor_id"`
	Title       string       `gorm:"size:255;not null" json:"title"`
	Statement   string       `gorm:"type:text" json:"statement"`
	FileURL     string       `gorm:"size:512" json:"file_url"`
	Deadline    time.Time    `gorm:"not null" json:"deadline"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Professor   User         `gorm:"foreignKey:ProfessorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"professor"`
	Submissions []Submission `json:"-"`
}

// IsPastDue returns true when the deadline has already passed at the reference time.
func (e Exercise) IsPastDue(reference time.Time) bool {
	return reference.After(e.Deadline)
}
