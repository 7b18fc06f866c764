package models

import "time"

// User roles recognised by the platform.
const (
	RoleProfessor = "professeur"
	RoleStudent   = "etudiant"
)

// User represents a platform account, either a professor or a student.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role      string    `gorm:"size:32;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsProfessor reports whether the account belongs to a professor.
func (u User) IsProfessor() bool {
	return u.Role == RoleProfessor
}
