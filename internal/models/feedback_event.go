package models

import "time"

// FeedbackEvent is one row of the append-only log of human corrections.
// The rows are training signal for offline model tuning; nothing in the
// real-time pipeline ever reads them back.
type FeedbackEvent struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CorrectionID uint       `gorm:"not null;index" json:"correction_id"`
	AuthorID     uint       `gorm:"not null" json:"author_id"`
	Payload      string     `gorm:"type:text;not null" json:"payload"`
	CreatedAt    time.Time  `json:"created_at"`
	Correction   Correction `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
