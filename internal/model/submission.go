package model

import (
	"time"

	"gorm.io/datatypes"

	"medic-workbook/backend/internal/phase"
)

// SubmissionStatus draft | submitted
type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "draft"
	SubmissionSubmitted SubmissionStatus = "submitted"
)

// Submission one form instance of one student (table workbook_submissions).
// Source of truth for all progress figures.
type Submission struct {
	StudentID   string           `gorm:"type:varchar(64);primaryKey"                   json:"student_id"`
	FormType    phase.FormType   `gorm:"type:varchar(64);primaryKey"                   json:"form_type"`
	FormNumber  int              `gorm:"primaryKey;autoIncrement:false"                json:"form_number"`
	Status      SubmissionStatus `gorm:"type:varchar(16);not null;default:'draft'"     json:"status"`
	Payload     datatypes.JSON   `gorm:"type:jsonb"                                    json:"payload,omitempty"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
	BaseModel
}

func (Submission) TableName() string { return "workbook_submissions" }

// IsSubmitted reports whether the instance counts toward progress.
func (s *Submission) IsSubmitted() bool { return s.Status == SubmissionSubmitted }
