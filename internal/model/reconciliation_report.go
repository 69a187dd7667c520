package model

import (
	"time"

	"gorm.io/datatypes"
)

// Reconciliation report kinds
const (
	ReportKindDiagnose = "diagnose"
	ReportKindFix      = "fix"
)

// ReconciliationReport audit row written by diagnose (when drift is found) and by every fix.
type ReconciliationReport struct {
	ReportID           string         `gorm:"type:uuid;primaryKey"          json:"report_id"`
	RunID              string         `gorm:"type:uuid;not null;index"      json:"run_id"`
	StudentID          string         `gorm:"type:varchar(64);not null"     json:"student_id"`
	Kind               string         `gorm:"type:varchar(16);not null"     json:"kind"` // diagnose | fix
	InconsistencyCount int            `gorm:"not null;default:0"            json:"inconsistency_count"`
	Details            datatypes.JSON `gorm:"type:jsonb"                    json:"details,omitempty"`
	Success            bool           `gorm:"not null"                      json:"success"`
	Error              string         `gorm:"type:text"                     json:"error,omitempty"`
	CreatedAt          time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ReconciliationReport) TableName() string { return "reconciliation_reports" }
