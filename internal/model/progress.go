package model

// PhaseProgress cached per-phase progress (table phase_progress)
type PhaseProgress struct {
	StudentID            string `gorm:"type:varchar(64);primaryKey" json:"student_id"`
	PhaseName            string `gorm:"type:varchar(64);primaryKey" json:"phase_name"`
	TotalItems           int    `gorm:"not null;default:0"          json:"total_items"`
	CompletedItems       int    `gorm:"not null;default:0"          json:"completed_items"`
	CompletionPercentage int    `gorm:"not null;default:0"          json:"completion_percentage"`
	IsComplete           bool   `gorm:"not null;default:false"      json:"is_complete"`
	BaseModel
}

func (PhaseProgress) TableName() string { return "phase_progress" }

// OverallProgress cached whole-workbook progress, one row per student (table overall_progress)
type OverallProgress struct {
	StudentID         string `gorm:"type:varchar(64);primaryKey" json:"student_id"`
	CompletedForms    int    `gorm:"not null;default:0"          json:"completed_forms"`
	TotalForms        int    `gorm:"not null;default:0"          json:"total_forms"`
	CompletedPhases   int    `gorm:"not null;default:0"          json:"completed_phases"`
	TotalPhases       int    `gorm:"not null;default:0"          json:"total_phases"`
	OverallPercentage int    `gorm:"not null;default:0"          json:"overall_percentage"`
	IsComplete        bool   `gorm:"not null;default:false"      json:"is_complete"`
	BaseModel
}

func (OverallProgress) TableName() string { return "overall_progress" }
