package dto

// ── Progress module DTO ──

// ProgressCounts common read shape for a phase or the whole workbook
type ProgressCounts struct {
	Completed  int  `json:"completed"`
	Total      int  `json:"total"`
	Percentage int  `json:"percentage"`
	IsComplete bool `json:"is_complete"`
}

// PhaseProgressResponse progress of one phase
type PhaseProgressResponse struct {
	Phase    string `json:"phase"`
	Title    string `json:"title"`
	Unlocked bool   `json:"unlocked"`
	ProgressCounts
}

// OverallProgressResponse whole-workbook progress
type OverallProgressResponse struct {
	CompletedForms  int  `json:"completed_forms"`
	TotalForms      int  `json:"total_forms"`
	CompletedPhases int  `json:"completed_phases"`
	TotalPhases     int  `json:"total_phases"`
	Percentage      int  `json:"percentage"`
	IsComplete      bool `json:"is_complete"`
}

// ProgressSummaryResponse every phase in workbook order plus overall
type ProgressSummaryResponse struct {
	StudentID string                  `json:"student_id"`
	Phases    []PhaseProgressResponse `json:"phases"`
	Overall   OverallProgressResponse `json:"overall"`
}

// PhaseUnlockedResponse navigation gate
type PhaseUnlockedResponse struct {
	Phase    string `json:"phase"`
	Unlocked bool   `json:"unlocked"`
}
