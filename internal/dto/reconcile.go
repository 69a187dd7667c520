package dto

// ── Reconciliation module DTO ──

// DiagnosisResponse cached progress compared with a fresh computation.
// Inconsistencies are advisory; an empty list means the cache is correct.
type DiagnosisResponse struct {
	StudentID       string                  `json:"student_id"`
	RunID           string                  `json:"run_id"`
	Consistent      bool                    `json:"consistent"`
	Inconsistencies []string                `json:"inconsistencies"`
	Fresh           ProgressSummaryResponse `json:"fresh"`
}

// FixResponse outcome of rewriting one student's progress rows
type FixResponse struct {
	StudentID string `json:"student_id"`
	RunID     string `json:"run_id"`
	Success   bool   `json:"success"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
}

// RecalculateAllResponse outcome of a full sweep
type RecalculateAllResponse struct {
	RunID          string   `json:"run_id"`
	Students       int      `json:"students"`
	Fixed          int      `json:"fixed"`
	Failed         int      `json:"failed"`
	FailedStudents []string `json:"failed_students,omitempty"`
	DurationMs     int64    `json:"duration_ms"`
}

// ReconciliationReportResponse persisted diagnose/fix audit row
type ReconciliationReportResponse struct {
	ReportID           string   `json:"report_id"`
	RunID              string   `json:"run_id"`
	StudentID          string   `json:"student_id"`
	Kind               string   `json:"kind"`
	InconsistencyCount int      `json:"inconsistency_count"`
	Details            []string `json:"details,omitempty"`
	Success            bool     `json:"success"`
	Error              string   `json:"error,omitempty"`
	CreatedAt          string   `json:"created_at"`
}
