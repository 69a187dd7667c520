package dto

import "encoding/json"

// ── Submission module DTO ──

// SubmitFormRequest submit or save a form instance
type SubmitFormRequest struct {
	FormType   string          `json:"form_type"   binding:"required"`
	FormNumber int             `json:"form_number" binding:"required,min=1"`
	Status     string          `json:"status"      binding:"omitempty,oneof=draft submitted"` // default submitted
	Payload    json.RawMessage `json:"payload"`
}

// IsDraft reports whether the request only saves a draft.
func (r *SubmitFormRequest) IsDraft() bool { return r.Status == "draft" }

// SubmissionResponse one form instance
type SubmissionResponse struct {
	StudentID   string          `json:"student_id"`
	FormType    string          `json:"form_type"`
	FormNumber  int             `json:"form_number"`
	Phase       string          `json:"phase,omitempty"`
	Status      string          `json:"status"`
	IsAddendum  bool            `json:"is_addendum"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	SubmittedAt string          `json:"submitted_at,omitempty"`
	UpdatedAt   string          `json:"updated_at"`
}

// SubmitFormResponse result of a submit.
// ProgressSynced is false when the progress backstop failed; the nightly sweep repairs it.
type SubmitFormResponse struct {
	Submission     SubmissionResponse `json:"submission"`
	ProgressSynced bool               `json:"progress_synced"`
}
