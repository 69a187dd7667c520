package dto

// ── Phase catalogue DTO ──

// FormSlotResponse a form kind required by a phase
type FormSlotResponse struct {
	FormType      string `json:"form_type"`
	Required      int    `json:"required"`
	AllowsAddenda bool   `json:"allows_addenda"`
}

// PhaseResponse static phase definition
type PhaseResponse struct {
	Name       string             `json:"name"`
	Title      string             `json:"title"`
	Order      int                `json:"order"` // 1-based
	TotalItems int                `json:"total_items"`
	Forms      []FormSlotResponse `json:"forms"`
}
