package phase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPayload the form body does not decode into its kind's payload.
var ErrInvalidPayload = errors.New("invalid form payload")

// Payload is the typed body of one form kind. Only this package implements it.
type Payload interface {
	FormType() FormType
	isPayload()
}

type StudentDeclaration struct {
	SignedName      string `json:"signed_name"`
	SignedOn        string `json:"signed_on"`
	AcceptsCodeRule bool   `json:"accepts_code_of_conduct"`
}

type PreceptorAgreement struct {
	PreceptorName  string `json:"preceptor_name"`
	Service        string `json:"service"`
	RegistrationNo string `json:"registration_no"`
	SignedOn       string `json:"signed_on"`
}

type InstructionalCaseSummary struct {
	Topic      string `json:"topic"`
	Summary    string `json:"summary"`
	Reflection string `json:"reflection"`
}

type ShiftLog struct {
	ShiftDate     string   `json:"shift_date"`
	Station       string   `json:"station"`
	Hours         float64  `json:"hours"`
	PatientCount  int      `json:"patient_count"`
	Skills        []string `json:"skills,omitempty"`
	PreceptorName string   `json:"preceptor_name"`
}

type FormativeEvaluation struct {
	EvaluatorName string         `json:"evaluator_name"`
	Ratings       map[string]int `json:"ratings,omitempty"`
	Comments      string         `json:"comments"`
}

type CaseSummary struct {
	IncidentDate   string   `json:"incident_date"`
	ChiefComplaint string   `json:"chief_complaint"`
	Interventions  []string `json:"interventions,omitempty"`
	Outcome        string   `json:"outcome"`
}

type SummativeEvaluation struct {
	EvaluatorName string `json:"evaluator_name"`
	Competent     bool   `json:"competent"`
	Comments      string `json:"comments"`
}

type CapstoneDeclaration struct {
	SignedName string `json:"signed_name"`
	SignedOn   string `json:"signed_on"`
}

type CoordinatorSignoff struct {
	CoordinatorName string `json:"coordinator_name"`
	SignedOn        string `json:"signed_on"`
	Notes           string `json:"notes"`
}

func (StudentDeclaration) FormType() FormType       { return FormStudentDeclaration }
func (PreceptorAgreement) FormType() FormType       { return FormPreceptorAgreement }
func (InstructionalCaseSummary) FormType() FormType { return FormInstructionalCaseSummary }
func (ShiftLog) FormType() FormType                 { return FormShiftLog }
func (FormativeEvaluation) FormType() FormType      { return FormFormativeEvaluation }
func (CaseSummary) FormType() FormType              { return FormCaseSummary }
func (SummativeEvaluation) FormType() FormType      { return FormSummativeEvaluation }
func (CapstoneDeclaration) FormType() FormType      { return FormCapstoneDeclaration }
func (CoordinatorSignoff) FormType() FormType       { return FormCoordinatorSignoff }

func (StudentDeclaration) isPayload()       {}
func (PreceptorAgreement) isPayload()       {}
func (InstructionalCaseSummary) isPayload() {}
func (ShiftLog) isPayload()                 {}
func (FormativeEvaluation) isPayload()      {}
func (CaseSummary) isPayload()              {}
func (SummativeEvaluation) isPayload()      {}
func (CapstoneDeclaration) isPayload()      {}
func (CoordinatorSignoff) isPayload()       {}

func newPayload(t FormType) (Payload, error) {
	switch t {
	case FormStudentDeclaration:
		return &StudentDeclaration{}, nil
	case FormPreceptorAgreement:
		return &PreceptorAgreement{}, nil
	case FormInstructionalCaseSummary:
		return &InstructionalCaseSummary{}, nil
	case FormShiftLog:
		return &ShiftLog{}, nil
	case FormFormativeEvaluation:
		return &FormativeEvaluation{}, nil
	case FormCaseSummary:
		return &CaseSummary{}, nil
	case FormSummativeEvaluation:
		return &SummativeEvaluation{}, nil
	case FormCapstoneDeclaration:
		return &CapstoneDeclaration{}, nil
	case FormCoordinatorSignoff:
		return &CoordinatorSignoff{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormType, string(t))
}

// DecodePayload decodes raw JSON into the payload struct of kind t.
// Unknown fields are rejected so a body meant for another form kind fails.
// Empty input yields the zero payload.
func DecodePayload(t FormType, raw []byte) (Payload, error) {
	p, err := newPayload(t)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return deref(p), nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrInvalidPayload, t, err)
	}
	return deref(p), nil
}

// EncodePayload marshals p for storage.
func EncodePayload(p Payload) ([]byte, error) {
	return json.Marshal(p)
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *StudentDeclaration:
		return *v
	case *PreceptorAgreement:
		return *v
	case *InstructionalCaseSummary:
		return *v
	case *ShiftLog:
		return *v
	case *FormativeEvaluation:
		return *v
	case *CaseSummary:
		return *v
	case *SummativeEvaluation:
		return *v
	case *CapstoneDeclaration:
		return *v
	case *CoordinatorSignoff:
		return *v
	}
	return p
}
