package phase

import (
	"errors"
	"fmt"
)

// FormType is the closed set of workbook form kinds.
// Adding a kind means adding it to allFormTypes, to a phase definition and to
// DecodePayload; New refuses a map that leaves any kind out.
type FormType string

const (
	FormStudentDeclaration       FormType = "student_declaration"
	FormPreceptorAgreement       FormType = "preceptor_agreement"
	FormInstructionalCaseSummary FormType = "instructional_case_summary"
	FormShiftLog                 FormType = "shift_log"
	FormFormativeEvaluation      FormType = "formative_evaluation"
	FormCaseSummary              FormType = "case_summary"
	FormSummativeEvaluation      FormType = "summative_evaluation"
	FormCapstoneDeclaration      FormType = "capstone_declaration"
	FormCoordinatorSignoff       FormType = "coordinator_signoff"
)

var allFormTypes = []FormType{
	FormStudentDeclaration,
	FormPreceptorAgreement,
	FormInstructionalCaseSummary,
	FormShiftLog,
	FormFormativeEvaluation,
	FormCaseSummary,
	FormSummativeEvaluation,
	FormCapstoneDeclaration,
	FormCoordinatorSignoff,
}

// ErrUnknownFormType the value is not one of the known form kinds.
var ErrUnknownFormType = errors.New("unknown form type")

// AllFormTypes returns every known form kind in declaration order.
func AllFormTypes() []FormType {
	out := make([]FormType, len(allFormTypes))
	copy(out, allFormTypes)
	return out
}

// Valid reports whether t is a known form kind.
func (t FormType) Valid() bool {
	for _, ft := range allFormTypes {
		if ft == t {
			return true
		}
	}
	return false
}

func (t FormType) String() string { return string(t) }

// ParseFormType converts an inbound string to a FormType.
func ParseFormType(s string) (FormType, error) {
	t := FormType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormType, s)
	}
	return t, nil
}
