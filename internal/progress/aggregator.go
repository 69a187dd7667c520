// Package progress derives per-phase and overall workbook progress from a
// student's submission log. Everything here is pure: no store access, so the
// result can serve as the reference that cached progress rows are checked
// against.
package progress

import (
	"go.uber.org/zap"

	"medic-workbook/backend/internal/model"
	"medic-workbook/backend/internal/phase"
	pkgerrors "medic-workbook/backend/pkg/errors"
)

// Counts is the read shape surfaced to the UI for a phase or the whole workbook.
type Counts struct {
	Completed  int  `json:"completed"`
	Total      int  `json:"total"`
	Percentage int  `json:"percentage"`
	IsComplete bool `json:"is_complete"`
}

// PhaseCounts progress of one phase.
// Addenda are extra copies beyond a slot's required count; they never count
// toward Completed.
type PhaseCounts struct {
	Phase string `json:"phase"`
	Counts
	Addenda int `json:"addenda,omitempty"`
}

// Overall progress across all phases.
type Overall struct {
	CompletedForms  int  `json:"completed_forms"`
	TotalForms      int  `json:"total_forms"`
	CompletedPhases int  `json:"completed_phases"`
	TotalPhases     int  `json:"total_phases"`
	Percentage      int  `json:"percentage"`
	IsComplete      bool `json:"is_complete"`
}

// Counts flattens the overall figures to the common read shape.
func (o Overall) Counts() Counts {
	return Counts{
		Completed:  o.CompletedForms,
		Total:      o.TotalForms,
		Percentage: o.Percentage,
		IsComplete: o.IsComplete,
	}
}

// Skipped a submitted record left out of the counts.
type Skipped struct {
	FormType   phase.FormType `json:"form_type"`
	FormNumber int            `json:"form_number"`
	Reason     string         `json:"reason"`
}

// Snapshot is a full computation for one student.
type Snapshot struct {
	StudentID string        `json:"student_id"`
	Phases    []PhaseCounts `json:"phases"` // workbook order
	Overall   Overall       `json:"overall"`
	Skipped   []Skipped     `json:"skipped,omitempty"`
}

// Phase returns the counts of one phase.
func (s Snapshot) Phase(name string) (PhaseCounts, bool) {
	for _, pc := range s.Phases {
		if pc.Phase == name {
			return pc, true
		}
	}
	return PhaseCounts{}, false
}

// Aggregator computes snapshots against a fixed phase map.
type Aggregator struct {
	phases *phase.Map
	logger *zap.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(phases *phase.Map, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{phases: phases, logger: logger}
}

// Phases exposes the map the aggregator counts against.
func (a *Aggregator) Phases() *phase.Map { return a.phases }

type formKey struct {
	formType   phase.FormType
	formNumber int
}

// Compute derives progress from submissions.
//
// Only submitted records count. Within a phase each distinct
// (form_type, form_number) counts once, so a form submitted twice is one item.
// A slot contributes at most its required numbers 1..Required, so copies of
// one form type can never stand in for another type's quota.
// A record whose form type has no phase is logged and skipped; it never
// aborts the computation.
func (a *Aggregator) Compute(studentID string, submissions []model.Submission) Snapshot {
	seen := make(map[string]map[formKey]struct{}, a.phases.TotalPhases())
	addenda := make(map[string]map[formKey]struct{})
	var skipped []Skipped

	for _, sub := range submissions {
		if !sub.IsSubmitted() {
			continue
		}
		phaseName, ok := a.phases.PhaseOf(sub.FormType)
		if !ok {
			a.logger.Warn("submission skipped during aggregation",
				zap.String("student_id", studentID),
				zap.String("form_type", string(sub.FormType)),
				zap.Int("form_number", sub.FormNumber),
				zap.Error(pkgerrors.ErrUnmappedFormType),
			)
			skipped = append(skipped, Skipped{
				FormType:   sub.FormType,
				FormNumber: sub.FormNumber,
				Reason:     pkgerrors.ErrUnmappedFormType.Error(),
			})
			continue
		}
		slot, _ := a.phases.Slot(sub.FormType)
		key := formKey{formType: sub.FormType, formNumber: sub.FormNumber}
		switch {
		case sub.FormNumber >= 1 && sub.FormNumber <= slot.Required:
			addKey(seen, phaseName, key)
		case slot.IsAddendum(sub.FormNumber):
			addKey(addenda, phaseName, key)
		default:
			a.logger.Warn("submission skipped during aggregation",
				zap.String("student_id", studentID),
				zap.String("form_type", string(sub.FormType)),
				zap.Int("form_number", sub.FormNumber),
				zap.Int("required", slot.Required),
			)
			skipped = append(skipped, Skipped{
				FormType:   sub.FormType,
				FormNumber: sub.FormNumber,
				Reason:     "form number outside its slot",
			})
		}
	}

	snap := Snapshot{
		StudentID: studentID,
		Phases:    make([]PhaseCounts, 0, a.phases.TotalPhases()),
		Skipped:   skipped,
	}

	overall := Overall{
		TotalForms:  a.phases.TotalForms(),
		TotalPhases: a.phases.TotalPhases(),
	}
	for _, def := range a.phases.Phases() {
		pc := PhaseCounts{
			Phase:   def.Name,
			Counts:  NewCounts(len(seen[def.Name]), def.TotalItems),
			Addenda: len(addenda[def.Name]),
		}
		snap.Phases = append(snap.Phases, pc)

		overall.CompletedForms += pc.Completed
		if pc.IsComplete {
			overall.CompletedPhases++
		}
	}
	overall.Percentage = Percentage(overall.CompletedForms, overall.TotalForms)
	overall.IsComplete = overall.CompletedPhases >= overall.TotalPhases
	snap.Overall = overall

	return snap
}

func addKey(sets map[string]map[formKey]struct{}, phaseName string, key formKey) {
	set, ok := sets[phaseName]
	if !ok {
		set = make(map[formKey]struct{})
		sets[phaseName] = set
	}
	set[key] = struct{}{}
}

// NewCounts derives percentage and completion from raw counts.
func NewCounts(completed, total int) Counts {
	return Counts{
		Completed:  completed,
		Total:      total,
		Percentage: Percentage(completed, total),
		IsComplete: completed >= total,
	}
}

// Percentage is round-half-up of completed/total*100 in integer arithmetic,
// clamped to [0,100]. An empty total counts as done.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 100
	}
	if completed <= 0 {
		return 0
	}
	p := (completed*200 + total) / (2 * total)
	if p > 100 {
		return 100
	}
	return p
}
