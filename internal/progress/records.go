package progress

import (
	"fmt"

	"medic-workbook/backend/internal/model"
)

// PhaseRecords converts a snapshot into phase_progress rows.
func (s Snapshot) PhaseRecords() []model.PhaseProgress {
	out := make([]model.PhaseProgress, 0, len(s.Phases))
	for _, pc := range s.Phases {
		out = append(out, model.PhaseProgress{
			StudentID:            s.StudentID,
			PhaseName:            pc.Phase,
			TotalItems:           pc.Total,
			CompletedItems:       pc.Completed,
			CompletionPercentage: pc.Percentage,
			IsComplete:           pc.IsComplete,
		})
	}
	return out
}

// OverallRecord converts a snapshot into its overall_progress row.
func (s Snapshot) OverallRecord() model.OverallProgress {
	return model.OverallProgress{
		StudentID:         s.StudentID,
		CompletedForms:    s.Overall.CompletedForms,
		TotalForms:        s.Overall.TotalForms,
		CompletedPhases:   s.Overall.CompletedPhases,
		TotalPhases:       s.Overall.TotalPhases,
		OverallPercentage: s.Overall.Percentage,
		IsComplete:        s.Overall.IsComplete,
	}
}

// Diff compares stored rows with a fresh snapshot field by field.
// It returns one message per mismatch; an empty result means no drift.
// overall may be nil when the student has no overall row yet.
func Diff(fresh Snapshot, stored []model.PhaseProgress, overall *model.OverallProgress) []string {
	var out []string

	byPhase := make(map[string]model.PhaseProgress, len(stored))
	for _, row := range stored {
		byPhase[row.PhaseName] = row
	}

	for _, pc := range fresh.Phases {
		row, ok := byPhase[pc.Phase]
		if !ok {
			out = append(out, fmt.Sprintf("phase %q: no progress record stored", pc.Phase))
			continue
		}
		delete(byPhase, pc.Phase)
		out = appendInt(out, "phase "+quote(pc.Phase), "total_items", row.TotalItems, pc.Total)
		out = appendInt(out, "phase "+quote(pc.Phase), "completed_items", row.CompletedItems, pc.Completed)
		out = appendInt(out, "phase "+quote(pc.Phase), "completion_percentage", row.CompletionPercentage, pc.Percentage)
		out = appendBool(out, "phase "+quote(pc.Phase), "is_complete", row.IsComplete, pc.IsComplete)
	}

	for _, row := range stored {
		if _, left := byPhase[row.PhaseName]; left {
			out = append(out, fmt.Sprintf("phase %q: progress record stored for a phase that no longer exists", row.PhaseName))
		}
	}

	if overall == nil {
		return append(out, "overall: no progress record stored")
	}
	o := fresh.Overall
	out = appendInt(out, "overall", "completed_forms", overall.CompletedForms, o.CompletedForms)
	out = appendInt(out, "overall", "total_forms", overall.TotalForms, o.TotalForms)
	out = appendInt(out, "overall", "completed_phases", overall.CompletedPhases, o.CompletedPhases)
	out = appendInt(out, "overall", "total_phases", overall.TotalPhases, o.TotalPhases)
	out = appendInt(out, "overall", "overall_percentage", overall.OverallPercentage, o.Percentage)
	out = appendBool(out, "overall", "is_complete", overall.IsComplete, o.IsComplete)

	return out
}

func quote(s string) string { return fmt.Sprintf("%q", s) }

func appendInt(out []string, scope, field string, stored, expected int) []string {
	if stored == expected {
		return out
	}
	return append(out, fmt.Sprintf("%s: %s stored=%d expected=%d", scope, field, stored, expected))
}

func appendBool(out []string, scope, field string, stored, expected bool) []string {
	if stored == expected {
		return out
	}
	return append(out, fmt.Sprintf("%s: %s stored=%t expected=%t", scope, field, stored, expected))
}
