package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"medic-workbook/backend/internal/dto"
	"medic-workbook/backend/internal/model"
	"medic-workbook/backend/internal/phase"
	"medic-workbook/backend/internal/progress"
	"medic-workbook/backend/internal/repository"
)

// ── Progress module business errors ──

var ErrUnknownPhase = errors.New("unknown phase")

// ProgressService serves cached progress to the UI.
//
// Reads never fail because a student has no rows yet: a missing row is
// reported as the zero state (nothing completed) of that phase or of the
// whole workbook.
type ProgressService interface {
	ListPhases() []dto.PhaseResponse
	GetPhaseProgress(ctx context.Context, studentID, phaseName string) (*dto.PhaseProgressResponse, error)
	GetOverallProgress(ctx context.Context, studentID string) (*dto.OverallProgressResponse, error)
	GetSummary(ctx context.Context, studentID string) (*dto.ProgressSummaryResponse, error)
	// IsPhaseUnlocked reports whether every phase before phaseName is complete.
	IsPhaseUnlocked(ctx context.Context, studentID, phaseName string) (bool, error)
}

type progressService struct {
	repo   *repository.Repository
	phases *phase.Map
	logger *zap.Logger
}

// NewProgressService creates a ProgressService.
func NewProgressService(repo *repository.Repository, phases *phase.Map, logger *zap.Logger) ProgressService {
	return &progressService{repo: repo, phases: phases, logger: logger}
}

// ────────────────────── ListPhases ──────────────────────

func (s *progressService) ListPhases() []dto.PhaseResponse {
	defs := s.phases.Phases()
	result := make([]dto.PhaseResponse, 0, len(defs))
	for i, def := range defs {
		forms := make([]dto.FormSlotResponse, 0, len(def.Forms))
		for _, slot := range def.Forms {
			forms = append(forms, dto.FormSlotResponse{
				FormType:      slot.Type.String(),
				Required:      slot.Required,
				AllowsAddenda: slot.AllowsAddenda,
			})
		}
		result = append(result, dto.PhaseResponse{
			Name:       def.Name,
			Title:      def.Title,
			Order:      i + 1,
			TotalItems: def.TotalItems,
			Forms:      forms,
		})
	}
	return result
}

// ────────────────────── GetPhaseProgress ──────────────────────

func (s *progressService) GetPhaseProgress(ctx context.Context, studentID, phaseName string) (*dto.PhaseProgressResponse, error) {
	if _, ok := s.phases.Phase(phaseName); !ok {
		return nil, ErrUnknownPhase
	}

	phases, err := s.loadPhases(ctx, studentID)
	if err != nil {
		return nil, err
	}
	for i := range phases {
		if phases[i].Phase == phaseName {
			return &phases[i], nil
		}
	}
	return nil, ErrUnknownPhase
}

// ────────────────────── GetOverallProgress ──────────────────────

func (s *progressService) GetOverallProgress(ctx context.Context, studentID string) (*dto.OverallProgressResponse, error) {
	row, err := s.repo.Progress.GetOverall(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			zero := s.zeroOverall()
			return &zero, nil
		}
		s.logger.Error("get overall progress failed", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	return toOverallResponse(row), nil
}

// ────────────────────── GetSummary ──────────────────────

func (s *progressService) GetSummary(ctx context.Context, studentID string) (*dto.ProgressSummaryResponse, error) {
	phases, err := s.loadPhases(ctx, studentID)
	if err != nil {
		return nil, err
	}
	overall, err := s.GetOverallProgress(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return &dto.ProgressSummaryResponse{
		StudentID: studentID,
		Phases:    phases,
		Overall:   *overall,
	}, nil
}

// ────────────────────── IsPhaseUnlocked ──────────────────────

func (s *progressService) IsPhaseUnlocked(ctx context.Context, studentID, phaseName string) (bool, error) {
	p, err := s.GetPhaseProgress(ctx, studentID, phaseName)
	if err != nil {
		return false, err
	}
	return p.Unlocked, nil
}

// loadPhases returns every phase in workbook order, stored rows where they
// exist and the zero state elsewhere.
func (s *progressService) loadPhases(ctx context.Context, studentID string) ([]dto.PhaseProgressResponse, error) {
	rows, err := s.repo.Progress.ListPhases(ctx, studentID)
	if err != nil {
		s.logger.Error("list phase progress failed", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	byName := make(map[string]*model.PhaseProgress, len(rows))
	for i := range rows {
		byName[rows[i].PhaseName] = &rows[i]
	}

	defs := s.phases.Phases()
	result := make([]dto.PhaseProgressResponse, 0, len(defs))
	unlocked := true
	for _, def := range defs {
		counts := toCounts(progress.NewCounts(0, def.TotalItems))
		if row, ok := byName[def.Name]; ok {
			counts = dto.ProgressCounts{
				Completed:  row.CompletedItems,
				Total:      row.TotalItems,
				Percentage: row.CompletionPercentage,
				IsComplete: row.IsComplete,
			}
		}
		result = append(result, dto.PhaseProgressResponse{
			Phase:          def.Name,
			Title:          def.Title,
			Unlocked:       unlocked,
			ProgressCounts: counts,
		})
		unlocked = unlocked && counts.IsComplete
	}
	return result, nil
}

func (s *progressService) zeroOverall() dto.OverallProgressResponse {
	total := s.phases.TotalForms()
	return dto.OverallProgressResponse{
		TotalForms:  total,
		TotalPhases: s.phases.TotalPhases(),
		Percentage:  progress.Percentage(0, total),
		IsComplete:  s.phases.TotalPhases() == 0,
	}
}

// ── converters ──

func toCounts(c progress.Counts) dto.ProgressCounts {
	return dto.ProgressCounts{
		Completed:  c.Completed,
		Total:      c.Total,
		Percentage: c.Percentage,
		IsComplete: c.IsComplete,
	}
}

func toOverallResponse(row *model.OverallProgress) *dto.OverallProgressResponse {
	return &dto.OverallProgressResponse{
		CompletedForms:  row.CompletedForms,
		TotalForms:      row.TotalForms,
		CompletedPhases: row.CompletedPhases,
		TotalPhases:     row.TotalPhases,
		Percentage:      row.OverallPercentage,
		IsComplete:      row.IsComplete,
	}
}

// toSummary renders a freshly computed snapshot in the read shape.
func toSummary(agg *progress.Aggregator, snap progress.Snapshot) dto.ProgressSummaryResponse {
	phases := make([]dto.PhaseProgressResponse, 0, len(snap.Phases))
	unlocked := true
	for _, pc := range snap.Phases {
		title := ""
		if def, ok := agg.Phases().Phase(pc.Phase); ok {
			title = def.Title
		}
		phases = append(phases, dto.PhaseProgressResponse{
			Phase:          pc.Phase,
			Title:          title,
			Unlocked:       unlocked,
			ProgressCounts: toCounts(pc.Counts),
		})
		unlocked = unlocked && pc.IsComplete
	}
	return dto.ProgressSummaryResponse{
		StudentID: snap.StudentID,
		Phases:    phases,
		Overall: dto.OverallProgressResponse{
			CompletedForms:  snap.Overall.CompletedForms,
			TotalForms:      snap.Overall.TotalForms,
			CompletedPhases: snap.Overall.CompletedPhases,
			TotalPhases:     snap.Overall.TotalPhases,
			Percentage:      snap.Overall.Percentage,
			IsComplete:      snap.Overall.IsComplete,
		},
	}
}
