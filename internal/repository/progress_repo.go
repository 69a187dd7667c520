package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medic-workbook/backend/internal/model"
)

// ProgressRepository cached progress data access.
// Getters return gorm.ErrRecordNotFound when no row exists yet.
type ProgressRepository interface {
	UpsertPhase(ctx context.Context, rec *model.PhaseProgress) error
	UpsertOverall(ctx context.Context, rec *model.OverallProgress) error
	GetPhase(ctx context.Context, studentID, phaseName string) (*model.PhaseProgress, error)
	ListPhases(ctx context.Context, studentID string) ([]model.PhaseProgress, error)
	GetOverall(ctx context.Context, studentID string) (*model.OverallProgress, error)
	ListOverall(ctx context.Context) ([]model.OverallProgress, error)
	ListStudentIDs(ctx context.Context) ([]string, error)
}

type progressRepo struct {
	db *gorm.DB
}

// NewProgressRepo creates a ProgressRepository.
func NewProgressRepo(db *gorm.DB) ProgressRepository {
	return &progressRepo{db: db}
}

func (r *progressRepo) UpsertPhase(ctx context.Context, rec *model.PhaseProgress) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}, {Name: "phase_name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_items", "completed_items", "completion_percentage", "is_complete", "updated_at",
			}),
		}).
		Create(rec).Error
	return storeErr(err)
}

func (r *progressRepo) UpsertOverall(ctx context.Context, rec *model.OverallProgress) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"completed_forms", "total_forms", "completed_phases", "total_phases",
				"overall_percentage", "is_complete", "updated_at",
			}),
		}).
		Create(rec).Error
	return storeErr(err)
}

func (r *progressRepo) GetPhase(ctx context.Context, studentID, phaseName string) (*model.PhaseProgress, error) {
	var rec model.PhaseProgress
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND phase_name = ?", studentID, phaseName).
		First(&rec).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return &rec, nil
}

func (r *progressRepo) ListPhases(ctx context.Context, studentID string) ([]model.PhaseProgress, error) {
	var recs []model.PhaseProgress
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("phase_name ASC").
		Find(&recs).Error
	return recs, storeErr(err)
}

func (r *progressRepo) GetOverall(ctx context.Context, studentID string) (*model.OverallProgress, error) {
	var rec model.OverallProgress
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		First(&rec).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return &rec, nil
}

func (r *progressRepo) ListOverall(ctx context.Context) ([]model.OverallProgress, error) {
	var recs []model.OverallProgress
	err := r.db.WithContext(ctx).
		Order("student_id ASC").
		Find(&recs).Error
	return recs, storeErr(err)
}

func (r *progressRepo) ListStudentIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.OverallProgress{}).
		Order("student_id ASC").
		Pluck("student_id", &ids).Error
	if err != nil {
		return nil, storeErr(err)
	}

	var phaseIDs []string
	err = r.db.WithContext(ctx).
		Model(&model.PhaseProgress{}).
		Distinct("student_id").
		Order("student_id ASC").
		Pluck("student_id", &phaseIDs).Error
	if err != nil {
		return nil, storeErr(err)
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range phaseIDs {
		if !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}
	return ids, nil
}
