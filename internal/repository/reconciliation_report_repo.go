package repository

import (
	"context"

	"gorm.io/gorm"

	"medic-workbook/backend/internal/model"
)

// ReconciliationReportRepository reconciliation audit data access
type ReconciliationReportRepository interface {
	Create(ctx context.Context, report *model.ReconciliationReport) error
	ListByStudent(ctx context.Context, studentID string, limit int) ([]model.ReconciliationReport, error)
}

type reconciliationReportRepo struct {
	db *gorm.DB
}

// NewReconciliationReportRepo creates a ReconciliationReportRepository.
func NewReconciliationReportRepo(db *gorm.DB) ReconciliationReportRepository {
	return &reconciliationReportRepo{db: db}
}

func (r *reconciliationReportRepo) Create(ctx context.Context, report *model.ReconciliationReport) error {
	return storeErr(r.db.WithContext(ctx).Create(report).Error)
}

func (r *reconciliationReportRepo) ListByStudent(ctx context.Context, studentID string, limit int) ([]model.ReconciliationReport, error) {
	if limit <= 0 {
		limit = 20
	}
	var reports []model.ReconciliationReport
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&reports).Error
	return reports, storeErr(err)
}
