package service

import (
	"go.uber.org/zap"

	"medic-workbook/backend/config"
	"medic-workbook/backend/internal/notify"
	"medic-workbook/backend/internal/phase"
	"medic-workbook/backend/internal/progress"
	"medic-workbook/backend/internal/repository"
)

// Service aggregates every service.
type Service struct {
	Submission SubmissionService
	Progress   ProgressService
	Reconcile  ReconcileService
	Export     ExportService
}

// NewService creates the Service aggregate.
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	phases *phase.Map,
	publisher notify.Publisher,
	logger *zap.Logger,
) *Service {
	agg := progress.NewAggregator(phases, logger)
	reconcile := NewReconcileService(cfg.Progress, repo, agg, logger)

	return &Service{
		Submission: NewSubmissionService(repo, phases, reconcile, publisher, logger),
		Progress:   NewProgressService(repo, phases, logger),
		Reconcile:  reconcile,
		Export:     NewExportService(repo, phases, logger),
	}
}
