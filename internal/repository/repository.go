package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	pkgerrors "medic-workbook/backend/pkg/errors"
)

// Repository aggregates every repository.
type Repository struct {
	Submission SubmissionRepository
	Progress   ProgressRepository
	Report     ReconciliationReportRepository
}

// NewRepository creates the Repository aggregate.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Submission: NewSubmissionRepo(db),
		Progress:   NewProgressRepo(db),
		Report:     NewReconciliationReportRepo(db),
	}
}

// storeErr classifies driver failures as ErrStoreUnavailable.
// Not-found, cancellation and domain errors pass through unchanged.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, pkgerrors.ErrInvalidTransition),
		errors.Is(err, pkgerrors.ErrStoreUnavailable):
		return err
	}
	return fmt.Errorf("%w: %w", pkgerrors.ErrStoreUnavailable, err)
}
