package handler

import (
	"time"

	"medic-workbook/backend/internal/notify"
	"medic-workbook/backend/internal/service"
)

// Handler aggregates every handler.
type Handler struct {
	Submission *SubmissionHandler
	Progress   *ProgressHandler
	Reconcile  *ReconcileHandler
	Export     *ExportHandler
}

// NewHandler creates the Handler aggregate.
func NewHandler(svc *service.Service, events notify.Subscriber) *Handler {
	return &Handler{
		Submission: NewSubmissionHandler(svc.Submission),
		Progress:   NewProgressHandler(svc.Progress, events, 25*time.Second),
		Reconcile:  NewReconcileHandler(svc.Reconcile),
		Export:     NewExportHandler(svc.Export),
	}
}
