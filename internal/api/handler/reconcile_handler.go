package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"medic-workbook/backend/internal/service"
	"medic-workbook/backend/pkg/response"
)

// ReconcileHandler reconciliation HTTP handler (coordinator / admin)
type ReconcileHandler struct {
	reconcileSvc service.ReconcileService
}

// NewReconcileHandler creates a ReconcileHandler.
func NewReconcileHandler(reconcileSvc service.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{reconcileSvc: reconcileSvc}
}

// Diagnose compares a student's cached progress with the submission log
// GET /api/v1/students/:id/diagnostics
func (h *ReconcileHandler) Diagnose(c *gin.Context) {
	studentID, ok := MustGetStudentParam(c)
	if !ok {
		return
	}

	diag, err := h.reconcileSvc.Diagnose(c.Request.Context(), studentID)
	if err != nil {
		handleStoreError(c, err)
		return
	}
	response.OK(c, diag)
}

// Fix rewrites a student's progress rows from the submission log
// POST /api/v1/students/:id/fix
func (h *ReconcileHandler) Fix(c *gin.Context) {
	studentID, ok := MustGetStudentParam(c)
	if !ok {
		return
	}

	result, err := h.reconcileSvc.Fix(c.Request.Context(), studentID)
	if err != nil {
		response.ServiceUnavailable(c, 22001, "fix abandoned")
		return
	}
	response.OK(c, result)
}

// ListReports lists a student's reconciliation reports, newest first
// GET /api/v1/students/:id/reports?limit=20
func (h *ReconcileHandler) ListReports(c *gin.Context) {
	studentID, ok := MustGetStudentParam(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			response.BadRequest(c, 10001, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	reports, err := h.reconcileSvc.ListReports(c.Request.Context(), studentID, limit)
	if err != nil {
		handleStoreError(c, err)
		return
	}
	response.OK(c, gin.H{"list": reports})
}

// RecalculateAll fixes every known student
// POST /api/v1/admin/recalculate
func (h *ReconcileHandler) RecalculateAll(c *gin.Context) {
	result, err := h.reconcileSvc.RecalculateAll(c.Request.Context())
	if err != nil {
		if result != nil {
			response.ServiceUnavailable(c, 22002, "recalculation interrupted")
			return
		}
		handleStoreError(c, err)
		return
	}
	response.OK(c, result)
}
