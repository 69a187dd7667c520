package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"medic-workbook/backend/internal/api/middleware"
	"medic-workbook/backend/internal/dto"
	"medic-workbook/backend/internal/phase"
	"medic-workbook/backend/internal/service"
	pkgerrors "medic-workbook/backend/pkg/errors"
	"medic-workbook/backend/pkg/response"
)

// SubmissionHandler workbook form HTTP handler
type SubmissionHandler struct {
	submissionSvc service.SubmissionService
}

// NewSubmissionHandler creates a SubmissionHandler.
func NewSubmissionHandler(submissionSvc service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionSvc: submissionSvc}
}

// Submit submits a form or saves a draft of it
// POST /api/v1/submissions
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req dto.SubmitFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if middleware.IsBodyTooLarge(err) {
			middleware.RespondBodyTooLarge(c)
			return
		}
		response.BadRequest(c, 10001, "invalid request body")
		return
	}

	formType, err := phase.ParseFormType(req.FormType)
	if err != nil {
		response.BadRequest(c, 20001, "unknown form type")
		return
	}

	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if req.IsDraft() {
		draft, err := h.submissionSvc.SaveDraft(c.Request.Context(), studentID, formType, req.FormNumber, req.Payload)
		if err != nil {
			h.handleSubmissionError(c, err)
			return
		}
		response.OK(c, draft)
		return
	}

	result, err := h.submissionSvc.SubmitForm(c.Request.Context(), studentID, formType, req.FormNumber, req.Payload)
	if err != nil {
		h.handleSubmissionError(c, err)
		return
	}
	response.OK(c, result)
}

// ListMine lists the caller's submissions
// GET /api/v1/submissions/me
func (h *SubmissionHandler) ListMine(c *gin.Context) {
	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	h.list(c, studentID)
}

// ListForStudent lists a student's submissions
// GET /api/v1/students/:id/submissions
func (h *SubmissionHandler) ListForStudent(c *gin.Context) {
	studentID, ok := MustGetStudentParam(c)
	if !ok {
		return
	}
	h.list(c, studentID)
}

// Delete removes an addendum copy
// DELETE /api/v1/submissions/:form_type/:form_number
func (h *SubmissionHandler) Delete(c *gin.Context) {
	formType, err := phase.ParseFormType(c.Param("form_type"))
	if err != nil {
		response.BadRequest(c, 20001, "unknown form type")
		return
	}
	formNumber, err := strconv.Atoi(c.Param("form_number"))
	if err != nil || formNumber < 1 {
		response.BadRequest(c, 20003, "invalid form number")
		return
	}

	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.submissionSvc.DeleteForm(c.Request.Context(), studentID, formType, formNumber); err != nil {
		h.handleSubmissionError(c, err)
		return
	}
	response.OK(c, nil)
}

func (h *SubmissionHandler) list(c *gin.Context, studentID string) {
	list, err := h.submissionSvc.ListSubmissions(c.Request.Context(), studentID)
	if err != nil {
		h.handleSubmissionError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

func (h *SubmissionHandler) handleSubmissionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrUnmappedFormType), errors.Is(err, phase.ErrUnknownFormType):
		response.BadRequest(c, 20001, "unknown form type")
	case errors.Is(err, pkgerrors.ErrInvalidTransition):
		response.Conflict(c, 20002, "form already submitted")
	case errors.Is(err, service.ErrInvalidFormNumber):
		response.BadRequest(c, 20003, "invalid form number")
	case errors.Is(err, phase.ErrInvalidPayload):
		response.ErrorWithDetails(c, 400, 20004, "invalid form payload", err.Error())
	case errors.Is(err, service.ErrFormNotDeletable):
		response.Conflict(c, 20005, "only addendum copies can be deleted")
	case errors.Is(err, service.ErrSubmissionNotFound):
		response.NotFound(c, 20006, "submission not found")
	default:
		handleStoreError(c, err)
	}
}
