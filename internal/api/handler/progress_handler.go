package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"medic-workbook/backend/internal/notify"
	"medic-workbook/backend/internal/service"
	"medic-workbook/backend/pkg/response"
)

// ProgressHandler progress read HTTP handler
type ProgressHandler struct {
	progressSvc service.ProgressService
	events      notify.Subscriber
	heartbeat   time.Duration
}

// NewProgressHandler creates a ProgressHandler. events may be nil, which disables the stream.
func NewProgressHandler(progressSvc service.ProgressService, events notify.Subscriber, heartbeat time.Duration) *ProgressHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &ProgressHandler{progressSvc: progressSvc, events: events, heartbeat: heartbeat}
}

// ListPhases phase catalogue
// GET /api/v1/phases
func (h *ProgressHandler) ListPhases(c *gin.Context) {
	response.OK(c, gin.H{"list": h.progressSvc.ListPhases()})
}

// GetMyProgress caller's progress summary
// GET /api/v1/progress/me
func (h *ProgressHandler) GetMyProgress(c *gin.Context) {
	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	h.summary(c, studentID)
}

// GetMyPhase caller's progress in one phase
// GET /api/v1/progress/me/phases/:phase
func (h *ProgressHandler) GetMyPhase(c *gin.Context) {
	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	p, err := h.progressSvc.GetPhaseProgress(c.Request.Context(), studentID, c.Param("phase"))
	if err != nil {
		h.handleProgressError(c, err)
		return
	}
	response.OK(c, p)
}

// GetStudentProgress a student's progress summary
// GET /api/v1/students/:id/progress
func (h *ProgressHandler) GetStudentProgress(c *gin.Context) {
	studentID, ok := MustGetStudentParam(c)
	if !ok {
		return
	}
	h.summary(c, studentID)
}

// Events streams the caller's progress_updated events as server-sent events
// GET /api/v1/progress/events
func (h *ProgressHandler) Events(c *gin.Context) {
	if h.events == nil {
		response.ServiceUnavailable(c, 21002, "event stream disabled")
		return
	}
	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	events, cancel := h.events.Subscribe(studentID)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.SSEvent("ready", gin.H{"student_id": studentID})
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(ev.Name, ev)
			c.Writer.Flush()
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Unix())
			c.Writer.Flush()
		}
	}
}

func (h *ProgressHandler) summary(c *gin.Context, studentID string) {
	sum, err := h.progressSvc.GetSummary(c.Request.Context(), studentID)
	if err != nil {
		h.handleProgressError(c, err)
		return
	}
	response.OK(c, sum)
}

func (h *ProgressHandler) handleProgressError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownPhase):
		response.NotFound(c, 21001, "unknown phase")
	default:
		handleStoreError(c, err)
	}
}
