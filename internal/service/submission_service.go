package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"medic-workbook/backend/internal/dto"
	"medic-workbook/backend/internal/model"
	"medic-workbook/backend/internal/notify"
	"medic-workbook/backend/internal/phase"
	"medic-workbook/backend/internal/repository"
	pkgerrors "medic-workbook/backend/pkg/errors"
)

// ── Submission module business errors ──

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrFormNotDeletable   = errors.New("only addendum copies can be deleted")
	ErrInvalidFormNumber  = errors.New("form number outside the range of its form slot")
)

// SubmissionService workbook write path.
//
// Flow of a submit:
//  1. validate form kind, number and payload
//  2. durable write to the submission log (the only step that can fail the call)
//  3. reconciliation backstop; failure is logged and left to the nightly sweep
//  4. one progress_updated notification, fire-and-forget
type SubmissionService interface {
	SubmitForm(ctx context.Context, studentID string, formType phase.FormType, formNumber int, payload json.RawMessage) (*dto.SubmitFormResponse, error)
	// SaveDraft stores a draft. It does not touch progress and sends no notification.
	SaveDraft(ctx context.Context, studentID string, formType phase.FormType, formNumber int, payload json.RawMessage) (*dto.SubmissionResponse, error)
	ListSubmissions(ctx context.Context, studentID string) ([]dto.SubmissionResponse, error)
	// DeleteForm removes an addendum copy and reconciles.
	DeleteForm(ctx context.Context, studentID string, formType phase.FormType, formNumber int) error
}

type submissionService struct {
	repo       *repository.Repository
	phases     *phase.Map
	reconciler ReconcileService
	publisher  notify.Publisher
	logger     *zap.Logger
}

// NewSubmissionService creates a SubmissionService.
func NewSubmissionService(
	repo *repository.Repository,
	phases *phase.Map,
	reconciler ReconcileService,
	publisher notify.Publisher,
	logger *zap.Logger,
) SubmissionService {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &submissionService{
		repo:       repo,
		phases:     phases,
		reconciler: reconciler,
		publisher:  publisher,
		logger:     logger,
	}
}

// ────────────────────── SubmitForm ──────────────────────

func (s *submissionService) SubmitForm(ctx context.Context, studentID string, formType phase.FormType, formNumber int, payload json.RawMessage) (*dto.SubmitFormResponse, error) {
	sub, err := s.write(ctx, studentID, formType, formNumber, model.SubmissionSubmitted, payload)
	if err != nil {
		return nil, err
	}

	synced := s.reconciler.Sync(ctx, studentID) == nil
	s.publisher.Publish(ctx, notify.NewProgressUpdated(studentID, "submit", synced))

	return &dto.SubmitFormResponse{
		Submission:     s.toSubmissionResponse(sub),
		ProgressSynced: synced,
	}, nil
}

// ────────────────────── SaveDraft ──────────────────────

func (s *submissionService) SaveDraft(ctx context.Context, studentID string, formType phase.FormType, formNumber int, payload json.RawMessage) (*dto.SubmissionResponse, error) {
	sub, err := s.write(ctx, studentID, formType, formNumber, model.SubmissionDraft, payload)
	if err != nil {
		return nil, err
	}
	resp := s.toSubmissionResponse(sub)
	return &resp, nil
}

// ────────────────────── ListSubmissions ──────────────────────

func (s *submissionService) ListSubmissions(ctx context.Context, studentID string) ([]dto.SubmissionResponse, error) {
	subs, err := s.repo.Submission.ListByStudent(ctx, studentID)
	if err != nil {
		s.logger.Error("list submissions failed", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.SubmissionResponse, 0, len(subs))
	for i := range subs {
		result = append(result, s.toSubmissionResponse(&subs[i]))
	}
	return result, nil
}

// ────────────────────── DeleteForm ──────────────────────

func (s *submissionService) DeleteForm(ctx context.Context, studentID string, formType phase.FormType, formNumber int) error {
	slot, ok := s.phases.Slot(formType)
	if !ok {
		return pkgerrors.ErrUnmappedFormType
	}
	if !slot.IsAddendum(formNumber) {
		return ErrFormNotDeletable
	}

	if err := s.repo.Submission.Delete(ctx, studentID, formType, formNumber); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		s.logger.Error("delete submission failed",
			zap.String("student_id", studentID),
			zap.String("form_type", formType.String()),
			zap.Int("form_number", formNumber),
			zap.Error(err),
		)
		return err
	}

	synced := s.reconciler.Sync(ctx, studentID) == nil
	s.publisher.Publish(ctx, notify.NewProgressUpdated(studentID, "delete", synced))
	return nil
}

// ═══════════════════════════════════════════════════════════
// Internals
// ═══════════════════════════════════════════════════════════

func (s *submissionService) write(ctx context.Context, studentID string, formType phase.FormType, formNumber int, status model.SubmissionStatus, raw json.RawMessage) (*model.Submission, error) {
	slot, ok := s.phases.Slot(formType)
	if !ok {
		return nil, pkgerrors.ErrUnmappedFormType
	}
	if formNumber < 1 || (formNumber > slot.Required && !slot.AllowsAddenda) {
		return nil, ErrInvalidFormNumber
	}

	payload, err := phase.DecodePayload(formType, raw)
	if err != nil {
		return nil, err
	}
	encoded, err := phase.EncodePayload(payload)
	if err != nil {
		return nil, err
	}

	sub := &model.Submission{
		StudentID:  studentID,
		FormType:   formType,
		FormNumber: formNumber,
		Status:     status,
		Payload:    datatypes.JSON(encoded),
	}
	if err := s.repo.Submission.Upsert(ctx, sub); err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidTransition) {
			return nil, err
		}
		s.logger.Error("write submission failed",
			zap.String("student_id", studentID),
			zap.String("form_type", formType.String()),
			zap.Int("form_number", formNumber),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return nil, err
	}
	return sub, nil
}

func (s *submissionService) toSubmissionResponse(sub *model.Submission) dto.SubmissionResponse {
	resp := dto.SubmissionResponse{
		StudentID:  sub.StudentID,
		FormType:   sub.FormType.String(),
		FormNumber: sub.FormNumber,
		Status:     string(sub.Status),
		Payload:    json.RawMessage(sub.Payload),
		UpdatedAt:  sub.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if name, ok := s.phases.PhaseOf(sub.FormType); ok {
		resp.Phase = name
	}
	if slot, ok := s.phases.Slot(sub.FormType); ok {
		resp.IsAddendum = slot.IsAddendum(sub.FormNumber)
	}
	if sub.SubmittedAt != nil {
		resp.SubmittedAt = sub.SubmittedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
