package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"medic-workbook/backend/config"
	"medic-workbook/backend/internal/dto"
	"medic-workbook/backend/internal/model"
	"medic-workbook/backend/internal/progress"
	"medic-workbook/backend/internal/repository"
	pkgerrors "medic-workbook/backend/pkg/errors"
)

const defaultReportLimit = 20

// ReconcileService keeps cached progress rows equal to what the submission log implies.
//
// Notes:
//   - the submission log is the only source of truth; progress rows are a cache
//   - every rewrite is an idempotent overwrite, so retrying a failed or
//     half-applied fix is always safe
//   - explicit fixes, sweeps and drifting diagnoses leave an audit report
type ReconcileService interface {
	// Diagnose compares cached rows with a fresh computation without changing anything.
	Diagnose(ctx context.Context, studentID string) (*dto.DiagnosisResponse, error)
	// Fix rewrites every progress row of the student, retrying transient failures.
	// A failed fix is reported in the response; the error is only set when ctx ended.
	Fix(ctx context.Context, studentID string) (*dto.FixResponse, error)
	// Sync is the post-write backstop. It only leaves a report when it fails.
	Sync(ctx context.Context, studentID string) error
	// RecalculateAll runs Fix for every known student.
	RecalculateAll(ctx context.Context) (*dto.RecalculateAllResponse, error)
	ListReports(ctx context.Context, studentID string, limit int) ([]dto.ReconciliationReportResponse, error)
}

type reconcileService struct {
	repo   *repository.Repository
	agg    *progress.Aggregator
	cfg    config.ProgressConfig
	logger *zap.Logger
}

// NewReconcileService creates a ReconcileService.
func NewReconcileService(cfg config.ProgressConfig, repo *repository.Repository, agg *progress.Aggregator, logger *zap.Logger) ReconcileService {
	return &reconcileService{repo: repo, agg: agg, cfg: cfg, logger: logger}
}

// ────────────────────── Diagnose ──────────────────────

func (s *reconcileService) Diagnose(ctx context.Context, studentID string) (*dto.DiagnosisResponse, error) {
	runID := uuid.NewString()

	subs, err := s.repo.Submission.ListByStudent(ctx, studentID)
	if err != nil {
		s.logger.Error("diagnose: list submissions failed", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	snap := s.agg.Compute(studentID, subs)

	stored, err := s.repo.Progress.ListPhases(ctx, studentID)
	if err != nil {
		s.logger.Error("diagnose: list phase progress failed", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	overall, err := s.repo.Progress.GetOverall(ctx, studentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("diagnose: get overall progress failed", zap.String("student_id", studentID), zap.Error(err))
			return nil, err
		}
		overall = nil
	}

	issues := progress.Diff(snap, stored, overall)
	if issues == nil {
		issues = []string{}
	}
	if len(issues) > 0 {
		s.logger.Warn("progress drift detected",
			zap.String("student_id", studentID),
			zap.Int("inconsistencies", len(issues)),
		)
		s.saveReport(ctx, runID, studentID, model.ReportKindDiagnose, issues, nil)
	}

	return &dto.DiagnosisResponse{
		StudentID:       studentID,
		RunID:           runID,
		Consistent:      len(issues) == 0,
		Inconsistencies: issues,
		Fresh:           toSummary(s.agg, snap),
	}, nil
}

// ────────────────────── Fix ──────────────────────

func (s *reconcileService) Fix(ctx context.Context, studentID string) (*dto.FixResponse, error) {
	runID := uuid.NewString()
	attempts, err := s.fixWithRetry(ctx, studentID)

	s.saveReport(ctx, runID, studentID, model.ReportKindFix, []string{fmt.Sprintf("attempts=%d", attempts)}, err)

	resp := &dto.FixResponse{
		StudentID: studentID,
		RunID:     runID,
		Success:   err == nil,
		Attempts:  attempts,
	}
	if err != nil {
		resp.Error = err.Error()
		s.logger.Error("progress fix failed",
			zap.String("student_id", studentID),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return resp, ctxErr
		}
		return resp, nil
	}

	s.logger.Info("progress fixed", zap.String("student_id", studentID), zap.Int("attempts", attempts))
	return resp, nil
}

// ────────────────────── Sync ──────────────────────

func (s *reconcileService) Sync(ctx context.Context, studentID string) error {
	attempts, err := s.fixWithRetry(ctx, studentID)
	if err != nil {
		s.logger.Error("progress backstop failed",
			zap.String("student_id", studentID),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		s.saveReport(ctx, uuid.NewString(), studentID, model.ReportKindFix, []string{fmt.Sprintf("attempts=%d", attempts)}, err)
	}
	return err
}

// ────────────────────── RecalculateAll ──────────────────────

func (s *reconcileService) RecalculateAll(ctx context.Context) (*dto.RecalculateAllResponse, error) {
	start := time.Now()
	resp := &dto.RecalculateAllResponse{RunID: uuid.NewString()}

	ids, err := s.knownStudents(ctx)
	if err != nil {
		s.logger.Error("recalculate: list students failed", zap.Error(err))
		return nil, err
	}
	resp.Students = len(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			resp.DurationMs = time.Since(start).Milliseconds()
			return resp, err
		}

		attempts, err := s.fixWithRetry(ctx, id)
		s.saveReport(ctx, resp.RunID, id, model.ReportKindFix, []string{fmt.Sprintf("attempts=%d", attempts)}, err)
		if err != nil {
			resp.Failed++
			resp.FailedStudents = append(resp.FailedStudents, id)
			s.logger.Error("recalculate: fix failed",
				zap.String("run_id", resp.RunID),
				zap.String("student_id", id),
				zap.Error(err),
			)
			continue
		}
		resp.Fixed++
	}

	resp.DurationMs = time.Since(start).Milliseconds()
	s.logger.Info("progress recalculation finished",
		zap.String("run_id", resp.RunID),
		zap.Int("students", resp.Students),
		zap.Int("fixed", resp.Fixed),
		zap.Int("failed", resp.Failed),
		zap.Int64("duration_ms", resp.DurationMs),
	)
	return resp, nil
}

// ────────────────────── ListReports ──────────────────────

func (s *reconcileService) ListReports(ctx context.Context, studentID string, limit int) ([]dto.ReconciliationReportResponse, error) {
	if limit <= 0 {
		limit = defaultReportLimit
	}
	reports, err := s.repo.Report.ListByStudent(ctx, studentID, limit)
	if err != nil {
		s.logger.Error("list reconciliation reports failed", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.ReconciliationReportResponse, 0, len(reports))
	for i := range reports {
		r := &reports[i]
		var details []string
		if len(r.Details) > 0 {
			if err := json.Unmarshal(r.Details, &details); err != nil {
				s.logger.Warn("reconciliation report details unreadable",
					zap.String("report_id", r.ReportID),
					zap.String("student_id", r.StudentID),
					zap.Error(err),
				)
				details = nil
			}
		}
		result = append(result, dto.ReconciliationReportResponse{
			ReportID:           r.ReportID,
			RunID:              r.RunID,
			StudentID:          r.StudentID,
			Kind:               r.Kind,
			InconsistencyCount: r.InconsistencyCount,
			Details:            details,
			Success:            r.Success,
			Error:              r.Error,
			CreatedAt:          r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return result, nil
}

// ═══════════════════════════════════════════════════════════
// Internals
// ═══════════════════════════════════════════════════════════

// fixWithRetry retries fixOnce with exponential backoff while the failure is
// transient. It returns how many attempts ran.
func (s *reconcileService) fixWithRetry(ctx context.Context, studentID string) (int, error) {
	maxAttempts := s.cfg.FixMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	eb := backoff.NewExponentialBackOff()
	if s.cfg.FixInitialBackoff > 0 {
		eb.InitialInterval = s.cfg.FixInitialBackoff
	}
	if s.cfg.FixMaxBackoff > 0 {
		eb.MaxInterval = s.cfg.FixMaxBackoff
	}
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxAttempts-1)), ctx)

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := s.fixOnce(ctx, studentID)
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		s.logger.Warn("progress fix attempt failed, retrying",
			zap.String("student_id", studentID),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	return attempts, err
}

// fixOnce recomputes from the log and overwrites every phase row and the
// overall row. Rows that fail do not stop the others; the outcome is
// ErrPartialReconciliation when only some rows were written.
func (s *reconcileService) fixOnce(ctx context.Context, studentID string) error {
	subs, err := s.repo.Submission.ListByStudent(ctx, studentID)
	if err != nil {
		return err
	}
	snap := s.agg.Compute(studentID, subs)

	rows := snap.PhaseRecords()
	overall := snap.OverallRecord()
	total := len(rows) + 1

	written := 0
	var firstErr error
	for i := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.repo.Progress.UpsertPhase(ctx, &rows[i]); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		written++
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.repo.Progress.UpsertOverall(ctx, &overall); err != nil {
		if firstErr == nil {
			firstErr = err
		}
	} else {
		written++
	}

	switch {
	case firstErr == nil:
		return nil
	case written == 0:
		return firstErr
	default:
		return fmt.Errorf("%w: %d of %d rows written: %w", pkgerrors.ErrPartialReconciliation, written, total, firstErr)
	}
}

func isRetryable(err error) bool {
	return errors.Is(err, pkgerrors.ErrStoreUnavailable) || errors.Is(err, pkgerrors.ErrPartialReconciliation)
}

// knownStudents is the union of students with submissions and students with cached rows.
func (s *reconcileService) knownStudents(ctx context.Context) ([]string, error) {
	fromLog, err := s.repo.Submission.ListStudentIDs(ctx)
	if err != nil {
		return nil, err
	}
	fromCache, err := s.repo.Progress.ListStudentIDs(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(fromLog)+len(fromCache))
	ids := make([]string, 0, len(fromLog)+len(fromCache))
	for _, list := range [][]string{fromLog, fromCache} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *reconcileService) saveReport(ctx context.Context, runID, studentID, kind string, details []string, runErr error) {
	report := &model.ReconciliationReport{
		ReportID:  uuid.NewString(),
		RunID:     runID,
		StudentID: studentID,
		Kind:      kind,
		Success:   runErr == nil,
		CreatedAt: time.Now().UTC(),
	}
	if kind == model.ReportKindDiagnose {
		report.InconsistencyCount = len(details)
	}
	if runErr != nil {
		report.Error = runErr.Error()
	}
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err == nil {
			report.Details = datatypes.JSON(raw)
		}
	}

	// the audit row is written even when the triggering request was cancelled
	if err := s.repo.Report.Create(context.WithoutCancel(ctx), report); err != nil {
		s.logger.Warn("save reconciliation report failed",
			zap.String("run_id", runID),
			zap.String("student_id", studentID),
			zap.Error(err),
		)
	}
}
