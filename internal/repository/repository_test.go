package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"medic-workbook/backend/internal/model"
	"medic-workbook/backend/internal/phase"
	"medic-workbook/backend/internal/repository"
	pkgerrors "medic-workbook/backend/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

func setupTestRepo(t *testing.T) *repository.Repository {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Submission{},
		&model.PhaseProgress{},
		&model.OverallProgress{},
		&model.ReconciliationReport{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return repository.NewRepository(db)
}

func newSubmission(studentID string, ft phase.FormType, n int, status model.SubmissionStatus) *model.Submission {
	return &model.Submission{
		StudentID:  studentID,
		FormType:   ft,
		FormNumber: n,
		Status:     status,
		Payload:    datatypes.JSON(`{}`),
	}
}

// ═══════════════════════════════════════════════════════════
// SubmissionRepository
// ═══════════════════════════════════════════════════════════

func TestSubmissionRepo_Upsert_InsertAndReload(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	sub := newSubmission("stu-1", phase.FormShiftLog, 1, model.SubmissionSubmitted)
	require.NoError(t, repo.Submission.Upsert(ctx, sub))

	assert.Equal(t, model.SubmissionSubmitted, sub.Status)
	require.NotNil(t, sub.SubmittedAt)

	got, err := repo.Submission.Get(ctx, "stu-1", phase.FormShiftLog, 1)
	require.NoError(t, err)
	assert.True(t, got.IsSubmitted())
}

func TestSubmissionRepo_Upsert_DraftThenSubmit(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Submission.Upsert(ctx, newSubmission("stu-1", phase.FormCaseSummary, 2, model.SubmissionDraft)))
	got, err := repo.Submission.Get(ctx, "stu-1", phase.FormCaseSummary, 2)
	require.NoError(t, err)
	assert.Nil(t, got.SubmittedAt)

	require.NoError(t, repo.Submission.Upsert(ctx, newSubmission("stu-1", phase.FormCaseSummary, 2, model.SubmissionSubmitted)))
	got, err = repo.Submission.Get(ctx, "stu-1", phase.FormCaseSummary, 2)
	require.NoError(t, err)
	assert.True(t, got.IsSubmitted())
	assert.NotNil(t, got.SubmittedAt)
}

func TestSubmissionRepo_Upsert_SubmittedIsMonotonic(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Submission.Upsert(ctx, newSubmission("stu-1", phase.FormShiftLog, 1, model.SubmissionSubmitted)))

	err := repo.Submission.Upsert(ctx, newSubmission("stu-1", phase.FormShiftLog, 1, model.SubmissionDraft))
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidTransition), "got %v", err)

	got, err := repo.Submission.Get(ctx, "stu-1", phase.FormShiftLog, 1)
	require.NoError(t, err)
	assert.True(t, got.IsSubmitted())
}

func TestSubmissionRepo_Upsert_ResubmitKeepsFirstSubmittedAt(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	first := newSubmission("stu-1", phase.FormShiftLog, 1, model.SubmissionSubmitted)
	require.NoError(t, repo.Submission.Upsert(ctx, first))
	firstAt := *first.SubmittedAt

	second := newSubmission("stu-1", phase.FormShiftLog, 1, model.SubmissionSubmitted)
	second.Payload = datatypes.JSON(`{"hours":12}`)
	require.NoError(t, repo.Submission.Upsert(ctx, second))

	require.NotNil(t, second.SubmittedAt)
	assert.True(t, firstAt.Equal(*second.SubmittedAt))
	assert.JSONEq(t, `{"hours":12}`, string(second.Payload))

	subs, err := repo.Submission.ListByStudent(ctx, "stu-1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestSubmissionRepo_Get_NotFound(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.Submission.Get(context.Background(), "nobody", phase.FormShiftLog, 1)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.False(t, errors.Is(err, pkgerrors.ErrStoreUnavailable))
}

func TestSubmissionRepo_Delete(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Submission.Upsert(ctx, newSubmission("stu-1", phase.FormShiftLog, 11, model.SubmissionSubmitted)))
	require.NoError(t, repo.Submission.Delete(ctx, "stu-1", phase.FormShiftLog, 11))

	err := repo.Submission.Delete(ctx, "stu-1", phase.FormShiftLog, 11)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestSubmissionRepo_ListStudentIDs(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Submission.Upsert(ctx, newSubmission("stu-b", phase.FormShiftLog, 1, model.SubmissionSubmitted)))
	require.NoError(t, repo.Submission.Upsert(ctx, newSubmission("stu-a", phase.FormShiftLog, 1, model.SubmissionDraft)))
	require.NoError(t, repo.Submission.Upsert(ctx, newSubmission("stu-a", phase.FormShiftLog, 2, model.SubmissionSubmitted)))

	ids, err := repo.Submission.ListStudentIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-a", "stu-b"}, ids)
}

func TestSubmissionRepo_ClosedStoreIsUnavailable(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = repository.NewSubmissionRepo(db).ListByStudent(context.Background(), "stu-1")
	assert.True(t, errors.Is(err, pkgerrors.ErrStoreUnavailable), "got %v", err)
}

// ═══════════════════════════════════════════════════════════
// ProgressRepository
// ═══════════════════════════════════════════════════════════

func TestProgressRepo_UpsertPhase_Idempotent(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	rec := &model.PhaseProgress{StudentID: "stu-1", PhaseName: phase.Clinical, TotalItems: 15, CompletedItems: 3, CompletionPercentage: 20}
	require.NoError(t, repo.Progress.UpsertPhase(ctx, rec))
	require.NoError(t, repo.Progress.UpsertPhase(ctx, &model.PhaseProgress{StudentID: "stu-1", PhaseName: phase.Clinical, TotalItems: 15, CompletedItems: 3, CompletionPercentage: 20}))

	recs, err := repo.Progress.ListPhases(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 3, recs[0].CompletedItems)

	require.NoError(t, repo.Progress.UpsertPhase(ctx, &model.PhaseProgress{StudentID: "stu-1", PhaseName: phase.Clinical, TotalItems: 15, CompletedItems: 15, CompletionPercentage: 100, IsComplete: true}))
	got, err := repo.Progress.GetPhase(ctx, "stu-1", phase.Clinical)
	require.NoError(t, err)
	assert.Equal(t, 15, got.CompletedItems)
	assert.True(t, got.IsComplete)
}

func TestProgressRepo_GetOverall_NotFound(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.Progress.GetOverall(context.Background(), "stu-1")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestProgressRepo_UpsertOverall(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Progress.UpsertOverall(ctx, &model.OverallProgress{StudentID: "stu-1", TotalForms: 36, TotalPhases: 5}))
	require.NoError(t, repo.Progress.UpsertOverall(ctx, &model.OverallProgress{StudentID: "stu-1", CompletedForms: 2, TotalForms: 36, CompletedPhases: 1, TotalPhases: 5, OverallPercentage: 6}))

	got, err := repo.Progress.GetOverall(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CompletedForms)
	assert.Equal(t, 1, got.CompletedPhases)
	assert.Equal(t, 6, got.OverallPercentage)

	all, err := repo.Progress.ListOverall(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProgressRepo_ListStudentIDs_UnionOfTables(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Progress.UpsertOverall(ctx, &model.OverallProgress{StudentID: "stu-a"}))
	require.NoError(t, repo.Progress.UpsertPhase(ctx, &model.PhaseProgress{StudentID: "stu-b", PhaseName: phase.Orientation}))
	require.NoError(t, repo.Progress.UpsertPhase(ctx, &model.PhaseProgress{StudentID: "stu-a", PhaseName: phase.Orientation}))

	ids, err := repo.Progress.ListStudentIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"stu-a", "stu-b"}, ids)
}

// ═══════════════════════════════════════════════════════════
// ReconciliationReportRepository
// ═══════════════════════════════════════════════════════════

func TestReconciliationReportRepo_ListByStudent(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Report.Create(ctx, &model.ReconciliationReport{
			ReportID:  fmt.Sprintf("00000000-0000-0000-0000-00000000000%d", i),
			RunID:     "00000000-0000-0000-0000-0000000000aa",
			StudentID: "stu-1",
			Kind:      model.ReportKindFix,
			Success:   true,
		}))
	}
	require.NoError(t, repo.Report.Create(ctx, &model.ReconciliationReport{
		ReportID:  "00000000-0000-0000-0000-0000000000ff",
		RunID:     "00000000-0000-0000-0000-0000000000aa",
		StudentID: "stu-2",
		Kind:      model.ReportKindDiagnose,
	}))

	reports, err := repo.Report.ListByStudent(ctx, "stu-1", 2)
	require.NoError(t, err)
	assert.Len(t, reports, 2)
	for _, r := range reports {
		assert.Equal(t, "stu-1", r.StudentID)
	}
}
