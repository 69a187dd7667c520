package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"medic-workbook/backend/config"
	"medic-workbook/backend/internal/model"
	"medic-workbook/backend/internal/phase"
	"medic-workbook/backend/internal/progress"
	"medic-workbook/backend/internal/repository"
)

// ── Test helpers ──

type testEnv struct {
	subs    *mockSubmissionRepo
	prog    *mockProgressRepo
	reports *mockReportRepo
	pub     *recordingPublisher
	repo    *repository.Repository
	phases  *phase.Map
}

func newTestEnv() *testEnv {
	env := &testEnv{
		subs:    newMockSubmissionRepo(),
		prog:    newMockProgressRepo(),
		reports: newMockReportRepo(),
		pub:     &recordingPublisher{},
		phases:  phase.Default(),
	}
	env.repo = &repository.Repository{
		Submission: env.subs,
		Progress:   env.prog,
		Report:     env.reports,
	}
	return env
}

func testProgressConfig() config.ProgressConfig {
	return config.ProgressConfig{
		FixMaxAttempts:    3,
		FixInitialBackoff: time.Millisecond,
		FixMaxBackoff:     2 * time.Millisecond,
	}
}

func (env *testEnv) reconciler() ReconcileService {
	agg := progress.NewAggregator(env.phases, zap.NewNop())
	return NewReconcileService(testProgressConfig(), env.repo, agg, zap.NewNop())
}

// seed writes submitted records straight into the log.
func (env *testEnv) seed(t *testing.T, studentID string, formType phase.FormType, numbers ...int) {
	t.Helper()
	for _, n := range numbers {
		err := env.subs.Upsert(context.Background(), &model.Submission{
			StudentID:  studentID,
			FormType:   formType,
			FormNumber: n,
			Status:     model.SubmissionSubmitted,
		})
		if err != nil {
			t.Fatalf("seed %s #%d: %v", formType, n, err)
		}
	}
}
