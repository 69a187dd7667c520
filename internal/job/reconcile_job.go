// Package job runs the periodic recalculate-all sweep.
package job

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"medic-workbook/backend/config"
	"medic-workbook/backend/internal/dto"
)

// Recalculator is the part of service.ReconcileService the sweep needs.
type Recalculator interface {
	RecalculateAll(ctx context.Context) (*dto.RecalculateAllResponse, error)
}

// ReconcileJob schedules RecalculateAll. A run that is still going when the
// next tick fires makes that tick a no-op.
type ReconcileJob struct {
	spec       string
	timeout    time.Duration
	reconciler Recalculator
	logger     *zap.Logger

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewReconcileJob creates a ReconcileJob. An empty cfg.ReconcileCron disables scheduling.
func NewReconcileJob(cfg config.ProgressConfig, reconciler Recalculator, logger *zap.Logger) *ReconcileJob {
	ctx, cancel := context.WithCancel(context.Background())
	return &ReconcileJob{
		spec:       cfg.ReconcileCron,
		timeout:    cfg.SweepTimeout,
		reconciler: reconciler,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start registers the schedule and starts the cron runner.
func (j *ReconcileJob) Start() error {
	if j.spec == "" {
		j.logger.Info("reconcile sweep disabled")
		return nil
	}

	j.cron = cron.New(
		cron.WithLogger(cron.PrintfLogger(zap.NewStdLog(j.logger))),
		cron.WithChain(cron.Recover(cron.PrintfLogger(zap.NewStdLog(j.logger))), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := j.cron.AddFunc(j.spec, func() { j.RunOnce(j.ctx) }); err != nil {
		return err
	}
	j.cron.Start()

	j.logger.Info("reconcile sweep scheduled", zap.String("cron", j.spec), zap.Duration("timeout", j.timeout))
	return nil
}

// RunOnce performs a single sweep bounded by the configured timeout.
func (j *ReconcileJob) RunOnce(parent context.Context) *dto.RecalculateAllResponse {
	ctx := parent
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, j.timeout)
		defer cancel()
	}

	j.logger.Info("reconcile sweep started")
	result, err := j.reconciler.RecalculateAll(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		j.logger.Warn("reconcile sweep interrupted", zap.Error(err))
	default:
		j.logger.Error("reconcile sweep failed", zap.Error(err))
		return result
	}

	if result != nil {
		j.logger.Info("reconcile sweep finished",
			zap.String("run_id", result.RunID),
			zap.Int("students", result.Students),
			zap.Int("fixed", result.Fixed),
			zap.Int("failed", result.Failed),
			zap.Int64("duration_ms", result.DurationMs),
		)
	}
	return result
}

// Stop cancels any sweep in flight and waits for it to return or for ctx to end.
func (j *ReconcileJob) Stop(ctx context.Context) {
	j.cancel()
	if j.cron == nil {
		return
	}
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
		j.logger.Warn("reconcile sweep did not stop in time")
	}
}
