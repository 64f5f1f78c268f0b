// Package cleanup holds the periodic maintenance jobs. Each job runs under a
// cluster-wide lease so that only one instance does the work per tick.
package cleanup

import (
	"context"
	"matchchat/backend/internal/lock"
	"matchchat/backend/internal/logger"
	"matchchat/backend/internal/metrics"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Job is one maintenance task.
type Job interface {
	Name() string
	LockKey() string
	Run(ctx context.Context) (Report, error)
}

// Report counts what a run did. Failed items are left for the next run.
type Report struct {
	Processed int
	Failed    int
}

// Runner runs jobs under their lease.
type Runner struct {
	locker *lock.Locker
	ttl    time.Duration
	log    *zap.Logger
}

func NewRunner(locker *lock.Locker, ttl time.Duration, log *zap.Logger) *Runner {
	return &Runner{locker: locker, ttl: ttl, log: logger.OrNop(log).Named("cleanup")}
}

// RunGuarded runs job if its lease can be taken. ran is false when another
// instance holds the lease; that is not an error.
func (r *Runner) RunGuarded(ctx context.Context, job Job) (ran bool, report Report, err error) {
	log := r.log.With(zap.String("job", job.Name()))

	lease, ok, err := r.locker.TryAcquire(ctx, job.LockKey(), r.ttl)
	if err != nil {
		metrics.CleanupRuns.WithLabelValues(job.Name(), "error").Inc()
		return false, Report{}, err
	}
	if !ok {
		metrics.CleanupRuns.WithLabelValues(job.Name(), "skipped").Inc()
		log.Debug("lease held elsewhere, skipping")
		return false, Report{}, nil
	}
	metrics.CleanupRuns.WithLabelValues(job.Name(), "acquired").Inc()

	defer func() {
		// release even if the job context is gone
		if rerr := lease.Release(context.WithoutCancel(ctx)); rerr != nil {
			if errors.Is(rerr, lock.ErrNotHeld) {
				log.Warn("lease expired before the job finished")
			} else {
				log.Warn("release lease", zap.Error(rerr))
			}
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, r.ttl)
	defer cancel()

	start := time.Now()
	report, err = job.Run(jobCtx)
	metrics.CleanupItems.WithLabelValues(job.Name(), "processed").Add(float64(report.Processed))
	metrics.CleanupItems.WithLabelValues(job.Name(), "error").Add(float64(report.Failed))
	if err != nil {
		log.Error("job failed", zap.Error(err), zap.Int("processed", report.Processed))
		return true, report, err
	}
	log.Info("job finished",
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed),
		zap.Duration("took", time.Since(start)))
	return true, report, nil
}
