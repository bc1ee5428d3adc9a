package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nordiq/mailroom/services/sync-service/internal/health"
)

// Locker is the cluster-wide mutual-exclusion lock per job name.
// Implemented by the db-backed locker.
type Locker interface {
	TryAcquire(ctx context.Context, name string, maxHold time.Duration) (uuid.UUID, bool, error)
	Release(ctx context.Context, name string, token uuid.UUID) error
}

// Locked wraps a job body for cron registration. Every invocation
// attempts the cluster-wide lock; losing the race is a silent no-op so
// a job runs at most once per trigger across all replicas. The run
// context expires with the maximum hold time, mirroring the lock's TTL
// watchdog.
func Locked(locker Locker, registry *health.Registry, maxHold time.Duration, log *slog.Logger, job Job) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), maxHold)
		defer cancel()

		token, ok, err := locker.TryAcquire(ctx, job.Name(), maxHold)
		if err != nil {
			log.Error("acquiring job lock failed",
				slog.String("job", job.Name()),
				slog.String("error", err.Error()),
			)
			return
		}
		if !ok {
			// Another replica holds the lock.
			return
		}
		defer func() {
			if err := locker.Release(context.Background(), job.Name(), token); err != nil {
				log.Warn("releasing job lock failed",
					slog.String("job", job.Name()),
					slog.String("error", err.Error()),
				)
			}
		}()

		// Stale unhealthy reasons self-clear when a new run begins.
		registry.Clear(job.Name())

		started := time.Now()
		job.Run(ctx)
		log.Info("job finished",
			slog.String("job", job.Name()),
			slog.Duration("took", time.Since(started)),
		)
	}
}
