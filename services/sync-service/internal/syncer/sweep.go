package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nordiq/mailroom/services/sync-service/internal/health"
)

// RetentionStore finds persisted emails past the retention window.
type RetentionStore interface {
	FindOlderThan(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// AlertSender delivers operator alerts.
type AlertSender interface {
	SendAlert(ctx context.Context, subject, body string) error
}

// DefaultRetention is how long a persisted email may sit unfetched
// before the sweep alerts on it.
const DefaultRetention = 24 * time.Hour

// SweepJob scans persisted emails older than the retention window and
// sends one summary alert listing their storage ids.
type SweepJob struct {
	store     RetentionStore
	alerts    AlertSender
	health    health.Reporter
	log       *slog.Logger
	retention time.Duration
}

// NewSweepJob creates the retention sweep job.
func NewSweepJob(store RetentionStore, alerts AlertSender, reporter health.Reporter, log *slog.Logger, retention time.Duration) *SweepJob {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &SweepJob{
		store:     store,
		alerts:    alerts,
		health:    reporter,
		log:       log,
		retention: retention,
	}
}

// Name implements Job.
func (j *SweepJob) Name() string { return "retention-sweep" }

// Run implements Job.
func (j *SweepJob) Run(ctx context.Context) {
	cutoff := time.Now().Add(-j.retention)

	ids, err := j.store.FindOlderThan(ctx, cutoff)
	if err != nil {
		j.log.Error("querying retained emails failed",
			slog.String("job", j.Name()),
			slog.String("error", err.Error()),
		)
		j.health.ReportUnhealthy(j.Name(), fmt.Sprintf("failed to query retained emails: %v", err))
		return
	}
	if len(ids) == 0 {
		return
	}

	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, id.String())
	}
	body := fmt.Sprintf("%d emails have been stored for more than %s:\n%s",
		len(ids), j.retention, strings.Join(lines, "\n"))

	if err := j.alerts.SendAlert(ctx, "Unfetched emails past retention", body); err != nil {
		j.log.Error("sending retention alert failed",
			slog.String("job", j.Name()),
			slog.String("error", err.Error()),
		)
		j.health.ReportUnhealthy(j.Name(), fmt.Sprintf("failed to send retention alert: %v", err))
		return
	}

	j.log.Info("retention alert sent",
		slog.String("job", j.Name()),
		slog.Int("emails", len(ids)),
	)
}
