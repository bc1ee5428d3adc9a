package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordiq/mailroom/services/sync-service/internal/health"
)

type fakeRetentionStore struct {
	ids     []uuid.UUID
	err     error
	cutoffs []time.Time
}

func (s *fakeRetentionStore) FindOlderThan(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	s.cutoffs = append(s.cutoffs, cutoff)
	return s.ids, s.err
}

type sentAlert struct {
	subject string
	body    string
}

type fakeAlertSender struct {
	alerts []sentAlert
	err    error
}

func (s *fakeAlertSender) SendAlert(_ context.Context, subject, body string) error {
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, sentAlert{subject: subject, body: body})
	return nil
}

func TestSweepAlertsOnRetainedEmails(t *testing.T) {
	old := []uuid.UUID{uuid.New(), uuid.New()}
	store := &fakeRetentionStore{ids: old}
	alerts := &fakeAlertSender{}
	registry := health.NewRegistry()

	job := NewSweepJob(store, alerts, registry, testLogger(), 0)
	job.Run(context.Background())

	require.Len(t, alerts.alerts, 1)
	assert.Contains(t, alerts.alerts[0].body, old[0].String())
	assert.Contains(t, alerts.alerts[0].body, old[1].String())
	assert.Empty(t, registry.Snapshot())

	// Zero retention falls back to the default window.
	require.Len(t, store.cutoffs, 1)
	assert.WithinDuration(t, time.Now().Add(-DefaultRetention), store.cutoffs[0], time.Minute)
}

func TestSweepQuietWhenNothingRetained(t *testing.T) {
	alerts := &fakeAlertSender{}

	job := NewSweepJob(&fakeRetentionStore{}, alerts, health.NewRegistry(), testLogger(), time.Hour)
	job.Run(context.Background())

	assert.Empty(t, alerts.alerts)
}

func TestSweepReportsQueryFailure(t *testing.T) {
	store := &fakeRetentionStore{err: errors.New("database gone")}
	alerts := &fakeAlertSender{}
	registry := health.NewRegistry()

	job := NewSweepJob(store, alerts, registry, testLogger(), time.Hour)
	job.Run(context.Background())

	assert.Empty(t, alerts.alerts)
	assert.Len(t, registry.Snapshot(), 1)
}

func TestSweepReportsAlertFailure(t *testing.T) {
	store := &fakeRetentionStore{ids: []uuid.UUID{uuid.New()}}
	alerts := &fakeAlertSender{err: errors.New("messaging gone")}
	registry := health.NewRegistry()

	job := NewSweepJob(store, alerts, registry, testLogger(), time.Hour)
	job.Run(context.Background())

	assert.Len(t, registry.Snapshot(), 1)
}
