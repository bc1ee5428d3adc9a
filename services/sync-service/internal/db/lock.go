package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Locker implements a cluster-wide mutual-exclusion lock per job name,
// backed by a single row per job in the job_locks table. A lock that is
// not released within its maximum hold time expires and can be stolen
// by another replica; TTL expiry is the watchdog against a hung holder,
// at the cost of potential double execution.
type Locker struct {
	pool *pgxpool.Pool
}

// NewLocker creates a Locker on the given pool.
func NewLocker(pool *pgxpool.Pool) *Locker {
	return &Locker{pool: pool}
}

// TryAcquire attempts to take the lock for the named job. It returns
// ok=false without error when another replica currently holds the lock.
func (l *Locker) TryAcquire(ctx context.Context, name string, maxHold time.Duration) (uuid.UUID, bool, error) {
	token := uuid.New()

	// The conditional upsert only succeeds when no row exists or the
	// existing row has expired, so exactly one replica wins.
	tag, err := l.pool.Exec(ctx, `
		INSERT INTO job_locks (name, token, locked_at, expires_at)
		VALUES ($1, $2, now(), now() + make_interval(secs => $3))
		ON CONFLICT (name) DO UPDATE
		SET token = EXCLUDED.token, locked_at = now(), expires_at = now() + make_interval(secs => $3)
		WHERE job_locks.expires_at < now()
	`, name, token, maxHold.Seconds())
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("acquiring lock %q: %w", name, err)
	}

	return token, tag.RowsAffected() == 1, nil
}

// Release frees the named lock if it is still held under the given
// token. Releasing a lock that expired and was re-acquired by another
// replica is a no-op.
func (l *Locker) Release(ctx context.Context, name string, token uuid.UUID) error {
	_, err := l.pool.Exec(ctx, `
		DELETE FROM job_locks WHERE name = $1 AND token = $2
	`, name, token)
	if err != nil {
		return fmt.Errorf("releasing lock %q: %w", name, err)
	}
	return nil
}
