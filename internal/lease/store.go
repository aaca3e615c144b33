package lease

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Claimer persists leases in a database shared by every process that
// opens it.
type Claimer interface {
	ClaimLease(ctx context.Context, key, holder string, now, expires time.Time) (bool, error)
	ReleaseLease(ctx context.Context, key, holder string) error
}

// StoreLocker grants leases recorded in the task database, so the TUI,
// the scheduler, and one-off CLI runs exclude each other without Redis.
type StoreLocker struct {
	claimer Claimer
	now     func() time.Time
}

// NewStoreLocker creates a locker backed by c.
func NewStoreLocker(c Claimer) *StoreLocker {
	return &StoreLocker{claimer: c, now: time.Now}
}

// Acquire implements Locker.
func (l *StoreLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	holder := uuid.New().String()
	now := l.now()

	ok, err := l.claimer.ClaimLease(ctx, key, holder, now, now.Add(ttl))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}

	return func(ctx context.Context) error {
		return l.claimer.ReleaseLease(ctx, key, holder)
	}, nil
}
