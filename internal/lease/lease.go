// Package lease provides short-lived exclusive leases on a key. The
// orchestrator takes one per user so that overlapping passes do not
// evaluate the same task collection at the same time. Leases live in the
// task database or in Redis.
package lease

import (
	"context"
	"errors"
	"time"
)

// ErrHeld is returned when another holder owns the lease.
var ErrHeld = errors.New("lease is held by another holder")

// Release gives a lease back. Releasing an expired or stolen lease is a
// no-op.
type Release func(ctx context.Context) error

// Locker grants exclusive leases that expire after ttl.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}
