package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/cyclic-tasks/internal/model"
)

// Version is the optimistic-concurrency token of a user's task
// collection. Zero means the collection has never been saved.
type Version int64

var (
	// ErrConflict is returned by SaveTasks when the stored version no
	// longer matches the expected one.
	ErrConflict = errors.New("task collection was modified concurrently")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// Store defines the persistence interface for users, their task
// collections, and the reminder audit log. A user's whole task
// collection is one consistency unit guarded by its Version.
type Store interface {
	// LoadTasks returns the user's collection and its version. A user
	// with no saved collection yields an empty slice and version 0.
	LoadTasks(ctx context.Context, userID string) ([]model.Task, Version, error)

	// SaveTasks replaces the collection if its stored version equals
	// expected, returning the new version. Otherwise it returns
	// ErrConflict and writes nothing.
	SaveTasks(ctx context.Context, userID string, tasks []model.Task, expected Version) (Version, error)

	GetUser(ctx context.Context, id string) (*model.User, error)
	UpsertUser(ctx context.Context, u model.User) error
	ListUsers(ctx context.Context) ([]model.User, error)

	RecordNotification(ctx context.Context, n model.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)

	// ClaimLease gives key to holder until expires when the key is free
	// or its current lease ended at or before now. It reports whether
	// the claim succeeded.
	ClaimLease(ctx context.Context, key, holder string, now, expires time.Time) (bool, error)

	// ReleaseLease drops key if holder still owns it.
	ReleaseLease(ctx context.Context, key, holder string) error

	Close() error
}
