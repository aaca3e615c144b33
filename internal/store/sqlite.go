package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/cyclic-tasks/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// LoadTasks returns the user's task collection and its version.
func (s *SQLiteStore) LoadTasks(
	ctx context.Context,
	userID string,
) ([]model.Task, Version, error) {
	var row struct {
		Tasks   string `db:"tasks"`
		Version int64  `db:"version"`
	}

	err := s.db.GetContext(ctx, &row,
		"SELECT tasks, version FROM user_tasks WHERE user_id = ?", userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return []model.Task{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("loading tasks for %s: %w", userID, err)
	}

	tasks, err := decodeTasks([]byte(row.Tasks))
	if err != nil {
		return nil, 0, fmt.Errorf("decoding tasks for %s: %w", userID, err)
	}

	return tasks, Version(row.Version), nil
}

// SaveTasks writes the collection if the stored version still equals
// expected. The user row is created on first save.
func (s *SQLiteStore) SaveTasks(
	ctx context.Context,
	userID string,
	tasks []model.Task,
	expected Version,
) (Version, error) {
	data, err := encodeTasks(tasks)
	if err != nil {
		return 0, fmt.Errorf("encoding tasks for %s: %w", userID, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, webhook_url, created_at, updated_at)
		VALUES (?, '', ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		userID, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("ensuring user %s: %w", userID, err)
	}

	var res sql.Result
	if expected == 0 {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO user_tasks (user_id, tasks, version, updated_at)
			VALUES (?, ?, 1, ?)
			ON CONFLICT(user_id) DO NOTHING`,
			userID, string(data), now,
		)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE user_tasks
			SET tasks = ?, version = version + 1, updated_at = ?
			WHERE user_id = ? AND version = ?`,
			string(data), now, userID, int64(expected),
		)
	}
	if err != nil {
		return 0, fmt.Errorf("saving tasks for %s: %w", userID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking saved rows: %w", err)
	}
	if affected == 0 {
		return 0, ErrConflict
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing tasks for %s: %w", userID, err)
	}

	return expected + 1, nil
}

// GetUser retrieves a single user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u,
		"SELECT id, webhook_url, created_at, updated_at FROM users WHERE id = ?", id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	return &u, nil
}

// UpsertUser inserts a user or updates its webhook URL.
func (s *SQLiteStore) UpsertUser(ctx context.Context, u model.User) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, webhook_url, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			webhook_url = excluded.webhook_url,
			updated_at = excluded.updated_at`,
		u.ID, u.WebhookURL, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", u.ID, err)
	}
	return nil
}

// ListUsers returns every known user ordered by ID.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := s.db.SelectContext(ctx, &users,
		"SELECT id, webhook_url, created_at, updated_at FROM users ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// RecordNotification inserts a reminder audit record.
func (s *SQLiteStore) RecordNotification(ctx context.Context, n model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (
			id, user_id, task_id, channel, title, body, delivered, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.TaskID, string(n.Channel), n.Title, n.Body,
		boolToInt(n.Delivered), n.Error, n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording notification: %w", err)
	}
	return nil
}

// ListNotifications returns the user's most recent reminder records,
// newest first.
func (s *SQLiteStore) ListNotifications(
	ctx context.Context,
	userID string,
	limit int,
) ([]model.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}

	var out []model.Notification
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, user_id, task_id, channel, title, body, delivered, error, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notifications for %s: %w", userID, err)
	}
	return out, nil
}

// ClaimLease takes key for holder when it is free or expired. Expiry
// times are stored as Unix milliseconds.
func (s *SQLiteStore) ClaimLease(
	ctx context.Context,
	key, holder string,
	now, expires time.Time,
) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO leases (lease_key, holder, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(lease_key) DO UPDATE SET
			holder = excluded.holder,
			expires_at = excluded.expires_at
		WHERE leases.expires_at <= ?`,
		key, holder, expires.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("claiming lease %s: %w", key, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking lease %s: %w", key, err)
	}
	return affected > 0, nil
}

// ReleaseLease deletes key if holder still owns it.
func (s *SQLiteStore) ReleaseLease(ctx context.Context, key, holder string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM leases WHERE lease_key = ? AND holder = ?", key, holder,
	)
	if err != nil {
		return fmt.Errorf("releasing lease %s: %w", key, err)
	}
	return nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
