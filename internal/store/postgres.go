package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nhle/cyclic-tasks/internal/model"
)

// PostgresStore implements the Store interface on PostgreSQL. Task
// collections live in a JSONB column next to their version.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn, verifies the connection and applies
// the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying postgres schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases all pooled connections.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// LoadTasks returns the user's task collection and its version.
func (s *PostgresStore) LoadTasks(
	ctx context.Context,
	userID string,
) ([]model.Task, Version, error) {
	var (
		data    []byte
		version int64
	)

	err := s.pool.QueryRow(ctx,
		"SELECT tasks, version FROM user_tasks WHERE user_id = $1", userID,
	).Scan(&data, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return []model.Task{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("loading tasks for %s: %w", userID, err)
	}

	tasks, err := decodeTasks(data)
	if err != nil {
		return nil, 0, fmt.Errorf("decoding tasks for %s: %w", userID, err)
	}

	return tasks, Version(version), nil
}

// SaveTasks writes the collection if the stored version still equals
// expected.
func (s *PostgresStore) SaveTasks(
	ctx context.Context,
	userID string,
	tasks []model.Task,
	expected Version,
) (Version, error) {
	data, err := encodeTasks(tasks)
	if err != nil {
		return 0, fmt.Errorf("encoding tasks for %s: %w", userID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id) VALUES ($1)
		ON CONFLICT (id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("ensuring user %s: %w", userID, err)
	}

	var affected int64
	if expected == 0 {
		tag, err := tx.Exec(ctx, `
			INSERT INTO user_tasks (user_id, tasks, version)
			VALUES ($1, $2::jsonb, 1)
			ON CONFLICT (user_id) DO NOTHING`,
			userID, string(data),
		)
		if err != nil {
			return 0, fmt.Errorf("saving tasks for %s: %w", userID, err)
		}
		affected = tag.RowsAffected()
	} else {
		tag, err := tx.Exec(ctx, `
			UPDATE user_tasks
			SET tasks = $1::jsonb, version = version + 1, updated_at = now()
			WHERE user_id = $2 AND version = $3`,
			string(data), userID, int64(expected),
		)
		if err != nil {
			return 0, fmt.Errorf("saving tasks for %s: %w", userID, err)
		}
		affected = tag.RowsAffected()
	}

	if affected == 0 {
		return 0, ErrConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing tasks for %s: %w", userID, err)
	}

	return expected + 1, nil
}

// GetUser retrieves a single user by ID.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		"SELECT id, webhook_url, created_at, updated_at FROM users WHERE id = $1", id,
	).Scan(&u.ID, &u.WebhookURL, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("getting user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	return &u, nil
}

// UpsertUser inserts a user or updates its webhook URL.
func (s *PostgresStore) UpsertUser(ctx context.Context, u model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, webhook_url)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			webhook_url = EXCLUDED.webhook_url,
			updated_at = now()`,
		u.ID, u.WebhookURL,
	)
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", u.ID, err)
	}
	return nil
}

// ListUsers returns every known user ordered by ID.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, webhook_url, created_at, updated_at FROM users ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.WebhookURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// RecordNotification inserts a reminder audit record.
func (s *PostgresStore) RecordNotification(ctx context.Context, n model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (
			id, user_id, task_id, channel, title, body, delivered, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.UserID, n.TaskID, string(n.Channel), n.Title, n.Body,
		n.Delivered, n.Error, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording notification: %w", err)
	}
	return nil
}

// ListNotifications returns the user's most recent reminder records,
// newest first.
func (s *PostgresStore) ListNotifications(
	ctx context.Context,
	userID string,
	limit int,
) ([]model.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, task_id, channel, title, body, delivered, error, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notifications for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var (
			n       model.Notification
			channel string
		)
		err := rows.Scan(
			&n.ID, &n.UserID, &n.TaskID, &channel, &n.Title, &n.Body,
			&n.Delivered, &n.Error, &n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning notification row: %w", err)
		}
		n.Channel = model.Channel(channel)
		out = append(out, n)
	}

	return out, rows.Err()
}

// ClaimLease takes key for holder when it is free or expired.
func (s *PostgresStore) ClaimLease(
	ctx context.Context,
	key, holder string,
	now, expires time.Time,
) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO leases (lease_key, holder, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (lease_key) DO UPDATE SET
			holder = EXCLUDED.holder,
			expires_at = EXCLUDED.expires_at
		WHERE leases.expires_at <= $4`,
		key, holder, expires.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("claiming lease %s: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseLease deletes key if holder still owns it.
func (s *PostgresStore) ReleaseLease(ctx context.Context, key, holder string) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM leases WHERE lease_key = $1 AND holder = $2", key, holder,
	)
	if err != nil {
		return fmt.Errorf("releasing lease %s: %w", key, err)
	}
	return nil
}
