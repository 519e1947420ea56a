package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/coursehub/course-herald/internal/domain/subscription"
)

// SubscriptionRepo persists the subscription set in PostgreSQL. Save
// replaces the whole set transactionally, matching the file backend's
// full-overwrite contract.
type SubscriptionRepo struct {
	conn   *Connection
	logger zerolog.Logger
}

// NewSubscriptionRepo creates a PostgreSQL-backed repository and ensures
// its table exists.
func NewSubscriptionRepo(ctx context.Context, conn *Connection, logger zerolog.Logger) (*SubscriptionRepo, error) {
	repo := &SubscriptionRepo{
		conn:   conn,
		logger: logger.With().Str("component", "postgres.subscriptions").Logger(),
	}
	if err := repo.ensureTable(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *SubscriptionRepo) ensureTable(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS subscriptions (
			server_id    TEXT NOT NULL,
			server_name  TEXT NOT NULL DEFAULT '',
			channel_id   TEXT NOT NULL,
			channel_name TEXT NOT NULL DEFAULT '',
			course_id    TEXT NOT NULL,
			course_name  TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			PRIMARY KEY (server_id, channel_id, course_id)
		)
	`
	if _, err := r.conn.Pool().Exec(ctx, query); err != nil {
		return fmt.Errorf("create subscriptions table: %w", err)
	}
	return nil
}

// Load reads the full subscription set ordered by insertion time so the
// in-memory store keeps a stable ordering across restarts.
func (r *SubscriptionRepo) Load(ctx context.Context) ([]subscription.Subscription, error) {
	const query = `
		SELECT server_id, server_name, channel_id, channel_name, course_id, course_name
		FROM subscriptions
		ORDER BY created_at, server_id, channel_id, course_id
	`

	rows, err := r.conn.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []subscription.Subscription
	for rows.Next() {
		var s subscription.Subscription
		if err := rows.Scan(&s.ServerID, &s.ServerName, &s.ChannelID, &s.ChannelName,
			&s.CourseID, &s.CourseName); err != nil {
			return nil, fmt.Errorf("scan subscription row: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// Save replaces the stored set with subs in one transaction.
func (r *SubscriptionRepo) Save(ctx context.Context, subs []subscription.Subscription) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM subscriptions"); err != nil {
			return fmt.Errorf("clear subscriptions: %w", err)
		}

		const insert = `
			INSERT INTO subscriptions
				(server_id, server_name, channel_id, channel_name, course_id, course_name)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		for _, s := range subs {
			if _, err := tx.Exec(ctx, insert,
				s.ServerID, s.ServerName, s.ChannelID, s.ChannelName, s.CourseID, s.CourseName); err != nil {
				return fmt.Errorf("insert subscription: %w", err)
			}
		}
		return nil
	})
}
