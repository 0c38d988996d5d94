package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the subscriptions table. The billing service owns
// writes; this engine only reads. Execute via [PostgresStore.Migrate] or apply
// manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS subscriptions (
    account_id                   TEXT PRIMARY KEY,
    tier                         TEXT NOT NULL DEFAULT 'free',
    meetings_this_month          INTEGER NOT NULL DEFAULT 0,
    current_meeting_participants INTEGER NOT NULL DEFAULT 0,
    updated_at                   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a read-only [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("subscription: migrate: %w", err)
	}
	return nil
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, accountID string) (State, error) {
	const query = `
		SELECT account_id, tier, meetings_this_month, current_meeting_participants
		FROM subscriptions
		WHERE account_id = $1`

	var (
		st   State
		tier string
	)
	err := s.db.QueryRow(ctx, query, accountID).Scan(
		&st.AccountID, &tier, &st.MeetingsThisMonth, &st.CurrentMeetingParticipants,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return State{}, ErrNotFound
		}
		return State{}, fmt.Errorf("subscription: get %q: %w", accountID, err)
	}
	st.Tier = Tier(tier)
	return st, nil
}
