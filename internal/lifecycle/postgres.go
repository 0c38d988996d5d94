package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the DDL for the action_records table. History is stored as a
// JSONB array so the append in ApplyTransition stays a single statement.
const Schema = `
CREATE TABLE IF NOT EXISTS action_records (
	id             TEXT PRIMARY KEY,
	account_id     TEXT NOT NULL,
	candidate_id   TEXT NOT NULL,
	kind           TEXT NOT NULL,
	phrase         TEXT NOT NULL,
	score          INTEGER NOT NULL,
	state          TEXT NOT NULL,
	history        JSONB NOT NULL DEFAULT '[]'::jsonb,
	failure_reason TEXT,
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS action_records_account_idx ON action_records (account_id, created_at DESC);
`

// DB is the subset of [pgx] connection behavior the store needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore returns a store using the given connection or pool.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the action_records table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("lifecycle: migrate: %w", err)
	}
	return nil
}

// Create implements [Store].
func (s *PostgresStore) Create(ctx context.Context, record ActionRecord) error {
	if record.ID == "" {
		record.ID = generateID()
	}
	history, err := json.Marshal(emptyHistory(record.History))
	if err != nil {
		return fmt.Errorf("lifecycle: create %q: encode history: %w", record.ID, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO action_records (id, account_id, candidate_id, kind, phrase, score, state, history, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.AccountID, record.CandidateID, string(record.Kind),
		record.Phrase, record.Score, string(record.State), history,
		nullableString(record.FailureReason), record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("lifecycle: create %q: %w", record.ID, err)
	}
	return nil
}

// Get implements [Store].
func (s *PostgresStore) Get(ctx context.Context, id string) (ActionRecord, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, account_id, candidate_id, kind, phrase, score, state, history, failure_reason, created_at
		FROM action_records WHERE id = $1`, id)
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ActionRecord{}, ErrNotFound
	}
	if err != nil {
		return ActionRecord{}, fmt.Errorf("lifecycle: get %q: %w", id, err)
	}
	return record, nil
}

// List implements [Store].
func (s *PostgresStore) List(ctx context.Context, accountID string) ([]ActionRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, candidate_id, kind, phrase, score, state, history, failure_reason, created_at
		FROM action_records WHERE account_id = $1
		ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: list account %q: %w", accountID, err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ActionRecord, error) {
		return scanRecord(row)
	})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: list account %q: %w", accountID, err)
	}
	return records, nil
}

// ApplyTransition implements [Store]. The WHERE clause on the expected state
// makes the swap a compare-and-swap; zero rows updated means either the
// record is missing or a concurrent transition got there first.
func (s *PostgresStore) ApplyTransition(ctx context.Context, id string, expected State, event TransitionEvent, failureReason string) (ActionRecord, error) {
	entry, err := json.Marshal(event)
	if err != nil {
		return ActionRecord{}, fmt.Errorf("lifecycle: transition %q: encode event: %w", id, err)
	}
	row := s.db.QueryRow(ctx, `
		UPDATE action_records
		SET state = $3,
		    history = history || $4::jsonb,
		    failure_reason = COALESCE(NULLIF($5, ''), failure_reason)
		WHERE id = $1 AND state = $2
		RETURNING id, account_id, candidate_id, kind, phrase, score, state, history, failure_reason, created_at`,
		id, string(expected), string(event.To), entry, failureReason)
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Disambiguate missing record from lost race.
		if _, getErr := s.Get(ctx, id); errors.Is(getErr, ErrNotFound) {
			return ActionRecord{}, ErrNotFound
		}
		return ActionRecord{}, ErrStaleState
	}
	if err != nil {
		return ActionRecord{}, fmt.Errorf("lifecycle: transition %q: %w", id, err)
	}
	return record, nil
}

func scanRecord(row pgx.Row) (ActionRecord, error) {
	var (
		record        ActionRecord
		kind, state   string
		history       []byte
		failureReason sql.NullString
		createdAt     time.Time
	)
	err := row.Scan(&record.ID, &record.AccountID, &record.CandidateID, &kind,
		&record.Phrase, &record.Score, &state, &history, &failureReason, &createdAt)
	if err != nil {
		return ActionRecord{}, err
	}
	record.Kind = ActionKind(kind)
	record.State = State(state)
	record.FailureReason = failureReason.String
	record.CreatedAt = createdAt
	if err := json.Unmarshal(history, &record.History); err != nil {
		return ActionRecord{}, fmt.Errorf("decode history: %w", err)
	}
	return record, nil
}

func emptyHistory(history []TransitionEvent) []TransitionEvent {
	if history == nil {
		return []TransitionEvent{}
	}
	return history
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
