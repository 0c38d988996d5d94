package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the candidates table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS candidates (
    id           TEXT PRIMARY KEY,
    account_id   TEXT NOT NULL,
    kind         TEXT NOT NULL,
    name         TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    address      TEXT NOT NULL DEFAULT '',
    aliases      JSONB NOT NULL DEFAULT '[]',
    favorite     BOOLEAN NOT NULL DEFAULT false,
    use_count    INTEGER NOT NULL DEFAULT 0,
    last_used    TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_candidates_account ON candidates(account_id, kind);
CREATE INDEX IF NOT EXISTS idx_candidates_name ON candidates(name);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
// Aliases are serialised as JSONB.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// candidates table and indexes if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("registry: migrate: %w", err)
	}
	return nil
}

// Add implements [Store.Add].
func (s *PostgresStore) Add(ctx context.Context, c Candidate) (Candidate, error) {
	if err := c.Validate(); err != nil {
		return Candidate{}, err
	}

	if c.ID == "" {
		id, err := generateID()
		if err != nil {
			return Candidate{}, fmt.Errorf("registry: generate id: %w", err)
		}
		c.ID = id
	}

	aliasJSON, err := json.Marshal(emptySlice(c.Aliases))
	if err != nil {
		return Candidate{}, fmt.Errorf("registry: marshal aliases: %w", err)
	}

	const query = `
		INSERT INTO candidates (id, account_id, kind, name, display_name, address, aliases, favorite, use_count, last_used)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err = s.db.Exec(ctx, query,
		c.ID, c.AccountID, string(c.Kind), c.Name, c.DisplayName, c.Address,
		aliasJSON, c.Favorite, c.UseCount, nullableTime(c.LastUsed),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return Candidate{}, ErrDuplicateID
		}
		return Candidate{}, fmt.Errorf("registry: add: %w", err)
	}
	return c, nil
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, id string) (Candidate, error) {
	const query = `
		SELECT id, account_id, kind, name, display_name, address, aliases, favorite, use_count, last_used
		FROM candidates
		WHERE id = $1`

	c, err := scanCandidate(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Candidate{}, ErrNotFound
		}
		return Candidate{}, fmt.Errorf("registry: get %q: %w", id, err)
	}
	return c, nil
}

// List implements [Store.List].
func (s *PostgresStore) List(ctx context.Context, accountID string, kind Kind) ([]Candidate, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if kind == "" {
		const query = `
			SELECT id, account_id, kind, name, display_name, address, aliases, favorite, use_count, last_used
			FROM candidates
			WHERE account_id = $1
			ORDER BY name`
		rows, err = s.db.Query(ctx, query, accountID)
	} else {
		const query = `
			SELECT id, account_id, kind, name, display_name, address, aliases, favorite, use_count, last_used
			FROM candidates
			WHERE account_id = $1 AND kind = $2
			ORDER BY name`
		rows, err = s.db.Query(ctx, query, accountID, string(kind))
	}
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}

	candidates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Candidate, error) {
		return scanCandidate(row)
	})
	if err != nil {
		return nil, fmt.Errorf("registry: list scan: %w", err)
	}
	if candidates == nil {
		candidates = []Candidate{}
	}
	return candidates, nil
}

// Update implements [Store.Update].
func (s *PostgresStore) Update(ctx context.Context, c Candidate) error {
	if err := c.Validate(); err != nil {
		return err
	}

	aliasJSON, err := json.Marshal(emptySlice(c.Aliases))
	if err != nil {
		return fmt.Errorf("registry: marshal aliases: %w", err)
	}

	const query = `
		UPDATE candidates SET
			account_id = $2, kind = $3, name = $4, display_name = $5,
			address = $6, aliases = $7, favorite = $8, use_count = $9,
			last_used = $10
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query,
		c.ID, c.AccountID, string(c.Kind), c.Name, c.DisplayName, c.Address,
		aliasJSON, c.Favorite, c.UseCount, nullableTime(c.LastUsed),
	)
	if err != nil {
		return fmt.Errorf("registry: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordDispatch implements [Store.RecordDispatch].
func (s *PostgresStore) RecordDispatch(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE candidates SET use_count = use_count + 1, last_used = $2
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("registry: record dispatch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanCandidate scans a single candidates row.
func scanCandidate(row pgx.Row) (Candidate, error) {
	var (
		c         Candidate
		kind      string
		aliasJSON []byte
		lastUsed  *time.Time
	)
	if err := row.Scan(
		&c.ID, &c.AccountID, &kind, &c.Name, &c.DisplayName, &c.Address,
		&aliasJSON, &c.Favorite, &c.UseCount, &lastUsed,
	); err != nil {
		return Candidate{}, err
	}
	c.Kind = Kind(kind)
	if lastUsed != nil {
		c.LastUsed = *lastUsed
	}
	if err := json.Unmarshal(aliasJSON, &c.Aliases); err != nil {
		return Candidate{}, fmt.Errorf("unmarshal aliases: %w", err)
	}
	return c, nil
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// emptySlice returns s if non-nil, otherwise an empty non-nil slice. This
// ensures JSON marshalling produces "[]" instead of "null".
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
