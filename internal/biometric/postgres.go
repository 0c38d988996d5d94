package biometric

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgvector "github.com/pgvector/pgvector-go"
)

// VoiceprintDimensions is the feature-vector dimension of the voiceprint
// column. It must match the embedding size produced by the transcription
// front-end's speaker model.
const VoiceprintDimensions = 256

// Schema is the SQL DDL for the voice_profiles table. The voiceprint column
// uses pgvector so recognition services can run nearest-neighbour speaker
// lookups against the same data. Execute via [PostgresStore.Migrate] or apply
// manually during deployment.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS voice_profiles (
    member_id            TEXT PRIMARY KEY,
    account_id           TEXT NOT NULL,
    state                TEXT NOT NULL DEFAULT 'pending',
    samples              INTEGER NOT NULL DEFAULT 0,
    required_samples     INTEGER NOT NULL DEFAULT 5,
    confidence_threshold DOUBLE PRECISION NOT NULL DEFAULT 0.85,
    is_owner             BOOLEAN NOT NULL DEFAULT false,
    command_authority    BOOLEAN NOT NULL DEFAULT false,
    quality              DOUBLE PRECISION NOT NULL DEFAULT 0,
    voiceprint           vector(256),
    enrolled_at          TIMESTAMPTZ,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_voice_profiles_account ON voice_profiles(account_id);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database with a pgvector
// voiceprint column.
//
// The pool used must register pgvector types on each connection (see
// pgvector-go/pgx RegisterTypes).
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. Call [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("biometric: migrate: %w", err)
	}
	return nil
}

// Add implements [Store.Add].
func (s *PostgresStore) Add(ctx context.Context, p VoiceProfile) (VoiceProfile, error) {
	p = applyDefaults(p)

	const query = `
		INSERT INTO voice_profiles (
			member_id, account_id, state, samples, required_samples,
			confidence_threshold, is_owner, command_authority, quality,
			voiceprint, enrolled_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	_, err := s.db.Exec(ctx, query,
		p.MemberID, p.AccountID, string(p.State), p.Samples, p.RequiredSamples,
		p.ConfidenceThreshold, p.Owner, p.CommandAuthority, p.Quality,
		nullableVector(p.Voiceprint), nullableTime(p.EnrolledAt),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return VoiceProfile{}, ErrDuplicateMember
		}
		return VoiceProfile{}, fmt.Errorf("biometric: add: %w", err)
	}
	return p, nil
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, memberID string) (VoiceProfile, error) {
	const query = `
		SELECT member_id, account_id, state, samples, required_samples,
		       confidence_threshold, is_owner, command_authority, quality,
		       voiceprint, enrolled_at
		FROM voice_profiles
		WHERE member_id = $1`

	p, err := scanProfile(s.db.QueryRow(ctx, query, memberID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VoiceProfile{}, ErrNotFound
		}
		return VoiceProfile{}, fmt.Errorf("biometric: get %q: %w", memberID, err)
	}
	return p, nil
}

// List implements [Store.List].
func (s *PostgresStore) List(ctx context.Context, accountID string) ([]VoiceProfile, error) {
	const query = `
		SELECT member_id, account_id, state, samples, required_samples,
		       confidence_threshold, is_owner, command_authority, quality,
		       voiceprint, enrolled_at
		FROM voice_profiles
		WHERE account_id = $1
		ORDER BY member_id`

	rows, err := s.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("biometric: list: %w", err)
	}

	profiles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (VoiceProfile, error) {
		return scanProfile(row)
	})
	if err != nil {
		return nil, fmt.Errorf("biometric: list scan: %w", err)
	}
	if profiles == nil {
		profiles = []VoiceProfile{}
	}
	return profiles, nil
}

// Update implements [Store.Update].
func (s *PostgresStore) Update(ctx context.Context, p VoiceProfile) error {
	const query = `
		UPDATE voice_profiles SET
			account_id = $2, state = $3, samples = $4, required_samples = $5,
			confidence_threshold = $6, is_owner = $7, command_authority = $8,
			quality = $9, voiceprint = $10, enrolled_at = $11
		WHERE member_id = $1`

	tag, err := s.db.Exec(ctx, query,
		p.MemberID, p.AccountID, string(p.State), p.Samples, p.RequiredSamples,
		p.ConfidenceThreshold, p.Owner, p.CommandAuthority, p.Quality,
		nullableVector(p.Voiceprint), nullableTime(p.EnrolledAt),
	)
	if err != nil {
		return fmt.Errorf("biometric: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateIfSamples implements [Store.UpdateIfSamples]. The sample count acts
// as the compare-and-swap token: the row is only written while it still
// holds the expected count.
func (s *PostgresStore) UpdateIfSamples(ctx context.Context, p VoiceProfile, expectedSamples int) error {
	const query = `
		UPDATE voice_profiles SET
			account_id = $2, state = $3, samples = $4, required_samples = $5,
			confidence_threshold = $6, is_owner = $7, command_authority = $8,
			quality = $9, voiceprint = $10, enrolled_at = $11
		WHERE member_id = $1 AND samples = $12`

	tag, err := s.db.Exec(ctx, query,
		p.MemberID, p.AccountID, string(p.State), p.Samples, p.RequiredSamples,
		p.ConfidenceThreshold, p.Owner, p.CommandAuthority, p.Quality,
		nullableVector(p.Voiceprint), nullableTime(p.EnrolledAt),
		expectedSamples,
	)
	if err != nil {
		return fmt.Errorf("biometric: update if samples: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Zero rows is either a missing profile or a lost race; probe to
		// report the right error.
		if _, err := s.Get(ctx, p.MemberID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrStaleProfile
	}
	return nil
}

// scanProfile scans a single voice_profiles row.
func scanProfile(row pgx.Row) (VoiceProfile, error) {
	var (
		p          VoiceProfile
		state      string
		voiceprint *pgvector.Vector
		enrolledAt *time.Time
	)
	if err := row.Scan(
		&p.MemberID, &p.AccountID, &state, &p.Samples, &p.RequiredSamples,
		&p.ConfidenceThreshold, &p.Owner, &p.CommandAuthority, &p.Quality,
		&voiceprint, &enrolledAt,
	); err != nil {
		return VoiceProfile{}, err
	}
	p.State = EnrollmentState(state)
	if voiceprint != nil {
		p.Voiceprint = voiceprint.Slice()
	}
	if enrolledAt != nil {
		p.EnrolledAt = *enrolledAt
	}
	return p, nil
}

// nullableVector maps an empty voiceprint to SQL NULL.
func nullableVector(features []float32) *pgvector.Vector {
	if len(features) == 0 {
		return nil
	}
	v := pgvector.NewVector(features)
	return &v
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
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
