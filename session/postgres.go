package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresStore is a PostgreSQL-backed [Repository] over the
// session_credentials table created by [MigratePostgres].
//
// The pgx pool is owned by the caller; the store never closes it.
// TryConsume and RevokeAll are single conditional UPDATE statements, so no
// explicit transaction or row lock is needed.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore creates a [PostgresStore]. Only WithClock is honored.
func NewPostgresStore(pool *pgxpool.Pool, opts ...Option) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("session: nil pool")
	}
	o := applyOptions(opts)
	return &PostgresStore{pool: pool, now: o.now}, nil
}

func (s *PostgresStore) Create(ctx context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_credentials (
			id, user_id, credential_digest,
			created_at, expires_at, revoked_at,
			device_info, client_address
		) VALUES ($1, $2, $3, $4, $5, NULL, $6, $7)
	`, rec.ID, rec.UserID, rec.CredentialDigest[:], rec.CreatedAt.UTC(), rec.ExpiresAt.UTC(),
		nullIfEmpty(rec.DeviceInfo), nullIfEmpty(rec.ClientAddress))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", ErrRecordExists, rec.ID)
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) ListActive(ctx context.Context, userID string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			id, user_id, credential_digest,
			created_at, expires_at, revoked_at,
			device_info, client_address
		FROM session_credentials
		WHERE user_id = $1
		  AND revoked_at IS NULL
		  AND expires_at > $2
		ORDER BY created_at, id
	`, userID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return out, nil
}

func (s *PostgresStore) TryConsume(ctx context.Context, recordID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE session_credentials
		SET revoked_at = $2
		WHERE id = $1
		  AND revoked_at IS NULL
		  AND expires_at > $2
	`, recordID, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, recordID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE session_credentials
		SET revoked_at = $2
		WHERE id = $1
		  AND revoked_at IS NULL
	`, recordID, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return tag.RowsAffected() == 1, nil
}

// RevokeAll marks every unrevoked record of the user revoked and returns how
// many of them were still active.
func (s *PostgresStore) RevokeAll(ctx context.Context, userID string) (int, error) {
	var revoked int
	err := s.pool.QueryRow(ctx, `
		WITH revoked AS (
			UPDATE session_credentials
			SET revoked_at = $2
			WHERE user_id = $1
			  AND revoked_at IS NULL
			RETURNING expires_at
		)
		SELECT count(*) FROM revoked WHERE expires_at > $2
	`, userID, s.now().UTC()).Scan(&revoked)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return revoked, nil
}

// PruneExpired deletes records that expired or were revoked before cutoff.
// It is meant for an external housekeeping job, never the request path.
func (s *PostgresStore) PruneExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM session_credentials
		WHERE expires_at < $1
		   OR (revoked_at IS NOT NULL AND revoked_at < $1)
	`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.pool.Ping(ctx); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return time.Since(start), nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec     Record
		digest  []byte
		device  *string
		address *string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&digest,
		&rec.CreatedAt,
		&rec.ExpiresAt,
		&rec.RevokedAt,
		&device,
		&address,
	); err != nil {
		return Record{}, err
	}
	if len(digest) != len(rec.CredentialDigest) {
		return Record{}, errors.New("invalid digest length")
	}
	copy(rec.CredentialDigest[:], digest)
	if device != nil {
		rec.DeviceInfo = *device
	}
	if address != nil {
		rec.ClientAddress = *address
	}
	return rec, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
