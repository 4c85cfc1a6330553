package license

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Unique index names from the licenses migration; used to map constraint
// violations onto the package sentinels.
const (
	chargeUniqueIndex    = "licenses_pay_charge_id_key"
	licenseIDUniqueIndex = "licenses_license_id_key"
)

// PostgresStore implements Store on a pgx connection pool. The uniqueness
// invariants live in the schema as partial/unique indexes; this type only
// translates constraint violations into the package's sentinel errors.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed license store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("license: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

const licenseColumns = `id, license_id, key, user_id, pay_subscription_id, pay_charge_id,
	plan, status, issued_at, expires_at, created_at, updated_at`

// CreateAndSupersede implements Store. Insert and supersession run in one
// transaction: either the new license exists and all siblings are expired,
// or nothing changed.
func (s *PostgresStore) CreateAndSupersede(ctx context.Context, lic *License) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin issuance transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, `
		INSERT INTO licenses (id, license_id, key, user_id, pay_subscription_id, pay_charge_id,
			plan, status, issued_at, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		lic.ID, lic.LicenseID, lic.Key, lic.UserID, lic.SubscriptionID, lic.ChargeID,
		lic.Plan, lic.Status, lic.IssuedAt, lic.ExpiresAt, lic.CreatedAt, lic.UpdatedAt,
	)
	if err != nil {
		return mapConstraintError(err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE licenses SET status = $1, updated_at = now()
		WHERE user_id = $2 AND id <> $3`,
		StatusExpired, lic.UserID, lic.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to expire superseded licenses: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit issuance transaction: %w", err)
	}
	return nil
}

// ExistsByCharge implements Store.
func (s *PostgresStore) ExistsByCharge(ctx context.Context, chargeID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM licenses WHERE pay_charge_id = $1)`, chargeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check license by charge: %w", err)
	}
	return exists, nil
}

// ExistsBySubscription implements Store.
func (s *PostgresStore) ExistsBySubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM licenses WHERE user_id = $1 AND pay_subscription_id = $2)`,
		userID, subscriptionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check license by subscription: %w", err)
	}
	return exists, nil
}

// LicenseIDExists implements Store.
func (s *PostgresStore) LicenseIDExists(ctx context.Context, licenseID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM licenses WHERE license_id = $1)`, licenseID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check license ID: %w", err)
	}
	return exists, nil
}

// ByLicenseID implements Store.
func (s *PostgresStore) ByLicenseID(ctx context.Context, licenseID string) (*License, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE license_id = $1`, licenseID)
	return scanLicense(row)
}

// CancelActive implements Store.
func (s *PostgresStore) CancelActive(ctx context.Context, subscriptionID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE licenses SET status = $1, updated_at = now()
		WHERE pay_subscription_id = $2 AND status = $3`,
		StatusCancelled, subscriptionID, StatusActive,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel active licenses: %w", err)
	}
	return tag.RowsAffected(), nil
}

// BestByUser implements Store.
func (s *PostgresStore) BestByUser(ctx context.Context, userID uuid.UUID) (*License, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+licenseColumns+` FROM licenses
		WHERE user_id = $1
		ORDER BY CASE status
			WHEN 'active' THEN 0
			WHEN 'cancelled' THEN 1
			WHEN 'expired' THEN 2
			ELSE 3 END,
			created_at DESC
		LIMIT 1`, userID)
	return scanLicense(row)
}

// ListByUser implements Store.
func (s *PostgresStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]License, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+licenseColumns+` FROM licenses
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}
	defer rows.Close()

	licenses := make([]License, 0, 8)
	for rows.Next() {
		lic, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, *lic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate licenses: %w", err)
	}
	return licenses, nil
}

// CountByUser implements Store.
func (s *PostgresStore) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM licenses WHERE user_id = $1`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count licenses: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLicense(row rowScanner) (*License, error) {
	var lic License
	err := row.Scan(
		&lic.ID, &lic.LicenseID, &lic.Key, &lic.UserID, &lic.SubscriptionID, &lic.ChargeID,
		&lic.Plan, &lic.Status, &lic.IssuedAt, &lic.ExpiresAt, &lic.CreatedAt, &lic.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan license: %w", err)
	}
	return &lic, nil
}

// mapConstraintError translates Postgres unique violations into sentinels so
// callers can treat a lost race as a no-op instead of a failure.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case chargeUniqueIndex:
			return ErrDuplicateCharge
		case licenseIDUniqueIndex:
			return ErrDuplicateLicenseID
		}
	}
	return fmt.Errorf("failed to insert license: %w", err)
}
