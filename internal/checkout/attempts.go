package checkout

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

type AttemptStatus string

const (
	AttemptOpen            AttemptStatus = "open"
	AttemptAwaitingPayment AttemptStatus = "awaiting_payment"
	AttemptCompleted       AttemptStatus = "completed"
	AttemptFailed          AttemptStatus = "failed"
	AttemptExpired         AttemptStatus = "expired"
)

// ArtifactRecord is the server's copy of a payment artifact. Superseded artifacts belong
// to a rail the customer abandoned and never produce an order.
type ArtifactRecord struct {
	Reference        string
	CheckoutID       string
	Rail             domain.Rail
	AmountMinorUnits int64
	Metadata         map[string]string
	ExpiresAt        time.Time
	Superseded       bool
}

// AttemptRepository stores checkout attempts and the artifacts created for them.
type AttemptRepository struct {
	db *sql.DB
}

func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Open creates the attempt if it does not exist and returns its current status.
func (r *AttemptRepository) Open(ctx context.Context, checkoutID string) (AttemptStatus, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkout_attempts (id, status)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, checkoutID, AttemptOpen)
	if err != nil {
		return "", err
	}

	var status AttemptStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM checkout_attempts WHERE id = $1`, checkoutID).Scan(&status)
	return status, err
}

// RecordArtifact makes rec the attempt's only active artifact. Every other artifact of
// the attempt is superseded in the same transaction.
func (r *AttemptRepository) RecordArtifact(ctx context.Context, rec ArtifactRecord) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return err
	}

	var expiresAt any
	if !rec.ExpiresAt.IsZero() {
		expiresAt = rec.ExpiresAt
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var status AttemptStatus
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM checkout_attempts WHERE id = $1 FOR UPDATE
	`, rec.CheckoutID).Scan(&status)
	if err != nil {
		return err
	}
	if status == AttemptCompleted {
		return ErrCheckoutCompleted
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE payment_artifacts SET superseded = TRUE
		WHERE checkout_id = $1 AND provider_reference <> $2
	`, rec.CheckoutID, rec.Reference); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payment_artifacts (provider_reference, checkout_id, rail, amount_minor_units, metadata, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider_reference) DO UPDATE SET superseded = FALSE
	`, rec.Reference, rec.CheckoutID, rec.Rail, rec.AmountMinorUnits, string(meta), expiresAt); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE checkout_attempts
		SET status = $2, active_rail = $3, active_reference = $4, amount = $5, updated_at = NOW()
		WHERE id = $1
	`, rec.CheckoutID, AttemptAwaitingPayment, rec.Rail, rec.Reference, domain.FromMinorUnits(rec.AmountMinorUnits)); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *AttemptRepository) Artifact(ctx context.Context, ref string) (*ArtifactRecord, error) {
	rec := &ArtifactRecord{Reference: ref}
	var (
		meta      []byte
		expiresAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT checkout_id::text, rail, amount_minor_units, metadata, expires_at, superseded
		FROM payment_artifacts
		WHERE provider_reference = $1
	`, ref).Scan(&rec.CheckoutID, &rec.Rail, &rec.AmountMinorUnits, &meta, &expiresAt, &rec.Superseded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		rec.ExpiresAt = expiresAt.Time
	}
	return rec, nil
}

// Finish moves the attempt to a terminal status. A completed attempt is never reopened.
func (r *AttemptRepository) Finish(ctx context.Context, checkoutID string, status AttemptStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE checkout_attempts SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> $3
	`, checkoutID, status, AttemptCompleted)
	return err
}
