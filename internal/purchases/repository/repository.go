// Package repository is the idempotency ledger: one transactions row per
// payment reference, gated by the unique constraint on reference.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"datavend_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opAcquire  = "ledger.acquire"
	opExists   = "ledger.exists"
	opClaim    = "ledger.claim"
	opComplete = "ledger.complete"
	opGet      = "ledger.get"

	uniqueViolation = "23505"
)

// Status is the dispensing outcome stored on a ledger row.
type Status string

const (
	// StatusPending marks a claimed reference whose dispensing outcome is not yet known.
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ErrNotFound is returned by Get for an unknown reference.
var ErrNotFound = apperr.NotFound("transaction not found")

// Transaction is one ledger row.
type Transaction struct {
	ID          int64
	Reference   string
	PhoneNumber string
	Network     string
	PlanID      string
	Status      Status
	APIResponse json.RawMessage
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Store is the ledger as seen by the purchase workflow.
type Store interface {
	// Acquire checks out a session for one workflow run. Callers must Release it.
	Acquire(ctx context.Context) (Session, error)
	Get(ctx context.Context, reference string) (Transaction, error)
}

// Session is a single store connection held for one invocation.
type Session interface {
	Exists(ctx context.Context, reference string) (bool, error)
	// Claim inserts a pending row. It returns false when the reference is already taken.
	Claim(ctx context.Context, tx Transaction) (bool, error)
	// Complete moves a pending row to its final status.
	Complete(ctx context.Context, reference string, status Status, apiResponse json.RawMessage) error
	Release()
}

const existsQuery = `SELECT EXISTS (SELECT 1 FROM transactions WHERE reference = $1)`

const claimQuery = `
	INSERT INTO transactions (reference, phone_number, network, plan_id, status)
	VALUES ($1, $2, $3, $4, 'pending')
	ON CONFLICT (reference) DO NOTHING`

const completeQuery = `
	UPDATE transactions
	SET status = $2, api_response = $3, completed_at = now()
	WHERE reference = $1 AND status = 'pending'`

const getQuery = `
	SELECT id, reference, phone_number, network, plan_id, status, api_response, created_at, completed_at
	FROM transactions
	WHERE reference = $1`

// Repository implements Store on a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new ledger repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Acquire checks out one pooled connection.
func (r *Repository) Acquire(ctx context.Context) (Session, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opAcquire, err)
	}
	return &connSession{conn: conn}, nil
}

// Get returns the ledger row for reference.
func (r *Repository) Get(ctx context.Context, reference string) (Transaction, error) {
	var (
		tx     Transaction
		status string
		raw    []byte
	)
	err := r.pool.QueryRow(ctx, getQuery, reference).Scan(
		&tx.ID, &tx.Reference, &tx.PhoneNumber, &tx.Network, &tx.PlanID, &status, &raw, &tx.CreatedAt, &tx.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("%s: %w", opGet, err)
	}
	tx.Status = Status(status)
	if len(raw) > 0 {
		tx.APIResponse = json.RawMessage(raw)
	}
	return tx, nil
}

type connSession struct {
	conn *pgxpool.Conn
}

func (s *connSession) Exists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	if err := s.conn.QueryRow(ctx, existsQuery, reference).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", opExists, err)
	}
	return exists, nil
}

func (s *connSession) Claim(ctx context.Context, tx Transaction) (bool, error) {
	tag, err := s.conn.Exec(ctx, claimQuery, tx.Reference, tx.PhoneNumber, tx.Network, tx.PlanID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", opClaim, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *connSession) Complete(ctx context.Context, reference string, status Status, apiResponse json.RawMessage) error {
	if status != StatusSuccess && status != StatusFailed {
		return fmt.Errorf("%s: invalid final status %q", opComplete, status)
	}
	var payload []byte
	if len(apiResponse) > 0 {
		payload = apiResponse
	}
	tag, err := s.conn.Exec(ctx, completeQuery, reference, string(status), payload)
	if err != nil {
		return fmt.Errorf("%s: %w", opComplete, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%s: no pending row for reference %s", opComplete, reference)
	}
	return nil
}

func (s *connSession) Release() {
	if s.conn != nil {
		s.conn.Release()
		s.conn = nil
	}
}

var _ Store = (*Repository)(nil)
