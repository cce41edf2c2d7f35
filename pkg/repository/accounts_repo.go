package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/quietpost/quietpost/pkg/domain"
)

// Unique index names from migrations/001_init.sql. Conflicts are mapped by
// constraint so uniqueness is enforced by the store, not an application
// pre-check; two racing registrations cannot both succeed.
const (
	handleUniqueIndex = "accounts_handle_lower_idx"
	emailUniqueIndex  = "accounts_email_lower_idx"
)

const accountColumns = `id, handle, email, secret_hash, verify_code, verify_code_expires_at,
	       verified, accepting_messages, created_at, updated_at`

// AccountsRepository handles account persistence.
type AccountsRepository struct {
	db *sql.DB
}

// NewAccountsRepository creates a new accounts repository.
func NewAccountsRepository(db *sql.DB) *AccountsRepository {
	return &AccountsRepository{db: db}
}

// Create creates a new account.
func (r *AccountsRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, handle, email, secret_hash, verify_code, verify_code_expires_at,
		                      verified, accepting_messages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.Handle, account.Email, account.SecretHash,
		account.VerifyCode, account.VerifyCodeExpiry,
		account.Verified, account.AcceptingMessages,
		account.CreatedAt, account.UpdatedAt,
	)
	return mapConflict(err)
}

// GetByID retrieves an account by ID.
func (r *AccountsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByHandle retrieves an account by handle, case-insensitively.
func (r *AccountsRepository) GetByHandle(ctx context.Context, handle string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(handle) = lower($1)`
	return r.scanOne(r.db.QueryRowContext(ctx, query, handle))
}

// GetByEmail retrieves an account by email, case-insensitively.
func (r *AccountsRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

// Reregister overwrites the handle, secret and verification code of an
// account that has not yet been verified. The verified guard keeps a racing
// verification from being silently undone by a re-registration.
func (r *AccountsRepository) Reregister(ctx context.Context, account *domain.Account) error {
	query := `
		UPDATE accounts
		SET handle = $2, secret_hash = $3, verify_code = $4, verify_code_expires_at = $5,
		    updated_at = NOW()
		WHERE id = $1 AND NOT verified
	`
	result, err := r.db.ExecContext(ctx, query,
		account.ID, account.Handle, account.SecretHash,
		account.VerifyCode, account.VerifyCodeExpiry,
	)
	if err != nil {
		return mapConflict(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrEmailTaken
	}
	return nil
}

// SetVerificationCode overwrites the verification code and its expiry.
func (r *AccountsRepository) SetVerificationCode(ctx context.Context, id uuid.UUID, code string, expiry time.Time) error {
	query := `
		UPDATE accounts
		SET verify_code = $2, verify_code_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, code, expiry)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrAccountNotFound)
}

// MarkVerified flips the account into its terminal verified state. This is
// the only mutation performed by a successful verification.
func (r *AccountsRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE accounts SET verified = TRUE, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrAccountNotFound)
}

// SetAccepting unconditionally overwrites the acceptance flag.
func (r *AccountsRepository) SetAccepting(ctx context.Context, id uuid.UUID, accepting bool) error {
	query := `UPDATE accounts SET accepting_messages = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, accepting)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrAccountNotFound)
}

func (r *AccountsRepository) scanOne(row *sql.Row) (*domain.Account, error) {
	account := &domain.Account{}
	err := row.Scan(
		&account.ID, &account.Handle, &account.Email, &account.SecretHash,
		&account.VerifyCode, &account.VerifyCodeExpiry,
		&account.Verified, &account.AcceptingMessages,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// mapConflict translates Postgres unique violations (23505) into the domain
// conflict errors by constraint name.
func mapConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case handleUniqueIndex:
			return domain.ErrHandleTaken
		case emailUniqueIndex:
			return domain.ErrEmailTaken
		}
	}
	return err
}

func requireRow(result sql.Result, missing error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return missing
	}
	return nil
}
