package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/pkg/database"
)

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db *database.Postgres
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.Postgres) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `id, email, password_hash, external_subject_id, created_at`

// Create inserts a new account. Email uniqueness is enforced by the database, not pre-checked.
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, external_subject_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.ExternalSubjectID,
		account.CreatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolationConstraint(err); ok {
			if constraint == constraintAccountExternalID {
				return fmt.Errorf("failed to create account: %w", ErrDuplicateExternalID)
			}
			return fmt.Errorf("failed to create account: %w", ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by ID
func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.getOne(ctx, query, id, "id")
}

// GetByEmail retrieves an account by normalized email
func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`
	return r.getOne(ctx, query, email, "email")
}

// GetByExternalSubjectID retrieves the account linked to an external identity
func (r *accountRepository) GetByExternalSubjectID(ctx context.Context, externalSubjectID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE external_subject_id = $1`
	return r.getOne(ctx, query, externalSubjectID, "external subject")
}

func (r *accountRepository) getOne(ctx context.Context, query, arg, by string) (*domain.Account, error) {
	account := &domain.Account{}
	var externalID sql.NullString

	err := r.db.DB.QueryRowContext(ctx, query, arg).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&externalID,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account with %s %s not found: %w", by, arg, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account by %s: %w", by, err)
	}

	if externalID.Valid {
		account.ExternalSubjectID = &externalID.String
	}

	return account, nil
}

// LinkExternalSubject attaches an external identity to an account. Re-linking the same subject is a no-op.
func (r *accountRepository) LinkExternalSubject(ctx context.Context, id, externalSubjectID string) error {
	query := `UPDATE accounts SET external_subject_id = $2 WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, id, externalSubjectID)
	if err != nil {
		if _, ok := uniqueViolationConstraint(err); ok {
			return fmt.Errorf("failed to link external subject: %w", ErrDuplicateExternalID)
		}
		return fmt.Errorf("failed to link external subject: %w", err)
	}

	return expectAffected(result, "account", id)
}

// UpdatePasswordHash replaces the stored password hash
func (r *accountRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE accounts SET password_hash = $2 WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}

	return expectAffected(result, "account", id)
}

// Delete removes the profile and the account in one transaction
func (r *accountRepository) Delete(ctx context.Context, id string) error {
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete profile: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}

		return expectAffected(result, "account", id)
	})
}

func expectAffected(result sql.Result, entity, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s with id %s not found: %w", entity, id, ErrNotFound)
	}

	return nil
}
