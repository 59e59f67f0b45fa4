package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/pkg/database"
)

// invitationRepository implements InvitationRepository interface
type invitationRepository struct {
	db *database.Postgres
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *database.Postgres) InvitationRepository {
	return &invitationRepository{db: db}
}

// GetByTokenHash retrieves an invitation by the SHA-256 hash of its token
func (r *invitationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Invitation, error) {
	query := `
		SELECT id, token_hash, org_id, email, role, expires_at, accepted_at, created_at
		FROM invitations
		WHERE token_hash = $1
	`

	inv := &domain.Invitation{}
	var role string
	var acceptedAt sql.NullTime

	err := r.db.DB.QueryRowContext(ctx, query, tokenHash).Scan(
		&inv.ID,
		&inv.TokenHash,
		&inv.OrgID,
		&inv.Email,
		&role,
		&inv.ExpiresAt,
		&acceptedAt,
		&inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invitation not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	inv.Role = domain.OrgRole(role)
	if acceptedAt.Valid {
		inv.AcceptedAt = &acceptedAt.Time
	}

	return inv, nil
}

// MarkAccepted consumes an invitation. A second acceptance reports ErrNotFound.
func (r *invitationRepository) MarkAccepted(ctx context.Context, id string, acceptedAt time.Time) error {
	query := `UPDATE invitations SET accepted_at = $2 WHERE id = $1 AND accepted_at IS NULL`

	result, err := r.db.DB.ExecContext(ctx, query, id, acceptedAt)
	if err != nil {
		return fmt.Errorf("failed to accept invitation: %w", err)
	}

	return expectAffected(result, "pending invitation", id)
}
