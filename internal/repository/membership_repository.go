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

// membershipRepository implements MembershipRepository interface
type membershipRepository struct {
	db *database.Postgres
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *database.Postgres) MembershipRepository {
	return &membershipRepository{db: db}
}

// Get retrieves the membership of a user in an organization
func (r *membershipRepository) Get(ctx context.Context, orgID, userID string) (*domain.OrganizationMembership, error) {
	query := `
		SELECT org_id, user_id, role, created_at
		FROM organization_members
		WHERE org_id = $1 AND user_id = $2
	`

	m := &domain.OrganizationMembership{}
	var role string

	err := r.db.DB.QueryRowContext(ctx, query, orgID, userID).Scan(&m.OrgID, &m.UserID, &role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("membership of %s in %s not found: %w", userID, orgID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	m.Role = domain.OrgRole(role)

	return m, nil
}

// ListByOrg retrieves all members of an organization, oldest first
func (r *membershipRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.OrganizationMembership, error) {
	query := `
		SELECT org_id, user_id, role, created_at
		FROM organization_members
		WHERE org_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var members []*domain.OrganizationMembership
	for rows.Next() {
		m := &domain.OrganizationMembership{}
		var role string
		if err := rows.Scan(&m.OrgID, &m.UserID, &role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		m.Role = domain.OrgRole(role)
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	return members, nil
}

// Upsert creates a membership or updates the role of an existing one
func (r *membershipRepository) Upsert(ctx context.Context, m *domain.OrganizationMembership) error {
	query := `
		INSERT INTO organization_members (org_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (org_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	if _, err := r.db.DB.ExecContext(ctx, query, m.OrgID, m.UserID, m.Role, m.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert membership: %w", err)
	}

	return nil
}

// UpdateRole changes the role of an existing member
func (r *membershipRepository) UpdateRole(ctx context.Context, orgID, userID string, role domain.OrgRole) error {
	query := `UPDATE organization_members SET role = $3 WHERE org_id = $1 AND user_id = $2`

	result, err := r.db.DB.ExecContext(ctx, query, orgID, userID, role)
	if err != nil {
		return fmt.Errorf("failed to update membership role: %w", err)
	}

	return expectAffected(result, "membership", orgID+"/"+userID)
}

// Delete removes a member from an organization
func (r *membershipRepository) Delete(ctx context.Context, orgID, userID string) error {
	query := `DELETE FROM organization_members WHERE org_id = $1 AND user_id = $2`

	result, err := r.db.DB.ExecContext(ctx, query, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}

	return expectAffected(result, "membership", orgID+"/"+userID)
}
