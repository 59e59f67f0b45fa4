package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/pkg/database"
)

// profileRepository implements ProfileRepository interface
type profileRepository struct {
	db *database.Postgres
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *database.Postgres) ProfileRepository {
	return &profileRepository{db: db}
}

const profileColumns = `id, email, full_name, avatar_url, provider, platform_role, organization_id, timezone, currency, active`

// Upsert creates the profile if absent, otherwise overwrites the identity attributes.
// Role, organization, preferences and activation state are never touched here.
func (r *profileRepository) Upsert(ctx context.Context, update domain.ProfileUpdate) (*domain.Profile, error) {
	query := `
		INSERT INTO profiles (id, email, full_name, avatar_url, provider, platform_role, timezone, currency, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			email      = EXCLUDED.email,
			full_name  = COALESCE(EXCLUDED.full_name, profiles.full_name),
			avatar_url = COALESCE(EXCLUDED.avatar_url, profiles.avatar_url),
			provider   = COALESCE(EXCLUDED.provider, profiles.provider)
		RETURNING ` + profileColumns

	row := r.db.DB.QueryRowContext(ctx, query,
		update.ID,
		update.Email,
		update.FullName,
		update.AvatarURL,
		update.Provider,
		domain.PlatformRoleRep,
		domain.DefaultTimezone,
		domain.DefaultCurrency,
	)

	profile, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	return profile, nil
}

// GetByID retrieves a profile by ID
func (r *profileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	profile, err := scanProfile(r.db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile with id %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return profile, nil
}

// UpdatePlatformRole changes the global role of a user
func (r *profileRepository) UpdatePlatformRole(ctx context.Context, id string, role domain.PlatformRole) error {
	result, err := r.db.DB.ExecContext(ctx, `UPDATE profiles SET platform_role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return fmt.Errorf("failed to update platform role: %w", err)
	}

	return expectAffected(result, "profile", id)
}

// SetActive activates or deactivates a profile
func (r *profileRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.DB.ExecContext(ctx, `UPDATE profiles SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update profile state: %w", err)
	}

	return expectAffected(result, "profile", id)
}

// Delete removes a profile row. Deleting an absent row is not an error.
func (r *profileRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.DB.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

func scanProfile(row *sql.Row) (*domain.Profile, error) {
	profile := &domain.Profile{}
	var fullName, avatarURL, provider, orgID sql.NullString
	var role string

	err := row.Scan(
		&profile.ID,
		&profile.Email,
		&fullName,
		&avatarURL,
		&provider,
		&role,
		&orgID,
		&profile.Timezone,
		&profile.Currency,
		&profile.Active,
	)
	if err != nil {
		return nil, err
	}

	profile.PlatformRole = domain.PlatformRole(role)
	profile.FullName = nullStringPtr(fullName)
	profile.AvatarURL = nullStringPtr(avatarURL)
	profile.Provider = nullStringPtr(provider)
	profile.OrganizationID = nullStringPtr(orgID)

	return profile, nil
}

func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
