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

// integrationTokenRepository implements IntegrationTokenRepository interface
type integrationTokenRepository struct {
	db *database.Postgres
}

// NewIntegrationTokenRepository creates a new RingCentral token repository
func NewIntegrationTokenRepository(db *database.Postgres) IntegrationTokenRepository {
	return &integrationTokenRepository{db: db}
}

// Get retrieves the stored tokens of a user
func (r *integrationTokenRepository) Get(ctx context.Context, userID string) (*domain.IntegrationToken, error) {
	query := `
		SELECT user_id, access_token, refresh_token, expires_at, updated_at
		FROM ringcentral_tokens
		WHERE user_id = $1
	`

	t := &domain.IntegrationToken{}
	err := r.db.DB.QueryRowContext(ctx, query, userID).Scan(
		&t.UserID,
		&t.AccessToken,
		&t.RefreshToken,
		&t.ExpiresAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ringcentral token for user %s not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ringcentral token: %w", err)
	}

	return t, nil
}

// Upsert stores the tokens of a user, replacing any previous row
func (r *integrationTokenRepository) Upsert(ctx context.Context, t *domain.IntegrationToken) error {
	query := `
		INSERT INTO ringcentral_tokens (user_id, access_token, refresh_token, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token  = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at    = EXCLUDED.expires_at,
			updated_at    = EXCLUDED.updated_at
	`

	t.UpdatedAt = time.Now()

	_, err := r.db.DB.ExecContext(ctx, query, t.UserID, t.AccessToken, t.RefreshToken, t.ExpiresAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert ringcentral token: %w", err)
	}

	return nil
}

// Delete removes the stored tokens of a user
func (r *integrationTokenRepository) Delete(ctx context.Context, userID string) error {
	result, err := r.db.DB.ExecContext(ctx, `DELETE FROM ringcentral_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete ringcentral token: %w", err)
	}

	return expectAffected(result, "ringcentral token", userID)
}
