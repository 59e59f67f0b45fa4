package service

import (
	"context"

	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/internal/dto"
)

// issueAuthResponse mints a session for an active profile and records the sign-in
func (s *authService) issueAuthResponse(ctx context.Context, method string, profile *domain.Profile) (*dto.AuthResponse, error) {
	if !profile.Active {
		err := NewForbiddenError("Account is deactivated", nil)
		s.metrics.RecordLogin(ctx, method, err)
		return nil, err
	}

	token, err := s.tokenMgr.IssueSession(profile.ID, profile.Email, nil)
	if err != nil {
		s.metrics.RecordLogin(ctx, method, err)
		return nil, NewInternalError(err)
	}

	s.metrics.RecordLogin(ctx, method, nil)

	return &dto.AuthResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int(s.tokenMgr.SessionExpiry().Seconds()),
		User:      dto.NewUserResponse(profile),
	}, nil
}
