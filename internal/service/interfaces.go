package service

import (
	"context"

	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/internal/dto"
)

// AuthService defines the sign-in flows exposed over HTTP
type AuthService interface {
	Signup(ctx context.Context, req *dto.SignupRequest) (*dto.SignupResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
	ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error
	VerifyEmail(ctx context.Context, req *dto.VerifyEmailRequest) (*dto.AuthResponse, error)
	ResendVerification(ctx context.Context, req *dto.ResendVerificationRequest) error
	// AcceptInvite reports true when a new account was created
	AcceptInvite(ctx context.Context, req *dto.AcceptInviteRequest) (*dto.AuthResponse, bool, error)
	SupabaseSession(ctx context.Context, req *dto.SupabaseSessionRequest) (*dto.AuthResponse, error)
	SupabaseUpdatePassword(ctx context.Context, req *dto.SupabaseUpdatePasswordRequest) (*dto.AuthResponse, error)
	GoogleAuthURL() (string, error)
	// GoogleCallback returns a *RedirectError on failure
	GoogleCallback(ctx context.Context, code, state string) (*dto.AuthResponse, error)
	GetMe(ctx context.Context, userID string) (*dto.UserResponse, error)
	ValidateSession(token string) (*domain.SessionClaims, error)
}

// AdminService defines user and membership management operations
type AdminService interface {
	UpdatePlatformRole(ctx context.Context, targetID, role string) (*dto.UserResponse, error)
	DeleteUser(ctx context.Context, actorID, targetID string) error
	ListMembers(ctx context.Context, orgID string) ([]dto.MemberResponse, error)
	UpdateMemberRole(ctx context.Context, orgID, userID, role string) (*dto.MemberResponse, error)
	RemoveMember(ctx context.Context, actorID string, actorRole domain.PlatformRole, orgID, targetID string) error
}

// IntegrationBroker defines the RingCentral connect flow exposed over HTTP
type IntegrationBroker interface {
	AuthorizationURL(userID string) (string, error)
	// CompleteAuthorization returns a *RedirectError on failure
	CompleteAuthorization(ctx context.Context, code, state string) (string, error)
	IsConnected(ctx context.Context, userID string) bool
	Disconnect(ctx context.Context, userID string) error
}
