package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/identity-gateway/internal/config"
	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/internal/dto"
	"github.com/prperemyshlev/identity-gateway/internal/repository"
	"github.com/prperemyshlev/identity-gateway/internal/utils"
	"go.uber.org/zap"
)

// AuthDeps groups the collaborators of the auth service
type AuthDeps struct {
	Repos       *repository.Repositories
	Credentials *CredentialStore
	Linker      *IdentityLinker
	Verifier    *TokenVerifier
	TokenMgr    *utils.TokenManager
	Nonces      NonceStore
	Google      *GoogleProvider
	Supabase    *SupabaseClient
	// DevCodes is nil unless development verification codes are enabled
	DevCodes          VerificationCodeStore
	SupabaseConfig    config.SupabaseConfig
	PasswordMinLength int
	Metrics           *Metrics
	Logger            *zap.Logger
}

// authService implements AuthService interface
type authService struct {
	repos             *repository.Repositories
	credentials       *CredentialStore
	linker            *IdentityLinker
	verifier          *TokenVerifier
	tokenMgr          *utils.TokenManager
	nonces            NonceStore
	google            *GoogleProvider
	supabase          *SupabaseClient
	devCodes          VerificationCodeStore
	supabaseCfg       config.SupabaseConfig
	passwordMinLength int
	metrics           *Metrics
	now               func() time.Time
	logger            *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(deps AuthDeps) AuthService {
	return &authService{
		repos:             deps.Repos,
		credentials:       deps.Credentials,
		linker:            deps.Linker,
		verifier:          deps.Verifier,
		tokenMgr:          deps.TokenMgr,
		nonces:            deps.Nonces,
		google:            deps.Google,
		supabase:          deps.Supabase,
		devCodes:          deps.DevCodes,
		supabaseCfg:       deps.SupabaseConfig,
		passwordMinLength: deps.PasswordMinLength,
		metrics:           deps.Metrics,
		now:               time.Now,
		logger:            deps.Logger,
	}
}

// Signup creates a local account and starts email verification
func (s *authService) Signup(ctx context.Context, req *dto.SignupRequest) (*dto.SignupResponse, error) {
	email := utils.NormalizeEmail(req.Email)
	if !utils.ValidateEmail(email) {
		return nil, NewValidationError("Invalid email format")
	}
	if err := s.validateNewPassword(req.Password, req.ConfirmPassword); err != nil {
		return nil, err
	}

	account, err := s.credentials.CreateLocalAccount(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}

	provider := domain.ProviderLocal
	profile, err := s.repos.Profile.Upsert(ctx, domain.ProfileUpdate{
		ID:       account.ID,
		Email:    account.Email,
		FullName: req.FullName,
		Provider: &provider,
	})
	if err != nil {
		return nil, NewInternalError(err)
	}

	s.sendVerification(ctx, account.Email)

	s.logger.Info("Account created", zap.String("user_id", account.ID))

	return &dto.SignupResponse{
		Message: "Account created. Check your email for a verification code.",
		User:    dto.NewUserResponse(profile),
	}, nil
}

// Login authenticates with email and password
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	account, err := s.credentials.AuthenticateLocal(ctx, req.Email, req.Password)
	if err != nil {
		s.metrics.RecordLogin(ctx, MethodPassword, err)
		return nil, err
	}

	profile, err := s.repos.Profile.Upsert(ctx, domain.ProfileUpdate{
		ID:    account.ID,
		Email: account.Email,
	})
	if err != nil {
		return nil, NewInternalError(err)
	}

	return s.issueAuthResponse(ctx, MethodPassword, profile)
}

// ForgotPassword asks Supabase to email a reset link. The answer never reveals
// whether the email is registered.
func (s *authService) ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error {
	email := utils.NormalizeEmail(req.Email)
	if !utils.ValidateEmail(email) {
		return NewValidationError("Invalid email format")
	}

	if missing := s.supabaseCfg.Missing(); len(missing) > 0 {
		return NewNotConfiguredError(missing)
	}

	if err := s.supabase.Recover(ctx, email); err != nil {
		s.logger.Warn("Password recovery request failed", zap.Error(err))
	}
	return nil
}

// VerifyEmail redeems a one-time code and signs the user in
func (s *authService) VerifyEmail(ctx context.Context, req *dto.VerifyEmailRequest) (*dto.AuthResponse, error) {
	email := utils.NormalizeEmail(req.Email)

	if len(s.supabaseCfg.Missing()) == 0 {
		accessToken, err := s.supabase.VerifyOTP(ctx, email, req.Code)
		if err != nil {
			s.metrics.RecordLogin(ctx, MethodVerifyEmail, err)
			var gtErr *GoTrueError
			if errors.As(err, &gtErr) && gtErr.clientError() {
				return nil, NewTokenExpiredError()
			}
			return nil, NewInternalError(err)
		}
		return s.exchangeSupabaseToken(ctx, MethodVerifyEmail, accessToken)
	}

	if s.devCodes != nil {
		if !s.devCodes.Redeem(email, req.Code) {
			err := &Error{Kind: KindTokenExpired, Message: "Invalid or expired code, please request a new one"}
			s.metrics.RecordLogin(ctx, MethodVerifyEmail, err)
			return nil, err
		}

		account, err := s.repos.Account.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, NewNotFoundError("User not found")
			}
			return nil, NewInternalError(err)
		}

		profile, err := s.repos.Profile.Upsert(ctx, domain.ProfileUpdate{ID: account.ID, Email: account.Email})
		if err != nil {
			return nil, NewInternalError(err)
		}
		return s.issueAuthResponse(ctx, MethodVerifyEmail, profile)
	}

	return nil, NewNotConfiguredError(s.supabaseCfg.Missing())
}

// ResendVerification sends a new one-time code
func (s *authService) ResendVerification(ctx context.Context, req *dto.ResendVerificationRequest) error {
	email := utils.NormalizeEmail(req.Email)
	if !utils.ValidateEmail(email) {
		return NewValidationError("Invalid email format")
	}

	if len(s.supabaseCfg.Missing()) == 0 {
		if err := s.supabase.SendOTP(ctx, email); err != nil {
			var gtErr *GoTrueError
			if errors.As(err, &gtErr) && gtErr.clientError() {
				return NewValidationError(gtErr.Message)
			}
			return NewInternalError(err)
		}
		return nil
	}

	if s.devCodes != nil {
		return s.issueDevCode(email)
	}

	return NewNotConfiguredError(s.supabaseCfg.Missing())
}

// AcceptInvite redeems an invitation token, creating or reactivating the account
func (s *authService) AcceptInvite(ctx context.Context, req *dto.AcceptInviteRequest) (*dto.AuthResponse, bool, error) {
	inv, err := s.repos.Invitation.GetByTokenHash(ctx, utils.HashToken(req.Token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, NewNotFoundError("Invitation not found")
		}
		return nil, false, NewInternalError(err)
	}
	if inv.AcceptedAt != nil {
		return nil, false, NewValidationError("Invitation has already been accepted")
	}
	if inv.IsExpired(s.now()) {
		return nil, false, NewValidationError("Invitation has expired")
	}
	if !inv.Role.Valid() {
		return nil, false, NewInternalError(fmt.Errorf("invitation %s has unknown role %q", inv.ID, inv.Role))
	}

	email := utils.NormalizeEmail(inv.Email)
	created := false

	account, err := s.repos.Account.GetByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		if err := s.validateNewPassword(req.Password, req.Password); err != nil {
			return nil, false, err
		}
		account, err = s.credentials.CreateLocalAccount(ctx, email, req.Password)
		if err != nil {
			if KindOf(err) == KindDuplicateAccount {
				return nil, false, NewConflictError("Account was created concurrently, sign in instead")
			}
			return nil, false, err
		}
		created = true
	default:
		return nil, false, NewInternalError(err)
	}

	update := domain.ProfileUpdate{ID: account.ID, Email: account.Email, FullName: req.FullName}
	if created {
		provider := domain.ProviderLocal
		update.Provider = &provider
	}
	profile, err := s.repos.Profile.Upsert(ctx, update)
	if err != nil {
		return nil, false, NewInternalError(err)
	}

	if !profile.Active {
		if err := s.repos.Profile.SetActive(ctx, account.ID, true); err != nil {
			return nil, false, NewInternalError(err)
		}
		profile.Active = true
	}

	// the invitation is used up only once the membership exists
	err = s.repos.Membership.Upsert(ctx, &domain.OrganizationMembership{
		OrgID:  inv.OrgID,
		UserID: account.ID,
		Role:   inv.Role,
	})
	if err != nil {
		return nil, false, NewInternalError(err)
	}

	if err := s.repos.Invitation.MarkAccepted(ctx, inv.ID, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, NewConflictError("Invitation has already been accepted")
		}
		return nil, false, NewInternalError(err)
	}

	s.logger.Info("Invitation accepted",
		zap.String("user_id", account.ID),
		zap.String("org_id", inv.OrgID),
		zap.Bool("new_account", created),
	)

	resp, err := s.issueAuthResponse(ctx, MethodInvite, profile)
	if err != nil {
		return nil, false, err
	}
	return resp, created, nil
}

// SupabaseSession exchanges a Supabase access token for a local session
func (s *authService) SupabaseSession(ctx context.Context, req *dto.SupabaseSessionRequest) (*dto.AuthResponse, error) {
	return s.exchangeSupabaseToken(ctx, MethodSupabase, req.AccessToken)
}

// SupabaseUpdatePassword finishes a reset: the new password is set at Supabase
// and stored locally so password login keeps working.
func (s *authService) SupabaseUpdatePassword(ctx context.Context, req *dto.SupabaseUpdatePasswordRequest) (*dto.AuthResponse, error) {
	confirm := req.ConfirmPassword
	if confirm == "" {
		confirm = req.Password
	}
	if err := s.validateNewPassword(req.Password, confirm); err != nil {
		return nil, err
	}

	claims, err := s.verifier.Verify(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}

	if missing := s.supabaseCfg.Missing(); len(missing) > 0 {
		return nil, NewNotConfiguredError(missing)
	}
	if err := s.supabase.UpdatePassword(ctx, req.AccessToken, req.Password); err != nil {
		var gtErr *GoTrueError
		if errors.As(err, &gtErr) && gtErr.clientError() {
			return nil, NewValidationError(gtErr.Message)
		}
		return nil, NewInternalError(err)
	}

	account, profile, err := s.linker.Resolve(ctx, domain.ExternalIdentity{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Provider:  domain.ProviderSupabase,
	})
	if err != nil {
		return nil, err
	}

	if err := s.credentials.SetPassword(ctx, account.ID, req.Password); err != nil {
		return nil, err
	}

	return s.issueAuthResponse(ctx, MethodSupabase, profile)
}

// GoogleAuthURL returns the Google consent URL for a sign-in
func (s *authService) GoogleAuthURL() (string, error) {
	if missing := s.google.Missing(); len(missing) > 0 {
		return "", NewNotConfiguredError(missing)
	}

	state, err := s.tokenMgr.IssueState("", domain.StatePurposeGoogle)
	if err != nil {
		return "", NewInternalError(err)
	}
	return s.google.AuthCodeURL(state), nil
}

// GoogleCallback completes a Google sign-in
func (s *authService) GoogleCallback(ctx context.Context, code, state string) (*dto.AuthResponse, error) {
	if code == "" {
		return nil, redirectError(RedirectMissingCode, nil)
	}
	if state == "" {
		return nil, redirectError(RedirectMissingState, nil)
	}
	if len(s.google.Missing()) > 0 {
		return nil, redirectError(RedirectNotConfigured, nil)
	}

	claims, err := s.tokenMgr.VerifyState(state, domain.StatePurposeGoogle)
	if err != nil {
		return nil, redirectError(RedirectInvalidState, err)
	}
	first, err := s.nonces.Consume(ctx, claims.Nonce, claims.ExpiresAt.Sub(s.now()))
	if err != nil {
		return nil, redirectError(RedirectGoogleAuthFailed, err)
	}
	if !first {
		return nil, redirectError(RedirectInvalidState, errors.New("state already used"))
	}

	identity, err := s.google.Exchange(ctx, code)
	if err != nil {
		s.metrics.RecordLogin(ctx, MethodGoogle, err)
		return nil, redirectError(RedirectGoogleAuthFailed, err)
	}

	if err := s.rejectDeactivated(ctx, *identity); err != nil {
		s.metrics.RecordLogin(ctx, MethodGoogle, err)
		if KindOf(err) == KindForbidden {
			return nil, redirectError(RedirectAccountDeactivated, err)
		}
		return nil, redirectError(RedirectGoogleAuthFailed, err)
	}

	_, profile, err := s.linker.ResolveGoogle(ctx, *identity)
	if err != nil {
		s.metrics.RecordLogin(ctx, MethodGoogle, err)
		return nil, redirectError(RedirectGoogleAuthFailed, err)
	}

	resp, err := s.issueAuthResponse(ctx, MethodGoogle, profile)
	if err != nil {
		if KindOf(err) == KindForbidden {
			return nil, redirectError(RedirectAccountDeactivated, err)
		}
		return nil, redirectError(RedirectGoogleAuthFailed, err)
	}
	return resp, nil
}

// rejectDeactivated fails with Forbidden when identity maps to a deactivated
// account. It runs before linking so a rejected sign-in leaves the account untouched.
func (s *authService) rejectDeactivated(ctx context.Context, identity domain.ExternalIdentity) error {
	account, err := s.linker.Find(ctx, identity)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return NewInternalError(err)
	}

	profile, err := s.repos.Profile.GetByID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return NewInternalError(err)
	}

	if !profile.Active {
		return NewForbiddenError("Account is deactivated", nil)
	}
	return nil
}

// GetMe returns the profile of the signed-in user
func (s *authService) GetMe(ctx context.Context, userID string) (*dto.UserResponse, error) {
	profile, err := s.repos.Profile.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("User not found")
		}
		return nil, NewInternalError(err)
	}

	resp := dto.NewUserResponse(profile)
	return &resp, nil
}

// ValidateSession verifies a bearer session token
func (s *authService) ValidateSession(token string) (*domain.SessionClaims, error) {
	claims, err := s.tokenMgr.VerifySession(token)
	if err != nil {
		if errors.Is(err, utils.ErrTokenExpired) {
			return nil, NewUnauthorizedError("Session has expired")
		}
		return nil, NewUnauthorizedError("Invalid or expired token")
	}
	return claims, nil
}

func (s *authService) exchangeSupabaseToken(ctx context.Context, method, accessToken string) (*dto.AuthResponse, error) {
	claims, err := s.verifier.Verify(ctx, accessToken)
	if err != nil {
		s.metrics.RecordLogin(ctx, method, err)
		return nil, err
	}

	_, profile, err := s.linker.Resolve(ctx, domain.ExternalIdentity{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Provider:  domain.ProviderSupabase,
	})
	if err != nil {
		s.metrics.RecordLogin(ctx, method, err)
		return nil, err
	}

	return s.issueAuthResponse(ctx, method, profile)
}

func (s *authService) validateNewPassword(password, confirm string) error {
	if !utils.ValidatePassword(password, s.passwordMinLength) {
		return NewValidationError(fmt.Sprintf("Password must be at least %d characters", s.passwordMinLength))
	}
	if password != confirm {
		return NewValidationError("Passwords do not match")
	}
	return nil
}

// sendVerification starts email verification. Failures are logged, never returned.
func (s *authService) sendVerification(ctx context.Context, email string) {
	if len(s.supabaseCfg.Missing()) == 0 {
		if err := s.supabase.SendOTP(ctx, email); err != nil {
			s.logger.Warn("Failed to send verification email", zap.Error(err))
		}
		return
	}

	if s.devCodes != nil {
		if err := s.issueDevCode(email); err != nil {
			s.logger.Warn("Failed to issue development verification code", zap.Error(err))
		}
	}
}

func (s *authService) issueDevCode(email string) error {
	code, err := s.devCodes.Issue(email)
	if err != nil {
		return NewInternalError(err)
	}
	s.logger.Info("Development verification code issued",
		zap.String("email", email),
		zap.String("code", code),
	)
	return nil
}
