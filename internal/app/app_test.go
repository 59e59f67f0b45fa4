package app_test

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/prperemyshlev/identity-gateway/internal/app"
	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/internal/dto"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	password   = "Password123"
	orgID      = "3d5a7c9e-1b2f-4a6c-8e0d-2f4b6d8a0c1e"
	otherOrgID = "9e8d7c6b-5a4f-4e3d-9c2b-1a0f9e8d7c6b"
)

func (s *Suite) signup(email string) dto.SignupResponse {
	var resp dto.SignupResponse
	r := s.do(http.MethodPost, "/auth/signup", "", dto.SignupRequest{
		Email: email, Password: password, ConfirmPassword: password,
	}, &resp)
	s.Require().Equal(http.StatusCreated, r.StatusCode)
	return resp
}

func (s *Suite) login(email string) dto.AuthResponse {
	var resp dto.AuthResponse
	r := s.do(http.MethodPost, "/auth/login", "", dto.LoginRequest{Email: email, Password: password}, &resp)
	s.Require().Equal(http.StatusOK, r.StatusCode)
	return resp
}

func (s *Suite) promote(userID string, role domain.PlatformRole) {
	profile, err := s.Store.Repositories().Profile.GetByID(s.T().Context(), userID)
	s.Require().NoError(err)
	profile.PlatformRole = role
	s.Store.PutProfile(*profile)
}

func (s *Suite) TestHealthEndpoint() {
	resp := s.do(http.MethodGet, "/health", "", nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestSignup_ShortPassword() {
	var errResp dto.ErrorResponse
	resp := s.do(http.MethodPost, "/auth/signup", "", dto.SignupRequest{
		Email: "short@example.com", Password: "abc", ConfirmPassword: "abc",
	}, &errResp)

	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("Password must be at least 8 characters", errResp.Message)
	s.Zero(s.Store.AccountCount())
}

func (s *Suite) TestSignup_MissingFields() {
	resp := s.do(http.MethodPost, "/auth/signup", "", map[string]string{"email": "a@example.com"}, nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestSignupThenLogin() {
	signup := s.signup("test@example.com")
	s.Equal("test@example.com", signup.User.Email)
	s.NotEmpty(signup.Message)

	auth := s.login("test@example.com")
	s.Equal("Bearer", auth.TokenType)
	s.NotEmpty(auth.Token)
	s.Equal(signup.User.ID, auth.User.ID)

	var me dto.UserResponse
	resp := s.do(http.MethodGet, "/auth/me", auth.Token, nil, &me)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(signup.User.ID, me.ID)
	s.Equal("rep", me.PlatformRole)
}

func (s *Suite) TestLogin_WrongPassword() {
	s.signup("wrong@example.com")

	var errResp dto.ErrorResponse
	resp := s.do(http.MethodPost, "/auth/login", "", dto.LoginRequest{Email: "wrong@example.com", Password: "nope-nope"}, &errResp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("Invalid email or password", errResp.Message)

	resp = s.do(http.MethodPost, "/auth/login", "", dto.LoginRequest{Email: "nobody@example.com", Password: password}, &errResp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("Invalid email or password", errResp.Message)
}

func (s *Suite) TestConcurrentSignup() {
	var wg sync.WaitGroup
	statuses := make([]int, 2)
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i] = s.do(http.MethodPost, "/auth/signup", "", dto.SignupRequest{
				Email: "race@example.com", Password: password, ConfirmPassword: password,
			}, nil).StatusCode
		}(i)
	}
	wg.Wait()

	s.ElementsMatch([]int{http.StatusCreated, http.StatusBadRequest}, statuses)
	s.Equal(1, s.Store.AccountCount())
}

func (s *Suite) TestMe_RequiresSession() {
	var errResp dto.ErrorResponse
	resp := s.do(http.MethodGet, "/auth/me", "", nil, &errResp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("Authorization header is required", errResp.Message)

	resp = s.do(http.MethodGet, "/auth/me", "forged.token.value", nil, &errResp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestAdmin_RequiresSuperAdmin() {
	target := s.signup("target@example.com")
	s.signup("boss@example.com")
	boss := s.login("boss@example.com")

	var errResp dto.ErrorResponse
	resp := s.do(http.MethodPatch, "/admin/users/"+target.User.ID+"/platform-role", boss.Token,
		dto.UpdatePlatformRoleRequest{PlatformRole: "admin"}, &errResp)
	s.Equal(http.StatusForbidden, resp.StatusCode)
	details, ok := errResp.Details.(map[string]interface{})
	s.Require().True(ok)
	s.Equal("rep", details["role"])

	s.promote(boss.User.ID, domain.PlatformRoleSuperAdmin)

	var user dto.UserResponse
	resp = s.do(http.MethodPatch, "/admin/users/"+target.User.ID+"/platform-role", boss.Token,
		dto.UpdatePlatformRoleRequest{PlatformRole: "admin"}, &user)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("admin", user.PlatformRole)

	resp = s.do(http.MethodDelete, "/admin/users/"+boss.User.ID, boss.Token, nil, &errResp)
	s.Equal(http.StatusForbidden, resp.StatusCode)
	s.Equal("You cannot delete your own account", errResp.Message)

	resp = s.do(http.MethodDelete, "/admin/users/"+target.User.ID, boss.Token, nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(1, s.Store.AccountCount())
}

func (s *Suite) TestOrganizationMembers_Guards() {
	ctx := s.T().Context()
	memberships := s.Store.Repositories().Membership

	s.signup("admin@example.com")
	s.signup("viewer@example.com")
	s.signup("outsider@example.com")
	admin := s.login("admin@example.com")
	viewer := s.login("viewer@example.com")
	outsider := s.login("outsider@example.com")

	s.Require().NoError(memberships.Upsert(ctx, &domain.OrganizationMembership{OrgID: orgID, UserID: admin.User.ID, Role: domain.OrgRoleAdmin}))
	s.Require().NoError(memberships.Upsert(ctx, &domain.OrganizationMembership{OrgID: orgID, UserID: viewer.User.ID, Role: domain.OrgRoleViewer}))

	var errResp dto.ErrorResponse
	resp := s.do(http.MethodGet, "/organizations/"+orgID+"/members", outsider.Token, nil, &errResp)
	s.Equal(http.StatusForbidden, resp.StatusCode)
	s.Equal("Not a member of this organization", errResp.Message)

	var members []dto.MemberResponse
	resp = s.do(http.MethodGet, "/organizations/"+orgID+"/members", viewer.Token, nil, &members)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Len(members, 2)

	resp = s.do(http.MethodPatch, "/organizations/"+orgID+"/members/"+admin.User.ID, viewer.Token,
		dto.UpdateMemberRoleRequest{Role: "viewer"}, &errResp)
	s.Equal(http.StatusForbidden, resp.StatusCode)
	s.Equal("Requires one of: admin", errResp.Message)

	var member dto.MemberResponse
	resp = s.do(http.MethodPatch, "/organizations/"+orgID+"/members/"+viewer.User.ID, admin.Token,
		dto.UpdateMemberRoleRequest{Role: "member"}, &member)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("member", member.Role)

	resp = s.do(http.MethodDelete, "/organizations/"+orgID+"/members/"+admin.User.ID, outsider.Token, nil, nil)
	s.Equal(http.StatusForbidden, resp.StatusCode)

	resp = s.do(http.MethodDelete, "/organizations/"+orgID+"/members/"+viewer.User.ID, viewer.Token, nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode, "members may leave on their own")
}

func (s *Suite) TestSuperAdminRemovesMemberWithoutMembership() {
	ctx := s.T().Context()
	s.signup("member@example.com")
	s.signup("root@example.com")
	member := s.login("member@example.com")
	root := s.login("root@example.com")
	s.promote(root.User.ID, domain.PlatformRoleSuperAdmin)

	s.Require().NoError(s.Store.Repositories().Membership.Upsert(ctx, &domain.OrganizationMembership{
		OrgID: otherOrgID, UserID: member.User.ID, Role: domain.OrgRoleMember,
	}))

	resp := s.do(http.MethodDelete, "/organizations/"+otherOrgID+"/members/"+member.User.ID, root.Token, nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestRingCentral_NotConfigured() {
	s.signup("rc@example.com")
	auth := s.login("rc@example.com")

	var errResp dto.ErrorResponse
	resp := s.do(http.MethodPost, "/auth/ringcentral", auth.Token, nil, &errResp)
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	details, ok := errResp.Details.(map[string]interface{})
	s.Require().True(ok)
	s.ElementsMatch([]interface{}{"RINGCENTRAL_CLIENT_ID", "RINGCENTRAL_CLIENT_SECRET", "RINGCENTRAL_REDIRECT_URI"}, details["missing"])

	var status dto.RingCentralStatusResponse
	resp = s.do(http.MethodGet, "/auth/ringcentral/status", auth.Token, nil, &status)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.False(status.Connected)

	resp = s.do(http.MethodDelete, "/auth/ringcentral", auth.Token, nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestCallbacksRedirectWithErrorCodes() {
	tests := []struct {
		path     string
		location string
	}{
		{"/auth/google/callback?state=x", "http://localhost:3000/auth/callback?error=missing_code"},
		{"/auth/google/callback?code=x&state=y", "http://localhost:3000/auth/callback?error=not_configured"},
		{"/auth/google/callback?error=access_denied", "http://localhost:3000/auth/callback?error=google_auth_failed"},
		{"/auth/ringcentral/callback?code=x", "http://localhost:3000/settings?error=missing_state"},
	}

	for _, tt := range tests {
		resp := s.do(http.MethodGet, tt.path, "", nil, nil)
		s.Equal(http.StatusFound, resp.StatusCode, tt.path)
		s.Equal(tt.location, resp.Header.Get("Location"), tt.path)
	}
}

func (s *Suite) TestDevelopmentVerifyEmail() {
	var errResp dto.ErrorResponse
	resp := s.do(http.MethodPost, "/auth/verify-email", "", dto.VerifyEmailRequest{Email: "x@example.com", Code: "00000000"}, &errResp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("Invalid or expired code, please request a new one", errResp.Message)

	resp = s.do(http.MethodPost, "/auth/forgot-password", "", dto.ForgotPasswordRequest{Email: "x@example.com"}, &errResp)
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
}

func (s *Suite) TestRateLimitHeaders() {
	resp := s.do(http.MethodPost, "/auth/login", "", dto.LoginRequest{Email: "a@example.com", Password: password}, nil)
	s.Equal("100", resp.Header.Get("X-RateLimit-Limit"))
	s.Equal("99", resp.Header.Get("X-RateLimit-Remaining"))
}

func (s *Suite) TestMetricsEndpoint() {
	s.signup("metrics@example.com")
	s.login("metrics@example.com")

	resp, err := http.Get(s.BaseURL + "/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(string(body), "auth_logins")
}

func (s *Suite) TestAcceptInvite_UnknownToken() {
	var errResp dto.ErrorResponse
	resp := s.do(http.MethodPost, "/auth/accept-invite", "", dto.AcceptInviteRequest{Token: url.QueryEscape("nope")}, &errResp)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *Suite) TestMalformedIDs() {
	s.signup("root@example.com")
	root := s.login("root@example.com")
	s.promote(root.User.ID, domain.PlatformRoleSuperAdmin)

	var errResp dto.ErrorResponse
	resp := s.do(http.MethodGet, "/organizations/not-a-uuid/members", root.Token, nil, &errResp)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("orgId must be a valid UUID", errResp.Message)

	resp = s.do(http.MethodDelete, "/admin/users/abc", root.Token, nil, &errResp)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Equal("User not found", errResp.Message)

	resp = s.do(http.MethodDelete, "/organizations/"+orgID+"/members/abc", root.Token, nil, &errResp)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Equal("Member not found", errResp.Message)
}

func (s *Suite) TestStartupWarnsWhenSupabaseTokensCannotBeVerified() {
	core, logs := observer.New(zap.WarnLevel)
	infra, err := newTestInfrastructure(s.Redis.Addr())
	s.Require().NoError(err)
	infra.logger = zap.New(core)
	defer func() { _ = infra.Shutdown(context.Background()) }()

	_, err = app.NewApp(context.Background(), infra, createTestConfig(), app.WithRepositories(s.Store.Repositories()))
	s.Require().NoError(err)
	s.Equal(1, logs.FilterMessageSnippet("SUPABASE_JWT_SECRET").Len())

	logs.TakeAll()
	cfg := createTestConfig()
	cfg.Supabase.JWTSecret = "supabase-shared-secret"
	_, err = app.NewApp(context.Background(), infra, cfg, app.WithRepositories(s.Store.Repositories()))
	s.Require().NoError(err)
	s.Zero(logs.FilterMessageSnippet("SUPABASE_JWT_SECRET").Len())
}
