package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/identity-gateway/internal/config"
	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/internal/handler"
	"github.com/prperemyshlev/identity-gateway/internal/repository"
	"github.com/prperemyshlev/identity-gateway/internal/service"
	"github.com/prperemyshlev/identity-gateway/internal/utils"
	"github.com/prperemyshlev/identity-gateway/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra  Infrastructure
	config *config.Config
	router *gin.Engine
	server *http.Server
}

type options struct {
	repos      *repository.Repositories
	httpClient *http.Client
}

// Option customizes how NewApp builds its collaborators
type Option func(*options)

// WithRepositories replaces the Postgres repositories
func WithRepositories(repos *repository.Repositories) Option {
	return func(o *options) { o.repos = repos }
}

// WithHTTPClient sets the client used to call Google, Supabase and RingCentral
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

type handlers struct {
	auth    *handler.AuthHandler
	oauth   *handler.OAuthHandler
	admin   *handler.AdminHandler
	guards  *handler.Guards
	health  *HealthChecker
	limiter *service.RateLimiter
	authSvc service.AuthService
}

// NewApp wires services and routes. ctx bounds background work started by the
// services, such as key-set fetches.
func NewApp(ctx context.Context, infra Infrastructure, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := infra.Logger()
	repos := o.repos
	if repos == nil {
		repos = repository.NewRepositories(infra.Postgres())
	}

	if cfg.JWT.UsingDevelopmentSecret {
		logger.Warn("JWT_SECRET is not set, sessions are signed with the built-in development secret")
	}
	logMissing(logger, "Supabase", cfg.Supabase.Missing())
	if !cfg.Supabase.CanVerifyTokens() {
		logger.Warn("Neither SUPABASE_URL nor SUPABASE_JWT_SECRET is set, Supabase tokens will be rejected")
	}
	logMissing(logger, "Google sign-in", cfg.Google.Missing())
	logMissing(logger, "RingCentral", cfg.RingCentral.Missing())

	metrics, err := service.NewMetrics(infra.MeterProvider().Meter(serviceName))
	if err != nil {
		return nil, err
	}

	credentials, err := service.NewCredentialStore(repos.Account, cfg.Security.BCryptCost)
	if err != nil {
		return nil, err
	}

	tokenMgr := utils.NewTokenManager(cfg.JWT.Secret, cfg.JWT.SessionExpiry.Duration, cfg.JWT.StateExpiry.Duration)
	nonces := service.NewStateNonceStore(infra.Redis())
	access := service.NewAccessControl(repos.Profile, repos.Membership)

	var devCodes service.VerificationCodeStore
	if cfg.DevCodes {
		devCodes = service.NewMemoryCodeStore(service.VerificationCodeTTL)
		logger.Warn("Development verification codes are enabled")
	}

	authService := service.NewAuthService(service.AuthDeps{
		Repos:             repos,
		Credentials:       credentials,
		Linker:            service.NewIdentityLinker(repos.Account, repos.Profile, logger),
		Verifier:          service.NewTokenVerifier(ctx, cfg.Supabase, logger),
		TokenMgr:          tokenMgr,
		Nonces:            nonces,
		Google:            service.NewGoogleProvider(cfg.Google, o.httpClient),
		Supabase:          service.NewSupabaseClient(cfg.Supabase, o.httpClient),
		DevCodes:          devCodes,
		SupabaseConfig:    cfg.Supabase,
		PasswordMinLength: cfg.Security.PasswordMinLength,
		Metrics:           metrics,
		Logger:            logger,
	})

	broker := service.NewRingCentralBroker(
		cfg.RingCentral,
		repos.IntegrationToken,
		tokenMgr,
		nonces,
		cfg.JWT.StateExpiry.Duration,
		o.httpClient,
		metrics,
		logger,
	)

	h := handlers{
		auth:    handler.NewAuthHandler(authService, logger),
		oauth:   handler.NewOAuthHandler(authService, broker, cfg.FrontendURL, logger),
		admin:   handler.NewAdminHandler(service.NewAdminService(repos, access, logger), logger),
		guards:  handler.NewGuards(access, logger),
		health:  NewHealthChecker(infra),
		limiter: service.NewRateLimiter(infra.Redis()),
		authSvc: authService,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(logger))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, h, infra.MetricsHandler(), logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:  infra,
		config: cfg,
		router: router,
		server: srv,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(router *gin.Engine, cfg *config.Config, h handlers, metricsHandler http.Handler, logger *zap.Logger) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", h.health.Handler)

	limit := handler.RateLimitMiddleware(
		h.limiter,
		cfg.Security.RateLimitRequests,
		cfg.Security.RateLimitWindow.Duration,
		handler.RouteAndIPKey,
		logger,
	)
	requireAuth := handler.AuthMiddleware(h.authSvc)

	auth := router.Group("/auth")
	{
		auth.POST("/signup", limit, h.auth.Signup)
		auth.POST("/login", limit, h.auth.Login)
		auth.POST("/forgot-password", limit, h.auth.ForgotPassword)
		auth.POST("/verify-email", limit, h.auth.VerifyEmail)
		auth.POST("/resend-verification", limit, h.auth.ResendVerification)
		auth.POST("/accept-invite", limit, h.auth.AcceptInvite)
		auth.POST("/supabase-session", h.auth.SupabaseSession)
		auth.POST("/supabase-update-password", h.auth.SupabaseUpdatePassword)
		auth.GET("/me", requireAuth, h.auth.GetMe)

		auth.GET("/google", h.oauth.GoogleLogin)
		auth.GET("/google/callback", h.oauth.GoogleCallback)

		auth.POST("/ringcentral", requireAuth, h.oauth.ConnectRingCentral)
		auth.GET("/ringcentral/callback", h.oauth.RingCentralCallback)
		auth.GET("/ringcentral/status", requireAuth, h.oauth.RingCentralStatus)
		auth.DELETE("/ringcentral", requireAuth, h.oauth.DisconnectRingCentral)
	}

	admin := router.Group("/admin", requireAuth, h.guards.RequirePlatformRole(domain.PlatformRoleSuperAdmin))
	{
		admin.PATCH("/users/:id/platform-role", h.admin.UpdatePlatformRole)
		admin.DELETE("/users/:id", h.admin.DeleteUser)
	}

	orgs := router.Group("/organizations/:orgId", requireAuth)
	{
		orgs.GET("/members", h.guards.RequireOrgRole(), h.admin.ListMembers)
		orgs.PATCH("/members/:userId", h.guards.RequireOrgRole(domain.OrgRoleAdmin), h.admin.UpdateMemberRole)
		orgs.DELETE("/members/:userId", h.guards.LoadPlatformRole(), h.admin.RemoveMember)
	}
}

func logMissing(logger *zap.Logger, feature string, missing []string) {
	if len(missing) > 0 {
		logger.Info(feature+" is not configured", zap.Strings("missing", missing))
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
			zap.String("env", a.config.Env),
		)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// stop accepting requests before closing the pools they use
	if err := a.server.Shutdown(ctx); err != nil {
		a.infra.Logger().Error("HTTP server shutdown failed", zap.Error(err))
		return errors.Join(err, a.infra.Shutdown(ctx))
	}

	if err := a.infra.Shutdown(ctx); err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
