package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	// DevelopmentJWTSecret is substituted when JWT_SECRET is absent outside production
	DevelopmentJWTSecret = "identity-gateway-development-secret-do-not-use"

	minJWTSecretLength = 32
)

type Config struct {
	Server      ServerConfig      `env:",prefix=SERVER_"`
	Postgres    PostgresConfig    `env:",prefix=POSTGRES_"`
	Redis       RedisConfig       `env:",prefix=REDIS_"`
	JWT         JWTConfig         `env:",prefix=JWT_"`
	Security    SecurityConfig    `env:",prefix="`
	CORS        CORSConfig        `env:",prefix=CORS_"`
	Supabase    SupabaseConfig    `env:",prefix=SUPABASE_"`
	Google      GoogleConfig      `env:",prefix=GOOGLE_"`
	RingCentral RingCentralConfig `env:",prefix=RINGCENTRAL_"`
	FrontendURL string            `env:"FRONTEND_URL,default=http://localhost:3000"`
	DevCodes    bool              `env:"DEV_VERIFICATION_CODES,default=false"`
	Env         string            `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
}

type PostgresConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=identity_gateway"`
	Password string `env:"PASSWORD,default=identity_gateway_password"`
	DBName   string `env:"DB,default=identity_gateway_db"`
	SSLMode  string `env:"SSLMODE,default=disable"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

type JWTConfig struct {
	Secret        string   `env:"SECRET"`
	SessionExpiry Duration `env:"SESSION_EXPIRY,default=7d"`
	StateExpiry   Duration `env:"STATE_EXPIRY,default=10m"`

	// UsingDevelopmentSecret is set by Load when DevelopmentJWTSecret was substituted
	UsingDevelopmentSecret bool
}

type SecurityConfig struct {
	BCryptCost        int      `env:"BCRYPT_COST,default=10"`
	PasswordMinLength int      `env:"PASSWORD_MIN_LENGTH,default=8"`
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

type SupabaseConfig struct {
	URL       string   `env:"URL"`
	AnonKey   string   `env:"ANON_KEY"`
	JWTSecret string   `env:"JWT_SECRET"`
	ClockSkew Duration `env:"CLOCK_SKEW,default=30s"`
}

type GoogleConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL"`
}

type RingCentralConfig struct {
	ClientID      string   `env:"CLIENT_ID"`
	ClientSecret  string   `env:"CLIENT_SECRET"`
	ServerURL     string   `env:"SERVER_URL,default=https://platform.ringcentral.com"`
	RedirectURI   string   `env:"REDIRECT_URI"`
	RefreshBuffer Duration `env:"REFRESH_BUFFER,default=5m"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// JWKSURL returns the key-set endpoint of the Supabase auth server, or "" when no URL is set
func (s SupabaseConfig) JWKSURL() string {
	if s.URL == "" {
		return ""
	}
	return strings.TrimRight(s.URL, "/") + "/auth/v1/.well-known/jwks.json"
}

// CanVerifyTokens reports whether at least one token verification method is available
func (s SupabaseConfig) CanVerifyTokens() bool {
	return s.URL != "" || s.JWTSecret != ""
}

// Missing lists the variables required to call the Supabase auth API
func (s SupabaseConfig) Missing() []string {
	var missing []string
	if s.URL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if s.AnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}
	return missing
}

// Missing lists the variables required for Google sign-in
func (g GoogleConfig) Missing() []string {
	var missing []string
	if g.ClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	if g.ClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}
	if g.CallbackURL == "" {
		missing = append(missing, "GOOGLE_CALLBACK_URL")
	}
	return missing
}

// Missing lists the variables required for the RingCentral integration
func (r RingCentralConfig) Missing() []string {
	var missing []string
	if r.ClientID == "" {
		missing = append(missing, "RINGCENTRAL_CLIENT_ID")
	}
	if r.ClientSecret == "" {
		missing = append(missing, "RINGCENTRAL_CLIENT_SECRET")
	}
	if r.ServerURL == "" {
		missing = append(missing, "RINGCENTRAL_SERVER_URL")
	}
	if r.RedirectURI == "" {
		missing = append(missing, "RINGCENTRAL_REDIRECT_URI")
	}
	return missing
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var config Config

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &config,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.applySessionSecret(); err != nil {
		return nil, err
	}

	if config.DevCodes && config.IsProduction() {
		return nil, fmt.Errorf("DEV_VERIFICATION_CODES must not be enabled in production")
	}

	return &config, nil
}

func (c *Config) applySessionSecret() error {
	if c.JWT.Secret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		c.JWT.Secret = DevelopmentJWTSecret
		c.JWT.UsingDevelopmentSecret = true
		return nil
	}

	if len(c.JWT.Secret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters long", minJWTSecretLength)
	}

	return nil
}
