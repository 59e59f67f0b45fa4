package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const testSecret = "test-secret-key-that-is-at-least-32-characters-long"

func loadFrom(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	return load(context.Background(), envconfig.MapLookuper(env))
}

func TestLoad(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{"JWT_SECRET": testSecret})
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected Server.Port to be '8080', got '%s'", cfg.Server.Port)
	}

	if cfg.Server.ReadTimeout.Duration != 15*time.Second {
		t.Errorf("Expected Server.ReadTimeout to be 15s, got %v", cfg.Server.ReadTimeout.Duration)
	}

	if cfg.JWT.SessionExpiry.Duration != 7*24*time.Hour {
		t.Errorf("Expected JWT.SessionExpiry to be 7d, got %v", cfg.JWT.SessionExpiry.Duration)
	}

	if cfg.JWT.StateExpiry.Duration != 10*time.Minute {
		t.Errorf("Expected JWT.StateExpiry to be 10m, got %v", cfg.JWT.StateExpiry.Duration)
	}

	if cfg.Security.BCryptCost != 10 {
		t.Errorf("Expected Security.BCryptCost to be 10, got %d", cfg.Security.BCryptCost)
	}

	if cfg.RingCentral.RefreshBuffer.Duration != 5*time.Minute {
		t.Errorf("Expected RingCentral.RefreshBuffer to be 5m, got %v", cfg.RingCentral.RefreshBuffer.Duration)
	}

	if cfg.RingCentral.ServerURL != "https://platform.ringcentral.com" {
		t.Errorf("Unexpected RingCentral.ServerURL %q", cfg.RingCentral.ServerURL)
	}

	if cfg.Env != EnvDevelopment {
		t.Errorf("Expected Env to be 'development', got '%s'", cfg.Env)
	}

	if cfg.JWT.UsingDevelopmentSecret {
		t.Error("Expected configured secret to be used")
	}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		t.Error("Expected CORS.AllowedOrigins to have at least one value")
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{
		"JWT_SECRET":             testSecret,
		"SERVER_PORT":            "9090",
		"JWT_SESSION_EXPIRY":     "1d",
		"SUPABASE_URL":           "https://abc.supabase.co/",
		"SUPABASE_CLOCK_SKEW":    "1m",
		"ENV":                    "production",
		"PASSWORD_MIN_LENGTH":    "10",
		"DEV_VERIFICATION_CODES": "false",
	})
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected Server.Port to be '9090', got '%s'", cfg.Server.Port)
	}

	if cfg.JWT.SessionExpiry.Duration != 24*time.Hour {
		t.Errorf("Expected JWT.SessionExpiry to be 24h, got %v", cfg.JWT.SessionExpiry.Duration)
	}

	if cfg.Supabase.ClockSkew.Duration != time.Minute {
		t.Errorf("Expected Supabase.ClockSkew to be 1m, got %v", cfg.Supabase.ClockSkew.Duration)
	}

	if got := cfg.Supabase.JWKSURL(); got != "https://abc.supabase.co/auth/v1/.well-known/jwks.json" {
		t.Errorf("Unexpected JWKS URL %q", got)
	}

	if !cfg.IsProduction() {
		t.Error("Expected production environment")
	}

	if cfg.Security.PasswordMinLength != 10 {
		t.Errorf("Expected PasswordMinLength to be 10, got %d", cfg.Security.PasswordMinLength)
	}
}

func TestLoadWithoutJWTSecretInDevelopment(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{})
	if err != nil {
		t.Fatalf("Expected development default secret, got error: %v", err)
	}

	if cfg.JWT.Secret != DevelopmentJWTSecret {
		t.Errorf("Expected development secret, got %q", cfg.JWT.Secret)
	}

	if !cfg.JWT.UsingDevelopmentSecret {
		t.Error("Expected UsingDevelopmentSecret to be set")
	}
}

func TestLoadWithoutJWTSecretInProduction(t *testing.T) {
	_, err := loadFrom(t, map[string]string{"ENV": "production"})
	if err == nil {
		t.Error("Expected error when JWT_SECRET is not set in production")
	}
}

func TestLoadWithShortJWTSecret(t *testing.T) {
	_, err := loadFrom(t, map[string]string{"JWT_SECRET": "short"})
	if err == nil {
		t.Error("Expected error when JWT_SECRET is too short")
	}
}

func TestLoadRejectsDevCodesInProduction(t *testing.T) {
	_, err := loadFrom(t, map[string]string{
		"JWT_SECRET":             testSecret,
		"ENV":                    "production",
		"DEV_VERIFICATION_CODES": "true",
	})
	if err == nil {
		t.Error("Expected error when DEV_VERIFICATION_CODES is enabled in production")
	}
}

func TestProviderMissing(t *testing.T) {
	rc := RingCentralConfig{ServerURL: "https://platform.ringcentral.com", ClientID: "id"}
	missing := rc.Missing()
	expected := []string{"RINGCENTRAL_CLIENT_SECRET", "RINGCENTRAL_REDIRECT_URI"}
	if len(missing) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, missing)
	}
	for i := range expected {
		if missing[i] != expected[i] {
			t.Errorf("Expected %v, got %v", expected, missing)
		}
	}

	if got := (GoogleConfig{}).Missing(); len(got) != 3 {
		t.Errorf("Expected all Google variables missing, got %v", got)
	}

	if (SupabaseConfig{}).CanVerifyTokens() {
		t.Error("Expected no verification method without URL or secret")
	}

	if !(SupabaseConfig{JWTSecret: "s"}).CanVerifyTokens() {
		t.Error("Expected shared secret to enable verification")
	}
}

func TestPostgresDSN(t *testing.T) {
	pg := PostgresConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "test_user",
		Password: "test_password",
		DBName:   "test_db",
		SSLMode:  "disable",
	}

	dsn := pg.DSN()
	expected := "host=localhost port=5432 user=test_user password=test_password dbname=test_db sslmode=disable"
	if dsn != expected {
		t.Errorf("Expected DSN to be '%s', got '%s'", expected, dsn)
	}
}

func TestDurationDays(t *testing.T) {
	var d Duration
	if err := d.EnvDecode(context.Background(), "3d"); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if d.Duration != 72*time.Hour {
		t.Errorf("Expected 72h, got %v", d.Duration)
	}

	if err := d.EnvDecode(context.Background(), "xd"); err == nil {
		t.Error("Expected error for invalid days value")
	}
}
