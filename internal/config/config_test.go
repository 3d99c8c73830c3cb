package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func setValidSecrets(t *testing.T) {
	t.Helper()
	os.Setenv("JWT_ACCESS_SECRET", strings.Repeat("a", 64))
	os.Setenv("JWT_REFRESH_SECRET", strings.Repeat("b", 64))
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	setValidSecrets(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.JWTIssuer != "porichoy.gov.bd" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "porichoy.gov.bd")
	}
	if cfg.JWTAccessAudience != "porichoy-client" {
		t.Errorf("JWTAccessAudience = %q, want %q", cfg.JWTAccessAudience, "porichoy-client")
	}
	if cfg.JWTRefreshAudience != "porichoy-refresh" {
		t.Errorf("JWTRefreshAudience = %q, want %q", cfg.JWTRefreshAudience, "porichoy-refresh")
	}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 168*time.Hour {
		t.Errorf("RefreshTTL = %v, want 168h", cfg.RefreshTTL())
	}
	if cfg.SessionTTL() != 8*time.Hour {
		t.Errorf("SessionTTL = %v, want 8h", cfg.SessionTTL())
	}
	if cfg.MaxFailedAttempts != 5 {
		t.Errorf("MaxFailedAttempts = %d, want 5", cfg.MaxFailedAttempts)
	}
	if cfg.LockoutTTL() != 15*time.Minute {
		t.Errorf("LockoutTTL = %v, want 15m", cfg.LockoutTTL())
	}
	if !cfg.LockoutFailOpen {
		t.Error("LockoutFailOpen should default to true")
	}
	if cfg.BlocklistRetries != 2 {
		t.Errorf("BlocklistRetries = %d, want 2", cfg.BlocklistRetries)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.AuditKafkaTopic != "auth-audit" {
		t.Errorf("AuditKafkaTopic = %q, want %q", cfg.AuditKafkaTopic, "auth-audit")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	setValidSecrets(t)
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")
	os.Setenv("LOCKOUT_FAIL_OPEN", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	if cfg.LockoutFailOpen {
		t.Error("LockoutFailOpen should be overridden to false")
	}
}

func TestLoad_RejectsShortSecrets(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_ACCESS_SECRET", "short")
	os.Setenv("JWT_REFRESH_SECRET", strings.Repeat("b", 64))

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject a short access secret")
	}
}

func TestLoad_RejectsSharedSecret(t *testing.T) {
	os.Clearenv()
	shared := strings.Repeat("a", 64)
	os.Setenv("JWT_ACCESS_SECRET", shared)
	os.Setenv("JWT_REFRESH_SECRET", shared)

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject identical access and refresh secrets")
	}
}

func TestLoad_RejectsSharedAudience(t *testing.T) {
	os.Clearenv()
	setValidSecrets(t)
	os.Setenv("JWT_ACCESS_AUDIENCE", "same")
	os.Setenv("JWT_REFRESH_AUDIENCE", "same")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject identical access and refresh audiences")
	}
}

func TestAuditKafkaBrokersList(t *testing.T) {
	cfg := &Config{AuditKafkaBrokers: "localhost:9092, kafka-2:9092 ,"}
	got := cfg.AuditKafkaBrokersList()
	if len(got) != 2 || got[0] != "localhost:9092" || got[1] != "kafka-2:9092" {
		t.Errorf("AuditKafkaBrokersList = %v", got)
	}

	cfg = &Config{}
	if got := cfg.AuditKafkaBrokersList(); got != nil {
		t.Errorf("empty brokers should return nil, got %v", got)
	}
}
