package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

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
	if cfg.JWTAccessTTL != "15m" {
		t.Errorf("JWTAccessTTL = %q, want %q", cfg.JWTAccessTTL, "15m")
	}
	if cfg.JWTRefreshTTL != "168h" {
		t.Errorf("JWTRefreshTTL = %q, want %q", cfg.JWTRefreshTTL, "168h")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.KafkaEnabled {
		t.Error("KafkaEnabled should default to false")
	}
	if cfg.UserEventsTopic != "user-events" {
		t.Errorf("UserEventsTopic = %q, want user-events", cfg.UserEventsTopic)
	}
	if cfg.RetryMaxAttempts != 5 {
		t.Errorf("RetryMaxAttempts = %d, want 5", cfg.RetryMaxAttempts)
	}
	if cfg.RetryInitialInterval != time.Second {
		t.Errorf("RetryInitialInterval = %v, want 1s", cfg.RetryInitialInterval)
	}
	if cfg.RetryMaxInterval != time.Minute {
		t.Errorf("RetryMaxInterval = %v, want 1m", cfg.RetryMaxInterval)
	}
	if cfg.RetryMultiplier != 2.0 {
		t.Errorf("RetryMultiplier = %v, want 2", cfg.RetryMultiplier)
	}
	if !cfg.PasswordResetEnabled {
		t.Error("PasswordResetEnabled should default to true")
	}
	if cfg.PasswordResetTTL != 30*time.Minute {
		t.Errorf("PasswordResetTTL = %v, want 30m", cfg.PasswordResetTTL)
	}
	if len(cfg.PublicPaths()) == 0 {
		t.Error("default public paths should not be empty")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("BCRYPT_COST", "10")
	os.Setenv("CONSUMER_CONCURRENCY", "3")
	os.Setenv("RETRY_INITIAL_INTERVAL", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, want 10", cfg.BcryptCost)
	}
	if cfg.ConsumerConcurrency != 3 {
		t.Errorf("ConsumerConcurrency = %d, want 3", cfg.ConsumerConcurrency)
	}
	if cfg.RetryInitialInterval != 250*time.Millisecond {
		t.Errorf("RetryInitialInterval = %v, want 250ms", cfg.RetryInitialInterval)
	}
}

func TestLoad_BCRYPT_COSTRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestLoad_KafkaEnabledRequiresBrokers(t *testing.T) {
	os.Clearenv()
	os.Setenv("KAFKA_ENABLED", "true")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should fail when Kafka is enabled without brokers")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}

	os.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	brokers := cfg.KafkaBrokersList()
	if len(brokers) != 2 || brokers[0] != "k1:9092" || brokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokersList = %v", brokers)
	}
}

func TestLoad_PasswordResetTTLMinimum(t *testing.T) {
	os.Clearenv()
	os.Setenv("PASSWORD_RESET_TTL", "30s")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject a password reset validity below one minute")
	}
}

func TestLoad_RetryValidation(t *testing.T) {
	os.Clearenv()
	os.Setenv("RETRY_MAX_ATTEMPTS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("Load should reject RETRY_MAX_ATTEMPTS=0")
	}

	os.Clearenv()
	os.Setenv("RETRY_MULTIPLIER", "0.5")
	if _, err := Load(); err == nil {
		t.Fatal("Load should reject RETRY_MULTIPLIER < 1")
	}
}

func TestRequireSecret(t *testing.T) {
	cfg := &Config{JWTSecret: "short"}
	if err := cfg.RequireSecret(); err == nil {
		t.Error("RequireSecret should reject short secrets")
	}
	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	if err := cfg.RequireSecret(); err != nil {
		t.Errorf("RequireSecret: %v", err)
	}
}

func TestRoutes(t *testing.T) {
	cfg := &Config{GatewayRoutes: "/api/auth=http://auth:8081, /api/stalls=http://stall:8082"}
	routes, err := cfg.Routes()
	if err != nil {
		t.Fatalf("Routes: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("len(routes) = %d, want 2", len(routes))
	}
	if routes[0].Prefix != "/api/auth" || routes[0].Target != "http://auth:8081" {
		t.Errorf("routes[0] = %+v", routes[0])
	}

	cfg.GatewayRoutes = "/api/auth"
	if _, err := cfg.Routes(); err == nil {
		t.Error("Routes should reject entries without a target")
	}
}

func TestAccessTTL_InvalidDuration(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_ACCESS_TTL", "invalid")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.AccessTTL(); ttl != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want %v (default)", ttl, 15*time.Minute)
	}
}

func TestRefreshTTL_ValidDuration(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_REFRESH_TTL", "336h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.RefreshTTL(); ttl != 14*24*time.Hour {
		t.Errorf("RefreshTTL = %v, want %v", ttl, 14*24*time.Hour)
	}
}

func TestRefreshTTL_NegativeDuration(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_REFRESH_TTL", "-1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.RefreshTTL(); ttl != 168*time.Hour {
		t.Errorf("RefreshTTL = %v, want %v (default)", ttl, 168*time.Hour)
	}
}
