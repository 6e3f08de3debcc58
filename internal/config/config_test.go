package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Port:             "8000",
		Env:              "production",
		DatabaseURL:      "postgres://localhost/dental",
		JWTSecret:        strings.Repeat("s", 32),
		KeystorePath:     "/etc/e-dental/field.key",
		AccessTokenTTL:   30,
		RefreshTokenTTL:  168,
		MaxLoginFailures: 5,
		LockoutMinutes:   15,
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid production config", func(t *testing.T) {
		if err := validConfig().Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})

	t.Run("production requires keystore", func(t *testing.T) {
		cfg := validConfig()
		cfg.KeystorePath = ""
		if err := cfg.Validate(); err == nil {
			t.Fatal("production boot without keystore accepted")
		}
	})

	t.Run("production requires jwt secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWTSecret = ""
		if err := cfg.Validate(); err == nil {
			t.Fatal("production boot without JWT secret accepted")
		}
	})

	t.Run("short jwt secret rejected everywhere", func(t *testing.T) {
		cfg := validConfig()
		cfg.Env = "development"
		cfg.JWTSecret = "short"
		if err := cfg.Validate(); err == nil {
			t.Fatal("short JWT secret accepted")
		}
	})

	t.Run("development may omit keystore", func(t *testing.T) {
		cfg := validConfig()
		cfg.Env = "development"
		cfg.KeystorePath = ""
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})

	t.Run("lockout settings must be positive", func(t *testing.T) {
		cfg := validConfig()
		cfg.MaxLoginFailures = 0
		if err := cfg.Validate(); err == nil {
			t.Fatal("zero MAX_LOGIN_FAILURES accepted")
		}
		cfg = validConfig()
		cfg.LockoutMinutes = -1
		if err := cfg.Validate(); err == nil {
			t.Fatal("negative LOCKOUT_MINUTES accepted")
		}
	})
}
