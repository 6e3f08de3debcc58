package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	DatabaseURL      string   `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret        string   `mapstructure:"JWT_SECRET"`
	AccessTokenTTL   int      `mapstructure:"ACCESS_TOKEN_TTL_MINUTES"`
	RefreshTokenTTL  int      `mapstructure:"REFRESH_TOKEN_TTL_HOURS"`
	KeystorePath     string   `mapstructure:"ENCRYPTION_KEY_FILE"`
	MigrationsDir    string   `mapstructure:"MIGRATIONS_DIR"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
	MaxLoginFailures int      `mapstructure:"MAX_LOGIN_FAILURES"`
	LockoutMinutes   int      `mapstructure:"LOCKOUT_MINUTES"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 30)
	v.SetDefault("REFRESH_TOKEN_TTL_HOURS", 168)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("MAX_LOGIN_FAILURES", 5)
	v.SetDefault("LOCKOUT_MINUTES", 15)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("ACCESS_TOKEN_TTL_MINUTES")
	v.BindEnv("REFRESH_TOKEN_TTL_HOURS")
	v.BindEnv("ENCRYPTION_KEY_FILE")
	v.BindEnv("MIGRATIONS_DIR")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("MAX_LOGIN_FAILURES")
	v.BindEnv("LOCKOUT_MINUTES")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Production requires
// a JWT signing secret and a provisioned encryption keystore; development may
// run without field encryption, which is logged loudly at startup.
func (c *Config) Validate() error {
	if c.JWTSecret == "" && !c.IsDev() {
		return fmt.Errorf("JWT_SECRET is required when ENV is not \"development\"")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters, got %d", len(c.JWTSecret))
	}
	if c.IsProduction() && c.KeystorePath == "" {
		return fmt.Errorf("ENCRYPTION_KEY_FILE is required in production")
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL_MINUTES must be positive, got %d", c.AccessTokenTTL)
	}
	if c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("REFRESH_TOKEN_TTL_HOURS must be positive, got %d", c.RefreshTokenTTL)
	}
	if c.MaxLoginFailures <= 0 {
		return fmt.Errorf("MAX_LOGIN_FAILURES must be positive, got %d", c.MaxLoginFailures)
	}
	if c.LockoutMinutes <= 0 {
		return fmt.Errorf("LOCKOUT_MINUTES must be positive, got %d", c.LockoutMinutes)
	}
	return nil
}
