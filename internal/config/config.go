package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Session tokens issued by the auth store are HMAC-signed.
	SessionSecret string `mapstructure:"SESSION_SECRET"`

	// External analysis service.
	AnalyzerURL          string        `mapstructure:"ANALYZER_URL"`
	AnalyzerPollInterval time.Duration `mapstructure:"ANALYZER_POLL_INTERVAL"`
	AnalyzerPollAttempts int           `mapstructure:"ANALYZER_POLL_ATTEMPTS"`
	AnalyzerHealthCron   string        `mapstructure:"ANALYZER_HEALTH_CRON"`

	// Data-access layer tuning.
	CacheTTL          time.Duration `mapstructure:"CACHE_TTL"`
	FetchTimeout      time.Duration `mapstructure:"FETCH_TIMEOUT"`
	AuthMaxWait       time.Duration `mapstructure:"AUTH_MAX_WAIT"`
	AuthRetryInterval time.Duration `mapstructure:"AUTH_RETRY_INTERVAL"`
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
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("ANALYZER_URL", "http://localhost:5000")
	v.SetDefault("ANALYZER_POLL_INTERVAL", "5s")
	v.SetDefault("ANALYZER_POLL_ATTEMPTS", 480)
	v.SetDefault("ANALYZER_HEALTH_CRON", "@every 1m")
	v.SetDefault("CACHE_TTL", "30s")
	v.SetDefault("FETCH_TIMEOUT", "5s")
	v.SetDefault("AUTH_MAX_WAIT", "2s")
	v.SetDefault("AUTH_RETRY_INTERVAL", "50ms")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("SESSION_SECRET")
	v.BindEnv("ANALYZER_URL")
	v.BindEnv("ANALYZER_POLL_INTERVAL")
	v.BindEnv("ANALYZER_POLL_ATTEMPTS")
	v.BindEnv("ANALYZER_HEALTH_CRON")
	v.BindEnv("CACHE_TTL")
	v.BindEnv("FETCH_TIMEOUT")
	v.BindEnv("AUTH_MAX_WAIT")
	v.BindEnv("AUTH_RETRY_INTERVAL")

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

	if cfg.IsDev() && cfg.SessionSecret == "" {
		log.Println("WARNING: SESSION_SECRET is empty; session tokens will not be verified.")
		log.Println("WARNING: This is only acceptable with ENV=development.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run. Outside development
// a session secret is required so that session tokens are actually verified,
// and the polling budget must be positive.
func (c *Config) Validate() error {
	if !c.IsDev() && c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required when ENV=%q", c.Env)
	}
	if c.AnalyzerURL == "" {
		return fmt.Errorf("ANALYZER_URL is required")
	}
	if c.AnalyzerPollInterval <= 0 {
		return fmt.Errorf("ANALYZER_POLL_INTERVAL must be positive, got %s", c.AnalyzerPollInterval)
	}
	if c.AnalyzerPollAttempts <= 0 {
		return fmt.Errorf("ANALYZER_POLL_ATTEMPTS must be positive, got %d", c.AnalyzerPollAttempts)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.AuthRetryInterval <= 0 || c.AuthRetryInterval > c.AuthMaxWait {
		return fmt.Errorf("AUTH_RETRY_INTERVAL must be positive and not exceed AUTH_MAX_WAIT")
	}
	return nil
}
