package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"convoydesk/internal/domain"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const defaultJWTSecret = "change-me-jwt-secret"

type App struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`

	// Storage
	DatabaseURL string `envconfig:"DATABASE_URL" default:"convoydesk.db"`
	RedisURL    string `envconfig:"REDIS_URL"`

	// HTTP
	HTTPAddr           string        `envconfig:"HTTP_ADDR" default:":8080"`
	JWTSecret          string        `envconfig:"JWT_SECRET" default:"change-me-jwt-secret"`
	JWTTTL             time.Duration `envconfig:"JWT_TTL" default:"24h"`
	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS"`

	// Chat platform. Empty outside production selects the in-memory gateway.
	DiscordToken string `envconfig:"DISCORD_TOKEN"`

	// Background jobs
	ReminderTick             time.Duration `envconfig:"REMINDER_TICK" default:"30s"`
	ResyncInterval           time.Duration `envconfig:"RESYNC_INTERVAL" default:"10m"`
	DraftTTL                 time.Duration `envconfig:"DRAFT_TTL" default:"15m"`
	CleanupInterval          time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`
	ReminderLogRetentionDays int           `envconfig:"REMINDER_LOG_RETENTION_DAYS" default:"30"`

	// Guild defaults applied when a stored config lacks a field
	DefaultDurationMinutes int    `envconfig:"DEFAULT_DURATION_MINUTES" default:"90"`
	DefaultBufferMinutes   int    `envconfig:"DEFAULT_BUFFER_MINUTES" default:"15"`
	DefaultCategoryPrefix  string `envconfig:"DEFAULT_CATEGORY_PREFIX" default:"Convoys"`
	DefaultReminderOffsets []int  `envconfig:"DEFAULT_REMINDER_OFFSETS" default:"1440,120,30"`
}

// Load reads .env when present, then the process environment.
func Load() (*App, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env not loaded: %v", err)
	}

	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	log.Printf("config loaded: env=%s http=%s redis=%t reminder_tick=%s resync=%s",
		cfg.AppEnv, cfg.HTTPAddr, cfg.RedisURL != "", cfg.ReminderTick, cfg.ResyncInterval)
	return &cfg, nil
}

func validateConfig(cfg *App) error {
	if cfg.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if cfg.ReminderTick <= 0 {
		return fmt.Errorf("REMINDER_TICK must be > 0")
	}
	if cfg.ResyncInterval < 0 {
		return fmt.Errorf("RESYNC_INTERVAL must be >= 0")
	}
	if cfg.DraftTTL <= 0 {
		return fmt.Errorf("DRAFT_TTL must be > 0")
	}
	if cfg.CleanupInterval < 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be >= 0")
	}
	if cfg.DefaultDurationMinutes <= 0 {
		return fmt.Errorf("DEFAULT_DURATION_MINUTES must be > 0")
	}
	if cfg.DefaultBufferMinutes < 0 {
		return fmt.Errorf("DEFAULT_BUFFER_MINUTES must be >= 0")
	}
	for _, o := range cfg.DefaultReminderOffsets {
		if o <= 0 {
			return fmt.Errorf("DEFAULT_REMINDER_OFFSETS must be positive minutes")
		}
		if o > domain.MaxReminderOffsetMinutes {
			return fmt.Errorf("DEFAULT_REMINDER_OFFSETS must be at most %d minutes", domain.MaxReminderOffsetMinutes)
		}
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if strings.TrimSpace(cfg.DiscordToken) == "" {
			return fmt.Errorf("in prod/release DISCORD_TOKEN must be set")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}
