package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gsarrco/MuoVErsi/internal/service"
)

// Config fields: AutDatabase and NavDatabase hold a database name or a full
// DSN; empty resolves the latest import for that mode. HeadsignCacheTTLSec
// must be positive since a zero go-cache TTL never expires.
type Config struct {
	DatabaseURL string `yaml:"database_url" validate:"required"`
	AutDatabase string `yaml:"aut_database"`
	NavDatabase string `yaml:"nav_database"`

	NATSURL         string `yaml:"nats_url" validate:"required"`
	UpdatesSubject  string `yaml:"updates_subject" validate:"required,excludesall=*>"`
	RepliesPrefix   string `yaml:"replies_prefix" validate:"required,excludesall=*>"`
	QueueGroup      string `yaml:"queue_group" validate:"required"`
	LogNATSSubjects bool   `yaml:"log_nats_subjects"`

	MetricsAddr string `yaml:"metrics_addr"`
	TZ          string `yaml:"tz" validate:"required"`

	MaxDepartures       int `yaml:"max_departures" validate:"min=1,max=50"`
	HeadsignCacheTTLSec int `yaml:"headsign_cache_ttl_sec" validate:"min=1"`
	ShownPages          int `yaml:"shown_pages" validate:"min=1"`
	SessionTTLMin       int `yaml:"session_ttl_min" validate:"min=0"`

	Location *time.Location `yaml:"-"`
}

func defaults() *Config {
	return &Config{
		NATSURL:             "nats://127.0.0.1:4222",
		UpdatesSubject:      "muoversi.updates",
		RepliesPrefix:       "muoversi.replies",
		QueueGroup:          "muoversi",
		TZ:                  "Europe/Rome",
		MaxDepartures:       12,
		HeadsignCacheTTLSec: 3600,
		ShownPages:          8,
		SessionTTLMin:       1440,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Load() (*Config, error) {
	cfg := defaults()

	path := getenvDefault("MUOVERSI_CONFIG", "config.yaml")
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	// Database URL (cluster DSN): prefer DATABASE_URL / PG_DSN, else build from PG* vars
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")); dsn != "" {
		cfg.DatabaseURL = dsn
	} else if cfg.DatabaseURL == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := getenvDefault("PGDATABASE", "postgres")
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	}

	setString(&cfg.AutDatabase, "AUT_DATABASE")
	setString(&cfg.NavDatabase, "NAV_DATABASE")
	setString(&cfg.NATSURL, "NATS_URL")
	setString(&cfg.UpdatesSubject, "UPDATES_SUBJECT")
	setString(&cfg.RepliesPrefix, "REPLIES_PREFIX")
	setString(&cfg.QueueGroup, "QUEUE_GROUP")
	setString(&cfg.MetricsAddr, "METRICS_ADDR")
	setString(&cfg.TZ, "TZ")

	for k, dst := range map[string]*int{
		"MAX_DEPARTURES":         &cfg.MaxDepartures,
		"HEADSIGN_CACHE_TTL_SEC": &cfg.HeadsignCacheTTLSec,
		"SHOWN_PAGES":            &cfg.ShownPages,
		"SESSION_TTL_MIN":        &cfg.SessionTTLMin,
	} {
		if v := os.Getenv(k); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %q", k, v)
			}
			*dst = n
		}
	}

	// Debug logging for NATS publish subjects
	if v := os.Getenv("LOG_NATS_SUBJECTS"); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "t", "yes", "y", "on":
			cfg.LogNATSSubjects = true
		default:
			cfg.LogNATSSubjects = false
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, fmt.Errorf("invalid TZ: %v", err)
	}
	cfg.Location = loc

	return cfg, nil
}

// Targets maps each transport mode to its configured database.
func (c *Config) Targets() map[service.Mode]string {
	return map[service.Mode]string{
		service.Automobilistico: c.AutDatabase,
		service.Navigazione:     c.NavDatabase,
	}
}

func (c *Config) HeadsignCacheTTL() time.Duration {
	return time.Duration(c.HeadsignCacheTTLSec) * time.Second
}

// SessionTTL is how long an abandoned conversation is kept; zero keeps it
// until it returns to idle.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMin) * time.Minute
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
