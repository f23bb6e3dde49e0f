package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	Store          string        `mapstructure:"STORE"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	FHIRBasePath   string        `mapstructure:"FHIR_BASE_PATH"`
	OnsetTimezone  string        `mapstructure:"ONSET_TIMEZONE"`
	SeedDemoData   bool          `mapstructure:"SEED_DEMO_DATA"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

// Load reads configuration from the environment, with an optional .env file
// in the working directory underneath it. The result is validated.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE", StoreMemory)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("FHIR_BASE_PATH", "/fhir")
	v.SetDefault("ONSET_TIMEZONE", "UTC")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "STORE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"FHIR_BASE_PATH", "ONSET_TIMEZONE", "SEED_DEMO_DATA", "CORS_ORIGINS",
		"BODY_LIMIT", "REQUEST_TIMEOUT",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	// Demo data is on by default only in development.
	if !v.IsSet("SEED_DEMO_DATA") {
		v.Set("SEED_DEMO_DATA", v.GetString("ENV") == "development")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList flattens comma separated entries; viper hands a single env string
// through as one element.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE=%s", StorePostgres)
		}
	default:
		return fmt.Errorf("STORE must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store)
	}
	if !strings.HasPrefix(c.FHIRBasePath, "/") {
		return fmt.Errorf("FHIR_BASE_PATH must start with '/', got %q", c.FHIRBasePath)
	}
	if _, err := c.OnsetLocation(); err != nil {
		return err
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}

// OnsetLocation is the zone onset wall-clock values are interpreted in.
func (c *Config) OnsetLocation() (*time.Location, error) {
	name := c.OnsetTimezone
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("ONSET_TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
