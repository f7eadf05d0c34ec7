// Package config loads gateway settings from the environment.
//
// main loads an optional .env file first, so local development can keep
// settings in a file while deployments use real environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Backup store kinds.
const (
	BackupStoreSQLite = "sqlite"
	BackupStoreS3     = "s3"
)

// devJWTSecret signs session cookies in development when JWT_SECRET is unset.
const devJWTSecret = "craftmarket-development-secret"

// Config is the full gateway configuration.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	BackendURL        string        `envconfig:"BACKEND_URL" default:"http://localhost:5000/api"`
	BackendTimeout    time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10s"`
	BackendRPS        float64       `envconfig:"BACKEND_RPS" default:"50"`
	BackendBurst      int           `envconfig:"BACKEND_BURST" default:"20"`
	LookupConcurrency int           `envconfig:"LOOKUP_CONCURRENCY" default:"8"`

	JWTSecret      string        `envconfig:"JWT_SECRET"`
	SessionTTL     time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS"`
	LoginRate      float64       `envconfig:"LOGIN_RATE" default:"0.2"`
	LoginBurst     int           `envconfig:"LOGIN_BURST" default:"5"`

	BackupStore string `envconfig:"BACKUP_STORE" default:"sqlite"`
	DBPath      string `envconfig:"DB_PATH" default:"data/backups.db"`

	S3BucketName      string `envconfig:"S3_BUCKET_NAME"`
	S3Endpoint        string `envconfig:"S3_ENDPOINT"`
	S3Region          string `envconfig:"S3_REGION" default:"auto"`
	S3AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Prefix          string `envconfig:"S3_PREFIX" default:"backups/"`
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// IsDevelopment reports whether the gateway runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Validate checks cross-field rules envconfig tags cannot express. In
// development a missing JWT secret is replaced with a fixed one.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}
	if !strings.HasPrefix(c.BackendURL, "http://") && !strings.HasPrefix(c.BackendURL, "https://") {
		errs = append(errs, fmt.Errorf("BACKEND_URL %q must be an http(s) URL", c.BackendURL))
	}
	if c.BackendRPS <= 0 || c.LoginRate <= 0 {
		errs = append(errs, errors.New("BACKEND_RPS and LOGIN_RATE must be positive"))
	}

	switch {
	case c.JWTSecret == "" && c.IsDevelopment():
		c.JWTSecret = devJWTSecret
	case c.JWTSecret == "":
		errs = append(errs, errors.New("JWT_SECRET is required outside development"))
	case len(c.JWTSecret) < 16:
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}

	switch c.BackupStore {
	case BackupStoreSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite backup store"))
		}
	case BackupStoreS3:
		for name, v := range map[string]string{
			"S3_BUCKET_NAME":       c.S3BucketName,
			"S3_ACCESS_KEY_ID":     c.S3AccessKeyID,
			"S3_SECRET_ACCESS_KEY": c.S3SecretAccessKey,
		} {
			if v == "" {
				errs = append(errs, fmt.Errorf("%s is required for the s3 backup store", name))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("BACKUP_STORE %q must be %q or %q", c.BackupStore, BackupStoreSQLite, BackupStoreS3))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
