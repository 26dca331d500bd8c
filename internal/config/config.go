// Package config provides centralized configuration management for the notewise server.
// It loads configuration from CLI flags and environment variables (optionally seeded
// from a .env file), validates required fields, and provides sensible defaults.
//
// CLI flags control run mode (--no-s3, --backup, --restore) and the listen address.
// Environment variables provide secrets and service configuration.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kuitang/notewise/internal/db"
	"github.com/kuitang/notewise/internal/ratelimit"
)

const (
	defaultRegion      = "auto"
	defaultTokenIssuer = "notewise"
	defaultBucketName  = "notewise-backups"
	defaultBackupKeep  = 7
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr string

	// Database and encryption
	MasterKey    string // 64 hex characters (32 bytes)
	DatabasePath string

	// Access tokens
	TokenIssuer string
	TokenTTL    time.Duration

	// Rate limiting
	RateLimitConfig ratelimit.Config

	// Run mode (controlled by CLI flags, not env vars)
	NoS3       bool // If true, back up to in-memory S3 (--no-s3)
	BackupOnly bool   // If true, snapshot every user's notes, prune and exit (--backup)
	RestoreKey string // If set, restore this snapshot and exit (--restore)

	// Snapshots kept per user after a backup run
	BackupKeep int

	// S3-compatible backup storage
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	AWSBucketName      string // BUCKET_NAME
}

// Flags are the parsed command-line flags.
type Flags struct {
	Addr   string
	NoS3   bool
	Backup  bool
	Restore string
	Env     string
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags parses CLI flags from args (usually os.Args[1:]). Call before LoadConfig.
func ParseFlags(args []string) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&f.Addr, "addr", "", "Listen address (default :8080, overrides LISTEN_ADDR env var)")
	fs.BoolVar(&f.NoS3, "no-s3", false, "Use in-memory S3 for backups")
	fs.BoolVar(&f.Backup, "backup", false, "Snapshot every user's notes to S3, prune old snapshots and exit")
	fs.StringVar(&f.Restore, "restore", "", "Restore the snapshot stored at this object key and exit")
	fs.StringVar(&f.Env, "env", ".env", "Optional .env file loaded before reading the environment")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// LoadConfig loads configuration from environment variables and CLI flag values.
// Variables already set in the environment win over the .env file.
func LoadConfig(flags Flags) (*Config, error) {
	if flags.Env != "" {
		if err := godotenv.Load(flags.Env); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", flags.Env, err)
		}
	}

	cfg := &Config{
		NoS3:       flags.NoS3,
		BackupOnly: flags.Backup,
		RestoreKey: strings.TrimSpace(flags.Restore),
	}

	// Server settings
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":8080")
	if flags.Addr != "" {
		cfg.ListenAddr = flags.Addr
	}

	// Database and encryption
	cfg.MasterKey = getEnvOrDefault("MASTER_KEY", "")
	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", db.DefaultDatabasePath)

	// Access tokens
	cfg.TokenIssuer = getEnvOrDefault("TOKEN_ISSUER", defaultTokenIssuer)
	cfg.TokenTTL = parseDurationOrDefault("TOKEN_TTL", 24*time.Hour)

	// Rate limiting
	cfg.RateLimitConfig = ratelimit.Config{
		RPS:             parseFloat64OrDefault("RATE_LIMIT_RPS", ratelimit.DefaultConfig.RPS),
		Burst:           parseIntOrDefault("RATE_LIMIT_BURST", ratelimit.DefaultConfig.Burst),
		CleanupInterval: parseDurationOrDefault("RATE_LIMIT_CLEANUP_INTERVAL", ratelimit.DefaultConfig.CleanupInterval),
	}

	// S3-compatible storage
	cfg.AWSEndpointS3 = getEnvOrDefault("AWS_ENDPOINT_URL_S3", "")
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultRegion)
	cfg.AWSAccessKeyID = getEnvOrDefault("AWS_ACCESS_KEY_ID", "")
	cfg.AWSSecretAccessKey = getEnvOrDefault("AWS_SECRET_ACCESS_KEY", "")
	cfg.AWSBucketName = getEnvOrDefault("BUCKET_NAME", "")
	cfg.BackupKeep = parseIntOrDefault("BACKUP_KEEP", defaultBackupKeep)
	if cfg.NoS3 && cfg.AWSBucketName == "" {
		cfg.AWSBucketName = defaultBucketName
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
// S3 credentials are required unless --no-s3 is set.
func (c *Config) Validate() error {
	var errs []string

	if !c.NoS3 {
		if c.AWSEndpointS3 == "" {
			errs = append(errs, "AWS_ENDPOINT_URL_S3 is required (set env var or use --no-s3)")
		}
		if c.AWSBucketName == "" {
			errs = append(errs, "BUCKET_NAME is required (set env var or use --no-s3)")
		}
		if c.AWSAccessKeyID == "" {
			errs = append(errs, "AWS_ACCESS_KEY_ID is required (set env var or use --no-s3)")
		}
		if c.AWSSecretAccessKey == "" {
			errs = append(errs, "AWS_SECRET_ACCESS_KEY is required (set env var or use --no-s3)")
		}
	}

	// MasterKey: always required (losing it = database and backups unreadable)
	if c.MasterKey == "" {
		errs = append(errs, "MASTER_KEY is required (generate with: openssl rand -hex 32)")
	} else if len(c.MasterKey) != 64 {
		errs = append(errs, "MASTER_KEY must be 64 hex characters (32 bytes)")
	}

	if c.DatabasePath == "" {
		errs = append(errs, "DATABASE_PATH must not be empty")
	}
	if c.TokenIssuer == "" {
		errs = append(errs, "TOKEN_ISSUER must not be empty")
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, "TOKEN_TTL must be positive")
	}

	if c.BackupKeep < 1 {
		errs = append(errs, "BACKUP_KEEP must be at least 1")
	}
	if c.BackupOnly && c.RestoreKey != "" {
		errs = append(errs, "--backup and --restore cannot be combined")
	}

	if c.RateLimitConfig.RPS <= 0 {
		errs = append(errs, "RATE_LIMIT_RPS must be positive")
	}
	if c.RateLimitConfig.Burst <= 0 {
		errs = append(errs, "RATE_LIMIT_BURST must be positive")
	}
	if c.RateLimitConfig.CleanupInterval <= 0 {
		errs = append(errs, "RATE_LIMIT_CLEANUP_INTERVAL must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "notewise server starting...")
	if c.NoS3 {
		fmt.Fprintln(os.Stderr, "  Backups:  Mock S3 (--no-s3)")
	} else {
		fmt.Fprintf(os.Stderr, "  Backups:  S3 (endpoint: %s, bucket: %s)\n", c.AWSEndpointS3, c.AWSBucketName)
	}
	fmt.Fprintf(os.Stderr, "  Keep:     %d snapshots per user\n", c.BackupKeep)
	fmt.Fprintf(os.Stderr, "  Database: %s\n", c.DatabasePath)
	fmt.Fprintf(os.Stderr, "  Tokens:   issuer %q, ttl %s\n", c.TokenIssuer, c.TokenTTL)
	fmt.Fprintf(os.Stderr, "  Listen:   %s\n", c.ListenAddr)
	fmt.Fprintln(os.Stderr, "")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
