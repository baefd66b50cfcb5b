package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the single target network the deployer writes out
const (
	DefaultNetworkName = "Sonic"
	DefaultChainID     = 14601
)

// DefaultEnvFiles are loaded, in order, before reading the environment.
// Earlier files win over later ones and the process environment wins over both.
var DefaultEnvFiles = []string{".env.local", ".env"}

// Write modes for the network config file
const (
	WriteModeMerge   = "merge"
	WriteModeReplace = "replace"
)

// Config holds all configuration for a deployment run
type Config struct {
	Credentials Credentials
	Network     NetworkConfig
	Artifact    ArtifactConfig
	Output      OutputConfig
	Confirm     ConfirmConfig
	Logging     LoggingConfig
	History     HistoryConfig
	Metrics     MetricsConfig
}

// Credentials holds the endpoint and signing key
type Credentials struct {
	RPCURL     string
	PrivateKey string
}

// String masks the private key so credentials are safe to log
func (c Credentials) String() string {
	key := "(not set)"
	if c.PrivateKey != "" {
		key = "****"
	}
	return fmt.Sprintf("{RPCURL:%s PrivateKey:%s}", c.RPCURL, key)
}

// NetworkConfig holds the network identity written to the output file
type NetworkConfig struct {
	Name          string
	ChainID       uint64
	StrictChainID bool // fail when the node reports a different chain id
}

// ArtifactConfig holds where the compiled contract is read from
type ArtifactConfig struct {
	Path       string // metadata JSON file
	Contract   string // contract name inside a Foundry project
	ProjectDir string // Foundry project root
}

// OutputConfig holds the network config file settings
type OutputConfig struct {
	Path string
	Mode string // "merge" or "replace"
}

// ConfirmConfig holds confirmation wait settings
type ConfirmConfig struct {
	Timeout      time.Duration // 0 waits until interrupted
	PollInterval time.Duration
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// HistoryConfig holds deployment journal storage settings
type HistoryConfig struct {
	Type     string // "sqlite", "postgres" or "none"
	SQLite   SQLiteConfig
	Postgres PostgresConfig
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// MetricsConfig holds Pushgateway settings. Metrics are disabled when the URL is empty.
type MetricsConfig struct {
	PushgatewayURL string
	Job            string
}

// LoadEnvFiles loads dotenv files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	chainID, err := getEnvUint64("DEPLOY_CHAIN_ID", DefaultChainID)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Credentials: Credentials{
			RPCURL:     strings.TrimSpace(os.Getenv("RPC_URL")),
			PrivateKey: strings.TrimSpace(os.Getenv("PRIVATE_KEY")),
		},
		Network: NetworkConfig{
			Name:          getEnv("DEPLOY_NETWORK", DefaultNetworkName),
			ChainID:       chainID,
			StrictChainID: getEnvBool("STRICT_CHAIN_ID", false),
		},
		Artifact: ArtifactConfig{
			Path:       getEnv("ARTIFACT_PATH", "Metadata.json"),
			Contract:   getEnv("DEPLOY_CONTRACT", ""),
			ProjectDir: getEnv("FOUNDRY_PROJECT_DIR", "."),
		},
		Output: OutputConfig{
			Path: getEnv("DEPLOY_OUTPUT", "deployments.json"),
			Mode: getEnv("DEPLOY_WRITE_MODE", WriteModeMerge),
		},
		Confirm: ConfirmConfig{
			Timeout:      getEnvDuration("CONFIRM_TIMEOUT", 0),
			PollInterval: getEnvDuration("CONFIRM_POLL_INTERVAL", time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		History: HistoryConfig{
			Type: getEnv("HISTORY_STORAGE", "sqlite"),
			SQLite: SQLiteConfig{
				Path: getEnv("HISTORY_SQLITE_PATH", ".deployer/history.db"),
			},
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
		},
		Metrics: MetricsConfig{
			PushgatewayURL: getEnv("METRICS_PUSHGATEWAY_URL", ""),
			Job:            getEnv("METRICS_JOB", "deployer"),
		},
	}

	// If DATABASE_URL is set, default to postgres
	if cfg.History.Postgres.URL != "" && os.Getenv("HISTORY_STORAGE") == "" {
		cfg.History.Type = "postgres"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that have a closed set of values. Credentials are
// checked by the deployment service so that a missing key is reported as a
// deployment failure rather than a startup failure.
func (c *Config) Validate() error {
	switch c.Output.Mode {
	case WriteModeMerge, WriteModeReplace:
	default:
		return fmt.Errorf("invalid write mode %q (want %q or %q)", c.Output.Mode, WriteModeMerge, WriteModeReplace)
	}
	switch c.History.Type {
	case "sqlite", "postgres", "none":
	default:
		return fmt.Errorf("unknown history storage type: %s", c.History.Type)
	}
	if c.Confirm.PollInterval <= 0 {
		return errors.New("confirm poll interval must be positive")
	}
	if c.Confirm.Timeout < 0 {
		return errors.New("confirm timeout cannot be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	u, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return u, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare integers are seconds
		if i, err := strconv.Atoi(value); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return defaultValue
}
