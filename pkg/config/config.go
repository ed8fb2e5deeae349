package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "ASSETSYNC"

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host" default:"127.0.0.1"`
	Port            int           `mapstructure:"port" default:"8090" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" default:"15s"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" default:"30s"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host" default:"localhost" validate:"required"`
	Port     int    `mapstructure:"port" default:"5432"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database" default:"asset_tracker" validate:"required"`
	SSLMode  string `mapstructure:"ssl_mode" default:"disable"`
}

// StoreConfig contains the on-device SQLite store settings
type StoreConfig struct {
	Path        string        `mapstructure:"path" default:"assetsync.db" validate:"required"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout" default:"5s"`
}

// RemoteConfig points the gateway at the tenant API
type RemoteConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	TenantID       string        `mapstructure:"tenant_id" validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" default:"15s"`
}

// ClientAuthConfig contains the credentials the device presents to the tenant API.
// Either a static Token or a TokenURL with client credentials is required.
type ClientAuthConfig struct {
	Token        string `mapstructure:"token"`
	TokenURL     string `mapstructure:"token_url" validate:"omitempty,url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// SyncConfig contains orchestrator settings
type SyncConfig struct {
	MaxRetries         int                 `mapstructure:"max_retries" default:"3" validate:"min=1"`
	MaxConflictRepeats int                 `mapstructure:"max_conflict_repeats" default:"3" validate:"min=1"`
	DefaultPolicy      string              `mapstructure:"default_policy" default:"merge" validate:"oneof=local remote merge"`
	Policies           map[string]string   `mapstructure:"policies" validate:"dive,oneof=local remote merge"`
	MergeFields        map[string][]string `mapstructure:"merge_fields"`
	AutoSync           bool                `mapstructure:"auto_sync" default:"true"`
}

// TriggerConfig contains the connectivity and periodic trigger settings
type TriggerConfig struct {
	Interval      time.Duration `mapstructure:"interval" default:"5m"`
	ProbeInterval time.Duration `mapstructure:"probe_interval" default:"30s"`
	Debounce      time.Duration `mapstructure:"debounce" default:"2s"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled" default:"true"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level" default:"info"`
	Format     string `mapstructure:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `mapstructure:"output_path" default:"stdout"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" default:"50"`
	MaxBackups int    `mapstructure:"max_backups" default:"3"`
	MaxAgeDays int    `mapstructure:"max_age_days" default:"28"`
}

// =============================================================================
// SYNC DAEMON CONFIG
// =============================================================================

// SyncdConfig represents the device sync daemon configuration
type SyncdConfig struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Remote     RemoteConfig     `mapstructure:"remote"`
	Auth       ClientAuthConfig `mapstructure:"auth"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Trigger    TriggerConfig    `mapstructure:"trigger"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// LoadSyncd loads sync daemon configuration from file and environment variables
func LoadSyncd(configPath string) (*SyncdConfig, error) {
	var cfg SyncdConfig
	if err := load(configPath, &cfg); err != nil {
		return nil, err
	}
	if err := validateSyncd(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func validateSyncd(cfg *SyncdConfig) error {
	if cfg.Auth.Token == "" && cfg.Auth.TokenURL == "" {
		return errors.New("auth.token or auth.token_url is required")
	}
	if cfg.Auth.TokenURL != "" && (cfg.Auth.ClientID == "" || cfg.Auth.ClientSecret == "") {
		return errors.New("auth.client_id and auth.client_secret are required with auth.token_url")
	}
	return nil
}

// =============================================================================
// TENANT API CONFIG
// =============================================================================

// TenantAPIConfig represents the tenant API server configuration
type TenantAPIConfig struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       ServerAuthConfig `mapstructure:"auth"`
	Seed       SeedConfig       `mapstructure:"seed"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerAuthConfig contains bearer token settings of the tenant API.
// Tokens are HS256 signed with HMACSecret; JWKSURL enables RS256 tokens from an
// external identity provider as well.
type ServerAuthConfig struct {
	HMACSecret string        `mapstructure:"hmac_secret" validate:"required,min=32"`
	Issuer     string        `mapstructure:"issuer" default:"asset-tracker"`
	TokenTTL   time.Duration `mapstructure:"token_ttl" default:"1h"`
	JWKSURL    string        `mapstructure:"jwks_url" validate:"omitempty,url"`
}

// SeedConfig points at an optional YAML fixture loaded on startup
type SeedConfig struct {
	File string `mapstructure:"file"`
}

// LoadTenantAPI loads tenant API configuration from file and environment variables
func LoadTenantAPI(configPath string) (*TenantAPIConfig, error) {
	cfg := TenantAPIConfig{Server: ServerConfig{Host: "0.0.0.0", Port: 8080}}
	if err := load(configPath, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// load applies struct defaults, overlays the YAML file and environment, and
// validates the result.
func load(configPath string, cfg any) error {
	if err := defaults.Set(cfg); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
