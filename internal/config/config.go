// Package config loads and validates the site configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the SXW_ prefix (e.g., SXW_API_URL
// overrides api.url in the YAML). The same binary runs with a config.yaml in
// local development and with pure environment variables in containers.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	API       APIConfig       `mapstructure:"api"`
	Index     IndexConfig     `mapstructure:"index"`
	Issues    IssuesConfig    `mapstructure:"issues"`
	Content   ContentConfig   `mapstructure:"content"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// BaseURL is the public origin of the site. Dataset public URLs are
	// computed from it.
	BaseURL      string        `mapstructure:"base_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// APIConfig describes the upstream search/entity API
type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// SearchDataset is the dataset scope used by the search and research pages
	SearchDataset string `mapstructure:"search_dataset"`
	// SearchSchema restricts search results to a schema (and its descendants)
	SearchSchema string `mapstructure:"search_schema"`
	PageSize     int    `mapstructure:"page_size"`
}

// IndexConfig locates the prebuilt JSON index inside the storage backend
type IndexConfig struct {
	Path string `mapstructure:"path"`
}

// IssuesConfig holds the data-quality issues feed location
type IssuesConfig struct {
	URL string `mapstructure:"url"`
}

// ContentConfig holds the markdown content root for articles and docs
type ContentConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig holds storage backend configuration
type StorageConfig struct {
	DefaultBackend string             `mapstructure:"default_backend"`
	Azure          AzureStorageConfig `mapstructure:"azure"`
	S3             S3StorageConfig    `mapstructure:"s3"`
	GCS            GCSStorageConfig   `mapstructure:"gcs"`
	Local          LocalStorageConfig `mapstructure:"local"`
}

// AzureStorageConfig holds Azure Blob Storage configuration
type AzureStorageConfig struct {
	AccountName   string `mapstructure:"account_name"`
	AccountKey    string `mapstructure:"account_key"`
	ContainerName string `mapstructure:"container_name"`
}

// S3StorageConfig holds S3-compatible storage configuration
type S3StorageConfig struct {
	// Endpoint is the S3-compatible endpoint URL (optional, for MinIO etc.)
	Endpoint string `mapstructure:"endpoint"`
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`

	// AuthMethod is one of "default", "static", "oidc", "assume_role"
	AuthMethod string `mapstructure:"auth_method"`

	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	RoleARN              string `mapstructure:"role_arn"`
	RoleSessionName      string `mapstructure:"role_session_name"`
	ExternalID           string `mapstructure:"external_id"`
	WebIdentityTokenFile string `mapstructure:"web_identity_token_file"`
}

// GCSStorageConfig holds Google Cloud Storage configuration
type GCSStorageConfig struct {
	Bucket string `mapstructure:"bucket"`

	// AuthMethod is one of "default", "service_account", "workload_identity"
	AuthMethod      string `mapstructure:"auth_method"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`

	// Endpoint is an optional custom endpoint (for GCS emulators)
	Endpoint string `mapstructure:"endpoint"`
}

// LocalStorageConfig holds local filesystem storage configuration
type LocalStorageConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// RedisConfig holds the optional Redis connection used for shared rate limits.
// An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitingConfig holds rate limiting configuration for pages that call the upstream API
type RateLimitingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Backend is "memory" (per-process token bucket) or "redis" (shared across replicas)
	Backend           string `mapstructure:"backend"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	Burst             int    `mapstructure:"burst"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// ProfilingConfig holds profiling configuration
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// envKeys lists every key bound to an environment variable.
// AutomaticEnv() alone doesn't work with nested structs during Unmarshal.
var envKeys = []string{
	"server.host",
	"server.port",
	"server.base_url",
	"server.read_timeout",
	"server.write_timeout",

	"api.url",
	"api.timeout",
	"api.search_dataset",
	"api.search_schema",
	"api.page_size",

	"index.path",
	"issues.url",
	"content.path",

	"storage.default_backend",
	"storage.azure.account_name",
	"storage.azure.account_key",
	"storage.azure.container_name",
	"storage.s3.endpoint",
	"storage.s3.region",
	"storage.s3.bucket",
	"storage.s3.auth_method",
	"storage.s3.access_key_id",
	"storage.s3.secret_access_key",
	"storage.s3.role_arn",
	"storage.s3.role_session_name",
	"storage.s3.external_id",
	"storage.s3.web_identity_token_file",
	"storage.gcs.bucket",
	"storage.gcs.auth_method",
	"storage.gcs.credentials_file",
	"storage.gcs.credentials_json",
	"storage.gcs.endpoint",
	"storage.local.base_path",

	"redis.url",
	"redis.pool_size",
	"redis.min_idle_conns",
	"redis.dial_timeout",
	"redis.read_timeout",
	"redis.write_timeout",

	"security.cors.allowed_origins",
	"security.rate_limiting.enabled",
	"security.rate_limiting.backend",
	"security.rate_limiting.requests_per_minute",
	"security.rate_limiting.burst",
	"security.tls.enabled",
	"security.tls.cert_file",
	"security.tls.key_file",

	"logging.level",
	"logging.format",

	"telemetry.metrics.enabled",
	"telemetry.metrics.prometheus_port",
	"telemetry.profiling.enabled",
	"telemetry.profiling.port",
}

func bindEnvVars(v *viper.Viper) error {
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/sanctions-web")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SXW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Secrets may reference other environment variables as ${VAR_NAME}
	cfg.Storage.Azure.AccountKey = os.ExpandEnv(cfg.Storage.Azure.AccountKey)
	cfg.Storage.S3.AccessKeyID = os.ExpandEnv(cfg.Storage.S3.AccessKeyID)
	cfg.Storage.S3.SecretAccessKey = os.ExpandEnv(cfg.Storage.S3.SecretAccessKey)
	cfg.Redis.URL = os.ExpandEnv(cfg.Redis.URL)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("api.url", "https://api.opensanctions.org")
	v.SetDefault("api.timeout", "20s")
	v.SetDefault("api.search_dataset", "default")
	v.SetDefault("api.search_schema", "Thing")
	v.SetDefault("api.page_size", 25)

	v.SetDefault("index.path", "index.json")
	v.SetDefault("issues.url", "https://data.opensanctions.org/datasets/latest/default/issues.json")
	v.SetDefault("content.path", "./content")

	v.SetDefault("storage.default_backend", "local")
	v.SetDefault("storage.local.base_path", "./data")

	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.backend", "memory")
	v.SetDefault("security.rate_limiting.requests_per_minute", 60)
	v.SetDefault("security.rate_limiting.burst", 20)
	v.SetDefault("security.tls.enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)
	v.SetDefault("telemetry.profiling.enabled", false)
	v.SetDefault("telemetry.profiling.port", 6060)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}

	if err := validateHTTPURL("api.url", c.API.URL); err != nil {
		return err
	}
	if err := validateHTTPURL("issues.url", c.Issues.URL); err != nil {
		return err
	}
	if c.API.PageSize < 1 || c.API.PageSize > 500 {
		return fmt.Errorf("invalid api.page_size: %d (must be between 1 and 500)", c.API.PageSize)
	}
	if c.API.SearchDataset == "" {
		return fmt.Errorf("api.search_dataset is required")
	}
	if c.Index.Path == "" {
		return fmt.Errorf("index.path is required")
	}

	validBackends := map[string]bool{"azure": true, "s3": true, "gcs": true, "local": true}
	if !validBackends[c.Storage.DefaultBackend] {
		return fmt.Errorf("invalid storage backend: %s (must be azure, s3, gcs, or local)", c.Storage.DefaultBackend)
	}

	switch c.Storage.DefaultBackend {
	case "azure":
		if c.Storage.Azure.AccountName == "" {
			return fmt.Errorf("storage.azure.account_name is required when using Azure backend")
		}
		if c.Storage.Azure.AccountKey == "" {
			return fmt.Errorf("storage.azure.account_key is required when using Azure backend")
		}
		if c.Storage.Azure.ContainerName == "" {
			return fmt.Errorf("storage.azure.container_name is required when using Azure backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when using S3 backend")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when using S3 backend")
		}
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket is required when using GCS backend")
		}
	case "local":
		if c.Storage.Local.BasePath == "" {
			return fmt.Errorf("storage.local.base_path is required when using local backend")
		}
	}

	rl := c.Security.RateLimiting
	if rl.Enabled {
		if rl.Backend != "memory" && rl.Backend != "redis" {
			return fmt.Errorf("invalid rate limiting backend: %s (must be memory or redis)", rl.Backend)
		}
		if rl.Backend == "redis" && c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required when rate limiting uses the redis backend")
		}
		if rl.RequestsPerMinute < 1 {
			return fmt.Errorf("security.rate_limiting.requests_per_minute must be positive")
		}
	}

	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" {
			return fmt.Errorf("security.tls.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.key_file is required when TLS is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

func validateHTTPURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https", key)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s: missing host", key)
	}
	return nil
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PublicURL joins the site base URL with an absolute path such as /datasets/x/
func (c *ServerConfig) PublicURL(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}
