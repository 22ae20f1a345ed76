package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config application configuration structure
type Config struct {
	Environment EnvironmentConfig       `yaml:"environment" mapstructure:"environment"`
	Log         LogConfig               `yaml:"log" mapstructure:"log"`
	Clients     map[string]ClientConfig `yaml:"clients" mapstructure:"clients"`
	Auth        AuthConfig              `yaml:"authentication" mapstructure:"authentication"`

	GlobalVariables      map[string]interface{} `yaml:"globalVariables" mapstructure:"globalVariables"`
	EnvironmentVariables map[string]string      `yaml:"environmentVariables" mapstructure:"environmentVariables"`
	GlobalHeaders        map[string]string      `yaml:"globalHeaders" mapstructure:"globalHeaders"`

	HealthChecks []HealthCheckConfig `yaml:"healthChecks" mapstructure:"healthChecks"`
	Performance  PerformanceConfig   `yaml:"performance" mapstructure:"performance"`
	Reporting    ReportingConfig     `yaml:"reporting" mapstructure:"reporting"`
	Graceful     GracefulConfig      `yaml:"gracefulMode" mapstructure:"gracefulMode"`
}

// EnvironmentConfig describes the environment under test
type EnvironmentConfig struct {
	Name       string `yaml:"name" mapstructure:"name"`
	Datacenter string `yaml:"datacenter" mapstructure:"datacenter"`
	Cluster    string `yaml:"cluster" mapstructure:"cluster"`
}

// LogConfig log configuration
type LogConfig struct {
	Level       string        `yaml:"level" mapstructure:"level"`
	Mode        string        `yaml:"mode" mapstructure:"mode"`
	FileLogging FileLogConfig `yaml:"file_logging" mapstructure:"file_logging"`
}

// FileLogConfig file log configuration
type FileLogConfig struct {
	Enable     bool   `yaml:"enable" mapstructure:"enable"`
	Path       string `yaml:"path" mapstructure:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// ClientConfig configures one named client of any kind
type ClientConfig struct {
	Kind    string `yaml:"kind" mapstructure:"kind"`
	BaseURL string `yaml:"baseURL" mapstructure:"baseURL"`
	// Endpoint is the GraphQL endpoint, URL the WebSocket address.
	Endpoint string            `yaml:"endpoint" mapstructure:"endpoint"`
	URL      string            `yaml:"url" mapstructure:"url"`
	Timeout  time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	Headers  map[string]string `yaml:"headers" mapstructure:"headers"`
	Retry    RetryConfig       `yaml:"retry" mapstructure:"retry"`
	TLS      TLSConfig         `yaml:"tls" mapstructure:"tls"`

	// WebSocket specific
	ReconnectAttempts int           `yaml:"reconnect_attempts" mapstructure:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay" mapstructure:"reconnect_delay"`
	PingInterval      time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`

	// Database specific
	Type     string            `yaml:"type" mapstructure:"type"`
	Host     string            `yaml:"host" mapstructure:"host"`
	Port     int               `yaml:"port" mapstructure:"port"`
	Database string            `yaml:"database" mapstructure:"database"`
	Username string            `yaml:"username" mapstructure:"username"`
	Password string            `yaml:"password" mapstructure:"password"`
	Pool     PoolConfig        `yaml:"pool" mapstructure:"pool"`
	Options  map[string]string `yaml:"options" mapstructure:"options"`
}

// RetryConfig controls transient-failure retries
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
}

// TLSConfig TLS options for HTTP clients
type TLSConfig struct {
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// PoolConfig database connection pool sizing
type PoolConfig struct {
	MaxOpen     int           `yaml:"max_open" mapstructure:"max_open"`
	MaxIdle     int           `yaml:"max_idle" mapstructure:"max_idle"`
	MaxLifetime time.Duration `yaml:"max_lifetime" mapstructure:"max_lifetime"`
}

// AuthConfig configures the suite-level authentication flow
type AuthConfig struct {
	Client             string                 `yaml:"client" mapstructure:"client"`
	Method             string                 `yaml:"method" mapstructure:"method"`
	Endpoint           string                 `yaml:"endpoint" mapstructure:"endpoint"`
	Body               map[string]interface{} `yaml:"body" mapstructure:"body"`
	Extractors         map[string]string      `yaml:"extractors" mapstructure:"extractors"`
	AuthHeaderName     string                 `yaml:"authHeaderName" mapstructure:"authHeaderName"`
	AuthScheme         string                 `yaml:"authScheme" mapstructure:"authScheme"`
	AutoApplyToClients []string               `yaml:"autoApplyToClients" mapstructure:"autoApplyToClients"`
	FallbackToken      string                 `yaml:"fallback" mapstructure:"fallback"`
}

// Enabled reports whether an authentication flow is configured.
func (a *AuthConfig) Enabled() bool {
	return a.Client != "" && a.Endpoint != ""
}

// HealthCheckConfig one startup probe
type HealthCheckConfig struct {
	Name           string `yaml:"name" mapstructure:"name"`
	Client         string `yaml:"client" mapstructure:"client"`
	Endpoint       string `yaml:"endpoint" mapstructure:"endpoint"`
	ExpectedStatus int    `yaml:"expectedStatus" mapstructure:"expectedStatus"`
}

// PerformanceConfig tunes the request execution optimizations
type PerformanceConfig struct {
	Deduplication DedupConfig     `yaml:"deduplication" mapstructure:"deduplication"`
	Caching       CacheConfig     `yaml:"caching" mapstructure:"caching"`
	Batching      BatchConfig     `yaml:"batching" mapstructure:"batching"`
	Streaming     StreamingConfig `yaml:"streaming" mapstructure:"streaming"`
}

// DedupConfig in-flight request deduplication parameters
type DedupConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// CacheConfig response cache parameters
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxSize       int           `yaml:"max_size" mapstructure:"max_size"`
	DefaultTTL    time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	Strategy      string        `yaml:"strategy" mapstructure:"strategy"`
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// BatchConfig request batching parameters
type BatchConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxBatchSize int           `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout" mapstructure:"batch_timeout"`
}

// StreamingConfig streamed response parameters
type StreamingConfig struct {
	Enabled        bool  `yaml:"enabled" mapstructure:"enabled"`
	ChunkSize      int   `yaml:"chunk_size" mapstructure:"chunk_size"`
	MaxMemoryBytes int64 `yaml:"max_memory_bytes" mapstructure:"max_memory_bytes"`
}

// ReportingConfig report output parameters
type ReportingConfig struct {
	Enabled   bool     `yaml:"enabled" mapstructure:"enabled"`
	OutputDir string   `yaml:"outputDir" mapstructure:"outputDir"`
	Formats   []string `yaml:"formats" mapstructure:"formats"`
	Filename  string   `yaml:"filename" mapstructure:"filename"`
	Title     string   `yaml:"title" mapstructure:"title"`
	Subtitle  string   `yaml:"subtitle" mapstructure:"subtitle"`
}

// GracefulConfig strict vs permissive behavior
type GracefulConfig struct {
	Strict          bool `yaml:"strict" mapstructure:"strict"`
	EnableWarnings  bool `yaml:"enableWarnings" mapstructure:"enableWarnings"`
	EnableFallbacks bool `yaml:"enableFallbacks" mapstructure:"enableFallbacks"`
	SilentFailures  bool `yaml:"silentFailures" mapstructure:"silentFailures"`
}

// LoadConfig load configuration
// If v is nil, a new viper instance will be created
func LoadConfig(configPath string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)

	v.SetEnvPrefix("RESTIFIED")
	v.AutomaticEnv()

	v.SetConfigName("restified")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.restified")
		v.AddConfigPath("/etc/restified")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file found, defaults apply
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	applyDefaults(&config, v)
	applyReservedEnv(&config)

	// Declared environment variables become visible to the env. scope
	for key, value := range config.EnvironmentVariables {
		if key == "" {
			continue
		}
		_ = os.Setenv(key, value)
	}

	return &config, nil
}

// applyDefaults apply default values to zero-value fields in the struct
// (Unmarshal doesn't apply defaults to zero-value fields)
func applyDefaults(cfg *Config, v *viper.Viper) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = v.GetString("log.level")
	}
	if cfg.Log.Mode == "" {
		cfg.Log.Mode = v.GetString("log.mode")
	}
	cfg.Log.FileLogging.Enable = v.GetBool("log.file_logging.enable")
	cfg.Log.FileLogging.Compress = v.GetBool("log.file_logging.compress")
	if cfg.Log.FileLogging.Path == "" {
		cfg.Log.FileLogging.Path = v.GetString("log.file_logging.path")
	}
	if cfg.Log.FileLogging.MaxSizeMB == 0 {
		cfg.Log.FileLogging.MaxSizeMB = v.GetInt("log.file_logging.max_size_mb")
	}
	if cfg.Log.FileLogging.MaxBackups == 0 {
		cfg.Log.FileLogging.MaxBackups = v.GetInt("log.file_logging.max_backups")
	}
	if cfg.Log.FileLogging.MaxAgeDays == 0 {
		cfg.Log.FileLogging.MaxAgeDays = v.GetInt("log.file_logging.max_age_days")
	}

	if cfg.Auth.AuthHeaderName == "" {
		cfg.Auth.AuthHeaderName = v.GetString("authentication.authHeaderName")
	}
	if cfg.Auth.AuthScheme == "" {
		cfg.Auth.AuthScheme = v.GetString("authentication.authScheme")
	}
	if cfg.Auth.Method == "" {
		cfg.Auth.Method = v.GetString("authentication.method")
	}
	if len(cfg.Auth.AutoApplyToClients) == 0 {
		cfg.Auth.AutoApplyToClients = v.GetStringSlice("authentication.autoApplyToClients")
	}

	cfg.Performance.Deduplication.Enabled = v.GetBool("performance.deduplication.enabled")
	if cfg.Performance.Deduplication.TTL == 0 {
		cfg.Performance.Deduplication.TTL = v.GetDuration("performance.deduplication.ttl")
	}
	cfg.Performance.Caching.Enabled = v.GetBool("performance.caching.enabled")
	if cfg.Performance.Caching.MaxSize == 0 {
		cfg.Performance.Caching.MaxSize = v.GetInt("performance.caching.max_size")
	}
	if cfg.Performance.Caching.DefaultTTL == 0 {
		cfg.Performance.Caching.DefaultTTL = v.GetDuration("performance.caching.default_ttl")
	}
	if cfg.Performance.Caching.Strategy == "" {
		cfg.Performance.Caching.Strategy = v.GetString("performance.caching.strategy")
	}
	if cfg.Performance.Caching.SweepInterval == 0 {
		cfg.Performance.Caching.SweepInterval = v.GetDuration("performance.caching.sweep_interval")
	}
	cfg.Performance.Batching.Enabled = v.GetBool("performance.batching.enabled")
	if cfg.Performance.Batching.MaxBatchSize == 0 {
		cfg.Performance.Batching.MaxBatchSize = v.GetInt("performance.batching.max_batch_size")
	}
	if cfg.Performance.Batching.BatchTimeout == 0 {
		cfg.Performance.Batching.BatchTimeout = v.GetDuration("performance.batching.batch_timeout")
	}
	cfg.Performance.Streaming.Enabled = v.GetBool("performance.streaming.enabled")
	if cfg.Performance.Streaming.ChunkSize == 0 {
		cfg.Performance.Streaming.ChunkSize = v.GetInt("performance.streaming.chunk_size")
	}
	if cfg.Performance.Streaming.MaxMemoryBytes == 0 {
		cfg.Performance.Streaming.MaxMemoryBytes = v.GetInt64("performance.streaming.max_memory_bytes")
	}

	cfg.Reporting.Enabled = v.GetBool("reporting.enabled")
	if cfg.Reporting.OutputDir == "" {
		cfg.Reporting.OutputDir = v.GetString("reporting.outputDir")
	}
	if len(cfg.Reporting.Formats) == 0 {
		cfg.Reporting.Formats = v.GetStringSlice("reporting.formats")
	}
	if cfg.Reporting.Filename == "" {
		cfg.Reporting.Filename = v.GetString("reporting.filename")
	}
	if cfg.Reporting.Title == "" {
		cfg.Reporting.Title = v.GetString("reporting.title")
	}

	cfg.Graceful.Strict = v.GetBool("gracefulMode.strict")
	cfg.Graceful.EnableWarnings = v.GetBool("gracefulMode.enableWarnings")
	cfg.Graceful.EnableFallbacks = v.GetBool("gracefulMode.enableFallbacks")
	cfg.Graceful.SilentFailures = v.GetBool("gracefulMode.silentFailures")

	for name, client := range cfg.Clients {
		if client.Kind == "" {
			client.Kind = "http"
		}
		if client.Timeout == 0 {
			client.Timeout = v.GetDuration("client_defaults.timeout")
		}
		if client.Retry.MaxAttempts == 0 {
			client.Retry.MaxAttempts = v.GetInt("client_defaults.retry.max_attempts")
		}
		if client.Retry.BaseDelay == 0 {
			client.Retry.BaseDelay = v.GetDuration("client_defaults.retry.base_delay")
		}
		if client.Retry.MaxDelay == 0 {
			client.Retry.MaxDelay = v.GetDuration("client_defaults.retry.max_delay")
		}
		cfg.Clients[name] = client
	}
}

// applyReservedEnv overrides graceful-mode and reporting options from the
// reserved flat environment variables.
func applyReservedEnv(cfg *Config) {
	if val, ok := lookupBool("RESTIFIED_STRICT_MODE"); ok {
		cfg.Graceful.Strict = val
	}
	if val, ok := lookupBool("RESTIFIED_ENABLE_WARNINGS"); ok {
		cfg.Graceful.EnableWarnings = val
	}
	if val, ok := lookupBool("RESTIFIED_ENABLE_FALLBACKS"); ok {
		cfg.Graceful.EnableFallbacks = val
	}
	if val, ok := lookupBool("RESTIFIED_SILENT_FAILURES"); ok {
		cfg.Graceful.SilentFailures = val
	}
	if val, ok := lookupBool("GENERATE_REPORTS"); ok {
		cfg.Reporting.Enabled = val
	}
	if val := os.Getenv("REPORT_OUTPUT_DIR"); val != "" {
		cfg.Reporting.OutputDir = val
	}
	if val := os.Getenv("REPORT_FILENAME"); val != "" {
		cfg.Reporting.Filename = val
	}
	if val := os.Getenv("REPORT_TITLE"); val != "" {
		cfg.Reporting.Title = val
	}
	if val := os.Getenv("REPORT_SUBTITLE"); val != "" {
		cfg.Reporting.Subtitle = val
	}
}

func lookupBool(key string) (bool, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	val, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, false
	}
	return val, true
}

// setDefaults set default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.mode", "console")
	v.SetDefault("log.file_logging.enable", false)
	v.SetDefault("log.file_logging.path", "./restified.log")
	v.SetDefault("log.file_logging.max_size_mb", 10)
	v.SetDefault("log.file_logging.max_backups", 5)
	v.SetDefault("log.file_logging.max_age_days", 30)
	v.SetDefault("log.file_logging.compress", true)

	v.SetDefault("client_defaults.timeout", "30s")
	v.SetDefault("client_defaults.retry.max_attempts", 3)
	v.SetDefault("client_defaults.retry.base_delay", "1s")
	v.SetDefault("client_defaults.retry.max_delay", "30s")

	v.SetDefault("authentication.method", "POST")
	v.SetDefault("authentication.authHeaderName", "Authorization")
	v.SetDefault("authentication.authScheme", "Bearer")
	v.SetDefault("authentication.autoApplyToClients", []string{"all"})

	v.SetDefault("performance.deduplication.enabled", true)
	v.SetDefault("performance.deduplication.ttl", "30s")
	v.SetDefault("performance.caching.enabled", true)
	v.SetDefault("performance.caching.max_size", 1000)
	v.SetDefault("performance.caching.default_ttl", "5m")
	v.SetDefault("performance.caching.strategy", "lru")
	v.SetDefault("performance.caching.sweep_interval", "60s")
	v.SetDefault("performance.batching.enabled", false)
	v.SetDefault("performance.batching.max_batch_size", 10)
	v.SetDefault("performance.batching.batch_timeout", "100ms")
	v.SetDefault("performance.streaming.enabled", false)
	v.SetDefault("performance.streaming.chunk_size", 64*1024)
	v.SetDefault("performance.streaming.max_memory_bytes", int64(64*1024*1024))

	v.SetDefault("reporting.enabled", true)
	v.SetDefault("reporting.outputDir", "./reports")
	v.SetDefault("reporting.formats", []string{"console", "json"})
	v.SetDefault("reporting.filename", "restified-report")
	v.SetDefault("reporting.title", "Restified Test Report")

	v.SetDefault("gracefulMode.strict", false)
	v.SetDefault("gracefulMode.enableWarnings", true)
	v.SetDefault("gracefulMode.enableFallbacks", true)
	v.SetDefault("gracefulMode.silentFailures", false)
}

// Validate configuration
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	switch strings.ToLower(c.Log.Mode) {
	case "", "console", "json":
		if c.Log.Mode == "" {
			c.Log.Mode = "console"
		}
	default:
		return fmt.Errorf("log mode must be 'console' or 'json'")
	}

	if c.Log.FileLogging.Enable {
		if c.Log.FileLogging.Path == "" {
			return fmt.Errorf("log file path cannot be empty when file logging is enabled")
		}
		if c.Log.FileLogging.MaxSizeMB < 1 {
			return fmt.Errorf("log file max size must be at least 1MB")
		}
	}

	for name, client := range c.Clients {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("client name cannot be empty")
		}
		switch strings.ToLower(client.Kind) {
		case "", "http":
			if client.BaseURL == "" {
				return fmt.Errorf("client %q: baseURL cannot be empty", name)
			}
		case "graphql":
			if client.Endpoint == "" {
				return fmt.Errorf("client %q: endpoint cannot be empty", name)
			}
		case "websocket":
			if client.URL == "" {
				return fmt.Errorf("client %q: url cannot be empty", name)
			}
		case "database":
			if client.Type == "" {
				return fmt.Errorf("client %q: database type cannot be empty", name)
			}
		default:
			return fmt.Errorf("client %q: kind must be http, graphql, websocket, or database", name)
		}
		if client.Timeout < 0 {
			return fmt.Errorf("client %q: timeout cannot be negative", name)
		}
		if client.Retry.MaxAttempts < 0 {
			return fmt.Errorf("client %q: retry max attempts cannot be negative", name)
		}
	}

	if c.Auth.Enabled() {
		if _, ok := c.Clients[c.Auth.Client]; !ok {
			return fmt.Errorf("authentication client %q is not configured", c.Auth.Client)
		}
		switch strings.ToUpper(c.Auth.Method) {
		case "", "GET", "POST", "PUT":
		default:
			return fmt.Errorf("authentication method %q is not supported", c.Auth.Method)
		}
	}

	for i, hc := range c.HealthChecks {
		if hc.Name == "" {
			return fmt.Errorf("health check %d name cannot be empty", i+1)
		}
		if hc.Client == "" {
			return fmt.Errorf("health check %q client cannot be empty", hc.Name)
		}
		if hc.ExpectedStatus != 0 && (hc.ExpectedStatus < 100 || hc.ExpectedStatus > 599) {
			return fmt.Errorf("health check %q expected status must be between 100 and 599", hc.Name)
		}
	}

	switch strings.ToLower(c.Performance.Caching.Strategy) {
	case "", "lru", "lfu", "fifo":
		if c.Performance.Caching.Strategy == "" {
			c.Performance.Caching.Strategy = "lru"
		}
	default:
		return fmt.Errorf("cache strategy must be lru, lfu, or fifo")
	}
	if c.Performance.Caching.MaxSize < 1 {
		return fmt.Errorf("cache max size must be at least 1")
	}
	if c.Performance.Caching.DefaultTTL < 0 {
		return fmt.Errorf("cache default TTL cannot be negative")
	}
	if c.Performance.Batching.MaxBatchSize < 1 {
		return fmt.Errorf("batch max size must be at least 1")
	}
	if c.Performance.Batching.BatchTimeout <= 0 {
		return fmt.Errorf("batch timeout must be greater than zero")
	}
	if c.Performance.Streaming.MaxMemoryBytes < 0 {
		return fmt.Errorf("streaming max memory cannot be negative")
	}

	if c.Reporting.Enabled {
		if c.Reporting.OutputDir == "" {
			return fmt.Errorf("reporting output directory cannot be empty")
		}
		for _, format := range c.Reporting.Formats {
			switch strings.ToLower(format) {
			case "console", "json":
			default:
				return fmt.Errorf("unsupported report format: %s", format)
			}
		}
	}

	return nil
}
