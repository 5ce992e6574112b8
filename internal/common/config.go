package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production" - controls test URL validation
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Logging     LoggingConfig     `toml:"logging"`
	Secrets     SecretsConfig     `toml:"secrets"`
	Provider    ProviderConfig    `toml:"provider"`
	Automation  AutomationConfig  `toml:"automation"`
	Dispatcher  DispatcherConfig  `toml:"dispatcher"`
	WebSocket   WebSocketConfig   `toml:"websocket"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// SecretsConfig controls seeding of the key/value secret store
type SecretsConfig struct {
	EnvFile string `toml:"env_file"` // Path to a .env file loaded into the KV store at startup
}

// ProviderConfig contains remote browser provider configuration.
// Credentials are referenced by KV key name and resolved at acquire time;
// the values never appear in config files.
type ProviderConfig struct {
	BaseURL        string `toml:"base_url"`         // Provider API base URL
	APIKeyName     string `toml:"api_key_name"`     // KV key holding the provider API key
	ProjectIDName  string `toml:"project_id_name"`  // KV key holding the provider project id
	RequestTimeout string `toml:"request_timeout"`  // e.g. "30s" - session creation timeout
	ReleaseTimeout string `toml:"release_timeout"`  // e.g. "10s" - best-effort release timeout
	RateLimit      string `toml:"rate_limit"`       // e.g. "1s" - minimum time between provider requests
}

// AutomationConfig bounds the remote automation steps. Connect and
// navigation are enforced independently.
type AutomationConfig struct {
	ConnectTimeout    string `toml:"connect_timeout"`    // e.g. "60s" - CDP connect bound
	NavigationTimeout string `toml:"navigation_timeout"` // e.g. "60s" - page navigation bound
	SettleTime        string `toml:"settle_time"`        // e.g. "2s" - wait for JavaScript to render before extraction
}

// DispatcherConfig controls the submission handoff queue
type DispatcherConfig struct {
	QueueSize    int    `toml:"queue_size"`    // Bounded queue capacity; a full queue rejects submissions
	Concurrency  int    `toml:"concurrency"`   // Number of executor workers
	DrainTimeout string `toml:"drain_timeout"` // e.g. "30s" - shutdown drain bound
}

// WebSocketConfig contains configuration for WebSocket streaming
type WebSocketConfig struct {
	MinLevel        string   `toml:"min_level"`        // Minimum log level to broadcast ("debug", "info", "warn", "error")
	ExcludePatterns []string `toml:"exclude_patterns"` // Log message patterns to exclude from broadcasting
	StatusThrottle  string   `toml:"status_throttle"`  // Minimum interval between status broadcasts per job (e.g. "250ms")
}

// MaintenanceConfig controls scheduled storage upkeep
type MaintenanceConfig struct {
	Enabled        bool    `toml:"enabled"`
	Schedule       string  `toml:"schedule"`         // Standard 5-field cron expression
	GCDiscardRatio float64 `toml:"gc_discard_ratio"` // Badger value-log GC discard ratio (0..1)
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in viso.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development", // Default to development mode - allows test URLs
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",                     // Info level for production (debug|info|warn|error)
			Format: "text",                     // Human-readable text format (text|json)
			Output: []string{"stdout", "file"}, // Log to both console and file
		},
		Secrets: SecretsConfig{
			EnvFile: ".env",
		},
		Provider: ProviderConfig{
			BaseURL:        "https://api.browserbase.com",
			APIKeyName:     "browserbase_api_key",
			ProjectIDName:  "browserbase_project_id",
			RequestTimeout: "30s",
			ReleaseTimeout: "10s",
			RateLimit:      "1s", // Respects provider session-creation quotas
		},
		Automation: AutomationConfig{
			ConnectTimeout:    "60s",
			NavigationTimeout: "60s",
			SettleTime:        "2s",
		},
		Dispatcher: DispatcherConfig{
			QueueSize:    64,
			Concurrency:  4,
			DrainTimeout: "30s",
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info", // Default: info level and above
			ExcludePatterns: []string{
				"WebSocket client connected",
				"WebSocket client disconnected",
				"HTTP request",
				"HTTP response",
			},
			StatusThrottle: "250ms",
		},
		Maintenance: MaintenanceConfig{
			Enabled:        true,
			Schedule:       "*/30 * * * *", // Every 30 minutes
			GCDiscardRatio: 0.5,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env -> CLI. Later files override
// earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	// Start with defaults
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Apply environment variables (overrides all file configs)
	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: VISO_ENV, fallback: GO_ENV)
	if env := os.Getenv("VISO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("VISO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("VISO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("VISO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if reset := os.Getenv("VISO_BADGER_RESET_ON_STARTUP"); reset != "" {
		if r, err := strconv.ParseBool(reset); err == nil {
			config.Storage.Badger.ResetOnStartup = r
		}
	}

	// Logging configuration
	if level := os.Getenv("VISO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("VISO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("VISO_LOG_OUTPUT"); output != "" {
		// Split comma-separated output types
		outputs := []string{}
		for _, o := range splitString(output, ",") {
			trimmed := trimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
	// Secrets configuration
	if envFile := os.Getenv("VISO_SECRETS_ENV_FILE"); envFile != "" {
		config.Secrets.EnvFile = envFile
	}

	// Provider configuration
	if baseURL := os.Getenv("VISO_PROVIDER_BASE_URL"); baseURL != "" {
		config.Provider.BaseURL = baseURL
	}
	if apiKeyName := os.Getenv("VISO_PROVIDER_API_KEY_NAME"); apiKeyName != "" {
		config.Provider.APIKeyName = apiKeyName
	}
	if projectIDName := os.Getenv("VISO_PROVIDER_PROJECT_ID_NAME"); projectIDName != "" {
		config.Provider.ProjectIDName = projectIDName
	}
	if requestTimeout := os.Getenv("VISO_PROVIDER_REQUEST_TIMEOUT"); requestTimeout != "" {
		if _, err := time.ParseDuration(requestTimeout); err == nil {
			config.Provider.RequestTimeout = requestTimeout
		}
	}
	if releaseTimeout := os.Getenv("VISO_PROVIDER_RELEASE_TIMEOUT"); releaseTimeout != "" {
		if _, err := time.ParseDuration(releaseTimeout); err == nil {
			config.Provider.ReleaseTimeout = releaseTimeout
		}
	}
	if rateLimit := os.Getenv("VISO_PROVIDER_RATE_LIMIT"); rateLimit != "" {
		if _, err := time.ParseDuration(rateLimit); err == nil {
			config.Provider.RateLimit = rateLimit
		}
	}

	// Automation configuration
	if connectTimeout := os.Getenv("VISO_AUTOMATION_CONNECT_TIMEOUT"); connectTimeout != "" {
		if _, err := time.ParseDuration(connectTimeout); err == nil {
			config.Automation.ConnectTimeout = connectTimeout
		}
	}
	if navigationTimeout := os.Getenv("VISO_AUTOMATION_NAVIGATION_TIMEOUT"); navigationTimeout != "" {
		if _, err := time.ParseDuration(navigationTimeout); err == nil {
			config.Automation.NavigationTimeout = navigationTimeout
		}
	}
	if settleTime := os.Getenv("VISO_AUTOMATION_SETTLE_TIME"); settleTime != "" {
		if _, err := time.ParseDuration(settleTime); err == nil {
			config.Automation.SettleTime = settleTime
		}
	}

	// Dispatcher configuration
	if queueSize := os.Getenv("VISO_DISPATCHER_QUEUE_SIZE"); queueSize != "" {
		if qs, err := strconv.Atoi(queueSize); err == nil && qs > 0 {
			config.Dispatcher.QueueSize = qs
		}
	}
	if concurrency := os.Getenv("VISO_DISPATCHER_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil && c > 0 {
			config.Dispatcher.Concurrency = c
		}
	}
	if drainTimeout := os.Getenv("VISO_DISPATCHER_DRAIN_TIMEOUT"); drainTimeout != "" {
		if _, err := time.ParseDuration(drainTimeout); err == nil {
			config.Dispatcher.DrainTimeout = drainTimeout
		}
	}

	// WebSocket configuration
	if minLevel := os.Getenv("VISO_WEBSOCKET_MIN_LEVEL"); minLevel != "" {
		config.WebSocket.MinLevel = minLevel
	}
	if excludePatterns := os.Getenv("VISO_WEBSOCKET_EXCLUDE_PATTERNS"); excludePatterns != "" {
		// Split comma-separated patterns
		patterns := []string{}
		for _, p := range splitString(excludePatterns, ",") {
			trimmed := trimSpace(p)
			if trimmed != "" {
				patterns = append(patterns, trimmed)
			}
		}
		if len(patterns) > 0 {
			config.WebSocket.ExcludePatterns = patterns
		}
	}
	if statusThrottle := os.Getenv("VISO_WEBSOCKET_STATUS_THROTTLE"); statusThrottle != "" {
		if _, err := time.ParseDuration(statusThrottle); err == nil {
			config.WebSocket.StatusThrottle = statusThrottle
		}
	}

	// Maintenance configuration
	if enabled := os.Getenv("VISO_MAINTENANCE_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Maintenance.Enabled = e
		}
	}
	if schedule := os.Getenv("VISO_MAINTENANCE_SCHEDULE"); schedule != "" {
		config.Maintenance.Schedule = schedule
	}
	if ratio := os.Getenv("VISO_MAINTENANCE_GC_DISCARD_RATIO"); ratio != "" {
		if r, err := strconv.ParseFloat(ratio, 64); err == nil && r > 0 && r < 1 {
			config.Maintenance.GCDiscardRatio = r
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks the loaded configuration for values the service cannot
// start with. Parse failures in duration fields fall back to defaults at the
// accessor level and are not validation errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Storage.Badger.Path == "" {
		return fmt.Errorf("storage.badger.path must not be empty")
	}
	if c.Provider.APIKeyName == "" || c.Provider.ProjectIDName == "" {
		return fmt.Errorf("provider credential key names must not be empty")
	}
	if c.Dispatcher.QueueSize < 1 {
		return fmt.Errorf("dispatcher.queue_size must be positive, got %d", c.Dispatcher.QueueSize)
	}
	if c.Dispatcher.Concurrency < 1 {
		return fmt.Errorf("dispatcher.concurrency must be positive, got %d", c.Dispatcher.Concurrency)
	}
	if c.Maintenance.Enabled {
		if err := ValidateMaintenanceSchedule(c.Maintenance.Schedule); err != nil {
			return fmt.Errorf("maintenance.schedule: %w", err)
		}
	}
	return nil
}

// ValidateMaintenanceSchedule validates a standard 5-field cron expression
func ValidateMaintenanceSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// Duration accessors parse the string duration fields, falling back to the
// given default when unset or malformed.

func (p ProviderConfig) RequestTimeoutOr(def time.Duration) time.Duration {
	return parseDurationOr(p.RequestTimeout, def)
}

func (p ProviderConfig) ReleaseTimeoutOr(def time.Duration) time.Duration {
	return parseDurationOr(p.ReleaseTimeout, def)
}

func (p ProviderConfig) RateLimitOr(def time.Duration) time.Duration {
	return parseDurationOr(p.RateLimit, def)
}

func (a AutomationConfig) ConnectTimeoutOr(def time.Duration) time.Duration {
	return parseDurationOr(a.ConnectTimeout, def)
}

func (a AutomationConfig) NavigationTimeoutOr(def time.Duration) time.Duration {
	return parseDurationOr(a.NavigationTimeout, def)
}

func (a AutomationConfig) SettleTimeOr(def time.Duration) time.Duration {
	return parseDurationOr(a.SettleTime, def)
}

func (d DispatcherConfig) DrainTimeoutOr(def time.Duration) time.Duration {
	return parseDurationOr(d.DrainTimeout, def)
}

func (w WebSocketConfig) StatusThrottleOr(def time.Duration) time.Duration {
	return parseDurationOr(w.StatusThrottle, def)
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Helper functions for string manipulation
func splitString(s, sep string) []string {
	result := []string{}
	start := 0
	for i := 0; i < len(s); i++ {
		if i+len(sep) <= len(s) && s[i:i+len(sep)] == sep {
			result = append(result, s[start:i])
			start = i + len(sep)
			i = start - 1
		}
	}
	result = append(result, s[start:])
	return result
}

func trimSpace(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// AllowTestURLs returns true if test URLs (localhost, 127.0.0.1, etc.) are
// allowed as automation targets. Test URLs are only allowed in development.
func (c *Config) AllowTestURLs() bool {
	return !c.IsProduction()
}
