package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Storage     StorageConfig   `toml:"storage"`
	Crawler     CrawlerConfig   `toml:"crawler"`
	Proxy       ProxyConfig     `toml:"proxy"`
	Alerts      AlertsConfig    `toml:"alerts"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Export      ExportConfig    `toml:"export"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host" validate:"required"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

type StorageConfig struct {
	SQLite     SQLiteConfig     `toml:"sqlite"`
	Cache      CacheConfig      `toml:"cache"`
	Encryption EncryptionConfig `toml:"-"` // environment only, never from file
}

// SQLiteConfig holds settings for the intel database
type SQLiteConfig struct {
	Path        string `toml:"path" validate:"required"`
	CacheSizeKB int    `toml:"cache_size_kb"`
	BusyTimeout string `toml:"busy_timeout"` // e.g. "5s"
}

// CacheConfig holds settings for the raw content cache (Badger)
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// EncryptionConfig controls at-rest encryption of sensitive intel columns.
// Populated from UMBRA_ENCRYPTION_ENABLED / UMBRA_ENCRYPTION_KEY only.
type EncryptionConfig struct {
	Enabled bool
	Key     string
}

// CrawlerConfig contains the crawl engine parameters
type CrawlerConfig struct {
	MaxWorkers          int      `toml:"max_workers" validate:"min=1,max=64"`   // worker pool size
	MaxPages            int      `toml:"max_pages" validate:"min=1"`            // stop enqueuing once visited reaches this
	MaxDepth            int      `toml:"max_depth" validate:"min=0"`            // default per-domain depth cap
	MaxRetries          int      `toml:"max_retries" validate:"min=0,max=10"`   // transport retries per URL
	TimeoutSeconds      int      `toml:"timeout_seconds" validate:"min=1"`      // per-request timeout
	QueueTimeoutSeconds int      `toml:"queue_timeout_seconds" validate:"min=1"` // frontier pop timeout
	SessionRecycle      int      `toml:"session_recycle" validate:"min=1"`      // fetches before the HTTP client is rebuilt
	RequestDelayMS      int      `toml:"request_delay_ms"`                      // default per-domain delay
	Autostart           bool     `toml:"autostart"`                             // start crawling at boot when seeds exist
	Seeds               []string `toml:"seeds"`
	IgnoredExtensions   []string `toml:"ignored_extensions"`
}

// ProxyConfig describes the SOCKS endpoint used for all outbound fetches
type ProxyConfig struct {
	Host         string `toml:"host" validate:"required"`
	Port         int    `toml:"port" validate:"min=1,max=65535"`
	FallbackPort int    `toml:"fallback_port" validate:"min=1,max=65535"`
	Scheme       string `toml:"scheme"` // "socks5" or "socks5h"; hostnames always resolve at the proxy
	VerifyURL    string `toml:"verify_url"`
}

// AlertsConfig contains alert manager settings. Webhook targets come from the
// environment only (see applyEnvOverrides) so credentials stay out of files.
type AlertsConfig struct {
	HistoryLimit         int      `toml:"history_limit" validate:"min=10"`
	NotifySeverities     []string `toml:"notify_severities"`
	WebhookRatePerMinute int      `toml:"webhook_rate_per_minute" validate:"min=1"`
	WatchlistPath        string   `toml:"watchlist_path"`
	WalletThresholdBTC   float64  `toml:"wallet_threshold_btc"`
	Webhooks             WebhookTargets `toml:"-"`
}

// WebhookTargets holds the notifier endpoints read from the environment.
// An empty field is a silent no-op for that channel.
type WebhookTargets struct {
	GenericURL       string
	SlackURL         string
	DiscordURL       string
	TelegramBotToken string
	TelegramChatID   string
}

// SchedulerConfig drives the cron maintenance jobs
type SchedulerConfig struct {
	Enabled        bool   `toml:"enabled"`
	StatsCron      string `toml:"stats_cron"`
	PurgeCron      string `toml:"purge_cron"`
	VacuumCron     string `toml:"vacuum_cron"`
	RetentionDays  int    `toml:"retention_days"` // 0 disables the purge job
	PurgeAnonymize bool   `toml:"purge_anonymize"`
}

type ExportConfig struct {
	Dir string `toml:"dir" validate:"required"`
}

// WebSocketConfig contains settings for the live event stream
type WebSocketConfig struct {
	AllowedEvents     []string          `toml:"allowed_events"`     // empty allows all
	ThrottleIntervals map[string]string `toml:"throttle_intervals"` // event type -> duration string
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters live here; umbra.toml only needs user-facing overrides.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8086,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Path:        "./data/umbra.db",
				CacheSizeKB: 64000,
				BusyTimeout: "5s",
			},
			Cache: CacheConfig{
				Enabled: true,
				Path:    "./data/cache",
			},
		},
		Crawler: CrawlerConfig{
			MaxWorkers:          4,
			MaxPages:            500,
			MaxDepth:            3,
			MaxRetries:          3,
			TimeoutSeconds:      90,
			QueueTimeoutSeconds: 10,
			SessionRecycle:      40,
			RequestDelayMS:      2000,
			Autostart:           true,
			Seeds:               []string{},
			IgnoredExtensions: []string{
				".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".webp", ".bmp",
				".css", ".js", ".woff", ".woff2", ".ttf",
				".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt",
				".zip", ".rar", ".7z", ".tar", ".gz", ".bz2",
				".mp3", ".mp4", ".avi", ".mkv", ".ogg", ".wav",
				".exe", ".bin", ".iso", ".img", ".apk", ".dmg",
			},
		},
		Proxy: ProxyConfig{
			Host:         "127.0.0.1",
			Port:         9050,
			FallbackPort: 9150,
			Scheme:       "socks5h",
			VerifyURL:    "https://check.torproject.org/api/ip",
		},
		Alerts: AlertsConfig{
			HistoryLimit:         1000,
			NotifySeverities:     []string{"CRITICAL", "HIGH"},
			WebhookRatePerMinute: 10,
			WatchlistPath:        "./watchlists.yaml",
			WalletThresholdBTC:   10.0,
		},
		Scheduler: SchedulerConfig{
			Enabled:        true,
			StatsCron:      "*/5 * * * *",
			PurgeCron:      "0 3 * * *",
			VacuumCron:     "0 4 * * 0",
			RetentionDays:  0,
			PurgeAnonymize: true,
		},
		Export: ExportConfig{
			Dir: "./exports",
		},
		WebSocket: WebSocketConfig{
			AllowedEvents: []string{},
			ThrottleIntervals: map[string]string{
				"crawl_progress": "1s",
			},
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files. Later files override
// earlier files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies UMBRA_-prefixed environment variables to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("UMBRA_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server
	if port := os.Getenv("UMBRA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("UMBRA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging
	if level := os.Getenv("UMBRA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("UMBRA_LOG_OUTPUT"); output != "" {
		outputs := splitCSV(output)
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Storage
	if path := os.Getenv("UMBRA_SQLITE_PATH"); path != "" {
		config.Storage.SQLite.Path = path
	}
	if path := os.Getenv("UMBRA_CACHE_PATH"); path != "" {
		config.Storage.Cache.Path = path
	}
	if enabled := os.Getenv("UMBRA_CACHE_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Storage.Cache.Enabled = e
		}
	}

	// Encryption of sensitive columns (environment only, never persisted)
	if enabled := os.Getenv("UMBRA_ENCRYPTION_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Storage.Encryption.Enabled = e
		}
	}
	if key := os.Getenv("UMBRA_ENCRYPTION_KEY"); key != "" {
		config.Storage.Encryption.Key = key
	}

	// Crawler
	if workers := os.Getenv("UMBRA_MAX_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Crawler.MaxWorkers = w
		}
	}
	if pages := os.Getenv("UMBRA_MAX_PAGES"); pages != "" {
		if p, err := strconv.Atoi(pages); err == nil {
			config.Crawler.MaxPages = p
		}
	}
	if depth := os.Getenv("UMBRA_MAX_DEPTH"); depth != "" {
		if d, err := strconv.Atoi(depth); err == nil {
			config.Crawler.MaxDepth = d
		}
	}
	if retries := os.Getenv("UMBRA_MAX_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.Crawler.MaxRetries = r
		}
	}
	if timeout := os.Getenv("UMBRA_TIMEOUT_SECONDS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			config.Crawler.TimeoutSeconds = t
		}
	}
	if seeds := os.Getenv("UMBRA_SEEDS"); seeds != "" {
		parsed := splitCSV(seeds)
		if len(parsed) > 0 {
			config.Crawler.Seeds = parsed
		}
	}

	// Proxy
	if host := os.Getenv("UMBRA_PROXY_HOST"); host != "" {
		config.Proxy.Host = host
	}
	if port := os.Getenv("UMBRA_PROXY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Proxy.Port = p
		}
	}
	if port := os.Getenv("UMBRA_PROXY_FALLBACK_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Proxy.FallbackPort = p
		}
	}

	// Alerts: severity filter and webhook targets
	if severities := os.Getenv("UMBRA_ALERT_SEVERITIES"); severities != "" {
		parsed := splitCSV(severities)
		if len(parsed) > 0 {
			config.Alerts.NotifySeverities = parsed
		}
	}
	if url := os.Getenv("UMBRA_WEBHOOK_URL"); url != "" {
		config.Alerts.Webhooks.GenericURL = url
	}
	if url := os.Getenv("UMBRA_SLACK_WEBHOOK"); url != "" {
		config.Alerts.Webhooks.SlackURL = url
	}
	if url := os.Getenv("UMBRA_DISCORD_WEBHOOK"); url != "" {
		config.Alerts.Webhooks.DiscordURL = url
	}
	if token := os.Getenv("UMBRA_TELEGRAM_BOT_TOKEN"); token != "" {
		config.Alerts.Webhooks.TelegramBotToken = token
	}
	if chatID := os.Getenv("UMBRA_TELEGRAM_CHAT_ID"); chatID != "" {
		config.Alerts.Webhooks.TelegramChatID = chatID
	}
	if path := os.Getenv("UMBRA_WATCHLIST_PATH"); path != "" {
		config.Alerts.WatchlistPath = path
	}

	// Export
	if dir := os.Getenv("UMBRA_EXPORT_DIR"); dir != "" {
		config.Export.Dir = dir
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
// Flags have the highest priority.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks the configuration against its validation tags plus the
// cross-field rules a tag cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch strings.ToLower(c.Proxy.Scheme) {
	case "", "socks5", "socks5h":
	default:
		return fmt.Errorf("invalid configuration: proxy scheme %q (want socks5 or socks5h)", c.Proxy.Scheme)
	}

	for _, sev := range c.Alerts.NotifySeverities {
		switch strings.ToUpper(sev) {
		case "CRITICAL", "HIGH", "MEDIUM", "LOW":
		default:
			return fmt.Errorf("invalid configuration: unknown alert severity %q", sev)
		}
	}

	if c.Storage.Encryption.Enabled && len(c.Storage.Encryption.Key) < 16 {
		return fmt.Errorf("invalid configuration: encryption enabled but key is missing or too short")
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func splitCSV(s string) []string {
	result := []string{}
	for _, part := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
