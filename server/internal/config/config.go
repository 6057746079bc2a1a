package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/obsidianstack/slacknotify/server/internal/slack"
)

// Default values for the configuration.
const (
	DefaultHTTPPort         = 8080
	DefaultStorageDriver    = "sqlite"
	DefaultSQLiteDSN        = "file:slacknotify.db"
	DefaultKeyPrefix        = "slacknotify:sysnotify"
	DefaultDeliveryTimeout  = slack.DefaultTimeout
	DefaultHistoryTTL       = time.Hour
	DefaultFeedInterval     = 5 * time.Second
	DefaultBacklogSize      = 20
	DefaultKafkaGroupID     = "slacknotify"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultSysNotifyBackend = "storage"
)

// Config is the whole configuration file.
type Config struct {
	Server ServerConfig `yaml:"server"`

	// Notifications maps a notification name to its Slack settings.
	Notifications map[string]Notification `yaml:"notifications"`
}

// ServerConfig holds the runtime settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, /metrics and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// NodeID identifies this instance in system notifications.
	// Defaults to the hostname.
	NodeID string `yaml:"node_id"`

	Log                 LogConfig                 `yaml:"log"`
	Auth                AuthConfig                `yaml:"auth"`
	Storage             StorageConfig             `yaml:"storage"`
	SystemNotifications SystemNotificationsConfig `yaml:"system_notifications"`
	Delivery            DeliveryConfig            `yaml:"delivery"`
	History             HistoryConfig             `yaml:"history"`
	Feed                FeedConfig                `yaml:"feed"`
	Kafka               KafkaConfig               `yaml:"kafka"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: json | text.
	Format string `yaml:"format"`
}

// SlogLevel returns Level as a slog.Level. Unknown levels map to info.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// AuthConfig controls client authentication on the REST API.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// StorageConfig selects the SQL store for streams, messages and system
// notifications.
type StorageConfig struct {
	// Driver is one of: sqlite | postgres.
	Driver string `yaml:"driver"`

	// DSN is the data source name. DSNEnv, when set and DSN is empty, names
	// the environment variable holding it.
	DSN    string `yaml:"dsn"`
	DSNEnv string `yaml:"dsn_env"`
}

// SystemNotificationsConfig selects where operational notifications go.
type SystemNotificationsConfig struct {
	// Backend is one of: storage | redis.
	Backend string `yaml:"backend"`

	RedisAddr        string `yaml:"redis_addr"`
	RedisPasswordEnv string `yaml:"redis_password_env"`
	RedisDB          int    `yaml:"redis_db"`

	// KeyPrefix namespaces the redis keys.
	KeyPrefix string `yaml:"key_prefix"`
}

// RedisPassword returns the redis password resolved from the environment.
func (s SystemNotificationsConfig) RedisPassword() string {
	if s.RedisPasswordEnv == "" {
		return ""
	}
	return os.Getenv(s.RedisPasswordEnv)
}

// DeliveryConfig controls webhook requests.
type DeliveryConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// HistoryConfig controls in-memory delivery record retention.
type HistoryConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// FeedConfig controls the WebSocket delivery feed.
type FeedConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// KafkaConfig configures the optional notification request topic.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// Notification holds the settings of one Slack notification.
type Notification struct {
	// WebhookURL is the Slack Incoming Webhook URL. WebhookURLEnv, when set
	// and WebhookURL is empty, names the environment variable holding it.
	WebhookURL    string `yaml:"webhook_url"`
	WebhookURLEnv string `yaml:"webhook_url_env"`

	// Proxy is an optional scheme://[user:password@]host:port URI.
	Proxy    string `yaml:"proxy"`
	ProxyEnv string `yaml:"proxy_env"`

	Color     string `yaml:"color"`
	IconEmoji string `yaml:"icon_emoji"`
	IconURL   string `yaml:"icon_url"`
	UserName  string `yaml:"user_name"`
	Channel   string `yaml:"channel"`

	// CustomMessage and BacklogItemMessage are optional text/template sources.
	CustomMessage      string `yaml:"custom_message"`
	BacklogItemMessage string `yaml:"backlog_item_message"`

	// NotifyChannel prefixes the message with @channel.
	NotifyChannel bool `yaml:"notify_channel"`
	LinkNames     bool `yaml:"link_names"`

	// UIURL is the base URL of the web interface, used for deep links.
	UIURL string `yaml:"ui_url"`

	// BacklogSize caps how many backlog messages are looked up (default 20).
	BacklogSize int `yaml:"backlog_size"`
}

// Names returns the configured notification names, sorted.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Notifications))
	for n := range c.Notifications {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	resolve(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	host, _ := os.Hostname()
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			NodeID:   host,
			Log:      LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
			Storage:  StorageConfig{Driver: DefaultStorageDriver},
			SystemNotifications: SystemNotificationsConfig{
				Backend:   DefaultSysNotifyBackend,
				KeyPrefix: DefaultKeyPrefix,
			},
			Delivery: DeliveryConfig{Timeout: DefaultDeliveryTimeout},
			History:  HistoryConfig{TTL: DefaultHistoryTTL},
			Feed:     FeedConfig{Interval: DefaultFeedInterval},
			Kafka:    KafkaConfig{GroupID: DefaultKafkaGroupID},
		},
	}
}

// resolve fills values that come from the environment or depend on other
// fields.
func resolve(cfg *Config) {
	s := &cfg.Server
	if s.Storage.DSN == "" && s.Storage.DSNEnv != "" {
		s.Storage.DSN = os.Getenv(s.Storage.DSNEnv)
	}
	if s.Storage.DSN == "" && s.Storage.Driver == "sqlite" {
		s.Storage.DSN = DefaultSQLiteDSN
	}

	for name, n := range cfg.Notifications {
		if n.WebhookURL == "" && n.WebhookURLEnv != "" {
			n.WebhookURL = os.Getenv(n.WebhookURLEnv)
		}
		if n.Proxy == "" && n.ProxyEnv != "" {
			n.Proxy = os.Getenv(n.ProxyEnv)
		}
		if n.BacklogSize == 0 {
			n.BacklogSize = DefaultBacklogSize
		}
		cfg.Notifications[name] = n
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log.level %q unknown: want debug|info|warn|error", s.Log.Level)
	}
	switch s.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("server.log.format %q unknown: want json|text", s.Log.Format)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	switch s.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("server.storage.driver %q unknown: want sqlite|postgres", s.Storage.Driver)
	}
	if s.Storage.DSN == "" {
		return fmt.Errorf("server.storage.dsn is required for driver %q", s.Storage.Driver)
	}
	switch s.SystemNotifications.Backend {
	case "storage":
	case "redis":
		if s.SystemNotifications.RedisAddr == "" {
			return fmt.Errorf("server.system_notifications.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("server.system_notifications.backend %q unknown: want storage|redis", s.SystemNotifications.Backend)
	}
	if s.Delivery.Timeout <= 0 {
		return fmt.Errorf("server.delivery.timeout must be positive")
	}
	if s.History.TTL < 0 {
		return fmt.Errorf("server.history.ttl must not be negative")
	}
	if s.Feed.Interval <= 0 {
		return fmt.Errorf("server.feed.interval must be positive")
	}
	if s.Kafka.Enabled {
		if len(s.Kafka.Brokers) == 0 {
			return fmt.Errorf("server.kafka.brokers is required when kafka is enabled")
		}
		if s.Kafka.Topic == "" {
			return fmt.Errorf("server.kafka.topic is required when kafka is enabled")
		}
	}

	for _, name := range cfg.Names() {
		if err := cfg.Notifications[name].Validate(); err != nil {
			return fmt.Errorf("notifications.%s: %w", name, err)
		}
	}
	return nil
}

// Validate checks the webhook and proxy settings. Errors are *slack.ConfigError.
func (n Notification) Validate() error {
	if _, err := slack.ParseWebhookURL(n.WebhookURL); err != nil {
		return err
	}
	if _, err := slack.ParseProxy(n.Proxy); err != nil {
		return err
	}
	if n.BacklogSize < 0 {
		return &slack.ConfigError{Field: "backlog_size", Reason: "must not be negative"}
	}
	return nil
}
