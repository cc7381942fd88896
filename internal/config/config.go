package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultSourceType      = "serial"
	DefaultSerialPort      = "/dev/ttyUSB0"
	DefaultBaudRate        = 9600
	DefaultReadTimeout     = time.Second
	DefaultModelDir        = "models"
	DefaultHistoryCapacity = 100
	DefaultPollInterval    = 1000 * time.Millisecond
	DefaultHTTPPort        = 8080
	DefaultMQTTTopic       = "faulttwin"
	DefaultMQTTBufferSize  = 100
	DefaultMQTTKeepAlive   = 30 * time.Second
	DefaultAlertCooldown   = 15 * time.Minute
)

// Config is the top-level configuration. Fields map 1:1 to
// config.example.yaml.
type Config struct {
	Log          LogConfig          `yaml:"log"`
	Source       SourceConfig       `yaml:"source"`
	Models       ModelsConfig       `yaml:"models"`
	History      HistoryConfig      `yaml:"history"`
	Presentation PresentationConfig `yaml:"presentation"`
	Server       ServerConfig       `yaml:"server"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	Alerts       AlertsConfig       `yaml:"alerts"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: json | text.
	Format string `yaml:"format"`
}

// SlogLevel returns Level as a slog.Level. validate has already rejected
// unknown names, so the fallback is never hit for a loaded config.
func (l LogConfig) SlogLevel() slog.Level {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lv
}

// SourceConfig describes where sensor lines come from.
type SourceConfig struct {
	// Type is one of: serial | tcp | file | stdin.
	Type string `yaml:"type"`

	// Port is the serial device path. Used when Type == "serial".
	Port string `yaml:"port"`

	// BaudRate is the serial line speed. Used when Type == "serial".
	BaudRate int `yaml:"baud_rate"`

	// Address is host:port of a line-oriented TCP bridge. Used when Type == "tcp".
	Address string `yaml:"address"`

	// Path is a recorded capture to replay. Used when Type == "file".
	Path string `yaml:"path"`

	// ReadTimeout bounds each blocking read so shutdown is observed promptly.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// ReplayInterval paces file and stdin replay; zero replays as fast as
	// the pipeline accepts lines.
	ReplayInterval time.Duration `yaml:"replay_interval"`
}

// ModelsConfig locates the model artifacts. File names are relative to Dir
// unless absolute; empty names use the defaults from internal/model.
type ModelsConfig struct {
	Dir        string `yaml:"dir"`
	Classifier string `yaml:"classifier"`
	Regressor  string `yaml:"regressor"`
	Labels     string `yaml:"labels"`
	Features   string `yaml:"features"`
}

// HistoryConfig sizes the rolling window.
type HistoryConfig struct {
	// Capacity is the number of results kept (default 100).
	Capacity int `yaml:"capacity"`
}

// PresentationConfig controls the poller.
type PresentationConfig struct {
	// PollInterval is how often the presentation layer snapshots the
	// history (default 1s).
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// HTTPPort serves the REST API, WebSocket stream and /metrics (default 8080).
	HTTPPort int `yaml:"http_port"`
}

// MQTTConfig configures the optional status publisher.
type MQTTConfig struct {
	Enabled bool `yaml:"enabled"`

	// Broker is host:port of an MQTT v5 broker.
	Broker string `yaml:"broker"`

	// ClientID defaults to "faulttwin-<uuid>" when empty.
	ClientID string `yaml:"client_id"`

	// Topic is the prefix; status cards go to <Topic>/status.
	Topic string `yaml:"topic"`

	// QoS is 0, 1 or 2.
	QoS byte `yaml:"qos"`

	// BufferSize is the number of pending status messages held while the
	// broker is unreachable. The oldest are dropped first.
	BufferSize int `yaml:"buffer_size"`

	Username string `yaml:"username"`

	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`

	KeepAlive time.Duration `yaml:"keep_alive"`
}

// Password returns the broker password resolved from the environment.
func (m MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "health_index < 50",
	// "temperature > 42", "fault == Overvoltage", "status == Faulty".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a config document.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Source: SourceConfig{
			Type:        DefaultSourceType,
			Port:        DefaultSerialPort,
			BaudRate:    DefaultBaudRate,
			ReadTimeout: DefaultReadTimeout,
		},
		Models:       ModelsConfig{Dir: DefaultModelDir},
		History:      HistoryConfig{Capacity: DefaultHistoryCapacity},
		Presentation: PresentationConfig{PollInterval: DefaultPollInterval},
		Server:       ServerConfig{HTTPPort: DefaultHTTPPort},
		MQTT: MQTTConfig{
			Topic:      DefaultMQTTTopic,
			BufferSize: DefaultMQTTBufferSize,
			KeepAlive:  DefaultMQTTKeepAlive,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q unknown: want json|text", cfg.Log.Format)
	}

	src := cfg.Source
	switch src.Type {
	case "serial":
		if src.Port == "" {
			return fmt.Errorf("source.port is required for serial sources")
		}
		if src.BaudRate <= 0 {
			return fmt.Errorf("source.baud_rate must be positive")
		}
	case "tcp":
		if src.Address == "" {
			return fmt.Errorf("source.address is required for tcp sources")
		}
	case "file":
		if src.Path == "" {
			return fmt.Errorf("source.path is required for file sources")
		}
	case "stdin":
	default:
		return fmt.Errorf("source.type %q unknown: want serial|tcp|file|stdin", src.Type)
	}
	if src.ReadTimeout <= 0 {
		return fmt.Errorf("source.read_timeout must be positive")
	}
	if src.ReplayInterval < 0 {
		return fmt.Errorf("source.replay_interval must not be negative")
	}

	if cfg.Models.Dir == "" {
		return fmt.Errorf("models.dir is required")
	}
	if cfg.History.Capacity <= 0 {
		return fmt.Errorf("history.capacity must be positive")
	}
	if cfg.Presentation.PollInterval <= 0 {
		return fmt.Errorf("presentation.poll_interval must be positive")
	}
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic must not be empty")
		}
		if strings.ContainsAny(cfg.MQTT.Topic, "+#") {
			return fmt.Errorf("mqtt.topic %q must not contain wildcards", cfg.MQTT.Topic)
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos %d out of range [0, 2]", cfg.MQTT.QoS)
		}
		if cfg.MQTT.BufferSize <= 0 {
			return fmt.Errorf("mqtt.buffer_size must be positive")
		}
	}

	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("alerts.rules[%d] %q: condition is required", i, r.Name)
		}
		if r.Cooldown < 0 {
			return fmt.Errorf("alerts.rules[%d] %q: cooldown must not be negative", i, r.Name)
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}
