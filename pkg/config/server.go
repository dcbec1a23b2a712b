package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultServerConfigPath is where the receiver daemon looks for its config
// unless WHM2BUNNY_CONFIG points elsewhere.
const DefaultServerConfigPath = "/etc/whm2bunny/whm2bunny.yaml"

// ServerConfig holds the receiver daemon configuration.
type ServerConfig struct {
	Server    HTTPConfig      `yaml:"server"`
	Secret    string          `yaml:"secret"`
	Bunny     BunnyConfig     `yaml:"bunny"`
	State     StateConfig     `yaml:"state"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Logging   LoggingConfig   `yaml:"logging"`
	OTel      OTelConfig      `yaml:"otel"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// BunnyConfig holds Bunny.net API and provisioning settings.
type BunnyConfig struct {
	APIKey             string   `yaml:"api_key"`
	BaseURL            string   `yaml:"base_url"`
	ReverseProxyIP     string   `yaml:"reverse_proxy_ip"`
	OriginShieldRegion string   `yaml:"origin_shield_region"`
	Nameserver1        string   `yaml:"nameserver1"`
	Nameserver2        string   `yaml:"nameserver2"`
	SOAEmail           string   `yaml:"soa_email"`
	Regions            []string `yaml:"regions"`
}

// StateConfig holds provisioning state persistence settings.
type StateConfig struct {
	FilePath string `yaml:"file_path"`
}

// TelegramConfig holds Telegram notification settings.
type TelegramConfig struct {
	Enabled  bool                  `yaml:"enabled"`
	BotToken string                `yaml:"bot_token"`
	ChatID   string                `yaml:"chat_id"`
	Events   []string              `yaml:"events"`
	Summary  TelegramSummaryConfig `yaml:"summary"`
}

// TelegramSummaryConfig holds scheduled summary settings.
type TelegramSummaryConfig struct {
	Enabled                 bool   `yaml:"enabled"`
	Schedule                string `yaml:"schedule"`
	WeeklySchedule          string `yaml:"weekly_schedule"`
	Timezone                string `yaml:"timezone"`
	IncludeTopBandwidth     int    `yaml:"include_top_bandwidth"`
	BandwidthAlertThreshold int    `yaml:"bandwidth_alert_threshold"`
}

// RateLimitConfig holds webhook endpoint rate limiting settings. Rate
// limiting is disabled when RedisURL is empty.
type RateLimitConfig struct {
	RedisURL          string        `yaml:"redis_url"`
	RedisPassword     string        `yaml:"redis_password"`
	RedisDB           int           `yaml:"redis_db"`
	RequestsPerWindow int           `yaml:"requests_per_window"`
	WindowDuration    time.Duration `yaml:"window_duration"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// OTelConfig holds OpenTelemetry tracing settings.
type OTelConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Insecure       bool   `yaml:"insecure"`
}

// DefaultServerConfig returns a ServerConfig with all defaults set.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: HTTPConfig{
			Host:            "127.0.0.1",
			Port:            9090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Secret: DefaultSecret,
		Bunny: BunnyConfig{
			BaseURL:            "https://api.bunny.net",
			OriginShieldRegion: "SG",
			Nameserver1:        "ns1.mordenhost.com",
			Nameserver2:        "ns2.mordenhost.com",
			SOAEmail:           "hostmaster@mordenhost.com",
			Regions:            []string{"asia"},
		},
		State: StateConfig{
			FilePath: "/var/lib/whm2bunny/state.json",
		},
		Telegram: TelegramConfig{
			Events: []string{
				"provisioning_success",
				"provisioning_failed",
				"ssl_issued",
				"bandwidth_alert",
				"deprovisioned",
				"subdomain_provisioned",
			},
			Summary: TelegramSummaryConfig{
				Enabled:                 true,
				Schedule:                "0 9 * * *",
				WeeklySchedule:          "0 9 * * 1",
				Timezone:                "Asia/Jakarta",
				IncludeTopBandwidth:     20,
				BandwidthAlertThreshold: 50,
			},
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 60,
			WindowDuration:    time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		OTel: OTelConfig{
			Endpoint:       "localhost:4317",
			ServiceName:    "whm2bunny",
			ServiceVersion: "1.0.0",
			Insecure:       true,
		},
	}
}

// LoadServerConfig loads the receiver configuration from the YAML file at
// path (or the WHM2BUNNY_CONFIG / default location when path is empty),
// applies environment overrides, and validates the result. A missing file is
// not an error; env vars and defaults still apply.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()

	if path == "" {
		path = getEnv("WHM2BUNNY_CONFIG", DefaultServerConfigPath)
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *ServerConfig) applyEnvOverrides() {
	c.Server.Host = getEnv("WHM2BUNNY_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("WHM2BUNNY_PORT", c.Server.Port)
	c.Server.ShutdownTimeout = getEnvDuration("WHM2BUNNY_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Secret = getEnv("WHM2BUNNY_SECRET", c.Secret)
	c.Bunny.APIKey = getEnv("WHM2BUNNY_BUNNY_API_KEY", c.Bunny.APIKey)
	c.Bunny.BaseURL = getEnv("WHM2BUNNY_BUNNY_BASE_URL", c.Bunny.BaseURL)
	c.State.FilePath = getEnv("WHM2BUNNY_STATE_FILE", c.State.FilePath)
	c.RateLimit.RedisURL = getEnv("WHM2BUNNY_REDIS_URL", c.RateLimit.RedisURL)
	c.Logging.Level = getEnv("WHM2BUNNY_LOG_LEVEL", c.Logging.Level)
	c.OTel.Enabled = getEnvBool("WHM2BUNNY_OTEL_ENABLED", c.OTel.Enabled)
	c.OTel.Endpoint = getEnv("WHM2BUNNY_OTEL_ENDPOINT", c.OTel.Endpoint)
}

// Validate checks if the configuration is valid.
func (c *ServerConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Secret == "" {
		return fmt.Errorf("webhook secret is required")
	}
	if c.State.FilePath == "" {
		return fmt.Errorf("state file path is required")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram bot token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram chat id is required when telegram is enabled")
		}
	}
	if c.OTel.Enabled && c.OTel.Endpoint == "" {
		return fmt.Errorf("otel endpoint is required when otel is enabled")
	}
	return nil
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
