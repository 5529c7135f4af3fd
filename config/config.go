// Package config loads the scorecast runtime configuration from a YAML file
// with environment-variable overrides. Defaults are applied first, then the
// file, then the environment, so a bare process starts with a working
// in-memory setup.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/courtside/scorecast/events"
	"github.com/courtside/scorecast/logger"
)

// Broker and feeder implementation selectors.
const (
	// BrokerMemory selects the in-process broker.
	BrokerMemory = "memory"
	// BrokerRedis selects the redis-backed broker.
	BrokerRedis = "redis"

	// FeederFile selects the file-backed feeder.
	FeederFile = "file"
	// FeederRedis selects the redis-backed feeder.
	FeederRedis = "redis"
)

// Auth validator selectors.
const (
	// AuthStatic selects the shared-token validator.
	AuthStatic = "static"
	// AuthJWT selects the JWT validator.
	AuthJWT = "jwt"
)

// Config is the full runtime configuration tree.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Broker    BrokerConfig    `yaml:"broker"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// AppConfig selects the core implementations and their tuning knobs.
type AppConfig struct {
	// MessageBroker picks the broker implementation: memory or redis.
	MessageBroker string `yaml:"messageBroker" env:"SCORECAST_MESSAGE_BROKER"`
	// GameFeeder picks the feeder implementation: file or redis.
	GameFeeder string `yaml:"gameFeeder" env:"SCORECAST_GAME_FEEDER"`
	// GameDataDir is the directory holding recorded games for the file feeder.
	GameDataDir string `yaml:"gameDataDir" env:"SCORECAST_GAME_DATA_DIR"`
	// GameFileExt is the recorded-game file extension, "." prefixed if absent.
	GameFileExt string `yaml:"gameFileExt" env:"SCORECAST_GAME_FILE_EXT"`
	// RedisURL is the connection URL for the redis broker and feeder.
	RedisURL string `yaml:"redisUrl" env:"SCORECAST_REDIS_URL"`
	// DefaultGameSpeed is the default inter-emission interval in seconds.
	DefaultGameSpeed float64 `yaml:"defaultGameSpeed" env:"SCORECAST_DEFAULT_GAME_SPEED"`
	// PauseTimeoutSecs bounds how long a game stays paused before autoplay.
	PauseTimeoutSecs float64 `yaml:"pauseTimeoutSecs" env:"SCORECAST_PAUSE_TIMEOUT_SECS"`
	// ScoreBatchSize is the feeder read-ahead batch size.
	ScoreBatchSize int `yaml:"scoreBatchSize" env:"SCORECAST_SCORE_BATCH_SIZE"`
}

// BrokerConfig tunes the broker-to-room relay.
type BrokerConfig struct {
	// RelayChannels is the comma-separated channel set bridged into a game
	// room on join.
	RelayChannels string `yaml:"relay_channels" env:"SCORECAST_RELAY_CHANNELS"`
}

// ServerConfig tunes the client-facing and metrics listeners.
type ServerConfig struct {
	// Addr is the websocket and ops API listen address.
	Addr string `yaml:"addr" env:"SCORECAST_SERVER_ADDR"`
	// MetricsAddr is the prometheus exporter listen address.
	MetricsAddr string `yaml:"metricsAddr" env:"SCORECAST_METRICS_ADDR"`
	// AllowedOrigins whitelists websocket upgrade origins; empty allows all.
	AllowedOrigins []string `yaml:"allowedOrigins" env:"SCORECAST_ALLOWED_ORIGINS"`
	// MessageRateLimit caps inbound client messages per second per session.
	MessageRateLimit float64 `yaml:"messageRateLimit" env:"SCORECAST_MESSAGE_RATE_LIMIT"`
	// MessageRateBurst is the matching token-bucket burst size.
	MessageRateBurst int `yaml:"messageRateBurst" env:"SCORECAST_MESSAGE_RATE_BURST"`
}

// AuthConfig selects and parameterizes the token validator.
type AuthConfig struct {
	// Mode picks the validator implementation: static or jwt.
	Mode string `yaml:"mode" env:"SCORECAST_AUTH_MODE"`
	// StaticToken is the shared secret accepted by the static validator.
	StaticToken string `yaml:"staticToken" env:"SCORECAST_STATIC_TOKEN"`
	// JWTSecret signs and verifies HS256 tokens for the jwt validator.
	JWTSecret string `yaml:"jwtSecret" env:"SCORECAST_JWT_SECRET"`
}

// TelemetryConfig gates trace export.
type TelemetryConfig struct {
	// Enabled turns OTLP span export on.
	Enabled bool `yaml:"enabled" env:"SCORECAST_TELEMETRY_ENABLED"`
	// Endpoint is the OTLP/HTTP collector URL.
	Endpoint string `yaml:"endpoint" env:"SCORECAST_TELEMETRY_ENDPOINT"`
	// ServiceName names this process in exported traces.
	ServiceName string `yaml:"serviceName" env:"SCORECAST_TELEMETRY_SERVICE_NAME"`
}

// Default returns a Config populated with working defaults.
func Default() *Config {
	return &Config{
		App: AppConfig{
			MessageBroker:    BrokerMemory,
			GameFeeder:       FeederFile,
			GameDataDir:      "/data/games",
			GameFileExt:      ".json",
			RedisURL:         "redis://localhost:6379/0",
			DefaultGameSpeed: 1.0,
			PauseTimeoutSecs: 60,
			ScoreBatchSize:   30,
		},
		Broker: BrokerConfig{
			RelayChannels: "scores_update,controls",
		},
		Server: ServerConfig{
			Addr:             ":8080",
			MetricsAddr:      ":9091",
			MessageRateLimit: 20,
			MessageRateBurst: 40,
		},
		Auth: AuthConfig{
			Mode: AuthStatic,
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "http://localhost:4318",
			ServiceName: "scorecast",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and environment overrides, in that precedence order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize fixes up values that are tolerated but not canonical.
func (c *Config) normalize() {
	if ext := c.App.GameFileExt; ext != "" && !strings.HasPrefix(ext, ".") {
		logger.Warn("Game file extension missing leading dot, prepending", "ext", ext)
		c.App.GameFileExt = "." + ext
	}
}

// Validate rejects configurations the runtime cannot start with.
func (c *Config) Validate() error {
	switch c.App.MessageBroker {
	case BrokerMemory, BrokerRedis:
	default:
		return fmt.Errorf("unknown app.messageBroker %q (want %q or %q)", c.App.MessageBroker, BrokerMemory, BrokerRedis)
	}

	switch c.App.GameFeeder {
	case FeederFile, FeederRedis:
	default:
		return fmt.Errorf("unknown app.gameFeeder %q (want %q or %q)", c.App.GameFeeder, FeederFile, FeederRedis)
	}

	if c.App.DefaultGameSpeed <= 0 {
		return fmt.Errorf("app.defaultGameSpeed must be positive, got %v", c.App.DefaultGameSpeed)
	}
	if c.App.PauseTimeoutSecs <= 0 {
		return fmt.Errorf("app.pauseTimeoutSecs must be positive, got %v", c.App.PauseTimeoutSecs)
	}
	if c.App.ScoreBatchSize <= 0 {
		return fmt.Errorf("app.scoreBatchSize must be positive, got %d", c.App.ScoreBatchSize)
	}

	switch c.Auth.Mode {
	case AuthStatic:
	case AuthJWT:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwtSecret is required when auth.mode is %q", AuthJWT)
		}
	default:
		return fmt.Errorf("unknown auth.mode %q (want %q or %q)", c.Auth.Mode, AuthStatic, AuthJWT)
	}

	return nil
}

// DefaultInterval returns app.defaultGameSpeed as a duration.
func (c *AppConfig) DefaultInterval() time.Duration {
	return time.Duration(c.DefaultGameSpeed * float64(time.Second))
}

// PauseTimeout returns app.pauseTimeoutSecs as a duration.
func (c *AppConfig) PauseTimeout() time.Duration {
	return time.Duration(c.PauseTimeoutSecs * float64(time.Second))
}

// ParseRelayChannels parses broker.relay_channels into the channel set
// bridged on join. Any invalid entry falls the whole set back to the defaults
// with a logged error, so a typo degrades service predictably instead of
// silently dropping one channel.
func (c *BrokerConfig) ParseRelayChannels() []events.Channel {
	raw := strings.Split(c.RelayChannels, ",")
	channels := make([]events.Channel, 0, len(raw))
	for _, part := range raw {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ch, ok := events.ParseChannel(part)
		if !ok {
			logger.Error("Invalid relay channel in config, using defaults", "channel", part)
			return events.DefaultRelayChannels()
		}
		channels = append(channels, ch)
	}
	if len(channels) == 0 {
		return events.DefaultRelayChannels()
	}
	return channels
}
