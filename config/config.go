package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/kiko-poker/backend/internal/models"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Session   SessionConfig
	WebSocket WebSocketConfig
	Redis     RedisConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	GinMode            string
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level  string
	Format string // json or console
}

// SessionConfig bounds session lifetimes and sets the vote scale.
type SessionConfig struct {
	MaxDuration   time.Duration
	SweepInterval time.Duration
	ExpiredGrace  time.Duration
	Scale         string // comma-separated cards
}

// WebSocketConfig holds per-connection transport settings.
type WebSocketConfig struct {
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	SendBuffer      int
	MaxMessageBytes int64
}

// RedisConfig holds Redis connection settings for the event mirror.
// An empty Addr disables the mirror.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// Enabled reports whether events should be mirrored to Redis.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
			GinMode:            getEnv("GIN_MODE", "release"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Session: SessionConfig{
			MaxDuration:   getEnvDuration("SESSION_MAX_DURATION", 24*time.Hour),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 15*time.Second),
			ExpiredGrace:  getEnvDuration("SESSION_EXPIRED_GRACE", 10*time.Minute),
			Scale:         getEnv("VOTE_SCALE", models.DefaultScale.String()),
		},
		WebSocket: WebSocketConfig{
			PingInterval:    getEnvDuration("WS_PING_INTERVAL", 30*time.Second),
			PongWait:        getEnvDuration("WS_PONG_WAIT", 60*time.Second),
			WriteWait:       getEnvDuration("WS_WRITE_WAIT", 10*time.Second),
			SendBuffer:      getEnvInt("WS_SEND_BUFFER", 64),
			MaxMessageBytes: int64(getEnvInt("WS_MAX_MESSAGE_BYTES", 4096)),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", ""),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			ChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "kiko:session:"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	durations := map[string]time.Duration{
		"SESSION_MAX_DURATION":   c.Session.MaxDuration,
		"SESSION_SWEEP_INTERVAL": c.Session.SweepInterval,
		"SESSION_EXPIRED_GRACE":  c.Session.ExpiredGrace,
		"WS_PING_INTERVAL":       c.WebSocket.PingInterval,
		"WS_PONG_WAIT":           c.WebSocket.PongWait,
		"WS_WRITE_WAIT":          c.WebSocket.WriteWait,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	if c.WebSocket.PongWait <= c.WebSocket.PingInterval {
		return fmt.Errorf("WS_PONG_WAIT (%s) must be longer than WS_PING_INTERVAL (%s)", c.WebSocket.PongWait, c.WebSocket.PingInterval)
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive, got %d", c.WebSocket.SendBuffer)
	}
	if c.WebSocket.MaxMessageBytes <= 0 {
		return fmt.Errorf("WS_MAX_MESSAGE_BYTES must be positive, got %d", c.WebSocket.MaxMessageBytes)
	}
	if _, err := models.ParseScale(c.Session.Scale); err != nil {
		return fmt.Errorf("VOTE_SCALE: %w", err)
	}
	return nil
}

// VoteScale parses the configured scale.
func (c *Config) VoteScale() (models.Scale, error) {
	return models.ParseScale(c.Session.Scale)
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
