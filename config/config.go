// Package config loads application configuration from environment
// variables, with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all tunables for the server and the session hub.
type Config struct {
	// ListenAddr is the HTTP/WebSocket listen address.
	ListenAddr string
	// RedisAddr is the redis host:port used by the room directory and the
	// message history store. Empty selects the in-memory implementations.
	RedisAddr string
	// JWTSecret signs/validates access tokens (HS256).
	JWTSecret string
	// AudioDir is where synthesized audio files are written.
	AudioDir string
	// AudioURLPrefix is the public mount for synthesized audio files.
	AudioURLPrefix string
	// LogLevel selects the zap level (debug, info, warn, error).
	LogLevel string

	// IdleTimeout closes a session when no frame is observed for this long.
	IdleTimeout time.Duration
	// WriteTimeout bounds a single outbound frame write.
	WriteTimeout time.Duration
	// OutboundQueueSize bounds the per-session outbound event queue.
	OutboundQueueSize int
	// ChunkQueueSize bounds the per-session pending audio chunk queue.
	ChunkQueueSize int
	// MaxConcurrentTranscriptions bounds in-flight transcription calls
	// across all sessions.
	MaxConcurrentTranscriptions int

	// MinChunkBytes drops audio frames below a useful size.
	MinChunkBytes int
	// MinConfidence drops transcriptions below this score.
	MinConfidence float64

	// DefaultRoomCapacity applies when a room is created without one.
	DefaultRoomCapacity int
	// HistoryLimit bounds retained message log entries per room.
	HistoryLimit int
}

// Load reads configuration from the environment. A .env file in the
// working directory is honoured when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg := &Config{
		ListenAddr:                  getEnv("APP_LISTEN_ADDR", ":8080"),
		RedisAddr:                   getEnv("APP_REDIS_ADDR", ""),
		JWTSecret:                   getEnv("APP_JWT_SECRET", "dev-secret-key-change-in-production"),
		AudioDir:                    getEnv("APP_AUDIO_DIR", "static/audio"),
		AudioURLPrefix:              getEnv("APP_AUDIO_URL_PREFIX", "/static/audio"),
		LogLevel:                    getEnv("APP_LOG_LEVEL", "info"),
		IdleTimeout:                 getEnvDuration("APP_IDLE_TIMEOUT", 60*time.Second),
		WriteTimeout:                getEnvDuration("APP_WRITE_TIMEOUT", 10*time.Second),
		OutboundQueueSize:           getEnvInt("APP_OUTBOUND_QUEUE_SIZE", 64),
		ChunkQueueSize:              getEnvInt("APP_CHUNK_QUEUE_SIZE", 16),
		MaxConcurrentTranscriptions: getEnvInt("APP_MAX_CONCURRENT_TRANSCRIPTIONS", 4),
		MinChunkBytes:               getEnvInt("APP_MIN_CHUNK_BYTES", 100),
		MinConfidence:               getEnvFloat("APP_MIN_CONFIDENCE", 0.2),
		DefaultRoomCapacity:         getEnvInt("APP_DEFAULT_ROOM_CAPACITY", 10),
		HistoryLimit:                getEnvInt("APP_HISTORY_LIMIT", 200),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.OutboundQueueSize < 1 {
		return fmt.Errorf("outbound queue size must be positive, got %d", c.OutboundQueueSize)
	}
	if c.ChunkQueueSize < 1 {
		return fmt.Errorf("chunk queue size must be positive, got %d", c.ChunkQueueSize)
	}
	if c.MaxConcurrentTranscriptions < 1 {
		return fmt.Errorf("max concurrent transcriptions must be positive, got %d", c.MaxConcurrentTranscriptions)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be within [0,1], got %f", c.MinConfidence)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %s", c.IdleTimeout)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
