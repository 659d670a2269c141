package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

// RateLimitConfig defines the parameters for per-connection frame rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the gateway settings, decoded from the environment.
type Config struct {
	Host                    string        `env:"HOST"`
	Port                    int           `env:"PORT,default=8080"`
	AllowedOrigins          string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize          int64         `env:"MAX_MESSAGE_SIZE,default=8192"`
	SendBufferSize          int           `env:"SEND_BUFFER_SIZE,default=256"`
	RateLimitBurst          int           `env:"RATE_LIMIT_BURST,default=5"`
	RateLimitRefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
	HandshakeTimeout        time.Duration `env:"HANDSHAKE_TIMEOUT,default=10s"`
	ShutdownTimeout         time.Duration `env:"SHUTDOWN_TIMEOUT,default=30s"`
	JWTSecret               string        `env:"JWT_SECRET,required=true"`
	JWTIssuer               string        `env:"JWT_ISSUER"`
	TokenCookie             string        `env:"TOKEN_COOKIE,default=token"`
	BadgerFilepath          string        `env:"BADGER_FILEPATH,required=true"`
	HistoryLimit            int           `env:"HISTORY_LIMIT,default=50"`
	LogLevel                string        `env:"LOG_LEVEL,default=INFO"`
}

// DefaultConfig returns the settings used when nothing is configured. The
// secret and the database path have no sensible default and stay empty.
func DefaultConfig() Config {
	return Config{
		Port:                    8080,
		AllowedOrigins:          "http://localhost:8080",
		MaxMessageSize:          8192,
		SendBufferSize:          256,
		RateLimitBurst:          5,
		RateLimitRefillInterval: time.Second,
		HandshakeTimeout:        10 * time.Second,
		ShutdownTimeout:         30 * time.Second,
		TokenCookie:             "token",
		HistoryLimit:            50,
		LogLevel:                "INFO",
	}
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("load server config: %w", err)
	}
	return cfg.Sanitize(), nil
}

// Sanitize replaces non-positive limits with their defaults.
func (c Config) Sanitize() Config {
	def := DefaultConfig()
	if c.Port <= 0 {
		c.Port = def.Port
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = def.SendBufferSize
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = def.RateLimitBurst
	}
	if c.RateLimitRefillInterval <= 0 {
		c.RateLimitRefillInterval = def.RateLimitRefillInterval
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.TokenCookie == "" {
		c.TokenCookie = def.TokenCookie
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = def.HistoryLimit
	}
	return c
}

// Addr is the listen address built from Host and Port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Origins splits the comma separated ALLOWED_ORIGINS value.
func (c Config) Origins() []string {
	return parseOrigins(c.AllowedOrigins)
}

// RateLimit groups the limiter settings.
func (c Config) RateLimit() RateLimitConfig {
	return RateLimitConfig{Burst: c.RateLimitBurst, RefillInterval: c.RateLimitRefillInterval}
}

func parseOrigins(origins string) []string {
	if strings.TrimSpace(origins) == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
