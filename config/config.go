package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Publish PublishConfig `mapstructure:"publish"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Session SessionConfig `mapstructure:"session"`
	AES     AESConfig     `mapstructure:"aes"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StoreConfig configures the replicated store node fan-out.
type StoreConfig struct {
	Nodes       []string      `mapstructure:"nodes"`        // base URLs of store nodes
	NodeTimeout time.Duration `mapstructure:"node_timeout"` // per-node request timeout
}

// FetchConfig bounds the retrieval retry loop that absorbs replication lag.
// A fetch only concludes "not found" after MaxAttempts queries spread across
// the backoff schedule, because a premature not-found leads straight to
// duplicate wallet creation.
type FetchConfig struct {
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	Budget         time.Duration `mapstructure:"budget"`
}

// PublishConfig bounds the confirm round-trip after a publish.
type PublishConfig struct {
	ConfirmAttempts int           `mapstructure:"confirm_attempts"`
	ConfirmBackoff  time.Duration `mapstructure:"confirm_backoff"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type SessionConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WSE_ (Wallet Sync Engine).
// Nested keys use underscore: WSE_REDIS_HOST, WSE_SESSION_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("store.nodes", []string{})
	v.SetDefault("store.node_timeout", "5s")
	v.SetDefault("fetch.initial_backoff", "2s")
	v.SetDefault("fetch.max_backoff", "16s")
	v.SetDefault("fetch.max_attempts", 5)
	v.SetDefault("fetch.budget", "30s")
	v.SetDefault("publish.confirm_attempts", 4)
	v.SetDefault("publish.confirm_backoff", "2s")
	v.SetDefault("cache.ttl", "2m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("session.secret", "")
	v.SetDefault("session.expiry", "24h")
	v.SetDefault("session.issuer", "wallet-sync-engine")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: WSE_REDIS_HOST -> redis.host
	v.SetEnvPrefix("WSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
