package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	TurnStoreBolt  = "bolt"
	TurnStoreRedis = "redis"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	BaseURL  string `envconfig:"BASE_URL"`
	DataDir  string `envconfig:"DATA_DIR" default:"."`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Env      string `envconfig:"ENV" default:"production"`

	// BlocksDir, when set, is loaded into the block store and watched.
	BlocksDir string `envconfig:"BLOCKS_DIR"`

	TurnStore     string        `envconfig:"TURN_STORE" default:"bolt"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	TurnTTL       time.Duration `envconfig:"TURN_TTL" default:"24h"`

	WAPhoneNumberID string `envconfig:"WA_PHONE_NUMBER_ID"`
	WAAccessToken   string `envconfig:"WA_ACCESS_TOKEN"`
	WAVerifyToken   string `envconfig:"WA_VERIFY_TOKEN"`
}

// WhatsAppEnabled reports whether the WhatsApp channel is configured.
func (c *Config) WhatsAppEnabled() bool {
	return c.WAPhoneNumberID != "" && c.WAAccessToken != ""
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func Load() (*Config, error) {
	// .env is optional; env vars may already be set (e.g. in production)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%s", cfg.Port)
	}

	switch cfg.TurnStore {
	case TurnStoreBolt, TurnStoreRedis:
	default:
		return nil, fmt.Errorf("TURN_STORE must be %q or %q, got %q", TurnStoreBolt, TurnStoreRedis, cfg.TurnStore)
	}

	if cfg.WhatsAppEnabled() && cfg.WAVerifyToken == "" {
		token, err := randomHex(16)
		if err != nil {
			return nil, fmt.Errorf("generating verify token: %w", err)
		}
		cfg.WAVerifyToken = token
	}

	return &cfg, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
