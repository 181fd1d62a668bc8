package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Feed     FeedConfig
	Auth     AuthConfig
	LLM      LLMConfig
	App      AppConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host            string        `env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Host         string `env:"POSTGRES_HOST"     env-default:"localhost"`
	Port         string `env:"POSTGRES_PORT"     env-default:"5432"`
	User         string `env:"POSTGRES_USER"     env-required:"true"`
	Password     string `env:"POSTGRES_PASSWORD" env-required:"true"`
	Name         string `env:"POSTGRES_DB"       env-required:"true"`
	SSLMode      string `env:"POSTGRES_SSLMODE"  env-default:"disable"`
	MaxOpenConns int    `env:"POSTGRES_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns int    `env:"POSTGRES_MAX_IDLE_CONNS" env-default:"5"`
}

func (c DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type FeedConfig struct {
	Driver        string `env:"FEED_DRIVER"    env-default:"postgres"`
	Channel       string `env:"FEED_CHANNEL"   env-default:"classvote_changes"`
	RedisAddr     string `env:"REDIS_ADDR"     env-default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"       env-default:"0"`
}

type AuthConfig struct {
	JWTSecret        string        `env:"JWT_SECRET"                env-required:"true"`
	AdminTokenTTL    time.Duration `env:"ADMIN_TOKEN_TTL"           env-default:"2h"`
	MasterKeyEnabled bool          `env:"ADMIN_MASTER_KEY_ENABLED"  env-default:"true"`
	CookieSecure     bool          `env:"ADMIN_COOKIE_SECURE"       env-default:"true"`
}

type LLMConfig struct {
	APIKey    string        `env:"ANTHROPIC_API_KEY"`
	BaseURL   string        `env:"ANTHROPIC_BASE_URL"`
	Model     string        `env:"LLM_MODEL"      env-default:"claude-sonnet-4-5"`
	MaxTokens int64         `env:"LLM_MAX_TOKENS" env-default:"2048"`
	Timeout   time.Duration `env:"LLM_TIMEOUT"    env-default:"60s"`
}

type AppConfig struct {
	Language       string `env:"APP_LANGUAGE"         env-default:"ja"`
	AllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
}

func (c AppConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"json"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := LoadInto(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// LoadInto fills dst, a single section or a struct of sections, so that
// commands needing part of the configuration do not require the rest.
func LoadInto(dst any) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("config: load .env: %w", err)
	}
	if err := cleanenv.ReadEnv(dst); err != nil {
		return fmt.Errorf("config: read env: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Feed.Driver {
	case "postgres", "redis":
	default:
		return fmt.Errorf("FEED_DRIVER must be postgres or redis, got %q", c.Feed.Driver)
	}
	switch c.App.Language {
	case "ja", "en":
	default:
		return fmt.Errorf("APP_LANGUAGE must be ja or en, got %q", c.App.Language)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Log.Format)
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port)
	}
	return nil
}
