package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/xxxsen/common/logger"
)

const (
	DeliveryCookie = "cookie"
	DeliveryToken  = "token"
)

type Config struct {
	AppEnv           string           `json:"app_env" envconfig:"APP_ENV"`
	Port             int              `json:"port" envconfig:"PORT"`
	BaseURL          string           `json:"base_url" envconfig:"BASE_URL"`
	FrontendURL      string           `json:"frontend_url" envconfig:"FRONTEND_URL"`
	JWTSecret        string           `json:"jwt_secret" envconfig:"JWT_SECRET"`
	JWTTTLHours      int              `json:"jwt_ttl_hours" envconfig:"JWT_TTL_HOURS"`
	SessionDelivery  string           `json:"session_delivery" envconfig:"SESSION_DELIVERY"`
	RateLimitSeconds int              `json:"rate_limit_seconds" envconfig:"RATE_LIMIT_SECONDS"`
	TokenSweepCron   string           `json:"token_sweep_cron" envconfig:"TOKEN_SWEEP_CRON"`
	Database         DatabaseConfig   `json:"database" envconfig:"DATABASE"`
	Mail             MailConfig       `json:"mail" envconfig:"MAIL"`
	Redis            RedisConfig      `json:"redis" envconfig:"REDIS"`
	Todo             TodoConfig       `json:"todo" envconfig:"TODO"`
	LogConfig        logger.LogConfig `json:"log_config" ignored:"true"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" envconfig:"URL"`
	Host     string `json:"host" envconfig:"HOST"`
	Port     int    `json:"port" envconfig:"PORT"`
	User     string `json:"user" envconfig:"USER"`
	Password string `json:"password" envconfig:"PASSWORD"`
	DBName   string `json:"dbname" envconfig:"NAME"`
	SSLMode  string `json:"sslmode" envconfig:"SSLMODE"`
}

type MailConfig struct {
	Host     string `json:"host" envconfig:"HOST"`
	Port     int    `json:"port" envconfig:"PORT"`
	Username string `json:"username" envconfig:"USERNAME"`
	Password string `json:"password" envconfig:"PASSWORD"`
	From     string `json:"from" envconfig:"FROM"`
}

// Enabled reports whether enough is configured to talk to an SMTP server.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.Port != 0 && strings.TrimSpace(m.From) != ""
}

type RedisConfig struct {
	Addr string `json:"addr" envconfig:"ADDR"`
}

type TodoConfig struct {
	// ScopedGet restricts get-by-id to the caller's own todos.
	ScopedGet bool `json:"scoped_get" envconfig:"SCOPED_GET"`
}

// Load reads the optional JSON file at path, then overlays environment
// variables (a .env file in the working directory is honoured).
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	_ = godotenv.Load()
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if c.Port == 0 {
		c.Port = 4000
	}
	if c.AppEnv == "" {
		c.AppEnv = "development"
	}
	if c.JWTTTLHours == 0 {
		c.JWTTTLHours = 48
	}
	c.SessionDelivery = strings.ToLower(strings.TrimSpace(c.SessionDelivery))
	switch c.SessionDelivery {
	case "":
		c.SessionDelivery = DeliveryCookie
	case DeliveryCookie, DeliveryToken:
	default:
		return fmt.Errorf("session_delivery must be cookie or token")
	}
	if c.BaseURL == "" {
		c.BaseURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.RateLimitSeconds < 0 {
		c.RateLimitSeconds = 0
	}
	if c.TokenSweepCron == "" {
		c.TokenSweepCron = "*/30 * * * *"
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.LogConfig.File == "" {
		c.LogConfig.Console = true
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// AllowedOrigins is the CORS allow-list: the API's own base URL and the
// frontend URL.
func (c *Config) AllowedOrigins() []string {
	origins := make([]string, 0, 2)
	for _, origin := range []string{c.BaseURL, c.FrontendURL} {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
