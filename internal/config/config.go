package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const defaultSecret = "change-me"

// Config is read from .env, an optional YAML file and the environment.
type Config struct {
	AppHost  string `yaml:"app_host" env:"APP_HOST" env-default:"0.0.0.0"`
	HTTPPort string `yaml:"app_port" env:"APP_PORT,HTTP_PORT" env-default:"8000"`
	AppEnv   string `yaml:"app_env" env:"APP_ENV" env-default:"development"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	DB struct {
		Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
		Port     string `yaml:"port" env:"DB_PORT" env-default:"5432"`
		User     string `yaml:"user" env:"DB_USER" env-default:"postgres"`
		Password string `yaml:"password" env:"DB_PASSWORD" env-default:"postgres"`
		Database string `yaml:"database" env:"DB_DATABASE,DB_NAME" env-default:"helpdesk"`
		SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	} `yaml:"db"`

	Auth struct {
		SecretKey                string `yaml:"secret_key" env:"SECRET_KEY" env-default:"change-me"`
		AccessTokenExpireMinutes int    `yaml:"access_token_expire_minutes" env:"ACCESS_TOKEN_EXPIRE_MINUTES" env-default:"60"`
	} `yaml:"auth"`

	// Redis is optional: without it tasks are dropped and rate limiting is
	// per process.
	Redis struct {
		URL         string `yaml:"url" env:"REDIS_URL"`
		TaskStream  string `yaml:"task_stream" env:"TASK_STREAM" env-default:"helpdesk:tasks"`
		TaskGroup   string `yaml:"task_group" env:"TASK_GROUP" env-default:"helpdesk-workers"`
		LimitPrefix string `yaml:"limit_prefix" env:"RATE_LIMIT_PREFIX" env-default:"helpdesk:rl"`
	} `yaml:"redis"`

	// Kafka publishing is disabled when Brokers is empty.
	Kafka struct {
		Brokers     string `yaml:"brokers" env:"KAFKA_BROKERS"`
		TopicTicket string `yaml:"topic_ticket" env:"KAFKA_TOPIC_TICKET" env-default:"helpdesk.tickets"`
	} `yaml:"kafka"`

	// Mail is used by the worker only.
	Mail struct {
		Host     string `yaml:"host" env:"MAIL_HOST" env-default:"localhost"`
		Port     int    `yaml:"port" env:"MAIL_PORT" env-default:"1025"`
		Username string `yaml:"username" env:"MAIL_USERNAME"`
		Password string `yaml:"password" env:"MAIL_PASSWORD"`
		From     string `yaml:"from" env:"MAIL_FROM" env-default:"test@example.com"`
		UseTLS   bool   `yaml:"use_tls" env:"MAIL_USE_TLS" env-default:"false"`
		UseSSL   bool   `yaml:"use_ssl" env:"MAIL_USE_SSL" env-default:"false"`
	} `yaml:"mail"`

	// AuditLogPath is where the worker appends reply audit lines.
	AuditLogPath string `yaml:"audit_log_path" env:"AUDIT_LOG_PATH" env-default:"replies.log"`

	// TicketCreatePerMinute caps ticket creation per user.
	TicketCreatePerMinute int `yaml:"ticket_create_per_minute" env:"TICKET_CREATE_PER_MINUTE" env-default:"5"`

	// WS tunes per-socket delivery: QueueSize frames may wait for a slow
	// client before it is evicted.
	WS struct {
		QueueSize      int           `yaml:"queue_size" env:"WS_QUEUE_SIZE" env-default:"32"`
		WriteTimeout   time.Duration `yaml:"write_timeout" env:"WS_WRITE_TIMEOUT" env-default:"5s"`
		AllowedOrigins []string      `yaml:"allowed_origins" env:"WS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	} `yaml:"ws"`
}

// Load reads .env (if present), then the optional YAML file at path, then the
// environment. Environment variables win over the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Validate checks required values and bounds. In production the default
// secret and an empty database password are rejected.
func (c *Config) Validate() error {
	if c.DB.Host == "" || c.DB.Database == "" {
		return errors.New("config: DB_HOST and DB_DATABASE are required")
	}
	if c.Auth.SecretKey == "" {
		return errors.New("config: SECRET_KEY is required")
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		return errors.New("config: ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.TicketCreatePerMinute <= 0 {
		return errors.New("config: TICKET_CREATE_PER_MINUTE must be positive")
	}
	if c.WS.QueueSize <= 0 || c.WS.WriteTimeout <= 0 {
		return errors.New("config: WS_QUEUE_SIZE and WS_WRITE_TIMEOUT must be positive")
	}
	if c.IsProduction() {
		if c.DB.Password == "" {
			return errors.New("config: in production DB_PASSWORD is required")
		}
		if c.Auth.SecretKey == defaultSecret {
			return errors.New("config: in production SECRET_KEY must be set")
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// TokenTTL is the lifetime of issued access tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.AccessTokenExpireMinutes) * time.Minute
}

// DSN is the key=value form used by gorm.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

// DatabaseURL is the postgres:// form used by goose and lib/pq.
func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}
