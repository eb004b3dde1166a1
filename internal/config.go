package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"http_server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Proxy       ProxyConfig       `mapstructure:"proxy"`
	Webhook     WebhookConfig     `mapstructure:"webhook"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

// GatewayConfig holds the Hyperswitch API credentials and client tuning.
type GatewayConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Environment    string        `mapstructure:"environment"`
	BaseURL        string        `mapstructure:"base_url"`
	PaymentHashKey string        `mapstructure:"payment_hash_key"`
	ProfileID      string        `mapstructure:"profile_id"`
	CaptureMethod  string        `mapstructure:"capture_method"`
	SaveCards      bool          `mapstructure:"save_cards"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// ProxyConfig describes an optional forward proxy for outbound gateway calls.
// When inactive or incomplete the client connects directly.
type ProxyConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Protocol string `mapstructure:"protocol"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	IsActive bool   `mapstructure:"is_active"`
}

type WebhookConfig struct {
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	ProcessingTimeout time.Duration `mapstructure:"processing_timeout"`
}

type IdempotencyConfig struct {
	Store string `mapstructure:"store"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	IdempotencyStorePostgres = "postgres"
	IdempotencyStoreRedis    = "redis"
)

// ----------------- ENV LOADING -----------------

// LoadConfigFromEnv builds a Config entirely from environment variables, used
// for container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_SERVER_PORT", 8080),
			BaseURL:           getEnv("HTTP_SERVER_BASE_URL", "http://localhost:8080"),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_SERVER_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_SERVER_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DATABASE_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_SOURCE", ""),
		},
		Gateway: GatewayConfig{
			APIKey:         getEnv("GATEWAY_API_KEY", ""),
			Environment:    getEnv("GATEWAY_ENVIRONMENT", "sandbox"),
			BaseURL:        getEnv("GATEWAY_BASE_URL", ""),
			PaymentHashKey: getEnv("GATEWAY_PAYMENT_HASH_KEY", ""),
			ProfileID:      getEnv("GATEWAY_PROFILE_ID", ""),
			CaptureMethod:  getEnv("GATEWAY_CAPTURE_METHOD", "manual"),
			SaveCards:      getEnv("GATEWAY_SAVE_CARDS", "false") == "true",
			RequestTimeout: getEnvAsDuration("GATEWAY_REQUEST_TIMEOUT", 30*time.Second),
			MaxRetries:     getEnvAsInt("GATEWAY_MAX_RETRIES", 3),
		},
		Proxy: ProxyConfig{
			Host:     getEnv("PROXY_HOST", ""),
			Port:     getEnvAsInt("PROXY_PORT", 0),
			Protocol: getEnv("PROXY_PROTOCOL", "http"),
			Username: getEnv("PROXY_USERNAME", ""),
			Password: getEnv("PROXY_PASSWORD", ""),
			IsActive: getEnv("PROXY_IS_ACTIVE", "false") == "true",
		},
		Webhook: WebhookConfig{
			SettleDelay:       getEnvAsDuration("WEBHOOK_SETTLE_DELAY", 5*time.Second),
			ProcessingTimeout: getEnvAsDuration("WEBHOOK_PROCESSING_TIMEOUT", 30*time.Minute),
		},
		Idempotency: IdempotencyConfig{
			Store: getEnv("IDEMPOTENCY_STORE", IdempotencyStorePostgres),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOGGING_LEVEL", "info"),
			Format: getEnv("LOGGING_FORMAT", "json"),
		},
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Gateway.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("gateway config: %v", err))
	}

	if err := c.Proxy.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("proxy config: %v", err))
	}

	if err := c.Idempotency.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("idempotency config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *GatewayConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("api_key is required")
	}
	if c.PaymentHashKey == "" {
		return errors.New("payment_hash_key is required")
	}
	if c.Environment != "sandbox" && c.Environment != "production" {
		return fmt.Errorf("environment must be sandbox or production, got %q", c.Environment)
	}
	if c.CaptureMethod != "manual" && c.CaptureMethod != "automatic" {
		return fmt.Errorf("capture_method must be manual or automatic, got %q", c.CaptureMethod)
	}
	if c.BaseURL != "" {
		if _, err := url.Parse(c.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url %s: %w", c.BaseURL, err)
		}
	}
	if c.MaxRetries < 0 {
		return errors.New("max_retries cannot be negative")
	}
	return nil
}

func (c *ProxyConfig) Validate() error {
	if !c.IsActive {
		return nil
	}
	if c.Host == "" || c.Port == 0 {
		return errors.New("host and port are required when proxy is active")
	}
	if c.Protocol != "http" && c.Protocol != "https" {
		return fmt.Errorf("protocol must be http or https, got %q", c.Protocol)
	}
	return nil
}

// Complete reports whether the proxy should actually be used: active with a
// reachable endpoint configured.
func (c *ProxyConfig) Complete() bool {
	return c.IsActive && c.Host != "" && c.Port != 0
}

// URL builds the forward proxy URL, embedding credentials only when both
// username and password are present.
func (c *ProxyConfig) URL() *url.URL {
	u := &url.URL{
		Scheme: c.Protocol,
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
	}
	if c.Username != "" && c.Password != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	return u
}

func (c *IdempotencyConfig) Validate() error {
	switch c.Store {
	case "", IdempotencyStorePostgres, IdempotencyStoreRedis:
		return nil
	}
	return fmt.Errorf("store must be postgres or redis, got %q", c.Store)
}
