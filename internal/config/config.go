package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// MinJWTSecretLength is the shortest accepted signing secret in bytes.
const MinJWTSecretLength = 32

type Config struct {
	Port string `yaml:"port"`

	JWTSecret   string        `yaml:"jwt_secret"`
	JWTIssuer   string        `yaml:"jwt_issuer"`
	JWTAudience string        `yaml:"jwt_audience"`
	JWTExpiry   time.Duration `yaml:"jwt_expiry"`

	StoreDriver   string `yaml:"store_driver"`
	DatabaseDSN   string `yaml:"db_dsn"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`

	Notify NotifyConfig `yaml:"notify"`

	StatusTransitions string   `yaml:"status_transitions"`
	EnableMetrics     bool     `yaml:"enable_metrics"`
	EnableDocs        bool     `yaml:"enable_docs"`
	LogLevel          string   `yaml:"log_level"`
	LogFormat         string   `yaml:"log_format"`
	CORSOrigins       []string `yaml:"cors_origins"`
	// AuthRateLimit is the number of auth requests allowed per minute per client.
	AuthRateLimit int `yaml:"auth_rate_limit"`
}

// NotifyConfig selects how new-project notices are delivered.
type NotifyConfig struct {
	Driver          string `yaml:"driver"`
	SMTPHost        string `yaml:"smtp_host"`
	SMTPPort        int    `yaml:"smtp_port"`
	SMTPUser        string `yaml:"smtp_user"`
	SMTPPass        string `yaml:"smtp_pass"`
	SMTPFrom        string `yaml:"smtp_from"`
	SMTPSecure      bool   `yaml:"smtp_secure"`
	ManagementEmail string `yaml:"management_email"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisChannel    string `yaml:"redis_channel"`
}

func defaults() *Config {
	return &Config{
		Port:          "8080",
		JWTIssuer:     "project-tracker-api",
		JWTAudience:   "project-tracker-api",
		JWTExpiry:     7 * 24 * time.Hour,
		StoreDriver:   "postgres",
		MongoDatabase: "project_tracker",
		Notify: NotifyConfig{
			Driver:       "log",
			SMTPPort:     587,
			RedisChannel: "projects:created",
		},
		StatusTransitions: "permissive",
		LogLevel:          "info",
		LogFormat:         "json",
		CORSOrigins:       []string{"*"},
		AuthRateLimit:     20,
	}
}

// Load builds the configuration from defaults, an optional YAML file named
// by CONFIG_FILE, and the environment, in increasing precedence. A .env
// file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAndValidate loads the configuration and rejects it if invalid.
func LoadAndValidate() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISS", c.JWTIssuer)
	c.JWTAudience = getEnv("JWT_AUD", c.JWTAudience)
	c.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", c.StoreDriver))
	c.DatabaseDSN = getEnv("DB_DSN", c.DatabaseDSN)
	c.MongoURI = getEnv("MONGO_URI", c.MongoURI)
	c.MongoDatabase = getEnv("MONGO_DB", c.MongoDatabase)
	c.StatusTransitions = strings.ToLower(getEnv("STATUS_TRANSITIONS", c.StatusTransitions))
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", c.LogFormat))

	n := &c.Notify
	n.Driver = strings.ToLower(getEnv("NOTIFY_DRIVER", n.Driver))
	n.SMTPHost = getEnv("SMTP_HOST", n.SMTPHost)
	n.SMTPUser = getEnv("SMTP_USER", n.SMTPUser)
	n.SMTPPass = getEnv("SMTP_PASS", n.SMTPPass)
	n.SMTPFrom = getEnv("SMTP_FROM", n.SMTPFrom)
	n.ManagementEmail = getEnv("MANAGEMENT_EMAIL", n.ManagementEmail)
	n.RedisAddr = getEnv("REDIS_ADDR", n.RedisAddr)
	n.RedisChannel = getEnv("REDIS_CHANNEL", n.RedisChannel)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	var err error
	if c.JWTExpiry, err = getDuration("JWT_EXPIRY", c.JWTExpiry); err != nil {
		return err
	}
	if n.SMTPPort, err = getInt("SMTP_PORT", n.SMTPPort); err != nil {
		return err
	}
	if c.AuthRateLimit, err = getInt("AUTH_RATE_LIMIT", c.AuthRateLimit); err != nil {
		return err
	}
	if n.SMTPSecure, err = getBool("SMTP_SECURE", n.SMTPSecure); err != nil {
		return err
	}
	if c.EnableMetrics, err = getBool("ENABLE_METRICS", c.EnableMetrics); err != nil {
		return err
	}
	if c.EnableDocs, err = getBool("ENABLE_SWAGGER", c.EnableDocs); err != nil {
		return err
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	}
	if c.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY must be positive")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DB_DSN is required for the postgres store")
		}
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo store")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres, mongo or memory, got %q", c.StoreDriver)
	}

	switch c.Notify.Driver {
	case "smtp":
		if c.Notify.SMTPHost == "" || c.Notify.ManagementEmail == "" || c.Notify.SMTPFrom == "" {
			return fmt.Errorf("SMTP_HOST, SMTP_FROM and MANAGEMENT_EMAIL are required for smtp notifications")
		}
	case "redis":
		if c.Notify.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for redis notifications")
		}
	case "log", "none":
	default:
		return fmt.Errorf("NOTIFY_DRIVER must be smtp, redis, log or none, got %q", c.Notify.Driver)
	}

	switch c.StatusTransitions {
	case "", "permissive", "strict":
	default:
		return fmt.Errorf("STATUS_TRANSITIONS must be permissive or strict, got %q", c.StatusTransitions)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.AuthRateLimit < 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT cannot be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration such as 168h: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
