// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Production is the GO_APP_ENV value that switches logs to JSON
const Production = "production"

// DatabaseOptions holds the parameters for connecting to postgres.
// ConnectionString wins when UseConnectionString is set.
type DatabaseOptions struct {
	Host                string `env:"DB_HOST" envDefault:"localhost"`
	Port                string `env:"DB_PORT" envDefault:"5432"`
	User                string `env:"DB_USERNAME" envDefault:"postgres"`
	Password            string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name                string `env:"DB_DATABASE" envDefault:"talentpipe"`
	UseConnectionString bool   `env:"USE_CONNECTION_STR" envDefault:"false"`
	ConnectionString    string `env:"DB_CONNECTION_STR"`
}

// DSN returns the connection string gorm should open
func (d DatabaseOptions) DSN() (string, error) {
	if d.UseConnectionString {
		if d.ConnectionString == "" {
			return "", fmt.Errorf("DB_CONNECTION_STR is empty")
		}
		return d.ConnectionString, nil
	}
	if d.Host == "" || d.Port == "" || d.User == "" || d.Name == "" {
		return "", fmt.Errorf("database configuration is incomplete")
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name), nil
}

// RedisOptions configures the notification sink
type RedisOptions struct {
	URL     string `env:"REDIS_URL"`
	Channel string `env:"NOTIFY_CHANNEL" envDefault:"talentpipe.events"`
}

// OpenAIOptions configures the scoring oracle
type OpenAIOptions struct {
	APIKey string `env:"OPENAI_API_KEY"`
	Model  string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
}

// BlobOptions configures where resumes are stored
type BlobOptions struct {
	Backend string `env:"BLOB_BACKEND" envDefault:"db"` // db or gcs
	Bucket  string `env:"BLOB_BUCKET" envDefault:"resumes"`
}

// Configuration is the whole service configuration
type Configuration struct {
	Database DatabaseOptions
	Redis    RedisOptions
	OpenAI   OpenAIOptions
	Blob     BlobOptions

	Port             int           `env:"PORT" envDefault:"8080"`
	AllowOrigins     []string      `env:"ALLOW_ORIGIN" envSeparator:"," envDefault:"http://localhost:3000"`
	SecretKey        string        `env:"SECRET_KEY"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	RateLimitRPS     uint          `env:"RATE_LIMIT_REQUESTS_PER_SECOND" envDefault:"5"`
	SlugMaxAttempts  int           `env:"SLUG_MAX_ATTEMPTS" envDefault:"3"`
	MetricsPath      string        `env:"METRICS_PATH" envDefault:"/metrics"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPath          string        `env:"LOG_PATH"`
	GoAppEnvironment string        `env:"GO_APP_ENV" envDefault:"development"`

	logger *logrus.Logger
	logMu  sync.Mutex
	logFd  *os.File
}

// Load reads the given .env files when they exist, then parses the environment
func Load(envFiles ...string) (*Configuration, error) {
	existing := make([]string, 0, len(envFiles))
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return nil, fmt.Errorf("load env files: %w", err)
		}
	}

	c := &Configuration{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects configurations the service cannot start with
func (c *Configuration) Validate() error {
	if c.RateLimitRPS == 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS_PER_SECOND must be positive")
	}
	if c.SlugMaxAttempts < 1 {
		return fmt.Errorf("SLUG_MAX_ATTEMPTS must be at least 1, got %d", c.SlugMaxAttempts)
	}
	if c.Blob.Backend != "db" && c.Blob.Backend != "gcs" {
		return fmt.Errorf("BLOB_BACKEND must be 'db' or 'gcs', got '%s'", c.Blob.Backend)
	}
	return nil
}

// Logger returns the process logger, building it on first use
func (c *Configuration) Logger() *logrus.Logger {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	if c.logger != nil {
		return c.logger
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if c.GoAppEnvironment == Production {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if c.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o750); err != nil {
			logger.WithError(err).Warn("log directory unavailable, logging to stderr only")
		} else if f, err := os.OpenFile(c.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); err != nil {
			logger.WithError(err).Warn("log file unavailable, logging to stderr only")
		} else {
			c.logFd = f
			logger.SetOutput(io.MultiWriter(os.Stderr, f))
		}
	}

	c.logger = logger
	return logger
}

// Close releases the log file, if any
func (c *Configuration) Close() error {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	if c.logFd == nil {
		return nil
	}
	err := c.logFd.Close()
	c.logFd = nil
	return err
}
