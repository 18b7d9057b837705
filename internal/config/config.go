package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the jobstore server.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Elasticsearch ElasticsearchConfig
	Platform      PlatformConfig
	Events        EventsConfig
	HTTP          HTTPConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type ElasticsearchConfig struct {
	Addresses       []string
	Username        string
	Password        string
	JobIndex        string
	CandidateIndex  string
	MaxResultWindow int
	Timeout         time.Duration
}

// PlatformConfig points at the platform API that answers identity, project
// membership and skill lookups.
type PlatformConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type EventsConfig struct {
	Workers         int
	QueueSize       int
	Originator      string
	StreamMaxLen    int64
	ShutdownTimeout time.Duration
}

type HTTPConfig struct {
	RateLimitPerMinute int
	AllowedOrigins     []string
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("JOBSTORE_PORT", 8080),
			Env:  envString("JOBSTORE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses:       envList("ELASTICSEARCH_URL"),
			Username:        os.Getenv("ELASTICSEARCH_USERNAME"),
			Password:        os.Getenv("ELASTICSEARCH_PASSWORD"),
			JobIndex:        envString("ELASTICSEARCH_JOB_INDEX", "job"),
			CandidateIndex:  envString("ELASTICSEARCH_CANDIDATE_INDEX", "job_candidate"),
			MaxResultWindow: envInt("ELASTICSEARCH_MAX_RESULT_WINDOW", 10000),
			Timeout:         envDuration("ELASTICSEARCH_TIMEOUT", 10*time.Second),
		},
		Platform: PlatformConfig{
			BaseURL: strings.TrimRight(os.Getenv("PLATFORM_API_URL"), "/"),
			Token:   os.Getenv("PLATFORM_API_TOKEN"),
			Timeout: envDuration("PLATFORM_API_TIMEOUT", 10*time.Second),
		},
		Events: EventsConfig{
			Workers:         envInt("EVENTS_WORKERS", 4),
			QueueSize:       envInt("EVENTS_QUEUE_SIZE", 256),
			Originator:      envString("EVENTS_ORIGINATOR", "jobstore"),
			StreamMaxLen:    int64(envInt("EVENTS_STREAM_MAXLEN", 10000)),
			ShutdownTimeout: envDuration("EVENTS_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		HTTP: HTTPConfig{
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 120),
			AllowedOrigins:     envList("CORS_ALLOWED_ORIGINS"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("ELASTICSEARCH_URL is required")
	}
	for _, addr := range c.Elasticsearch.Addresses {
		if !isHTTPURL(addr) {
			return fmt.Errorf("ELASTICSEARCH_URL must start with http:// or https://, got %q", addr)
		}
	}
	if c.Elasticsearch.MaxResultWindow <= 0 {
		return fmt.Errorf("ELASTICSEARCH_MAX_RESULT_WINDOW must be positive, got %d", c.Elasticsearch.MaxResultWindow)
	}

	if c.Platform.BaseURL == "" {
		return fmt.Errorf("PLATFORM_API_URL is required")
	}
	if !isHTTPURL(c.Platform.BaseURL) {
		return fmt.Errorf("PLATFORM_API_URL must start with http:// or https://, got %q", c.Platform.BaseURL)
	}

	if c.Events.Workers <= 0 {
		return fmt.Errorf("EVENTS_WORKERS must be positive, got %d", c.Events.Workers)
	}
	if c.Events.QueueSize <= 0 {
		return fmt.Errorf("EVENTS_QUEUE_SIZE must be positive, got %d", c.Events.QueueSize)
	}

	return nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
