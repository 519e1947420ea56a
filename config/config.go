// Package config loads Course Herald configuration from environment
// variables and the courses definition file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SubscriptionBackend selects the durable store for subscriptions.
type SubscriptionBackend string

const (
	BackendFile     SubscriptionBackend = "file"
	BackendPostgres SubscriptionBackend = "postgres"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig
	Canvas        CanvasConfig
	Discord       DiscordConfig
	Twitter       TwitterConfig
	Poll          PollConfig
	Subscriptions SubscriptionsConfig
	Redis         RedisConfig
	Log           LogConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name            string
	Debug           bool
	ShutdownTimeout time.Duration
}

// CanvasConfig holds Canvas LMS API settings.
type CanvasConfig struct {
	// Domain is the Canvas base URL including trailing slash,
	// e.g. "https://school.instructure.com/".
	Domain string

	// Token is the Canvas API bearer token.
	Token string

	// RequestTimeout bounds every upstream call.
	RequestTimeout time.Duration

	// Rate limiting (protect from being blocked)
	RateLimit      int // requests per minute
	RateLimitBurst int

	// Retry behavior
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Circuit breaker settings
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
	CircuitBreakerProbes    int

	// CoursesFile is the path of the course definitions JSON file.
	CoursesFile string
}

// DiscordConfig holds Discord bot settings.
type DiscordConfig struct {
	// Token is the bot token.
	Token string

	// RequestTimeout bounds REST calls.
	RequestTimeout time.Duration
}

// TwitterConfig holds Twitter API credentials and identity.
type TwitterConfig struct {
	// OAuth1 credentials for posting statuses.
	ConsumerKey       string
	ConsumerSecret    string
	AccessTokenKey    string
	AccessTokenSecret string

	// BearerToken authorizes the v2 recent search endpoint.
	BearerToken string

	// Handle is the bot's account handle, without the @.
	Handle string

	// UserID is the bot's own account id, used to keep only direct
	// replies/tags during the mention scan.
	UserID string

	// RequestTimeout bounds REST calls.
	RequestTimeout time.Duration

	// Disabled turns the microblog leg off entirely (development).
	Disabled bool
}

// PollConfig holds poll loop settings.
type PollConfig struct {
	// Interval between poll ticks. The mention look-back window follows
	// the interval so a mention is answered exactly once.
	Interval time.Duration

	// MentionWindow is the mention look-back window.
	MentionWindow time.Duration
}

// SubscriptionsConfig selects and configures the subscription store.
type SubscriptionsConfig struct {
	Backend SubscriptionBackend

	// FilePath is the servers.json location for the file backend.
	FilePath string

	// DatabaseURL is the postgres connection string for the postgres
	// backend.
	DatabaseURL string
}

// RedisConfig holds warm-state cache settings.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Disabled runs without the cache; state is primed from the API at
	// startup instead.
	Disabled bool
}

// Addr returns the Redis address in "host:port" format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Pretty bool   // console writer instead of JSON
}

// CourseDefinition is one entry of the courses file.
type CourseDefinition struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Nick     string `json:"nick"`
	Homework string `json:"homework"`
	Tests    string `json:"tests"`
}

// Load loads configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:            getEnv("APP_NAME", "course-herald"),
			Debug:           getEnvBool("APP_DEBUG", false),
			ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Canvas: CanvasConfig{
			Domain:                  getEnv("CANVAS_DOMAIN", ""),
			Token:                   getEnv("CANVAS_TOKEN", ""),
			RequestTimeout:          getEnvDuration("CANVAS_REQUEST_TIMEOUT", 30*time.Second),
			RateLimit:               getEnvInt("CANVAS_RATE_LIMIT", 60),
			RateLimitBurst:          getEnvInt("CANVAS_RATE_LIMIT_BURST", 5),
			MaxRetries:              getEnvInt("CANVAS_MAX_RETRIES", 3),
			RetryBaseDelay:          getEnvDuration("CANVAS_RETRY_BASE_DELAY", 1*time.Second),
			RetryMaxDelay:           getEnvDuration("CANVAS_RETRY_MAX_DELAY", 30*time.Second),
			CircuitBreakerThreshold: getEnvInt("CANVAS_CB_THRESHOLD", 5),
			CircuitBreakerTimeout:   getEnvDuration("CANVAS_CB_TIMEOUT", 60*time.Second),
			CircuitBreakerProbes:    getEnvInt("CANVAS_CB_HALF_OPEN_MAX", 3),
			CoursesFile:             getEnv("COURSES_FILE", "courses.json"),
		},
		Discord: DiscordConfig{
			Token:          getEnv("DISCORD_TOKEN", ""),
			RequestTimeout: getEnvDuration("DISCORD_REQUEST_TIMEOUT", 15*time.Second),
		},
		Twitter: TwitterConfig{
			ConsumerKey:       getEnv("TWITTER_CONSUMER_KEY", ""),
			ConsumerSecret:    getEnv("TWITTER_CONSUMER_SECRET", ""),
			AccessTokenKey:    getEnv("TWITTER_ACCESS_TOKEN_KEY", ""),
			AccessTokenSecret: getEnv("TWITTER_ACCESS_TOKEN_SECRET", ""),
			BearerToken:       getEnv("TWITTER_BEARER_TOKEN", ""),
			Handle:            getEnv("TWITTER_HANDLE", ""),
			UserID:            getEnv("TWITTER_USER_ID", ""),
			RequestTimeout:    getEnvDuration("TWITTER_REQUEST_TIMEOUT", 15*time.Second),
			Disabled:          getEnvBool("TWITTER_DISABLED", false),
		},
		Poll: PollConfig{
			Interval:      getEnvDuration("POLL_INTERVAL", 5*time.Minute),
			MentionWindow: getEnvDuration("MENTION_WINDOW", 5*time.Minute),
		},
		Subscriptions: SubscriptionsConfig{
			Backend:     SubscriptionBackend(getEnv("SUBSCRIPTIONS_BACKEND", string(BackendFile))),
			FilePath:    getEnv("SUBSCRIPTIONS_FILE", "servers.json"),
			DatabaseURL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			Disabled:     getEnvBool("REDIS_DISABLED", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvBool("LOG_PRETTY", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadCourses reads the course definitions file.
func (c *Config) LoadCourses() ([]CourseDefinition, error) {
	data, err := os.ReadFile(c.Canvas.CoursesFile)
	if err != nil {
		return nil, fmt.Errorf("read courses file %s: %w", c.Canvas.CoursesFile, err)
	}

	var courses []CourseDefinition
	if err := json.Unmarshal(data, &courses); err != nil {
		return nil, fmt.Errorf("parse courses file %s: %w", c.Canvas.CoursesFile, err)
	}
	return courses, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Discord.Token == "" {
		errs = append(errs, "DISCORD_TOKEN is required")
	}
	if c.Canvas.Domain == "" {
		errs = append(errs, "CANVAS_DOMAIN is required")
	}
	if c.Canvas.Token == "" {
		errs = append(errs, "CANVAS_TOKEN is required")
	}
	if !strings.HasSuffix(c.Canvas.Domain, "/") && c.Canvas.Domain != "" {
		c.Canvas.Domain += "/"
	}

	if !c.Twitter.Disabled {
		if c.Twitter.BearerToken == "" {
			errs = append(errs, "TWITTER_BEARER_TOKEN is required unless TWITTER_DISABLED")
		}
		if c.Twitter.Handle == "" {
			errs = append(errs, "TWITTER_HANDLE is required unless TWITTER_DISABLED")
		}
	}

	switch c.Subscriptions.Backend {
	case BackendFile:
		if c.Subscriptions.FilePath == "" {
			errs = append(errs, "SUBSCRIPTIONS_FILE is required for the file backend")
		}
	case BackendPostgres:
		if c.Subscriptions.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required for the postgres backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown SUBSCRIPTIONS_BACKEND %q", c.Subscriptions.Backend))
	}

	if c.Poll.Interval <= 0 {
		errs = append(errs, "POLL_INTERVAL must be positive")
	}
	if c.Poll.MentionWindow <= 0 {
		errs = append(errs, "MENTION_WINDOW must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// --- Helper functions for environment variable parsing ---

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
