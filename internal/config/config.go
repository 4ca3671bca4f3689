package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type CacheStore string

const (
	MemoryCacheStore    CacheStore = "memory"
	RistrettoCacheStore CacheStore = "ristretto"
	RedisCacheStore     CacheStore = "redis"
)

const developmentBackendURL = "http://localhost:8000/api"

type Config struct {
	backendURL          *url.URL
	backendAPIKey       string
	sentryDSN           string
	port                string
	cacheStore          CacheStore
	redisAddr           string
	redisPassword       string
	cacheTTL            time.Duration
	dedupWaitTimeout    time.Duration
	backendRequestLimit int
	statutoryRulesPath  string
	allowedOrigins      []string
	sessionIdleTTL      time.Duration
	env                 environment
}

func (c *Config) BackendURL() *url.URL {
	u := *c.backendURL
	return &u
}

func (c *Config) BackendAPIKey() string {
	return c.backendAPIKey
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) CacheStore() CacheStore {
	return c.cacheStore
}

func (c *Config) RedisAddr() string {
	return c.redisAddr
}

func (c *Config) RedisPassword() string {
	return c.redisPassword
}

func (c *Config) CacheTTL() time.Duration {
	return c.cacheTTL
}

func (c *Config) DedupWaitTimeout() time.Duration {
	return c.dedupWaitTimeout
}

// Max requests to the backend per minute
func (c *Config) BackendRequestLimit() int {
	return c.backendRequestLimit
}

func (c *Config) StatutoryRulesPath() string {
	return c.statutoryRulesPath
}

func (c *Config) AllowedOrigins() []string {
	return append([]string(nil), c.allowedOrigins...)
}

func (c *Config) SessionIdleTTL() time.Duration {
	return c.sessionIdleTTL
}

func (c *Config) Environment() string {
	return string(c.env)
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, backend: %s, cacheStore: %s, cacheTTL: %s, dedupWaitTimeout: %s, ...}",
		string(c.env), c.backendURL.Redacted(), string(c.cacheStore), c.cacheTTL, c.dedupWaitTimeout,
	)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}
	invalidValue := func(key, value string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, value)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("PAYDESK_ENVIRONMENT")
	if !ok {
		return missingKey("PAYDESK_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return invalidValue("PAYDESK_ENVIRONMENT", rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	rawBackendURL := os.Getenv("PAYDESK_BACKEND_URL")
	backendAPIKey := os.Getenv("PAYDESK_BACKEND_API_KEY")
	sentryDSN := os.Getenv("SENTRY_DSN")

	if env == production || env == staging {
		if rawBackendURL == "" {
			return missingKey("PAYDESK_BACKEND_URL")
		}
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
	}

	if rawBackendURL == "" {
		rawBackendURL = developmentBackendURL
	}
	backendURL, err := url.Parse(rawBackendURL)
	if err != nil || backendURL.Host == "" || (backendURL.Scheme != "http" && backendURL.Scheme != "https") {
		return invalidValue("PAYDESK_BACKEND_URL", rawBackendURL)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	cacheStore := CacheStore(os.Getenv("PAYDESK_CACHE_STORE"))
	switch cacheStore {
	case "":
		cacheStore = MemoryCacheStore
	case MemoryCacheStore, RistrettoCacheStore, RedisCacheStore:
	default:
		return invalidValue("PAYDESK_CACHE_STORE", string(cacheStore))
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if cacheStore == RedisCacheStore && redisAddr == "" {
		return missingKey("REDIS_ADDR")
	}

	durations := map[string]*time.Duration{}
	cacheTTL := 30 * time.Second
	dedupWaitTimeout := 30 * time.Second
	sessionIdleTTL := 15 * time.Minute
	durations["PAYDESK_CACHE_TTL"] = &cacheTTL
	durations["PAYDESK_DEDUP_WAIT_TIMEOUT"] = &dedupWaitTimeout
	durations["PAYDESK_SESSION_IDLE_TTL"] = &sessionIdleTTL
	for key, target := range durations {
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return invalidValue(key, raw)
		}
		*target = d
	}

	backendRequestLimit := 600
	if raw := os.Getenv("PAYDESK_BACKEND_REQUEST_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return invalidValue("PAYDESK_BACKEND_REQUEST_LIMIT", raw)
		}
		backendRequestLimit = limit
	}

	var allowedOrigins []string
	for _, origin := range strings.Split(os.Getenv("PAYDESK_ALLOWED_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins = append(allowedOrigins, origin)
		}
	}

	return Config{
		backendURL:          backendURL,
		backendAPIKey:       backendAPIKey,
		sentryDSN:           sentryDSN,
		port:                port,
		cacheStore:          cacheStore,
		redisAddr:           redisAddr,
		redisPassword:       os.Getenv("REDIS_PASSWORD"),
		cacheTTL:            cacheTTL,
		dedupWaitTimeout:    dedupWaitTimeout,
		backendRequestLimit: backendRequestLimit,
		statutoryRulesPath:  os.Getenv("PAYDESK_STATUTORY_RULES"),
		allowedOrigins:      allowedOrigins,
		sessionIdleTTL:      sessionIdleTTL,
		env:                 env,
	}, nil
}
