package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	defaultListenAddr          = ":8080"
	defaultBackendURL          = "http://127.0.0.1:8000"
	defaultImageBaseURL        = "https://image.tmdb.org/t/p/w500"
	defaultRecommendationCount = 10
	defaultRequestTimeout      = 15 * time.Second
	defaultSessionTTL          = 30 * time.Minute

	maxRecommendationCount = 50
)

// AppConfig holds application configuration
type AppConfig struct {
	listenAddr          string
	backendURL          string
	imageBaseURL        string
	recommendationCount int
	requestTimeout      time.Duration
	posterProxy         bool
	sessionTTL          time.Duration
}

// LoadDotEnv preloads variables from a .env file in the working directory.
// A missing file is not an error; variables already set in the environment win.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// NewAppConfig creates a new application configuration instance
func NewAppConfig(logger *zap.Logger) (*AppConfig, error) {
	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		zap.String("listenAddr", cfg.listenAddr),
		zap.String("backendURL", cfg.backendURL),
		zap.String("imageBaseURL", cfg.imageBaseURL),
		zap.Int("recommendationCount", cfg.recommendationCount),
		zap.Duration("requestTimeout", cfg.requestTimeout),
		zap.Bool("posterProxy", cfg.posterProxy),
		zap.Duration("sessionTTL", cfg.sessionTTL))

	return cfg, nil
}

// FromEnv builds a configuration from the given lookup function.
// Every invalid variable is reported, not just the first one.
func FromEnv(getenv func(string) string) (*AppConfig, error) {
	cfg := &AppConfig{
		listenAddr:          stringOr(getenv("MOODFLIX_LISTEN_ADDR"), defaultListenAddr),
		backendURL:          stringOr(getenv("MOODFLIX_BACKEND_URL"), defaultBackendURL),
		imageBaseURL:        stringOr(getenv("MOODFLIX_IMAGE_BASE_URL"), defaultImageBaseURL),
		recommendationCount: defaultRecommendationCount,
		requestTimeout:      defaultRequestTimeout,
		sessionTTL:          defaultSessionTTL,
	}

	var errs error

	if v := getenv("MOODFLIX_RECOMMENDATION_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("MOODFLIX_RECOMMENDATION_COUNT: %w", err))
		case n < 1 || n > maxRecommendationCount:
			errs = multierr.Append(errs, fmt.Errorf("MOODFLIX_RECOMMENDATION_COUNT: %d out of range 1..%d", n, maxRecommendationCount))
		default:
			cfg.recommendationCount = n
		}
	}

	if d, err := durationOr(getenv("MOODFLIX_REQUEST_TIMEOUT"), defaultRequestTimeout); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("MOODFLIX_REQUEST_TIMEOUT: %w", err))
	} else {
		cfg.requestTimeout = d
	}

	if d, err := durationOr(getenv("MOODFLIX_SESSION_TTL"), defaultSessionTTL); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("MOODFLIX_SESSION_TTL: %w", err))
	} else {
		cfg.sessionTTL = d
	}

	if b, err := boolOr(getenv("MOODFLIX_POSTER_PROXY"), false); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("MOODFLIX_POSTER_PROXY: %w", err))
	} else {
		cfg.posterProxy = b
	}

	if _, err := boolOr(getenv("MOODFLIX_DEV"), false); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("MOODFLIX_DEV: %w", err))
	}

	errs = multierr.Append(errs, checkAbsoluteURL("MOODFLIX_BACKEND_URL", cfg.backendURL))
	errs = multierr.Append(errs, checkAbsoluteURL("MOODFLIX_IMAGE_BASE_URL", cfg.imageBaseURL))

	if errs != nil {
		return nil, fmt.Errorf("invalid configuration: %w", errs)
	}
	return cfg, nil
}

// IsDev reports whether development logging was requested
func IsDev() bool {
	b, _ := boolOr(os.Getenv("MOODFLIX_DEV"), false)
	return b
}

// GetListenAddr returns the address the web server binds to
func (c *AppConfig) GetListenAddr() string {
	return c.listenAddr
}

// GetBackendURL returns the base URL of the recommendation backend
func (c *AppConfig) GetBackendURL() string {
	return c.backendURL
}

// GetImageBaseURL returns the prefix prepended to poster paths
func (c *AppConfig) GetImageBaseURL() string {
	return c.imageBaseURL
}

// GetRecommendationCount returns how many movies to request
func (c *AppConfig) GetRecommendationCount() int {
	return c.recommendationCount
}

// GetRequestTimeout bounds a single recommendation request
func (c *AppConfig) GetRequestTimeout() time.Duration {
	return c.requestTimeout
}

// PosterProxyEnabled reports whether posters are served through /posters
func (c *AppConfig) PosterProxyEnabled() bool {
	return c.posterProxy
}

// GetSessionTTL returns how long an idle session is kept
func (c *AppConfig) GetSessionTTL() time.Duration {
	return c.sessionTTL
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func durationOr(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

func boolOr(v string, def bool) (bool, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseBool(v)
}

func checkAbsoluteURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%s: %q is not an absolute http(s) URL", name, raw)
	}
	return nil
}
