package domain

import (
	"context"
	"time"
)

// Recommender retrieves movie recommendations for a mood
//
//go:generate mockgen -destination=../view/mocks/recommender_mock.go -package=mocks github.com/genricoloni/moodflix/internal/domain Recommender
type Recommender interface {
	// Recommend asks the backend for count movies matching mood.
	// A response with success=false is reported as an error.
	Recommend(ctx context.Context, mood string, count int) (*RecommendationResponse, error)
}

// Fetcher defines the interface for retrieving poster artwork
type Fetcher interface {
	// Fetch downloads image data from a URL
	// Returns the raw image bytes or an error
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ImageProcessor defines the interface for in-memory image processing
type ImageProcessor interface {
	// Process transforms image data (e.g. resize to a card thumbnail)
	// Returns the processed image bytes or an error
	Process(ctx context.Context, imageData []byte) ([]byte, error)
}

// Config defines the interface for application configuration
type Config interface {
	// GetListenAddr returns the address the web server binds to
	GetListenAddr() string

	// GetBackendURL returns the base URL of the recommendation backend
	GetBackendURL() string

	// GetImageBaseURL returns the prefix prepended to poster paths
	GetImageBaseURL() string

	// GetRecommendationCount returns how many movies to request
	GetRecommendationCount() int

	// GetRequestTimeout bounds a single recommendation request
	GetRequestTimeout() time.Duration

	// PosterProxyEnabled reports whether posters are served through /posters
	PosterProxyEnabled() bool

	// GetSessionTTL returns how long an idle session is kept
	GetSessionTTL() time.Duration
}
