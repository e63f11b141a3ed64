package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const _maxPosterSize = 5 * 1024 * 1024 // 5 MB

// ErrNotFound is returned when the image host has no such poster
var ErrNotFound = errors.New("poster not found")

// PosterFetcher downloads poster images from the image CDN
type PosterFetcher struct {
	logger *zap.Logger
	client *http.Client
}

// NewPosterFetcher creates a new HTTP-based poster fetcher
func NewPosterFetcher(logger *zap.Logger) *PosterFetcher {
	return &PosterFetcher{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Fetch downloads image data from the given URL
func (f *PosterFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "moodflix/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("url is not an image: %s", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, _maxPosterSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > _maxPosterSize {
		return nil, fmt.Errorf("poster exceeds %d bytes", _maxPosterSize)
	}

	f.logger.Debug("Poster fetched", zap.Int("bytes", len(data)), zap.String("url", url))
	return data, nil
}
