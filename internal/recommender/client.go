package recommender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/genricoloni/moodflix/internal/catalog"
	"github.com/genricoloni/moodflix/internal/domain"
	"github.com/genricoloni/moodflix/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	_maxResponseSize   = 2 * 1024 * 1024 // 2 MB
	_recommendationsEP = "/recommendations/"
	_breakerName       = "recommendation-backend"
)

// HTTPRecommender calls the recommendation backend over HTTP
type HTTPRecommender struct {
	logger   *zap.Logger
	client   *http.Client
	endpoint string
	validate *validator.Validate
	cb       *gobreaker.CircuitBreaker[*domain.RecommendationResponse]
}

// NewHTTPRecommender creates a client for the backend rooted at baseURL
func NewHTTPRecommender(logger *zap.Logger, baseURL string) *HTTPRecommender {
	v, err := newRequestValidator()
	if err != nil {
		panic(err)
	}

	r := &HTTPRecommender{
		logger:   logger,
		endpoint: strings.TrimRight(baseURL, "/") + _recommendationsEP,
		validate: v,
		// No client-level timeout: callers bound each request with their context
		client: &http.Client{},
	}

	r.cb = gobreaker.NewCircuitBreaker[*domain.RecommendationResponse](gobreaker.Settings{
		Name:        _breakerName,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A refusal from a healthy backend is not a reason to open the circuit
		IsSuccessful: func(err error) bool {
			var be *domain.BackendError
			if errors.As(err, &be) {
				return be.StatusCode < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.BreakerState.Set(float64(to))
		},
	})

	return r
}

// newRequestValidator returns a validator that knows the "mood" tag
func newRequestValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("mood", func(fl validator.FieldLevel) bool {
		return catalog.Contains(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("failed to register mood validation: %w", err)
	}
	return v, nil
}

// Recommend posts {mood, count} to the backend and returns the decoded envelope
func (r *HTTPRecommender) Recommend(ctx context.Context, mood string, count int) (*domain.RecommendationResponse, error) {
	payload := domain.RecommendationRequest{Mood: mood, Count: count}
	if err := r.validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("invalid recommendation request: %w", err)
	}

	start := time.Now()
	resp, err := r.cb.Execute(func() (*domain.RecommendationResponse, error) {
		return r.do(ctx, payload)
	})
	metrics.RecommendationDuration.Observe(time.Since(start).Seconds())

	var be *domain.BackendError
	switch {
	case err == nil:
		metrics.RecommendationRequests.WithLabelValues(metrics.OutcomeSuccess).Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecommendationRequests.WithLabelValues(metrics.OutcomeOpen).Inc()
		return nil, fmt.Errorf("recommendation backend unavailable: %w", err)
	case errors.As(err, &be):
		metrics.RecommendationRequests.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, err
	default:
		metrics.RecommendationRequests.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	r.logger.Debug("Recommendations received",
		zap.String("mood", mood),
		zap.Int("movies", len(resp.Recommendations)),
		zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}

func (r *HTTPRecommender) do(ctx context.Context, payload domain.RecommendationRequest) (*domain.RecommendationResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, _maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	var envelope domain.RecommendationResponse
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Error responses carry the same envelope; keep its message when present
		msg := ""
		if decodeErr == nil {
			msg = envelope.Error
		}
		return nil, &domain.BackendError{StatusCode: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	if !envelope.Success {
		return nil, &domain.BackendError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}

	if envelope.Recommendations == nil {
		envelope.Recommendations = []domain.Movie{}
	}
	return &envelope, nil
}
