package web

import (
	"net/http"
	"time"

	"github.com/genricoloni/moodflix/internal/domain"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const _postsPerMinute = 60

// NewRouter wires the page, its form actions and the auxiliary endpoints
func NewRouter(
	logger *zap.Logger,
	cfg domain.Config,
	sessions *SessionStore,
	fetch domain.Fetcher,
	proc domain.ImageProcessor,
) http.Handler {
	h := &handlers{
		logger:    logger,
		cfg:       cfg,
		sessions:  sessions,
		fetcher:   fetch,
		processor: proc,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/", h.index)
	r.Get("/moods", h.moods)
	r.Get("/moods/", h.moods)
	r.Get("/healthz", h.healthz)
	r.Get("/posters/*", h.poster)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(_postsPerMinute, time.Minute))
		r.Post("/select", h.selectMood)
		r.Post("/recommend", h.recommend)
		r.Post("/scroll", h.scroll)
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("requestID", chimiddleware.GetReqID(r.Context())))
		})
	}
}
