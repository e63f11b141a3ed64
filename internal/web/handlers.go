package web

import (
	"bytes"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/genricoloni/moodflix/internal/catalog"
	"github.com/genricoloni/moodflix/internal/domain"
	"github.com/genricoloni/moodflix/internal/fetcher"
	"github.com/genricoloni/moodflix/internal/metrics"
	"github.com/genricoloni/moodflix/internal/view"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

var _posterPath = regexp.MustCompile(`^/[A-Za-z0-9_-]+\.(jpg|jpeg|png)$`)

type handlers struct {
	logger    *zap.Logger
	cfg       domain.Config
	sessions  *SessionStore
	fetcher   domain.Fetcher
	processor domain.ImageProcessor
}

type pageData struct {
	State view.State
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	v := h.sessions.View(w, r)

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, pageData{State: v.Snapshot()}); err != nil {
		h.logger.Error("Failed to render page", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (h *handlers) selectMood(w http.ResponseWriter, r *http.Request) {
	v := h.sessions.View(w, r)

	if err := v.SelectMood(r.PostFormValue("mood")); err != nil {
		h.logger.Debug("Mood rejected", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	backToPage(w, r)
}

// recommend serves both the "get recommendations" and "surprise me" buttons
func (h *handlers) recommend(w http.ResponseWriter, r *http.Request) {
	v := h.sessions.View(w, r)

	err := v.RequestRecommendations(r.Context())
	switch {
	case errors.Is(err, view.ErrNoMoodSelected), errors.Is(err, view.ErrRequestInFlight),
		errors.Is(err, view.ErrViewClosed):
		// Same outcome as a disabled button: nothing happens
		h.logger.Debug("Recommendation request ignored", zap.Error(err))
	case err != nil:
		h.logger.Error("Recommendation request failed to start", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	backToPage(w, r)
}

func (h *handlers) scroll(w http.ResponseWriter, r *http.Request) {
	v := h.sessions.View(w, r)

	delta, err := strconv.Atoi(r.PostFormValue("delta"))
	if err != nil {
		http.Error(w, "invalid delta", http.StatusBadRequest)
		return
	}

	region := r.PostFormValue("region")
	off, err := v.ScrollHorizontally(region, delta)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, map[string]any{
			"region": region,
			"left":   off.Left,
			"top":    off.Top,
		})
		return
	}
	backToPage(w, r)
}

func (h *handlers) moods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"moods":   catalog.Keys(),
	})
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) poster(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.PosterProxyEnabled() {
		http.NotFound(w, r)
		return
	}

	path := "/" + chi.URLParam(r, "*")
	if !_posterPath.MatchString(path) {
		metrics.PosterRequests.WithLabelValues("invalid").Inc()
		http.Error(w, "invalid poster path", http.StatusBadRequest)
		return
	}

	data, err := h.fetcher.Fetch(r.Context(), h.cfg.GetImageBaseURL()+path)
	if err != nil {
		if errors.Is(err, fetcher.ErrNotFound) {
			metrics.PosterRequests.WithLabelValues("not_found").Inc()
			http.NotFound(w, r)
			return
		}
		metrics.PosterRequests.WithLabelValues("upstream_error").Inc()
		h.logger.Warn("Failed to fetch poster", zap.String("path", path), zap.Error(err))
		http.Error(w, "poster unavailable", http.StatusBadGateway)
		return
	}

	thumb, err := h.processor.Process(r.Context(), data)
	if err != nil {
		metrics.PosterRequests.WithLabelValues("process_error").Inc()
		h.logger.Warn("Failed to process poster", zap.String("path", path), zap.Error(err))
		http.Error(w, "poster unavailable", http.StatusBadGateway)
		return
	}

	metrics.PosterRequests.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(thumb)
}

func backToPage(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
