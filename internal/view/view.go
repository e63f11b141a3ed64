// Package view implements the mood selector: the mood grid, the single
// selection, the recommendation request and the rendered movie cards.
//
// A View is owned by one browser session. Its methods are safe for
// concurrent use because HTTP handlers and the background request
// goroutine both touch it.
package view

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/moodflix/internal/catalog"
	"github.com/genricoloni/moodflix/internal/domain"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

var (
	ErrUnknownMood     = errors.New("unknown mood")
	ErrNoMoodSelected  = errors.New("no mood selected")
	ErrRequestInFlight = errors.New("recommendation request already in flight")
	ErrUnknownRegion   = errors.New("unknown scroll region")
	ErrViewClosed      = errors.New("view closed")
)

const (
	// PlotLimit is the longest overview shown verbatim, in characters
	PlotLimit = 120
	// NoPlot replaces a missing or empty overview
	NoPlot = "No plot available."

	RegionMoods  = "moodGrid"
	RegionMovies = "moviesGrid"

	_ellipsis = "..."

	// horizontal distance between two cards, card width plus gap
	_moodCardPitch  = 136
	_movieCardPitch = 236
)

// Options tune a View
type Options struct {
	ImageBaseURL string
	// PosterProxy routes poster images through the local /posters endpoint
	PosterProxy bool
	Count       int
	Timeout     time.Duration
}

// OptionsFromConfig derives view options from the application configuration
func OptionsFromConfig(cfg domain.Config) Options {
	return Options{
		ImageBaseURL: cfg.GetImageBaseURL(),
		PosterProxy:  cfg.PosterProxyEnabled(),
		Count:        cfg.GetRecommendationCount(),
		Timeout:      cfg.GetRequestTimeout(),
	}
}

// View is the mood selector of a single session
type View struct {
	logger *zap.Logger
	rec    domain.Recommender
	opts   Options

	mu         sync.Mutex
	selection  Selection
	kind       domain.ViewKind
	title      string
	movies     []MovieCard
	failReason string
	inFlight   bool
	closed     bool
	cancel     context.CancelFunc
	regions    map[string]*ScrollOffset

	wg conc.WaitGroup
}

// New creates a View in the Empty state with nothing selected
func New(logger *zap.Logger, rec domain.Recommender, opts Options) *View {
	return &View{
		logger: logger,
		rec:    rec,
		opts:   opts,
		kind:   domain.ViewEmpty,
		regions: map[string]*ScrollOffset{
			RegionMoods:  {Extent: extentFor(len(catalog.Keys()), _moodCardPitch)},
			RegionMovies: {},
		},
	}
}

// RenderMoodCatalog returns one card per catalog mood, in catalog order.
// At most one card is active: the selected one.
func (v *View) RenderMoodCatalog() []MoodCard {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.moodCardsLocked()
}

func (v *View) moodCardsLocked() []MoodCard {
	selected, ok := v.selection.Key()
	moods := catalog.Moods()
	cards := make([]MoodCard, len(moods))
	for i, m := range moods {
		cards[i] = MoodCard{Mood: m, Active: ok && m.Key == selected}
	}
	return cards
}

// SelectMood makes key the single active mood and enables the request action.
// Keys outside the catalog are rejected and leave the state untouched.
func (v *View) SelectMood(key string) error {
	if !catalog.Contains(key) {
		return fmt.Errorf("%w: %q", ErrUnknownMood, key)
	}

	v.mu.Lock()
	v.selection.Set(key)
	v.mu.Unlock()

	v.logger.Debug("Mood selected", zap.String("mood", key))
	return nil
}

// CanRequest reports whether the request action is enabled.
// It turns true on the first selection and stays true.
func (v *View) CanRequest() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.selection.Key()
	return ok
}

// RequestRecommendations switches to Loading and asks the backend for movies
// matching the selected mood. The request runs in the background; the
// outcome moves the view to Results or Failed.
//
// Only one request may be in flight per View; a second call while one is
// running returns ErrRequestInFlight and changes nothing. A closed View
// returns ErrViewClosed.
func (v *View) RequestRecommendations(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	mood, ok := v.selection.Key()
	if !ok {
		v.mu.Unlock()
		return ErrNoMoodSelected
	}
	if v.inFlight {
		v.mu.Unlock()
		return ErrRequestInFlight
	}

	// The request outlives the HTTP handler that triggered it
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.opts.Timeout)
	v.inFlight = true
	v.cancel = cancel
	v.kind = domain.ViewLoading

	title := strings.ToUpper(mood) + " Picks"

	// Started under the lock so Close either sees the goroutine or rejects it
	v.wg.Go(func() {
		defer cancel()
		v.fetch(reqCtx, mood, title)
	})
	v.mu.Unlock()

	v.logger.Info("Requesting recommendations", zap.String("mood", mood), zap.Int("count", v.opts.Count))
	return nil
}

func (v *View) fetch(ctx context.Context, mood, title string) {
	start := time.Now()
	resp, err := v.rec.Recommend(ctx, mood, v.opts.Count)

	if err != nil {
		reason := failureReason(err)
		v.logger.Error("Recommendation request failed",
			zap.String("mood", mood),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))

		v.mu.Lock()
		v.kind = domain.ViewFailed
		v.failReason = reason
		v.finishLocked()
		v.mu.Unlock()
		return
	}

	v.logger.Info("Recommendations rendered",
		zap.String("mood", mood),
		zap.Int("movies", len(resp.Recommendations)),
		zap.Duration("elapsed", time.Since(start)))

	v.mu.Lock()
	v.renderResultsLocked(resp.Recommendations, title)
	v.finishLocked()
	v.mu.Unlock()
}

func (v *View) finishLocked() {
	v.inFlight = false
	v.cancel = nil
}

// RenderResults replaces the movie grid with one card per movie, in order,
// sets the results title and shows the results region.
func (v *View) RenderResults(movies []domain.Movie, title string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.renderResultsLocked(movies, title)
}

func (v *View) renderResultsLocked(movies []domain.Movie, title string) {
	cards := make([]MovieCard, 0, len(movies))
	for _, m := range movies {
		cards = append(cards, v.movieCard(m))
	}

	v.movies = cards
	v.title = title
	v.failReason = ""
	v.kind = domain.ViewResults
	v.regions[RegionMovies] = &ScrollOffset{Extent: extentFor(len(cards), _movieCardPitch)}
}

func (v *View) movieCard(m domain.Movie) MovieCard {
	card := MovieCard{
		Title:  m.Title,
		Genres: append([]string(nil), m.Genres...),
	}

	if m.PosterPath != nil && *m.PosterPath != "" {
		card.HasPoster = true
		card.PosterURL = v.posterURL(*m.PosterPath)
	}

	if m.Overview != nil {
		card.FullOverview = *m.Overview
	}
	card.Plot = TruncatePlot(card.FullOverview)
	return card
}

func (v *View) posterURL(path string) string {
	if v.opts.PosterProxy {
		return "/posters" + path
	}
	return v.opts.ImageBaseURL + path
}

// TruncatePlot shortens an overview to PlotLimit characters, replacing the
// tail with "..." when it is longer. Empty overviews become NoPlot.
func TruncatePlot(overview string) string {
	if overview == "" {
		return NoPlot
	}
	r := []rune(overview)
	if len(r) <= PlotLimit {
		return overview
	}
	return string(r[:PlotLimit-len(_ellipsis)]) + _ellipsis
}

// ShowLoadingState shows the loading region. Data is left as is.
func (v *View) ShowLoadingState() {
	v.mu.Lock()
	v.kind = domain.ViewLoading
	v.mu.Unlock()
}

// ScrollHorizontally moves the horizontal offset of a region by delta pixels,
// clamped to the scrollable extent. The vertical offset never changes.
func (v *View) ScrollHorizontally(regionID string, delta int) (ScrollOffset, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	r, ok := v.regions[regionID]
	if !ok {
		return ScrollOffset{}, fmt.Errorf("%w: %q", ErrUnknownRegion, regionID)
	}

	// Bounding delta first keeps the sum from overflowing
	delta = min(max(delta, -r.Extent), r.Extent)
	r.Left = min(max(r.Left+delta, 0), r.Extent)
	return *r, nil
}

// Snapshot returns a copy of the current state for rendering
func (v *View) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	selected, ok := v.selection.Key()
	scroll := make(map[string]ScrollOffset, len(v.regions))
	for id, r := range v.regions {
		scroll[id] = *r
	}

	return State{
		Kind:         v.kind,
		Moods:        v.moodCardsLocked(),
		SelectedMood: selected,
		CanRequest:   ok,
		InFlight:     v.inFlight,
		Title:        v.title,
		Movies:       append([]MovieCard(nil), v.movies...),
		FailReason:   v.failReason,
		Scroll:       scroll,
	}
}

// Wait blocks until the background request, if any, has finished
func (v *View) Wait() {
	v.wg.Wait()
}

// Close aborts the in-flight request and waits for it to finish.
// Later requests are rejected with ErrViewClosed.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	if v.cancel != nil {
		v.cancel()
	}
	v.mu.Unlock()
	v.wg.Wait()
}

func failureReason(err error) string {
	var be *domain.BackendError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "The recommendation service did not answer in time."
	case errors.As(err, &be) && be.Message != "":
		return "The recommendation service could not help: " + be.Message
	case errors.As(err, &be):
		return "The recommendation service could not help with this mood."
	default:
		return "Could not reach the recommendation service."
	}
}

func extentFor(cards, pitch int) int {
	return max(cards-1, 0) * pitch
}
