package view

import (
	"github.com/genricoloni/moodflix/internal/domain"
)

// Selection holds the single selected mood key.
// The zero value has nothing selected.
type Selection struct {
	key string
	set bool
}

// Key returns the selected mood key and whether one was ever selected
func (s Selection) Key() (string, bool) {
	return s.key, s.set
}

// Set replaces the current selection
func (s *Selection) Set(key string) {
	s.key = key
	s.set = true
}

// MoodCard is one selectable entry of the mood grid
type MoodCard struct {
	domain.Mood
	Active bool
}

// MovieCard is one rendered recommendation.
// All strings are raw backend text; escaping is left to html/template.
type MovieCard struct {
	Title string
	// PosterURL is empty when HasPoster is false and the placeholder block is shown
	PosterURL    string
	HasPoster    bool
	Plot         string
	FullOverview string
	Genres       []string
}

// ScrollOffset is the scroll position of a horizontally scrollable region
type ScrollOffset struct {
	Left   int
	Top    int
	Extent int // maximum Left
}

// State is an immutable snapshot of a View, ready for rendering
type State struct {
	Kind         domain.ViewKind
	Moods        []MoodCard
	SelectedMood string
	CanRequest   bool
	InFlight     bool
	Title        string
	Movies       []MovieCard
	FailReason   string
	Scroll       map[string]ScrollOffset
}

// Visible reports whether the region of the given kind is the one shown
func (s State) Visible(kind domain.ViewKind) bool {
	return s.Kind == kind
}
