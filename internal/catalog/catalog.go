// Package catalog holds the fixed, ordered set of moods offered on the page.
package catalog

import "github.com/genricoloni/moodflix/internal/domain"

var _moods = []domain.Mood{
	{Key: "happy", IconID: "bi-emoji-smile", DisplayName: "Happy"},
	{Key: "sad", IconID: "bi-emoji-frown", DisplayName: "Sad"},
	{Key: "excited", IconID: "bi-lightning-charge", DisplayName: "Excited"},
	{Key: "scared", IconID: "bi-exclamation-triangle", DisplayName: "Scared"},
	{Key: "romantic", IconID: "bi-heart-fill", DisplayName: "Romantic"},
	{Key: "thoughtful", IconID: "bi-lightbulb", DisplayName: "Thoughtful"},
	{Key: "adventurous", IconID: "bi-compass", DisplayName: "Adventurous"},
	{Key: "relaxed", IconID: "bi-cup-hot", DisplayName: "Relaxed"},
	{Key: "mysterious", IconID: "bi-incognito", DisplayName: "Mysterious"},
	{Key: "inspired", IconID: "bi-stars", DisplayName: "Inspired"},
}

var _byKey = func() map[string]domain.Mood {
	m := make(map[string]domain.Mood, len(_moods))
	for _, mood := range _moods {
		m[mood.Key] = mood
	}
	return m
}()

// Moods returns a copy of the catalog in display order
func Moods() []domain.Mood {
	out := make([]domain.Mood, len(_moods))
	copy(out, _moods)
	return out
}

// Keys returns the mood keys in display order
func Keys() []string {
	keys := make([]string, len(_moods))
	for i, m := range _moods {
		keys[i] = m.Key
	}
	return keys
}

// Lookup returns the mood registered under key
func Lookup(key string) (domain.Mood, bool) {
	m, ok := _byKey[key]
	return m, ok
}

// Contains reports whether key belongs to the catalog
func Contains(key string) bool {
	_, ok := _byKey[key]
	return ok
}
