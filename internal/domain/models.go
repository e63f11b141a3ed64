package domain

// Mood is one entry of the fixed mood catalog
type Mood struct {
	// Key is the identifier sent to the recommendation backend
	Key string
	// IconID is the bootstrap-icons class rendered on the card
	IconID string
	// DisplayName is the human readable label
	DisplayName string
}

// Movie is a single recommendation as returned by the backend
type Movie struct {
	ID          int      `json:"id,omitempty"`
	Title       string   `json:"title"`
	PosterPath  *string  `json:"poster_path"`
	Overview    *string  `json:"overview"`
	Genres      []string `json:"genres"`
	Rating      float64  `json:"rating,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
	Director    string   `json:"director,omitempty"`
}

// RecommendationRequest is the body posted to the backend
type RecommendationRequest struct {
	Mood  string `json:"mood" validate:"required,mood"`
	Count int    `json:"count" validate:"min=1,max=50"`
}

// RecommendationResponse is the envelope returned by the backend
type RecommendationResponse struct {
	Success         bool    `json:"success"`
	Mood            string  `json:"mood,omitempty"`
	Count           int     `json:"count,omitempty"`
	Recommendations []Movie `json:"recommendations"`
	Error           string  `json:"error,omitempty"`
}

// ViewKind identifies which display region is visible
type ViewKind string

const (
	// ViewEmpty is shown before the first request
	ViewEmpty ViewKind = "empty"
	// ViewLoading is shown while a request is in flight
	ViewLoading ViewKind = "loading"
	// ViewResults is shown after a successful response
	ViewResults ViewKind = "results"
	// ViewFailed is shown when the request could not be served
	ViewFailed ViewKind = "failed"
)

// PosterSize holds the thumbnail dimensions produced by the poster proxy
type PosterSize struct {
	Width  int
	Height int
}
