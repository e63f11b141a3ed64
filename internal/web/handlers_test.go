package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/genricoloni/moodflix/internal/domain"
	"github.com/genricoloni/moodflix/internal/fetcher"
	"github.com/genricoloni/moodflix/internal/view/mocks"
	"github.com/goccy/go-json"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

type fakeConfig struct {
	posterProxy bool
	ttl         time.Duration
}

func (c *fakeConfig) GetListenAddr() string            { return "127.0.0.1:0" }
func (c *fakeConfig) GetBackendURL() string            { return "http://backend.invalid" }
func (c *fakeConfig) GetImageBaseURL() string          { return "https://image.tmdb.org/t/p/w500" }
func (c *fakeConfig) GetRecommendationCount() int      { return 10 }
func (c *fakeConfig) GetRequestTimeout() time.Duration { return time.Second }
func (c *fakeConfig) PosterProxyEnabled() bool         { return c.posterProxy }
func (c *fakeConfig) GetSessionTTL() time.Duration {
	if c.ttl == 0 {
		return time.Hour
	}
	return c.ttl
}

type fakeFetcher struct {
	data []byte
	err  error
	url  string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.url = url
	return f.data, f.err
}

type fakeProcessor struct {
	err error
}

func (p *fakeProcessor) Process(ctx context.Context, data []byte) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return append([]byte("thumb:"), data...), nil
}

type testEnv struct {
	server   *httptest.Server
	client   *http.Client
	rec      *mocks.MockRecommender
	sessions *SessionStore
	fetcher  *fakeFetcher
	cfg      *fakeConfig
}

func newTestEnv(t *testing.T, cfg *fakeConfig) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = &fakeConfig{}
	}

	ctrl := gomock.NewController(t)
	rec := mocks.NewMockRecommender(ctrl)
	sessions := NewSessionStore(zap.NewNop(), cfg, rec)
	f := &fakeFetcher{data: []byte("jpeg")}
	router := NewRouter(zap.NewNop(), cfg, sessions, f, &fakeProcessor{})

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		sessions.Close()
	})

	return &testEnv{
		server:   srv,
		client:   newBrowser(t),
		rec:      rec,
		sessions: sessions,
		fetcher:  f,
		cfg:      cfg,
	}
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (e *testEnv) page(t *testing.T, client *http.Client) *goquery.Document {
	t.Helper()
	resp, err := client.Get(e.server.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /: status %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	return doc
}

func (e *testEnv) post(t *testing.T, client *http.Client, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := client.PostForm(e.server.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// waitForRegion polls the page until the given region is the visible one
func (e *testEnv) waitForRegion(t *testing.T, client *http.Client, id string) *goquery.Document {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		doc := e.page(t, client)
		if visibleRegion(doc) == id {
			return doc
		}
		if time.Now().After(deadline) {
			t.Fatalf("region %s never became visible, last visible: %s", id, visibleRegion(doc))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// fakeClock replaces the session clock with one the test advances by hand
func (e *testEnv) fakeClock() *atomic.Int64 {
	clock := new(atomic.Int64)
	clock.Store(time.Now().UnixNano())
	e.sessions.mu.Lock()
	e.sessions.now = func() time.Time { return time.Unix(0, clock.Load()) }
	e.sessions.mu.Unlock()
	return clock
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	return nil
}

func visibleRegion(doc *goquery.Document) string {
	var visible []string
	for _, id := range []string{"emptyState", "loadingState", "resultsArea", "failedState"} {
		style, _ := doc.Find("#" + id).Attr("style")
		if strings.Contains(style, "display:block") {
			visible = append(visible, id)
		}
	}
	return strings.Join(visible, ",")
}

func TestIndex_InitialPage(t *testing.T) {
	env := newTestEnv(t, nil)
	doc := env.page(t, env.client)

	for _, id := range []string{"moodGrid", "getRecommendationsBtn", "surpriseMeBtn", "emptyState", "loadingState", "resultsArea", "resultsTitle", "moviesGrid"} {
		if doc.Find("#"+id).Length() != 1 {
			t.Errorf("page is missing #%s", id)
		}
	}

	if n := doc.Find("#moodGrid .mood-card").Length(); n != 10 {
		t.Errorf("expected 10 mood cards, got %d", n)
	}
	if n := doc.Find(".mood-card.active").Length(); n != 0 {
		t.Errorf("expected no active card, got %d", n)
	}
	if icon, _ := doc.Find("#moodGrid .mood-card").First().Find("i").Attr("class"); icon != "bi bi-emoji-smile" {
		t.Errorf("unexpected first icon %q", icon)
	}
	for _, id := range []string{"getRecommendationsBtn", "surpriseMeBtn"} {
		if _, disabled := doc.Find("#" + id).Attr("disabled"); !disabled {
			t.Errorf("#%s should be disabled before selection", id)
		}
	}
	if got := visibleRegion(doc); got != "emptyState" {
		t.Errorf("expected only emptyState visible, got %q", got)
	}
	if env.sessions.Len() != 1 {
		t.Errorf("expected one session, got %d", env.sessions.Len())
	}
}

func TestSelectMood_ActivatesSingleCard(t *testing.T) {
	env := newTestEnv(t, nil)

	env.post(t, env.client, "/select", url.Values{"mood": {"sad"}})
	env.post(t, env.client, "/select", url.Values{"mood": {"happy"}})
	doc := env.page(t, env.client)

	active := doc.Find(".mood-card.active")
	if active.Length() != 1 {
		t.Fatalf("expected exactly one active card, got %d", active.Length())
	}
	if v, _ := active.Attr("value"); v != "happy" {
		t.Errorf("active card = %q", v)
	}
	if _, disabled := doc.Find("#getRecommendationsBtn").Attr("disabled"); disabled {
		t.Error("request button should be enabled after selection")
	}
}

func TestSelectMood_UnknownMood(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.post(t, env.client, "/select", url.Values{"mood": {"bored"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRecommend_WithoutSelectionIsNoop(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.post(t, env.client, "/recommend", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected redirect back to page, got %d", resp.StatusCode)
	}
	if got := visibleRegion(env.page(t, env.client)); got != "emptyState" {
		t.Errorf("expected emptyState, got %q", got)
	}
}

func TestRecommend_EmptyResults(t *testing.T) {
	env := newTestEnv(t, nil)
	env.rec.EXPECT().Recommend(gomock.Any(), "happy", 10).
		Return(&domain.RecommendationResponse{Success: true, Recommendations: []domain.Movie{}}, nil)

	env.post(t, env.client, "/select", url.Values{"mood": {"happy"}})
	env.post(t, env.client, "/recommend", nil)
	doc := env.waitForRegion(t, env.client, "resultsArea")

	if title := doc.Find("#resultsTitle").Text(); title != "HAPPY Picks" {
		t.Errorf("title = %q", title)
	}
	if n := doc.Find("#moviesGrid .movie-card").Length(); n != 0 {
		t.Errorf("expected empty grid, got %d cards", n)
	}
}

func TestRecommend_RendersEscapedCards(t *testing.T) {
	env := newTestEnv(t, nil)
	poster := "/abc.jpg"
	overview := strings.Repeat("o", 150)
	evil := `<script>alert("x")</script>`

	env.rec.EXPECT().Recommend(gomock.Any(), "scared", 10).
		Return(&domain.RecommendationResponse{Success: true, Recommendations: []domain.Movie{
			{Title: "Alien", PosterPath: &poster, Overview: &overview, Genres: []string{"Horror", "Sci-Fi"}},
			{Title: evil, Genres: []string{`<b>Thriller</b>`}},
		}}, nil)

	env.post(t, env.client, "/select", url.Values{"mood": {"scared"}})
	env.post(t, env.client, "/recommend", nil)
	doc := env.waitForRegion(t, env.client, "resultsArea")

	cards := doc.Find("#moviesGrid .movie-card")
	if cards.Length() != 2 {
		t.Fatalf("expected 2 cards, got %d", cards.Length())
	}

	first := cards.Eq(0)
	if src, _ := first.Find(".movie-poster img").Attr("src"); src != "https://image.tmdb.org/t/p/w500/abc.jpg" {
		t.Errorf("poster src = %q", src)
	}
	if plot := first.Find(".movie-plot").Text(); len(plot) != 120 || !strings.HasSuffix(plot, "...") {
		t.Errorf("plot not truncated: %d chars", len(plot))
	}
	if full, _ := first.Find(".movie-plot").Attr("title"); full != overview {
		t.Error("full overview should be in the title attribute")
	}
	var genres []string
	first.Find(".genre-badge").Each(func(_ int, s *goquery.Selection) { genres = append(genres, s.Text()) })
	if strings.Join(genres, ",") != "Horror,Sci-Fi" {
		t.Errorf("genres = %v", genres)
	}

	second := cards.Eq(1)
	if second.Find("img").Length() != 0 || second.Find(".poster-placeholder").Length() != 1 {
		t.Error("movie without poster should render the placeholder block")
	}
	if second.Find("h6").Text() != evil {
		t.Errorf("title should be shown as text, got %q", second.Find("h6").Text())
	}
	if doc.Find("#moviesGrid script, #moviesGrid b").Length() != 0 {
		t.Error("backend text must not be interpreted as markup")
	}
	if second.Find(".movie-plot").Text() != "No plot available." {
		t.Errorf("plot = %q", second.Find(".movie-plot").Text())
	}
}

func TestRecommend_FailureShowsRetry(t *testing.T) {
	env := newTestEnv(t, nil)
	gomock.InOrder(
		env.rec.EXPECT().Recommend(gomock.Any(), "sad", 10).
			Return(nil, &domain.BackendError{StatusCode: 200, Message: "model missing"}),
		env.rec.EXPECT().Recommend(gomock.Any(), "sad", 10).
			Return(&domain.RecommendationResponse{Success: true, Recommendations: []domain.Movie{{Title: "Up"}}}, nil),
	)

	env.post(t, env.client, "/select", url.Values{"mood": {"sad"}})
	env.post(t, env.client, "/recommend", nil)
	doc := env.waitForRegion(t, env.client, "failedState")

	if !strings.Contains(doc.Find("#failedState").Text(), "model missing") {
		t.Errorf("failure reason not shown: %q", doc.Find("#failedState").Text())
	}
	if doc.Find("#retryBtn").Length() != 1 {
		t.Fatal("retry affordance missing")
	}

	env.post(t, env.client, "/recommend", nil)
	doc = env.waitForRegion(t, env.client, "resultsArea")
	if doc.Find("#moviesGrid .movie-card").Length() != 1 {
		t.Error("retry should render results")
	}
}

func TestRecommend_LoadingPageRefreshes(t *testing.T) {
	env := newTestEnv(t, nil)
	release := make(chan struct{})
	env.rec.EXPECT().Recommend(gomock.Any(), "relaxed", 10).
		DoAndReturn(func(ctx context.Context, mood string, count int) (*domain.RecommendationResponse, error) {
			<-release
			return &domain.RecommendationResponse{Success: true}, nil
		}).Times(1)
	defer close(release)

	env.post(t, env.client, "/select", url.Values{"mood": {"relaxed"}})
	env.post(t, env.client, "/recommend", nil)
	// Second click while loading must not issue another request
	env.post(t, env.client, "/recommend", nil)

	doc := env.page(t, env.client)
	if got := visibleRegion(doc); got != "loadingState" {
		t.Fatalf("expected loadingState, got %q", got)
	}
	if doc.Find(`meta[http-equiv="refresh"]`).Length() != 1 {
		t.Error("loading page should refresh itself")
	}
}

func TestSessions_AreIndependent(t *testing.T) {
	env := newTestEnv(t, nil)
	other := newBrowser(t)

	env.post(t, env.client, "/select", url.Values{"mood": {"romantic"}})

	doc := env.page(t, other)
	if doc.Find(".mood-card.active").Length() != 0 {
		t.Error("selection leaked into another session")
	}
	if env.sessions.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", env.sessions.Len())
	}
}

func TestSessions_ExpireWhenIdle(t *testing.T) {
	env := newTestEnv(t, &fakeConfig{ttl: time.Minute})
	clock := env.fakeClock()

	env.post(t, env.client, "/select", url.Values{"mood": {"romantic"}})

	clock.Add(int64(2 * time.Minute))
	doc := env.page(t, env.client)
	if doc.Find(".mood-card.active").Length() != 0 {
		t.Error("expired session should start over")
	}
	if env.sessions.Len() != 1 {
		t.Errorf("expected only the fresh session, got %d", env.sessions.Len())
	}
}

func TestSessions_CookieSlidesWithActivity(t *testing.T) {
	env := newTestEnv(t, &fakeConfig{ttl: 30 * time.Minute})
	clock := env.fakeClock()

	get := func() *http.Response {
		t.Helper()
		resp, err := env.client.Get(env.server.URL + "/")
		if err != nil {
			t.Fatalf("GET /: %v", err)
		}
		resp.Body.Close()
		return resp
	}

	first := sessionCookie(get())
	if first == nil {
		t.Fatal("first visit should set the session cookie")
	}
	env.post(t, env.client, "/select", url.Values{"mood": {"thoughtful"}})

	for i := 0; i < 3; i++ {
		clock.Add(int64(20 * time.Minute))
		refreshed := sessionCookie(get())
		if refreshed == nil {
			t.Fatalf("visit %d: cookie was not refreshed", i)
		}
		if refreshed.Value != first.Value {
			t.Fatalf("visit %d: session changed from %s to %s", i, first.Value, refreshed.Value)
		}
		if refreshed.MaxAge != int((30 * time.Minute).Seconds()) {
			t.Errorf("visit %d: MaxAge = %d", i, refreshed.MaxAge)
		}
	}

	// One hour after creation, but never idle for longer than the ttl
	doc := env.page(t, env.client)
	if got := doc.Find(".mood-card.active").AttrOr("value", ""); got != "thoughtful" {
		t.Errorf("active session lost its selection, active card %q", got)
	}
	if env.sessions.Len() != 1 {
		t.Errorf("expected a single session, got %d", env.sessions.Len())
	}
}

func TestSessions_StoreIsBounded(t *testing.T) {
	env := newTestEnv(t, nil)
	clock := env.fakeClock()
	env.sessions.mu.Lock()
	env.sessions.maxSessions = 2
	env.sessions.mu.Unlock()

	oldest := newBrowser(t)
	env.post(t, oldest, "/select", url.Values{"mood": {"happy"}})
	for i := 0; i < 2; i++ {
		clock.Add(int64(time.Second))
		env.page(t, newBrowser(t))
	}

	if env.sessions.Len() != 2 {
		t.Fatalf("expected store capped at 2, got %d", env.sessions.Len())
	}

	clock.Add(int64(time.Second))
	if doc := env.page(t, oldest); doc.Find(".mood-card.active").Length() != 0 {
		t.Error("least recently seen session should have been evicted")
	}
}

func TestScroll(t *testing.T) {
	env := newTestEnv(t, nil)

	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/scroll", strings.NewReader("region=moodGrid&delta=300"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	resp, err := env.client.Do(req)
	if err != nil {
		t.Fatalf("POST /scroll: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Region string `json:"region"`
		Left   int    `json:"left"`
		Top    int    `json:"top"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Region != "moodGrid" || body.Left != 300 || body.Top != 0 {
		t.Errorf("unexpected scroll state %+v", body)
	}

	doc := env.page(t, env.client)
	if left, _ := doc.Find("#moodGrid").Attr("data-scroll-left"); left != "300" {
		t.Errorf("page should restore the offset, got %q", left)
	}

	tests := []struct {
		name string
		form url.Values
	}{
		{name: "Unknown Region", form: url.Values{"region": {"sidebar"}, "delta": {"10"}}},
		{name: "Bad Delta", form: url.Values{"region": {"moodGrid"}, "delta": {"far"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := env.post(t, env.client, "/scroll", tt.form); resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestMoods(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := env.client.Get(env.server.URL + "/moods/")
	if err != nil {
		t.Fatalf("GET /moods/: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Success bool     `json:"success"`
		Moods   []string `json:"moods"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || len(body.Moods) != 10 || body.Moods[0] != "happy" || body.Moods[9] != "inspired" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestPosterProxy(t *testing.T) {
	tests := []struct {
		name         string
		proxy        bool
		path         string
		fetchErr     error
		expectedCode int
		expectedBody string
	}{
		{name: "Disabled", proxy: false, path: "/posters/abc.jpg", expectedCode: http.StatusNotFound},
		{name: "Success", proxy: true, path: "/posters/abc.jpg", expectedCode: http.StatusOK, expectedBody: "thumb:jpeg"},
		{name: "Invalid Path", proxy: true, path: "/posters/..%2Fetc%2Fpasswd", expectedCode: http.StatusBadRequest},
		{name: "Wrong Extension", proxy: true, path: "/posters/abc.gif", expectedCode: http.StatusBadRequest},
		{name: "Upstream Missing", proxy: true, path: "/posters/abc.jpg", fetchErr: fetcher.ErrNotFound, expectedCode: http.StatusNotFound},
		{name: "Upstream Error", proxy: true, path: "/posters/abc.jpg", fetchErr: errors.New("network error"), expectedCode: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeConfig{posterProxy: tt.proxy})
			env.fetcher.err = tt.fetchErr

			resp, err := env.client.Get(env.server.URL + tt.path)
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.expectedCode {
				t.Fatalf("expected %d, got %d", tt.expectedCode, resp.StatusCode)
			}
			if tt.expectedBody == "" {
				return
			}
			body, _ := io.ReadAll(resp.Body)
			if string(body) != tt.expectedBody {
				t.Errorf("body = %q", body)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
				t.Errorf("content type = %q", ct)
			}
			if env.fetcher.url != "https://image.tmdb.org/t/p/w500/abc.jpg" {
				t.Errorf("fetched %q", env.fetcher.url)
			}
		})
	}
}

func TestPosterProxy_CardsUseLocalURL(t *testing.T) {
	env := newTestEnv(t, &fakeConfig{posterProxy: true})
	poster := "/abc.jpg"
	env.rec.EXPECT().Recommend(gomock.Any(), "inspired", 10).
		Return(&domain.RecommendationResponse{Success: true, Recommendations: []domain.Movie{{Title: "Rocky", PosterPath: &poster}}}, nil)

	env.post(t, env.client, "/select", url.Values{"mood": {"inspired"}})
	env.post(t, env.client, "/recommend", nil)
	doc := env.waitForRegion(t, env.client, "resultsArea")

	if src, _ := doc.Find(".movie-poster img").Attr("src"); src != "/posters/abc.jpg" {
		t.Errorf("poster src = %q", src)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := env.client.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
