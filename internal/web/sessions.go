package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/genricoloni/moodflix/internal/domain"
	"github.com/genricoloni/moodflix/internal/metrics"
	"github.com/genricoloni/moodflix/internal/view"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionCookie carries the session id of a browser
const SessionCookie = "moodflix_session"

// _maxSessions bounds the store; the least recently seen session makes room
const _maxSessions = 10_000

type session struct {
	view     *view.View
	lastSeen time.Time
}

// SessionStore keeps one View per browser, in memory only
type SessionStore struct {
	logger      *zap.Logger
	ttl         time.Duration
	maxSessions int
	newView     func() *view.View
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessionStore creates an empty store whose views talk to rec
func NewSessionStore(logger *zap.Logger, cfg domain.Config, rec domain.Recommender) *SessionStore {
	opts := view.OptionsFromConfig(cfg)
	viewLogger := logger.Named("view")
	return &SessionStore{
		logger:      logger,
		ttl:         cfg.GetSessionTTL(),
		maxSessions: _maxSessions,
		newView:     func() *view.View { return view.New(viewLogger, rec, opts) },
		now:         time.Now,
		sessions:    make(map[string]*session),
	}
}

// View returns the View bound to the request's session cookie, creating a
// session when there is none or it expired. The cookie is re-sent on every
// call so it expires ttl after the last request, like the session itself.
func (s *SessionStore) View(w http.ResponseWriter, r *http.Request) *view.View {
	s.mu.Lock()
	now := s.now()
	s.mu.Unlock()

	expired := s.prune(now)
	defer func() { closeViews(expired) }()

	if c, err := r.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		sess, ok := s.sessions[c.Value]
		if ok {
			sess.lastSeen = now
		}
		s.mu.Unlock()

		if ok {
			s.setCookie(w, c.Value)
			return sess.view
		}
	}

	id := uuid.NewString()
	sess := &session{view: s.newView(), lastSeen: now}

	s.mu.Lock()
	if len(s.sessions) > 0 && len(s.sessions) >= s.maxSessions {
		expired = append(expired, s.evictOldestLocked())
	}
	s.sessions[id] = sess
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	s.setCookie(w, id)
	s.logger.Debug("Session created", zap.String("session", id))
	return sess.view
}

func (s *SessionStore) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl.Seconds()),
	})
}

func (s *SessionStore) evictOldestLocked() *view.View {
	var oldestID string
	var oldest *session
	for id, sess := range s.sessions {
		if oldest == nil || sess.lastSeen.Before(oldest.lastSeen) {
			oldestID, oldest = id, sess
		}
	}
	delete(s.sessions, oldestID)
	s.logger.Debug("Session evicted", zap.String("session", oldestID))
	return oldest.view
}

// Len returns the number of live sessions
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) prune(now time.Time) []*view.View {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*view.View
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			expired = append(expired, sess.view)
			delete(s.sessions, id)
		}
	}
	if len(expired) > 0 {
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
		s.logger.Debug("Sessions expired", zap.Int("count", len(expired)))
	}
	return expired
}

// Close drops every session and waits for their in-flight requests
func (s *SessionStore) Close() {
	s.mu.Lock()
	views := make([]*view.View, 0, len(s.sessions))
	for _, sess := range s.sessions {
		views = append(views, sess.view)
	}
	s.sessions = make(map[string]*session)
	metrics.ActiveSessions.Set(0)
	s.mu.Unlock()

	closeViews(views)
}

func closeViews(views []*view.View) {
	for _, v := range views {
		v.Close()
	}
}
