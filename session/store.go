package session

import (
	"sync"
	"time"

	apperrors "github.com/jrsteele09/hmo-portal-session/internal/errors"
	"github.com/jrsteele09/hmo-portal-session/token"
	"github.com/jrsteele09/hmo-portal-session/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Scheduler is told about every token the store accepts and is cancelled on logout.
type Scheduler interface {
	Schedule(accessToken string)
	Cancel()
}

// Store is the Token Store. It owns the one Session and never performs I/O.
// Collaborators are invoked after the lock is released.
type Store struct {
	mu        sync.RWMutex
	current   Session
	hydrating bool
	scheduler Scheduler
	nowFunc   func() time.Time
}

var _ oauth2.TokenSource = (*Store)(nil)

type StoreOption func(*Store)

func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

func NewStore(options ...StoreOption) *Store {
	s := &Store{nowFunc: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// AttachScheduler wires the proactive refresh scheduler. The scheduler itself
// depends on the refresh coordinator, which writes back here, so it is attached
// after construction.
func (s *Store) AttachScheduler(scheduler Scheduler) {
	s.mu.Lock()
	s.scheduler = scheduler
	s.mu.Unlock()
}

// Session returns a copy of the current session.
func (s *Store) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// Snapshot returns the session and its lifecycle state read together.
func (s *Store) Snapshot() (Session, State) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.stateLocked()
}

func (s *Store) stateLocked() State {
	switch {
	case s.hydrating:
		return StateHydrating
	case s.current.Authenticated:
		return StateAuthenticated
	default:
		return StateUnauthenticated
	}
}

// BeginHydration marks the session as being silently re-established.
// SetSession or Logout ends it.
func (s *Store) BeginHydration() {
	s.mu.Lock()
	s.hydrating = true
	s.mu.Unlock()
}

// SetSession replaces user and token together after a login or bootstrap.
func (s *Store) SetSession(user users.User, accessToken string) {
	s.mu.Lock()
	s.current = fromUser(user, accessToken)
	s.hydrating = false
	scheduler := s.scheduler
	s.mu.Unlock()

	log.Debug().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("session established")
	if scheduler != nil {
		scheduler.Schedule(accessToken)
	}
}

// SetAccessToken replaces only the token, as after a refresh. A token that
// arrives after the session was cleared (and outside hydration) is dropped.
func (s *Store) SetAccessToken(accessToken string) {
	s.mu.Lock()
	if !s.hydrating && s.current.UserID == "" {
		s.mu.Unlock()
		log.Debug().Msg("dropping access token for a cleared session")
		return
	}
	next := s.current
	next.AccessToken = accessToken
	next.Authenticated = accessToken != "" && !token.IsExpired(accessToken, s.nowFunc())
	s.current = next
	scheduler := s.scheduler
	s.mu.Unlock()

	if scheduler != nil {
		scheduler.Schedule(accessToken)
	}
}

// Logout clears the session and cancels any armed proactive refresh.
func (s *Store) Logout() {
	s.mu.Lock()
	wasAuthenticated := s.current.Authenticated
	s.current = Session{}
	s.hydrating = false
	scheduler := s.scheduler
	s.mu.Unlock()

	if wasAuthenticated {
		log.Debug().Msg("session cleared")
	}
	if scheduler != nil {
		scheduler.Cancel()
	}
}

// IsTokenExpired is fail closed: no token or an unreadable exp is expired.
func (s *Store) IsTokenExpired() bool {
	s.mu.RLock()
	raw := s.current.AccessToken
	s.mu.RUnlock()
	return token.IsExpired(raw, s.nowFunc())
}

// AccessToken returns the current token, empty when there is none.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.AccessToken
}

// IsAuthenticated holds the Session invariant: flagged, present and unexpired.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	return cur.Authenticated && cur.AccessToken != "" && !token.IsExpired(cur.AccessToken, s.nowFunc())
}

// CurrentUser returns the signed-in user, false when there is none or the
// profile has not been loaded yet.
func (s *Store) CurrentUser() (users.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.current.Authenticated || s.current.UserID == "" {
		return users.User{}, false
	}
	return s.current.User(), true
}

// Token implements oauth2.TokenSource for read-only collaborators.
func (s *Store) Token() (*oauth2.Token, error) {
	raw := s.AccessToken()
	if raw == "" {
		return nil, apperrors.ErrNoSession
	}
	return token.OAuth2(raw), nil
}
