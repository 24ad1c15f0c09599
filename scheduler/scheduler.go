// Package scheduler refreshes the access token shortly before it expires.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/hmo-portal-session/internal/metrics"
	"github.com/jrsteele09/hmo-portal-session/token"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMinDelay   = 30 * time.Second
	DefaultLeadWindow = 60 * time.Second
)

type State int

const (
	StateIdle State = iota
	StateArmed
)

func (s State) String() string {
	if s == StateArmed {
		return "armed"
	}
	return "idle"
}

// Acquirer is the refresh coordinator as seen by the scheduler.
type Acquirer interface {
	AcquireFreshToken(ctx context.Context) (string, bool)
}

// Scheduler keeps at most one timer armed. It never re-arms itself: a
// successful refresh writes the token into the store, which calls Schedule.
type Scheduler struct {
	mu         sync.Mutex
	acquirer   Acquirer
	timer      *time.Timer
	generation uint64
	stopped    bool
	fireAt     time.Time
	minDelay   time.Duration
	leadWindow time.Duration
	nowFunc    func() time.Time
	metrics    *metrics.Session
}

type Option func(*Scheduler)

func WithMinDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		s.minDelay = d
	}
}

func WithLeadWindow(d time.Duration) Option {
	return func(s *Scheduler) {
		s.leadWindow = d
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.nowFunc = now
	}
}

func WithMetrics(m *metrics.Session) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func New(acquirer Acquirer, options ...Option) *Scheduler {
	s := &Scheduler{
		acquirer:   acquirer,
		minDelay:   DefaultMinDelay,
		leadWindow: DefaultLeadWindow,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// FireTime is when a token expiring at exp should be refreshed, never sooner
// than minDelay from now.
func FireTime(now, exp time.Time, minDelay, leadWindow time.Duration) time.Time {
	earliest := now.Add(minDelay)
	target := exp.Add(-leadWindow)
	if target.Before(earliest) {
		return earliest
	}
	return target
}

// Schedule cancels any armed timer and arms a new one for accessToken.
// A token without a readable exp leaves the scheduler idle.
func (s *Scheduler) Schedule(accessToken string) {
	exp, err := token.ExpiresAt(accessToken)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	if s.stopped {
		return
	}
	if err != nil {
		log.Debug().Err(err).Msg("not scheduling refresh")
		return
	}

	now := s.nowFunc()
	s.fireAt = FireTime(now, exp, s.minDelay, s.leadWindow)
	gen := s.generation
	s.timer = time.AfterFunc(s.fireAt.Sub(now), func() { s.fire(gen) })
	s.metrics.Armed()
	log.Debug().Time("fire_at", s.fireAt).Time("expires_at", exp).Msg("proactive refresh armed")
}

// Cancel disarms the timer. Calling it when idle does nothing.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Stop cancels the timer and ignores every later Schedule call.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.stopLocked()
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		return StateArmed
	}
	return StateIdle
}

// FireAt returns when the armed timer fires, false when idle.
func (s *Scheduler) FireAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return time.Time{}, false
	}
	return s.fireAt, true
}

// stopLocked bumps the generation so a timer already firing becomes a no-op.
func (s *Scheduler) stopLocked() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.fireAt = time.Time{}
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.fireAt = time.Time{}
	s.mu.Unlock()

	s.metrics.Fired()
	if _, ok := s.acquirer.AcquireFreshToken(context.Background()); !ok {
		log.Warn().Msg("proactive refresh failed, session ended")
	}
}
