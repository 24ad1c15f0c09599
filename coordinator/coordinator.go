// Package coordinator guarantees at most one token refresh is in flight at a
// time. Every caller that asks while a refresh is running gets its result.
package coordinator

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/hmo-portal-session/internal/errors"
	"github.com/jrsteele09/hmo-portal-session/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

const defaultTimeout = 10 * time.Second

// Refresher performs the refresh round-trip and returns the new access token.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// RefresherFunc adapts a function to a Refresher.
type RefresherFunc func(ctx context.Context) (string, error)

func (f RefresherFunc) Refresh(ctx context.Context) (string, error) {
	return f(ctx)
}

// TokenWriter is the part of the token store the coordinator writes to.
type TokenWriter interface {
	SetAccessToken(accessToken string)
	Logout()
}

type Coordinator struct {
	group     singleflight.Group
	refresher Refresher
	store     TokenWriter
	timeout   time.Duration
	metrics   *metrics.Session
}

type Option func(*Coordinator)

// WithTimeout bounds the shared refresh call.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithMetrics(m *metrics.Session) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func New(refresher Refresher, store TokenWriter, options ...Option) *Coordinator {
	c := &Coordinator{
		refresher: refresher,
		store:     store,
		timeout:   defaultTimeout,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// AcquireFreshToken joins the refresh in flight or starts one. On success the
// new token is already in the store when it returns; on failure the store has
// been logged out and ok is false.
//
// The refresh itself is not tied to ctx: a caller giving up early only stops
// waiting and gets ok false with the session untouched, the others still get
// the result.
func (c *Coordinator) AcquireFreshToken(ctx context.Context) (string, bool) {
	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		return c.refresh(ctx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.SharedWaiter()
		}
		if res.Err != nil {
			return "", false
		}
		return res.Val.(string), true
	case <-ctx.Done():
		return "", false
	}
}

func (c *Coordinator) refresh(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	tok, err := c.refresher.Refresh(ctx)
	if err == nil && tok == "" {
		err = apperrors.ErrEmptyRefresh
	}
	if err != nil {
		log.Err(err).Msg("token refresh failed, ending session")
		c.metrics.Refresh("failure")
		c.store.Logout()
		return "", err
	}

	c.metrics.Refresh("success")
	c.store.SetAccessToken(tok)
	log.Debug().Msg("access token refreshed")
	return tok, nil
}
