// Package intended remembers where a user was headed when a login got in the way.
// The value is written once by the guard and consumed once after the next login.
package intended

import "context"

// DefaultKey is the well-known key prefix the route is persisted under.
const DefaultKey = "hmo:intended_route"

// Store persists a single intended route.
type Store interface {
	// Set overwrites any previously stored route.
	Set(ctx context.Context, path string) error
	// Consume returns the stored route and deletes it; ok is false when nothing was stored.
	Consume(ctx context.Context) (path string, ok bool, err error)
}
