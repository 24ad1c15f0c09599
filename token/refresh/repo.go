package refresh

import (
	"time"
)

// StoredRefreshToken represents the server-side storage of refresh credential metadata.
// The browser only ever holds the Token value, inside an http-only cookie.
type StoredRefreshToken struct {
	Token    string    // The actual random token string (sent to client as a cookie)
	UserID   string    // Server-side metadata
	TenantID string    // Server-side metadata
	Iat      time.Time // Server-side metadata (issued at time)
}

// Repo manages server-side storage of refresh credential metadata, keyed by the token string.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	GetByUserID(userID string) (*StoredRefreshToken, error)
}
