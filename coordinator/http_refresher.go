package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/hmo-portal-session/internal/errors"
)

// RefreshPath is the backend endpoint that exchanges the refresh cookie for a
// new access token.
const RefreshPath = "/auth/refresh"

// HTTPRefresher calls the refresh endpoint. Its client must carry the cookie
// jar holding the refresh credential and must not retry on 401 itself.
type HTTPRefresher struct {
	client *http.Client
	url    string
}

var _ Refresher = (*HTTPRefresher)(nil)

func NewHTTPRefresher(baseURL string, client *http.Client) *HTTPRefresher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRefresher{
		client: client,
		url:    strings.TrimSuffix(baseURL, "/") + RefreshPath,
	}
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

func (r *HTTPRefresher) Refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, nil)
	if err != nil {
		return "", fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("POST %s: %w", RefreshPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.Wrapf(apperrors.ErrRefreshRejected, "POST %s returned %d", RefreshPath, resp.StatusCode)
	}

	var body refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if body.AccessToken == "" {
		return "", apperrors.ErrEmptyRefresh
	}
	return body.AccessToken, nil
}
