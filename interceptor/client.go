// Package interceptor is the authorized HTTP client feature code talks to the
// backend through. It attaches the bearer token and, on a 401, refreshes the
// session once and reissues the request.
package interceptor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/hmo-portal-session/apierror"
	"github.com/jrsteele09/hmo-portal-session/internal/metrics"
	"github.com/jrsteele09/hmo-portal-session/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Session is the token store as seen by the interceptor.
type Session interface {
	oauth2.TokenSource
	Logout()
}

// Acquirer is the refresh coordinator.
type Acquirer interface {
	AcquireFreshToken(ctx context.Context) (string, bool)
}

type Client struct {
	baseURL  string
	http     *http.Client
	session  Session
	acquirer Acquirer
	metrics  *metrics.Session
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithMetrics(m *metrics.Session) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func New(baseURL string, session Session, acquirer Acquirer, options ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		http:     http.DefaultClient,
		session:  session,
		acquirer: acquirer,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Do sends req with the current bearer token. Any status of 400 or above is
// returned as an *apierror.Error with the response body already closed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	getBody, err := replayableBody(req)
	if err != nil {
		return nil, c.fail(apierror.FromTransport(err))
	}

	sent := c.attach(req, "")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(apierror.FromTransport(err))
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return c.check(resp)
	}
	discard(resp)

	retryToken, ok := c.tokenForRetry(req.Context(), sent)
	if !ok {
		// Gave up waiting on the refresh; the session is still whatever it was.
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, c.fail(apierror.FromTransport(ctxErr))
		}
		return nil, c.fail(apierror.Unauthorized())
	}

	retry := req.Clone(req.Context())
	if getBody != nil {
		if retry.Body, err = getBody(); err != nil {
			return nil, c.fail(apierror.FromTransport(fmt.Errorf("replay request body: %w", err)))
		}
	}
	c.attach(retry, retryToken)
	c.metrics.Retried()

	resp, err = c.http.Do(retry)
	if err != nil {
		return nil, c.fail(apierror.FromTransport(err))
	}
	if resp.StatusCode == http.StatusUnauthorized {
		discard(resp)
		log.Warn().Str("path", req.URL.Path).Msg("request still unauthorized after refresh, ending session")
		c.session.Logout()
		return nil, c.fail(apierror.Unauthorized())
	}
	return c.check(resp)
}

// tokenForRetry decides what the single retry is sent with.
func (c *Client) tokenForRetry(ctx context.Context, sent string) (string, bool) {
	current := c.currentToken()
	switch {
	case sent != "" && current == "":
		// Logged out while the request was in flight.
		return "", false
	case current != "" && current != sent:
		// Someone else already refreshed.
		return current, true
	}
	return c.acquirer.AcquireFreshToken(ctx)
}

// DoJSON sends in as a JSON body (when non-nil) to path and decodes the
// response into out (when non-nil).
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("json.Marshal: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// attach sets the bearer header from override, or from the store when
// override is empty, and returns the token used.
func (c *Client) attach(req *http.Request, override string) string {
	raw := override
	if raw == "" {
		raw = c.currentToken()
	}
	req.Header.Del("Authorization")
	if raw != "" {
		token.OAuth2(raw).SetAuthHeader(req)
	}
	return raw
}

func (c *Client) currentToken() string {
	tok, err := c.session.Token()
	if err != nil || tok == nil {
		return ""
	}
	return tok.AccessToken
}

func (c *Client) check(resp *http.Response) (*http.Response, error) {
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, c.fail(apierror.FromResponse(resp))
}

func (c *Client) fail(e *apierror.Error) *apierror.Error {
	c.metrics.RequestError(string(e.Kind))
	return e
}

// replayableBody makes sure the request body can be sent twice.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		return req.GetBody, nil
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	_ = req.Body.Close()
	getBody := func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	req.Body, _ = getBody()
	req.GetBody = getBody
	return getBody, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
