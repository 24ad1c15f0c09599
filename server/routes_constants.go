package server

const (
	RouteAuthLogin   = "/auth/login"
	RouteAuthRefresh = "/auth/refresh"
	RouteAuthLogout  = "/auth/logout"

	RouteAPIMe          = "/api/me"
	RouteAPIHMOEnrollee = "/api/hmo/enrollees"

	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"

	// RefreshCookieName holds the opaque refresh credential. It is only sent
	// to the /auth endpoints.
	RefreshCookieName = "refresh_token"
	RefreshCookiePath = "/auth"
)
