package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	StorageConfig
	DevServerConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetAPIBaseURL() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// SessionConfig tunes token refresh and outbound request behaviour.
type SessionConfig interface {
	GetRefreshMinDelay() time.Duration
	GetRefreshLeadWindow() time.Duration
	GetRefreshTimeout() time.Duration
	GetRequestTimeout() time.Duration
}

// StorageConfig selects where the intended route is persisted.
// An empty redis address selects the in-memory store.
type StorageConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetIntendedRouteKey() string
	GetIntendedRouteTTL() time.Duration
}

// DevServerConfig configures the stub backend used for local development and tests.
type DevServerConfig interface {
	GetSigningKey() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetSeedPassword() string
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	Storage
	DevServer
}

func New() Config {
	return mainConfig{}
}
