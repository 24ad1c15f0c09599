package config

import "time"

type Session struct{}

var _ SessionConfig = Session{}

// GetRefreshMinDelay is the shortest gap between receiving a token and
// proactively refreshing it, guarding against clock skew right after issuance.
func (Session) GetRefreshMinDelay() time.Duration {
	return GetDurationEnv("REFRESH_MIN_DELAY", 30*time.Second)
}

// GetRefreshLeadWindow is how long before expiry the proactive refresh fires.
func (Session) GetRefreshLeadWindow() time.Duration {
	return GetDurationEnv("REFRESH_LEAD_WINDOW", 60*time.Second)
}

func (Session) GetRefreshTimeout() time.Duration {
	return GetDurationEnv("REFRESH_TIMEOUT", 10*time.Second)
}

func (Session) GetRequestTimeout() time.Duration {
	return GetDurationEnv("REQUEST_TIMEOUT", 30*time.Second)
}
