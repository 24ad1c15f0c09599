package config

import "time"

type DevServer struct{}

var _ DevServerConfig = DevServer{}

func (DevServer) GetSigningKey() string {
	return GetEnv("SIGNING_KEY", "dev-signing-key-change-me")
}

func (DevServer) GetAccessTokenExpiry() time.Duration {
	return GetDurationEnv("ACCESS_TOKEN_EXPIRY", 5*time.Minute)
}

func (DevServer) GetRefreshTokenExpiry() time.Duration {
	return GetDurationEnv("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour) // 7 days
}

// GetSeedPassword is the password given to every seeded demo user.
func (DevServer) GetSeedPassword() string {
	return GetEnv("SEED_PASSWORD", "Passw0rd!")
}
