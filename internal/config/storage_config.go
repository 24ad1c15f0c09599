package config

import "time"

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "")
}

func (Storage) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Storage) GetRedisDB() int {
	return GetIntEnv("REDIS_DB", 0)
}

func (Storage) GetIntendedRouteKey() string {
	return GetEnv("INTENDED_ROUTE_KEY", "hmo:intended_route")
}

func (Storage) GetIntendedRouteTTL() time.Duration {
	return GetDurationEnv("INTENDED_ROUTE_TTL", 30*time.Minute)
}
