package domain

import "time"

type Config struct {
	FQDN                  string
	JWTSecret             string
	TokenDuration         time.Duration
	DiscoveryRadiusMeters float64
}
