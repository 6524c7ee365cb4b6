package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                 int
	DBDSN                string
	JWTSecret            string
	TokenTTL             time.Duration
	LogPath              string
	WSInsecureSkipVerify bool
}

func Load() Config {
	port := 8084
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			port = p
		}
	}

	ttl := 7 * 24 * time.Hour
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			ttl = d
		}
	}

	wsInsecure := false
	if os.Getenv("WS_INSECURE_SKIP_VERIFY") == "true" {
		wsInsecure = true
	}

	return Config{
		Port:                 port,
		DBDSN:                os.Getenv("DB_DSN"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		TokenTTL:             ttl,
		LogPath:              os.Getenv("LOG_PATH"),
		WSInsecureSkipVerify: wsInsecure,
	}
}
