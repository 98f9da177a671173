package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Couch     CouchConfig
	Sync      SyncConfig
	JWT       JWTConfig
	Auth      AuthConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type CouchConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type SyncConfig struct {
	LocalDBPath  string
	CacheMaxAge  time.Duration
	ProbeTimeout time.Duration
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type AuthConfig struct {
	// PINHash is the bcrypt hash of the unlock PIN. Empty disables login.
	PINHash string
}

type WebSocketConfig struct {
	MaxClients int
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

func Load() (*Config, error) {
	godotenv.Load()

	jwtExp, err := time.ParseDuration(getEnv("JWT_EXPIRATION", "12h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION: %w", err)
	}

	cacheMaxAge, err := time.ParseDuration(getEnv("CACHE_MAX_AGE", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_MAX_AGE: %w", err)
	}

	probeTimeout, err := time.ParseDuration(getEnv("PROBE_TIMEOUT", "3s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROBE_TIMEOUT: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8090"),
			Host: getEnv("HOST", "127.0.0.1"),
			Env:  getEnv("ENV", "development"),
		},
		Couch: CouchConfig{
			Host:     getEnv("COUCH_HOST", "localhost"),
			Port:     getEnv("COUCH_PORT", "5984"),
			User:     getEnv("COUCH_USER", "admin"),
			Password: getEnv("COUCH_PASSWORD", "password"),
			Name:     getEnv("COUCH_DB", "ventas"),
		},
		Sync: SyncConfig{
			LocalDBPath:  getEnv("LOCAL_DB_PATH", "ventas-local.db"),
			CacheMaxAge:  cacheMaxAge,
			ProbeTimeout: probeTimeout,
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "dev-secret-change-in-production"),
			Expiration: jwtExp,
		},
		Auth: AuthConfig{
			PINHash: getEnv("PIN_HASH", ""),
		},
		WebSocket: WebSocketConfig{
			MaxClients: getEnvAsInt("WS_MAX_CLIENTS", 5),
			WriteWait:  10 * time.Second,
			PongWait:   60 * time.Second,
			PingPeriod: 54 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
