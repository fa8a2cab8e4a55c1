package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	shared "github.com/avvvet/loyalty-services/configs"
)

const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Port         string
	StoreBackend string
	MongoURI     string
	PostgresURL  string
	RedisURL     string // empty keeps PIN attempts in process memory

	AdminHmacKey   string
	PinMaxAttempts int
	PinWindow      time.Duration

	RateLimit        int // requests per IP per minute
	TrustedProxies   []netip.Prefix
	DefaultMaxStamps int
	PublicOrigin     string
	Location         *time.Location
	JWTSecret        string
}

// Load reads the loyalty service settings from the environment.
func Load() (Config, error) {
	cfg := Config{
		Port:         getenv("LOYALTY_SERVICE_PORT", "8080"),
		StoreBackend: strings.ToLower(getenv("STORE_BACKEND", BackendMongo)),
		MongoURI:     os.Getenv("MONGODB_URI"),
		PostgresURL:  os.Getenv("POSTGRES_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		AdminHmacKey: os.Getenv("ADMIN_HMAC_KEY"),
		PublicOrigin: getenv("PUBLIC_ORIGIN", "http://localhost:5173"),
		JWTSecret:    os.Getenv("JWT_SECRET_KEY"),
	}

	var err error
	if cfg.PinMaxAttempts, err = getInt("PIN_MAX_ATTEMPTS", 10); err != nil {
		return cfg, err
	}
	if cfg.RateLimit, err = getInt("RATE_LIMIT", 120); err != nil {
		return cfg, err
	}
	if cfg.DefaultMaxStamps, err = getInt("DEFAULT_MAX_STAMPS", 5); err != nil {
		return cfg, err
	}

	window := getenv("PIN_WINDOW", "15m")
	if cfg.PinWindow, err = time.ParseDuration(window); err != nil || cfg.PinWindow <= 0 {
		return cfg, fmt.Errorf("invalid PIN_WINDOW %q", window)
	}

	if cfg.TrustedProxies, err = shared.ParseTrustedProxies(os.Getenv("TRUSTED_PROXIES")); err != nil {
		return cfg, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	tz := getenv("CAFE_TIMEZONE", "UTC")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return cfg, fmt.Errorf("invalid CAFE_TIMEZONE %q: %w", tz, err)
	}

	switch cfg.StoreBackend {
	case BackendMongo, BackendPostgres, BackendMemory:
	default:
		return cfg, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s value %q", key, v)
	}
	return n, nil
}
