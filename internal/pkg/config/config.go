package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
}

// ProvidersConfig holds the external geo providers the service talks to.
// Mirrors are tried in the order they are listed.
type ProvidersConfig struct {
	IPLookupURL       string
	IPLookupTimeout   time.Duration
	ReverseGeocodeURL string
	OverpassMirrors   []string
	TomTomSearchURL   string
	TomTomAPIKey      string
	SearchTimeout     time.Duration
	DeviceTimeout     time.Duration
}

type SearchConfig struct {
	CacheTTL       time.Duration
	DefaultRadius  int
	MaxPerCategory int
}

type Config struct {
	Repositories RepositoriesConfig
	Providers    ProvidersConfig
	Search       SearchConfig
	ServerPort   string
	// LocationStorePath is where the last-known location survives restarts.
	LocationStorePath string
}

func Load() (*Config, error) {
	cfg := &Config{
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
				DB:       getEnvOrDefault("POSTGRES_DB", "wanderer"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns: 30,
				MinConns: 5,
			},
		},
		Providers: ProvidersConfig{
			IPLookupURL:       getEnvOrDefault("IP_LOOKUP_URL", "https://ipapi.co/json/"),
			IPLookupTimeout:   getDurationOrDefault("IP_LOOKUP_TIMEOUT", 6*time.Second),
			ReverseGeocodeURL: getEnvOrDefault("REVERSE_GEOCODE_URL", "https://nominatim.openstreetmap.org/reverse"),
			OverpassMirrors:   getListOrDefault("OVERPASS_MIRRORS", defaultOverpassMirrors),
			TomTomSearchURL:   getEnvOrDefault("TOMTOM_SEARCH_URL", "https://api.tomtom.com/search/2/nearbySearch/.json"),
			TomTomAPIKey:      getEnvOrDefault("TOMTOM_API_KEY", ""),
			SearchTimeout:     getDurationOrDefault("SEARCH_TIMEOUT", 12*time.Second),
			DeviceTimeout:     getDurationOrDefault("DEVICE_TIMEOUT", 10*time.Second),
		},
		Search: SearchConfig{
			CacheTTL:       getDurationOrDefault("SEARCH_CACHE_TTL", 60*time.Second),
			DefaultRadius:  getIntOrDefault("SEARCH_DEFAULT_RADIUS", 2000),
			MaxPerCategory: getIntOrDefault("SEARCH_MAX_PER_CATEGORY", 10),
		},
		ServerPort:        getEnvOrDefault("SERVER_PORT", "8091"),
		LocationStorePath: getEnvOrDefault("LOCATION_STORE_PATH", "data/last_known_location.json"),
	}

	if cfg.Repositories.Postgres.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD environment variable is required")
	}

	return cfg, nil
}

var defaultOverpassMirrors = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getListOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
