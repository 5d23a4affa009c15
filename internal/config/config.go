package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Config holds the client configuration
type Config struct {
	APIURL      string
	WSURL       string
	HTTPTimeout time.Duration

	Store           string
	StorePath       string
	StorePassphrase string

	ReconnectMin time.Duration
	ReconnectMax time.Duration
	UnreadResync time.Duration

	LogLevel  string
	LogPretty bool
}

// MockAPIConfig holds the mock API server configuration
type MockAPIConfig struct {
	Addr      string
	JWTSecret string
	LogLevel  string
	LogPretty bool
}

// Load reads an optional .env file and then the environment
func Load() *Config {
	// .env is optional; the environment always wins
	_ = godotenv.Load()

	apiURL := strings.TrimRight(getEnv("CAMPUSTRADE_API_URL", "http://localhost:5000"), "/")
	store := strings.ToLower(getEnv("CAMPUSTRADE_STORE", StoreFile))

	cfg := &Config{
		APIURL:          apiURL,
		WSURL:           getEnv("CAMPUSTRADE_WS_URL", DeriveWSURL(apiURL)),
		HTTPTimeout:     getDuration("CAMPUSTRADE_HTTP_TIMEOUT", 15*time.Second),
		Store:           store,
		StorePath:       getEnv("CAMPUSTRADE_STORE_PATH", defaultStorePath(store)),
		StorePassphrase: os.Getenv("CAMPUSTRADE_STORE_PASSPHRASE"),
		ReconnectMin:    getDuration("CAMPUSTRADE_WS_RECONNECT_MIN", time.Second),
		ReconnectMax:    getDuration("CAMPUSTRADE_WS_RECONNECT_MAX", 30*time.Second),
		UnreadResync:    getDuration("CAMPUSTRADE_UNREAD_RESYNC", time.Minute),
		LogLevel:        getEnv("LOG_LEVEL", "warn"),
		LogPretty:       strings.EqualFold(os.Getenv("LOG_PRETTY"), "true"),
	}

	return cfg
}

// LoadMockAPI reads the mock API server settings
func LoadMockAPI() *MockAPIConfig {
	_ = godotenv.Load()

	return &MockAPIConfig{
		Addr:      getEnv("MOCKAPI_ADDR", ":5000"),
		JWTSecret: getEnv("MOCKAPI_JWT_SECRET", "dev_secret"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: strings.EqualFold(os.Getenv("LOG_PRETTY"), "true"),
	}
}

// DeriveWSURL maps http(s)://host/... to ws(s)://host/ws
func DeriveWSURL(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return "ws://localhost:5000/ws"
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String()
}

func defaultStorePath(store string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	dir = filepath.Join(dir, "campustrade")

	if store == StoreSQLite {
		return filepath.Join(dir, "campustrade.db")
	}
	return dir
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
