package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Client configures tools that talk to a trade API.
type Client struct {
	TradeAPIURL string
	APIKey      string
	HTTPTimeout time.Duration
	// IntentExpiry is how long a newly signed subintent stays valid.
	IntentExpiry time.Duration
}

// Node configures the matching node.
type Node struct {
	NetworkID uint8
	APIAddr   string
	// DBPath is the pebble directory; empty keeps orders in memory.
	DBPath  string
	WALPath string
	LogFile string
	// LogLevel is a zap level name.
	LogLevel string
	// VenueConfig is a venue TOML file; empty serves the built-in devnet venue.
	VenueConfig    string
	AllowedOrigins []string
	SweepInterval  time.Duration
	MaxPoolSize    int
	// MakerFees checks resting orders against maker instead of taker fees.
	MakerFees bool
}

type P2P struct {
	// ListenAddr is a multiaddr; empty disables gossip.
	ListenAddr string
	Bootstrap  []string
}

type Config struct {
	Client Client
	Node   Node
	P2P    P2P
}

func Default() Config {
	return Config{
		Client: Client{
			TradeAPIURL:  "http://localhost:8080",
			HTTPTimeout:  30 * time.Second,
			IntentExpiry: 5 * time.Minute,
		},
		Node: Node{
			NetworkID:     242, // devnet
			APIAddr:       ":8080",
			WALPath:       "data/orders.wal",
			LogFile:       "data/node.log",
			LogLevel:      "info",
			SweepInterval: time.Second,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Client.TradeAPIURL = getEnv("TRADE_API_URL", cfg.Client.TradeAPIURL)
	cfg.Client.APIKey = getEnv("ANTHIC_API_KEY", cfg.Client.APIKey)
	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	cfg.Node.DBPath = getEnv("DB_PATH", cfg.Node.DBPath)
	cfg.Node.WALPath = getEnv("WAL_FILE", cfg.Node.WALPath)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.LogLevel = getEnv("LOG_LEVEL", cfg.Node.LogLevel)
	cfg.Node.VenueConfig = getEnv("VENUE_CONFIG", cfg.Node.VenueConfig)
	cfg.P2P.ListenAddr = getEnv("P2P_LISTEN", cfg.P2P.ListenAddr)

	if v := os.Getenv("NETWORK_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return cfg, fmt.Errorf("NETWORK_ID: %w", err)
		}
		cfg.Node.NetworkID = uint8(id)
	}

	var err error
	if cfg.Client.HTTPTimeout, err = envMillis("HTTP_TIMEOUT_MS", cfg.Client.HTTPTimeout); err != nil {
		return cfg, err
	}
	if cfg.Node.SweepInterval, err = envMillis("SWEEP_INTERVAL_MS", cfg.Node.SweepInterval); err != nil {
		return cfg, err
	}
	if v := os.Getenv("INTENT_EXPIRY_SECS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return cfg, fmt.Errorf("INTENT_EXPIRY_SECS: invalid value %q", v)
		}
		cfg.Client.IntentExpiry = time.Duration(secs) * time.Second
	}
	if v := os.Getenv("MAX_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("MAX_POOL_SIZE: invalid value %q", v)
		}
		cfg.Node.MaxPoolSize = n
	}
	if v := os.Getenv("MAKER_FEES"); v != "" {
		cfg.Node.MakerFees = v == "true"
	}

	// Comma-separated lists
	cfg.P2P.Bootstrap = splitList(os.Getenv("P2P_BOOTSTRAP"))
	if origins := splitList(os.Getenv("CORS_ORIGINS")); len(origins) > 0 {
		cfg.Node.AllowedOrigins = origins
	}

	return cfg, nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envMillis(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return def, fmt.Errorf("%s: invalid value %q", key, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
