package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Upstream UpstreamConfig `json:"upstream"`
	Cache    CacheConfig    `json:"cache"`
	Redis    RedisConfig    `json:"redis"`
	Geo      GeoConfig      `json:"geo"`
	MongoDB  MongoDBConfig  `json:"mongodb"`
	Discord  DiscordConfig  `json:"discord"`
	Versions VersionConfig  `json:"versions"`
}

type ServerConfig struct {
	Port           int      `json:"port"`
	Host           string   `json:"host"`
	AllowedOrigins []string `json:"allowed_origins"`
	// DebugErrors adds timing details to error responses.
	DebugErrors bool `json:"debug_errors"`
}

// UpstreamConfig describes the pRPC node serving get-pods-with-stats.
type UpstreamConfig struct {
	Host             string `json:"host"`
	Port             int    `json:"port"`
	TimeoutMs        int    `json:"timeout_ms"`
	MaxRetries       int    `json:"max_retries"`
	RetryBaseDelayMs int    `json:"retry_base_delay_ms"`
}

type CacheConfig struct {
	Enabled      bool `json:"enabled"`
	TTL          int  `json:"ttl_seconds"`
	GeoTTL       int  `json:"geo_ttl_seconds"`
	SingleFlight bool `json:"single_flight"`
}

type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Enabled  bool   `json:"enabled"`
	UseTLS   bool   `json:"use_tls"`
}

type GeoConfig struct {
	DBPath      string `json:"db_path"`
	ResolverURL string `json:"resolver_url"`
	TimeoutMs   int    `json:"timeout_ms"`
}

type MongoDBConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
	Enabled  bool   `json:"enabled"`
}

type DiscordConfig struct {
	Token           string `json:"-"`
	ChannelID       string `json:"channel_id"`
	CooldownSeconds int    `json:"cooldown_seconds"`
}

// VersionConfig holds the pod version thresholds used for upgrade status.
type VersionConfig struct {
	CurrentStable string `json:"current_stable"`
	MinSupported  string `json:"min_supported"`
	Deprecated    string `json:"deprecated"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
		},
		Upstream: UpstreamConfig{
			Host:             "127.0.0.1",
			Port:             6000,
			TimeoutMs:        30000,
			MaxRetries:       3,
			RetryBaseDelayMs: 1000,
		},
		Cache: CacheConfig{
			Enabled:      true,
			TTL:          30,
			GeoTTL:       86400, // geography rarely changes
			SingleFlight: true,
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
			Enabled: false,
		},
		Geo: GeoConfig{
			ResolverURL: "http://127.0.0.1:7070/v1/geolocate",
			TimeoutMs:   5000,
		},
		MongoDB: MongoDBConfig{
			URI:      "mongodb://localhost:27017",
			Database: "podagg",
			Enabled:  false,
		},
		Discord: DiscordConfig{
			CooldownSeconds: 900,
		},
		Versions: VersionConfig{
			CurrentStable: "0.8.0",
			MinSupported:  "0.7.3",
			Deprecated:    "0.7.2",
		},
	}
}

func LoadConfig() (*Config, error) {
	return LoadConfigFrom(os.Args[1:])
}

// LoadConfigFrom layers defaults, the JSON config file, .env, the environment
// and finally command-line flags, in that order of precedence.
func LoadConfigFrom(args []string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := Default()

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config/config.json"
	}

	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err == nil {
			defer file.Close()
			if err := json.NewDecoder(file).Decode(cfg); err != nil {
				log.Printf("Warning: Failed to decode config file %s: %v", configPath, err)
			}
		}
	}

	loadEnv(cfg)

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(nopWriter{})
	var serverPort int
	var serverHost string

	fs.IntVar(&serverPort, "port", 0, "Server port")
	fs.StringVar(&serverHost, "host", "", "Server host")

	_ = fs.Parse(args)

	if isFlagPassed(fs, "port") {
		cfg.Server.Port = serverPort
	}
	if isFlagPassed(fs, "host") {
		cfg.Server.Host = serverHost
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func isFlagPassed(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func loadEnv(cfg *Config) {
	// Server
	setInt("SERVER_PORT", &cfg.Server.Port)
	if val := os.Getenv("SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if val := os.Getenv("ALLOWED_ORIGINS"); val != "" {
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.Server.AllowedOrigins = parts
	}
	setBool("DEBUG_ERRORS", &cfg.Server.DebugErrors)

	// Upstream
	if val := os.Getenv("UPSTREAM_HOST"); val != "" {
		cfg.Upstream.Host = val
	}
	setInt("UPSTREAM_PORT", &cfg.Upstream.Port)
	setInt("FETCH_TIMEOUT_MS", &cfg.Upstream.TimeoutMs)
	setInt("MAX_RETRIES", &cfg.Upstream.MaxRetries)
	setInt("RETRY_BASE_DELAY_MS", &cfg.Upstream.RetryBaseDelayMs)

	// Cache
	setBool("CACHE_ENABLED", &cfg.Cache.Enabled)
	setInt("CACHE_TTL", &cfg.Cache.TTL)
	setInt("GEO_CACHE_TTL", &cfg.Cache.GeoTTL)
	setBool("SINGLE_FLIGHT", &cfg.Cache.SingleFlight)

	// Redis
	if val := os.Getenv("REDIS_ADDRESS"); val != "" {
		cfg.Redis.Address = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	setInt("REDIS_DB", &cfg.Redis.DB)
	setBool("REDIS_ENABLED", &cfg.Redis.Enabled)
	setBool("REDIS_USE_TLS", &cfg.Redis.UseTLS)

	// Geolocation
	if val := os.Getenv("GEOIP_DB_PATH"); val != "" {
		cfg.Geo.DBPath = val
	}
	if val := os.Getenv("GEO_RESOLVER_URL"); val != "" {
		cfg.Geo.ResolverURL = val
	}
	setInt("GEO_TIMEOUT_MS", &cfg.Geo.TimeoutMs)

	// MongoDB
	if val := os.Getenv("MONGODB_URI"); val != "" {
		cfg.MongoDB.URI = val
	}
	if val := os.Getenv("MONGODB_DATABASE"); val != "" {
		cfg.MongoDB.Database = val
	}
	setBool("MONGODB_ENABLED", &cfg.MongoDB.Enabled)

	// Discord
	if val := os.Getenv("DISCORD_BOT_TOKEN"); val != "" {
		cfg.Discord.Token = val
	}
	if val := os.Getenv("DISCORD_CHANNEL_ID"); val != "" {
		cfg.Discord.ChannelID = val
	}
	if val := os.Getenv("ALERT_COOLDOWN"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Discord.CooldownSeconds = int(d.Seconds())
		} else if p, err := strconv.Atoi(val); err == nil {
			cfg.Discord.CooldownSeconds = p
		}
	}

	// Versions
	if val := os.Getenv("VERSION_CURRENT"); val != "" {
		cfg.Versions.CurrentStable = val
	}
	if val := os.Getenv("VERSION_MIN_SUPPORTED"); val != "" {
		cfg.Versions.MinSupported = val
	}
	if val := os.Getenv("VERSION_DEPRECATED"); val != "" {
		cfg.Versions.Deprecated = val
	}
}

func setInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if p, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			*dst = p
		}
	}
}

func setBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			*dst = b
		}
	}
}

// Validate rejects settings the pipeline cannot run with and repairs the
// geo/response TTL ordering.
func (c *Config) Validate() error {
	var errs []error

	if c.Upstream.Host == "" {
		errs = append(errs, errors.New("upstream host is required"))
	}
	if c.Upstream.Port <= 0 || c.Upstream.Port > 65535 {
		errs = append(errs, fmt.Errorf("upstream port %d out of range", c.Upstream.Port))
	}
	if c.Upstream.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("max retries must be at least 1, got %d", c.Upstream.MaxRetries))
	}
	if c.Upstream.TimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must be positive, got %dms", c.Upstream.TimeoutMs))
	}
	if c.Upstream.RetryBaseDelayMs < 0 {
		errs = append(errs, fmt.Errorf("retry base delay must not be negative, got %dms", c.Upstream.RetryBaseDelayMs))
	}
	if c.Cache.TTL < 1 {
		errs = append(errs, fmt.Errorf("cache ttl must be at least 1s, got %d", c.Cache.TTL))
	}
	if c.Geo.TimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("geo timeout must be positive, got %dms", c.Geo.TimeoutMs))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if c.Cache.GeoTTL <= c.Cache.TTL {
		log.Printf("⚠️  Geo cache TTL (%ds) must outlive response TTL (%ds), using %ds",
			c.Cache.GeoTTL, c.Cache.TTL, c.Cache.TTL*2)
		c.Cache.GeoTTL = c.Cache.TTL * 2
	}

	return nil
}

// Helper methods for duration conversion

func (c *Config) UpstreamAddress() string {
	return net.JoinHostPort(c.Upstream.Host, strconv.Itoa(c.Upstream.Port))
}

func (c *Config) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.Upstream.TimeoutMs) * time.Millisecond
}

func (c *Config) RetryBaseDelayDuration() time.Duration {
	return time.Duration(c.Upstream.RetryBaseDelayMs) * time.Millisecond
}

func (c *Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}

func (c *Config) GeoCacheTTLDuration() time.Duration {
	return time.Duration(c.Cache.GeoTTL) * time.Second
}

func (c *Config) GeoTimeoutDuration() time.Duration {
	return time.Duration(c.Geo.TimeoutMs) * time.Millisecond
}

func (c *Config) AlertCooldownDuration() time.Duration {
	return time.Duration(c.Discord.CooldownSeconds) * time.Second
}
