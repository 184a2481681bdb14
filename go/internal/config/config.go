// Package config reads process settings from the environment.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/zippy/go/clients"
	"github.com/mcdev12/zippy/go/internal/race/registry"
)

// Config is everything the zippy binaries read at startup.
type Config struct {
	Port            string
	LogLevel        zerolog.Level
	ShutdownTimeout time.Duration

	Database DatabaseConfig

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// NATSURL empty disables analytics publishing.
	NATSURL string

	SimConfigPath string
	RoomPolicy    registry.Policy

	GeminiAPIKey string
	GeminiModel  string
	GitHubToken  string
	GitHubModel  string

	SupabaseURL     string
	SupabaseAnonKey string

	UsageSalt string
	UsageTTL  time.Duration
	// TrustedProxies may set X-Forwarded-For. Empty means the peer address
	// is always the client.
	TrustedProxies []netip.Prefix

	PreferencesDebounce time.Duration
}

// LoadDotEnv loads .env when present. A missing file is not an error.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
}

// Load reads the environment.
func Load() (Config, error) {
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	policy, err := registry.ParsePolicy(os.Getenv("ROOM_AUTH_POLICY"))
	if err != nil {
		return Config{}, fmt.Errorf("ROOM_AUTH_POLICY: %w", err)
	}

	proxies, err := ParseTrustedProxies(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		return Config{}, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}

	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		LogLevel:        level,
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		Database: DatabaseFromEnv(),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		NATSURL: os.Getenv("NATS_URL"),

		SimConfigPath: os.Getenv("SIM_CONFIG"),
		RoomPolicy:    policy,

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", clients.DefaultGeminiModel),
		GitHubToken:  os.Getenv("GITHUB_TOKEN"),
		GitHubModel:  getEnv("GITHUB_MODEL", clients.DefaultGitHubModelsModel),

		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey: os.Getenv("SUPABASE_ANON_KEY"),

		UsageSalt: getEnv("USAGE_SALT", "zippy"),
		UsageTTL:  getEnvAsDuration("USAGE_TTL", 30*24*time.Hour),

		TrustedProxies: proxies,

		PreferencesDebounce: getEnvAsDuration("PREFERENCES_DEBOUNCE", time.Second),
	}
	if getEnvAsBool("ANALYTICS_DISABLED", false) {
		cfg.NATSURL = ""
	}
	return cfg, nil
}

// ParseTrustedProxies reads a comma separated list of CIDRs or bare IPs.
func ParseTrustedProxies(s string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			prefix, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, err
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// AuthEnabled reports whether access tokens can be verified.
func (c Config) AuthEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}
