// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"stockbot/internal/model"
)

// Config holds the application configuration.
type Config struct {
	DiscordToken     string
	DiscordChannelID string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []string

	CheckInterval    time.Duration
	AlertCooldown    time.Duration
	HistoryRetention time.Duration

	RetryAttempts    int
	RetryDelayBase   time.Duration
	BreakerThreshold int
	RecoveryTimeout  time.Duration
	RequestDelayMin  time.Duration
	RequestDelayMax  time.Duration
	RequestTimeout   time.Duration

	Retailers []model.Retailer
}

// Load reads configuration from environment variables. Missing credentials
// and malformed values are fatal: the process must not start half-configured.
func Load() (*Config, error) {
	token := os.Getenv("DISCORD_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}

	channelID := os.Getenv("DISCORD_CHANNEL_ID")
	if channelID == "" {
		return nil, fmt.Errorf("DISCORD_CHANNEL_ID is required")
	}
	if _, err := strconv.ParseUint(channelID, 10, 64); err != nil {
		return nil, fmt.Errorf("DISCORD_CHANNEL_ID %q is not a valid snowflake: %w", channelID, err)
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/stockbot.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	var allowedUsers []string
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, err := strconv.ParseUint(s, 10, 64); err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, s)
		}
	}

	cfg := &Config{
		DiscordToken:     token,
		DiscordChannelID: channelID,
		DatabasePath:     dbPath,
		LogLevel:         logLevel,
		AllowedUsers:     allowedUsers,
		Retailers:        defaultRetailers(),
	}

	var err error
	if cfg.CheckInterval, err = secondsEnv("CHECK_INTERVAL", 120); err != nil {
		return nil, err
	}
	if cfg.AlertCooldown, err = secondsEnv("ALERT_COOLDOWN", 300); err != nil {
		return nil, err
	}
	if cfg.HistoryRetention, err = daysEnv("HISTORY_RETENTION_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.RetryAttempts, err = intEnv("RETRY_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.RetryDelayBase, err = secondsEnv("RETRY_DELAY_BASE", 2); err != nil {
		return nil, err
	}
	if cfg.BreakerThreshold, err = intEnv("CIRCUIT_BREAKER_THRESHOLD", 5); err != nil {
		return nil, err
	}
	if cfg.RecoveryTimeout, err = secondsEnv("CIRCUIT_BREAKER_TIMEOUT", 300); err != nil {
		return nil, err
	}
	if cfg.RequestDelayMin, err = secondsEnv("REQUEST_DELAY_MIN", 3); err != nil {
		return nil, err
	}
	if cfg.RequestDelayMax, err = secondsEnv("REQUEST_DELAY_MAX", 7); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = secondsEnv("REQUEST_TIMEOUT", 30); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CheckInterval <= 0 {
		return fmt.Errorf("CHECK_INTERVAL must be positive")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("RETRY_ATTEMPTS must be at least 1")
	}
	if c.BreakerThreshold < 1 {
		return fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be at least 1")
	}
	if c.RequestDelayMin > c.RequestDelayMax {
		return fmt.Errorf("REQUEST_DELAY_MIN exceeds REQUEST_DELAY_MAX")
	}
	for _, r := range c.Retailers {
		if r.Key == "" || r.Name == "" {
			return fmt.Errorf("retailer with empty key or name")
		}
		if _, err := url.ParseRequestURI(r.BaseURL); err != nil {
			return fmt.Errorf("retailer %s: invalid base URL %q: %w", r.Key, r.BaseURL, err)
		}
		if len(r.SearchURLs) == 0 {
			return fmt.Errorf("retailer %s: no search URLs", r.Key)
		}
		for _, u := range r.SearchURLs {
			if _, err := url.ParseRequestURI(u); err != nil {
				return fmt.Errorf("retailer %s: invalid search URL %q: %w", r.Key, u, err)
			}
		}
	}
	return nil
}

// IsUserAllowed checks whether a Discord user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID string) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// EnabledRetailers returns the retailers that should be checked each tick.
func (c *Config) EnabledRetailers() []model.Retailer {
	var out []model.Retailer
	for _, r := range c.Retailers {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// AllowedDomain reports whether a user-submitted URL belongs to one of the
// configured retailer domains.
func (c *Config) AllowedDomain(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, r := range c.Retailers {
		base, err := url.Parse(r.BaseURL)
		if err != nil {
			continue
		}
		b := strings.ToLower(base.Hostname())
		if host == b || strings.HasSuffix(host, "."+strings.TrimPrefix(b, "www.")) || host == strings.TrimPrefix(b, "www.") {
			return true
		}
	}
	return false
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func secondsEnv(key string, def int) (time.Duration, error) {
	v, err := intEnv(key, def)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Second, nil
}

func daysEnv(key string, def int) (time.Duration, error) {
	v, err := intEnv(key, def)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * 24 * time.Hour, nil
}
