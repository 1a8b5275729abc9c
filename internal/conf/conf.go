package conf

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration. It is constructed once at
// process start and passed to every component constructor; there is no
// global configuration state.
type Config struct {
	// Discord configuration
	Discord DiscordConfig

	// Channel IDs the bot operates on
	Channels ChannelsConfig

	// Role IDs used by moderation rules
	Roles RolesConfig

	// Moderation thresholds
	Thresholds ThresholdsConfig

	// Feeds to poll for new items
	Feeds []FeedConfig

	// Background job intervals
	Jobs JobsConfig

	// Seen-state persistence
	Seen SeenConfig

	// HTTP API configuration
	API APIConfig

	// DryRun suppresses all external mutating calls while preserving
	// decision and logging paths
	DryRun bool

	// Debug mode
	Debug bool
}

// DiscordConfig contains gateway credentials
type DiscordConfig struct {
	Token   string
	GuildID string
}

// ChannelsConfig contains the channel IDs the bot posts to or watches
type ChannelsConfig struct {
	Announce string // feed announcements
	AuditLog string // moderation audit mirror
	Trap     string // no one is supposed to post here
	Rules    string // linked from the welcome message
}

// RolesConfig contains role IDs used by moderation rules
type RolesConfig struct {
	Member     string   // granted once rules are accepted
	Bot        string   // exempt from cleanup
	Privileged []string // never auto-moderated
}

// ThresholdsConfig contains spam detection thresholds
type ThresholdsConfig struct {
	BurstCount  int
	BurstWindow time.Duration
}

// FeedConfig describes one polled feed
type FeedConfig struct {
	Name string
	URL  string
}

// JobsConfig contains periodic job intervals
type JobsConfig struct {
	PollInterval    time.Duration
	CleanupInterval time.Duration
	MemberMaxAge    time.Duration // members older than this without the member role are kicked
	StopGrace       time.Duration // shutdown grace period for in-flight jobs
}

// SeenConfig contains seen-state store configuration
type SeenConfig struct {
	DBPath     string // empty means in-memory only
	MaxPerFeed int    // 0 means unbounded
}

// APIConfig contains HTTP API configuration
type APIConfig struct {
	Port int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	return &Config{
		Discord: DiscordConfig{
			Token:   os.Getenv("BOT_TOKEN"),
			GuildID: os.Getenv("GUILD_ID"),
		},
		Channels: ChannelsConfig{
			Announce: os.Getenv("CHANNEL_ANNOUNCE"),
			AuditLog: os.Getenv("CHANNEL_AUDIT_LOG"),
			Trap:     os.Getenv("CHANNEL_TRAP"),
			Rules:    os.Getenv("CHANNEL_RULES"),
		},
		Roles: RolesConfig{
			Member:     os.Getenv("ROLE_MEMBER"),
			Bot:        os.Getenv("ROLE_BOT"),
			Privileged: splitList(os.Getenv("ROLES_PRIVILEGED")),
		},
		Thresholds: ThresholdsConfig{
			BurstCount:  envInt("BURST_COUNT", 5),
			BurstWindow: envDuration("BURST_WINDOW", 10*time.Second),
		},
		Feeds: parseFeeds(os.Getenv("FEEDS")),
		Jobs: JobsConfig{
			PollInterval:    envDuration("POLL_INTERVAL", 5*time.Minute),
			CleanupInterval: envDuration("CLEANUP_INTERVAL", 24*time.Hour),
			MemberMaxAge:    envDuration("MEMBER_MAX_AGE", 7*24*time.Hour),
			StopGrace:       envDuration("STOP_GRACE", 5*time.Second),
		},
		Seen: SeenConfig{
			DBPath:     os.Getenv("SEEN_DB_PATH"),
			MaxPerFeed: envInt("SEEN_MAX_PER_FEED", 0),
		},
		API: APIConfig{
			Port: envInt("API_PORT", 8080),
		},
		DryRun: os.Getenv("DRY_RUN") == "true",
		Debug:  os.Getenv("DEBUG") == "true",
	}
}

// parseFeeds parses the FEEDS variable, a comma-separated list of
// name=url entries
func parseFeeds(raw string) []FeedConfig {
	var feeds []FeedConfig
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, url, ok := strings.Cut(entry, "=")
		if !ok || name == "" || url == "" {
			continue
		}
		feeds = append(feeds, FeedConfig{Name: name, URL: url})
	}
	return feeds
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return &ConfigError{Field: "BOT_TOKEN", Message: "required"}
	}
	if c.Discord.GuildID == "" {
		return &ConfigError{Field: "GUILD_ID", Message: "required"}
	}
	if c.Thresholds.BurstCount < 1 {
		return &ConfigError{Field: "BURST_COUNT", Message: "must be at least 1"}
	}
	if c.Thresholds.BurstWindow <= 0 {
		return &ConfigError{Field: "BURST_WINDOW", Message: "must be positive"}
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		return &ConfigError{Field: "API_PORT", Message: "must be a valid port"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
