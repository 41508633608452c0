package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the coordinator process.
type Config struct {
	// CDP connection settings
	CDPAddress string
	CDPPort    int

	// Control API
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	LogLevel string
	LogFile  string

	// Durable state. An empty StorePath keeps settings in memory and an
	// empty JournalDir disables the activity journal.
	StorePath         string
	JournalDir        string
	JournalMaxSizeMB  int
	JournalBufferSize int

	NtfyEndpoint string

	ResumeTimeoutMS int
	ResumeCapacity  int

	PlatformProfile string
	Version         string
	OptionsURL      string

	// Browser launch
	LaunchBrowser bool
	ProfileDir    string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:        getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:           getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		BindAddr:          getEnvOrDefault("AVSYNC_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:    getEnvListOrDefault("AVSYNC_PORT_CANDIDATES", nil),
		PortAutoFallback:  getEnvBoolOrDefault("AVSYNC_PORT_AUTO_FALLBACK", false),
		LogLevel:          strings.ToLower(getEnvOrDefault("AVSYNC_LOG_LEVEL", "info")),
		LogFile:           getEnvOrDefault("AVSYNC_LOG_FILE", "logs/avsync.log"),
		StorePath:         getEnvOrDefault("AVSYNC_STORE_PATH", "./avsync.db"),
		JournalDir:        getEnvOrDefault("AVSYNC_JOURNAL_DIR", "./journal"),
		JournalMaxSizeMB:  getEnvIntOrDefault("AVSYNC_JOURNAL_MAX_SIZE_MB", 50),
		JournalBufferSize: getEnvIntOrDefault("AVSYNC_JOURNAL_BUFFER_SIZE", 1000),
		NtfyEndpoint:      os.Getenv("AVSYNC_NTFY_ENDPOINT"),
		ResumeTimeoutMS:   getEnvIntOrDefault("AVSYNC_RESUME_TIMEOUT_MS", 3000),
		ResumeCapacity:    getEnvIntOrDefault("AVSYNC_RESUME_CAPACITY", 64),
		PlatformProfile:   getEnvOrDefault("AVSYNC_PLATFORM_PROFILE", "./config/platform.yaml"),
		Version:           getEnvOrDefault("AVSYNC_VERSION", "2.0.0"),
		OptionsURL:        getEnvOrDefault("AVSYNC_OPTIONS_URL", "http://127.0.0.1:8190/docs"),
		LaunchBrowser:     getEnvBoolOrDefault("AVSYNC_LAUNCH_BROWSER", false),
		ProfileDir:        getEnvOrDefault("AVSYNC_PROFILE_DIR", "./browser_profile"),
	}
	// Empty values are meaningful for these two.
	if v, ok := os.LookupEnv("AVSYNC_STORE_PATH"); ok {
		cfg.StorePath = v
	}
	if v, ok := os.LookupEnv("AVSYNC_JOURNAL_DIR"); ok {
		cfg.JournalDir = v
	}

	if cfg.ResumeTimeoutMS < 500 {
		cfg.ResumeTimeoutMS = 500
	}
	if cfg.ResumeCapacity < 1 {
		cfg.ResumeCapacity = 1
	}
	if cfg.CDPPort <= 0 || cfg.CDPPort > 65535 {
		return nil, fmt.Errorf("invalid CHROMIUM_CDP_PORT %d", cfg.CDPPort)
	}
	return cfg, nil
}

// CDPURL returns the full CDP HTTP endpoint used by chromedp remote allocator.
func (c *Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
