package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"lockcycled/internal/core"
)

// ServerConfig holds control-API settings.
type ServerConfig struct {
	Addr      string
	AuthToken string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

// BarkConfig holds Bark push notification settings.
type BarkConfig struct {
	URL     string
	Enabled bool
}

// NotificationConfig holds all notification settings.
type NotificationConfig struct {
	Bark    BarkConfig
	Desktop bool
}

// Config holds the daemon-level runtime configuration. Cycling settings are
// deliberately not part of this struct: they are re-read from the environment
// on every Cycling() call so the engine sees fresh values each cycle.
type Config struct {
	Server       ServerConfig
	Log          LogConfig
	Notification NotificationConfig

	StateDir      string
	Mode          string // http, mcp or both
	SessionKeep   int
	AutostartCron string
	ShutdownGrace time.Duration

	logger *slog.Logger
}

const (
	defaultAddr          = "0.0.0.0:7071"
	defaultLogLevel      = "info"
	defaultMode          = "http"
	defaultSessionKeep   = 50
	defaultShutdownGrace = 5 * time.Second
)

// getEnvString returns the environment variable value or default
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt returns the environment variable as int or default
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvFloat returns the environment variable as float64 or default
func getEnvFloat(key string, defaultVal float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvBool returns the environment variable as bool or default
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		lower := strings.ToLower(val)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultVal
}

// getEnvDuration returns the environment variable as duration or default
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// Parse parses command line flags and environment variables into Config.
// Priority: CLI flags > Environment variables > .env file > defaults
func Parse() (*Config, error) {
	// Load .env if present: current directory first, then the config dir.
	envFiles := []string{".env"}
	if configDir, err := os.UserConfigDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(configDir, "lockcycled", ".env"))
	}
	_ = godotenv.Load(envFiles...)

	cfg := &Config{
		Server: ServerConfig{
			Addr:      getEnvString("LOCKCYCLE_ADDR", defaultAddr),
			AuthToken: getEnvString("LOCKCYCLE_AUTH_TOKEN", ""),
		},
		Log: LogConfig{
			Level: getEnvString("LOCKCYCLE_LOG_LEVEL", defaultLogLevel),
		},
		Notification: NotificationConfig{
			Bark: BarkConfig{
				URL:     getEnvString("LOCKCYCLE_BARK_URL", ""),
				Enabled: getEnvBool("LOCKCYCLE_BARK_ENABLED", false),
			},
			Desktop: getEnvBool("LOCKCYCLE_DESKTOP_NOTIFY", true),
		},
		StateDir:      getEnvString("LOCKCYCLE_STATE_DIR", ""),
		Mode:          getEnvString("LOCKCYCLE_MODE", defaultMode),
		SessionKeep:   getEnvInt("LOCKCYCLE_SESSION_KEEP", defaultSessionKeep),
		AutostartCron: getEnvString("LOCKCYCLE_AUTOSTART_CRON", ""),
		ShutdownGrace: getEnvDuration("LOCKCYCLE_SHUTDOWN_GRACE", defaultShutdownGrace),
	}

	var addr, logLevel, stateDir, mode, autostart string
	var sessionKeep int
	var shutdownGrace time.Duration

	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides env)")
	flag.StringVar(&stateDir, "state-dir", "", "Directory to store the database")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&mode, "mode", "", "Control surface: http, mcp or both")
	flag.StringVar(&autostart, "autostart-cron", "", "5-field cron expression that starts cycling automatically")
	flag.IntVar(&sessionKeep, "session-keep", 0, "Number of recent sessions to retain")
	flag.DurationVar(&shutdownGrace, "shutdown-grace", 0, "Grace period when shutting down")

	flag.Parse()

	if addr != "" {
		cfg.Server.Addr = addr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if autostart != "" {
		cfg.AutostartCron = autostart
	}
	if sessionKeep > 0 {
		cfg.SessionKeep = sessionKeep
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "shutdown-grace" {
			cfg.ShutdownGrace = shutdownGrace
		}
	})

	if cfg.StateDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return nil, fmt.Errorf("resolve default state dir: %w", err)
		}
		cfg.StateDir = dir
	}
	if cfg.SessionKeep < 1 {
		cfg.SessionKeep = defaultSessionKeep
	}

	return cfg, nil
}

// AttachLogger sets the logger used when cycling settings fail to parse.
// The logger is built from the parsed config, so it cannot be a Parse input.
func (c *Config) AttachLogger(logger *slog.Logger) {
	c.logger = logger
}

// Cycling returns a fresh snapshot of the cycling settings, re-read from the
// environment on every call. The engine requests one per cycle and never
// caches it beyond the iteration.
func (c *Config) Cycling() core.CyclingConfig {
	logger := c.logger
	if logger == nil {
		logger = slog.Default()
	}
	mode := core.Mode(strings.ToLower(getEnvString("LOCKCYCLE_CYCLE_MODE", string(core.ModeDuration))))
	if mode != core.ModeDuration && mode != core.ModeCount {
		logger.Error("unknown cycle mode, using duration", "mode", mode)
		mode = core.ModeDuration
	}
	return core.CyclingConfig{
		DryRun:          getEnvBool("LOCKCYCLE_DRY_RUN", false),
		Mode:            mode,
		Duration:        core.SpanOrFallback(logger, getEnvString("LOCKCYCLE_DURATION", "1h")),
		LockIntervalMin: core.SpanOrFallback(logger, getEnvString("LOCKCYCLE_LOCK_INTERVAL_MIN", "10m")),
		LockIntervalMax: core.SpanOrFallback(logger, getEnvString("LOCKCYCLE_LOCK_INTERVAL_MAX", "20m")),
		NapTime:         secondsToDuration(getEnvFloat("LOCKCYCLE_NAP_TIME_S", 1800)),
		WeakTime:        secondsToDuration(getEnvFloat("LOCKCYCLE_WEAK_TIME_S", 0.5)),
		StopAfterCycles: getEnvInt("LOCKCYCLE_STOP_AFTER_CYCLES", 0),
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func defaultStateDir() (string, error) {
	baseDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(baseDir, "lockcycled")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}
