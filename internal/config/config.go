package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIURL      string
	Token       string
	Environment string
	ProjectID   string
	// Sync timing
	AutosaveDebounce time.Duration
	SavedDisplay     time.Duration
	SSEIdleTimeout   time.Duration
	// HTTP client
	HTTPMaxRetries int
	// Logging
	LogDir      string // empty disables the log file
	LogMaxFiles int
	Debug       bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		APIURL:      getEnv("INKWELL_API_URL", "http://localhost:8080"),
		Token:       getEnv("INKWELL_TOKEN", ""),
		Environment: env,
		ProjectID:   getEnv("INKWELL_PROJECT", ""),
		// Sync timing
		AutosaveDebounce: getDuration("AUTOSAVE_DEBOUNCE", DefaultAutosaveDebounce),
		SavedDisplay:     getDuration("SAVED_DISPLAY", DefaultSavedDisplay),
		SSEIdleTimeout:   getDuration("SSE_IDLE_TIMEOUT", DefaultSSEIdleTimeout),
		// HTTP client
		HTTPMaxRetries: getInt("HTTP_MAX_RETRIES", DefaultHTTPMaxRetries),
		// Logging
		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getInt("LOG_MAX_FILES", 10),
		// Debug logging - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts Go duration syntax ("1200ms", "3s") or a bare
// number of milliseconds
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}
