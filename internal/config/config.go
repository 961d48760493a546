package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/kode4food/miniscript/pkg/template"
)

// Config holds configuration settings for the script runner and its HTTP
// service
type Config struct {
	// API Server
	APIHost  string
	APIPort  int
	LogLevel string

	// Engine
	Language         string
	CompileCacheSize int
	MaxScriptSize    int64
	ShutdownTimeout  time.Duration

	// Archive, disabled when ArchiveURL is empty
	ArchiveURL    string
	ArchivePrefix string
}

const (
	DefaultShutdownTimeout = 10 * time.Second

	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535

	DefaultCacheSize     = template.DefaultCacheSize
	DefaultMaxScriptSize = 1 << 20

	MaxCompileCacheSize = 1_000_000
	MaxScriptSize       = 64 << 20
	MaxShutdownSeconds  = 3600
)

var (
	ErrInvalidAPIPort       = errors.New("invalid API port")
	ErrInvalidLanguage      = errors.New("unsupported script language")
	ErrInvalidCacheSize     = errors.New("compile cache size must be positive")
	ErrInvalidMaxScriptSize = errors.New("max script size must be positive")
	ErrInvalidShutdown      = errors.New("shutdown timeout must be positive")
)

var languages = []string{
	template.LangAle, template.LangJPath, template.LangLua,
}

// NewDefaultConfig creates a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		APIPort:          DefaultAPIPort,
		APIHost:          DefaultAPIHost,
		LogLevel:         "info",
		Language:         template.DefaultLanguage,
		CompileCacheSize: DefaultCacheSize,
		MaxScriptSize:    DefaultMaxScriptSize,
		ShutdownTimeout:  DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed
func (c *Config) LoadFromEnv() error {
	if apiHost := os.Getenv("API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if lang := os.Getenv("SCRIPT_LANGUAGE"); lang != "" {
		c.Language = lang
	}
	if url := os.Getenv("ARCHIVE_URL"); url != "" {
		c.ArchiveURL = url
	}
	if prefix := os.Getenv("ARCHIVE_PREFIX"); prefix != "" {
		c.ArchivePrefix = prefix
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"COMPILE_CACHE_SIZE", &c.CompileCacheSize, 0, MaxCompileCacheSize,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"MAX_SCRIPT_SIZE", &c.MaxScriptSize, 0, MaxScriptSize,
	); err != nil {
		return err
	}

	secs := int(c.ShutdownTimeout / time.Second)
	if err := loadEnvInt(
		"SHUTDOWN_TIMEOUT", &secs, 0, MaxShutdownSeconds,
	); err != nil {
		return err
	}
	c.ShutdownTimeout = time.Duration(secs) * time.Second
	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}
	if !slices.Contains(languages, c.Language) {
		return fmt.Errorf("%w: %s", ErrInvalidLanguage, c.Language)
	}
	if c.CompileCacheSize <= 0 {
		return ErrInvalidCacheSize
	}
	if c.MaxScriptSize <= 0 {
		return ErrInvalidMaxScriptSize
	}
	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdown
	}
	return nil
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}
