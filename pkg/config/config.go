package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the label scraper
type Config struct {
	// Discogs API credentials and endpoint
	Discogs DiscogsConfig `yaml:"discogs" json:"discogs"`

	// Store file settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Identifier scan settings
	Scan ScanConfig `yaml:"scan" json:"scan"`

	// Rate limit handling
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Prometheus metrics listener
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// DiscogsConfig holds Discogs-specific configuration
type DiscogsConfig struct {
	APIKey    string        `yaml:"api_key" json:"api_key"`
	APISecret string        `yaml:"api_secret" json:"-"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	// Profile names the stored credential entry used when no key or secret is configured
	Profile string `yaml:"profile" json:"profile"`
}

// OutputConfig holds store file configuration
type OutputConfig struct {
	File string `yaml:"file" json:"file"`
	// Atomic switches appends to write-temp-then-rename
	Atomic bool `yaml:"atomic" json:"atomic"`
}

// ScanConfig controls which identifiers are visited and how fast
type ScanConfig struct {
	// Delay is the minimum time between the starts of two iterations
	Delay       time.Duration `yaml:"delay" json:"delay"`
	Step        int           `yaml:"step" json:"step"`
	StartOffset int           `yaml:"start_offset" json:"start_offset"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Wait is the fixed pause after an HTTP 429 before the same request is repeated
	Wait time.Duration `yaml:"wait" json:"wait"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// MetricsConfig holds the Prometheus listener address; empty disables it
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

const (
	DefaultUserAgent = "LabelScraper/1.0"
	DefaultBaseURL   = "https://api.discogs.com"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Discogs: DiscogsConfig{
			UserAgent: DefaultUserAgent,
			BaseURL:   DefaultBaseURL,
			Timeout:   30 * time.Second,
			Profile:   "default",
		},
		Scan: ScanConfig{
			Delay:       1000 * time.Millisecond,
			Step:        1,
			StartOffset: 0,
		},
		RateLimit: RateLimitConfig{
			Wait: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// lookupEnv returns the first non-empty value among keys
func lookupEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val, true
		}
	}
	return "", false
}

func envInt(keys ...string) (int, bool, error) {
	raw, ok := lookupEnv(keys...)
	if !ok {
		return 0, false, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: invalid integer %q", keys[0], raw)
	}
	return val, true, nil
}

// LoadFromEnv loads configuration from environment variables.
// The legacy DISCORGS_* / DELAY / REQUEST_* names are honoured when the primary name is unset.
func (c *Config) LoadFromEnv() error {
	var errs []error

	if key, ok := lookupEnv("API_KEY", "DISCORGS_KEY"); ok {
		c.Discogs.APIKey = key
	}
	if secret, ok := lookupEnv("API_SECRET", "DISCORGS_SECRET"); ok {
		c.Discogs.APISecret = secret
	}
	if userAgent, ok := lookupEnv("LABELSCRAPER_USER_AGENT"); ok {
		c.Discogs.UserAgent = userAgent
	}
	if baseURL, ok := lookupEnv("LABELSCRAPER_BASE_URL"); ok {
		c.Discogs.BaseURL = baseURL
	}
	if profile, ok := lookupEnv("LABELSCRAPER_PROFILE"); ok {
		c.Discogs.Profile = profile
	}

	if outputFile, ok := lookupEnv("OUTPUT_FILE"); ok {
		c.Output.File = outputFile
	}
	if atomic, ok := lookupEnv("OUTPUT_ATOMIC"); ok {
		c.Output.Atomic = strings.ToLower(atomic) == "true" || atomic == "1"
	}

	if delay, ok, err := envInt("DELAY_MS", "DELAY"); err != nil {
		errs = append(errs, err)
	} else if ok {
		c.Scan.Delay = time.Duration(delay) * time.Millisecond
	}
	if step, ok, err := envInt("STEP", "REQUEST_EVERY_NTH"); err != nil {
		errs = append(errs, err)
	} else if ok {
		c.Scan.Step = step
	}
	if offset, ok, err := envInt("START_OFFSET", "REQUEST_START_OFFSET"); err != nil {
		errs = append(errs, err)
	} else if ok {
		c.Scan.StartOffset = offset
	}

	if wait, ok := lookupEnv("LABELSCRAPER_RATE_LIMIT_WAIT"); ok {
		d, err := time.ParseDuration(wait)
		if err != nil {
			errs = append(errs, fmt.Errorf("LABELSCRAPER_RATE_LIMIT_WAIT: %w", err))
		} else {
			c.RateLimit.Wait = d
		}
	}

	if logLevel, ok := lookupEnv("LABELSCRAPER_LOG_LEVEL"); ok {
		c.Logging.Level = logLevel
	}
	if logFile, ok := lookupEnv("LABELSCRAPER_LOG_FILE"); ok {
		c.Logging.File = logFile
	}
	if addr, ok := lookupEnv("LABELSCRAPER_METRICS_ADDR"); ok {
		c.Metrics.Addr = addr
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".labelscraper.yaml",
		".labelscraper.yml",
		filepath.Join(home, ".config", "labelscraper", "config.yaml"),
		filepath.Join(home, ".config", "labelscraper", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Discogs.APIKey == "" {
		errs = append(errs, errors.New("API key is required (API_KEY)"))
	}
	if c.Discogs.APISecret == "" {
		errs = append(errs, errors.New("API secret is required (API_SECRET)"))
	}
	if c.Discogs.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	}
	if c.Discogs.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.Output.File == "" {
		errs = append(errs, errors.New("output file is required (OUTPUT_FILE)"))
	}

	if c.Scan.Delay < 0 {
		errs = append(errs, errors.New("delay cannot be negative"))
	}
	if c.Scan.Step <= 0 {
		errs = append(errs, errors.New("step must be positive"))
	}
	if c.Scan.StartOffset < 0 {
		errs = append(errs, errors.New("start offset cannot be negative"))
	}

	if c.RateLimit.Wait < 0 {
		errs = append(errs, errors.New("rate limit wait cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if outputFile, ok := flags["output-file"].(string); ok && outputFile != "" {
		c.Output.File = outputFile
	}
	if addr, ok := flags["metrics-addr"].(string); ok && addr != "" {
		c.Metrics.Addr = addr
	}
	if profile, ok := flags["profile"].(string); ok && profile != "" {
		c.Discogs.Profile = profile
	}
}

// CredentialLookup returns stored credentials for a profile. Empty values mean none are stored.
type CredentialLookup func(profile string) (key, secret string, err error)

// ApplyStoredCredentials fills in a missing key or secret from lookup
func (c *Config) ApplyStoredCredentials(lookup CredentialLookup) error {
	if lookup == nil || (c.Discogs.APIKey != "" && c.Discogs.APISecret != "") {
		return nil
	}

	key, secret, err := lookup(c.Discogs.Profile)
	if err != nil {
		return fmt.Errorf("failed to read stored credentials: %w", err)
	}
	if c.Discogs.APIKey == "" {
		c.Discogs.APIKey = key
	}
	if c.Discogs.APISecret == "" {
		c.Discogs.APISecret = secret
	}
	return nil
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	return LoadWithCredentials(configPath, flags, nil)
}

// LoadWithCredentials is Load with stored credentials as the lowest-priority source for the key and secret
func LoadWithCredentials(configPath string, flags map[string]interface{}, lookup CredentialLookup) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".labelscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.ApplyStoredCredentials(lookup); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
