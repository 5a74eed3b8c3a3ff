// Package config provides configuration management for the application.
//
// Values are layered, lowest precedence first: built-in defaults, an optional
// YAML or TOML config file, then environment variables (a .env file in the
// working directory is loaded into the environment first).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"chatbridge/internal/core"
)

const (
	// DefaultPort matches the port the bridge has always listened on
	DefaultPort = "3000"
	// DefaultBodySizeLimit caps POST /chat bodies
	DefaultBodySizeLimit = "1M"
	// DefaultGeminiBaseURL is the public Generative Language API host
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultGeminiTimeout bounds each candidate attempt
	DefaultGeminiTimeout = 30 * time.Second
	// DefaultMetricsEndpoint is where Prometheus metrics are served when enabled
	DefaultMetricsEndpoint = "/metrics"
	// DefaultServerURL is used by the interactive client when it targets a running server
	DefaultServerURL = "http://localhost:3000"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LogConfig     `mapstructure:"logging"`
	CLI     CLIConfig     `mapstructure:"cli"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `mapstructure:"port"`
	// MasterKey enables bearer authentication when non-empty
	MasterKey string `mapstructure:"master_key"`
	// BodySizeLimit uses echo's size syntax, e.g. "1M" or "512K"
	BodySizeLimit string `mapstructure:"body_size_limit"`
}

// GeminiConfig holds the upstream credential and attempt order
type GeminiConfig struct {
	APIKey     string           `mapstructure:"api_key"`
	BaseURL    string           `mapstructure:"base_url"`
	Timeout    time.Duration    `mapstructure:"timeout"`
	Candidates []core.Candidate `mapstructure:"candidates"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LogConfig holds log output settings
type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

// CLIConfig holds interactive client settings
type CLIConfig struct {
	// ServerURL sends chat messages to a running server instead of resolving in-process
	ServerURL string `mapstructure:"server_url"`
}

// LoadResult is the outcome of Load
type LoadResult struct {
	Config *Config
	// ConfigFile is the file that was merged, empty when none was found
	ConfigFile string
}

// envBindings maps config keys to the environment variables that override them
var envBindings = map[string]string{
	"server.port":            "PORT",
	"server.master_key":      "CHATBRIDGE_MASTER_KEY",
	"server.body_size_limit": "BODY_SIZE_LIMIT",
	"gemini.api_key":         "GEMINI_API_KEY",
	"gemini.base_url":        "GEMINI_BASE_URL",
	"gemini.timeout":         "GEMINI_TIMEOUT",
	"gemini.candidates":      "GEMINI_CANDIDATES",
	"metrics.enabled":        "METRICS_ENABLED",
	"metrics.endpoint":       "METRICS_ENDPOINT",
	"logging.format":         "LOG_FORMAT",
	"logging.level":          "LOG_LEVEL",
	"cli.server_url":         "CHATBRIDGE_SERVER_URL",
}

// configFileSearchPath is tried in order when CONFIG_FILE is not set
var configFileSearchPath = []string{
	"config.yaml",
	"config.yml",
	"config/config.yaml",
	"config.toml",
	"config/config.toml",
}

// Load reads configuration from defaults, an optional config file and the environment
func Load() (*LoadResult, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	configFile, err := findConfigFile()
	if err != nil {
		return nil, err
	}
	if configFile != "" {
		values, err := readConfigFile(configFile)
		if err != nil {
			return nil, err
		}
		if err := v.MergeConfigMap(values); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", configFile, err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		candidateHook,
		durationHook,
	))); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.dropUnresolvedSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &LoadResult{Config: cfg, ConfigFile: configFile}, nil
}

// dropUnresolvedSecrets clears credentials that still hold a ${VAR} placeholder,
// so an unset variable reads as a missing credential rather than a literal key.
func (c *Config) dropUnresolvedSecrets() {
	if strings.Contains(c.Gemini.APIKey, "${") {
		c.Gemini.APIKey = ""
	}
	if strings.Contains(c.Server.MasterKey, "${") {
		c.Server.MasterKey = ""
	}
}

func setDefaults(v *viper.Viper) {
	defaults := core.DefaultCandidates()
	candidates := make([]string, len(defaults))
	for i, c := range defaults {
		candidates[i] = c.String()
	}

	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.master_key", "")
	v.SetDefault("server.body_size_limit", DefaultBodySizeLimit)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.base_url", DefaultGeminiBaseURL)
	v.SetDefault("gemini.timeout", DefaultGeminiTimeout.String())
	v.SetDefault("gemini.candidates", candidates)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.endpoint", DefaultMetricsEndpoint)
	v.SetDefault("logging.format", "auto")
	v.SetDefault("logging.level", "info")
	v.SetDefault("cli.server_url", "")
}

var bodySizePattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?[KMGTP]?B?$`)

// Validate checks values that would otherwise fail later at startup.
// A missing API key is allowed; requests report it instead.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("server.port must not be empty")
	}
	if !bodySizePattern.MatchString(strings.ToUpper(c.Server.BodySizeLimit)) {
		return fmt.Errorf("server.body_size_limit %q is invalid (expected e.g. 1M, 512K)", c.Server.BodySizeLimit)
	}
	if c.Gemini.Timeout <= 0 {
		return fmt.Errorf("gemini.timeout must be positive, got %s", c.Gemini.Timeout)
	}
	for i, candidate := range c.Gemini.Candidates {
		if err := candidate.Validate(); err != nil {
			return fmt.Errorf("gemini.candidates[%d]: %w", i, err)
		}
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Endpoint, "/") {
		return fmt.Errorf("metrics.endpoint %q must start with /", c.Metrics.Endpoint)
	}
	return nil
}

func findConfigFile() (string, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("CONFIG_FILE %s: %w", path, err)
		}
		return path, nil
	}
	for _, path := range configFileSearchPath {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// readConfigFile decodes a YAML or TOML file and expands ${VAR} placeholders in its string values
func readConfigFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	values := map[string]interface{}{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	expanded, _ := expandValue(values).(map[string]interface{})
	if expanded == nil {
		expanded = map[string]interface{}{}
	}
	return expanded, nil
}

func expandValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return expandString(v)
	case map[string]interface{}:
		for key, item := range v {
			v[key] = expandValue(item)
		}
		return v
	case []interface{}:
		for i, item := range v {
			v[i] = expandValue(item)
		}
		return v
	case []map[string]interface{}:
		for i, item := range v {
			v[i] = expandValue(item).(map[string]interface{})
		}
		return v
	default:
		return value
	}
}

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default}. A ${VAR} whose variable is unset
// or empty is left as-is so the mistake stays visible.
func expandString(s string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		name, hasDefault, def := groups[1], groups[2] != "", groups[3]
		if value := os.Getenv(name); value != "" {
			return value
		}
		if hasDefault {
			return def
		}
		return match
	})
}

var (
	candidateType      = reflect.TypeOf(core.Candidate{})
	candidateSliceType = reflect.TypeOf([]core.Candidate{})
	durationType       = reflect.TypeOf(time.Duration(0))
)

// candidateHook accepts "v1beta/gemini-2.5-flash" for a single candidate and a
// comma separated list of those for the whole list.
func candidateHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	switch to {
	case candidateType:
		return core.ParseCandidate(data.(string))
	case candidateSliceType:
		return core.ParseCandidates(data.(string))
	}
	return data, nil
}

// durationHook accepts Go duration strings ("45s") and bare numbers as seconds.
func durationHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != durationType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		s := strings.TrimSpace(v)
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q", v)
		}
		return d, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}
