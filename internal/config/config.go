package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/codyarch/internal/budget"
)

// DirName is the hidden per-project (and per-user) directory.
const DirName = ".codyarchitect"

// Mention modes.
const (
	MentionPrint     = "print"
	MentionClipboard = "clipboard"
	MentionNone      = "none"
)

// Environment overrides.
const (
	EnvAPIKey     = "CODYARCH_API_KEY"
	EnvJinaAPIKey = "JINA_API_KEY"
	EnvLogLevel   = "CODYARCH_LOG_LEVEL"
)

// Config holds application configuration.
type Config struct {
	// LimitKind is the metric for persisted documents: "chars" or "tokens"
	LimitKind string `json:"limit_kind"`

	// LimitValue is the maximum size of a persisted document in LimitKind units.
	// 0 keeps the value inherited from defaults or the global file; a negative
	// value writes empty documents.
	LimitValue int `json:"limit_value"`

	// Encoding is the tiktoken vocabulary used for the tokens metric
	Encoding string `json:"encoding"`

	// ProviderLimitKind / ProviderLimitValue budget the inline content returned
	// by the provider endpoint's "items" method. ProviderLimitValue follows the
	// same rules as LimitValue.
	ProviderLimitKind  string `json:"provider_limit_kind"`
	ProviderLimitValue int    `json:"provider_limit_value"`

	// APIKey is sent as a bearer token when non-blank. Prefer the env vars.
	APIKey string `json:"api_key,omitempty"`

	SearchBaseURL string `json:"search_base_url"`
	ReaderBaseURL string `json:"reader_base_url"`

	// RequestTimeoutSec bounds a single remote fetch
	RequestTimeoutSec int `json:"request_timeout_sec"`

	// RateLimitPerSec throttles remote fetches issued by one process.
	// 0 keeps the inherited value; a negative value disables throttling.
	RateLimitPerSec float64 `json:"rate_limit_per_sec"`

	// MentionMode selects how a written path is handed to the assistant:
	// "print", "clipboard" or "none".
	MentionMode string `json:"mention_mode"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	ProviderBind string `json:"provider_bind"`
	ProviderPort int    `json:"provider_port"`

	// DBMaxOpenConns limits the maximum number of open index connections.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle index connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes disables every MCP tool whose name starts with "<type>_".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LimitKind:          string(budget.MetricTokens),
		LimitValue:         28000,
		Encoding:           budget.DefaultEncoding,
		ProviderLimitKind:  string(budget.MetricChars),
		ProviderLimitValue: 30000,
		SearchBaseURL:      "https://s.jina.ai",
		ReaderBaseURL:      "https://r.jina.ai",
		RequestTimeoutSec:  60,
		RateLimitPerSec:    1,
		MentionMode:        MentionPrint,
		LogLevel:           "info",
		LogFormat:          "console",
		ProviderBind:       "127.0.0.1",
		ProviderPort:       1234,
	}
}

// Limit returns the persistence budget.
func (c *Config) Limit() budget.Limit {
	return budget.Limit{Kind: budget.Metric(c.LimitKind), Value: c.LimitValue}
}

// ProviderLimit returns the budget for inline provider content.
func (c *Config) ProviderLimit() budget.Limit {
	return budget.Limit{Kind: budget.Metric(c.ProviderLimitKind), Value: c.ProviderLimitValue}
}

// Validate rejects values the rest of the program cannot act on.
func (c *Config) Validate() error {
	kind, err := budget.ParseMetric(c.LimitKind)
	if err != nil {
		return fmt.Errorf("limit_kind: %w", err)
	}
	c.LimitKind = string(kind)

	pkind, err := budget.ParseMetric(c.ProviderLimitKind)
	if err != nil {
		return fmt.Errorf("provider_limit_kind: %w", err)
	}
	c.ProviderLimitKind = string(pkind)

	switch c.MentionMode {
	case MentionPrint, MentionClipboard, MentionNone:
	default:
		return fmt.Errorf("mention_mode: unknown mode %q (want print, clipboard or none)", c.MentionMode)
	}

	if c.RequestTimeoutSec < 0 {
		return fmt.Errorf("request_timeout_sec must be non-negative")
	}
	if c.ProviderPort < 0 || c.ProviderPort > 65535 {
		return fmt.Errorf("provider_port out of range: %d", c.ProviderPort)
	}
	return nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.codyarchitect.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.codyarchitect) and repo (.codyarchitect) directories.
// Repo config is found by walking upward from startDir to find the nearest .codyarchitect/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Environment overrides are applied last. Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config) {
	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		cfg.APIKey = key
	} else if key := strings.TrimSpace(os.Getenv(EnvJinaAPIKey)); key != "" && cfg.APIKey == "" {
		cfg.APIKey = key
	}
	if lvl := strings.TrimSpace(os.Getenv(EnvLogLevel)); lvl != "" {
		cfg.LogLevel = lvl
	}
}

// FindRepoConfig walks upward from startDir to find the nearest .codyarchitect/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the path is empty or the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	return &Config{
		LimitKind:          pickString(base.LimitKind, overlay.LimitKind),
		LimitValue:         pickInt(base.LimitValue, overlay.LimitValue),
		Encoding:           pickString(base.Encoding, overlay.Encoding),
		ProviderLimitKind:  pickString(base.ProviderLimitKind, overlay.ProviderLimitKind),
		ProviderLimitValue: pickInt(base.ProviderLimitValue, overlay.ProviderLimitValue),
		APIKey:             pickString(base.APIKey, overlay.APIKey),
		SearchBaseURL:      pickString(base.SearchBaseURL, overlay.SearchBaseURL),
		ReaderBaseURL:      pickString(base.ReaderBaseURL, overlay.ReaderBaseURL),
		RequestTimeoutSec:  pickInt(base.RequestTimeoutSec, overlay.RequestTimeoutSec),
		RateLimitPerSec:    pickFloat(base.RateLimitPerSec, overlay.RateLimitPerSec),
		MentionMode:        pickString(base.MentionMode, overlay.MentionMode),
		LogLevel:           pickString(base.LogLevel, overlay.LogLevel),
		LogFormat:          pickString(base.LogFormat, overlay.LogFormat),
		ProviderBind:       pickString(base.ProviderBind, overlay.ProviderBind),
		ProviderPort:       pickInt(base.ProviderPort, overlay.ProviderPort),
		DBMaxOpenConns:     pickInt(base.DBMaxOpenConns, overlay.DBMaxOpenConns),
		DBMaxIdleConns:     pickInt(base.DBMaxIdleConns, overlay.DBMaxIdleConns),
		DisabledTools:      mergeStringSlice(base.DisabledTools, overlay.DisabledTools),
		DisabledTypes:      mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes),
	}
}

// Scalars: overlay wins if non-zero, else base.

func pickString(base, overlay string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(base, overlay int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickFloat(base, overlay float64) float64 {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
