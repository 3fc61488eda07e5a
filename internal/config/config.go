// Package config loads relay configuration from an optional YAML file,
// a .env file, and environment variables. Environment always wins so the
// service can be reconfigured without touching the config file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values applied when neither file nor environment provide a setting.
const (
	DefaultHost          = "0.0.0.0"
	DefaultPort          = 5000
	DefaultOllamaURL     = "http://localhost:11434/api/generate"
	DefaultOllamaModel   = "gemma2"
	DefaultOllamaTimeout = 120 * time.Second
	DefaultMaxResults    = 10
	DefaultCacheTTL      = 5 * time.Minute
	DefaultContextBudget = 8000
	DefaultMaxFiles      = 3
	DefaultTrigger       = "ollama質問"
)

// OllamaConfig holds the model endpoint settings.
type OllamaConfig struct {
	URL     string        `yaml:"url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// TeamsConfig holds the Teams workflow webhook settings.
type TeamsConfig struct {
	WorkflowURL      string `yaml:"workflowUrl"`
	OutgoingToken    string `yaml:"outgoingToken"`
	SkipVerification bool   `yaml:"skipVerification"`
}

// SearchConfig holds the local document search settings.
type SearchConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Dir           string        `yaml:"dir"`
	FileTypes     []string      `yaml:"fileTypes"`  // allowed extensions, e.g. [".pdf", ".docx"]; empty = all
	MaxResults    int           `yaml:"maxResults"` // cap on files returned per search
	CacheTTL      time.Duration `yaml:"cacheTTL"`
	ContextBudget int           `yaml:"contextBudget"` // char budget for the assembled context blob
	MaxFiles      int           `yaml:"maxFiles"`      // files included per answer
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Debug          bool   `yaml:"debug"`
	RateLimitRPM   int    `yaml:"rateLimitRpm"`   // per-sender requests per minute, 0 = unlimited
	RateLimitBurst int    `yaml:"rateLimitBurst"` // max burst per sender
	TraceStdout    bool   `yaml:"traceStdout"`    // export pipeline trace spans to stdout
}

// Config is the root configuration for the relay.
type Config struct {
	Server  ServerConfig `yaml:"server"`
	Ollama  OllamaConfig `yaml:"ollama"`
	Teams   TeamsConfig  `yaml:"teams"`
	Search  SearchConfig `yaml:"search"`
	Trigger string       `yaml:"trigger"` // phrase that marks a message as directed at the bot
}

// Load reads configuration from the YAML file at path (missing file is not
// an error), then .env, then environment variables.
func Load(path string) (*Config, error) {
	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           DefaultHost,
			Port:           DefaultPort,
			RateLimitBurst: 5,
		},
		Ollama: OllamaConfig{
			URL:     DefaultOllamaURL,
			Model:   DefaultOllamaModel,
			Timeout: DefaultOllamaTimeout,
		},
		Search: SearchConfig{
			MaxResults:    DefaultMaxResults,
			CacheTTL:      DefaultCacheTTL,
			ContextBudget: DefaultContextBudget,
			MaxFiles:      DefaultMaxFiles,
		},
		Trigger: DefaultTrigger,
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "HOST")
	setInt(&cfg.Server.Port, "PORT")
	setBool(&cfg.Server.Debug, "DEBUG")
	setInt(&cfg.Server.RateLimitRPM, "RATE_LIMIT_RPM")
	setInt(&cfg.Server.RateLimitBurst, "RATE_LIMIT_BURST")
	setBool(&cfg.Server.TraceStdout, "TRACE_STDOUT")

	setString(&cfg.Ollama.URL, "OLLAMA_URL")
	setString(&cfg.Ollama.Model, "OLLAMA_MODEL")
	setSeconds(&cfg.Ollama.Timeout, "OLLAMA_TIMEOUT")

	setString(&cfg.Teams.WorkflowURL, "TEAMS_WORKFLOW_URL")
	setString(&cfg.Teams.OutgoingToken, "TEAMS_OUTGOING_TOKEN")
	setBool(&cfg.Teams.SkipVerification, "SKIP_VERIFICATION")

	setBool(&cfg.Search.Enabled, "SEARCH_ENABLED")
	setString(&cfg.Search.Dir, "SEARCH_DIR")
	setInt(&cfg.Search.MaxResults, "SEARCH_MAX_RESULTS")
	setSeconds(&cfg.Search.CacheTTL, "SEARCH_CACHE_TTL")
	setInt(&cfg.Search.ContextBudget, "SEARCH_CONTEXT_BUDGET")
	setInt(&cfg.Search.MaxFiles, "SEARCH_MAX_FILES")

	if v := os.Getenv("SEARCH_FILE_TYPES"); v != "" {
		cfg.Search.FileTypes = ParseFileTypes(v)
	}

	setString(&cfg.Trigger, "TRIGGER_PHRASE")
}

// ParseFileTypes parses a comma-separated extension list ("pdf,.docx, TXT")
// into normalized lowercase dotted extensions.
func ParseFileTypes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Ollama.URL == "" {
		return fmt.Errorf("ollama URL is required")
	}
	if c.Ollama.Timeout <= 0 {
		c.Ollama.Timeout = DefaultOllamaTimeout
	}
	if c.Search.Enabled && c.Search.Dir == "" {
		return fmt.Errorf("search enabled but SEARCH_DIR is empty")
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = DefaultMaxResults
	}
	if c.Search.ContextBudget <= 0 {
		c.Search.ContextBudget = DefaultContextBudget
	}
	if c.Search.MaxFiles <= 0 {
		c.Search.MaxFiles = DefaultMaxFiles
	}
	if c.Search.CacheTTL <= 0 {
		c.Search.CacheTTL = DefaultCacheTTL
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
}

func setSeconds(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = time.Duration(n) * time.Second
		}
	}
}
