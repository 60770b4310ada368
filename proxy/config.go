package proxy

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultUpstreamURL is the Anthropic Messages API endpoint.
	DefaultUpstreamURL = "https://api.anthropic.com/v1/messages"

	// DefaultAnthropicVersion is sent in the anthropic-version header.
	DefaultAnthropicVersion = "2023-06-01"

	// DefaultModel is the model every chat request is pinned to.
	DefaultModel = "claude-3-haiku-20240307"

	// DefaultMaxTokens caps the length of every completion.
	DefaultMaxTokens = 150

	// DefaultPort is used when PORT is not set.
	DefaultPort = 8080

	// DefaultBodyLimit is the largest request body accepted, in bytes.
	// It matches the upstream's own request size limit.
	DefaultBodyLimit = 32 * 1024 * 1024
)

// ErrMissingAPIKey is returned when no upstream credential is configured.
var ErrMissingAPIKey = errors.New("ANTHROPIC_API_KEY environment variable not found")

// Config is the gateway configuration. It is built once at startup and
// handed to New by value.
type Config struct {
	// Port to listen on
	Port int `toml:"port"`

	// APIKey is the upstream secret. It is only ever read from the environment.
	APIKey string `toml:"-"`

	// AllowedOrigins are the browser origins permitted to call the gateway.
	AllowedOrigins []string `toml:"allowed_origins"`

	// Model and MaxTokens are forced onto every upstream request.
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`

	// Upstream Messages API endpoint and version header
	UpstreamURL      string `toml:"upstream_url"`
	AnthropicVersion string `toml:"anthropic_version"`

	// UpstreamTimeout bounds the upstream call. Zero means no timeout.
	UpstreamTimeout time.Duration `toml:"upstream_timeout"`

	// BodyLimit is the largest request body accepted, in bytes.
	BodyLimit int `toml:"body_limit"`

	// MetricsListen is the address of the admin listener serving /metrics.
	// Empty disables it.
	MetricsListen string `toml:"metrics_listen"`
}

// DefaultConfig returns the built-in configuration, without an API key.
func DefaultConfig() Config {
	return Config{
		Port: DefaultPort,
		AllowedOrigins: []string{
			"https://hypedecay.com",
			"https://www.hypedecay.com",
			"http://hypedecay.com",
		},
		Model:            DefaultModel,
		MaxTokens:        DefaultMaxTokens,
		UpstreamURL:      DefaultUpstreamURL,
		AnthropicVersion: DefaultAnthropicVersion,
		BodyLimit:        DefaultBodyLimit,
	}
}

// ListenAddr is the address the public listener binds to.
func (c Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

// LoadConfig layers an optional TOML file and then the environment over
// DefaultConfig, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("could not decode config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", val, err)
		}
		cfg.Port = port
	}

	cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")

	if val := os.Getenv("CIPHERBOB_ALLOWED_ORIGINS"); val != "" {
		var origins []string
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.AllowedOrigins = origins
	}

	if val := os.Getenv("CIPHERBOB_MODEL"); val != "" {
		cfg.Model = val
	}

	if val := os.Getenv("CIPHERBOB_MAX_TOKENS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid CIPHERBOB_MAX_TOKENS %q: %w", val, err)
		}
		cfg.MaxTokens = n
	}

	if val := os.Getenv("CIPHERBOB_UPSTREAM_URL"); val != "" {
		cfg.UpstreamURL = val
	}

	if val := os.Getenv("CIPHERBOB_UPSTREAM_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid CIPHERBOB_UPSTREAM_TIMEOUT %q: %w", val, err)
		}
		cfg.UpstreamTimeout = d
	}

	if val := os.Getenv("CIPHERBOB_BODY_LIMIT"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid CIPHERBOB_BODY_LIMIT %q: %w", val, err)
		}
		cfg.BodyLimit = n
	}

	if val := os.Getenv("CIPHERBOB_METRICS_LISTEN"); val != "" {
		cfg.MetricsListen = val
	}

	return nil
}

// Validate checks the configuration. A missing API key is reported as
// ErrMissingAPIKey before anything else.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if len(c.AllowedOrigins) == 0 {
		return errors.New("at least one allowed origin is required")
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.UpstreamURL == "" {
		return errors.New("upstream URL is required")
	}
	if c.BodyLimit <= 0 {
		return fmt.Errorf("body limit must be positive, got %d", c.BodyLimit)
	}
	if c.UpstreamTimeout < 0 {
		return fmt.Errorf("upstream timeout must not be negative, got %s", c.UpstreamTimeout)
	}
	return nil
}
