package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		MaxUploadBytes int64    `yaml:"maxUploadBytes"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json | console
	} `yaml:"logging"`

	Upstream struct {
		// Provider serves the image variant; text is always relayed to Gemini.
		Provider string        `yaml:"provider"`
		Timeout  time.Duration `yaml:"timeout"` // 0 = no timeout

		Gemini struct {
			BaseURL string `yaml:"baseURL"`
			Model   string `yaml:"model"`
			APIKey  string `yaml:"-"`
		} `yaml:"gemini"`

		OpenAI struct {
			BaseURL string `yaml:"baseURL"`
			Model   string `yaml:"model"`
			APIKey  string `yaml:"-"`
		} `yaml:"openai"`
	} `yaml:"upstream"`
}

// Load reads the YAML file at path (a missing file is fine), applies
// environment overrides and defaults, then validates. Credentials only ever
// come from the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		p, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid PORT: %q", v)
		}
		c.Server.Port = p
	}
	if v, ok := lookup("MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_BYTES: %q", v)
		}
		c.Server.MaxUploadBytes = n
	}
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup("UPSTREAM_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid UPSTREAM_TIMEOUT: %q", v)
		}
		c.Upstream.Timeout = d
	}
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("UPSTREAM_PROVIDER", &c.Upstream.Provider)
	str("GEMINI_BASE_URL", &c.Upstream.Gemini.BaseURL)
	str("GEMINI_MODEL", &c.Upstream.Gemini.Model)
	str("GEMINI_API_KEY", &c.Upstream.Gemini.APIKey)
	str("OPENAI_BASE_URL", &c.Upstream.OpenAI.BaseURL)
	str("OPENAI_MODEL", &c.Upstream.OpenAI.Model)
	str("OPENAI_API_KEY", &c.Upstream.OpenAI.APIKey)
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 10 << 20 // 10MB
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Upstream.Provider == "" {
		c.Upstream.Provider = ProviderGemini
	}
	c.Upstream.Provider = strings.ToLower(c.Upstream.Provider)
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("maxUploadBytes must be > 0 (got %d)", c.Server.MaxUploadBytes)
	}
	if c.Upstream.Timeout < 0 {
		return fmt.Errorf("upstream timeout must be >= 0 (got %s)", c.Upstream.Timeout)
	}
	switch c.Upstream.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown upstream provider %q (allowed: gemini, openai)", c.Upstream.Provider)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q (allowed: json, console)", c.Logging.Format)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
