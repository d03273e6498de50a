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

// DefaultAPIURL is used when neither the file nor API_URL names a backend.
const DefaultAPIURL = "http://x402guard.xyz"

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		WriteTimeout    time.Duration `yaml:"writeTimeout"`
		IdleTimeout     time.Duration `yaml:"idleTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Upstream struct {
		BaseURL string        `yaml:"baseURL"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"upstream"`

	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rateLimit"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`

	Client struct {
		ProxyURL string   `yaml:"proxyURL"`
		Networks []string `yaml:"networks"`
	} `yaml:"client"`
}

// Default returns the values used for anything the file leaves out.
func Default() *Config {
	var cfg Config
	cfg.Server.Port = 3000
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 90 * time.Second
	cfg.Server.IdleTimeout = 60 * time.Second
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Upstream.BaseURL = DefaultAPIURL
	cfg.Upstream.Timeout = 60 * time.Second
	cfg.RateLimit.RPS = 5
	cfg.RateLimit.Burst = 10
	cfg.Log.Level = "info"
	cfg.Client.ProxyURL = "http://localhost:3000"
	return &cfg
}

// Load baca file config.yaml di atas Default, lalu env override.
// File yang tidak ada bukan error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns CONFIG_PATH or config.yaml.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "config.yaml"
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("API_URL"); ok && strings.TrimSpace(v) != "" {
		c.Upstream.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("X402GUARD_PROXY_URL"); ok && v != "" {
		c.Client.ProxyURL = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Upstream.BaseURL) == "" {
		c.Upstream.BaseURL = DefaultAPIURL
	}
	c.Upstream.BaseURL = strings.TrimRight(c.Upstream.BaseURL, "/")
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rateLimit values must not be negative")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
