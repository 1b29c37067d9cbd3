package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Store     StoreConfig     `yaml:"store"`
	Vault     VaultConfig     `yaml:"vault"`
	NATS      NATSConfig      `yaml:"nats"`
	Providers ProvidersConfig `yaml:"providers"`
	Rollup    RollupConfig    `yaml:"rollup"`
}

type GatewayConfig struct {
	Port           int           `yaml:"port"`
	AuthSecret     string        `yaml:"auth_secret"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// SelectionSeed fixes the agent-selection random source; 0 means seed
	// from the clock. Non-zero values are for reproducible test scenarios.
	SelectionSeed int64 `yaml:"selection_seed"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type VaultConfig struct {
	Passphrase string `yaml:"passphrase"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
	// ReadyTimeout bounds the wait for the embedded server to accept
	// connections at startup.
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
}

type ProvidersConfig struct {
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
	Google    ProviderConfig `yaml:"google"`
}

type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
}

type RollupConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

func defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port:           8080,
			ConnectTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Path: "data/swarmgate.db",
		},
		NATS: NATSConfig{
			Port:         4222,
			DataDir:      "data/nats",
			ReadyTimeout: 5 * time.Second,
		},
		Providers: ProvidersConfig{
			OpenAI:    ProviderConfig{BaseURL: "https://api.openai.com"},
			Anthropic: ProviderConfig{BaseURL: "https://api.anthropic.com"},
			Google:    ProviderConfig{BaseURL: "https://generativelanguage.googleapis.com"},
		},
		Rollup: RollupConfig{
			Enabled:  true,
			Schedule: "0 * * * *",
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("SWARMGATE_CONFIG")
	if path == "" {
		path = "config/swarmgate.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SWARMGATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("SWARMGATE_AUTH_SECRET"); v != "" {
		cfg.Gateway.AuthSecret = v
	}
	if v := os.Getenv("SWARMGATE_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Gateway.ConnectTimeout = d
		}
	}
	if v := os.Getenv("SWARMGATE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SWARMGATE_VAULT_PASSPHRASE"); v != "" {
		cfg.Vault.Passphrase = v
	}
	if v := os.Getenv("SWARMGATE_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Providers.OpenAI.BaseURL = v
	}
	if v := os.Getenv("ANTHROPIC_BASE_URL"); v != "" {
		cfg.Providers.Anthropic.BaseURL = v
	}
	if v := os.Getenv("GOOGLE_BASE_URL"); v != "" {
		cfg.Providers.Google.BaseURL = v
	}
}
