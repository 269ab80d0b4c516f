package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"
)

// Client is the configuration of the sunny CLI and SDK.
type Client struct {
	APIKey       string        `mapstructure:"api_key" yaml:"api_key"`
	Environment  string        `mapstructure:"environment" yaml:"environment"`
	MerchantID   string        `mapstructure:"merchant_id" yaml:"merchant_id"`
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

func DefaultClient() *Client {
	return &Client{
		APIKey:       "sk_test_sandbox",
		Environment:  EnvSandbox,
		BaseURL:      "http://localhost:8081",
		PollInterval: 5 * time.Second,
	}
}

// ClientConfigPath returns ~/.sunny/config.yaml.
func ClientConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".sunny", "config.yaml")
	}
	return filepath.Join(home, ".sunny", "config.yaml")
}

// LoadClient reads path (if it exists) over the defaults, then applies SUNNY_* env overrides.
func LoadClient(path string) (*Client, error) {
	def := DefaultClient()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("sunny")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_key", def.APIKey)
	v.SetDefault("environment", def.Environment)
	v.SetDefault("merchant_id", def.MerchantID)
	v.SetDefault("base_url", def.BaseURL)
	v.SetDefault("poll_interval", def.PollInterval)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Client{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Client) Validate() error {
	if c.APIKey == "" {
		return errors.New("api_key is required")
	}
	switch c.Environment {
	case EnvSandbox, EnvProduction:
	default:
		return fmt.Errorf("environment must be %q or %q, got %q", EnvSandbox, EnvProduction, c.Environment)
	}
	if c.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	return nil
}

// WriteClient writes cfg as yaml, creating the directory. An existing file
// is kept unless overwrite is set.
func WriteClient(path string, cfg *Client, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
