/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package config loads the connector's startup configuration from a YAML file,
// applies environment overrides and validates the result.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mikelane/github-connector/internal/subscription"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath  = "github-connector.yaml"
	defaultAddress     = "0.0.0.0"
	defaultPort        = 8080
	defaultWebhookPath = "/reshuffle-github-connector/webhook"
	defaultConcurrency = 4
)

// Environment variables that override file values when set.
const (
	EnvToken          = "GITHUB_TOKEN"
	EnvSecret         = "GITHUB_WEBHOOK_SECRET"
	EnvRuntimeBaseURL = "RUNTIME_BASE_URL"
	EnvAPIBaseURL     = "GITHUB_API_URL"
)

// ErrInvalidConfig is returned when the loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the connector's startup configuration.
type Config struct {
	Listen         Listen               `yaml:"listen"`
	RuntimeBaseURL string               `yaml:"runtime_base_url" validate:"omitempty,url"`
	WebhookPath    string               `yaml:"webhook_path" validate:"required,startswith=/"`
	Secret         string               `yaml:"secret"`
	Token          string               `yaml:"token"`
	APIBaseURL     string               `yaml:"api_base_url" validate:"omitempty,url"`
	Concurrency    int                  `yaml:"concurrency" validate:"gte=1"`
	Subscriptions  []SubscriptionConfig `yaml:"subscriptions" validate:"dive"`
}

// Listen is the address the webhook server binds to.
type Listen struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port" validate:"gte=1,lte=65535"`
}

// SubscriptionConfig declares one subscription in the configuration file.
type SubscriptionConfig struct {
	ID     string   `yaml:"id"`
	Owner  string   `yaml:"owner" validate:"required"`
	Repo   string   `yaml:"repo" validate:"required"`
	Event  string   `yaml:"event" validate:"required_without=Events"`
	Events []string `yaml:"events" validate:"required_without=Event,dive,required"`
}

// EventOptions converts the declaration into registration options.
func (s SubscriptionConfig) EventOptions() subscription.EventOptions {
	return subscription.EventOptions{
		Owner:  s.Owner,
		Repo:   s.Repo,
		Event:  s.Event,
		Events: s.Events,
	}
}

// Default returns the configuration used for any value the file leaves out.
func Default() Config {
	return Config{
		Listen: Listen{
			Address: defaultAddress,
			Port:    defaultPort,
		},
		WebhookPath: defaultWebhookPath,
		Concurrency: defaultConcurrency,
	}
}

// Load reads the YAML file at configPath, applies environment overrides and
// validates the result.
func Load(configPath string) (*Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML content on top of the defaults, applies environment
// overrides and validates the result.
func Parse(content []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}

	applyEnv(&cfg, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvToken); ok && v != "" {
		cfg.Token = v
	}
	if v, ok := lookup(EnvSecret); ok && v != "" {
		cfg.Secret = v
	}
	if v, ok := lookup(EnvRuntimeBaseURL); ok && v != "" {
		cfg.RuntimeBaseURL = v
	}
	if v, ok := lookup(EnvAPIBaseURL); ok && v != "" {
		cfg.APIBaseURL = v
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints. Subscriptions require a runtime base URL
// because reconciliation needs somewhere to point the webhook.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if len(c.Subscriptions) > 0 && c.RuntimeBaseURL == "" {
		return fmt.Errorf("%w: runtime_base_url is required when subscriptions are declared", ErrInvalidConfig)
	}
	for i, s := range c.Subscriptions {
		if err := s.EventOptions().Validate(); err != nil {
			return fmt.Errorf("%w: subscriptions[%d]: %w", ErrInvalidConfig, i, err)
		}
	}
	return nil
}
