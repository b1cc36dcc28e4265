// Package ai configures the OpenAI-compatible providers behind embedding,
// match classification and result summaries.
package ai

import (
	"errors"
	"strings"
)

const (
	DefaultHost            = "https://api.openai.com/v1"
	DefaultEmbeddingModel  = "text-embedding-3-small"
	DefaultClassifierModel = "gpt-4o-mini"
)

// Config addresses the embedding and chat endpoints. Any OpenAI-compatible
// server (OpenAI, Ollama, vLLM) works.
type Config struct {
	EmbeddingHost   string
	ClassifierHost  string
	EmbeddingModel  string
	ClassifierModel string
	// APIKey may be empty for local servers that skip authentication.
	APIKey string
}

type ConfigOption func(*Config)

func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

func WithClassifierHost(host string) ConfigOption {
	return func(c *Config) {
		c.ClassifierHost = host
	}
}

// WithHost points both endpoints at the same server.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ClassifierHost = host
	}
}

func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

func WithClassifierModel(model string) ConfigOption {
	return func(c *Config) {
		c.ClassifierModel = model
	}
}

func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

func DefaultConfig() *Config {
	return &Config{
		EmbeddingHost:   DefaultHost,
		ClassifierHost:  DefaultHost,
		EmbeddingModel:  DefaultEmbeddingModel,
		ClassifierModel: DefaultClassifierModel,
	}
}

func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Token returns the bearer token to send. Local servers get a placeholder.
func (c *Config) Token() string {
	if strings.TrimSpace(c.APIKey) == "" {
		return "none"
	}
	return c.APIKey
}

// Normalize appends the /v1 suffix OpenAI-compatible servers expect.
func (c *Config) Normalize() {
	c.EmbeddingHost = withV1(c.EmbeddingHost)
	c.ClassifierHost = withV1(c.ClassifierHost)
}

func withV1(host string) string {
	host = strings.TrimSpace(host)
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate normalizes the configuration and checks it is complete.
func (c *Config) Validate() error {
	c.Normalize()
	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.ClassifierHost == "" {
		return errors.New("ai config: ClassifierHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.ClassifierModel == "" {
		return errors.New("ai config: ClassifierModel is required")
	}
	return nil
}
