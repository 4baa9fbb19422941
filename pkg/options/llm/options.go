// Package llm provides language-model provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/legal-rag/pkg/llm/resilience"
	"github.com/kart-io/legal-rag/pkg/options"
)

// APIKeyEnv is read when a provider needs an API key and none is configured.
const APIKeyEnv = "LEGAL_RAG_LLM_API_KEY"

var _ options.IOptions = (*Options)(nil)

// ProviderOptions configures one provider role.
type ProviderOptions struct {
	// Provider is the registered provider name (local, ollama, gemini).
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL is the API base address (ollama).
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey is the API key (gemini).
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model is the model name.
	Model string `json:"model" mapstructure:"model"`

	// Timeout bounds a single call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Dimension is the vector width of the local embedder.
	Dimension int `json:"dimension" mapstructure:"dimension"`
}

// ResilienceOptions configures retry and circuit breaking around providers.
type ResilienceOptions struct {
	MaxAttempts     int           `json:"max-attempts" mapstructure:"max-attempts"`
	InitialDelay    time.Duration `json:"initial-delay" mapstructure:"initial-delay"`
	MaxDelay        time.Duration `json:"max-delay" mapstructure:"max-delay"`
	BreakerFailures uint32        `json:"breaker-failures" mapstructure:"breaker-failures"`
	BreakerTimeout  time.Duration `json:"breaker-timeout" mapstructure:"breaker-timeout"`
}

// Options groups the embedding and chat providers.
type Options struct {
	Embedding  *ProviderOptions   `json:"embedding" mapstructure:"embedding"`
	Chat       *ProviderOptions   `json:"chat" mapstructure:"chat"`
	Resilience *ResilienceOptions `json:"resilience" mapstructure:"resilience"`
}

// NewOptions defaults both roles to the offline local provider.
func NewOptions() *Options {
	return &Options{
		Embedding: &ProviderOptions{
			Provider:  "local",
			BaseURL:   "http://localhost:11434",
			Model:     "nomic-embed-text",
			Timeout:   30 * time.Second,
			Dimension: 256,
		},
		Chat: &ProviderOptions{
			Provider: "local",
			BaseURL:  "http://localhost:11434",
			Model:    "llama3.1:8b",
			Timeout:  120 * time.Second,
		},
		Resilience: &ResilienceOptions{
			MaxAttempts:     3,
			InitialDelay:    500 * time.Millisecond,
			MaxDelay:        10 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  60 * time.Second,
		},
	}
}

// ToConfigMap converts embedding options into a provider factory map.
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
		"dimension":   o.Dimension,
	}
}

func (o *ProviderOptions) addFlags(fs *pflag.FlagSet, p string) {
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (local|ollama|gemini).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Provider API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Provider API key. Prefer the "+APIKeyEnv+" environment variable.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Per-call timeout.")
	fs.IntVar(&o.Dimension, p+"dimension", o.Dimension, "Embedding dimension of the local provider.")
}

func (o *ProviderOptions) validate(role string) []error {
	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("llm.%s.provider is required", role))
	}
	if o.Provider == "gemini" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("llm.%s.api-key is required for gemini", role))
	}
	if o.Provider == "ollama" && o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("llm.%s.base-url is required for ollama", role))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("llm.%s.timeout must be positive", role))
	}
	return errs
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "llm."
	o.Embedding.addFlags(fs, p+"embedding.")
	o.Chat.addFlags(fs, p+"chat.")
	fs.IntVar(&o.Resilience.MaxAttempts, p+"resilience.max-attempts", o.Resilience.MaxAttempts, "Attempts per provider call, including the first.")
	fs.DurationVar(&o.Resilience.InitialDelay, p+"resilience.initial-delay", o.Resilience.InitialDelay, "Backoff before the second attempt.")
	fs.DurationVar(&o.Resilience.MaxDelay, p+"resilience.max-delay", o.Resilience.MaxDelay, "Maximum backoff between attempts.")
	fs.Uint32Var(&o.Resilience.BreakerFailures, p+"resilience.breaker-failures", o.Resilience.BreakerFailures, "Consecutive failures that open the circuit breaker.")
	fs.DurationVar(&o.Resilience.BreakerTimeout, p+"resilience.breaker-timeout", o.Resilience.BreakerTimeout, "How long the breaker stays open.")
}

// Complete reads API keys from the environment.
func (o *Options) Complete() error {
	key := os.Getenv(APIKeyEnv)
	for _, p := range []*ProviderOptions{o.Embedding, o.Chat} {
		if p != nil && p.APIKey == "" {
			p.APIKey = key
		}
	}
	return nil
}

// Validate validates the LLM provider options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	errs = append(errs, o.Embedding.validate("embedding")...)
	errs = append(errs, o.Chat.validate("chat")...)
	if o.Resilience.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("llm.resilience.max-attempts must be at least 1"))
	}
	if o.Resilience.BreakerFailures < 1 {
		errs = append(errs, fmt.Errorf("llm.resilience.breaker-failures must be at least 1"))
	}
	return errs
}

// RetryConfig converts the resilience options.
func (o *ResilienceOptions) RetryConfig() *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = o.MaxAttempts
	cfg.InitialDelay = o.InitialDelay
	cfg.MaxDelay = o.MaxDelay
	return cfg
}

// CircuitBreakerConfig converts the resilience options.
func (o *ResilienceOptions) CircuitBreakerConfig() *resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.MaxFailures = o.BreakerFailures
	cfg.Timeout = o.BreakerTimeout
	return cfg
}
