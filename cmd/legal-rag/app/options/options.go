// Package options contains flags and options for initializing the legal RAG server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	legalrag "github.com/kart-io/legal-rag/internal/legalrag"
	"github.com/kart-io/legal-rag/pkg/infra/app"
	genericoptions "github.com/kart-io/legal-rag/pkg/options"
	cacheopts "github.com/kart-io/legal-rag/pkg/options/cache"
	indexopts "github.com/kart-io/legal-rag/pkg/options/index"
	llmopts "github.com/kart-io/legal-rag/pkg/options/llm"
	logopts "github.com/kart-io/legal-rag/pkg/options/logger"
	ragopts "github.com/kart-io/legal-rag/pkg/options/rag"
	httpopts "github.com/kart-io/legal-rag/pkg/options/server/http"
	tracingopts "github.com/kart-io/legal-rag/pkg/options/tracing"
)

var _ app.CliOptions = (*ServerOptions)(nil)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`

	// IndexOptions selects the chunk index backend.
	IndexOptions *indexopts.Options `json:"index" mapstructure:"index"`

	// CacheOptions contains result cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// LLMOptions contains embedding and chat provider configuration.
	LLMOptions *llmopts.Options `json:"llm" mapstructure:"llm"`

	// RAGOptions contains retrieval, ranking and synthesis tuning.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	tracingOpts := tracingopts.NewOptions()
	tracingOpts.ServiceName = legalrag.Name
	tracingOpts.ServiceVersion = app.GetVersion()

	return &ServerOptions{
		HTTPOptions:    httpopts.NewOptions(),
		LogOptions:     logopts.NewOptions(),
		TracingOptions: tracingOpts,
		IndexOptions:   indexopts.NewOptions(),
		CacheOptions:   cacheopts.NewOptions(),
		LLMOptions:     llmopts.NewOptions(),
		RAGOptions:     ragopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss app.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.IndexOptions.AddFlags(fss.FlagSet("index"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.LLMOptions.AddFlags(fss.FlagSet("llm"))
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	completers := []struct {
		name string
		opts genericoptions.Completer
	}{
		{"log", o.LogOptions},
		{"tracing", o.TracingOptions},
		{"index", o.IndexOptions},
		{"cache", o.CacheOptions},
		{"llm", o.LLMOptions},
		{"rag", o.RAGOptions},
	}
	for _, c := range completers {
		if err := c.opts.Complete(); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	errs = append(errs, o.IndexOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.LLMOptions.Validate()...)
	errs = append(errs, o.RAGOptions.Validate()...)

	return utilerrors.NewAggregate(errs)
}

// Config builds a legalrag.Config based on ServerOptions.
func (o *ServerOptions) Config() (*legalrag.Config, error) {
	return &legalrag.Config{
		HTTPOptions:    o.HTTPOptions,
		LogOptions:     o.LogOptions,
		TracingOptions: o.TracingOptions,
		IndexOptions:   o.IndexOptions,
		CacheOptions:   o.CacheOptions,
		LLMOptions:     o.LLMOptions,
		RAGOptions:     o.RAGOptions,
	}, nil
}
