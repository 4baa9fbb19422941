// Package index provides chunk index backend options.
package index

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/legal-rag/pkg/options"
	milvusopts "github.com/kart-io/legal-rag/pkg/options/milvus"
	pgopts "github.com/kart-io/legal-rag/pkg/options/postgres"
)

var _ options.IOptions = (*Options)(nil)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMilvus   = "milvus"
)

// Options selects and configures the chunk index.
type Options struct {
	// Backend is memory, postgres or milvus.
	Backend string `json:"backend" mapstructure:"backend"`

	// CorpusFile is a JSON chunk corpus loaded by the memory backend.
	CorpusFile string `json:"corpus-file" mapstructure:"corpus-file"`

	// WatchCorpus reloads CorpusFile whenever it changes on disk.
	WatchCorpus bool `json:"watch-corpus" mapstructure:"watch-corpus"`

	// Table is the chunk table of the postgres backend.
	Table string `json:"table" mapstructure:"table"`

	Postgres *pgopts.Options     `json:"postgres" mapstructure:"postgres"`
	Milvus   *milvusopts.Options `json:"milvus" mapstructure:"milvus"`
}

// NewOptions defaults to the in-memory backend.
func NewOptions() *Options {
	return &Options{
		Backend:  BackendMemory,
		Table:    "legal_chunks",
		Postgres: pgopts.NewOptions(),
		Milvus:   milvusopts.NewOptions(),
	}
}

// AddFlags adds flags for index options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "index."
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Chunk index backend (memory|postgres|milvus).")
	fs.StringVar(&o.CorpusFile, p+"corpus-file", o.CorpusFile, "JSON chunk corpus for the memory backend.")
	fs.BoolVar(&o.WatchCorpus, p+"watch-corpus", o.WatchCorpus, "Reload the corpus file when it changes.")
	fs.StringVar(&o.Table, p+"table", o.Table, "Chunk table of the postgres backend.")
	o.Postgres.AddFlags(fs, append(prefixes, "index")...)
	o.Milvus.AddFlags(fs, append(prefixes, "index")...)
}

// Complete fills nested defaults.
func (o *Options) Complete() error {
	if o.Backend == "" {
		o.Backend = BackendMemory
	}
	if o.Postgres == nil {
		o.Postgres = pgopts.NewOptions()
	}
	if o.Milvus == nil {
		o.Milvus = milvusopts.NewOptions()
	}
	return o.Postgres.Complete()
}

// Validate validates only the selected backend.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	switch o.Backend {
	case BackendMemory:
		if o.WatchCorpus && o.CorpusFile == "" {
			errs = append(errs, fmt.Errorf("index.watch-corpus requires index.corpus-file"))
		}
	case BackendPostgres:
		if o.Table == "" {
			errs = append(errs, fmt.Errorf("index.table is required for the postgres backend"))
		}
		errs = append(errs, o.Postgres.Validate()...)
	case BackendMilvus:
		errs = append(errs, o.Milvus.Validate()...)
	default:
		errs = append(errs, fmt.Errorf("index.backend %q is not one of memory, postgres, milvus", o.Backend))
	}
	return errs
}
