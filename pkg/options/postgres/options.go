// Package postgres provides PostgreSQL connection options for the pgx pool.
package postgres

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/legal-rag/pkg/options"
)

// PasswordEnv is read when no password is configured.
const PasswordEnv = "LEGAL_RAG_POSTGRES_PASSWORD"

var _ options.IOptions = (*Options)(nil)

// Options defines options for the PostgreSQL connection pool.
type Options struct {
	Host            string        `json:"host" mapstructure:"host"`
	Port            int           `json:"port" mapstructure:"port"`
	Username        string        `json:"username" mapstructure:"username"`
	Password        string        `json:"-" mapstructure:"password"`
	Database        string        `json:"database" mapstructure:"database"`
	SSLMode         string        `json:"ssl-mode" mapstructure:"ssl-mode"`
	MaxConns        int           `json:"max-conns" mapstructure:"max-conns"`
	MinConns        int           `json:"min-conns" mapstructure:"min-conns"`
	MaxConnLifetime time.Duration `json:"max-conn-lifetime" mapstructure:"max-conn-lifetime"`
}

// NewOptions creates an Options object with default parameters.
func NewOptions() *Options {
	return &Options{
		Host:            "127.0.0.1",
		Port:            5432,
		Username:        "postgres",
		Database:        "legal_rag",
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
	}
}

// DSN returns a postgres:// connection URL including pool settings.
func (o *Options) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(o.Username, o.Password),
		Host:   fmt.Sprintf("%s:%d", o.Host, o.Port),
		Path:   "/" + o.Database,
	}
	q := url.Values{}
	q.Set("sslmode", o.SSLMode)
	if o.MaxConns > 0 {
		q.Set("pool_max_conns", strconv.Itoa(o.MaxConns))
	}
	if o.MinConns > 0 {
		q.Set("pool_min_conns", strconv.Itoa(o.MinConns))
	}
	if o.MaxConnLifetime > 0 {
		q.Set("pool_max_conn_lifetime", o.MaxConnLifetime.String())
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Complete reads the password from the environment when unset.
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv(PasswordEnv)
	}
	return nil
}

// Validate verifies flags passed to Options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Host == "" {
		errs = append(errs, fmt.Errorf("postgres.host is required"))
	}
	if o.Database == "" {
		errs = append(errs, fmt.Errorf("postgres.database is required"))
	}
	if o.MinConns > o.MaxConns {
		errs = append(errs, fmt.Errorf("postgres.min-conns (%d) exceeds postgres.max-conns (%d)", o.MinConns, o.MaxConns))
	}
	return errs
}

// AddFlags adds flags related to PostgreSQL to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "postgres."
	fs.StringVar(&o.Host, p+"host", o.Host, "PostgreSQL host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "PostgreSQL port.")
	fs.StringVar(&o.Username, p+"username", o.Username, "PostgreSQL username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "PostgreSQL password. Prefer the "+PasswordEnv+" environment variable.")
	fs.StringVar(&o.Database, p+"database", o.Database, "PostgreSQL database.")
	fs.StringVar(&o.SSLMode, p+"ssl-mode", o.SSLMode, "PostgreSQL SSL mode.")
	fs.IntVar(&o.MaxConns, p+"max-conns", o.MaxConns, "Maximum pool connections.")
	fs.IntVar(&o.MinConns, p+"min-conns", o.MinConns, "Minimum pool connections.")
	fs.DurationVar(&o.MaxConnLifetime, p+"max-conn-lifetime", o.MaxConnLifetime, "Maximum connection lifetime.")
}
