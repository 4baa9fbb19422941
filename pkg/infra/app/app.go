// Package app bootstraps a command-line service: a cobra root command whose
// flags come from CliOptions, overlaid by a YAML config file and environment
// variables through a per-app viper instance.
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// App is a runnable command built from options and a run function.
type App struct {
	name        string
	shortDesc   string
	description string
	options     CliOptions
	runFunc     RunFunc
	viper       *viper.Viper
	cmd         *cobra.Command
}

// RunFunc starts the service once options are loaded and valid.
type RunFunc func() error

// Option configures an App.
type Option func(*App)

// WithName sets the command name. It also names the config file and the
// environment prefix, so "legal-rag" reads legal-rag.yaml and LEGAL_RAG_*.
func WithName(name string) Option {
	return func(a *App) { a.name = name }
}

// WithShortDescription sets the one-line help text.
func WithShortDescription(desc string) Option {
	return func(a *App) { a.shortDesc = desc }
}

// WithDescription sets the long help text.
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithOptions sets the options that receive flags and config.
func WithOptions(opts CliOptions) Option {
	return func(a *App) { a.options = opts }
}

// WithRunFunc sets the function invoked after options are validated.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// NewApp builds the root command.
func NewApp(opts ...Option) *App {
	a := &App{
		name:  filepath.Base(os.Args[0]),
		viper: viper.New(),
	}
	for _, opt := range opts {
		opt(a)
	}

	cmd := &cobra.Command{
		Use:          a.name,
		Short:        a.shortDesc,
		Long:         a.description,
		RunE:         a.runCommand,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	cmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	version.AddFlags(cmd.PersistentFlags())
	cmd.PersistentFlags().BoolP("help", "h", false, "Help for "+a.name)

	if a.options != nil {
		fss := a.options.Flags()
		for _, name := range fss.Order {
			cmd.Flags().AddFlagSet(fss.FlagSets[name])
		}
	}

	a.cmd = cmd
	return a
}

func (a *App) runCommand(cmd *cobra.Command, _ []string) error {
	version.PrintAndExitIfRequested()

	if err := a.loadConfig(cmd); err != nil {
		return err
	}
	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}
	if a.runFunc == nil {
		return nil
	}
	return a.runFunc()
}

// loadConfig loads configuration from file, environment, and flags.
// Precedence: changed flags > environment > config file > flag defaults.
func (a *App) loadConfig(cmd *cobra.Command) error {
	v := a.viper
	configFile, _ := cmd.Flags().GetString("config")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(a.name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), "."+a.name))
		v.AddConfigPath("/etc/" + a.name)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	expandEnvVars(v)

	v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(a.name, "-", "_")))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if a.options == nil {
		return nil
	}

	// Register every option key so environment variables apply without a config file.
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "help" {
			return
		}
		// Composite values do not round-trip through their string form.
		if t := f.Value.Type(); strings.HasSuffix(t, "Slice") || t == "stringToString" {
			return
		}
		if !v.IsSet(f.Name) {
			v.SetDefault(f.Name, f.Value.String())
		}
	})

	changedFlags := make(map[string]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changedFlags[f.Name] = f.Value.String()
	})

	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for name, val := range changedFlags {
		if err := cmd.Flags().Set(name, val); err != nil {
			return fmt.Errorf("failed to re-apply flag %s: %w", name, err)
		}
	}

	return nil
}

var envRefRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars substitutes ${VAR} and $VAR in string config values. Unset
// variables are left as written.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		raw, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		expanded := envRefRegex.ReplaceAllStringFunc(raw, func(ref string) string {
			name := strings.TrimPrefix(strings.TrimSuffix(strings.TrimPrefix(ref, "${"), "}"), "$")
			if val := os.Getenv(name); val != "" {
				return val
			}
			return ref
		})
		if expanded != raw {
			v.Set(key, expanded)
		}
	}
}

// Run executes the command and exits non-zero on error.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command returns the root command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}
