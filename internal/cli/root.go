package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/izubarev/openl-tablets-sub004/internal/compiler"
	"github.com/izubarev/openl-tablets-sub004/internal/config"
	"github.com/izubarev/openl-tablets-sub004/internal/engine"
	"github.com/izubarev/openl-tablets-sub004/internal/logging"
)

// RootOptions holds global flags for all commands, plus the configuration
// and logger resolved from them before a command runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	Config config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tablets CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Config: config.Defaults()}

	cmd := &cobra.Command{
		Use:   "tablets",
		Short: "Tablets - table-driven business rules",
		Long: `Compile and execute business rules authored as decision tables,
spreadsheets and expressions, with overload dispatch by argument types
and applicability properties.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.setup(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewSheetCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))

	return cmd
}

// setup loads the config file and TABLETS_* environment, then installs the
// logger. --verbose forces debug logging.
func (o *RootOptions) setup(w io.Writer) error {
	cfg, err := config.Load(o.ConfigPath, config.DefaultPrefix)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Verbose {
		cfg.Log.Level = "DEBUG"
	}

	logger, err := logging.Install(w, logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	o.Config = cfg
	o.Logger = logger
	return nil
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) linkOptions() []compiler.LinkOption {
	return []compiler.LinkOption{
		compiler.WithLogger(o.logger()),
		compiler.WithMaxSteps(o.Config.Engine.MaxSteps),
	}
}

// newEngine builds an engine tuned by the engine config section.
func (o *RootOptions) newEngine(p *compiler.Project, extra ...engine.Option) (*engine.Engine, error) {
	opts := []engine.Option{
		engine.WithLogger(o.logger()),
		engine.WithMaxSteps(o.Config.Engine.MaxSteps),
		engine.WithCacheSize(o.Config.Engine.CacheSize),
		engine.WithWorkers(o.Config.Engine.Workers),
	}
	return engine.New(p, append(opts, extra...)...)
}
