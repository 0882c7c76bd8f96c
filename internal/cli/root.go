package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/P-wig/cyphersql/internal/config"
	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/querysql"
	"github.com/P-wig/cyphersql/internal/schema"
	"github.com/P-wig/cyphersql/internal/transform"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Overrides applied over the loaded config when set. MaxDepth is unset
	// when negative.
	Schema   string
	Dialect  string
	MaxDepth int

	// IDs stamps responses with a trace id; nil uses UUIDv7Generator.
	IDs IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cyphersql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cyphersql",
		Short: "cyphersql - Cypher to SQL translator",
		Long: `Translate a subset of Cypher into parameterized SQL over a relational
schema described by a label-to-table mapping.

Settings come from cyphersql.toml (or --config), CYPHERSQL_* environment
variables and flags, in increasing precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				msg := fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", msg)
				return NewExitError(ExitCommandError, msg)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logs on stderr)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ./cyphersql.toml when present)")
	cmd.PersistentFlags().StringVarP(&opts.Schema, "schema", "s", "", "schema description (.cue, .json, .yaml)")
	cmd.PersistentFlags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect (sqlite|postgres)")
	cmd.PersistentFlags().IntVar(&opts.MaxDepth, "max-depth", -1, "cap for unbounded variable-length relationships (0 rejects them)")

	// Add subcommands
	cmd.AddCommand(NewTranslateCommand(opts))
	cmd.AddCommand(NewParseCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// formatter builds the output formatter for one invocation.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	ids := o.IDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
		TraceID:   ids.Generate(),
	}
}

// loadConfig reads the config file and environment, then applies flags.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.Schema != "" {
		cfg.Schema = o.Schema
	}
	if o.Dialect != "" {
		cfg.Dialect = o.Dialect
	}
	if o.MaxDepth >= 0 {
		cfg.MaxDepth = o.MaxDepth
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger installs the stderr handler the config selects.
func newLogger(cfg *config.Config, w io.Writer, traceID string) *slog.Logger {
	level, _ := config.ParseLevel(cfg.Log.Level)
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler).With("trace_id", traceID)
}

// session is what every translating command needs: config, logger and
// output formatter.
type session struct {
	cfg       *config.Config
	logger    *slog.Logger
	formatter *OutputFormatter
}

// start loads config and sets up output. Config errors are reported through
// the formatter and returned as command errors.
func (o *RootOptions) start(cmd *cobra.Command) (*session, error) {
	formatter := o.formatter(cmd)
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, outputCommandError(formatter, ErrCodeConfig, err.Error(), nil)
	}
	return &session{
		cfg:       cfg,
		logger:    newLogger(cfg, cmd.ErrOrStderr(), formatter.TraceID),
		formatter: formatter,
	}, nil
}

// loadSchema loads the configured schema, reporting failures.
func (s *session) loadSchema() (*schema.Holder, error) {
	holder, err := LoadSchema(s.cfg.Schema)
	if err != nil {
		return nil, outputLoadError(s.formatter, err)
	}
	s.formatter.VerboseLog("Loaded schema %s (%s)", s.cfg.Schema, holder.Load().Fingerprint())
	return holder, nil
}

// transformer builds a caching translator over holder. A non-empty dialect
// overrides the configured one.
func (s *session) transformer(holder *schema.Holder, dialect querysql.Dialect) (*transform.Transformer, error) {
	opts := append(s.cfg.TransformOptions(), transform.WithLogger(s.logger))
	if dialect != "" {
		opts = append(opts, transform.WithDialect(dialect))
	}
	t, err := transform.New(holder, opts...)
	if err != nil {
		return nil, outputCommandError(s.formatter, ErrCodeConfig, err.Error(), nil)
	}
	return t, nil
}

// outputCommandError reports a command-level error (exit code 2).
func outputCommandError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputLoadError reports a schema load failure, listing validation
// problems one by one.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	if len(loadErr.Problems) > 0 {
		_ = formatter.Error(loadErr.Code, loadErr.Message, loadErr.Problems)
		if formatter.Format != "json" && !formatter.Verbose {
			for _, p := range loadErr.Problems {
				fmt.Fprintf(formatter.Writer, "  %s\n", p.Error())
			}
		}
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message), nil)
	}
	message := loadErr.Message
	if loadErr.Pos.IsValid() {
		message = fmt.Sprintf("%s:%d:%d: %s", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column(), message)
	}
	return outputCommandError(formatter, loadErr.Code, message, nil)
}

// outputTranslationError reports a rejected query (exit code 1). The JSON
// details carry the structured diagnostic.
func outputTranslationError(formatter *OutputFormatter, err error) error {
	d, ok := diag.As(err)
	if !ok {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, ErrCodeGeneric, err)
	}
	code := MapDiagnosticToErrorCode(d)
	_ = formatter.Error(code, d.Error(), d)
	return WrapExitError(ExitFailure, code, d)
}
