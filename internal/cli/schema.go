package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/P-wig/cyphersql/internal/querysql"
	"github.com/P-wig/cyphersql/internal/schema"
	"github.com/P-wig/cyphersql/internal/store"
)

// ValidationResult holds schema validation results.
type ValidationResult struct {
	Valid         bool                     `json:"valid"`
	Fingerprint   string                   `json:"fingerprint,omitempty"`
	Labels        []string                 `json:"labels,omitempty"`
	Relationships []string                 `json:"relationships,omitempty"`
	Errors        []schema.ValidationError `json:"errors,omitempty"`
}

// DDLResult is the JSON payload of schema ddl.
type DDLResult struct {
	Dialect    querysql.Dialect `json:"dialect"`
	Statements []string         `json:"statements"`
}

// NewSchemaCommand creates the schema command group.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect schema descriptions",
		Long: `Validate a schema description or print the tables it maps onto.

The path defaults to the configured schema (--schema, schema in the config
file or CYPHERSQL_SCHEMA).`,
	}

	cmd.AddCommand(newSchemaValidateCommand(rootOpts))
	cmd.AddCommand(newSchemaDDLCommand(rootOpts))

	return cmd
}

func newSchemaValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a schema description",
		Long: `Check that a schema description is well formed and that its mapping from
labels and relationship types to tables is total and non-overlapping.

Exit codes:
  0 - Schema valid
  1 - Schema invalid
  2 - Command error (file not found, unreadable, etc.)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaValidate(rootOpts, args, cmd)
		},
	}
}

func newSchemaDDLCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ddl [path]",
		Short: "Print CREATE TABLE statements for a schema",
		Long: `Print the CREATE TABLE statements of every table, side table and edge
table the schema maps onto, in the configured dialect. exec --apply-schema
and the test harness create tables the same way.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaDDL(rootOpts, args, cmd)
		},
	}
}

// schemaPath applies a positional path over the configured schema.
func (s *session) schemaPath(args []string) {
	if len(args) == 1 {
		s.cfg.Schema = args[0]
	}
}

func runSchemaValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	s, err := opts.start(cmd)
	if err != nil {
		return err
	}
	s.schemaPath(args)

	holder, err := LoadSchema(s.cfg.Schema)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && (loadErr.Code == ErrCodeSchemaInvalid || loadErr.Code == ErrCodeSchemaDocument) {
			return outputValidationErrors(s.formatter, validationErrors(loadErr))
		}
		return outputLoadError(s.formatter, err)
	}

	desc := holder.Load()
	result := ValidationResult{
		Valid:       true,
		Fingerprint: desc.Fingerprint(),
		Labels:      desc.Labels(),
	}
	for _, r := range desc.Relationships {
		result.Relationships = append(result.Relationships, r.Type)
	}

	if s.formatter.Format == "json" {
		return s.formatter.Success(result)
	}

	w := s.formatter.Writer
	fmt.Fprintln(w, "✓ Schema valid")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Labels: %s\n", strings.Join(result.Labels, ", "))
	fmt.Fprintf(w, "Relationship types: %s\n", strings.Join(result.Relationships, ", "))
	fmt.Fprintf(w, "Fingerprint: %s\n", result.Fingerprint)
	return nil
}

// validationErrors flattens a load error into validation errors. A document
// error becomes a single entry carrying its CUE line.
func validationErrors(loadErr *LoadError) []schema.ValidationError {
	if len(loadErr.Problems) > 0 {
		return loadErr.Problems
	}
	ve := schema.ValidationError{
		Field:   "document",
		Message: loadErr.Message,
		Code:    loadErr.Code,
	}
	if loadErr.Pos.IsValid() {
		ve.Line = loadErr.Pos.Line()
	}
	return []schema.ValidationError{ve}
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []schema.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
			TraceID: formatter.TraceID,
		}
		if err := formatter.encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

func runSchemaDDL(opts *RootOptions, args []string, cmd *cobra.Command) error {
	s, err := opts.start(cmd)
	if err != nil {
		return err
	}
	s.schemaPath(args)

	holder, err := s.loadSchema()
	if err != nil {
		return err
	}
	dialect, err := querysql.ParseDialect(s.cfg.Dialect)
	if err != nil {
		return outputCommandError(s.formatter, ErrCodeConfig, err.Error(), nil)
	}

	stmts := store.DDL(holder.Load(), dialect)
	if s.formatter.Format == "json" {
		return s.formatter.Success(DDLResult{Dialect: dialect, Statements: stmts})
	}
	for _, stmt := range stmts {
		fmt.Fprintf(s.formatter.Writer, "%s;\n", stmt)
	}
	return nil
}
