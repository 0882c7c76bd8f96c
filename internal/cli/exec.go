package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/P-wig/cyphersql/internal/querysql"
	"github.com/P-wig/cyphersql/internal/store"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Params      []string // name=value query parameters
	Driver      string   // overrides database.driver
	DSN         string   // overrides database.dsn
	ApplySchema bool     // create the schema's tables first
}

// ExecResult is the JSON payload of the exec command.
type ExecResult struct {
	SQL          string            `json:"sql"`
	Columns      []querysql.Column `json:"columns,omitempty"`
	Rows         [][]any           `json:"rows,omitempty"`
	RowsAffected *int64            `json:"rows_affected,omitempty"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <query>",
		Short: "Translate a query and run it against a database",
		Long: `Translate one Cypher statement and run the SQL against the configured
database. The dialect follows the database driver: sqlite3 renders sqlite,
pgx renders postgres.

Reads print a table (bordered on a terminal, tab-separated otherwise);
writes print the number of affected rows.

Examples:
  cyphersql exec --dsn graph.db "MATCH (n:Person) RETURN n.name"
  cyphersql exec --db-driver pgx --dsn postgres://localhost/graph -p min=30 \
    "MATCH (n:Person) WHERE n.age > $min RETURN n"
  cyphersql exec --apply-schema "CREATE (n:Person {id: 1, name: 'ann'})"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "query parameter as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.Driver, "db-driver", "", "database driver (sqlite3|pgx)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "database DSN (sqlite file path or postgres URL)")
	cmd.Flags().BoolVar(&opts.ApplySchema, "apply-schema", false, "create missing tables for the schema before running")

	return cmd
}

func runExec(opts *ExecOptions, query string, cmd *cobra.Command) error {
	s, err := opts.start(cmd)
	if err != nil {
		return err
	}

	params, err := parseParams(opts.Params)
	if err != nil {
		return outputCommandError(s.formatter, ErrCodeBadParam, err.Error(), nil)
	}

	holder, err := s.loadSchema()
	if err != nil {
		return err
	}

	driver, dsn := s.cfg.Database.Driver, s.cfg.Database.DSN
	if opts.Driver != "" {
		driver = opts.Driver
	}
	if opts.DSN != "" {
		dsn = opts.DSN
	}
	st, err := store.Open(driver, dsn)
	if err != nil {
		return outputCommandError(s.formatter, ErrCodeDatabase, err.Error(), nil)
	}
	defer st.Close()
	s.formatter.VerboseLog("Opened %s database (%s dialect)", driver, st.Dialect())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.ApplySchema {
		if err := st.ApplySchema(ctx, holder.Load()); err != nil {
			return outputCommandError(s.formatter, ErrCodeDatabase, err.Error(), nil)
		}
	}

	t, err := s.transformer(holder, st.Dialect())
	if err != nil {
		return err
	}
	out, err := t.Transform(query)
	if err != nil {
		return outputTranslationError(s.formatter, err)
	}
	s.formatter.VerboseLog("SQL: %s", out.SQL)

	res, err := st.Run(ctx, out, params)
	if err != nil {
		_ = s.formatter.Error(ErrCodeExecFailed, err.Error(), map[string]string{"sql": out.SQL})
		return WrapExitError(ExitFailure, ErrCodeExecFailed, err)
	}
	s.logger.Info("statement executed", "kind", out.Kind, "sql", out.SQL)

	if s.formatter.Format == "json" {
		result := ExecResult{SQL: out.SQL, Columns: out.Columns}
		if res.Table != nil {
			result.Rows = res.Table.Rows
		} else {
			result.RowsAffected = &res.RowsAffected
		}
		return s.formatter.Success(result)
	}

	if res.Table != nil {
		writeTable(s.formatter.Writer, res.Table)
		return nil
	}
	fmt.Fprintf(s.formatter.Writer, "✓ %s: %d row(s) affected\n", out.Kind, res.RowsAffected)
	return nil
}
