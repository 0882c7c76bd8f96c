package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/P-wig/cyphersql/internal/queryir"
	"github.com/P-wig/cyphersql/internal/querysql"
	"github.com/P-wig/cyphersql/internal/transform"
)

// ExplainResult holds the relational plan of a query and the SQL it
// renders to.
type ExplainResult struct {
	Plan *queryir.Plan `json:"plan"`
	SQL  string        `json:"sql"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <query>",
		Short: "Show the relational plan of a query",
		Long: `Run the pipeline up to the relational plan and print the plan as JSON,
followed by the SQL it renders to. Useful to see how labels, hops and
optional matches map onto tables, joins and CTEs.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runExplain(opts *RootOptions, query string, cmd *cobra.Command) error {
	s, err := opts.start(cmd)
	if err != nil {
		return err
	}
	holder, err := s.loadSchema()
	if err != nil {
		return err
	}

	dialect, err := querysql.ParseDialect(s.cfg.Dialect)
	if err != nil {
		return outputCommandError(s.formatter, ErrCodeConfig, err.Error(), nil)
	}
	plan, err := transform.Explain(query, holder.Load(), transform.Options{
		Dialect:  dialect,
		MaxDepth: s.cfg.MaxDepth,
	})
	if err != nil {
		return outputTranslationError(s.formatter, err)
	}
	out, err := querysql.New(dialect).Compile(plan)
	if err != nil {
		return outputTranslationError(s.formatter, err)
	}
	s.logger.Debug("query explained", "kind", plan.Kind, "ctes", len(plan.CTEs), "joins", len(plan.Joins))

	result := ExplainResult{Plan: plan, SQL: out.SQL}
	if s.formatter.Format == "json" {
		return s.formatter.Success(result)
	}

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return outputCommandError(s.formatter, ErrCodeGeneric, fmt.Sprintf("encode plan: %v", err), nil)
	}
	w := s.formatter.Writer
	fmt.Fprintln(w, "Plan:")
	fmt.Fprintln(w, string(data))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "SQL:")
	fmt.Fprintln(w, out.SQL)
	return nil
}
