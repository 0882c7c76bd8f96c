package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/P-wig/cyphersql/internal/querysql"
)

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate <query>",
		Short: "Translate a Cypher query to parameterized SQL",
		Long: `Translate one Cypher statement into a single parameterized SQL statement
for the configured dialect.

Output lists the SQL, its bind parameters in placeholder order ($name for
query parameters, literal values otherwise) and the result columns.

Exit codes:
  0 - Query translated
  1 - Query rejected (parse, schema, semantic, plan or codegen error)
  2 - Command error (no schema, bad config, etc.)

Examples:
  cyphersql translate --schema social.cue "MATCH (n:Person) RETURN n.name"
  cyphersql translate --dialect postgres --format json "MATCH (n:Person) WHERE n.age > $min RETURN n"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runTranslate(opts *RootOptions, query string, cmd *cobra.Command) error {
	s, err := opts.start(cmd)
	if err != nil {
		return err
	}
	holder, err := s.loadSchema()
	if err != nil {
		return err
	}
	t, err := s.transformer(holder, "")
	if err != nil {
		return err
	}

	out, err := t.Transform(query)
	if err != nil {
		return outputTranslationError(s.formatter, err)
	}

	if s.formatter.Format == "json" {
		return s.formatter.Success(out)
	}
	writeTranslation(s.formatter.Writer, out)
	return nil
}

// writeTranslation prints a translation for humans.
func writeTranslation(w io.Writer, out *querysql.Output) {
	fmt.Fprintln(w, out.SQL)

	if len(out.Params) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Params:")
		for i, p := range out.Params {
			switch {
			case p.Name != "" && p.List:
				fmt.Fprintf(w, "  %d: $%s (list)\n", i+1, p.Name)
			case p.Name != "":
				fmt.Fprintf(w, "  %d: $%s\n", i+1, p.Name)
			default:
				fmt.Fprintf(w, "  %d: %#v\n", i+1, p.Value)
			}
		}
	}

	if len(out.Columns) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Columns:")
		for _, c := range out.Columns {
			fmt.Fprintf(w, "  %s %s\n", c.Name, c.Type)
		}
	}
}
