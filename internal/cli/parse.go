package cli

import (
	"github.com/spf13/cobra"

	"github.com/P-wig/cyphersql/internal/cypher"
)

// ParseResult is the JSON payload of the parse command.
type ParseResult struct {
	Canonical string `json:"canonical"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <query>",
		Short: "Parse a query and print its canonical form",
		Long: `Parse one Cypher statement without a schema and print it in canonical
form: keywords upper-cased, redundant parentheses dropped, literals and
names normalized. Parsing the output again yields the same statement.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runParse(opts *RootOptions, query string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	stmt, err := cypher.Parse(query)
	if err != nil {
		return outputTranslationError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ParseResult{Canonical: stmt.String()})
	}
	return formatter.Success(stmt.String())
}
