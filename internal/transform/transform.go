package transform

import (
	"github.com/P-wig/cyphersql/internal/binder"
	"github.com/P-wig/cyphersql/internal/cypher"
	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/planner"
	"github.com/P-wig/cyphersql/internal/queryir"
	"github.com/P-wig/cyphersql/internal/querysql"
	"github.com/P-wig/cyphersql/internal/schema"
)

// Options of one translation.
type Options struct {
	// Dialect defaults to sqlite.
	Dialect querysql.Dialect
	// MaxDepth caps variable-length relationships without an upper bound.
	// Zero rejects them.
	MaxDepth int
}

func (o Options) dialect() querysql.Dialect {
	if o.Dialect == "" {
		return querysql.SQLite
	}
	return o.Dialect
}

// Translate translates query against desc. It is a pure function of its
// arguments.
func Translate(query string, desc *schema.Description, opts Options) (*querysql.Output, error) {
	plan, err := Explain(query, desc, opts)
	if err != nil {
		return nil, err
	}
	return querysql.New(opts.dialect()).Compile(plan)
}

func errNoSchema() *diag.Error {
	return diag.Semantic(diag.KindNoSchema, "", diag.Span{}, "no schema loaded")
}

// Explain runs the pipeline up to the relational plan.
func Explain(query string, desc *schema.Description, opts Options) (*queryir.Plan, error) {
	if desc == nil {
		return nil, errNoSchema()
	}
	stmt, err := cypher.Parse(query)
	if err != nil {
		return nil, err
	}
	q, err := binder.Bind(stmt, desc)
	if err != nil {
		return nil, err
	}
	return planner.Plan(q, planner.Options{MaxDepth: opts.MaxDepth})
}
