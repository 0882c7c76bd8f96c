package transform

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/queryir"
	"github.com/P-wig/cyphersql/internal/querysql"
	"github.com/P-wig/cyphersql/internal/schema"
	"github.com/P-wig/cyphersql/internal/testutil"
)

func TestTranslate(t *testing.T) {
	out, err := Translate("MATCH (n:Person) WHERE n.age > $min RETURN n.name", testutil.SocialSchema(t), Options{})
	require.NoError(t, err)

	assert.Equal(t, `SELECT "n0"."name" AS "name" FROM "person" AS "n0" WHERE "n0"."age" > ?`, out.SQL)
	assert.Equal(t, querysql.SQLite, out.Dialect)
	assert.Equal(t, queryir.KindSelect, out.Kind)
	assert.Equal(t, []string{"min"}, out.ParamNames())
}

func TestTranslate_Postgres(t *testing.T) {
	out, err := Translate("MATCH (n:Person) WHERE n.name = $a OR n.name = $a RETURN n.age",
		testutil.SocialSchema(t), Options{Dialect: querysql.Postgres})
	require.NoError(t, err)

	assert.Equal(t, `SELECT "n0"."age" AS "age" FROM "person" AS "n0" WHERE "n0"."name" = $1 OR "n0"."name" = $1`, out.SQL)
	assert.Len(t, out.Params, 1)
}

func TestTranslate_ErrorCategories(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		category diag.Category
		stage    diag.Stage
	}{
		{"lex", "MATCH (n) RETURN #", diag.CategoryLex, diag.StageLex},
		{"parse", "MATCH (n RETURN n", diag.CategoryParse, diag.StageParse},
		{"unsupported", "MATCH (n:Person:City) RETURN n", diag.CategoryUnsupported, diag.StageBind},
		{"semantic", "MATCH (n:Robot) RETURN n", diag.CategorySemantic, diag.StageBind},
		{"plan", "MATCH (a:Person), (b:City) RETURN a.name, b.name", diag.CategoryPlan, diag.StagePlan},
	}

	desc := testutil.SocialSchema(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Translate(tt.query, desc, Options{})
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, diag.IsCategory(err, tt.category), "got %v", err)

			de, ok := diag.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.stage, de.Stage)
		})
	}
}

func TestTranslate_MaxDepth(t *testing.T) {
	desc := testutil.SocialSchema(t)
	query := "MATCH (a:Person)-[:KNOWS*]->(b:Person) RETURN b.name"

	_, err := Translate(query, desc, Options{})
	assert.True(t, diag.IsKind(err, diag.KindUnboundedRecursionRejected))

	out, err := Translate(query, desc, Options{MaxDepth: 4})
	require.NoError(t, err)
	assert.Contains(t, out.SQL, "WITH RECURSIVE")
}

func TestTranslate_NoSchema(t *testing.T) {
	_, err := Translate("MATCH (n) RETURN n", nil, Options{})
	require.Error(t, err)
	de, ok := diag.As(err)
	require.True(t, ok, "want *diag.Error, got %T: %v", err, err)
	assert.Equal(t, diag.CategorySemantic, de.Category)
	assert.Equal(t, diag.StageBind, de.Stage)
	assert.Equal(t, diag.KindNoSchema, de.Kind)

	_, err = Explain("MATCH (n) RETURN n", nil, Options{})
	assert.True(t, diag.IsKind(err, diag.KindNoSchema))
}

func TestExplain(t *testing.T) {
	plan, err := Explain("MATCH (n:Person) RETURN n.name", testutil.SocialSchema(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, queryir.KindSelect, plan.Kind)
	assert.Equal(t, "person", plan.From.Table)
}

func newTransformer(t *testing.T, opts ...Option) (*Transformer, *schema.Holder) {
	t.Helper()
	holder := schema.NewHolder(testutil.SocialSchema(t))
	tr, err := New(holder, opts...)
	require.NoError(t, err)
	return tr, holder
}

func TestTransformer_Defaults(t *testing.T) {
	tr, _ := newTransformer(t)
	assert.Equal(t, Options{Dialect: querysql.SQLite}, tr.Options())

	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(schema.NewHolder(testutil.SocialSchema(t)), WithCacheSize(-1))
	assert.Error(t, err)
}

func TestTransformer_NoSchema(t *testing.T) {
	tr, err := New(schema.NewHolder(nil))
	require.NoError(t, err)

	_, err = tr.Transform("MATCH (n:Person) RETURN n.name")
	require.Error(t, err)
	assert.True(t, diag.IsKind(err, diag.KindNoSchema))
	assert.Equal(t, 0, tr.CacheLen())
}

func TestTransformer_CacheReturnsCopies(t *testing.T) {
	tr, _ := newTransformer(t)
	query := "MATCH (n:Person {name: 'Ann'}) RETURN n.age"

	first, err := tr.Transform(query)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.CacheLen())

	first.Params[0].Value = "mutated"
	first.SQL = "garbage"

	second, err := tr.Transform(query)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, "Ann", second.Params[0].Value)
	assert.Contains(t, second.SQL, "SELECT")
	assert.Equal(t, 1, tr.CacheLen())
}

func TestTransformer_ErrorsAreNotCached(t *testing.T) {
	tr, _ := newTransformer(t)

	_, err := tr.Transform("MATCH (n:Robot) RETURN n")
	require.Error(t, err)
	assert.Equal(t, 0, tr.CacheLen())
}

func TestTransformer_CacheDisabled(t *testing.T) {
	tr, _ := newTransformer(t, WithCacheSize(0))

	_, err := tr.Transform("MATCH (n:Person) RETURN n.name")
	require.NoError(t, err)
	assert.Equal(t, 0, tr.CacheLen())
}

func TestTransformer_Purge(t *testing.T) {
	tr, _ := newTransformer(t)
	_, err := tr.Transform("MATCH (n:Person) RETURN n.name")
	require.NoError(t, err)

	tr.Purge()
	assert.Equal(t, 0, tr.CacheLen())
}

func TestTransformer_SchemaSwap(t *testing.T) {
	tr, holder := newTransformer(t)
	query := "MATCH (n:Person) RETURN n.name"

	before, err := tr.Transform(query)
	require.NoError(t, err)
	assert.Contains(t, before.SQL, `FROM "person"`)

	renamed, err := schema.CompileString("social.cue",
		strings.ReplaceAll(testutil.SocialSchemaSource, `table: "person"`, `table: "people"`))
	require.NoError(t, err)
	holder.Swap(renamed)

	after, err := tr.Transform(query)
	require.NoError(t, err)
	assert.Contains(t, after.SQL, `FROM "people"`)
	assert.Equal(t, 2, tr.CacheLen())
}

func TestTransformer_OptionsChangeOutput(t *testing.T) {
	tr, _ := newTransformer(t, WithDialect(querysql.Postgres), WithMaxDepth(3))
	assert.Equal(t, Options{Dialect: querysql.Postgres, MaxDepth: 3}, tr.Options())

	out, err := tr.Transform("MATCH (a:Person)-[:KNOWS*]->(b:Person) WHERE a.name = $n RETURN b.name")
	require.NoError(t, err)
	assert.Equal(t, querysql.Postgres, out.Dialect)
	assert.Contains(t, out.SQL, "$1")
}

func TestTransformer_Concurrent(t *testing.T) {
	tr, _ := newTransformer(t, WithCacheSize(4))
	queries := []string{
		"MATCH (n:Person) RETURN n.name",
		"MATCH (c:City) RETURN c.name",
		"MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN b.name",
		"MATCH (a:Person)-[:LIVES_IN]->(c:City) RETURN c.name, count(*)",
		"MATCH (o:Company) RETURN o.name",
		"MATCH (n:Robot) RETURN n",
	}

	want := make([]string, len(queries))
	for i, q := range queries {
		out, err := Translate(q, tr.Schema(), tr.Options())
		if err == nil {
			want[i] = out.SQL
		}
	}

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				idx := (g + i) % len(queries)
				out, err := tr.Transform(queries[idx])
				if want[idx] == "" {
					assert.Error(t, err)
					continue
				}
				if assert.NoError(t, err) {
					assert.Equal(t, want[idx], out.SQL)
				}
			}
		}()
	}
	wg.Wait()
}

func TestTransformer_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tr, _ := newTransformer(t, WithLogger(logger))

	_, err := tr.Transform("MATCH (n:Person) RETURN n.name")
	require.NoError(t, err)
	_, err = tr.Transform("MATCH (n:Person) RETURN n.name")
	require.NoError(t, err)
	_, err = tr.Transform("MATCH (n:Robot) RETURN n")
	require.Error(t, err)

	logs := buf.String()
	assert.Contains(t, logs, "query translated")
	assert.Contains(t, logs, "cache_hit=false")
	assert.Contains(t, logs, "cache_hit=true")
	assert.Contains(t, logs, "translation failed")
	assert.Contains(t, logs, "category=SemanticError")
	assert.Contains(t, logs, "kind=UnknownLabel")
}
