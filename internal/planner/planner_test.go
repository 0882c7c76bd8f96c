package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P-wig/cyphersql/internal/binder"
	"github.com/P-wig/cyphersql/internal/cypher"
	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/ir"
	"github.com/P-wig/cyphersql/internal/queryir"
	"github.com/P-wig/cyphersql/internal/schema"
	"github.com/P-wig/cyphersql/internal/testutil"
)

func planQuery(t *testing.T, query string, opts Options) (*queryir.Plan, error) {
	t.Helper()
	stmt, err := cypher.Parse(query)
	require.NoError(t, err)
	q, err := binder.Bind(stmt, testutil.SocialSchema(t))
	require.NoError(t, err)
	return Plan(q, opts)
}

func mustPlan(t *testing.T, query string) *queryir.Plan {
	t.Helper()
	p, err := planQuery(t, query, Options{})
	require.NoError(t, err)
	return p
}

func planErr(t *testing.T, query string, opts Options) *diag.Error {
	t.Helper()
	_, err := planQuery(t, query, opts)
	require.Error(t, err)
	de, ok := diag.As(err)
	require.True(t, ok, "want *diag.Error, got %T: %v", err, err)
	return de
}

func names(p *queryir.Plan) []string {
	out := make([]string, len(p.Projections))
	for i, proj := range p.Projections {
		out[i] = proj.Name
	}
	return out
}

func TestPlanSingleLabel(t *testing.T) {
	p := mustPlan(t, "MATCH (n:Person) RETURN n.name")

	assert.Equal(t, queryir.KindSelect, p.Kind)
	assert.Equal(t, &queryir.TableBinding{Alias: "n0", Table: "person", Var: "n"}, p.From)
	assert.Empty(t, p.Joins)
	assert.Nil(t, p.Filter)
	require.Len(t, p.Projections, 1)
	assert.Equal(t, "name", p.Projections[0].Name)
	assert.Equal(t, queryir.Col("n0", "name"), p.Projections[0].Expr)
	assert.Equal(t, queryir.TypeString, p.Projections[0].Type)
}

func TestPlanRelationship(t *testing.T) {
	p := mustPlan(t, "MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN a.name, b.name")

	assert.Equal(t, "n0", p.From.Alias)
	require.Len(t, p.Joins, 2)

	edge := p.Joins[0]
	assert.Equal(t, queryir.JoinInner, edge.Kind)
	assert.Equal(t, "knows", edge.Binding.Table)
	assert.Equal(t, "e0", edge.Binding.Alias)
	assert.Equal(t, "KNOWS", edge.Relationship)
	assert.Equal(t, "out", edge.Direction)
	assert.Equal(t, queryir.Eq(queryir.Col("e0", "src"), queryir.Col("n0", "id")), edge.On)

	end := p.Joins[1]
	assert.Equal(t, &queryir.TableBinding{Alias: "n1", Table: "person", Var: "b"}, end.Binding)
	assert.Equal(t, queryir.Eq(queryir.Col("n1", "id"), queryir.Col("e0", "dst")), end.On)
	assert.Equal(t, []string{"name", "name"}, names(p))
}

func TestPlanIncomingAndReversed(t *testing.T) {
	p := mustPlan(t, "MATCH (c:City)<-[:LIVES_IN]-(p:Person) RETURN c.name")
	assert.Equal(t, queryir.Eq(queryir.Col("e0", "city_id"), queryir.Col("n0", "id")), p.Joins[0].On)
	assert.Equal(t, "in", p.Joins[0].Direction)

	// MANAGES rows point from manager_id to report_id.
	p = mustPlan(t, "MATCH (m:Person)-[:MANAGES]->(r:Person) RETURN r.name")
	assert.Equal(t, queryir.Eq(queryir.Col("e0", "manager_id"), queryir.Col("n0", "id")), p.Joins[0].On)
	assert.Equal(t, queryir.Eq(queryir.Col("n1", "id"), queryir.Col("e0", "report_id")), p.Joins[1].On)
}

func TestPlanDiscriminatedLabel(t *testing.T) {
	p := mustPlan(t, "MATCH (c:Company) RETURN c.name")
	assert.Equal(t, "org", p.From.Table)
	assert.Equal(t, queryir.Eq(queryir.Col("n0", "kind"), &queryir.Literal{Value: ir.String("company")}), p.Filter)
}

func TestPlanNodeProjection(t *testing.T) {
	p := mustPlan(t, "MATCH (n:Person) RETURN n")

	assert.Equal(t, []string{"n.id", "n.name", "n.age", "n.email"}, names(p))
	assert.Equal(t, queryir.Col("n0", "id"), p.Projections[0].Expr)
	assert.Equal(t, queryir.TypeInt, p.Projections[0].Type)
	assert.Equal(t, queryir.Col("s0", "email"), p.Projections[3].Expr)

	require.Len(t, p.Joins, 1)
	side := p.Joins[0]
	assert.Equal(t, queryir.JoinLeft, side.Kind)
	assert.Equal(t, "person_email", side.Binding.Table)
	assert.Equal(t, queryir.Eq(queryir.Col("s0", "person_id"), queryir.Col("n0", "id")), side.On)
}

func TestPlanRelationshipProjection(t *testing.T) {
	p := mustPlan(t, "MATCH (a:Person)-[r:KNOWS]->(b:Person) RETURN r")
	assert.Equal(t, []string{"r.id", "r.src", "r.dst", "r.since"}, names(p))
	assert.Equal(t, queryir.Col("e0", "src"), p.Projections[1].Expr)
	for _, proj := range p.Projections {
		assert.Equal(t, queryir.TypeInt, proj.Type, proj.Name)
	}
}

func TestPlanRelationshipEndpointTypes(t *testing.T) {
	desc, err := schema.CompileString("tags.cue", `
nodes: {
	Post: {table: "post", properties: id: type: "int"}
	Tag: {table: "tag", key: "tag_id", properties: tag_id: type: "string"}
}
relationships: TAGGED: {
	table: "tagged"
	key:   "id"
	start: {column: "post_id", label: "Post"}
	end: {column: "tag_id", label: "Tag"}
}`)
	require.NoError(t, err)
	stmt, err := cypher.Parse("MATCH (p:Post)-[r:TAGGED]->(t:Tag) RETURN r")
	require.NoError(t, err)
	q, err := binder.Bind(stmt, desc)
	require.NoError(t, err)
	p, err := Plan(q, Options{})
	require.NoError(t, err)

	require.Len(t, p.Projections, 3)
	assert.Equal(t, []string{"r.id", "r.post_id", "r.tag_id"}, names(p))
	assert.Equal(t, queryir.TypeInt, p.Projections[0].Type)
	assert.Equal(t, queryir.TypeInt, p.Projections[1].Type)
	assert.Equal(t, queryir.TypeString, p.Projections[2].Type)
}

func TestPlanVariableLength(t *testing.T) {
	p := mustPlan(t, "MATCH (a:Person)-[:KNOWS*1..3]->(b:Person) RETURN b.name")

	require.Len(t, p.CTEs, 1)
	cte := p.CTEs[0]
	assert.Equal(t, "r0", cte.Name)
	assert.Equal(t, []string{"start_key", "end_key", "depth"}, cte.Columns)
	require.NotNil(t, cte.Recursive)
	assert.Equal(t, 1, cte.Recursive.MinHops)
	assert.Equal(t, 3, cte.Recursive.MaxHops)
	assert.Equal(t, "knows", cte.Recursive.Base.From.Table)
	assert.Equal(t, "r0", cte.Recursive.Step.From.Table)
	assert.Equal(t,
		&queryir.Binary{Op: "<", Left: queryir.Col("r1", "depth"), Right: &queryir.Number{Value: 3}},
		cte.Recursive.Step.Filter)

	require.Len(t, p.Joins, 2)
	walk := p.Joins[0]
	assert.Equal(t, &queryir.TableBinding{Alias: "r2", Table: "r0", CTE: true}, walk.Binding)
	assert.Equal(t, &queryir.HopRange{Min: 1, Max: 3}, walk.Hops)
	assert.Equal(t, queryir.Eq(queryir.Col("r2", "start_key"), queryir.Col("n0", "id")), walk.On)
	assert.Equal(t, queryir.Eq(queryir.Col("n1", "id"), queryir.Col("r2", "end_key")), p.Joins[1].On)
}

func TestPlanVariableLengthLowerBound(t *testing.T) {
	p := mustPlan(t, "MATCH (a:Person)-[:KNOWS*2..4]->(b:Person) RETURN b.name")
	assert.Equal(t,
		queryir.And(
			queryir.Eq(queryir.Col("r2", "start_key"), queryir.Col("n0", "id")),
			&queryir.Binary{Op: ">=", Left: queryir.Col("r2", "depth"), Right: &queryir.Number{Value: 2}},
		),
		p.Joins[0].On)

	p = mustPlan(t, "MATCH (a:Person)-[:KNOWS*0..2]->(b:Person) RETURN b.name")
	base := p.CTEs[0].Recursive.Base
	assert.Equal(t, "person", base.From.Table)
	assert.Equal(t, &queryir.Number{Value: 0}, base.Projections[2].Expr)
}

func TestPlanUnboundedRecursion(t *testing.T) {
	const q = "MATCH (a:Person)-[:KNOWS*]->(b:Person) RETURN b.name"

	de := planErr(t, q, Options{})
	assert.Equal(t, diag.KindUnboundedRecursionRejected, de.Kind)
	assert.Equal(t, diag.CategoryPlan, de.Category)

	p, err := planQuery(t, q, Options{MaxDepth: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, p.CTEs[0].Recursive.MaxHops)

	de = planErr(t, "MATCH (a:Person)-[:KNOWS*7..]->(b:Person) RETURN b.name", Options{MaxDepth: 5})
	assert.Equal(t, diag.KindUnboundedRecursionRejected, de.Kind)
}

func TestPlanEdgeUnion(t *testing.T) {
	p := mustPlan(t, "MATCH (a:Person)-[:KNOWS|FRIEND]->(b:Person) RETURN b.name")

	require.Len(t, p.CTEs, 1)
	cte := p.CTEs[0]
	assert.Equal(t, "u0", cte.Name)
	require.NotNil(t, cte.Union)
	assert.Len(t, cte.Union.Branches, 2)
	assert.Equal(t, []string{"_from", "_to", "_type", "_src", "_dst"}, cte.Columns)

	edge := p.Joins[0]
	assert.True(t, edge.Binding.CTE)
	assert.Equal(t, "u0", edge.Binding.Table)
	assert.Equal(t, "KNOWS|FRIEND", edge.Relationship)
}

func TestPlanUndirected(t *testing.T) {
	p := mustPlan(t, "MATCH (a:Person)-[:FRIEND]-(b:Person) RETURN b.name")
	assert.Equal(t, "both", p.Joins[0].Direction)
	assert.Equal(t,
		queryir.Or(queryir.Eq(queryir.Col("e0", "a"), queryir.Col("n0", "id")), queryir.Eq(queryir.Col("e0", "b"), queryir.Col("n0", "id"))),
		p.Joins[0].On)
}

// ops collects the binary operators used in e.
func ops(e queryir.Expr) []string {
	var out []string
	queryir.Walk(e, func(x queryir.Expr) {
		if b, ok := x.(*queryir.Binary); ok {
			out = append(out, b.Op)
		}
	})
	return out
}

func TestPlanDistinctEdges(t *testing.T) {
	p := mustPlan(t, "MATCH (a:Person)-[:KNOWS]-(b:Person)-[:KNOWS]-(c:Person) RETURN c.name")

	require.Len(t, p.Joins, 4)
	assert.NotContains(t, ops(p.Joins[0].On), "<>")
	second := p.Joins[2].On.(*queryir.Binary)
	assert.Equal(t, "AND", second.Op)
	assert.Equal(t, &queryir.Binary{Op: "<>", Left: queryir.Col("e0", "id"), Right: queryir.Col("e1", "id")}, second.Right)
}

func TestPlanDistinctKeylessEdges(t *testing.T) {
	p := mustPlan(t, "MATCH (a:Person)-[:FRIEND]-(b:Person)-[:FRIEND]-(c:Person) RETURN c.name")

	require.Len(t, p.Joins, 4)
	second := p.Joins[2].On.(*queryir.Binary)
	same := queryir.And(
		queryir.Eq(queryir.Col("e0", "a"), queryir.Col("e1", "a")),
		queryir.Eq(queryir.Col("e0", "b"), queryir.Col("e1", "b")))
	assert.Equal(t, &queryir.Unary{Op: "NOT", Operand: same}, second.Right)
}

func TestPlanEdgesOfSeparateMatchesMayRepeat(t *testing.T) {
	p := mustPlan(t, "MATCH (a:Person)-[:KNOWS]-(b:Person) MATCH (b)-[:KNOWS]-(c:Person) RETURN c.name")

	for _, j := range p.Joins {
		assert.NotContains(t, ops(j.On), "<>")
	}
}

func TestPlanOptionalMatch(t *testing.T) {
	p := mustPlan(t, "MATCH (a:Person) OPTIONAL MATCH (a)-[:LIVES_IN]->(c:City) RETURN a.name, c.name")

	require.Len(t, p.Joins, 1)
	group := p.Joins[0]
	assert.Equal(t, queryir.JoinLeft, group.Kind)
	assert.Equal(t, "lives_in", group.Binding.Table)
	assert.Equal(t, queryir.Eq(queryir.Col("e0", "person_id"), queryir.Col("n0", "id")), group.On)
	require.Len(t, group.Nested, 1)
	assert.Equal(t, "city", group.Nested[0].Binding.Table)
}

func TestPlanAggregation(t *testing.T) {
	p := mustPlan(t, "MATCH (c:City)<-[:LIVES_IN]-(p:Person) RETURN c.name, count(*) AS residents ORDER BY residents DESC")

	assert.Equal(t, []string{"name", "residents"}, names(p))
	assert.Equal(t, []int{1}, p.GroupBy)
	assert.True(t, p.Projections[1].Aggregate)
	assert.Equal(t, &queryir.Func{Name: queryir.FuncCount, Star: true}, p.Projections[1].Expr)
	assert.Equal(t, []*queryir.Order{{Ordinal: 2, Descending: true}}, p.OrderBy)
}

func TestPlanPaging(t *testing.T) {
	p := mustPlan(t, "MATCH (n:Person) RETURN DISTINCT n.name SKIP $s LIMIT 10")
	assert.True(t, p.Distinct)
	assert.Equal(t, &queryir.Param{Name: "s"}, p.Skip)
	assert.IsType(t, &queryir.Literal{}, p.Limit)
}

func TestPlanPatternPredicate(t *testing.T) {
	p := mustPlan(t, "MATCH (n:Person) WHERE NOT (n)-[:KNOWS]->(:Person {name: 'Bob'}) RETURN n.name")

	var exists *queryir.Exists
	queryir.Walk(p.Filter, func(e queryir.Expr) {
		if x, ok := e.(*queryir.Exists); ok {
			exists = x
		}
	})
	require.NotNil(t, exists)
	assert.Equal(t, "knows", exists.Plan.From.Table)
	assert.Empty(t, exists.Plan.CTEs)
	assert.NotNil(t, exists.Plan.Filter)
}

func TestPlanStringConcat(t *testing.T) {
	p := mustPlan(t, "MATCH (n:Person) RETURN n.name + '!' AS shout")
	bin, ok := p.Projections[0].Expr.(*queryir.Binary)
	require.True(t, ok)
	assert.Equal(t, "||", bin.Op)
}

func TestPlanErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		kind  diag.Kind
	}{
		{"disconnected", "MATCH (a:Person), (c:City) RETURN a.name", diag.KindDisconnectedPattern},
		{"mixed aggregate", "MATCH (n:Person) RETURN n.age + count(*)", diag.KindMixedAggregate},
		{"aggregate in where", "MATCH (n:Person) WHERE count(*) > 1 RETURN n.name", diag.KindMisplacedAggregate},
		{"nested aggregate", "MATCH (n:Person) RETURN max(count(*))", diag.KindMisplacedAggregate},
		{"aggregate in set", "MATCH (n:Person) SET n.age = count(*)", diag.KindMisplacedAggregate},
		{"keyless identity", "MATCH (a:Person)-[r:FRIEND]->(b:Person) RETURN id(r)", diag.KindMissingKey},
		{"keyless delete", "MATCH (a:Person)-[r:FRIEND]->(b:Person) DELETE r", diag.KindMissingKey},
		{"order by hidden expression", "MATCH (n:Person) RETURN DISTINCT n.name ORDER BY n.age", diag.KindUnsupported},
		{"optional first", "OPTIONAL MATCH (n:Person) RETURN n.name", diag.KindUnsupported},
		{"match after optional", "MATCH (a:Person) OPTIONAL MATCH (a)-[:LIVES_IN]->(c:City) MATCH (b:Person) RETURN a.name", diag.KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := planErr(t, tt.query, Options{})
			assert.Equal(t, tt.kind, de.Kind, de.Error())
		})
	}
}

func TestPlanCreateNode(t *testing.T) {
	p := mustPlan(t, "CREATE (n:Person {name: 'Ann', age: 30})")
	assert.Equal(t, queryir.KindInsert, p.Kind)
	assert.Equal(t, "person", p.Insert.Table)
	assert.Equal(t, []string{"name", "age"}, p.Insert.Columns)
	assert.Equal(t, []queryir.Expr{
		&queryir.Literal{Value: ir.String("Ann")},
		&queryir.Literal{Value: ir.Int(30)},
	}, p.Insert.Values)

	p = mustPlan(t, "CREATE (c:Company {name: 'Acme'})")
	assert.Equal(t, []string{"kind", "name"}, p.Insert.Columns)
	assert.Equal(t, &queryir.Literal{Value: ir.String("company")}, p.Insert.Values[0])
}

func TestPlanCreateRelationship(t *testing.T) {
	p := mustPlan(t, "MATCH (a:Person {id: 1}), (b:Person {id: 2}) CREATE (a)-[:KNOWS {since: 2020}]->(b)")

	assert.Equal(t, queryir.KindInsert, p.Kind)
	assert.Equal(t, "knows", p.Insert.Table)
	assert.Equal(t, []string{"src", "dst", "since"}, p.Insert.Columns)
	sel := p.Insert.Select
	require.NotNil(t, sel)
	require.Len(t, sel.Joins, 1)
	assert.Equal(t, queryir.JoinCross, sel.Joins[0].Kind)
	assert.Equal(t, queryir.Col("n0", "id"), sel.Projections[0].Expr)
	assert.Equal(t, queryir.Col("n1", "id"), sel.Projections[1].Expr)

	p = mustPlan(t, "MATCH (a:Person {id: 1}), (b:Person {id: 2}) CREATE (a)-[:MANAGES]->(b)")
	assert.Equal(t, []string{"manager_id", "report_id"}, p.Insert.Columns)
	assert.Equal(t, queryir.Col("n0", "id"), p.Insert.Select.Projections[0].Expr)
}

func TestPlanMergeNode(t *testing.T) {
	p := mustPlan(t, "MERGE (c:City {name: 'Oslo'}) ON CREATE SET c.population = 1")

	assert.Equal(t, "city", p.Insert.Table)
	assert.Equal(t, []string{"name", "pop"}, p.Insert.Columns)
	sel := p.Insert.Select
	assert.Nil(t, sel.From)
	exists, ok := sel.Filter.(*queryir.Exists)
	require.True(t, ok)
	assert.True(t, exists.Negated)
	assert.Equal(t, "city", exists.Plan.From.Table)
	assert.Equal(t,
		queryir.Eq(queryir.Col("n0", "name"), &queryir.Literal{Value: ir.String("Oslo")}),
		exists.Plan.Filter)
}

func TestPlanMergeRelationship(t *testing.T) {
	p := mustPlan(t, "MATCH (a:Person {id: 1}), (b:Person {id: 2}) MERGE (a)-[:FRIEND]->(b)")

	assert.Equal(t, "friend", p.Insert.Table)
	assert.Equal(t, []string{"a", "b"}, p.Insert.Columns)
	var exists *queryir.Exists
	queryir.Walk(p.Insert.Select.Filter, func(e queryir.Expr) {
		if x, ok := e.(*queryir.Exists); ok {
			exists = x
		}
	})
	require.NotNil(t, exists)
	assert.True(t, exists.Negated)
	assert.Equal(t, "friend", exists.Plan.From.Table)
}

func TestPlanUpdate(t *testing.T) {
	p := mustPlan(t, "MATCH (n:Person {name: 'Ann'}) SET n.age = n.age + 1")

	assert.Equal(t, queryir.KindUpdate, p.Kind)
	assert.Equal(t, "person", p.Update.Table)
	require.Len(t, p.Update.Sets, 1)
	assert.Equal(t, "age", p.Update.Sets[0].Column)
	assert.Equal(t,
		&queryir.Binary{Op: "+", Left: queryir.Col("person", "age"), Right: &queryir.Literal{Value: ir.Int(1)}},
		p.Update.Sets[0].Value)

	in, ok := p.Update.Filter.(*queryir.InSelect)
	require.True(t, ok)
	assert.Equal(t, queryir.Col("person", "id"), in.Operand)
	assert.Equal(t, "n0", in.Plan.From.Alias)
}

func TestPlanDelete(t *testing.T) {
	p := mustPlan(t, "MATCH (a:Person)-[r:KNOWS]->(b:Person) WHERE r.since < 2000 DELETE r")

	assert.Equal(t, queryir.KindDelete, p.Kind)
	assert.Equal(t, "knows", p.Delete.Table)
	in, ok := p.Delete.Filter.(*queryir.InSelect)
	require.True(t, ok)
	assert.Equal(t, queryir.Col("knows", "id"), in.Operand)
	assert.Equal(t, queryir.Col("e0", "id"), in.Plan.Projections[0].Expr)
}
