// Package harness runs conformance scenarios: Cypher statements translated
// against a schema and executed on an in-memory sqlite database loaded with
// fixture rows.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: friends_of_ann
//	description: "What this scenario validates"
//	schema: ../schemas/social.cue   # relative to the scenario file
//	max_depth: 5                    # optional cap for unbounded hops
//	fixtures:
//	  person:
//	    - {id: 1, name: ann}
//	steps:
//	  - query: "MATCH (a:Person)-[:KNOWS]->(b) WHERE a.name = $who RETURN b.name"
//	    params: {who: ann}
//	    expect:
//	      columns: [name]
//	      rows: [[bob]]
//	      ordered: false
//	      sql_contains: ["INNER JOIN"]
//	  - query: "MATCH (n:Robot) RETURN n"
//	    expect:
//	      error: {category: SemanticError, kind: UnknownLabel}
//	assertions:
//	  - type: final_state
//	    table: person
//	    where: {id: 1}
//	    expect: {name: ann}
//	  - type: row_count
//	    table: knows
//	    count: 2
//
// # Assertion Types
//
//   - final_state: exactly one row of a table matches where, and it holds
//     the expected values (subset match)
//   - row_count: a table holds count rows matching where
//
// # Deterministic Testing
//
// Every scenario runs in a fresh in-memory database. Fixture tables are
// loaded in sorted name order and rows are compared as multisets unless a
// step sets ordered, so results do not depend on map or storage order.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/friends.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
