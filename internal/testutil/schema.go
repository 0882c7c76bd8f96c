// Package testutil provides fixtures shared by package tests.
package testutil

import (
	_ "embed"
	"testing"

	"github.com/P-wig/cyphersql/internal/schema"
)

// SocialSchemaSource is the CUE source of the social graph fixture:
//
//	(:Person)-[:KNOWS|FRIEND|MANAGES]->(:Person)
//	(:Person)-[:LIVES_IN]->(:City)
//	(:Person)-[:WORKS_AT]->(:Company), (:Person)-[:STUDIES_AT]->(:School)
//
// Company and School share the org table (discriminator kind), WORKS_AT
// and STUDIES_AT share the affiliation table (discriminator rel), MANAGES is
// stored reversed and Person.email lives in a side table.
//
//go:embed social.cue
var SocialSchemaSource string

// SocialSchema compiles the social graph fixture.
func SocialSchema(t testing.TB) *schema.Description {
	t.Helper()
	desc, err := schema.CompileString("social.cue", SocialSchemaSource)
	if err != nil {
		t.Fatalf("compile social schema: %v", err)
	}
	return desc
}
