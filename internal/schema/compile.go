package schema

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed definition.cue
var definitionSource string

// CompileError is a schema document error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile builds a Description from a CUE value holding a schema document.
//
// The value is unified with the embedded #Schema definition, so unknown
// fields, missing required fields and bad enum values fail with positioned
// errors before any semantic validation runs.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`nodes: Person: {table: "person", properties: name: type: "string"}`)
//	desc, err := schema.Compile(v)
func Compile(v cue.Value) (*Description, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := v.Context().CompileString(definitionSource, cue.Filename("definition.cue"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("schema definition: %w", err)
	}
	v = def.LookupPath(cue.ParsePath("#Schema")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	desc := &Description{}
	var err error
	if desc.Version, err = lookupString(v, "version"); err != nil {
		return nil, err
	}
	if desc.Nodes, err = parseNodes(v.LookupPath(cue.ParsePath("nodes"))); err != nil {
		return nil, err
	}
	if desc.Relationships, err = parseRelationships(v.LookupPath(cue.ParsePath("relationships"))); err != nil {
		return nil, err
	}
	return finish(desc)
}

// CompileString compiles CUE or JSON source text. filename is used only in
// error positions.
func CompileString(filename, src string) (*Description, error) {
	ctx := cuecontext.New()
	return Compile(ctx.CompileString(src, cue.Filename(filename)))
}

// New builds a Description from Go values, applying the same defaults and
// validation as Compile.
func New(version string, nodes []*Node, rels []*Relationship) (*Description, error) {
	if version == "" {
		version = "1"
	}
	for _, n := range nodes {
		if n.Key == "" {
			n.Key = "id"
		}
		applyColumnDefaults(n.Properties)
	}
	for _, r := range rels {
		applyColumnDefaults(r.Properties)
	}
	return finish(&Description{Version: version, Nodes: nodes, Relationships: rels})
}

func applyColumnDefaults(props []*Property) {
	for _, p := range props {
		if p.Column == "" {
			p.Column = p.Name
		}
	}
}

// finish validates, indexes and fingerprints a freshly built description.
func finish(desc *Description) (*Description, error) {
	desc.index()
	if errs := Validate(desc); len(errs) > 0 {
		return nil, errs
	}
	fp, err := fingerprint(desc)
	if err != nil {
		return nil, fmt.Errorf("fingerprint schema: %w", err)
	}
	desc.fingerprint = fp
	return desc, nil
}

func parseNodes(v cue.Value) ([]*Node, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var nodes []*Node
	for iter.Next() {
		nv := iter.Value()
		n := &Node{Label: iter.Label(), pos: nv.Pos()}
		if n.Table, err = lookupString(nv, "table"); err != nil {
			return nil, err
		}
		if n.Key, err = lookupString(nv, "key"); err != nil {
			return nil, err
		}
		if n.Discriminator, err = parseDiscriminator(nv); err != nil {
			return nil, err
		}
		if n.Properties, err = parseProperties(nv); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func parseRelationships(v cue.Value) ([]*Relationship, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rels []*Relationship
	for iter.Next() {
		rv := iter.Value()
		r := &Relationship{Type: iter.Label(), pos: rv.Pos()}
		if r.Table, err = lookupString(rv, "table"); err != nil {
			return nil, err
		}
		if r.Key, err = lookupOptionalString(rv, "key"); err != nil {
			return nil, err
		}
		if r.Start, err = parseEndpoint(rv.LookupPath(cue.ParsePath("start"))); err != nil {
			return nil, err
		}
		if r.End, err = parseEndpoint(rv.LookupPath(cue.ParsePath("end"))); err != nil {
			return nil, err
		}
		direction, err := lookupString(rv, "direction")
		if err != nil {
			return nil, err
		}
		r.Reverse = direction == "reverse"
		if r.Discriminator, err = parseDiscriminator(rv); err != nil {
			return nil, err
		}
		if r.Properties, err = parseProperties(rv); err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, nil
}

func parseEndpoint(v cue.Value) (Endpoint, error) {
	var ep Endpoint
	var err error
	if ep.Column, err = lookupString(v, "column"); err != nil {
		return ep, err
	}
	if ep.Label, err = lookupOptionalString(v, "label"); err != nil {
		return ep, err
	}
	return ep, nil
}

func parseDiscriminator(v cue.Value) (*Discriminator, error) {
	dv := v.LookupPath(cue.ParsePath("discriminator"))
	if !dv.Exists() {
		return nil, nil
	}
	d := &Discriminator{}
	var err error
	if d.Column, err = lookupString(dv, "column"); err != nil {
		return nil, err
	}
	if d.Value, err = lookupString(dv, "value"); err != nil {
		return nil, err
	}
	return d, nil
}

// parseProperties keeps declaration order: it decides the column order of
// node projections.
func parseProperties(v cue.Value) ([]*Property, error) {
	pv := v.LookupPath(cue.ParsePath("properties"))
	if !pv.Exists() {
		return nil, nil
	}
	iter, err := pv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var props []*Property
	for iter.Next() {
		fv := iter.Value()
		p := &Property{Name: iter.Label()}
		typ, err := lookupString(fv, "type")
		if err != nil {
			return nil, err
		}
		p.Type = Type(typ)
		if p.Column, err = lookupOptionalString(fv, "column"); err != nil {
			return nil, err
		}
		if p.Column == "" {
			p.Column = p.Name
		}
		if sv := fv.LookupPath(cue.ParsePath("side_table")); sv.Exists() {
			side := &SideTable{}
			if side.Table, err = lookupString(sv, "table"); err != nil {
				return nil, err
			}
			if side.Key, err = lookupString(sv, "key"); err != nil {
				return nil, err
			}
			if side.Column, err = lookupString(sv, "column"); err != nil {
				return nil, err
			}
			p.Side = side
			p.Column = side.Column
		}
		props = append(props, p)
	}
	return props, nil
}

func lookupString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: "field is required", Pos: v.Pos()}
	}
	return stringValue(fv)
}

func lookupOptionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	return stringValue(fv)
}

// stringValue resolves defaults such as key: *"id" | string.
func stringValue(v cue.Value) (string, error) {
	if d, ok := v.Default(); ok {
		v = d
	}
	s, err := v.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &CompileError{Field: "cue", Message: first.Error()}
}
