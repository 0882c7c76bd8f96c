package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Load reads a schema description from a .cue, .json, .yaml or .yml file.
func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	var desc *Description
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue", ".json":
		desc, err = CompileString(path, string(data))
	case ".yaml", ".yml":
		desc, err = ParseYAML(path, data)
	default:
		return nil, fmt.Errorf("schema %s: unsupported extension %q (want .cue, .json, .yaml or .yml)", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return desc, nil
}

// ParseYAML decodes a YAML schema document and validates it through the same
// CUE definition as CUE and JSON documents. Mapping order is preserved, so
// property order in YAML decides projection column order as it does in CUE.
func ParseYAML(filename string, data []byte) (*Description, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("parse yaml: empty document")
	}

	var buf strings.Builder
	if err := writeJSON(&buf, doc.Content[0]); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	ctx := cuecontext.New()
	return Compile(ctx.CompileString(buf.String(), cue.Filename(filename)))
}

// writeJSON renders a YAML node as JSON, keeping mapping key order.
// json.Marshal on a decoded map would sort keys.
func writeJSON(b *strings.Builder, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			b.WriteString("null")
			return nil
		}
		return writeJSON(b, n.Content[0])
	case yaml.AliasNode:
		return writeJSON(b, n.Alias)
	case yaml.MappingNode:
		b.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				b.WriteByte(',')
			}
			key, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			b.Write(key)
			b.WriteByte(':')
			if err := writeJSON(b, n.Content[i+1]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case yaml.SequenceNode:
		b.WriteByte('[')
		for i, c := range n.Content {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeJSON(b, c); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		b.Write(out)
	default:
		return fmt.Errorf("line %d: unexpected yaml node", n.Line)
	}
	return nil
}
