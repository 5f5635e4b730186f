package config

import (
	"fmt"
	"io"

	"github.com/qualys/predicate"
	"gopkg.in/yaml.v3"
)

// Manifest is a declarative rule set: named templates and named root
// expressions, loaded from YAML.
type Manifest struct {
	Templates   []TemplateSpec   `yaml:"templates"`
	Expressions []ExpressionSpec `yaml:"expressions"`
}

// TemplateSpec declares one user-defined call.
type TemplateSpec struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params"`
	Body   string   `yaml:"body"`
}

// ExpressionSpec declares one named root expression to acquire.
type ExpressionSpec struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

// LoadManifest decodes a YAML manifest from r.
func LoadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}

// Apply defines every template and acquires every expression in m against
// ctx, in that order (so expressions may use the manifest's own
// templates), returning an Oracle per expression name. Valid only before
// ctx.Close.
func (m *Manifest) Apply(ctx *predicate.PerContext) (map[string]*predicate.Oracle, error) {
	for _, t := range m.Templates {
		bodyNode, _, err := predicate.ParseAt(t.Body, 0, ctx.CallFactory(), "manifest:template:"+t.Name)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", t.Name, err)
		}
		if err := ctx.DefineTemplate(t.Name, t.Params, bodyNode, "manifest:template:"+t.Name); err != nil {
			return nil, fmt.Errorf("template %q: %w", t.Name, err)
		}
	}

	oracles := make(map[string]*predicate.Oracle, len(m.Expressions))
	for _, e := range m.Expressions {
		o, err := ctx.Acquire(e.Expr, "manifest:expression:"+e.Name)
		if err != nil {
			return nil, fmt.Errorf("expression %q: %w", e.Name, err)
		}
		oracles[e.Name] = o
	}
	return oracles, nil
}
