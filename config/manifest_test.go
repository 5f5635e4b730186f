package config_test

import (
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/qualys/predicate"
	"github.com/qualys/predicate/calls"
	"github.com/qualys/predicate/config"
)

const testManifestYAML = `
templates:
  - name: is-method
    params: [m]
    body: "(streq (field 'method') (ref 'm'))"
expressions:
  - name: is-get
    expr: "(is-method 'GET')"
  - name: is-post
    expr: "(is-method 'POST')"
`

func TestLoadManifestDecodesTemplatesAndExpressions(t *testing.T) {
	is := is.New(t)
	m, err := config.LoadManifest(strings.NewReader(testManifestYAML))
	is.NoErr(err)
	is.Equal(len(m.Templates), 1)
	is.Equal(m.Templates[0].Name, "is-method")
	is.Equal(m.Templates[0].Params, []string{"m"})
	is.Equal(len(m.Expressions), 2)
	is.Equal(m.Expressions[0].Name, "is-get")
}

func TestManifestApplyAndQuery(t *testing.T) {
	is := is.New(t)
	m, err := config.LoadManifest(strings.NewReader(testManifestYAML))
	is.NoErr(err)

	cf := predicate.NewCallFactory()
	is.NoErr(calls.Load(cf))
	ctx := predicate.NewContext(cf)

	oracles, err := m.Apply(ctx)
	is.NoErr(err)
	is.Equal(len(oracles), 2)
	is.NoErr(ctx.Close())

	v, finished, err := oracles["is-get"].Query(predicate.NewTransaction(map[string]predicate.Value{
		"method": predicate.StringValue("GET"),
	}))
	is.NoErr(err)
	is.True(finished)
	is.True(v.Truthy())

	v, finished, err = oracles["is-post"].Query(predicate.NewTransaction(map[string]predicate.Value{
		"method": predicate.StringValue("GET"),
	}))
	is.NoErr(err)
	is.True(finished)
	is.True(!v.Truthy())
}

func TestManifestApplyRejectsUnknownTemplateInExpression(t *testing.T) {
	is := is.New(t)
	m, err := config.LoadManifest(strings.NewReader(`
expressions:
  - name: bad
    expr: "(nonexistent-template 1)"
`))
	is.NoErr(err)

	cf := predicate.NewCallFactory()
	is.NoErr(calls.Load(cf))
	ctx := predicate.NewContext(cf)

	_, err = m.Apply(ctx)
	is.True(err != nil)
}
