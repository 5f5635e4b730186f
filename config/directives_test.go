package config_test

import (
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/qualys/predicate"
	"github.com/qualys/predicate/calls"
	"github.com/qualys/predicate/config"
)

func newConfigTestContext(t *testing.T) *predicate.PerContext {
	t.Helper()
	is := is.New(t)
	cf := predicate.NewCallFactory()
	is.NoErr(calls.Load(cf))
	return predicate.NewContext(cf)
}

func TestParseDirectivesDebugReport(t *testing.T) {
	is := is.New(t)
	ds, err := config.ParseDirectives(strings.NewReader(`PredicateDebugReport /var/log/predicate.log`), "test.conf")
	is.NoErr(err)
	is.Equal(len(ds), 1)
	is.Equal(ds[0].Name, "PredicateDebugReport")
	is.Equal(ds[0].Args[0], "/var/log/predicate.log")
	is.Equal(ds[0].Origin, "test.conf:1")
}

func TestParseDirectivesDefineWithMultiWordBody(t *testing.T) {
	is := is.New(t)
	ds, err := config.ParseDirectives(strings.NewReader(
		`PredicateDefine is-get (m) (streq (ref 'm') 'GET')`), "test.conf")
	is.NoErr(err)
	is.Equal(len(ds), 1)
	d := ds[0]
	is.Equal(d.Name, "PredicateDefine")
	is.Equal(d.Args[0], "is-get")
	is.Equal(d.Args[1], "m")
	is.Equal(d.Args[len(d.Args)-1], `(streq (ref 'm') 'GET')`)
}

func TestParseDirectivesSkipsBlankAndCommentLines(t *testing.T) {
	is := is.New(t)
	ds, err := config.ParseDirectives(strings.NewReader(
		"# a comment\n\nPredicateDebugReport out.log\n"), "test.conf")
	is.NoErr(err)
	is.Equal(len(ds), 1)
	is.Equal(ds[0].Origin, "test.conf:3")
}

func TestParseDirectivesRejectsUnknownDirective(t *testing.T) {
	is := is.New(t)
	_, err := config.ParseDirectives(strings.NewReader(`PredicateFrobnicate x`), "test.conf")
	is.True(err != nil)
}

func TestParseDirectivesRejectsUnparenthesizedParams(t *testing.T) {
	is := is.New(t)
	_, err := config.ParseDirectives(strings.NewReader(`PredicateDefine bad m) (eq 1 1)`), "test.conf")
	is.True(err != nil)
}

func TestApplyDirectivesDefinesTemplateAndSetsDebugReport(t *testing.T) {
	is := is.New(t)
	ctx := newConfigTestContext(t)

	ds, err := config.ParseDirectives(strings.NewReader(
		"PredicateDebugReport out.log\nPredicateDefine is-one (x) (eq (ref 'x') 1)\n"), "test.conf")
	is.NoErr(err)
	is.NoErr(config.ApplyDirectives(ctx, ds))

	_, err = ctx.Acquire(`(is-one 1)`, "test.conf:3")
	is.NoErr(err)
	is.NoErr(ctx.Close())
}

func TestApplyDirectivesPropagatesBadTemplateBody(t *testing.T) {
	is := is.New(t)
	ctx := newConfigTestContext(t)

	ds, err := config.ParseDirectives(strings.NewReader(
		`PredicateDefine broken (x) (eq (ref 'x'`), "test.conf")
	is.NoErr(err) // parsing the directive line itself succeeds; the body is opaque text here

	err = config.ApplyDirectives(ctx, ds)
	is.True(err != nil) // the malformed body only fails once ApplyDirectives parses it as an expression
}
