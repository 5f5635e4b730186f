// Package config loads predicate rule configuration from two surfaces: a
// line-oriented directive file (PredicateDebugReport / PredicateDefine,
// following the original IronBee module's configuration directives) and a
// YAML rule-set manifest (templates: / expressions:). Registry adds
// lock-free hot reload of a manifest on top of a predicate.PerContext.
package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/qualys/predicate"
)

// Directive is one parsed line from a directive file.
type Directive struct {
	Name   string
	Args   []string
	Origin string
}

// ParseDirectives reads a directive file from r. filename is used only to
// build Origin tags ("filename:line"). Blank lines and lines starting with
// '#' are skipped.
func ParseDirectives(r io.Reader, filename string) ([]Directive, error) {
	sc := bufio.NewScanner(r)
	var out []Directive
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		origin := fmt.Sprintf("%s:%d", filename, lineNo)
		fields := strings.Fields(line)
		switch fields[0] {
		case "PredicateDebugReport":
			if len(fields) < 2 {
				return nil, fmt.Errorf("%s: PredicateDebugReport requires a destination argument", origin)
			}
			out = append(out, Directive{Name: fields[0], Args: []string{fields[1]}, Origin: origin})

		case "PredicateDefine":
			d, err := parseDefineDirective(line, origin)
			if err != nil {
				return nil, err
			}
			out = append(out, d)

		default:
			return nil, fmt.Errorf("%s: unknown directive %q", origin, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseDefineDirective parses "PredicateDefine name (p1 p2 ...) <body>",
// where <body> is everything remaining on the line, since a body
// S-expression may itself contain spaces.
func parseDefineDirective(line, origin string) (Directive, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "PredicateDefine"))
	sp := strings.IndexByte(rest, ' ')
	if sp < 0 {
		return Directive{}, fmt.Errorf("%s: PredicateDefine requires a name, parameter list, and body", origin)
	}
	name := rest[:sp]
	rest = strings.TrimSpace(rest[sp:])

	if !strings.HasPrefix(rest, "(") {
		return Directive{}, fmt.Errorf("%s: PredicateDefine parameter list must be parenthesized", origin)
	}
	closeIdx := strings.IndexByte(rest, ')')
	if closeIdx < 0 {
		return Directive{}, fmt.Errorf("%s: unterminated parameter list", origin)
	}
	params := strings.Fields(rest[1:closeIdx])
	body := strings.TrimSpace(rest[closeIdx+1:])
	if body == "" {
		return Directive{}, fmt.Errorf("%s: PredicateDefine requires a body expression", origin)
	}

	args := append([]string{name}, params...)
	args = append(args, body)
	return Directive{Name: "PredicateDefine", Args: args, Origin: origin}, nil
}

// ApplyDirectives executes each directive against ctx: PredicateDefine
// parses its body and registers a template, PredicateDebugReport records a
// debug report destination that ctx.Close writes to automatically at the
// before-transform and after-transform lifecycle checkpoints.
func ApplyDirectives(ctx *predicate.PerContext, directives []Directive) error {
	for _, d := range directives {
		switch d.Name {
		case "PredicateDebugReport":
			ctx.SetDebugReport(d.Args[0])

		case "PredicateDefine":
			name := d.Args[0]
			params := d.Args[1 : len(d.Args)-1]
			bodyExpr := d.Args[len(d.Args)-1]
			bodyNode, _, err := predicate.ParseAt(bodyExpr, 0, ctx.CallFactory(), d.Origin)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Origin, err)
			}
			if err := ctx.DefineTemplate(name, params, bodyNode, d.Origin); err != nil {
				return err
			}
		}
	}
	return nil
}
