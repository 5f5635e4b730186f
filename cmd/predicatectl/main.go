// Command predicatectl loads a predicate rule-set manifest, checks it for
// errors, and evaluates named expressions against ad hoc field bindings
// supplied on the command line — useful for testing a rule set before
// wiring it into a real transaction pipeline.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qualys/predicate"
	"github.com/qualys/predicate/calls"
	"github.com/qualys/predicate/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "predicatectl:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "predicatectl",
		Short: "Inspect and evaluate predicate rule-set manifests",
	}
	root.AddCommand(checkCmd(), evalCmd(), debugReportCmd())
	return root
}

// newContextFromManifest loads and applies the manifest at path, returning
// the open context and its name->Oracle table, or an error describing
// whatever went wrong (parse, unknown call, invalid template). The
// returned context is NOT yet closed.
func newContextFromManifest(path string) (*predicate.PerContext, map[string]*predicate.Oracle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	m, err := config.LoadManifest(f)
	if err != nil {
		return nil, nil, err
	}

	cf := predicate.NewCallFactory()
	if err := calls.Load(cf); err != nil {
		return nil, nil, err
	}
	ctx := predicate.NewContext(cf)
	oracles, err := m.Apply(ctx)
	if err != nil {
		return nil, nil, err
	}
	return ctx, oracles, nil
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <manifest.yaml>",
		Short: "Load a manifest and report whether it closes cleanly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, oracles, err := newContextFromManifest(args[0])
			if err != nil {
				return err
			}
			if err := ctx.Close(); err != nil {
				return err
			}
			fmt.Printf("ok: %d expression(s), %d node(s)\n", len(oracles), ctx.IndexLimit())
			return nil
		},
	}
}

func evalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <manifest.yaml> <expression-name> [field=value ...]",
		Short: "Evaluate a named expression against field=value bindings",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, oracles, err := newContextFromManifest(args[0])
			if err != nil {
				return err
			}
			if err := ctx.Close(); err != nil {
				return err
			}

			o, ok := oracles[args[1]]
			if !ok {
				return fmt.Errorf("no expression named %q", args[1])
			}

			fields, err := parseFieldArgs(args[2:])
			if err != nil {
				return err
			}
			tx := predicate.NewTransaction(fields)

			v, finished, err := o.Query(tx)
			if err != nil {
				return err
			}
			if !finished {
				fmt.Println("<unfinished>")
				return nil
			}
			fmt.Println(v.String())
			return nil
		},
	}
}

// debugReportCmd prints the post-close node table for a manifest, on
// demand, to stdout. It is independent of the PredicateDebugReport
// directive: that directive (config.ApplyDirectives, consumed automatically
// by PerContext.Close) writes its own before-transform/after-transform
// dumps to stderr or a file as the graph lifecycle runs, regardless of
// whether this command is ever invoked. This command does not read or write
// debugReportTo at all; it exists for ad hoc inspection of a manifest's
// final, frozen shape from the command line.
func debugReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "debug-report <manifest.yaml>",
		Short: "Print the fully transformed, indexed node table for a manifest (on demand, separate from the PredicateDebugReport directive)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, err := newContextFromManifest(args[0])
			if err != nil {
				return err
			}
			if err := ctx.Close(); err != nil {
				return err
			}
			fmt.Println(predicate.NewReporter(ctx).WriteContextDebugReport(ctx))
			return nil
		},
	}
}

// parseFieldArgs turns "name=value" command-line arguments into a field
// map; a value parsing as a number becomes a number Value, otherwise a
// string Value.
func parseFieldArgs(args []string) (map[string]predicate.Value, error) {
	fields := map[string]predicate.Value{}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("invalid field binding %q, want name=value", a)
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			fields[k] = predicate.NumberValue(n)
		} else {
			fields[k] = predicate.StringValue(v)
		}
	}
	return fields, nil
}
