package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/vk/munge/internal/app"
	"github.com/vk/munge/internal/nodestore"
)

func (c *command) newBuildCommand() *cobra.Command {
	var opts app.BuildOptions
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "build [names...]",
		Short: "Build artifacts into staging objects in dependency order.",
		Example: `  munge build vao_base vao_by_la
  munge build --changed vao_list,postcode --swap
  munge build --all --limit 1000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Names = args
			a, err := c.newApp()
			if err != nil {
				return err
			}
			if dryRun {
				plan, err := a.Plan(cmd.Context(), opts)
				if err != nil {
					return err
				}
				return c.printLines(plan)
			}

			res, err := a.Build(cmd.Context(), opts)
			if res != nil {
				if perr := c.printBuild(cmd, a); perr != nil {
					return errors.CombineErrors(err, perr)
				}
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&opts.Changed, "changed", nil, "Also build everything that depends on these updated artifacts.")
	flags.BoolVar(&opts.IncludeSelf, "include-self", false, "With --changed, rebuild the changed artifacts too.")
	flags.BoolVar(&opts.WithDeps, "with-deps", false, "Also build everything the named artifacts depend on.")
	flags.BoolVar(&opts.All, "all", false, "Build every artifact.")
	flags.BoolVar(&opts.Swap, "swap", false, "Publish the built artifacts after a successful pass.")
	flags.BoolVar(&dryRun, "dry-run", false, "Print the build order without building.")
	flags.Int("limit", 0, "Cap the rows loaded into each summary. 0 means no cap.")
	if err := c.v.BindPFlag("limit", flags.Lookup("limit")); err != nil {
		panic(err)
	}
	return cmd
}

// printBuild writes one line per artifact of the last pass.
func (c *command) printBuild(cmd *cobra.Command, a *app.App) error {
	records, err := a.Store().Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, r := range records {
		line := r.Name + "\t" + r.Status.String()
		if r.Status == nodestore.StatusCompleted {
			line += "\t" + r.Duration.Round(time.Millisecond).String()
			if r.Rows > 0 {
				line += fmt.Sprintf("\t%d rows", r.Rows)
			}
		}
		fmt.Fprintln(w, line)
	}
	return w.Flush()
}

func (c *command) newUpdatesCommand() *cobra.Command {
	var includeSelf bool
	cmd := &cobra.Command{
		Use:   "updates <names...>",
		Short: "List what must be rebuilt after the named artifacts changed, in build order.",
		Args:  requireArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp()
			if err != nil {
				return err
			}
			updates, err := a.Updates(cmd.Context(), args, includeSelf)
			if err != nil {
				return err
			}
			return c.printLines(updates)
		},
	}
	cmd.Flags().BoolVar(&includeSelf, "include-self", false, "Include the changed artifacts themselves.")
	return cmd
}

func (c *command) newOrderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "order [names...]",
		Short: "Sort artifacts dependencies first. With no names, print the whole graph in build order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return c.printLines(a.Graph().GlobalOrder())
			}
			order, err := a.Order(args)
			if err != nil {
				return err
			}
			return c.printLines(order)
		},
	}
}

func (c *command) newDepsCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "deps [name]",
		Short: "Show dependencies and dependents of one artifact, or of all of them.",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp()
			if err != nil {
				return err
			}
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			reports, err := a.Deps(name)
			if err != nil {
				return err
			}

			switch output {
			case "json":
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			case "text":
				return c.printDeps(reports)
			default:
				return usageError(errors.Newf("invalid output %q: must be 'text' or 'json'", output))
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format. Options: 'text' or 'json'.")
	return cmd
}

func (c *command) printDeps(reports []*app.DepsReport) error {
	for _, r := range reports {
		kind := r.Kind
		if r.Implicit {
			kind += ", implicit"
		}
		fmt.Fprintf(c.out, "%s (%s, depth %d)\n", r.Name, kind, r.Depth)
		fmt.Fprintf(c.out, "  direct:  %s\n", strings.Join(r.Direct, ", "))
		fmt.Fprintf(c.out, "  forward: %s\n", strings.Join(r.Forward, ", "))
		if _, err := fmt.Fprintf(c.out, "  reverse: %s\n", strings.Join(r.Reverse, ", ")); err != nil {
			return err
		}
	}
	return nil
}

func (c *command) newSQLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sql <name>",
		Short: "Print the rendered recipe of an artifact.",
		Args:  requireArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp()
			if err != nil {
				return err
			}
			for _, name := range args {
				sql, err := a.SQL(name)
				if err != nil {
					return err
				}
				if sql == "" {
					fmt.Fprintf(c.out, "-- %s is loaded by an importer\n", name)
					continue
				}
				fmt.Fprintln(c.out, sql+";")
			}
			return nil
		},
	}
}

func (c *command) newSwapCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "swap [names...]",
		Short: "Publish staging objects under their production names in one transaction.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp()
			if err != nil {
				return err
			}
			swapped, err := a.Swap(cmd.Context(), args)
			if err != nil {
				return err
			}
			return c.printLines(swapped)
		},
	}
}

func (c *command) newClearStagingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-staging",
		Short: "Drop every staging object except declared artifacts.",
		Args:  maxArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.newApp()
			if err != nil {
				return err
			}
			dropped, err := a.ClearStaging(cmd.Context())
			if err != nil {
				return err
			}
			return c.printLines(dropped)
		},
	}
}

func (c *command) newCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the build bookkeeping kept in table_summaries.",
		Args:  maxArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.newApp()
			if err != nil {
				return err
			}
			entries, err := a.Catalog(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND\tROWS\tBUILD\tUPDATED")
			for _, e := range entries {
				kind := "table"
				if e.IsView {
					kind = "view"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					e.Name, kind, e.Rows, e.Duration.Round(time.Millisecond), e.Updated.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func (c *command) printLines(lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(c.out, l); err != nil {
			return err
		}
	}
	return nil
}
