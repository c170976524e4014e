package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/agencydesk/mdconsole/pkg/cascade"
	"github.com/agencydesk/mdconsole/pkg/model"
)

func newDepsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deps <domain> <type> <id>",
		Short: "Show the records a deactivation would cascade to",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[2], "id")
			if err != nil {
				return err
			}
			ws, err := a.workspace(cmd.Context())
			if err != nil {
				return err
			}
			deps, err := ws.Dependents(cmd.Context(), args[0], model.EntityType(args[1]), id)
			if err != nil {
				return explain(err)
			}
			if deps.Empty() {
				fmt.Fprintln(cmd.OutOrStdout(), "no active dependents")
				return nil
			}
			printDependents(cmd.OutOrStdout(), deps)
			return nil
		},
	}
}

func printDependents(out io.Writer, deps cascade.DependencySet) {
	for _, d := range deps {
		marker := ""
		if !d.Cascade {
			marker = " (report only)"
		}
		fmt.Fprintf(out, "%*s%s #%d %s%s\n", d.Depth*2, "", d.Type, d.ID, d.Label, marker)
	}
	fmt.Fprintf(out, "%d related records\n", len(deps))
}
