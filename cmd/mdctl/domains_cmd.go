package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agencydesk/mdconsole/pkg/domains"
)

func newDomainsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List the master-data hierarchies and their entity types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := domains.Default()
			out := cmd.OutOrStdout()
			for _, name := range registry.Names() {
				h, _ := registry.Get(name)
				types := make([]string, 0, len(h.Types()))
				for _, t := range h.Types() {
					types = append(types, string(t))
				}
				fmt.Fprintf(out, "%-10s %-28s %s\n", name, h.Title, strings.Join(types, " > "))
			}
			return nil
		},
	}
}
