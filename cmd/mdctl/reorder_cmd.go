package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agencydesk/mdconsole/pkg/model"
)

func newReorderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <domain> <type> <parent-id> <ids...>",
		Short: "Set the display order of a parent's children",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID, err := parseIDArg(args[2], "parent-id")
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(args)-3)
			for _, raw := range args[3:] {
				id, err := parseIDArg(raw, "id")
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			ws, err := a.workspace(cmd.Context())
			if err != nil {
				return err
			}
			records, err := ws.Reorder(cmd.Context(), args[0], model.EntityType(args[1]), parentID, ids)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order saved, %d records under parent %d\n", len(records), parentID)
			return nil
		},
	}
}
