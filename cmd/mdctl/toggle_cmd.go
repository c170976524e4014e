package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agencydesk/mdconsole/pkg/console"
	"github.com/agencydesk/mdconsole/pkg/model"
)

func newToggleCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "toggle <domain> <type> <id>",
		Short: "Flip a record between active and inactive",
		Long: "Flip a record between active and inactive. Deactivating a record with active " +
			"dependents lists them and asks for confirmation unless --yes is given.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[2], "id")
			if err != nil {
				return err
			}
			ws, err := a.workspace(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			outcome, err := ws.RequestToggle(cmd.Context(), args[0], model.EntityType(args[1]), id)
			if err != nil {
				return explain(err)
			}

			in := bufio.NewReader(cmd.InOrStdin())
			for outcome.Kind == console.OutcomeConfirmationRequired {
				printDependents(out, outcome.Dependents)
				if !yes && !confirm(in, out, "Deactivate them all?") {
					if err := ws.Cancel(outcome.Ticket); err != nil {
						return err
					}
					fmt.Fprintln(out, "cancelled, nothing changed")
					return nil
				}
				if outcome, err = ws.Confirm(cmd.Context(), outcome.Ticket); err != nil {
					return explain(err)
				}
			}

			fmt.Fprintln(out, outcome.Notice)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm cascading deactivation without prompting")
	return cmd
}

func confirm(in *bufio.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, err := in.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
