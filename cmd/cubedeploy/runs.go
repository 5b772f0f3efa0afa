package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and resume journaled deploy and delete runs",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(o, cmd, func(a *app) error {
				runs, err := a.deployer.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tOP\tMODEL\tSTATUS\tLAST STEP\tSTARTED")
				for _, r := range runs {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Op, r.Model, r.Status, r.LastStep, r.StartedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show")

	resume := &cobra.Command{
		Use:   "resume ID",
		Short: "Continue a failed run after its last completed step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			return withApp(o, cmd, func(a *app) error {
				res, err := a.deployer.Resume(cmd.Context(), id)
				if perr := printSteps(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
				return err
			})
		},
	}

	cmd.AddCommand(list, resume)
	return cmd
}
