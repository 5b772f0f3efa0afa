package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClusterCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Query the cube workload",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show deployment and pod status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(o, cmd, func(a *app) error {
					st, err := a.deployer.ClusterStatus(cmd.Context())
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), st)
				})
			},
		},
		&cobra.Command{
			Use:   "logs",
			Short: "Print recent workload logs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(o, cmd, func(a *app) error {
					lines, err := a.deployer.ClusterLogs(cmd.Context())
					if err != nil {
						return err
					}
					for _, l := range lines {
						fmt.Fprintln(cmd.OutOrStdout(), l)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "test",
			Short: "Run the SQL connectivity probe",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(o, cmd, func(a *app) error {
					out, err := a.deployer.TestConnection(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), out)
					return nil
				})
			},
		},
	)
	return cmd
}
