package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// withApp loads config, wires the app and runs fn with it.
func withApp(o *rootOptions, cmd *cobra.Command, fn func(a *app) error) error {
	cfg, err := o.load(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, newLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// readSource reads a model file, or stdin when path is "-".
func readSource(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func newModelsCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect and change deployed models",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List models in the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(o, cmd, func(a *app) error {
				set, err := a.deployer.List(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), set)
				}
				for _, n := range set.Names() {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			})
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "Print names and sources as JSON")

	get := &cobra.Command{
		Use:   "get NAME",
		Short: "Print a model's source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(o, cmd, func(a *app) error {
				text, err := a.deployer.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), text)
				return err
			})
		},
	}

	validate := &cobra.Command{
		Use:   "validate NAME FILE",
		Short: "Check a model file without deploying it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readSource(cmd, args[1])
			if err != nil {
				return err
			}
			return withApp(o, cmd, func(a *app) error {
				if err := a.deployer.Validate(args[0], text); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Model is valid")
				return nil
			})
		},
	}

	deploy := &cobra.Command{
		Use:   "deploy NAME FILE",
		Short: "Store a model and roll it out",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readSource(cmd, args[1])
			if err != nil {
				return err
			}
			return withApp(o, cmd, func(a *app) error {
				res, err := a.deployer.Deploy(cmd.Context(), args[0], text)
				if perr := printSteps(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
				return err
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Remove a model and roll out the change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(o, cmd, func(a *app) error {
				res, err := a.deployer.Delete(cmd.Context(), args[0])
				if perr := printSteps(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
				return err
			})
		},
	}

	imp := &cobra.Command{
		Use:   "import DIR",
		Short: "Add model files from a directory to the manifest without deploying",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(o, cmd, func(a *app) error {
				added, skipped, err := a.seed(args[0])
				if err != nil {
					return err
				}
				for _, n := range added {
					fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", n)
				}
				for _, f := range skipped {
					fmt.Fprintf(cmd.OutOrStdout(), "skipped %s\n", f)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list, get, validate, deploy, del, imp)
	return cmd
}

