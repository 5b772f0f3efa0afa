package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"cubedeploy/pkg/types"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSteps writes one row per pipeline step with the first line of its
// output.
func printSteps(w io.Writer, res types.DeployResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tOK\tOUTPUT")
	for _, s := range res.Steps {
		out, _, _ := strings.Cut(strings.TrimSpace(s.Output), "\n")
		fmt.Fprintf(tw, "%s\t%t\t%s\n", s.Step, s.OK, out)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if res.RunID != 0 {
		fmt.Fprintf(w, "run %d\n", res.RunID)
	}
	if res.RolloutPending {
		fmt.Fprintln(w, "rollout still in progress")
	}
	return nil
}
