package deployer

import (
	"context"
	"errors"

	"cubedeploy/internal/orchestrator"
	"cubedeploy/pkg/types"
)

// ClusterStatus returns the reduced workload summary.
func (d *Deployer) ClusterStatus(ctx context.Context) (types.ClusterStatus, error) {
	st, err := d.orch.Status(ctx)
	if err != nil {
		return types.ClusterStatus{}, external("cluster status", err)
	}
	if st.Pods == nil {
		st.Pods = []types.PodStatus{}
	}
	return st, nil
}

// ClusterLogs returns the last configured number of workload log lines.
func (d *Deployer) ClusterLogs(ctx context.Context) ([]string, error) {
	lines, err := d.orch.Logs(ctx, d.logLines)
	if err != nil {
		return nil, external("cluster logs", err)
	}
	if lines == nil {
		lines = []string{}
	}
	return lines, nil
}

// TestConnection runs the SQL connectivity probe.
func (d *Deployer) TestConnection(ctx context.Context) (string, error) {
	out, err := d.orch.Probe(ctx)
	if err != nil {
		return out, external("sql probe", err)
	}
	return out, nil
}

// Runs returns recent pipeline runs, newest first.
func (d *Deployer) Runs(ctx context.Context, limit int) ([]types.Run, error) {
	if d.journal == nil {
		return []types.Run{}, nil
	}
	return d.journal.Recent(ctx, limit)
}

func external(what string, err error) error {
	var ce *orchestrator.CommandError
	if errors.As(err, &ce) {
		return &ExternalError{Step: what, Output: ce.Output, Err: err}
	}
	return err
}
