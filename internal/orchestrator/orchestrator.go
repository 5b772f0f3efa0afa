// Package orchestrator defines the narrow surface the deployer needs from the
// cluster: apply the models manifest, restart the workload, inspect and edit
// its volume mounts, and wait for the rollout. Backends live in subpackages:
// kubectl shells out to the CLI, clientgo talks to the API server directly.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cubedeploy/pkg/types"
)

// Mount is one volume mount of the workload container.
type Mount struct {
	Volume    string `json:"name"`
	MountPath string `json:"mountPath"`
	SubPath   string `json:"subPath,omitempty"`
	ReadOnly  bool   `json:"readOnly,omitempty"`
}

// ConfigStore applies the persisted manifest to the cluster.
type ConfigStore interface {
	// Apply applies the manifest file at path and returns the tool output.
	Apply(ctx context.Context, path string) (string, error)
}

// Workload is the deployment that serves the models.
type Workload interface {
	Restart(ctx context.Context) (string, error)
	// Mounts lists the volume mounts of the target container.
	Mounts(ctx context.Context) ([]Mount, error)
	// AddMount appends m to the target container, adding the backing
	// ConfigMap volume first when the pod spec lacks it.
	AddMount(ctx context.Context, m Mount, configMap string) (string, error)
	// RemoveMount removes the mount whose mountPath equals mountPath. The
	// removal is matched by value; a concurrent change to the mount list makes
	// it fail instead of removing a different mount. Removing an absent mount
	// returns ("", nil).
	RemoveMount(ctx context.Context, mountPath string) (string, error)
	// WaitRollout blocks until the rollout completes or timeout elapses. A
	// timeout is reported as an error wrapping ErrRolloutTimeout.
	WaitRollout(ctx context.Context, timeout time.Duration) (string, error)
}

// Cluster is the read-only side used by the status endpoints.
type Cluster interface {
	Status(ctx context.Context) (types.ClusterStatus, error)
	Logs(ctx context.Context, lines int) ([]string, error)
	// Probe runs the SQL connectivity probe and returns its output.
	Probe(ctx context.Context) (string, error)
}

// Orchestrator is everything the deployer drives.
type Orchestrator interface {
	ConfigStore
	Workload
	Cluster
}

// Target identifies the workload and its namespace.
type Target struct {
	Namespace  string
	Deployment string
	// Container is the container whose mounts are managed. Empty selects the
	// first container of the pod template.
	Container string
	// VolumeName is the pod volume backed by the models ConfigMap.
	VolumeName string
	// ProbeSelector picks the pod the connectivity probe runs in.
	ProbeSelector  string
	ProbeContainer string
	ProbeCommand   []string
}

// ErrRolloutTimeout marks a rollout wait that ran out of time.
var ErrRolloutTimeout = errors.New("rollout did not complete in time")

// IsRolloutTimeout reports whether err is a rollout wait timeout.
func IsRolloutTimeout(err error) bool { return errors.Is(err, ErrRolloutTimeout) }

// CommandError is returned when an external command exits unsuccessfully.
// Output is the tool's combined output, surfaced verbatim to callers.
type CommandError struct {
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s: %v", strings.Join(e.Args, " "), e.Err)
	}
	return out
}

func (e *CommandError) Unwrap() error { return e.Err }

// unavailableError signals that the backend cannot reach its dependency at all
// (missing binary, no cluster configuration).
type unavailableError struct{ msg string }

func (e unavailableError) Error() string { return e.msg }

// ErrUnavailable constructs a dependency-unavailable error.
func ErrUnavailable(format string, args ...any) error {
	return unavailableError{msg: fmt.Sprintf(format, args...)}
}

// IsUnavailable reports whether err indicates a missing external dependency.
func IsUnavailable(err error) bool {
	var u unavailableError
	return errors.As(err, &u)
}
