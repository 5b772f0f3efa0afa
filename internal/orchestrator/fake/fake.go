// Package fake provides an in-memory orchestrator for tests. It keeps the
// workload's mount list, records every call in order, and fails chosen
// operations on demand.
package fake

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"cubedeploy/internal/orchestrator"
	"cubedeploy/pkg/types"
)

// Op names used in Calls and Fail.
const (
	OpApply       = "apply"
	OpRestart     = "restart"
	OpMounts      = "mounts"
	OpAddMount    = "addMount"
	OpRemoveMount = "removeMount"
	OpWaitRollout = "waitRollout"
	OpStatus      = "status"
	OpLogs        = "logs"
	OpProbe       = "probe"
)

// Orchestrator is a scripted orchestrator.Orchestrator.
type Orchestrator struct {
	mu sync.Mutex

	calls   []string
	mounts  []orchestrator.Mount
	applied [][]byte
	fail    map[string]error

	// RolloutPending makes WaitRollout report a timeout.
	RolloutPending bool
	StatusValue    types.ClusterStatus
	LogLines       []string
	ProbeOutput    string
}

var _ orchestrator.Orchestrator = (*Orchestrator)(nil)

// New returns a fake whose workload has the given mounts.
func New(mounts ...orchestrator.Mount) *Orchestrator {
	return &Orchestrator{mounts: append([]orchestrator.Mount(nil), mounts...), fail: map[string]error{}}
}

// Fail makes op return err until cleared with Fail(op, nil).
func (f *Orchestrator) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

// Calls returns the operations invoked so far, in order.
func (f *Orchestrator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// ResetCalls clears the call log.
func (f *Orchestrator) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// MountPaths returns the current mount paths.
func (f *Orchestrator) MountPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.mounts))
	for _, m := range f.mounts {
		out = append(out, m.MountPath)
	}
	return out
}

// Applied returns the manifest contents passed to Apply, oldest first.
func (f *Orchestrator) Applied() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.applied...)
}

func (f *Orchestrator) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	return f.fail[op]
}

// CommandFailure builds the error a failing CLI step would return.
func CommandFailure(output string) error {
	return &orchestrator.CommandError{Args: []string{"kubectl"}, Output: output, Err: fmt.Errorf("exit status 1")}
}

func (f *Orchestrator) Apply(ctx context.Context, path string) (string, error) {
	if err := f.enter(OpApply); err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", CommandFailure(fmt.Sprintf("error: the path %q does not exist", path))
	}
	f.mu.Lock()
	f.applied = append(f.applied, b)
	f.mu.Unlock()
	return "configmap/cube-models configured", nil
}

func (f *Orchestrator) Restart(ctx context.Context) (string, error) {
	if err := f.enter(OpRestart); err != nil {
		return "", err
	}
	return "deployment.apps/cube restarted", nil
}

func (f *Orchestrator) Mounts(ctx context.Context) ([]orchestrator.Mount, error) {
	if err := f.enter(OpMounts); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]orchestrator.Mount(nil), f.mounts...), nil
}

func (f *Orchestrator) AddMount(ctx context.Context, m orchestrator.Mount, configMap string) (string, error) {
	if err := f.enter(OpAddMount); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mounts = append(f.mounts, m)
	return "deployment.apps/cube patched", nil
}

func (f *Orchestrator) RemoveMount(ctx context.Context, mountPath string) (string, error) {
	if err := f.enter(OpRemoveMount); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := orchestrator.MountIndex(f.mounts, mountPath)
	if idx < 0 {
		return "", nil
	}
	f.mounts = append(f.mounts[:idx:idx], f.mounts[idx+1:]...)
	return "deployment.apps/cube patched", nil
}

func (f *Orchestrator) WaitRollout(ctx context.Context, timeout time.Duration) (string, error) {
	if err := f.enter(OpWaitRollout); err != nil {
		return "", err
	}
	f.mu.Lock()
	pending := f.RolloutPending
	f.mu.Unlock()
	if pending {
		return "Waiting for deployment \"cube\" rollout to finish", fmt.Errorf("%w: after %s", orchestrator.ErrRolloutTimeout, timeout)
	}
	return "deployment \"cube\" successfully rolled out", nil
}

func (f *Orchestrator) Status(ctx context.Context) (types.ClusterStatus, error) {
	if err := f.enter(OpStatus); err != nil {
		return types.ClusterStatus{}, err
	}
	return f.StatusValue, nil
}

func (f *Orchestrator) Logs(ctx context.Context, lines int) ([]string, error) {
	if err := f.enter(OpLogs); err != nil {
		return nil, err
	}
	out := f.LogLines
	if len(out) > lines {
		out = out[len(out)-lines:]
	}
	return append([]string{}, out...), nil
}

func (f *Orchestrator) Probe(ctx context.Context) (string, error) {
	if err := f.enter(OpProbe); err != nil {
		return "", err
	}
	return f.ProbeOutput, nil
}
