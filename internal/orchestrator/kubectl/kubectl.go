// Package kubectl implements the orchestrator interfaces by invoking the
// kubectl CLI, one subprocess per step.
package kubectl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	kubeapps "k8s.io/api/apps/v1"
	kubecore "k8s.io/api/core/v1"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"

	"cubedeploy/internal/orchestrator"
	"cubedeploy/pkg/types"
)

// Options configures the kubectl backend.
type Options struct {
	Binary     string
	Kubeconfig string
	Context    string
	Target     orchestrator.Target
	Runner     Runner
	Log        zerolog.Logger
}

// Backend drives the cluster through kubectl.
type Backend struct {
	bin    string
	global []string
	t      orchestrator.Target
	runner Runner
	log    zerolog.Logger
}

var _ orchestrator.Orchestrator = (*Backend)(nil)

// New constructs a kubectl backend.
func New(o Options) *Backend {
	bin := o.Binary
	if bin == "" {
		bin = "kubectl"
	}
	var global []string
	if o.Kubeconfig != "" {
		global = append(global, "--kubeconfig", o.Kubeconfig)
	}
	if o.Context != "" {
		global = append(global, "--context", o.Context)
	}
	if o.Target.Namespace != "" {
		global = append(global, "--namespace", o.Target.Namespace)
	}
	r := o.Runner
	if r == nil {
		r = ExecRunner{}
	}
	return &Backend{bin: bin, global: global, t: o.Target, runner: r, log: o.Log}
}

// run invokes kubectl and returns trimmed combined output plus raw stdout.
func (b *Backend) run(ctx context.Context, args ...string) (string, []byte, error) {
	full := append(append([]string(nil), b.global...), args...)
	start := time.Now()
	stdout, stderr, err := b.runner.Run(ctx, Cmd{Path: b.bin, Args: full})
	out := strings.TrimSpace(strings.TrimSpace(string(stdout)) + "\n" + strings.TrimSpace(string(stderr)))
	ev := b.log.Debug().Strs("args", args).Dur("dur", time.Since(start))
	if err != nil {
		ev.Err(err).Msg("kubectl failed")
		if orchestrator.IsUnavailable(err) {
			return out, stdout, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, stdout, &orchestrator.CommandError{Args: append([]string{b.bin}, args...), Output: out, Err: ctxErr}
		}
		return out, stdout, &orchestrator.CommandError{Args: append([]string{b.bin}, args...), Output: out, Err: err}
	}
	ev.Msg("kubectl ok")
	return out, stdout, nil
}

func (b *Backend) deploymentRef() string { return "deployment/" + b.t.Deployment }

// Apply runs kubectl apply -f path.
func (b *Backend) Apply(ctx context.Context, path string) (string, error) {
	out, _, err := b.run(ctx, "apply", "-f", path)
	return out, err
}

// Restart runs kubectl rollout restart.
func (b *Backend) Restart(ctx context.Context) (string, error) {
	out, _, err := b.run(ctx, "rollout", "restart", b.deploymentRef())
	return out, err
}

func (b *Backend) getDeployment(ctx context.Context) (*kubeapps.Deployment, error) {
	_, raw, err := b.run(ctx, "get", "deployment", b.t.Deployment, "-o", "json")
	if err != nil {
		return nil, err
	}
	var d kubeapps.Deployment
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode deployment %s: %w", b.t.Deployment, err)
	}
	return &d, nil
}

func (b *Backend) listPods(ctx context.Context, selector string) ([]kubecore.Pod, error) {
	_, raw, err := b.run(ctx, "get", "pods", "-l", selector, "-o", "json")
	if err != nil {
		return nil, err
	}
	var list kubecore.PodList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode pods: %w", err)
	}
	return list.Items, nil
}

// Mounts reads the deployment and returns the target container's mounts.
func (b *Backend) Mounts(ctx context.Context) ([]orchestrator.Mount, error) {
	d, err := b.getDeployment(ctx)
	if err != nil {
		return nil, err
	}
	ci, err := orchestrator.ContainerIndex(d, b.t.Container)
	if err != nil {
		return nil, err
	}
	return orchestrator.MountsOf(d.Spec.Template.Spec.Containers[ci]), nil
}

// AddMount patches the deployment with a JSON patch appending m.
func (b *Backend) AddMount(ctx context.Context, m orchestrator.Mount, configMap string) (string, error) {
	d, err := b.getDeployment(ctx)
	if err != nil {
		return "", err
	}
	ci, err := orchestrator.ContainerIndex(d, b.t.Container)
	if err != nil {
		return "", err
	}
	ops := addMountOps(d, ci, m, configMap)
	return b.patch(ctx, ops)
}

// RemoveMount patches the deployment to drop the mount at mountPath. The
// patch carries a test op on the mount's path, so the API server rejects it
// if the list shifted since it was read.
func (b *Backend) RemoveMount(ctx context.Context, mountPath string) (string, error) {
	d, err := b.getDeployment(ctx)
	if err != nil {
		return "", err
	}
	ci, err := orchestrator.ContainerIndex(d, b.t.Container)
	if err != nil {
		return "", err
	}
	idx := orchestrator.MountIndex(orchestrator.MountsOf(d.Spec.Template.Spec.Containers[ci]), mountPath)
	if idx < 0 {
		return "", nil
	}
	return b.patch(ctx, removeMountOps(ci, idx, mountPath))
}

func (b *Backend) patch(ctx context.Context, ops []patchOp) (string, error) {
	body, err := json.Marshal(ops)
	if err != nil {
		return "", fmt.Errorf("encode patch: %w", err)
	}
	out, _, err := b.run(ctx, "patch", b.deploymentRef(), "--type=json", "-p", string(body))
	return out, err
}

// WaitRollout runs kubectl rollout status with the given timeout.
func (b *Backend) WaitRollout(ctx context.Context, timeout time.Duration) (string, error) {
	// Give kubectl a moment past its own timeout so it reports, not us.
	cctx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()
	out, _, err := b.run(cctx, "rollout", "status", b.deploymentRef(), "--timeout="+timeout.String())
	if err != nil {
		if strings.Contains(out, "timed out") || errors.Is(err, context.DeadlineExceeded) {
			return out, fmt.Errorf("%w: %v", orchestrator.ErrRolloutTimeout, err)
		}
		return out, err
	}
	return out, nil
}

// Status summarizes the deployment and its pods.
func (b *Backend) Status(ctx context.Context) (types.ClusterStatus, error) {
	d, err := b.getDeployment(ctx)
	if err != nil {
		return types.ClusterStatus{}, err
	}
	if d.Namespace == "" {
		d.Namespace = b.t.Namespace
	}
	var pods []kubecore.Pod
	if d.Spec.Selector != nil {
		sel, err := kubeapimeta.LabelSelectorAsSelector(d.Spec.Selector)
		if err != nil {
			return types.ClusterStatus{}, fmt.Errorf("deployment selector: %w", err)
		}
		if pods, err = b.listPods(ctx, sel.String()); err != nil {
			return types.ClusterStatus{}, err
		}
	}
	return orchestrator.Summarize(d, pods), nil
}

// Logs returns the last lines of the deployment's logs.
func (b *Backend) Logs(ctx context.Context, lines int) ([]string, error) {
	args := []string{"logs", b.deploymentRef(), fmt.Sprintf("--tail=%d", lines)}
	if b.t.Container != "" {
		args = append(args, "-c", b.t.Container)
	}
	_, raw, err := b.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return splitLines(string(raw)), nil
}

// Probe execs the configured command in a pod matching the probe selector.
func (b *Backend) Probe(ctx context.Context) (string, error) {
	if len(b.t.ProbeCommand) == 0 {
		return "", fmt.Errorf("no probe command configured")
	}
	pods, err := b.listPods(ctx, b.t.ProbeSelector)
	if err != nil {
		return "", err
	}
	pod, ok := orchestrator.PickPod(pods)
	if !ok {
		return "", orchestrator.ErrUnavailable("no pod matches %q", b.t.ProbeSelector)
	}
	args := []string{"exec", pod.Name}
	if b.t.ProbeContainer != "" {
		args = append(args, "-c", b.t.ProbeContainer)
	}
	args = append(args, "--")
	args = append(args, b.t.ProbeCommand...)
	out, _, err := b.run(ctx, args...)
	return out, err
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}
