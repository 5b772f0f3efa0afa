// Package clientgo implements the orchestrator interfaces in-process with the
// Kubernetes API client.
package clientgo

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	kubeapps "k8s.io/api/apps/v1"
	kubecore "k8s.io/api/core/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	kubetypes "k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	typedapps "k8s.io/client-go/kubernetes/typed/apps/v1"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
	"k8s.io/client-go/util/retry"

	"cubedeploy/internal/modelset"
	"cubedeploy/internal/orchestrator"
	"cubedeploy/pkg/types"
)

// restartAnnotation is the pod template annotation kubectl rollout restart sets.
const restartAnnotation = "kubectl.kubernetes.io/restartedAt"

// Options configures the client-go backend.
type Options struct {
	Client kubernetes.Interface
	// Rest is needed only for Probe (pod exec). Nil disables the probe.
	Rest   *rest.Config
	Target orchestrator.Target
	Log    zerolog.Logger
	// PollInterval is the rollout status poll period. Defaults to 2s.
	PollInterval time.Duration
	// Now stamps restarts; defaults to time.Now.
	Now func() time.Time
}

// Backend drives the cluster through the API server.
type Backend struct {
	client kubernetes.Interface
	rest   *rest.Config
	t      orchestrator.Target
	log    zerolog.Logger
	poll   time.Duration
	now    func() time.Time
}

var _ orchestrator.Orchestrator = (*Backend)(nil)

// New constructs a client-go backend.
func New(o Options) *Backend {
	b := &Backend{client: o.Client, rest: o.Rest, t: o.Target, log: o.Log, poll: o.PollInterval, now: o.Now}
	if b.poll <= 0 {
		b.poll = 2 * time.Second
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

func (b *Backend) deployments() typedapps.DeploymentInterface {
	return b.client.AppsV1().Deployments(b.t.Namespace)
}

// Apply reads the manifest at path and creates or updates its ConfigMap.
func (b *Backend) Apply(ctx context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read manifest: %w", err)
	}
	_, doc, err := modelset.Decode(raw, "")
	if err != nil {
		return "", err
	}
	want := doc.ConfigMap()
	if want.Name == "" {
		return "", fmt.Errorf("manifest %s has no metadata.name", path)
	}
	ns := want.Namespace
	if ns == "" {
		ns = b.t.Namespace
		want.Namespace = ns
	}
	cms := b.client.CoreV1().ConfigMaps(ns)
	ref := "configmap/" + want.Name

	var verb string
	err = retry.RetryOnConflict(retry.DefaultRetry, func() error {
		cur, err := cms.Get(ctx, want.Name, kubeapimeta.GetOptions{})
		if kubeerr.IsNotFound(err) {
			if _, err := cms.Create(ctx, want, kubeapimeta.CreateOptions{}); err != nil {
				return err
			}
			verb = "created"
			return nil
		}
		if err != nil {
			return err
		}
		if equalData(cur.Data, want.Data) && hasAll(cur.Labels, want.Labels) && hasAll(cur.Annotations, want.Annotations) {
			verb = "unchanged"
			return nil
		}
		next := cur.DeepCopy()
		next.Data = want.Data
		if next.Labels == nil {
			next.Labels = map[string]string{}
		}
		for k, v := range want.Labels {
			next.Labels[k] = v
		}
		if len(want.Annotations) > 0 && next.Annotations == nil {
			next.Annotations = map[string]string{}
		}
		for k, v := range want.Annotations {
			next.Annotations[k] = v
		}
		if _, err := cms.Update(ctx, next, kubeapimeta.UpdateOptions{}); err != nil {
			return err
		}
		verb = "configured"
		return nil
	})
	if err != nil {
		return "", b.fail("apply "+ref, err)
	}
	return ref + " " + verb, nil
}

func equalData(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// hasAll reports whether every key of want is set to the same value in have.
func hasAll(have, want map[string]string) bool {
	for k, v := range want {
		if w, ok := have[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// Restart stamps the pod template so the deployment rolls its pods.
func (b *Backend) Restart(ctx context.Context) (string, error) {
	patch := fmt.Sprintf(`{"spec":{"template":{"metadata":{"annotations":{%q:%q}}}}}`,
		restartAnnotation, b.now().UTC().Format(time.RFC3339))
	if _, err := b.deployments().Patch(ctx, b.t.Deployment, kubetypes.MergePatchType, []byte(patch), kubeapimeta.PatchOptions{}); err != nil {
		return "", b.fail("restart deployment/"+b.t.Deployment, err)
	}
	return "deployment.apps/" + b.t.Deployment + " restarted", nil
}

func (b *Backend) getDeployment(ctx context.Context) (*kubeapps.Deployment, error) {
	d, err := b.deployments().Get(ctx, b.t.Deployment, kubeapimeta.GetOptions{})
	if err != nil {
		return nil, b.fail("get deployment/"+b.t.Deployment, err)
	}
	return d, nil
}

// Mounts returns the target container's volume mounts.
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

// AddMount appends m to the container, adding the ConfigMap volume if absent.
func (b *Backend) AddMount(ctx context.Context, m orchestrator.Mount, configMap string) (string, error) {
	changed := false
	err := b.updateDeployment(ctx, func(d *kubeapps.Deployment, ci int) bool {
		changed = false
		spec := &d.Spec.Template.Spec
		if orchestrator.HasMountPath(orchestrator.MountsOf(spec.Containers[ci]), m.MountPath) {
			return false
		}
		if !orchestrator.HasVolume(d, m.Volume) {
			spec.Volumes = append(spec.Volumes, orchestrator.ConfigMapVolume(m.Volume, configMap))
		}
		spec.Containers[ci].VolumeMounts = append(spec.Containers[ci].VolumeMounts, m.VolumeMount())
		changed = true
		return true
	})
	if err != nil {
		return "", b.fail("mount "+m.MountPath, err)
	}
	if !changed {
		return "deployment.apps/" + b.t.Deployment + " unchanged", nil
	}
	return "deployment.apps/" + b.t.Deployment + " patched", nil
}

// RemoveMount drops the mount at mountPath. The update carries the
// resourceVersion it was computed from, so a concurrent edit conflicts and the
// removal is recomputed against the fresh mount list.
func (b *Backend) RemoveMount(ctx context.Context, mountPath string) (string, error) {
	changed := false
	err := b.updateDeployment(ctx, func(d *kubeapps.Deployment, ci int) bool {
		changed = false
		c := &d.Spec.Template.Spec.Containers[ci]
		idx := orchestrator.MountIndex(orchestrator.MountsOf(*c), mountPath)
		if idx < 0 {
			return false
		}
		c.VolumeMounts = slices.Delete(c.VolumeMounts, idx, idx+1)
		changed = true
		return true
	})
	if err != nil {
		return "", b.fail("unmount "+mountPath, err)
	}
	if !changed {
		return "", nil
	}
	return "deployment.apps/" + b.t.Deployment + " patched", nil
}

// updateDeployment applies mutate to a fresh copy of the deployment and
// writes it back, retrying on conflicts. mutate returns false to skip the
// write.
func (b *Backend) updateDeployment(ctx context.Context, mutate func(d *kubeapps.Deployment, ci int) bool) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		d, err := b.deployments().Get(ctx, b.t.Deployment, kubeapimeta.GetOptions{})
		if err != nil {
			return err
		}
		ci, err := orchestrator.ContainerIndex(d, b.t.Container)
		if err != nil {
			return err
		}
		if !mutate(d, ci) {
			return nil
		}
		_, err = b.deployments().Update(ctx, d, kubeapimeta.UpdateOptions{})
		return err
	})
}

// WaitRollout polls the deployment until it reports a complete rollout.
func (b *Backend) WaitRollout(ctx context.Context, timeout time.Duration) (string, error) {
	var last string
	err := wait.PollUntilContextTimeout(ctx, b.poll, timeout, true, func(ctx context.Context) (bool, error) {
		d, err := b.deployments().Get(ctx, b.t.Deployment, kubeapimeta.GetOptions{})
		if err != nil {
			return false, err
		}
		done, msg := orchestrator.RolloutComplete(d)
		if msg != last {
			b.log.Debug().Str("deployment", b.t.Deployment).Msg(msg)
		}
		last = msg
		return done, nil
	})
	if err != nil {
		// the caller's context ending is a failure, not a slow rollout
		if ctx.Err() != nil {
			return last, b.fail("rollout status deployment/"+b.t.Deployment, ctx.Err())
		}
		if wait.Interrupted(err) {
			return last, fmt.Errorf("%w: %s", orchestrator.ErrRolloutTimeout, last)
		}
		return last, b.fail("rollout status deployment/"+b.t.Deployment, err)
	}
	return last, nil
}

func (b *Backend) podsOf(ctx context.Context, d *kubeapps.Deployment) ([]kubecore.Pod, error) {
	if d.Spec.Selector == nil {
		return nil, nil
	}
	sel, err := kubeapimeta.LabelSelectorAsSelector(d.Spec.Selector)
	if err != nil {
		return nil, fmt.Errorf("deployment selector: %w", err)
	}
	return b.listPods(ctx, sel.String())
}

func (b *Backend) listPods(ctx context.Context, selector string) ([]kubecore.Pod, error) {
	list, err := b.client.CoreV1().Pods(b.t.Namespace).List(ctx, kubeapimeta.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, b.fail("list pods "+selector, err)
	}
	return list.Items, nil
}

// Status summarizes the deployment and its pods.
func (b *Backend) Status(ctx context.Context) (types.ClusterStatus, error) {
	d, err := b.getDeployment(ctx)
	if err != nil {
		return types.ClusterStatus{}, err
	}
	pods, err := b.podsOf(ctx, d)
	if err != nil {
		return types.ClusterStatus{}, err
	}
	return orchestrator.Summarize(d, pods), nil
}

// Logs returns the tail of one pod's logs, the way kubectl logs deployment/x
// picks a single pod.
func (b *Backend) Logs(ctx context.Context, lines int) ([]string, error) {
	d, err := b.getDeployment(ctx)
	if err != nil {
		return nil, err
	}
	pods, err := b.podsOf(ctx, d)
	if err != nil {
		return nil, err
	}
	pod, ok := orchestrator.PickPod(pods)
	if !ok {
		return []string{}, nil
	}
	tail := int64(lines)
	rc, err := b.client.CoreV1().
		Pods(b.t.Namespace).
		GetLogs(pod.Name, &kubecore.PodLogOptions{Container: b.t.Container, TailLines: &tail}).
		Stream(ctx)
	if err != nil {
		return nil, b.fail("logs "+pod.Name, err)
	}
	defer rc.Close()

	out := []string{}
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read logs: %w", err)
	}
	return out, nil
}

// Probe execs the configured command in a pod matching the probe selector.
func (b *Backend) Probe(ctx context.Context) (string, error) {
	if len(b.t.ProbeCommand) == 0 {
		return "", errors.New("no probe command configured")
	}
	if b.rest == nil {
		return "", orchestrator.ErrUnavailable("pod exec needs a REST config")
	}
	pods, err := b.listPods(ctx, b.t.ProbeSelector)
	if err != nil {
		return "", err
	}
	pod, ok := orchestrator.PickPod(pods)
	if !ok {
		return "", orchestrator.ErrUnavailable("no pod matches %q", b.t.ProbeSelector)
	}
	req := b.client.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(pod.Namespace).
		Name(pod.Name).
		SubResource("exec").
		VersionedParams(&kubecore.PodExecOptions{
			Container: b.t.ProbeContainer,
			Command:   b.t.ProbeCommand,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)
	executor, err := remotecommand.NewSPDYExecutor(b.rest, "POST", req.URL())
	if err != nil {
		return "", fmt.Errorf("exec %s: %w", pod.Name, err)
	}
	var stdout, stderr bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{Stdout: &stdout, Stderr: &stderr})
	out := strings.TrimSpace(strings.TrimSpace(stdout.String()) + "\n" + strings.TrimSpace(stderr.String()))
	if err != nil {
		return out, &orchestrator.CommandError{
			Args:   append([]string{"exec", pod.Name, "--"}, b.t.ProbeCommand...),
			Output: out,
			Err:    err,
		}
	}
	return out, nil
}

// fail wraps an API error as a command failure carrying the server message.
func (b *Backend) fail(what string, err error) error {
	b.log.Debug().Err(err).Str("op", what).Msg("kubernetes api call failed")
	return &orchestrator.CommandError{Args: strings.Fields(what), Output: err.Error(), Err: err}
}
