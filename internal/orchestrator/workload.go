package orchestrator

import (
	"fmt"
	"sort"

	kubeapps "k8s.io/api/apps/v1"
	kubecore "k8s.io/api/core/v1"

	"cubedeploy/pkg/types"
)

// ContainerIndex returns the index of the named container in the pod
// template, or of the first container when name is empty.
func ContainerIndex(d *kubeapps.Deployment, name string) (int, error) {
	cs := d.Spec.Template.Spec.Containers
	if len(cs) == 0 {
		return -1, fmt.Errorf("deployment %s has no containers", d.Name)
	}
	if name == "" {
		return 0, nil
	}
	for i, c := range cs {
		if c.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("deployment %s has no container %q", d.Name, name)
}

// MountsOf converts the container's volume mounts.
func MountsOf(c kubecore.Container) []Mount {
	out := make([]Mount, 0, len(c.VolumeMounts))
	for _, vm := range c.VolumeMounts {
		out = append(out, Mount{Volume: vm.Name, MountPath: vm.MountPath, SubPath: vm.SubPath, ReadOnly: vm.ReadOnly})
	}
	return out
}

// VolumeMount converts m into the API type.
func (m Mount) VolumeMount() kubecore.VolumeMount {
	return kubecore.VolumeMount{Name: m.Volume, MountPath: m.MountPath, SubPath: m.SubPath, ReadOnly: m.ReadOnly}
}

// HasMountPath reports whether any mount is at path.
func HasMountPath(ms []Mount, path string) bool {
	return MountIndex(ms, path) >= 0
}

// MountIndex returns the position of the mount at path, or -1.
func MountIndex(ms []Mount, path string) int {
	for i, m := range ms {
		if m.MountPath == path {
			return i
		}
	}
	return -1
}

// HasVolume reports whether the pod template declares the named volume.
func HasVolume(d *kubeapps.Deployment, name string) bool {
	for _, v := range d.Spec.Template.Spec.Volumes {
		if v.Name == name {
			return true
		}
	}
	return false
}

// ConfigMapVolume is the pod volume exposing the models ConfigMap.
func ConfigMapVolume(name, configMap string) kubecore.Volume {
	return kubecore.Volume{
		Name: name,
		VolumeSource: kubecore.VolumeSource{
			ConfigMap: &kubecore.ConfigMapVolumeSource{
				LocalObjectReference: kubecore.LocalObjectReference{Name: configMap},
			},
		},
	}
}

// RolloutComplete mirrors the conditions kubectl rollout status waits for.
func RolloutComplete(d *kubeapps.Deployment) (bool, string) {
	if d.Generation > d.Status.ObservedGeneration {
		return false, "waiting for deployment spec update to be observed"
	}
	want := int32(1)
	if d.Spec.Replicas != nil {
		want = *d.Spec.Replicas
	}
	st := d.Status
	switch {
	case st.UpdatedReplicas < want:
		return false, fmt.Sprintf("%d of %d updated replicas are available", st.UpdatedReplicas, want)
	case st.Replicas > st.UpdatedReplicas:
		return false, fmt.Sprintf("%d old replicas are pending termination", st.Replicas-st.UpdatedReplicas)
	case st.AvailableReplicas < st.UpdatedReplicas:
		return false, fmt.Sprintf("%d of %d updated replicas are available", st.AvailableReplicas, st.UpdatedReplicas)
	}
	return true, fmt.Sprintf("deployment %q successfully rolled out", d.Name)
}

// Summarize reduces a deployment and its pods to the status payload.
func Summarize(d *kubeapps.Deployment, pods []kubecore.Pod) types.ClusterStatus {
	st := types.ClusterStatus{
		Namespace:         d.Namespace,
		Deployment:        d.Name,
		ReadyReplicas:     d.Status.ReadyReplicas,
		UpdatedReplicas:   d.Status.UpdatedReplicas,
		AvailableReplicas: d.Status.AvailableReplicas,
		Pods:              make([]types.PodStatus, 0, len(pods)),
	}
	if d.Spec.Replicas != nil {
		st.Replicas = *d.Spec.Replicas
	}
	for _, p := range pods {
		ps := types.PodStatus{Name: p.Name, Phase: string(p.Status.Phase)}
		for _, c := range p.Status.Conditions {
			if c.Type == kubecore.PodReady {
				ps.Ready = c.Status == kubecore.ConditionTrue
			}
		}
		for _, cs := range p.Status.ContainerStatuses {
			ps.Restarts += cs.RestartCount
		}
		st.Pods = append(st.Pods, ps)
	}
	sort.Slice(st.Pods, func(i, j int) bool { return st.Pods[i].Name < st.Pods[j].Name })
	return st
}

// PickPod chooses the pod to read logs from or exec into: the newest running
// pod, else the newest pod of any phase.
func PickPod(pods []kubecore.Pod) (kubecore.Pod, bool) {
	if len(pods) == 0 {
		return kubecore.Pod{}, false
	}
	sorted := append([]kubecore.Pod(nil), pods...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri := sorted[i].Status.Phase == kubecore.PodRunning
		rj := sorted[j].Status.Phase == kubecore.PodRunning
		if ri != rj {
			return ri
		}
		return sorted[j].CreationTimestamp.Before(&sorted[i].CreationTimestamp)
	})
	return sorted[0], true
}
