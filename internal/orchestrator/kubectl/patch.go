package kubectl

import (
	"fmt"

	kubeapps "k8s.io/api/apps/v1"
	kubecore "k8s.io/api/core/v1"

	"cubedeploy/internal/orchestrator"
)

// patchOp is one RFC 6902 JSON patch operation.
type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

func addMountOps(d *kubeapps.Deployment, ci int, m orchestrator.Mount, configMap string) []patchOp {
	var ops []patchOp
	spec := d.Spec.Template.Spec
	if !orchestrator.HasVolume(d, m.Volume) {
		vol := orchestrator.ConfigMapVolume(m.Volume, configMap)
		if len(spec.Volumes) == 0 {
			ops = append(ops, patchOp{Op: "add", Path: "/spec/template/spec/volumes", Value: []kubecore.Volume{vol}})
		} else {
			ops = append(ops, patchOp{Op: "add", Path: "/spec/template/spec/volumes/-", Value: vol})
		}
	}
	mountsPath := fmt.Sprintf("/spec/template/spec/containers/%d/volumeMounts", ci)
	if len(spec.Containers[ci].VolumeMounts) == 0 {
		ops = append(ops, patchOp{Op: "add", Path: mountsPath, Value: []kubecore.VolumeMount{m.VolumeMount()}})
	} else {
		ops = append(ops, patchOp{Op: "add", Path: mountsPath + "/-", Value: m.VolumeMount()})
	}
	return ops
}

func removeMountOps(ci, idx int, mountPath string) []patchOp {
	p := fmt.Sprintf("/spec/template/spec/containers/%d/volumeMounts/%d", ci, idx)
	return []patchOp{
		{Op: "test", Path: p + "/mountPath", Value: mountPath},
		{Op: "remove", Path: p},
	}
}
