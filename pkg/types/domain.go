package types

import "time"

// Step is one executed external command of a deploy or delete pipeline.
type Step struct {
	// Pipeline step label (apply, restart, mount, unmount, status).
	// example: apply
	Step string `json:"step" example:"apply"`
	// Captured output of the external command.
	// example: configmap/cube-models configured
	Output string `json:"output" example:"configmap/cube-models configured"`
	// Whether the command exited without error.
	OK bool `json:"ok" example:"true"`
}

// DeployResult is the outcome of a Deploy, Delete or Resume call.
type DeployResult struct {
	RunID          int64  `json:"run_id,omitempty"`
	Steps          []Step `json:"steps"`
	RolloutPending bool   `json:"rollout_pending,omitempty"`
}

// PodStatus is the reduced view of one workload pod.
type PodStatus struct {
	Name     string `json:"name" example:"cube-7d9c6b8f5-abcde"`
	Phase    string `json:"phase" example:"Running"`
	Ready    bool   `json:"ready" example:"true"`
	Restarts int32  `json:"restarts" example:"0"`
}

// ClusterStatus summarizes the semantic-layer workload.
type ClusterStatus struct {
	Namespace         string      `json:"namespace" example:"default"`
	Deployment        string      `json:"deployment" example:"cube"`
	Replicas          int32       `json:"replicas" example:"1"`
	ReadyReplicas     int32       `json:"ready_replicas" example:"1"`
	UpdatedReplicas   int32       `json:"updated_replicas" example:"1"`
	AvailableReplicas int32       `json:"available_replicas" example:"1"`
	Pods              []PodStatus `json:"pods"`
}

// Run is one journaled pipeline execution.
type Run struct {
	ID        int64     `json:"id"`
	Op        string    `json:"op" example:"deploy"`
	Model     string    `json:"model" example:"Widget"`
	LastStep  string    `json:"last_step,omitempty" example:"restart"`
	Status    string    `json:"status" example:"failed"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Run status values.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)
