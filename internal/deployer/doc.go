// Package deployer coordinates model deployments: it keeps the models
// manifest, validates model text, and drives the orchestrator through the
// deploy and delete pipelines. It is structured into small files by concern:
//
//   - deployer.go: Deployer type, constructor, List/Get/Validate.
//   - pipeline.go: Deploy, Delete and Resume; the staged pipeline and its
//     journaling.
//   - cluster.go: read-only passthroughs (status, logs, SQL probe) and runs.
//   - errors.go: error types and helpers (IsNotFound, IsValidation, ...).
//   - events.go, eventpub_memory.go: lifecycle events.
//   - metrics.go: Prometheus collectors.
//
// Deploy, Delete and Resume are serialized by one mutex. Each pipeline step
// runs only after the previous external command exited, and a failure leaves
// earlier steps committed; the journal records the last completed step so the
// run can be resumed.
package deployer
