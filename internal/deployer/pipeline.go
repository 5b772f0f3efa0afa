package deployer

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"cubedeploy/internal/journal"
	"cubedeploy/internal/modelset"
	"cubedeploy/internal/orchestrator"
	"cubedeploy/pkg/types"
)

// Step labels reported in results.
const (
	StepApply   = "apply"
	StepRestart = "restart"
	StepMount   = "mount"
	StepUnmount = "unmount"
	StepStatus  = "status"
)

// stagePersist rewrites the manifest. It is journaled but never reported as
// a step since it runs no external command.
const stagePersist = "persist"

var (
	deployStages = []string{stagePersist, StepApply, StepRestart, StepMount, StepStatus}
	deleteStages = []string{stagePersist, StepApply, StepUnmount, StepRestart}
)

// stageFunc executes one stage. report says whether an external command ran
// and must appear in the result.
type stageFunc func(ctx context.Context, r *run, stage string) (out string, report bool, err error)

type run struct {
	id    int64
	op    string
	model string
	res   types.DeployResult
	log   zerolog.Logger
}

// Deploy stores text under name, applies the manifest, restarts the workload,
// registers the model's mount when it is new, and waits for the rollout. A
// rollout that does not finish in time is reported with RolloutPending and is
// not an error.
func (d *Deployer) Deploy(ctx context.Context, name, text string) (types.DeployResult, error) {
	if err := modelset.CheckName(name); err != nil {
		return types.DeployResult{Steps: []types.Step{}}, validationError{err: err}
	}
	if err := d.Validate(name, text); err != nil {
		return types.DeployResult{Steps: []types.Step{}}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.begin(ctx, journal.OpDeploy, name)
	return d.execute(ctx, r, deployStages, 0, d.deployStage(text))
}

// Delete removes name from the manifest, applies it, drops the model's mount
// when one is registered, and restarts the workload. Deleting an absent model
// is not an error.
func (d *Deployer) Delete(ctx context.Context, name string) (types.DeployResult, error) {
	if err := modelset.CheckName(name); err != nil {
		return types.DeployResult{Steps: []types.Step{}}, validationError{err: err}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.begin(ctx, journal.OpDelete, name)
	return d.execute(ctx, r, deleteStages, 0, d.deleteStage)
}

// MarkInterrupted fails every run the journal still shows as running. Such
// runs belong to a process that exited mid-pipeline; once marked they can
// be resumed.
func (d *Deployer) MarkInterrupted(ctx context.Context) (int64, error) {
	if d.journal == nil {
		return 0, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.journal.Interrupt(ctx)
}

// Resume continues a failed run after its last completed stage. The model
// text comes from the manifest as it is now.
func (d *Deployer) Resume(ctx context.Context, id int64) (types.DeployResult, error) {
	empty := types.DeployResult{RunID: id, Steps: []types.Step{}}
	if d.journal == nil {
		return empty, ErrDependencyUnavailable("run journal is not configured")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.journal.Get(ctx, id)
	if errors.Is(err, journal.ErrNotFound) {
		return empty, notFoundError{what: fmt.Sprintf("run %d", id)}
	}
	if err != nil {
		return empty, err
	}
	if rec.Status != types.RunFailed {
		return empty, validationError{err: fmt.Errorf("run %d is %s; only failed runs can be resumed", id, rec.Status)}
	}

	var (
		stages []string
		fn     stageFunc
	)
	switch rec.Op {
	case journal.OpDeploy:
		if rec.LastStep == "" {
			return empty, validationError{err: fmt.Errorf("run %d failed before %s was stored; deploy it again", id, rec.Model)}
		}
		text, ok, err := d.store.Get(rec.Model)
		if err != nil {
			return empty, err
		}
		if !ok {
			return empty, validationError{err: fmt.Errorf("model %s was removed after run %d", rec.Model, id)}
		}
		stages, fn = deployStages, d.deployStage(text)
	case journal.OpDelete:
		stages, fn = deleteStages, d.deleteStage
	default:
		return empty, fmt.Errorf("run %d has unknown op %q", id, rec.Op)
	}

	start := 0
	if rec.LastStep != "" {
		start = slices.Index(stages, rec.LastStep) + 1
		if start == 0 {
			return empty, fmt.Errorf("run %d has unknown step %q", id, rec.LastStep)
		}
	}
	if err := d.journal.Reopen(ctx, id); err != nil {
		return empty, err
	}
	r := &run{id: id, op: rec.Op, model: rec.Model, res: empty, log: d.runLogger(id, rec.Op, rec.Model)}
	r.log.Info().Str("after", rec.LastStep).Msg("resuming run")
	return d.execute(ctx, r, stages, start, fn)
}

func (d *Deployer) runLogger(id int64, op, model string) zerolog.Logger {
	return d.log.With().Int64("run", id).Str("op", op).Str("model", model).Logger()
}

// begin opens a journal entry. A journal failure is logged and the run
// proceeds unjournaled.
func (d *Deployer) begin(ctx context.Context, op, name string) *run {
	r := &run{op: op, model: name, res: types.DeployResult{Steps: []types.Step{}}}
	if d.journal != nil {
		id, err := d.journal.Begin(ctx, op, name)
		if err != nil {
			d.log.Warn().Err(err).Str("model", name).Msg("journal begin failed")
		} else {
			r.id = id
			r.res.RunID = id
		}
	}
	r.log = d.runLogger(r.id, op, name)
	d.pub.Publish(Event{Name: EventRunStarted, Model: name, Fields: map[string]any{"op": op, "run": r.id}})
	return r
}

func (d *Deployer) execute(ctx context.Context, r *run, stages []string, start int, fn stageFunc) (types.DeployResult, error) {
	for _, stage := range stages[start:] {
		out, report, err := fn(ctx, r, stage)
		pending := orchestrator.IsRolloutTimeout(err)
		if pending {
			r.res.RolloutPending = true
			err = nil
		}
		if report {
			if out == "" && err != nil {
				out = err.Error()
			}
			ok := err == nil && !pending
			r.res.Steps = append(r.res.Steps, types.Step{Step: stage, Output: out, OK: ok})
			observeStep(stage, ok)
		}
		if err != nil {
			return r.res, d.fail(ctx, r, stage, out, err)
		}
		d.stageDone(ctx, r, stage, pending)
	}
	d.finish(ctx, r, nil)
	r.log.Info().Int("steps", len(r.res.Steps)).Bool("rollout_pending", r.res.RolloutPending).Msg(r.op + " complete")
	return r.res, nil
}

func (d *Deployer) stageDone(ctx context.Context, r *run, stage string, pending bool) {
	if d.journal != nil && r.id != 0 {
		if err := d.journal.Step(ctx, r.id, stage); err != nil {
			r.log.Warn().Err(err).Str("step", stage).Msg("journal step failed")
		}
	}
	ev := r.log.Debug().Str("step", stage)
	if pending {
		ev = r.log.Warn().Str("step", stage)
	}
	ev.Bool("rollout_pending", pending).Msg("step done")
	d.pub.Publish(Event{Name: EventStepDone, Model: r.model, Fields: map[string]any{"step": stage, "run": r.id}})
}

// fail records the failed stage and wraps command failures as ExternalError.
func (d *Deployer) fail(ctx context.Context, r *run, stage, out string, err error) error {
	var ce *orchestrator.CommandError
	if errors.As(err, &ce) {
		err = &ExternalError{Step: stage, Output: ce.Output, Err: err}
	}
	r.log.Error().Err(err).Str("step", stage).Msg(r.op + " failed")
	d.pub.Publish(Event{Name: EventStepFailed, Model: r.model, Fields: map[string]any{"step": stage, "run": r.id, "error": err.Error()}})
	d.finish(ctx, r, err)
	return err
}

func (d *Deployer) finish(ctx context.Context, r *run, cause error) {
	if d.journal != nil && r.id != 0 {
		// record the outcome even when the caller's context is gone
		if err := d.journal.Finish(context.WithoutCancel(ctx), r.id, cause); err != nil {
			r.log.Warn().Err(err).Msg("journal finish failed")
		}
	}
	d.pub.Publish(Event{Name: EventRunFinished, Model: r.model, Fields: map[string]any{"run": r.id, "ok": cause == nil}})
}

func (d *Deployer) deployStage(text string) stageFunc {
	return func(ctx context.Context, r *run, stage string) (string, bool, error) {
		switch stage {
		case stagePersist:
			set, err := d.store.Put(r.model, text)
			if err != nil {
				return "", false, err
			}
			modelsGauge.Set(float64(len(set)))
			return "", false, nil
		case StepApply:
			out, err := d.orch.Apply(ctx, d.store.Path())
			return out, true, err
		case StepRestart:
			out, err := d.orch.Restart(ctx)
			return out, true, err
		case StepMount:
			mounts, err := d.orch.Mounts(ctx)
			if err != nil {
				return "", true, err
			}
			m := d.mountFor(r.model)
			if orchestrator.HasMountPath(mounts, m.MountPath) {
				r.log.Debug().Str("mount", m.MountPath).Msg("mount already registered")
				return "", false, nil
			}
			out, err := d.orch.AddMount(ctx, m, d.store.Meta().Name)
			return out, true, err
		case StepStatus:
			out, err := d.orch.WaitRollout(ctx, d.rolloutTimeout)
			return out, true, err
		}
		return "", false, fmt.Errorf("unknown deploy stage %q", stage)
	}
}

func (d *Deployer) deleteStage(ctx context.Context, r *run, stage string) (string, bool, error) {
	switch stage {
	case stagePersist:
		existed, err := d.store.Remove(r.model)
		if err != nil {
			return "", false, err
		}
		if !existed {
			r.log.Debug().Msg("model was not in the manifest")
		}
		if set, err := d.store.Load(); err == nil {
			modelsGauge.Set(float64(len(set)))
		}
		return "", false, nil
	case StepApply:
		out, err := d.orch.Apply(ctx, d.store.Path())
		return out, true, err
	case StepUnmount:
		mounts, err := d.orch.Mounts(ctx)
		if err != nil {
			return "", true, err
		}
		p := d.mountPath(r.model)
		if !orchestrator.HasMountPath(mounts, p) {
			return "", false, nil
		}
		out, err := d.orch.RemoveMount(ctx, p)
		return out, true, err
	case StepRestart:
		out, err := d.orch.Restart(ctx)
		return out, true, err
	}
	return "", false, fmt.Errorf("unknown delete stage %q", stage)
}
