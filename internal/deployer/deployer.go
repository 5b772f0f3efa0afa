package deployer

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cubedeploy/internal/modelset"
	"cubedeploy/internal/orchestrator"
	"cubedeploy/internal/validate"
	"cubedeploy/pkg/types"
)

// Journal records pipeline runs. *journal.Journal implements it.
type Journal interface {
	Begin(ctx context.Context, op, model string) (int64, error)
	Step(ctx context.Context, id int64, step string) error
	Reopen(ctx context.Context, id int64) error
	Interrupt(ctx context.Context) (int64, error)
	Finish(ctx context.Context, id int64, cause error) error
	Get(ctx context.Context, id int64) (types.Run, error)
	Recent(ctx context.Context, limit int) ([]types.Run, error)
}

// Deployer coordinates the model manifest and the cluster rollout.
type Deployer struct {
	// serializes Deploy, Delete and Resume
	mu sync.Mutex

	store   *modelset.Store
	orch    orchestrator.Orchestrator
	journal Journal
	pub     EventPublisher
	log     zerolog.Logger

	mountDir       string
	volume         string
	rolloutTimeout time.Duration
	logLines       int
}

// Ready reports whether the manifest can be read.
func (d *Deployer) Ready() bool { return d.store.Readable() }

// List reloads the manifest from disk and returns every model.
func (d *Deployer) List(ctx context.Context) (modelset.Set, error) {
	set, err := d.store.Reload()
	if err != nil {
		return nil, err
	}
	modelsGauge.Set(float64(len(set)))
	return set, nil
}

// Get returns the text of one model. It reads the same manifest List does,
// through the store's cache when a watcher keeps it fresh.
func (d *Deployer) Get(ctx context.Context, name string) (string, error) {
	text, ok, err := d.store.Get(name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrModelNotFound(name)
	}
	return text, nil
}

// Validate runs the shallow checks on text as the body of model name. An
// empty name skips the name check.
func (d *Deployer) Validate(name, text string) error {
	if name != "" {
		if err := modelset.CheckName(name); err != nil {
			return validationError{err: err}
		}
	} else {
		name = "model"
	}
	if err := validate.Model(name, d.store.Meta().Ext, text); err != nil {
		return validationError{err: err}
	}
	return nil
}

// mountPath is where the workload sees the model file.
func (d *Deployer) mountPath(name string) string {
	return path.Join(d.mountDir, modelset.FileName(name, d.store.Meta().Ext))
}

func (d *Deployer) mountFor(name string) orchestrator.Mount {
	return orchestrator.Mount{
		Volume:    d.volume,
		MountPath: d.mountPath(name),
		SubPath:   modelset.FileName(name, d.store.Meta().Ext),
	}
}
