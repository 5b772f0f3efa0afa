package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"cubedeploy/internal/common/fsutil"
	"cubedeploy/internal/config"
	"cubedeploy/internal/deployer"
	"cubedeploy/internal/journal"
	"cubedeploy/internal/modelset"
	"cubedeploy/internal/orchestrator"
	"cubedeploy/internal/orchestrator/clientgo"
	"cubedeploy/internal/orchestrator/kubectl"
	"cubedeploy/internal/registry"
)

// app is the wired service graph shared by serve and the local subcommands.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	store    *modelset.Store
	journal  *journal.Journal
	deployer *deployer.Deployer
}

func newApp(cfg config.Config, log zerolog.Logger) (*app, error) {
	docPath, err := fsutil.ExpandHome(cfg.DocumentPath)
	if err != nil {
		return nil, err
	}
	store := modelset.NewStore(docPath,
		modelset.Meta{Name: cfg.ConfigMap, Namespace: cfg.Namespace, Ext: cfg.Extension},
		log.With().Str("component", "store").Logger())

	orch, err := newOrchestrator(cfg, log.With().Str("component", "orchestrator").Logger())
	if err != nil {
		return nil, err
	}

	jpath, err := fsutil.ExpandHome(cfg.JournalPath)
	if err != nil {
		return nil, err
	}
	j, err := journal.Open(jpath)
	if err != nil {
		return nil, err
	}

	dlog := log.With().Str("component", "deployer").Logger()
	d := deployer.New(deployer.Config{
		Store:          store,
		Orchestrator:   orch,
		Journal:        j,
		Logger:         &dlog,
		MountDir:       cfg.MountDir,
		VolumeName:     cfg.VolumeName,
		RolloutTimeout: cfg.RolloutTimeout.D(),
		LogLines:       cfg.LogLines,
	})
	return &app{cfg: cfg, log: log, store: store, journal: j, deployer: d}, nil
}

func (a *app) Close() error { return a.journal.Close() }

// seed merges model files from dir into the manifest without touching the
// cluster. Existing models are kept.
func (a *app) seed(dir string) ([]string, []string, error) {
	set, skipped, err := registry.LoadDir(dir, a.cfg.Extension)
	if err != nil {
		return nil, nil, err
	}
	added, err := a.store.Merge(set)
	if err != nil {
		return nil, skipped, err
	}
	return added, skipped, nil
}

func targetFor(cfg config.Config) orchestrator.Target {
	return orchestrator.Target{
		Namespace:      cfg.Namespace,
		Deployment:     cfg.Deployment,
		Container:      cfg.Container,
		VolumeName:     cfg.VolumeName,
		ProbeSelector:  cfg.ProbeSelector,
		ProbeContainer: cfg.ProbeContainer,
		ProbeCommand:   cfg.ProbeCommand,
	}
}

func newOrchestrator(cfg config.Config, log zerolog.Logger) (orchestrator.Orchestrator, error) {
	kubeconfig, err := fsutil.ExpandHome(cfg.Kubeconfig)
	if err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case config.BackendClientGo:
		rc, cs, err := clientgo.Connect(kubeconfig, cfg.Context)
		if err != nil {
			return nil, err
		}
		return clientgo.New(clientgo.Options{Client: cs, Rest: rc, Target: targetFor(cfg), Log: log}), nil
	case config.BackendKubectl:
		return kubectl.New(kubectl.Options{
			Binary:     cfg.Kubectl,
			Kubeconfig: kubeconfig,
			Context:    cfg.Context,
			Target:     targetFor(cfg),
			Log:        log,
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
