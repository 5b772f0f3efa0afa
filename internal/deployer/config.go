package deployer

import (
	"time"

	"github.com/rs/zerolog"

	"cubedeploy/internal/modelset"
	"cubedeploy/internal/orchestrator"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultRolloutTimeout = 120 * time.Second
	defaultLogLines       = 50
	defaultMountDir       = "/cube/conf/model"
	defaultVolumeName     = "cube-models"
)

// Config encapsulates everything a Deployer needs.
type Config struct {
	Store        *modelset.Store
	Orchestrator orchestrator.Orchestrator
	// Journal is optional; without one runs are not recorded and cannot be
	// resumed.
	Journal   Journal
	Publisher EventPublisher
	Logger    *zerolog.Logger

	// MountDir is the directory inside the workload container where model
	// files are mounted.
	MountDir       string
	VolumeName     string
	RolloutTimeout time.Duration
	LogLines       int
}

// New constructs a Deployer from Config.
func New(cfg Config) *Deployer {
	d := &Deployer{
		store:          cfg.Store,
		orch:           cfg.Orchestrator,
		journal:        cfg.Journal,
		pub:            cfg.Publisher,
		mountDir:       cfg.MountDir,
		volume:         cfg.VolumeName,
		rolloutTimeout: cfg.RolloutTimeout,
		logLines:       cfg.LogLines,
		log:            zerolog.Nop(),
	}
	if cfg.Logger != nil {
		d.log = *cfg.Logger
	}
	if d.pub == nil {
		d.pub = noopPublisher{}
	}
	if d.mountDir == "" {
		d.mountDir = defaultMountDir
	}
	if d.volume == "" {
		d.volume = defaultVolumeName
	}
	if d.rolloutTimeout <= 0 {
		d.rolloutTimeout = defaultRolloutTimeout
	}
	if d.logLines <= 0 {
		d.logLines = defaultLogLines
	}
	return d
}
