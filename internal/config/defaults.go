package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by WithDefaults when the corresponding field is unset.
const (
	DefaultAddr           = ":3001"
	DefaultDocumentPath   = "k8s/cube-models-configmap.yaml"
	DefaultConfigMap      = "cube-models"
	DefaultNamespace      = "default"
	DefaultExtension      = "js"
	DefaultDeployment     = "cube"
	DefaultVolumeName     = "cube-models"
	DefaultMountDir       = "/cube/conf/model"
	DefaultRolloutTimeout = 120 * time.Second
	DefaultLogLines       = 50
	DefaultProbeSelector  = "app=trino"
	DefaultJournalPath    = "cubedeploy.db"
)

// DefaultProbeCommand runs a trivial query through the SQL gateway.
var DefaultProbeCommand = []string{"trino", "--execute", "SELECT 1"}

// WithDefaults returns a copy of c with every unset field filled in.
func (c Config) WithDefaults() Config {
	set := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	set(&c.Addr, DefaultAddr)
	set(&c.LogLevel, "info")
	set(&c.LogFormat, "json")
	set(&c.DocumentPath, DefaultDocumentPath)
	set(&c.ConfigMap, DefaultConfigMap)
	set(&c.Namespace, DefaultNamespace)
	set(&c.Extension, DefaultExtension)
	c.Extension = strings.TrimPrefix(c.Extension, ".")
	set(&c.Backend, BackendKubectl)
	set(&c.Kubectl, "kubectl")
	set(&c.Deployment, DefaultDeployment)
	set(&c.VolumeName, DefaultVolumeName)
	set(&c.MountDir, DefaultMountDir)
	set(&c.ProbeSelector, DefaultProbeSelector)
	set(&c.JournalPath, DefaultJournalPath)
	if c.RolloutTimeout <= 0 {
		c.RolloutTimeout = Duration(DefaultRolloutTimeout)
	}
	if c.LogLines <= 0 {
		c.LogLines = DefaultLogLines
	}
	if len(c.ProbeCommand) == 0 {
		c.ProbeCommand = append([]string(nil), DefaultProbeCommand...)
	}
	if c.WatchDocument == nil {
		on := true
		c.WatchDocument = &on
	}
	return c
}

// Validate reports configuration values that cannot work.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendKubectl, BackendClientGo:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendKubectl, BackendClientGo)
	}
	switch c.Extension {
	case "js", "yml", "yaml":
	default:
		return fmt.Errorf("unsupported model extension %q", c.Extension)
	}
	if !strings.HasPrefix(c.MountDir, "/") {
		return fmt.Errorf("mount_dir must be absolute: %q", c.MountDir)
	}
	return nil
}

// Duration is a time.Duration that decodes from strings like "90s" in every
// supported config format. Bare integers are read as seconds.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func parseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if v, err := time.ParseDuration(s); err == nil {
		return Duration(v), nil
	}
	var secs int64
	if _, err := fmt.Sscanf(s, "%d", &secs); err == nil {
		return Duration(time.Duration(secs) * time.Second), nil
	}
	return 0, fmt.Errorf("invalid duration %q", s)
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := parseDuration(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}
