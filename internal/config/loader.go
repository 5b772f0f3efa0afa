package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by Config.Backend.
const (
	BackendKubectl  = "kubectl"
	BackendClientGo = "client-go"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are filled by WithDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	// LogFormat is "json" or "console".
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	// DocumentPath is the ConfigMap manifest holding every model.
	DocumentPath  string `json:"document_path" yaml:"document_path" toml:"document_path"`
	ConfigMap     string `json:"configmap" yaml:"configmap" toml:"configmap"`
	Namespace     string `json:"namespace" yaml:"namespace" toml:"namespace"`
	Extension     string `json:"extension" yaml:"extension" toml:"extension"`
	WatchDocument *bool  `json:"watch_document,omitempty" yaml:"watch_document,omitempty" toml:"watch_document,omitempty"`
	SeedDir       string `json:"seed_dir" yaml:"seed_dir" toml:"seed_dir"`

	Backend    string `json:"backend" yaml:"backend" toml:"backend"`
	Kubectl    string `json:"kubectl" yaml:"kubectl" toml:"kubectl"`
	Kubeconfig string `json:"kubeconfig" yaml:"kubeconfig" toml:"kubeconfig"`
	Context    string `json:"context" yaml:"context" toml:"context"`

	Deployment string `json:"deployment" yaml:"deployment" toml:"deployment"`
	Container  string `json:"container" yaml:"container" toml:"container"`
	VolumeName string `json:"volume_name" yaml:"volume_name" toml:"volume_name"`
	MountDir   string `json:"mount_dir" yaml:"mount_dir" toml:"mount_dir"`

	RolloutTimeout Duration `json:"rollout_timeout" yaml:"rollout_timeout" toml:"rollout_timeout"`
	LogLines       int      `json:"log_lines" yaml:"log_lines" toml:"log_lines"`

	ProbeSelector  string   `json:"probe_selector" yaml:"probe_selector" toml:"probe_selector"`
	ProbeContainer string   `json:"probe_container" yaml:"probe_container" toml:"probe_container"`
	ProbeCommand   []string `json:"probe_command" yaml:"probe_command" toml:"probe_command"`

	JournalPath string `json:"journal_path" yaml:"journal_path" toml:"journal_path"`

	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CUBEDEPLOY_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	str := map[string]*string{
		"CUBEDEPLOY_ADDR":           &c.Addr,
		"CUBEDEPLOY_LOG_LEVEL":      &c.LogLevel,
		"CUBEDEPLOY_LOG_FORMAT":     &c.LogFormat,
		"CUBEDEPLOY_DOCUMENT":       &c.DocumentPath,
		"CUBEDEPLOY_CONFIGMAP":      &c.ConfigMap,
		"CUBEDEPLOY_NAMESPACE":      &c.Namespace,
		"CUBEDEPLOY_BACKEND":        &c.Backend,
		"CUBEDEPLOY_KUBECTL":        &c.Kubectl,
		"CUBEDEPLOY_DEPLOYMENT":     &c.Deployment,
		"CUBEDEPLOY_CONTAINER":      &c.Container,
		"CUBEDEPLOY_JOURNAL":        &c.JournalPath,
		"CUBEDEPLOY_SEED_DIR":       &c.SeedDir,
		"CUBEDEPLOY_PROBE_SELECTOR": &c.ProbeSelector,
		"KUBECONFIG":                &c.Kubeconfig,
	}
	for k, dst := range str {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			*dst = v
		}
	}
	if v := strings.TrimSpace(getenv("CUBEDEPLOY_ROLLOUT_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CUBEDEPLOY_ROLLOUT_TIMEOUT: %w", err)
		}
		c.RolloutTimeout = Duration(d)
	}
	if v := strings.TrimSpace(getenv("CUBEDEPLOY_LOG_LINES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CUBEDEPLOY_LOG_LINES: %w", err)
		}
		c.LogLines = n
	}
	if v := strings.TrimSpace(getenv("CUBEDEPLOY_CORS_ORIGINS")); v != "" {
		c.CORSOrigins = SplitCSV(v)
	}
	return nil
}

// SplitCSV splits a comma separated list, dropping empty items.
func SplitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
