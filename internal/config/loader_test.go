package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nnamespace: analytics\ndeployment: cube-api\nrollout_timeout: 90s\nprobe_command: [trino, --execute, SELECT 2]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.Namespace != "analytics" || cfg.Deployment != "cube-api" || cfg.RolloutTimeout.D() != 90*time.Second {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.ProbeCommand) != 3 || cfg.ProbeCommand[2] != "SELECT 2" {
		t.Fatalf("probe command: %v", cfg.ProbeCommand)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","configmap":"models","backend":"client-go","rollout_timeout":30,"log_lines":10}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ConfigMap != "models" || cfg.Backend != BackendClientGo || cfg.RolloutTimeout.D() != 30*time.Second || cfg.LogLines != 10 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\ndocument_path=\"/x/models.yaml\"\nrollout_timeout=\"2m\"\ncors_origins=[\"http://localhost:5173\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.DocumentPath != "/x/models.yaml" || cfg.RolloutTimeout.D() != 2*time.Minute {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 1 {
		t.Fatalf("cors origins: %v", cfg.CORSOrigins)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CUBEDEPLOY_NAMESPACE":       "prod",
		"CUBEDEPLOY_ROLLOUT_TIMEOUT": "45s",
		"CUBEDEPLOY_LOG_LINES":       "25",
		"CUBEDEPLOY_CORS_ORIGINS":    "http://a, ,http://b",
		"KUBECONFIG":                 "/tmp/kc",
	}
	cfg := Config{Namespace: "default"}
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Namespace != "prod" || cfg.RolloutTimeout.D() != 45*time.Second || cfg.LogLines != 25 || cfg.Kubeconfig != "/tmp/kc" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("cors origins: %v", cfg.CORSOrigins)
	}
}

func TestApplyEnv_BadDuration(t *testing.T) {
	cfg := Config{}
	err := cfg.ApplyEnv(func(k string) string {
		if k == "CUBEDEPLOY_ROLLOUT_TIMEOUT" {
			return "soon"
		}
		return ""
	})
	if err == nil {
		t.Fatalf("expected duration parse error")
	}
}
