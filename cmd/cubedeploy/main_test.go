package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cubedeploy/internal/config"
)

const widget = "cube(`Widget`, {\n  sql: `SELECT * FROM widgets`\n});\n"

func env(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

// run executes the CLI with args and returns stdout.
func run(t *testing.T, getenv func(string) string, args ...string) (string, error) {
	t.Helper()
	root, _ := newRoot(getenv)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cubedeploy.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("namespace: file\ndeployment: cube-api\n"), 0o644))

	resolve := func(getenv func(string) string, args ...string) config.Config {
		var got config.Config
		root, o := newRoot(getenv)
		probe := &cobra.Command{
			Use: "probe",
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := o.load(cmd)
				got = c
				return err
			},
		}
		root.AddCommand(probe)
		root.SetArgs(append([]string{"probe", "--config", cfgPath}, args...))
		require.NoError(t, root.Execute())
		return got
	}

	cfg := resolve(env(nil))
	assert.Equal(t, "file", cfg.Namespace)
	assert.Equal(t, "cube-api", cfg.Deployment)
	assert.Equal(t, config.DefaultConfigMap, cfg.ConfigMap)

	cfg = resolve(env(map[string]string{"CUBEDEPLOY_NAMESPACE": "env"}))
	assert.Equal(t, "env", cfg.Namespace)

	cfg = resolve(env(map[string]string{"CUBEDEPLOY_NAMESPACE": "env"}), "-n", "flag")
	assert.Equal(t, "flag", cfg.Namespace)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	_, err := run(t, env(nil), "models", "list", "--backend", "helm", "--document", filepath.Join(t.TempDir(), "m.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(config.Config{LogLevel: "warn", LogFormat: "json"}, &buf)
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)

	log = newLogger(config.Config{LogLevel: "bogus"}, &buf)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestModelsCommands_LocalManifest(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed")
	require.NoError(t, os.MkdirAll(seed, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(seed, "Widget.js"), []byte(widget), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(seed, "notes.txt"), []byte("x"), 0o644))

	base := []string{
		"--document", filepath.Join(dir, "cube-models.yaml"),
		"--journal", filepath.Join(dir, "journal.db"),
	}
	cmd := func(args ...string) (string, error) {
		return run(t, env(nil), append(args, base...)...)
	}

	out, err := cmd("models", "import", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "added Widget")

	out, err = cmd("models", "list")
	require.NoError(t, err)
	assert.Equal(t, "Widget\n", out)

	out, err = cmd("models", "get", "Widget")
	require.NoError(t, err)
	assert.Equal(t, widget, out)

	_, err = cmd("models", "get", "Gadget")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	out, err = cmd("models", "validate", "Widget", filepath.Join(seed, "Widget.js"))
	require.NoError(t, err)
	assert.Equal(t, "Model is valid\n", out)

	_, err = cmd("models", "validate", "Widget", filepath.Join(seed, "notes.txt"))
	require.Error(t, err)

	out, err = cmd("runs", "list")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ID"), out)
}

func TestRunsResume_BadID(t *testing.T) {
	_, err := run(t, env(nil), "runs", "resume", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid run id")
}
