package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cubedeploy/internal/config"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	document   string
	backend    string
	namespace  string
	kubeconfig string
	context    string
	journal    string

	getenv func(string) string
}

func newRootCmd() *cobra.Command {
	root, _ := newRoot(os.Getenv)
	return root
}

func newRoot(getenv func(string) string) (*cobra.Command, *rootOptions) {
	o := &rootOptions{getenv: getenv}
	root := &cobra.Command{
		Use:           "cubedeploy",
		Short:         "Deploy semantic-layer models to a Kubernetes-hosted cube workload",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "Config file (.yaml, .json or .toml)")
	pf.StringVar(&o.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&o.logFormat, "log-format", "", "Log format: json|console")
	pf.StringVar(&o.document, "document", "", "Path of the ConfigMap manifest holding the models")
	pf.StringVar(&o.backend, "backend", "", "Cluster backend: kubectl|client-go")
	pf.StringVarP(&o.namespace, "namespace", "n", "", "Kubernetes namespace")
	pf.StringVar(&o.kubeconfig, "kubeconfig", "", "Path to a kubeconfig file")
	pf.StringVar(&o.context, "context", "", "Kubeconfig context")
	pf.StringVar(&o.journal, "journal", "", "Path of the sqlite run journal")

	root.AddCommand(
		newServeCmd(o),
		newModelsCmd(o),
		newClusterCmd(o),
		newRunsCmd(o),
	)
	return root, o
}

// load resolves the effective configuration: file, then environment, then
// flags that were set explicitly, then defaults.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	if err := cfg.ApplyEnv(o.getenv); err != nil {
		return cfg, err
	}
	flags := map[string]struct {
		val string
		dst *string
	}{
		"log-level":  {o.logLevel, &cfg.LogLevel},
		"log-format": {o.logFormat, &cfg.LogFormat},
		"document":   {o.document, &cfg.DocumentPath},
		"backend":    {o.backend, &cfg.Backend},
		"namespace":  {o.namespace, &cfg.Namespace},
		"kubeconfig": {o.kubeconfig, &cfg.Kubeconfig},
		"context":    {o.context, &cfg.Context},
		"journal":    {o.journal, &cfg.JournalPath},
	}
	for name, f := range flags {
		if cmd.Flags().Changed(name) {
			*f.dst = f.val
		}
	}
	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}

// newLogger builds the process logger from cfg.
func newLogger(cfg config.Config, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if cfg.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
