package kubectl

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"cubedeploy/internal/orchestrator"
)

// Cmd is one external command invocation. The process inherits the
// environment, so KUBECONFIG and proxy settings reach kubectl.
type Cmd struct {
	Path string
	Args []string
}

// Runner executes commands. The exec-based implementation is used in
// production; tests substitute a scripted one.
type Runner interface {
	Run(ctx context.Context, c Cmd) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands as subprocesses.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Cmd) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if errors.Is(err, exec.ErrNotFound) {
		return nil, nil, orchestrator.ErrUnavailable("%s not found: %v", c.Path, err)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}
