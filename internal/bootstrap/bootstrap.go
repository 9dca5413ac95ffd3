package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ipr-host/internal/state"
	"ipr-host/internal/types"
	"ipr-host/internal/websocket"
	"ipr-host/pkg/config"
)

// maxOutputBytes caps how much combined step output is kept in state.
const maxOutputBytes = 16 * 1024

// Runner executes the configured setup steps strictly in order. The first
// non-zero exit aborts the remaining steps, with no retries and no rollback.
type Runner struct {
	steps        []config.BootstrapStep
	requirements string
	workdir      string
}

// NewRunner builds a Runner from configuration. requirements may be empty,
// in which case no pre-flight file check is done.
func NewRunner(steps []config.BootstrapStep, requirements, workdir string) *Runner {
	return &Runner{
		steps:        steps,
		requirements: requirements,
		workdir:      workdir,
	}
}

// Run executes the pipeline. On the first failing step it records the
// failure, broadcasts it, and returns without touching later steps, so the
// application is never launched on a broken install.
func (r *Runner) Run(ctx context.Context) error {
	state.SetBootstrapStatus(types.BootstrapRunning, "")
	websocket.BroadcastSnapshot()

	if err := r.preflight(); err != nil {
		state.SetBootstrapStatus(types.BootstrapFailed, err.Error())
		websocket.BroadcastSnapshot()
		return err
	}

	for _, step := range r.steps {
		result, err := r.runStep(ctx, step)
		state.AddStepResult(result)
		websocket.BroadcastStep(result)

		if err != nil {
			logrus.WithFields(logrus.Fields{
				"step":      step.Name,
				"exit_code": result.ExitCode,
			}).Error("Bootstrap step failed, aborting pipeline")
			state.SetBootstrapStatus(types.BootstrapFailed, err.Error())
			websocket.BroadcastSnapshot()
			return fmt.Errorf("bootstrap step %q failed: %w", step.Name, err)
		}

		logrus.WithFields(logrus.Fields{
			"step":     step.Name,
			"duration": result.FinishedAt.Sub(result.StartedAt).String(),
		}).Info("Bootstrap step completed")
	}

	state.SetBootstrapStatus(types.BootstrapDone, "")
	websocket.BroadcastSnapshot()
	return nil
}

// preflight rejects a missing requirements file before any step spawns, so
// the failure is attributable instead of buried in installer output.
func (r *Runner) preflight() error {
	if r.requirements == "" {
		return nil
	}
	path := r.requirements
	if r.workdir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(r.workdir, path)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("requirements file %s does not exist", path)
		}
		return fmt.Errorf("cannot stat requirements file %s: %w", path, err)
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, step config.BootstrapStep) (types.StepResult, error) {
	logrus.WithFields(logrus.Fields{
		"step":    step.Name,
		"command": step.Command,
		"args":    strings.Join(step.Args, " "),
	}).Info("Running bootstrap step")

	result := types.StepResult{
		Name:      step.Name,
		Command:   step.Command,
		StartedAt: time.Now(),
	}

	cmd := exec.CommandContext(ctx, step.Command, step.Args...)
	if r.workdir != "" {
		cmd.Dir = r.workdir
	}

	output, err := cmd.CombinedOutput()
	result.FinishedAt = time.Now()
	result.Output = truncateOutput(output)

	if err != nil {
		result.Status = "failed"
		result.ExitCode = exitCode(err)
		return result, fmt.Errorf("%s: %w\n%s", step.Command, err, result.Output)
	}

	result.Status = "ok"
	result.ExitCode = 0
	return result, nil
}

func truncateOutput(output []byte) string {
	s := strings.TrimSpace(string(output))
	if len(s) > maxOutputBytes {
		return s[:maxOutputBytes] + "\n... (truncated)"
	}
	return s
}

// exitCode extracts the process exit code, or -1 when the command never ran
// (e.g. binary not found) or was killed by the context.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
