// Package executor runs external binaries with an argument vector, a hard
// timeout and structured failure classification. No shell is ever involved.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/wpbryant/WordOps-Dashboard/common"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"github.com/wpbryant/WordOps-Dashboard/metrics"
	"golang.org/x/sys/unix"
)

// Time budgets for the command classes the dashboard runs.
const (
	StatusTimeout    = 5 * time.Second
	RestartTimeout   = 30 * time.Second
	QueryTimeout     = 30 * time.Second
	DeleteTimeout    = 60 * time.Second
	UpdateTimeout    = 120 * time.Second
	ProvisionTimeout = 300 * time.Second
)

// waitDelay bounds how long Wait keeps draining pipes after the process group was killed.
const waitDelay = 2 * time.Second

// Runner abstracts external command execution so callers can be tested with
// scripted output.
type Runner interface {
	// Run executes name with args and returns trimmed stdout.
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error)

	// RunCombined is Run but returns stdout followed by stderr. Some tools
	// print their version on stderr.
	RunCombined(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error)
}

// ExecRunner executes commands using os/exec.
type ExecRunner struct {
	// KnownPaths maps a binary name to the absolute path tried before PATH lookup.
	KnownPaths map[string]string

	Log     *slog.Logger
	Metrics *metrics.Recorder
}

// NewExecRunner returns an ExecRunner with the given known binary locations.
func NewExecRunner(knownPaths map[string]string, log *slog.Logger, rec *metrics.Recorder) *ExecRunner {
	return &ExecRunner{
		KnownPaths: knownPaths,
		Log:        common.OrDefault(log),
		Metrics:    rec,
	}
}

func (r *ExecRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	stdout, _, err := r.run(ctx, timeout, name, args)
	return stdout, err
}

func (r *ExecRunner) RunCombined(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	stdout, stderr, err := r.run(ctx, timeout, name, args)
	if err != nil {
		return stdout, err
	}
	return strings.TrimSpace(stdout + "\n" + stderr), nil
}

// Resolve returns the absolute path of name: the configured known path when it
// is an executable file, otherwise the PATH lookup result.
func (r *ExecRunner) Resolve(name string) (string, error) {
	if p, ok := r.KnownPaths[name]; ok && isExecutable(p) {
		return p, nil
	}
	if filepath.IsAbs(name) {
		if isExecutable(name) {
			return name, nil
		}
		return "", fmt.Errorf("%w: %s", interfaces.ErrCommandNotFound, name)
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", interfaces.ErrCommandNotFound, name)
	}
	return p, nil
}

func (r *ExecRunner) run(ctx context.Context, timeout time.Duration, name string, args []string) (string, string, error) {
	log := common.OrDefault(r.Log)
	binary := filepath.Base(name)
	argv := append([]string{name}, args...)

	path, err := r.Resolve(name)
	if err != nil {
		r.Metrics.ObserveCommand(binary, metrics.OutcomeNotFound, 0)
		return "", "", err
	}

	// Callers going away must not abandon a half-finished mutation, so only
	// the timeout ends the process.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = waitDelay

	started := time.Now()
	err = cmd.Run()
	took := time.Since(started)

	outStr := strings.TrimSpace(stdout.String())
	errStr := strings.TrimSpace(stderr.String())

	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		r.Metrics.ObserveCommand(binary, metrics.OutcomeTimeout, took)
		log.Warn("Command timed out", "argv", argv, "timeout", timeout)
		return outStr, errStr, fmt.Errorf("%w after %s: %s", interfaces.ErrTimeout, timeout, strings.Join(argv, " "))
	}

	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			detail := errStr
			if detail == "" {
				detail = outStr
			}
			r.Metrics.ObserveCommand(binary, metrics.OutcomeFailed, took)
			log.Debug("Command failed", "argv", argv, "exitCode", exitError.ExitCode(), "took", took)
			return outStr, errStr, &interfaces.CommandFailedError{
				Argv:     argv,
				ExitCode: exitError.ExitCode(),
				Detail:   detail,
			}
		}
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			r.Metrics.ObserveCommand(binary, metrics.OutcomeNotFound, took)
			return "", "", fmt.Errorf("%w: %s: %v", interfaces.ErrCommandNotFound, name, err)
		}
		r.Metrics.ObserveCommand(binary, metrics.OutcomeError, took)
		return outStr, errStr, fmt.Errorf("could not run %s: %w", strings.Join(argv, " "), err)
	}

	r.Metrics.ObserveCommand(binary, metrics.OutcomeOK, took)
	log.Debug("Command finished", "argv", argv, "took", took)
	return outStr, errStr, nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
