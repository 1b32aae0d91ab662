// Package services reconciles the systemd state of allow-listed services and
// enriches it with per-family statistics for the stack view.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wpbryant/WordOps-Dashboard/common"
	"github.com/wpbryant/WordOps-Dashboard/executor"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"github.com/wpbryant/WordOps-Dashboard/validation"
)

// Options tunes probe locations; zero values use the defaults.
type Options struct {
	// PHPConfDir is the root holding <version>/fpm/pool.d.
	PHPConfDir string

	// NginxConfPath is read for worker_processes.
	NginxConfPath string

	// Connections answers the database connection probe. Nil disables it.
	Connections ConnectionCounter

	Now func() time.Time
}

// Reconciler implements interfaces.ServiceManager.
type Reconciler struct {
	runner        executor.Runner
	log           *slog.Logger
	phpConfDir    string
	nginxConfPath string
	connections   ConnectionCounter
	now           func() time.Time
}

// NewReconciler creates a Reconciler running systemctl through runner.
func NewReconciler(runner executor.Runner, log *slog.Logger, opts Options) *Reconciler {
	r := &Reconciler{
		runner:        runner,
		log:           common.OrDefault(log),
		phpConfDir:    opts.PHPConfDir,
		nginxConfPath: opts.NginxConfPath,
		connections:   opts.Connections,
		now:           opts.Now,
	}
	if r.phpConfDir == "" {
		r.phpConfDir = "/etc/php"
	}
	if r.nginxConfPath == "" {
		r.nginxConfPath = "/etc/nginx/nginx.conf"
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// GetStatus returns the systemd status of name, or (nil, nil) when the unit is
// not installed. Names outside the allow-set fail before any process runs.
func (r *Reconciler) GetStatus(ctx context.Context, name string) (*interfaces.ServiceStatus, error) {
	if err := validation.Service(name); err != nil {
		return nil, err
	}

	out, err := r.runner.Run(ctx, executor.StatusTimeout, "systemctl", "show", name, "--property="+showProperties)
	if err != nil {
		return nil, err
	}
	props := parseShowOutput(out)

	if props["ActiveState"] == "inactive" && (props["MainPID"] == "0" || props["MainPID"] == "") {
		installed, err := r.unitExists(ctx, name)
		if err != nil {
			return nil, err
		}
		if !installed {
			return nil, nil
		}
	}

	status := statusFromProperties(name, props, r.now())
	return &status, nil
}

// unitExists runs `systemctl cat`, which exits non-zero for unknown units.
func (r *Reconciler) unitExists(ctx context.Context, name string) (bool, error) {
	_, err := r.runner.Run(ctx, executor.StatusTimeout, "systemctl", "cat", name)
	if err == nil {
		return true, nil
	}
	if _, ok := interfaces.AsCommandFailed(err); ok {
		return false, nil
	}
	return false, err
}

// GetAllStatuses returns the installed allow-listed services sorted by name.
// Services whose query fails are left out.
func (r *Reconciler) GetAllStatuses(ctx context.Context) []interfaces.ServiceStatus {
	names := validation.AllowedServices()
	results := make([]*interfaces.ServiceStatus, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := r.GetStatus(ctx, name)
			if err != nil {
				r.log.Debug("Skipping service", "service", name, "err", err)
				return
			}
			results[i] = status
		}()
	}
	wg.Wait()

	statuses := make([]interfaces.ServiceStatus, 0, len(names))
	for _, s := range results {
		if s != nil {
			statuses = append(statuses, *s)
		}
	}
	return statuses
}

// Restart restarts the unit with elevated privileges. Failures are returned
// as-is and never retried.
func (r *Reconciler) Restart(ctx context.Context, name string) error {
	return r.control(ctx, "restart", name)
}

// Start starts the unit with elevated privileges.
func (r *Reconciler) Start(ctx context.Context, name string) error {
	return r.control(ctx, "start", name)
}

// Stop stops the unit with elevated privileges.
func (r *Reconciler) Stop(ctx context.Context, name string) error {
	return r.control(ctx, "stop", name)
}

func (r *Reconciler) control(ctx context.Context, verb, name string) error {
	if err := validation.Service(name); err != nil {
		return err
	}
	r.log.Info("Controlling service", "service", name, "action", verb)
	if _, err := r.runner.Run(ctx, executor.RestartTimeout, "sudo", "-n", "systemctl", verb, name); err != nil {
		return fmt.Errorf("%s %s: %w", verb, name, err)
	}
	return nil
}
