package services

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"gopkg.in/ini.v1"
)

// probeTimeout bounds each enrichment probe.
const probeTimeout = 3 * time.Second

var (
	distribVersion = regexp.MustCompile(`Distrib (\d+(?:\.\d+)+)`)
	anyVersion     = regexp.MustCompile(`\d+(?:\.\d+)+`)
)

// StackServices returns the enriched view of every installed allow-listed
// service, sorted by name. Enrichment probes are best-effort.
func (r *Reconciler) StackServices(ctx context.Context) []interfaces.StackServiceInfo {
	statuses := r.GetAllStatuses(ctx)
	infos := make([]interfaces.StackServiceInfo, len(statuses))

	var wg sync.WaitGroup
	for i, status := range statuses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			infos[i] = r.enrich(ctx, status)
		}()
	}
	wg.Wait()
	return infos
}

// StackService returns the enriched view of one service.
func (r *Reconciler) StackService(ctx context.Context, name string) (*interfaces.StackServiceInfo, error) {
	status, err := r.GetStatus(ctx, name)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, fmt.Errorf("service %s: %w", name, interfaces.ErrNotFound)
	}
	info := r.enrich(ctx, *status)
	return &info, nil
}

func (r *Reconciler) enrich(ctx context.Context, status interfaces.ServiceStatus) interfaces.StackServiceInfo {
	entry := catalog[status.Name]
	info := interfaces.StackServiceInfo{
		Name:          status.Name,
		DisplayName:   entry.displayName,
		Status:        stackStatus(status.ActiveState),
		MemoryUsage:   status.MemoryBytes,
		UptimeSeconds: status.UptimeSeconds,
		ConfigFile:    entry.configFile,
		Version:       r.probeVersion(ctx, entry),
	}
	if status.MemoryBytes != nil {
		info.MemoryDisplay = humanize.IBytes(uint64(*status.MemoryBytes))
	}

	switch entry.family {
	case familyWorkers:
		info.Workers = r.probeWorkers(ctx, status)
	case familyConnections:
		info.Connections = r.probeConnections(ctx, status)
	case familyClients:
		info.Clients = r.probeClients(ctx, status)
	}
	return info
}

func (r *Reconciler) probeVersion(ctx context.Context, entry catalogEntry) string {
	if len(entry.versionCmd) == 0 {
		return ""
	}
	out, err := r.runner.RunCombined(ctx, probeTimeout, entry.versionCmd[0], entry.versionCmd[1:]...)
	if err != nil {
		r.log.Debug("Version probe failed", "cmd", entry.versionCmd, "err", err)
		return ""
	}
	return parseVersion(out)
}

func parseVersion(out string) string {
	if m := distribVersion.FindStringSubmatch(out); m != nil {
		return m[1]
	}
	return anyVersion.FindString(out)
}

// probeWorkers counts the master's children and reads the configured maximum.
func (r *Reconciler) probeWorkers(ctx context.Context, status interfaces.ServiceStatus) *interfaces.WorkerStats {
	if !status.Active() || status.MainPID == 0 {
		return nil
	}
	workers, err := r.countChildren(ctx, status.MainPID)
	if err != nil {
		r.log.Debug("Worker count probe failed", "service", status.Name, "err", err)
		return nil
	}

	stats := &interfaces.WorkerStats{Workers: workers}
	var max int
	var ok bool
	if v := phpVersionOf(status.Name); v != "" {
		max, ok = phpMaxChildren(filepath.Join(r.phpConfDir, v, "fpm", "pool.d"))
	} else {
		max, ok = nginxWorkerProcesses(r.nginxConfPath)
	}
	if ok {
		stats.MaxWorkers = &max
	}
	return stats
}

// countChildren runs `pgrep -c -P <pid>`. pgrep exits 1 when nothing matches.
func (r *Reconciler) countChildren(ctx context.Context, pid int) (int, error) {
	out, err := r.runner.Run(ctx, probeTimeout, "pgrep", "-c", "-P", strconv.Itoa(pid))
	if err != nil {
		if cf, ok := interfaces.AsCommandFailed(err); ok && cf.ExitCode == 1 {
			return 0, nil
		}
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(out))
}

// phpMaxChildren sums pm.max_children over every pool file in dir.
func phpMaxChildren(dir string) (int, bool) {
	files, err := filepath.Glob(filepath.Join(dir, "*.conf"))
	if err != nil || len(files) == 0 {
		return 0, false
	}
	total, found := 0, false
	for _, f := range files {
		cfg, err := ini.Load(f)
		if err != nil {
			continue
		}
		for _, section := range cfg.Sections() {
			if !section.HasKey("pm.max_children") {
				continue
			}
			if n, err := section.Key("pm.max_children").Int(); err == nil {
				total += n
				found = true
			}
		}
	}
	return total, found
}

// nginxWorkerProcesses reads the worker_processes directive; "auto" is the CPU count.
func nginxWorkerProcesses(path string) (int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) < 2 || fields[0] != "worker_processes" {
			continue
		}
		value := strings.TrimSuffix(fields[1], ";")
		if value == "auto" {
			return runtime.NumCPU(), true
		}
		n, err := strconv.Atoi(value)
		return n, err == nil
	}
	return 0, false
}

func (r *Reconciler) probeConnections(ctx context.Context, status interfaces.ServiceStatus) *interfaces.ConnectionStats {
	if !status.Active() || r.connections == nil {
		return nil
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	stats, err := r.connections.Count(probeCtx)
	if err != nil {
		r.log.Debug("Connection probe failed", "service", status.Name, "err", err)
		return nil
	}
	return stats
}

func (r *Reconciler) probeClients(ctx context.Context, status interfaces.ServiceStatus) *interfaces.ClientStats {
	if !status.Active() {
		return nil
	}
	out, err := r.runner.Run(ctx, probeTimeout, "redis-cli", "info", "clients")
	if err != nil {
		r.log.Debug("Redis client probe failed", "err", err)
		return nil
	}
	n, ok := parseConnectedClients(out)
	if !ok {
		return nil
	}
	return &interfaces.ClientStats{ConnectedClients: n}
}

// parseConnectedClients reads "connected_clients:N" from INFO output.
func parseConnectedClients(out string) (int, bool) {
	for _, line := range strings.Split(out, "\n") {
		value, ok := strings.CutPrefix(strings.TrimSpace(line), "connected_clients:")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		return n, err == nil
	}
	return 0, false
}

var _ interfaces.ServiceManager = (*Reconciler)(nil)
