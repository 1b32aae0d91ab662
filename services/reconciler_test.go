package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wpbryant/WordOps-Dashboard/executor"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"github.com/wpbryant/WordOps-Dashboard/validation"
)

var testNow = time.Date(2026, time.January, 19, 2, 23, 45, 0, time.UTC)

func showCmd(name string) string {
	return "systemctl show " + name + " --property=" + showProperties
}

const activeShow = `ActiveState=active
SubState=running
MainPID=1234
MemoryCurrent=52428800
ActiveEnterTimestamp=Mon 2026-01-19 01:23:45 UTC`

const notInstalledShow = `ActiveState=inactive
SubState=dead
MainPID=0
MemoryCurrent=[not set]
ActiveEnterTimestamp=`

func newTestReconciler(runner executor.Runner, opts Options) *Reconciler {
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	return NewReconciler(runner, slog.New(slog.NewTextHandler(io.Discard, nil)), opts)
}

func TestGetStatusActive(t *testing.T) {
	runner := new(executor.MockRunner)
	runner.On("Run", showCmd("nginx"), executor.StatusTimeout).Return(activeShow, nil)
	r := newTestReconciler(runner, Options{})

	status, err := r.GetStatus(context.Background(), "nginx")
	require.NoError(t, err)
	require.NotNil(t, status)

	assert.True(t, status.Active())
	assert.Equal(t, "running", status.SubState)
	assert.Equal(t, 1234, status.MainPID)
	require.NotNil(t, status.MemoryBytes)
	assert.Equal(t, int64(52428800), *status.MemoryBytes)
	require.NotNil(t, status.UptimeSeconds)
	assert.Equal(t, int64(3600), *status.UptimeSeconds)
}

func TestGetStatusRejectsUnknownServiceWithoutRunning(t *testing.T) {
	runner := new(executor.MockRunner)
	r := newTestReconciler(runner, Options{})

	for _, name := range []string{"sshd", "nginx; reboot", "NGINX", ""} {
		_, err := r.GetStatus(context.Background(), name)
		assert.True(t, interfaces.IsValidation(err), name)
	}
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestGetStatusNotInstalled(t *testing.T) {
	runner := new(executor.MockRunner)
	runner.OnRun(showCmd("mysql")).Return(notInstalledShow, nil)
	runner.OnRun("systemctl cat mysql").Return("", &interfaces.CommandFailedError{ExitCode: 1, Detail: "No files found for mysql.service."})
	r := newTestReconciler(runner, Options{})

	status, err := r.GetStatus(context.Background(), "mysql")
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestGetStatusInstalledButStopped(t *testing.T) {
	runner := new(executor.MockRunner)
	runner.OnRun(showCmd("postfix")).Return(notInstalledShow, nil)
	runner.OnRun("systemctl cat postfix").Return("[Unit]\nDescription=Postfix", nil)
	r := newTestReconciler(runner, Options{})

	status, err := r.GetStatus(context.Background(), "postfix")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.False(t, status.Active())
	assert.Nil(t, status.MemoryBytes)
	assert.Nil(t, status.UptimeSeconds)
}

func TestGetStatusUptimeEdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		stamp string
	}{
		{"malformed", "yesterday-ish"},
		{"missing", ""},
		{"future", "Tue 2026-01-20 01:00:00 UTC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(executor.MockRunner)
			runner.OnRun(showCmd("redis-server")).Return("ActiveState=active\nSubState=running\nMainPID=42\nActiveEnterTimestamp="+tt.stamp, nil)
			r := newTestReconciler(runner, Options{})

			status, err := r.GetStatus(context.Background(), "redis-server")
			require.NoError(t, err)
			assert.Nil(t, status.UptimeSeconds)
		})
	}
}

func TestGetStatusPropagatesShowFailure(t *testing.T) {
	runner := new(executor.MockRunner)
	runner.OnRun(showCmd("nginx")).Return("", interfaces.ErrTimeout)
	r := newTestReconciler(runner, Options{})

	_, err := r.GetStatus(context.Background(), "nginx")
	assert.ErrorIs(t, err, interfaces.ErrTimeout)
}

func TestRestart(t *testing.T) {
	runner := new(executor.MockRunner)
	runner.On("Run", "sudo -n systemctl restart nginx", executor.RestartTimeout).Return("", nil).Once()
	runner.On("Run", "sudo -n systemctl restart nginx", executor.RestartTimeout).
		Return("", &interfaces.CommandFailedError{ExitCode: 1, Detail: "Job for nginx.service failed"}).Once()
	r := newTestReconciler(runner, Options{})

	require.NoError(t, r.Restart(context.Background(), "nginx"))

	err := r.Restart(context.Background(), "nginx")
	cf, ok := interfaces.AsCommandFailed(err)
	require.True(t, ok)
	assert.Equal(t, "Job for nginx.service failed", cf.Detail)
	runner.AssertNumberOfCalls(t, "Run", 2)

	assert.True(t, interfaces.IsValidation(r.Restart(context.Background(), "sshd")))
}

func TestStartStop(t *testing.T) {
	runner := new(executor.MockRunner)
	runner.OnRun("sudo -n systemctl start fail2ban").Return("", nil)
	runner.OnRun("sudo -n systemctl stop fail2ban").Return("", nil)
	r := newTestReconciler(runner, Options{})

	require.NoError(t, r.Start(context.Background(), "fail2ban"))
	require.NoError(t, r.Stop(context.Background(), "fail2ban"))
	runner.AssertExpectations(t)
}

// scriptAllServices makes every allow-listed unit report "not installed"
// except the ones in overrides.
func scriptAllServices(runner *executor.MockRunner, overrides map[string]string, failing map[string]error) {
	for _, name := range validation.AllowedServices() {
		if err, ok := failing[name]; ok {
			runner.OnRun(showCmd(name)).Return("", err)
			continue
		}
		if out, ok := overrides[name]; ok {
			runner.OnRun(showCmd(name)).Return(out, nil)
			continue
		}
		runner.OnRun(showCmd(name)).Return(notInstalledShow, nil)
		runner.OnRun("systemctl cat " + name).Return("", &interfaces.CommandFailedError{ExitCode: 1, Detail: "No files found"})
	}
}

func TestGetAllStatuses(t *testing.T) {
	runner := new(executor.MockRunner)
	scriptAllServices(runner,
		map[string]string{"nginx": activeShow, "redis-server": activeShow},
		map[string]error{"mariadb": interfaces.ErrTimeout, "ufw": errors.New("boom")},
	)
	r := newTestReconciler(runner, Options{})

	statuses := r.GetAllStatuses(context.Background())
	require.Len(t, statuses, 2)
	assert.Equal(t, "nginx", statuses[0].Name)
	assert.Equal(t, "redis-server", statuses[1].Name)
	assert.True(t, sort.SliceIsSorted(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name }))
}

type fakeCounter struct {
	stats *interfaces.ConnectionStats
	err   error
}

func (f fakeCounter) Count(ctx context.Context) (*interfaces.ConnectionStats, error) {
	return f.stats, f.err
}

func TestStackServices(t *testing.T) {
	confDir := t.TempDir()
	nginxConf := filepath.Join(confDir, "nginx.conf")
	require.NoError(t, os.WriteFile(nginxConf, []byte("user www-data;\nworker_processes auto;\n"), 0o644))

	poolDir := filepath.Join(confDir, "php", "8.3", "fpm", "pool.d")
	require.NoError(t, os.MkdirAll(poolDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(poolDir, "www.conf"), []byte("[www]\npm = dynamic\npm.max_children = 50\n"), 0o644))

	phpShow := "ActiveState=active\nSubState=running\nMainPID=999\nMemoryCurrent=1048576\nActiveEnterTimestamp=Mon 2026-01-19 02:23:40 UTC"
	mariaShow := "ActiveState=active\nSubState=running\nMainPID=77\nMemoryCurrent=[not set]\nActiveEnterTimestamp=Mon 2026-01-19 00:00:00 UTC"

	runner := new(executor.MockRunner)
	scriptAllServices(runner, map[string]string{
		"nginx":        activeShow,
		"php8.3-fpm":   phpShow,
		"mariadb":      mariaShow,
		"redis-server": activeShow,
		"postfix":      "ActiveState=failed\nSubState=failed\nMainPID=0\n",
	}, nil)

	runner.OnRunCombined("nginx -v").Return("nginx version: nginx/1.24.0 (Ubuntu)", nil)
	runner.OnRunCombined("php-fpm8.3 -v").Return("", interfaces.ErrCommandNotFound)
	runner.OnRunCombined("mariadb --version").Return("mariadb  Ver 15.1 Distrib 10.11.6-MariaDB, for debian-linux-gnu", nil)
	runner.OnRunCombined("redis-server --version").Return("Redis server v=7.0.15 sha=00000000:0 malloc=jemalloc-5.3.0", nil)
	runner.OnRunCombined("postconf -h mail_version").Return("3.8.6", nil)

	runner.OnRun("pgrep -c -P 1234").Return("4", nil)
	runner.OnRun("pgrep -c -P 999").Return("0", &interfaces.CommandFailedError{ExitCode: 1, Detail: "0"})
	runner.OnRun("redis-cli info clients").Return("# Clients\r\nconnected_clients:7\r\nblocked_clients:0\r\n", nil)

	maxConns := 151
	r := newTestReconciler(runner, Options{
		PHPConfDir:    filepath.Join(confDir, "php"),
		NginxConfPath: nginxConf,
		Connections:   fakeCounter{stats: &interfaces.ConnectionStats{Connections: 12, MaxConnections: &maxConns}},
	})

	infos := r.StackServices(context.Background())
	require.Len(t, infos, 5)
	byName := map[string]interfaces.StackServiceInfo{}
	for _, info := range infos {
		byName[info.Name] = info
	}

	nginx := byName["nginx"]
	assert.Equal(t, "Nginx", nginx.DisplayName)
	assert.Equal(t, "running", nginx.Status)
	assert.Equal(t, "1.24.0", nginx.Version)
	assert.Equal(t, "50 MiB", nginx.MemoryDisplay)
	assert.Equal(t, "/etc/nginx/nginx.conf", nginx.ConfigFile)
	require.NotNil(t, nginx.Workers)
	assert.Equal(t, 4, nginx.Workers.Workers)
	require.NotNil(t, nginx.Workers.MaxWorkers)
	assert.Equal(t, runtime.NumCPU(), *nginx.Workers.MaxWorkers)
	assert.Nil(t, nginx.Connections)
	assert.Nil(t, nginx.Clients)

	php := byName["php8.3-fpm"]
	assert.Equal(t, "PHP 8.3-FPM", php.DisplayName)
	assert.Empty(t, php.Version)
	require.NotNil(t, php.Workers)
	assert.Equal(t, 0, php.Workers.Workers)
	require.NotNil(t, php.Workers.MaxWorkers)
	assert.Equal(t, 50, *php.Workers.MaxWorkers)

	maria := byName["mariadb"]
	assert.Equal(t, "10.11.6", maria.Version)
	assert.Empty(t, maria.MemoryDisplay)
	require.NotNil(t, maria.Connections)
	assert.Equal(t, 12, maria.Connections.Connections)
	assert.Nil(t, maria.Workers)
	assert.Nil(t, maria.Clients)

	redis := byName["redis-server"]
	assert.Equal(t, "7.0.15", redis.Version)
	require.NotNil(t, redis.Clients)
	assert.Equal(t, 7, redis.Clients.ConnectedClients)
	assert.Nil(t, redis.Workers)

	postfix := byName["postfix"]
	assert.Equal(t, "error", postfix.Status)
	assert.Equal(t, "3.8.6", postfix.Version)
	assert.Nil(t, postfix.Workers)
	assert.Nil(t, postfix.Connections)
	assert.Nil(t, postfix.Clients)
}

func TestStackServiceProbeFailuresLeaveFieldsAbsent(t *testing.T) {
	runner := new(executor.MockRunner)
	runner.OnRun(showCmd("mariadb")).Return(activeShow, nil)
	runner.OnRunCombined("mariadb --version").Return("", interfaces.ErrTimeout)
	r := newTestReconciler(runner, Options{Connections: fakeCounter{err: errors.New("access denied")}})

	info, err := r.StackService(context.Background(), "mariadb")
	require.NoError(t, err)
	assert.Equal(t, "running", info.Status)
	assert.Empty(t, info.Version)
	assert.Nil(t, info.Connections)
}

func TestStackServiceNotInstalled(t *testing.T) {
	runner := new(executor.MockRunner)
	runner.OnRun(showCmd("netdata")).Return(notInstalledShow, nil)
	runner.OnRun("systemctl cat netdata").Return("", &interfaces.CommandFailedError{ExitCode: 1})
	r := newTestReconciler(runner, Options{})

	_, err := r.StackService(context.Background(), "netdata")
	assert.True(t, interfaces.IsNotFound(err))
}
