package wordops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wpbryant/WordOps-Dashboard/executor"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
)

func fixedNow() time.Time {
	return time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
}

func TestSiteMonitoring(t *testing.T) {
	logDir := t.TempDir()
	accessLog := strings.Join([]string{
		`1.2.3.4 - - [01/Oct/2026:10:00:00 +0000] "GET / HTTP/1.1" 200 1024`,
		`1.2.3.4 - - [18/Oct/2026:10:00:00 +0000] "GET /a HTTP/1.1" 200 2048`,
		`1.2.3.4 - - [30/Sep/2026:10:00:00 +0000] "GET /old HTTP/1.1" 200 999999`,
		`garbage line without bytes -`,
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "example.com.access.log"), []byte(accessLog), 0o644))

	runner := new(executor.MockRunner)
	runner.OnRun("du -sb /srv/www/example.com").Return("1572864\t/srv/www/example.com", nil)
	runner.OnRun("find /srv/www/example.com -xdev -type f -o -type d").Return("/srv/www/example.com\n/srv/www/example.com/index.php\n/srv/www/example.com/wp-content\n", nil)

	c := newTestClient(t, runner, Options{WebRoot: "/srv/www", NginxLogDir: logDir, Now: fixedNow})
	m, err := c.SiteMonitoring(context.Background(), "example.com")
	require.NoError(t, err)

	assert.Equal(t, "1.5 MiB", m.DiskUsage)
	require.NotNil(t, m.DiskUsageBytes)
	assert.Equal(t, int64(1572864), *m.DiskUsageBytes)
	assert.Equal(t, "3", m.Inodes)
	require.NotNil(t, m.BandwidthBytes)
	assert.Equal(t, int64(3072), *m.BandwidthBytes)
	assert.Equal(t, "3.0 KiB", m.Bandwidth)
}

func TestSiteMonitoringDefaults(t *testing.T) {
	runner := new(executor.MockRunner)
	runner.OnRun("du -sb /var/www/example.com").Return("", interfaces.ErrTimeout)
	runner.OnRun("find /var/www/example.com -xdev -type f -o -type d").Return("", &interfaces.CommandFailedError{ExitCode: 1, Detail: "No such file or directory"})

	c := newTestClient(t, runner, Options{NginxLogDir: t.TempDir(), Now: fixedNow})
	m, err := c.SiteMonitoring(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, "N/A", m.DiskUsage)
	assert.Equal(t, "N/A", m.Inodes)
	assert.Equal(t, "N/A", m.Bandwidth)
	assert.Nil(t, m.DiskUsageBytes)
}

func TestSiteMonitoringRejectsInvalidDomain(t *testing.T) {
	c := newTestClient(t, new(executor.MockRunner), Options{})
	_, err := c.SiteMonitoring(context.Background(), "../../etc")
	assert.True(t, interfaces.IsValidation(err))
}
