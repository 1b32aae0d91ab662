package wordops

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"github.com/wpbryant/WordOps-Dashboard/validation"
)

const (
	notAvailable = "N/A"

	diskUsageTimeout  = 10 * time.Second
	inodeCountTimeout = 30 * time.Second
)

// SiteMonitoring measures the site's disk usage, inode count and bandwidth
// served in the current month. Each measurement is independent and falls back
// to "N/A".
func (c *Client) SiteMonitoring(ctx context.Context, domain string) (*interfaces.SiteMonitoring, error) {
	if err := validation.Domain(domain); err != nil {
		return nil, err
	}

	root := filepath.Join(c.webRoot, domain)
	m := &interfaces.SiteMonitoring{
		Domain:    domain,
		DiskUsage: notAvailable,
		Inodes:    notAvailable,
		Bandwidth: notAvailable,
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if n, ok := c.diskUsage(ctx, root); ok {
			m.DiskUsageBytes = &n
			m.DiskUsage = humanize.IBytes(uint64(n))
		}
	}()
	go func() {
		defer wg.Done()
		if n, ok := c.inodeCount(ctx, root); ok {
			m.Inodes = humanize.Comma(n)
		}
	}()
	go func() {
		defer wg.Done()
		logPath := filepath.Join(c.nginxLogDir, domain+".access.log")
		n, err := monthlyBandwidth(logPath, c.now())
		if err != nil {
			c.log.Debug("Bandwidth unavailable", "domain", domain, "err", err)
			return
		}
		if n > 0 {
			m.BandwidthBytes = &n
			m.Bandwidth = humanize.IBytes(uint64(n))
		}
	}()
	wg.Wait()

	return m, nil
}

func (c *Client) diskUsage(ctx context.Context, root string) (int64, bool) {
	out, err := c.runner.Run(ctx, diskUsageTimeout, "du", "-sb", root)
	if err != nil {
		c.log.Debug("Disk usage unavailable", "path", root, "err", err)
		return 0, false
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *Client) inodeCount(ctx context.Context, root string) (int64, bool) {
	out, err := c.runner.Run(ctx, inodeCountTimeout, "find", root, "-xdev", "-type", "f", "-o", "-type", "d")
	if err != nil {
		c.log.Debug("Inode count unavailable", "path", root, "err", err)
		return 0, false
	}
	var n int64
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n, n > 0
}

// monthlyBandwidth sums the last field (bytes sent) of every access log line
// stamped with now's month, e.g. "[19/Oct/2026:10:00:00 +0000]".
func monthlyBandwidth(path string, now time.Time) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	month := now.Format("Jan/2006")
	var total int64

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, month) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		n, err := strconv.ParseInt(strings.Trim(fields[len(fields)-1], `"`), 10, 64)
		if err != nil || n < 0 {
			continue
		}
		total += n
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("could not read %s: %w", path, err)
	}
	return total, nil
}
