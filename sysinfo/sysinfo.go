// Package sysinfo gathers host facts from independent probes. Every probe has
// its own time budget and default, so one slow or broken source never hides
// the others.
package sysinfo

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/wpbryant/WordOps-Dashboard/common"
	"github.com/wpbryant/WordOps-Dashboard/executor"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"golang.org/x/sys/unix"
	"gopkg.in/ini.v1"
)

const (
	// DefaultResolver answers myip.opendns.com with the asking address.
	DefaultResolver = "208.67.222.222:53"

	publicIPName   = "myip.opendns.com."
	dnsTimeout     = 3 * time.Second
	unknown        = "unknown"
	defaultOSFile  = "/etc/os-release"
	defaultProcDir = "/proc"
)

// Options configures probe sources; zero values use the host defaults.
type Options struct {
	ProcRoot      string
	OSReleasePath string
	Resolver      string

	// StatfsPath is the filesystem whose inode usage is reported.
	StatfsPath string

	// WordOpsVersion feeds the overview card. Nil reports "unknown".
	WordOpsVersion func(ctx context.Context) (string, error)

	Now func() time.Time
}

// Collector implements interfaces.SystemInfoProvider.
type Collector struct {
	runner         executor.Runner
	log            *slog.Logger
	procRoot       string
	osRelease      string
	resolver       string
	statfsPath     string
	wordopsVersion func(ctx context.Context) (string, error)
	dns            *dns.Client
	now            func() time.Time
}

func NewCollector(runner executor.Runner, log *slog.Logger, opts Options) *Collector {
	c := &Collector{
		runner:         runner,
		log:            common.OrDefault(log),
		procRoot:       opts.ProcRoot,
		osRelease:      opts.OSReleasePath,
		resolver:       opts.Resolver,
		statfsPath:     opts.StatfsPath,
		wordopsVersion: opts.WordOpsVersion,
		dns:            &dns.Client{Net: "udp", Timeout: dnsTimeout},
		now:            opts.Now,
	}
	if c.procRoot == "" {
		c.procRoot = defaultProcDir
	}
	if c.osRelease == "" {
		c.osRelease = defaultOSFile
	}
	if c.resolver == "" {
		c.resolver = DefaultResolver
	}
	if c.statfsPath == "" {
		c.statfsPath = "/"
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// SystemInfo runs the host probes concurrently and never fails. Each probe
// owns a disjoint set of fields.
func (c *Collector) SystemInfo(ctx context.Context) interfaces.SystemInfo {
	var info interfaces.SystemInfo
	var wg sync.WaitGroup
	wg.Add(6)
	go func() {
		defer wg.Done()
		info.Hostname = c.hostname(ctx)
	}()
	go func() {
		defer wg.Done()
		info.UptimeSeconds, info.BootTime = c.uptime()
	}()
	go func() {
		defer wg.Done()
		info.SecurityUpdates, info.OtherUpdates = c.aptUpdates(ctx)
	}()
	go func() {
		defer wg.Done()
		info.DiskUsagePercent = c.diskUsage(ctx)
	}()
	go func() {
		defer wg.Done()
		info.PublicIP = c.publicIP(ctx)
	}()
	go func() {
		defer wg.Done()
		info.InodesUsed, info.InodesTotal, info.InodesPercent = c.inodes()
	}()
	wg.Wait()
	return info
}

// Overview assembles the header card.
func (c *Collector) Overview(ctx context.Context) interfaces.ServerOverview {
	var (
		wg        sync.WaitGroup
		info      interfaces.SystemInfo
		osName    string
		kernel    string
		woVersion string
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		info = c.SystemInfo(ctx)
	}()
	go func() {
		defer wg.Done()
		osName = c.osVersion()
	}()
	go func() {
		defer wg.Done()
		kernel = kernelRelease()
	}()
	go func() {
		defer wg.Done()
		woVersion = c.wordOps(ctx)
	}()
	wg.Wait()

	return interfaces.ServerOverview{
		Hostname:        info.Hostname,
		PublicIP:        info.PublicIP,
		OSVersion:       osName,
		KernelVersion:   kernel,
		UptimeSeconds:   info.UptimeSeconds,
		WordOpsVersion:  woVersion,
		SecurityUpdates: info.SecurityUpdates,
		OtherUpdates:    info.OtherUpdates,
	}
}

func (c *Collector) hostname(ctx context.Context) string {
	out, err := c.runner.Run(ctx, executor.StatusTimeout, "hostname")
	if err == nil && out != "" {
		return out
	}
	c.log.Debug("hostname probe failed", "err", err)
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return unknown
}

// uptime reads the first field of /proc/uptime. On failure uptime is 0 and
// the boot time is now.
func (c *Collector) uptime() (int64, string) {
	now := c.now()
	raw, err := os.ReadFile(filepath.Join(c.procRoot, "uptime"))
	if err != nil {
		c.log.Debug("uptime probe failed", "err", err)
		return 0, now.UTC().Format(time.RFC3339)
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return 0, now.UTC().Format(time.RFC3339)
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || secs < 0 {
		return 0, now.UTC().Format(time.RFC3339)
	}
	up := int64(secs)
	return up, now.Add(-time.Duration(up) * time.Second).UTC().Format(time.RFC3339)
}

// aptUpdates counts `apt list --upgradable` entries, splitting out the ones
// coming from a security pocket.
func (c *Collector) aptUpdates(ctx context.Context) (security, other int) {
	out, err := c.runner.Run(ctx, executor.QueryTimeout, "apt", "list", "--upgradable")
	if err != nil {
		c.log.Debug("apt probe failed", "err", err)
		return 0, 0
	}
	return countUpdates(out)
}

func countUpdates(out string) (security, other int) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" || !strings.Contains(line, "/") {
			continue
		}
		if strings.Contains(line, "security") {
			security++
		} else {
			other++
		}
	}
	return security, other
}

func (c *Collector) diskUsage(ctx context.Context) float64 {
	out, err := c.runner.Run(ctx, executor.StatusTimeout, "df", "/", "--output=pcent")
	if err != nil {
		c.log.Debug("df probe failed", "err", err)
		return 0
	}
	return parseDiskPercent(out)
}

// parseDiskPercent reads "Use%\n 45%".
func parseDiskPercent(out string) float64 {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.EqualFold(line, "Use%") {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(line, "%"), 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// publicIP asks the OpenDNS resolver for myip.opendns.com, which answers
// with the address the query came from.
func (c *Collector) publicIP(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dnsTimeout)
	defer cancel()

	m := new(dns.Msg)
	m.SetQuestion(publicIPName, dns.TypeA)
	m.RecursionDesired = true

	in, _, err := c.dns.ExchangeContext(ctx, m, c.resolver)
	if err != nil {
		c.log.Debug("public ip probe failed", "err", err)
		return unknown
	}
	for _, answer := range in.Answer {
		if a, ok := answer.(*dns.A); ok {
			return a.A.String()
		}
	}
	return unknown
}

func (c *Collector) inodes() (used, total *uint64, percent *float64) {
	var st unix.Statfs_t
	if err := unix.Statfs(c.statfsPath, &st); err != nil {
		c.log.Debug("statfs probe failed", "err", err)
		return nil, nil, nil
	}
	if st.Files == 0 {
		return nil, nil, nil
	}
	t := st.Files
	u := st.Files - st.Ffree
	p := math.Round(float64(u)/float64(t)*10000) / 100
	return &u, &t, &p
}

// osVersion reads PRETTY_NAME from os-release.
func (c *Collector) osVersion() string {
	cfg, err := ini.Load(c.osRelease)
	if err != nil {
		c.log.Debug("os-release probe failed", "err", err)
		return unknown
	}
	if name := cfg.Section("").Key("PRETTY_NAME").String(); name != "" {
		return name
	}
	return unknown
}

func kernelRelease() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return unknown
	}
	return unix.ByteSliceToString(uts.Release[:])
}

func (c *Collector) wordOps(ctx context.Context) string {
	if c.wordopsVersion == nil {
		return unknown
	}
	v, err := c.wordopsVersion(ctx)
	if err != nil || v == "" {
		c.log.Debug("wordops version probe failed", "err", err)
		return unknown
	}
	return v
}

var _ interfaces.SystemInfoProvider = (*Collector)(nil)
