// Package wordops drives the WordOps CLI and reconciles its free-text output
// into typed site records. Nothing is cached: every read re-runs the CLI.
package wordops

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/wpbryant/WordOps-Dashboard/common"
	"github.com/wpbryant/WordOps-Dashboard/executor"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
)

const (
	DefaultBinary       = "wo"
	DefaultBinaryPath   = "/usr/local/bin/wo"
	DefaultNginxConfDir = "/etc/nginx/sites-available"
	DefaultWebRoot      = "/var/www"
	DefaultNginxLogDir  = "/var/log/nginx"

	// listConcurrency bounds parallel `site info` calls during a listing.
	listConcurrency = 4
)

// Options overrides filesystem locations; zero values use the defaults.
type Options struct {
	Binary       string
	NginxConfDir string
	WebRoot      string
	NginxLogDir  string
	Now          func() time.Time
}

// Client implements interfaces.SiteManager on top of the WordOps CLI.
type Client struct {
	runner       executor.Runner
	log          *slog.Logger
	binary       string
	nginxConfDir string
	webRoot      string
	nginxLogDir  string
	now          func() time.Time
}

// NewClient creates a WordOps client that runs commands through runner.
func NewClient(runner executor.Runner, log *slog.Logger, opts Options) *Client {
	c := &Client{
		runner:       runner,
		log:          common.OrDefault(log),
		binary:       opts.Binary,
		nginxConfDir: opts.NginxConfDir,
		webRoot:      opts.WebRoot,
		nginxLogDir:  opts.NginxLogDir,
		now:          opts.Now,
	}
	if c.binary == "" {
		c.binary = DefaultBinary
	}
	if c.nginxConfDir == "" {
		c.nginxConfDir = DefaultNginxConfDir
	}
	if c.webRoot == "" {
		c.webRoot = DefaultWebRoot
	}
	if c.nginxLogDir == "" {
		c.nginxLogDir = DefaultNginxLogDir
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

func (c *Client) wo(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	return c.runner.Run(ctx, timeout, c.binary, args...)
}

// Version returns the `wo --version` output.
func (c *Client) Version(ctx context.Context) (string, error) {
	return c.wo(ctx, executor.StatusTimeout, "--version")
}

// Available reports whether the WordOps binary runs at all.
func (c *Client) Available(ctx context.Context) bool {
	_, err := c.Version(ctx)
	return err == nil
}

// isNotFoundFailure decides whether a failed `wo site ...` call means the site
// does not exist. WordOps has no dedicated exit code for this, so the decision
// is a substring match on the command's diagnostic and may need adjusting when
// WordOps changes its wording. Only CommandFailedError is considered: a missing
// binary or a timeout is never read as an absent site.
func isNotFoundFailure(err error) bool {
	cf, ok := interfaces.AsCommandFailed(err)
	if !ok {
		return false
	}
	detail := strings.ToLower(cf.Detail)
	return strings.Contains(detail, "not found") || strings.Contains(detail, "does not exist")
}
