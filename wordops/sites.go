package wordops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wpbryant/WordOps-Dashboard/executor"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"github.com/wpbryant/WordOps-Dashboard/validation"
	"golang.org/x/sync/errgroup"
)

// ListSites returns every site WordOps knows about. A site whose detail query
// fails is still listed with default fields.
func (c *Client) ListSites(ctx context.Context) ([]interfaces.SiteRecord, error) {
	out, err := c.wo(ctx, executor.QueryTimeout, "site", "list")
	if err != nil {
		return nil, err
	}

	domains := ParseSiteList(out)
	results := make([]*interfaces.SiteRecord, len(domains))

	var g errgroup.Group
	g.SetLimit(listConcurrency)
	for i, domain := range domains {
		g.Go(func() error {
			rec, err := c.GetSiteInfo(ctx, domain)
			if err != nil {
				c.log.Warn("Failed to fetch site info, listing with defaults", "domain", domain, "err", err)
				results[i] = degradedRecord(domain)
				return nil
			}
			results[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	sites := make([]interfaces.SiteRecord, 0, len(domains))
	for _, rec := range results {
		if rec != nil {
			sites = append(sites, *rec)
		}
	}
	return sites, nil
}

// ListSitesFiltered applies filter to ListSites.
func (c *Client) ListSitesFiltered(ctx context.Context, filter interfaces.SiteFilter) ([]interfaces.SiteRecord, error) {
	sites, err := c.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	return FilterSites(sites, filter), nil
}

// FilterSites keeps the records matching every non-zero field of filter.
func FilterSites(sites []interfaces.SiteRecord, filter interfaces.SiteFilter) []interfaces.SiteRecord {
	search := strings.ToLower(filter.Search)
	out := make([]interfaces.SiteRecord, 0, len(sites))
	for _, s := range sites {
		if filter.Type != "" && s.Type != filter.Type {
			continue
		}
		if filter.TLS != nil && s.TLS != *filter.TLS {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(s.Domain), search) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func degradedRecord(domain string) *interfaces.SiteRecord {
	return &interfaces.SiteRecord{
		Domain: domain,
		Type:   interfaces.SiteTypeWordPress,
	}
}

// GetSiteInfo returns the site's current record, or (nil, nil) when WordOps
// reports that the site does not exist.
func (c *Client) GetSiteInfo(ctx context.Context, domain string) (*interfaces.SiteRecord, error) {
	if err := validation.Domain(domain); err != nil {
		return nil, err
	}

	out, err := c.wo(ctx, executor.QueryTimeout, "site", "info", domain)
	if err != nil {
		if isNotFoundFailure(err) {
			return nil, nil
		}
		return nil, err
	}
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}

	rec := ParseSiteInfo(domain, out)
	return &rec, nil
}

// requireSite is GetSiteInfo with absence turned into ErrNotFound.
func (c *Client) requireSite(ctx context.Context, domain string) (*interfaces.SiteRecord, error) {
	rec, err := c.GetSiteInfo(ctx, domain)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("site %s: %w", domain, interfaces.ErrNotFound)
	}
	return rec, nil
}

func typeFlag(req interfaces.CreateSiteRequest) (string, error) {
	switch req.Type {
	case interfaces.SiteTypeWordPress:
		return "--wp", nil
	case interfaces.SiteTypePHP:
		return "--php", nil
	case interfaces.SiteTypeHTML:
		return "--html", nil
	case interfaces.SiteTypeMySQL:
		return "--mysql", nil
	case interfaces.SiteTypeProxy:
		if !validation.ValidateProxyTarget(req.ProxyTarget) {
			return "", &interfaces.ValidationError{Field: "proxy_target", Value: req.ProxyTarget, Reason: "expected host:port"}
		}
		return "--proxy=" + req.ProxyTarget, nil
	case interfaces.SiteTypeAlias:
		if !validation.ValidateDomain(req.AliasTarget) {
			return "", &interfaces.ValidationError{Field: "alias_target", Value: req.AliasTarget, Reason: "not a valid domain name"}
		}
		return "--alias=" + req.AliasTarget, nil
	}
	return "", &interfaces.ValidationError{Field: "type", Value: string(req.Type), Reason: "unknown site type"}
}

// cacheFlag maps a cache type to its WordOps flag. CacheNone maps to the
// explicit "off" form, used only by updates.
func cacheFlag(cache interfaces.CacheType) (string, error) {
	switch cache {
	case interfaces.CacheNone:
		return "--wpfc=off", nil
	case interfaces.CacheWPFC:
		return "--wpfc", nil
	case interfaces.CacheWPSC:
		return "--wpsc", nil
	case interfaces.CacheWPRedis, interfaces.CacheRedis:
		return "--wpredis", nil
	}
	return "", &interfaces.ValidationError{Field: "cache", Value: string(cache), Reason: "unknown cache type"}
}

// phpFlag turns "8.3" into "--php83".
func phpFlag(version string) (string, error) {
	if err := validation.RuntimeVersion(version); err != nil {
		return "", err
	}
	return "--php" + strings.ReplaceAll(version, ".", ""), nil
}

// BuildCreateArgs validates req and returns the `wo` argument vector.
func BuildCreateArgs(req interfaces.CreateSiteRequest) ([]string, error) {
	if err := validation.Domain(req.Domain); err != nil {
		return nil, err
	}
	if req.Type == "" {
		req.Type = interfaces.SiteTypeWordPress
	}

	tf, err := typeFlag(req)
	if err != nil {
		return nil, err
	}
	args := []string{"site", "create", req.Domain, tf}

	if req.Cache != "" && req.Cache != interfaces.CacheNone {
		if req.Type != interfaces.SiteTypeWordPress {
			return nil, &interfaces.ValidationError{Field: "cache", Value: string(req.Cache), Reason: "page cache requires a wordpress site"}
		}
		cf, err := cacheFlag(req.Cache)
		if err != nil {
			return nil, err
		}
		args = append(args, cf)
	}

	if req.TLS {
		args = append(args, "--letsencrypt")
	}

	if req.PHPVersion != "" {
		pf, err := phpFlag(req.PHPVersion)
		if err != nil {
			return nil, err
		}
		args = append(args, pf)
	}
	return args, nil
}

// CreateSite provisions a site and returns its freshly read record. WordPress
// admin credentials are only available here, parsed from the creation output.
func (c *Client) CreateSite(ctx context.Context, req interfaces.CreateSiteRequest) (*interfaces.SiteRecord, error) {
	args, err := BuildCreateArgs(req)
	if err != nil {
		return nil, err
	}

	c.log.Info("Creating site", "domain", req.Domain, "args", args)
	out, err := c.wo(ctx, executor.ProvisionTimeout, args...)
	if err != nil {
		return nil, err
	}

	var creds *interfaces.AdminCredentials
	if req.Type == "" || req.Type == interfaces.SiteTypeWordPress {
		creds = ParseCreationOutput(out)
	}

	rec, err := c.GetSiteInfo(ctx, req.Domain)
	if err != nil || rec == nil {
		c.log.Warn("Site created but could not be re-read", "domain", req.Domain, "err", err)
		rec = fallbackRecord(req)
		rec.Unverified = true
	}
	rec.AdminCredentials = creds
	return rec, nil
}

func fallbackRecord(req interfaces.CreateSiteRequest) *interfaces.SiteRecord {
	siteType := req.Type
	if siteType == "" {
		siteType = interfaces.SiteTypeWordPress
	}
	return &interfaces.SiteRecord{
		Domain:     req.Domain,
		Type:       siteType,
		TLS:        req.TLS,
		Cache:      req.Cache,
		PHPVersion: req.PHPVersion,
	}
}

// BuildUpdateCommands returns one argument vector per change. TLS is only
// toggled when it differs from the current state.
func BuildUpdateCommands(current *interfaces.SiteRecord, req interfaces.UpdateSiteRequest) ([][]string, error) {
	domain := current.Domain
	var cmds [][]string

	if req.TLS != nil && *req.TLS != current.TLS {
		flag := "--letsencrypt=off"
		if *req.TLS {
			flag = "--letsencrypt"
		}
		cmds = append(cmds, []string{"site", "update", domain, flag})
	}

	if req.Cache != nil {
		cf, err := cacheFlag(*req.Cache)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, []string{"site", "update", domain, cf})
	}

	if req.PHPVersion != nil {
		pf, err := phpFlag(*req.PHPVersion)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, []string{"site", "update", domain, pf})
	}
	return cmds, nil
}

// UpdateSite applies the requested changes one `site update` call at a time
// and returns the re-read record. The first failing call aborts the rest.
func (c *Client) UpdateSite(ctx context.Context, domain string, req interfaces.UpdateSiteRequest) (*interfaces.SiteRecord, error) {
	current, err := c.requireSite(ctx, domain)
	if err != nil {
		return nil, err
	}

	cmds, err := BuildUpdateCommands(current, req)
	if err != nil {
		return nil, err
	}

	for _, args := range cmds {
		timeout := executor.UpdateTimeout
		if args[len(args)-1] == "--letsencrypt" {
			timeout = executor.ProvisionTimeout
		}
		c.log.Info("Updating site", "domain", domain, "args", args)
		if _, err := c.wo(ctx, timeout, args...); err != nil {
			return nil, err
		}
	}

	updated, err := c.GetSiteInfo(ctx, domain)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return current, nil
	}
	return updated, nil
}

// DeleteSite removes a site without prompting.
func (c *Client) DeleteSite(ctx context.Context, domain string) error {
	if _, err := c.requireSite(ctx, domain); err != nil {
		return err
	}
	c.log.Info("Deleting site", "domain", domain)
	_, err := c.wo(ctx, executor.DeleteTimeout, "site", "delete", domain, "--no-prompt")
	return err
}

// EnableSite re-enables the site's nginx configuration.
func (c *Client) EnableSite(ctx context.Context, domain string) (*interfaces.SiteRecord, error) {
	return c.toggleSite(ctx, domain, "enable")
}

// DisableSite disables the site's nginx configuration without deleting it.
func (c *Client) DisableSite(ctx context.Context, domain string) (*interfaces.SiteRecord, error) {
	return c.toggleSite(ctx, domain, "disable")
}

func (c *Client) toggleSite(ctx context.Context, domain, action string) (*interfaces.SiteRecord, error) {
	if _, err := c.requireSite(ctx, domain); err != nil {
		return nil, err
	}
	c.log.Info("Toggling site", "domain", domain, "action", action)
	if _, err := c.wo(ctx, executor.UpdateTimeout, "site", action, domain); err != nil {
		return nil, err
	}
	return c.requireSite(ctx, domain)
}

// NginxConfig returns the site's nginx server block.
func (c *Client) NginxConfig(ctx context.Context, domain string) (string, error) {
	if err := validation.Domain(domain); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(c.nginxConfDir, domain))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("nginx config for %s: %w", domain, interfaces.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("could not read nginx config for %s: %w", domain, err)
	}
	return string(data), nil
}
