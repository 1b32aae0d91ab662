package wordops

import (
	"regexp"
	"strings"

	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"github.com/wpbryant/WordOps-Dashboard/validation"
)

var (
	ansiEscape     = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)
	versionPattern = regexp.MustCompile(`(\d+\.\d+)`)
)

var tlsOnValues = map[string]bool{
	"enabled": true,
	"active":  true,
	"yes":     true,
	"on":      true,
	"true":    true,
}

// siteFields accumulates what the rules extract from `wo site info`.
// Empty strings mean the label was not seen.
type siteFields struct {
	siteType   interfaces.SiteType
	cache      interfaces.CacheType
	tls        bool
	disabled   bool
	phpVersion string
	dbName     string
	dbUser     string
	dbPass     string
}

// fieldRule is one independent line matcher. Every rule runs against every
// line, so a change to one label's recognition cannot affect another field.
type fieldRule struct {
	name  string
	match func(lower string, tokens []string) bool
	apply func(tokens []string, f *siteFields)
}

var siteInfoRules = []fieldRule{
	{
		name: "nginx-configuration",
		match: func(lower string, tokens []string) bool {
			return strings.Contains(lower, "nginx configuration")
		},
		apply: applyNginxConfiguration,
	},
	{
		// "SSL   enabled" only. WordOps also prints "SSL PROVIDER ..." and
		// "SSL EXPIRATION DATE ..." lines.
		name: "tls",
		match: func(lower string, tokens []string) bool {
			return len(tokens) == 2 && strings.EqualFold(tokens[0], "ssl")
		},
		apply: func(tokens []string, f *siteFields) {
			f.tls = tlsOnValues[strings.ToLower(tokens[1])]
		},
	},
	{
		name: "php-version",
		match: func(lower string, tokens []string) bool {
			return strings.Contains(lower, "php version") && len(tokens) >= 3
		},
		apply: func(tokens []string, f *siteFields) {
			if m := versionPattern.FindString(tokens[2]); m != "" {
				f.phpVersion = m
			}
		},
	},
	{
		name: "db-name",
		match: func(lower string, tokens []string) bool {
			return strings.Contains(lower, "db_name") && len(tokens) >= 2
		},
		apply: func(tokens []string, f *siteFields) { f.dbName = tokens[1] },
	},
	{
		name: "db-user",
		match: func(lower string, tokens []string) bool {
			return strings.Contains(lower, "db_user") && len(tokens) >= 2
		},
		apply: func(tokens []string, f *siteFields) { f.dbUser = tokens[1] },
	},
	{
		name: "db-pass",
		match: func(lower string, tokens []string) bool {
			return strings.Contains(lower, "db_pass") && len(tokens) >= 2
		},
		apply: func(tokens []string, f *siteFields) { f.dbPass = tokens[1] },
	},
}

// applyNginxConfiguration reads "Nginx configuration   wp wpfc (enabled)".
func applyNginxConfiguration(tokens []string, f *siteFields) {
	var markers []string
	seen := false
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		if !seen {
			seen = lower == "configuration"
			continue
		}
		if strings.HasPrefix(lower, "(") {
			f.disabled = strings.Contains(lower, "disabled")
			break
		}
		markers = append(markers, lower)
	}
	if len(markers) == 0 {
		return
	}
	f.siteType, f.cache = classifyConfig(markers)
}

// classifyConfig maps the configuration markers to a site type and cache.
func classifyConfig(markers []string) (interfaces.SiteType, interfaces.CacheType) {
	has := func(candidates ...string) bool {
		for _, m := range markers {
			for _, c := range candidates {
				if m == c {
					return true
				}
			}
		}
		return false
	}

	switch {
	case has("wp", "wordpress", "wpsubdir", "wpsubdomain"):
		switch {
		case has("wpfc", "fc"):
			return interfaces.SiteTypeWordPress, interfaces.CacheWPFC
		case has("wpsc", "sc"):
			return interfaces.SiteTypeWordPress, interfaces.CacheWPSC
		case has("wpredis", "redis"):
			return interfaces.SiteTypeWordPress, interfaces.CacheRedis
		default:
			return interfaces.SiteTypeWordPress, interfaces.CacheNone
		}
	case has("mysql"):
		return interfaces.SiteTypeMySQL, ""
	case has("php"):
		return interfaces.SiteTypePHP, ""
	case has("html", "static"):
		return interfaces.SiteTypeHTML, ""
	case has("proxy"):
		return interfaces.SiteTypeProxy, ""
	case has("alias"):
		return interfaces.SiteTypeAlias, ""
	}
	return "", ""
}

// ParseSiteList extracts domain names from `wo site list` output. Header and
// separator lines are skipped and every candidate must pass domain validation.
func ParseSiteList(output string) []string {
	var domains []string
	for _, line := range strings.Split(stripANSI(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "=") {
			continue
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "site") && strings.Contains(lower, "type") {
			continue
		}
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		if validation.ValidateDomain(tokens[0]) {
			domains = append(domains, tokens[0])
		}
	}
	return domains
}

// ParseSiteInfo builds a SiteRecord from `wo site info <domain>` output.
// Missing labels leave fields at their defaults; the type defaults to wordpress.
func ParseSiteInfo(domain, output string) interfaces.SiteRecord {
	var f siteFields
	for _, line := range strings.Split(stripANSI(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		tokens := strings.Fields(line)
		for _, rule := range siteInfoRules {
			if rule.match(lower, tokens) {
				rule.apply(tokens, &f)
			}
		}
	}

	if f.siteType == "" {
		f.siteType = interfaces.SiteTypeWordPress
	}

	return interfaces.SiteRecord{
		Domain:     domain,
		Type:       f.siteType,
		TLS:        f.tls,
		Cache:      f.cache,
		PHPVersion: f.phpVersion,
		Database:   databaseInfo(domain, f),
		Disabled:   f.disabled,
	}
}

// databaseInfo returns the observed credentials, synthesizing name and user
// from the domain for database-backed site types when WordOps did not print them.
func databaseInfo(domain string, f siteFields) *interfaces.DatabaseInfo {
	name, user := f.dbName, f.dbUser
	synthesized := false
	if f.siteType.UsesDatabase() {
		base := strings.NewReplacer(".", "_", "-", "_").Replace(domain)
		if name == "" {
			name = base + "_db"
			synthesized = true
		}
		if user == "" {
			user = base
			synthesized = true
		}
	}
	if name == "" && user == "" {
		return nil
	}
	return &interfaces.DatabaseInfo{
		Name:        name,
		User:        user,
		Password:    f.dbPass,
		Host:        "localhost",
		Synthesized: synthesized,
	}
}

// ParseCreationOutput extracts the WordPress admin credentials printed once by
// `wo site create`. It returns nil when none were found.
func ParseCreationOutput(output string) *interfaces.AdminCredentials {
	var creds interfaces.AdminCredentials
	for _, line := range strings.Split(stripANSI(output), "\n") {
		lower := strings.ToLower(line)

		if strings.Contains(lower, "wordpress admin") && strings.Contains(lower, "http") {
			if idx := strings.Index(line, "http"); idx >= 0 {
				creds.URL = strings.TrimSpace(line[idx:])
			}
		}
		if strings.Contains(lower, "wordpress username") || strings.Contains(lower, "admin user") {
			if _, v, ok := strings.Cut(line, ":"); ok {
				creds.Username = strings.TrimSpace(v)
			}
		}
		if strings.Contains(lower, "wordpress password") || strings.Contains(lower, "admin password") {
			if _, v, ok := strings.Cut(line, ":"); ok {
				creds.Password = strings.TrimSpace(v)
			}
		}
	}

	if creds == (interfaces.AdminCredentials{}) {
		return nil
	}
	return &creds
}

func stripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}
