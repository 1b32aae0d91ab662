// Package validation guards every identifier that can reach an external
// command's argument list or a filesystem path.
package validation

import (
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/wpbryant/WordOps-Dashboard/interfaces"
)

const maxDomainLength = 253

var (
	domainPattern         = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-.]*[a-zA-Z0-9])?$`)
	runtimeVersionPattern = regexp.MustCompile(`^\d+\.\d+$`)
)

// forbiddenChars are rejected even though the grammar already excludes them,
// so a future grammar change cannot let them through.
const forbiddenChars = ";&|$`(){}[]<>!~'\"\\ \t\r\n"

// allowedServices is the closed set of units the dashboard may inspect or restart.
// The stack catalog in package services is keyed on the same names.
var allowedServices = map[string]struct{}{
	"nginx":        {},
	"php7.4-fpm":   {},
	"php8.0-fpm":   {},
	"php8.1-fpm":   {},
	"php8.2-fpm":   {},
	"php8.3-fpm":   {},
	"php8.4-fpm":   {},
	"mariadb":      {},
	"mysql":        {},
	"redis-server": {},
	"postfix":      {},
	"fail2ban":     {},
	"ufw":          {},
	"netdata":      {},
}

// ValidateDomain reports whether name is a syntactically safe domain name.
func ValidateDomain(name string) bool {
	if name == "" || len(name) > maxDomainLength {
		return false
	}
	if strings.ContainsAny(name, forbiddenChars) {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return domainPattern.MatchString(name)
}

// ValidateService reports whether name is in the service allow-set.
// Matching is exact; no case folding or trimming.
func ValidateService(name string) bool {
	_, ok := allowedServices[name]
	return ok
}

// AllowedServices returns the allow-set in sorted order.
func AllowedServices() []string {
	names := make([]string, 0, len(allowedServices))
	for name := range allowedServices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateRuntimeVersion accepts "<major>.<minor>" runtime versions such as "8.3".
func ValidateRuntimeVersion(v string) bool {
	return runtimeVersionPattern.MatchString(v)
}

// ValidateProxyTarget accepts "host:port" where host is a valid domain or an
// IP literal and port is in 1..65535.
func ValidateProxyTarget(target string) bool {
	host, port, err := net.SplitHostPort(target)
	if err != nil || host == "" {
		return false
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return false
	}
	if net.ParseIP(host) != nil {
		return true
	}
	return ValidateDomain(host)
}

// Domain returns a *interfaces.ValidationError when name is not a valid domain.
func Domain(name string) error {
	if !ValidateDomain(name) {
		return &interfaces.ValidationError{Field: "domain", Value: name, Reason: "not a valid domain name"}
	}
	return nil
}

// Service returns a *interfaces.ValidationError when name is not allow-listed.
func Service(name string) error {
	if !ValidateService(name) {
		return &interfaces.ValidationError{Field: "service", Value: name, Reason: "not in the allowed service list"}
	}
	return nil
}

// RuntimeVersion returns a *interfaces.ValidationError for malformed versions.
func RuntimeVersion(v string) error {
	if !ValidateRuntimeVersion(v) {
		return &interfaces.ValidationError{Field: "php_version", Value: v, Reason: "expected <major>.<minor>"}
	}
	return nil
}
