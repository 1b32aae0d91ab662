package services

import "strings"

type family int

const (
	familyNone family = iota
	familyWorkers
	familyConnections
	familyClients
)

// catalogEntry describes how to enrich one allow-listed service. Commands and
// paths here never include caller input.
type catalogEntry struct {
	displayName string
	configFile  string
	versionCmd  []string
	family      family
}

func phpEntry(version string) catalogEntry {
	return catalogEntry{
		displayName: "PHP " + version + "-FPM",
		configFile:  "/etc/php/" + version + "/fpm/php-fpm.conf",
		versionCmd:  []string{"php-fpm" + version, "-v"},
		family:      familyWorkers,
	}
}

// catalog is keyed on exactly the names of the service allow-set.
var catalog = map[string]catalogEntry{
	"nginx": {
		displayName: "Nginx",
		configFile:  "/etc/nginx/nginx.conf",
		versionCmd:  []string{"nginx", "-v"},
		family:      familyWorkers,
	},
	"php7.4-fpm": phpEntry("7.4"),
	"php8.0-fpm": phpEntry("8.0"),
	"php8.1-fpm": phpEntry("8.1"),
	"php8.2-fpm": phpEntry("8.2"),
	"php8.3-fpm": phpEntry("8.3"),
	"php8.4-fpm": phpEntry("8.4"),
	"mariadb": {
		displayName: "MariaDB",
		configFile:  "/etc/mysql/my.cnf",
		versionCmd:  []string{"mariadb", "--version"},
		family:      familyConnections,
	},
	"mysql": {
		displayName: "MySQL",
		configFile:  "/etc/mysql/my.cnf",
		versionCmd:  []string{"mysql", "--version"},
		family:      familyConnections,
	},
	"redis-server": {
		displayName: "Redis",
		configFile:  "/etc/redis/redis.conf",
		versionCmd:  []string{"redis-server", "--version"},
		family:      familyClients,
	},
	"postfix": {
		displayName: "Postfix",
		configFile:  "/etc/postfix/main.cf",
		versionCmd:  []string{"postconf", "-h", "mail_version"},
	},
	"fail2ban": {
		displayName: "Fail2ban",
		configFile:  "/etc/fail2ban/jail.local",
		versionCmd:  []string{"fail2ban-client", "--version"},
	},
	"ufw": {
		displayName: "UFW",
		configFile:  "/etc/ufw/ufw.conf",
		versionCmd:  []string{"ufw", "--version"},
	},
	"netdata": {
		displayName: "Netdata",
		configFile:  "/etc/netdata/netdata.conf",
		versionCmd:  []string{"netdata", "-V"},
	},
}

// phpVersionOf returns "8.3" for "php8.3-fpm", or "" for other services.
func phpVersionOf(name string) string {
	if !strings.HasPrefix(name, "php") || !strings.HasSuffix(name, "-fpm") {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, "php"), "-fpm")
}
