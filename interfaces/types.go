// Package interfaces defines the domain types shared by the dashboard components
// and the contracts between them, without implementation details.
package interfaces

import "time"

// SiteType is the kind of site WordOps provisioned.
type SiteType string

const (
	SiteTypeWordPress SiteType = "wordpress"
	SiteTypePHP       SiteType = "php"
	SiteTypeHTML      SiteType = "html"
	SiteTypeProxy     SiteType = "proxy"
	SiteTypeMySQL     SiteType = "mysql"
	SiteTypeAlias     SiteType = "alias"
)

// Valid reports whether t is one of the known site types.
func (t SiteType) Valid() bool {
	switch t {
	case SiteTypeWordPress, SiteTypePHP, SiteTypeHTML, SiteTypeProxy, SiteTypeMySQL, SiteTypeAlias:
		return true
	}
	return false
}

// UsesDatabase reports whether sites of this type carry database credentials.
func (t SiteType) UsesDatabase() bool {
	return t == SiteTypeWordPress || t == SiteTypePHP || t == SiteTypeMySQL
}

// CacheType is the page cache configured for a WordPress site.
type CacheType string

const (
	CacheNone    CacheType = "none"
	CacheWPFC    CacheType = "wpfc"
	CacheWPSC    CacheType = "wpsc"
	CacheWPRedis CacheType = "wpredis"
	CacheRedis   CacheType = "redis"
)

// Valid reports whether c is one of the known cache types.
func (c CacheType) Valid() bool {
	switch c {
	case CacheNone, CacheWPFC, CacheWPSC, CacheWPRedis, CacheRedis:
		return true
	}
	return false
}

// DatabaseInfo holds database credentials for a site. Synthesized is set when
// the values were derived from the domain name rather than read from WordOps.
type DatabaseInfo struct {
	Name        string `json:"name"`
	User        string `json:"user"`
	Password    string `json:"password,omitempty"`
	Host        string `json:"host"`
	Synthesized bool   `json:"synthesized"`
}

// AdminCredentials are printed once by WordOps when a WordPress site is created.
// They are returned to the creating caller and never persisted.
type AdminCredentials struct {
	URL      string `json:"url,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// SiteRecord is the dashboard view of one WordOps site, re-derived on every read.
type SiteRecord struct {
	Domain           string            `json:"domain"`
	Type             SiteType          `json:"type"`
	TLS              bool              `json:"ssl"`
	Cache            CacheType         `json:"cache,omitempty"`
	PHPVersion       string            `json:"php_version,omitempty"`
	Database         *DatabaseInfo     `json:"database,omitempty"`
	Disabled         bool              `json:"disabled"`
	CreatedAt        *time.Time        `json:"created_at,omitempty"`
	AdminCredentials *AdminCredentials `json:"admin_credentials,omitempty"`

	// Unverified marks a record echoed from the create request because the
	// site could not be read back afterwards.
	Unverified bool `json:"unverified,omitempty"`
}

// SiteFilter narrows a site listing. Zero values match everything.
type SiteFilter struct {
	Type   SiteType
	TLS    *bool
	Search string
}

// CreateSiteRequest describes a site to provision.
type CreateSiteRequest struct {
	Domain      string    `json:"domain"`
	Type        SiteType  `json:"type"`
	PHPVersion  string    `json:"php_version,omitempty"`
	TLS         bool      `json:"ssl"`
	Cache       CacheType `json:"cache,omitempty"`
	ProxyTarget string    `json:"proxy_target,omitempty"`
	AliasTarget string    `json:"alias_target,omitempty"`
}

// UpdateSiteRequest carries the fields to change. Nil fields are left alone.
type UpdateSiteRequest struct {
	TLS        *bool      `json:"ssl,omitempty"`
	Cache      *CacheType `json:"cache,omitempty"`
	PHPVersion *string    `json:"php_version,omitempty"`
}

// SiteMonitoring reports resource usage of one site. Fields that could not be
// measured hold "N/A".
type SiteMonitoring struct {
	Domain         string `json:"domain"`
	DiskUsage      string `json:"disk_usage"`
	DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
	Inodes         string `json:"inodes"`
	Bandwidth      string `json:"bandwidth"`
	BandwidthBytes *int64 `json:"bandwidth_bytes,omitempty"`
}

// ServiceStatus is the systemd view of one allow-listed service.
type ServiceStatus struct {
	Name          string `json:"name"`
	ActiveState   string `json:"status"`
	SubState      string `json:"sub_state"`
	MainPID       int    `json:"pid"`
	MemoryBytes   *int64 `json:"memory_bytes,omitempty"`
	UptimeSeconds *int64 `json:"uptime_seconds,omitempty"`
}

// Active reports whether systemd considers the unit active.
func (s ServiceStatus) Active() bool {
	return s.ActiveState == "active"
}

// WorkerStats describes process-pool style services (nginx, php-fpm).
type WorkerStats struct {
	Workers    int  `json:"workers"`
	MaxWorkers *int `json:"max_workers,omitempty"`
}

// ConnectionStats describes database servers.
type ConnectionStats struct {
	Connections    int  `json:"connections"`
	MaxConnections *int `json:"max_connections,omitempty"`
}

// ClientStats describes key-value stores.
type ClientStats struct {
	ConnectedClients int `json:"connected_clients"`
}

// StackServiceInfo is a ServiceStatus enriched with version, config path and
// family-specific statistics.
type StackServiceInfo struct {
	Name          string           `json:"name"`
	DisplayName   string           `json:"display_name"`
	Status        string           `json:"status"`
	Version       string           `json:"version,omitempty"`
	MemoryUsage   *int64           `json:"memory_usage,omitempty"`
	MemoryDisplay string           `json:"memory_display,omitempty"`
	UptimeSeconds *int64           `json:"uptime_seconds,omitempty"`
	ConfigFile    string           `json:"config_file,omitempty"`
	Workers       *WorkerStats     `json:"worker_stats,omitempty"`
	Connections   *ConnectionStats `json:"connection_stats,omitempty"`
	Clients       *ClientStats     `json:"client_stats,omitempty"`
}

// TimeRange selects the window of a metric snapshot.
type TimeRange string

const (
	Range5m  TimeRange = "5m"
	Range10m TimeRange = "10m"
	Range1h  TimeRange = "1h"
	Range24h TimeRange = "24h"
)

// MetricPoint is one sample of a series.
type MetricPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// MetricSeries is a dashboard-ready series. Current is the last value rounded
// to two decimals, or 0 when Data is empty.
type MetricSeries struct {
	Name    string        `json:"name"`
	Unit    string        `json:"unit"`
	Current float64       `json:"current"`
	Data    []MetricPoint `json:"data"`
}

// SystemSnapshot groups the five series of the metrics view.
type SystemSnapshot struct {
	Range      TimeRange    `json:"range"`
	CPU        MetricSeries `json:"cpu"`
	RAM        MetricSeries `json:"ram"`
	Disk       MetricSeries `json:"disk"`
	NetworkIn  MetricSeries `json:"network_in"`
	NetworkOut MetricSeries `json:"network_out"`
}

// SystemInfo is assembled from independent probes, each with its own default.
type SystemInfo struct {
	Hostname         string   `json:"hostname"`
	UptimeSeconds    int64    `json:"uptime_seconds"`
	BootTime         string   `json:"boot_time"`
	SecurityUpdates  int      `json:"security_updates"`
	OtherUpdates     int      `json:"other_updates"`
	DiskUsagePercent float64  `json:"disk_usage_percent"`
	PublicIP         string   `json:"public_ip"`
	InodesUsed       *uint64  `json:"inodes_used,omitempty"`
	InodesTotal      *uint64  `json:"inodes_total,omitempty"`
	InodesPercent    *float64 `json:"inodes_percent,omitempty"`
}

// ServerOverview is the header card of the dashboard.
type ServerOverview struct {
	Hostname        string `json:"hostname"`
	PublicIP        string `json:"public_ip"`
	OSVersion       string `json:"os_version"`
	KernelVersion   string `json:"kernel_version"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	WordOpsVersion  string `json:"wordops_version"`
	SecurityUpdates int    `json:"security_updates"`
	OtherUpdates    int    `json:"other_updates"`
}
