package interfaces

import "context"

// SiteManager lists and mutates WordOps sites.
type SiteManager interface {
	ListSites(ctx context.Context) ([]SiteRecord, error)
	ListSitesFiltered(ctx context.Context, filter SiteFilter) ([]SiteRecord, error)
	// GetSiteInfo returns (nil, nil) when the site does not exist.
	GetSiteInfo(ctx context.Context, domain string) (*SiteRecord, error)
	CreateSite(ctx context.Context, req CreateSiteRequest) (*SiteRecord, error)
	UpdateSite(ctx context.Context, domain string, req UpdateSiteRequest) (*SiteRecord, error)
	DeleteSite(ctx context.Context, domain string) error
	EnableSite(ctx context.Context, domain string) (*SiteRecord, error)
	DisableSite(ctx context.Context, domain string) (*SiteRecord, error)
	NginxConfig(ctx context.Context, domain string) (string, error)
	SiteMonitoring(ctx context.Context, domain string) (*SiteMonitoring, error)
	Version(ctx context.Context) (string, error)
}

// ServiceManager reports and controls allow-listed systemd services.
type ServiceManager interface {
	// GetStatus returns (nil, nil) when the unit is not installed.
	GetStatus(ctx context.Context, name string) (*ServiceStatus, error)
	GetAllStatuses(ctx context.Context) []ServiceStatus
	Restart(ctx context.Context, name string) error
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	StackServices(ctx context.Context) []StackServiceInfo
}

// MetricsSource produces system metric snapshots.
type MetricsSource interface {
	GetSnapshot(ctx context.Context, r TimeRange) (*SystemSnapshot, error)
}

// SystemInfoProvider assembles host facts.
type SystemInfoProvider interface {
	SystemInfo(ctx context.Context) SystemInfo
	Overview(ctx context.Context) ServerOverview
}

// LogSource tails allow-listed log files.
type LogSource interface {
	Tail(logType string, lines int) ([]string, error)
}

// TokenVerifier resolves a bearer token to the username it was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}
