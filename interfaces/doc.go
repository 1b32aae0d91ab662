// Package interfaces defines the types and contracts shared across the dashboard.
//
// # Domain types
//
// SiteRecord, ServiceStatus, StackServiceInfo, SystemSnapshot and friends are the
// values every component returns. None of them is persisted: each read re-derives
// them from WordOps, systemd, Netdata or the filesystem.
//
// # Errors
//
// ValidationError, ErrCommandNotFound, CommandFailedError, ErrTimeout, ParseError
// and ErrNotFound form the error taxonomy. The HTTP layer maps them to status codes.
//
// # Contracts
//
// SiteManager, ServiceManager, MetricsSource, SystemInfoProvider and LogSource are
// consumed by the HTTP handlers and implemented by the wordops, services, netdata,
// sysinfo and logs packages.
package interfaces
