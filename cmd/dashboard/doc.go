// Command wo-dashboard serves the WordOps dashboard API on a WordOps host.
//
// It wraps the `wo` CLI, systemd, the local Netdata agent and the web stack
// log files behind an authenticated JSON API with a websocket log stream.
// Configuration comes from an optional YAML file (--config) with flags and
// WO_DASHBOARD_* environment variables taking precedence.
//
// Example:
//
//	wo-dashboard hash-password < password.txt
//	wo-dashboard --config /etc/wo-dashboard.yaml --listen-addr 127.0.0.1:8000
package main
