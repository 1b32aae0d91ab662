// Package clients provides a Go client for the dashboard HTTP API and a
// testify mock of it. cmd/dashctl is built on top of it.
package clients
