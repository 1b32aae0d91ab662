package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
)

// DefaultMySQLDSN connects as root over the local socket, as WordOps configures it.
const DefaultMySQLDSN = "root@unix(/run/mysqld/mysqld.sock)/"

// ConnectionCounter reports database server connection counts.
type ConnectionCounter interface {
	Count(ctx context.Context) (*interfaces.ConnectionStats, error)
}

// MySQLCounter queries Threads_connected and max_connections.
type MySQLCounter struct {
	DSN string
}

// NewMySQLCounter validates dsn up front so a typo fails at startup.
func NewMySQLCounter(dsn string) (*MySQLCounter, error) {
	if dsn == "" {
		dsn = DefaultMySQLDSN
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.Timeout = probeTimeout
	cfg.ReadTimeout = probeTimeout
	return &MySQLCounter{DSN: cfg.FormatDSN()}, nil
}

// Count opens a short-lived connection, so an idle dashboard holds none.
func (c *MySQLCounter) Count(ctx context.Context) (*interfaces.ConnectionStats, error) {
	db, err := sql.Open("mysql", c.DSN)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	var name, value string
	if err := db.QueryRowContext(ctx, "SHOW GLOBAL STATUS LIKE 'Threads_connected'").Scan(&name, &value); err != nil {
		return nil, fmt.Errorf("threads_connected: %w", err)
	}
	connected, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("threads_connected %q: %w", value, err)
	}
	stats := &interfaces.ConnectionStats{Connections: connected}

	if err := db.QueryRowContext(ctx, "SHOW VARIABLES LIKE 'max_connections'").Scan(&name, &value); err == nil {
		if max, err := strconv.Atoi(value); err == nil {
			stats.MaxConnections = &max
		}
	}
	return stats, nil
}
