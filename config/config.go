// Package config holds the dashboard settings: defaults, an optional YAML
// file and validation. Command-line flags are applied on top by cmd/flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wpbryant/WordOps-Dashboard/auth"
	"github.com/wpbryant/WordOps-Dashboard/logs"
	"github.com/wpbryant/WordOps-Dashboard/netdata"
	"github.com/wpbryant/WordOps-Dashboard/services"
	"github.com/wpbryant/WordOps-Dashboard/sysinfo"
	"github.com/wpbryant/WordOps-Dashboard/wordops"
	"gopkg.in/yaml.v3"
)

// DefaultPasswordHash is the bcrypt hash of "changeme". Deployments must
// replace it; the server logs a warning while it is in use.
const DefaultPasswordHash = "$2b$12$vs/ix375dRw/VmooY89/QOuv1OGOQZ5AfTAQWTf5sIlSJdNT1fgQW"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	WordOps WordOpsConfig `yaml:"wordops"`
	Netdata NetdataConfig `yaml:"netdata"`
	MySQL   MySQLConfig   `yaml:"mysql"`
	Logs    LogsConfig    `yaml:"logs"`
	SysInfo SysInfoConfig `yaml:"sysinfo"`
}

type ServerConfig struct {
	ListenAddr       string        `yaml:"listen_addr"`
	MetricsAddr      string        `yaml:"metrics_addr"`
	EnablePprof      bool          `yaml:"pprof"`
	DrainDuration    time.Duration `yaml:"drain_duration"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	CORSOrigins      []string      `yaml:"cors_origins"`
}

type AuthConfig struct {
	Username     string        `yaml:"username"`
	PasswordHash string        `yaml:"password_hash"`
	Secret       string        `yaml:"secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`

	// LoginRate is the sustained login attempts per second, LoginBurst the
	// burst on top of it.
	LoginRate  float64 `yaml:"login_rate"`
	LoginBurst int     `yaml:"login_burst"`
}

type WordOpsConfig struct {
	Binary       string `yaml:"binary"`
	BinaryPath   string `yaml:"binary_path"`
	NginxConfDir string `yaml:"nginx_conf_dir"`
	WebRoot      string `yaml:"web_root"`
	NginxLogDir  string `yaml:"nginx_log_dir"`
}

type NetdataConfig struct {
	URL string `yaml:"url"`
}

type MySQLConfig struct {
	// DSN is used for the connection-count probe. Empty disables the probe.
	DSN string `yaml:"dsn"`
}

type LogsConfig struct {
	Paths          map[string]string `yaml:"paths"`
	StreamInterval time.Duration     `yaml:"stream_interval"`
}

type SysInfoConfig struct {
	Resolver string `yaml:"resolver"`
}

// Default returns a configuration usable on a stock WordOps host.
func Default() *Config {
	paths := make(map[string]string, len(logs.DefaultPaths))
	for k, v := range logs.DefaultPaths {
		paths[k] = v
	}
	return &Config{
		Server: ServerConfig{
			ListenAddr:       "127.0.0.1:8000",
			MetricsAddr:      "127.0.0.1:8090",
			DrainDuration:    45 * time.Second,
			GracefulShutdown: 30 * time.Second,
			ReadTimeout:      60 * time.Second,
			// Site creation runs up to five minutes.
			WriteTimeout: 330 * time.Second,
			CORSOrigins:  []string{"*"},
		},
		Auth: AuthConfig{
			Username:     "admin",
			PasswordHash: DefaultPasswordHash,
			TokenTTL:     auth.DefaultTTL,
			LoginRate:    1,
			LoginBurst:   5,
		},
		WordOps: WordOpsConfig{
			Binary:       wordops.DefaultBinary,
			BinaryPath:   wordops.DefaultBinaryPath,
			NginxConfDir: wordops.DefaultNginxConfDir,
			WebRoot:      wordops.DefaultWebRoot,
			NginxLogDir:  wordops.DefaultNginxLogDir,
		},
		Netdata: NetdataConfig{URL: netdata.DefaultURL},
		MySQL:   MySQLConfig{DSN: services.DefaultMySQLDSN},
		Logs: LogsConfig{
			Paths:          paths,
			StreamInterval: logs.DefaultInterval,
		},
		SysInfo: SysInfoConfig{Resolver: sysinfo.DefaultResolver},
	}
}

// Load reads path over the defaults. Unknown keys are rejected so a typo
// does not silently fall back to a default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr must not be empty"))
	}
	if c.Auth.Username == "" {
		errs = append(errs, errors.New("auth.username must not be empty"))
	}
	if c.Auth.PasswordHash == "" {
		errs = append(errs, errors.New("auth.password_hash must not be empty"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Auth.LoginRate <= 0 || c.Auth.LoginBurst <= 0 {
		errs = append(errs, errors.New("auth.login_rate and auth.login_burst must be positive"))
	}
	if c.Logs.StreamInterval <= 0 {
		errs = append(errs, errors.New("logs.stream_interval must be positive"))
	}

	types := make([]string, 0, len(c.Logs.Paths))
	for t := range c.Logs.Paths {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		if _, ok := logs.DefaultPaths[t]; !ok {
			errs = append(errs, fmt.Errorf("logs.paths: unknown log type %q", t))
			continue
		}
		if !filepath.IsAbs(c.Logs.Paths[t]) {
			errs = append(errs, fmt.Errorf("logs.paths.%s: %q is not absolute", t, c.Logs.Paths[t]))
		}
	}
	return errors.Join(errs...)
}

// KnownPaths is the executor's absolute-path table for the binaries the
// dashboard runs.
func (c *Config) KnownPaths() map[string]string {
	known := map[string]string{}
	if c.WordOps.BinaryPath != "" {
		known[c.WordOps.Binary] = c.WordOps.BinaryPath
	}
	return known
}
