package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.ListenAddr)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "/var/log/nginx/access.log", cfg.Logs.Paths["nginx-access"])
	assert.Equal(t, map[string]string{"wo": "/usr/local/bin/wo"}, cfg.KnownPaths())
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: 0.0.0.0:9000
  cors_origins: ["https://dash.example.com"]
auth:
  username: operator
  token_ttl: 15m
netdata:
  url: http://10.0.0.5:19999
logs:
  paths:
    php-fpm: /var/log/php8.3-fpm.log
  stream_interval: 5s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)
	assert.Equal(t, []string{"https://dash.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "operator", cfg.Auth.Username)
	assert.Equal(t, DefaultPasswordHash, cfg.Auth.PasswordHash)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "http://10.0.0.5:19999", cfg.Netdata.URL)
	assert.Equal(t, "/var/log/php8.3-fpm.log", cfg.Logs.Paths["php-fpm"])
	assert.Equal(t, "/var/log/nginx/error.log", cfg.Logs.Paths["nginx-error"])
	assert.Equal(t, 5*time.Second, cfg.Logs.StreamInterval)
	assert.Equal(t, "127.0.0.1:8090", cfg.Server.MetricsAddr)
}

func TestLoadEmptyPathAndEmptyFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  listen_adr: :80\n"))
	assert.ErrorContains(t, err, "listen_adr")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.ListenAddr = ""
	cfg.Auth.TokenTTL = 0
	cfg.Logs.Paths["syslog"] = "/var/log/syslog"
	cfg.Logs.Paths["mysql"] = "mysql/error.log"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "listen_addr")
	assert.ErrorContains(t, err, "token_ttl")
	assert.ErrorContains(t, err, `unknown log type "syslog"`)
	assert.ErrorContains(t, err, "not absolute")
}
