package flags

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"github.com/wpbryant/WordOps-Dashboard/api"
	"github.com/wpbryant/WordOps-Dashboard/common"
	"github.com/wpbryant/WordOps-Dashboard/config"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// LoadConfig reads --config over the defaults, then applies every flag the
// operator set explicitly, so flags and their env vars win over the file.
func LoadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(cCtx.String(ConfigFlag.Name))
	if err != nil {
		return nil, err
	}

	if cCtx.IsSet(ListenAddrFlag.Name) {
		cfg.Server.ListenAddr = cCtx.String(ListenAddrFlag.Name)
	}
	if cCtx.IsSet(MetricsAddrFlag.Name) {
		cfg.Server.MetricsAddr = cCtx.String(MetricsAddrFlag.Name)
	}
	if cCtx.IsSet(PprofFlag.Name) {
		cfg.Server.EnablePprof = cCtx.Bool(PprofFlag.Name)
	}
	if cCtx.IsSet(DrainSecondsFlag.Name) {
		cfg.Server.DrainDuration = time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second
	}
	if cCtx.IsSet(CORSOriginsFlag.Name) {
		cfg.Server.CORSOrigins = cCtx.StringSlice(CORSOriginsFlag.Name)
	}
	if cCtx.IsSet(NetdataURLFlag.Name) {
		cfg.Netdata.URL = cCtx.String(NetdataURLFlag.Name)
	}
	if cCtx.IsSet(WordOpsBinaryFlag.Name) {
		cfg.WordOps.BinaryPath = cCtx.String(WordOpsBinaryFlag.Name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func ConfigureServer(cfg *config.Config, logger *slog.Logger) *api.HTTPServerConfig {
	return &api.HTTPServerConfig{
		ListenAddr:               cfg.Server.ListenAddr,
		MetricsAddr:              cfg.Server.MetricsAddr,
		Log:                      logger,
		EnablePprof:              cfg.Server.EnablePprof,
		DrainDuration:            cfg.Server.DrainDuration,
		GracefulShutdownDuration: cfg.Server.GracefulShutdown,
		ReadTimeout:              cfg.Server.ReadTimeout,
		WriteTimeout:             cfg.Server.WriteTimeout,
		CORSOrigins:              cfg.Server.CORSOrigins,
	}
}

func envVar(name string) []string {
	return []string{"WO_DASHBOARD_" + name}
}

var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	EnvVars: envVar("CONFIG"),
	Usage:   "YAML configuration file; flags override its values",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8000",
	EnvVars: envVar("LISTEN_ADDR"),
	Usage:   "address to listen on for API",
}

var NetdataURLFlag = &cli.StringFlag{
	Name:    "netdata-url",
	EnvVars: envVar("NETDATA_URL"),
	Usage:   "base URL of the local Netdata agent",
}

var WordOpsBinaryFlag = &cli.StringFlag{
	Name:    "wo-binary",
	EnvVars: envVar("WO_BINARY"),
	Usage:   "absolute path of the wo executable",
}

var CORSOriginsFlag = &cli.StringSliceFlag{
	Name:    "cors-origin",
	EnvVars: envVar("CORS_ORIGINS"),
	Usage:   "browser origin allowed to call the API (repeatable, * for any)",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:    "log-json",
	Value:   false,
	EnvVars: envVar("LOG_JSON"),
	Usage:   "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:    "log-debug",
	Value:   false,
	EnvVars: envVar("LOG_DEBUG"),
	Usage:   "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "wo-dashboard",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:    "pprof",
	Value:   false,
	EnvVars: envVar("PPROF"),
	Usage:   "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	EnvVars: envVar("METRICS_ADDR"),
	Usage:   "address to listen on for Prometheus metrics",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var CommonFlags = []cli.Flag{
	ConfigFlag,
	ListenAddrFlag,
	MetricsAddrFlag,
	PprofFlag,
	DrainSecondsFlag,
	CORSOriginsFlag,
	NetdataURLFlag,
	WordOpsBinaryFlag,
}

// DashboardURLFlag and TokenFlag are used by operator tooling.
var DashboardURLFlag = &cli.StringFlag{
	Name:    "url",
	Value:   "http://127.0.0.1:8000",
	EnvVars: envVar("URL"),
	Usage:   "dashboard base URL",
}

var TokenFlag = &cli.StringFlag{
	Name:    "token",
	EnvVars: envVar("TOKEN"),
	Usage:   "access token; defaults to the one saved by `login`",
}
