package main

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"github.com/wpbryant/WordOps-Dashboard/api/authhandler"
	"github.com/wpbryant/WordOps-Dashboard/api/serverhandler"
	"github.com/wpbryant/WordOps-Dashboard/api/sitehandler"
	"github.com/wpbryant/WordOps-Dashboard/auth"
	"github.com/wpbryant/WordOps-Dashboard/cmd/flags"
	"github.com/wpbryant/WordOps-Dashboard/common"
	"github.com/wpbryant/WordOps-Dashboard/config"
	"github.com/wpbryant/WordOps-Dashboard/executor"
	"github.com/wpbryant/WordOps-Dashboard/httpserver"
	"github.com/wpbryant/WordOps-Dashboard/logs"
	"github.com/wpbryant/WordOps-Dashboard/metrics"
	"github.com/wpbryant/WordOps-Dashboard/netdata"
	"github.com/wpbryant/WordOps-Dashboard/services"
	"github.com/wpbryant/WordOps-Dashboard/sysinfo"
	"github.com/wpbryant/WordOps-Dashboard/wordops"
)

func main() {
	app := &cli.App{
		Name:    "wo-dashboard",
		Usage:   "Serve the WordOps dashboard API",
		Version: common.Version,
		Flags:   append(append([]cli.Flag{}, flags.CommonFlags...), flags.LogFlags...),
		Action:  serve,
		Commands: []*cli.Command{
			{
				Name:      "hash-password",
				Usage:     "Read a password from stdin and print its bcrypt hash for auth.password_hash",
				ArgsUsage: " ",
				Action:    hashPassword,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		logger.Error("Failed to load configuration", "err", err)
		return err
	}
	if cfg.Auth.PasswordHash == config.DefaultPasswordHash {
		logger.Warn("Using the default admin password, set auth.password_hash (see `wo-dashboard hash-password`)")
	}
	if cfg.Auth.Secret == "" {
		logger.Info("No auth.secret configured, tokens will not survive a restart")
	}

	metricsSrv, err := metrics.New(common.PackageName, cfg.Server.MetricsAddr)
	if err != nil {
		logger.Error("Failed to create metrics server", "err", err)
		return err
	}
	rec := metricsSrv.Recorder

	runner := executor.NewExecRunner(cfg.KnownPaths(), logger, rec)

	sites := wordops.NewClient(runner, logger, wordops.Options{
		Binary:       cfg.WordOps.Binary,
		NginxConfDir: cfg.WordOps.NginxConfDir,
		WebRoot:      cfg.WordOps.WebRoot,
		NginxLogDir:  cfg.WordOps.NginxLogDir,
	})

	counter, err := services.NewMySQLCounter(cfg.MySQL.DSN)
	if err != nil {
		logger.Error("Invalid MySQL DSN", "err", err)
		return err
	}
	reconciler := services.NewReconciler(runner, logger, services.Options{Connections: counter})

	collector := sysinfo.NewCollector(runner, logger, sysinfo.Options{
		Resolver:       cfg.SysInfo.Resolver,
		WordOpsVersion: sites.Version,
	})

	tailer := logs.NewTailer(cfg.Logs.Paths, logger)
	relay := logs.NewRelay(tailer, logger, rec, logs.RelayOptions{Interval: cfg.Logs.StreamInterval})
	defer relay.Stop()

	authenticator, err := auth.New(auth.Options{
		Username:     cfg.Auth.Username,
		PasswordHash: cfg.Auth.PasswordHash,
		Secret:       cfg.Auth.Secret,
		TTL:          cfg.Auth.TokenTTL,
	})
	if err != nil {
		logger.Error("Failed to configure authentication", "err", err)
		return err
	}

	authHandler := authhandler.NewHandler(authenticator, cfg.Auth.LoginRate, cfg.Auth.LoginBurst, logger)
	siteHandler := sitehandler.NewHandler(sites, authHandler.RequireAuth, logger)
	serverHandler := serverhandler.NewHandler(serverhandler.Deps{
		Services:       reconciler,
		Metrics:        netdata.NewClient(cfg.Netdata.URL, logger, rec),
		SysInfo:        collector,
		Logs:           tailer,
		Stream:         relay,
		Verifier:       authenticator,
		AllowedOrigins: cfg.Server.CORSOrigins,
	}, authHandler.RequireAuth, logger)

	server, err := httpserver.New(flags.ConfigureServer(cfg, logger), metricsSrv, authHandler, siteHandler, serverHandler)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	logger.Info("Starting server", "wordops", cfg.KnownPaths(), "netdata", cfg.Netdata.URL)
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}

func hashPassword(cCtx *cli.Context) error {
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("could not read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("password must not be empty")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, hash)
	return nil
}
