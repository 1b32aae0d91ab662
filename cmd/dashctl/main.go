package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/wpbryant/WordOps-Dashboard/cmd/flags"
	"github.com/wpbryant/WordOps-Dashboard/common"
)

func main() {
	app := &cli.App{
		Name:    "dashctl",
		Usage:   "Operate a WordOps dashboard from the command line",
		Version: common.Version,
		Flags: []cli.Flag{
			flags.DashboardURLFlag,
			flags.TokenFlag,
			&cli.BoolFlag{Name: "json", Usage: "print raw JSON"},
		},
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Obtain an access token and save it for later commands",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Value: "admin"},
					&cli.StringFlag{Name: "password", EnvVars: []string{"WO_DASHBOARD_PASSWORD"}, Usage: "read from stdin when empty"},
				},
				Action: runLogin,
			},
			{
				Name:  "sites",
				Usage: "List sites",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "wordpress, php, html, proxy, mysql or alias"},
					&cli.StringFlag{Name: "ssl", Usage: "true or false"},
					&cli.StringFlag{Name: "search", Usage: "domain substring"},
				},
				Action: runSites,
			},
			{
				Name:      "site",
				Usage:     "Show one site",
				ArgsUsage: "<domain>",
				Action:    runSite,
			},
			{
				Name:   "services",
				Usage:  "List stack services",
				Action: runServices,
			},
			{
				Name:      "restart",
				Usage:     "Restart an allow-listed service",
				ArgsUsage: "<service>",
				Action:    runRestart,
			},
			{
				Name:  "metrics",
				Usage: "Show current CPU, RAM, disk and network figures",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "range", Value: "5m", Usage: "5m, 10m, 1h or 24h"},
				},
				Action: runMetrics,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
