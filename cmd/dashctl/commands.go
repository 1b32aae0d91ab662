package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"github.com/wpbryant/WordOps-Dashboard/api/clients"
	"github.com/wpbryant/WordOps-Dashboard/cmd/flags"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"github.com/wpbryant/WordOps-Dashboard/validation"
)

// tokenPath is where `login` stores the access token.
func tokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "wo-dashboard", "token"), nil
}

func newClient(cCtx *cli.Context) (*clients.DashboardClient, error) {
	client := &clients.DashboardClient{BaseURL: cCtx.String(flags.DashboardURLFlag.Name)}
	client.Token = cCtx.String(flags.TokenFlag.Name)
	if client.Token == "" {
		path, err := tokenPath()
		if err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		client.Token = strings.TrimSpace(string(raw))
	}
	return client, nil
}

func runLogin(cCtx *cli.Context) error {
	client, err := newClient(cCtx)
	if err != nil {
		return err
	}
	password := cCtx.String("password")
	if password == "" {
		fmt.Fprint(cCtx.App.ErrWriter, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("could not read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	token, err := client.Login(cCtx.Context, cCtx.String("username"), password)
	if err != nil {
		return err
	}

	path, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(token.AccessToken+"\n"), 0o600); err != nil {
		return err
	}
	fmt.Fprintf(cCtx.App.Writer, "Logged in, token valid until %s\n", token.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func runSites(cCtx *cli.Context) error {
	client, err := newClient(cCtx)
	if err != nil {
		return err
	}
	filter := interfaces.SiteFilter{
		Type:   interfaces.SiteType(cCtx.String("type")),
		Search: cCtx.String("search"),
	}
	if s := cCtx.String("ssl"); s != "" {
		tls, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("--ssl: %w", err)
		}
		filter.TLS = &tls
	}
	return listSites(cCtx.Context, client, filter, cCtx.App.Writer, cCtx.Bool("json"))
}

func runSite(cCtx *cli.Context) error {
	domain := cCtx.Args().First()
	if err := validation.Domain(domain); err != nil {
		return err
	}
	client, err := newClient(cCtx)
	if err != nil {
		return err
	}
	return showSite(cCtx.Context, client, domain, cCtx.App.Writer)
}

func runServices(cCtx *cli.Context) error {
	client, err := newClient(cCtx)
	if err != nil {
		return err
	}
	return listServices(cCtx.Context, client, cCtx.App.Writer, cCtx.Bool("json"))
}

func runRestart(cCtx *cli.Context) error {
	name := cCtx.Args().First()
	if err := validation.Service(name); err != nil {
		return err
	}
	client, err := newClient(cCtx)
	if err != nil {
		return err
	}
	return restartService(cCtx.Context, client, name, cCtx.App.Writer)
}

func runMetrics(cCtx *cli.Context) error {
	client, err := newClient(cCtx)
	if err != nil {
		return err
	}
	return showMetrics(cCtx.Context, client, interfaces.TimeRange(cCtx.String("range")), cCtx.App.Writer, cCtx.Bool("json"))
}

func listSites(ctx context.Context, c clients.DashboardAPI, filter interfaces.SiteFilter, w io.Writer, asJSON bool) error {
	sites, err := c.ListSites(ctx, filter)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(w, sites)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tTYPE\tSSL\tCACHE\tPHP\tSTATE")
	for _, s := range sites {
		state := "enabled"
		if s.Disabled {
			state = "disabled"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%s\n", s.Domain, s.Type, s.TLS, orDash(string(s.Cache)), orDash(s.PHPVersion), state)
	}
	return tw.Flush()
}

func showSite(ctx context.Context, c clients.DashboardAPI, domain string, w io.Writer) error {
	site, err := c.GetSite(ctx, domain)
	if err != nil {
		return err
	}
	return printJSON(w, site)
}

func listServices(ctx context.Context, c clients.DashboardAPI, w io.Writer, asJSON bool) error {
	services, err := c.ListServices(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(w, services)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tSTATUS\tPID\tMEMORY\tUPTIME")
	for _, s := range services {
		memory, uptime := "-", "-"
		if s.MemoryBytes != nil {
			memory = humanize.IBytes(uint64(*s.MemoryBytes))
		}
		if s.UptimeSeconds != nil {
			uptime = (time.Duration(*s.UptimeSeconds) * time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s/%s\t%d\t%s\t%s\n", s.Name, s.ActiveState, s.SubState, s.MainPID, memory, uptime)
	}
	return tw.Flush()
}

func restartService(ctx context.Context, c clients.DashboardAPI, name string, w io.Writer) error {
	resp, err := c.RestartService(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, resp.Message)
	return nil
}

func showMetrics(ctx context.Context, c clients.DashboardAPI, r interfaces.TimeRange, w io.Writer, asJSON bool) error {
	snap, err := c.Metrics(ctx, r)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(w, snap)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "METRIC\tCURRENT\tPOINTS (%s)\n", snap.Range)
	for _, s := range []interfaces.MetricSeries{snap.CPU, snap.RAM, snap.Disk, snap.NetworkIn, snap.NetworkOut} {
		fmt.Fprintf(tw, "%s\t%s %s\t%d\n", s.Name, humanize.FtoaWithDigits(s.Current, 2), s.Unit, len(s.Data))
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
