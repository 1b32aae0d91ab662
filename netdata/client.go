// Package netdata queries the local Netdata agent and turns its raw series
// into the dashboard's bounded metric series.
package netdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wpbryant/WordOps-Dashboard/common"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"github.com/wpbryant/WordOps-Dashboard/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultURL is where the agent listens on a WordOps host.
	DefaultURL = "http://127.0.0.1:19999"

	// DefaultTimeout bounds each data query.
	DefaultTimeout = 5 * time.Second
)

// Chart contexts of the snapshot.
const (
	ContextCPU     = "system.cpu"
	ContextRAM     = "system.ram"
	ContextDisk    = "system.io"
	ContextNetwork = "system.net"
)

// maxErrorBody caps how much of a failed response ends up in an error.
const maxErrorBody = 512

// Client implements interfaces.MetricsSource against the v3 data API.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
	metrics *metrics.Recorder
}

// NewClient returns a client for baseURL (DefaultURL when empty).
func NewClient(baseURL string, log *slog.Logger, rec *metrics.Recorder) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     common.OrDefault(log),
		metrics: rec,
	}
}

type dataResponse struct {
	Result *RawSeries `json:"result"`
}

// FetchSeries runs one data query for a chart context.
func (c *Client) FetchSeries(ctx context.Context, chartContext string, tr interfaces.TimeRange) (*RawSeries, error) {
	w, err := windowFor(tr)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("scope_contexts", chartContext)
	q.Set("after", strconv.Itoa(w.after))
	q.Set("points", strconv.Itoa(w.points))
	q.Set("format", "json")
	q.Set("group", "average")
	endpoint := c.baseURL + "/api/v3/data?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveMonitoringFetch(chartContext, metrics.OutcomeError)
		return nil, fmt.Errorf("%w: %s: %v", interfaces.ErrMonitoringUnavailable, chartContext, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.metrics.ObserveMonitoringFetch(chartContext, metrics.OutcomeFailed)
		return nil, fmt.Errorf("%w: %s returned %d: %s", interfaces.ErrMonitoringUnavailable, chartContext, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.metrics.ObserveMonitoringFetch(chartContext, metrics.OutcomeError)
		return nil, &interfaces.ParseError{Source: chartContext, Err: err}
	}
	c.metrics.ObserveMonitoringFetch(chartContext, metrics.OutcomeOK)

	if parsed.Result == nil {
		return &RawSeries{}, nil
	}
	return parsed.Result, nil
}

// GetSnapshot fetches the four contexts in parallel. Any failed fetch fails
// the whole snapshot.
func (c *Client) GetSnapshot(ctx context.Context, tr interfaces.TimeRange) (*interfaces.SystemSnapshot, error) {
	if tr == "" {
		tr = DefaultRange
	}
	if _, err := windowFor(tr); err != nil {
		return nil, err
	}

	var cpu, ram, disk, network *RawSeries
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	for _, fetch := range []struct {
		context string
		dst     **RawSeries
	}{
		{ContextCPU, &cpu},
		{ContextRAM, &ram},
		{ContextDisk, &disk},
		{ContextNetwork, &network},
	} {
		g.Go(func() error {
			series, err := c.FetchSeries(gctx, fetch.context, tr)
			if err != nil {
				return err
			}
			*fetch.dst = series
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.log.Warn("Metrics snapshot failed", "range", tr, "err", err)
		return nil, err
	}

	snapshot := &interfaces.SystemSnapshot{
		Range: tr,
		CPU:   TransformCPU(cpu),
		RAM:   TransformRAM(ram),
		Disk:  TransformSum(NameDisk, UnitDisk, disk),
	}
	snapshot.NetworkIn, snapshot.NetworkOut = TransformNetwork(network)
	return snapshot, nil
}

var _ interfaces.MetricsSource = (*Client)(nil)
