package netdata

import (
	"math"
	"strings"

	"github.com/wpbryant/WordOps-Dashboard/interfaces"
)

// Series names and units of the snapshot.
const (
	NameCPU        = "cpu"
	NameRAM        = "ram"
	NameDisk       = "disk"
	NameNetworkIn  = "network_in"
	NameNetworkOut = "network_out"

	UnitPercent = "%"
	UnitDisk    = "KiB/s"
	UnitNetwork = "kilobits/s"
)

// RawSeries is the untransformed result of one monitoring query. Labels[0]
// names the time column; Rows[i][0] is the timestamp. Missing samples are nil.
type RawSeries struct {
	Labels []string     `json:"labels"`
	Rows   [][]*float64 `json:"data"`
}

// TransformCPU reports 100 minus the "idle" dimension. Without an idle
// label it sums the remaining dimensions. Values are clamped to [0, 100].
func TransformCPU(raw *RawSeries) interfaces.MetricSeries {
	idle := raw.labelIndex(func(l string) bool { return l == "idle" })
	return buildSeries(NameCPU, UnitPercent, raw, func(row []*float64) float64 {
		if idle > 0 && idle < len(row) {
			return clamp(100 - value(row[idle]))
		}
		var sum float64
		for i := 1; i < len(row); i++ {
			if i != idle {
				sum += value(row[i])
			}
		}
		return clamp(sum)
	})
}

// TransformRAM reports the "used" dimension as a percentage of the sum of
// all dimensions. A zero total yields 0.
func TransformRAM(raw *RawSeries) interfaces.MetricSeries {
	used := raw.labelIndex(func(l string) bool { return l == "used" })
	return buildSeries(NameRAM, UnitPercent, raw, func(row []*float64) float64 {
		var total, usedValue float64
		for i := 1; i < len(row); i++ {
			v := value(row[i])
			total += v
			if i == used {
				usedValue = v
			}
		}
		if total <= 0 {
			return 0
		}
		return clamp(usedValue / total * 100)
	})
}

// TransformSum adds every dimension of a row. Throughput series are not clamped.
func TransformSum(name, unit string, raw *RawSeries) interfaces.MetricSeries {
	return buildSeries(name, unit, raw, func(row []*float64) float64 {
		var sum float64
		for i := 1; i < len(row); i++ {
			sum += value(row[i])
		}
		return sum
	})
}

// TransformNetwork splits one response into inbound and outbound series.
// Dimensions are found by label ("received"/"in", "sent"/"out") and fall back
// to columns 1 and 2. Netdata reports one direction as negative; both series
// carry absolute values.
func TransformNetwork(raw *RawSeries) (in, out interfaces.MetricSeries) {
	inIdx := raw.labelIndex(func(l string) bool { return strings.Contains(l, "received") || l == "in" || l == "inbound" })
	outIdx := raw.labelIndex(func(l string) bool { return strings.Contains(l, "sent") || l == "out" || l == "outbound" })
	if inIdx < 0 {
		inIdx = 1
	}
	if outIdx < 0 {
		outIdx = 2
		if len(raw.Labels) <= 2 {
			outIdx = 1
		}
	}

	in = interfaces.MetricSeries{Name: NameNetworkIn, Unit: UnitNetwork, Data: []interfaces.MetricPoint{}}
	out = interfaces.MetricSeries{Name: NameNetworkOut, Unit: UnitNetwork, Data: []interfaces.MetricPoint{}}
	for _, row := range raw.Rows {
		if len(row) <= max(inIdx, outIdx) || row[0] == nil {
			continue
		}
		ts := int64(*row[0])
		in.Data = append(in.Data, interfaces.MetricPoint{Timestamp: ts, Value: math.Abs(value(row[inIdx]))})
		out.Data = append(out.Data, interfaces.MetricPoint{Timestamp: ts, Value: math.Abs(value(row[outIdx]))})
	}
	in.Current = current(in.Data)
	out.Current = current(out.Data)
	return in, out
}

func buildSeries(name, unit string, raw *RawSeries, fn func(row []*float64) float64) interfaces.MetricSeries {
	series := interfaces.MetricSeries{Name: name, Unit: unit, Data: make([]interfaces.MetricPoint, 0, len(raw.Rows))}
	for _, row := range raw.Rows {
		if len(row) < 2 || row[0] == nil {
			continue
		}
		series.Data = append(series.Data, interfaces.MetricPoint{Timestamp: int64(*row[0]), Value: fn(row)})
	}
	series.Current = current(series.Data)
	return series
}

// labelIndex returns the first dimension column whose lower-cased label
// matches, skipping the time column, or -1.
func (r *RawSeries) labelIndex(match func(label string) bool) int {
	for i := 1; i < len(r.Labels); i++ {
		if match(strings.ToLower(r.Labels[i])) {
			return i
		}
	}
	return -1
}

func current(points []interfaces.MetricPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	return math.Round(points[len(points)-1].Value*100) / 100
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
