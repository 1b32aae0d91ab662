package netdata

import "github.com/wpbryant/WordOps-Dashboard/interfaces"

// window is the query shape of one time range: a negative lookback in
// seconds and a fixed number of points.
type window struct {
	after  int
	points int
}

var windows = map[interfaces.TimeRange]window{
	interfaces.Range5m:  {after: -300, points: 60},
	interfaces.Range10m: {after: -600, points: 60},
	interfaces.Range1h:  {after: -3600, points: 60},
	interfaces.Range24h: {after: -86400, points: 144},
}

// DefaultRange is used when the caller does not pick one.
const DefaultRange = interfaces.Range5m

// ParseTimeRange accepts "5m", "10m", "1h" and "24h". An empty string is the
// default range.
func ParseTimeRange(s string) (interfaces.TimeRange, error) {
	if s == "" {
		return DefaultRange, nil
	}
	tr := interfaces.TimeRange(s)
	if _, ok := windows[tr]; !ok {
		return "", &interfaces.ValidationError{Field: "range", Value: s, Reason: "expected one of 5m, 10m, 1h, 24h"}
	}
	return tr, nil
}

func windowFor(tr interfaces.TimeRange) (window, error) {
	w, ok := windows[tr]
	if !ok {
		return window{}, &interfaces.ValidationError{Field: "range", Value: string(tr), Reason: "unknown time range"}
	}
	return w, nil
}
