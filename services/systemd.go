package services

import (
	"strconv"
	"strings"
	"time"

	"github.com/wpbryant/WordOps-Dashboard/interfaces"
)

// showProperties is the property set requested from `systemctl show`.
const showProperties = "ActiveState,SubState,MainPID,MemoryCurrent,ActiveEnterTimestamp"

// memoryUnsetThreshold covers "[not set]" and the UINT64_MAX sentinel older systemd prints.
const memoryUnsetThreshold = uint64(1) << 62

// parseShowOutput reads key=value lines. Unknown keys are kept.
func parseShowOutput(output string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || key == "" {
			continue
		}
		props[key] = strings.TrimSpace(value)
	}
	return props
}

// statusFromProperties builds a ServiceStatus. now is used for uptime.
func statusFromProperties(name string, props map[string]string, now time.Time) interfaces.ServiceStatus {
	status := interfaces.ServiceStatus{
		Name:        name,
		ActiveState: props["ActiveState"],
		SubState:    props["SubState"],
	}
	if pid, err := strconv.Atoi(props["MainPID"]); err == nil && pid > 0 {
		status.MainPID = pid
	}
	if mem, ok := parseMemory(props["MemoryCurrent"]); ok {
		status.MemoryBytes = &mem
	}
	if status.Active() {
		if since, ok := parseSystemdTimestamp(props["ActiveEnterTimestamp"]); ok {
			if up := int64(now.Sub(since).Seconds()); up >= 0 {
				status.UptimeSeconds = &up
			}
		}
	}
	return status
}

func parseMemory(v string) (int64, bool) {
	if v == "" || strings.HasPrefix(v, "[") {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil || n >= memoryUnsetThreshold {
		return 0, false
	}
	return int64(n), true
}

// parseSystemdTimestamp reads "Mon 2026-01-19 01:23:45 UTC". Zone names Go
// does not know are read as UTC.
func parseSystemdTimestamp(v string) (time.Time, bool) {
	fields := strings.Fields(v)
	if len(fields) < 3 {
		return time.Time{}, false
	}
	// Drop the weekday.
	stamp := fields[1] + " " + fields[2]
	t, err := time.Parse("2006-01-02 15:04:05", stamp)
	if err != nil {
		return time.Time{}, false
	}
	if len(fields) >= 4 && fields[3] != "UTC" {
		if loc, err := time.LoadLocation(fields[3]); err == nil {
			t, err = time.ParseInLocation("2006-01-02 15:04:05", stamp, loc)
			if err != nil {
				return time.Time{}, false
			}
		}
	}
	return t, true
}

// stackStatus maps systemd's active state to the dashboard vocabulary.
func stackStatus(activeState string) string {
	switch activeState {
	case "active":
		return "running"
	case "activating", "reloading", "deactivating":
		return "restarting"
	case "failed":
		return "error"
	default:
		return "stopped"
	}
}
