// Package logs reads the tail of allow-listed log files and relays fresh
// tails to live subscribers.
package logs

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/wpbryant/WordOps-Dashboard/common"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
)

const (
	// MaxLines caps every read regardless of the requested size.
	MaxLines = 500

	// DefaultLines is used when a caller does not ask for a size.
	DefaultLines = 50

	readChunk = 64 * 1024
)

// DefaultPaths is the allow-set of log types on a WordOps host.
var DefaultPaths = map[string]string{
	"nginx-access": "/var/log/nginx/access.log",
	"nginx-error":  "/var/log/nginx/error.log",
	"php-fpm":      "/var/log/php8.2-fpm.log",
	"mysql":        "/var/log/mysql/error.log",
}

// Tailer reads the last lines of files from a closed type-to-path map. Paths
// never come from caller input.
type Tailer struct {
	paths map[string]string
	log   *slog.Logger
}

// NewTailer copies paths; nil uses DefaultPaths.
func NewTailer(paths map[string]string, log *slog.Logger) *Tailer {
	if paths == nil {
		paths = DefaultPaths
	}
	t := &Tailer{paths: make(map[string]string, len(paths)), log: common.OrDefault(log)}
	for k, v := range paths {
		t.paths[k] = v
	}
	return t
}

// Valid reports whether logType is in the allow-set.
func (t *Tailer) Valid(logType string) bool {
	_, ok := t.paths[logType]
	return ok
}

// Types returns the allowed log types, sorted.
func (t *Tailer) Types() []string {
	types := make([]string, 0, len(t.paths))
	for k := range t.paths {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}

// Tail returns up to n trailing lines of the log, n clamped to [1, MaxLines].
// A missing or unreadable file yields no lines and no error.
func (t *Tailer) Tail(logType string, n int) ([]string, error) {
	path, ok := t.paths[logType]
	if !ok {
		return nil, &interfaces.ValidationError{Field: "log type", Value: logType}
	}
	n = ClampLines(n)

	lines, err := tailFile(path, n)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			t.log.Warn("Log file not readable", "path", path, "err", err)
		} else {
			t.log.Error("Could not read log file", "path", path, "err", err)
		}
		return []string{}, nil
	}
	return lines, nil
}

// ClampLines bounds a requested line count to [1, MaxLines].
func ClampLines(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxLines {
		return MaxLines
	}
	return n
}

// tailFile reads backwards in chunks until it has n complete lines or hits
// the start of the file.
func tailFile(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}

	var buf []byte
	offset := end
	for offset > 0 && bytes.Count(buf, []byte{'\n'}) <= n {
		size := int64(readChunk)
		if offset < size {
			size = offset
		}
		offset -= size
		chunk := make([]byte, size)
		if _, err := f.ReadAt(chunk, offset); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		buf = append(chunk, buf...)
	}

	text := strings.TrimRight(string(buf), "\r\n")
	if text == "" {
		return []string{}, nil
	}
	lines := strings.Split(text, "\n")
	// The first line is partial unless the read reached the start of the file.
	if offset > 0 && len(lines) > n {
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines, nil
}

var _ interfaces.LogSource = (*Tailer)(nil)
