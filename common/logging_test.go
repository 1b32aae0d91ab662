package common

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := SetupLogger(&LoggingOpts{JSON: true, Service: "dash", Version: "1.2.3", Output: &buf})
	log.Info("hello", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "dash", rec["service"])
	assert.Equal(t, "1.2.3", rec["version"])
	assert.Equal(t, "v", rec["k"])
}

func TestSetupLoggerDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	SetupLogger(&LoggingOpts{Output: &buf}).Debug("hidden")
	assert.Empty(t, buf.String())

	SetupLogger(&LoggingOpts{Debug: true, Output: &buf}).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestOrDefault(t *testing.T) {
	assert.NotNil(t, OrDefault(nil))
}
