package logs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"github.com/wpbryant/WordOps-Dashboard/metrics"
)

const testInterval = 50 * time.Millisecond

func newTestRelay(t *testing.T, rec *metrics.Recorder) (*Relay, string) {
	path := filepath.Join(t.TempDir(), "error.log")
	require.NoError(t, os.WriteFile(path, []byte("boot\n"), 0o644))
	tailer := NewTailer(map[string]string{"nginx-error": path}, quietLogger())
	relay := NewRelay(tailer, quietLogger(), rec, RelayOptions{Interval: testInterval, Lines: 5})
	t.Cleanup(relay.Stop)
	return relay, path
}

func receive(t *testing.T, sub *Subscriber) Batch {
	select {
	case b, ok := <-sub.C():
		require.True(t, ok, "subscriber channel closed")
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("no batch received")
	}
	return Batch{}
}

func TestRelayInitialBatchAndPolling(t *testing.T) {
	relay, path := newTestRelay(t, nil)

	sub, err := relay.Subscribe("nginx-error")
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, []string{"boot"}, receive(t, sub).Lines)

	require.NoError(t, os.WriteFile(path, []byte("boot\nupstream timed out\n"), 0o644))
	deadline := time.Now().Add(3 * time.Second)
	for {
		b := receive(t, sub)
		if len(b.Lines) == 2 && b.Lines[1] == "upstream timed out" {
			break
		}
		require.True(t, time.Now().Before(deadline), "new line never relayed")
	}
}

func TestRelayRejectsUnknownTopic(t *testing.T) {
	relay, _ := newTestRelay(t, nil)

	_, err := relay.Subscribe("auth")
	assert.True(t, interfaces.IsValidation(err))
	assert.Zero(t, relay.Subscribers("auth"))
}

func TestRelaySubscriberLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder("test", reg)
	relay, _ := newTestRelay(t, rec)

	a, err := relay.Subscribe("nginx-error")
	require.NoError(t, err)
	b, err := relay.Subscribe("nginx-error")
	require.NoError(t, err)
	assert.Equal(t, 2, relay.Subscribers("nginx-error"))
	assert.Len(t, relay.jobs, 1)

	relay.Unsubscribe(a)
	relay.Unsubscribe(a)
	assert.Equal(t, 1, relay.Subscribers("nginx-error"))
	assert.Len(t, relay.jobs, 1)

	// a's channel is closed once drained.
	for range a.C() {
	}

	relay.Unsubscribe(b)
	assert.Zero(t, relay.Subscribers("nginx-error"))
	assert.Empty(t, relay.jobs)
	expected := `
# HELP test_log_stream_subscribers Live log stream subscribers per topic.
# TYPE test_log_stream_subscribers gauge
test_log_stream_subscribers{topic="nginx-error"} 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_log_stream_subscribers"))
}

func TestRelaySlowSubscriberDoesNotBlock(t *testing.T) {
	relay, _ := newTestRelay(t, nil)

	slow, err := relay.Subscribe("nginx-error")
	require.NoError(t, err)
	fast, err := relay.Subscribe("nginx-error")
	require.NoError(t, err)

	// slow never reads; fast keeps receiving well past slow's buffer.
	for i := 0; i < subscriberBuffer+3; i++ {
		receive(t, fast)
	}
	assert.LessOrEqual(t, len(slow.C()), subscriberBuffer)
}

func TestRelayStopClosesSubscribers(t *testing.T) {
	relay, _ := newTestRelay(t, nil)
	sub, err := relay.Subscribe("nginx-error")
	require.NoError(t, err)

	relay.Stop()
	for range sub.C() {
	}
	_, err = relay.Subscribe("nginx-error")
	assert.ErrorIs(t, err, ErrRelayStopped)
}
