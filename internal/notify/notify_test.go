package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nash0810/failsafe/internal/analyzer"
	"github.com/Nash0810/failsafe/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLoggerTo("test", io.Discard)
}

func captureWebhook(t *testing.T, payloads chan<- slackMessage) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg slackMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		payloads <- msg
		w.WriteHeader(http.StatusOK)
	}))
}

func TestFailoverPayload(t *testing.T) {
	payloads := make(chan slackMessage, 1)
	server := captureWebhook(t, payloads)
	defer server.Close()

	n := NewSlackNotifier(server.URL, testLogger())
	err := n.Notify(context.Background(), analyzer.Alert{
		Kind:         analyzer.KindFailover,
		Time:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		PreviousPool: "blue",
		CurrentPool:  "green",
	})
	require.NoError(t, err)

	msg := <-payloads
	assert.Contains(t, msg.Text, "Failover Detected")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "warning", msg.Attachments[0].Color)
	assert.Equal(t, "Blue → Green", msg.Attachments[0].Fields[0].Value)
	assert.Contains(t, msg.Attachments[0].Fields[1].Value, "2025-06-01 12:00:00 UTC")
}

func TestErrorRatePayload(t *testing.T) {
	payloads := make(chan slackMessage, 1)
	server := captureWebhook(t, payloads)
	defer server.Close()

	n := NewSlackNotifier(server.URL, testLogger())
	err := n.Notify(context.Background(), analyzer.Alert{
		Kind:        analyzer.KindErrorRate,
		Time:        time.Now(),
		Errors:      12,
		WindowSize:  200,
		RatePercent: 6,
	})
	require.NoError(t, err)

	msg := <-payloads
	assert.Contains(t, msg.Text, "High Error Rate")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "danger", msg.Attachments[0].Color)
	assert.Equal(t, "6.00%", msg.Attachments[0].Fields[0].Value)
	assert.Equal(t, "12/200 requests", msg.Attachments[0].Fields[1].Value)
}

func TestRecoveryPayload(t *testing.T) {
	payloads := make(chan slackMessage, 1)
	server := captureWebhook(t, payloads)
	defer server.Close()

	n := NewSlackNotifier(server.URL, testLogger())
	err := n.Notify(context.Background(), analyzer.Alert{
		Kind:        analyzer.KindRecovery,
		Time:        time.Now(),
		CurrentPool: "green",
	})
	require.NoError(t, err)

	msg := <-payloads
	assert.Contains(t, msg.Text, "Recovery")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "good", msg.Attachments[0].Color)
	assert.Contains(t, msg.Attachments[0].Fields[0].Value, "Green pool")
}

func TestNotifyNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewSlackNotifier(server.URL, testLogger())
	err := n.Notify(context.Background(), analyzer.Alert{Kind: analyzer.KindRecovery, Time: time.Now()})
	assert.Error(t, err)
}

func TestDispatcherDelivers(t *testing.T) {
	payloads := make(chan slackMessage, 1)
	server := captureWebhook(t, payloads)
	defer server.Close()

	d := NewDispatcher(NewSlackNotifier(server.URL, testLogger()), 4, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	d.Enqueue(analyzer.Alert{Kind: analyzer.KindFailover, Time: time.Now(),
		PreviousPool: "blue", CurrentPool: "green"})

	select {
	case msg := <-payloads:
		assert.Contains(t, msg.Text, "Failover")
	case <-time.After(2 * time.Second):
		t.Fatal("Alert was not delivered")
	}
}

// TestDispatcherDropsWhenFull tests that Enqueue never blocks
func TestDispatcherDropsWhenFull(t *testing.T) {
	// No Start loop draining the queue
	d := NewDispatcher(NewSlackNotifier("http://127.0.0.1:0", testLogger()), 1, testLogger())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Enqueue(analyzer.Alert{Kind: analyzer.KindRecovery, Time: time.Now()})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}
