package cncstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForEvent(t *testing.T, c *Controller, kind EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-c.Mailbox().Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %v", kind)
		}
	}
}

func TestControllerStreamsAgainstSimulator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StatusPollIntervalMs = 50
	c := New(cfg, NewMailbox(256), nil)

	require.NoError(t, c.ConnectSimulator())
	defer c.Disconnect()

	waitForEvent(t, c, EventConnectionChanged, 2*time.Second)
	assert.True(t, c.IsConnected())

	require.NoError(t, c.StartStream([]string{"G0 X1", "G0 X2"}))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-c.Mailbox().Events():
			if ev.Kind == EventProgressUpdate && ev.Progress.AckedLines >= 2 {
				return
			}
		case <-deadline:
			t.Fatal("stream did not complete in time")
		}
	}
}

func TestControllerToolChangeGatesStream(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StatusPollIntervalMs = 50
	c := New(cfg, NewMailbox(256), nil)

	require.NoError(t, c.ConnectSimulator())
	defer c.Disconnect()

	waitForEvent(t, c, EventConnectionChanged, 2*time.Second)
	require.NoError(t, c.StartStream([]string{"G0 Z5", "M6 T2", "G0 X0"}))

	toolChange := waitForEvent(t, c, EventToolChange, 3*time.Second)
	assert.Equal(t, 2, toolChange.ToolNumber)

	c.AcknowledgeToolChange()

	// The M6 line itself is never transmitted or acked (GRBL has no
	// native M6), so ackIndex only ever reaches the count of the two real
	// motion lines — it does not reach len(program)==3. This mirrors the
	// reference implementation's own ack accounting exactly.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-c.Mailbox().Events():
			if ev.Kind == EventProgressUpdate && ev.Progress.AckedLines >= 2 {
				return
			}
		case <-deadline:
			t.Fatal("stream did not resume after tool change ack")
		}
	}
}

func TestControllerDisconnectIsIdempotent(t *testing.T) {
	c := New(DefaultConfig(), nil, nil)
	require.NoError(t, c.ConnectSimulator())
	c.Disconnect()
	assert.NotPanics(t, func() { c.Disconnect() })
	assert.False(t, c.IsConnected())
}
