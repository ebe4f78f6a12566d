package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHeartbeatKeepsComponentHealthy(t *testing.T) {
	w := New(time.Minute)
	w.Register("restore", 50*time.Millisecond)

	assert.True(t, w.IsHealthy("restore"))

	w.Heartbeat("restore")
	w.checkAll()
	assert.True(t, w.IsHealthy("restore"))
}

func TestSilentComponentGoesUnhealthy(t *testing.T) {
	w := New(time.Minute)
	w.Register("rebuild", 10*time.Millisecond)

	w.Heartbeat("rebuild")
	time.Sleep(30 * time.Millisecond)
	w.checkAll()
	assert.False(t, w.IsHealthy("rebuild"))

	// A fresh heartbeat recovers it.
	w.Heartbeat("rebuild")
	w.checkAll()
	assert.True(t, w.IsHealthy("rebuild"))
}

func TestNeverBeatenComponentStaysHealthy(t *testing.T) {
	w := New(time.Minute)
	w.Register("restore", time.Nanosecond)

	// No workflow has started yet, so silence means idle, not stuck.
	w.checkAll()
	assert.True(t, w.IsHealthy("restore"))
}

func TestUnknownComponent(t *testing.T) {
	w := New(time.Minute)
	assert.False(t, w.IsHealthy("nope"))

	// Beating an unregistered name is a no-op.
	w.Heartbeat("nope")
}

func TestStatus(t *testing.T) {
	w := New(time.Minute)
	w.Register("restore", time.Hour)
	w.Register("rebuild", time.Nanosecond)

	w.Heartbeat("rebuild")
	time.Sleep(5 * time.Millisecond)
	w.checkAll()

	status := w.Status()
	assert.True(t, status["restore"])
	assert.False(t, status["rebuild"])
}
