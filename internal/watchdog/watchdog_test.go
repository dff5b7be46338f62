package watchdog

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchdog_HeartbeatPreventsHungDetection(t *testing.T) {
	w := New(10*time.Millisecond, 40*time.Millisecond)
	w.Start()
	defer w.Stop()

	var hungCalls int32
	w.RegisterOperation("op-1", func(string) {
		atomic.AddInt32(&hungCalls, 1)
	})

	stop := time.After(100 * time.Millisecond)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ticker.C:
			w.Heartbeat("op-1")
		case <-stop:
			break loop
		}
	}

	assert.Equal(t, int32(0), atomic.LoadInt32(&hungCalls))
}

func TestWatchdog_DetectsHungOperation(t *testing.T) {
	w := New(10*time.Millisecond, 20*time.Millisecond)
	w.Start()
	defer w.Stop()

	hung := make(chan string, 1)
	w.RegisterOperation("op-2", func(id string) {
		hung <- id
	})

	select {
	case id := <-hung:
		assert.Equal(t, "op-2", id)
	case <-time.After(time.Second):
		t.Fatal("watchdog never detected the hung operation")
	}
}

func TestWatchdog_UnregisterStopsDetection(t *testing.T) {
	w := New(10*time.Millisecond, 20*time.Millisecond)
	w.Start()
	defer w.Stop()

	var hungCalls int32
	w.RegisterOperation("op-3", func(string) {
		atomic.AddInt32(&hungCalls, 1)
	})
	w.UnregisterOperation("op-3")

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hungCalls))
}

func TestWatchdog_OperationState(t *testing.T) {
	w := New(time.Hour, time.Hour)
	w.RegisterOperation("op-4", nil)

	_, count, ok := w.OperationState("op-4")
	require.True(t, ok)
	assert.Equal(t, uint64(0), count)

	w.Heartbeat("op-4")
	_, count, ok = w.OperationState("op-4")
	require.True(t, ok)
	assert.Equal(t, uint64(1), count)
}

type fakeResponder struct {
	id    string
	alive bool
}

func (f *fakeResponder) IsAlive() bool       { return f.alive }
func (f *fakeResponder) OperationID() string { return f.id }

func TestWatchdog_ResponderPollingUpdatesHeartbeat(t *testing.T) {
	w := &Watchdog{
		operations:        make(map[string]*operationState),
		heartbeatInterval: time.Millisecond,
	}
	r := &fakeResponder{id: "op-5", alive: true}
	w.RegisterOperationWithResponder("op-5", r, nil)

	w.pollHeartbeats()
	_, count, ok := w.OperationState("op-5")
	require.True(t, ok)
	assert.Equal(t, uint64(1), count)
}
