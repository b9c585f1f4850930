package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func lockWaitObservations(t *testing.T) uint64 {
	t.Helper()
	m := &dto.Metric{}
	if err := lockWaitDuration.Write(m); err != nil {
		t.Fatalf("Failed to read lock wait histogram: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestDeviceLockMetrics(t *testing.T) {
	gaugeBefore := testutil.ToFloat64(devicesBusy)
	histBefore := lockWaitObservations(t)

	RecordDeviceAcquired(10 * time.Millisecond)
	if got := lockWaitObservations(t); got != histBefore+1 {
		t.Errorf("Expected %d wait observations after blocking acquire, got %d", histBefore+1, got)
	}

	// Non-blocking probes never queue, so they must not feed the wait
	// histogram.
	RecordDeviceHeld()
	if got := lockWaitObservations(t); got != histBefore+1 {
		t.Errorf("Expected probe to add no wait observation, got %d total", got)
	}

	if got := testutil.ToFloat64(devicesBusy); got != gaugeBefore+2 {
		t.Errorf("Expected busy gauge %v, got %v", gaugeBefore+2, got)
	}

	RecordDeviceReleased()
	RecordDeviceReleased()
	if got := testutil.ToFloat64(devicesBusy); got != gaugeBefore {
		t.Errorf("Expected busy gauge back at %v, got %v", gaugeBefore, got)
	}
}
