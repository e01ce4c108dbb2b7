package progress

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestNewTracker(t *testing.T) {
	tests := []struct {
		name  string
		label string
		total int
	}{
		{"standard tracker", "Extracting symbols", 100},
		{"zero total", "Empty task", 0},
		{"single item", "One file", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker(tt.label, tt.total)
			if tracker == nil {
				t.Fatal("NewTracker() returned nil")
			}
			if tracker.bar == nil {
				t.Error("tracker.bar should not be nil")
			}
			if tracker.label != tt.label {
				t.Errorf("tracker.label = %q, want %q", tracker.label, tt.label)
			}
		})
	}
}

func TestTrackerTickConcurrent(t *testing.T) {
	var buf bytes.Buffer
	tracker := newTracker(&buf, "Concurrent", 100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				tracker.Tick()
			}
		}()
	}
	wg.Wait()

	if got := tracker.bar.State().CurrentNum; got != 100 {
		t.Errorf("CurrentNum = %d, want 100", got)
	}
	tracker.FinishSuccess()
}

func TestTrackerFinishError(t *testing.T) {
	var buf bytes.Buffer
	tracker := newTracker(&buf, "Extracting", 3)
	tracker.Tick()
	tracker.FinishError(errors.New("context canceled"))

	if !strings.Contains(buf.String(), "Extracting error: context canceled") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestTrackerNilSafety(t *testing.T) {
	var tracker *Tracker
	tracker.Tick()
	tracker.FinishSuccess()
	tracker.FinishError(errors.New("ignored"))
}
