package capture

import (
	"testing"
	"time"

	"github.com/breeze-rmm/fbcgrab/internal/fbc"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	m.RecordGrab(2*time.Millisecond, fbc.FrameInfo{CurrentFrame: 1, IsNewFrame: true}, 0)
	m.RecordGrab(3*time.Millisecond, fbc.FrameInfo{CurrentFrame: 4, MissedFrames: 2}, 5*time.Millisecond)
	m.RecordGrab(time.Millisecond, fbc.FrameInfo{CurrentFrame: 5, IsNewFrame: true}, time.Millisecond)
	m.RecordError(false)
	m.RecordError(true)

	s := m.Snapshot()
	if s.FramesGrabbed != 3 || s.NewFrames != 2 || s.MissedFrames != 2 {
		t.Fatalf("frame counters = %+v", s)
	}
	if s.GrabErrors != 2 || s.ModeChanges != 1 {
		t.Fatalf("error counters = %+v", s)
	}
	if s.LastFrame != 5 || s.GrabMs != 1 || s.LatenessMs != 1 || s.MaxLatenessMs != 5 {
		t.Fatalf("last values = %+v", s)
	}
	if len(s.LogAttrs())%2 != 0 {
		t.Fatal("LogAttrs must be key/value pairs")
	}
}

func TestMetricsSnapshotWhileRecording(t *testing.T) {
	m := NewMetrics()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			m.RecordGrab(time.Millisecond, fbc.FrameInfo{CurrentFrame: uint32(i), IsNewFrame: true}, 0)
		}
	}()

	var prev uint64
	for {
		s := m.Snapshot()
		if s.FramesGrabbed < prev {
			t.Fatalf("frames grabbed went backwards: %d after %d", s.FramesGrabbed, prev)
		}
		prev = s.FramesGrabbed
		select {
		case <-done:
			if s := m.Snapshot(); s.FramesGrabbed != 1000 || s.NewFrames != 1000 {
				t.Fatalf("final snapshot = %+v", s)
			}
			return
		default:
		}
	}
}
