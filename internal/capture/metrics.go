package capture

import (
	"sync"
	"time"

	"github.com/breeze-rmm/fbcgrab/internal/fbc"
)

// Metrics tracks grab counters for one device. It is safe for concurrent
// readers while the driving goroutine records.
type Metrics struct {
	mu sync.RWMutex

	framesGrabbed uint64
	newFrames     uint64
	missedFrames  uint64
	grabErrors    uint64
	modeChanges   uint64

	lastGrabTime time.Duration
	lastLateness time.Duration
	maxLateness  time.Duration
	lastFrame    uint32
	startTime    time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) RecordGrab(d time.Duration, info fbc.FrameInfo, lateness time.Duration) {
	m.mu.Lock()
	m.framesGrabbed++
	if info.IsNewFrame {
		m.newFrames++
	}
	m.missedFrames += uint64(info.MissedFrames)
	m.lastFrame = info.CurrentFrame
	m.lastGrabTime = d
	m.lastLateness = lateness
	if lateness > m.maxLateness {
		m.maxLateness = lateness
	}
	m.mu.Unlock()
}

func (m *Metrics) RecordError(modeChange bool) {
	m.mu.Lock()
	m.grabErrors++
	if modeChange {
		m.modeChanges++
	}
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time copy of metrics for logging.
type MetricsSnapshot struct {
	FramesGrabbed uint64
	NewFrames     uint64
	MissedFrames  uint64
	GrabErrors    uint64
	ModeChanges   uint64
	GrabMs        float64
	LatenessMs    float64
	MaxLatenessMs float64
	LastFrame     uint32
	FPS           float64
	Uptime        time.Duration
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	uptime := time.Since(m.startTime)
	fps := float64(0)
	if uptime.Seconds() > 0 {
		fps = float64(m.framesGrabbed) / uptime.Seconds()
	}

	return MetricsSnapshot{
		FramesGrabbed: m.framesGrabbed,
		NewFrames:     m.newFrames,
		MissedFrames:  m.missedFrames,
		GrabErrors:    m.grabErrors,
		ModeChanges:   m.modeChanges,
		GrabMs:        float64(m.lastGrabTime.Microseconds()) / 1000.0,
		LatenessMs:    float64(m.lastLateness.Microseconds()) / 1000.0,
		MaxLatenessMs: float64(m.maxLateness.Microseconds()) / 1000.0,
		LastFrame:     m.lastFrame,
		FPS:           fps,
		Uptime:        uptime,
	}
}

// LogAttrs returns the snapshot as slog key/value pairs.
func (s MetricsSnapshot) LogAttrs() []any {
	return []any{
		"framesGrabbed", s.FramesGrabbed,
		"newFrames", s.NewFrames,
		"missedFrames", s.MissedFrames,
		"grabErrors", s.GrabErrors,
		"modeChanges", s.ModeChanges,
		"grabMs", s.GrabMs,
		"latenessMs", s.LatenessMs,
		"maxLatenessMs", s.MaxLatenessMs,
		"fps", s.FPS,
	}
}
