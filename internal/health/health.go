// Package health tracks the state of the capture pipeline's components.
package health

import (
	"sort"
	"sync"
	"time"

	"github.com/breeze-rmm/fbcgrab/internal/logging"
)

var log = logging.L("health")

// Status represents the health status of a component.
type Status string

const (
	Unknown   Status = "unknown"
	Healthy   Status = "healthy"
	Degraded  Status = "degraded"
	Unhealthy Status = "unhealthy"
)

// IsValid reports whether s is one of the defined statuses.
func (s Status) IsValid() bool {
	switch s {
	case Unknown, Healthy, Degraded, Unhealthy:
		return true
	}
	return false
}

// Component names used by the capture command.
const (
	ComponentLibrary = "library"
	ComponentSession = "session"
	ComponentGrab    = "grab"
)

// Check stores the latest health result for a named component.
type Check struct {
	Name      string    `json:"name" yaml:"name"`
	Status    Status    `json:"status" yaml:"status"`
	Message   string    `json:"message,omitempty" yaml:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Monitor tracks health checks for multiple components.
type Monitor struct {
	mu     sync.RWMutex
	checks map[string]Check

	// consecutive grab failures, see RecordGrab
	failures  int
	threshold int
}

// NewMonitor creates a monitor that marks grabbing unhealthy after
// failureThreshold consecutive failures. Values below 1 use 1.
func NewMonitor(failureThreshold int) *Monitor {
	return &Monitor{
		checks:    make(map[string]Check),
		threshold: max(failureThreshold, 1),
	}
}

// Update records the health status for a named component.
func (m *Monitor) Update(name string, status Status, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.update(name, status, message)
}

func (m *Monitor) update(name string, status Status, message string) {
	if !status.IsValid() {
		message = "invalid status " + string(status) + ": " + message
		status = Unhealthy
	}
	prev, seen := m.checks[name]
	m.checks[name] = Check{
		Name:      name,
		Status:    status,
		Message:   message,
		UpdatedAt: time.Now(),
	}

	if status != Healthy && (!seen || prev.Status != status) {
		log.Warn("health check degraded", "component", name, "status", string(status), "message", message)
	}
}

// RecordGrab folds one grab result into the grab component. A failure
// degrades it; threshold consecutive failures, or a fatal one, make it
// unhealthy. A success resets the count.
func (m *Monitor) RecordGrab(err error, fatal bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		m.failures = 0
		m.update(ComponentGrab, Healthy, "")
		return
	}

	m.failures++
	if fatal || m.failures >= m.threshold {
		m.update(ComponentGrab, Unhealthy, err.Error())
		return
	}
	m.update(ComponentGrab, Degraded, err.Error())
}

// Get returns the health check for a named component.
func (m *Monitor) Get(name string) (Check, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.checks[name]
	return c, ok
}

// Overall returns the worst status across all registered checks, or
// Unknown when nothing has been recorded. A component reporting Unknown
// outranks every other status.
func (m *Monitor) Overall() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overall()
}

func (m *Monitor) overall() Status {
	if len(m.checks) == 0 {
		return Unknown
	}
	worst := Healthy
	for _, c := range m.checks {
		if worse(c.Status, worst) {
			worst = c.Status
		}
	}
	return worst
}

// All returns a snapshot of all current health checks sorted by name.
func (m *Monitor) All() []Check {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.all()
}

func (m *Monitor) all() []Check {
	result := make([]Check, 0, len(m.checks))
	for _, c := range m.checks {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Summary returns a map suitable for a status dump. Overall status and
// components are read under one lock so they agree.
func (m *Monitor) Summary() map[string]any {
	m.mu.RLock()
	overall := m.overall()
	checks := m.all()
	m.mu.RUnlock()

	components := make(map[string]string, len(checks))
	for _, c := range checks {
		components[c.Name] = string(c.Status)
	}

	return map[string]any{
		"status":     string(overall),
		"components": components,
	}
}

// worse returns true if a is worse than b.
func worse(a, b Status) bool {
	return statusRank(a) > statusRank(b)
}

func statusRank(s Status) int {
	switch s {
	case Healthy:
		return 0
	case Degraded:
		return 1
	case Unhealthy:
		return 2
	case Unknown:
		return 3
	default:
		return 2
	}
}
