package tasks

import (
	"sort"
	"sync"
	"time"
)

// TaskStats is the run history of one task.
type TaskStats struct {
	Runs            int64
	Failures        int64
	LastDuration    time.Duration
	TotalDuration   time.Duration
	AverageDuration time.Duration
}

// SuccessRate returns the share of passing runs as a percentage
func (s TaskStats) SuccessRate() float64 {
	if s.Runs == 0 {
		return 0.0
	}
	return float64(s.Runs-s.Failures) / float64(s.Runs) * 100.0
}

// Metrics tracks task run durations and outcomes
type Metrics struct {
	tasks map[string]*TaskStats
	mutex sync.RWMutex
}

// NewMetrics creates an empty tracker
func NewMetrics() *Metrics {
	return &Metrics{tasks: make(map[string]*TaskStats)}
}

// Record adds one run of task.
func (m *Metrics) Record(task string, duration time.Duration, failed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stats, ok := m.tasks[task]
	if !ok {
		stats = &TaskStats{}
		m.tasks[task] = stats
	}

	stats.Runs++
	stats.LastDuration = duration
	stats.TotalDuration += duration
	if failed {
		stats.Failures++
	}
	stats.AverageDuration = stats.TotalDuration / time.Duration(stats.Runs)
}

// Task returns the stats of one task; the zero value if it never ran.
func (m *Metrics) Task(task string) TaskStats {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if stats, ok := m.tasks[task]; ok {
		return *stats
	}
	return TaskStats{}
}

// Snapshot returns a copy of every task's stats
func (m *Metrics) Snapshot() map[string]TaskStats {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	out := make(map[string]TaskStats, len(m.tasks))
	for name, stats := range m.tasks {
		out[name] = *stats
	}
	return out
}

// Names returns the tasks that ran, sorted.
func (m *Metrics) Names() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	out := make([]string, 0, len(m.tasks))
	for name := range m.tasks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Reset clears all metrics
func (m *Metrics) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.tasks = make(map[string]*TaskStats)
}
