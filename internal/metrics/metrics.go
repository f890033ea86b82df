package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metric names recorded by the series engine
const (
	SeriesCreated              = "series_created"
	OccurrencesCreated         = "occurrences_created"
	OccurrencesRemoved         = "occurrences_removed"
	OccurrencesRepointed       = "occurrences_repointed"
	DetailsForked              = "event_details_forked"
	Compensations              = "creation_compensations"
	CompensationFailures       = "creation_compensation_failures"
	UpdateCompensations        = "update_compensations"
	UpdateCompensationFailures = "update_compensation_failures"
	StrategyCascade            = "strategy_cascade"
	StrategyRebuild            = "strategy_rebuild"
	SweptEvents                = "swept_events"
	SweptDetails               = "swept_event_details"

	CreateSeries = "create_series"
	UpdateSeries = "update_series"
	DBQuery      = "db_query"
)

// TimerMetric captures timing information
type TimerMetric struct {
	Count         int64   `json:"count"`
	TotalTimeMs   int64   `json:"total_time_ms"`
	AverageTimeMs float64 `json:"average_time_ms"`
	MinTimeMs     int64   `json:"min_time_ms"`
	MaxTimeMs     int64   `json:"max_time_ms"`
}

// OutcomeMetric captures how many operations failed
type OutcomeMetric struct {
	Total     int64   `json:"total"`
	Errors    int64   `json:"errors"`
	ErrorRate float64 `json:"error_rate"`
}

type timer struct {
	count       int64
	totalTimeMs int64
	minTimeMs   int64
	maxTimeMs   int64
}

type outcome struct {
	total  int64
	errors int64
}

// Metrics is an in-process metrics collector
type Metrics struct {
	mu        sync.RWMutex
	counters  map[string]*int64
	timers    map[string]*timer
	outcomes  map[string]*outcome
	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		counters:  make(map[string]*int64),
		timers:    make(map[string]*timer),
		outcomes:  make(map[string]*outcome),
		startTime: time.Now(),
	}
}

// IncrementCounter increments a counter by 1
func (m *Metrics) IncrementCounter(name string) {
	m.IncrementCounterBy(name, 1)
}

// IncrementCounterBy increments a counter by the specified value
func (m *Metrics) IncrementCounterBy(name string, value int64) {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		// Check again to avoid race conditions
		if counter, exists = m.counters[name]; !exists {
			var c int64
			counter = &c
			m.counters[name] = counter
		}
		m.mu.Unlock()
	}

	atomic.AddInt64(counter, value)
}

// RecordTimer records how long an operation took
func (m *Metrics) RecordTimer(name string, d time.Duration) {
	ms := d.Milliseconds()

	m.mu.Lock()
	defer m.mu.Unlock()

	t, exists := m.timers[name]
	if !exists {
		t = &timer{minTimeMs: ms, maxTimeMs: ms}
		m.timers[name] = t
	}
	t.count++
	t.totalTimeMs += ms
	if ms < t.minTimeMs {
		t.minTimeMs = ms
	}
	if ms > t.maxTimeMs {
		t.maxTimeMs = ms
	}
}

// RecordOutcome counts one operation and whether it failed
func (m *Metrics) RecordOutcome(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, exists := m.outcomes[name]
	if !exists {
		o = &outcome{}
		m.outcomes[name] = o
	}
	o.total++
	if err != nil {
		o.errors++
	}
}

// Track records the duration and outcome of an operation that started at start
func (m *Metrics) Track(name string, start time.Time, err error) {
	m.RecordTimer(name, time.Since(start))
	m.RecordOutcome(name, err)
}

// GetCounters returns a copy of all counters
func (m *Metrics) GetCounters() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int64, len(m.counters))
	for name, c := range m.counters {
		out[name] = atomic.LoadInt64(c)
	}
	return out
}

// GetCounter returns a single counter value
func (m *Metrics) GetCounter(name string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if c, ok := m.counters[name]; ok {
		return atomic.LoadInt64(c)
	}
	return 0
}

// GetTimers returns a snapshot of all timers
func (m *Metrics) GetTimers() map[string]TimerMetric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]TimerMetric, len(m.timers))
	for name, t := range m.timers {
		metric := TimerMetric{
			Count:       t.count,
			TotalTimeMs: t.totalTimeMs,
			MinTimeMs:   t.minTimeMs,
			MaxTimeMs:   t.maxTimeMs,
		}
		if t.count > 0 {
			metric.AverageTimeMs = float64(t.totalTimeMs) / float64(t.count)
		}
		out[name] = metric
	}
	return out
}

// GetOutcomes returns a snapshot of all outcome counters
func (m *Metrics) GetOutcomes() map[string]OutcomeMetric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]OutcomeMetric, len(m.outcomes))
	for name, o := range m.outcomes {
		metric := OutcomeMetric{Total: o.total, Errors: o.errors}
		if o.total > 0 {
			metric.ErrorRate = float64(o.errors) / float64(o.total) * 100
		}
		out[name] = metric
	}
	return out
}

// GetAllMetrics returns every metric keyed by kind
func (m *Metrics) GetAllMetrics() map[string]interface{} {
	return map[string]interface{}{
		"counters":       m.GetCounters(),
		"timers":         m.GetTimers(),
		"outcomes":       m.GetOutcomes(),
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
	}
}
