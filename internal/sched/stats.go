package sched

import (
	"log"
	"sync"
	"time"
)

const monitorWindow = 100

type sample struct {
	batch   int
	latency time.Duration
}

// Monitor keeps a rolling window of the last hundred ticks' batch sizes and
// latencies, plus the cumulative processed count.
type Monitor struct {
	mu        sync.Mutex
	window    [monitorWindow]sample
	n         int
	idx       int
	processed uint64
}

func NewMonitor() *Monitor { return &Monitor{} }

func (m *Monitor) Record(batch int, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.window[m.idx] = sample{batch: batch, latency: latency}
	m.idx = (m.idx + 1) % monitorWindow
	if m.n < monitorWindow {
		m.n++
	}
	m.processed += uint64(batch)
}

func (m *Monitor) AvgLatency() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.n == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < m.n; i++ {
		total += m.window[i].latency
	}
	return total / time.Duration(m.n)
}

func (m *Monitor) AvgBatch() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.n == 0 {
		return 0
	}
	total := 0
	for i := 0; i < m.n; i++ {
		total += m.window[i].batch
	}
	return float64(total) / float64(m.n)
}

func (m *Monitor) Processed() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed
}

// AutoTuner consults the monitor at a fixed cadence. It is observational:
// it warns on sustained latency but mutates nothing. Whether it should ever
// change tick rate or batch size live is a stakeholder question, so the
// hook stays a log line.
type AutoTuner struct {
	monitor   *Monitor
	interval  time.Duration
	threshold time.Duration
	log       *log.Logger

	lastEval time.Time
}

func NewAutoTuner(monitor *Monitor, interval, threshold time.Duration, logger *log.Logger) *AutoTuner {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if threshold <= 0 {
		threshold = 100 * time.Millisecond
	}
	return &AutoTuner{monitor: monitor, interval: interval, threshold: threshold, log: logger}
}

// Evaluate is called every tick and self-throttles to its interval.
func (t *AutoTuner) Evaluate(now time.Time) {
	if now.Sub(t.lastEval) < t.interval {
		return
	}
	t.lastEval = now
	avg := t.monitor.AvgLatency()
	if avg > t.threshold {
		t.log.Printf("tuner: avg tick latency %s over threshold %s (avg batch %.1f); consider lowering tick rate or batch size",
			avg.Round(time.Microsecond), t.threshold, t.monitor.AvgBatch())
	}
}
