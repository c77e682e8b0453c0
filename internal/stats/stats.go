// Package stats keeps rolling latency samples and running totals for
// decoration calls served over HTTP.
package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/docdecor/internal/decorate"
)

type sample struct {
	timestamp time.Time
	duration  time.Duration
}

// LatencySnapshot is a point-in-time aggregate of latency samples. Values
// are fractional milliseconds; a page decorates in well under one.
type LatencySnapshot struct {
	Count int     `json:"count"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// Snapshot is what /_api/stats reports.
type Snapshot struct {
	Latency LatencySnapshot `json:"latency"`
	Pages   int64           `json:"pages"`
	Changed int64           `json:"changed"`
	Totals  decorate.Result `json:"totals"`
}

// Recorder tracks decoration latencies within a rolling window, plus
// totals since start.
type Recorder struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration

	pages   int64
	changed int64
	totals  decorate.Result
}

func NewRecorder(maxAge time.Duration) *Recorder {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Recorder{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds one decorated page.
func (s *Recorder) Record(d time.Duration, res decorate.Result) {
	if d < 0 {
		d = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		timestamp: now,
		duration:  d,
	})
	s.pages++
	if res.Changed() {
		s.changed++
	}
	s.totals.Add(res)
}

func (s *Recorder) Snapshot() Snapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	snap := Snapshot{Pages: s.pages, Changed: s.changed, Totals: s.totals}
	if len(s.samples) == 0 {
		return snap
	}

	values := make([]time.Duration, 0, len(s.samples))
	var sum time.Duration
	for _, sm := range s.samples {
		values = append(values, sm.duration)
		sum += sm.duration
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	snap.Latency = LatencySnapshot{
		Count: len(values),
		MinMs: ms(float64(values[0])),
		MaxMs: ms(float64(values[len(values)-1])),
		AvgMs: ms(float64(sum) / float64(len(values))),
		P50Ms: ms(percentile(values, 50)),
		P95Ms: ms(percentile(values, 95)),
		P99Ms: ms(percentile(values, 99)),
	}
	return snap
}

func (s *Recorder) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.timestamp.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]
}

// ms converts nanoseconds to milliseconds.
func ms(ns float64) float64 { return ns / float64(time.Millisecond) }

func percentile(sortedValues []time.Duration, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
