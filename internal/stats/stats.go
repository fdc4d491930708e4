// Package stats keeps rolling per-strategy extraction timings.
package stats

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// Snapshot aggregates the attempts of one strategy inside the window.
type Snapshot struct {
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	MinMs    int64   `json:"min_ms"`
	MaxMs    int64   `json:"max_ms"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    int64   `json:"p50_ms"`
	P95Ms    int64   `json:"p95_ms"`
}

type attempt struct {
	at     time.Time
	ms     int64
	failed bool
}

// Set keeps the attempts of the last window per strategy name.
type Set struct {
	mu       sync.Mutex
	window   time.Duration
	attempts map[string][]attempt
	now      func() time.Time
}

// NewSet returns a Set that forgets attempts older than window (an hour when
// window is not positive).
func NewSet(window time.Duration) *Set {
	if window <= 0 {
		window = time.Hour
	}
	return &Set{
		window:   window,
		attempts: make(map[string][]attempt),
		now:      time.Now,
	}
}

// Record adds one attempt. Negative durations count as zero.
func (s *Set) Record(name string, d time.Duration, failed bool) {
	ms := max(d.Milliseconds(), 0)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	list := expire(s.attempts[name], now.Add(-s.window))
	s.attempts[name] = append(list, attempt{at: now, ms: ms, failed: failed})
}

// Snapshot aggregates every strategy that still has attempts in the window.
func (s *Set) Snapshot() map[string]Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.window)
	out := make(map[string]Snapshot, len(s.attempts))
	for name, list := range s.attempts {
		list = expire(list, cutoff)
		if len(list) == 0 {
			delete(s.attempts, name)
			continue
		}
		s.attempts[name] = list
		out[name] = summarize(list)
	}
	return out
}

// expire drops the attempts recorded before cutoff. Attempts are appended in
// time order.
func expire(list []attempt, cutoff time.Time) []attempt {
	i := sort.Search(len(list), func(i int) bool { return !list[i].at.Before(cutoff) })
	return list[i:]
}

func summarize(list []attempt) Snapshot {
	ms := make([]int64, len(list))
	var sum int64
	snap := Snapshot{Count: len(list)}
	for i, a := range list {
		ms[i] = a.ms
		sum += a.ms
		if a.failed {
			snap.Failures++
		}
	}
	slices.Sort(ms)

	snap.MinMs = ms[0]
	snap.MaxMs = ms[len(ms)-1]
	snap.AvgMs = float64(sum) / float64(len(ms))
	snap.P50Ms = rank(ms, 50)
	snap.P95Ms = rank(ms, 95)
	return snap
}

// rank is the nearest-rank percentile of sorted values.
func rank(sorted []int64, pct int) int64 {
	n := (pct*len(sorted) + 99) / 100
	return sorted[max(n, 1)-1]
}
