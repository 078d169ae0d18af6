package settlement

import (
	"sync/atomic"
	"time"
)

// Stats counts settlement outcomes in process. It complements the prometheus
// series, which may be disabled.
type Stats struct {
	scheduled           atomic.Int64
	rejected            atomic.Int64
	completed           atomic.Int64
	failed              atomic.Int64
	invariantViolations atomic.Int64
	abandoned           atomic.Int64
	totalDurationNs     atomic.Int64
	startedNs           int64
}

func newStats() *Stats {
	return &Stats{startedNs: time.Now().UnixNano()}
}

func (s *Stats) recordTerminal(completed bool, d time.Duration) {
	if completed {
		s.completed.Add(1)
	} else {
		s.failed.Add(1)
	}
	s.totalDurationNs.Add(int64(d))
}

type StatsSnapshot struct {
	Scheduled           int64   `json:"scheduled"`
	Rejected            int64   `json:"rejected"`
	Completed           int64   `json:"completed"`
	Failed              int64   `json:"failed"`
	InvariantViolations int64   `json:"invariant_violations"`
	Abandoned           int64   `json:"abandoned"`
	Running             int     `json:"running"`
	AvgDurationMs       int64   `json:"avg_duration_ms"`
	UptimeSeconds       float64 `json:"uptime_seconds"`
}

func (s *Stats) snapshot(running int) StatsSnapshot {
	completed := s.completed.Load()
	failed := s.failed.Load()

	var avg time.Duration
	if n := completed + failed; n > 0 {
		avg = time.Duration(s.totalDurationNs.Load() / n)
	}

	return StatsSnapshot{
		Scheduled:           s.scheduled.Load(),
		Rejected:            s.rejected.Load(),
		Completed:           completed,
		Failed:              failed,
		InvariantViolations: s.invariantViolations.Load(),
		Abandoned:           s.abandoned.Load(),
		Running:             running,
		AvgDurationMs:       avg.Milliseconds(),
		UptimeSeconds:       time.Since(time.Unix(0, s.startedNs)).Seconds(),
	}
}
