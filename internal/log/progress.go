package log

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// BatchProgress reports progress of long batch imports: processed counts,
// rate and ETA, emitted as periodic structured log lines rather than a
// terminal spinner so it behaves the same under cron and CI.
type BatchProgress struct {
	mu        sync.Mutex
	name      string
	total     int
	done      int
	startTime time.Time
	lastLog   time.Time
	interval  time.Duration
}

// NewBatchProgress starts tracking an operation expected to process total
// items. total 0 means unknown and disables ETA.
func NewBatchProgress(name string, total int) *BatchProgress {
	now := time.Now()
	return &BatchProgress{
		name:      name,
		total:     total,
		startTime: now,
		lastLog:   now,
		interval:  5 * time.Second,
	}
}

// Add records n processed items and logs a progress line at most once per
// interval.
func (p *BatchProgress) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done += n
	now := time.Now()
	if now.Sub(p.lastLog) < p.interval {
		return
	}
	p.lastLog = now

	ev := log.Info().
		Str("operation", p.name).
		Int("processed", p.done).
		Float64("per_second", p.rate(now))
	if p.total > 0 {
		ev = ev.Int("total", p.total).Dur("eta", p.eta(now))
	}
	ev.Msg("import progress")
}

// Done logs the final summary.
func (p *BatchProgress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()

	log.Info().
		Str("operation", p.name).
		Int("processed", p.done).
		Dur("elapsed", time.Since(p.startTime)).
		Msg("import finished")
}

func (p *BatchProgress) rate(now time.Time) float64 {
	elapsed := now.Sub(p.startTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.done) / elapsed
}

func (p *BatchProgress) eta(now time.Time) time.Duration {
	r := p.rate(now)
	if r <= 0 || p.done >= p.total {
		return 0
	}
	return time.Duration(float64(p.total-p.done)/r) * time.Second
}
