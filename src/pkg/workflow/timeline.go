package workflow

import (
	"time"
)

// StageTiming is one finished stage: wall-clock duration in milliseconds.
type StageTiming struct {
	Name       string `json:"name"`
	StartedAt  int64  `json:"started_at"` // epoch milliseconds
	DurationMs int64  `json:"duration_ms"`
}

/*
Timeline records per-stage latencies for one receipt. A timeline belongs to
exactly one in-flight receipt, so it carries no lock; the clock is injectable
for tests.
*/
type Timeline struct {
	now    func() time.Time
	opened map[string]time.Time

	Stages []StageTiming `json:"stages"`
}

func NewTimeline() *Timeline {
	return &Timeline{
		now:    time.Now,
		opened: make(map[string]time.Time),
	}
}

// Start marks a stage as begun. Restarting an open stage resets its clock.
func (t *Timeline) Start(name string) {
	t.opened[name] = t.now()
}

// End closes a stage and appends its timing. Ending a stage that never
// started records a zero-duration entry, so the timeline stays a faithful
// trace of what the orchestrator attempted.
func (t *Timeline) End(name string) {
	now := t.now()
	startedAt, wasOpen := t.opened[name]
	if !wasOpen {
		startedAt = now
	}
	delete(t.opened, name)

	t.Stages = append(t.Stages, StageTiming{
		Name:       name,
		StartedAt:  startedAt.UnixMilli(),
		DurationMs: now.Sub(startedAt).Milliseconds(),
	})
}

// TotalMs sums every finished stage.
func (t *Timeline) TotalMs() int64 {
	total := int64(0)
	for _, stage := range t.Stages {
		total += stage.DurationMs
	}
	return total
}
