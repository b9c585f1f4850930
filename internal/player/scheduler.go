package player

import "time"

// Scheduler hands out start times for successive audio buffers so each
// one begins exactly when the previous ends. It keeps a running
// next-available-start cursor: a new buffer starts at the later of now
// and the cursor, and the cursor advances by the buffer's duration.
// Strictly ordered, no client-side re-ordering.
type Scheduler struct {
	now    func() time.Time
	cursor time.Time
}

// NewScheduler creates a scheduler driven by the given clock.
func NewScheduler(now func() time.Time) *Scheduler {
	return &Scheduler{now: now}
}

// ScheduleNext returns the start time for a buffer of the given
// duration and advances the cursor past it.
func (s *Scheduler) ScheduleNext(d time.Duration) time.Time {
	start := s.now()
	if s.cursor.After(start) {
		start = s.cursor
	}
	s.cursor = start.Add(d)
	return start
}

// Reset clears the cursor; the next buffer starts immediately.
func (s *Scheduler) Reset() {
	s.cursor = time.Time{}
}
