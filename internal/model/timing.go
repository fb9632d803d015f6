package model

import "time"

// Severity thresholds for the countdown, exposed for UI clients.
const (
	RunningOutThreshold = 10 * time.Minute
	CriticalThreshold   = 5 * time.Minute
)

// Countdown derives the remaining exam time from the server-recorded start
// anchor. It is always recomputed from wall-clock time rather than
// decremented, so the value stays correct across client suspension and
// server restarts. The anchor itself is the anti-fraud mechanism: clients
// never supply their own start time.
type Countdown struct {
	StartedAt          time.Time
	CompletionTime     time.Duration
	PausePhase         *PausePhase
	PauseStartedAt     *time.Time
	TotalPauseDuration time.Duration
}

// Elapsed returns the exam time consumed at the given instant.
// While the session is DURING_PAUSE the clock freezes at the moment the
// pause began; once AFTER_PAUSE, the actual pause duration is excluded.
func (c Countdown) Elapsed(now time.Time) time.Duration {
	if c.PausePhase != nil {
		switch *c.PausePhase {
		case PhaseDuringPause:
			if c.PauseStartedAt != nil {
				return c.PauseStartedAt.Sub(c.StartedAt)
			}
		case PhaseAfterPause:
			return now.Sub(c.StartedAt) - c.TotalPauseDuration
		}
	}
	return now.Sub(c.StartedAt)
}

// Remaining returns the time left on the countdown, floored at zero.
func (c Countdown) Remaining(now time.Time) time.Duration {
	remaining := c.CompletionTime - c.Elapsed(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the countdown has reached zero.
func (c Countdown) Expired(now time.Time) bool {
	return c.Remaining(now) <= 0
}

// RunningOut reports whether less than ten minutes remain.
func (c Countdown) RunningOut(now time.Time) bool {
	return c.Remaining(now) < RunningOutThreshold
}

// Critical reports whether less than five minutes remain.
func (c Countdown) Critical(now time.Time) bool {
	return c.Remaining(now) < CriticalThreshold
}

// PauseDue reports whether the automatic midpoint pause should trigger:
// half the completion time has elapsed and the session is still in
// BEFORE_PAUSE.
func (c Countdown) PauseDue(now time.Time) bool {
	if c.PausePhase == nil || *c.PausePhase != PhaseBeforePause {
		return false
	}
	return c.Elapsed(now) >= c.CompletionTime/2
}

// ResumeDue reports whether the configured pause window has fully elapsed
// and the session should automatically resume.
func (c Countdown) ResumeDue(now time.Time, pauseDuration time.Duration) bool {
	if c.PausePhase == nil || *c.PausePhase != PhaseDuringPause || c.PauseStartedAt == nil {
		return false
	}
	return now.Sub(*c.PauseStartedAt) >= pauseDuration
}

// Midpoint returns the first question index of the second half.
// Questions below the midpoint form the pre-pause half.
func Midpoint(totalQuestions int) int {
	return totalQuestions / 2
}
