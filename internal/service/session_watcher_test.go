package service

import (
	"testing"
	"time"

	"github.com/medcert/eacmc-backend/internal/model"
	"github.com/stretchr/testify/assert"
)

func phaseOf(p model.PausePhase) *model.PausePhase { return &p }

func newWatch(start time.Time, completion time.Duration, pause model.PauseConfig, phase *model.PausePhase) *sessionWatch {
	return &sessionWatch{
		countdown: model.Countdown{
			StartedAt:      start,
			CompletionTime: completion,
			PausePhase:     phase,
		},
		pause: pause,
	}
}

func TestWatchNextFiresSubmitOnceExpired(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	sw := newWatch(start, time.Hour, model.PauseConfig{}, nil)

	assert.Equal(t, actionNone, sw.next(start.Add(59*time.Minute)))
	assert.Equal(t, actionSubmit, sw.next(start.Add(time.Hour)))

	// Latched: the next tick must not fire a second submit.
	assert.Equal(t, actionNone, sw.next(start.Add(time.Hour+time.Second)))
}

func TestWatchNextRetriesSubmitAfterUnlatch(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	sw := newWatch(start, time.Hour, model.PauseConfig{}, nil)

	assert.Equal(t, actionSubmit, sw.next(start.Add(time.Hour)))

	// The run loop clears the flag when the service call fails.
	sw.mu.Lock()
	sw.submitFired = false
	sw.mu.Unlock()

	assert.Equal(t, actionSubmit, sw.next(start.Add(time.Hour+time.Second)))
}

func TestWatchNextFiresPauseAtMidpoint(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	pause := model.PauseConfig{EnablePause: true, PauseDurationMinutes: 45}
	sw := newWatch(start, 3*time.Hour, pause, phaseOf(model.PhaseBeforePause))

	assert.Equal(t, actionNone, sw.next(start.Add(89*time.Minute)))
	assert.Equal(t, actionPause, sw.next(start.Add(90*time.Minute)))
	assert.Equal(t, actionNone, sw.next(start.Add(91*time.Minute)))
}

func TestWatchNextFiresResumeAfterPauseWindow(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	pausedAt := start.Add(90 * time.Minute)
	pause := model.PauseConfig{EnablePause: true, PauseDurationMinutes: 45}

	sw := newWatch(start, 3*time.Hour, pause, nil)
	sw.update(&model.ExamSession{
		PausePhase:     phaseOf(model.PhaseDuringPause),
		PauseStartedAt: &pausedAt,
	})
	// The midpoint pause already happened for this session.
	sw.pauseFired = true

	assert.Equal(t, actionNone, sw.next(pausedAt.Add(44*time.Minute)))
	assert.Equal(t, actionResume, sw.next(pausedAt.Add(45*time.Minute)))
	assert.Equal(t, actionNone, sw.next(pausedAt.Add(46*time.Minute)))
}

func TestWatchNextNoSubmitWhilePaused(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	pausedAt := start.Add(29 * time.Minute)
	pause := model.PauseConfig{EnablePause: true, PauseDurationMinutes: 120}

	sw := newWatch(start, time.Hour, pause, nil)
	sw.update(&model.ExamSession{
		PausePhase:     phaseOf(model.PhaseDuringPause),
		PauseStartedAt: &pausedAt,
	})
	sw.pauseFired = true

	// Wall clock is far past the 1h completion time, but the countdown
	// froze at 29m elapsed when the pause began.
	assert.Equal(t, actionNone, sw.next(start.Add(90*time.Minute)))
}

func TestWatchNextFullLifecycle(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	pause := model.PauseConfig{EnablePause: true, PauseDurationMinutes: 30}
	sw := newWatch(start, 2*time.Hour, pause, phaseOf(model.PhaseBeforePause))

	// Midpoint pause at 1h elapsed.
	assert.Equal(t, actionPause, sw.next(start.Add(time.Hour)))

	pausedAt := start.Add(time.Hour)
	sw.update(&model.ExamSession{
		PausePhase:     phaseOf(model.PhaseDuringPause),
		PauseStartedAt: &pausedAt,
	})

	// Resume after the 30m window.
	assert.Equal(t, actionNone, sw.next(pausedAt.Add(15*time.Minute)))
	assert.Equal(t, actionResume, sw.next(pausedAt.Add(30*time.Minute)))

	sw.update(&model.ExamSession{
		PausePhase:           phaseOf(model.PhaseAfterPause),
		TotalPauseDurationMs: int64(30 * time.Minute / time.Millisecond),
	})

	// Remaining hour plays out with the pause excluded: expiry lands at
	// start + 2h completion + 30m pause.
	assert.Equal(t, actionNone, sw.next(start.Add(2*time.Hour+29*time.Minute)))
	assert.Equal(t, actionSubmit, sw.next(start.Add(2*time.Hour+30*time.Minute)))
}
