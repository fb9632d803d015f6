package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func phase(p PausePhase) *PausePhase { return &p }

func TestCountdownRemainingRecomputed(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	c := Countdown{StartedAt: start, CompletionTime: 3 * time.Hour}

	assert.Equal(t, 3*time.Hour, c.Remaining(start))
	assert.Equal(t, 2*time.Hour, c.Remaining(start.Add(time.Hour)))

	// Remaining is derived from the anchor, so observing it out of order
	// changes nothing.
	assert.Equal(t, 90*time.Minute, c.Remaining(start.Add(90*time.Minute)))
	assert.Equal(t, 2*time.Hour, c.Remaining(start.Add(time.Hour)))
}

func TestCountdownFloorsAtZero(t *testing.T) {
	start := time.Now()
	c := Countdown{StartedAt: start, CompletionTime: time.Hour}

	assert.Equal(t, time.Duration(0), c.Remaining(start.Add(2*time.Hour)))
	assert.True(t, c.Expired(start.Add(time.Hour)))
	assert.False(t, c.Expired(start.Add(59*time.Minute)))
}

func TestCountdownFreezesDuringPause(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	pausedAt := start.Add(90 * time.Minute)
	c := Countdown{
		StartedAt:      start,
		CompletionTime: 3 * time.Hour,
		PausePhase:     phase(PhaseDuringPause),
		PauseStartedAt: &pausedAt,
	}

	// However long the pause lasts, elapsed time stays pinned to the
	// moment the pause began.
	assert.Equal(t, 90*time.Minute, c.Elapsed(pausedAt.Add(time.Minute)))
	assert.Equal(t, 90*time.Minute, c.Elapsed(pausedAt.Add(45*time.Minute)))
	assert.Equal(t, 90*time.Minute, c.Remaining(pausedAt.Add(45*time.Minute)))
}

func TestCountdownExcludesPauseAfterResume(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	c := Countdown{
		StartedAt:          start,
		CompletionTime:     3 * time.Hour,
		PausePhase:         phase(PhaseAfterPause),
		TotalPauseDuration: 30 * time.Minute,
	}

	// 2h of wall clock minus the 30m pause leaves 1h30m consumed.
	now := start.Add(2 * time.Hour)
	assert.Equal(t, 90*time.Minute, c.Elapsed(now))
	assert.Equal(t, 90*time.Minute, c.Remaining(now))
}

func TestCountdownThresholds(t *testing.T) {
	start := time.Now()
	c := Countdown{StartedAt: start, CompletionTime: time.Hour}

	assert.False(t, c.RunningOut(start.Add(49*time.Minute)))
	assert.True(t, c.RunningOut(start.Add(51*time.Minute)))
	assert.False(t, c.Critical(start.Add(54*time.Minute)))
	assert.True(t, c.Critical(start.Add(56*time.Minute)))
}

func TestPauseDue(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	c := Countdown{
		StartedAt:      start,
		CompletionTime: 3 * time.Hour,
		PausePhase:     phase(PhaseBeforePause),
	}

	assert.False(t, c.PauseDue(start.Add(89*time.Minute)))
	assert.True(t, c.PauseDue(start.Add(90*time.Minute)))
	assert.True(t, c.PauseDue(start.Add(2*time.Hour)))

	// Exams without a configured pause never hit the midpoint trigger.
	c.PausePhase = nil
	assert.False(t, c.PauseDue(start.Add(2*time.Hour)))

	// Nor do sessions that already took their pause.
	c.PausePhase = phase(PhaseAfterPause)
	assert.False(t, c.PauseDue(start.Add(2*time.Hour)))
}

func TestResumeDue(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	pausedAt := start.Add(90 * time.Minute)
	c := Countdown{
		StartedAt:      start,
		CompletionTime: 3 * time.Hour,
		PausePhase:     phase(PhaseDuringPause),
		PauseStartedAt: &pausedAt,
	}

	assert.False(t, c.ResumeDue(pausedAt.Add(29*time.Minute), 30*time.Minute))
	assert.True(t, c.ResumeDue(pausedAt.Add(30*time.Minute), 30*time.Minute))

	c.PausePhase = phase(PhaseBeforePause)
	assert.False(t, c.ResumeDue(pausedAt.Add(time.Hour), 30*time.Minute))
}

func TestCountdownCutShortPauseScenario(t *testing.T) {
	// 3600s exam with a 15m pause window. The pause auto-triggers at 50%
	// and the candidate resumes after only 10 of the 15 minutes.
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	pausedAt := start.Add(30 * time.Minute)

	c := Countdown{
		StartedAt:      start,
		CompletionTime: time.Hour,
		PausePhase:     phase(PhaseBeforePause),
	}
	assert.True(t, c.PauseDue(pausedAt))

	c.PausePhase = phase(PhaseDuringPause)
	c.PauseStartedAt = &pausedAt
	assert.Equal(t, 30*time.Minute, c.Remaining(pausedAt.Add(10*time.Minute)))
	assert.False(t, c.ResumeDue(pausedAt.Add(10*time.Minute), 15*time.Minute))

	c.PausePhase = phase(PhaseAfterPause)
	c.PauseStartedAt = nil
	c.TotalPauseDuration = 10 * time.Minute

	resumedAt := pausedAt.Add(10 * time.Minute)
	assert.Equal(t, 30*time.Minute, c.Remaining(resumedAt))
	assert.Equal(t, 11, Midpoint(20)+1, "resume lands on question 11 of 20")
	assert.True(t, c.Expired(resumedAt.Add(30*time.Minute)))
}

func TestMidpoint(t *testing.T) {
	assert.Equal(t, 60, Midpoint(120))
	assert.Equal(t, 2, Midpoint(5))
	assert.Equal(t, 0, Midpoint(1))
	assert.Equal(t, 0, Midpoint(0))
}
