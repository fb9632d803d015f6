package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionStatusTerminal(t *testing.T) {
	assert.False(t, SessionStatusNotStarted.Terminal())
	assert.False(t, SessionStatusInProgress.Terminal())
	assert.True(t, SessionStatusCompleted.Terminal())
	assert.True(t, SessionStatusAutoSubmitted.Terminal())
}

func TestSessionCanPause(t *testing.T) {
	s := &ExamSession{}
	assert.False(t, s.CanPause(), "pause not configured")

	s.PausePhase = phase(PhaseBeforePause)
	assert.True(t, s.CanPause())

	s.PausePhase = phase(PhaseDuringPause)
	assert.False(t, s.CanPause())
	assert.True(t, s.Paused())

	// The pause is single-use: AFTER_PAUSE never becomes pausable again.
	s.PausePhase = phase(PhaseAfterPause)
	assert.False(t, s.CanPause())
	assert.False(t, s.Paused())
}

func TestSessionCountdownCarriesPauseState(t *testing.T) {
	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	pausedAt := started.Add(time.Hour)
	s := &ExamSession{
		StartedAt:            started,
		PausePhase:           phase(PhaseAfterPause),
		PauseStartedAt:       &pausedAt,
		TotalPauseDurationMs: 45 * 60 * 1000,
	}

	c := s.Countdown(3 * time.Hour)
	assert.Equal(t, started, c.StartedAt)
	assert.Equal(t, 3*time.Hour, c.CompletionTime)
	assert.Equal(t, PhaseAfterPause, *c.PausePhase)
	assert.Equal(t, 45*time.Minute, c.TotalPauseDuration)
}
