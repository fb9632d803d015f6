package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExamWindowOpen(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)

	e := &Exam{}
	assert.True(t, e.WindowOpen(now), "no schedule means always open")

	e.ScheduledStart = &start
	e.ScheduledEnd = &end
	assert.True(t, e.WindowOpen(now))
	assert.False(t, e.WindowOpen(start.Add(-time.Minute)))
	assert.False(t, e.WindowOpen(end.Add(time.Minute)))

	e.ScheduledEnd = nil
	assert.True(t, e.WindowOpen(now.Add(24*time.Hour)), "open-ended window")
}

func TestExamCompletionTime(t *testing.T) {
	e := &Exam{CompletionTimeSeconds: 10800}
	assert.Equal(t, 3*time.Hour, e.CompletionTime())
}

func TestPauseConfigOf(t *testing.T) {
	cfg := PauseConfigOf(&Exam{EnablePause: true, PauseDurationMinutes: 45})
	assert.True(t, cfg.EnablePause)
	assert.Equal(t, 45, cfg.PauseDurationMinutes)
}
