package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessibleQuestionNoPause(t *testing.T) {
	for _, idx := range []int{0, 59, 119} {
		access := AccessibleQuestion(idx, 120, nil)
		assert.True(t, access.Allowed, "index %d", idx)
		assert.Empty(t, access.Reason)
	}
}

func TestAccessibleQuestionBeforePause(t *testing.T) {
	before := phase(PhaseBeforePause)

	// First half open, second half locked. With 120 questions the
	// midpoint is index 60.
	assert.True(t, AccessibleQuestion(0, 120, before).Allowed)
	assert.True(t, AccessibleQuestion(59, 120, before).Allowed)
	assert.False(t, AccessibleQuestion(60, 120, before).Allowed)
	assert.False(t, AccessibleQuestion(119, 120, before).Allowed)

	denied := AccessibleQuestion(60, 120, before)
	assert.NotEmpty(t, denied.Reason)
}

func TestAccessibleQuestionTwentyQuestionPaper(t *testing.T) {
	before := phase(PhaseBeforePause)
	during := phase(PhaseDuringPause)
	after := phase(PhaseAfterPause)

	assert.True(t, AccessibleQuestion(9, 20, before).Allowed)
	assert.False(t, AccessibleQuestion(10, 20, before).Allowed)
	assert.False(t, AccessibleQuestion(10, 20, during).Allowed)
	assert.True(t, AccessibleQuestion(19, 20, after).Allowed)
	assert.True(t, AccessibleQuestion(19, 20, nil).Allowed)
}

func TestAccessibleQuestionBeforePauseOddCount(t *testing.T) {
	before := phase(PhaseBeforePause)

	// Odd counts round down: 5 questions give a first half of 2.
	assert.True(t, AccessibleQuestion(1, 5, before).Allowed)
	assert.False(t, AccessibleQuestion(2, 5, before).Allowed)
}

func TestAccessibleQuestionDuringPause(t *testing.T) {
	during := phase(PhaseDuringPause)

	for _, idx := range []int{0, 59, 60, 119} {
		access := AccessibleQuestion(idx, 120, during)
		assert.False(t, access.Allowed, "index %d", idx)
		assert.NotEmpty(t, access.Reason)
	}
}

func TestAccessibleQuestionAfterPause(t *testing.T) {
	after := phase(PhaseAfterPause)

	for _, idx := range []int{0, 59, 60, 119} {
		assert.True(t, AccessibleQuestion(idx, 120, after).Allowed, "index %d", idx)
	}
}
