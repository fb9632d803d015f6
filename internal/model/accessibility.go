package model

// QuestionAccess is the result of an accessibility check. Reason is a
// candidate-facing explanation, set only when access is denied.
type QuestionAccess struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// AccessibleQuestion decides whether the question at index is navigable
// given the current pause phase. It is a pure function: accessibility is
// never stored, only derived.
//
//   - nil phase (pause not configured): every question is accessible.
//   - BEFORE_PAUSE: only the first half (index < midpoint) is open.
//   - DURING_PAUSE: everything is locked.
//   - AFTER_PAUSE: every question is accessible.
func AccessibleQuestion(index, totalQuestions int, phase *PausePhase) QuestionAccess {
	if phase == nil {
		return QuestionAccess{Allowed: true}
	}

	switch *phase {
	case PhaseBeforePause:
		if index < Midpoint(totalQuestions) {
			return QuestionAccess{Allowed: true}
		}
		return QuestionAccess{
			Allowed: false,
			Reason:  "This question unlocks after the pause.",
		}
	case PhaseDuringPause:
		return QuestionAccess{
			Allowed: false,
			Reason:  "Questions are locked while the exam is paused.",
		}
	default: // AFTER_PAUSE
		return QuestionAccess{Allowed: true}
	}
}
