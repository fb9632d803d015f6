package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states. Transitions are monotonic:
// NOT_STARTED → IN_PROGRESS → {COMPLETED | AUTO_SUBMITTED}, never backward.
// NOT_STARTED is only ever observed as the absence of a session row; it is
// kept in the enum so API clients get a concrete value before starting.
type SessionStatus string

const (
	SessionStatusNotStarted    SessionStatus = "NOT_STARTED"
	SessionStatusInProgress    SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted     SessionStatus = "COMPLETED"
	SessionStatusAutoSubmitted SessionStatus = "AUTO_SUBMITTED"
)

// Terminal reports whether the status can no longer change.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusAutoSubmitted
}

// PausePhase tracks a session's progress through the single mid-exam pause.
// The phase advances linearly BEFORE_PAUSE → DURING_PAUSE → AFTER_PAUSE and
// never cycles back; a nil phase means the exam has no pause configured.
type PausePhase string

const (
	PhaseBeforePause PausePhase = "BEFORE_PAUSE"
	PhaseDuringPause PausePhase = "DURING_PAUSE"
	PhaseAfterPause  PausePhase = "AFTER_PAUSE"
)

// ExamSession represents a candidate's exam attempt.
type ExamSession struct {
	ID                   uuid.UUID     `json:"id"`
	ExamID               uuid.UUID     `json:"exam_id"`
	CandidateID          int           `json:"candidate_id"`
	StartedAt            time.Time     `json:"started_at"`
	FinishedAt           *time.Time    `json:"finished_at,omitempty"`
	Status               SessionStatus `json:"status"`
	PausePhase           *PausePhase   `json:"pause_phase,omitempty"`
	PauseStartedAt       *time.Time    `json:"pause_started_at,omitempty"`
	TotalPauseDurationMs int64         `json:"total_pause_duration_ms"`
	FinalScore           *float64      `json:"final_score,omitempty"`
}

// CanPause reports whether the single pause is still available.
// Once DURING_PAUSE or AFTER_PAUSE has been reached, no second pause
// can ever be triggered for this session.
func (s *ExamSession) CanPause() bool {
	return s.PausePhase != nil && *s.PausePhase == PhaseBeforePause
}

// Paused reports whether the session is currently inside its pause.
func (s *ExamSession) Paused() bool {
	return s.PausePhase != nil && *s.PausePhase == PhaseDuringPause
}

// Countdown builds the timing view of this session for an exam duration.
func (s *ExamSession) Countdown(completionTime time.Duration) Countdown {
	return Countdown{
		StartedAt:          s.StartedAt,
		CompletionTime:     completionTime,
		PausePhase:         s.PausePhase,
		PauseStartedAt:     s.PauseStartedAt,
		TotalPauseDuration: time.Duration(s.TotalPauseDurationMs) * time.Millisecond,
	}
}

// SubmittedAnswer is a single entry of the submission payload.
// SelectedAnswer is nil for questions the candidate left unanswered.
type SubmittedAnswer struct {
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedAnswer *string   `json:"selected_answer"`
	IsFlagged      bool      `json:"is_flagged,omitempty"`
}

// SubmitExamRequest is the payload for finishing an exam.
type SubmitExamRequest struct {
	Answers      []SubmittedAnswer `json:"answers" binding:"dive"`
	IsAutoSubmit bool              `json:"is_auto_submit"`
}

// StartPauseRequest is the payload for triggering the mid-exam pause.
type StartPauseRequest struct {
	ManualTrigger bool `json:"manual_trigger"`
}

// StartPauseResponse is returned when the pause begins.
type StartPauseResponse struct {
	PauseStartedAt time.Time  `json:"pause_started_at"`
	PausePhase     PausePhase `json:"pause_phase"`
}

// ResumeResponse is returned when the candidate resumes from the pause.
// ResumeIndex is the forced midpoint position for the second half.
type ResumeResponse struct {
	TotalPauseDurationMs int64      `json:"total_pause_duration_ms"`
	IsPauseCutShort      bool       `json:"is_pause_cut_short"`
	PausePhase           PausePhase `json:"pause_phase"`
	ResumeIndex          int        `json:"resume_index"`
}

// SubmitExamResponse reports the grading outcome.
type SubmitExamResponse struct {
	Score        float64       `json:"score"`
	Correct      int           `json:"correct"`
	Total        int           `json:"total"`
	Status       SessionStatus `json:"status"`
	IsAutoSubmit bool          `json:"is_auto_submit"`
}

// ExamSessionState is the reload-recovery snapshot returned to the client.
// Answers are the cached in-progress selections keyed by question ID.
type ExamSessionState struct {
	ExamID               uuid.UUID         `json:"exam_id"`
	CandidateID          int               `json:"candidate_id"`
	Status               SessionStatus     `json:"status"`
	StartedAt            *time.Time        `json:"started_at,omitempty"`
	PausePhase           *PausePhase       `json:"pause_phase,omitempty"`
	PauseStartedAt       *time.Time        `json:"pause_started_at,omitempty"`
	TotalPauseDurationMs int64             `json:"total_pause_duration_ms"`
	RemainingSeconds     float64           `json:"remaining_seconds"`
	Answers              map[string]string `json:"answers"`
	FlaggedQuestions     []string          `json:"flagged_questions,omitempty"`
}
