package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft      ExamStatus = "DRAFT"
	ExamStatusPublished  ExamStatus = "PUBLISHED"
	ExamStatusInProgress ExamStatus = "IN_PROGRESS"
	ExamStatusCompleted  ExamStatus = "COMPLETED"
	ExamStatusArchived   ExamStatus = "ARCHIVED"
)

// ExamMode selects the persistence behavior of a sitting.
// EXAM is the hardened certification mode: answers live only in the
// candidate-scoped cache until submission, nothing is autosaved server-side.
// TRAINING additionally autosaves answers to PostgreSQL in debounced batches.
type ExamMode string

const (
	ExamModeExam     ExamMode = "EXAM"
	ExamModeTraining ExamMode = "TRAINING"
)

// Exam represents an exam entity.
type Exam struct {
	ID                    uuid.UUID  `json:"id"`
	Title                 string     `json:"title"`
	AuthorID              int        `json:"author_id"`
	Mode                  ExamMode   `json:"mode"`
	ScheduledStart        *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd          *time.Time `json:"scheduled_end,omitempty"`
	CompletionTimeSeconds int        `json:"completion_time_seconds"`
	EnablePause           bool       `json:"enable_pause"`
	PauseDurationMinutes  int        `json:"pause_duration_minutes"`
	QuestionCount         int        `json:"question_count"`
	RandomizeQuestions    bool       `json:"randomize_questions"`
	Status                ExamStatus `json:"status"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// CompletionTime returns the exam duration as a time.Duration.
func (e *Exam) CompletionTime() time.Duration {
	return time.Duration(e.CompletionTimeSeconds) * time.Second
}

// WindowOpen reports whether the exam can be started at the given instant.
func (e *Exam) WindowOpen(now time.Time) bool {
	if e.ScheduledStart != nil && now.Before(*e.ScheduledStart) {
		return false
	}
	if e.ScheduledEnd != nil && now.After(*e.ScheduledEnd) {
		return false
	}
	return true
}

// PauseConfig is the pause configuration exposed to candidates, derived
// from the exam and read-only on the client side.
type PauseConfig struct {
	EnablePause          bool `json:"enable_pause"`
	PauseDurationMinutes int  `json:"pause_duration_minutes"`
}

// PauseConfigOf extracts the candidate-visible pause configuration.
func PauseConfigOf(e *Exam) PauseConfig {
	return PauseConfig{
		EnablePause:          e.EnablePause,
		PauseDurationMinutes: e.PauseDurationMinutes,
	}
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title                 string     `json:"title" binding:"required,min=3,max=255"`
	Mode                  ExamMode   `json:"mode" binding:"required,oneof=EXAM TRAINING"`
	ScheduledStart        *time.Time `json:"scheduled_start" binding:"omitempty"`
	ScheduledEnd          *time.Time `json:"scheduled_end" binding:"omitempty,gtfield=ScheduledStart"`
	CompletionTimeSeconds int        `json:"completion_time_seconds" binding:"required,min=60,max=28800"`
	EnablePause           bool       `json:"enable_pause"`
	PauseDurationMinutes  int        `json:"pause_duration_minutes" binding:"omitempty,min=1,max=60"`
	RandomizeQuestions    bool       `json:"randomize_questions"`
}

// UpdateExamRequest is the payload for updating an existing exam.
type UpdateExamRequest struct {
	Title                 string     `json:"title" binding:"omitempty,min=3,max=255"`
	Mode                  ExamMode   `json:"mode" binding:"omitempty,oneof=EXAM TRAINING"`
	ScheduledStart        *time.Time `json:"scheduled_start" binding:"omitempty"`
	ScheduledEnd          *time.Time `json:"scheduled_end" binding:"omitempty,gtfield=ScheduledStart"`
	CompletionTimeSeconds *int       `json:"completion_time_seconds" binding:"omitempty,min=60,max=28800"`
	EnablePause           *bool      `json:"enable_pause" binding:"omitempty"`
	PauseDurationMinutes  *int       `json:"pause_duration_minutes" binding:"omitempty,min=1,max=60"`
	RandomizeQuestions    *bool      `json:"randomize_questions" binding:"omitempty"`
}

// ExamPayload is the Redis-cached payload sent to candidates (no correct answers).
type ExamPayload struct {
	ExamID                uuid.UUID              `json:"exam_id"`
	Title                 string                 `json:"title"`
	Mode                  ExamMode               `json:"mode"`
	CompletionTimeSeconds int                    `json:"completion_time_seconds"`
	Pause                 PauseConfig            `json:"pause"`
	Questions             []QuestionForCandidate `json:"questions"`
}

// QuestionForCandidate is a question without the correct answer.
type QuestionForCandidate struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	Options      json.RawMessage `json:"options"`
	OrderNum     int             `json:"order_num"`
}
