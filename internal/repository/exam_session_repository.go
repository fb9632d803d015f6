package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medcert/eacmc-backend/internal/model"
)

// SessionResult combines candidate data with their exam session details.
type SessionResult struct {
	CandidateID     int                 `json:"candidate_id"`
	Name            string              `json:"name"`
	CandidateNumber string              `json:"candidate_number"`
	FinalScore      *float64            `json:"score"`
	Status          model.SessionStatus `json:"status"`
	PausePhase      *model.PausePhase   `json:"pause_phase,omitempty"`
	StartedAt       *time.Time          `json:"started_at"`
	FinishedAt      *time.Time          `json:"finished_at"`
}

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

const sessionColumns = `id, exam_id, candidate_id, started_at, finished_at, status,
		 pause_phase, pause_started_at, total_pause_duration_ms, final_score`

// GetByExamAndCandidate retrieves a session for a specific exam-candidate combination.
func (r *ExamSessionRepository) GetByExamAndCandidate(ctx context.Context, examID uuid.UUID, candidateID int) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE exam_id = $1 AND candidate_id = $2`, examID, candidateID,
	).Scan(&s.ID, &s.ExamID, &s.CandidateID, &s.StartedAt, &s.FinishedAt, &s.Status,
		&s.PausePhase, &s.PauseStartedAt, &s.TotalPauseDurationMs, &s.FinalScore)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new exam session. started_at is set once by the DB.
// The initial pause phase is BEFORE_PAUSE for pause-enabled exams and NULL
// otherwise (the phase machine is never entered without the pause feature).
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, candidate_id, status, pause_phase)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (exam_id, candidate_id) DO NOTHING
		 RETURNING id, started_at`,
		s.ExamID, s.CandidateID, model.SessionStatusInProgress, s.PausePhase,
	).Scan(&s.ID, &s.StartedAt)
}

// BeginPause transitions BEFORE_PAUSE → DURING_PAUSE and records the pause
// start. The WHERE clause enforces the single-pause rule at the database:
// a session whose phase already advanced matches no rows (pgx.ErrNoRows).
func (r *ExamSessionRepository) BeginPause(ctx context.Context, examID uuid.UUID, candidateID int) (time.Time, error) {
	var pausedAt time.Time
	err := r.pool.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET pause_phase = $1, pause_started_at = NOW()
		 WHERE exam_id = $2 AND candidate_id = $3
		   AND status = $4 AND pause_phase = $5
		 RETURNING pause_started_at`,
		model.PhaseDuringPause, examID, candidateID,
		model.SessionStatusInProgress, model.PhaseBeforePause,
	).Scan(&pausedAt)
	return pausedAt, err
}

// Resume transitions DURING_PAUSE → AFTER_PAUSE and persists the actual
// pause duration (which may be shorter than configured when cut short).
func (r *ExamSessionRepository) Resume(ctx context.Context, examID uuid.UUID, candidateID int, totalPauseMs int64) error {
	var id uuid.UUID
	return r.pool.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET pause_phase = $1, total_pause_duration_ms = $2
		 WHERE exam_id = $3 AND candidate_id = $4
		   AND status = $5 AND pause_phase = $6
		 RETURNING id`,
		model.PhaseAfterPause, totalPauseMs, examID, candidateID,
		model.SessionStatusInProgress, model.PhaseDuringPause,
	).Scan(&id)
}

// CompleteIfInProgress closes a session with the given terminal status and
// score, but only if it is still IN_PROGRESS. Returns false when the
// session was already closed — the at-most-once guard for submission.
func (r *ExamSessionRepository) CompleteIfInProgress(ctx context.Context, examID uuid.UUID, candidateID int, score float64, status model.SessionStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, final_score = $2, finished_at = NOW()
		 WHERE exam_id = $3 AND candidate_id = $4 AND status = $5`,
		status, score, examID, candidateID, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListSavedAnswers returns the autosaved training-mode answers for a
// candidate's session, keyed by question ID. The map is empty, never nil,
// when no rows exist.
func (r *ExamSessionRepository) ListSavedAnswers(ctx context.Context, examID uuid.UUID, candidateID int) (map[string]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, answer FROM session_answers
		 WHERE exam_id = $1 AND candidate_id = $2`,
		examID, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := map[string]string{}
	for rows.Next() {
		var questionID uuid.UUID
		var answer string
		if err := rows.Scan(&questionID, &answer); err != nil {
			return nil, err
		}
		answers[questionID.String()] = answer
	}
	return answers, rows.Err()
}

// ListByCandidate retrieves all sessions for a given candidate.
func (r *ExamSessionRepository) ListByCandidate(ctx context.Context, candidateID int) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE candidate_id = $1
		 ORDER BY started_at DESC`, candidateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		var s model.ExamSession
		if err := rows.Scan(&s.ID, &s.ExamID, &s.CandidateID, &s.StartedAt, &s.FinishedAt, &s.Status,
			&s.PausePhase, &s.PauseStartedAt, &s.TotalPauseDurationMs, &s.FinalScore); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListActive returns every IN_PROGRESS session, used to re-arm session
// watchers after a server restart.
func (r *ExamSessionRepository) ListActive(ctx context.Context) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE status = $1`, model.SessionStatusInProgress,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		var s model.ExamSession
		if err := rows.Scan(&s.ID, &s.ExamID, &s.CandidateID, &s.StartedAt, &s.FinishedAt, &s.Status,
			&s.PausePhase, &s.PauseStartedAt, &s.TotalPauseDurationMs, &s.FinalScore); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListByExam retrieves all candidate results for a specific exam, paginated.
func (r *ExamSessionRepository) ListByExam(ctx context.Context, examID uuid.UUID, page, perPage int) ([]SessionResult, int64, error) {
	offset := (page - 1) * perPage

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions WHERE exam_id = $1`, examID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.name, c.candidate_number,
		        es.final_score, es.status, es.pause_phase, es.started_at, es.finished_at
		 FROM exam_sessions es
		 JOIN candidates c ON es.candidate_id = c.id
		 WHERE es.exam_id = $1
		 ORDER BY c.name ASC
		 LIMIT $2 OFFSET $3`, examID, perPage, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []SessionResult
	for rows.Next() {
		var sr SessionResult
		if err := rows.Scan(
			&sr.CandidateID, &sr.Name, &sr.CandidateNumber,
			&sr.FinalScore, &sr.Status, &sr.PausePhase, &sr.StartedAt, &sr.FinishedAt,
		); err != nil {
			return nil, 0, err
		}
		results = append(results, sr)
	}

	return results, total, rows.Err()
}
