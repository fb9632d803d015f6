package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/medcert/eacmc-backend/internal/config"
	"github.com/medcert/eacmc-backend/internal/model"
	"github.com/medcert/eacmc-backend/internal/repository"
	"github.com/medcert/eacmc-backend/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Session domain errors.
var (
	ErrExamNotAvailable     = errors.New("exam is not available")
	ErrExamWindowClosed     = errors.New("exam window has closed")
	ErrSessionAlreadyClosed = errors.New("exam session is already closed")
	ErrPauseNotEnabled      = errors.New("pause is not enabled for this exam")
	ErrPauseAlreadyUsed     = errors.New("the single pause has already been used")
	ErrPauseNotActive       = errors.New("the exam is not currently paused")
	ErrFirstHalfIncomplete  = errors.New("first half must be fully answered before an early pause")
	ErrQuestionLocked       = errors.New("question is not accessible in the current phase")
)

// StartExamResult is the response of StartExam: the session plus any
// answers recovered from the cache (reload recovery).
type StartExamResult struct {
	Session           *model.ExamSession `json:"session"`
	InProgressAnswers map[string]string  `json:"in_progress_answers"`
}

// ExamSessionService owns the exam session lifecycle: the server time
// anchor, the pause state machine, the accessibility gate, and the
// submission orchestrator. Answers in flight live in the injected
// AnswerCache and are only graded and persisted at submission.
type ExamSessionService struct {
	sessionRepo *repository.ExamSessionRepository
	examRepo    *repository.ExamRepository
	examService *ExamService
	cache       store.AnswerCache
	rdb         *redis.Client
	watcher     *SessionWatcher
	log         zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService with its own
// session watcher.
func NewExamSessionService(
	sessionRepo *repository.ExamSessionRepository,
	examRepo *repository.ExamRepository,
	examService *ExamService,
	cache store.AnswerCache,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamSessionService {
	s := &ExamSessionService{
		sessionRepo: sessionRepo,
		examRepo:    examRepo,
		examService: examService,
		cache:       cache,
		rdb:         rdb,
		log:         log.With().Str("component", "exam_session_service").Logger(),
	}
	s.watcher = NewSessionWatcher(s, log)
	return s
}

// Watcher exposes the session watcher for lifecycle control in main.
func (s *ExamSessionService) Watcher() *SessionWatcher {
	return s.watcher
}

// ─── Start ──────────────────────────────────────────────────────────

// StartExam creates (or idempotently returns) the candidate's session.
// started_at is recorded exactly once by the database; subsequent calls
// re-anchor Redis and return cached in-progress answers so a reload can
// reconstruct its state.
func (s *ExamSessionService) StartExam(ctx context.Context, examID uuid.UUID, candidateID int) (*StartExamResult, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	if exam.Status != model.ExamStatusPublished && exam.Status != model.ExamStatusInProgress {
		return nil, ErrExamNotAvailable
	}
	if !exam.WindowOpen(time.Now()) {
		return nil, ErrExamWindowClosed
	}

	existing, err := s.sessionRepo.GetByExamAndCandidate(ctx, examID, candidateID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}

	if existing != nil {
		if existing.Status.Terminal() {
			return nil, ErrSessionAlreadyClosed
		}
		// Reload path: re-anchor Redis and recover cached answers.
		s.cacheStartAnchor(ctx, existing)
		s.watcher.Watch(exam, existing)
		answers, err := s.cache.Load(ctx, examID.String(), candidateID)
		if err != nil {
			s.log.Warn().Err(err).Msg("Answer recovery failed, starting empty")
			answers = map[string]string{}
		}
		if len(answers) == 0 {
			answers = s.recoverAutosavedAnswers(ctx, exam, candidateID)
		}
		return &StartExamResult{Session: existing, InProgressAnswers: answers}, nil
	}

	session := &model.ExamSession{
		ExamID:      examID,
		CandidateID: candidateID,
		Status:      model.SessionStatusInProgress,
	}
	if exam.EnablePause {
		phase := model.PhaseBeforePause
		session.PausePhase = &phase
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent start detected — return the winner's session.
			existing, fetchErr := s.sessionRepo.GetByExamAndCandidate(ctx, examID, candidateID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
			}
			s.cacheStartAnchor(ctx, existing)
			s.watcher.Watch(exam, existing)
			return &StartExamResult{Session: existing, InProgressAnswers: map[string]string{}}, nil
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.cacheStartAnchor(ctx, session)
	s.rdb.Set(ctx, config.CacheKey.CandidateActiveExamKey(candidateID), examID.String(), 0)

	if exam.RandomizeQuestions {
		if err := s.ensureQuestionOrder(ctx, exam, candidateID); err != nil {
			s.log.Warn().Err(err).Msg("Question order shuffle failed, using exam order")
		}
	}

	s.watcher.Watch(exam, session)
	s.publishMonitorEvent(ctx, examID.String(), map[string]interface{}{
		"type":         "session_started",
		"candidate_id": candidateID,
		"started_at":   session.StartedAt.Unix(),
	})

	return &StartExamResult{Session: session, InProgressAnswers: map[string]string{}}, nil
}

// cacheStartAnchor stores the authoritative start timestamp in Redis so
// state reads avoid PostgreSQL. Unix seconds, same value as the DB row.
func (s *ExamSessionService) cacheStartAnchor(ctx context.Context, sess *model.ExamSession) {
	key := config.CacheKey.SessionStartKey(sess.ExamID.String(), sess.CandidateID)
	if err := s.rdb.Set(ctx, key, sess.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache start anchor")
	}
}

// ensureQuestionOrder builds a per-candidate shuffled question order,
// caches it in Redis, and queues it for persistence.
func (s *ExamSessionService) ensureQuestionOrder(ctx context.Context, exam *model.Exam, candidateID int) error {
	orderKey := config.CacheKey.CandidateQuestionOrderKey(exam.ID.String(), candidateID)

	n, err := s.rdb.LLen(ctx, orderKey).Result()
	if err == nil && n > 0 {
		return nil // already shuffled on a previous start
	}

	payload, err := s.examService.GetExamPayload(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("get payload: %w", err)
	}

	ids := make([]interface{}, len(payload.Questions))
	for i, q := range payload.Questions {
		ids[i] = q.ID.String()
	}
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	if err := s.rdb.RPush(ctx, orderKey, ids...).Err(); err != nil {
		return fmt.Errorf("cache order: %w", err)
	}

	orderPayload, _ := json.Marshal(map[string]interface{}{
		"candidate_id": candidateID,
		"exam_id":      exam.ID.String(),
		"order":        ids,
	})
	s.rdb.RPush(ctx, config.WorkerKey.PersistQuestionOrderQueue, orderPayload)
	return nil
}

// ─── State / recovery ───────────────────────────────────────────────

// GetExamState retrieves the current state of the exam for the candidate.
// This endpoint covers the page reload: the frontend gets the recovered
// answers, the pause phase, and the remaining time in one shot. When the
// countdown already expired while the client was away, the session is
// closed right here from whatever the cache holds (reload-timeout path).
func (s *ExamSessionService) GetExamState(ctx context.Context, examID uuid.UUID, candidateID int) (*model.ExamSessionState, error) {
	sess, err := s.sessionRepo.GetByExamAndCandidate(ctx, examID, candidateID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	state := &model.ExamSessionState{
		ExamID:               examID,
		CandidateID:          candidateID,
		Status:               sess.Status,
		StartedAt:            &sess.StartedAt,
		PausePhase:           sess.PausePhase,
		PauseStartedAt:       sess.PauseStartedAt,
		TotalPauseDurationMs: sess.TotalPauseDurationMs,
		Answers:              map[string]string{},
	}

	if sess.Status.Terminal() {
		return state, nil
	}

	completionTime, err := s.completionTime(ctx, examID)
	if err != nil {
		return nil, err
	}

	countdown := sess.Countdown(completionTime)
	countdown.StartedAt = s.startAnchor(ctx, sess)
	remaining := countdown.Remaining(time.Now())

	if remaining <= 0 {
		// Reload-timeout: the countdown ran out while no client was live.
		// Submit whatever the cache holds — an empty cache still closes
		// the session rather than leaving it dangling.
		resp, err := s.AutoSubmit(context.WithoutCancel(ctx), examID, candidateID)
		if err != nil {
			// The session is still IN_PROGRESS; report the live status so
			// the client retries instead of showing a closed exam the
			// database disagrees with. The watcher retries the submit too.
			s.log.Error().Err(err).Msg("Reload-timeout submit failed")
			state.RemainingSeconds = 0
			return state, nil
		}
		state.Status = resp.Status
		state.RemainingSeconds = 0
		return state, nil
	}

	answers, err := s.cache.Load(ctx, examID.String(), candidateID)
	if err != nil {
		return nil, fmt.Errorf("load cached answers: %w", err)
	}
	if len(answers) == 0 {
		if exam, eerr := s.examRepo.GetByID(ctx, examID); eerr == nil {
			answers = s.recoverAutosavedAnswers(ctx, exam, candidateID)
		}
	}
	flags, err := s.cache.Flags(ctx, examID.String(), candidateID)
	if err != nil {
		s.log.Warn().Err(err).Msg("Load flags failed")
	}

	state.Answers = answers
	state.FlaggedQuestions = flags
	state.RemainingSeconds = remaining.Seconds()
	return state, nil
}

// recoverAutosavedAnswers rebuilds the answer cache from the training-mode
// autosave rows. Only consulted when the Redis hash comes back empty — a
// cache eviction must not cost the candidate their saved selections. The
// recovered answers are written back so the next reload hits the fast lane
// again. EXAM mode has no server-side rows to recover from.
func (s *ExamSessionService) recoverAutosavedAnswers(ctx context.Context, exam *model.Exam, candidateID int) map[string]string {
	if exam.Mode != model.ExamModeTraining {
		return map[string]string{}
	}

	saved, err := s.sessionRepo.ListSavedAnswers(ctx, exam.ID, candidateID)
	if err != nil {
		s.log.Warn().Err(err).Msg("Autosave recovery failed")
		return map[string]string{}
	}

	for qID, answer := range saved {
		if err := s.cache.SaveAnswer(ctx, exam.ID.String(), candidateID, qID, answer); err != nil {
			s.log.Warn().Err(err).Msg("Cache re-warm failed")
			break
		}
	}
	if len(saved) > 0 {
		s.log.Info().
			Str("exam_id", exam.ID.String()).
			Int("candidate_id", candidateID).
			Int("count", len(saved)).
			Msg("Answers recovered from autosave rows")
	}
	return saved
}

// startAnchor resolves the authoritative start time, preferring the Redis
// anchor and self-healing it from PostgreSQL on a miss.
func (s *ExamSessionService) startAnchor(ctx context.Context, sess *model.ExamSession) time.Time {
	key := config.CacheKey.SessionStartKey(sess.ExamID.String(), sess.CandidateID)

	val, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		if unix, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			return time.Unix(unix, 0)
		}
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Redis anchor read failed, using DB value")
	}

	// Cache miss (evicted or legacy session) — the DB row is the source
	// of truth. Put it back so the next read is fast.
	_ = s.rdb.Set(ctx, key, sess.StartedAt.Unix(), 0).Err()
	return sess.StartedAt
}

func (s *ExamSessionService) completionTime(ctx context.Context, examID uuid.UUID) (time.Duration, error) {
	durationStr, err := s.rdb.Get(ctx, config.CacheKey.ExamDurationKey(examID.String())).Result()
	if err == nil {
		if seconds, perr := strconv.Atoi(durationStr); perr == nil {
			return time.Duration(seconds) * time.Second, nil
		}
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return 0, fmt.Errorf("get exam duration: %w", err)
	}
	_ = s.rdb.Set(ctx, config.CacheKey.ExamDurationKey(examID.String()), strconv.Itoa(exam.CompletionTimeSeconds), 0).Err()
	return exam.CompletionTime(), nil
}

// VerifyActiveSession checks that a candidate has an IN_PROGRESS session
// for the given exam. Returns an error if no session exists or it closed.
func (s *ExamSessionService) VerifyActiveSession(ctx context.Context, examID uuid.UUID, candidateID int) error {
	sess, err := s.sessionRepo.GetByExamAndCandidate(ctx, examID, candidateID)
	if err != nil {
		return fmt.Errorf("no active session: %w", err)
	}
	if sess.Status.Terminal() {
		return ErrSessionAlreadyClosed
	}
	return nil
}

// ─── Accessibility gate ─────────────────────────────────────────────

// CheckQuestionAccess applies the accessibility gate to a question index
// for the candidate's current phase. Pure decision over live state; no
// mutation.
func (s *ExamSessionService) CheckQuestionAccess(ctx context.Context, examID uuid.UUID, candidateID, index int) (*model.QuestionAccess, error) {
	sess, err := s.sessionRepo.GetByExamAndCandidate(ctx, examID, candidateID)
	if err != nil {
		return nil, fmt.Errorf("no session: %w", err)
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	access := model.AccessibleQuestion(index, exam.QuestionCount, sess.PausePhase)
	return &access, nil
}

// questionIndexOf resolves a question's navigation index for a candidate,
// honoring the per-candidate shuffled order when one exists.
func (s *ExamSessionService) questionIndexOf(ctx context.Context, examID uuid.UUID, candidateID int, questionID string) (index, total int, err error) {
	orderKey := config.CacheKey.CandidateQuestionOrderKey(examID.String(), candidateID)
	order, err := s.rdb.LRange(ctx, orderKey, 0, -1).Result()
	if err == nil && len(order) > 0 {
		for i, id := range order {
			if id == questionID {
				return i, len(order), nil
			}
		}
		return 0, len(order), fmt.Errorf("question %s not in candidate order", questionID)
	}

	payload, err := s.examService.GetExamPayload(ctx, examID)
	if err != nil {
		return 0, 0, fmt.Errorf("get payload: %w", err)
	}
	for i, q := range payload.Questions {
		if q.ID.String() == questionID {
			return i, len(payload.Questions), nil
		}
	}
	return 0, len(payload.Questions), fmt.Errorf("unknown question %s", questionID)
}

// ─── Answers ────────────────────────────────────────────────────────

// SaveAnswer records an answer selection. Every selection is written
// through to the answer cache; TRAINING exams additionally queue the
// answer for debounced PostgreSQL persistence. The accessibility gate is
// enforced here too — a locked question cannot be answered through the API.
func (s *ExamSessionService) SaveAnswer(ctx context.Context, examID uuid.UUID, candidateID int, questionID, answer string) error {
	sess, err := s.sessionRepo.GetByExamAndCandidate(ctx, examID, candidateID)
	if err != nil {
		return fmt.Errorf("no session: %w", err)
	}
	if sess.Status.Terminal() {
		return ErrSessionAlreadyClosed
	}

	if sess.PausePhase != nil {
		index, total, err := s.questionIndexOf(ctx, examID, candidateID, questionID)
		if err != nil {
			return err
		}
		if access := model.AccessibleQuestion(index, total, sess.PausePhase); !access.Allowed {
			return ErrQuestionLocked
		}
	}

	if err := s.cache.SaveAnswer(ctx, examID.String(), candidateID, questionID, answer); err != nil {
		return fmt.Errorf("cache answer: %w", err)
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if exam.Mode == model.ExamModeTraining {
		payload, _ := json.Marshal(map[string]interface{}{
			"candidate_id": candidateID,
			"exam_id":      examID.String(),
			"q_id":         questionID,
			"answer":       answer,
		})
		s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)
	}

	return nil
}

// SetQuestionFlag marks or unmarks a question for review.
func (s *ExamSessionService) SetQuestionFlag(ctx context.Context, examID uuid.UUID, candidateID int, questionID string, flagged bool) error {
	return s.cache.SetFlag(ctx, examID.String(), candidateID, questionID, flagged)
}

// ─── Pause state machine ────────────────────────────────────────────

// StartPause transitions BEFORE_PAUSE → DURING_PAUSE. Manual (early)
// pauses additionally require the whole first half to be answered; the
// automatic midpoint trigger arrives from the session watcher with
// manualTrigger=false. The single-pause rule is enforced by the
// conditional UPDATE — once the phase has advanced no second pause can be
// recorded, whatever the caller.
func (s *ExamSessionService) StartPause(ctx context.Context, examID uuid.UUID, candidateID int, manualTrigger bool) (*model.StartPauseResponse, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if !exam.EnablePause {
		return nil, ErrPauseNotEnabled
	}

	sess, err := s.sessionRepo.GetByExamAndCandidate(ctx, examID, candidateID)
	if err != nil {
		return nil, fmt.Errorf("no session: %w", err)
	}
	if sess.Status.Terminal() {
		return nil, ErrSessionAlreadyClosed
	}
	if !sess.CanPause() {
		return nil, ErrPauseAlreadyUsed
	}

	if manualTrigger {
		if err := s.verifyFirstHalfAnswered(ctx, exam, candidateID); err != nil {
			return nil, err
		}
	}

	pausedAt, err := s.sessionRepo.BeginPause(ctx, examID, candidateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPauseAlreadyUsed
		}
		return nil, fmt.Errorf("begin pause: %w", err)
	}

	phase := model.PhaseDuringPause
	sess.PausePhase = &phase
	sess.PauseStartedAt = &pausedAt
	s.watcher.Refresh(examID, candidateID, sess)

	s.publishMonitorEvent(ctx, examID.String(), map[string]interface{}{
		"type":         "pause_started",
		"candidate_id": candidateID,
		"manual":       manualTrigger,
	})

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("candidate_id", candidateID).
		Bool("manual", manualTrigger).
		Msg("Pause started")

	return &model.StartPauseResponse{PauseStartedAt: pausedAt, PausePhase: phase}, nil
}

// verifyFirstHalfAnswered checks that every question in the pre-pause half
// has a cached answer. Order-aware: with randomization the candidate's own
// order defines the halves.
func (s *ExamSessionService) verifyFirstHalfAnswered(ctx context.Context, exam *model.Exam, candidateID int) error {
	answers, err := s.cache.Load(ctx, exam.ID.String(), candidateID)
	if err != nil {
		return fmt.Errorf("load answers: %w", err)
	}

	firstHalf, err := s.firstHalfQuestionIDs(ctx, exam, candidateID)
	if err != nil {
		return err
	}

	for _, qid := range firstHalf {
		if answers[qid] == "" {
			return ErrFirstHalfIncomplete
		}
	}
	return nil
}

func (s *ExamSessionService) firstHalfQuestionIDs(ctx context.Context, exam *model.Exam, candidateID int) ([]string, error) {
	orderKey := config.CacheKey.CandidateQuestionOrderKey(exam.ID.String(), candidateID)
	order, err := s.rdb.LRange(ctx, orderKey, 0, -1).Result()
	if err == nil && len(order) > 0 {
		return order[:model.Midpoint(len(order))], nil
	}

	payload, err := s.examService.GetExamPayload(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("get payload: %w", err)
	}
	mid := model.Midpoint(len(payload.Questions))
	ids := make([]string, 0, mid)
	for _, q := range payload.Questions[:mid] {
		ids = append(ids, q.ID.String())
	}
	return ids, nil
}

// ResumeFromPause transitions DURING_PAUSE → AFTER_PAUSE. Callable
// manually at any point during the pause (cutting it short) and by the
// watcher once the configured window elapses. The actual paused duration
// is persisted, capped at the configured window, and the candidate's
// position is forced to the midpoint of the question list.
func (s *ExamSessionService) ResumeFromPause(ctx context.Context, examID uuid.UUID, candidateID int) (*model.ResumeResponse, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	sess, err := s.sessionRepo.GetByExamAndCandidate(ctx, examID, candidateID)
	if err != nil {
		return nil, fmt.Errorf("no session: %w", err)
	}
	if !sess.Paused() || sess.PauseStartedAt == nil {
		return nil, ErrPauseNotActive
	}

	configured := time.Duration(exam.PauseDurationMinutes) * time.Minute
	actual := time.Since(*sess.PauseStartedAt)
	cutShort := actual < configured
	if actual > configured {
		actual = configured
	}
	totalPauseMs := actual.Milliseconds()

	if err := s.sessionRepo.Resume(ctx, examID, candidateID, totalPauseMs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPauseNotActive
		}
		return nil, fmt.Errorf("resume: %w", err)
	}

	phase := model.PhaseAfterPause
	sess.PausePhase = &phase
	sess.TotalPauseDurationMs = totalPauseMs
	s.watcher.Refresh(examID, candidateID, sess)

	s.publishMonitorEvent(ctx, examID.String(), map[string]interface{}{
		"type":         "pause_resumed",
		"candidate_id": candidateID,
		"pause_ms":     totalPauseMs,
		"cut_short":    cutShort,
	})

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("candidate_id", candidateID).
		Int64("pause_ms", totalPauseMs).
		Bool("cut_short", cutShort).
		Msg("Pause resumed")

	return &model.ResumeResponse{
		TotalPauseDurationMs: totalPauseMs,
		IsPauseCutShort:      cutShort,
		PausePhase:           phase,
		ResumeIndex:          model.Midpoint(exam.QuestionCount),
	}, nil
}

// ─── Watcher callbacks ──────────────────────────────────────────────

// AutoPause fires the automatic midpoint pause. Watcher callback.
func (s *ExamSessionService) AutoPause(ctx context.Context, examID uuid.UUID, candidateID int) error {
	_, err := s.StartPause(ctx, examID, candidateID, false)
	if errors.Is(err, ErrPauseAlreadyUsed) || errors.Is(err, ErrSessionAlreadyClosed) {
		return nil // phase already advanced — benign race with a manual trigger
	}
	return err
}

// AutoResume ends the pause once the configured window elapses. Watcher callback.
func (s *ExamSessionService) AutoResume(ctx context.Context, examID uuid.UUID, candidateID int) error {
	_, err := s.ResumeFromPause(ctx, examID, candidateID)
	if errors.Is(err, ErrPauseNotActive) {
		return nil // candidate resumed manually first
	}
	return err
}

// ─── Submission orchestrator ────────────────────────────────────────

// Submit handles the manual submission: the candidate's final answers and
// flags arrive in the request body and win over the cache.
func (s *ExamSessionService) Submit(ctx context.Context, examID uuid.UUID, candidateID int, req *model.SubmitExamRequest) (*model.SubmitExamResponse, error) {
	answers := make(map[string]string, len(req.Answers))
	var flagged []string
	for _, a := range req.Answers {
		if a.SelectedAnswer != nil {
			answers[a.QuestionID.String()] = *a.SelectedAnswer
		}
		if a.IsFlagged {
			flagged = append(flagged, a.QuestionID.String())
		}
	}

	status := model.SessionStatusCompleted
	if req.IsAutoSubmit {
		status = model.SessionStatusAutoSubmitted
	}
	return s.finalize(ctx, examID, candidateID, answers, flagged, status)
}

// SubmitFromCache performs a manual submission using the cached answers
// instead of a request body. Used by the WebSocket submit action, where
// the server-side cache already holds every selection.
func (s *ExamSessionService) SubmitFromCache(ctx context.Context, examID uuid.UUID, candidateID int) (*model.SubmitExamResponse, error) {
	answers, err := s.cache.Load(ctx, examID.String(), candidateID)
	if err != nil {
		return nil, fmt.Errorf("load cached answers: %w", err)
	}
	flagged, err := s.cache.Flags(ctx, examID.String(), candidateID)
	if err != nil {
		flagged = nil
	}
	return s.finalize(ctx, examID, candidateID, answers, flagged, model.SessionStatusCompleted)
}

// AutoSubmit closes the session from whatever the answer cache holds.
// Used by the watcher timeout and the reload-timeout recovery path; an
// empty cache still submits, yielding a zero score, to close the session.
func (s *ExamSessionService) AutoSubmit(ctx context.Context, examID uuid.UUID, candidateID int) (*model.SubmitExamResponse, error) {
	answers, err := s.cache.Load(ctx, examID.String(), candidateID)
	if err != nil {
		s.log.Warn().Err(err).Msg("Cache load for auto-submit failed, submitting empty")
		answers = map[string]string{}
	}
	flagged, err := s.cache.Flags(ctx, examID.String(), candidateID)
	if err != nil {
		flagged = nil
	}
	return s.finalize(ctx, examID, candidateID, answers, flagged, model.SessionStatusAutoSubmitted)
}

// finalize grades the answers and closes the session exactly once. The
// conditional UPDATE is the arbiter: when it reports the session already
// closed, the outcome the caller wanted (a closed session) already holds,
// so the race is treated as success-equivalent — local state is cleared
// and the stored result is returned instead of an error.
func (s *ExamSessionService) finalize(ctx context.Context, examID uuid.UUID, candidateID int, answers map[string]string, flagged []string, status model.SessionStatus) (*model.SubmitExamResponse, error) {
	answerKey, err := s.examService.GetAnswerKey(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}

	correct := 0
	total := len(answerKey)
	for qID, correctAns := range answerKey {
		if given, ok := answers[qID]; ok && given == correctAns {
			correct++
		}
	}

	var score float64
	if total > 0 {
		score = (float64(correct) / float64(total)) * 100
	}

	won, err := s.sessionRepo.CompleteIfInProgress(ctx, examID, candidateID, score, status)
	if err != nil {
		// Transient failure: the session stays IN_PROGRESS, the next
		// trigger (re-click or watcher tick) retries.
		return nil, fmt.Errorf("complete session: %w", err)
	}

	if !won {
		sess, ferr := s.sessionRepo.GetByExamAndCandidate(ctx, examID, candidateID)
		if ferr != nil {
			return nil, fmt.Errorf("session closed concurrently, fetch failed: %w", ferr)
		}
		s.cleanupAfterSubmit(ctx, examID, candidateID)
		resp := &model.SubmitExamResponse{Status: sess.Status}
		if sess.FinalScore != nil {
			resp.Score = *sess.FinalScore
		}
		return resp, nil
	}

	flagSet := make(map[string]bool, len(flagged))
	for _, q := range flagged {
		flagSet[q] = true
	}

	rows := make([]map[string]interface{}, 0, total)
	for qID, correctAns := range answerKey {
		var selected *string
		if given, ok := answers[qID]; ok {
			selected = &given
		}
		rows = append(rows, map[string]interface{}{
			"question_id": qID,
			"selected":    selected,
			"is_correct":  selected != nil && *selected == correctAns,
			"is_flagged":  flagSet[qID],
		})
	}
	resultPayload, _ := json.Marshal(map[string]interface{}{
		"candidate_id": candidateID,
		"exam_id":      examID.String(),
		"score":        score,
		"status":       status,
		"answers":      rows,
	})
	s.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, resultPayload)

	s.cleanupAfterSubmit(ctx, examID, candidateID)

	s.publishMonitorEvent(ctx, examID.String(), map[string]interface{}{
		"type":         "submitted",
		"candidate_id": candidateID,
		"score":        score,
		"auto":         status == model.SessionStatusAutoSubmitted,
	})

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("candidate_id", candidateID).
		Float64("score", score).
		Str("status", string(status)).
		Msg("Session submitted")

	return &model.SubmitExamResponse{
		Score:        score,
		Correct:      correct,
		Total:        total,
		Status:       status,
		IsAutoSubmit: status == model.SessionStatusAutoSubmitted,
	}, nil
}

// cleanupAfterSubmit clears per-session client state after any submission
// outcome: the answer cache is deleted unconditionally and the watcher
// stops ticking.
func (s *ExamSessionService) cleanupAfterSubmit(ctx context.Context, examID uuid.UUID, candidateID int) {
	if err := s.cache.Clear(ctx, examID.String(), candidateID); err != nil {
		s.log.Warn().Err(err).Msg("Answer cache clear failed")
	}
	s.rdb.Del(ctx, config.CacheKey.CandidateActiveExamKey(candidateID))
	s.watcher.Stop(examID, candidateID)
}

// ─── Lobby / status ─────────────────────────────────────────────────

// LobbyExam is an exam entry in the candidate lobby, annotated with the
// candidate's own session status.
type LobbyExam struct {
	ID                    uuid.UUID           `json:"id"`
	Title                 string              `json:"title"`
	Mode                  model.ExamMode      `json:"mode"`
	ScheduledStart        *time.Time          `json:"scheduled_start,omitempty"`
	ScheduledEnd          *time.Time          `json:"scheduled_end,omitempty"`
	CompletionTimeSeconds int                 `json:"completion_time_seconds"`
	QuestionCount         int                 `json:"question_count"`
	EnablePause           bool                `json:"enable_pause"`
	SessionStatus         model.SessionStatus `json:"session_status"`
}

// GetLobby returns the exams currently open to candidates, each annotated
// with this candidate's session status. A missing session row is reported
// as NOT_STARTED.
func (s *ExamSessionService) GetLobby(ctx context.Context, candidateID int) ([]LobbyExam, error) {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published exams: %w", err)
	}

	sessions, err := s.sessionRepo.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list candidate sessions: %w", err)
	}
	statusByExam := make(map[uuid.UUID]model.SessionStatus, len(sessions))
	for _, sess := range sessions {
		statusByExam[sess.ExamID] = sess.Status
	}

	lobby := make([]LobbyExam, 0, len(exams))
	now := time.Now()
	for _, exam := range exams {
		if !exam.WindowOpen(now) {
			continue
		}
		status, ok := statusByExam[exam.ID]
		if !ok {
			status = model.SessionStatusNotStarted
		}
		lobby = append(lobby, LobbyExam{
			ID:                    exam.ID,
			Title:                 exam.Title,
			Mode:                  exam.Mode,
			ScheduledStart:        exam.ScheduledStart,
			ScheduledEnd:          exam.ScheduledEnd,
			CompletionTimeSeconds: exam.CompletionTimeSeconds,
			QuestionCount:         exam.QuestionCount,
			EnablePause:           exam.EnablePause,
			SessionStatus:         status,
		})
	}
	return lobby, nil
}

// PauseStatus combines the exam's pause configuration with the candidate's
// current position in the pause lifecycle.
type PauseStatus struct {
	Config               model.PauseConfig `json:"config"`
	PausePhase           *model.PausePhase `json:"pause_phase,omitempty"`
	PauseStartedAt       *time.Time        `json:"pause_started_at,omitempty"`
	TotalPauseDurationMs int64             `json:"total_pause_duration_ms"`
}

// GetPauseStatus reports the pause configuration and phase for a session.
func (s *ExamSessionService) GetPauseStatus(ctx context.Context, examID uuid.UUID, candidateID int) (*PauseStatus, error) {
	cfg, err := s.examService.GetPauseConfig(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get pause config: %w", err)
	}

	sess, err := s.sessionRepo.GetByExamAndCandidate(ctx, examID, candidateID)
	if err != nil {
		return nil, fmt.Errorf("no session: %w", err)
	}

	return &PauseStatus{
		Config:               *cfg,
		PausePhase:           sess.PausePhase,
		PauseStartedAt:       sess.PauseStartedAt,
		TotalPauseDurationMs: sess.TotalPauseDurationMs,
	}, nil
}

// ─── Misc ───────────────────────────────────────────────────────────

// RearmWatchers restarts the per-session tick loops for every IN_PROGRESS
// session. Called once at startup so countdowns survive server restarts.
func (s *ExamSessionService) RearmWatchers(ctx context.Context) error {
	sessions, err := s.sessionRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active sessions: %w", err)
	}

	for i := range sessions {
		sess := &sessions[i]
		exam, err := s.examRepo.GetByID(ctx, sess.ExamID)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", sess.ExamID.String()).Msg("Rearm skipped, exam missing")
			continue
		}
		s.watcher.Watch(exam, sess)
	}

	if len(sessions) > 0 {
		s.log.Info().Int("count", len(sessions)).Msg("Session watchers re-armed")
	}
	return nil
}

// GetExamResults retrieves paginated results for an exam.
func (s *ExamSessionService) GetExamResults(ctx context.Context, examID uuid.UUID, page, perPage int) ([]repository.SessionResult, int64, error) {
	return s.sessionRepo.ListByExam(ctx, examID, page, perPage)
}

// RecordProctorEvent queues a proctoring event (tab switch, focus loss)
// for persistence and forwards it to the live monitor. Policy: warn and
// record, never auto-submit — the timeout path is the only auto-closer.
func (s *ExamSessionService) RecordProctorEvent(ctx context.Context, examID uuid.UUID, candidateID int, payload string) {
	event, _ := json.Marshal(map[string]interface{}{
		"candidate_id": candidateID,
		"exam_id":      examID.String(),
		"timestamp":    time.Now().Unix(),
		"payload":      payload,
	})
	s.rdb.RPush(ctx, config.WorkerKey.PersistProctorQueue, event)

	s.publishMonitorEvent(ctx, examID.String(), map[string]interface{}{
		"type":         "proctor_event",
		"candidate_id": candidateID,
		"payload":      payload,
	})
}

func (s *ExamSessionService) publishMonitorEvent(ctx context.Context, examID string, event map[string]interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID), data).Err(); err != nil {
		s.log.Debug().Err(err).Msg("Monitor publish failed")
	}
}
