package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medcert/eacmc-backend/internal/model"
	"github.com/rs/zerolog"
)

// sessionOps are the transitions the watcher drives on schedule. Implemented
// by ExamSessionService; split out so watcher tests can use a stub.
type sessionOps interface {
	AutoPause(ctx context.Context, examID uuid.UUID, candidateID int) error
	AutoResume(ctx context.Context, examID uuid.UUID, candidateID int) error
	AutoSubmit(ctx context.Context, examID uuid.UUID, candidateID int) (*model.SubmitExamResponse, error)
}

// watchAction is the transition a tick decided to fire.
type watchAction int

const (
	actionNone watchAction = iota
	actionPause
	actionResume
	actionSubmit
)

// sessionWatch holds the live timing view of one session. The countdown is
// mutated by Refresh when the pause phase advances; the fired flags make
// each transition one-shot even if the service call runs longer than a tick.
type sessionWatch struct {
	mu        sync.Mutex
	countdown model.Countdown
	pause     model.PauseConfig

	pauseFired  bool
	resumeFired bool
	submitFired bool
}

// next decides which transition, if any, is due at the given instant and
// latches it. At most one action per call; the countdown expiring during a
// pause is impossible since the clock freezes, so the order of checks only
// matters for the pause-due vs expired race at very short completion times.
func (sw *sessionWatch) next(now time.Time) watchAction {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.pause.EnablePause && !sw.pauseFired && sw.countdown.PauseDue(now) {
		sw.pauseFired = true
		return actionPause
	}

	pauseWindow := time.Duration(sw.pause.PauseDurationMinutes) * time.Minute
	if !sw.resumeFired && sw.countdown.ResumeDue(now, pauseWindow) {
		sw.resumeFired = true
		return actionResume
	}

	if !sw.submitFired && sw.countdown.Expired(now) {
		sw.submitFired = true
		return actionSubmit
	}

	return actionNone
}

func (sw *sessionWatch) update(sess *model.ExamSession) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.countdown.PausePhase = sess.PausePhase
	sw.countdown.PauseStartedAt = sess.PauseStartedAt
	sw.countdown.TotalPauseDuration = time.Duration(sess.TotalPauseDurationMs) * time.Millisecond
}

// SessionWatcher runs one goroutine per IN_PROGRESS session, ticking every
// second against the server clock and firing the scheduled transitions:
// the automatic midpoint pause, the pause-window resume, and the timeout
// auto-submit. Entries are keyed by exam and candidate; re-watching an
// already watched session replaces the old loop.
type SessionWatcher struct {
	ops     sessionOps
	log     zerolog.Logger
	watches sync.Map // string → *watchEntry
}

type watchEntry struct {
	watch  *sessionWatch
	cancel context.CancelFunc
}

// NewSessionWatcher creates a SessionWatcher bound to the given transitions.
func NewSessionWatcher(ops sessionOps, log zerolog.Logger) *SessionWatcher {
	return &SessionWatcher{
		ops: ops,
		log: log.With().Str("component", "session_watcher").Logger(),
	}
}

func watchKey(examID uuid.UUID, candidateID int) string {
	return fmt.Sprintf("%s:%d", examID.String(), candidateID)
}

// Watch starts (or restarts) the tick loop for a session. Terminal sessions
// are ignored.
func (w *SessionWatcher) Watch(exam *model.Exam, sess *model.ExamSession) {
	if sess.Status.Terminal() {
		return
	}

	key := watchKey(exam.ID, sess.CandidateID)
	if prev, ok := w.watches.LoadAndDelete(key); ok {
		prev.(*watchEntry).cancel()
	}

	entry := &watchEntry{
		watch: &sessionWatch{
			countdown: sess.Countdown(exam.CompletionTime()),
			pause:     model.PauseConfigOf(exam),
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	entry.cancel = cancel
	w.watches.Store(key, entry)

	go w.run(ctx, exam.ID, sess.CandidateID, entry.watch)
}

// Refresh reflects a phase transition into the running watch so the next
// tick evaluates against the new state. No-op if the session is not watched.
func (w *SessionWatcher) Refresh(examID uuid.UUID, candidateID int, sess *model.ExamSession) {
	if entry, ok := w.watches.Load(watchKey(examID, candidateID)); ok {
		entry.(*watchEntry).watch.update(sess)
	}
}

// Stop cancels the tick loop for one session.
func (w *SessionWatcher) Stop(examID uuid.UUID, candidateID int) {
	if entry, ok := w.watches.LoadAndDelete(watchKey(examID, candidateID)); ok {
		entry.(*watchEntry).cancel()
	}
}

// Shutdown cancels every running tick loop.
func (w *SessionWatcher) Shutdown() {
	w.watches.Range(func(key, value interface{}) bool {
		value.(*watchEntry).cancel()
		w.watches.Delete(key)
		return true
	})
}

func (w *SessionWatcher) run(ctx context.Context, examID uuid.UUID, candidateID int, watch *sessionWatch) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	log := w.log.With().Str("exam_id", examID.String()).Int("candidate_id", candidateID).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			switch watch.next(now) {
			case actionPause:
				log.Info().Msg("Midpoint reached, triggering automatic pause")
				if err := w.ops.AutoPause(ctx, examID, candidateID); err != nil {
					log.Error().Err(err).Msg("Automatic pause failed")
					watch.mu.Lock()
					watch.pauseFired = false // retry next tick
					watch.mu.Unlock()
				}
			case actionResume:
				log.Info().Msg("Pause window elapsed, resuming")
				if err := w.ops.AutoResume(ctx, examID, candidateID); err != nil {
					log.Error().Err(err).Msg("Automatic resume failed")
					watch.mu.Lock()
					watch.resumeFired = false
					watch.mu.Unlock()
				}
			case actionSubmit:
				log.Info().Msg("Countdown expired, auto-submitting")
				if _, err := w.ops.AutoSubmit(ctx, examID, candidateID); err != nil {
					log.Error().Err(err).Msg("Auto-submit failed")
					watch.mu.Lock()
					watch.submitFired = false
					watch.mu.Unlock()
				}
				// The submit path stops this watch on success; on failure
				// the cleared flag lets the next tick retry.
			}
		}
	}
}
