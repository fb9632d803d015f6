package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/medcert/eacmc-backend/internal/config"
	"github.com/medcert/eacmc-backend/internal/middleware"
	"github.com/medcert/eacmc-backend/internal/model"
	"github.com/medcert/eacmc-backend/internal/response"
	"github.com/medcert/eacmc-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams live exam activity to examiners over SSE:
// session starts, pauses, submissions and proctor events arrive through
// Redis Pub/Sub, with periodic progress refreshes from the database.
type MonitorHandler struct {
	rdb            *redis.Client
	examService    *service.ExamService
	sessionService *service.ExamSessionService
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(
	rdb *redis.Client,
	examService *service.ExamService,
	sessionService *service.ExamSessionService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		examService:    examService,
		sessionService: sessionService,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/examiner/exams/:exam_id/monitor
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")

	totalQuestions := exam.QuestionCount

	h.sendInitialSnapshot(c, reqCtx, examID, exam, totalQuestions)

	channelName := config.CacheKey.ExamMonitorChannel(examID.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Track whether any candidate has started so we can skip empty refreshes
	hasCandidates := false

	h.log.Info().Str("exam_id", examID.String()).Msg("Examiner attached to live monitor SSE")

	// Pre-allocate a reusable ping payload (never changes)
	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Examiner disconnected from live monitor SSE")
			return

		case msg := <-ch:
			// Forward raw JSON directly, no deserialization needed
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

			// A start/pause/submit event proves someone is in.
			hasCandidates = true

		case <-refreshTicker.C:
			if !hasCandidates {
				continue // no point querying if nobody has started
			}
			h.sendRefresh(c, reqCtx, examID, totalQuestions)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendInitialSnapshot gathers data and writes the first SSE event.
func (h *MonitorHandler) sendInitialSnapshot(
	c *gin.Context,
	ctx context.Context,
	examID uuid.UUID,
	exam *model.Exam,
	totalQuestions int,
) {
	results, _, _ := h.sessionService.GetExamResults(ctx, examID, 1, 1000)

	totalStarted := len(results)
	totalInProgress := 0
	totalCompleted := 0

	candidatesSnapshot := make([]map[string]interface{}, 0, len(results))
	for _, res := range results {
		switch res.Status {
		case model.SessionStatusInProgress:
			totalInProgress++
		case model.SessionStatusCompleted, model.SessionStatusAutoSubmitted:
			totalCompleted++
		}

		var score float64
		if res.FinalScore != nil {
			score = *res.FinalScore
		}

		candidatesSnapshot = append(candidatesSnapshot, map[string]interface{}{
			"candidate_id":     res.CandidateID,
			"name":             res.Name,
			"candidate_number": res.CandidateNumber,
			"status":           res.Status,
			"pause_phase":      res.PausePhase,
			"score":            score,
			"started_at":       res.StartedAt,
			"answered_count":   int64(0),
			"proctor_count":    int64(0),
			"total_questions":  totalQuestions,
		})
	}

	// Fetch counts with a timeout so a slow query doesn't block the connection
	var initialTotalProctor int64
	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	if progress, err := h.monitorService.GetCandidateProgress(fetchCtx, examID); err == nil {
		initialTotalProctor = progress.TotalProctor
		for i, s := range candidatesSnapshot {
			cid, ok := s["candidate_id"].(int)
			if !ok {
				continue
			}
			if count, found := progress.AnsweredCounts[cid]; found {
				candidatesSnapshot[i]["answered_count"] = count
			}
			if count, found := progress.ProctorCounts[cid]; found {
				candidatesSnapshot[i]["proctor_count"] = count
			}
		}
	}

	c.SSEvent("message", map[string]interface{}{
		"type": "snapshot",
		"data": map[string]interface{}{
			"exam": map[string]interface{}{
				"id":                      examID.String(),
				"title":                   exam.Title,
				"completion_time_seconds": exam.CompletionTimeSeconds,
				"enable_pause":            exam.EnablePause,
				"total_questions":         totalQuestions,
			},
			"stats": map[string]interface{}{
				"total_started":     totalStarted,
				"total_in_progress": totalInProgress,
				"total_completed":   totalCompleted,
				"total_proctor":     initialTotalProctor,
			},
			"candidates": candidatesSnapshot,
		},
	})
	c.Writer.Flush()
}

// sendRefresh polls DB+Redis for current progress and sends a compact refresh event.
func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, examID uuid.UUID, totalQuestions int) {
	// Scoped timeout prevents a slow query from stalling the SSE loop
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	progress, err := h.monitorService.GetCandidateProgress(ctx, examID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to fetch candidate progress for refresh")
		return
	}

	// Single-pass merge: iterate answered counts, decorate with proctor counts
	progressData := make([]map[string]interface{}, 0, len(progress.AnsweredCounts)+len(progress.ProctorCounts))

	for cid, answered := range progress.AnsweredCounts {
		progressData = append(progressData, map[string]interface{}{
			"candidate_id":   cid,
			"answered_count": answered,
			"proctor_count":  progress.ProctorCounts[cid], // 0 if missing
		})
		delete(progress.ProctorCounts, cid) // mark as handled
	}

	// Remaining proctor-only candidates (already submitted, not in-progress)
	for cid, events := range progress.ProctorCounts {
		progressData = append(progressData, map[string]interface{}{
			"candidate_id":   cid,
			"answered_count": int64(0),
			"proctor_count":  events,
		})
	}

	c.SSEvent("message", map[string]interface{}{
		"type":            "refresh",
		"total_questions": totalQuestions,
		"total_proctor":   progress.TotalProctor,
		"candidates":      progressData,
	})
	c.Writer.Flush()
}
