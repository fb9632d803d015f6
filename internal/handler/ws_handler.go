package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/medcert/eacmc-backend/internal/middleware"
	"github.com/medcert/eacmc-backend/internal/service"
	ws "github.com/medcert/eacmc-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the WebSocket exam stream: answer autosave, review
// flags, visibility reports and the final submit, all over one socket.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// ExamWebSocketStream godoc
// WS /ws/v1/candidate/exams/:exam_id/stream
// Upgrades to WebSocket for real-time autosave and submission.
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	candidateID := claims.UserID

	// SECURITY: Validate the candidate has an active session before streaming.
	if err := h.sessionService.VerifyActiveSession(c.Request.Context(), examID, candidateID); err != nil {
		ws.WriteError(conn, "no active session for this exam")
		return
	}

	wsLog := h.log.With().
		Int("candidate_id", candidateID).
		Str("exam_id", examID.String()).
		Logger()

	wsLog.Info().Msg("Candidate connected")

	for {
		var msg ws.RequestPayload
		err := ws.ReadJSON(conn, &msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, wsLog, examID, candidateID, &msg)
		case ws.ActionFlag:
			h.handleFlag(conn, wsLog, examID, candidateID, &msg)
		case ws.ActionVisibility:
			h.sessionService.RecordProctorEvent(context.Background(), examID, candidateID, ws.EnsureJSON(msg.Payload))
			ws.WriteTyped(conn, ws.SuccessResponse{Event: ws.EventSuccess, Status: "recorded"})
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, examID, candidateID)
			return // session closed, no further messages expected
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

// handleAutosave saves a single answer through the session service, which
// enforces the accessibility gate and the exam mode persistence rules.
func (h *WSHandler) handleAutosave(conn *websocket.Conn, wsLog zerolog.Logger, examID uuid.UUID, candidateID int, msg *ws.RequestPayload) {
	ctx := context.Background()

	if msg.QID == "" || msg.Answer == "" {
		ws.WriteError(conn, "q_id and ans are required")
		return
	}

	// SECURITY: Validate QID is a well-formed UUID to prevent Redis key injection.
	if _, err := uuid.Parse(msg.QID); err != nil {
		ws.WriteError(conn, "invalid q_id format")
		return
	}

	if err := h.sessionService.SaveAnswer(ctx, examID, candidateID, msg.QID, msg.Answer); err != nil {
		if errors.Is(err, service.ErrQuestionLocked) {
			ws.WriteTyped(conn, ws.ErrorResponse{Event: ws.EventLocked, Error: "question is locked"})
			return
		}
		wsLog.Error().Err(err).Msg("Autosave error")
		ws.WriteError(conn, "save failed")
		return
	}

	ws.WriteTyped(conn, ws.SuccessResponse{Event: ws.EventSuccess, Status: "saved"})
}

func (h *WSHandler) handleFlag(conn *websocket.Conn, wsLog zerolog.Logger, examID uuid.UUID, candidateID int, msg *ws.RequestPayload) {
	if _, err := uuid.Parse(msg.QID); err != nil {
		ws.WriteError(conn, "invalid q_id format")
		return
	}

	if err := h.sessionService.SetQuestionFlag(context.Background(), examID, candidateID, msg.QID, msg.Flagged); err != nil {
		wsLog.Error().Err(err).Msg("Flag error")
		ws.WriteError(conn, "flag failed")
		return
	}

	ws.WriteTyped(conn, ws.SuccessResponse{Event: ws.EventSuccess, Status: "flagged"})
}

// handleSubmit closes the session from the server-side answer cache.
func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, examID uuid.UUID, candidateID int) {
	result, err := h.sessionService.SubmitFromCache(context.Background(), examID, candidateID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Submit error")
		ws.WriteError(conn, "submission failed")
		return
	}

	wsLog.Info().
		Float64("score", result.Score).
		Int("correct", result.Correct).
		Int("total", result.Total).
		Msg("Exam submitted and graded")

	ws.WriteTyped(conn, ws.GradedResponse{
		Event:  ws.EventGraded,
		Status: string(result.Status),
		Score:  result.Score,
	})
}
