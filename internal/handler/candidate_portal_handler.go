package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/medcert/eacmc-backend/internal/middleware"
	"github.com/medcert/eacmc-backend/internal/model"
	"github.com/medcert/eacmc-backend/internal/response"
	"github.com/medcert/eacmc-backend/internal/service"
	"github.com/medcert/eacmc-backend/internal/validator"
)

// CandidatePortalHandler handles candidate-facing endpoints: the lobby,
// the exam session lifecycle and the pause controls.
type CandidatePortalHandler struct {
	sessionService *service.ExamSessionService
	examService    *service.ExamService
}

// NewCandidatePortalHandler creates a new CandidatePortalHandler.
func NewCandidatePortalHandler(
	sessionService *service.ExamSessionService,
	examService *service.ExamService,
) *CandidatePortalHandler {
	return &CandidatePortalHandler{
		sessionService: sessionService,
		examService:    examService,
	}
}

// GetLobby godoc
// GET /api/v1/candidate/lobby
// Returns exams currently open to the candidate with their session status.
func (h *CandidatePortalHandler) GetLobby(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	lobby, err := h.sessionService.GetLobby(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if lobby == nil {
		lobby = []service.LobbyExam{}
	}

	response.Success(c, http.StatusOK, gin.H{"exams": lobby})
}

// StartExam godoc
// POST /api/v1/candidate/exams/:exam_id/start
// Creates the session (idempotent) and returns it together with any
// answers recovered for a reload.
func (h *CandidatePortalHandler) StartExam(c *gin.Context) {
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

	result, err := h.sessionService.StartExam(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExamNotAvailable):
			response.Fail(c, http.StatusBadRequest, response.ErrExamNotAvailable)
		case errors.Is(err, service.ErrExamWindowClosed):
			response.Fail(c, http.StatusBadRequest, response.ErrExamWindowClosed)
		case errors.Is(err, service.ErrSessionAlreadyClosed):
			response.Fail(c, http.StatusConflict, response.ErrSessionClosed)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetExamPaper godoc
// GET /api/v1/candidate/exams/:exam_id/paper
// Returns the exam payload from Redis (bypasses PostgreSQL).
// SECURITY: Requires an active session for this exam — prevents IDOR.
func (h *CandidatePortalHandler) GetExamPaper(c *gin.Context) {
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

	// SECURITY: Verify the candidate has an active session for this exam.
	// This prevents candidates from downloading papers they have not started.
	if err := h.sessionService.VerifyActiveSession(c.Request.Context(), examID, claims.UserID); err != nil {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	payload, err := h.examService.GetExamPayload(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrExamNotPublished)
		return
	}

	response.Success(c, http.StatusOK, payload)
}

// GetExamState godoc
// GET /api/v1/candidate/exams/:exam_id/session
// Returns the current state of the exam for the candidate.
// This endpoint covers the page reload, so the frontend can get the answered
// questions, the pause phase and the remaining time in one call.
func (h *CandidatePortalHandler) GetExamState(c *gin.Context) {
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

	state, err := h.sessionService.GetExamState(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// GetPauseStatus godoc
// GET /api/v1/candidate/exams/:exam_id/pause-status
// Returns the pause configuration and the candidate's current pause phase.
func (h *CandidatePortalHandler) GetPauseStatus(c *gin.Context) {
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

	status, err := h.sessionService.GetPauseStatus(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, status)
}

// StartPause godoc
// POST /api/v1/candidate/exams/:exam_id/pause
// Triggers the single mid-exam pause. A manual (early) trigger requires
// the whole first half to be answered.
func (h *CandidatePortalHandler) StartPause(c *gin.Context) {
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

	var req model.StartPauseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessionService.StartPause(c.Request.Context(), examID, claims.UserID, req.ManualTrigger)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPauseNotEnabled):
			response.Fail(c, http.StatusBadRequest, response.ErrPauseNotEnabled)
		case errors.Is(err, service.ErrPauseAlreadyUsed):
			response.Fail(c, http.StatusConflict, response.ErrPauseAlreadyUsed)
		case errors.Is(err, service.ErrFirstHalfIncomplete):
			response.Fail(c, http.StatusBadRequest, response.ErrFirstHalfIncomplete)
		case errors.Is(err, service.ErrSessionAlreadyClosed):
			response.Fail(c, http.StatusConflict, response.ErrSessionClosed)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ResumeFromPause godoc
// POST /api/v1/candidate/exams/:exam_id/resume
// Ends the pause early. The countdown resumes and navigation is forced to
// the midpoint question.
func (h *CandidatePortalHandler) ResumeFromPause(c *gin.Context) {
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

	result, err := h.sessionService.ResumeFromPause(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrPauseNotActive) {
			response.Fail(c, http.StatusConflict, response.ErrPauseNotActive)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// SubmitExam godoc
// POST /api/v1/candidate/exams/:exam_id/submit
// Grades the final answers and closes the session. Safe to retry: a
// concurrent or repeated submit returns the stored result.
func (h *CandidatePortalHandler) SubmitExam(c *gin.Context) {
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

	var req model.SubmitExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessionService.Submit(c.Request.Context(), examID, claims.UserID, &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// CheckQuestionAccess godoc
// GET /api/v1/candidate/exams/:exam_id/questions/:index/access
// Reports whether a question index is navigable in the current phase.
func (h *CandidatePortalHandler) CheckQuestionAccess(c *gin.Context) {
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

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	access, err := h.sessionService.CheckQuestionAccess(c.Request.Context(), examID, claims.UserID, index)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, access)
}
