package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/medcert/eacmc-backend/internal/model"
	"github.com/medcert/eacmc-backend/internal/repository"
	"github.com/medcert/eacmc-backend/internal/response"
	"github.com/medcert/eacmc-backend/internal/service"
	"github.com/medcert/eacmc-backend/internal/validator"
)

// CandidateManagementHandler handles examiner-facing candidate management
// (registration, listing, session reset).
type CandidateManagementHandler struct {
	candidateRepo *repository.CandidateRepository
	authService   *service.AuthService
}

// NewCandidateManagementHandler creates a new CandidateManagementHandler.
func NewCandidateManagementHandler(
	candidateRepo *repository.CandidateRepository,
	authService *service.AuthService,
) *CandidateManagementHandler {
	return &CandidateManagementHandler{
		candidateRepo: candidateRepo,
		authService:   authService,
	}
}

// ListCandidates godoc
// GET /api/v1/examiner/candidates
// Lists registered candidates with pagination.
func (h *CandidateManagementHandler) ListCandidates(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	candidates, total, err := h.candidateRepo.ListPaginated(c.Request.Context(), page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if candidates == nil {
		candidates = []model.Candidate{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"candidates": candidates}, pagination)
}

// CreateCandidate godoc
// POST /api/v1/examiner/candidates
// Registers a new candidate.
func (h *CandidateManagementHandler) CreateCandidate(c *gin.Context) {
	var req model.CreateCandidateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	candidate := &model.Candidate{
		CandidateNumber: req.CandidateNumber,
		Name:            req.Name,
		Email:           req.Email,
		PasswordHash:    hash,
	}

	if err := h.candidateRepo.Create(c.Request.Context(), candidate); err != nil {
		if errors.Is(err, repository.ErrDuplicateCandidateNumber) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"candidate": candidate})
}

// ResetCandidateSession godoc
// POST /api/v1/examiner/candidates/:id/reset-session
// Clears a candidate's active login, allowing them onto a new device.
func (h *CandidateManagementHandler) ResetCandidateSession(c *gin.Context) {
	candidateID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.authService.ResetCandidateSession(c.Request.Context(), candidateID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "candidate session reset successfully"})
}
