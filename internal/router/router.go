package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/medcert/eacmc-backend/internal/config"
	"github.com/medcert/eacmc-backend/internal/handler"
	"github.com/medcert/eacmc-backend/internal/middleware"
	"github.com/medcert/eacmc-backend/internal/response"
	"github.com/medcert/eacmc-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth            *handler.AuthHandler
	CandidatePortal *handler.CandidatePortalHandler
	CandidateMgmt   *handler.CandidateManagementHandler
	Exam            *handler.ExamHandler
	WS              *handler.WSHandler
	Monitor         *handler.MonitorHandler
	System          *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/candidate/login", handlers.Auth.CandidateLogin)
		auth.POST("/examiner/login", handlers.Auth.ExaminerLogin)

		// Authenticated profile routes
		auth.POST("/candidate/logout", middleware.RequireCandidateJWT(authService), handlers.Auth.CandidateLogout)
		auth.GET("/candidate/me", middleware.RequireCandidateJWT(authService), handlers.Auth.GetCandidateProfile)
		auth.GET("/examiner/me", middleware.RequireExaminerJWT(authService), handlers.Auth.GetExaminerProfile)
	}

	// ─── 2. Candidate Group (JWT + Single Device) ──────────────────────
	candidateAPI := router.Group("/api/v1/candidate")
	candidateAPI.Use(
		middleware.RequireCandidateJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		candidateAPI.GET("/lobby", handlers.CandidatePortal.GetLobby)
		candidateAPI.POST("/exams/:exam_id/start", handlers.CandidatePortal.StartExam)
		candidateAPI.GET("/exams/:exam_id/paper", handlers.CandidatePortal.GetExamPaper)
		candidateAPI.GET("/exams/:exam_id/session", handlers.CandidatePortal.GetExamState)
		candidateAPI.GET("/exams/:exam_id/pause-status", handlers.CandidatePortal.GetPauseStatus)
		candidateAPI.POST("/exams/:exam_id/pause", handlers.CandidatePortal.StartPause)
		candidateAPI.POST("/exams/:exam_id/resume", handlers.CandidatePortal.ResumeFromPause)
		candidateAPI.POST("/exams/:exam_id/submit", handlers.CandidatePortal.SubmitExam)
		candidateAPI.GET("/exams/:exam_id/questions/:index/access", handlers.CandidatePortal.CheckQuestionAccess)
	}

	// ─── 3. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateWSAuth(authService))
	{
		ws.GET("/candidate/exams/:exam_id/stream", handlers.WS.ExamWebSocketStream)
	}

	// ─── 4. Examiner Group (JWT) ───────────────────────────────────────
	examinerAPI := router.Group("/api/v1/examiner")
	examinerAPI.Use(middleware.RequireExaminerJWT(authService))
	{
		// Exam management
		examinerAPI.GET("/exams", handlers.Exam.ListExams)
		examinerAPI.POST("/exams", handlers.Exam.CreateExam)
		examinerAPI.GET("/exams/:exam_id", handlers.Exam.GetExam)
		examinerAPI.PATCH("/exams/:exam_id", handlers.Exam.UpdateExam)
		examinerAPI.DELETE("/exams/:exam_id", handlers.Exam.DeleteExam)
		examinerAPI.POST("/exams/:exam_id/publish", handlers.Exam.PublishExam)
		examinerAPI.POST("/exams/:exam_id/refresh-cache", handlers.Exam.RefreshExamCache)
		examinerAPI.PUT("/exams/:exam_id/questions", handlers.Exam.ReplaceQuestions)
		examinerAPI.GET("/exams/:exam_id/results", handlers.Exam.GetExamResults)
		examinerAPI.GET("/exams/:exam_id/monitor", handlers.Monitor.MonitorExamSSE)

		// Candidate management
		examinerAPI.GET("/candidates", handlers.CandidateMgmt.ListCandidates)
		examinerAPI.POST("/candidates", handlers.CandidateMgmt.CreateCandidate)
		examinerAPI.POST("/candidates/:id/reset-session", handlers.CandidateMgmt.ResetCandidateSession)

		// Ops
		examinerAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	return router
}
