package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medic-workbook/backend/config"
	"medic-workbook/backend/internal/api/handler"
	"medic-workbook/backend/internal/api/middleware"
	"medic-workbook/backend/pkg/jwt"
)

// Setup builds the Gin engine.
// limiter may be nil when Redis is unavailable; submissions are then not rate limited.
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, limiter middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── global middleware ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimitBytes))

	// ── health ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	staff := middleware.RoleAuth(jwt.RoleCoordinator, jwt.RoleAdmin)

	v1 := r.Group("/api/v1")
	{
		// EventSource cannot set headers, so the stream also accepts ?access_token=
		v1.GET("/progress/events", middleware.JWTAuth(jwtMgr, true), h.Progress.Events)

		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, false))
		{
			authorized.GET("/phases", h.Progress.ListPhases)

			// submissions
			submissions := authorized.Group("/submissions")
			{
				submissions.POST("",
					middleware.RateLimit(limiter, cfg.Progress.SubmitRateLimit, cfg.Progress.SubmitRateWindow),
					h.Submission.Submit,
				)
				submissions.GET("/me", h.Submission.ListMine)
				submissions.DELETE("/:form_type/:form_number", h.Submission.Delete)
			}

			// own progress
			progress := authorized.Group("/progress")
			{
				progress.GET("/me", h.Progress.GetMyProgress)
				progress.GET("/me/phases/:phase", h.Progress.GetMyPhase)
			}

			// coordinator views and reconciliation
			students := authorized.Group("/students/:id", staff)
			{
				students.GET("/submissions", h.Submission.ListForStudent)
				students.GET("/progress", h.Progress.GetStudentProgress)
				students.GET("/diagnostics", h.Reconcile.Diagnose)
				students.POST("/fix", h.Reconcile.Fix)
				students.GET("/reports", h.Reconcile.ListReports)
			}

			admin := authorized.Group("/admin", middleware.RoleAuth(jwt.RoleAdmin))
			{
				admin.POST("/recalculate", h.Reconcile.RecalculateAll)
			}

			export := authorized.Group("/export", staff)
			{
				export.GET("/progress", h.Export.ExportProgress)
			}
		}
	}

	return r
}
