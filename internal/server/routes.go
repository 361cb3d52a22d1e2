// Package server contain implementation of go-gin-server and each route handlers
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"TalentPipe-backend/internal/auth"
	"TalentPipe-backend/internal/controller/application"
	"TalentPipe-backend/internal/controller/file"
	"TalentPipe-backend/internal/controller/jobpost"
	"TalentPipe-backend/internal/lifecycle"
	"TalentPipe-backend/internal/middleware"
)

// RegisterRoutes will register each http endpoint routes to bound Server instance
func (s *MyServer) RegisterRoutes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(s.Log), middleware.SafeHeader())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	jobs := jobpost.NewJobPostController(s.Jobs, s.Log)
	apps := application.NewApplicationController(s.Applications, s.Log)
	files := file.NewFileController(s.Blobs, s.Jobs, s.Log)
	logout := auth.NewLogoutController(s.Revocations)
	limiter := middleware.RateLimiterMiddleware(s.cfg.RateLimitRPS)

	r.GET("/health", s.healthHandler)
	r.GET(s.cfg.MetricsPath, gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		public := v1.Group("/public", limiter)
		{
			public.GET("/jobs/:slug", jobs.GetPublishedJobHandler)
		}

		needAuth := v1.Group("")
		{
			needAuth.Use(middleware.RequireAuth(s.Signer), middleware.RevocationCheck(s.Revocations, s.Log), limiter)
			needAuth.POST("/auth/logout", logout.LogoutHandler)

			needRecruiter := needAuth.Group("")
			{
				needRecruiter.Use(middleware.CheckRole(auth.RoleRecruiter))
				needRecruiter.GET("/file/:bucket/*key", files.GetFile)
				needRecruiter.GET("/slug/preview", jobs.SlugPreviewHandler)

				jobRoute := needRecruiter.Group("/jobs")
				{
					jobRoute.POST("", jobs.CreateJobHandler)
					jobRoute.GET("/:id", jobs.GetJobHandler)
					jobRoute.PATCH("/:id", jobs.UpdateJobHandler)
					jobRoute.GET("/:id/changelog", jobs.ChangeLogHandler)
					jobRoute.POST("/:id/publish", jobs.TransitionHandler(lifecycle.ActionPublish))
					jobRoute.POST("/:id/pause", jobs.TransitionHandler(lifecycle.ActionPause))
					jobRoute.POST("/:id/resume", jobs.TransitionHandler(lifecycle.ActionResume))
					jobRoute.POST("/:id/close", jobs.TransitionHandler(lifecycle.ActionClose))

					jobRoute.GET("/:id/applications", apps.ListHandler)
					jobRoute.GET("/:id/applications/:applicationId", apps.GetHandler)
					jobRoute.POST("/:id/applications/:applicationId/stage", apps.ChangeStageHandler)
				}
			}

			needCandidate := needAuth.Group("")
			{
				needCandidate.Use(middleware.CheckRole(auth.RoleCandidate))
				needCandidate.POST("/jobs/:id/applications", middleware.SizeLimit(application.MaxResumeBytes), apps.ApplyHandler)
			}
		}
	}

	return r
}

func (s *MyServer) healthHandler(c *gin.Context) {
	stats := s.DB.Health()
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}
