package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/labreview-api/internal/client"
	"github.com/noah-isme/labreview-api/internal/handler"
	"github.com/noah-isme/labreview-api/internal/middleware"
	"github.com/noah-isme/labreview-api/internal/repository"
	"github.com/noah-isme/labreview-api/internal/service"
	"github.com/noah-isme/labreview-api/internal/state"
	"github.com/noah-isme/labreview-api/pkg/alerts"
	"github.com/noah-isme/labreview-api/pkg/cache"
	"github.com/noah-isme/labreview-api/pkg/config"
	"github.com/noah-isme/labreview-api/pkg/export"
	"github.com/noah-isme/labreview-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/labreview-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/labreview-api/pkg/middleware/requestid"
	"github.com/noah-isme/labreview-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	store := state.NewStore()
	alertQueue := alerts.NewQueue(cfg.Alerts.MaxQueued)
	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, continuing without snapshot cache", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	transport := client.NewHTTPClient(cfg.Upstream, logr)

	var archiveSvc *service.ArchiveService
	if cfg.Exports.Enabled && cfg.Exports.ArchiveDir != "" {
		archive, err := storage.NewArchive(cfg.Exports.ArchiveDir)
		if err != nil {
			logr.Sugar().Fatalw("export archive init failed", "error", err)
		}
		signer := storage.NewDownloadSigner(cfg.Exports.SignSecret, cfg.Exports.TokenTTL)
		archiveSvc = service.NewArchiveService(archive, signer, cfg.Exports.Retention, logr)
		archiveSvc.Start(context.Background())
		defer archiveSvc.Stop()
	}

	ownerSvc := service.NewOwnerService(store)
	gradeSvc := service.NewGradeService(store, transport, cacheSvc, alertQueue, metricsSvc, validate, logr)
	reviewSvc := service.NewReviewService(store, transport, cacheSvc, alertQueue, metricsSvc, validate, logr)
	submissionSvc := service.NewSubmissionService(store, transport, cacheSvc, alertQueue, metricsSvc, validate, logr)
	exportSvc := service.NewExportService(store, ownerSvc, gradeSvc, logr, export.NewCSVExporter(), export.NewPDFExporter())

	submissionHandler := handler.NewSubmissionHandler(submissionSvc, ownerSvc, gradeSvc, store)
	reviewHandler := handler.NewReviewHandler(reviewSvc)
	alertHandler := handler.NewAlertHandler(alertQueue)
	exportHandler := handler.NewExportHandler(exportSvc, archiveSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/courses/:courseID/submissions", submissionHandler.FetchCourse)
		api.GET("/courses/:courseID/users/:userID/submissions", submissionHandler.UserSubmissions)
		api.PUT("/courses/:courseID/assignments", submissionHandler.SetAssignments)
		api.POST("/courses/:courseID/assignments/:assignmentID/release", submissionHandler.ReleaseAll)
		api.POST("/courses/:courseID/invalidate", submissionHandler.InvalidateCourse)

		api.GET("/submissions/:id", submissionHandler.GetByID)
		api.GET("/submissions/:id/owner", submissionHandler.OwnerByID)
		api.GET("/submissions/:id/color", submissionHandler.CellColor)
		api.POST("/submissions/:id/status", submissionHandler.SetStatusAll)
		api.POST("/submissions/:id/grades/:userID/status", submissionHandler.SetMemberStatus)
		api.POST("/submissions/:id/rebuild", submissionHandler.Rebuild)
		api.POST("/submissions/:id/release", submissionHandler.Release)
		api.POST("/submissions/:id/reviews", reviewHandler.Create)

		api.PATCH("/reviews/grade", reviewHandler.SetGrade)
		api.PATCH("/reviews/ready", reviewHandler.SetReady)
		api.PATCH("/reviews/feedback", reviewHandler.UpdateFeedback)
		api.PATCH("/reviews/comment", reviewHandler.UpdateComment)

		api.GET("/alerts", alertHandler.List)
		api.DELETE("/alerts", alertHandler.Clear)
		api.DELETE("/alerts/:id", alertHandler.Dismiss)

		api.POST("/session/reset", submissionHandler.ResetSession)

		if cfg.Exports.Enabled {
			api.GET("/courses/:courseID/results/export", exportHandler.CourseResults)
			if archiveSvc != nil {
				api.POST("/courses/:courseID/results/archive", exportHandler.ArchiveCourseResults)
				api.GET("/exports/download", exportHandler.Download)
			}
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
