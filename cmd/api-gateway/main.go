package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edulink/lms-api/api/swagger"
	"github.com/edulink/lms-api/internal/handler"
	"github.com/edulink/lms-api/internal/middleware"
	"github.com/edulink/lms-api/internal/models"
	"github.com/edulink/lms-api/internal/repository"
	"github.com/edulink/lms-api/internal/service"
	"github.com/edulink/lms-api/pkg/cache"
	"github.com/edulink/lms-api/pkg/config"
	"github.com/edulink/lms-api/pkg/database"
	"github.com/edulink/lms-api/pkg/jobs"
	"github.com/edulink/lms-api/pkg/logger"
	"github.com/edulink/lms-api/pkg/mailer"
	corsmiddleware "github.com/edulink/lms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edulink/lms-api/pkg/middleware/requestid"
	"github.com/edulink/lms-api/pkg/storage"
)

// @title EduLink LMS API
// @version 1.0.0
// @description Learning management backend: accounts, classes, materials and notifications
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	uploadsStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir, cfg.Uploads.PublicBaseURL)
	if err != nil {
		logr.Sugar().Fatalw("failed to init uploads storage", "error", err)
	}
	exportsStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir, "")
	if err != nil {
		logr.Sugar().Fatalw("failed to init exports storage", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	mailClient := mailer.New(cfg.Mail, logr)
	emailQueue := jobs.NewQueue("email", func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(mailer.Message)
		if !ok {
			return fmt.Errorf("unexpected payload type %T for job %s", job.Payload, job.ID)
		}
		return mailClient.Send(ctx, msg)
	}, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	emailQueue.Start(context.Background())
	defer emailQueue.Stop()

	validate := validator.New()
	if err := service.RegisterRoleValidation(validate); err != nil {
		logr.Sugar().Fatalw("failed to register validators", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	materialRepo := repository.NewMaterialRepository(db)
	commRepo := repository.NewCommunicationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, classRepo, auditRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	userService := service.NewUserService(userRepo, auditRepo, validate, logr)
	classService := service.NewClassService(classRepo, subjectRepo, userRepo, auditRepo, validate, logr)
	subjectService := service.NewSubjectService(subjectRepo, classRepo, userRepo, userRepo, cacheRepo, auditRepo, validate, logr, cfg.Cache.SubjectListTTL)
	studentService := service.NewStudentService(userRepo, classRepo, auditRepo, emailQueue, logr)
	materialService := service.NewMaterialService(materialRepo, subjectRepo, userRepo, uploadsStore, cacheRepo, emailQueue, metricsService, auditRepo, validate, logr)
	commService := service.NewCommunicationService(commRepo, subjectRepo, userRepo, cacheRepo, emailQueue, metricsService, validate, logr, cfg.Cache.UnreadCountTTL)
	exportService := service.NewExportService(userRepo, subjectRepo, exportsStore, exportSigner, logr, nil, nil)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	classHandler := handler.NewClassHandler(classService)
	subjectHandler := handler.NewSubjectHandler(subjectService)
	studentHandler := handler.NewStudentHandler(studentService)
	materialHandler := handler.NewMaterialHandler(materialService)
	commHandler := handler.NewCommunicationHandler(commService)
	exportHandler := handler.NewExportHandler(exportService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.Static(cfg.Uploads.PublicBaseURL, cfg.Uploads.StorageDir)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/exports/download", exportHandler.Download)

	authed := api.Group("", middleware.JWT(authService), middleware.Actor(authService))
	authed.GET("/auth/profile", authHandler.Profile)
	authed.GET("/materials/:id", materialHandler.Get)
	authed.GET("/subjects/:id/materials", materialHandler.ListBySubject)
	authed.GET("/notifications", commHandler.Notifications)
	authed.GET("/notifications/unread-count", commHandler.UnreadCount)
	authed.PATCH("/notifications/:id/read", commHandler.MarkRead)
	authed.GET("/communications/sent", commHandler.Sent)
	authed.GET("/communications/:id/thread", commHandler.Thread)
	authed.GET("/communications/with/:userId", commHandler.Conversation)

	admin := authed.Group("", middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/users/teachers", userHandler.AddTeacher)
	admin.GET("/users/teachers", userHandler.ListTeachers)
	admin.GET("/users/students", userHandler.ListStudents)
	admin.POST("/classes", classHandler.Create)
	admin.POST("/classes/:id/teachers", classHandler.AssignTeacher)
	admin.POST("/subjects", subjectHandler.Create)
	admin.GET("/subjects", subjectHandler.List)
	admin.POST("/exports/roster", middleware.Audit(auditRepo, models.AuditActionExport, "roster"), exportHandler.Generate)
	admin.POST("/exports/catalog", middleware.Audit(auditRepo, models.AuditActionExport, "catalog"), exportHandler.Catalog)

	staff := authed.Group("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher))
	staff.GET("/classes", classHandler.List)
	staff.GET("/teacher/classes", classHandler.MyClasses)
	staff.GET("/teacher/subjects", subjectHandler.TeacherSubjects)
	staff.GET("/students/pending", studentHandler.Pending)
	staff.PATCH("/students/:id/status", studentHandler.UpdateStatus)
	staff.POST("/materials", materialHandler.Upload)
	staff.GET("/subjects/:id/students", subjectHandler.Students)
	staff.GET("/subjects/:id/queries", commHandler.SubjectQueries)
	staff.POST("/communications/:id/reply", commHandler.Reply)

	student := authed.Group("", middleware.RequireRoles(models.RoleStudent))
	student.GET("/student/subjects", subjectHandler.StudentSubjects)
	student.POST("/queries", commHandler.SendQuery)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
