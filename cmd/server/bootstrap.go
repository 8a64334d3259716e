package main

import (
	"github.com/innovasus/innovasus/internal/config"
	"github.com/innovasus/innovasus/internal/handlers"
	"github.com/innovasus/innovasus/internal/models"
	"github.com/innovasus/innovasus/internal/services"
	"github.com/innovasus/innovasus/internal/utils"
	"github.com/innovasus/innovasus/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	storage          services.Storage
	taskQueue        services.TaskQueue
	worker           *services.Worker
	schedulerService *services.SchedulerService
	authHandler      *handlers.AuthHandler
	userHandler      *handlers.UserHandler
	articleHandler   *handlers.ArticleHandler
	mediaHandler     *handlers.MediaHandler
	accessHandler    *handlers.AccessHandler
	messageHandler   *handlers.MessageHandler
	communityHandler *handlers.CommunityHandler
	systemLogHandler *handlers.SystemLogHandler
	healthHandler    *handlers.HealthHandler
	fileHandler      *handlers.FileHandler
	localFiles       bool
}

// bootstrap initializes all application dependencies: database, storage,
// queue, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	services.InitSystemLogger(models.GetDB())

	storage, err := services.NewStorage(&cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// Task queue (uses Redis if enabled, otherwise in-process)
	taskQueue := services.InitTaskQueue(cfg)
	emailService := services.NewEmailService(models.GetDB(), &cfg.SMTP)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(emailService.Process)
	}

	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.InitWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(emailService.Process)
			worker.Start()
		}
	}

	db := models.GetDB()
	accessService := services.NewAccessService(db, storage, taskQueue)
	authService := services.NewAuthService(db, &cfg.JWT, taskQueue)
	logService := services.NewSystemLogService(db)

	schedulerService := services.NewSchedulerService(db, authService, logService, emailService, accessService)
	schedulerService.Start()

	authHandler := handlers.NewAuthHandler(db, cfg, taskQueue)
	if err := authHandler.CreateAdminIfNotExists(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		storage:          storage,
		taskQueue:        taskQueue,
		worker:           worker,
		schedulerService: schedulerService,
		authHandler:      authHandler,
		userHandler:      handlers.NewUserHandler(db, storage),
		articleHandler:   handlers.NewArticleHandler(db, storage, accessService, authService),
		mediaHandler:     handlers.NewMediaHandler(db, storage, accessService, authService),
		accessHandler:    handlers.NewAccessHandler(accessService, authService),
		messageHandler:   handlers.NewMessageHandler(db),
		communityHandler: handlers.NewCommunityHandler(db, storage),
		systemLogHandler: handlers.NewSystemLogHandler(db),
		healthHandler:    handlers.NewHealthHandler(),
		fileHandler:      handlers.NewFileHandler(db, storage, accessService),
		localFiles:       cfg.Storage.Driver != "s3",
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.schedulerService.Stop()
	logger.Info().Msg("Scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
