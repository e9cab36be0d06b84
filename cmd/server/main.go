package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/robfig/cron"

	config "github.com/Geotechcompany/synovora/configs"
	"github.com/Geotechcompany/synovora/internal/api/handlers"
	"github.com/Geotechcompany/synovora/internal/api/middleware"
	job "github.com/Geotechcompany/synovora/internal/jobs"
	"github.com/Geotechcompany/synovora/internal/queue"
	"github.com/Geotechcompany/synovora/internal/repository"
	"github.com/Geotechcompany/synovora/internal/scheduler"
	"github.com/Geotechcompany/synovora/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	if cfg.SecretKey == "" {
		log.Fatal("SECRET_KEY must be set")
	}

	postRepo, userRepo, logRepo, db := openStore(cfg)
	if db != nil {
		defer closeDB(db)
	}

	var asynqClient *asynq.Client
	var redisConn asynq.RedisClientOpt
	if cfg.RedisURI != "" {
		redisConn = asynq.RedisClientOpt{Addr: cfg.RedisURI}
		asynqClient = asynq.NewClient(redisConn)
		defer asynqClient.Close()
	} else {
		log.Println("REDIS_URI not set, background tasks run inline")
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    25 * 1024 * 1024, // 25 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	r2Service := service.NewR2Service(cfg)
	trendService := service.NewTrendService(cfg.SerperAPIKey)
	imageService := service.NewImageService(cfg.HFToken, cfg.HFImageModel, r2Service)
	linkedinService := service.NewLinkedInService(cfg.LinkedIn)
	emailService := service.NewEmailService(cfg.SMTP)
	generateService := service.NewGenerateService(trendService)
	userService := service.NewUserService(cfg, userRepo, linkedinService)
	postService := service.NewPostService(cfg, postRepo, userRepo, generateService, linkedinService, imageService, emailService)
	automationService := service.NewAutomationService(cfg, userRepo, logRepo, postService)

	authMiddleware := middleware.NewAuthMiddleware(cfg)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	auth := handlers.NewAuthHandler(cfg, linkedinService, userService)
	app.Post("/session", auth.Session)
	app.Get("/auth/url", auth.LinkedInAuthURL)
	app.Get("/auth/linkedin", auth.LinkedInConnect)
	app.Get("/auth/linkedin/callback", auth.LinkedInCallback)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)
	api.Post("/user/sync", user.SyncUser)
	api.Post("/user/openai-key", user.SetOpenAIKey)
	api.Delete("/user/openai-key", user.RemoveOpenAIKey)
	api.Get("/user/linkedin-status", user.LinkedInStatus)

	post := handlers.NewPostHandler(postService)
	api.Post("/posts/generate", post.GeneratePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/:id", post.GetPost)
	api.Patch("/posts/:id", post.UpdatePost)
	api.Delete("/posts/:id", post.RemovePost)
	api.Post("/posts/:id/schedule", post.SchedulePost)
	api.Post("/posts/:id/unschedule", post.UnschedulePost)
	api.Post("/posts/:id/publish", post.PublishPost)
	api.Post("/posts/:id/email", post.EmailPost)
	api.Post("/posts/topics", post.SuggestTopics)

	automation := handlers.NewAutomationHandler(automationService, asynqClient)
	api.Get("/automation/settings", automation.GetSettings)
	api.Post("/automation/settings", automation.UpdateSettings)
	api.Get("/automation/logs", automation.ListLogs)
	api.Post("/automation/run", automation.RunNow)

	app.Get("/cron/run-automation", automation.RunAll)
	app.Post("/cron/run-automation", automation.RunAll)

	// cron jobs
	automationJob := job.NewAutomationJob(asynqClient, automationService)

	c := cron.New()
	c.AddFunc("@every 01h00m00s", automationJob.Trigger)
	c.Start()

	if asynqClient != nil {
		queueW := queue.NewQueue(automationService)

		go func() {
			server := asynq.NewServer(redisConn, asynq.Config{
				Concurrency: 5,
			})

			mux := asynq.NewServeMux()
			mux.HandleFunc(queue.TaskTypeAutomationRun, queueW.HandleAutomationRunTask)

			log.Println("Starting the Asynq server...")
			if err := server.Run(mux); err != nil {
				log.Fatalf("Could not start Asynq server: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	if cfg.SchedulerEnabled {
		poller := scheduler.New(postRepo, postService,
			time.Duration(cfg.SchedulerPollSeconds)*time.Second, cfg.SchedulerBatchSize)
		go poller.Run(ctx)
	} else {
		log.Println("Scheduler disabled by configuration")
	}

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, cancel)
}

// openStore picks the first working persistence backend: Postgres, then
// SQLite, then the plain file store if explicitly allowed.
func openStore(cfg *config.Config) (repository.PostRepository, repository.UserRepository, repository.AutomationLogRepository, *sql.DB) {
	if cfg.PostgresURI != "" {
		db, err := repository.OpenPostgres(cfg.PostgresURI)
		if err == nil {
			log.Println("Using Postgres storage")
			return repository.NewPostRepository(db), repository.NewUserRepository(db), repository.NewAutomationLogRepository(db), db
		}
		log.Printf("Postgres unavailable: %v", err)
	}

	if cfg.SQLitePath != "" {
		db, err := repository.OpenSQLite(cfg.SQLitePath)
		if err == nil {
			log.Println("Using SQLite storage")
			return repository.NewPostRepository(db), repository.NewUserRepository(db), repository.NewAutomationLogRepository(db), db
		}
		log.Printf("SQLite unavailable: %v", err)
	}

	if !cfg.AllowFileFallback {
		log.Fatal("No database available and file fallback is not enabled")
	}

	store, err := repository.NewFileStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open file store: %v", err)
	}
	log.Println("Using file storage (scheduler will idle)")
	return store, repository.NewFileUserRepository(store), repository.NewFileLogRepository(store), nil
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, cancel context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")
	cancel()

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	log.Println("Server shutdown complete.")
}
