package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam_backend/internal/config"
	"exam_backend/internal/controller"
	"exam_backend/internal/repository"
	"exam_backend/internal/service"
	"exam_backend/pkg/database"
	"exam_backend/pkg/logger"
	"exam_backend/pkg/monitoring"
	"exam_backend/pkg/security"
	"exam_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
}

type repositories struct {
	user          *repository.UserRepository
	question      *repository.QuestionRepository
	exam          *repository.ExamRepository
	studentExam   *repository.StudentExamRepository
	studentAnswer *repository.StudentAnswerRepository
}

type services struct {
	auth        *service.AuthService
	user        *service.UserService
	question    *service.QuestionService
	exam        *service.ExamService
	grading     *service.GradingService
	studentExam *service.StudentExamService
	answer      *service.AnswerService
	results     *service.ResultsService
	storage     *service.StorageService
}

type controllers struct {
	auth        *controller.AuthController
	user        *controller.UserController
	question    *controller.QuestionController
	exam        *controller.ExamController
	studentExam *controller.StudentExamController
	results     *controller.ResultsController
	upload      *controller.UploadController
	health      *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:          repository.NewUserRepository(db),
		question:      repository.NewQuestionRepository(db),
		exam:          repository.NewExamRepository(db),
		studentExam:   repository.NewStudentExamRepository(db),
		studentAnswer: repository.NewStudentAnswerRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user)
	s.question = service.NewQuestionService(repos.question)
	s.exam = service.NewExamService(db, repos.exam, repos.question)
	s.grading = service.NewGradingService(db, rdb)
	s.studentExam = service.NewStudentExamService(db, repos.exam, repos.studentExam, repos.studentAnswer, repos.question, s.grading)
	s.answer = service.NewAnswerService(db, repos.studentAnswer, repos.question)
	s.results = service.NewResultsService(db, repos.exam, repos.studentExam, repos.studentAnswer, repos.user, rdb)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth),
		user:        controller.NewUserController(s.user),
		question:    controller.NewQuestionController(s.question),
		exam:        controller.NewExamController(s.exam),
		studentExam: controller.NewStudentExamController(s.studentExam, s.answer, s.results),
		results:     controller.NewResultsController(s.results, s.grading),
		upload:      controller.NewUploadController(s.storage),
		health:      controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 600
	}
	windowMinutes := cfg.RateLimit.WindowMinutes
	if windowMinutes <= 0 {
		windowMinutes = 1
	}
	router.Use(security.RateLimiter(maxRequests, time.Duration(windowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// release 模式默认跳过自动迁移，需通过 -migrate 显式触发
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
			log.Fatalf("Failed to migrate database: %v", err)
		}
		logger.Log.Info("Database migration completed")
	}

	// Redis 可选，不可用时统计缓存自动退化为直查
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Warn("Failed to initialize redis, statistics cache disabled", zap.Error(err))
			rdb = nil
		}
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, db, rdb)
	controllers := app.initControllers(services, db, rdb)

	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, terr := tracing.InitTracer("exam-backend", cfg.Tracing.CollectorEndpoint)
		if terr != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(terr))
		}
		_ = tp
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
