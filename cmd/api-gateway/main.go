package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/usra-dev/usra-api/api/swagger"
	"github.com/usra-dev/usra-api/internal/handler"
	"github.com/usra-dev/usra-api/internal/middleware"
	"github.com/usra-dev/usra-api/internal/models"
	"github.com/usra-dev/usra-api/internal/repository"
	"github.com/usra-dev/usra-api/internal/service"
	"github.com/usra-dev/usra-api/pkg/cache"
	"github.com/usra-dev/usra-api/pkg/config"
	"github.com/usra-dev/usra-api/pkg/database"
	"github.com/usra-dev/usra-api/pkg/logger"
	corsmiddleware "github.com/usra-dev/usra-api/pkg/middleware/cors"
	reqidmiddleware "github.com/usra-dev/usra-api/pkg/middleware/requestid"
)

// @title USRA API
// @version 1.0.0
// @description University student records administration backend
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	academicRepo := repository.NewAcademicRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	roleSvc := service.NewRoleService(roleRepo, nil, logr)
	academicSvc := service.NewAcademicService(academicRepo, nil, logr)
	studentSvc := service.NewStudentService(studentRepo, roleRepo, academicRepo, nil, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, roleRepo, academicRepo, nil, logr)
	staffSvc := service.NewStaffService(staffRepo, roleRepo, nil, logr)
	requestSvc := service.NewRequestService(requestRepo, studentRepo, academicRepo, teacherRepo, staffRepo, nil, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, cacheRepo, cfg.Notifications.UnreadCountTTL, logr)
	exportSvc := service.NewExportService(requestRepo, service.ExportConfig{MaxRows: cfg.Exports.MaxRows}, logr, nil, nil)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	roleHandler := handler.NewRoleHandler(roleSvc)
	academicHandler := handler.NewAcademicHandler(academicSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	staffHandler := handler.NewStaffHandler(staffSvc)
	requestHandler := handler.NewRequestHandler(requestSvc, exportSvc, metricsSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, authSvc,
		authHandler, roleHandler, academicHandler, studentHandler,
		teacherHandler, staffHandler, requestHandler, notificationHandler)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func registerRoutes(
	r *gin.Engine,
	cfg *config.Config,
	authSvc *service.AuthService,
	auth *handler.AuthHandler,
	roles *handler.RoleHandler,
	academics *handler.AcademicHandler,
	students *handler.StudentHandler,
	teachers *handler.TeacherHandler,
	staff *handler.StaffHandler,
	requests *handler.RequestHandler,
	notifications *handler.NotificationHandler,
) {
	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", auth.Login)

	authed := api.Group("", middleware.JWT(authSvc))
	authed.GET("/auth/me", auth.Me)
	authed.PATCH("/auth/password", auth.ChangePassword)

	// Workflow endpoints. Students act on their own requests; reviews and
	// exports need staff-level permission.
	req := authed.Group("/requests")
	req.POST("/change", middleware.RequireRoles(models.RoleStudent), requests.SubmitChange)
	req.POST("/swap", middleware.RequireRoles(models.RoleStudent), requests.SubmitSwap)
	req.GET("/swap", requests.ListSwaps)
	req.GET("/swap/verify", middleware.RequireRoles(models.RoleStudent), requests.VerifySwap)
	req.GET("", requests.List)
	req.GET("/export", middleware.RequirePermission(models.PermissionStaff), requests.Export)
	req.GET("/:id", requests.Get)
	req.PATCH("/review", middleware.RequirePermission(models.PermissionStaff), requests.Review)
	req.PATCH("/swap", middleware.RequireRoles(models.RoleStudent), requests.RespondSwap)
	req.PATCH("/appeal", middleware.RequireRoles(models.RoleStudent), requests.Appeal)
	req.DELETE("/cancel", middleware.RequireRoles(models.RoleStudent), requests.Cancel)

	notif := authed.Group("/notifications")
	notif.GET("", notifications.List)
	notif.GET("/unread", notifications.UnreadCount)
	notif.PATCH("/readall", notifications.MarkAllRead)
	notif.PATCH("/:id/read", notifications.MarkRead)
	notif.DELETE("", notifications.DeleteAll)
	notif.DELETE("/:id", notifications.Delete)

	// Academic structure reads stay open to any authenticated user so
	// students can browse sections and groups when submitting requests.
	authed.GET("/specialities", academics.ListSpecialities)
	authed.GET("/specialities/:id", academics.GetSpeciality)
	authed.GET("/sections", academics.ListSections)
	authed.GET("/sections/:id", academics.GetSection)
	authed.GET("/groups", academics.ListGroups)
	authed.GET("/groups/:id", academics.GetGroup)

	staffArea := authed.Group("", middleware.RequirePermission(models.PermissionStaff))

	staffArea.POST("/specialities", academics.CreateSpeciality)
	staffArea.PUT("/specialities/:id", academics.UpdateSpeciality)
	staffArea.DELETE("/specialities/:id", academics.DeleteSpeciality)
	staffArea.POST("/sections", academics.CreateSection)
	staffArea.PUT("/sections/:id", academics.UpdateSection)
	staffArea.DELETE("/sections/:id", academics.DeleteSection)
	staffArea.POST("/groups", academics.CreateGroup)
	staffArea.PUT("/groups/:id", academics.UpdateGroup)
	staffArea.DELETE("/groups/:id", academics.DeleteGroup)

	staffArea.POST("/students", students.Create)
	staffArea.GET("/students", students.List)
	staffArea.GET("/students/:id", students.Get)
	staffArea.PUT("/students/:id", students.Update)
	staffArea.DELETE("/students/:id", students.Delete)

	staffArea.POST("/teachers", teachers.Create)
	staffArea.GET("/teachers", teachers.List)
	staffArea.GET("/teachers/:id", teachers.Get)
	staffArea.PUT("/teachers/:id", teachers.Update)
	staffArea.DELETE("/teachers/:id", teachers.Delete)
	staffArea.POST("/teachers/:id/assign", teachers.Assign)
	staffArea.DELETE("/teachers/:id/assign", teachers.Unassign)

	adminArea := authed.Group("", middleware.RequirePermission(models.PermissionAdmin))

	adminArea.POST("/staff", staff.Create)
	adminArea.GET("/staff", staff.List)
	adminArea.GET("/staff/:id", staff.Get)
	adminArea.PUT("/staff/:id", staff.Update)
	adminArea.DELETE("/staff/:id", staff.Delete)

	adminArea.GET("/roles", roles.List)
	adminArea.GET("/roles/:id", roles.Get)
	adminArea.POST("/roles", roles.Create)
	adminArea.PUT("/roles/:id", roles.Update)
	adminArea.DELETE("/roles/:id", roles.Delete)
}
