package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"taskflow/internal/avatar"
	"taskflow/internal/domain/errors"
	"taskflow/internal/mailer"
	"taskflow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Collaborators are the optional outside services the API talks to. Nil
// fields fall back to local implementations.
type Collaborators struct {
	Mailer  mailer.Sender
	Avatars avatar.Store
	Redis   *redis.Client
}

type TaskAPI struct {
	httpSrv *http.Server
	cfg     *Config
	auth    *service.AuthService
	tasks   *service.TaskService
	lists   *service.ListService
	limiter gin.HandlerFunc
}

func NewTaskAPI(cfg *Config, repo service.Repository, c Collaborators) *TaskAPI {
	if cfg == nil || repo == nil {
		return nil
	}
	if c.Mailer == nil {
		c.Mailer = mailer.LogSender{}
	}
	if c.Avatars == nil {
		c.Avatars = avatar.NewDiskStore(cfg.AvatarDir, cfg.PublicURL)
	}

	api := &TaskAPI{
		httpSrv: &http.Server{
			Addr:              cfg.ListenAddr(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		cfg: cfg,
		auth: service.NewAuthService(repo, service.AuthConfig{
			JWTSecret: cfg.JWTSecret,
			TokenTTL:  cfg.TokenTTL,
			ResetTTL:  cfg.ResetTTL,
		}, c.Mailer, c.Avatars),
		tasks:   service.NewTaskService(repo, cfg.Location()),
		lists:   service.NewListService(repo),
		limiter: NewRateLimiter(cfg.RateLimit, c.Redis),
	}
	api.configRoutes()
	return api
}

// Location returns the zone used for calendar-day boundaries.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("[WARN] Unknown timezone %q, using local time: %v", c.Timezone, err)
		return time.Local
	}
	return loc
}

func (api *TaskAPI) Start() error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}
	err := api.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (api *TaskAPI) Shutdown(ctx context.Context) error {
	return api.httpSrv.Shutdown(ctx)
}

func (api *TaskAPI) configRoutes() {
	router := gin.Default()
	router.HandleMethodNotAllowed = true
	router.MaxMultipartMemory = avatar.MaxSize + 1<<20

	router.NoMethod(func(ctx *gin.Context) {
		ctx.JSON(http.StatusMethodNotAllowed, gin.H{"message": "Method not allowed"})
	})
	router.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, gin.H{"message": "Route not found"})
	})

	router.Use(CORS(api.cfg.CORSOrigins))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if api.cfg.AvatarDir != "" {
		router.Static("/uploads", api.cfg.AvatarDir)
	}

	apiGroup := router.Group("/api", GzipRequestDecompress(), GzipResponseCompress())

	authGroup := apiGroup.Group("/auth")
	{
		public := authGroup.Group("", api.limiter)
		public.POST("/register", api.register)
		public.POST("/login", api.login)
		public.POST("/forgot-password", api.forgotPassword)
		public.POST("/verify-reset-code", api.verifyResetCode)
		public.POST("/reset-password", api.resetPassword)

		me := authGroup.Group("/me", api.requireAuth())
		me.GET("", api.getCurrentUser)
		me.PUT("", api.updateProfile)
		me.DELETE("", api.deactivateAccount)
		me.PUT("/password", api.changePassword)
	}

	lists := apiGroup.Group("/lists", api.requireAuth())
	{
		lists.GET("", api.getLists)
		lists.POST("", api.createList)
		lists.PUT("/:id", api.renameList)
		lists.DELETE("/:id", api.deleteList)
	}

	tasks := apiGroup.Group("/tasks", api.requireAuth())
	{
		tasks.GET("", api.getTasks)
		tasks.POST("", api.createTask)
		tasks.GET("/search", api.searchTasks)
		tasks.GET("/upcoming", api.upcomingTasks)
		tasks.GET("/range", api.tasksByRange)
		tasks.GET("/view", api.viewTasks)
		tasks.PATCH("/important/:id", api.toggleImportant)
		tasks.GET("/:id", api.getTaskByID)
		tasks.PUT("/:id", api.updateTask)
		tasks.DELETE("/:id", api.deleteTask)
	}

	api.httpSrv.Handler = router
}
