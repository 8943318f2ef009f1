// Package server assembles the HTTP router.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/akopjandvd/todo-api/internal/auth"
	"github.com/akopjandvd/todo-api/internal/config"
	"github.com/akopjandvd/todo-api/internal/constants"
	apierrors "github.com/akopjandvd/todo-api/internal/errors"
	"github.com/akopjandvd/todo-api/internal/handlers"
	"github.com/akopjandvd/todo-api/internal/logger"
	"github.com/akopjandvd/todo-api/internal/middleware"
	"github.com/akopjandvd/todo-api/internal/ratelimit"
	"github.com/akopjandvd/todo-api/internal/repository"
	"github.com/akopjandvd/todo-api/internal/services"
)

// Deps are the long-lived components the router is built from.
type Deps struct {
	Config       *config.Config
	Log          zerolog.Logger
	DB           *gorm.DB
	Hasher       auth.Hasher
	Tokens       *auth.TokenIssuer
	LoginLimiter ratelimit.Limiter
}

// New builds the gin engine with every route registered.
func New(d Deps) (*gin.Engine, error) {
	apierrors.UseJSONFieldNames()

	authService, err := services.NewAuthService(repository.NewUserRepository(d.DB), d.Hasher, d.Tokens)
	if err != nil {
		return nil, err
	}
	taskService := services.NewTaskService(repository.NewTaskRepository(d.DB))

	authHandler := handlers.NewAuthHandler(authService, d.Log)
	taskHandler := handlers.NewTaskHandler(taskService, d.Log)

	r := gin.New()
	if err := r.SetTrustedProxies(d.Config.TrustedProxies); err != nil {
		return nil, err
	}
	r.Use(middleware.RequestID())
	r.Use(logger.GinRequestLogger(d.Log))
	r.Use(gin.Recovery())
	if len(d.Config.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(corsConfig(d.Config.CORSAllowedOrigins)))
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Todo API is running",
		})
	})

	requireAuth := middleware.RequireAuth(d.Tokens, authService, d.Log)
	loginLimit := middleware.LoginRateLimit(d.LoginLimiter, d.Log)

	api := r.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/token", loginLimit, authHandler.Token)
			authRoutes.POST("/login", loginLimit, authHandler.Token)
			authRoutes.POST("/refresh", requireAuth, authHandler.Refresh)
			authRoutes.GET("/me", requireAuth, authHandler.Me)
		}

		tasks := api.Group("/tasks")
		tasks.Use(requireAuth)
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", taskHandler.CreateTask)
			tasks.GET("/export", taskHandler.ExportTasks)
			tasks.GET("/:id", middleware.RequireTaskAccess(taskService, d.Log), taskHandler.GetTask)
			tasks.PATCH("/:id", taskHandler.UpdateTask)
			tasks.PUT("/:id", taskHandler.UpdateTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
		}
	}

	return r, nil
}

func corsConfig(origins []string) cors.Config {
	return cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", constants.HeaderAuthorization, constants.HeaderRequestID,
		},
		ExposeHeaders: []string{
			constants.HeaderRequestID, constants.HeaderRetryAfter, constants.HeaderRateRemaining, "Content-Disposition",
		},
		MaxAge: 12 * time.Hour,
	}
}
