package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/fundbridge/fundbridge-backend/internal/handlers"
	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/middleware"
)

type RouterConfig struct {
	Log             *logger.Logger
	StartupHandler  *handlers.StartupHandler
	MatchHandler    *handlers.MatchHandler
	WeightsHandler  *handlers.WeightsHandler
	LearningHandler *handlers.LearningHandler
	AllowOrigins    []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(cfg.Log))

	// Cors
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5174"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Startups
		api.GET("/startups/resolve", cfg.StartupHandler.Resolve)
		api.POST("/startups/:id/score", cfg.StartupHandler.Score)
		api.GET("/startups/:id/matches", cfg.MatchHandler.ListForStartup)
		api.GET("/startups/:id/matches/count", cfg.MatchHandler.CountForStartup)

		// Match runs
		api.POST("/match-runs", cfg.MatchHandler.EnqueueRun)
		api.GET("/match-runs/:id", cfg.MatchHandler.GetRun)

		// Weight admin
		api.GET("/weight-versions", cfg.WeightsHandler.List)
		api.GET("/weight-versions/:id/diff", cfg.WeightsHandler.Diff)
		api.POST("/weight-versions/:id/activate", cfg.WeightsHandler.Activate)

		// Learning
		api.POST("/learning/refresh", cfg.LearningHandler.Refresh)
		api.POST("/learning/cycle", cfg.LearningHandler.Cycle)
		api.GET("/recommendations", cfg.LearningHandler.ListRecommendations)
		api.POST("/recommendations/:id/approve", cfg.LearningHandler.Approve)
		api.POST("/recommendations/:id/reject", cfg.LearningHandler.Reject)
	}

	return router
}
