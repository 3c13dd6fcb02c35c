package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fundbridge/fundbridge-backend/internal/bus"
	"github.com/fundbridge/fundbridge-backend/internal/db"
	"github.com/fundbridge/fundbridge-backend/internal/handlers"
	"github.com/fundbridge/fundbridge-backend/internal/jobs"
	"github.com/fundbridge/fundbridge-backend/internal/learning"
	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/matching"
	"github.com/fundbridge/fundbridge-backend/internal/repos"
	"github.com/fundbridge/fundbridge-backend/internal/scheduler"
	"github.com/fundbridge/fundbridge-backend/internal/server"
	"github.com/fundbridge/fundbridge-backend/internal/services"
	"github.com/fundbridge/fundbridge-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	readyThreshold := utils.GetEnvAsInt("MATCH_READY_THRESHOLD", 5, log)
	topN := utils.GetEnvAsInt("MATCH_TOP_N", 100, log)
	persistenceFloor := utils.GetEnvAsFloat("MATCH_PERSISTENCE_FLOOR", 30, log)
	weightsSeedPath := utils.GetEnv("WEIGHTS_SEED_PATH", "config/weights.yaml", log)
	regenerationSpec := utils.GetEnv("REGENERATION_CRON", "0 2 * * *", log)
	snapshotSpec := utils.GetEnv("SNAPSHOT_REFRESH_CRON", "0 3 * * 0", log)
	allowOrigins := utils.GetEnv("CORS_ALLOW_ORIGINS", "", log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	startupRepo := repos.NewStartupProfileRepo(thePG, log)
	investorRepo := repos.NewInvestorProfileRepo(thePG, log)
	matchRepo := repos.NewMatchRepo(thePG, log)
	weightVersionRepo := repos.NewWeightVersionRepo(thePG, log)
	outcomeEventRepo := repos.NewOutcomeEventRepo(thePG, log)
	snapshotRepo := repos.NewTrainingSnapshotRepo(thePG, log)
	recommendationRepo := repos.NewRecommendationRepo(thePG, log)
	matchRunRepo := repos.NewMatchRunRepo(thePG, log)

	// Run-progress bus
	publisher, err := bus.NewRedisPublisher(log)
	if err != nil {
		log.Warn("Redis unavailable, run events disabled", "error", err)
		publisher = bus.NewNopPublisher()
	}
	defer publisher.Close()

	// Engine
	engineCfg := matching.DefaultConfig()
	engineCfg.TopN = topN
	engineCfg.PersistenceFloor = persistenceFloor
	engine := matching.NewEngine(log, startupRepo, investorRepo, matchRepo, publisher, engineCfg)

	// Services
	log.Info("Setting up Services from main...")
	scoringService := services.NewScoringService(thePG, log, startupRepo, weightVersionRepo, matchRunRepo)
	matchService := services.NewMatchService(thePG, log, engine, scoringService, matchRepo, matchRunRepo, weightVersionRepo, int64(readyThreshold))
	weightService := services.NewWeightService(thePG, log, weightVersionRepo, matchService)
	refresher := learning.NewRefresher(log, startupRepo, outcomeEventRepo, snapshotRepo)
	learningService := services.NewLearningService(thePG, log, refresher, snapshotRepo, weightVersionRepo, recommendationRepo, weightService)
	resolveService := services.NewResolveService(log, startupRepo)

	ctx := context.Background()
	if err := weightService.EnsureSeeded(ctx, weightsSeedPath); err != nil {
		log.Error("Could not seed scoring configuration", "error", err)
		os.Exit(1)
	}

	// Worker + scheduler
	worker := jobs.NewWorker(thePG, log, matchRunRepo, matchService)
	worker.Start(ctx)
	sched := scheduler.New(log, matchService, learningService, scheduler.Config{
		RegenerationSpec: regenerationSpec,
		SnapshotSpec:     snapshotSpec,
	})
	if err := sched.Start(ctx); err != nil {
		log.Error("Scheduler init failed", "error", err)
		os.Exit(1)
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	startupHandler := handlers.NewStartupHandler(resolveService, scoringService)
	matchHandler := handlers.NewMatchHandler(matchService)
	weightsHandler := handlers.NewWeightsHandler(weightService)
	learningHandler := handlers.NewLearningHandler(learningService)

	// Router
	log.Info("Setting up router from main...")
	var origins []string
	if allowOrigins != "" {
		origins = strings.Split(allowOrigins, ",")
	}
	router := server.NewRouter(server.RouterConfig{
		Log:             log,
		StartupHandler:  startupHandler,
		MatchHandler:    matchHandler,
		WeightsHandler:  weightsHandler,
		LearningHandler: learningHandler,
		AllowOrigins:    origins,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
