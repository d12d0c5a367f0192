package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/carebridge-backend/internal/db"
	"github.com/yungbote/carebridge-backend/internal/handlers"
	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/repos"
	"github.com/yungbote/carebridge-backend/internal/server"
	"github.com/yungbote/carebridge-backend/internal/services"
	"github.com/yungbote/carebridge-backend/internal/sse"
	"github.com/yungbote/carebridge-backend/internal/utils"
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

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	clientRepo := repos.NewClientRepo(thePG, log)
	sessionRepo := repos.NewSessionRepo(thePG, log)
	planRepo := repos.NewTreatmentPlanRepo(thePG, log)
	versionRepo := repos.NewPlanVersionRepo(thePG, log)
	runRepo := repos.NewPlanGenerationRunRepo(thePG, log)
	aiLogRepo := repos.NewAICallLogRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewSSEHub(log)

	// Services
	log.Info("Setting up Services from main...")
	openaiClient, err := services.NewOpenAIClient(log)
	if err != nil {
		log.Error("Could not init OpenAIClient", "error", err)
		os.Exit(1)
	}
	auditedClient := services.NewAuditedOpenAIClient(openaiClient, aiLogRepo, log)

	metadataService := services.NewSessionMetadataService(thePG, log, sessionRepo, clientRepo)
	crisisService := services.NewCrisisDetectionService(log, auditedClient)
	extractionService := services.NewPlanExtractionService(log, auditedClient)
	therapistViewService := services.NewTherapistViewService(log)
	clientViewService := services.NewClientViewService(log)
	versionService := services.NewPlanVersionService(thePG, log, planRepo, versionRepo)
	pipelineService := services.NewPlanPipelineService(
		log,
		metadataService,
		crisisService,
		extractionService,
		therapistViewService,
		clientViewService,
		versionService,
		planRepo,
	)
	runService := services.NewPlanRunService(log, runRepo, metadataService, pipelineService, sseHub)
	go runService.StartWorker(context.Background())

	// Handlers
	log.Info("Setting up handlers from main...")
	intakeHandler := handlers.NewIntakeHandler(clientRepo, sessionRepo)
	planHandler := handlers.NewPlanHandler(planRepo, versionService)
	runHandler := handlers.NewRunHandler(runService)
	sseHandler := handlers.NewSSEHandler(sseHub)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		Log:           log,
		IntakeHandler: intakeHandler,
		PlanHandler:   planHandler,
		RunHandler:    runHandler,
		SSEHandler:    sseHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
