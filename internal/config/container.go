package config

import (
	"context"
	"time"

	"contract-lens/internal/domain"
	"contract-lens/internal/pdfengine"
	"contract-lens/internal/repository"
	"contract-lens/internal/service"
	"contract-lens/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config domain.Config
	Logger domain.Logger
	Engine domain.DecodeEngine

	AnalysisRepository domain.AnalysisRepository
	ChatRepository     domain.ChatRepository

	AnalysisService domain.AnalysisService
	ChatService     domain.ChatService
	ViewerService   domain.ViewerService
}

// NewContainer creates a new dependency injection container
func NewContainer() (*Container, error) {
	cfg := NewConfig()
	appLogger := logger.NewLogger(cfg.GetLogLevel())

	engine := pdfengine.New(appLogger)

	// Persistence: supabase when configured, local sqlite otherwise.
	var analysisRepo domain.AnalysisRepository
	var chatRepo domain.ChatRepository
	if cfg.GetSupabaseURL() != "" && cfg.GetSupabaseKey() != "" {
		client := repository.NewSupabaseClient(cfg, appLogger)
		if err := client.Initialize(); err != nil {
			return nil, err
		}
		store := repository.NewSupabaseStore(client, appLogger)
		analysisRepo = store
		chatRepo = store
	} else {
		store, err := repository.NewSQLiteStore(cfg.GetDatabasePath(), cfg.GetMaxRecentAnalyses(), appLogger)
		if err != nil {
			return nil, err
		}
		analysisRepo = store
		chatRepo = store
	}

	// AI is optional: without a project the analysis and chat endpoints
	// report 503 instead of failing startup.
	var llm service.LLMClient
	if cfg.GetGCPProjectID() != "" {
		client, err := service.NewGeminiClient(context.Background(), cfg.GetGCPProjectID(), cfg.GetGCPLocation())
		if err != nil {
			appLogger.Warn("Vertex AI client unavailable; analysis and chat disabled", "error", err)
		} else {
			llm = client
		}
	}

	renderTimeout := time.Duration(cfg.GetRenderTimeoutSec()) * time.Second

	analysisService := service.NewAnalysisService(analysisRepo, engine, llm, appLogger, cfg.GetMaxFileSize(), cfg.GetMaxRecentAnalyses())
	chatService := service.NewChatService(analysisRepo, chatRepo, llm, appLogger)
	viewerService := service.NewViewerService(engine, analysisRepo, appLogger, renderTimeout)

	return &Container{
		Config:             cfg,
		Logger:             appLogger,
		Engine:             engine,
		AnalysisRepository: analysisRepo,
		ChatRepository:     chatRepo,
		AnalysisService:    analysisService,
		ChatService:        chatService,
		ViewerService:      viewerService,
	}, nil
}
