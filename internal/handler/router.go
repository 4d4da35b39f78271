package handler

import (
	"net/http"

	"contract-lens/internal/config"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(container *config.Container) http.Handler {
	router := mux.NewRouter()

	// API prefix
	api := router.PathPrefix("/api/v1").Subrouter()

	// Health check endpoint (no auth required)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"contract-lens"}`))
	}).Methods("GET")

	// Initialize handlers
	documentHandler := NewDocumentHandler(container.AnalysisService, container.Logger, container.Config.GetMaxFileSize())
	chatHandler := NewChatHandler(container.ChatService, container.Logger)
	viewerHandler := NewViewerHandler(container.ViewerService, container.Logger)

	api.Use(LoggingMiddleware(container.Logger))
	api.Use(APIKeyMiddleware(container.Config.GetAPIKey(), container.Logger))

	// Document routes
	api.HandleFunc("/documents", documentHandler.UploadDocument).Methods("POST")
	api.HandleFunc("/documents", documentHandler.ListAnalyses).Methods("GET")
	api.HandleFunc("/documents/{id}", documentHandler.GetAnalysis).Methods("GET")
	api.HandleFunc("/documents/{id}", documentHandler.DeleteDocument).Methods("DELETE")

	// Chat routes
	api.HandleFunc("/chat", chatHandler.Ask).Methods("POST")
	api.HandleFunc("/chat/{id}", chatHandler.GetHistory).Methods("GET")

	// Viewer routes
	api.HandleFunc("/viewer", viewerHandler.OpenSession).Methods("POST")
	api.HandleFunc("/viewer/{id}", viewerHandler.GetState).Methods("GET")
	api.HandleFunc("/viewer/{id}", viewerHandler.CloseSession).Methods("DELETE")
	api.HandleFunc("/viewer/{id}/zoom", viewerHandler.Zoom).Methods("POST")
	api.HandleFunc("/viewer/{id}/viewport", viewerHandler.UpdateViewport).Methods("POST")
	api.HandleFunc("/viewer/{id}/jump", viewerHandler.Jump).Methods("POST")
	api.HandleFunc("/viewer/{id}/pages/{page}", viewerHandler.GetPageImage).Methods("GET")
	api.HandleFunc("/viewer/{id}/pages/{page}/retry", viewerHandler.RetryPage).Methods("POST")

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // Vite dev server
			"http://localhost:4173", // Vite preview
			"http://localhost:3000", // Alternative dev port
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
		},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}
