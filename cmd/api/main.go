package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "dealroom/docs" // This is for Swagger
	"dealroom/internal/auth"
	"dealroom/internal/config"
	"dealroom/internal/database"
	"dealroom/internal/handle"
	"dealroom/internal/handlers"
	"dealroom/internal/logger"
	"dealroom/internal/middleware"
	"dealroom/internal/models"
	"dealroom/internal/repository"
	"dealroom/internal/service"

	httpSwagger "github.com/swaggo/http-swagger"
)

// @title DealRoom API
// @version 1.0
// @description Staged document-disclosure and access-control API for M&A deal rooms

// @contact.name API Support
// @contact.email support@dealroom.local

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logger.Setup(logger.Config{
		Level: cfg.Log.Level,
	})

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", cfg.Log.Level,
	)

	// Initialize database
	db, err := database.New(&cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func(db *database.Database) {
		err := db.Close()
		if err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}(db)

	slog.Info("Database connection established")

	// Run database migrations
	migrator := database.NewMigrationExecutor(db.DB)
	if err := migrator.RunMigrations("./migrations"); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB)
	companyRepo := repository.NewCompanyRepository(db.DB)
	dealRepo := repository.NewDealRepository(db.DB)
	documentRepo := repository.NewDocumentRepository(db.DB)
	ndaRepo := repository.NewNdaRepository(db.DB)
	requestRepo := repository.NewAccessRequestRepository(db.DB)
	auditRepo := repository.NewAuditRepository(db.DB)

	// Initialize services
	authService := auth.NewService(&cfg.JWT)
	privateKey, publicKey := authService.SigningKey()
	handleIssuer := handle.NewIssuer(privateKey, publicKey, cfg.Handle.TTL)

	auditService := service.NewAuditService(auditRepo)
	authSvc := service.NewAuthService(userRepo, authService, auditService)
	ndaService := service.NewNdaService(ndaRepo, requestRepo, auditRepo, cfg.Access)
	levelCalc := service.NewEffectiveLevelCalculator(requestRepo, ndaService)
	requestService := service.NewAccessRequestService(requestRepo, userRepo, auditRepo, levelCalc)
	disclosureService := service.NewDisclosureService(documentRepo, dealRepo, levelCalc, ndaService, handleIssuer, auditService)
	workflowService := service.NewDealWorkflowService(dealRepo, documentRepo, auditService)

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(authService, userRepo)
	rbacMw := middleware.NewRBACMiddleware()
	auditMw := middleware.NewAuditMiddleware(db.DB)
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authSvc)
	companyHandler := handlers.NewCompanyHandler(companyRepo)
	dealHandler := handlers.NewDealHandler(workflowService)
	documentHandler := handlers.NewDocumentHandler(documentRepo, disclosureService)
	ndaHandler := handlers.NewNdaHandler(ndaService)
	requestHandler := handlers.NewAccessRequestHandler(requestService)
	auditHandler := handlers.NewAuditHandler(auditService)

	// Setup router
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", authHandler.Refresh)

	// Handle redemption is authenticated by the handle itself
	mux.HandleFunc("GET /api/v1/documents/{id}/download", documentHandler.Download)

	// Authenticated routes
	mux.Handle("GET /api/v1/auth/me", authMw.Authenticate(http.HandlerFunc(authHandler.Me)))
	mux.Handle("GET /api/v1/companies", authMw.Authenticate(http.HandlerFunc(companyHandler.List)))
	mux.Handle("GET /api/v1/deals", authMw.Authenticate(http.HandlerFunc(dealHandler.List)))
	mux.Handle("GET /api/v1/deals/{id}", authMw.Authenticate(http.HandlerFunc(dealHandler.Get)))
	mux.Handle("POST /api/v1/documents/{id}/authorize", authMw.Authenticate(http.HandlerFunc(documentHandler.Authorize)))
	mux.Handle("POST /api/v1/companies/{id}/nda", authMw.Authenticate(http.HandlerFunc(ndaHandler.Accept)))
	mux.Handle("GET /api/v1/companies/{id}/nda", authMw.Authenticate(http.HandlerFunc(ndaHandler.Status)))
	mux.Handle("POST /api/v1/nda/extend", authMw.Authenticate(http.HandlerFunc(ndaHandler.Extend)))
	mux.Handle("POST /api/v1/access-requests", authMw.Authenticate(http.HandlerFunc(requestHandler.Submit)))
	mux.Handle("GET /api/v1/access-requests", authMw.Authenticate(http.HandlerFunc(requestHandler.ListMine)))
	mux.Handle("GET /api/v1/access-requests/{id}", authMw.Authenticate(http.HandlerFunc(requestHandler.Get)))

	// Staff routes
	mux.Handle("POST /api/v1/companies",
		authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(
				http.HandlerFunc(companyHandler.Create),
			),
		),
	)
	mux.Handle("POST /api/v1/deals",
		authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(
				http.HandlerFunc(dealHandler.Create),
			),
		),
	)
	mux.Handle("POST /api/v1/deals/{id}/transition",
		authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(
				http.HandlerFunc(dealHandler.Transition),
			),
		),
	)
	mux.Handle("POST /api/v1/deals/{id}/publish",
		authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(
				http.HandlerFunc(dealHandler.Publish),
			),
		),
	)
	mux.Handle("POST /api/v1/deals/{id}/advance",
		authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(
				http.HandlerFunc(dealHandler.Advance),
			),
		),
	)
	mux.Handle("GET /api/v1/deals/{id}/history",
		authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(
				http.HandlerFunc(dealHandler.StageHistory),
			),
		),
	)
	mux.Handle("GET /api/v1/deals/{id}/completeness",
		authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(
				http.HandlerFunc(dealHandler.Completeness),
			),
		),
	)
	mux.Handle("GET /api/v1/deals/{id}/documents",
		authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(
				http.HandlerFunc(documentHandler.ListByDeal),
			),
		),
	)
	mux.Handle("POST /api/v1/documents",
		authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(
				auditMw.Log("document_create", "document", "Registered document metadata")(
					http.HandlerFunc(documentHandler.Create),
				),
			),
		),
	)
	mux.Handle("PUT /api/v1/documents/{id}/level",
		authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(
				auditMw.Log("document_level_change", "document", "Changed required access level")(
					http.HandlerFunc(documentHandler.UpdateLevel),
				),
			),
		),
	)
	mux.Handle("POST /api/v1/folders",
		authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(
				auditMw.Log("folder_create", "folder", "Created data room folder")(
					http.HandlerFunc(documentHandler.CreateFolder),
				),
			),
		),
	)
	mux.Handle("PUT /api/v1/folders/{id}/applicability",
		authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(
				auditMw.Log("folder_applicability_change", "folder", "Changed folder applicability")(
					http.HandlerFunc(documentHandler.SetFolderApplicability),
				),
			),
		),
	)
	mux.Handle("GET /api/v1/access-requests/pending",
		authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(
				http.HandlerFunc(requestHandler.ListPending),
			),
		),
	)
	mux.Handle("POST /api/v1/access-requests/{id}/decision",
		authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(
				http.HandlerFunc(requestHandler.Decide),
			),
		),
	)
	mux.Handle("GET /api/v1/companies/{id}/nda/history/{user_id}",
		authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(
				http.HandlerFunc(ndaHandler.History),
			),
		),
	)
	mux.Handle("POST /api/v1/nda/{id}/extension-tokens",
		authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(
				http.HandlerFunc(ndaHandler.IssueExtensionToken),
			),
		),
	)

	// Admin routes
	mux.Handle("DELETE /api/v1/nda/{id}",
		authMw.Authenticate(
			rbacMw.RequireRole(models.RoleAdmin)(
				http.HandlerFunc(ndaHandler.Revoke),
			),
		),
	)
	mux.Handle("DELETE /api/v1/documents/{id}",
		authMw.Authenticate(
			rbacMw.RequireRole(models.RoleAdmin)(
				auditMw.Log("document_delete", "document", "Deleted document")(
					http.HandlerFunc(documentHandler.Delete),
				),
			),
		),
	)
	mux.Handle("GET /api/v1/admin/audit",
		authMw.Authenticate(
			rbacMw.RequireRole(models.RoleAdmin)(
				http.HandlerFunc(auditHandler.List),
			),
		),
	)

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, err := w.Write([]byte(`{"status":"unhealthy","database":"error"}`))
			if err != nil {
				slog.Error("Failed to write health check response", "error", err)
				return
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(`{"status":"healthy","version":"` + cfg.App.Version + `"}`))
		if err != nil {
			slog.Error("Failed to write health check response", "error", err)
			return
		}
	})

	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Apply global middleware
	handler := middleware.LoggingMiddleware(
		middleware.SecurityHeaders(
			corsMw.Handler(
				rateLimiter.Limit(mux),
			),
		),
	)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped")
}
