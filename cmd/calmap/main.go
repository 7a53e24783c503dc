package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"calmap/internal/areas"
	"calmap/internal/buildings"
	"calmap/internal/cache"
	"calmap/internal/config"
	"calmap/internal/handler"
	"calmap/internal/middleware"
	"calmap/internal/projects"
	"calmap/internal/query"
	"calmap/pkg/calgaryapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting calmap server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"redis_enabled", cfg.RedisEnabled,
		"projects_enabled", cfg.DatabaseURL != "",
	)

	catalog, err := areas.NewCatalog()
	if err != nil {
		logger.Error("invalid area catalog", "error", err)
		os.Exit(1)
	}

	var bboxCache cache.Store
	if cfg.RedisEnabled {
		redisCache, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL, logger)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
		bboxCache = redisCache
	} else {
		fileCache, err := cache.NewFileCache(cfg.CacheDir, cfg.CacheTTL, logger)
		if err != nil {
			logger.Error("failed to init file cache", "error", err)
			os.Exit(1)
		}
		bboxCache = fileCache
	}

	zoneCache := cache.NewZoneCache(cfg.ZoneCacheTTL)
	apiClient := calgaryapi.New(cfg.CalgaryAPIBaseURL, logger)
	service := buildings.NewService(apiClient, bboxCache, zoneCache, catalog, logger)
	interpreter := query.NewInterpreter(cfg.HuggingFaceToken, logger)

	var projectStore *projects.Store
	if cfg.DatabaseURL != "" {
		projectStore, err = projects.NewStore(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to connect to project store", "error", err)
			os.Exit(1)
		}
		defer projectStore.Close()
	} else {
		logger.Info("project store disabled, DATABASE_URL not set")
	}

	buildingsHandler := handler.NewBuildingsHandler(service, catalog, logger)
	projectsHandler := handler.NewProjectsHandler(projectStore, logger)
	queryHandler := handler.NewQueryHandler(interpreter, logger)
	wsHandler := handler.NewWSHandler(service, logger)
	healthHandler := handler.NewHealthHandler(catalog, zoneCache)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/buildings", buildingsHandler.GetBuildings)
	mux.HandleFunc("GET /api/target-areas", buildingsHandler.ListTargetAreas)
	mux.HandleFunc("GET /api/building-zones", buildingsHandler.ListBuildingZones)

	mux.HandleFunc("POST /api/users", projectsHandler.CreateUser)
	mux.HandleFunc("GET /api/users", projectsHandler.ListUsers)
	mux.HandleFunc("GET /api/users/{username}/projects", projectsHandler.UserProjects)
	mux.HandleFunc("POST /api/projects", projectsHandler.SaveProject)
	mux.HandleFunc("GET /api/projects/{id}", projectsHandler.GetProject)
	mux.HandleFunc("DELETE /api/projects/{id}", projectsHandler.DeleteProject)

	mux.HandleFunc("POST /api/query/interpret", queryHandler.Interpret)
	mux.HandleFunc("GET /api/query/filters", queryHandler.AvailableFilters)

	mux.HandleFunc("/api/ws", wsHandler.ServeWS)

	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerWindow, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger)

	var root http.Handler = mux
	root = limiter.Middleware(root)
	root = handler.GzipMiddleware(root)
	root = handler.CORSMiddleware(root)
	root = handler.RequestIDMiddleware(root)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
