package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskforge-sync-server/internal/config"
	"taskforge-sync-server/internal/detector"
	"taskforge-sync-server/internal/domain"
	"taskforge-sync-server/internal/handler"
	"taskforge-sync-server/internal/middleware"
	"taskforge-sync-server/internal/repository"
	"taskforge-sync-server/internal/service"
	"taskforge-sync-server/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		log.Fatalf("Failed to connect to CouchDB: %v", err)
	}

	exists, err := client.DBExists(context.Background(), cfg.Database.Name)
	if err != nil {
		log.Fatalf("Failed to check database existence: %v", err)
	}

	if !exists {
		if err := client.CreateDB(context.Background(), cfg.Database.Name); err != nil {
			log.Fatalf("Failed to create database: %v", err)
		}
		log.Printf("Created database: %s", cfg.Database.Name)
	}

	revisionStore := repository.NewRevisionStore(client, cfg.Database.Name)
	resolutionRepo := repository.NewResolutionRepository(client, cfg.Database.Name)
	deviceRepo := repository.NewDeviceRepository(client, cfg.Database.Name)

	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxConnPerDevice,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
	)
	go wsManager.Run()

	det := detector.New()
	classifier := detector.NewClassifier(detector.DefaultFieldClasses(), cfg.Conflict.AutoResolveThreshold)

	engine := service.NewResolutionService(
		revisionStore,
		resolutionRepo,
		det,
		classifier,
		domain.TaskSchema(),
		cfg.Conflict.UndoGraceWindow,
		wsManager,
	)
	deviceService := service.NewDeviceService(deviceRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	scanService := service.NewScanService(revisionStore, engine, cfg.Conflict.ScanInterval, service.RetryPolicy{
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		MaxElapsedTime:  cfg.Retry.MaxElapsedTime,
	})

	conflictHandler := handler.NewConflictHandler(engine)
	deviceHandler := handler.NewDeviceHandler(deviceService)
	wsHandler := handler.NewWebSocketHandler(wsManager, cfg.JWT.Secret)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/devices/enroll", deviceHandler.Enroll).Methods("POST", "OPTIONS")
	api.HandleFunc("/devices/login", deviceHandler.Login).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	protected.HandleFunc("/devices", deviceHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/devices/{id}", deviceHandler.Revoke).Methods("DELETE", "OPTIONS")

	protected.HandleFunc("/conflicts", conflictHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/conflicts/{id}", conflictHandler.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/conflicts/{id}/resolve", conflictHandler.Resolve).Methods("POST", "OPTIONS")
	protected.HandleFunc("/resolutions/{id}/undo", conflictHandler.Undo).Methods("POST", "OPTIONS")
	protected.HandleFunc("/documents/{id}/resolutions", conflictHandler.History).Methods("GET", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)

	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/", rootHandler).Methods("GET")

	scanCtx, cancelScan := context.WithCancel(context.Background())
	defer cancelScan()
	if cfg.Conflict.ScanEnabled {
		go scanService.Run(scanCtx)
	}

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting Taskforge Sync Server on %s (env: %s)", addr, cfg.Server.Env)
		log.Printf("Connected to CouchDB at %s:%s", cfg.Database.Host, cfg.Database.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancelScan()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"taskforge-sync-server"}`))
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"Taskforge Sync Server API","version":"1.0.0","endpoints":{"/api/v1/devices/enroll":"POST","/api/v1/conflicts":"GET (protected)","/api/v1/conflicts/{id}/resolve":"POST (protected)"}}`))
}
