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

	"ventas-sync/internal/config"
	"ventas-sync/internal/connectivity"
	"ventas-sync/internal/handler"
	"ventas-sync/internal/localstore"
	"ventas-sync/internal/middleware"
	"ventas-sync/internal/repository"
	"ventas-sync/internal/service"
	"ventas-sync/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := localstore.Open(cfg.Sync.LocalDBPath)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer store.Close()

	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Couch.User,
		cfg.Couch.Password,
		cfg.Couch.Host,
		cfg.Couch.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		log.Fatalf("Failed to create CouchDB client: %v", err)
	}

	ventaRepo := repository.NewVentaRepository(client, cfg.Couch.Name)
	checker := connectivity.NewProbe(ventaRepo, cfg.Sync.ProbeTimeout)

	// The database may be unreachable at startup; that is the whole point of
	// this app, so only ensure it exists when we can actually see it.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), cfg.Sync.ProbeTimeout)
	if checker.IsOnline(startupCtx) {
		ensureDatabase(client, cfg.Couch.Name)
	} else {
		log.Printf("Starting offline: remote store not reachable")
	}
	cancelStartup()

	queueService := service.NewQueueService(store, ventaRepo, checker)
	reconciler := service.NewReconcilerService(store, ventaRepo, checker, queueService, cfg.Sync.CacheMaxAge)
	ventasService := service.NewVentasService(ventaRepo, checker, queueService, reconciler)
	statsService := service.NewStatsService(ventasService)
	authService := service.NewAuthService(cfg.Auth.PINHash, cfg.JWT.Secret, cfg.JWT.Expiration)

	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxClients,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
	)
	go wsManager.Run()

	ventasService.SetNotifier(func(event string) {
		if msg, err := websocket.NewMessage(websocket.MessageType(event), nil); err == nil {
			wsManager.Broadcast(msg)
		}
	})

	if _, err := ventasService.Refresh(context.Background()); err != nil {
		log.Printf("Initial load failed: %v", err)
	}

	unsubscribe, err := ventasService.Subscribe(context.Background())
	if err != nil {
		log.Printf("Change subscription unavailable: %v", err)
		unsubscribe = func() {}
	}
	defer unsubscribe()

	ventasHandler := handler.NewVentasHandler(ventasService)
	syncHandler := handler.NewSyncHandler(queueService, ventasService, checker, wsManager)
	statsHandler := handler.NewStatsHandler(statsService)
	authHandler := handler.NewAuthHandler(authService)
	backupHandler := handler.NewBackupHandler(ventasService, queueService)
	wsHandler := handler.NewWebSocketHandler(wsManager, cfg.JWT.Secret)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	protected.HandleFunc("/ventas/failed", ventasHandler.ListFailed).Methods("GET", "OPTIONS")
	protected.HandleFunc("/ventas/failed/{id}/retry", ventasHandler.RetryFailed).Methods("POST", "OPTIONS")
	protected.HandleFunc("/ventas/failed/{id}", ventasHandler.DiscardFailed).Methods("DELETE", "OPTIONS")

	protected.HandleFunc("/ventas", ventasHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/ventas", ventasHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/ventas/{id}", ventasHandler.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/ventas/{id}", ventasHandler.Delete).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/ventas/{id}/pagado", ventasHandler.UpdatePagado).Methods("PATCH", "OPTIONS")
	protected.HandleFunc("/ventas/{id}/abonos", ventasHandler.AddAbono).Methods("POST", "OPTIONS")

	protected.HandleFunc("/sync", syncHandler.TriggerSync).Methods("POST", "OPTIONS")
	protected.HandleFunc("/sync/status", syncHandler.Status).Methods("GET", "OPTIONS")
	protected.HandleFunc("/sync/pending", syncHandler.ListPending).Methods("GET", "OPTIONS")

	protected.HandleFunc("/stats", statsHandler.General).Methods("GET", "OPTIONS")
	protected.HandleFunc("/backup", backupHandler.Export).Methods("GET", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)
	r.HandleFunc("/health", healthHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting ventas-sync on %s (env: %s)", addr, cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}

func ensureDatabase(client *kivik.Client, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.DBExists(ctx, name)
	if err != nil {
		log.Printf("Failed to check database existence: %v", err)
		return
	}
	if !exists {
		if err := client.CreateDB(ctx, name); err != nil {
			log.Printf("Failed to create database: %v", err)
			return
		}
		log.Printf("Created database: %s", name)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"ventas-sync"}`))
}
