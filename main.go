package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ding-server/api"
	"ding-server/cache"
	"ding-server/config"
	"ding-server/loghandler"
	"ding-server/notify"
	"ding-server/room"
	"ding-server/storage"
	"ding-server/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Print("No .env file found; using environment variables.")
	}

	cfg := config.Load()
	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stderr, slog.LevelInfo)))

	if cfg.AuthBaseURL == "" {
		log.Print("Auth: AUTH_BASE_URL is not set; multiplayer sign-in will be rejected; hotseat rooms still work.")
	} else {
		log.Printf("Auth: configured (base URL: %s)", cfg.AuthBaseURL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Storage: %v", err)
	}
	if store == nil {
		log.Print("Storage: DATABASE_URL is not set; rooms will not survive a restart.")
	}
	defer store.Close()

	events, err := cache.NewPublisher(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Cache: %v", err)
	}
	defer events.Close()

	manager := room.NewManager(cfg, store, events)

	pusher := notify.NewHTTPPusher(cfg.PushEndpoint, cfg.PushAPIKey)
	if pusher == nil {
		log.Print("Push: PUSH_ENDPOINT is not set; turn notifications disabled.")
	}
	var dispatcherPush notify.Pusher
	if pusher != nil {
		dispatcherPush = pusher
	}
	dispatcher := notify.NewDispatcher(store, dispatcherPush, manager,
		time.Duration(cfg.RecheckDelaySec)*time.Second)
	manager.SetNotifier(dispatcher)

	hub := ws.NewHub(cfg, manager)
	go hub.Run(ctx)

	handler := api.NewHandler(cfg, store)
	router := handler.Router()
	router.Get("/ws", hub.ServeWS)

	addr := fmt.Sprintf(":%d", cfg.WSPort)
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Print("Shutdown signal received")
		cancel()
		manager.Shutdown()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("Ding server listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
