package main

import (
	"context"
	"errors"
	"log"
	oshttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"artel/internal/api"
	"artel/internal/auth"
	"artel/internal/config"
	"artel/internal/directory"
	"artel/internal/http"
	"artel/internal/models"
	"artel/internal/storage"
	"artel/internal/ws"

	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	bbStorage, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = bbStorage.Close() }()

	authService := auth.NewService(ctx, bbStorage)

	// The hub and the directory reference each other: the directory
	// hydrates rooms whose broadcasts fan out through the hub.
	var hub *ws.Hub
	dir := directory.New(directory.Config{
		Store: bbStorage,
		Broadcast: func(roomID string, ev models.ServerEvent) {
			hub.BroadcastRoom(roomID, ev)
		},
	})
	hub = ws.NewHub(dir, authService)

	apiHandlers := api.New(authService, hub, bbStorage)
	wsServer := ws.NewServer(hub)
	apiServer := http.NewAPIServer(apiHandlers, wsServer, cfg.APIAddr)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := apiServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}

		// Let in-flight best-effort persists finish before closing the db.
		dir.Wait()
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
