package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Vaibhav-59/CodeVerse/internal/config"
	"github.com/Vaibhav-59/CodeVerse/internal/handler"
	"github.com/Vaibhav-59/CodeVerse/internal/hub"
	"github.com/Vaibhav-59/CodeVerse/internal/model/user"
	"github.com/Vaibhav-59/CodeVerse/internal/service/ai"
	"github.com/Vaibhav-59/CodeVerse/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	projects, cleanup, err := newStore(cfg.Store)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer cleanup()

	if err := seedUsers(ctx, projects, cfg.Store); err != nil {
		log.Fatalf("failed to seed users: %v", err)
	}

	var assistant *ai.Service
	if cfg.AI.Enabled() {
		assistant, err = ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize assistant: %v", err)
			log.Println("continuing without assistant functionality")
		} else {
			log.Println("assistant service initialized")
		}
	} else {
		log.Println("assistant credentials not configured, rooms run without the assistant")
	}

	if !cfg.Auth.Enabled() {
		log.Println("warning: JWT_SECRET not set, tokens are verified against an empty key")
	}

	rooms := hub.New()
	router := handler.NewRouter(*cfg, projects, rooms, assistant)

	startServer(ctx, cfg.Server, router)
}

// newStore selects the persistence engine. An empty DB_PATH keeps everything
// in memory, which is what the tests and quick local runs want.
func newStore(cfg config.StoreConfig) (store.Store, func(), error) {
	if cfg.Path == "" {
		log.Println("DB_PATH not set, using in-memory store")
		return store.NewMemory(), func() {}, nil
	}

	db, err := store.NewSQLite(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("sqlite store opened at %s", cfg.Path)
	return db, func() { _ = db.Close() }, nil
}

func seedUsers(ctx context.Context, projects store.Store, cfg config.StoreConfig) error {
	seed := user.Seed()
	if cfg.SeedFile != "" {
		loaded, err := user.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		seed = loaded
	}
	return projects.SeedUsers(ctx, seed)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("CodeVerse backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
