package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shapekiln/kiln/internal/api"
	"github.com/shapekiln/kiln/internal/api/handlers"
	"github.com/shapekiln/kiln/internal/config"
	"github.com/shapekiln/kiln/internal/core"
	"github.com/shapekiln/kiln/internal/store"
	"github.com/shapekiln/kiln/internal/webhook"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the kiln API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	kv, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer kv.Close()
	kv.StartPurge()

	jobs := store.NewJobStore(kv, cfg.Retention())

	var notifier core.Notifier
	if len(cfg.Webhooks.URLs) > 0 {
		sender := webhook.NewSender(&cfg.Webhooks)
		sender.Start()
		defer sender.Stop()
		notifier = sender
	}

	lifecycle := core.NewLifecycle(jobs, notifier)

	router := api.NewRouter(
		handlers.NewOrderHandler(lifecycle, jobs, &cfg.Pricing),
		handlers.NewPreviewHandler(&cfg.Pricing),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("kiln API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	return nil
}
