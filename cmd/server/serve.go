package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	router "github.com/dkeye/songroom/internal/adapters/http"
	"github.com/dkeye/songroom/internal/app"
	"github.com/dkeye/songroom/internal/app/orch"
	"github.com/dkeye/songroom/internal/blob"
	"github.com/dkeye/songroom/internal/config"
	"github.com/dkeye/songroom/internal/core"
	"github.com/dkeye/songroom/internal/identity"
	"github.com/dkeye/songroom/internal/notify"
	"github.com/dkeye/songroom/internal/store/sqlite"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	blobs, err := blob.NewLocalStore(cfg.UploadDir, cfg.PublicUploadPath)
	if err != nil {
		return err
	}
	tokens, err := identity.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	epoch := uuid.NewString()
	hub := notify.NewHub(cfg.SubscriberBuffer, notify.PolicyFor(cfg.Backpressure))
	var publisher core.Publisher = hub
	if cfg.ValkeyAddr != "" {
		broker, err := notify.NewValkeyBroker(cfg.ValkeyAddr)
		if err != nil {
			return err
		}
		defer broker.Close()
		bridge := notify.NewBridge(broker, hub, epoch, 0)
		publisher = bridge
		go func() {
			if err := bridge.Run(ctx); err != nil {
				log.Error().Err(err).Str("module", "notify.bridge").Msg("bridge stopped, falling back to polling")
			}
		}()
		log.Info().Str("addr", cfg.ValkeyAddr).Msg("valkey bridge enabled")
	}

	rooms := app.NewRoomRegistry(app.RegistryDeps{Store: store, Publisher: publisher, Epoch: epoch})
	if _, err := rooms.Rehydrate(ctx); err != nil {
		return err
	}

	o := &orch.Orchestrator{Rooms: rooms, Blobs: blobs, Hub: hub}
	r := router.SetupRouter(ctx, cfg, o, tokens)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("songroom server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}
