package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/internal/api"
	"github.com/satriahrh/talking-avatar/internal/janitor"
	"github.com/satriahrh/talking-avatar/internal/websocket"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Warn("Failed to close providers", zap.Error(err))
				}
			}()

			// Create Echo instance
			e := echo.New()
			e.HideBanner = true

			// Middleware
			e.Use(middleware.Logger())
			e.Use(middleware.Recover())
			e.Use(middleware.CORS())
			e.Use(middleware.BodyLimit("25M"))

			hub := websocket.NewHub(a.conversation, logger)
			go hub.Run(ctx)

			sweeper := janitor.NewArtifactCleanupService(a.store, janitor.Config{
				Interval: cfg.SweepInterval,
				TTL:      cfg.ArtifactTTL,
			}, logger)
			sweeper.Start()
			defer sweeper.Stop()

			api.InitRoutes(e, api.Dependencies{
				Conversation: a.conversation,
				Knowledge:    a.knowledge,
				Voices:       a.voices,
				Hub:          hub,
			}, logger)

			// Graceful shutdown
			serverErr := make(chan error, 1)
			go func() {
				if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			logger.Info("Server started",
				zap.String("port", cfg.Port),
				zap.Bool("chatConfigured", a.conversation.Configured()))

			select {
			case <-ctx.Done():
			case err := <-serverErr:
				return err
			}

			logger.Info("Server is shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := e.Shutdown(shutdownCtx); err != nil {
				return err
			}

			logger.Info("Server exited")
			return nil
		},
	}
}
