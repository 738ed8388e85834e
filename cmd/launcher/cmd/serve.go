package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"token-launcher/internal/handlers"
	"token-launcher/internal/router"
	svc "token-launcher/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the launch status API, live event stream, /health and /metrics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := services()
		if err != nil {
			return err
		}
		if cfg.Logging.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		var stream *svc.LaunchStream
		if c.NATSClient != nil {
			stream = svc.NewLaunchStream(logger)
			go stream.Run(cmd.Context())
			sub, err := c.NATSClient.SubscribeLaunchEvents(stream.Broadcast)
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()
		} else {
			logger.Warn("NATS not connected, live launch stream disabled")
		}

		engine := router.SetupRouter(router.Options{
			Launches:   handlers.NewLaunchHandler(c.LaunchRuns, cfg.Chain(), logger),
			Health:     c.HealthChecks(),
			Stream:     stream,
			AllowedIPs: cfg.Server.AllowedIPs,
			Logger:     logger,
		})
		srv := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.WithField("addr", srv.Addr).Info("Status API listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}

		logger.Info("Shutting down status API")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}
