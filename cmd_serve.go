package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/log/level"
	"github.com/spf13/cobra"

	"adbfleet/api"
	"adbfleet/service"
	"adbfleet/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var retries int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the fleet over HTTP and websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("log-level") {
				a.logLevel = "info"
			}
			logFile, err := a.setupLogging(cmd.ErrOrStderr())
			if err != nil {
				level.Warn(a.logger).Log("msg", "file logging disabled", "err", err)
			} else {
				defer logFile.Close()
			}

			cfg, err := a.config()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			history, err := store.Open(cfg.History.Database, a.logger)
			if err != nil {
				return err
			}
			defer history.Close()

			hub := api.NewWebSocketHub(a.logger)
			go hub.Run(ctx)

			d, err := a.dispatcher(service.WithObserver(service.RecordObserver(history.Save, hub.Publish)))
			if err != nil {
				return err
			}
			queue := service.NewQueue(d, service.DefaultQueueSize, a.logger)
			go queue.Run(ctx)
			defer queue.Close()

			deviceManager := service.NewDeviceManager(d, a.logger)
			go func() {
				if err := deviceManager.ScanDevices(ctx); err != nil {
					level.Warn(a.logger).Log("msg", "initial device scan failed", "err", err)
					return
				}
				level.Info(a.logger).Log("msg", "initial device scan", "devices", len(deviceManager.GetAllDevices()))
			}()

			gin.SetMode(gin.ReleaseMode)
			router := gin.New()
			router.Use(gin.Recovery())
			handler := api.NewHandler(d, deviceManager,
				api.WithHistory(history),
				api.WithQueue(queue),
				api.WithSuperuserRetries(retries),
				api.WithLogger(a.logger),
			)
			api.SetupRoutes(router, handler, hub)

			srv := &http.Server{Addr: addr, Handler: router}
			errc := make(chan error, 1)
			go func() {
				level.Info(a.logger).Log("msg", "server starting", "addr", addr, "workers", d.Workers())
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			level.Info(a.logger).Log("msg", "shutting down")
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancelShutdown()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	cmd.Flags().IntVar(&retries, "su-retries", 0, "re-run failed elevated shell requests this many times")
	return cmd
}
