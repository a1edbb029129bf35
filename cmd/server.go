package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meganet/portal/internal/audit"
	"github.com/meganet/portal/internal/chatbox"
	"github.com/meganet/portal/internal/flows"
	"github.com/meganet/portal/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the portal HTTP server",
	Long:  `Starts the portal REST API: topics, questions, guided flows and the audit trail.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		metricsPath := ""
		if cfg.Metrics.Enabled {
			metricsPath = cfg.Metrics.Path
		}
		srv := server.New(server.Config{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			BasePath:       cfg.Server.BasePath,
			AllowAll:       cfg.Server.AllowAllOrigins,
			RequestTimeout: cfg.Server.RequestTimeout,
			RequireToken:   cfg.Auth.RequireToken,
			MetricsPath:    metricsPath,
		}, a.db, a.log, a.tokens, a.metrics)

		registerAllRoutes(srv, a)

		go func() {
			<-ctx.Done()
			a.log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(os.Stderr, "portal server %s starting on %s\n", Version, srv.Addr())
		fmt.Fprintf(os.Stderr, "  Database: %s\n", a.db.Path())
		if a.redis != nil {
			fmt.Fprintf(os.Stderr, "  Step cache: %s\n", cfg.Cache.RedisAddr)
		}

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// registerAllRoutes wires up all feature routes on the API router.
func registerAllRoutes(srv *server.Server, a *app) {
	r := srv.API()

	// Guided flows
	flows.RegisterRoutes(r, a.flows, a.engine, a.log.With("component", "flows"))

	// Topics and questions
	chatbox.RegisterRoutes(r, a.registry, a.log.With("component", "chatbox"))

	// Audit trail
	audit.RegisterRoutes(r, a.audit, a.log.With("component", "audit"))
}

func init() {
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "port to listen on (overrides config)")
	rootCmd.AddCommand(serverCmd)
}
