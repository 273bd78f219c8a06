package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gsarrco/MuoVErsi/internal/config"
	"github.com/gsarrco/MuoVErsi/internal/db"
	"github.com/gsarrco/MuoVErsi/internal/gateway"
	"github.com/gsarrco/MuoVErsi/internal/locator"
	"github.com/gsarrco/MuoVErsi/internal/metrics"
	"github.com/gsarrco/MuoVErsi/internal/render"
	"github.com/gsarrco/MuoVErsi/internal/schedule"
	"github.com/gsarrco/MuoVErsi/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot behind the NATS gateway",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cfg *config.Config) error {
	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := db.Connect(ctx, cfg.DatabaseURL, cfg.Targets())
	if err != nil {
		return err
	}
	defer store.Close()

	mcol := metrics.NewCollector(cfg.MaxDepartures)
	if cfg.MetricsAddr != "" {
		srv := mcol.Serve(cfg.MetricsAddr, store.Ping)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	nav := session.NewNavigator(
		locator.New(store, cfg.HeadsignCacheTTL()),
		schedule.New(store, mcol),
		render.New(cfg.MaxDepartures),
		cfg.Location,
	)
	mgr := session.NewManager(nav, cfg.ShownPages, cfg.SessionTTL(), mcol)
	mgr.StartPruner(ctx)

	gw, err := gateway.NewNATSGateway(cfg.NATSURL, gateway.Options{
		UpdatesSubject: cfg.UpdatesSubject,
		RepliesPrefix:  cfg.RepliesPrefix,
		QueueGroup:     cfg.QueueGroup,
		LogSubjects:    cfg.LogNATSSubjects,
	}, mgr, mcol)
	if err != nil {
		return err
	}
	defer gw.Close()

	if err := gw.Run(ctx); err != nil {
		return err
	}
	log.Println("shutdown complete")
	return nil
}
