package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gsarrco/MuoVErsi/internal/config"
	"github.com/gsarrco/MuoVErsi/internal/db"
	"github.com/gsarrco/MuoVErsi/internal/service"
)

var rootCmd = &cobra.Command{
	Use:   "muoversi",
	Short: "Transit timetable bot for the Venice area",
	Long: `muoversi answers chat users looking for bus and waterbus departures.
The serve command runs the bot behind a NATS gateway; the other commands
query the schedule databases directly.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("service", "s", service.Automobilistico.String(), "transport mode: automobilistico or navigazione")
}

// modeFlag reads the --service flag.
func modeFlag(cmd *cobra.Command) (service.Mode, error) {
	v, _ := cmd.Flags().GetString("service")
	return service.Parse(v)
}

// openMode connects to the schedule database of a single mode.
func openMode(ctx context.Context, cfg *config.Config, mode service.Mode) (*db.Store, error) {
	targets := map[service.Mode]string{mode: cfg.Targets()[mode]}
	return db.Connect(ctx, cfg.DatabaseURL, targets)
}
