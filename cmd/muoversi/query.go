package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gsarrco/MuoVErsi/internal/config"
	"github.com/gsarrco/MuoVErsi/internal/gtfs"
	"github.com/gsarrco/MuoVErsi/internal/locator"
	"github.com/gsarrco/MuoVErsi/internal/navstate"
	"github.com/gsarrco/MuoVErsi/internal/render"
	"github.com/gsarrco/MuoVErsi/internal/schedule"
)

var searchCmd = &cobra.Command{
	Use:   "search [name]",
	Short: "Find stops by name or, with --lat/--lon, by position",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := modeFlag(cmd)
		if err != nil {
			return err
		}
		var q locator.Query
		if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
			lat, _ := cmd.Flags().GetFloat64("lat")
			lon, _ := cmd.Flags().GetFloat64("lon")
			q = locator.PointQuery(lat, lon)
		} else if len(args) == 1 {
			q = locator.TextQuery(args[0])
		} else {
			return fmt.Errorf("give a stop name or --lat and --lon")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, err := openMode(ctx, cfg, mode)
		if err != nil {
			return err
		}
		defer store.Close()

		cands, err := locator.New(store, cfg.HeadsignCacheTTL()).Search(ctx, mode, q)
		if err != nil {
			return err
		}
		if len(cands) == 0 {
			fmt.Println("Nessuna fermata trovata.")
			return nil
		}
		for _, row := range render.Candidates(cands) {
			fmt.Println(strings.Join(row, ""))
		}
		return nil
	},
}

var departuresCmd = &cobra.Command{
	Use:   "departures STOP_ID",
	Short: "Print the departures of a stop for one service day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := modeFlag(cmd)
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		date, err := dateFlag(cmd, cfg.Location)
		if err != nil {
			return err
		}
		from, _ := cmd.Flags().GetString("from")
		l := navstate.Listing{StopID: args[0], Date: date, TimeFilter: from}
		if _, err := navstate.Encode(l); err != nil {
			return err
		}

		ctx := cmd.Context()
		store, err := openMode(ctx, cfg, mode)
		if err != nil {
			return err
		}
		defer store.Close()

		q := schedule.New(store, nil)
		stop, err := q.Stop(ctx, mode, l.StopID)
		if err != nil {
			return err
		}
		deps, err := q.Departures(ctx, mode, l.StopID, l.Date, l.TimeFilter)
		if err != nil {
			return err
		}
		msg, _ := render.New(cfg.MaxDepartures).Listing(stop, deps, l, render.NewShown(1))
		printMessage(msg)
		return nil
	},
}

var itineraryCmd = &cobra.Command{
	Use:   "itinerary TRIP_ID",
	Short: "Print the remaining stops of a trip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := modeFlag(cmd)
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		date, err := dateFlag(cmd, cfg.Location)
		if err != nil {
			return err
		}
		seq, _ := cmd.Flags().GetInt("seq")
		line, _ := cmd.Flags().GetString("line")

		ctx := cmd.Context()
		store, err := openMode(ctx, cfg, mode)
		if err != nil {
			return err
		}
		defer store.Close()

		visits, err := schedule.New(store, nil).Itinerary(ctx, mode, args[0], seq)
		if err != nil {
			return err
		}
		printMessage(render.New(cfg.MaxDepartures).Itinerary(visits, line, date, ""))
		return nil
	},
}

func init() {
	searchCmd.Flags().Float64("lat", 0, "latitude")
	searchCmd.Flags().Float64("lon", 0, "longitude")

	departuresCmd.Flags().String("date", "", "service day as YYYYMMDD (default today)")
	departuresCmd.Flags().String("from", schedule.FullDay, "only departures from HHMM")

	itineraryCmd.Flags().String("date", "", "service day as YYYYMMDD (default today)")
	itineraryCmd.Flags().Int("seq", 0, "first stop sequence to print")
	itineraryCmd.Flags().String("line", "", "line name for the header")

	rootCmd.AddCommand(searchCmd, departuresCmd, itineraryCmd)
}

func dateFlag(cmd *cobra.Command, loc *time.Location) (gtfs.ServiceDate, error) {
	v, _ := cmd.Flags().GetString("date")
	if v == "" {
		return gtfs.DateOf(time.Now().In(loc)), nil
	}
	return gtfs.ParseServiceDate(v)
}

func printMessage(msg render.Message) {
	fmt.Println(msg.Text)
	for _, row := range msg.Inline {
		for _, b := range row {
			fmt.Printf("  [%s] %s\n", b.Label, b.Payload)
		}
	}
}
