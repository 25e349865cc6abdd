package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/latency-space/porkchop/internal/bodies"
	"github.com/latency-space/porkchop/internal/porkchop"
)

var (
	gridReq    porkchop.Request
	gridFormat string
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Compute one porkchop grid and print it",
	Long: `
Compute a single porkchop grid and write it to stdout, either as CSV (one
record per reachable departure/arrival pair) or as the JSON document the
API returns.

Examples:
  # Earth to Mars, 2026 window, offline ephemerides
  porkchop grid --source elements --from earth --to mars \
    --depart-start 2026-09-01 --depart-end 2026-12-31 \
    --arrive-start 2027-04-01 --arrive-end 2027-10-31 --resolution 40
`,
	Args: cobra.NoArgs,
	RunE: runGrid,
}

var bodiesCmd = &cobra.Command{
	Use:   "bodies",
	Short: "List the known body names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), strings.Join(bodies.Names(), "\n"))
		return err
	},
}

func init() {
	f := gridCmd.Flags()
	f.StringVar(&gridReq.DepartureBody, "from", "earth", "departure body")
	f.StringVar(&gridReq.ArrivalBody, "to", "mars", "arrival body")
	f.StringVar(&gridReq.DepartureStart, "depart-start", "", "first departure date (YYYY-MM-DD)")
	f.StringVar(&gridReq.DepartureEnd, "depart-end", "", "last departure date")
	f.StringVar(&gridReq.ArrivalStart, "arrive-start", "", "first arrival date")
	f.StringVar(&gridReq.ArrivalEnd, "arrive-end", "", "last arrival date")
	f.IntVar(&gridReq.Resolution, "resolution", 0, "intervals per window, 5-100 (default from config)")
	f.StringVar(&gridFormat, "format", "csv", "output format: csv or json")
}

func runGrid(cmd *cobra.Command, _ []string) error {
	if gridFormat != "csv" && gridFormat != "json" {
		return fmt.Errorf("invalid format %q: must be csv or json", gridFormat)
	}

	grid, err := newBuilder(cfg, nil, logger).Build(cmd.Context(), gridReq)
	if err != nil {
		return err
	}

	if i, j, ok := grid.Best(); ok {
		best := grid.At(i, j)
		logger.Info("Lowest delta-v transfer",
			"departure", grid.Departure.Dates[i], "arrival", grid.Arrival.Dates[j],
			"deltaV", best.DeltaV, "c3", best.C3, "tof", best.TimeOfFlight)
	} else {
		logger.Warn("No transfer found in the requested windows")
	}

	out := cmd.OutOrStdout()
	if gridFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(grid)
	}
	return grid.WriteCSV(out)
}
