package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/digitaltembo/Crime-And-Dining/engine"
	"github.com/digitaltembo/Crime-And-Dining/geo"
	"github.com/digitaltembo/Crime-And-Dining/store"
	"github.com/golang/geo/r2"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newNearCmd(g *globalFlags) *cobra.Command {
	var (
		dbPath, runID string
		lat, lng      float64
		x, y          float64
		radius        float64
		limit         int
	)
	cmd := &cobra.Command{
		Use:   "near",
		Short: "List the establishments of a stored run within a radius",
		Long: `Answer a radius search from the establishment_points table of a stored run.
The center is given either in degrees (--lat/--lng) or in projected meters
(--x/--y).

Examples:
  riskjoin near --db runs.sqlite --run RUN --lat 42.3554 --lng -71.0605 --radius 100
  riskjoin near --db runs.sqlite --run RUN --x 1200 --y 3400 --radius 50 --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if cmd.Flags().Changed("db") {
				cfg.Store.Path = dbPath
			}
			if cfg.Store.Path == "" || runID == "" {
				return errors.New("near: --db and --run are required")
			}
			center := r2.Point{X: x, Y: y}
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
				center = geo.NewProjection(cfg.Origin()).Project(geo.LatLng{Lat: lat, Lng: lng})
			}
			st, err := store.Open(cmd.Context(), engine.FileDSN(cfg.Store.Path), logger)
			if err != nil {
				return err
			}
			defer multierr.AppendInvoke(&err, multierr.Close(st))
			matches, err := st.Within(cmd.Context(), runID, center, radius, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDISTANCE")
			for _, m := range matches {
				fmt.Fprintf(tw, "%s\t%.1f\n", m.ID, m.Distance)
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVar(&dbPath, "db", "", "SQLite database written by run --db")
	f.StringVar(&runID, "run", "", "Run id")
	f.Float64Var(&lat, "lat", 0, "Center latitude")
	f.Float64Var(&lng, "lng", 0, "Center longitude")
	f.Float64Var(&x, "x", 0, "Center x in projected meters")
	f.Float64Var(&y, "y", 0, "Center y in projected meters")
	f.Float64Var(&radius, "radius", 100, "Search radius in meters")
	f.IntVar(&limit, "limit", 0, "Maximum number of results, 0 for all")
	return cmd
}
