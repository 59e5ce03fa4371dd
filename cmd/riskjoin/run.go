package main

import (
	"context"
	"fmt"
	"os"

	"github.com/digitaltembo/Crime-And-Dining/config"
	"github.com/digitaltembo/Crime-And-Dining/engine"
	"github.com/digitaltembo/Crime-And-Dining/export"
	"github.com/digitaltembo/Crime-And-Dining/geo"
	"github.com/digitaltembo/Crime-And-Dining/index"
	"github.com/digitaltembo/Crime-And-Dining/join"
	"github.com/digitaltembo/Crime-And-Dining/logging"
	"github.com/digitaltembo/Crime-And-Dining/record"
	"github.com/digitaltembo/Crime-And-Dining/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func newRunCmd(g *globalFlags) *cobra.Command {
	var (
		food, crime, locs  string
		foodOut, crimeOut  string
		radius             float64
		dbPath, metricsOut string
		indexKind          string
		matchedOnly        bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Join establishments with incidents and write Food.csv and Crime.csv",
		Long: `Index every located establishment, probe each incident within the join
radius and accumulate a crime cost per establishment.

Examples:
  riskjoin run --config riskjoin.yaml
  riskjoin run --food licenses.csv --crime incidents.csv --radius 150
  riskjoin run --db runs.sqlite --metrics-out metrics.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			flags := cmd.Flags()
			override := func(name string, dst *string, v string) {
				if flags.Changed(name) {
					*dst = v
				}
			}
			override("food", &cfg.Inputs.Food, food)
			override("crime", &cfg.Inputs.Crime, crime)
			override("locs", &cfg.Inputs.AddressBook, locs)
			override("food-out", &cfg.Outputs.Food, foodOut)
			override("crime-out", &cfg.Outputs.Crime, crimeOut)
			override("db", &cfg.Store.Path, dbPath)
			override("metrics-out", &cfg.Outputs.Metrics, metricsOut)
			override("index", &cfg.Index.Kind, indexKind)
			if flags.Changed("radius") {
				cfg.Join.Radius = radius
			}
			if flags.Changed("matched-only") {
				cfg.Outputs.MatchedOnly = matchedOnly
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			res, err := runJoin(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "establishments: %d indexed, %d skipped\n", res.Stats.Establishments, res.Stats.Skipped)
			fmt.Fprintf(out, "incidents: %d probed, %d retained\n", res.Stats.Incidents, res.Stats.Retained)
			if res.RunID != "" {
				fmt.Fprintf(out, "run: %s\n", res.RunID)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&food, "food", "", "Food establishment licenses CSV")
	f.StringVar(&crime, "crime", "", "Crime incident reports CSV")
	f.StringVar(&locs, "locs", "", "Address book JSON for establishments without a location")
	f.StringVar(&foodOut, "food-out", "", "Output path of the establishment CSV")
	f.StringVar(&crimeOut, "crime-out", "", "Output path of the incident CSV")
	f.Float64Var(&radius, "radius", join.DefaultRadius, "Join radius in meters")
	f.StringVar(&dbPath, "db", "", "SQLite database that stores the run")
	f.StringVar(&metricsOut, "metrics-out", "", "Write join metrics in Prometheus text format")
	f.StringVar(&indexKind, "index", "", "Index kind persisted for near queries: auto, quad, brute, rtree")
	f.BoolVar(&matchedOnly, "matched-only", false, "Only write incidents near an establishment to the incident CSV")
	return cmd
}

type runResult struct {
	RunID     string
	Stats     join.Stats
	Loaded    *join.Loaded
	CrimeRows int
	FoodRows  int
}

// runJoin executes one run described by cfg.
func runJoin(ctx context.Context, cfg config.Config, logger *zap.Logger) (res *runResult, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger = logging.OrNop(logger)
	foodIn, err := os.Open(cfg.Inputs.Food)
	if err != nil {
		return nil, err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(foodIn))
	crimeIn, err := os.Open(cfg.Inputs.Crime)
	if err != nil {
		return nil, err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(crimeIn))

	var book record.AddressBook
	if cfg.Inputs.AddressBook != "" {
		if book, err = record.LoadAddressBookFile(cfg.Inputs.AddressBook); err != nil {
			return nil, err
		}
	}
	proj := geo.NewProjection(cfg.Origin())
	loaded, err := join.Load(ctx, join.Source{
		Food:         foodIn,
		Crime:        crimeIn,
		FoodColumns:  cfg.Inputs.FoodColumns,
		CrimeColumns: cfg.Inputs.CrimeColumns,
		Projection:   proj,
		AddressBook:  book,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	res = &runResult{Loaded: loaded}

	reg := prometheus.NewRegistry()
	driver := join.NewDriver(
		join.WithRadius(cfg.Join.Radius),
		join.WithScorer(cfg.Scorer()),
		join.WithLogger(logger),
		join.WithRegisterer(reg),
		join.WithProgressEvery(cfg.Join.ProgressEvery),
	)
	defer driver.Close()
	if err := driver.Build(loaded.Establishments); err != nil {
		return nil, err
	}

	var crimes *export.CrimeWriter
	sink := join.Discard
	if cfg.Outputs.Crime != "" {
		var out *os.File
		if out, err = os.Create(cfg.Outputs.Crime); err != nil {
			return nil, err
		}
		defer multierr.AppendInvoke(&err, multierr.Close(out))
		crimes = export.NewCrimeWriter(out)
		crimes.MatchedOnly = cfg.Outputs.MatchedOnly
		if err := crimes.WriteHeader(); err != nil {
			return nil, err
		}
		sink = crimes
	}
	if res.Stats, err = driver.Run(ctx, &record.SliceSource{Incidents: loaded.Incidents}, sink); err != nil {
		return nil, err
	}
	res.Stats.BadRows += loaded.BadRows
	if crimes != nil {
		if err := crimes.Flush(); err != nil {
			return nil, err
		}
		res.CrimeRows = crimes.Rows()
	}

	if cfg.Outputs.Food != "" {
		if res.FoodRows, err = writeFood(cfg.Outputs.Food, driver); err != nil {
			return nil, err
		}
	}
	if cfg.Store.Path != "" {
		if res.RunID, err = persistRun(ctx, cfg, logger, loaded, res.Stats); err != nil {
			return nil, err
		}
	}
	if cfg.Outputs.Metrics != "" {
		if err := writeMetrics(cfg.Outputs.Metrics, reg); err != nil {
			return nil, err
		}
	}
	logger.Info("run complete",
		zap.Int("crime_rows", res.CrimeRows),
		zap.Int("food_rows", res.FoodRows),
		zap.String("run", res.RunID))
	return res, nil
}

func writeFood(path string, driver *join.Driver) (rows int, err error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(out))
	w := export.NewFoodWriter(out)
	if err := w.WriteHeader(); err != nil {
		return 0, err
	}
	if err := driver.Export(w.Write); err != nil {
		return 0, err
	}
	if err := w.Flush(); err != nil {
		return 0, err
	}
	return w.Rows(), nil
}

func persistRun(ctx context.Context, cfg config.Config, logger *zap.Logger, loaded *join.Loaded, stats join.Stats) (runID string, err error) {
	st, err := store.Open(ctx, engine.FileDSN(cfg.Store.Path), logger)
	if err != nil {
		return "", err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(st))

	runID, err = st.BeginRun(ctx, store.RunInfo{
		FoodPath:  cfg.Inputs.Food,
		CrimePath: cfg.Inputs.Crime,
		Radius:    cfg.Join.Radius,
		IndexKind: cfg.Index.Kind,
	})
	if err != nil {
		return "", err
	}
	if err := st.SaveEstablishments(ctx, runID, loaded.Establishments); err != nil {
		return "", err
	}
	if err := st.SaveIncidents(ctx, runID, loaded.Incidents); err != nil {
		return "", err
	}
	if _, err := st.SaveMatches(ctx, runID, loaded.Establishments); err != nil {
		return "", err
	}
	if _, err := st.PublishPoints(ctx, runID, loaded.Establishments); err != nil {
		return "", err
	}
	kind, err := index.ParseKind(cfg.Index.Kind)
	if err != nil {
		return "", err
	}
	if _, err := st.Reindex(ctx, runID, kind); err != nil {
		return "", err
	}
	err = st.FinishRun(ctx, runID, store.RunStats{
		Establishments: stats.Establishments,
		Incidents:      stats.Incidents,
		Retained:       stats.Retained,
	})
	return runID, err
}

func writeMetrics(path string, gatherer prometheus.Gatherer) (err error) {
	families, err := gatherer.Gather()
	if err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(out))
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}
