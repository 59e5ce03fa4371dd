package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/digitaltembo/Crime-And-Dining/config"
	"github.com/digitaltembo/Crime-And-Dining/geo"
	"github.com/digitaltembo/Crime-And-Dining/geocode"
	"github.com/digitaltembo/Crime-And-Dining/logging"
	"github.com/digitaltembo/Crime-And-Dining/record"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func newGeocodeCmd(g *globalFlags) *cobra.Command {
	var food, locs, apiKey, endpoint string
	var rps float64
	cmd := &cobra.Command{
		Use:   "geocode",
		Short: "Geocode establishments without a location into the address book",
		Long: `Read the establishment export, geocode the address of every row without a
location that the address book does not know yet, and write the book back.

Examples:
  riskjoin geocode --food licenses.csv --locs locs.json --api-key KEY`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			flags := cmd.Flags()
			if flags.Changed("food") {
				cfg.Inputs.Food = food
			}
			if flags.Changed("locs") {
				cfg.Inputs.AddressBook = locs
			}
			if flags.Changed("api-key") {
				cfg.Geocode.APIKey = apiKey
			}
			if flags.Changed("endpoint") {
				cfg.Geocode.Endpoint = endpoint
			}
			if flags.Changed("rps") {
				cfg.Geocode.RPS = rps
			}
			if cfg.Inputs.AddressBook == "" {
				return errors.New("geocode: --locs is required")
			}
			filler := &geocode.Filler{
				Geocoder: geocode.NewGoogle(cfg.Geocode.APIKey, cfg.Geocode.Endpoint, nil),
				Limiter:  geocode.NewLimiter(cfg.Geocode.RPS),
				Logger:   logger,
			}
			stats, err := fillAddressBook(cmd.Context(), cfg, filler, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "geocoded %d of %d addresses\n", stats.Resolved, stats.Requested)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&food, "food", "", "Food establishment licenses CSV")
	f.StringVar(&locs, "locs", "", "Address book JSON to update")
	f.StringVar(&apiKey, "api-key", "", "Geocoding API key")
	f.StringVar(&endpoint, "endpoint", "", "Geocoding endpoint URL")
	f.Float64Var(&rps, "rps", geocode.DefaultRPS, "Geocoding requests per second")
	return cmd
}

// fillAddressBook geocodes the unlocated establishments of cfg.Inputs.Food
// and writes the address book. The book is written even when geocoding is
// interrupted.
func fillAddressBook(ctx context.Context, cfg config.Config, filler *geocode.Filler, logger *zap.Logger) (stats geocode.Stats, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger = logging.OrNop(logger)
	in, err := os.Open(cfg.Inputs.Food)
	if err != nil {
		return stats, err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(in))
	rd, err := record.NewEstablishmentReader(in, cfg.Inputs.FoodColumns, geo.NewProjection(cfg.Origin()))
	if err != nil {
		return stats, err
	}
	establishments, err := record.ReadAll[*record.Establishment](rd, func(err error) {
		logger.Warn("skipping establishment row", zap.Error(err))
	})
	if err != nil {
		return stats, err
	}
	book, err := record.LoadAddressBookFile(cfg.Inputs.AddressBook)
	if err != nil {
		return stats, err
	}
	book, stats, err = filler.Fill(ctx, establishments, book)
	return stats, multierr.Append(err, book.WriteFile(cfg.Inputs.AddressBook))
}
